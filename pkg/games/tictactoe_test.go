package games

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// forceTurn points the engine at a known opening seat so move sequences in
// tests are deterministic.
func forceTurn(t *testing.T, e Engine, seat int) {
	t.Helper()
	switch g := e.(type) {
	case *ticTacToe:
		g.turn = seat
	case *gomoku:
		g.turn = seat
	default:
		t.Fatalf("forceTurn: unsupported engine %T", e)
	}
}

func place(t *testing.T, e Engine, seat, cell int) Outcome {
	t.Helper()
	out, err := e.Apply(seat, Action{Move: "place", Cell: cell})
	require.NoError(t, err)
	return out
}

func TestTicTacToeTopRowWin(t *testing.T) {
	e, err := New(TicTacToe, Options{GridSize: 3, Seed: 1})
	require.NoError(t, err)
	forceTurn(t, e, 0)

	place(t, e, 0, 0)
	place(t, e, 1, 3)
	place(t, e, 0, 1)
	place(t, e, 1, 4)
	out := place(t, e, 0, 2)

	assert.True(t, out.GameOver)
	assert.Equal(t, 0, out.Winner)
	assert.True(t, e.IsOver())

	// No move is accepted once the game is decided.
	_, err = e.Apply(1, Action{Move: "place", Cell: 5})
	require.Error(t, err)
	assert.Equal(t, KindGameOver, RejectKind(err))
}

func TestTicTacToeRejections(t *testing.T) {
	e, err := New(TicTacToe, Options{GridSize: 3, Seed: 1})
	require.NoError(t, err)
	forceTurn(t, e, 0)

	_, err = e.Apply(1, Action{Move: "place", Cell: 0})
	assert.Equal(t, KindNotYourTurn, RejectKind(err))

	_, err = e.Apply(0, Action{Move: "place", Cell: 9})
	assert.Equal(t, KindInvalidAction, RejectKind(err))

	place(t, e, 0, 4)
	_, err = e.Apply(1, Action{Move: "place", Cell: 4})
	assert.Equal(t, KindIllegalMove, RejectKind(err))
}

func TestTicTacToeDrawFillsBoard(t *testing.T) {
	e, err := New(TicTacToe, Options{GridSize: 3, Seed: 1})
	require.NoError(t, err)
	forceTurn(t, e, 0)

	// 0 1 0 / 1 0 1 / 1 0 1 pattern leaves no three in a row.
	seq := []int{0, 1, 2, 4, 3, 5, 7, 6, 8}
	var last Outcome
	for i, cell := range seq {
		last = place(t, e, e.CurrentSeat(), cell)
		if i < len(seq)-1 {
			require.False(t, last.GameOver, "premature end at move %d", i)
		}
	}
	assert.True(t, last.GameOver)
	assert.Equal(t, -1, last.Winner)

	view := e.View(0).(ticTacToeView)
	assert.True(t, view.IsDraw)
	assert.Equal(t, 9, view.MoveCount)
}

func TestTicTacToeLargeGridNeedsFour(t *testing.T) {
	e, err := New(TicTacToe, Options{GridSize: 5, Seed: 1})
	require.NoError(t, err)
	forceTurn(t, e, 0)

	// Three in a row on the 5x5 board does not end the game.
	place(t, e, 0, 0)
	place(t, e, 1, 20)
	place(t, e, 0, 1)
	place(t, e, 1, 21)
	out := place(t, e, 0, 2)
	require.False(t, out.GameOver)
	place(t, e, 1, 22)
	out = place(t, e, 0, 3)
	assert.True(t, out.GameOver)
	assert.Equal(t, 0, out.Winner)
}

func TestTicTacToeInvalidGridSize(t *testing.T) {
	_, err := New(TicTacToe, Options{GridSize: 4})
	require.Error(t, err)
}
