package games

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gomokuCell(r, c int) int { return r*gomokuSize + c }

func TestGomokuDiagonalWin(t *testing.T) {
	e, err := New(Gomoku, Options{})
	require.NoError(t, err)
	forceTurn(t, e, 0)

	// Seat 0 builds (7,7)..(11,11); seat 1 answers far away on row 0.
	var out Outcome
	for i := 0; i < 5; i++ {
		out = place(t, e, 0, gomokuCell(7+i, 7+i))
		if i < 4 {
			require.False(t, out.GameOver)
			place(t, e, 1, gomokuCell(0, i))
		}
	}
	assert.True(t, out.GameOver)
	assert.Equal(t, 0, out.Winner)

	view := e.View(0).(ticTacToeView)
	require.Len(t, view.WinningCells, 5)
	assert.Equal(t, gomokuCell(7, 7), view.WinningCells[0])
	assert.Equal(t, gomokuCell(11, 11), view.WinningCells[4])
}

func TestGomokuFourIsNotEnough(t *testing.T) {
	e, err := New(Gomoku, Options{})
	require.NoError(t, err)
	forceTurn(t, e, 0)

	for i := 0; i < 4; i++ {
		out := place(t, e, 0, gomokuCell(3, 3+i))
		require.False(t, out.GameOver)
		place(t, e, 1, gomokuCell(10, i))
	}
	assert.False(t, e.IsOver())
}

func TestGomokuAutoFallbackPrefersCenter(t *testing.T) {
	e, err := New(Gomoku, Options{})
	require.NoError(t, err)
	forceTurn(t, e, 0)

	a, ok := e.AutoFallback(0)
	require.True(t, ok)
	assert.Equal(t, gomokuCell(7, 7), a.Cell)

	// Once the centre is taken the fallback hugs the last stone.
	place(t, e, 0, gomokuCell(7, 7))
	a, ok = e.AutoFallback(1)
	require.True(t, ok)
	dr := a.Cell/gomokuSize - 7
	dc := a.Cell%gomokuSize - 7
	assert.LessOrEqual(t, dr*dr+dc*dc, 2, "fallback cell should neighbour the last move")
}
