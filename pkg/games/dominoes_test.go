package games

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tileCensus verifies the full double-six set is conserved across hands,
// boneyard and board.
func tileCensus(t *testing.T, g *dominoes) {
	t.Helper()
	seen := make(map[dominoTile]int)
	key := func(a, b int) dominoTile {
		if a > b {
			a, b = b, a
		}
		return dominoTile{A: a, B: b}
	}
	for seat := 0; seat < 2; seat++ {
		for _, tl := range g.hands[seat] {
			seen[key(tl.A, tl.B)]++
		}
	}
	for _, tl := range g.boneyard {
		seen[key(tl.A, tl.B)]++
	}
	for _, p := range g.board {
		seen[key(p.Left, p.Right)]++
	}
	require.Len(t, seen, 28, "set must stay complete")
	for tl, n := range seen {
		require.Equal(t, 1, n, "tile %v duplicated", tl)
	}
}

func TestDominoesDealAndOpener(t *testing.T) {
	e, err := New(Dominoes, Options{Seed: 7})
	require.NoError(t, err)
	g := e.(*dominoes)

	require.Len(t, g.hands[0], 7)
	require.Len(t, g.hands[1], 7)
	require.Len(t, g.boneyard, 14)
	tileCensus(t, g)

	// The opener holds the highest double in play, if any was dealt.
	best, owner := -1, 0
	for seat := 0; seat < 2; seat++ {
		for _, tl := range g.hands[seat] {
			if tl.isDouble() && tl.A > best {
				best, owner = tl.A, seat
			}
		}
	}
	if best >= 0 {
		assert.Equal(t, owner, g.CurrentSeat())
	} else {
		assert.Equal(t, 0, g.CurrentSeat())
	}
}

func TestDominoesPlayMatchesEnds(t *testing.T) {
	e, err := New(Dominoes, Options{Seed: 1})
	require.NoError(t, err)
	g := e.(*dominoes)

	// Hand-built round for deterministic ends.
	g.hands[0] = []dominoTile{{A: 6, B: 6}, {A: 6, B: 2}, {A: 0, B: 1}}
	g.hands[1] = []dominoTile{{A: 6, B: 3}, {A: 2, B: 5}, {A: 4, B: 4}}
	g.boneyard = nil
	g.board = nil
	g.turn = 0

	_, err = e.Apply(0, Action{Move: "play", Tile: 0, Side: "none"})
	require.NoError(t, err)
	l, r := g.ends()
	assert.Equal(t, 6, l)
	assert.Equal(t, 6, r)

	// 0-1 matches neither end.
	_, err = e.Apply(1, Action{Move: "play", Tile: 1, Side: "left"})
	assert.Equal(t, KindIllegalMove, RejectKind(err))

	_, err = e.Apply(1, Action{Move: "play", Tile: 0, Side: "right"})
	require.NoError(t, err)
	l, r = g.ends()
	assert.Equal(t, 6, l)
	assert.Equal(t, 3, r)

	// 6-2 fits only the left end, so side none resolves itself.
	_, err = e.Apply(0, Action{Move: "play", Tile: 0, Side: "none"})
	require.NoError(t, err)
	l, r = g.ends()
	assert.Equal(t, 2, l)
	assert.Equal(t, 3, r)
}

func TestDominoesDrawRequiredBeforePass(t *testing.T) {
	e, err := New(Dominoes, Options{Seed: 1})
	require.NoError(t, err)
	g := e.(*dominoes)

	g.hands[0] = []dominoTile{{A: 5, B: 5}}
	g.hands[1] = []dominoTile{{A: 0, B: 1}}
	g.boneyard = []dominoTile{{A: 0, B: 2}, {A: 5, B: 3}}
	g.board = []placedTile{{Left: 5, Right: 4}}
	g.turn = 1

	_, err = e.Apply(1, Action{Move: "pass"})
	assert.Equal(t, KindMustDraw, RejectKind(err))

	// Drawing keeps the turn until something plays.
	out, err := e.Apply(1, Action{Move: "draw"})
	require.NoError(t, err)
	assert.True(t, out.ExtraTurn)
	assert.Equal(t, 1, e.CurrentSeat())
	view := e.View(1).(dominoesView)
	assert.True(t, view.DrewTile)

	out, err = e.Apply(1, Action{Move: "draw"})
	require.NoError(t, err)
	assert.True(t, out.ExtraTurn)

	// 5-3 arrived; drawing or passing with a playable tile is illegal.
	_, err = e.Apply(1, Action{Move: "pass"})
	assert.Equal(t, KindIllegalMove, RejectKind(err))

	_, err = e.Apply(1, Action{Move: "play", Tile: 2, Side: "left"})
	require.NoError(t, err)
	assert.Equal(t, 0, e.CurrentSeat())
}

func TestDominoesBlockedRoundScoring(t *testing.T) {
	e, err := New(Dominoes, Options{Seed: 1})
	require.NoError(t, err)
	g := e.(*dominoes)

	// Blocked position: pips 12 vs 20, empty boneyard, nothing playable.
	g.hands[0] = []dominoTile{{A: 5, B: 5}, {A: 0, B: 2}}
	g.hands[1] = []dominoTile{{A: 6, B: 6}, {A: 4, B: 4}}
	g.boneyard = nil
	g.board = []placedTile{{Left: 1, Right: 3}}
	g.turn = 0

	_, err = e.Apply(0, Action{Move: "pass"})
	require.NoError(t, err)
	out, err := e.Apply(1, Action{Move: "pass"})
	require.NoError(t, err)

	assert.True(t, out.RoundOver)
	assert.False(t, out.GameOver)
	assert.True(t, e.IsRoundOver())
	assert.Equal(t, [2]int{8, 0}, g.scores)

	view := e.View(0).(dominoesView)
	require.NotNil(t, view.RoundWinner)
	assert.Equal(t, 0, *view.RoundWinner)
	assert.Equal(t, 8, view.RoundPoints)

	// Moves are refused until next_round restarts play.
	_, err = e.Apply(0, Action{Move: "pass"})
	assert.Equal(t, KindInvalidAction, RejectKind(err))

	_, err = e.Apply(0, Action{Move: "next_round"})
	require.NoError(t, err)
	assert.False(t, e.IsRoundOver())
	require.Len(t, g.hands[0], 7)
	tileCensus(t, g)
}

func TestDominoesRoundWinScoresOpponentPips(t *testing.T) {
	e, err := New(Dominoes, Options{Seed: 1})
	require.NoError(t, err)
	g := e.(*dominoes)

	g.hands[0] = []dominoTile{{A: 3, B: 4}}
	g.hands[1] = []dominoTile{{A: 6, B: 5}, {A: 2, B: 2}}
	g.boneyard = nil
	g.board = []placedTile{{Left: 4, Right: 3}}
	g.turn = 0
	g.scores = [2]int{45, 0}

	// Emptying the hand wins the round; 45+15 >= 50 also ends the match.
	out, err := e.Apply(0, Action{Move: "play", Tile: 0, Side: "left"})
	require.NoError(t, err)
	assert.True(t, out.GameOver)
	assert.Equal(t, 0, out.Winner)
	assert.Equal(t, 60, g.scores[0])
}

func TestDominoesViewHidesOpponentHand(t *testing.T) {
	e, err := New(Dominoes, Options{Seed: 3})
	require.NoError(t, err)

	v0 := e.View(0).(dominoesView)
	v1 := e.View(1).(dominoesView)
	assert.Len(t, v0.Hand, 7)
	assert.Equal(t, 7, v0.OpponentTileCount)
	assert.Len(t, v1.Hand, 7)
	assert.NotEqual(t, v0.Hand, v1.Hand)
}

func TestDominoesNextRoundOnlyWhenRoundOver(t *testing.T) {
	e, err := New(Dominoes, Options{Seed: 2})
	require.NoError(t, err)
	_, err = e.Apply(e.CurrentSeat(), Action{Move: "next_round"})
	assert.Equal(t, KindRoundNotOver, RejectKind(err))
}
