package games

// mancala implements kalaha on the standard 14-pit board. Pits 0-5 belong to
// seat 0 with store 6; pits 7-12 belong to seat 1 with store 13. Sowing runs
// counter-clockwise and skips the opponent's store.
type mancala struct {
	pits      [14]int
	turn      int
	over      bool
	winner    int
	lastMover int
	extraTurn bool // last applied sow ended in the mover's store
}

const (
	store0 = 6
	store1 = 13
)

func newMancala(opts Options) *mancala {
	g := &mancala{winner: -1, lastMover: -1}
	for i := 0; i < 14; i++ {
		if i != store0 && i != store1 {
			g.pits[i] = 4
		}
	}
	return g
}

func (g *mancala) CurrentSeat() int  { return g.turn }
func (g *mancala) IsOver() bool      { return g.over }
func (g *mancala) IsRoundOver() bool { return false }

func ownPitRange(seat int) (lo, hi, store int) {
	if seat == 0 {
		return 0, 5, store0
	}
	return 7, 12, store1
}

func (g *mancala) Apply(seat int, a Action) (Outcome, error) {
	if g.over {
		return Outcome{}, NewReject(KindGameOver, "game already finished")
	}
	if seat != g.turn {
		return Outcome{}, NewReject(KindNotYourTurn, "")
	}
	if a.Move != "" && a.Move != "sow" {
		return Outcome{}, NewReject(KindInvalidAction, "expected sow")
	}
	lo, hi, own := ownPitRange(seat)
	pit := a.Pit
	if pit < lo || pit > hi {
		return Outcome{}, NewReject(KindInvalidAction, "pit out of range")
	}
	if g.pits[pit] == 0 {
		return Outcome{}, NewReject(KindIllegalMove, "pit is empty")
	}

	_, _, theirs := ownPitRange(1 - seat)
	seeds := g.pits[pit]
	g.pits[pit] = 0
	pos := pit
	for seeds > 0 {
		pos = (pos + 1) % 14
		if pos == theirs {
			continue
		}
		g.pits[pos]++
		seeds--
	}

	g.lastMover = seat
	extra := pos == own

	// Capture: last seed in an own empty pit while the opposite pit holds
	// seeds moves both into the store.
	if !extra && pos >= lo && pos <= hi && g.pits[pos] == 1 {
		opposite := 12 - pos
		if g.pits[opposite] > 0 {
			g.pits[own] += g.pits[opposite] + 1
			g.pits[opposite] = 0
			g.pits[pos] = 0
		}
	}

	if g.sideEmpty(0) || g.sideEmpty(1) {
		g.sweep()
		g.over = true
		switch {
		case g.pits[store0] > g.pits[store1]:
			g.winner = 0
		case g.pits[store1] > g.pits[store0]:
			g.winner = 1
		default:
			// Equal stores go to whoever moved last.
			g.winner = g.lastMover
		}
		return Outcome{GameOver: true, Winner: g.winner}, nil
	}

	g.extraTurn = extra
	if !extra {
		g.turn = 1 - g.turn
	}
	return Outcome{ExtraTurn: extra}, nil
}

func (g *mancala) sideEmpty(seat int) bool {
	lo, hi, _ := ownPitRange(seat)
	for i := lo; i <= hi; i++ {
		if g.pits[i] > 0 {
			return false
		}
	}
	return true
}

// sweep moves every remaining playing-pit seed into its owner's store.
func (g *mancala) sweep() {
	for i := 0; i <= 5; i++ {
		g.pits[store0] += g.pits[i]
		g.pits[i] = 0
	}
	for i := 7; i <= 12; i++ {
		g.pits[store1] += g.pits[i]
		g.pits[i] = 0
	}
}

// AutoFallback sows the first non-empty own pit.
func (g *mancala) AutoFallback(seat int) (Action, bool) {
	if g.over || seat != g.turn {
		return Action{}, false
	}
	lo, hi, _ := ownPitRange(seat)
	for i := lo; i <= hi; i++ {
		if g.pits[i] > 0 {
			return Action{Move: "sow", Pit: i}, true
		}
	}
	return Action{}, false
}

type mancalaView struct {
	Pits          []int `json:"pits"`
	Stores        [2]int `json:"stores"`
	YourSeat      int   `json:"yourSeat"`
	CurrentPlayer int   `json:"currentPlayer"`
	ExtraTurn     bool  `json:"extraTurn"`
	GameOver      bool  `json:"gameOver"`
	Winner        *int  `json:"winner,omitempty"`
}

func (g *mancala) View(seat int) any {
	v := mancalaView{
		Pits:          append([]int(nil), g.pits[:]...),
		Stores:        [2]int{g.pits[store0], g.pits[store1]},
		YourSeat:      seat,
		CurrentPlayer: g.turn,
		ExtraTurn:     g.extraTurn,
		GameOver:      g.over,
	}
	if g.over && g.winner >= 0 {
		w := g.winner
		v.Winner = &w
	}
	return v
}
