package games

import "math/rand"

// dominoTile is one bone of the double-six set.
type dominoTile struct {
	A int `json:"a"`
	B int `json:"b"`
}

func (t dominoTile) isDouble() bool { return t.A == t.B }
func (t dominoTile) pips() int      { return t.A + t.B }

// placedTile records a tile on the board in play orientation: Left faces the
// left end of the line, Right the right end.
type placedTile struct {
	Left  int `json:"left"`
	Right int `json:"right"`
}

// dominoes implements draw-mode double-six dominoes, first player to 50
// points. A round ends when a hand empties or the round blocks on two
// consecutive passes; while the boneyard holds tiles, drawing is mandatory
// before passing.
type dominoes struct {
	rng       *rand.Rand
	hands     [2][]dominoTile
	boneyard  []dominoTile
	board     []placedTile
	turn      int
	passes    int
	scores    [2]int
	over      bool
	roundOver bool
	winner      int // match winner when over
	roundWinner int // -1 for a tied blocked round
	roundPoints int
	drewTile    bool // the acting seat just drew and keeps the turn
}

const dominoTarget = 50

func newDominoes(opts Options) *dominoes {
	g := &dominoes{rng: opts.rng(), winner: -1, roundWinner: -1}
	g.deal()
	return g
}

// deal shuffles a fresh set, hands out 7 tiles each and gives the opening
// turn to the holder of the highest double, or seat 0 when no double was
// dealt.
func (g *dominoes) deal() {
	set := make([]dominoTile, 0, 28)
	for a := 0; a <= 6; a++ {
		for b := a; b <= 6; b++ {
			set = append(set, dominoTile{A: a, B: b})
		}
	}
	g.rng.Shuffle(len(set), func(i, j int) { set[i], set[j] = set[j], set[i] })

	g.hands[0] = append([]dominoTile(nil), set[:7]...)
	g.hands[1] = append([]dominoTile(nil), set[7:14]...)
	g.boneyard = append([]dominoTile(nil), set[14:]...)
	g.board = nil
	g.passes = 0
	g.roundOver = false
	g.roundWinner = -1
	g.roundPoints = 0
	g.drewTile = false

	g.turn = 0
	best := -1
	for seat := 0; seat < 2; seat++ {
		for _, t := range g.hands[seat] {
			if t.isDouble() && t.A > best {
				best = t.A
				g.turn = seat
			}
		}
	}
}

func (g *dominoes) CurrentSeat() int  { return g.turn }
func (g *dominoes) IsOver() bool      { return g.over }
func (g *dominoes) IsRoundOver() bool { return g.roundOver }

func (g *dominoes) ends() (left, right int) {
	if len(g.board) == 0 {
		return -1, -1
	}
	return g.board[0].Left, g.board[len(g.board)-1].Right
}

// playableSides reports which line ends accept the tile.
func (g *dominoes) playableSides(t dominoTile) (left, right bool) {
	if len(g.board) == 0 {
		return true, true
	}
	l, r := g.ends()
	left = t.A == l || t.B == l
	right = t.A == r || t.B == r
	return
}

func (g *dominoes) handPlayable(seat int) bool {
	for _, t := range g.hands[seat] {
		if l, r := g.playableSides(t); l || r {
			return true
		}
	}
	return false
}

func (g *dominoes) Apply(seat int, a Action) (Outcome, error) {
	if g.over {
		return Outcome{}, NewReject(KindGameOver, "match already finished")
	}
	if a.Move == "next_round" {
		if !g.roundOver {
			return Outcome{}, NewReject(KindRoundNotOver, "round still in progress")
		}
		g.deal()
		return Outcome{}, nil
	}
	if g.roundOver {
		return Outcome{}, NewReject(KindInvalidAction, "round is over; send next_round")
	}
	if seat != g.turn {
		return Outcome{}, NewReject(KindNotYourTurn, "")
	}

	switch a.Move {
	case "play":
		return g.applyPlay(seat, a)
	case "draw":
		return g.applyDraw(seat)
	case "pass":
		return g.applyPass(seat)
	}
	return Outcome{}, NewReject(KindInvalidAction, "expected play, draw, pass or next_round")
}

func (g *dominoes) applyPlay(seat int, a Action) (Outcome, error) {
	idx := a.Tile
	if idx < 0 || idx >= len(g.hands[seat]) {
		return Outcome{}, NewReject(KindInvalidAction, "tile index out of range")
	}
	t := g.hands[seat][idx]
	canLeft, canRight := g.playableSides(t)
	if !canLeft && !canRight {
		return Outcome{}, NewReject(KindIllegalMove, "tile does not match either end")
	}

	side := a.Side
	switch side {
	case "left", "right":
	case "", "none":
		// Accepted only when the tile fits exactly one end.
		if canLeft && canRight && len(g.board) > 0 {
			l, r := g.ends()
			if l != r {
				return Outcome{}, NewReject(KindInvalidAction, "tile fits both ends; pick a side")
			}
		}
		if canLeft {
			side = "left"
		} else {
			side = "right"
		}
	default:
		return Outcome{}, NewReject(KindInvalidAction, "side must be left, right or none")
	}
	if side == "left" && !canLeft {
		return Outcome{}, NewReject(KindIllegalMove, "tile does not match the left end")
	}
	if side == "right" && !canRight {
		return Outcome{}, NewReject(KindIllegalMove, "tile does not match the right end")
	}

	g.hands[seat] = append(g.hands[seat][:idx], g.hands[seat][idx+1:]...)
	if len(g.board) == 0 {
		g.board = append(g.board, placedTile{Left: t.A, Right: t.B})
	} else if side == "left" {
		l, _ := g.ends()
		p := placedTile{Left: t.B, Right: t.A}
		if t.B == l {
			p = placedTile{Left: t.A, Right: t.B}
		}
		g.board = append([]placedTile{p}, g.board...)
	} else {
		_, r := g.ends()
		p := placedTile{Left: t.A, Right: t.B}
		if t.B == r {
			p = placedTile{Left: t.B, Right: t.A}
		}
		g.board = append(g.board, p)
	}

	g.passes = 0
	g.drewTile = false

	if len(g.hands[seat]) == 0 {
		return g.finishRound(seat, g.pipTotal(1-seat)), nil
	}
	g.turn = 1 - seat
	return Outcome{}, nil
}

func (g *dominoes) applyDraw(seat int) (Outcome, error) {
	if len(g.boneyard) == 0 {
		return Outcome{}, NewReject(KindIllegalMove, "boneyard is empty")
	}
	if g.handPlayable(seat) {
		return Outcome{}, NewReject(KindIllegalMove, "you hold a playable tile")
	}
	g.hands[seat] = append(g.hands[seat], g.boneyard[0])
	g.boneyard = g.boneyard[1:]
	g.passes = 0
	g.drewTile = true
	// The seat keeps drawing until a tile plays or the boneyard empties.
	return Outcome{ExtraTurn: true}, nil
}

func (g *dominoes) applyPass(seat int) (Outcome, error) {
	if len(g.boneyard) > 0 {
		return Outcome{}, NewReject(KindMustDraw, "draw from the boneyard before passing")
	}
	if g.handPlayable(seat) {
		return Outcome{}, NewReject(KindIllegalMove, "you hold a playable tile")
	}
	g.drewTile = false
	g.passes++
	if g.passes >= 2 {
		// Blocked round: lower pip total wins the difference.
		own, other := g.pipTotal(0), g.pipTotal(1)
		switch {
		case own < other:
			return g.finishRound(0, other-own), nil
		case other < own:
			return g.finishRound(1, own-other), nil
		default:
			return g.finishRound(-1, 0), nil
		}
	}
	g.turn = 1 - seat
	return Outcome{}, nil
}

func (g *dominoes) pipTotal(seat int) int {
	total := 0
	for _, t := range g.hands[seat] {
		total += t.pips()
	}
	return total
}

// finishRound books the round result and decides whether the match is over.
func (g *dominoes) finishRound(winner, points int) Outcome {
	g.roundOver = true
	g.roundWinner = winner
	g.roundPoints = points
	if winner >= 0 {
		g.scores[winner] += points
		if g.scores[winner] >= dominoTarget {
			g.over = true
			g.winner = winner
			return Outcome{GameOver: true, Winner: winner}
		}
	}
	return Outcome{RoundOver: true, Winner: -1}
}

// AutoFallback plays the first playable tile, drawing first when it must.
func (g *dominoes) AutoFallback(seat int) (Action, bool) {
	if g.over || seat != g.turn {
		return Action{}, false
	}
	if g.roundOver {
		return Action{Move: "next_round"}, true
	}
	for i, t := range g.hands[seat] {
		l, r := g.playableSides(t)
		if l {
			return Action{Move: "play", Tile: i, Side: "left"}, true
		}
		if r {
			return Action{Move: "play", Tile: i, Side: "right"}, true
		}
	}
	if len(g.boneyard) > 0 {
		return Action{Move: "draw"}, true
	}
	return Action{Move: "pass"}, true
}

type dominoesView struct {
	Hand              []dominoTile `json:"hand"`
	OpponentTileCount int          `json:"opponentTileCount"`
	BoneyardCount     int          `json:"boneyardCount"`
	Board             []placedTile `json:"board"`
	LeftEnd           int          `json:"leftEnd"`
	RightEnd          int          `json:"rightEnd"`
	YourSeat          int          `json:"yourSeat"`
	CurrentPlayer     int          `json:"currentPlayer"`
	Scores            [2]int       `json:"scores"`
	Passes            int          `json:"passes"`
	DrewTile          bool         `json:"drewTile"`
	RoundOver         bool         `json:"roundOver"`
	RoundWinner       *int         `json:"roundWinner,omitempty"`
	RoundPoints       int          `json:"roundPoints"`
	GameOver          bool         `json:"gameOver"`
	Winner            *int         `json:"winner,omitempty"`
}

func (g *dominoes) View(seat int) any {
	l, r := g.ends()
	v := dominoesView{
		Hand:              append([]dominoTile(nil), g.hands[seat]...),
		OpponentTileCount: len(g.hands[1-seat]),
		BoneyardCount:     len(g.boneyard),
		Board:             append([]placedTile(nil), g.board...),
		LeftEnd:           l,
		RightEnd:          r,
		YourSeat:          seat,
		CurrentPlayer:     g.turn,
		Scores:            g.scores,
		Passes:            g.passes,
		DrewTile:          g.drewTile,
		RoundOver:         g.roundOver,
		RoundPoints:       g.roundPoints,
		GameOver:          g.over,
	}
	if g.roundOver && g.roundWinner >= 0 {
		w := g.roundWinner
		v.RoundWinner = &w
	}
	if g.over && g.winner >= 0 {
		w := g.winner
		v.Winner = &w
	}
	return v
}
