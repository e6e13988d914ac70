package games

// checkers implements 8×8 American draughts. Squares are indexed row-major
// 0-63; play happens on dark squares where (row+col) is odd. Seat 0 starts on
// rows 0-2 and moves toward row 7; seat 1 starts on rows 5-7 and moves toward
// row 0. Captures are mandatory and multi-jumps continue until exhausted,
// except that promotion ends the sequence immediately.
type checkers struct {
	board        [64]int8 // 0 empty, ±1 man, ±2 king (positive = seat 0)
	turn         int
	over         bool
	winner       int
	mustJumpFrom int // -1 unless a multi-jump is pending
	pieces       [2]int
}

const (
	ckMan0  int8 = 1
	ckKing0 int8 = 2
	ckMan1  int8 = -1
	ckKing1 int8 = -2
)

func newCheckers() *checkers {
	g := &checkers{winner: -1, mustJumpFrom: -1}
	for sq := 0; sq < 64; sq++ {
		r, c := sq/8, sq%8
		if (r+c)%2 != 1 {
			continue
		}
		if r < 3 {
			g.board[sq] = ckMan0
			g.pieces[0]++
		} else if r > 4 {
			g.board[sq] = ckMan1
			g.pieces[1]++
		}
	}
	return g
}

func (g *checkers) CurrentSeat() int  { return g.turn }
func (g *checkers) IsOver() bool      { return g.over }
func (g *checkers) IsRoundOver() bool { return false }

// MustJumpFrom reports the square a pending multi-jump must continue from,
// or -1.
func (g *checkers) MustJumpFrom() int { return g.mustJumpFrom }

func ckSeat(p int8) int {
	if p > 0 {
		return 0
	}
	return 1
}

func ckIsKing(p int8) bool { return p == ckKing0 || p == ckKing1 }

// ckDirs returns the movement row-directions for a piece. Kings move both
// ways; men only forward.
func ckDirs(p int8) []int {
	if ckIsKing(p) {
		return []int{1, -1}
	}
	if p > 0 {
		return []int{1}
	}
	return []int{-1}
}

type ckMove struct {
	from, to int
	capture  int // captured square, or -1
}

// jumpsFrom lists the capture moves available to the piece on sq.
func (g *checkers) jumpsFrom(sq int) []ckMove {
	p := g.board[sq]
	if p == 0 {
		return nil
	}
	var moves []ckMove
	r, c := sq/8, sq%8
	for _, dr := range ckDirs(p) {
		for _, dc := range []int{-1, 1} {
			mr, mc := r+dr, c+dc
			lr, lc := r+2*dr, c+2*dc
			if lr < 0 || lr > 7 || lc < 0 || lc > 7 {
				continue
			}
			mid := mr*8 + mc
			land := lr*8 + lc
			if g.board[mid] != 0 && ckSeat(g.board[mid]) != ckSeat(p) && g.board[land] == 0 {
				moves = append(moves, ckMove{from: sq, to: land, capture: mid})
			}
		}
	}
	return moves
}

// stepsFrom lists the non-capturing moves available to the piece on sq.
func (g *checkers) stepsFrom(sq int) []ckMove {
	p := g.board[sq]
	if p == 0 {
		return nil
	}
	var moves []ckMove
	r, c := sq/8, sq%8
	for _, dr := range ckDirs(p) {
		for _, dc := range []int{-1, 1} {
			tr, tc := r+dr, c+dc
			if tr < 0 || tr > 7 || tc < 0 || tc > 7 {
				continue
			}
			to := tr*8 + tc
			if g.board[to] == 0 {
				moves = append(moves, ckMove{from: sq, to: to, capture: -1})
			}
		}
	}
	return moves
}

func (g *checkers) anyJump(seat int) bool {
	for sq := 0; sq < 64; sq++ {
		if g.board[sq] != 0 && ckSeat(g.board[sq]) == seat && len(g.jumpsFrom(sq)) > 0 {
			return true
		}
	}
	return false
}

func (g *checkers) anyMove(seat int) bool {
	for sq := 0; sq < 64; sq++ {
		if g.board[sq] == 0 || ckSeat(g.board[sq]) != seat {
			continue
		}
		if len(g.jumpsFrom(sq)) > 0 || len(g.stepsFrom(sq)) > 0 {
			return true
		}
	}
	return false
}

func (g *checkers) Apply(seat int, a Action) (Outcome, error) {
	if g.over {
		return Outcome{}, NewReject(KindGameOver, "game already finished")
	}
	if seat != g.turn {
		return Outcome{}, NewReject(KindNotYourTurn, "")
	}
	if a.Move != "" && a.Move != "move" {
		return Outcome{}, NewReject(KindInvalidAction, "expected move")
	}
	from, to := a.From, a.To
	if from < 0 || from > 63 || to < 0 || to > 63 {
		return Outcome{}, NewReject(KindInvalidAction, "square out of range")
	}
	p := g.board[from]
	if p == 0 || ckSeat(p) != seat {
		return Outcome{}, NewReject(KindWrongPiece, "no piece of yours on that square")
	}
	if g.mustJumpFrom >= 0 && from != g.mustJumpFrom {
		return Outcome{}, NewReject(KindMustContinueJump, "multi-jump must continue from the landing square")
	}

	var mv *ckMove
	for _, m := range g.jumpsFrom(from) {
		if m.to == to {
			mv = &m
			break
		}
	}
	if mv == nil {
		if g.mustJumpFrom >= 0 || g.anyJump(seat) {
			return Outcome{}, NewReject(KindMustCapture, "a capture is available")
		}
		for _, m := range g.stepsFrom(from) {
			if m.to == to {
				mv = &m
				break
			}
		}
	}
	if mv == nil {
		return Outcome{}, NewReject(KindIllegalMove, "")
	}

	g.board[to] = p
	g.board[from] = 0
	captured := mv.capture >= 0
	if captured {
		g.pieces[1-seat]--
		g.board[mv.capture] = 0
	}

	// Promotion on the far rank. Promoting ends any jump sequence.
	promoted := false
	toRow := to / 8
	if !ckIsKing(p) && ((seat == 0 && toRow == 7) || (seat == 1 && toRow == 0)) {
		promoted = true
		if seat == 0 {
			g.board[to] = ckKing0
		} else {
			g.board[to] = ckKing1
		}
	}

	g.mustJumpFrom = -1
	if captured && !promoted && len(g.jumpsFrom(to)) > 0 {
		g.mustJumpFrom = to
		return Outcome{ExtraTurn: true}, nil
	}

	opp := 1 - seat
	if g.pieces[opp] == 0 || !g.anyMove(opp) {
		g.over = true
		g.winner = seat
		return Outcome{GameOver: true, Winner: seat}, nil
	}
	g.turn = opp
	return Outcome{}, nil
}

// AutoFallback continues a pending jump, else plays the first available jump,
// else the first available step.
func (g *checkers) AutoFallback(seat int) (Action, bool) {
	if g.over || seat != g.turn {
		return Action{}, false
	}
	if g.mustJumpFrom >= 0 {
		if ms := g.jumpsFrom(g.mustJumpFrom); len(ms) > 0 {
			return Action{Move: "move", From: ms[0].from, To: ms[0].to}, true
		}
		return Action{}, false
	}
	for sq := 0; sq < 64; sq++ {
		if g.board[sq] == 0 || ckSeat(g.board[sq]) != seat {
			continue
		}
		if ms := g.jumpsFrom(sq); len(ms) > 0 {
			return Action{Move: "move", From: ms[0].from, To: ms[0].to}, true
		}
	}
	for sq := 0; sq < 64; sq++ {
		if g.board[sq] == 0 || ckSeat(g.board[sq]) != seat {
			continue
		}
		if ms := g.stepsFrom(sq); len(ms) > 0 {
			return Action{Move: "move", From: ms[0].from, To: ms[0].to}, true
		}
	}
	return Action{}, false
}

type checkersView struct {
	Board         []int8 `json:"board"`
	YourSeat      int    `json:"yourSeat"`
	CurrentPlayer int    `json:"currentPlayer"`
	MustJumpFrom  int    `json:"mustJumpFrom"`
	Pieces        [2]int `json:"pieces"`
	GameOver      bool   `json:"gameOver"`
	Winner        *int   `json:"winner,omitempty"`
}

func (g *checkers) View(seat int) any {
	v := checkersView{
		Board:         append([]int8(nil), g.board[:]...),
		YourSeat:      seat,
		CurrentPlayer: g.turn,
		MustJumpFrom:  g.mustJumpFrom,
		Pieces:        g.pieces,
		GameOver:      g.over,
	}
	if g.over && g.winner >= 0 {
		w := g.winner
		v.Winner = &w
	}
	return v
}
