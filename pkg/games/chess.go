package games

// chess implements the full over-the-board rules. Squares are indexed 0-63
// with a1 = 0 and h8 = 63 (index = rank*8 + file). Seat 0 plays white.
// Legality is established the classic way: generate pseudo-legal moves,
// apply each speculatively and reject those that leave the mover's king
// attacked. The fifty-move counter is tracked but does not terminate the
// game here.
type chess struct {
	board    [64]int8
	turn     int
	over     bool
	winner   int
	castle   [4]bool // white king-side, white queen-side, black king-side, black queen-side
	ep       int     // en-passant target square, -1 when closed
	halfmove int
	fullmove int
	lastFrom int
	lastTo   int
	resigned bool
}

// Piece codes; negative values are black.
const (
	chPawn int8 = iota + 1
	chKnight
	chBishop
	chRook
	chQueen
	chKing
)

const (
	castleWK = 0
	castleWQ = 1
	castleBK = 2
	castleBQ = 3
)

func newChess() *chess {
	g := &chess{winner: -1, ep: -1, fullmove: 1, lastFrom: -1, lastTo: -1}
	back := [8]int8{chRook, chKnight, chBishop, chQueen, chKing, chBishop, chKnight, chRook}
	for f := 0; f < 8; f++ {
		g.board[f] = back[f]
		g.board[8+f] = chPawn
		g.board[48+f] = -chPawn
		g.board[56+f] = -back[f]
	}
	for i := range g.castle {
		g.castle[i] = true
	}
	return g
}

func (g *chess) CurrentSeat() int  { return g.turn }
func (g *chess) IsOver() bool      { return g.over }
func (g *chess) IsRoundOver() bool { return false }

func chSeat(p int8) int {
	if p > 0 {
		return 0
	}
	return 1
}

func chSign(seat int) int8 {
	if seat == 0 {
		return 1
	}
	return -1
}

type chMove struct {
	from, to int
	promo    int8 // promotion piece code, 0 for none
	castle   bool
	ep       bool
}

var (
	knightDeltas = [8][2]int{{1, 2}, {2, 1}, {2, -1}, {1, -2}, {-1, -2}, {-2, -1}, {-2, 1}, {-1, 2}}
	kingDeltas   = [8][2]int{{0, 1}, {1, 1}, {1, 0}, {1, -1}, {0, -1}, {-1, -1}, {-1, 0}, {-1, 1}}
	bishopDirs   = [4][2]int{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
	rookDirs     = [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
)

// attacked reports whether sq is attacked by any piece of the given seat.
func (g *chess) attacked(sq, by int) bool {
	r, f := sq/8, sq%8
	sign := chSign(by)

	// Pawn attacks run toward the enemy, so look one rank back from sq.
	pr := r - int(sign)
	for _, df := range []int{-1, 1} {
		if pr >= 0 && pr < 8 && f+df >= 0 && f+df < 8 {
			if g.board[pr*8+f+df] == sign*chPawn {
				return true
			}
		}
	}
	for _, d := range knightDeltas {
		nr, nf := r+d[0], f+d[1]
		if nr >= 0 && nr < 8 && nf >= 0 && nf < 8 && g.board[nr*8+nf] == sign*chKnight {
			return true
		}
	}
	for _, d := range kingDeltas {
		nr, nf := r+d[0], f+d[1]
		if nr >= 0 && nr < 8 && nf >= 0 && nf < 8 && g.board[nr*8+nf] == sign*chKing {
			return true
		}
	}
	slide := func(dirs [4][2]int, pieces ...int8) bool {
		for _, d := range dirs {
			nr, nf := r+d[0], f+d[1]
			for nr >= 0 && nr < 8 && nf >= 0 && nf < 8 {
				p := g.board[nr*8+nf]
				if p != 0 {
					for _, want := range pieces {
						if p == sign*want {
							return true
						}
					}
					break
				}
				nr += d[0]
				nf += d[1]
			}
		}
		return false
	}
	if slide(bishopDirs, chBishop, chQueen) {
		return true
	}
	return slide(rookDirs, chRook, chQueen)
}

func (g *chess) kingSquare(seat int) int {
	want := chSign(seat) * chKing
	for sq := 0; sq < 64; sq++ {
		if g.board[sq] == want {
			return sq
		}
	}
	return -1
}

func (g *chess) inCheck(seat int) bool {
	return g.attacked(g.kingSquare(seat), 1-seat)
}

// pseudoFrom generates the pseudo-legal moves of the piece on sq, castling
// included. King safety is filtered later except for the castling transit
// squares, which are checked here per the castling rules.
func (g *chess) pseudoFrom(sq int) []chMove {
	p := g.board[sq]
	if p == 0 {
		return nil
	}
	seat := chSeat(p)
	sign := chSign(seat)
	r, f := sq/8, sq%8
	var out []chMove

	push := func(to int) {
		out = append(out, chMove{from: sq, to: to})
	}
	slide := func(dirs [4][2]int) {
		for _, d := range dirs {
			nr, nf := r+d[0], f+d[1]
			for nr >= 0 && nr < 8 && nf >= 0 && nf < 8 {
				to := nr*8 + nf
				if g.board[to] == 0 {
					push(to)
				} else {
					if chSeat(g.board[to]) != seat {
						push(to)
					}
					break
				}
				nr += d[0]
				nf += d[1]
			}
		}
	}

	switch p * sign {
	case chPawn:
		dir := int(sign)
		promoRank := 7
		startRank := 1
		if seat == 1 {
			promoRank = 0
			startRank = 6
		}
		addPawn := func(to int) {
			if to/8 == promoRank {
				for _, pr := range []int8{chQueen, chRook, chBishop, chKnight} {
					out = append(out, chMove{from: sq, to: to, promo: pr})
				}
			} else {
				push(to)
			}
		}
		fwd := (r+dir)*8 + f
		if r+dir >= 0 && r+dir < 8 && g.board[fwd] == 0 {
			addPawn(fwd)
			if r == startRank && g.board[(r+2*dir)*8+f] == 0 {
				push((r+2*dir)*8 + f)
			}
		}
		for _, df := range []int{-1, 1} {
			nf := f + df
			if nf < 0 || nf > 7 || r+dir < 0 || r+dir > 7 {
				continue
			}
			to := (r+dir)*8 + nf
			if g.board[to] != 0 && chSeat(g.board[to]) != seat {
				addPawn(to)
			} else if to == g.ep {
				out = append(out, chMove{from: sq, to: to, ep: true})
			}
		}
	case chKnight:
		for _, d := range knightDeltas {
			nr, nf := r+d[0], f+d[1]
			if nr >= 0 && nr < 8 && nf >= 0 && nf < 8 {
				to := nr*8 + nf
				if g.board[to] == 0 || chSeat(g.board[to]) != seat {
					push(to)
				}
			}
		}
	case chBishop:
		slide(bishopDirs)
	case chRook:
		slide(rookDirs)
	case chQueen:
		slide(bishopDirs)
		slide(rookDirs)
	case chKing:
		for _, d := range kingDeltas {
			nr, nf := r+d[0], f+d[1]
			if nr >= 0 && nr < 8 && nf >= 0 && nf < 8 {
				to := nr*8 + nf
				if g.board[to] == 0 || chSeat(g.board[to]) != seat {
					push(to)
				}
			}
		}
		// Castling: rights intact, squares between empty, king not in
		// check and not crossing or landing on an attacked square.
		home := 0
		ksIdx, qsIdx := castleWK, castleWQ
		if seat == 1 {
			home = 56
			ksIdx, qsIdx = castleBK, castleBQ
		}
		if sq == home+4 && !g.attacked(sq, 1-seat) {
			if g.castle[ksIdx] && g.board[home+5] == 0 && g.board[home+6] == 0 &&
				g.board[home+7] == sign*chRook &&
				!g.attacked(home+5, 1-seat) && !g.attacked(home+6, 1-seat) {
				out = append(out, chMove{from: sq, to: home + 6, castle: true})
			}
			if g.castle[qsIdx] && g.board[home+3] == 0 && g.board[home+2] == 0 && g.board[home+1] == 0 &&
				g.board[home] == sign*chRook &&
				!g.attacked(home+3, 1-seat) && !g.attacked(home+2, 1-seat) {
				out = append(out, chMove{from: sq, to: home + 2, castle: true})
			}
		}
	}
	return out
}

type chUndo struct {
	from, to    int
	moved       int8
	captured    int8
	capturedSq  int
	castle      [4]bool
	ep          int
	halfmove    int
	rookFrom    int
	rookTo      int
	promoted    bool
}

// make applies mv without legality checks and returns the undo record.
func (g *chess) make(mv chMove) chUndo {
	p := g.board[mv.from]
	seat := chSeat(p)
	u := chUndo{
		from: mv.from, to: mv.to, moved: p,
		captured: g.board[mv.to], capturedSq: mv.to,
		castle: g.castle, ep: g.ep, halfmove: g.halfmove,
		rookFrom: -1, rookTo: -1,
	}

	if mv.ep {
		// The captured pawn sits beside the target square.
		u.capturedSq = mv.to - int(chSign(seat))*8
		u.captured = g.board[u.capturedSq]
		g.board[u.capturedSq] = 0
	}

	g.board[mv.to] = p
	g.board[mv.from] = 0
	if mv.promo != 0 {
		g.board[mv.to] = chSign(seat) * mv.promo
		u.promoted = true
	}

	if mv.castle {
		home := 0
		if seat == 1 {
			home = 56
		}
		if mv.to == home+6 {
			u.rookFrom, u.rookTo = home+7, home+5
		} else {
			u.rookFrom, u.rookTo = home, home+3
		}
		g.board[u.rookTo] = g.board[u.rookFrom]
		g.board[u.rookFrom] = 0
	}

	// Rights maintenance: king moves forfeit both sides, rook moves and rook
	// captures forfeit the matching side.
	forfeit := func(sq int) {
		switch sq {
		case 4:
			g.castle[castleWK], g.castle[castleWQ] = false, false
		case 0:
			g.castle[castleWQ] = false
		case 7:
			g.castle[castleWK] = false
		case 60:
			g.castle[castleBK], g.castle[castleBQ] = false, false
		case 56:
			g.castle[castleBQ] = false
		case 63:
			g.castle[castleBK] = false
		}
	}
	forfeit(mv.from)
	forfeit(mv.to)

	// En-passant window opens only right after a double pawn push.
	g.ep = -1
	if p == chSign(seat)*chPawn {
		if d := mv.to - mv.from; d == 16 || d == -16 {
			g.ep = mv.from + d/2
		}
		g.halfmove = 0
	} else if u.captured != 0 {
		g.halfmove = 0
	} else {
		g.halfmove++
	}
	return u
}

func (g *chess) unmake(u chUndo) {
	g.board[u.from] = u.moved
	g.board[u.to] = 0
	if u.capturedSq != u.to {
		g.board[u.capturedSq] = u.captured
	} else {
		g.board[u.to] = u.captured
	}
	if u.rookFrom >= 0 {
		g.board[u.rookFrom] = g.board[u.rookTo]
		g.board[u.rookTo] = 0
	}
	g.castle = u.castle
	g.ep = u.ep
	g.halfmove = u.halfmove
}

// legalFrom filters the pseudo-legal moves of the piece on sq by king safety.
func (g *chess) legalFrom(sq int) []chMove {
	p := g.board[sq]
	if p == 0 {
		return nil
	}
	seat := chSeat(p)
	var out []chMove
	for _, mv := range g.pseudoFrom(sq) {
		u := g.make(mv)
		if !g.inCheck(seat) {
			out = append(out, mv)
		}
		g.unmake(u)
	}
	return out
}

func (g *chess) hasLegalMove(seat int) bool {
	for sq := 0; sq < 64; sq++ {
		if g.board[sq] != 0 && chSeat(g.board[sq]) == seat && len(g.legalFrom(sq)) > 0 {
			return true
		}
	}
	return false
}

func parsePromotion(s string) (int8, error) {
	switch s {
	case "", "Q", "q":
		return chQueen, nil
	case "R", "r":
		return chRook, nil
	case "B", "b":
		return chBishop, nil
	case "N", "n":
		return chKnight, nil
	}
	return 0, NewReject(KindInvalidAction, "invalid promotion piece")
}

func (g *chess) Apply(seat int, a Action) (Outcome, error) {
	if g.over {
		return Outcome{}, NewReject(KindGameOver, "game already finished")
	}
	if a.Move == "resign" {
		g.over = true
		g.resigned = true
		g.winner = 1 - seat
		return Outcome{GameOver: true, Winner: g.winner}, nil
	}
	if seat != g.turn {
		return Outcome{}, NewReject(KindNotYourTurn, "")
	}
	if a.Move != "" && a.Move != "move" {
		return Outcome{}, NewReject(KindInvalidAction, "expected move or resign")
	}
	from, to := a.From, a.To
	if from < 0 || from > 63 || to < 0 || to > 63 {
		return Outcome{}, NewReject(KindInvalidAction, "square out of range")
	}
	p := g.board[from]
	if p == 0 || chSeat(p) != seat {
		return Outcome{}, NewReject(KindWrongPiece, "no piece of yours on that square")
	}
	promo, err := parsePromotion(a.Promotion)
	if err != nil {
		return Outcome{}, err
	}

	var chosen *chMove
	for _, mv := range g.legalFrom(from) {
		if mv.to != to {
			continue
		}
		if mv.promo != 0 && mv.promo != promo {
			continue
		}
		chosen = &mv
		break
	}
	if chosen == nil {
		return Outcome{}, NewReject(KindIllegalMove, "")
	}

	g.make(*chosen)
	g.lastFrom, g.lastTo = from, to
	if seat == 1 {
		g.fullmove++
	}

	opp := 1 - seat
	if !g.hasLegalMove(opp) {
		g.over = true
		if g.inCheck(opp) {
			g.winner = seat // checkmate
			return Outcome{GameOver: true, Winner: seat}, nil
		}
		g.winner = -1 // stalemate
		return Outcome{GameOver: true, Winner: -1}, nil
	}
	g.turn = opp
	return Outcome{}, nil
}

// AutoFallback plays the first legal move of the lowest-indexed piece of the
// side to move.
func (g *chess) AutoFallback(seat int) (Action, bool) {
	if g.over || seat != g.turn {
		return Action{}, false
	}
	for sq := 0; sq < 64; sq++ {
		if g.board[sq] == 0 || chSeat(g.board[sq]) != seat {
			continue
		}
		if ms := g.legalFrom(sq); len(ms) > 0 {
			return Action{Move: "move", From: ms[0].from, To: ms[0].to}, true
		}
	}
	return Action{}, false
}

type chessView struct {
	Board         []int8  `json:"board"`
	YourSeat      int     `json:"yourSeat"`
	CurrentPlayer int     `json:"currentPlayer"`
	InCheck       bool    `json:"inCheck"`
	Castling      [4]bool `json:"castling"`
	EnPassant     int     `json:"enPassant"`
	HalfmoveClock int     `json:"halfmoveClock"`
	Fullmove      int     `json:"fullmove"`
	LastFrom      int     `json:"lastFrom"`
	LastTo        int     `json:"lastTo"`
	GameOver      bool    `json:"gameOver"`
	Winner        *int    `json:"winner,omitempty"`
	IsDraw        bool    `json:"isDraw"`
	Resigned      bool    `json:"resigned,omitempty"`
}

func (g *chess) View(seat int) any {
	v := chessView{
		Board:         append([]int8(nil), g.board[:]...),
		YourSeat:      seat,
		CurrentPlayer: g.turn,
		InCheck:       !g.over && g.inCheck(g.turn),
		Castling:      g.castle,
		EnPassant:     g.ep,
		HalfmoveClock: g.halfmove,
		Fullmove:      g.fullmove,
		LastFrom:      g.lastFrom,
		LastTo:        g.lastTo,
		GameOver:      g.over,
		IsDraw:        g.over && g.winner == -1,
		Resigned:      g.resigned,
	}
	if g.over && g.winner >= 0 {
		w := g.winner
		v.Winner = &w
	}
	return v
}
