package games

// gomoku ("morpion") plays five-in-a-row on a fixed 15×15 board with no
// opening restriction. Seat 0 always opens.
type gomoku struct {
	board   []int // -1 empty, else owning seat
	turn    int
	over    bool
	winner  int
	winning []int
	moves   int
	last    int
}

const gomokuSize = 15

func newGomoku(opts Options) *gomoku {
	g := &gomoku{
		board:  make([]int, gomokuSize*gomokuSize),
		winner: -1,
		last:   -1,
	}
	for i := range g.board {
		g.board[i] = -1
	}
	return g
}

func (g *gomoku) CurrentSeat() int  { return g.turn }
func (g *gomoku) IsOver() bool      { return g.over }
func (g *gomoku) IsRoundOver() bool { return false }

func (g *gomoku) Apply(seat int, a Action) (Outcome, error) {
	if g.over {
		return Outcome{}, NewReject(KindGameOver, "game already finished")
	}
	if seat != g.turn {
		return Outcome{}, NewReject(KindNotYourTurn, "")
	}
	if a.Move != "" && a.Move != "place" {
		return Outcome{}, NewReject(KindInvalidAction, "expected place")
	}
	cell := a.Cell
	if cell < 0 || cell >= len(g.board) {
		return Outcome{}, NewReject(KindInvalidAction, "cell out of range")
	}
	if g.board[cell] != -1 {
		return Outcome{}, NewReject(KindIllegalMove, "cell occupied")
	}

	g.board[cell] = seat
	g.moves++
	g.last = cell

	if cells := scanLine(g.board, gomokuSize, gomokuSize, cell, 5); cells != nil {
		g.over = true
		g.winner = seat
		g.winning = cells
		return Outcome{GameOver: true, Winner: seat}, nil
	}
	if g.moves == len(g.board) {
		g.over = true
		return Outcome{GameOver: true, Winner: -1}, nil
	}
	g.turn = 1 - g.turn
	return Outcome{}, nil
}

// AutoFallback prefers the centre, then any empty neighbour of the last
// stone, then the first empty cell.
func (g *gomoku) AutoFallback(seat int) (Action, bool) {
	if g.over || seat != g.turn {
		return Action{}, false
	}
	center := (gomokuSize/2)*gomokuSize + gomokuSize/2
	if g.board[center] == -1 {
		return Action{Move: "place", Cell: center}, true
	}
	if g.last >= 0 {
		r0, c0 := g.last/gomokuSize, g.last%gomokuSize
		for dr := -1; dr <= 1; dr++ {
			for dc := -1; dc <= 1; dc++ {
				if dr == 0 && dc == 0 {
					continue
				}
				r, c := r0+dr, c0+dc
				if r < 0 || r >= gomokuSize || c < 0 || c >= gomokuSize {
					continue
				}
				if g.board[r*gomokuSize+c] == -1 {
					return Action{Move: "place", Cell: r*gomokuSize + c}, true
				}
			}
		}
	}
	for i, v := range g.board {
		if v == -1 {
			return Action{Move: "place", Cell: i}, true
		}
	}
	return Action{}, false
}

func (g *gomoku) View(seat int) any {
	v := ticTacToeView{
		GridSize:      gomokuSize,
		Board:         append([]int(nil), g.board...),
		YourSeat:      seat,
		CurrentPlayer: g.turn,
		MoveCount:     g.moves,
		GameOver:      g.over,
		IsDraw:        g.over && g.winner == -1,
		WinningCells:  g.winning,
		LastMove:      g.last,
	}
	if g.over && g.winner >= 0 {
		w := g.winner
		v.Winner = &w
	}
	return v
}
