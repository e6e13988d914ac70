package games

import (
	"fmt"
	"sort"
)

// ticTacToe plays on an N×N grid, N in {3,5,7}. Win length is 3 on the
// classic board and 4 on the larger variants. Cells are numbered row-major.
type ticTacToe struct {
	size    int
	winLen  int
	board   []int // -1 empty, else owning seat
	turn    int
	over    bool
	winner  int // -1 draw
	winning []int
	moves   int
	last    int
}

func newTicTacToe(opts Options) (*ticTacToe, error) {
	n := opts.GridSize
	if n == 0 {
		n = 3
	}
	if n != 3 && n != 5 && n != 7 {
		return nil, fmt.Errorf("invalid grid size %d", n)
	}
	winLen := 4
	if n == 3 {
		winLen = 3
	}
	g := &ticTacToe{
		size:   n,
		winLen: winLen,
		board:  make([]int, n*n),
		turn:   opts.rng().Intn(2),
		winner: -1,
		last:   -1,
	}
	for i := range g.board {
		g.board[i] = -1
	}
	return g, nil
}

func (g *ticTacToe) CurrentSeat() int { return g.turn }
func (g *ticTacToe) IsOver() bool     { return g.over }
func (g *ticTacToe) IsRoundOver() bool { return false }

func (g *ticTacToe) Apply(seat int, a Action) (Outcome, error) {
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

	if cells := scanLine(g.board, g.size, g.size, cell, g.winLen); cells != nil {
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

// AutoFallback plays the first empty cell. Tic-tac-toe runs without a turn
// clock, so this only matters if a caller arms one anyway.
func (g *ticTacToe) AutoFallback(seat int) (Action, bool) {
	if g.over || seat != g.turn {
		return Action{}, false
	}
	for i, v := range g.board {
		if v == -1 {
			return Action{Move: "place", Cell: i}, true
		}
	}
	return Action{}, false
}

// ticTacToeView is the seat projection; the whole board is public.
type ticTacToeView struct {
	GridSize      int    `json:"gridSize"`
	Board         []int  `json:"board"`
	YourSeat      int    `json:"yourSeat"`
	CurrentPlayer int    `json:"currentPlayer"`
	MoveCount     int    `json:"moveCount"`
	GameOver      bool   `json:"gameOver"`
	Winner        *int   `json:"winner,omitempty"`
	IsDraw        bool   `json:"isDraw"`
	WinningCells  []int  `json:"winningCells,omitempty"`
	LastMove      int    `json:"lastMove"`
}

func (g *ticTacToe) View(seat int) any {
	v := ticTacToeView{
		GridSize:      g.size,
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

// scanLine checks the four directions through cell for a run of winLen stones
// owned by the cell's occupant and returns the winning cells, or nil.
func scanLine(board []int, rows, cols, cell, winLen int) []int {
	owner := board[cell]
	r0, c0 := cell/cols, cell%cols
	dirs := [4][2]int{{0, 1}, {1, 0}, {1, 1}, {1, -1}}
	for _, d := range dirs {
		cells := []int{cell}
		for sign := -1; sign <= 1; sign += 2 {
			for step := 1; ; step++ {
				r := r0 + sign*step*d[0]
				c := c0 + sign*step*d[1]
				if r < 0 || r >= rows || c < 0 || c >= cols || board[r*cols+c] != owner {
					break
				}
				cells = append(cells, r*cols+c)
			}
		}
		if len(cells) >= winLen {
			sort.Ints(cells)
			return cells
		}
	}
	return nil
}
