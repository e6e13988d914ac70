package games

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"
)

// Type identifies one of the supported two-player games.
type Type string

const (
	TicTacToe Type = "tictactoe"
	Gomoku    Type = "morpion"
	Mancala   Type = "mancala"
	Checkers  Type = "checkers"
	Chess     Type = "chess"
	Dominoes  Type = "dominoes"
)

// ParseType validates a wire game type string.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TicTacToe, Gomoku, Mancala, Checkers, Chess, Dominoes:
		return Type(s), nil
	}
	return "", fmt.Errorf("unknown game type %q", s)
}

// Options configures engine setup. GridSize only applies to tic-tac-toe
// (3, 5 or 7). Seed fixes the RNG for deterministic tests; 0 means random.
type Options struct {
	GridSize int
	Seed     int64
}

func (o Options) rng() *rand.Rand {
	seed := o.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// Action is the decoded game_action payload. It is a flat union over all six
// games; each engine reads only the fields it understands. Index fields
// default to -1 so an absent field is distinguishable from square 0.
type Action struct {
	Move      string `json:"move"`
	Cell      int    `json:"cell,omitempty"`
	Pit       int    `json:"pit,omitempty"`
	From      int    `json:"from,omitempty"`
	To        int    `json:"to,omitempty"`
	Promotion string `json:"promotion,omitempty"`
	Tile      int    `json:"tile,omitempty"`
	Side      string `json:"side,omitempty"`
}

// DecodeAction unmarshals a raw game_action payload with -1 defaults for all
// index fields.
func DecodeAction(raw json.RawMessage) (Action, error) {
	a := Action{Cell: -1, Pit: -1, From: -1, To: -1, Tile: -1}
	if err := json.Unmarshal(raw, &a); err != nil {
		return a, NewReject(KindInvalidAction, "malformed action payload")
	}
	return a, nil
}

// Outcome describes the result of a successfully applied action.
type Outcome struct {
	GameOver  bool
	RoundOver bool // dominoes only: round finished, match continues
	Winner    int  // winning seat when GameOver; -1 means draw
	ExtraTurn bool // the acting seat moves again (mancala store, checkers jump, dominoes draw)
}

// Rejection kinds. Engines never return raw errors for rule violations; they
// return a *Reject so the server can relay the kind to the offending client.
const (
	KindGameOver         = "game-over"
	KindNotYourTurn      = "not-your-turn"
	KindInvalidAction    = "invalid-action"
	KindIllegalMove      = "illegal-move"
	KindWrongPiece       = "wrong-piece"
	KindMustCapture      = "must-capture"
	KindMustContinueJump = "must-continue-jump"
	KindMustDraw         = "must-draw"
	KindRoundNotOver     = "round-not-over"
)

// Reject is a structured rule rejection.
type Reject struct {
	Kind string
	Msg  string
}

func (r *Reject) Error() string {
	if r.Msg == "" {
		return r.Kind
	}
	return r.Kind + ": " + r.Msg
}

// NewReject builds a rejection with the given kind and message.
func NewReject(kind, msg string) *Reject {
	return &Reject{Kind: kind, Msg: msg}
}

// RejectKind extracts the rejection kind from an error, or "" if the error is
// not an engine rejection.
func RejectKind(err error) string {
	if r, ok := err.(*Reject); ok {
		return r.Kind
	}
	return ""
}

// Engine is the uniform contract every game implements. Engines are pure
// state machines: no I/O, no timers, no goroutines. Callers serialise access;
// engines are not safe for concurrent use.
type Engine interface {
	// Apply validates and applies seat's action. Rule violations come back
	// as *Reject; the state is unchanged on any error.
	Apply(seat int, a Action) (Outcome, error)

	// View returns the state visible to the given seat, ready for JSON
	// encoding. Hidden information (dominoes hands) is projected away.
	View(seat int) any

	// AutoFallback returns the move to inject when seat's turn deadline
	// fires. ok is false when the position offers no legal move at all.
	AutoFallback(seat int) (a Action, ok bool)

	CurrentSeat() int
	IsOver() bool
	IsRoundOver() bool
}

// New creates an engine for the given game type.
func New(t Type, opts Options) (Engine, error) {
	switch t {
	case TicTacToe:
		return newTicTacToe(opts)
	case Gomoku:
		return newGomoku(opts), nil
	case Mancala:
		return newMancala(opts), nil
	case Checkers:
		return newCheckers(), nil
	case Chess:
		return newChess(), nil
	case Dominoes:
		return newDominoes(opts), nil
	}
	return nil, fmt.Errorf("unknown game type %q", t)
}

// TurnBudget returns the nominal per-turn time budget for a game. Zero means
// the game plays without a turn clock.
func TurnBudget(t Type) time.Duration {
	switch t {
	case Dominoes:
		return 15 * time.Second
	case Mancala:
		return 20 * time.Second
	case Checkers, Gomoku:
		return 30 * time.Second
	case Chess:
		return 60 * time.Second
	}
	return 0
}
