package server

import (
	"encoding/json"
	"fmt"
)

// EventType identifies a wire event on the client channel.
type EventType string

// Client -> server events.
const (
	EventRegister     EventType = "register"
	EventFindMatch    EventType = "find_match"
	EventAcceptBet    EventType = "accept_bet"
	EventCancelSearch EventType = "cancel_search"
	EventGameAction   EventType = "game_action"
	EventGetLobby     EventType = "get_lobby"
)

// Server -> client events.
const (
	EventRegistered      EventType = "registered"
	EventWaiting         EventType = "waiting"
	EventSearchCancelled EventType = "search_cancelled"
	EventLobbyUpdate     EventType = "lobby_update"
	EventGameStart       EventType = "game_start"
	EventGameState       EventType = "game_state"
	EventGameOver        EventType = "game_over"
	EventErrorMsg        EventType = "error_msg"
	EventBalanceUpdate   EventType = "balance_update"
)

// Envelope frames every message on the channel in both directions.
type Envelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// encodeEvent marshals an envelope around the given payload.
func encodeEvent(t EventType, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return json.Marshal(Envelope{Type: t, Payload: raw})
}

// Client payloads.

// RegisterPayload binds an external account identity to the session.
type RegisterPayload struct {
	Account     string `json:"account"`
	DisplayName string `json:"displayName,omitempty"`
}

// FindMatchPayload seeks or opens a bet. BetAmount is in coin units.
type FindMatchPayload struct {
	GameType  string  `json:"gameType"`
	BetAmount float64 `json:"betAmount"`
	GridSize  int     `json:"gridSize,omitempty"`
	Proof     string  `json:"proof,omitempty"`
}

// AcceptBetPayload accepts a specific open bet from the lobby.
type AcceptBetPayload struct {
	BetID string `json:"betId"`
	Proof string `json:"proof,omitempty"`
}

// Server payloads.

// RegisteredPayload acknowledges a successful register.
type RegisteredPayload struct {
	Account       string `json:"account"`
	DisplayName   string `json:"displayName"`
	EscrowAddress string `json:"escrowAddress"`
	TestMode      bool   `json:"testMode"`
}

// WaitingPayload tells the seeker their bet is queued.
type WaitingPayload struct {
	Msg       string  `json:"msg"`
	BetAmount float64 `json:"betAmount"`
	GameType  string  `json:"gameType"`
}

// LobbyBet is one open queue entry in a lobby_update.
type LobbyBet struct {
	ID        string  `json:"id"`
	GameType  string  `json:"gameType"`
	BetAmount float64 `json:"betAmount"`
	Username  string  `json:"username"`
	Wallet    string  `json:"wallet"`
	GridSize  int     `json:"gridSize,omitempty"`
}

// LobbyGame is one active room in a lobby_update.
type LobbyGame struct {
	GameType  string   `json:"gameType"`
	BetAmount float64  `json:"betAmount"`
	Players   []string `json:"players"`
}

// LobbyPayload is the full lobby snapshot.
type LobbyPayload struct {
	Waiting     []LobbyBet  `json:"waiting"`
	ActiveGames []LobbyGame `json:"activeGames"`
	OnlineCount int         `json:"onlineCount"`
}

// GamePlayer identifies one seat in a game_start.
type GamePlayer struct {
	Username string `json:"username"`
	Wallet   string `json:"wallet"`
}

// GameStartPayload announces a new room to both seats.
type GameStartPayload struct {
	RoomID      string        `json:"roomId"`
	GameType    string        `json:"gameType"`
	BetAmount   float64       `json:"betAmount"`
	PlayerIndex int           `json:"playerIndex"`
	Players     [2]GamePlayer `json:"players"`
}

// GameOverPayload announces the terminal result to both seats.
type GameOverPayload struct {
	Winner       string  `json:"winner"`
	WinnerWallet string  `json:"winnerWallet"`
	Payout       float64 `json:"payout"`
	IsDraw       bool    `json:"isDraw"`
	Resigned     bool    `json:"resigned,omitempty"`
	Reason       string  `json:"reason,omitempty"`
}

// ErrorPayload carries a rejection or failure to the offending client only.
type ErrorPayload struct {
	Msg string `json:"msg"`
}

// BalanceUpdatePayload informs a player of a settlement transfer naming them.
// Amount is in coin units.
type BalanceUpdatePayload struct {
	Amount float64 `json:"amount"`
	Ref    string  `json:"ref,omitempty"`
	Reason string  `json:"reason"`
}
