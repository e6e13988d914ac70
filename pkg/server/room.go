package server

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/decred/slog"
	"github.com/stakematch/stakematch/pkg/games"
	"github.com/stakematch/stakematch/pkg/statemachine"
	"github.com/stakematch/stakematch/pkg/utils"
)

const (
	// Extra slack past the nominal turn budget before the fallback fires,
	// absorbing network latency on the last-second move.
	timerSlack = 500 * time.Millisecond

	// Grace before a finished room is torn down, leaving time for the
	// game_over broadcast to drain.
	teardownGrace = 5 * time.Second

	// Shorter grace when the room finished because a player disconnected.
	disconnectGrace = 3 * time.Second
)

// RoomConfig configures a new room.
type RoomConfig struct {
	ID       string
	Game     games.Type
	Stake    int64 // atoms, per player
	GridSize int
	Sessions [2]*Session
	Log      slog.Logger

	// TurnBudget overrides the game's nominal per-turn budget; zero means
	// use the default. Tests shorten it.
	TurnBudget time.Duration
}

// Room owns one live match: the engine, the two seats, the turn timer and the
// lifecycle. A single mutex guards all of them together, so a timer fire
// racing an in-flight move is resolved by whoever locks first; the loser
// re-checks the lifecycle and no-ops.
type Room struct {
	ID       string
	Game     games.Type
	Stake    int64
	GridSize int

	srv *Server
	log slog.Logger

	mu        sync.Mutex
	engine    games.Engine
	sessions  [2]*Session
	accounts  [2]string
	names     [2]string
	lifecycle *statemachine.StateMachine[Room]
	budget    time.Duration
	timer     *time.Timer
	timerGen  uint64
	deadline  time.Time
	settled   bool
}

// Room lifecycle states. Dispatching a state runs its entry action and keeps
// the machine sitting in it.

func statePlaying(r *Room) statemachine.StateFn[Room] {
	r.armTimerLocked()
	return statePlaying
}

func stateFinished(r *Room) statemachine.StateFn[Room] {
	r.cancelTimerLocked()
	return stateFinished
}

// newRoom creates a room with a fresh engine. The matchmaker promotes matched
// pairs directly to playing; there is no waiting state.
func newRoom(srv *Server, cfg RoomConfig) (*Room, error) {
	engine, err := games.New(cfg.Game, games.Options{GridSize: cfg.GridSize})
	if err != nil {
		return nil, err
	}

	budget := cfg.TurnBudget
	if budget == 0 {
		budget = games.TurnBudget(cfg.Game)
	}

	r := &Room{
		ID:       cfg.ID,
		Game:     cfg.Game,
		Stake:    cfg.Stake,
		GridSize: cfg.GridSize,
		srv:      srv,
		log:      cfg.Log,
		engine:   engine,
		sessions: cfg.Sessions,
		budget:   budget,
	}
	for seat, sess := range cfg.Sessions {
		r.accounts[seat], r.names[seat] = sess.Identity()
	}
	r.lifecycle = statemachine.NewStateMachine(r, statePlaying)
	return r, nil
}

// start binds both sessions, announces the match and arms the first turn
// timer.
func (r *Room) start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	players := [2]GamePlayer{
		{Username: r.names[0], Wallet: r.accounts[0]},
		{Username: r.names[1], Wallet: r.accounts[1]},
	}
	for seat, sess := range r.sessions {
		sess.bindRoom(r.ID)
		sess.sendEvent(EventGameStart, GameStartPayload{
			RoomID:      r.ID,
			GameType:    string(r.Game),
			BetAmount:   utils.AtomsToCoins(r.Stake),
			PlayerIndex: seat,
			Players:     players,
		})
	}
	r.broadcastStateLocked()
	r.lifecycle.Dispatch(statePlaying)

	r.log.Infof("Room %s started: %s for %s per seat (%s vs %s)",
		r.ID, r.Game, utils.FormatAmount(r.Stake), r.names[0], r.names[1])
}

// seatOf resolves a session to its seat index, or -1.
func (r *Room) seatOf(sess *Session) int {
	for seat, s := range r.sessions {
		if s == sess {
			return seat
		}
	}
	return -1
}

// HandleAction runs the move pipeline for a game_action from sess. Engine
// rejections come back as the error; the caller relays them to the offending
// client only.
func (r *Room) HandleAction(sess *Session, raw json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seat := r.seatOf(sess)
	if seat < 0 {
		return ErrSessionNotBound
	}
	if !r.lifecycle.In(statePlaying) {
		return games.NewReject(games.KindGameOver, "game already finished")
	}

	action, err := games.DecodeAction(raw)
	if err != nil {
		return err
	}

	outcome, err := r.engine.Apply(seat, action)
	if err != nil {
		return err
	}

	r.postApplyLocked(outcome, action.Move == "resign", "")
	return nil
}

// postApplyLocked finishes the pipeline after a successful apply: broadcast
// the new state, then settle or re-arm the timer. The state broadcast for
// this move is queued before the next timer arms.
func (r *Room) postApplyLocked(outcome games.Outcome, resigned bool, reason string) {
	r.broadcastStateLocked()

	if outcome.GameOver {
		r.finishLocked(outcome.Winner, resigned, reason, teardownGrace)
		return
	}
	// A finished dominoes round suppresses the clock until next_round.
	if r.engine.IsRoundOver() {
		r.cancelTimerLocked()
		return
	}
	r.armTimerLocked()
}

// broadcastStateLocked sends each seat its own view.
func (r *Room) broadcastStateLocked() {
	for seat, sess := range r.sessions {
		sess.sendEvent(EventGameState, r.engine.View(seat))
	}
}

// armTimerLocked cancels any prior timer and arms a fresh one for the seat to
// move. The generation counter invalidates fires from cancelled timers that
// already left the runtime queue.
func (r *Room) armTimerLocked() {
	r.cancelTimerLocked()
	if r.budget == 0 || !r.lifecycle.In(statePlaying) || r.engine.IsOver() {
		return
	}

	r.timerGen++
	gen := r.timerGen
	r.deadline = time.Now().Add(r.budget)
	r.timer = time.AfterFunc(r.budget+timerSlack, func() {
		r.onTimeout(gen)
	})
}

func (r *Room) cancelTimerLocked() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// onTimeout fires when a seat runs out its turn budget: inject the engine's
// fallback move through the normal pipeline.
func (r *Room) onTimeout(gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// A real move may have landed between the fire and the lock.
	if gen != r.timerGen || !r.lifecycle.In(statePlaying) || r.engine.IsOver() {
		return
	}

	seat := r.engine.CurrentSeat()
	action, ok := r.engine.AutoFallback(seat)
	if !ok {
		// No legal move exists; the rules will terminate the game
		// through the normal flow.
		r.log.Warnf("Room %s: no fallback move for seat %d", r.ID, seat)
		return
	}

	r.log.Infof("Room %s: seat %d (%s) timed out, auto-playing %s",
		r.ID, seat, r.names[seat], action.Move)

	outcome, err := r.engine.Apply(seat, action)
	if err != nil {
		r.log.Errorf("Room %s: fallback move rejected: %v", r.ID, err)
		return
	}
	r.postApplyLocked(outcome, false, "")
}

// handleDisconnect treats a mid-game disconnect as a loss for the leaving
// seat. Finished rooms ignore it.
func (r *Room) handleDisconnect(sess *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	seat := r.seatOf(sess)
	if seat < 0 || !r.lifecycle.In(statePlaying) {
		return
	}

	winner := 1 - seat
	r.log.Infof("Room %s: %s disconnected, %s wins", r.ID, r.names[seat], r.names[winner])
	r.finishLocked(winner, false, "Opponent disconnected", disconnectGrace)
}

// finishLocked runs the terminal transition exactly once: cancel the timer,
// broadcast game_over, hand the room to settlement and schedule teardown.
func (r *Room) finishLocked(winner int, resigned bool, reason string, grace time.Duration) {
	if r.settled {
		return
	}
	r.settled = true

	r.lifecycle.Dispatch(stateFinished)

	result := computeSettlement(r.Stake)
	over := GameOverPayload{
		IsDraw:   winner < 0,
		Resigned: resigned,
		Reason:   reason,
	}
	if winner >= 0 {
		over.Winner = r.names[winner]
		over.WinnerWallet = r.accounts[winner]
		over.Payout = utils.AtomsToCoins(result.Payout)
	} else {
		over.Payout = utils.AtomsToCoins(r.Stake)
	}
	for _, sess := range r.sessions {
		sess.sendEvent(EventGameOver, over)
	}

	r.srv.settleRoom(r, winner, result)

	time.AfterFunc(grace, func() {
		r.srv.removeRoom(r.ID)
	})
}

// snapshot returns the lobby projection of the room.
func (r *Room) snapshot() LobbyGame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return LobbyGame{
		GameType:  string(r.Game),
		BetAmount: utils.AtomsToCoins(r.Stake),
		Players:   []string{r.names[0], r.names[1]},
	}
}

// Deadline returns the current turn deadline, zero when no timer is armed.
func (r *Room) Deadline() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer == nil {
		return time.Time{}
	}
	return r.deadline
}

// unbindSessions clears the room binding on both seats.
func (r *Room) unbindSessions() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sess := range r.sessions {
		sess.clearRoom(r.ID)
	}
}

func (r *Room) String() string {
	return fmt.Sprintf("%s(%s)", r.ID, r.Game)
}
