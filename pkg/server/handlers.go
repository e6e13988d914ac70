package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrutil/v4"
	"github.com/stakematch/stakematch/pkg/games"
	"github.com/stakematch/stakematch/pkg/payment"
	"github.com/stakematch/stakematch/pkg/utils"
)

// dispatchEvent routes one inbound envelope. Every event except register
// requires a bound identity.
func (s *Server) dispatchEvent(sess *Session, env Envelope) {
	if env.Type != EventRegister && !sess.Registered() {
		sess.sendError("register-first")
		return
	}

	switch env.Type {
	case EventRegister:
		s.handleRegister(sess, env)
	case EventFindMatch:
		s.handleFindMatch(sess, env)
	case EventAcceptBet:
		s.handleAcceptBet(sess, env)
	case EventCancelSearch:
		s.handleCancelSearch(sess)
	case EventGameAction:
		s.handleGameAction(sess, env)
	case EventGetLobby:
		sess.sendEvent(EventLobbyUpdate, s.buildLobby())
	default:
		sess.sendError(fmt.Sprintf("unknown event %q", env.Type))
	}
}

// handleRegister binds an external account identity to the session.
func (s *Server) handleRegister(sess *Session, env Envelope) {
	var p RegisterPayload
	if err := decodePayload(env, &p); err != nil {
		sess.sendError(err.Error())
		return
	}

	account := strings.TrimSpace(p.Account)
	if err := s.validateAccount(account); err != nil {
		sess.sendError(err.Error())
		return
	}
	name := strings.TrimSpace(p.DisplayName)
	if name == "" {
		name = account
		if len(name) > 12 {
			name = name[:12]
		}
	}

	sess.setIdentity(account, name)
	sess.sendEvent(EventRegistered, RegisteredPayload{
		Account:       account,
		DisplayName:   name,
		EscrowAddress: s.cfg.EscrowAddress,
		TestMode:      s.cfg.TestMode,
	})
	s.log.Infof("Session %s registered as %s (%s)", sess.ID(), name, account)
	s.broadcastLobby()
}

// handleFindMatch verifies the stake payment and either matches immediately
// or queues an open bet.
func (s *Server) handleFindMatch(sess *Session, env Envelope) {
	var p FindMatchPayload
	if err := decodePayload(env, &p); err != nil {
		sess.sendError(err.Error())
		return
	}
	if sess.RoomID() != "" {
		sess.sendError(ErrAlreadyInARoom.Error())
		return
	}
	// Reject a duplicate search before touching the proof: verification
	// consumes the proof permanently, so it must not run for a request
	// that cannot queue.
	if s.matchmaker.IsQueued(sess) {
		sess.sendError(ErrAlreadyQueued.Error())
		return
	}

	key, err := parseQueueKey(p.GameType, p.BetAmount, p.GridSize)
	if err != nil {
		sess.sendError(err.Error())
		return
	}
	if err := s.verifyStake(p.Proof, key.Stake); err != nil {
		sess.sendError(err.Error())
		return
	}

	matched, err := s.matchmaker.Seek(sess, newID("bet"), key, p.Proof)
	if err != nil {
		// The proof was already consumed; return the stake so it is
		// not stranded behind replay protection.
		if !s.cfg.TestMode && p.Proof != "" {
			account, _ := sess.Identity()
			go s.transfer("", account, key.Stake, "refund", "search rejected")
		}
		sess.sendError(err.Error())
		return
	}
	if matched != nil {
		if _, err := s.createRoom(key, matched, sess); err != nil {
			s.log.Errorf("Failed to create room: %v", err)
			sess.sendError("failed to start game")
		}
		return
	}

	sess.sendEvent(EventWaiting, WaitingPayload{
		Msg:       fmt.Sprintf("Waiting for an opponent at %s...", utils.FormatAmount(key.Stake)),
		BetAmount: p.BetAmount,
		GameType:  string(key.Game),
	})
	s.broadcastLobby()
}

// handleAcceptBet verifies the stake payment and takes a specific open bet.
// Two sessions racing for the same bet: exactly one proceeds, the other gets
// bet-taken.
func (s *Server) handleAcceptBet(sess *Session, env Envelope) {
	var p AcceptBetPayload
	if err := decodePayload(env, &p); err != nil {
		sess.sendError(err.Error())
		return
	}
	if sess.RoomID() != "" {
		sess.sendError(ErrAlreadyInARoom.Error())
		return
	}

	entry, err := s.matchmaker.Accept(sess, p.BetID)
	if err != nil {
		sess.sendError(err.Error())
		return
	}

	if err := s.verifyStake(p.Proof, entry.Key.Stake); err != nil {
		// The open bet was already removed; reinsert it so the seeker
		// keeps their spot instead of losing it to a bad accept.
		if reqErr := s.matchmaker.Requeue(entry); reqErr != nil {
			s.log.Errorf("Failed to requeue bet %s: %v", entry.ID, reqErr)
		}
		s.broadcastLobby()
		sess.sendError(err.Error())
		return
	}

	if _, err := s.createRoom(entry.Key, entry, sess); err != nil {
		s.log.Errorf("Failed to create room: %v", err)
		sess.sendError("failed to start game")
	}
}

// handleCancelSearch removes the session's open bet and refunds its stake.
func (s *Server) handleCancelSearch(sess *Session) {
	entry, err := s.matchmaker.Cancel(sess)
	if err == nil {
		if !s.cfg.TestMode && entry.Proof != "" {
			s.refundQueueEntry(entry)
		}
		s.broadcastLobby()
	}
	sess.sendEvent(EventSearchCancelled, struct{}{})
}

// handleGameAction runs the room move pipeline; rejections go back to the
// acting client only.
func (s *Server) handleGameAction(sess *Session, env Envelope) {
	roomID := sess.RoomID()
	if roomID == "" {
		sess.sendError(ErrSessionNotBound.Error())
		return
	}
	room := s.getRoom(roomID)
	if room == nil {
		sess.sendError(ErrSessionNotBound.Error())
		return
	}

	if err := room.HandleAction(sess, env.Payload); err != nil {
		sess.sendError(err.Error())
	}
}

// validateAccount runs the configured account validator, falling back to a
// shape check when none is set.
func (s *Server) validateAccount(account string) error {
	if s.cfg.ValidateAccount != nil {
		return s.cfg.ValidateAccount(account)
	}
	if account == "" || len(account) > 128 {
		return errors.New("invalid account identifier")
	}
	return nil
}

// verifyStake checks the inbound payment proof for the stake amount. In test
// mode no proof is needed and nothing is verified.
func (s *Server) verifyStake(proof string, stake int64) error {
	if s.cfg.TestMode {
		return nil
	}
	if proof == "" {
		return errors.New("payment proof required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), oracleTimeout)
	defer cancel()

	_, err := s.oracle.VerifyInbound(ctx, proof, dcrutil.Amount(stake))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, payment.ErrProofReplay):
		return errors.New("proof-replay")
	case errors.Is(err, payment.ErrProofNotFound):
		return errors.New("proof-not-found")
	case errors.Is(err, payment.ErrProofUnconfirmed):
		return errors.New("proof-not-confirmed")
	case errors.Is(err, payment.ErrProofInsufficient):
		return errors.New("proof-insufficient")
	case errors.Is(err, payment.ErrProofWrongRecipient):
		return errors.New("proof-wrong-recipient")
	default:
		s.log.Errorf("Proof verification failed: %v", err)
		return errors.New("payment verification failed")
	}
}

// parseQueueKey validates the wire matchmaking parameters.
func parseQueueKey(gameType string, betAmount float64, gridSize int) (QueueKey, error) {
	game, err := games.ParseType(gameType)
	if err != nil {
		return QueueKey{}, err
	}

	stake, err := utils.ParseCoinAmount(betAmount)
	if err != nil {
		return QueueKey{}, err
	}

	// Grid variants only exist for tic-tac-toe.
	grid := 0
	if game == games.TicTacToe {
		grid = gridSize
		if grid == 0 {
			grid = 3
		}
		if grid != 3 && grid != 5 && grid != 7 {
			return QueueKey{}, fmt.Errorf("invalid grid size %d", grid)
		}
	}

	return QueueKey{Game: game, Stake: stake, GridSize: grid}, nil
}

func decodePayload(env Envelope, v any) error {
	if len(env.Payload) == 0 {
		return fmt.Errorf("missing %s payload", env.Type)
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return fmt.Errorf("malformed %s payload", env.Type)
	}
	return nil
}
