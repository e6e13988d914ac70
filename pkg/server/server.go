package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/decred/slog"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/stakematch/stakematch/pkg/logging"
	"github.com/stakematch/stakematch/pkg/payment"
	"github.com/stakematch/stakematch/pkg/utils"
)

// Config holds the server's runtime configuration.
type Config struct {
	// EscrowAddress is the account players pay their stakes into.
	EscrowAddress string

	// HouseAddress receives the house cut on decisive results.
	HouseAddress string

	// TestMode bypasses payment verification and transfers. Engines and
	// the turn scheduler remain authoritative.
	TestMode bool

	// ValidateAccount checks an account identifier at register time. Nil
	// falls back to a basic shape check; live deployments plug in their
	// payment network's address validation.
	ValidateAccount func(account string) error
}

// Server wires the session table, matchmaker, room registry, payment oracle
// and database together behind the websocket event channel and the REST
// surface.
type Server struct {
	cfg        Config
	log        slog.Logger
	logBackend *logging.LogBackend
	db         Database
	oracle     payment.Oracle
	matchmaker *Matchmaker

	mu       sync.RWMutex
	sessions map[string]*Session // by session id
	rooms    map[string]*Room

	upgrader websocket.Upgrader
}

// NewServer creates a match server.
func NewServer(cfg Config, db Database, oracle payment.Oracle, logBackend *logging.LogBackend) *Server {
	return &Server{
		cfg:        cfg,
		log:        logBackend.Logger("SRVR"),
		logBackend: logBackend,
		db:         db,
		oracle:     oracle,
		matchmaker: NewMatchmaker(),
		sessions:   make(map[string]*Session),
		rooms:      make(map[string]*Room),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The event channel carries no browser credentials; origin
			// enforcement belongs to the deployment proxy.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Router builds the HTTP surface: the REST endpoints and the websocket
// upgrade.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/api/escrow", s.handleEscrowAddress)
	r.Get("/ws", s.handleWebsocket)
	return r
}

// handleEscrowAddress serves GET /api/escrow.
func (s *Server) handleEscrowAddress(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"escrowAddress": s.cfg.EscrowAddress,
	})
}

// handleWebsocket upgrades the connection and runs the session's read loop
// until the client goes away.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnf("Websocket upgrade failed: %v", err)
		return
	}

	sess := newSession(newID("sess"), conn, s.logBackend.Logger("SESS"))
	s.addSession(sess)
	go sess.writePump()

	s.log.Debugf("Session %s connected from %s", sess.ID(), r.RemoteAddr)
	s.readLoop(sess)
}

// readLoop decodes inbound envelopes and dispatches them. It owns the
// connection's read side; returning tears the session down.
func (s *Server) readLoop(sess *Session) {
	defer s.handleDisconnect(sess)

	sess.conn.SetReadLimit(32 * 1024)
	sess.conn.SetReadDeadline(time.Now().Add(pongWait))
	sess.conn.SetPongHandler(func(string) error {
		sess.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debugf("Session %s read error: %v", sess.ID(), err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(msg, &env); err != nil {
			sess.sendError("malformed event")
			continue
		}
		s.dispatchEvent(sess, env)
	}
}

// handleDisconnect cleans up after a closed connection: drop any queued bet
// (with refund), forfeit any live game, and remove the session.
func (s *Server) handleDisconnect(sess *Session) {
	if entry, err := s.matchmaker.Cancel(sess); err == nil {
		if !s.cfg.TestMode && entry.Proof != "" {
			s.refundQueueEntry(entry)
		}
		s.log.Debugf("Session %s disconnected while queued, bet %s removed", sess.ID(), entry.ID)
	}

	if roomID := sess.RoomID(); roomID != "" {
		if room := s.getRoom(roomID); room != nil {
			room.handleDisconnect(sess)
		}
	}

	s.removeSession(sess)
	sess.close()
	s.broadcastLobby()
	s.log.Debugf("Session %s disconnected", sess.ID())
}

func (s *Server) addSession(sess *Session) {
	s.mu.Lock()
	s.sessions[sess.ID()] = sess
	s.mu.Unlock()
}

func (s *Server) removeSession(sess *Session) {
	s.mu.Lock()
	delete(s.sessions, sess.ID())
	s.mu.Unlock()
}

// sessionByAccount finds a connected session registered to the account, or
// nil.
func (s *Server) sessionByAccount(account string) *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sess := range s.sessions {
		if acct, _ := sess.Identity(); acct == account {
			return sess
		}
	}
	return nil
}

func (s *Server) getRoom(id string) *Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rooms[id]
}

// createRoom promotes a matched pair into a playing room. The seeker takes
// seat 0 and the accepter seat 1.
func (s *Server) createRoom(key QueueKey, seeker *QueueEntry, accepter *Session) (*Room, error) {
	room, err := newRoom(s, RoomConfig{
		ID:       newID("room"),
		Game:     key.Game,
		Stake:    key.Stake,
		GridSize: key.GridSize,
		Sessions: [2]*Session{seeker.Session, accepter},
		Log:      s.logBackend.Logger("ROOM"),
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.rooms[room.ID] = room
	s.mu.Unlock()

	room.start()
	s.broadcastLobby()
	return room, nil
}

// removeRoom drops a finished room from the registry after its teardown
// grace.
func (s *Server) removeRoom(id string) {
	s.mu.Lock()
	room, ok := s.rooms[id]
	delete(s.rooms, id)
	s.mu.Unlock()

	if !ok {
		return
	}
	room.unbindSessions()
	s.broadcastLobby()
	s.log.Debugf("Room %s torn down", id)
}

// buildLobby snapshots the open bets and live rooms.
func (s *Server) buildLobby() LobbyPayload {
	lobby := LobbyPayload{
		Waiting:     []LobbyBet{},
		ActiveGames: []LobbyGame{},
	}

	for _, entry := range s.matchmaker.List() {
		account, name := entry.Session.Identity()
		lobby.Waiting = append(lobby.Waiting, LobbyBet{
			ID:        entry.ID,
			GameType:  string(entry.Key.Game),
			BetAmount: utils.AtomsToCoins(entry.Key.Stake),
			Username:  name,
			Wallet:    account,
			GridSize:  entry.Key.GridSize,
		})
	}

	s.mu.RLock()
	for _, room := range s.rooms {
		lobby.ActiveGames = append(lobby.ActiveGames, room.snapshot())
	}
	lobby.OnlineCount = len(s.sessions)
	s.mu.RUnlock()

	return lobby
}

// broadcastLobby pushes the current lobby to every connected session.
func (s *Server) broadcastLobby() {
	lobby := s.buildLobby()

	s.mu.RLock()
	for _, sess := range s.sessions {
		sess.sendEvent(EventLobbyUpdate, lobby)
	}
	s.mu.RUnlock()
}

// Shutdown closes every session and the database.
func (s *Server) Shutdown(_ context.Context) error {
	s.mu.Lock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.close()
	}
	return s.db.Close()
}

// newID returns a short random identifier with the given prefix.
func newID(prefix string) string {
	var b [6]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(fmt.Sprintf("crypto/rand: %v", err))
	}
	return prefix + "-" + hex.EncodeToString(b[:])
}
