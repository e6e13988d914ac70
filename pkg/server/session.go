package server

import (
	"sync"
	"time"

	"github.com/decred/slog"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Outbound queue per session; a client this far behind is dropped.
	sendBuffer = 64
)

// Session owns per-connection state: the websocket, the registered identity
// and the current room binding. The read loop lives in the server; the write
// side is a single pump goroutine fed by the send channel so concurrent
// broadcasts never interleave writes on the socket.
type Session struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	log  slog.Logger

	mu          sync.Mutex
	closed      bool
	account     string
	displayName string
	roomID      string
}

func newSession(id string, conn *websocket.Conn, log slog.Logger) *Session {
	return &Session{
		id:   id,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		log:  log,
	}
}

// ID returns the connection-scoped session id.
func (sess *Session) ID() string {
	return sess.id
}

// Registered reports whether an identity is bound.
func (sess *Session) Registered() bool {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.account != ""
}

// Identity returns the bound account and display name.
func (sess *Session) Identity() (account, displayName string) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.account, sess.displayName
}

func (sess *Session) setIdentity(account, displayName string) {
	sess.mu.Lock()
	sess.account = account
	sess.displayName = displayName
	sess.mu.Unlock()
}

// RoomID returns the bound room id, or "" when not in a room.
func (sess *Session) RoomID() string {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.roomID
}

// bindRoom binds the session to a room. A session is in at most one room;
// callers only bind sessions they just removed from the matchmaker queue.
func (sess *Session) bindRoom(roomID string) {
	sess.mu.Lock()
	sess.roomID = roomID
	sess.mu.Unlock()
}

func (sess *Session) clearRoom(roomID string) {
	sess.mu.Lock()
	if sess.roomID == roomID {
		sess.roomID = ""
	}
	sess.mu.Unlock()
}

// sendEvent queues an event for delivery. Best-effort: if the session's send
// buffer is full the message is dropped and logged, never blocking the
// caller (a room broadcast must not stall on a slow client).
func (sess *Session) sendEvent(t EventType, payload any) {
	msg, err := encodeEvent(t, payload)
	if err != nil {
		sess.log.Errorf("Failed to encode %s for session %s: %v", t, sess.id, err)
		return
	}
	// The closed check and the channel send sit under the same mutex as
	// close(), so a late broadcast racing a disconnect cannot send on the
	// closed channel.
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return
	}
	select {
	case sess.send <- msg:
	default:
		sess.log.Warnf("Send buffer full for session %s, dropping %s", sess.id, t)
	}
}

// sendError relays a failure to this client only.
func (sess *Session) sendError(msg string) {
	sess.sendEvent(EventErrorMsg, ErrorPayload{Msg: msg})
}

// writePump drains the send channel onto the socket and keeps the connection
// alive with pings. It exits when the send channel closes or a write fails.
func (sess *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		sess.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-sess.send:
			sess.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				sess.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := sess.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			sess.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sess.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// close shuts the send channel down exactly once, which terminates the write
// pump and closes the socket.
func (sess *Session) close() {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return
	}
	sess.closed = true
	close(sess.send)
}
