package server

import (
	"errors"
	"sort"
	"sync"

	"github.com/stakematch/stakematch/pkg/games"
)

// Matchmaking failures, relayed to the requester as error_msg.
var (
	ErrBetTaken        = errors.New("bet-taken")
	ErrAcceptOwnBet    = errors.New("cannot-accept-own-bet")
	ErrAlreadyQueued   = errors.New("already searching for a match")
	ErrAlreadyInARoom  = errors.New("already in a game")
	ErrEntryNotQueued  = errors.New("no open bet for this session")
	ErrSessionNotBound = errors.New("no-room")
)

// QueueKey groups open bets that can match each other.
type QueueKey struct {
	Game     games.Type
	Stake    int64 // atoms
	GridSize int   // 0 for games without grid variants
}

// QueueEntry is one open bet waiting in the matchmaker.
type QueueEntry struct {
	ID      string
	Key     QueueKey
	Session *Session
	Proof   string

	seq uint64 // insertion order, for the lobby display
}

// Matchmaker holds open bets keyed by (game, stake, variant) and promotes
// matching pairs. All operations run under a single mutex; a second operation
// observing a removed entry sees a miss, never a double match.
type Matchmaker struct {
	mu        sync.Mutex
	entries   map[string]*QueueEntry // by entry id
	bySession map[*Session]*QueueEntry
	seq       uint64
}

// NewMatchmaker creates an empty matchmaker.
func NewMatchmaker() *Matchmaker {
	return &Matchmaker{
		entries:   make(map[string]*QueueEntry),
		bySession: make(map[*Session]*QueueEntry),
	}
}

// Seek looks for an open bet with the same key from a different session. On a
// hit the entry is removed and returned as the match; otherwise the
// requester's bet is queued under the given id and matched is nil.
func (m *Matchmaker) Seek(sess *Session, id string, key QueueKey, proof string) (matched *QueueEntry, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.bySession[sess]; ok {
		return nil, ErrAlreadyQueued
	}

	for _, e := range m.entries {
		if e.Key == key && e.Session != sess {
			m.removeLocked(e)
			return e, nil
		}
	}

	m.seq++
	entry := &QueueEntry{ID: id, Key: key, Session: sess, Proof: proof, seq: m.seq}
	m.entries[id] = entry
	m.bySession[sess] = entry
	return nil, nil
}

// Accept removes the open bet with the given id and returns it. Two
// concurrent accepts of the same entry: exactly one succeeds, the other gets
// ErrBetTaken. Accepting one's own bet is refused without removing it.
func (m *Matchmaker) Accept(sess *Session, betID string) (*QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[betID]
	if !ok {
		return nil, ErrBetTaken
	}
	if entry.Session == sess {
		return nil, ErrAcceptOwnBet
	}
	m.removeLocked(entry)
	return entry, nil
}

// Requeue reinserts an entry that Accept removed but whose follow-up (stake
// verification) failed. Unlike Seek it never match-scans: a same-key entry
// queued during the accept window stays queued alongside, it is not consumed.
func (m *Matchmaker) Requeue(entry *QueueEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.bySession[entry.Session]; ok {
		return ErrAlreadyQueued
	}
	m.seq++
	entry.seq = m.seq
	m.entries[entry.ID] = entry
	m.bySession[entry.Session] = entry
	return nil
}

// IsQueued reports whether the session has an open bet.
func (m *Matchmaker) IsQueued(sess *Session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.bySession[sess]
	return ok
}

// Cancel removes the session's open bet if any, returning it (with its proof)
// so the caller can refund. Returns ErrEntryNotQueued when nothing is queued.
func (m *Matchmaker) Cancel(sess *Session) (*QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.bySession[sess]
	if !ok {
		return nil, ErrEntryNotQueued
	}
	m.removeLocked(entry)
	return entry, nil
}

// List returns the open bets in insertion order, for the lobby.
func (m *Matchmaker) List() []*QueueEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*QueueEntry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

func (m *Matchmaker) removeLocked(e *QueueEntry) {
	delete(m.entries, e.ID)
	delete(m.bySession, e.Session)
}
