package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/decred/dcrd/dcrutil/v4"
	"github.com/decred/slog"
	"github.com/stretchr/testify/require"

	"github.com/stakematch/stakematch/pkg/logging"
	"github.com/stakematch/stakematch/pkg/payment"
)

// fakeDB is an in-memory Database recording settlement and transaction rows.
type fakeDB struct {
	mu           sync.Mutex
	proofs       map[string]bool
	settlements  []settlementRow
	transactions []string
}

type settlementRow struct {
	roomID  string
	account string
	amount  int64
	kind    string
	ref     string
	errMsg  string
}

func newFakeDB() *fakeDB {
	return &fakeDB{proofs: make(map[string]bool)}
}

func (f *fakeDB) MarkProofUsed(proofRef string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.proofs[proofRef] {
		return false, nil
	}
	f.proofs[proofRef] = true
	return true, nil
}

func (f *fakeDB) RecordSettlement(roomID, account string, amount int64, kind, ref, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settlements = append(f.settlements, settlementRow{roomID, account, amount, kind, ref, errMsg})
	return nil
}

func (f *fakeDB) RecordTransaction(account string, amount int64, transactionType, description string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transactions = append(f.transactions, fmt.Sprintf("%s:%s:%d", account, transactionType, amount))
	return nil
}

func (f *fakeDB) Close() error { return nil }

// settlementRows returns a copy of the journalled rows.
func (f *fakeDB) settlementRows() []settlementRow {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]settlementRow(nil), f.settlements...)
}

// stubOracle is a deterministic live-mode oracle: every proof verifies once
// for the expected amount except badProof, and all verify calls are recorded.
type stubOracle struct {
	badProof string

	mu       sync.Mutex
	used     map[string]bool
	verified []string
}

func newStubOracle(badProof string) *stubOracle {
	return &stubOracle{badProof: badProof, used: make(map[string]bool)}
}

func (o *stubOracle) VerifyInbound(_ context.Context, proofRef string, expected dcrutil.Amount) (dcrutil.Amount, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.verified = append(o.verified, proofRef)
	if proofRef == o.badProof {
		return 0, payment.ErrProofNotFound
	}
	if o.used[proofRef] {
		return 0, payment.ErrProofReplay
	}
	o.used[proofRef] = true
	return expected, nil
}

func (o *stubOracle) SendOutbound(_ context.Context, _ string, _ dcrutil.Amount) (string, error) {
	return "stub-ref", nil
}

func (o *stubOracle) verifiedProofs() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.verified...)
}

// newTestServerWith builds a server around the given config and oracle.
func newTestServerWith(t *testing.T, cfg Config, oracle payment.Oracle) (*Server, *fakeDB) {
	t.Helper()
	logBackend, err := logging.NewLogBackend(logging.LogConfig{DebugLevel: "critical"})
	require.NoError(t, err)

	db := newFakeDB()
	return NewServer(cfg, db, oracle, logBackend), db
}

// newTestServer builds a server in test mode with an in-memory db.
func newTestServer(t *testing.T) (*Server, *fakeDB) {
	t.Helper()
	return newTestServerWith(t, Config{
		EscrowAddress: "escrow-test",
		HouseAddress:  "house-test",
		TestMode:      true,
	}, payment.NewTestOracle(slog.Disabled))
}

// newTestSession builds a session with no live socket; sendEvent only ever
// touches the send channel, so tests read broadcasts straight from it.
func newTestSession(id, account, name string) *Session {
	sess := newSession(id, nil, slog.Disabled)
	if account != "" {
		sess.setIdentity(account, name)
	}
	return sess
}

// nextEvent waits for the next event of the wanted type on the session's
// send channel, skipping everything else (lobby updates in particular).
func nextEvent(t *testing.T, sess *Session, want EventType) json.RawMessage {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-sess.send:
			var env Envelope
			require.NoError(t, json.Unmarshal(msg, &env))
			if env.Type == want {
				return env.Payload
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s on session %s", want, sess.ID())
		}
	}
}

// tryNextEvent is nextEvent without the wait: it reports whether an event of
// the wanted type is already queued.
func tryNextEvent(t *testing.T, sess *Session, want EventType) (json.RawMessage, bool) {
	t.Helper()
	for {
		select {
		case msg := <-sess.send:
			var env Envelope
			require.NoError(t, json.Unmarshal(msg, &env))
			if env.Type == want {
				return env.Payload, true
			}
		default:
			return nil, false
		}
	}
}

// drainEvents discards everything queued on the session.
func drainEvents(sess *Session) {
	for {
		select {
		case <-sess.send:
		default:
			return
		}
	}
}

func decodeInto(t *testing.T, raw json.RawMessage, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, v))
}
