// Package payment defines the contract between the match server and the
// external payment oracle: verifying inbound escrow payments by proof
// reference, and executing outbound transfers for settlement.
package payment

import (
	"context"
	"errors"
	"sync"

	"github.com/decred/dcrd/dcrutil/v4"
)

// Verification failures. The server relays these kinds to the client that
// supplied the proof.
var (
	ErrProofReplay         = errors.New("payment proof already used")
	ErrProofNotFound       = errors.New("payment proof not found")
	ErrProofUnconfirmed    = errors.New("payment proof not confirmed")
	ErrProofInsufficient   = errors.New("payment amount insufficient")
	ErrProofWrongRecipient = errors.New("payment did not credit the escrow account")
)

// Oracle verifies inbound payments and executes outbound transfers. Both
// operations may block on the network; callers bound them with the context.
type Oracle interface {
	// VerifyInbound resolves proofRef against the external ledger and
	// checks that it credits the escrow account with at least 99% of the
	// expected amount. A proof verifies successfully at most once for the
	// lifetime of the backing proof store; replays fail with
	// ErrProofReplay. The received amount is returned on success.
	VerifyInbound(ctx context.Context, proofRef string, expected dcrutil.Amount) (dcrutil.Amount, error)

	// SendOutbound transfers amount to the destination account and returns
	// the external transfer reference. No idempotency is promised; the
	// server only calls this from settlement paths that run once.
	SendOutbound(ctx context.Context, destination string, amount dcrutil.Amount) (string, error)
}

// ProofStore is the append-only used-proof set backing replay protection.
type ProofStore interface {
	// MarkProofUsed records proofRef and reports whether this call was the
	// first to do so.
	MarkProofUsed(proofRef string) (bool, error)
}

// MemoryProofStore is a ProofStore for tests and test mode.
type MemoryProofStore struct {
	mu   sync.Mutex
	used map[string]bool
}

// NewMemoryProofStore creates an empty in-memory proof store.
func NewMemoryProofStore() *MemoryProofStore {
	return &MemoryProofStore{used: make(map[string]bool)}
}

// MarkProofUsed implements ProofStore.
func (s *MemoryProofStore) MarkProofUsed(proofRef string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.used[proofRef] {
		return false, nil
	}
	s.used[proofRef] = true
	return true, nil
}
