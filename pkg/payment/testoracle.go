package payment

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/decred/dcrd/dcrutil/v4"
	"github.com/decred/slog"
)

// TestOracle is the test-mode oracle: every proof verifies for exactly the
// expected amount and outbound transfers succeed with fabricated refs. Game
// rules and the turn scheduler stay authoritative; only money movement is
// bypassed.
type TestOracle struct {
	log slog.Logger
	seq atomic.Uint64
}

// NewTestOracle creates a test-mode oracle.
func NewTestOracle(log slog.Logger) *TestOracle {
	return &TestOracle{log: log}
}

// VerifyInbound implements Oracle; it accepts any proof.
func (o *TestOracle) VerifyInbound(_ context.Context, proofRef string, expected dcrutil.Amount) (dcrutil.Amount, error) {
	o.log.Debugf("test mode: accepting proof %q for %v", proofRef, expected)
	return expected, nil
}

// SendOutbound implements Oracle; no transfer happens.
func (o *TestOracle) SendOutbound(_ context.Context, destination string, amount dcrutil.Amount) (string, error) {
	ref := fmt.Sprintf("test-transfer-%d", o.seq.Add(1))
	o.log.Infof("test mode: pretend transfer of %v to %s (ref %s)", amount, destination, ref)
	return ref, nil
}
