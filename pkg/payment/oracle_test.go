package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/decred/dcrd/dcrutil/v4"
	"github.com/decred/slog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLedger serves escrow.lookup and escrow.transfer over JSON-RPC, backed
// by a static proof table.
type fakeLedger struct {
	proofs    map[string]verifyResult
	transfers int
}

func (l *fakeLedger) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		params := req.Params.(map[string]any)
		resp := rpcResponse{}
		switch req.Method {
		case "escrow.lookup":
			res, ok := l.proofs[params["proof"].(string)]
			if !ok {
				resp.Error = &rpcError{Code: -32000, Message: "no such proof"}
				break
			}
			raw, _ := json.Marshal(res)
			resp.Result = raw
		case "escrow.transfer":
			l.transfers++
			raw, _ := json.Marshal(transferResult{Ref: "xfer-1"})
			resp.Result = raw
		default:
			resp.Error = &rpcError{Code: -32601, Message: "method not found"}
		}
		json.NewEncoder(w).Encode(resp)
	}
}

func newTestOracle(t *testing.T, ledger *fakeLedger) (*ChainOracle, *MemoryProofStore) {
	t.Helper()
	srv := httptest.NewServer(ledger.handler())
	t.Cleanup(srv.Close)
	proofs := NewMemoryProofStore()
	oracle, err := NewChainOracle(ChainOracleConfig{
		RPCEndpoint:   srv.URL,
		EscrowAddress: "escrow-main",
		Proofs:        proofs,
		Log:           slog.Disabled,
	})
	require.NoError(t, err)
	return oracle, proofs
}

func TestVerifyInboundHappyPath(t *testing.T) {
	oracle, _ := newTestOracle(t, &fakeLedger{proofs: map[string]verifyResult{
		"proof-a": {Confirmed: true, Recipient: "escrow-main", Amount: 100_000_000},
	}})

	got, err := oracle.VerifyInbound(context.Background(), "proof-a", dcrutil.Amount(100_000_000))
	require.NoError(t, err)
	assert.Equal(t, dcrutil.Amount(100_000_000), got)
}

func TestVerifyInboundReplayRejected(t *testing.T) {
	oracle, _ := newTestOracle(t, &fakeLedger{proofs: map[string]verifyResult{
		"proof-a": {Confirmed: true, Recipient: "escrow-main", Amount: 100_000_000},
	}})

	_, err := oracle.VerifyInbound(context.Background(), "proof-a", dcrutil.Amount(100_000_000))
	require.NoError(t, err)

	_, err = oracle.VerifyInbound(context.Background(), "proof-a", dcrutil.Amount(100_000_000))
	assert.ErrorIs(t, err, ErrProofReplay)
}

func TestVerifyInboundFailures(t *testing.T) {
	oracle, proofs := newTestOracle(t, &fakeLedger{proofs: map[string]verifyResult{
		"unconfirmed": {Confirmed: false, Recipient: "escrow-main", Amount: 100_000_000},
		"elsewhere":   {Confirmed: true, Recipient: "someone-else", Amount: 100_000_000},
		"short":       {Confirmed: true, Recipient: "escrow-main", Amount: 50_000_000},
	}})

	_, err := oracle.VerifyInbound(context.Background(), "missing", dcrutil.Amount(100_000_000))
	assert.ErrorIs(t, err, ErrProofNotFound)

	_, err = oracle.VerifyInbound(context.Background(), "unconfirmed", dcrutil.Amount(100_000_000))
	assert.ErrorIs(t, err, ErrProofUnconfirmed)

	_, err = oracle.VerifyInbound(context.Background(), "elsewhere", dcrutil.Amount(100_000_000))
	assert.ErrorIs(t, err, ErrProofWrongRecipient)

	_, err = oracle.VerifyInbound(context.Background(), "short", dcrutil.Amount(100_000_000))
	assert.ErrorIs(t, err, ErrProofInsufficient)

	// Failed proofs are not consumed; they may be retried later.
	first, err := proofs.MarkProofUsed("short")
	require.NoError(t, err)
	assert.True(t, first)
}

func TestVerifyInboundFeeSlack(t *testing.T) {
	// 1% under the expected amount still verifies (fee slack); more does not.
	oracle, _ := newTestOracle(t, &fakeLedger{proofs: map[string]verifyResult{
		"fees": {Confirmed: true, Recipient: "escrow-main", Amount: 99_000_000},
	}})

	got, err := oracle.VerifyInbound(context.Background(), "fees", dcrutil.Amount(100_000_000))
	require.NoError(t, err)
	assert.Equal(t, dcrutil.Amount(99_000_000), got)
}

func TestSendOutbound(t *testing.T) {
	ledger := &fakeLedger{}
	oracle, _ := newTestOracle(t, ledger)

	ref, err := oracle.SendOutbound(context.Background(), "winner-addr", dcrutil.Amount(190_000_000))
	require.NoError(t, err)
	assert.Equal(t, "xfer-1", ref)
	assert.Equal(t, 1, ledger.transfers)
}

func TestMemoryProofStore(t *testing.T) {
	s := NewMemoryProofStore()

	first, err := s.MarkProofUsed("p1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := s.MarkProofUsed("p1")
	require.NoError(t, err)
	assert.False(t, again)

	other, err := s.MarkProofUsed("p2")
	require.NoError(t, err)
	assert.True(t, other)
}
