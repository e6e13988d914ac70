package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/decred/dcrd/dcrutil/v4"
	"github.com/decred/slog"
)

// ChainOracleConfig configures a ChainOracle.
type ChainOracleConfig struct {
	// RPCEndpoint is the JSON-RPC URL of the external payment service.
	RPCEndpoint string

	// EscrowSecret authorises outbound transfers from the escrow account.
	// Base64, decoded at construction.
	EscrowSecret string

	// EscrowAddress is the account inbound proofs must credit.
	EscrowAddress string

	// Proofs is the used-proof set; required.
	Proofs ProofStore

	// Timeout caps each RPC round trip. Defaults to 10s.
	Timeout time.Duration

	Log slog.Logger
}

// ChainOracle implements Oracle against an external JSON-RPC payment
// service. It is safe for concurrent use.
type ChainOracle struct {
	endpoint string
	secret   []byte
	escrow   string
	proofs   ProofStore
	client   *http.Client
	log      slog.Logger
	reqID    atomic.Uint64
}

// NewChainOracle creates the oracle, decoding the escrow secret.
func NewChainOracle(cfg ChainOracleConfig) (*ChainOracle, error) {
	if cfg.RPCEndpoint == "" {
		return nil, fmt.Errorf("payment: rpc endpoint is required")
	}
	if cfg.Proofs == nil {
		return nil, fmt.Errorf("payment: proof store is required")
	}
	secret, err := base64.StdEncoding.DecodeString(cfg.EscrowSecret)
	if err != nil {
		return nil, fmt.Errorf("payment: invalid escrow secret: %w", err)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &ChainOracle{
		endpoint: cfg.RPCEndpoint,
		secret:   secret,
		escrow:   cfg.EscrowAddress,
		proofs:   cfg.Proofs,
		client:   &http.Client{Timeout: timeout},
		log:      cfg.Log,
	}, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (o *ChainOracle) call(ctx context.Context, method string, params, result any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      o.reqID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("payment rpc %s: %w", method, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("payment rpc %s: http status %d", method, resp.StatusCode)
	}
	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("payment rpc %s: %w", method, err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("payment rpc %s: %s (code %d)", method, rpcResp.Error.Message, rpcResp.Error.Code)
	}
	if result != nil {
		return json.Unmarshal(rpcResp.Result, result)
	}
	return nil
}

type verifyResult struct {
	Confirmed bool   `json:"confirmed"`
	Recipient string `json:"recipient"`
	Amount    int64  `json:"amount"` // atoms credited
}

// VerifyInbound implements Oracle. The proof is marked used only after every
// other check passes, so a proof failing verification can be retried.
func (o *ChainOracle) VerifyInbound(ctx context.Context, proofRef string, expected dcrutil.Amount) (dcrutil.Amount, error) {
	var res verifyResult
	err := o.call(ctx, "escrow.lookup", map[string]any{
		"proof":  proofRef,
		"escrow": o.escrow,
	}, &res)
	if err != nil {
		o.log.Warnf("proof %s lookup failed: %v", proofRef, err)
		return 0, ErrProofNotFound
	}
	if !res.Confirmed {
		return 0, ErrProofUnconfirmed
	}
	if res.Recipient != o.escrow {
		return 0, ErrProofWrongRecipient
	}
	// Allow 1% slack for transfer fees taken out of the credited amount.
	received := dcrutil.Amount(res.Amount)
	if received < expected-expected/100 {
		o.log.Warnf("proof %s credits %v, expected %v", proofRef, received, expected)
		return 0, ErrProofInsufficient
	}

	first, err := o.proofs.MarkProofUsed(proofRef)
	if err != nil {
		return 0, fmt.Errorf("proof store: %w", err)
	}
	if !first {
		return 0, ErrProofReplay
	}
	o.log.Debugf("verified proof %s for %v", proofRef, received)
	return received, nil
}

type transferResult struct {
	Ref string `json:"ref"`
}

// SendOutbound implements Oracle.
func (o *ChainOracle) SendOutbound(ctx context.Context, destination string, amount dcrutil.Amount) (string, error) {
	var res transferResult
	err := o.call(ctx, "escrow.transfer", map[string]any{
		"secret":      base64.StdEncoding.EncodeToString(o.secret),
		"destination": destination,
		"amount":      int64(amount),
	}, &res)
	if err != nil {
		return "", err
	}
	o.log.Infof("sent %v to %s (ref %s)", amount, destination, res.Ref)
	return res.Ref, nil
}
