package server

import (
	"context"
	"time"

	"github.com/decred/dcrd/dcrutil/v4"
	"github.com/stakematch/stakematch/pkg/utils"
)

// houseCutPercent of the pot goes to the house account on a decisive result.
const houseCutPercent = 10

// oracleTimeout bounds each outbound transfer; a timeout is a logged failure,
// never a reversal of the room's terminal state.
const oracleTimeout = 10 * time.Second

// SettlementResult is the payout arithmetic for one room.
type SettlementResult struct {
	Pot      int64
	HouseCut int64
	Payout   int64
}

// computeSettlement derives the pot split from the per-player stake.
func computeSettlement(stake int64) SettlementResult {
	pot := 2 * stake
	houseCut := pot * houseCutPercent / 100
	return SettlementResult{
		Pot:      pot,
		HouseCut: houseCut,
		Payout:   pot - houseCut,
	}
}

// settleRoom executes the transfers for a finished room. Callers gate it with
// the room's settled flag so it runs at most once per room. Transfers are
// best-effort: failures are journalled and logged, and the room stays
// finished either way.
func (s *Server) settleRoom(r *Room, winner int, result SettlementResult) {
	go func() {
		if winner >= 0 {
			s.transfer(r.ID, r.accounts[winner], result.Payout, "payout",
				"match winnings")
			s.transfer(r.ID, s.cfg.HouseAddress, result.HouseCut, "house-cut", "")
			return
		}
		// Draw: each seat gets its stake back.
		for seat := range r.accounts {
			s.transfer(r.ID, r.accounts[seat], r.Stake, "refund", "draw refund")
		}
	}()
}

// refundQueueEntry returns a cancelled or abandoned seeker's stake. Runs on
// cancel_search and on disconnect while queued.
func (s *Server) refundQueueEntry(entry *QueueEntry) {
	account, _ := entry.Session.Identity()
	go s.transfer("", account, entry.Key.Stake, "refund", "search cancelled")
}

// transfer asks the oracle for one outbound transfer, journals the attempt
// and notifies the recipient if connected. notice is empty for transfers
// that should not emit a balance_update (the house account).
func (s *Server) transfer(roomID, account string, amount int64, kind, notice string) {
	ctx, cancel := context.WithTimeout(context.Background(), oracleTimeout)
	defer cancel()

	ref, err := s.oracle.SendOutbound(ctx, account, dcrutil.Amount(amount))
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
		s.log.Errorf("Settlement transfer of %s to %s failed (room %s): %v",
			utils.FormatAmount(amount), account, roomID, err)
	} else {
		s.log.Infof("Settled %s of %s to %s (ref %s)",
			kind, utils.FormatAmount(amount), account, ref)
	}

	if dbErr := s.db.RecordSettlement(roomID, account, amount, kind, ref, errMsg); dbErr != nil {
		s.log.Errorf("Failed to journal settlement for room %s: %v", roomID, dbErr)
	}
	if err == nil {
		if dbErr := s.db.RecordTransaction(account, amount, kind, notice); dbErr != nil {
			s.log.Errorf("Failed to record transaction for %s: %v", account, dbErr)
		}
	}

	if err == nil && notice != "" {
		if sess := s.sessionByAccount(account); sess != nil {
			sess.sendEvent(EventBalanceUpdate, BalanceUpdatePayload{
				Amount: utils.AtomsToCoins(amount),
				Ref:    ref,
				Reason: notice,
			})
		}
	}
}
