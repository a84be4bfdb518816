/*
payment.go - Payment history (snapshot)

PURPOSE:
  Stores what every player owed for one session at the moment of saving.
  Unlike the ranking ledger, each save REPLACES the record for the session,
  so repeated saves of the same calculation leave an identical record.

WRITES:
  1. PaymentHistoryRecord keyed by session id (overwrite)
  2. session FeeConfig (the values actually used) + PaymentHistorySaved=true
*/
package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentHistoryRecord struct {
	SessionID    SessionID         `json:"session_id"`
	MatchDate    time.Time         `json:"match_date"`
	Topic        string            `json:"topic"`
	TotalOverall decimal.Decimal   `json:"total_overall"`
	MembersData  []PlayerMatchStat `json:"members_data"`
	FeeConfig    SessionFeeConfig  `json:"fee_config"`
	SavedAt      time.Time         `json:"saved_at"`
}

// BuildPaymentRecord snapshots a calculation for a session.
func BuildPaymentRecord(session Session, result CalculationResult) PaymentHistoryRecord {
	return PaymentHistoryRecord{
		SessionID:    session.ID,
		MatchDate:    session.Date,
		Topic:        session.Topic,
		TotalOverall: result.TotalOverall(),
		MembersData:  result.Players(),
		FeeConfig:    result.FeeConfig.Clone(),
	}
}

// SavePaymentHistory overwrites the session's payment record and persists the
// fee configuration used, so a later read reproduces the same totals.
func (s *Service) SavePaymentHistory(ctx context.Context, op OperatorID, id SessionID, result CalculationResult) (PaymentHistoryRecord, error) {
	if !result.Calculated {
		return PaymentHistoryRecord{}, &ValidationError{Field: "result", Reason: "calculate before saving payment history", Err: ErrNotCalculated}
	}

	session, err := s.Store.GetSession(ctx, op, id)
	if err != nil {
		s.fail("Payment history not saved", err)
		return PaymentHistoryRecord{}, persistErr("load session", err)
	}

	rec := BuildPaymentRecord(*session, result)
	rec.SavedAt = s.now()
	if err := s.Store.PutPaymentHistory(ctx, op, rec); err != nil {
		s.fail("Payment history not saved", err)
		return PaymentHistoryRecord{}, persistErr("put payment history", err)
	}

	saved := true
	fees := result.FeeConfig.Clone()
	if err := s.Store.MergeSession(ctx, op, id, SessionPatch{FeeConfig: &fees, PaymentHistorySaved: &saved}); err != nil {
		s.fail("Payment history saved but session not updated", err)
		return PaymentHistoryRecord{}, persistErr("mark payment history saved", err)
	}

	s.notify("Payment history saved", fmt.Sprintf("%d players, total %s", len(rec.MembersData), rec.TotalOverall), SeveritySuccess)
	return rec, nil
}
