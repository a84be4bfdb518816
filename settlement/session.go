package settlement

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// =============================================================================
// SESSION DOCUMENTS
// =============================================================================

// CreateSession stores a new session. An empty ID is replaced by a random one.
// Saved flags and paid status always start cleared.
func (s *Service) CreateSession(ctx context.Context, op OperatorID, session Session) (*Session, error) {
	if err := validateDraft(session); err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(session.ID)) == "" {
		session.ID = SessionID(uuid.NewString())
	}
	session.PaidStatus = map[string]bool{}
	session.RankingSaved = false
	session.PaymentHistorySaved = false

	if err := s.Store.SaveSession(ctx, op, session); err != nil {
		return nil, persistErr("save session", err)
	}
	return s.GetSession(ctx, op, session.ID)
}

// GetSession loads one session.
func (s *Service) GetSession(ctx context.Context, op OperatorID, id SessionID) (*Session, error) {
	session, err := s.Store.GetSession(ctx, op, id)
	if err != nil {
		return nil, persistErr("load session", err)
	}
	return session, nil
}

// UpdateSession replaces the date, topic, games and fee configuration of an
// existing session. Paid status and the saved flags are kept as stored.
func (s *Service) UpdateSession(ctx context.Context, op OperatorID, id SessionID, edit Session) (*Session, error) {
	if err := validateDraft(edit); err != nil {
		return nil, err
	}
	current, err := s.Store.GetSession(ctx, op, id)
	if err != nil {
		return nil, persistErr("load session", err)
	}

	next := current.Clone()
	next.Date = edit.Date
	next.Topic = edit.Topic
	next.Games = edit.Games
	next.FeeConfig = edit.FeeConfig.Clone()

	if err := s.Store.SaveSession(ctx, op, next); err != nil {
		return nil, persistErr("save session", err)
	}
	return s.GetSession(ctx, op, id)
}

// MonthlyStandings returns the ranked ledger for a month. A month with no
// saved sessions yields an empty list.
func (s *Service) MonthlyStandings(ctx context.Context, op OperatorID, month MonthKey) (MonthlyRanking, []RankedPlayer, error) {
	ledger, err := s.Store.GetMonthlyRanking(ctx, op, month)
	if err != nil {
		return MonthlyRanking{}, nil, persistErr("load ranking", err)
	}
	return ledger, ledger.Standings(), nil
}

// PaymentHistory loads the saved payment snapshot of a session.
func (s *Service) PaymentHistory(ctx context.Context, op OperatorID, id SessionID) (*PaymentHistoryRecord, error) {
	rec, err := s.Store.GetPaymentHistory(ctx, op, id)
	if err != nil {
		return nil, persistErr("load payment history", err)
	}
	return rec, nil
}

func validateDraft(session Session) error {
	if session.Date.IsZero() {
		return &ValidationError{Field: "date", Reason: "required"}
	}
	for i, g := range session.Games {
		if g.BallsUsed < 0 {
			return &ValidationError{Field: "games", Reason: fmt.Sprintf("game %d: balls_used must not be negative", i+1)}
		}
		switch g.Result {
		case ResultNone, ResultTeamA, ResultTeamB, ResultDraw:
		default:
			return &ValidationError{Field: "games", Reason: fmt.Sprintf("game %d: unknown result %q", i+1, g.Result)}
		}
	}
	return session.FeeConfig.validateAmounts()
}
