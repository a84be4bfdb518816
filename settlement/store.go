/*
store.go - Persistence interfaces for the settlement engine

PURPOSE:
  The engine talks to a remote document store. Documents are addressed by
  operator + session id, and (for the ranking ledger) operator + MM-YYYY.

DOCUMENTS:
  Session:              mutated by field-level merges (flags, fees, paid map)
  MonthlyRanking:       additive ledger, merged per player key
  PaymentHistoryRecord: one per session id, replaced wholesale on each save

CONCURRENCY:
  No locks, versions or transactions span documents. Concurrent operators on
  the same session race with last-write-wins. Each write below touches a
  single document, so a failure never leaves a half-written document.

IMPLEMENTATIONS:
  - settlement/store/memory.go: in-memory, for tests and dev
  - store/sqlite/sqlite.go:     SQLite
  - store/postgres/postgres.go: PostgreSQL (pgx)
*/
package settlement

import (
	"context"
	"time"
)

// SessionPatch is a field-level merge onto a session document. Nil fields
// are left untouched; PaidStatus merges per player key.
type SessionPatch struct {
	RankingSaved        *bool
	PaymentHistorySaved *bool
	FeeConfig           *SessionFeeConfig
	PaidStatus          map[string]bool
}

// IsEmpty reports whether the patch would change nothing.
func (p SessionPatch) IsEmpty() bool {
	return p.RankingSaved == nil && p.PaymentHistorySaved == nil && p.FeeConfig == nil && len(p.PaidStatus) == 0
}

// Apply merges the patch into s in place. Stores without native field merges
// use it for read-modify-write.
func (p SessionPatch) Apply(s *Session) {
	if p.RankingSaved != nil {
		s.RankingSaved = *p.RankingSaved
	}
	if p.PaymentHistorySaved != nil {
		s.PaymentHistorySaved = *p.PaymentHistorySaved
	}
	if p.FeeConfig != nil {
		s.FeeConfig = p.FeeConfig.Clone()
	}
	if len(p.PaidStatus) > 0 && s.PaidStatus == nil {
		s.PaidStatus = make(map[string]bool, len(p.PaidStatus))
	}
	for player, paid := range p.PaidStatus {
		s.PaidStatus[player] = paid
	}
}

// SessionStore persists session documents.
type SessionStore interface {
	// GetSession returns ErrSessionNotFound when the document does not exist.
	GetSession(ctx context.Context, op OperatorID, id SessionID) (*Session, error)

	// SaveSession creates or replaces the whole document.
	SaveSession(ctx context.Context, op OperatorID, s Session) error

	// MergeSession applies a field-level merge. Returns ErrSessionNotFound
	// when the document does not exist.
	MergeSession(ctx context.Context, op OperatorID, id SessionID, patch SessionPatch) error
}

// RankingStore persists the monthly ranking ledger.
type RankingStore interface {
	// GetMonthlyRanking returns an empty ledger when the month has no document.
	GetMonthlyRanking(ctx context.Context, op OperatorID, month MonthKey) (MonthlyRanking, error)

	// MergeMonthlyRanking writes the given player entries in one document-level
	// merge. Players not in entries are left untouched.
	MergeMonthlyRanking(ctx context.Context, op OperatorID, month MonthKey, entries map[string]RankingEntry, updatedAt time.Time) error
}

// PaymentHistoryStore persists payment snapshots.
type PaymentHistoryStore interface {
	// PutPaymentHistory replaces any record stored under rec.SessionID.
	PutPaymentHistory(ctx context.Context, op OperatorID, rec PaymentHistoryRecord) error

	// GetPaymentHistory returns ErrPaymentHistoryNotFound when absent.
	GetPaymentHistory(ctx context.Context, op OperatorID, id SessionID) (*PaymentHistoryRecord, error)
}

// Store is the full document store used by Service.
type Store interface {
	SessionStore
	RankingStore
	PaymentHistoryStore
}
