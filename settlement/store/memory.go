// Package store provides Store implementations.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/warp/club-settlement/settlement"
)

// =============================================================================
// MEMORY STORE - In-memory document store (for testing/dev)
// =============================================================================

// Store method names accepted by InjectFault.
const (
	OpGetSession          = "GetSession"
	OpSaveSession         = "SaveSession"
	OpMergeSession        = "MergeSession"
	OpGetMonthlyRanking   = "GetMonthlyRanking"
	OpMergeMonthlyRanking = "MergeMonthlyRanking"
	OpPutPaymentHistory   = "PutPaymentHistory"
	OpGetPaymentHistory   = "GetPaymentHistory"
)

type Memory struct {
	mu       sync.Mutex
	sessions map[sessionKey]settlement.Session
	rankings map[rankingKey]settlement.MonthlyRanking
	payments map[sessionKey]settlement.PaymentHistoryRecord
	faults   map[string]error
}

type sessionKey struct {
	Operator settlement.OperatorID
	ID       settlement.SessionID
}

type rankingKey struct {
	Operator settlement.OperatorID
	Month    settlement.MonthKey
}

var _ settlement.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[sessionKey]settlement.Session),
		rankings: make(map[rankingKey]settlement.MonthlyRanking),
		payments: make(map[sessionKey]settlement.PaymentHistoryRecord),
		faults:   make(map[string]error),
	}
}

// InjectFault makes the next call to op fail with err.
func (m *Memory) InjectFault(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults[op] = err
}

// fault must be called with mu held.
func (m *Memory) fault(op string) error {
	err := m.faults[op]
	delete(m.faults, op)
	return err
}

// =============================================================================
// SESSIONS
// =============================================================================

func (m *Memory) GetSession(_ context.Context, op settlement.OperatorID, id settlement.SessionID) (*settlement.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault(OpGetSession); err != nil {
		return nil, err
	}

	s, ok := m.sessions[sessionKey{op, id}]
	if !ok {
		return nil, settlement.ErrSessionNotFound
	}
	out := s.Clone()
	return &out, nil
}

func (m *Memory) SaveSession(_ context.Context, op settlement.OperatorID, s settlement.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault(OpSaveSession); err != nil {
		return err
	}

	now := time.Now().UTC()
	stored := s.Clone()
	if prev, ok := m.sessions[sessionKey{op, s.ID}]; ok {
		stored.CreatedAt = prev.CreatedAt
	} else if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	m.sessions[sessionKey{op, s.ID}] = stored
	return nil
}

func (m *Memory) MergeSession(_ context.Context, op settlement.OperatorID, id settlement.SessionID, patch settlement.SessionPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault(OpMergeSession); err != nil {
		return err
	}

	k := sessionKey{op, id}
	s, ok := m.sessions[k]
	if !ok {
		return settlement.ErrSessionNotFound
	}
	s = s.Clone()
	patch.Apply(&s)
	s.UpdatedAt = time.Now().UTC()
	m.sessions[k] = s
	return nil
}

// =============================================================================
// RANKING LEDGER
// =============================================================================

func (m *Memory) GetMonthlyRanking(_ context.Context, op settlement.OperatorID, month settlement.MonthKey) (settlement.MonthlyRanking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault(OpGetMonthlyRanking); err != nil {
		return settlement.MonthlyRanking{}, err
	}

	r := m.rankings[rankingKey{op, month}]
	out := settlement.MonthlyRanking{
		Month:       month,
		Entries:     make(map[string]settlement.RankingEntry, len(r.Entries)),
		LastUpdated: r.LastUpdated,
	}
	for name, e := range r.Entries {
		out.Entries[name] = e
	}
	return out, nil
}

func (m *Memory) MergeMonthlyRanking(_ context.Context, op settlement.OperatorID, month settlement.MonthKey, entries map[string]settlement.RankingEntry, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault(OpMergeMonthlyRanking); err != nil {
		return err
	}

	k := rankingKey{op, month}
	r := m.rankings[k]
	merged := make(map[string]settlement.RankingEntry, len(r.Entries)+len(entries))
	for name, e := range r.Entries {
		merged[name] = e
	}
	for name, e := range entries {
		merged[name] = e
	}
	m.rankings[k] = settlement.MonthlyRanking{Month: month, Entries: merged, LastUpdated: updatedAt}
	return nil
}

// =============================================================================
// PAYMENT HISTORY
// =============================================================================

func (m *Memory) PutPaymentHistory(_ context.Context, op settlement.OperatorID, rec settlement.PaymentHistoryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault(OpPutPaymentHistory); err != nil {
		return err
	}

	rec.MembersData = append([]settlement.PlayerMatchStat(nil), rec.MembersData...)
	rec.FeeConfig = rec.FeeConfig.Clone()
	m.payments[sessionKey{op, rec.SessionID}] = rec
	return nil
}

func (m *Memory) GetPaymentHistory(_ context.Context, op settlement.OperatorID, id settlement.SessionID) (*settlement.PaymentHistoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault(OpGetPaymentHistory); err != nil {
		return nil, err
	}

	rec, ok := m.payments[sessionKey{op, id}]
	if !ok {
		return nil, settlement.ErrPaymentHistoryNotFound
	}
	rec.MembersData = append([]settlement.PlayerMatchStat(nil), rec.MembersData...)
	rec.FeeConfig = rec.FeeConfig.Clone()
	return &rec, nil
}
