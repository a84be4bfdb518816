package settlement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// =============================================================================
// SERVICE - Wires the pure calculation to the document store
// =============================================================================

// Service runs the operator-triggered settlement actions. Each action is a
// sequence of awaited store calls; nothing runs in the background.
type Service struct {
	Store    Store
	Notifier Notifier
	Logger   *log.Logger
	Clock    func() time.Time
}

// NewService creates a service with a no-op notifier and the default logger.
func NewService(store Store, notifier Notifier) *Service {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Service{
		Store:    store,
		Notifier: notifier,
		Logger:   log.Default().WithPrefix("settlement"),
		Clock:    time.Now,
	}
}

// CalculateSession loads a session and calculates it. A non-nil override
// replaces the stored fee configuration for this calculation only.
func (s *Service) CalculateSession(ctx context.Context, op OperatorID, id SessionID, override *SessionFeeConfig) (CalculationResult, *Session, error) {
	session, err := s.Store.GetSession(ctx, op, id)
	if err != nil {
		return CalculationResult{Stats: map[string]PlayerMatchStat{}}, nil, persistErr("load session", err)
	}

	fees := session.FeeConfig
	if override != nil {
		fees = *override
	}

	result, err := Calculate(session.Games, fees, session.PaidStatus)
	if err != nil {
		s.notify("Calculation failed", err.Error(), SeverityError)
		return result, session, err
	}

	if conflicts := fees.ConflictingModes(); len(conflicts) > 0 {
		s.notify("Several court fee fields are set",
			fmt.Sprintf("using %s, ignoring %s", result.FeeMode, joinModes(conflicts)), SeverityWarning)
	}
	s.notify("Calculated", fmt.Sprintf("%d players, total %s", len(result.Stats), result.TotalOverall()), SeverityInfo)
	return result, session, nil
}

// NewPaidTracker loads a session and returns a tracker seeded from it.
func (s *Service) NewPaidTracker(ctx context.Context, op OperatorID, id SessionID) (*PaidTracker, error) {
	session, err := s.Store.GetSession(ctx, op, id)
	if err != nil {
		return nil, persistErr("load session", err)
	}
	return NewPaidTracker(s.Store, s.Notifier, op, *session), nil
}

func (s *Service) notify(title, message string, severity Severity) {
	if s.Notifier != nil {
		s.Notifier.Notify(title, message, severity)
	}
}

func (s *Service) fail(title string, err error) {
	if s.Logger != nil {
		s.Logger.Error(title, "err", err)
	}
	s.notify(title, err.Error(), SeverityError)
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock().UTC()
}

func joinModes(modes []FeeMode) string {
	parts := make([]string, len(modes))
	for i, m := range modes {
		parts[i] = string(m)
	}
	return strings.Join(parts, ", ")
}
