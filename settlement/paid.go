/*
paid.go - Per-player paid flag with optimistic update

FLOW:
  toggle := tracker.Apply(player, true)   // display state changes immediately
  err := tracker.Confirm(ctx, toggle)     // persists paidStatus.<player>
                                          // on failure the display state is
                                          // reverted before err is returned

  SetPaid does both. There is no locking against other operators: the last
  write to the session document wins.
*/
package settlement

import (
	"context"
	"fmt"
	"sync"
)

// PaidToggle is the optimistic change returned by Apply. Previous is the
// value to restore if persistence fails.
type PaidToggle struct {
	Player   string
	Previous bool
	Value    bool
}

// PaidTracker holds the operator's displayed paid flags for one session.
type PaidTracker struct {
	store    SessionStore
	notifier Notifier
	operator OperatorID
	session  SessionID

	mu     sync.Mutex
	status map[string]bool
}

// NewPaidTracker seeds the display state from the session document.
func NewPaidTracker(store SessionStore, notifier Notifier, op OperatorID, session Session) *PaidTracker {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	status := make(map[string]bool, len(session.PaidStatus))
	for k, v := range session.PaidStatus {
		status[k] = v
	}
	return &PaidTracker{store: store, notifier: notifier, operator: op, session: session.ID, status: status}
}

// IsPaid returns the displayed value.
func (t *PaidTracker) IsPaid(player string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status[player]
}

// Status returns a copy of the displayed flags.
func (t *PaidTracker) Status() map[string]bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]bool, len(t.status))
	for k, v := range t.status {
		out[k] = v
	}
	return out
}

// Apply changes the displayed value immediately.
func (t *PaidTracker) Apply(player string, paid bool) PaidToggle {
	t.mu.Lock()
	defer t.mu.Unlock()
	toggle := PaidToggle{Player: player, Previous: t.status[player], Value: paid}
	t.status[player] = paid
	return toggle
}

// Rollback restores toggle.Previous, unless a later Apply already replaced
// toggle.Value.
func (t *PaidTracker) Rollback(toggle PaidToggle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status[toggle.Player] == toggle.Value {
		t.status[toggle.Player] = toggle.Previous
	}
}

// Confirm persists an applied toggle, rolling it back on failure.
func (t *PaidTracker) Confirm(ctx context.Context, toggle PaidToggle) error {
	patch := SessionPatch{PaidStatus: map[string]bool{toggle.Player: toggle.Value}}
	if err := t.store.MergeSession(ctx, t.operator, t.session, patch); err != nil {
		t.Rollback(toggle)
		t.notifier.Notify("Paid status not saved", fmt.Sprintf("%s: %v", toggle.Player, err), SeverityError)
		return persistErr("set paid status", err)
	}
	t.notifier.Notify("Paid status saved", fmt.Sprintf("%s paid=%t", toggle.Player, toggle.Value), SeveritySuccess)
	return nil
}

// SetPaid applies and confirms in one call.
func (t *PaidTracker) SetPaid(ctx context.Context, player string, paid bool) error {
	return t.Confirm(ctx, t.Apply(player, paid))
}

// Reflect copies the displayed flags onto a calculation result.
func (t *PaidTracker) Reflect(result *CalculationResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for name, st := range result.Stats {
		st.IsPaid = t.status[name]
		result.Stats[name] = st
	}
}
