package settlement_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/club-settlement/settlement"
	"github.com/warp/club-settlement/settlement/store"
)

func TestPaidTracker_SetPaid_Persists(t *testing.T) {
	svc, mem, _ := newTestService(t)
	ctx := context.Background()
	seedSession(t, mem, "s-1", time.Now())

	tracker, err := svc.NewPaidTracker(ctx, testOperator, "s-1")
	require.NoError(t, err)

	require.NoError(t, tracker.SetPaid(ctx, "X", true))

	assert.True(t, tracker.IsPaid("X"))
	s, _ := mem.GetSession(ctx, testOperator, "s-1")
	assert.True(t, s.PaidStatus["X"])
}

func TestPaidTracker_MergeKeepsOtherPlayers(t *testing.T) {
	svc, mem, _ := newTestService(t)
	ctx := context.Background()
	seedSession(t, mem, "s-1", time.Now())
	require.NoError(t, mem.MergeSession(ctx, testOperator, "s-1", settlement.SessionPatch{PaidStatus: map[string]bool{"Y": true}}))

	tracker, err := svc.NewPaidTracker(ctx, testOperator, "s-1")
	require.NoError(t, err)
	require.NoError(t, tracker.SetPaid(ctx, "X", true))

	s, _ := mem.GetSession(ctx, testOperator, "s-1")
	assert.Equal(t, map[string]bool{"X": true, "Y": true}, s.PaidStatus)
}

func TestPaidTracker_FailureRollsBack(t *testing.T) {
	// GIVEN: Y already paid
	svc, mem, notifier := newTestService(t)
	ctx := context.Background()
	seedSession(t, mem, "s-1", time.Now())
	require.NoError(t, mem.MergeSession(ctx, testOperator, "s-1", settlement.SessionPatch{PaidStatus: map[string]bool{"Y": true}}))
	tracker, err := svc.NewPaidTracker(ctx, testOperator, "s-1")
	require.NoError(t, err)

	// WHEN: un-paying Y fails to persist
	mem.InjectFault(store.OpMergeSession, errors.New("offline"))
	toggle := tracker.Apply("Y", false)
	assert.False(t, tracker.IsPaid("Y"), "optimistic value shows immediately")
	err = tracker.Confirm(ctx, toggle)

	// THEN: display reverts to the pre-toggle value
	require.Error(t, err)
	assert.ErrorIs(t, err, settlement.ErrPersistence)
	assert.True(t, tracker.IsPaid("Y"))
	assert.Equal(t, settlement.SeverityError, notifier.calls[len(notifier.calls)-1])

	s, _ := mem.GetSession(ctx, testOperator, "s-1")
	assert.True(t, s.PaidStatus["Y"])
}

func TestPaidTracker_RollbackSkipsNewerToggle(t *testing.T) {
	session := settlement.Session{ID: "s-1"}
	tracker := settlement.NewPaidTracker(store.NewMemory(), nil, testOperator, session)

	first := tracker.Apply("X", true)
	tracker.Apply("X", false)
	tracker.Rollback(first)

	assert.False(t, tracker.IsPaid("X"), "a later toggle is not undone by an earlier failure")
}

func TestPaidTracker_ReflectOntoResult(t *testing.T) {
	svc, mem, _ := newTestService(t)
	ctx := context.Background()
	seedSession(t, mem, "s-1", time.Now())
	res := calculated(t, svc, "s-1")
	tracker, err := svc.NewPaidTracker(ctx, testOperator, "s-1")
	require.NoError(t, err)

	tracker.Apply("Z", true)
	tracker.Reflect(&res)

	assert.True(t, res.Stats["Z"].IsPaid)
	assert.False(t, res.Stats["X"].IsPaid)
}

func TestNewPaidTracker_MissingSession(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.NewPaidTracker(context.Background(), testOperator, "missing")

	assert.ErrorIs(t, err, settlement.ErrSessionNotFound)
}
