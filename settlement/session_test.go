package settlement_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/club-settlement/settlement"
)

func TestCreateSession_GeneratesIDAndClearsFlags(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateSession(ctx, testOperator, settlement.Session{
		Date:                time.Date(2026, 7, 3, 0, 0, 0, 0, time.UTC),
		Topic:               "friday",
		FeeConfig:           fixedFee(20, 5, 0),
		RankingSaved:        true,
		PaidStatus:          map[string]bool{"X": true},
		PaymentHistorySaved: true,
	})

	require.NoError(t, err)
	_, parseErr := uuid.Parse(string(created.ID))
	assert.NoError(t, parseErr)
	assert.False(t, created.RankingSaved)
	assert.False(t, created.PaymentHistorySaved)
	assert.Empty(t, created.PaidStatus)
}

func TestCreateSession_KeepsGivenID(t *testing.T) {
	svc, _, _ := newTestService(t)

	created, err := svc.CreateSession(context.Background(), testOperator, settlement.Session{
		ID:   "2026-07-03",
		Date: time.Date(2026, 7, 3, 0, 0, 0, 0, time.UTC),
	})

	require.NoError(t, err)
	assert.Equal(t, settlement.SessionID("2026-07-03"), created.ID)
}

func TestCreateSession_Rejects(t *testing.T) {
	svc, _, _ := newTestService(t)
	date := time.Date(2026, 7, 3, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		session settlement.Session
		field   string
	}{
		{"missing date", settlement.Session{}, "date"},
		{"negative balls", settlement.Session{Date: date, Games: []settlement.Game{{BallsUsed: -2}}}, "games"},
		{"unknown result", settlement.Session{Date: date, Games: []settlement.Game{{Result: "C"}}}, "games"},
		{"negative ball price", settlement.Session{Date: date, FeeConfig: fixedFee(10, -1, 0)}, "ball_price"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateSession(context.Background(), testOperator, tt.session)

			var verr *settlement.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.True(t, settlement.IsClientError(err))
		})
	}
}

func TestUpdateSession_KeepsPaidStatusAndFlags(t *testing.T) {
	svc, mem, _ := newTestService(t)
	ctx := context.Background()
	seedSession(t, mem, "s-1", time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC))
	saved := true
	require.NoError(t, mem.MergeSession(ctx, testOperator, "s-1", settlement.SessionPatch{
		RankingSaved: &saved,
		PaidStatus:   map[string]bool{"X": true},
	}))

	updated, err := svc.UpdateSession(ctx, testOperator, "s-1", settlement.Session{
		Date:      time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC),
		Topic:     "moved",
		FeeConfig: fixedFee(30, 5, 10),
	})

	require.NoError(t, err)
	assert.Equal(t, "moved", updated.Topic)
	assert.Empty(t, updated.Games)
	assert.True(t, updated.RankingSaved)
	assert.True(t, updated.PaidStatus["X"])
	assertMoney(t, "30", *updated.FeeConfig.FixedCourtFeePerPerson)
}

func TestUpdateSession_Missing(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.UpdateSession(context.Background(), testOperator, "nope", settlement.Session{Date: time.Now()})

	assert.ErrorIs(t, err, settlement.ErrSessionNotFound)
}

func TestMonthlyStandings_AfterSave(t *testing.T) {
	svc, mem, _ := newTestService(t)
	ctx := context.Background()
	seedSession(t, mem, "s-1", time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC))
	_, err := svc.SaveRanking(ctx, testOperator, "s-1", calculated(t, svc, "s-1"))
	require.NoError(t, err)

	ledger, rows, err := svc.MonthlyStandings(ctx, testOperator, "01-2026")

	require.NoError(t, err)
	assert.Len(t, ledger.Entries, 4)
	require.Len(t, rows, 4)
	// X and Y: a win (2) and a draw (1) each
	assert.Equal(t, 3, rows[0].Entry.Score)
	assert.Equal(t, "X", rows[0].Name)
	assert.Equal(t, 1, rows[0].Rank)
}

func TestMonthlyStandings_EmptyMonth(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, rows, err := svc.MonthlyStandings(context.Background(), testOperator, "12-2020")

	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestPaymentHistory_NotSaved(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.PaymentHistory(context.Background(), testOperator, "s-1")

	assert.ErrorIs(t, err, settlement.ErrPaymentHistoryNotFound)
	assert.True(t, settlement.IsNotFound(err))
}
