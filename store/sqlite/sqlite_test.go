package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/club-settlement/settlement"
	"github.com/warp/club-settlement/store/sqlite"
)

const op settlement.OperatorID = "clubs/op-1"

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleSession() settlement.Session {
	return settlement.Session{
		ID:    "s-1",
		Date:  time.Date(2026, 5, 9, 0, 0, 0, 0, time.UTC),
		Topic: "Saturday open play",
		Games: []settlement.Game{
			{
				TeamA1:    settlement.Slot{Player: "X", Level: "B"},
				TeamA2:    settlement.Slot{Player: "Y"},
				TeamB1:    settlement.Slot{Player: "Z"},
				BallsUsed: 2,
				Result:    settlement.ResultTeamA,
			},
		},
		FeeConfig: settlement.SessionFeeConfig{
			CourtFeePerGame: settlement.Dec(7.5),
			BallPrice:       decimal.NewFromInt(5),
			OrganizeFee:     decimal.NewFromInt(10),
		},
		PaidStatus: map[string]bool{"X": true},
	}
}

func TestSession_SaveAndGet(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveSession(ctx, op, sampleSession()))

	got, err := store.GetSession(ctx, op, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "Saturday open play", got.Topic)
	assert.Equal(t, time.Date(2026, 5, 9, 0, 0, 0, 0, time.UTC), got.Date)
	assert.Equal(t, sampleSession().Games, got.Games)
	require.NotNil(t, got.FeeConfig.CourtFeePerGame)
	assert.True(t, got.FeeConfig.CourtFeePerGame.Equal(decimal.RequireFromString("7.5")))
	assert.Nil(t, got.FeeConfig.CourtFeeTotal)
	assert.Equal(t, map[string]bool{"X": true}, got.PaidStatus)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestSession_ScopedByOperator(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveSession(ctx, op, sampleSession()))

	_, err := store.GetSession(ctx, "clubs/other", "s-1")

	assert.ErrorIs(t, err, settlement.ErrSessionNotFound)
}

func TestSession_MergeTouchesOnlyPatchedFields(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveSession(ctx, op, sampleSession()))

	saved := true
	require.NoError(t, store.MergeSession(ctx, op, "s-1", settlement.SessionPatch{
		RankingSaved: &saved,
		PaidStatus:   map[string]bool{"Y": true, "X": false},
	}))

	got, err := store.GetSession(ctx, op, "s-1")
	require.NoError(t, err)
	assert.True(t, got.RankingSaved)
	assert.False(t, got.PaymentHistorySaved)
	assert.Equal(t, map[string]bool{"X": false, "Y": true}, got.PaidStatus)
	assert.Len(t, got.Games, 1)
	require.NotNil(t, got.FeeConfig.CourtFeePerGame)
}

func TestSession_MergeMissing(t *testing.T) {
	store := newStore(t)
	saved := true

	err := store.MergeSession(context.Background(), op, "nope", settlement.SessionPatch{RankingSaved: &saved})

	assert.ErrorIs(t, err, settlement.ErrSessionNotFound)
}

func TestRanking_MergeKeepsUntouchedPlayers(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	month := settlement.MonthKey("05-2026")

	empty, err := store.GetMonthlyRanking(ctx, op, month)
	require.NoError(t, err)
	assert.Empty(t, empty.Entries)

	first := time.Date(2026, 5, 9, 20, 0, 0, 0, time.UTC)
	require.NoError(t, store.MergeMonthlyRanking(ctx, op, month, map[string]settlement.RankingEntry{
		"X": {Wins: 1, Score: 3, TotalGames: 2, TotalBalls: 4, Level: "B"},
		"Q": {Wins: 2, Score: 4, TotalGames: 2, TotalBalls: 3},
	}, first))
	second := first.Add(time.Hour)
	require.NoError(t, store.MergeMonthlyRanking(ctx, op, month, map[string]settlement.RankingEntry{
		"X": {Wins: 2, Score: 6, TotalGames: 4, TotalBalls: 8, Level: "B"},
	}, second))

	got, err := store.GetMonthlyRanking(ctx, op, month)
	require.NoError(t, err)
	assert.Equal(t, settlement.RankingEntry{Wins: 2, Score: 6, TotalGames: 4, TotalBalls: 8, Level: "B"}, got.Entries["X"])
	assert.Equal(t, settlement.RankingEntry{Wins: 2, Score: 4, TotalGames: 2, TotalBalls: 3}, got.Entries["Q"])
	assert.Equal(t, second, got.LastUpdated)
}

func TestPaymentHistory_PutReplaces(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	_, err := store.GetPaymentHistory(ctx, op, "s-1")
	assert.ErrorIs(t, err, settlement.ErrPaymentHistoryNotFound)

	rec := settlement.PaymentHistoryRecord{
		SessionID:    "s-1",
		MatchDate:    time.Date(2026, 5, 9, 0, 0, 0, 0, time.UTC),
		Topic:        "Saturday open play",
		TotalOverall: decimal.NewFromInt(118),
		MembersData: []settlement.PlayerMatchStat{
			{Name: "X", TotalGames: 1, Total: decimal.NewFromInt(59)},
			{Name: "Y", TotalGames: 1, Total: decimal.NewFromInt(59)},
		},
		FeeConfig: sampleSession().FeeConfig,
	}
	require.NoError(t, store.PutPaymentHistory(ctx, op, rec))

	rec.TotalOverall = decimal.NewFromInt(40)
	rec.MembersData = rec.MembersData[:1]
	require.NoError(t, store.PutPaymentHistory(ctx, op, rec))

	got, err := store.GetPaymentHistory(ctx, op, "s-1")
	require.NoError(t, err)
	assert.True(t, got.TotalOverall.Equal(decimal.NewFromInt(40)))
	require.Len(t, got.MembersData, 1)
	assert.Equal(t, "X", got.MembersData[0].Name)
	assert.True(t, got.MembersData[0].Total.Equal(decimal.NewFromInt(59)))
	assert.Equal(t, rec.MatchDate, got.MatchDate)
}
