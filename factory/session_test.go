package factory_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/club-settlement/factory"
	"github.com/warp/club-settlement/settlement"
)

func TestParseSession_Lenient(t *testing.T) {
	body := []byte(`{
		"id": " 2026-03-12 ",
		"date": "2026-03-12",
		"topic": "Thursday doubles",
		"games": [
			{"team_a1": {"player": "An", "level": "B"}, "team_a2": "Binh",
			 "team_b1": "Chi", "team_b2": null, "balls_used": "3", "result": "a"},
			{"teamASlot1": "An", "teamBSlot1": {"name": "Chi", "levelTag": "C"},
			 "ballsUsed": "lots", "result": "Draw"},
			{"team_a1": "An", "team_b1": "Dung", "balls_used": 2.9, "result": 1}
		],
		"fee_config": {"court_fee_total": "", "courtFeePerGame": "7.5", "ball_price": 25, "organize_fee": null}
	}`)

	s, err := factory.NewSessionFactory().ParseSession(body)

	require.NoError(t, err)
	assert.Equal(t, settlement.SessionID("2026-03-12"), s.ID)
	assert.Equal(t, time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC), s.Date)
	require.Len(t, s.Games, 3)

	g := s.Games[0]
	assert.Equal(t, settlement.Slot{Player: "An", Level: "B"}, g.TeamA1)
	assert.Equal(t, settlement.Slot{Player: "Binh"}, g.TeamA2)
	assert.False(t, g.TeamB2.Occupied())
	assert.Equal(t, 3, g.BallsUsed)
	assert.Equal(t, settlement.ResultTeamA, g.Result)

	assert.Equal(t, settlement.Slot{Player: "Chi", Level: "C"}, s.Games[1].TeamB1)
	assert.Equal(t, 0, s.Games[1].BallsUsed, "non-numeric balls decode as 0")
	assert.Equal(t, settlement.ResultDraw, s.Games[1].Result)

	assert.Equal(t, 2, s.Games[2].BallsUsed)
	assert.Equal(t, settlement.ResultNone, s.Games[2].Result)

	assert.Nil(t, s.FeeConfig.CourtFeeTotal, "empty string means absent")
	require.NotNil(t, s.FeeConfig.CourtFeePerGame)
	assert.Equal(t, "7.5", s.FeeConfig.CourtFeePerGame.String())
	assert.Equal(t, "25", s.FeeConfig.BallPrice.String())
	assert.True(t, s.FeeConfig.OrganizeFee.IsZero())
	assert.Equal(t, settlement.FeeModePerGame, s.FeeConfig.ActiveMode())
}

func TestParseSession_RejectsNonNumericFee(t *testing.T) {
	_, err := factory.NewSessionFactory().ParseSession([]byte(`{"date":"2026-03-12","fee_config":{"fixedCourtFeePerPerson":"fifty"}}`))

	var verr *settlement.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "fixed_court_fee_per_person", verr.Field)
}

func TestParseSession_BadDate(t *testing.T) {
	_, err := factory.NewSessionFactory().ParseSession([]byte(`{"date":"12/03/2026"}`))

	assert.ErrorIs(t, err, settlement.ErrValidation)
}

func TestParseSession_RFC3339DateKeepsCalendarDay(t *testing.T) {
	s, err := factory.NewSessionFactory().ParseSession([]byte(`{"date":"2026-03-31T22:30:00Z"}`))

	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC), s.Date)
	assert.Equal(t, settlement.MonthKey("03-2026"), settlement.MonthKeyFor(s.Date))
}

func TestParseSession_MalformedBody(t *testing.T) {
	_, err := factory.NewSessionFactory().ParseSession([]byte(`{"games": 3`))

	assert.True(t, settlement.IsClientError(err))
}

func TestParseFeeConfig(t *testing.T) {
	cfg, err := factory.NewSessionFactory().ParseFeeConfig([]byte(`{"fixed_court_fee_per_person": 50, "court_fee_total": 1000, "ball_price": "5.5"}`))

	require.NoError(t, err)
	assert.Equal(t, settlement.FeeModeFixedPerPerson, cfg.ActiveMode())
	assert.Equal(t, []settlement.FeeMode{settlement.FeeModeTotalSplit}, cfg.ConflictingModes())
	assert.Equal(t, "5.5", cfg.BallPrice.String())
}

func TestParseResult(t *testing.T) {
	tests := map[string]settlement.Result{
		"A":      settlement.ResultTeamA,
		" b ":    settlement.ResultTeamB,
		"draw":   settlement.ResultDraw,
		"":       settlement.ResultNone,
		"team c": settlement.ResultNone,
	}
	for in, want := range tests {
		assert.Equal(t, want, factory.ParseResult(in), in)
	}
}
