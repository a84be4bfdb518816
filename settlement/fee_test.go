package settlement_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/club-settlement/settlement"
)

func TestActiveMode_Priority(t *testing.T) {
	tests := []struct {
		name string
		cfg  settlement.SessionFeeConfig
		want settlement.FeeMode
	}{
		{"fixed beats everything", settlement.SessionFeeConfig{
			FixedCourtFeePerPerson: settlement.Dec(50), CourtFeePerGame: settlement.Dec(10), CourtFeeTotal: settlement.Dec(1000),
		}, settlement.FeeModeFixedPerPerson},
		{"zero fixed falls through to per game", settlement.SessionFeeConfig{
			FixedCourtFeePerPerson: settlement.Dec(0), CourtFeePerGame: settlement.Dec(10), CourtFeeTotal: settlement.Dec(1000),
		}, settlement.FeeModePerGame},
		{"zero per game falls through to total", settlement.SessionFeeConfig{
			CourtFeePerGame: settlement.Dec(0), CourtFeeTotal: settlement.Dec(1000),
		}, settlement.FeeModeTotalSplit},
		{"zero total is still a mode", settlement.SessionFeeConfig{
			CourtFeeTotal: settlement.Dec(0),
		}, settlement.FeeModeTotalSplit},
		{"nothing set", settlement.SessionFeeConfig{}, settlement.FeeModeNone},
		{"negative total is not a mode", settlement.SessionFeeConfig{
			CourtFeeTotal: settlement.Dec(-1),
		}, settlement.FeeModeNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.ActiveMode())
		})
	}
}

func TestConflictingModes(t *testing.T) {
	cfg := settlement.SessionFeeConfig{
		FixedCourtFeePerPerson: settlement.Dec(50),
		CourtFeePerGame:        settlement.Dec(10),
		CourtFeeTotal:          settlement.Dec(1000),
	}
	assert.Equal(t, []settlement.FeeMode{settlement.FeeModePerGame, settlement.FeeModeTotalSplit}, cfg.ConflictingModes())

	single := settlement.SessionFeeConfig{CourtFeePerGame: settlement.Dec(10)}
	assert.Empty(t, single.ConflictingModes())
}

func TestCalculate_FixedFeeIgnoresOtherModes(t *testing.T) {
	// GIVEN: all three court fee fields set
	games := []settlement.Game{
		game(p("A"), p("B"), p("C"), p("D"), 1, settlement.ResultTeamA),
		game(p("A"), p("E"), p("C"), settlement.Slot{}, 1, settlement.ResultTeamB),
		game(p("A"), settlement.Slot{}, p("F"), settlement.Slot{}, 1, settlement.ResultDraw),
	}
	cfg := settlement.SessionFeeConfig{
		FixedCourtFeePerPerson: settlement.Dec(50),
		CourtFeePerGame:        settlement.Dec(10),
		CourtFeeTotal:          settlement.Dec(1000),
	}

	// WHEN
	res, err := settlement.Calculate(games, cfg, nil)

	// THEN: every player pays exactly the fixed fee
	require.NoError(t, err)
	assert.Equal(t, settlement.FeeModeFixedPerPerson, res.FeeMode)
	for name, st := range res.Stats {
		assertMoney(t, "50", st.CourtCostPerPerson, name)
	}
}

func TestAllocateCourtFees_FixedRoundsUp(t *testing.T) {
	cfg := settlement.SessionFeeConfig{FixedCourtFeePerPerson: settlement.Dec(12.01)}

	alloc, err := settlement.AllocateCourtFees(cfg, map[string]int{"A": 1, "B": 3}, 2)

	require.NoError(t, err)
	assertMoney(t, "13", alloc.PerPlayer["A"])
	assertMoney(t, "13", alloc.PerPlayer["B"])
}

func TestAllocateCourtFees_PerGame(t *testing.T) {
	cfg := settlement.SessionFeeConfig{CourtFeePerGame: settlement.Dec(7.5)}

	alloc, err := settlement.AllocateCourtFees(cfg, map[string]int{"A": 1, "B": 2, "C": 3}, 3)

	require.NoError(t, err)
	assert.Equal(t, settlement.FeeModePerGame, alloc.Mode)
	assertMoney(t, "8", alloc.PerPlayer["A"])
	assertMoney(t, "15", alloc.PerPlayer["B"])
	assertMoney(t, "23", alloc.PerPlayer["C"])
}

func TestAllocateCourtFees_TotalSplitIgnoresGamesPlayed(t *testing.T) {
	cfg := settlement.SessionFeeConfig{CourtFeeTotal: settlement.Dec(1000)}

	alloc, err := settlement.AllocateCourtFees(cfg, map[string]int{"A": 1, "B": 5, "C": 9}, 3)

	require.NoError(t, err)
	for _, name := range []string{"A", "B", "C"} {
		assertMoney(t, "334", alloc.PerPlayer[name], name)
	}
}

func TestAllocateCourtFees_TotalSplitExactDivision(t *testing.T) {
	total := decimal.NewFromInt(900)
	cfg := settlement.SessionFeeConfig{CourtFeeTotal: &total}

	alloc, err := settlement.AllocateCourtFees(cfg, map[string]int{"A": 1, "B": 1, "C": 1}, 3)

	require.NoError(t, err)
	assertMoney(t, "300", alloc.PerPlayer["B"])
}

func TestAllocateCourtFees_NoMode(t *testing.T) {
	alloc, err := settlement.AllocateCourtFees(settlement.SessionFeeConfig{}, map[string]int{"A": 1}, 1)

	assert.ErrorIs(t, err, settlement.ErrNoFeeModeSelected)
	assert.Empty(t, alloc.PerPlayer)
}
