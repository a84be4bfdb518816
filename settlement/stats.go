package settlement

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// STATS CALCULATOR
// =============================================================================

// Calculate turns a session's games and fee settings into per-player stats.
//
// Validation fails closed: on any error the result has Calculated=false and
// an empty Stats map, so callers can clear whatever they displayed before.
//
// Scoring per game:
//
//	A    -> each team A player: wins+1, score+2
//	B    -> each team B player: wins+1, score+2
//	DRAW -> every participant: score+1
//	else -> no scoring (games and balls still count)
//
// A player's level comes from the first game, in list order, where their slot
// carries a non-empty level tag. Later tags are ignored.
//
// paid seeds IsPaid; players absent from it are unpaid.
func Calculate(games []Game, cfg SessionFeeConfig, paid map[string]bool) (CalculationResult, error) {
	failed := CalculationResult{Stats: map[string]PlayerMatchStat{}}

	if len(games) == 0 {
		return failed, &ValidationError{Field: "games", Reason: "at least one game is required", Err: ErrNoGames}
	}
	if err := cfg.Validate(); err != nil {
		return failed, err
	}

	stats := make(map[string]*PlayerMatchStat)
	var order []string

	for _, g := range games {
		for _, slot := range g.Participants() {
			name := slot.name()
			st, ok := stats[name]
			if !ok {
				st = &PlayerMatchStat{Name: name}
				stats[name] = st
				order = append(order, name)
			}
			if st.Level == "" {
				st.Level = slot.level()
			}
		}
		for _, name := range distinctNames(g.Participants()) {
			stats[name].TotalGames++
			stats[name].TotalBalls += g.balls()
		}

		switch g.Result {
		case ResultTeamA:
			award(stats, g.TeamA())
		case ResultTeamB:
			award(stats, g.TeamB())
		case ResultDraw:
			for _, name := range distinctNames(g.Participants()) {
				stats[name].Score++
			}
		}
	}

	gamesPlayed := make(map[string]int, len(stats))
	for name, st := range stats {
		gamesPlayed[name] = st.TotalGames
	}
	alloc, err := AllocateCourtFees(cfg, gamesPlayed, len(stats))
	if err != nil {
		return failed, &ValidationError{Field: "court_fee", Reason: err.Error(), Err: err}
	}

	organize := cfg.OrganizeFee.Ceil()
	result := CalculationResult{
		Stats:      make(map[string]PlayerMatchStat, len(stats)),
		Order:      order,
		FeeMode:    alloc.Mode,
		FeeConfig:  cfg.Clone(),
		Calculated: true,
	}
	for name, st := range stats {
		st.BallCost = decimal.NewFromInt(int64(st.TotalBalls)).Mul(cfg.BallPrice).Ceil()
		st.CourtCostPerPerson = alloc.PerPlayer[name]
		st.OrganizeFeePerPerson = organize
		st.Total = st.BallCost.Add(st.CourtCostPerPerson).Add(st.OrganizeFeePerPerson)
		st.IsPaid = paid[name]
		result.Stats[name] = *st
	}
	return result, nil
}

func award(stats map[string]*PlayerMatchStat, winners []Slot) {
	for _, name := range distinctNames(winners) {
		st := stats[name]
		st.Wins++
		st.Score += 2
	}
}

// distinctNames collapses a player entered twice in the same game.
func distinctNames(slots []Slot) []string {
	seen := make(map[string]bool, len(slots))
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		name := s.name()
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}
