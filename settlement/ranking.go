/*
ranking.go - Monthly ranking ledger (additive)

PURPOSE:
  Rolls a session's calculation into the operator's ranking for the month of
  the session date. Each save ADDS the session's wins, score, games and balls
  to whatever the ledger already holds.

NOT IDEMPOTENT:
  Saving the same calculation twice counts it twice. Session.RankingSaved is
  advisory: SaveRanking reports it through RankingOutcome.AlreadySaved and
  raises a warning notification, but still accumulates.

WRITES:
  1. one merged write of all touched players + LastUpdated
  2. session RankingSaved=true
  A failure in (1) aborts before (2), leaving the flag unset.
*/
package settlement

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// =============================================================================
// MONTH KEY
// =============================================================================

// MonthKey identifies a ranking ledger as MM-YYYY.
type MonthKey string

const monthKeyLayout = "01-2006"

// MonthKeyFor derives the ledger key from a session date.
func MonthKeyFor(date time.Time) MonthKey {
	return MonthKey(date.Format(monthKeyLayout))
}

// ParseMonthKey validates a MM-YYYY string.
func ParseMonthKey(s string) (MonthKey, error) {
	if _, err := time.Parse(monthKeyLayout, s); err != nil {
		return "", &ValidationError{Field: "month", Reason: fmt.Sprintf("%q is not MM-YYYY", s)}
	}
	return MonthKey(s), nil
}

// =============================================================================
// LEDGER TYPES
// =============================================================================

type RankingEntry struct {
	Wins       int    `json:"wins"`
	Score      int    `json:"score"`
	TotalGames int    `json:"total_games"`
	TotalBalls int    `json:"total_balls"`
	Level      string `json:"level"`
}

type MonthlyRanking struct {
	Month       MonthKey
	Entries     map[string]RankingEntry
	LastUpdated time.Time
}

// RankedPlayer is one row of the standings view.
type RankedPlayer struct {
	Rank  int
	Name  string
	Entry RankingEntry
}

// Standings orders the ledger by score, then wins, then fewer games, then name.
func (m MonthlyRanking) Standings() []RankedPlayer {
	rows := make([]RankedPlayer, 0, len(m.Entries))
	for name, e := range m.Entries {
		rows = append(rows, RankedPlayer{Name: name, Entry: e})
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i].Entry, rows[j].Entry
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		if a.TotalGames != b.TotalGames {
			return a.TotalGames < b.TotalGames
		}
		return rows[i].Name < rows[j].Name
	})
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows
}

// =============================================================================
// ACCUMULATION
// =============================================================================

// AccumulateRanking adds each calculated player onto their existing entry and
// returns the new entries for those players only. A missing entry counts as
// zero. The computed level wins unless it is empty.
func AccumulateRanking(existing map[string]RankingEntry, result CalculationResult) map[string]RankingEntry {
	merged := make(map[string]RankingEntry, len(result.Stats))
	for name, st := range result.Stats {
		old := existing[name]
		level := st.Level
		if level == "" {
			level = old.Level
		}
		merged[name] = RankingEntry{
			Wins:       old.Wins + st.Wins,
			Score:      old.Score + st.Score,
			TotalGames: old.TotalGames + st.TotalGames,
			TotalBalls: old.TotalBalls + st.TotalBalls,
			Level:      level,
		}
	}
	return merged
}

// RankingOutcome describes a completed SaveRanking call.
type RankingOutcome struct {
	Month        MonthKey
	Entries      map[string]RankingEntry
	AlreadySaved bool
}

// SaveRanking merges a calculation into the monthly ledger of the session's
// date and marks the session RankingSaved.
func (s *Service) SaveRanking(ctx context.Context, op OperatorID, id SessionID, result CalculationResult) (RankingOutcome, error) {
	if !result.Calculated {
		return RankingOutcome{}, &ValidationError{Field: "result", Reason: "calculate before saving the ranking", Err: ErrNotCalculated}
	}

	session, err := s.Store.GetSession(ctx, op, id)
	if err != nil {
		s.fail("Ranking not saved", err)
		return RankingOutcome{}, persistErr("load session", err)
	}

	month := MonthKeyFor(session.Date)
	ledger, err := s.Store.GetMonthlyRanking(ctx, op, month)
	if err != nil {
		s.fail("Ranking not saved", err)
		return RankingOutcome{}, persistErr("load ranking", err)
	}

	merged := AccumulateRanking(ledger.Entries, result)
	if err := s.Store.MergeMonthlyRanking(ctx, op, month, merged, s.now()); err != nil {
		s.fail("Ranking not saved", err)
		return RankingOutcome{}, persistErr("merge ranking", err)
	}

	saved := true
	if err := s.Store.MergeSession(ctx, op, id, SessionPatch{RankingSaved: &saved}); err != nil {
		s.fail("Ranking saved but session flag not updated", err)
		return RankingOutcome{}, persistErr("mark ranking saved", err)
	}

	out := RankingOutcome{Month: month, Entries: merged, AlreadySaved: session.RankingSaved}
	if out.AlreadySaved {
		if s.Logger != nil {
			s.Logger.Warn("ranking saved again", "operator", op, "session", id, "month", month)
		}
		s.notify("Ranking saved again", fmt.Sprintf("Session %s was already in the %s ranking; results were added a second time", id, month), SeverityWarning)
	} else {
		s.notify("Ranking saved", fmt.Sprintf("%d players added to the %s ranking", len(merged), month), SeveritySuccess)
	}
	return out, nil
}
