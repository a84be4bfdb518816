/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Request bodies for
  sessions and fee overrides go through factory.SessionFactory so the
  lenient document format is accepted everywhere; responses are built here.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Session:      SessionDTO
  Calculation:  CalculationDTO
  Ranking:      RankingSaveDTO, StandingsDTO, StandingDTO
  Payments:     PaymentHistoryDTO
  Paid status:  SetPaidRequest, PaidStatusDTO
  Scenarios:    ScenarioDTO, LoadScenarioRequest

SEE ALSO:
  - handlers.go: Uses these types
  - factory/session.go: SessionJSON and FeeConfigJSON
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/club-settlement/settlement"
)

const dateLayout = "2006-01-02"

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// SessionDTO represents a session in API responses.
type SessionDTO struct {
	ID                  string                      `json:"id"`
	Date                string                      `json:"date"`
	Topic               string                      `json:"topic"`
	Games               []settlement.Game           `json:"games"`
	FeeConfig           settlement.SessionFeeConfig `json:"fee_config"`
	FeeMode             settlement.FeeMode          `json:"fee_mode"`
	PaidStatus          map[string]bool             `json:"paid_status"`
	RankingSaved        bool                        `json:"ranking_saved"`
	PaymentHistorySaved bool                        `json:"payment_history_saved"`
	UpdatedAt           time.Time                   `json:"updated_at"`
}

// CalculationDTO is the per-player settlement of a session, in
// first-appearance order.
type CalculationDTO struct {
	SessionID    string                       `json:"session_id"`
	FeeMode      settlement.FeeMode           `json:"fee_mode"`
	Players      []settlement.PlayerMatchStat `json:"players"`
	TotalOverall decimal.Decimal              `json:"total_overall"`
	Warnings     []string                     `json:"warnings,omitempty"`
}

// RankingSaveDTO reports what a ranking save wrote.
type RankingSaveDTO struct {
	SessionID    string                             `json:"session_id"`
	Month        settlement.MonthKey                `json:"month"`
	AlreadySaved bool                               `json:"already_saved"`
	Entries      map[string]settlement.RankingEntry `json:"entries"`
}

// StandingsDTO is a month's ranking table.
type StandingsDTO struct {
	Month       settlement.MonthKey `json:"month"`
	LastUpdated *time.Time          `json:"last_updated,omitempty"`
	Players     []StandingDTO       `json:"players"`
}

// StandingDTO is one row of the ranking table.
type StandingDTO struct {
	Rank       int    `json:"rank"`
	Name       string `json:"name"`
	Level      string `json:"level,omitempty"`
	Wins       int    `json:"wins"`
	Score      int    `json:"score"`
	TotalGames int    `json:"total_games"`
	TotalBalls int    `json:"total_balls"`
}

// PaymentHistoryDTO is a saved payment snapshot.
type PaymentHistoryDTO struct {
	SessionID    string                       `json:"session_id"`
	MatchDate    string                       `json:"match_date"`
	Topic        string                       `json:"topic"`
	TotalOverall decimal.Decimal              `json:"total_overall"`
	MembersData  []settlement.PlayerMatchStat `json:"members_data"`
	FeeConfig    settlement.SessionFeeConfig  `json:"fee_config"`
	SavedAt      time.Time                    `json:"saved_at"`
}

// SetPaidRequest is the body of PUT /api/sessions/{id}/paid/{player}.
type SetPaidRequest struct {
	Paid *bool `json:"paid"`
}

// PaidStatusDTO is the session's paid map after a toggle.
type PaidStatusDTO struct {
	SessionID  string          `json:"session_id"`
	Player     string          `json:"player"`
	Paid       bool            `json:"paid"`
	PaidStatus map[string]bool `json:"paid_status"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	FeeMode     string `json:"fee_mode"`
}

// LoadScenarioRequest selects a scenario to seed.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toSessionDTO(s *settlement.Session) SessionDTO {
	games := s.Games
	if games == nil {
		games = []settlement.Game{}
	}
	paid := s.PaidStatus
	if paid == nil {
		paid = map[string]bool{}
	}
	return SessionDTO{
		ID:                  string(s.ID),
		Date:                s.Date.Format(dateLayout),
		Topic:               s.Topic,
		Games:               games,
		FeeConfig:           s.FeeConfig,
		FeeMode:             s.FeeConfig.ActiveMode(),
		PaidStatus:          paid,
		RankingSaved:        s.RankingSaved,
		PaymentHistorySaved: s.PaymentHistorySaved,
		UpdatedAt:           s.UpdatedAt,
	}
}

func toCalculationDTO(id settlement.SessionID, res settlement.CalculationResult) CalculationDTO {
	dto := CalculationDTO{
		SessionID:    string(id),
		FeeMode:      res.FeeMode,
		Players:      res.Players(),
		TotalOverall: res.TotalOverall(),
	}
	for _, m := range res.FeeConfig.ConflictingModes() {
		dto.Warnings = append(dto.Warnings, "ignored "+string(m)+" court fee; "+string(res.FeeMode)+" takes priority")
	}
	return dto
}

func toStandingsDTO(ledger settlement.MonthlyRanking, rows []settlement.RankedPlayer) StandingsDTO {
	dto := StandingsDTO{Month: ledger.Month, Players: make([]StandingDTO, len(rows))}
	if !ledger.LastUpdated.IsZero() {
		t := ledger.LastUpdated
		dto.LastUpdated = &t
	}
	for i, r := range rows {
		dto.Players[i] = StandingDTO{
			Rank:       r.Rank,
			Name:       r.Name,
			Level:      r.Entry.Level,
			Wins:       r.Entry.Wins,
			Score:      r.Entry.Score,
			TotalGames: r.Entry.TotalGames,
			TotalBalls: r.Entry.TotalBalls,
		}
	}
	return dto
}

func toPaymentHistoryDTO(rec *settlement.PaymentHistoryRecord) PaymentHistoryDTO {
	return PaymentHistoryDTO{
		SessionID:    string(rec.SessionID),
		MatchDate:    rec.MatchDate.Format(dateLayout),
		Topic:        rec.Topic,
		TotalOverall: rec.TotalOverall,
		MembersData:  rec.MembersData,
		FeeConfig:    rec.FeeConfig,
		SavedAt:      rec.SavedAt,
	}
}
