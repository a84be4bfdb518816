/*
Package settlement provides the match settlement engine for a badminton club.

PURPOSE:
  Given the games played in one session and the session's fee settings, the
  engine computes what each player owes and how they performed, then rolls the
  result into two persisted ledgers with deliberately different semantics:
  an additive monthly ranking and an overwrite-per-session payment history.

KEY CONCEPTS IN THIS FILE (types.go):
  - Game: one doubles match with up to four player slots
  - SessionFeeConfig: court fee mode, ball price, organize fee
  - Session: the document an operator edits (games, fees, paid flags)
  - PlayerMatchStat: derived per-player numbers, never persisted on its own

DESIGN PRINCIPLES:
  1. Pure calculation: Calculate and AllocateCourtFees take explicit inputs
  2. Precision: money uses decimal.Decimal, every charge rounds up
  3. Distinct contracts: ranking accumulates, payment history overwrites

SEE ALSO:
  - fee.go: court fee allocation policy
  - stats.go: per-player statistics
  - ranking.go / payment.go / paid.go: persisted operations
*/
package settlement

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// OperatorID is the opaque storage-path prefix of the operator account.
type OperatorID string

type SessionID string

// =============================================================================
// GAME
// =============================================================================

type Result string

const (
	ResultNone  Result = ""
	ResultTeamA Result = "A"
	ResultTeamB Result = "B"
	ResultDraw  Result = "DRAW"
)

// Slot is one position on a team. An empty Player means the slot is unused.
type Slot struct {
	Player string `json:"player,omitempty"`
	Level  string `json:"level,omitempty"`
}

// Occupied reports whether a player sits in the slot.
func (s Slot) Occupied() bool { return s.name() != "" }

func (s Slot) name() string  { return strings.TrimSpace(s.Player) }
func (s Slot) level() string { return strings.TrimSpace(s.Level) }

type Game struct {
	TeamA1    Slot   `json:"team_a1"`
	TeamA2    Slot   `json:"team_a2"`
	TeamB1    Slot   `json:"team_b1"`
	TeamB2    Slot   `json:"team_b2"`
	BallsUsed int    `json:"balls_used"`
	Result    Result `json:"result,omitempty"`
}

// TeamA returns the occupied team A slots in slot order.
func (g Game) TeamA() []Slot { return occupied(g.TeamA1, g.TeamA2) }

// TeamB returns the occupied team B slots in slot order.
func (g Game) TeamB() []Slot { return occupied(g.TeamB1, g.TeamB2) }

// Participants returns every occupied slot: A1, A2, B1, B2.
func (g Game) Participants() []Slot { return occupied(g.TeamA1, g.TeamA2, g.TeamB1, g.TeamB2) }

func occupied(slots ...Slot) []Slot {
	out := make([]Slot, 0, len(slots))
	for _, s := range slots {
		if s.Occupied() {
			out = append(out, s)
		}
	}
	return out
}

// balls treats negative counts the same as a missing value.
func (g Game) balls() int {
	if g.BallsUsed < 0 {
		return 0
	}
	return g.BallsUsed
}

// =============================================================================
// SESSION
// =============================================================================

// SessionFeeConfig holds the money inputs of a session. The three court fee
// fields are optional; nil means the operator left the field empty.
type SessionFeeConfig struct {
	CourtFeeTotal          *decimal.Decimal `json:"court_fee_total,omitempty"`
	CourtFeePerGame        *decimal.Decimal `json:"court_fee_per_game,omitempty"`
	FixedCourtFeePerPerson *decimal.Decimal `json:"fixed_court_fee_per_person,omitempty"`
	BallPrice              decimal.Decimal  `json:"ball_price"`
	OrganizeFee            decimal.Decimal  `json:"organize_fee"`
}

type Session struct {
	ID                  SessionID        `json:"id"`
	Date                time.Time        `json:"date"`
	Topic               string           `json:"topic"`
	Games               []Game           `json:"games"`
	FeeConfig           SessionFeeConfig `json:"fee_config"`
	PaidStatus          map[string]bool  `json:"paid_status"`
	RankingSaved        bool             `json:"ranking_saved"`
	PaymentHistorySaved bool             `json:"payment_history_saved"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

// Clone returns a deep copy so stores never share maps or slices with callers.
func (s Session) Clone() Session {
	out := s
	out.Games = append([]Game(nil), s.Games...)
	out.PaidStatus = make(map[string]bool, len(s.PaidStatus))
	for k, v := range s.PaidStatus {
		out.PaidStatus[k] = v
	}
	out.FeeConfig = s.FeeConfig.Clone()
	return out
}

// Clone copies the optional pointer fields.
func (c SessionFeeConfig) Clone() SessionFeeConfig {
	out := c
	out.CourtFeeTotal = cloneDecimal(c.CourtFeeTotal)
	out.CourtFeePerGame = cloneDecimal(c.CourtFeePerGame)
	out.FixedCourtFeePerPerson = cloneDecimal(c.FixedCourtFeePerPerson)
	return out
}

func cloneDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}

// Dec is a convenience for building optional fee fields.
func Dec(v float64) *decimal.Decimal {
	d := decimal.NewFromFloat(v)
	return &d
}

// =============================================================================
// DERIVED STATS
// =============================================================================

// PlayerMatchStat is recomputed from scratch on every calculation.
type PlayerMatchStat struct {
	Name                 string          `json:"name"`
	Level                string          `json:"level"`
	TotalGames           int             `json:"total_games"`
	TotalBalls           int             `json:"total_balls"`
	Wins                 int             `json:"wins"`
	Score                int             `json:"score"`
	BallCost             decimal.Decimal `json:"ball_cost"`
	CourtCostPerPerson   decimal.Decimal `json:"court_cost_per_person"`
	OrganizeFeePerPerson decimal.Decimal `json:"organize_fee_per_person"`
	Total                decimal.Decimal `json:"total"`
	IsPaid               bool            `json:"is_paid"`
}

// CalculationResult is the output of Calculate. Order lists players by first
// appearance in the game list so exports and listings are stable.
type CalculationResult struct {
	Stats      map[string]PlayerMatchStat
	Order      []string
	FeeMode    FeeMode
	FeeConfig  SessionFeeConfig
	Calculated bool
}

// Players returns the stats in first-appearance order.
func (r CalculationResult) Players() []PlayerMatchStat {
	out := make([]PlayerMatchStat, 0, len(r.Order))
	for _, name := range r.Order {
		if st, ok := r.Stats[name]; ok {
			out = append(out, st)
		}
	}
	return out
}

// TotalOverall is the rounded-up sum of every player's total.
func (r CalculationResult) TotalOverall() decimal.Decimal {
	sum := decimal.Zero
	for _, st := range r.Stats {
		sum = sum.Add(st.Total)
	}
	return sum.Ceil()
}
