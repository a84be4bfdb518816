/*
fee.go - Court fee allocation policy

PURPOSE:
  Splits the court cost of a session among its players under one of three
  modes. The first mode whose field holds a usable value wins:

    1. fixed_per_person  FixedCourtFeePerPerson > 0   ceil(fixed) for everyone
    2. per_game          CourtFeePerGame > 0          ceil(games * perGame)
    3. total_split       CourtFeeTotal >= 0           ceil(total / players)

  The UI is expected to keep only one field filled, but the policy does not
  enforce that: extra fields are ignored by priority. ConflictingModes lets
  callers surface a warning.

ROUNDING:
  Every per-player amount rounds up to the next whole currency unit so the
  club never under-collects.
*/
package settlement

import (
	"github.com/shopspring/decimal"
)

type FeeMode string

const (
	FeeModeNone           FeeMode = ""
	FeeModeFixedPerPerson FeeMode = "fixed_per_person"
	FeeModePerGame        FeeMode = "per_game"
	FeeModeTotalSplit     FeeMode = "total_split"
)

// ActiveMode returns the court fee mode selected by priority order.
func (c SessionFeeConfig) ActiveMode() FeeMode {
	switch {
	case positive(c.FixedCourtFeePerPerson):
		return FeeModeFixedPerPerson
	case positive(c.CourtFeePerGame):
		return FeeModePerGame
	case c.CourtFeeTotal != nil && !c.CourtFeeTotal.IsNegative():
		return FeeModeTotalSplit
	default:
		return FeeModeNone
	}
}

// ConflictingModes lists the modes that carry a positive value but lose to
// the active mode.
func (c SessionFeeConfig) ConflictingModes() []FeeMode {
	active := c.ActiveMode()
	var out []FeeMode
	if positive(c.FixedCourtFeePerPerson) && active != FeeModeFixedPerPerson {
		out = append(out, FeeModeFixedPerPerson)
	}
	if positive(c.CourtFeePerGame) && active != FeeModePerGame {
		out = append(out, FeeModePerGame)
	}
	if positive(c.CourtFeeTotal) && active != FeeModeTotalSplit {
		out = append(out, FeeModeTotalSplit)
	}
	return out
}

// Validate checks the non-court fields and that a court fee mode resolves.
// Any present field must be non-negative.
func (c SessionFeeConfig) Validate() error {
	if err := c.validateAmounts(); err != nil {
		return err
	}
	if c.ActiveMode() == FeeModeNone {
		return &ValidationError{Field: "court_fee", Reason: "no court fee mode selected", Err: ErrNoFeeModeSelected}
	}
	return nil
}

func (c SessionFeeConfig) validateAmounts() error {
	optional := []struct {
		field string
		value *decimal.Decimal
	}{
		{"court_fee_total", c.CourtFeeTotal},
		{"court_fee_per_game", c.CourtFeePerGame},
		{"fixed_court_fee_per_person", c.FixedCourtFeePerPerson},
	}
	for _, f := range optional {
		if f.value != nil && f.value.IsNegative() {
			return &ValidationError{Field: f.field, Reason: "must not be negative"}
		}
	}
	if c.BallPrice.IsNegative() {
		return &ValidationError{Field: "ball_price", Reason: "must not be negative"}
	}
	if c.OrganizeFee.IsNegative() {
		return &ValidationError{Field: "organize_fee", Reason: "must not be negative"}
	}
	return nil
}

// CourtFeeAllocation is the court cost assigned to each player.
type CourtFeeAllocation struct {
	Mode      FeeMode
	PerPlayer map[string]decimal.Decimal
}

// AllocateCourtFees applies the active court fee mode. gamesPlayed must hold
// every player that should be charged; distinctPlayers is the divisor of the
// total_split mode.
func AllocateCourtFees(cfg SessionFeeConfig, gamesPlayed map[string]int, distinctPlayers int) (CourtFeeAllocation, error) {
	mode := cfg.ActiveMode()
	alloc := CourtFeeAllocation{Mode: mode, PerPlayer: make(map[string]decimal.Decimal, len(gamesPlayed))}

	switch mode {
	case FeeModeFixedPerPerson:
		cost := cfg.FixedCourtFeePerPerson.Ceil()
		for player := range gamesPlayed {
			alloc.PerPlayer[player] = cost
		}
	case FeeModePerGame:
		for player, games := range gamesPlayed {
			alloc.PerPlayer[player] = decimal.NewFromInt(int64(games)).Mul(*cfg.CourtFeePerGame).Ceil()
		}
	case FeeModeTotalSplit:
		if distinctPlayers <= 0 {
			return alloc, nil
		}
		cost := ceilDiv(*cfg.CourtFeeTotal, decimal.NewFromInt(int64(distinctPlayers)))
		for player := range gamesPlayed {
			alloc.PerPlayer[player] = cost
		}
	default:
		return CourtFeeAllocation{Mode: FeeModeNone}, ErrNoFeeModeSelected
	}
	return alloc, nil
}

// ceilDiv divides exactly and rounds up, avoiding the fixed precision of Div.
func ceilDiv(a, b decimal.Decimal) decimal.Decimal {
	q, r := a.QuoRem(b, 0)
	if r.IsPositive() {
		q = q.Add(decimal.NewFromInt(1))
	}
	return q
}

func positive(d *decimal.Decimal) bool {
	return d != nil && d.IsPositive()
}
