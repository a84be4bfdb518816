/*
Package factory converts JSON session documents into settlement types.

PURPOSE:
  Session documents are typed in by hand on the court and have been stored
  by older versions of the club app, so the decoder is lenient about shape
  and strict about money:
    - slots may be a bare name or {"player": ..., "level": ...}
    - snake_case and the legacy camelCase field names are both accepted
    - balls_used accepts a number or a numeric string; anything else is 0
    - result is case-insensitive; unknown values mean "not played"
    - fee amounts accept numbers or numeric strings; "" and null mean absent,
      any other text is a validation error

JSON SCHEMA:
  {
    "id": "2026-03-12",
    "date": "2026-03-12",
    "topic": "Thursday doubles",
    "games": [
      {"team_a1": {"player": "An", "level": "B"}, "team_a2": "Binh",
       "team_b1": "Chi", "team_b2": "Dung", "balls_used": "3", "result": "a"}
    ],
    "fee_config": {"court_fee_total": 400, "ball_price": "25", "organize_fee": 10}
  }

USAGE:
  f := factory.NewSessionFactory()
  session, err := f.ParseSession(body)
  cfg, err := f.ParseFeeConfig(body)

SEE ALSO:
  - settlement/types.go: Session, Game and SessionFeeConfig
*/
package factory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/club-settlement/settlement"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// SessionJSON is the wire form of a session.
type SessionJSON struct {
	ID         string          `json:"id"`
	Date       string          `json:"date"`
	Topic      string          `json:"topic"`
	Games      []GameJSON      `json:"games"`
	FeeConfig  FeeConfigJSON   `json:"fee_config"`
	PaidStatus map[string]bool `json:"paid_status,omitempty"`
}

// SlotJSON accepts either "name" or {"player": "name", "level": "B"}.
type SlotJSON struct {
	Player string `json:"player,omitempty"`
	Level  string `json:"level,omitempty"`
}

func (s *SlotJSON) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = SlotJSON{}
		return nil
	}
	if data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*s = SlotJSON{Player: name}
		return nil
	}
	var obj struct {
		Player   string `json:"player"`
		Name     string `json:"name"`
		Level    string `json:"level"`
		LevelTag string `json:"levelTag"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*s = SlotJSON{Player: firstNonEmpty(obj.Player, obj.Name), Level: firstNonEmpty(obj.Level, obj.LevelTag)}
	return nil
}

// GameJSON is one game row.
type GameJSON struct {
	TeamA1    SlotJSON
	TeamA2    SlotJSON
	TeamB1    SlotJSON
	TeamB2    SlotJSON
	BallsUsed LooseInt
	Result    string
}

func (g *GameJSON) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*g = GameJSON{}
	slots := []struct {
		dst  *SlotJSON
		keys []string
	}{
		{&g.TeamA1, []string{"team_a1", "teamASlot1"}},
		{&g.TeamA2, []string{"team_a2", "teamASlot2"}},
		{&g.TeamB1, []string{"team_b1", "teamBSlot1"}},
		{&g.TeamB2, []string{"team_b2", "teamBSlot2"}},
	}
	for _, s := range slots {
		if raw := pick(fields, s.keys...); raw != nil {
			if err := json.Unmarshal(raw, s.dst); err != nil {
				return fmt.Errorf("%s: %w", s.keys[0], err)
			}
		}
	}
	if raw := pick(fields, "balls_used", "ballsUsed"); raw != nil {
		if err := json.Unmarshal(raw, &g.BallsUsed); err != nil {
			return err
		}
	}
	if raw := pick(fields, "result"); raw != nil {
		// Non-string results are treated as not played.
		_ = json.Unmarshal(raw, &g.Result)
	}
	return nil
}

func (g GameJSON) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"team_a1":    g.TeamA1,
		"team_a2":    g.TeamA2,
		"team_b1":    g.TeamB1,
		"team_b2":    g.TeamB2,
		"balls_used": int(g.BallsUsed),
		"result":     g.Result,
	})
}

// FeeConfigJSON holds the raw fee fields until they are validated.
type FeeConfigJSON struct {
	CourtFeeTotal          Amount
	CourtFeePerGame        Amount
	FixedCourtFeePerPerson Amount
	BallPrice              Amount
	OrganizeFee            Amount
}

func (f *FeeConfigJSON) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*f = FeeConfigJSON{}
	amounts := []struct {
		dst  *Amount
		keys []string
	}{
		{&f.CourtFeeTotal, []string{"court_fee_total", "courtFeeTotal"}},
		{&f.CourtFeePerGame, []string{"court_fee_per_game", "courtFeePerGame"}},
		{&f.FixedCourtFeePerPerson, []string{"fixed_court_fee_per_person", "fixedCourtFeePerPerson"}},
		{&f.BallPrice, []string{"ball_price", "ballPrice"}},
		{&f.OrganizeFee, []string{"organize_fee", "organizeFee"}},
	}
	for _, a := range amounts {
		a.dst.field = a.keys[0]
		if raw := pick(fields, a.keys...); raw != nil {
			if err := a.dst.UnmarshalJSON(raw); err != nil {
				return err
			}
		}
	}
	return nil
}

// =============================================================================
// LOOSE SCALARS
// =============================================================================

// LooseInt decodes a number or numeric string. Anything else decodes as 0.
type LooseInt int

func (n *LooseInt) UnmarshalJSON(data []byte) error {
	*n = 0
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	*n = LooseInt(math.Trunc(f))
	return nil
}

// Amount is an optional money value. null, "" and a missing key are absent.
// Text that is not a number is kept so it can be reported by field name.
type Amount struct {
	Value   *decimal.Decimal
	invalid string
	field   string
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	a.Value, a.invalid = nil, ""
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	text := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return nil
		}
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		a.invalid = text
		return nil
	}
	a.Value = &d
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	if a.Value == nil {
		return []byte("null"), nil
	}
	return []byte(a.Value.String()), nil
}

func (a Amount) resolve() (*decimal.Decimal, error) {
	if a.invalid != "" {
		return nil, &settlement.ValidationError{Field: a.field, Reason: fmt.Sprintf("%q is not a number", a.invalid)}
	}
	return a.Value, nil
}

// =============================================================================
// SESSION FACTORY
// =============================================================================

// SessionFactory converts JSON session documents to settlement types.
type SessionFactory struct{}

// NewSessionFactory creates a new session factory.
func NewSessionFactory() *SessionFactory {
	return &SessionFactory{}
}

// ParseSession parses a JSON session document.
func (f *SessionFactory) ParseSession(data []byte) (settlement.Session, error) {
	var sj SessionJSON
	if err := json.Unmarshal(data, &sj); err != nil {
		return settlement.Session{}, &settlement.ValidationError{Field: "body", Reason: err.Error()}
	}
	return f.FromJSON(sj)
}

// ParseFeeConfig parses a standalone fee configuration object.
func (f *SessionFactory) ParseFeeConfig(data []byte) (settlement.SessionFeeConfig, error) {
	var fj FeeConfigJSON
	if err := json.Unmarshal(data, &fj); err != nil {
		return settlement.SessionFeeConfig{}, &settlement.ValidationError{Field: "body", Reason: err.Error()}
	}
	return feeConfigFromJSON(fj)
}

// FromJSON converts SessionJSON to a settlement.Session.
func (f *SessionFactory) FromJSON(sj SessionJSON) (settlement.Session, error) {
	date, err := parseDate(sj.Date)
	if err != nil {
		return settlement.Session{}, err
	}
	fees, err := feeConfigFromJSON(sj.FeeConfig)
	if err != nil {
		return settlement.Session{}, err
	}

	session := settlement.Session{
		ID:         settlement.SessionID(strings.TrimSpace(sj.ID)),
		Date:       date,
		Topic:      strings.TrimSpace(sj.Topic),
		FeeConfig:  fees,
		PaidStatus: sj.PaidStatus,
		Games:      make([]settlement.Game, 0, len(sj.Games)),
	}
	for _, gj := range sj.Games {
		session.Games = append(session.Games, settlement.Game{
			TeamA1:    slotFromJSON(gj.TeamA1),
			TeamA2:    slotFromJSON(gj.TeamA2),
			TeamB1:    slotFromJSON(gj.TeamB1),
			TeamB2:    slotFromJSON(gj.TeamB2),
			BallsUsed: int(gj.BallsUsed),
			Result:    ParseResult(gj.Result),
		})
	}
	return session, nil
}

// ParseResult normalizes a result label. Unknown labels mean the game has no result.
func ParseResult(s string) settlement.Result {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "A", "TEAM_A", "TEAMA":
		return settlement.ResultTeamA
	case "B", "TEAM_B", "TEAMB":
		return settlement.ResultTeamB
	case "DRAW", "D", "TIE":
		return settlement.ResultDraw
	default:
		return settlement.ResultNone
	}
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func feeConfigFromJSON(fj FeeConfigJSON) (settlement.SessionFeeConfig, error) {
	var cfg settlement.SessionFeeConfig
	optional := []struct {
		src Amount
		dst **decimal.Decimal
	}{
		{fj.CourtFeeTotal, &cfg.CourtFeeTotal},
		{fj.CourtFeePerGame, &cfg.CourtFeePerGame},
		{fj.FixedCourtFeePerPerson, &cfg.FixedCourtFeePerPerson},
	}
	for _, o := range optional {
		v, err := o.src.resolve()
		if err != nil {
			return cfg, err
		}
		*o.dst = v
	}

	required := []struct {
		src Amount
		dst *decimal.Decimal
	}{
		{fj.BallPrice, &cfg.BallPrice},
		{fj.OrganizeFee, &cfg.OrganizeFee},
	}
	for _, r := range required {
		v, err := r.src.resolve()
		if err != nil {
			return cfg, err
		}
		if v != nil {
			*r.dst = *v
		}
	}
	return cfg, nil
}

func slotFromJSON(sj SlotJSON) settlement.Slot {
	return settlement.Slot{Player: strings.TrimSpace(sj.Player), Level: strings.TrimSpace(sj.Level)}
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if d, err := time.Parse("2006-01-02", s); err == nil {
		return d, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, &settlement.ValidationError{Field: "date", Reason: fmt.Sprintf("%q is not a YYYY-MM-DD date", s)}
}

func pick(fields map[string]json.RawMessage, keys ...string) json.RawMessage {
	for _, k := range keys {
		if raw, ok := fields[k]; ok {
			return raw
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
