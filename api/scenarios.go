/*
scenarios.go - Demo sessions for testing and demonstrations

PURPOSE:
  Seeds a ready-made session for the calling operator so the calculate,
  ranking, payment history and paid flows can be tried without typing a
  game sheet. Each scenario exercises one court fee mode.

AVAILABLE SCENARIOS:
  fixed-fee:    fixed court fee per person, the single-game worked example
  per-game:     court fee charged per game played
  split-total:  one court bill split evenly, with a draw and an uneven rota

HOW SCENARIOS WORK:
  The session document is written with SaveSession under a fixed id
  ("demo-<scenario>"), replacing any earlier copy. Paid flags and saved
  flags start cleared. Ranking and payment records are not touched.

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "per-game"}

SEE ALSO:
  - handlers.go: session and settlement handlers
*/
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/club-settlement/settlement"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "fixed-fee",
		Name:        "Fixed Court Fee",
		Description: "One game, three players, fixed 20 court fee per person",
		FeeMode:     string(settlement.FeeModeFixedPerPerson),
	},
	{
		ID:          "per-game",
		Name:        "Court Fee Per Game",
		Description: "Four doubles games, players charged 7.5 for each game they played",
		FeeMode:     string(settlement.FeeModePerGame),
	},
	{
		ID:          "split-total",
		Name:        "Split Court Bill",
		Description: "A 400 court bill split evenly across everyone who played",
		FeeMode:     string(settlement.FeeModeTotalSplit),
	},
}

// ListScenarios returns available scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario seeds a demo session for the calling operator.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	op, ok := h.operator(w, r)
	if !ok {
		return
	}
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	session, ok := scenarioSession(req.ScenarioID, time.Now().UTC())
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	if err := h.Service.Store.SaveSession(r.Context(), op, session); err != nil {
		h.writeServiceError(w, r, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	stored, err := h.Service.GetSession(r.Context(), op, session.ID)
	if err != nil {
		h.writeServiceError(w, r, "Failed to load scenario", err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(stored))
}

// =============================================================================
// SCENARIO SESSIONS
// =============================================================================

// scenarioSession builds the demo session dated on today's calendar day.
func scenarioSession(id string, now time.Time) (settlement.Session, bool) {
	session := settlement.Session{
		ID:         settlement.SessionID("demo-" + id),
		Date:       time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
		PaidStatus: map[string]bool{},
	}

	switch id {
	case "fixed-fee":
		session.Topic = "Fixed fee demo"
		session.Games = []settlement.Game{
			demoGame("X", "Y", "Z", "", 2, settlement.ResultTeamA),
		}
		session.FeeConfig = settlement.SessionFeeConfig{
			FixedCourtFeePerPerson: settlement.Dec(20),
			BallPrice:              decimal.NewFromInt(5),
			OrganizeFee:            decimal.NewFromInt(10),
		}

	case "per-game":
		session.Topic = "Per game demo"
		session.Games = []settlement.Game{
			demoGame("An", "Binh", "Chi", "Dung", 3, settlement.ResultTeamA),
			demoGame("An", "Chi", "Binh", "Em", 2, settlement.ResultTeamB),
			demoGame("Dung", "Em", "An", "Binh", 4, settlement.ResultDraw),
			demoGame("Chi", "Em", "Dung", "", 1, settlement.ResultTeamA),
		}
		session.Games[0].TeamA1.Level = "B"
		session.Games[0].TeamB1.Level = "C"
		session.FeeConfig = settlement.SessionFeeConfig{
			CourtFeePerGame: settlement.Dec(7.5),
			BallPrice:       decimal.NewFromInt(25),
			OrganizeFee:     decimal.NewFromInt(5),
		}

	case "split-total":
		session.Topic = "Split bill demo"
		session.Games = []settlement.Game{
			demoGame("An", "Binh", "Chi", "Dung", 3, settlement.ResultTeamB),
			demoGame("An", "Em", "Giang", "Binh", 2, settlement.ResultDraw),
			demoGame("Em", "Giang", "Chi", "Dung", 3, settlement.ResultTeamA),
		}
		session.FeeConfig = settlement.SessionFeeConfig{
			CourtFeeTotal: settlement.Dec(400),
			BallPrice:     decimal.NewFromInt(25),
			OrganizeFee:   decimal.NewFromInt(0),
		}

	default:
		return settlement.Session{}, false
	}
	return session, true
}

func demoGame(a1, a2, b1, b2 string, balls int, result settlement.Result) settlement.Game {
	return settlement.Game{
		TeamA1:    settlement.Slot{Player: a1},
		TeamA2:    settlement.Slot{Player: a2},
		TeamB1:    settlement.Slot{Player: b1},
		TeamB2:    settlement.Slot{Player: b2},
		BallsUsed: balls,
		Result:    result,
	}
}
