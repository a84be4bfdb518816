/*
scenarios_test.go - Unit tests for demo scenarios

PURPOSE:
	Each scenario must load into a session that calculates cleanly with the
	fee mode it advertises.
*/
package api

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/club-settlement/settlement"
)

func TestScenarios_AllCalculate(t *testing.T) {
	for _, sc := range scenarios {
		t.Run(sc.ID, func(t *testing.T) {
			// GIVEN: the scenario's session
			session, ok := scenarioSession(sc.ID, time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC))
			require.True(t, ok)

			// WHEN: calculated
			res, err := settlement.Calculate(session.Games, session.FeeConfig, session.PaidStatus)

			// THEN: the advertised fee mode is used
			require.NoError(t, err)
			assert.Equal(t, settlement.FeeMode(sc.FeeMode), res.FeeMode)
			assert.Empty(t, session.FeeConfig.ConflictingModes())
			assert.Equal(t, time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC), session.Date)
		})
	}
}

func TestScenario_FixedFeeMatchesWorkedExample(t *testing.T) {
	session, ok := scenarioSession("fixed-fee", time.Now())
	require.True(t, ok)

	res, err := settlement.Calculate(session.Games, session.FeeConfig, nil)

	require.NoError(t, err)
	for _, name := range []string{"X", "Y", "Z"} {
		assert.True(t, res.Stats[name].Total.Equal(decimal.NewFromInt(40)), name)
	}
}

func TestScenario_SplitTotal(t *testing.T) {
	session, ok := scenarioSession("split-total", time.Now())
	require.True(t, ok)

	res, err := settlement.Calculate(session.Games, session.FeeConfig, nil)

	// 400 over 6 players = 66.67 -> 67 each
	require.NoError(t, err)
	require.Len(t, res.Stats, 6)
	for name, st := range res.Stats {
		assert.True(t, st.CourtCostPerPerson.Equal(decimal.NewFromInt(67)), name)
	}
}

func TestScenario_Unknown(t *testing.T) {
	_, ok := scenarioSession("nope", time.Now())
	assert.False(t, ok)
}

func TestLoadScenario_ViaAPI(t *testing.T) {
	router := setupSQLiteRouter(t)

	rec := do(t, router, http.MethodGet, "/api/scenarios", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []ScenarioDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Len(t, listed, len(scenarios))

	rec = do(t, router, http.MethodPost, "/api/scenarios/load", `{"scenario_id": "per-game"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	loaded := decode[SessionDTO](t, rec)
	assert.Equal(t, "demo-per-game", loaded.ID)
	assert.Len(t, loaded.Games, 4)

	rec = do(t, router, http.MethodPost, "/api/sessions/demo-per-game/calculate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	calc := decode[CalculationDTO](t, rec)
	assert.Equal(t, settlement.FeeModePerGame, calc.FeeMode)
	assert.Equal(t, "B", calc.Players[0].Level)

	rec = do(t, router, http.MethodPost, "/api/scenarios/load", `{"scenario_id": "nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
