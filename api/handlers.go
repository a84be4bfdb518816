/*
handlers.go - HTTP API handlers for the match settlement engine

PURPOSE:
  Exposes the settlement engine via REST API. Handles HTTP request/response
  and JSON serialization, and delegates to settlement.Service.

ENDPOINTS:
  Sessions:
    POST   /api/sessions                       Create session
    GET    /api/sessions/{id}                  Get session
    PUT    /api/sessions/{id}                  Replace date/topic/games/fees

  Settlement:
    POST   /api/sessions/{id}/calculate        Per-player stats and costs
    POST   /api/sessions/{id}/ranking          Add results to the monthly ranking
    POST   /api/sessions/{id}/payment-history  Save the payment snapshot
    GET    /api/sessions/{id}/payment-history  Read the payment snapshot
    PUT    /api/sessions/{id}/paid/{player}    Mark a player paid or unpaid

  Rankings:
    GET    /api/rankings/{month}               Month table, month as MM-YYYY

STATELESS CALCULATION:
  The ranking and payment endpoints recalculate from the stored session.
  calculate, ranking and payment-history all accept an optional fee
  configuration body that overrides the stored one for that request.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Session, payment history or operator not found
  - 500: Store failures

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/warp/club-settlement/factory"
	"github.com/warp/club-settlement/settlement"
)

const maxBodyBytes = 1 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service  *settlement.Service
	Identity settlement.IdentityResolver
	Sessions *factory.SessionFactory
	Logger   *log.Logger
}

// NewHandler creates a new handler around svc. The operator is read from the
// request context, where OperatorHeader puts it.
func NewHandler(svc *settlement.Service) *Handler {
	return &Handler{
		Service:  svc,
		Identity: settlement.ContextIdentity{},
		Sessions: factory.NewSessionFactory(),
		Logger:   log.Default().WithPrefix("api"),
	}
}

// =============================================================================
// SESSION HANDLERS
// =============================================================================

// CreateSession stores a new session.
// POST /api/sessions
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	op, ok := h.operator(w, r)
	if !ok {
		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	session, err := h.Sessions.ParseSession(body)
	if err != nil {
		h.writeServiceError(w, r, "Invalid session", err)
		return
	}

	created, err := h.Service.CreateSession(r.Context(), op, session)
	if err != nil {
		h.writeServiceError(w, r, "Failed to create session", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionDTO(created))
}

// GetSession returns one session.
// GET /api/sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	op, ok := h.operator(w, r)
	if !ok {
		return
	}
	session, err := h.Service.GetSession(r.Context(), op, sessionID(r))
	if err != nil {
		h.writeServiceError(w, r, "Failed to get session", err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(session))
}

// UpdateSession replaces the editable fields of a session.
// PUT /api/sessions/{id}
func (h *Handler) UpdateSession(w http.ResponseWriter, r *http.Request) {
	op, ok := h.operator(w, r)
	if !ok {
		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	edit, err := h.Sessions.ParseSession(body)
	if err != nil {
		h.writeServiceError(w, r, "Invalid session", err)
		return
	}

	updated, err := h.Service.UpdateSession(r.Context(), op, sessionID(r), edit)
	if err != nil {
		h.writeServiceError(w, r, "Failed to update session", err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(updated))
}

// =============================================================================
// SETTLEMENT HANDLERS
// =============================================================================

// Calculate returns per-player stats and costs without saving anything.
// POST /api/sessions/{id}/calculate
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	_, result, ok := h.calculate(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toCalculationDTO(sessionID(r), result))
}

// SaveRanking recalculates the session and adds it to its month's ranking.
// POST /api/sessions/{id}/ranking
func (h *Handler) SaveRanking(w http.ResponseWriter, r *http.Request) {
	op, result, ok := h.calculate(w, r)
	if !ok {
		return
	}
	out, err := h.Service.SaveRanking(r.Context(), op, sessionID(r), result)
	if err != nil {
		h.writeServiceError(w, r, "Failed to save ranking", err)
		return
	}
	writeJSON(w, http.StatusOK, RankingSaveDTO{
		SessionID:    string(sessionID(r)),
		Month:        out.Month,
		AlreadySaved: out.AlreadySaved,
		Entries:      out.Entries,
	})
}

// SavePaymentHistory recalculates the session and overwrites its payment record.
// POST /api/sessions/{id}/payment-history
func (h *Handler) SavePaymentHistory(w http.ResponseWriter, r *http.Request) {
	op, result, ok := h.calculate(w, r)
	if !ok {
		return
	}
	rec, err := h.Service.SavePaymentHistory(r.Context(), op, sessionID(r), result)
	if err != nil {
		h.writeServiceError(w, r, "Failed to save payment history", err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentHistoryDTO(&rec))
}

// GetPaymentHistory returns the saved payment record of a session.
// GET /api/sessions/{id}/payment-history
func (h *Handler) GetPaymentHistory(w http.ResponseWriter, r *http.Request) {
	op, ok := h.operator(w, r)
	if !ok {
		return
	}
	rec, err := h.Service.PaymentHistory(r.Context(), op, sessionID(r))
	if err != nil {
		h.writeServiceError(w, r, "Failed to get payment history", err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentHistoryDTO(rec))
}

// SetPaid marks one player paid or unpaid.
// PUT /api/sessions/{id}/paid/{player}
func (h *Handler) SetPaid(w http.ResponseWriter, r *http.Request) {
	op, ok := h.operator(w, r)
	if !ok {
		return
	}
	var req SetPaidRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Paid == nil {
		writeError(w, http.StatusBadRequest, "paid is required", nil)
		return
	}
	player := chi.URLParam(r, "player")
	if player == "" {
		writeError(w, http.StatusBadRequest, "player is required", nil)
		return
	}

	tracker, err := h.Service.NewPaidTracker(r.Context(), op, sessionID(r))
	if err != nil {
		h.writeServiceError(w, r, "Failed to load session", err)
		return
	}
	if err := tracker.SetPaid(r.Context(), player, *req.Paid); err != nil {
		h.writeServiceError(w, r, "Failed to update paid status", err)
		return
	}
	writeJSON(w, http.StatusOK, PaidStatusDTO{
		SessionID:  string(sessionID(r)),
		Player:     player,
		Paid:       tracker.IsPaid(player),
		PaidStatus: tracker.Status(),
	})
}

// =============================================================================
// RANKING HANDLERS
// =============================================================================

// GetStandings returns the ranking table of a month.
// GET /api/rankings/{month}
func (h *Handler) GetStandings(w http.ResponseWriter, r *http.Request) {
	op, ok := h.operator(w, r)
	if !ok {
		return
	}
	month, err := settlement.ParseMonthKey(chi.URLParam(r, "month"))
	if err != nil {
		h.writeServiceError(w, r, "Invalid month", err)
		return
	}
	ledger, rows, err := h.Service.MonthlyStandings(r.Context(), op, month)
	if err != nil {
		h.writeServiceError(w, r, "Failed to get ranking", err)
		return
	}
	writeJSON(w, http.StatusOK, toStandingsDTO(ledger, rows))
}

// =============================================================================
// HELPERS
// =============================================================================

// calculate resolves the operator, reads an optional fee override and runs
// the calculation. It writes the error response itself when ok is false.
func (h *Handler) calculate(w http.ResponseWriter, r *http.Request) (settlement.OperatorID, settlement.CalculationResult, bool) {
	op, ok := h.operator(w, r)
	if !ok {
		return "", settlement.CalculationResult{}, false
	}
	body, ok := readBody(w, r)
	if !ok {
		return "", settlement.CalculationResult{}, false
	}

	var override *settlement.SessionFeeConfig
	if len(bytes.TrimSpace(body)) > 0 {
		cfg, err := h.Sessions.ParseFeeConfig(body)
		if err != nil {
			h.writeServiceError(w, r, "Invalid fee configuration", err)
			return "", settlement.CalculationResult{}, false
		}
		override = &cfg
	}

	result, _, err := h.Service.CalculateSession(r.Context(), op, sessionID(r), override)
	if err != nil {
		h.writeServiceError(w, r, "Calculation failed", err)
		return "", settlement.CalculationResult{}, false
	}
	return op, result, true
}

func (h *Handler) operator(w http.ResponseWriter, r *http.Request) (settlement.OperatorID, bool) {
	op, err := h.Identity.Operator(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "Unknown operator", err)
		return "", false
	}
	return op, true
}

func sessionID(r *http.Request) settlement.SessionID {
	return settlement.SessionID(chi.URLParam(r, "id"))
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return nil, false
	}
	return body, true
}

// writeServiceError maps settlement errors to HTTP status codes.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError && h.Logger != nil {
		h.Logger.Error(message, "err", err, "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()))
	}
	writeError(w, status, message, err)
}

func statusFor(err error) int {
	switch {
	case settlement.IsClientError(err):
		return http.StatusBadRequest
	case settlement.IsNotFound(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
