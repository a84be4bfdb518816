/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:          Request logging
  2. Recoverer:       Panic recovery (500 instead of crash)
  3. RequestID:       Unique ID per request for tracing
  4. CORS:            Cross-origin requests for the club frontend
  5. OperatorHeader:  X-Operator-ID into the request context

ROUTE GROUPS:
  /api/sessions/*    Sessions and the settlement actions on them
  /api/rankings/*    Monthly ranking tables
  /api/scenarios/*   Demo scenarios

IDENTITY:
  The operator (club account) is resolved upstream and forwarded in the
  X-Operator-ID header. Requests without it get 404 operator not found.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/warp/club-settlement/settlement"
)

// OperatorHeaderName carries the operator id on every API request.
const OperatorHeaderName = "X-Operator-ID"

// DefaultAllowedOrigins are used when no CORS origins are configured.
var DefaultAllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = DefaultAllowedOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", OperatorHeaderName},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Use(OperatorHeader)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", h.CreateSession)
			r.Get("/{id}", h.GetSession)
			r.Put("/{id}", h.UpdateSession)
			r.Post("/{id}/calculate", h.Calculate)
			r.Post("/{id}/ranking", h.SaveRanking)
			r.Post("/{id}/payment-history", h.SavePaymentHistory)
			r.Get("/{id}/payment-history", h.GetPaymentHistory)
			r.Put("/{id}/paid/{player}", h.SetPaid)
		})

		r.Get("/rankings/{month}", h.GetStandings)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}

// OperatorHeader copies the X-Operator-ID header into the request context
// for settlement.ContextIdentity.
func OperatorHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if op := strings.TrimSpace(r.Header.Get(OperatorHeaderName)); op != "" {
			r = r.WithContext(settlement.WithOperator(r.Context(), settlement.OperatorID(op)))
		}
		next.ServeHTTP(w, r)
	})
}
