/**
 * @description
 * HTTP router for the ledger-service. Defines the API endpoints, associates
 * them with their handlers, and applies middleware for logging, panic
 * recovery, timeouts, CORS and authentication.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS middleware.
 */

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions carries the wiring the router needs beyond its handlers.
type RouterOptions struct {
	JWTSecret      string
	InternalAPIKey string
	AllowedOrigins string // comma-separated; empty allows none
}

// LedgerRoutes creates and returns the router for the ledger service.
func LedgerRoutes(h *LedgerHandlers, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	if origins := splitOrigins(opts.AllowedOrigins); len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Public endpoints: registration, activation, token issuance.
	r.Post("/register", h.RegisterHandler)
	r.Post("/verification-emails", h.VerificationEmailHandler)
	r.Get("/activate/{token}", h.ActivateHandler)

	// Service-to-service: the identity provider asserts verified sign-ins.
	r.Group(func(r chi.Router) {
		r.Use(InternalKeyMiddleware(opts.InternalAPIKey))
		r.Post("/sessions/assert", h.AssertIdentityHandler)
	})

	// Caller-identified endpoints. The auth middleware only attaches the
	// subject; each handler resolves and enforces the account status it needs.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(opts.JWTSecret))

		r.Post("/transfers", h.TransferHandler)
		r.Get("/transactions", h.TransactionsHandler)
		r.Post("/cards", h.IssueCardHandler)
		r.Post("/submit-user-data/{id}", h.SubmitUserDataHandler)

		r.Post("/admin/cmd", h.AdminCommandHandler)
		r.Delete("/admin/purge", h.PurgeHandler)
	})

	return r
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
