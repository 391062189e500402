package http

import (
	"context"
	"net/http"
	"time"

	"estate-market-backend/internal/apperrors"
	"estate-market-backend/internal/config"
	"estate-market-backend/internal/domain"
	"estate-market-backend/internal/logger"
	"estate-market-backend/internal/security"
	"estate-market-backend/internal/service"
	"estate-market-backend/internal/storage"

	"github.com/gorilla/mux"
)

// HealthChecker probes the backing stores for /healthz.
type HealthChecker interface {
	Probe(ctx context.Context) error
}

// HealthFunc adapts a function to HealthChecker.
type HealthFunc func(ctx context.Context) error

func (f HealthFunc) Probe(ctx context.Context) error { return f(ctx) }

// RouterDependencies collects handler dependencies.
type RouterDependencies struct {
	Auth           service.AuthService
	Properties     service.PropertyService
	Transactions   service.TransactionService
	Storage        storage.Storage
	Tokens         security.TokenManager
	Health         HealthChecker
	AllowedOrigins []string
	// MaxUploadBytes bounds a whole multipart image request.
	MaxUploadBytes int64
}

// NewRouter wires the HTTP routes exposed by the backend API.
func NewRouter(deps RouterDependencies) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, req, apperrors.NotFound("route not found"))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		respondJSON(w, http.StatusMethodNotAllowed, errorBody{Error: errorDetail{Kind: "method_not_allowed", Message: "method not allowed"}})
	})
	r.Use(NewAuthMiddleware(deps.Tokens).Handler)

	r.HandleFunc("/healthz", healthHandler(deps.Health)).Methods(http.MethodGet).Name(config.RouteHealth)

	auth := &AuthHandler{svc: deps.Auth}
	r.HandleFunc("/auth/register", auth.Register).Methods(http.MethodPost).Name(config.RouteRegister)
	r.HandleFunc("/auth/login", auth.Login).Methods(http.MethodPost).Name(config.RouteLogin)
	r.HandleFunc("/auth/refresh", auth.Refresh).Methods(http.MethodPost).Name(config.RouteRefresh)
	r.HandleFunc("/auth/logout", auth.Logout).Methods(http.MethodPost).Name(config.RouteLogout)
	r.HandleFunc("/auth/me", auth.Me).Methods(http.MethodGet).Name(config.RouteMe)
	r.HandleFunc("/auth/profile", auth.UpdateProfile).Methods(http.MethodPut).Name(config.RouteUpdateProfile)

	props := &PropertyHandler{svc: deps.Properties, maxUploadBytes: deps.MaxUploadBytes}
	r.HandleFunc("/properties", props.List).Methods(http.MethodGet).Name(config.RouteListProperties)
	r.HandleFunc("/properties", props.Create).Methods(http.MethodPost).Name(config.RouteCreateProperty)
	r.HandleFunc("/properties/{id}", props.Get).Methods(http.MethodGet).Name(config.RouteGetProperty)
	r.HandleFunc("/properties/{id}", props.Update).Methods(http.MethodPut).Name(config.RouteUpdateProperty)
	r.HandleFunc("/properties/{id}", props.Delete).Methods(http.MethodDelete).Name(config.RouteDeleteProperty)
	r.HandleFunc("/properties/{id}/like", props.ToggleLike).Methods(http.MethodPost).Name(config.RouteToggleLike)
	r.HandleFunc("/properties/{id}/images", props.UploadImages).Methods(http.MethodPost).Name(config.RouteUploadImages)

	uploads := NewImageDownloadHandler(deps.Storage)
	r.HandleFunc("/uploads/{key}", uploads.Download).Methods(http.MethodGet).Name(config.RouteDownloadImage)

	txs := &TransactionHandler{svc: deps.Transactions}
	r.HandleFunc("/transactions", txs.Open).Methods(http.MethodPost).Name(config.RouteOpenTransaction)
	r.HandleFunc("/transactions", txs.List).Methods(http.MethodGet).Name(config.RouteListTransactions)
	r.HandleFunc("/transactions/{id}", txs.Get).Methods(http.MethodGet).Name(config.RouteGetTransaction)
	r.HandleFunc("/transactions/{id}/complete", txs.Complete).Methods(http.MethodPut).Name(config.RouteCompleteTx)
	r.HandleFunc("/transactions/{id}/cancel", txs.Cancel).Methods(http.MethodPut).Name(config.RouteCancelTx)
	r.HandleFunc("/transactions/{id}/history", txs.History).Methods(http.MethodGet).Name(config.RouteTransactionHistory)
	r.HandleFunc("/admin/transactions", txs.ListAll).Methods(http.MethodGet).Name(config.RouteAdminTransactions)

	handler := loggingMiddleware(r)
	if len(deps.AllowedOrigins) > 0 {
		handler = corsMiddleware(deps.AllowedOrigins)(handler)
	}
	return handler
}

func healthHandler(health HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		payload := map[string]any{"status": "ok"}
		if health != nil {
			if err := health.Probe(ctx); err != nil {
				logger.Error("Health probe failed", "error", err)
				status = http.StatusServiceUnavailable
				payload["status"] = "degraded"
			}
		}
		respondJSON(w, status, payload)
	}
}

// caller returns the authenticated principal, writing a 401 when the route
// reached its handler without one.
func caller(w http.ResponseWriter, r *http.Request) (domain.Principal, bool) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, apperrors.Unauthenticated("authentication required"))
	}
	return p, ok
}
