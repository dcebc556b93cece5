package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/upb/rag-chatbot/utils"
)

// Version is reported by the status endpoint
var Version = "0.1.0"

// ProviderLister reports the registered completion providers
type ProviderLister interface {
	ListProviders() []string
}

// StatusInfo describes the running service
type StatusInfo struct {
	Environment   string
	VectorBackend string
	Collection    string
}

// HealthResponse represents the readiness check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// StatusResponse represents the status endpoint response
type StatusResponse struct {
	Version       string   `json:"version"`
	Environment   string   `json:"environment"`
	Providers     []string `json:"providers"`
	VectorBackend string   `json:"vector_backend"`
	Collection    string   `json:"collection"`
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	db        *sql.DB
	providers ProviderLister
	info      StatusInfo
	logger    *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. db may be nil when no database is used.
func NewHealthHandler(db *sql.DB, providers ProviderLister, info StatusInfo, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:        db,
		providers: providers,
		info:      info,
		logger:    logger,
	}
}

// HandleHealth handles GET /healthz
// Liveness only; always 200 while the process serves requests
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleReadiness handles GET /readyz
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	if h.db == nil {
		checks["database"] = "not_configured"
	} else if err := h.checkDatabase(ctx); err != nil {
		h.logger.Warn("database health check failed", zap.Error(err))
		checks["database"] = "unhealthy"
		allHealthy = false
	} else {
		checks["database"] = "healthy"
	}

	if h.providers == nil || len(h.providers.ListProviders()) == 0 {
		checks["providers"] = "none_configured"
		allHealthy = false
	} else {
		checks["providers"] = "configured"
	}

	status := "ready"
	httpStatus := http.StatusOK
	if !allHealthy {
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}

	if err := utils.WriteJSON(w, httpStatus, response); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}

// HandleStatus handles GET /api/v1/status
func (h *HealthHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	providers := []string{}
	if h.providers != nil {
		providers = h.providers.ListProviders()
	}

	_ = utils.WriteJSON(w, http.StatusOK, StatusResponse{
		Version:       Version,
		Environment:   h.info.Environment,
		Providers:     providers,
		VectorBackend: h.info.VectorBackend,
		Collection:    h.info.Collection,
	})
}

// checkDatabase checks database connectivity
func (h *HealthHandler) checkDatabase(ctx context.Context) error {
	if err := h.db.PingContext(ctx); err != nil {
		return err
	}

	var result int
	return h.db.QueryRowContext(ctx, "SELECT 1").Scan(&result)
}
