package handlers

import (
	"net/http"

	"gorm.io/gorm"

	"github.com/alertdeck/alertdeck/internal/api"
)

// HealthHandler answers liveness probes
type HealthHandler struct {
	db *gorm.DB
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// SetupRoutes registers the health endpoint
func (h *HealthHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.handleHealth)
}

func (h *HealthHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK

	sqlDB, err := h.db.DB()
	if err != nil || sqlDB.PingContext(r.Context()) != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	api.RespondJSON(w, code, map[string]string{"status": status})
}
