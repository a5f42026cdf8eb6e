package handlers

import (
	"net/http"
	"time"

	"github.com/alertdeck/alertdeck/internal/api"
	"github.com/alertdeck/alertdeck/internal/services"
	"github.com/alertdeck/alertdeck/internal/utils"
	"github.com/alertdeck/alertdeck/internal/ws"
)

// APIHandler handles the JSON API consumed by the dashboard UI
type APIHandler struct {
	feedService    *services.FeedService
	ackService     *services.AckService
	silenceService *services.SilenceService
	sourceService  *services.SourceService
	healthService  *services.HealthService
	hub            *ws.Hub
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(feed *services.FeedService, acks *services.AckService, silences *services.SilenceService, sources *services.SourceService, health *services.HealthService, hub *ws.Hub) *APIHandler {
	return &APIHandler{
		feedService:    feed,
		ackService:     acks,
		silenceService: silences,
		sourceService:  sources,
		healthService:  health,
		hub:            hub,
	}
}

// SetupRoutes sets up all API routes
func (h *APIHandler) SetupRoutes(mux *http.ServeMux) {
	// Unified alert feed
	mux.HandleFunc("GET /api/alerts", h.handleGetAlerts)

	// Acknowledgment state
	mux.HandleFunc("POST /api/alerts/{id}/ack", h.handleAckAlert)
	mux.HandleFunc("POST /api/alerts/ack", h.handleAckBulk)
	mux.HandleFunc("POST /api/groups/state", h.handleGroupState)

	// Silence rules
	mux.HandleFunc("GET /api/silences", h.handleListSilences)
	mux.HandleFunc("POST /api/silences", h.handleCreateSilence)
	mux.HandleFunc("GET /api/silences/{uuid}", h.handleGetSilence)
	mux.HandleFunc("PUT /api/silences/{uuid}", h.handleUpdateSilence)
	mux.HandleFunc("DELETE /api/silences/{uuid}", h.handleDeleteSilence)

	// Source configuration
	mux.HandleFunc("GET /api/sources", h.handleListSources)
	mux.HandleFunc("POST /api/sources", h.handleCreateSource)
	mux.HandleFunc("PUT /api/sources/{uuid}", h.handleUpdateSource)
	mux.HandleFunc("DELETE /api/sources/{uuid}", h.handleDeleteSource)

	// Source health
	mux.HandleFunc("GET /api/health/sources", h.handleSourceHealth)

	// Settings
	mux.HandleFunc("GET /api/settings", h.handleGetSettings)
	mux.HandleFunc("PUT /api/settings", h.handleUpdateSettings)

	// Live feed stream
	if h.hub != nil {
		mux.HandleFunc("GET /api/stream", h.hub.ServeWS)
	}
}

// sourceHealthEntry is one row of the health endpoint response
type sourceHealthEntry struct {
	SourceType       string `json:"source_type"`
	SourceID         string `json:"source_id"`
	LastSuccessAt    string `json:"last_success_at,omitempty"`
	LastSuccessAgo   string `json:"last_success_ago,omitempty"`
	LastErrorAt      string `json:"last_error_at,omitempty"`
	LastErrorMessage string `json:"last_error_message,omitempty"`
	FailCount        int    `json:"fail_count"`
	NextRetryAt      string `json:"next_retry_at,omitempty"`
	Stale            bool   `json:"stale"`
}

// handleSourceHealth returns per-source health with derived staleness
func (h *APIHandler) handleSourceHealth(w http.ResponseWriter, r *http.Request) {
	rows, err := h.healthService.List()
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "failed to load source health")
		return
	}

	settings, err := h.feedService.Settings()
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}

	now := time.Now().UTC()
	entries := make([]sourceHealthEntry, 0, len(rows))
	for _, row := range rows {
		entry := sourceHealthEntry{
			SourceType:       string(row.SourceType),
			SourceID:         row.SourceID,
			LastErrorMessage: row.LastErrorMessage,
			FailCount:        row.FailCount,
			Stale:            row.Stale(now, settings.RefreshInterval()),
		}
		if row.LastSuccessAt != nil {
			entry.LastSuccessAt = row.LastSuccessAt.UTC().Format(time.RFC3339)
			entry.LastSuccessAgo = utils.FormatDuration(now.Sub(*row.LastSuccessAt))
		}
		if row.LastErrorAt != nil {
			entry.LastErrorAt = row.LastErrorAt.UTC().Format(time.RFC3339)
		}
		if row.NextRetryAt != nil {
			entry.NextRetryAt = row.NextRetryAt.UTC().Format(time.RFC3339)
		}
		entries = append(entries, entry)
	}

	api.RespondJSON(w, http.StatusOK, map[string]interface{}{"sources": entries})
}

// settingsRequest is the PUT /api/settings payload
type settingsRequest struct {
	RefreshIntervalSeconds int `json:"refresh_interval_seconds" validate:"required,min=5,max=3600"`
}

func (h *APIHandler) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.feedService.Settings()
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	api.RespondJSON(w, http.StatusOK, settings)
}

func (h *APIHandler) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if fieldErrors := api.Validate(req); fieldErrors != nil {
		api.RespondValidationError(w, fieldErrors)
		return
	}

	settings, err := h.feedService.Settings()
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	settings.RefreshIntervalSeconds = req.RefreshIntervalSeconds
	if err := h.feedService.UpdateSettings(settings); err != nil {
		api.RespondError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}
	api.RespondJSON(w, http.StatusOK, settings)
}
