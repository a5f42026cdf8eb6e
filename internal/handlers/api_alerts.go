package handlers

import (
	"log"
	"net/http"

	"github.com/alertdeck/alertdeck/internal/api"
	"github.com/alertdeck/alertdeck/internal/database"
	"github.com/alertdeck/alertdeck/internal/middleware"
	"github.com/alertdeck/alertdeck/internal/services"
)

// handleGetAlerts runs the full feed pipeline on demand.
// Query params: grouped=true collapses duplicates, include_silenced=true
// keeps suppressed alerts in the response.
func (h *APIHandler) handleGetAlerts(w http.ResponseWriter, r *http.Request) {
	opts := services.FeedOptions{
		Grouped:         r.URL.Query().Get("grouped") == "true",
		IncludeSilenced: r.URL.Query().Get("include_silenced") == "true",
	}

	feed, err := h.feedService.Fetch(r.Context(), opts)
	if err != nil {
		log.Printf("Feed assembly failed: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "failed to assemble alert feed")
		return
	}

	api.RespondJSON(w, http.StatusOK, feed)
}

// ackRequest is the single-alert ack payload
type ackRequest struct {
	Status database.AckStatus `json:"status" validate:"required,oneof=active acknowledged resolved"`
	Note   string             `json:"note" validate:"max=2048"`
}

// handleAckAlert updates the ack state of one alert, attributed to the
// authenticated principal.
func (h *APIHandler) handleAckAlert(w http.ResponseWriter, r *http.Request) {
	alertID := r.PathValue("id")

	var req ackRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if fieldErrors := api.Validate(req); fieldErrors != nil {
		api.RespondValidationError(w, fieldErrors)
		return
	}

	state, err := h.ackService.UpsertState(alertID, req.Status, req.Note, middleware.GetPrincipal(r.Context()))
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "failed to update ack state")
		return
	}
	api.RespondJSON(w, http.StatusOK, state)
}

// bulkAckRequest is the bulk ack payload
type bulkAckRequest struct {
	AlertIDs []string           `json:"alert_ids" validate:"required,min=1"`
	Status   database.AckStatus `json:"status" validate:"required,oneof=active acknowledged resolved"`
	Note     string             `json:"note" validate:"max=2048"`
}

// handleAckBulk applies one state change to many alerts. Writes are
// independent per id; a partial failure still reports what was applied.
func (h *APIHandler) handleAckBulk(w http.ResponseWriter, r *http.Request) {
	var req bulkAckRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if fieldErrors := api.Validate(req); fieldErrors != nil {
		api.RespondValidationError(w, fieldErrors)
		return
	}

	applied, err := h.ackService.UpsertStatesBulk(req.AlertIDs, req.Status, req.Note, middleware.GetPrincipal(r.Context()))
	status := http.StatusOK
	if err != nil {
		log.Printf("Bulk ack partially applied (%d/%d): %v", applied, len(req.AlertIDs), err)
		status = http.StatusMultiStatus
	}
	api.RespondJSON(w, status, map[string]interface{}{
		"applied":   applied,
		"requested": len(req.AlertIDs),
	})
}

// groupStateRequest asks for the aggregated ack state of a group
type groupStateRequest struct {
	AlertIDs []string `json:"alert_ids" validate:"required,min=1"`
}

func (h *APIHandler) handleGroupState(w http.ResponseWriter, r *http.Request) {
	var req groupStateRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if fieldErrors := api.Validate(req); fieldErrors != nil {
		api.RespondValidationError(w, fieldErrors)
		return
	}

	state, err := h.ackService.AggregateGroupState(req.AlertIDs)
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "failed to aggregate group state")
		return
	}
	api.RespondJSON(w, http.StatusOK, state)
}
