package handlers

import (
	"errors"
	"net/http"

	"gorm.io/gorm"

	"github.com/alertdeck/alertdeck/internal/api"
	"github.com/alertdeck/alertdeck/internal/database"
)

// sourceRequest carries source configuration on input. Secrets are
// accepted here but never echoed back; the model hides them on output.
type sourceRequest struct {
	Type     string `json:"type" validate:"required,oneof=alertmanager zabbix uptime-kuma"`
	Name     string `json:"name" validate:"required,max=128"`
	URL      string `json:"url" validate:"required,url"`
	AuthMode string `json:"auth_mode" validate:"omitempty,oneof=none basic bearer basic-first"`
	Username string `json:"username" validate:"max=128"`
	Password string `json:"password"`
	Token    string `json:"token"`
	Mode     string `json:"mode" validate:"omitempty,oneof=status-page metrics"`
	Slug     string `json:"slug" validate:"max=128"`
	Enabled  *bool  `json:"enabled"`
}

func (req *sourceRequest) toModel() *database.SourceConfig {
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	return &database.SourceConfig{
		Type:     database.SourceTypeName(req.Type),
		Name:     req.Name,
		URL:      req.URL,
		AuthMode: req.AuthMode,
		Username: req.Username,
		Password: req.Password,
		Token:    req.Token,
		Mode:     req.Mode,
		Slug:     req.Slug,
		Enabled:  enabled,
	}
}

func (h *APIHandler) handleListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.sourceService.List()
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "failed to list sources")
		return
	}
	api.RespondJSON(w, http.StatusOK, map[string]interface{}{"sources": sources})
}

func (h *APIHandler) handleCreateSource(w http.ResponseWriter, r *http.Request) {
	var req sourceRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if fieldErrors := api.Validate(req); fieldErrors != nil {
		api.RespondValidationError(w, fieldErrors)
		return
	}

	created, err := h.sourceService.Create(req.toModel())
	if err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	api.RespondJSON(w, http.StatusCreated, created)
}

func (h *APIHandler) handleUpdateSource(w http.ResponseWriter, r *http.Request) {
	var req sourceRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if fieldErrors := api.Validate(req); fieldErrors != nil {
		api.RespondValidationError(w, fieldErrors)
		return
	}

	updated, err := h.sourceService.Update(r.PathValue("uuid"), req.toModel())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			api.RespondError(w, http.StatusNotFound, "source not found")
			return
		}
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	api.RespondJSON(w, http.StatusOK, updated)
}

func (h *APIHandler) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	if err := h.sourceService.Delete(r.PathValue("uuid")); err != nil {
		api.RespondError(w, http.StatusInternalServerError, "failed to delete source")
		return
	}
	api.RespondNoContent(w)
}
