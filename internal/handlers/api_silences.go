package handlers

import (
	"errors"
	"net/http"

	"gorm.io/gorm"

	"github.com/alertdeck/alertdeck/internal/api"
	"github.com/alertdeck/alertdeck/internal/database"
)

func (h *APIHandler) handleListSilences(w http.ResponseWriter, r *http.Request) {
	rules, err := h.silenceService.List()
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "failed to list silence rules")
		return
	}
	api.RespondJSON(w, http.StatusOK, map[string]interface{}{"silences": rules})
}

func (h *APIHandler) handleCreateSilence(w http.ResponseWriter, r *http.Request) {
	var rule database.SilenceRule
	if err := api.DecodeJSON(r, &rule); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.silenceService.Create(&rule)
	if err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	api.RespondJSON(w, http.StatusCreated, created)
}

func (h *APIHandler) handleGetSilence(w http.ResponseWriter, r *http.Request) {
	rule, err := h.silenceService.Get(r.PathValue("uuid"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			api.RespondError(w, http.StatusNotFound, "silence rule not found")
			return
		}
		api.RespondError(w, http.StatusInternalServerError, "failed to load silence rule")
		return
	}
	api.RespondJSON(w, http.StatusOK, rule)
}

func (h *APIHandler) handleUpdateSilence(w http.ResponseWriter, r *http.Request) {
	var rule database.SilenceRule
	if err := api.DecodeJSON(r, &rule); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.silenceService.Update(r.PathValue("uuid"), &rule)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			api.RespondError(w, http.StatusNotFound, "silence rule not found")
			return
		}
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	api.RespondJSON(w, http.StatusOK, updated)
}

func (h *APIHandler) handleDeleteSilence(w http.ResponseWriter, r *http.Request) {
	if err := h.silenceService.Delete(r.PathValue("uuid")); err != nil {
		api.RespondError(w, http.StatusInternalServerError, "failed to delete silence rule")
		return
	}
	api.RespondNoContent(w)
}
