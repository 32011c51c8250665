package auditlog

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/common/logger"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/sessions/{id}/interactions", h.handleSessionInteractions).Methods(http.MethodGet)
	r.HandleFunc("/pseudonyms/{id}/interactions", h.handlePseudonymInteractions).Methods(http.MethodGet)
	r.HandleFunc("/pseudonyms/{id}/interactions", h.handleErase).Methods(http.MethodDelete)
	r.HandleFunc("/interactions/export", h.handleExport).Methods(http.MethodGet)
	r.HandleFunc("/interactions/statistics", h.handleStatistics).Methods(http.MethodGet)
}

func (h *Handler) handleSessionInteractions(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return
	}
	records, err := h.service.SessionInteractions(r.Context(), sessionID)
	if err != nil {
		logger.Log.WithError(err).Error("failed to list session interactions")
		http.Error(w, "failed to list interactions", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": records})
}

func (h *Handler) handlePseudonymInteractions(w http.ResponseWriter, r *http.Request) {
	pseudonymID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid pseudonym id", http.StatusBadRequest)
		return
	}
	records, err := h.service.PseudonymInteractions(r.Context(), pseudonymID, parseLimit(r, 0))
	if err != nil {
		logger.Log.WithError(err).Error("failed to list pseudonym interactions")
		http.Error(w, "failed to list interactions", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": records})
}

func (h *Handler) handleErase(w http.ResponseWriter, r *http.Request) {
	pseudonymID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid pseudonym id", http.StatusBadRequest)
		return
	}
	deleted, err := h.service.ErasePseudonymData(r.Context(), pseudonymID)
	if err != nil {
		logger.Log.WithError(err).Error("failed to erase pseudonym data")
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"erased":       false,
			"rows_deleted": 0,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"erased":       true,
		"rows_deleted": deleted,
	})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	records, err := h.service.Export(r.Context(), filter)
	if err != nil {
		logger.Log.WithError(err).Error("failed to export interactions")
		http.Error(w, "failed to export", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": records})
}

func (h *Handler) handleStatistics(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	stats, err := h.service.Statistics(r.Context(), filter)
	if err != nil {
		logger.Log.WithError(err).Error("failed to compute interaction statistics")
		http.Error(w, "failed to compute statistics", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func parseFilter(r *http.Request) (Filter, error) {
	var filter Filter
	query := r.URL.Query()

	if raw := query.Get("pseudonym_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return Filter{}, errInvalidFilter("pseudonym_id")
		}
		filter.PseudonymID = &id
	}
	if raw := query.Get("session_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return Filter{}, errInvalidFilter("session_id")
		}
		filter.SessionID = &id
	}
	if types, ok := query["type"]; ok {
		filter.Types = types
	}
	if raw := query.Get("from"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return Filter{}, errInvalidFilter("from")
		}
		filter.From = &ts
	}
	if raw := query.Get("to"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return Filter{}, errInvalidFilter("to")
		}
		filter.To = &ts
	}
	return filter, nil
}

type filterError string

func (e filterError) Error() string {
	return "invalid filter value: " + string(e)
}

func errInvalidFilter(field string) error {
	return filterError(field)
}

func parseLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	if v, err := strconv.Atoi(raw); err == nil && v > 0 {
		return v
	}
	return fallback
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
