package pseudonym

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/auth"
	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/common/logger"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// Handler exposes the staff-facing identity endpoints. Routes are mounted
// behind JWT authentication; the stored access level on each mapping is
// still enforced per request by the service.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/pseudonyms/{id}/resolve", h.handleResolveAccount).Methods(http.MethodPost)
	r.HandleFunc("/pseudonyms/{id}/audits", h.handleListAudits).Methods(http.MethodGet)
	r.HandleFunc("/accounts/{id}/mapping", h.handleEraseMapping).Methods(http.MethodDelete)
}

func (h *Handler) handleResolveAccount(w http.ResponseWriter, r *http.Request) {
	pseudonymID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid pseudonym id", http.StatusBadRequest)
		return
	}
	staff, ok := auth.StaffFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	accountID, err := h.service.ResolveAccount(r.Context(), pseudonymID, staff.Email, staff.AccessLevel)
	if errors.Is(err, ErrNotAuthorized) {
		http.Error(w, "access level insufficient", http.StatusForbidden)
		return
	}
	if errors.Is(err, ErrMappingNotFound) {
		http.Error(w, "no mapping for pseudonym", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Log.WithError(err).Error("failed to resolve account")
		http.Error(w, "failed to resolve account", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"account_id": accountID})
}

func (h *Handler) handleListAudits(w http.ResponseWriter, r *http.Request) {
	pseudonymID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid pseudonym id", http.StatusBadRequest)
		return
	}
	audits, err := h.service.repo.ListReidentificationAudits(r.Context(), pseudonymID, parseLimit(r, 50))
	if err != nil {
		logger.Log.WithError(err).Error("failed to list re-identification audits")
		http.Error(w, "failed to list audits", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": audits})
}

func (h *Handler) handleEraseMapping(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid account id", http.StatusBadRequest)
		return
	}
	erased, err := h.service.EraseMapping(r.Context(), accountID)
	if err != nil {
		logger.Log.WithError(err).Error("failed to erase identity mapping")
		http.Error(w, "failed to erase mapping", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"erased": erased})
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
