package consent

import (
	"encoding/json"
	"net/http"

	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/common/logger"
	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/common/models"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type Handler struct {
	service *Service
	gate    *Gate
}

func NewHandler(service *Service, gate *Gate) *Handler {
	return &Handler{service: service, gate: gate}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/consents", h.handleRecordConsent).Methods(http.MethodPost)
	r.HandleFunc("/consents/bulk", h.handleBulkConsent).Methods(http.MethodPost)
	r.HandleFunc("/consents/withdraw", h.handleWithdrawConsent).Methods(http.MethodPost)
	r.HandleFunc("/accounts/{id}/consents", h.handleSummary).Methods(http.MethodGet)
	r.HandleFunc("/accounts/{id}/consents/history", h.handleHistory).Methods(http.MethodGet)
	r.HandleFunc("/accounts/{id}/operations/{operation}/missing", h.handleMissingConsents).Methods(http.MethodGet)
}

func (h *Handler) handleRecordConsent(w http.ResponseWriter, r *http.Request) {
	var req models.RecordConsentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.AccountID == uuid.Nil || req.ConsentType == "" {
		http.Error(w, "account_id and consent_type are required", http.StatusBadRequest)
		return
	}
	record, err := h.service.RecordConsent(r.Context(), req.AccountID, req.ConsentType, req.ConsentGiven, req.Metadata)
	if err != nil {
		logger.Log.WithError(err).Error("failed to record consent")
		http.Error(w, "failed to record consent", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"record": record})
}

func (h *Handler) handleBulkConsent(w http.ResponseWriter, r *http.Request) {
	var req models.BulkConsentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.AccountID == uuid.Nil || len(req.Consents) == 0 {
		http.Error(w, "account_id and consents are required", http.StatusBadRequest)
		return
	}
	records, err := h.service.RecordBulkConsent(r.Context(), req.AccountID, req.Consents)
	if err != nil {
		// Earlier writes stand; report what was persisted with the failure.
		logger.Log.WithError(err).Error("bulk consent partially failed")
		writeJSON(w, http.StatusMultiStatus, map[string]interface{}{
			"records": records,
			"error":   "some consents could not be recorded",
		})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"records": records})
}

func (h *Handler) handleWithdrawConsent(w http.ResponseWriter, r *http.Request) {
	var req models.WithdrawConsentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.AccountID == uuid.Nil || req.ConsentType == "" {
		http.Error(w, "account_id and consent_type are required", http.StatusBadRequest)
		return
	}
	ok, err := h.service.WithdrawConsent(r.Context(), req.AccountID, req.ConsentType, req.Reason)
	if err != nil {
		logger.Log.WithError(err).Error("failed to withdraw consent")
		http.Error(w, "failed to withdraw consent", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"withdrawn": ok})
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid account id", http.StatusBadRequest)
		return
	}
	summary, err := h.service.Summary(r.Context(), accountID)
	if err != nil {
		logger.Log.WithError(err).Error("failed to build consent summary")
		http.Error(w, "failed to build summary", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"summary": summary})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid account id", http.StatusBadRequest)
		return
	}
	records, err := h.service.History(r.Context(), accountID)
	if err != nil {
		logger.Log.WithError(err).Error("failed to list consent history")
		http.Error(w, "failed to list history", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": records})
}

func (h *Handler) handleMissingConsents(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	accountID, err := uuid.Parse(vars["id"])
	if err != nil {
		http.Error(w, "invalid account id", http.StatusBadRequest)
		return
	}
	missing := h.gate.MissingConsents(r.Context(), accountID, vars["operation"])
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"operation": vars["operation"],
		"missing":   missing,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
