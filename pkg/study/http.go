package study

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/common/logger"
	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/common/models"
	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/consent"
	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/pseudonym"
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
	r.HandleFunc("/onboard", h.handleOnboard).Methods(http.MethodPost)
	r.HandleFunc("/chat", h.handleChat).Methods(http.MethodPost)
	r.HandleFunc("/images", h.handleGenerateImage).Methods(http.MethodPost)
	r.HandleFunc("/accounts/{id}/export", h.handleExport).Methods(http.MethodGet)
}

func (h *Handler) handleOnboard(w http.ResponseWriter, r *http.Request) {
	var req models.OnboardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.AccountID == uuid.Nil || req.SeedText == "" {
		http.Error(w, "account_id and seed_text are required", http.StatusBadRequest)
		return
	}
	result, err := h.service.Onboard(r.Context(), req)
	if errors.Is(err, pseudonym.ErrMappingConflict) {
		http.Error(w, "already onboarded", http.StatusConflict)
		return
	}
	if err != nil {
		logger.Log.WithError(err).Error("failed to onboard participant")
		http.Error(w, "failed to onboard", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.AccountID == uuid.Nil || req.Prompt == "" {
		http.Error(w, "account_id and prompt are required", http.StatusBadRequest)
		return
	}
	if req.SessionID == uuid.Nil {
		req.SessionID = uuid.New()
	}
	resp, err := h.service.Chat(r.Context(), req)
	if h.denyOrFail(w, err, "chat failed") {
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGenerateImage(w http.ResponseWriter, r *http.Request) {
	var req models.ImageGenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.AccountID == uuid.Nil || req.Prompt == "" {
		http.Error(w, "account_id and prompt are required", http.StatusBadRequest)
		return
	}
	if req.SessionID == uuid.Nil {
		req.SessionID = uuid.New()
	}
	resp, err := h.service.GenerateImage(r.Context(), req)
	if h.denyOrFail(w, err, "image generation failed") {
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid account id", http.StatusBadRequest)
		return
	}
	records, err := h.service.ExportParticipantData(r.Context(), accountID)
	if h.denyOrFail(w, err, "export failed") {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": records})
}

// denyOrFail maps a consent denial to 403 with the missing types so the UI
// can prompt for exactly what is absent; everything else is a 5xx or 404.
func (h *Handler) denyOrFail(w http.ResponseWriter, err error, message string) bool {
	if err == nil {
		return false
	}
	if reqErr, ok := consent.IsRequiredError(err); ok {
		writeJSON(w, http.StatusForbidden, map[string]interface{}{
			"error":            "consent required",
			"operation":        reqErr.Operation,
			"missing_consents": reqErr.Missing,
		})
		return true
	}
	if errors.Is(err, ErrNotOnboarded) {
		http.Error(w, "participant not onboarded", http.StatusNotFound)
		return true
	}
	logger.Log.WithError(err).Error(message)
	http.Error(w, message, http.StatusInternalServerError)
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
