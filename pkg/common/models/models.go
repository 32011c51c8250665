package models

import (
	"time"

	"github.com/google/uuid"
)

// Consent types collected from study participants. The ledger treats the
// list as closed: completion rates are computed against AllConsentTypes.
type ConsentType string

const (
	ConsentDataProcessing     ConsentType = "data_processing"
	ConsentAIInteraction      ConsentType = "ai_interaction"
	ConsentImageGeneration    ConsentType = "image_generation"
	ConsentAnalytics          ConsentType = "analytics"
	ConsentStudyParticipation ConsentType = "study_participation"
)

var AllConsentTypes = []ConsentType{
	ConsentDataProcessing,
	ConsentAIInteraction,
	ConsentImageGeneration,
	ConsentAnalytics,
	ConsentStudyParticipation,
}

func IsKnownConsentType(t ConsentType) bool {
	for _, known := range AllConsentTypes {
		if known == t {
			return true
		}
	}
	return false
}

// Access levels on identity mappings, ordered from least to most privileged.
// An unknown level ranks below participant, so garbage input never resolves.
const (
	AccessLevelParticipant = "participant"
	AccessLevelResearcher  = "researcher"
	AccessLevelAdmin       = "admin"
)

var accessRanks = map[string]int{
	AccessLevelParticipant: 1,
	AccessLevelResearcher:  2,
	AccessLevelAdmin:       3,
}

func AccessRank(level string) int {
	return accessRanks[level]
}

// Pseudonym identity
type Pseudonym struct {
	ID        uuid.UUID `json:"pseudonym_id"`
	Text      string    `json:"pseudonym_text"`
	Hash      string    `json:"pseudonym_hash"`
	CreatedAt time.Time `json:"created_at"`
}

type IdentityMapping struct {
	ID          uuid.UUID `json:"mapping_id"`
	AccountID   uuid.UUID `json:"account_id"`
	PseudonymID uuid.UUID `json:"pseudonym_id"`
	CreatedAt   time.Time `json:"created_at"`
	CreatedBy   string    `json:"created_by"`
	AccessLevel string    `json:"access_level"`
}

// Consent ledger
type ConsentRecord struct {
	ID             uuid.UUID              `json:"id"`
	AccountID      uuid.UUID              `json:"account_id"`
	ConsentType    ConsentType            `json:"consent_type"`
	ConsentGiven   bool                   `json:"consent_given"`
	ConsentVersion string                 `json:"consent_version"`
	Timestamp      time.Time              `json:"timestamp"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	WithdrawnAt    *time.Time             `json:"withdrawn_at,omitempty"`
}

type ConsentSummary struct {
	AccountID      uuid.UUID            `json:"account_id"`
	Status         map[ConsentType]bool `json:"status"`
	CompletionRate float64              `json:"completion_rate"`
	LatestActivity *time.Time           `json:"latest_activity,omitempty"`
}

// CallContext is the typed calling convention for gated operations: the
// request layer fills it once and every enforcement point reads from it
// instead of sniffing handler arguments.
type CallContext struct {
	AccountID   uuid.UUID `json:"account_id"`
	PseudonymID uuid.UUID `json:"pseudonym_id,omitempty"`
	SessionID   uuid.UUID `json:"session_id,omitempty"`
	Operation   string    `json:"operation"`
}

// Interaction audit log
type InteractionRecord struct {
	LogID           uuid.UUID              `json:"log_id"`
	PseudonymID     uuid.UUID              `json:"pseudonym_id"`
	SessionID       uuid.UUID              `json:"session_id"`
	InteractionType string                 `json:"interaction_type"`
	Prompt          string                 `json:"prompt,omitempty"`
	Response        string                 `json:"response,omitempty"`
	ModelUsed       string                 `json:"model_used"`
	Parameters      map[string]interface{} `json:"parameters,omitempty"`
	TokenUsage      map[string]interface{} `json:"token_usage,omitempty"`
	LatencyMs       int64                  `json:"latency_ms"`
	Status          string                 `json:"status"`
	CreatedAt       time.Time              `json:"created_at"`
	FinalizedAt     *time.Time             `json:"finalized_at,omitempty"`
}

// InteractionExportRecord is the serializable research-export shape:
// identifiers as strings, timestamps as RFC3339. Keyed by pseudonym only.
type InteractionExportRecord struct {
	LogID           string                 `json:"log_id"`
	PseudonymID     string                 `json:"pseudonym_id"`
	SessionID       string                 `json:"session_id"`
	InteractionType string                 `json:"interaction_type"`
	Prompt          string                 `json:"prompt,omitempty"`
	Response        string                 `json:"response,omitempty"`
	ModelUsed       string                 `json:"model_used"`
	Parameters      map[string]interface{} `json:"parameters,omitempty"`
	TokenUsage      map[string]interface{} `json:"token_usage,omitempty"`
	LatencyMs       int64                  `json:"latency_ms"`
	CreatedAt       string                 `json:"created_at"`
}

type InteractionStatistics struct {
	Total          int            `json:"total"`
	ByType         map[string]int `json:"by_type"`
	ByModel        map[string]int `json:"by_model"`
	AvgLatencyMs   float64        `json:"avg_latency_ms"`
	TotalTokens    int64          `json:"total_tokens"`
	UniqueSessions int            `json:"unique_sessions"`
}

// Event bus payload published to the study-events topic for the external
// bias-analysis worker.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

// Request / response shapes for the HTTP surface

type RecordConsentRequest struct {
	AccountID      uuid.UUID              `json:"account_id"`
	ConsentType    ConsentType            `json:"consent_type"`
	ConsentGiven   bool                   `json:"consent_given"`
	ConsentVersion string                 `json:"consent_version,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

type WithdrawConsentRequest struct {
	AccountID   uuid.UUID   `json:"account_id"`
	ConsentType ConsentType `json:"consent_type"`
	Reason      string      `json:"reason,omitempty"`
}

type BulkConsentRequest struct {
	AccountID      uuid.UUID            `json:"account_id"`
	Consents       map[ConsentType]bool `json:"consents"`
	ConsentVersion string               `json:"consent_version,omitempty"`
}

type OnboardRequest struct {
	AccountID uuid.UUID            `json:"account_id"`
	SeedText  string               `json:"seed_text"`
	Consents  map[ConsentType]bool `json:"consents,omitempty"`
}

type OnboardResult struct {
	Pseudonym      Pseudonym       `json:"pseudonym"`
	Mapping        IdentityMapping `json:"mapping"`
	ConsentRecords []ConsentRecord `json:"consent_records,omitempty"`
}

type ChatRequest struct {
	AccountID  uuid.UUID              `json:"account_id"`
	SessionID  uuid.UUID              `json:"session_id"`
	Prompt     string                 `json:"prompt"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

type ChatResponse struct {
	Response  string    `json:"response"`
	ModelUsed string    `json:"model_used"`
	SessionID uuid.UUID `json:"session_id"`
}

type ImageGenerationRequest struct {
	AccountID  uuid.UUID              `json:"account_id"`
	SessionID  uuid.UUID              `json:"session_id"`
	Prompt     string                 `json:"prompt"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

type ImageGenerationResponse struct {
	ImageRef  string    `json:"image_ref"`
	ModelUsed string    `json:"model_used"`
	SessionID uuid.UUID `json:"session_id"`
}

type ResolveAccountRequest struct {
	PseudonymID uuid.UUID `json:"pseudonym_id"`
}

type EraseParticipantRequest struct {
	AccountID         uuid.UUID `json:"account_id"`
	PurgeInteractions bool      `json:"purge_interactions"`
}

type EraseParticipantResult struct {
	MappingErased      bool  `json:"mapping_erased"`
	InteractionsPurged int64 `json:"interactions_purged"`
}
