package auditlog

import (
	"time"

	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/common/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	StatusOpen      = "open"
	StatusFinalized = "finalized"
)

// InteractionLogModel rows are keyed by pseudonym, never by account. A row
// is created "open", mutated exactly once at finalization, immutable after.
type InteractionLogModel struct {
	LogID           uuid.UUID         `gorm:"type:uuid;primaryKey;column:log_id"`
	PseudonymID     uuid.UUID         `gorm:"type:uuid;column:pseudonym_id;index"`
	SessionID       uuid.UUID         `gorm:"type:uuid;column:session_id;index"`
	InteractionType string            `gorm:"column:interaction_type;index"`
	Prompt          string            `gorm:"column:prompt"`
	Response        string            `gorm:"column:response"`
	ModelUsed       string            `gorm:"column:model_used"`
	Parameters      datatypes.JSONMap `gorm:"column:parameters;type:jsonb"`
	TokenUsage      datatypes.JSONMap `gorm:"column:token_usage;type:jsonb"`
	LatencyMs       int64             `gorm:"column:latency_ms"`
	Status          string            `gorm:"column:status;index"`
	CreatedAt       time.Time         `gorm:"column:created_at;index"`
	FinalizedAt     *time.Time        `gorm:"column:finalized_at"`
}

func (InteractionLogModel) TableName() string {
	return "interaction_logs"
}

func mapInteraction(row InteractionLogModel) models.InteractionRecord {
	return models.InteractionRecord{
		LogID:           row.LogID,
		PseudonymID:     row.PseudonymID,
		SessionID:       row.SessionID,
		InteractionType: row.InteractionType,
		Prompt:          row.Prompt,
		Response:        row.Response,
		ModelUsed:       row.ModelUsed,
		Parameters:      map[string]interface{}(row.Parameters),
		TokenUsage:      map[string]interface{}(row.TokenUsage),
		LatencyMs:       row.LatencyMs,
		Status:          row.Status,
		CreatedAt:       row.CreatedAt,
		FinalizedAt:     row.FinalizedAt,
	}
}
