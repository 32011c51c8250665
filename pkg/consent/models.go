package consent

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ConsentRecordModel rows are append-only: withdrawal appends a new row
// instead of mutating history, so the full audit trail survives.
type ConsentRecordModel struct {
	ID             uuid.UUID         `gorm:"type:uuid;primaryKey;column:id"`
	AccountID      uuid.UUID         `gorm:"type:uuid;column:account_id;index:idx_consent_account_type"`
	ConsentType    string            `gorm:"column:consent_type;index:idx_consent_account_type"`
	ConsentGiven   bool              `gorm:"column:consent_given"`
	ConsentVersion string            `gorm:"column:consent_version"`
	Timestamp      time.Time         `gorm:"column:timestamp;index"`
	Metadata       datatypes.JSONMap `gorm:"column:metadata;type:jsonb"`
	WithdrawnAt    *time.Time        `gorm:"column:withdrawn_at"`
}

func (ConsentRecordModel) TableName() string {
	return "consent_records"
}
