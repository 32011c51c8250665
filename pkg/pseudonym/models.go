package pseudonym

import (
	"time"

	"github.com/google/uuid"
)

type PseudonymModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;column:pseudonym_id"`
	Text      string    `gorm:"column:pseudonym_text;uniqueIndex"`
	Hash      string    `gorm:"column:pseudonym_hash;index"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (PseudonymModel) TableName() string {
	return "pseudonyms"
}

// MappingModel is the only table where an account and its pseudonym coexist.
// Both sides carry unique indexes: one mapping per account, one per pseudonym.
type MappingModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;column:mapping_id"`
	AccountID   uuid.UUID `gorm:"type:uuid;column:account_id;uniqueIndex"`
	PseudonymID uuid.UUID `gorm:"type:uuid;column:pseudonym_id;uniqueIndex"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	CreatedBy   string    `gorm:"column:created_by"`
	AccessLevel string    `gorm:"column:access_level"`
}

func (MappingModel) TableName() string {
	return "pseudonym_mappings"
}

// ReidentificationAudit records every attempt to resolve a pseudonym back to
// an account, allowed or denied. Append-only.
type ReidentificationAudit struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;column:id"`
	PseudonymID uuid.UUID `gorm:"type:uuid;column:pseudonym_id;index"`
	RequestedBy string    `gorm:"column:requested_by"`
	AccessLevel string    `gorm:"column:access_level"`
	Allowed     bool      `gorm:"column:allowed"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (ReidentificationAudit) TableName() string {
	return "reidentification_audits"
}
