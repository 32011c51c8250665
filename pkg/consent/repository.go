package consent

import (
	"context"
	"errors"
	"time"

	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/common/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrNoRecord = errors.New("no consent record")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&ConsentRecordModel{})
}

func (r *Repository) Append(ctx context.Context, record models.ConsentRecord) (models.ConsentRecord, error) {
	row := ConsentRecordModel{
		ID:             uuid.New(),
		AccountID:      record.AccountID,
		ConsentType:    string(record.ConsentType),
		ConsentGiven:   record.ConsentGiven,
		ConsentVersion: record.ConsentVersion,
		Timestamp:      time.Now().UTC(),
		Metadata:       datatypes.JSONMap(record.Metadata),
		WithdrawnAt:    record.WithdrawnAt,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return models.ConsentRecord{}, err
	}
	return mapRecord(row), nil
}

// Latest returns the most recent record for (account, type); current status
// derives from it alone.
func (r *Repository) Latest(ctx context.Context, accountID uuid.UUID, consentType models.ConsentType) (models.ConsentRecord, error) {
	var row ConsentRecordModel
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND consent_type = ?", accountID, string(consentType)).
		Order("timestamp DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.ConsentRecord{}, ErrNoRecord
	}
	if err != nil {
		return models.ConsentRecord{}, err
	}
	return mapRecord(row), nil
}

func (r *Repository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]models.ConsentRecord, error) {
	var rows []ConsentRecordModel
	result := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("timestamp ASC").
		Find(&rows)
	if result.Error != nil {
		return nil, result.Error
	}
	records := make([]models.ConsentRecord, len(rows))
	for i, row := range rows {
		records[i] = mapRecord(row)
	}
	return records, nil
}

func mapRecord(row ConsentRecordModel) models.ConsentRecord {
	return models.ConsentRecord{
		ID:             row.ID,
		AccountID:      row.AccountID,
		ConsentType:    models.ConsentType(row.ConsentType),
		ConsentGiven:   row.ConsentGiven,
		ConsentVersion: row.ConsentVersion,
		Timestamp:      row.Timestamp,
		Metadata:       map[string]interface{}(row.Metadata),
		WithdrawnAt:    row.WithdrawnAt,
	}
}
