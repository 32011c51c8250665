package auditlog

import (
	"context"
	"errors"
	"time"

	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/common/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrLogNotFound = errors.New("interaction log not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&InteractionLogModel{})
}

// Filter narrows queries for export and statistics. Nil fields match all.
type Filter struct {
	PseudonymID *uuid.UUID
	SessionID   *uuid.UUID
	Types       []string
	From        *time.Time
	To          *time.Time
}

func (r *Repository) CreateOpen(ctx context.Context, in models.InteractionRecord) (uuid.UUID, error) {
	row := InteractionLogModel{
		LogID:           uuid.New(),
		PseudonymID:     in.PseudonymID,
		SessionID:       in.SessionID,
		InteractionType: in.InteractionType,
		ModelUsed:       in.ModelUsed,
		Parameters:      datatypes.JSONMap(in.Parameters),
		Status:          StatusOpen,
		CreatedAt:       time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return uuid.Nil, err
	}
	return row.LogID, nil
}

// Finalize writes prompt, response, usage and latency onto the open row in
// one update. Rows are never finalized twice: the status guard makes a
// second call a no-op.
func (r *Repository) Finalize(ctx context.Context, logID uuid.UUID, in models.InteractionRecord) error {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).Model(&InteractionLogModel{}).
		Where("log_id = ? AND status = ?", logID, StatusOpen).
		Updates(map[string]interface{}{
			"prompt":       in.Prompt,
			"response":     in.Response,
			"model_used":   in.ModelUsed,
			"parameters":   datatypes.JSONMap(in.Parameters),
			"token_usage":  datatypes.JSONMap(in.TokenUsage),
			"latency_ms":   in.LatencyMs,
			"status":       StatusFinalized,
			"finalized_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrLogNotFound
	}
	return nil
}

// ReplaceParameters overwrites the stored parameter map wholesale; merging
// is the caller's job.
func (r *Repository) ReplaceParameters(ctx context.Context, logID uuid.UUID, parameters map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&InteractionLogModel{}).
		Where("log_id = ?", logID).
		Update("parameters", datatypes.JSONMap(parameters))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrLogNotFound
	}
	return nil
}

func (r *Repository) CreateFinalized(ctx context.Context, in models.InteractionRecord) (models.InteractionRecord, error) {
	now := time.Now().UTC()
	row := InteractionLogModel{
		LogID:           uuid.New(),
		PseudonymID:     in.PseudonymID,
		SessionID:       in.SessionID,
		InteractionType: in.InteractionType,
		Prompt:          in.Prompt,
		Response:        in.Response,
		ModelUsed:       in.ModelUsed,
		Parameters:      datatypes.JSONMap(in.Parameters),
		TokenUsage:      datatypes.JSONMap(in.TokenUsage),
		LatencyMs:       in.LatencyMs,
		Status:          StatusFinalized,
		CreatedAt:       now,
		FinalizedAt:     &now,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return models.InteractionRecord{}, err
	}
	return mapInteraction(row), nil
}

func (r *Repository) Get(ctx context.Context, logID uuid.UUID) (models.InteractionRecord, error) {
	var row InteractionLogModel
	err := r.db.WithContext(ctx).Where("log_id = ?", logID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.InteractionRecord{}, ErrLogNotFound
	}
	if err != nil {
		return models.InteractionRecord{}, err
	}
	return mapInteraction(row), nil
}

// List returns matching rows in chronological order.
func (r *Repository) List(ctx context.Context, filter Filter, limit int) ([]models.InteractionRecord, error) {
	query := r.db.WithContext(ctx).Model(&InteractionLogModel{})
	if filter.PseudonymID != nil {
		query = query.Where("pseudonym_id = ?", *filter.PseudonymID)
	}
	if filter.SessionID != nil {
		query = query.Where("session_id = ?", *filter.SessionID)
	}
	if len(filter.Types) > 0 {
		query = query.Where("interaction_type IN ?", filter.Types)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at <= ?", *filter.To)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []InteractionLogModel
	if err := query.Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	records := make([]models.InteractionRecord, len(rows))
	for i, row := range rows {
		records[i] = mapInteraction(row)
	}
	return records, nil
}

// DeleteByPseudonym removes every row for the pseudonym in one transaction.
// Any failure rolls the whole deletion back.
func (r *Repository) DeleteByPseudonym(ctx context.Context, pseudonymID uuid.UUID) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("pseudonym_id = ?", pseudonymID).Delete(&InteractionLogModel{})
		if result.Error != nil {
			return result.Error
		}
		deleted = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

func (r *Repository) CountByPseudonym(ctx context.Context, pseudonymID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&InteractionLogModel{}).
		Where("pseudonym_id = ?", pseudonymID).Count(&count).Error
	return count, err
}
