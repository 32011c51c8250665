package pseudonym

import (
	"context"
	"errors"
	"time"

	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/common/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrPseudonymNotFound = errors.New("pseudonym not found")
	ErrMappingNotFound   = errors.New("identity mapping not found")
	ErrPseudonymTaken    = errors.New("pseudonym text already taken")
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&PseudonymModel{}, &MappingModel{}, &ReidentificationAudit{})
}

func (r *Repository) TextExists(ctx context.Context, text string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&PseudonymModel{}).Where("pseudonym_text = ?", text).Count(&count).Error
	return count > 0, err
}

// CreatePseudonym relies on the unique index on pseudonym_text: a concurrent
// allocation of the same candidate surfaces as ErrPseudonymTaken and the
// caller retries with the next candidate.
func (r *Repository) CreatePseudonym(ctx context.Context, text, hash string) (models.Pseudonym, error) {
	record := PseudonymModel{
		ID:        uuid.New(),
		Text:      text,
		Hash:      hash,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.Pseudonym{}, ErrPseudonymTaken
		}
		return models.Pseudonym{}, err
	}
	return mapPseudonym(record), nil
}

func (r *Repository) GetPseudonym(ctx context.Context, id uuid.UUID) (models.Pseudonym, error) {
	var record PseudonymModel
	err := r.db.WithContext(ctx).Where("pseudonym_id = ?", id).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Pseudonym{}, ErrPseudonymNotFound
	}
	if err != nil {
		return models.Pseudonym{}, err
	}
	return mapPseudonym(record), nil
}

// CreateMapping inserts the account/pseudonym link in one transaction. A
// duplicate on either unique index is reported as gorm.ErrDuplicatedKey; the
// service collapses both cases into one conflict error.
func (r *Repository) CreateMapping(ctx context.Context, accountID, pseudonymID uuid.UUID, createdBy, accessLevel string) (models.IdentityMapping, error) {
	record := MappingModel{
		ID:          uuid.New(),
		AccountID:   accountID,
		PseudonymID: pseudonymID,
		CreatedAt:   time.Now().UTC(),
		CreatedBy:   createdBy,
		AccessLevel: accessLevel,
	}
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		return models.IdentityMapping{}, err
	}
	return mapMapping(record), nil
}

func (r *Repository) GetMappingByAccount(ctx context.Context, accountID uuid.UUID) (models.IdentityMapping, error) {
	var record MappingModel
	err := r.db.WithContext(ctx).Where("account_id = ?", accountID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.IdentityMapping{}, ErrMappingNotFound
	}
	if err != nil {
		return models.IdentityMapping{}, err
	}
	return mapMapping(record), nil
}

func (r *Repository) GetMappingByPseudonym(ctx context.Context, pseudonymID uuid.UUID) (models.IdentityMapping, error) {
	var record MappingModel
	err := r.db.WithContext(ctx).Where("pseudonym_id = ?", pseudonymID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.IdentityMapping{}, ErrMappingNotFound
	}
	if err != nil {
		return models.IdentityMapping{}, err
	}
	return mapMapping(record), nil
}

// DeleteMappingByAccount removes the identity link in one transaction and
// reports how many rows were removed (zero means nothing was mapped).
func (r *Repository) DeleteMappingByAccount(ctx context.Context, accountID uuid.UUID) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("account_id = ?", accountID).Delete(&MappingModel{})
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

func (r *Repository) AppendReidentificationAudit(ctx context.Context, pseudonymID uuid.UUID, requestedBy, accessLevel string, allowed bool) error {
	audit := ReidentificationAudit{
		ID:          uuid.New(),
		PseudonymID: pseudonymID,
		RequestedBy: requestedBy,
		AccessLevel: accessLevel,
		Allowed:     allowed,
		CreatedAt:   time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Create(&audit).Error
}

func (r *Repository) ListReidentificationAudits(ctx context.Context, pseudonymID uuid.UUID, limit int) ([]ReidentificationAudit, error) {
	if limit <= 0 {
		limit = 50
	}
	var audits []ReidentificationAudit
	result := r.db.WithContext(ctx).
		Where("pseudonym_id = ?", pseudonymID).
		Order("created_at DESC").
		Limit(limit).
		Find(&audits)
	return audits, result.Error
}

func mapPseudonym(record PseudonymModel) models.Pseudonym {
	return models.Pseudonym{
		ID:        record.ID,
		Text:      record.Text,
		Hash:      record.Hash,
		CreatedAt: record.CreatedAt,
	}
}

func mapMapping(record MappingModel) models.IdentityMapping {
	return models.IdentityMapping{
		ID:          record.ID,
		AccountID:   record.AccountID,
		PseudonymID: record.PseudonymID,
		CreatedAt:   record.CreatedAt,
		CreatedBy:   record.CreatedBy,
		AccessLevel: record.AccessLevel,
	}
}
