package consent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/common/kafka"
	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/common/logger"
	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/common/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Service is the append-only consent ledger. Reads are fail-closed: any
// internal error counts as "no consent".
type Service struct {
	repo     *Repository
	cache    *statusCache
	producer *kafka.Producer
	version  string
}

func NewService(repo *Repository, cacheClient *redis.Client, cacheTTL time.Duration, producer *kafka.Producer, version string) *Service {
	if version == "" {
		version = "1.0"
	}
	return &Service{
		repo:     repo,
		cache:    newStatusCache(cacheClient, cacheTTL),
		producer: producer,
		version:  version,
	}
}

func (s *Service) RecordConsent(ctx context.Context, accountID uuid.UUID, consentType models.ConsentType, given bool, metadata map[string]interface{}) (models.ConsentRecord, error) {
	if accountID == uuid.Nil {
		return models.ConsentRecord{}, fmt.Errorf("%w: account id required", ErrConsent)
	}
	if !models.IsKnownConsentType(consentType) {
		return models.ConsentRecord{}, fmt.Errorf("%w: %s", ErrUnknownType, consentType)
	}

	record, err := s.repo.Append(ctx, models.ConsentRecord{
		AccountID:      accountID,
		ConsentType:    consentType,
		ConsentGiven:   given,
		ConsentVersion: s.version,
		Metadata:       metadata,
	})
	if err != nil {
		return models.ConsentRecord{}, fmt.Errorf("%w: %v", ErrConsent, err)
	}

	s.cache.invalidate(ctx, accountID, consentType)
	s.publish(ctx, eventTypeFor(given), map[string]interface{}{
		"consent_type": string(consentType),
		"given":        given,
		"version":      record.ConsentVersion,
	})
	return record, nil
}

// WithdrawConsent is idempotent: when no consent is currently given it
// succeeds without writing, so repeated withdrawals stay single-record.
func (s *Service) WithdrawConsent(ctx context.Context, accountID uuid.UUID, consentType models.ConsentType, reason string) (bool, error) {
	current, err := s.currentStatus(ctx, accountID, consentType)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrConsentWithdrawal, err)
	}
	if !current {
		return true, nil
	}

	now := time.Now().UTC()
	metadata := map[string]interface{}{}
	if reason != "" {
		metadata["reason"] = reason
	}
	_, err = s.repo.Append(ctx, models.ConsentRecord{
		AccountID:      accountID,
		ConsentType:    consentType,
		ConsentGiven:   false,
		ConsentVersion: s.version,
		Metadata:       metadata,
		WithdrawnAt:    &now,
	})
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrConsentWithdrawal, err)
	}

	s.cache.invalidate(ctx, accountID, consentType)
	s.publish(ctx, "consent_withdrawn", map[string]interface{}{
		"consent_type": string(consentType),
		"reason":       reason,
	})
	return true, nil
}

// CheckConsent never returns an error: lookups that fail are treated as
// "not granted" so gating errs toward restriction.
func (s *Service) CheckConsent(ctx context.Context, accountID uuid.UUID, consentType models.ConsentType) bool {
	if accountID == uuid.Nil {
		return false
	}
	if given, hit := s.cache.get(ctx, accountID, consentType); hit {
		return given
	}

	given, err := s.currentStatus(ctx, accountID, consentType)
	if err != nil {
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"account_id":   accountID,
			"consent_type": consentType,
		}).Warn("consent check failed, denying")
		return false
	}

	s.cache.set(ctx, accountID, consentType, given)
	return given
}

func (s *Service) RequireConsent(ctx context.Context, accountID uuid.UUID, consentType models.ConsentType) error {
	return s.RequireConsents(ctx, accountID, []models.ConsentType{consentType})
}

func (s *Service) RequireConsents(ctx context.Context, accountID uuid.UUID, types []models.ConsentType) error {
	var missing []models.ConsentType
	for _, t := range types {
		if !s.CheckConsent(ctx, accountID, t) {
			missing = append(missing, t)
		}
	}
	if len(missing) > 0 {
		return &RequiredError{Missing: missing}
	}
	return nil
}

// RecordBulkConsent applies RecordConsent per entry in deterministic type
// order. Earlier writes are not rolled back when a later one fails; the
// records written so far are returned alongside the error.
func (s *Service) RecordBulkConsent(ctx context.Context, accountID uuid.UUID, consents map[models.ConsentType]bool) ([]models.ConsentRecord, error) {
	types := make([]models.ConsentType, 0, len(consents))
	for t := range consents {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	records := make([]models.ConsentRecord, 0, len(types))
	for _, t := range types {
		record, err := s.RecordConsent(ctx, accountID, t, consents[t], nil)
		if err != nil {
			return records, err
		}
		records = append(records, record)
	}
	return records, nil
}

// Summary reports which consents are currently held, the completion rate
// over all defined types, and the most recent ledger activity.
func (s *Service) Summary(ctx context.Context, accountID uuid.UUID) (models.ConsentSummary, error) {
	records, err := s.repo.ListByAccount(ctx, accountID)
	if err != nil {
		return models.ConsentSummary{}, fmt.Errorf("%w: %v", ErrConsent, err)
	}

	latestByType := make(map[models.ConsentType]models.ConsentRecord)
	var latestActivity *time.Time
	for _, record := range records {
		record := record
		latestByType[record.ConsentType] = record
		if latestActivity == nil || record.Timestamp.After(*latestActivity) {
			latestActivity = &record.Timestamp
		}
	}

	status := make(map[models.ConsentType]bool, len(models.AllConsentTypes))
	given := 0
	for _, t := range models.AllConsentTypes {
		record, ok := latestByType[t]
		current := ok && record.ConsentGiven && record.WithdrawnAt == nil
		status[t] = current
		if current {
			given++
		}
	}

	return models.ConsentSummary{
		AccountID:      accountID,
		Status:         status,
		CompletionRate: float64(given) / float64(len(models.AllConsentTypes)),
		LatestActivity: latestActivity,
	}, nil
}

func (s *Service) History(ctx context.Context, accountID uuid.UUID) ([]models.ConsentRecord, error) {
	return s.repo.ListByAccount(ctx, accountID)
}

func (s *Service) currentStatus(ctx context.Context, accountID uuid.UUID, consentType models.ConsentType) (bool, error) {
	record, err := s.repo.Latest(ctx, accountID, consentType)
	if errors.Is(err, ErrNoRecord) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return record.ConsentGiven && record.WithdrawnAt == nil, nil
}

func (s *Service) publish(ctx context.Context, eventType string, data map[string]interface{}) {
	if s.producer == nil {
		return
	}
	if err := s.producer.PublishEvent(ctx, eventType, "consent-service", data); err != nil {
		logger.Log.WithError(err).WithField("event_type", eventType).Warn("failed to publish consent event")
	}
}

func eventTypeFor(given bool) string {
	if given {
		return "consent_recorded"
	}
	return "consent_declined"
}
