package pseudonym

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/common/kafka"
	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/common/logger"
	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/common/models"
	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/observability/metrics"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const defaultMaxAttempts = 25

var (
	// ErrMappingConflict deliberately does not say whether the account or
	// the pseudonym side collided, to prevent enumeration.
	ErrMappingConflict = errors.New("identity mapping already exists")
	ErrNotAuthorized   = errors.New("access level insufficient for re-identification")
	ErrSeedRequired    = errors.New("seed text required")
	ErrRetriesExceeded = errors.New("pseudonym allocation retries exceeded")
)

type Service struct {
	repo        *Repository
	producer    *kafka.Producer
	salt        string
	maxAttempts int
}

func NewService(repo *Repository, producer *kafka.Producer, salt string, maxAttempts int) *Service {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &Service{repo: repo, producer: producer, salt: salt, maxAttempts: maxAttempts}
}

// GeneratePseudonym finds a free pseudonym text for the seed without
// persisting anything. Collisions are resolved by bumping the trailing
// digit run; the walk is monotonic, so it terminates, but contention is
// still bounded by maxAttempts.
func (s *Service) GeneratePseudonym(ctx context.Context, seed string) (string, error) {
	candidate := normalizeSeed(seed)
	if candidate == "" {
		return "", ErrSeedRequired
	}

	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		taken, err := s.repo.TextExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("pseudonym lookup failed: %w", err)
		}
		if !taken {
			return candidate, nil
		}
		candidate = NextCandidate(candidate)
	}

	return "", ErrRetriesExceeded
}

// Allocate persists a pseudonym for the seed. The insert races against
// concurrent allocations of the same candidate; on a duplicate the next
// candidate is tried, up to the attempt cap.
func (s *Service) Allocate(ctx context.Context, seed string) (models.Pseudonym, error) {
	candidate := normalizeSeed(seed)
	if candidate == "" {
		return models.Pseudonym{}, ErrSeedRequired
	}

	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		taken, err := s.repo.TextExists(ctx, candidate)
		if err != nil {
			return models.Pseudonym{}, fmt.Errorf("pseudonym lookup failed: %w", err)
		}
		if taken {
			candidate = NextCandidate(candidate)
			continue
		}

		created, err := s.repo.CreatePseudonym(ctx, candidate, s.hash(candidate))
		if errors.Is(err, ErrPseudonymTaken) {
			candidate = NextCandidate(candidate)
			continue
		}
		if err != nil {
			return models.Pseudonym{}, err
		}
		return created, nil
	}

	return models.Pseudonym{}, ErrRetriesExceeded
}

// CreateMapping links an account to its pseudonym. Exactly one mapping may
// exist per account and per pseudonym; a duplicate on either side surfaces
// as the same ErrMappingConflict.
func (s *Service) CreateMapping(ctx context.Context, accountID, pseudonymID uuid.UUID, createdBy, accessLevel string) (models.IdentityMapping, error) {
	if accountID == uuid.Nil || pseudonymID == uuid.Nil {
		return models.IdentityMapping{}, fmt.Errorf("account and pseudonym ids required")
	}
	if models.AccessRank(accessLevel) == 0 {
		accessLevel = models.AccessLevelAdmin
	}

	mapping, err := s.repo.CreateMapping(ctx, accountID, pseudonymID, createdBy, accessLevel)
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			metrics.IncMappingConflicts()
			return models.IdentityMapping{}, ErrMappingConflict
		}
		return models.IdentityMapping{}, err
	}
	return mapping, nil
}

// PseudonymFor returns the pseudonym id linked to an account. This direction
// never exposes a real identity and needs no access check.
func (s *Service) PseudonymFor(ctx context.Context, accountID uuid.UUID) (uuid.UUID, error) {
	mapping, err := s.repo.GetMappingByAccount(ctx, accountID)
	if err != nil {
		return uuid.Nil, err
	}
	return mapping.PseudonymID, nil
}

// ResolveAccount is the sole re-identification path. The requester must meet
// the access level stored on the mapping, and every attempt is recorded in
// the re-identification audit trail, denied ones included.
func (s *Service) ResolveAccount(ctx context.Context, pseudonymID uuid.UUID, requestedBy, requesterLevel string) (uuid.UUID, error) {
	mapping, err := s.repo.GetMappingByPseudonym(ctx, pseudonymID)
	if err != nil {
		return uuid.Nil, err
	}

	allowed := models.AccessRank(requesterLevel) >= models.AccessRank(mapping.AccessLevel) &&
		models.AccessRank(requesterLevel) > 0

	if auditErr := s.repo.AppendReidentificationAudit(ctx, pseudonymID, requestedBy, requesterLevel, allowed); auditErr != nil {
		logger.Log.WithError(auditErr).Error("failed to append re-identification audit")
	}
	s.publish(ctx, "reidentification", map[string]interface{}{
		"pseudonym_id": pseudonymID.String(),
		"requested_by": requestedBy,
		"allowed":      allowed,
	})

	if !allowed {
		return uuid.Nil, ErrNotAuthorized
	}
	return mapping.AccountID, nil
}

// EraseMapping removes the identity link for an account in one transaction.
// Pseudonym-keyed interaction data is intentionally untouched: it follows a
// separate retention policy and is erased through the audit log service.
func (s *Service) EraseMapping(ctx context.Context, accountID uuid.UUID) (bool, error) {
	deleted, err := s.repo.DeleteMappingByAccount(ctx, accountID)
	if err != nil {
		return false, err
	}
	if deleted == 0 {
		return false, nil
	}
	s.publish(ctx, "mapping_erased", map[string]interface{}{
		"account_id": accountID.String(),
	})
	return true, nil
}

func (s *Service) GetPseudonym(ctx context.Context, id uuid.UUID) (models.Pseudonym, error) {
	return s.repo.GetPseudonym(ctx, id)
}

func (s *Service) hash(text string) string {
	sum := sha256.Sum256([]byte(s.salt + ":" + text))
	return hex.EncodeToString(sum[:])
}

func (s *Service) publish(ctx context.Context, eventType string, data map[string]interface{}) {
	if s.producer == nil {
		return
	}
	if err := s.producer.PublishEvent(ctx, eventType, "pseudonym-service", data); err != nil {
		logger.Log.WithError(err).WithField("event_type", eventType).Warn("failed to publish pseudonym event")
	}
}
