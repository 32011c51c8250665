package study

import (
	"context"
	"errors"
	"fmt"

	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/auditlog"
	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/common/logger"
	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/common/models"
	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/consent"
	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/pseudonym"
	"github.com/google/uuid"
)

const (
	OperationChat            = "chat"
	OperationImageGeneration = "image_generation"
	OperationDataExport      = "data_export"
	OperationSurvey          = "survey"
)

var ErrNotOnboarded = errors.New("participant has no pseudonym mapping")

// Service wires the consent gate, identity manager and audit log into the
// participant-facing operations: every data-collecting call passes the gate
// first, then resolves the pseudonym, then runs inside an audit scope.
type Service struct {
	gate       *consent.Gate
	consents   *consent.Service
	identities *pseudonym.Service
	audit      *auditlog.Service
	client     ModelClient

	// retainOnErase is the study protocol's retention policy: when false,
	// erasing a participant purges their pseudonymous interaction rows even
	// if the request does not ask for it.
	retainOnErase bool
}

func NewService(gate *consent.Gate, consents *consent.Service, identities *pseudonym.Service, audit *auditlog.Service, client ModelClient, retainOnErase bool) *Service {
	return &Service{
		gate:          gate,
		consents:      consents,
		identities:    identities,
		audit:         audit,
		client:        client,
		retainOnErase: retainOnErase,
	}
}

// Onboard allocates a pseudonym, creates the identity mapping and records
// the initial consent decisions. The pseudonym allocation and the mapping
// insert both lean on unique constraints, so two concurrent onboardings of
// the same account leave exactly one mapping behind.
func (s *Service) Onboard(ctx context.Context, req models.OnboardRequest) (models.OnboardResult, error) {
	if req.AccountID == uuid.Nil {
		return models.OnboardResult{}, fmt.Errorf("account id required")
	}

	allocated, err := s.identities.Allocate(ctx, req.SeedText)
	if err != nil {
		return models.OnboardResult{}, err
	}

	mapping, err := s.identities.CreateMapping(ctx, req.AccountID, allocated.ID, "onboarding", models.AccessLevelAdmin)
	if err != nil {
		return models.OnboardResult{}, err
	}

	result := models.OnboardResult{Pseudonym: allocated, Mapping: mapping}
	if len(req.Consents) > 0 {
		records, err := s.consents.RecordBulkConsent(ctx, req.AccountID, req.Consents)
		result.ConsentRecords = records
		if err != nil {
			// Consent writes are per-entry; the participant is onboarded and
			// can re-consent for whatever failed.
			logger.Log.WithError(err).WithField("account_id", req.AccountID).Warn("partial consent recording during onboarding")
		}
	}

	return result, nil
}

// Chat runs one gated chat exchange inside an audit scope. The scope
// finalizes on every exit path; a model-client error still propagates to
// the caller after the audit row is finalized.
func (s *Service) Chat(ctx context.Context, req models.ChatRequest) (resp models.ChatResponse, err error) {
	call := models.CallContext{
		AccountID: req.AccountID,
		SessionID: req.SessionID,
		Operation: OperationChat,
	}
	if err := s.gate.Require(ctx, call); err != nil {
		return models.ChatResponse{}, err
	}

	pseudonymID, err := s.identities.PseudonymFor(ctx, req.AccountID)
	if err != nil {
		if errors.Is(err, pseudonym.ErrMappingNotFound) {
			return models.ChatResponse{}, ErrNotOnboarded
		}
		return models.ChatResponse{}, err
	}

	scope := s.audit.Begin(ctx, auditlog.BeginInput{
		PseudonymID:     pseudonymID,
		SessionID:       req.SessionID,
		InteractionType: OperationChat,
		Parameters:      req.Parameters,
	})
	defer scope.End(ctx)

	scope.SetPrompt(req.Prompt)
	result, err := s.client.Chat(ctx, req.Prompt, req.Parameters)
	if err != nil {
		return models.ChatResponse{}, err
	}

	scope.SetResponse(result.Output)
	scope.SetModelUsed(result.Model)
	scope.SetTokenUsage(result.TokenUsage)

	return models.ChatResponse{
		Response:  result.Output,
		ModelUsed: result.Model,
		SessionID: req.SessionID,
	}, nil
}

// GenerateImage mirrors Chat for the image operation, which requires the
// additional image_generation consent.
func (s *Service) GenerateImage(ctx context.Context, req models.ImageGenerationRequest) (models.ImageGenerationResponse, error) {
	call := models.CallContext{
		AccountID: req.AccountID,
		SessionID: req.SessionID,
		Operation: OperationImageGeneration,
	}
	if err := s.gate.Require(ctx, call); err != nil {
		return models.ImageGenerationResponse{}, err
	}

	pseudonymID, err := s.identities.PseudonymFor(ctx, req.AccountID)
	if err != nil {
		if errors.Is(err, pseudonym.ErrMappingNotFound) {
			return models.ImageGenerationResponse{}, ErrNotOnboarded
		}
		return models.ImageGenerationResponse{}, err
	}

	scope := s.audit.Begin(ctx, auditlog.BeginInput{
		PseudonymID:     pseudonymID,
		SessionID:       req.SessionID,
		InteractionType: OperationImageGeneration,
		Parameters:      req.Parameters,
	})
	defer scope.End(ctx)

	scope.SetPrompt(req.Prompt)
	result, err := s.client.GenerateImage(ctx, req.Prompt, req.Parameters)
	if err != nil {
		return models.ImageGenerationResponse{}, err
	}

	scope.SetResponse(result.Output)
	scope.SetModelUsed(result.Model)
	scope.SetTokenUsage(result.TokenUsage)

	return models.ImageGenerationResponse{
		ImageRef:  result.Output,
		ModelUsed: result.Model,
		SessionID: req.SessionID,
	}, nil
}

// ExportParticipantData is the gated research export for one participant's
// own pseudonymous data.
func (s *Service) ExportParticipantData(ctx context.Context, accountID uuid.UUID) ([]models.InteractionExportRecord, error) {
	call := models.CallContext{AccountID: accountID, Operation: OperationDataExport}
	if err := s.gate.Require(ctx, call); err != nil {
		return nil, err
	}

	pseudonymID, err := s.identities.PseudonymFor(ctx, accountID)
	if err != nil {
		if errors.Is(err, pseudonym.ErrMappingNotFound) {
			return nil, ErrNotOnboarded
		}
		return nil, err
	}

	return s.audit.Export(ctx, auditlog.Filter{PseudonymID: &pseudonymID})
}

// MissingConsents drives the UI re-consent prompt for an operation.
func (s *Service) MissingConsents(ctx context.Context, accountID uuid.UUID, operation string) []models.ConsentType {
	return s.gate.MissingConsents(ctx, accountID, operation)
}

// EraseParticipant unlinks the identity mapping and, when the study
// protocol demands it, purges the pseudonymous interaction rows too. The
// two erasures stay separate operations with separate retention policies;
// the purge runs when the request asks for it or the protocol does not
// retain pseudonymous data.
func (s *Service) EraseParticipant(ctx context.Context, req models.EraseParticipantRequest) (models.EraseParticipantResult, error) {
	var result models.EraseParticipantResult

	pseudonymID, err := s.identities.PseudonymFor(ctx, req.AccountID)
	if err != nil {
		if errors.Is(err, pseudonym.ErrMappingNotFound) {
			return result, ErrNotOnboarded
		}
		return result, err
	}

	erased, err := s.identities.EraseMapping(ctx, req.AccountID)
	if err != nil {
		return result, err
	}
	result.MappingErased = erased

	if req.PurgeInteractions || !s.retainOnErase {
		purged, err := s.audit.ErasePseudonymData(ctx, pseudonymID)
		if err != nil {
			return result, err
		}
		result.InteractionsPurged = purged
	}

	return result, nil
}
