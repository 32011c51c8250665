package auditlog

import (
	"context"
	"sync"
	"time"

	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/common/kafka"
	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/common/logger"
	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/common/models"
	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/observability/metrics"
	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/redaction"
	"github.com/google/uuid"
)

// Service owns the interaction audit log. Unlike consent gating it is
// fail-open: a missing audit row must never block a participant's
// interaction, so creation failures degrade to a no-op scope and
// finalization failures are absorbed.
type Service struct {
	repo     *Repository
	scrubber *redaction.Scrubber
	producer *kafka.Producer
}

func NewService(repo *Repository, scrubber *redaction.Scrubber, producer *kafka.Producer) *Service {
	return &Service{repo: repo, scrubber: scrubber, producer: producer}
}

type BeginInput struct {
	PseudonymID     uuid.UUID
	SessionID       uuid.UUID
	InteractionType string
	ModelUsed       string
	Parameters      map[string]interface{}
}

// Scope is the guaranteed-finalization handle around one AI exchange. The
// caller defers End; whatever fields were set by then are written in a
// single finalization, exactly once, before any wrapped error continues to
// propagate.
type Scope struct {
	svc   *Service
	logID uuid.UUID

	mu         sync.Mutex
	prompt     string
	response   string
	modelUsed  string
	parameters map[string]interface{}
	tokenUsage map[string]interface{}
	started    time.Time
	finalized  bool
}

// Begin persists an "open" row and returns the scope. When the insert
// fails the returned scope is degraded (no row, End is a no-op) and the
// interaction proceeds without an audit record.
func (s *Service) Begin(ctx context.Context, in BeginInput) *Scope {
	scope := &Scope{
		svc:        s,
		modelUsed:  in.ModelUsed,
		parameters: cloneParams(in.Parameters),
		started:    time.Now(),
	}

	record := models.InteractionRecord{
		PseudonymID:     in.PseudonymID,
		SessionID:       in.SessionID,
		InteractionType: in.InteractionType,
		ModelUsed:       in.ModelUsed,
		Parameters:      scope.parameters,
	}
	logID, err := s.repo.CreateOpen(ctx, record)
	if err != nil {
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"pseudonym_id":     in.PseudonymID,
			"interaction_type": in.InteractionType,
		}).Warn("could not open interaction audit row, continuing without audit")
		return scope
	}

	scope.logID = logID
	return scope
}

func (sc *Scope) LogID() uuid.UUID {
	return sc.logID
}

func (sc *Scope) SetPrompt(prompt string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.prompt = prompt
}

func (sc *Scope) SetResponse(response string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.response = response
}

func (sc *Scope) SetModelUsed(model string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.modelUsed = model
}

func (sc *Scope) SetTokenUsage(usage map[string]interface{}) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.tokenUsage = cloneParams(usage)
}

// AddParameter merges into the handle's map and, when the row already
// exists, immediately persists a wholesale replacement of the stored map.
func (sc *Scope) AddParameter(ctx context.Context, key string, value interface{}) {
	sc.mu.Lock()
	if sc.parameters == nil {
		sc.parameters = make(map[string]interface{})
	}
	sc.parameters[key] = value
	snapshot := cloneParams(sc.parameters)
	logID := sc.logID
	sc.mu.Unlock()

	if logID == uuid.Nil {
		return
	}
	if err := sc.svc.repo.ReplaceParameters(ctx, logID, snapshot); err != nil {
		logger.Log.WithError(err).WithField("log_id", logID).Warn("failed to persist interaction parameters")
	}
}

// End finalizes the row exactly once with elapsed wall-clock latency.
// Persistence failures are logged and absorbed so the scope always exits
// cleanly; callers defer End before invoking the model client.
func (sc *Scope) End(ctx context.Context) {
	sc.mu.Lock()
	if sc.finalized {
		sc.mu.Unlock()
		return
	}
	sc.finalized = true
	record := models.InteractionRecord{
		Prompt:     sc.svc.scrub(sc.prompt),
		Response:   sc.svc.scrub(sc.response),
		ModelUsed:  sc.modelUsed,
		Parameters: cloneParams(sc.parameters),
		TokenUsage: cloneParams(sc.tokenUsage),
		LatencyMs:  time.Since(sc.started).Milliseconds(),
	}
	logID := sc.logID
	sc.mu.Unlock()

	if logID == uuid.Nil {
		return
	}

	// The request context may already be canceled when the wrapped call
	// failed; the finalize write still has to land.
	ctx = context.WithoutCancel(ctx)

	if err := sc.svc.repo.Finalize(ctx, logID, record); err != nil {
		metrics.IncFinalizeFailures()
		logger.Log.WithError(err).WithField("log_id", logID).Error("failed to finalize interaction audit row")
		return
	}

	metrics.IncInteractionsLogged()
	sc.svc.publish(ctx, "interaction_finalized", map[string]interface{}{
		"log_id":     logID.String(),
		"latency_ms": record.LatencyMs,
	})
}

// LogInteraction persists a fully-formed record in one shot, for callers
// that already hold prompt and response.
func (s *Service) LogInteraction(ctx context.Context, record models.InteractionRecord) (models.InteractionRecord, error) {
	record.Prompt = s.scrub(record.Prompt)
	record.Response = s.scrub(record.Response)
	stored, err := s.repo.CreateFinalized(ctx, record)
	if err != nil {
		return models.InteractionRecord{}, err
	}
	metrics.IncInteractionsLogged()
	return stored, nil
}

func (s *Service) SessionInteractions(ctx context.Context, sessionID uuid.UUID) ([]models.InteractionRecord, error) {
	return s.repo.List(ctx, Filter{SessionID: &sessionID}, 0)
}

func (s *Service) PseudonymInteractions(ctx context.Context, pseudonymID uuid.UUID, limit int) ([]models.InteractionRecord, error) {
	return s.repo.List(ctx, Filter{PseudonymID: &pseudonymID}, limit)
}

// Export renders matching entries with string identifiers and RFC3339
// timestamps. Entries are pseudonym-keyed, so the real account id cannot
// appear by construction.
func (s *Service) Export(ctx context.Context, filter Filter) ([]models.InteractionExportRecord, error) {
	records, err := s.repo.List(ctx, filter, 0)
	if err != nil {
		return nil, err
	}
	exported := make([]models.InteractionExportRecord, len(records))
	for i, record := range records {
		exported[i] = models.InteractionExportRecord{
			LogID:           record.LogID.String(),
			PseudonymID:     record.PseudonymID.String(),
			SessionID:       record.SessionID.String(),
			InteractionType: record.InteractionType,
			Prompt:          record.Prompt,
			Response:        record.Response,
			ModelUsed:       record.ModelUsed,
			Parameters:      record.Parameters,
			TokenUsage:      record.TokenUsage,
			LatencyMs:       record.LatencyMs,
			CreatedAt:       record.CreatedAt.UTC().Format(time.RFC3339),
		}
	}
	return exported, nil
}

// Statistics aggregates the matching entries in memory. TotalTokens takes a
// provider-reported total_tokens entry when one is present in an entry's
// usage map; otherwise every numeric value in that map is summed.
func (s *Service) Statistics(ctx context.Context, filter Filter) (models.InteractionStatistics, error) {
	records, err := s.repo.List(ctx, filter, 0)
	if err != nil {
		return models.InteractionStatistics{}, err
	}
	return computeStatistics(records), nil
}

// ErasePseudonymData deletes every interaction row for the pseudonym in one
// transaction and reports how many rows were removed, for compliance
// reporting. A failed delete rolls back fully and returns zero.
func (s *Service) ErasePseudonymData(ctx context.Context, pseudonymID uuid.UUID) (int64, error) {
	deleted, err := s.repo.DeleteByPseudonym(ctx, pseudonymID)
	if err != nil {
		return 0, err
	}
	metrics.AddInteractionRowsErased(deleted)
	s.publish(ctx, "pseudonym_data_erased", map[string]interface{}{
		"pseudonym_id": pseudonymID.String(),
		"rows_deleted": deleted,
	})
	return deleted, nil
}

func (s *Service) scrub(text string) string {
	if s.scrubber == nil {
		return text
	}
	return s.scrubber.Scrub(text)
}

func (s *Service) publish(ctx context.Context, eventType string, data map[string]interface{}) {
	if s.producer == nil {
		return
	}
	if err := s.producer.PublishEvent(ctx, eventType, "auditlog-service", data); err != nil {
		logger.Log.WithError(err).WithField("event_type", eventType).Warn("failed to publish audit event")
	}
}

func cloneParams(in map[string]interface{}) map[string]interface{} {
	if in == nil {
		return nil
	}
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
