package study

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/auditlog"
	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/common/models"
	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/consent"
	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/pseudonym"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeModelClient struct {
	chatErr  error
	imageErr error
	calls    int
}

func (c *fakeModelClient) Chat(_ context.Context, prompt string, _ map[string]interface{}) (ModelResult, error) {
	c.calls++
	if c.chatErr != nil {
		return ModelResult{}, c.chatErr
	}
	return ModelResult{
		Output:     "echo: " + prompt,
		Model:      "test-model",
		TokenUsage: map[string]interface{}{"total_tokens": 7},
	}, nil
}

func (c *fakeModelClient) GenerateImage(_ context.Context, prompt string, _ map[string]interface{}) (ModelResult, error) {
	c.calls++
	if c.imageErr != nil {
		return ModelResult{}, c.imageErr
	}
	return ModelResult{Output: "images/" + prompt + ".png", Model: "test-image-model"}, nil
}

type fixture struct {
	svc    *Service
	client *fakeModelClient
	audit  *auditlog.Service
	db     *gorm.DB
}

func newFixture(t *testing.T, gateEnabled bool) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	identityRepo := pseudonym.NewRepository(db)
	consentRepo := consent.NewRepository(db)
	auditRepo := auditlog.NewRepository(db)
	for _, migrate := range []func() error{identityRepo.AutoMigrate, consentRepo.AutoMigrate, auditRepo.AutoMigrate} {
		if err := migrate(); err != nil {
			t.Fatalf("failed to migrate: %v", err)
		}
	}

	consents := consent.NewService(consentRepo, nil, 0, nil, "1.0")
	gate := consent.NewGate(consents, nil, gateEnabled)
	identities := pseudonym.NewService(identityRepo, nil, "test-salt", 10)
	audit := auditlog.NewService(auditRepo, nil, nil)
	client := &fakeModelClient{}

	return &fixture{
		svc:    NewService(gate, consents, identities, audit, client, true),
		client: client,
		audit:  audit,
		db:     db,
	}
}

func onboard(t *testing.T, f *fixture, account uuid.UUID, consents map[models.ConsentType]bool) models.OnboardResult {
	t.Helper()
	result, err := f.svc.Onboard(context.Background(), models.OnboardRequest{
		AccountID: account,
		SeedText:  "Nc1985Bln",
		Consents:  consents,
	})
	if err != nil {
		t.Fatalf("onboarding failed: %v", err)
	}
	return result
}

func TestChatHappyPath(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	account := uuid.New()
	result := onboard(t, f, account, map[models.ConsentType]bool{
		models.ConsentDataProcessing: true,
		models.ConsentAIInteraction:  true,
	})

	session := uuid.New()
	resp, err := f.svc.Chat(ctx, models.ChatRequest{
		AccountID: account,
		SessionID: session,
		Prompt:    "hello",
	})
	if err != nil {
		t.Fatalf("chat failed: %v", err)
	}
	if resp.Response != "echo: hello" || resp.ModelUsed != "test-model" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	records, err := f.audit.SessionInteractions(ctx, session)
	if err != nil || len(records) != 1 {
		t.Fatalf("expected one audit row: %v (%d)", err, len(records))
	}
	record := records[0]
	if record.Status != auditlog.StatusFinalized {
		t.Fatalf("expected finalized row, got %q", record.Status)
	}
	if record.PseudonymID != result.Mapping.PseudonymID {
		t.Fatal("audit row must be keyed by the pseudonym")
	}
	if record.PseudonymID == account {
		t.Fatal("audit row must not carry the account id")
	}
	if record.Prompt != "hello" || record.Response != "echo: hello" {
		t.Fatalf("prompt/response mismatch: %+v", record)
	}
}

func TestChatDeniedWithoutConsent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	account := uuid.New()
	onboard(t, f, account, map[models.ConsentType]bool{
		models.ConsentDataProcessing: true,
		// ai_interaction never granted
	})

	_, err := f.svc.Chat(ctx, models.ChatRequest{AccountID: account, SessionID: uuid.New(), Prompt: "hi"})
	required, ok := consent.IsRequiredError(err)
	if !ok {
		t.Fatalf("expected RequiredError, got %v", err)
	}
	if len(required.Missing) != 1 || required.Missing[0] != models.ConsentAIInteraction {
		t.Fatalf("unexpected missing set: %v", required.Missing)
	}
	if f.client.calls != 0 {
		t.Fatal("model client must not run for a denied call")
	}

	var count int64
	if err := f.db.Model(&auditlog.InteractionLogModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Fatal("denied calls must not leave audit rows")
	}
}

func TestChatModelErrorStillFinalizes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	account := uuid.New()
	onboard(t, f, account, map[models.ConsentType]bool{
		models.ConsentDataProcessing: true,
		models.ConsentAIInteraction:  true,
	})

	modelErr := errors.New("model unavailable")
	f.client.chatErr = modelErr
	session := uuid.New()

	_, err := f.svc.Chat(ctx, models.ChatRequest{AccountID: account, SessionID: session, Prompt: "hi"})
	if !errors.Is(err, modelErr) {
		t.Fatalf("model error must propagate, got %v", err)
	}

	records, listErr := f.audit.SessionInteractions(ctx, session)
	if listErr != nil || len(records) != 1 {
		t.Fatalf("expected exactly one audit row: %v (%d)", listErr, len(records))
	}
	if records[0].Status != auditlog.StatusFinalized {
		t.Fatalf("row must be finalized even on failure, got %q", records[0].Status)
	}
	if records[0].Response != "" {
		t.Fatalf("failed call must not record a response, got %q", records[0].Response)
	}
}

func TestChatRequiresOnboarding(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	account := uuid.New()
	// Consent without a mapping.
	if _, err := f.svc.consents.RecordBulkConsent(ctx, account, map[models.ConsentType]bool{
		models.ConsentDataProcessing: true,
		models.ConsentAIInteraction:  true,
	}); err != nil {
		t.Fatalf("grants failed: %v", err)
	}

	_, err := f.svc.Chat(ctx, models.ChatRequest{AccountID: account, SessionID: uuid.New(), Prompt: "hi"})
	if !errors.Is(err, ErrNotOnboarded) {
		t.Fatalf("expected ErrNotOnboarded, got %v", err)
	}
}

func TestDisabledGateSkipsConsent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	account := uuid.New()
	onboard(t, f, account, nil)

	if _, err := f.svc.Chat(ctx, models.ChatRequest{AccountID: account, SessionID: uuid.New(), Prompt: "hi"}); err != nil {
		t.Fatalf("disabled gate should admit without consent: %v", err)
	}
}

func TestImageGenerationNeedsExtraConsent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	account := uuid.New()
	onboard(t, f, account, map[models.ConsentType]bool{
		models.ConsentDataProcessing: true,
		models.ConsentAIInteraction:  true,
	})

	req := models.ImageGenerationRequest{AccountID: account, SessionID: uuid.New(), Prompt: "avatar"}
	_, err := f.svc.GenerateImage(ctx, req)
	required, ok := consent.IsRequiredError(err)
	if !ok || len(required.Missing) != 1 || required.Missing[0] != models.ConsentImageGeneration {
		t.Fatalf("expected image_generation to be missing, got %v", err)
	}

	if _, err := f.svc.consents.RecordConsent(ctx, account, models.ConsentImageGeneration, true, nil); err != nil {
		t.Fatalf("grant failed: %v", err)
	}
	resp, err := f.svc.GenerateImage(ctx, req)
	if err != nil {
		t.Fatalf("image generation failed: %v", err)
	}
	if resp.ImageRef != "images/avatar.png" {
		t.Fatalf("unexpected image ref: %q", resp.ImageRef)
	}
}

func TestEraseParticipant(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	account := uuid.New()
	onboard(t, f, account, map[models.ConsentType]bool{
		models.ConsentDataProcessing: true,
		models.ConsentAIInteraction:  true,
	})

	session := uuid.New()
	if _, err := f.svc.Chat(ctx, models.ChatRequest{AccountID: account, SessionID: session, Prompt: "hi"}); err != nil {
		t.Fatalf("chat failed: %v", err)
	}

	result, err := f.svc.EraseParticipant(ctx, models.EraseParticipantRequest{
		AccountID:         account,
		PurgeInteractions: true,
	})
	if err != nil {
		t.Fatalf("erase failed: %v", err)
	}
	if !result.MappingErased {
		t.Fatal("expected the mapping to be erased")
	}
	if result.InteractionsPurged != 1 {
		t.Fatalf("expected 1 interaction purged, got %d", result.InteractionsPurged)
	}

	// The participant reads as never onboarded afterwards.
	if _, err := f.svc.Chat(ctx, models.ChatRequest{AccountID: account, SessionID: uuid.New(), Prompt: "hi"}); !errors.Is(err, ErrNotOnboarded) {
		t.Fatalf("expected ErrNotOnboarded after erasure, got %v", err)
	}
}

func TestEraseParticipantPurgesByRetentionPolicy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.svc.retainOnErase = false
	account := uuid.New()
	onboard(t, f, account, map[models.ConsentType]bool{
		models.ConsentDataProcessing: true,
		models.ConsentAIInteraction:  true,
	})

	if _, err := f.svc.Chat(ctx, models.ChatRequest{AccountID: account, SessionID: uuid.New(), Prompt: "hi"}); err != nil {
		t.Fatalf("chat failed: %v", err)
	}

	// The request does not ask for a purge; the protocol policy forces it.
	result, err := f.svc.EraseParticipant(ctx, models.EraseParticipantRequest{AccountID: account})
	if err != nil {
		t.Fatalf("erase failed: %v", err)
	}
	if result.InteractionsPurged != 1 {
		t.Fatalf("policy purge expected 1 row, got %d", result.InteractionsPurged)
	}

	var remaining int64
	if err := f.db.Model(&auditlog.InteractionLogModel{}).Count(&remaining).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected no interaction rows left, got %d", remaining)
	}
}

func TestEraseParticipantRetainsByDefault(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	account := uuid.New()
	onboard(t, f, account, map[models.ConsentType]bool{
		models.ConsentDataProcessing: true,
		models.ConsentAIInteraction:  true,
	})

	if _, err := f.svc.Chat(ctx, models.ChatRequest{AccountID: account, SessionID: uuid.New(), Prompt: "hi"}); err != nil {
		t.Fatalf("chat failed: %v", err)
	}

	result, err := f.svc.EraseParticipant(ctx, models.EraseParticipantRequest{AccountID: account})
	if err != nil {
		t.Fatalf("erase failed: %v", err)
	}
	if result.InteractionsPurged != 0 {
		t.Fatalf("retaining protocol must not purge, got %d", result.InteractionsPurged)
	}

	var remaining int64
	if err := f.db.Model(&auditlog.InteractionLogModel{}).Count(&remaining).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if remaining != 1 {
		t.Fatalf("pseudonymous row should survive unlinking, got %d", remaining)
	}
}

func TestOnboardRecordsConsentDecisions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	account := uuid.New()

	result := onboard(t, f, account, map[models.ConsentType]bool{
		models.ConsentDataProcessing: true,
		models.ConsentAIInteraction:  false,
	})
	if len(result.ConsentRecords) != 2 {
		t.Fatalf("expected 2 consent records, got %d", len(result.ConsentRecords))
	}
	if result.Pseudonym.Text == "" {
		t.Fatal("expected an allocated pseudonym")
	}

	missing := f.svc.MissingConsents(ctx, account, OperationChat)
	if len(missing) != 1 || missing[0] != models.ConsentAIInteraction {
		t.Fatalf("unexpected missing set: %v", missing)
	}

	// A second onboarding for the same account must conflict, not remap.
	_, err := f.svc.Onboard(ctx, models.OnboardRequest{AccountID: account, SeedText: "Other1"})
	if !errors.Is(err, pseudonym.ErrMappingConflict) {
		t.Fatalf("expected ErrMappingConflict, got %v", err)
	}
}
