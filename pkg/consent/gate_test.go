package consent

import (
	"context"
	"errors"
	"testing"

	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/common/models"
	"github.com/google/uuid"
)

type staticChecker struct {
	granted map[models.ConsentType]bool
}

func (c *staticChecker) CheckConsent(_ context.Context, accountID uuid.UUID, consentType models.ConsentType) bool {
	if accountID == uuid.Nil {
		return false
	}
	return c.granted[consentType]
}

func TestGateDisabledAdmitsEverything(t *testing.T) {
	ctx := context.Background()
	gate := NewGate(&staticChecker{}, nil, false)

	if gate.Enabled() {
		t.Fatal("gate should report disabled")
	}
	if !gate.CheckOperation(ctx, uuid.Nil, "chat") {
		t.Fatal("disabled gate must admit even a zero account")
	}
	if err := gate.Require(ctx, models.CallContext{Operation: "chat"}); err != nil {
		t.Fatalf("disabled gate must not deny: %v", err)
	}
}

func TestGateDeniesZeroAccount(t *testing.T) {
	ctx := context.Background()
	checker := &staticChecker{granted: map[models.ConsentType]bool{
		models.ConsentDataProcessing: true,
		models.ConsentAIInteraction:  true,
	}}
	gate := NewGate(checker, nil, true)

	if gate.CheckOperation(ctx, uuid.Nil, "chat") {
		t.Fatal("missing account id must be denied")
	}
	err := gate.Require(ctx, models.CallContext{Operation: "chat"})
	required, ok := IsRequiredError(err)
	if !ok {
		t.Fatalf("expected RequiredError, got %v", err)
	}
	if len(required.Missing) != 2 {
		t.Fatalf("denial should list the full requirement, got %v", required.Missing)
	}
}

func TestGateChatGrantAndWithdraw(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	gate := NewGate(svc, nil, true)
	account := uuid.New()
	call := models.CallContext{AccountID: account, Operation: "chat"}

	if err := gate.Require(ctx, call); err == nil {
		t.Fatal("fresh account should be denied")
	}

	for _, consentType := range []models.ConsentType{models.ConsentDataProcessing, models.ConsentAIInteraction} {
		if _, err := svc.RecordConsent(ctx, account, consentType, true, nil); err != nil {
			t.Fatalf("grant failed: %v", err)
		}
	}
	if err := gate.Require(ctx, call); err != nil {
		t.Fatalf("chat should be admitted after grants: %v", err)
	}
	if !gate.CheckOperation(ctx, account, "chat") {
		t.Fatal("check should agree with require")
	}

	if _, err := svc.WithdrawConsent(ctx, account, models.ConsentAIInteraction, "done with the study"); err != nil {
		t.Fatalf("withdrawal failed: %v", err)
	}
	err := gate.Require(ctx, call)
	required, ok := IsRequiredError(err)
	if !ok {
		t.Fatalf("expected RequiredError after withdrawal, got %v", err)
	}
	if len(required.Missing) != 1 || required.Missing[0] != models.ConsentAIInteraction {
		t.Fatalf("expected ai_interaction missing, got %v", required.Missing)
	}
	if !errors.Is(err, ErrConsent) {
		t.Fatal("RequiredError should unwrap to ErrConsent")
	}
}

func TestGateMissingConsentsListsWithoutDenying(t *testing.T) {
	ctx := context.Background()
	checker := &staticChecker{granted: map[models.ConsentType]bool{
		models.ConsentDataProcessing: true,
	}}
	gate := NewGate(checker, nil, true)
	account := uuid.New()

	missing := gate.MissingConsents(ctx, account, "image_generation")
	if len(missing) != 2 {
		t.Fatalf("expected 2 missing consents, got %v", missing)
	}
	if len(gate.MissingConsents(ctx, account, "survey")) != 0 {
		t.Fatal("survey requirement is covered")
	}
}
