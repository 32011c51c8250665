package pseudonym

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/common/models"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestService(t *testing.T) (*Service, *Repository) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	repo := NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return NewService(repo, nil, "test-salt", 10), repo
}

func TestGeneratePseudonymResolvesCollision(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t)

	if _, err := repo.CreatePseudonym(ctx, "N02s1963SW13", "h"); err != nil {
		t.Fatalf("seed insert failed: %v", err)
	}

	got, err := svc.GeneratePseudonym(ctx, "N02s1963SW13")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "N02s1963SW14" {
		t.Fatalf("expected N02s1963SW14, got %q", got)
	}
}

func TestGeneratePseudonymReturnsFreeSeedUnchanged(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	got, err := svc.GeneratePseudonym(ctx, "falcon")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "falcon" {
		t.Fatalf("expected falcon, got %q", got)
	}
}

func TestGeneratePseudonymRetriesAreBounded(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t)
	svc.maxAttempts = 3

	for _, text := range []string{"p1", "p2", "p3", "p4"} {
		if _, err := repo.CreatePseudonym(ctx, text, "h"); err != nil {
			t.Fatalf("seed insert failed: %v", err)
		}
	}

	_, err := svc.GeneratePseudonym(ctx, "p1")
	if !errors.Is(err, ErrRetriesExceeded) {
		t.Fatalf("expected ErrRetriesExceeded, got %v", err)
	}
}

func TestAllocatePersistsPseudonymWithHash(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	allocated, err := svc.Allocate(ctx, "  falcon ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allocated.Text != "falcon" {
		t.Fatalf("expected trimmed text falcon, got %q", allocated.Text)
	}
	if allocated.Hash == "" || allocated.Hash == allocated.Text {
		t.Fatalf("expected salted hash, got %q", allocated.Hash)
	}

	if _, err := svc.Allocate(ctx, ""); !errors.Is(err, ErrSeedRequired) {
		t.Fatalf("expected ErrSeedRequired for empty seed, got %v", err)
	}
}

func TestCreateMappingEnforcesOneToOne(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	first, err := svc.Allocate(ctx, "alpha")
	if err != nil {
		t.Fatalf("allocate failed: %v", err)
	}
	second, err := svc.Allocate(ctx, "beta")
	if err != nil {
		t.Fatalf("allocate failed: %v", err)
	}

	account := uuid.New()
	if _, err := svc.CreateMapping(ctx, account, first.ID, "test", models.AccessLevelAdmin); err != nil {
		t.Fatalf("first mapping failed: %v", err)
	}

	// Same account, different pseudonym.
	if _, err := svc.CreateMapping(ctx, account, second.ID, "test", models.AccessLevelAdmin); !errors.Is(err, ErrMappingConflict) {
		t.Fatalf("expected ErrMappingConflict for duplicate account, got %v", err)
	}

	// Different account, same pseudonym.
	if _, err := svc.CreateMapping(ctx, uuid.New(), first.ID, "test", models.AccessLevelAdmin); !errors.Is(err, ErrMappingConflict) {
		t.Fatalf("expected ErrMappingConflict for duplicate pseudonym, got %v", err)
	}
}

func TestResolveAccountHonorsAccessLevels(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t)

	allocated, err := svc.Allocate(ctx, "gamma")
	if err != nil {
		t.Fatalf("allocate failed: %v", err)
	}
	account := uuid.New()
	if _, err := svc.CreateMapping(ctx, account, allocated.ID, "test", models.AccessLevelAdmin); err != nil {
		t.Fatalf("mapping failed: %v", err)
	}

	if _, err := svc.ResolveAccount(ctx, allocated.ID, "researcher@test", models.AccessLevelResearcher); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized for researcher, got %v", err)
	}
	if _, err := svc.ResolveAccount(ctx, allocated.ID, "nobody", "unknown_level"); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized for unknown level, got %v", err)
	}

	resolved, err := svc.ResolveAccount(ctx, allocated.ID, "admin@test", models.AccessLevelAdmin)
	if err != nil {
		t.Fatalf("admin resolution failed: %v", err)
	}
	if resolved != account {
		t.Fatalf("expected %s, got %s", account, resolved)
	}

	// Every attempt, denied ones included, lands in the audit trail.
	audits, err := repo.ListReidentificationAudits(ctx, allocated.ID, 10)
	if err != nil {
		t.Fatalf("failed to list audits: %v", err)
	}
	if len(audits) != 3 {
		t.Fatalf("expected 3 audit rows, got %d", len(audits))
	}
}

func TestEraseMappingLeavesPseudonym(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	allocated, err := svc.Allocate(ctx, "delta")
	if err != nil {
		t.Fatalf("allocate failed: %v", err)
	}
	account := uuid.New()
	if _, err := svc.CreateMapping(ctx, account, allocated.ID, "test", models.AccessLevelAdmin); err != nil {
		t.Fatalf("mapping failed: %v", err)
	}

	erased, err := svc.EraseMapping(ctx, account)
	if err != nil {
		t.Fatalf("erase failed: %v", err)
	}
	if !erased {
		t.Fatal("expected mapping to be erased")
	}

	// Idempotent: nothing left to remove.
	erased, err = svc.EraseMapping(ctx, account)
	if err != nil {
		t.Fatalf("second erase failed: %v", err)
	}
	if erased {
		t.Fatal("expected second erase to report nothing removed")
	}

	// The pseudonym row survives unlinking.
	if _, err := svc.GetPseudonym(ctx, allocated.ID); err != nil {
		t.Fatalf("pseudonym should survive erasure: %v", err)
	}
	if _, err := svc.PseudonymFor(ctx, account); !errors.Is(err, ErrMappingNotFound) {
		t.Fatalf("expected ErrMappingNotFound after erasure, got %v", err)
	}
}
