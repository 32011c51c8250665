package consent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/common/models"
)

func TestDefaultMatrixRequirements(t *testing.T) {
	matrix := DefaultMatrix()

	chat := matrix.Required("chat")
	if len(chat) != 2 || chat[0] != models.ConsentDataProcessing || chat[1] != models.ConsentAIInteraction {
		t.Fatalf("unexpected chat requirement: %v", chat)
	}
	if len(matrix.Required("image_generation")) != 3 {
		t.Fatalf("unexpected image requirement: %v", matrix.Required("image_generation"))
	}

	// Unknown operations fall back to the default set.
	unknown := matrix.Required("brand_new_feature")
	if len(unknown) != 1 || unknown[0] != models.ConsentDataProcessing {
		t.Fatalf("unknown operation should use the fallback set, got %v", unknown)
	}
}

func TestLoadMatrixFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "matrix.yaml")
	content := []byte(`operations:
  chat:
    - data_processing
    - ai_interaction
  survey:
    - study_participation
default:
  - data_processing
  - analytics
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	matrix, err := LoadMatrix(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	survey := matrix.Required("survey")
	if len(survey) != 1 || survey[0] != models.ConsentStudyParticipation {
		t.Fatalf("unexpected survey requirement: %v", survey)
	}
	if len(matrix.Required("anything_else")) != 2 {
		t.Fatalf("custom fallback not applied: %v", matrix.Required("anything_else"))
	}
	if len(matrix.Operations()) != 2 {
		t.Fatalf("unexpected operations: %v", matrix.Operations())
	}
}

func TestLoadMatrixRejectsUnknownType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "matrix.yaml")
	content := []byte(`operations:
  chat:
    - mind_reading
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if _, err := LoadMatrix(path); err == nil {
		t.Fatal("expected an error for the unknown consent type")
	}
}

func TestLoadMatrixEmptyPathDefaults(t *testing.T) {
	matrix, err := LoadMatrix("")
	if err != nil {
		t.Fatalf("empty path should default: %v", err)
	}
	if len(matrix.Required("chat")) != 2 {
		t.Fatal("expected built-in defaults")
	}
}
