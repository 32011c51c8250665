package consent

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/common/models"
	"gopkg.in/yaml.v3"
)

// Matrix maps operation names to the consent types they require. Unknown
// operations fall back to the default set, so a freshly added surface is
// never accidentally ungated.
type Matrix struct {
	operations map[string][]models.ConsentType
	fallback   []models.ConsentType
}

type matrixFile struct {
	Operations map[string][]string `yaml:"operations"`
	Default    []string            `yaml:"default"`
}

func DefaultMatrix() *Matrix {
	return &Matrix{
		operations: map[string][]models.ConsentType{
			"chat":             {models.ConsentDataProcessing, models.ConsentAIInteraction},
			"image_generation": {models.ConsentDataProcessing, models.ConsentAIInteraction, models.ConsentImageGeneration},
			"data_export":      {models.ConsentDataProcessing, models.ConsentAnalytics},
			"survey":           {models.ConsentDataProcessing},
		},
		fallback: []models.ConsentType{models.ConsentDataProcessing},
	}
}

// LoadMatrix reads an operation matrix from a yaml file; an empty path
// yields the built-in defaults.
func LoadMatrix(path string) (*Matrix, error) {
	if path == "" {
		return DefaultMatrix(), nil
	}

	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	var file matrixFile
	if err := yaml.Unmarshal(content, &file); err != nil {
		return nil, err
	}
	if len(file.Operations) == 0 {
		return nil, fmt.Errorf("consent matrix %s defines no operations", path)
	}

	matrix := &Matrix{
		operations: make(map[string][]models.ConsentType, len(file.Operations)),
		fallback:   []models.ConsentType{models.ConsentDataProcessing},
	}
	for op, types := range file.Operations {
		converted, err := convertTypes(types)
		if err != nil {
			return nil, fmt.Errorf("operation %q: %w", op, err)
		}
		matrix.operations[op] = converted
	}
	if len(file.Default) > 0 {
		fallback, err := convertTypes(file.Default)
		if err != nil {
			return nil, fmt.Errorf("default set: %w", err)
		}
		matrix.fallback = fallback
	}
	return matrix, nil
}

func convertTypes(raw []string) ([]models.ConsentType, error) {
	types := make([]models.ConsentType, 0, len(raw))
	for _, entry := range raw {
		t := models.ConsentType(entry)
		if !models.IsKnownConsentType(t) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownType, entry)
		}
		types = append(types, t)
	}
	return types, nil
}

// Required returns the consent set for an operation, or the fallback set
// for unknown operation names.
func (m *Matrix) Required(operation string) []models.ConsentType {
	if types, ok := m.operations[operation]; ok {
		return types
	}
	return m.fallback
}

func (m *Matrix) Operations() []string {
	ops := make([]string, 0, len(m.operations))
	for op := range m.operations {
		ops = append(ops, op)
	}
	return ops
}
