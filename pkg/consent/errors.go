package consent

import (
	"errors"
	"fmt"
	"strings"

	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/common/models"
)

var (
	ErrConsent           = errors.New("consent error")
	ErrConsentWithdrawal = errors.New("consent withdrawal failed")
	ErrUnknownType       = errors.New("unknown consent type")
)

// RequiredError names every consent type missing for the attempted
// operation, so the caller can drive a re-consent prompt.
type RequiredError struct {
	Operation string
	Missing   []models.ConsentType
}

func (e *RequiredError) Error() string {
	types := make([]string, len(e.Missing))
	for i, t := range e.Missing {
		types[i] = string(t)
	}
	if e.Operation != "" {
		return fmt.Sprintf("operation %q requires consent: %s", e.Operation, strings.Join(types, ", "))
	}
	return fmt.Sprintf("missing required consent: %s", strings.Join(types, ", "))
}

func (e *RequiredError) Unwrap() error {
	return ErrConsent
}

// IsRequiredError reports whether err denotes missing consent and returns
// the typed error when it does.
func IsRequiredError(err error) (*RequiredError, bool) {
	var reqErr *RequiredError
	if errors.As(err, &reqErr) {
		return reqErr, true
	}
	return nil, false
}
