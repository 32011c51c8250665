package consent

import (
	"context"

	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/common/models"
	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/observability/metrics"
	"github.com/google/uuid"
)

// Checker is the ledger surface the gate needs. CheckConsent must be
// fail-closed: implementations return false on any internal error.
type Checker interface {
	CheckConsent(ctx context.Context, accountID uuid.UUID, consentType models.ConsentType) bool
}

// Gate is the enforcement point in front of every data-collecting
// operation. The enabled flag is injected at construction, so gated and
// ungated instances can exist side by side; a disabled gate admits
// everything (trusted and test contexts).
type Gate struct {
	checker Checker
	matrix  *Matrix
	enabled bool
}

func NewGate(checker Checker, matrix *Matrix, enabled bool) *Gate {
	if matrix == nil {
		matrix = DefaultMatrix()
	}
	return &Gate{checker: checker, matrix: matrix, enabled: enabled}
}

func (g *Gate) Enabled() bool {
	return g.enabled
}

// CheckOperation reports whether the account may run the operation. A zero
// account id is denied outright when the gate is enabled.
func (g *Gate) CheckOperation(ctx context.Context, accountID uuid.UUID, operation string) bool {
	if !g.enabled {
		return true
	}
	if accountID == uuid.Nil {
		metrics.IncConsentDenied()
		return false
	}
	for _, t := range g.matrix.Required(operation) {
		if !g.checker.CheckConsent(ctx, accountID, t) {
			metrics.IncConsentDenied()
			return false
		}
	}
	metrics.IncConsentAdmitted()
	return true
}

// Require admits or denies a typed call context. Denials carry the full
// missing-consent list for the UI.
func (g *Gate) Require(ctx context.Context, call models.CallContext) error {
	if !g.enabled {
		return nil
	}
	if call.AccountID == uuid.Nil {
		metrics.IncConsentDenied()
		return &RequiredError{
			Operation: call.Operation,
			Missing:   g.matrix.Required(call.Operation),
		}
	}

	missing := g.MissingConsents(ctx, call.AccountID, call.Operation)
	if len(missing) > 0 {
		metrics.IncConsentDenied()
		return &RequiredError{Operation: call.Operation, Missing: missing}
	}
	metrics.IncConsentAdmitted()
	return nil
}

func (g *Gate) RequireConsent(ctx context.Context, accountID uuid.UUID, consentType models.ConsentType) error {
	if !g.enabled {
		return nil
	}
	if accountID == uuid.Nil || !g.checker.CheckConsent(ctx, accountID, consentType) {
		metrics.IncConsentDenied()
		return &RequiredError{Missing: []models.ConsentType{consentType}}
	}
	metrics.IncConsentAdmitted()
	return nil
}

// MissingConsents is the read-only set difference between the operation's
// requirement and the consents currently held. It never denies by itself.
func (g *Gate) MissingConsents(ctx context.Context, accountID uuid.UUID, operation string) []models.ConsentType {
	var missing []models.ConsentType
	for _, t := range g.matrix.Required(operation) {
		if accountID == uuid.Nil || !g.checker.CheckConsent(ctx, accountID, t) {
			missing = append(missing, t)
		}
	}
	return missing
}
