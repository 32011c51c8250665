package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	consentAdmitted       atomic.Int64
	consentDenied         atomic.Int64
	interactionsLogged    atomic.Int64
	finalizeFailures      atomic.Int64
	mappingConflicts      atomic.Int64
	interactionRowsErased atomic.Int64
)

func IncConsentAdmitted() { consentAdmitted.Add(1) }

func IncConsentDenied() { consentDenied.Add(1) }

func IncInteractionsLogged() { interactionsLogged.Add(1) }

func IncFinalizeFailures() { finalizeFailures.Add(1) }

func IncMappingConflicts() { mappingConflicts.Add(1) }

func AddInteractionRowsErased(n int64) { interactionRowsErased.Add(n) }

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "# HELP gitte_consent_gate_admitted_total Operations admitted by the consent gate.\n")
	fmt.Fprintf(w, "# TYPE gitte_consent_gate_admitted_total counter\n")
	fmt.Fprintf(w, "gitte_consent_gate_admitted_total %d\n", consentAdmitted.Load())

	fmt.Fprintf(w, "# HELP gitte_consent_gate_denied_total Operations denied by the consent gate.\n")
	fmt.Fprintf(w, "# TYPE gitte_consent_gate_denied_total counter\n")
	fmt.Fprintf(w, "gitte_consent_gate_denied_total %d\n", consentDenied.Load())

	fmt.Fprintf(w, "# HELP gitte_interactions_logged_total Interaction audit rows finalized.\n")
	fmt.Fprintf(w, "# TYPE gitte_interactions_logged_total counter\n")
	fmt.Fprintf(w, "gitte_interactions_logged_total %d\n", interactionsLogged.Load())

	fmt.Fprintf(w, "# HELP gitte_interaction_finalize_failures_total Audit rows whose finalization failed and was absorbed.\n")
	fmt.Fprintf(w, "# TYPE gitte_interaction_finalize_failures_total counter\n")
	fmt.Fprintf(w, "gitte_interaction_finalize_failures_total %d\n", finalizeFailures.Load())

	fmt.Fprintf(w, "# HELP gitte_mapping_conflicts_total Identity mapping inserts rejected by a unique constraint.\n")
	fmt.Fprintf(w, "# TYPE gitte_mapping_conflicts_total counter\n")
	fmt.Fprintf(w, "gitte_mapping_conflicts_total %d\n", mappingConflicts.Load())

	fmt.Fprintf(w, "# HELP gitte_interaction_rows_erased_total Interaction rows removed by pseudonym erasure.\n")
	fmt.Fprintf(w, "# TYPE gitte_interaction_rows_erased_total counter\n")
	fmt.Fprintf(w, "gitte_interaction_rows_erased_total %d\n", interactionRowsErased.Load())
}
