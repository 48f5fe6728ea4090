// Package runid generates the run identifiers that tag every
// PipelineEvent and run.Record (spec §3 invariant: "every event pertains
// to exactly one logical pipeline run, identified by a monotonically
// increasing run id" — realized here, as in the teacher, with a globally
// unique string rather than a literal counter, since pipeline runs are not
// totally ordered across processes).
package runid

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// New returns a globally unique run identifier, prefixed with a
// normalized session id to keep logs and traces readable without
// sacrificing uniqueness. Grounded on runtime/agent/runtime's
// generateRunID.
func New(sessionID string) string {
	prefix := strings.ReplaceAll(sessionID, ".", "-")
	if prefix == "" {
		prefix = "run"
	}
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}
