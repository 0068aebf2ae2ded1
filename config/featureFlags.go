package config

import (
	"os"
	"strings"
	"time"
)

// GeneratorTimeBudget is the wall-clock budget one invocation of a chunked
// job may consume before checkpointing and requesting continuation. It must
// leave headroom under the hosting platform's hard request ceiling
// (Cloud Run: 60s default).
//
// Set via env:
// - GENERATOR_TIME_BUDGET_SECONDS=50
func GeneratorTimeBudget() time.Duration {
	return time.Duration(envInt("GENERATOR_TIME_BUDGET_SECONDS", 50)) * time.Second
}

// GeneratorBatchSize is how many records an entity-creation phase inserts
// per batch between time-budget checks.
//
// Set via env:
// - GENERATOR_BATCH_SIZE=50
func GeneratorBatchSize() int {
	n := envInt("GENERATOR_BATCH_SIZE", 50)
	if n < 1 {
		return 1
	}
	return n
}

// PatchBatchSize bounds record creation/deletion batches inside the patch engine.
func PatchBatchSize() int {
	n := envInt("PATCH_BATCH_SIZE", 50)
	if n < 1 {
		return 1
	}
	return n
}

// ContinuationSecret is the shared secret required on the internal
// continuation endpoints. Empty disables HTTP continuation (local CLIs
// drive jobs synchronously instead).
func ContinuationSecret() string {
	return strings.TrimSpace(os.Getenv("CONTINUATION_SECRET"))
}

// ContinuationBaseURL is the externally reachable base URL of this service,
// used for the self-continuation HTTP call.
//
// Set via env:
// - CONTINUATION_BASE_URL=https://demodata-backend-xyz.a.run.app
func ContinuationBaseURL() string {
	return strings.TrimRight(strings.TrimSpace(os.Getenv("CONTINUATION_BASE_URL")), "/")
}
