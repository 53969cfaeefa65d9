package backend

import (
	"time"

	"github.com/pailer/pailer-core/server/interval"
)

// Constants for scheduler behavior and thresholds
const (
	// DefaultCheckInterval is how often the auto-updater re-reads the schedule. It must stay below
	// the debug minimum interval so short debug intervals are honored.
	DefaultCheckInterval = 5 * time.Second

	// MinCheckInterval is the finest check interval the job scheduler supports.
	MinCheckInterval = time.Second

	// MaxCheckInterval is the coarsest check interval that still honors the debug minimum interval.
	MaxCheckInterval = time.Duration(interval.MinimumSecondsDebug) * time.Second

	// MaxConsecutiveFailures is the number of consecutive failed runs after which the status
	// reports the auto-updater as degraded.
	MaxConsecutiveFailures = 5

	// AutoUpdateJobID identifies the scheduled auto-update job.
	AutoUpdateJobID = "auto_bucket_update"

	// KeyLastAutoUpdateTs stores the start of the last scheduled run, in Unix seconds.
	KeyLastAutoUpdateTs = "buckets.lastAutoUpdateTs"
)
