package backend

import (
	"context"
	"fmt"
	"time"
)

// Status describes the auto-updater schedule and the outcome of recent runs.
type Status struct {
	Running             bool      `json:"running"`
	InProgress          bool      `json:"inProgress"`
	Interval            string    `json:"interval"`
	Enabled             bool      `json:"enabled"`
	IntervalSeconds     uint64    `json:"intervalSeconds,omitempty"`
	LastRun             time.Time `json:"lastRun"`
	NextRun             time.Time `json:"nextRun"`
	LastSuccess         time.Time `json:"lastSuccess"`
	LastError           string    `json:"lastError,omitempty"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
	Degraded            bool      `json:"degraded"`
}

// NextRun returns when the next run is due. It returns false when no schedule is active.
// An overdue run is due now.
func (u *AutoUpdater) NextRun(ctx context.Context) (time.Time, bool, error) {
	_, every, ok := u.schedule(ctx)
	if !ok {
		return time.Time{}, false, nil
	}

	lastRun, err := u.stateStore.GetLastRun()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to get next run: %w", err)
	}

	now := u.now()
	return now.Add(nextWaitInterval(now, lastRun, every)), true, nil
}

// Status returns the current auto-updater status.
func (u *AutoUpdater) Status(ctx context.Context) (Status, error) {
	u.mu.Lock()
	running := u.job != nil
	u.mu.Unlock()

	descriptor, every, enabled := u.schedule(ctx)
	status := Status{
		Running:    running,
		InProgress: u.InProgress(),
		Interval:   descriptor,
		Enabled:    enabled,
	}

	if enabled {
		status.IntervalSeconds = uint64(every / time.Second)
	}

	lastRun, err := u.stateStore.GetLastRun()
	if err != nil {
		return Status{}, fmt.Errorf("failed to get status: %w", err)
	}
	status.LastRun = lastRun

	if enabled {
		now := u.now()
		status.NextRun = now.Add(nextWaitInterval(now, lastRun, every))
	}

	if status.LastSuccess, err = u.stateStore.GetLastSuccess(); err != nil {
		return Status{}, fmt.Errorf("failed to get status: %w", err)
	}
	if status.LastError, err = u.stateStore.GetLastError(); err != nil {
		return Status{}, fmt.Errorf("failed to get status: %w", err)
	}
	if status.ConsecutiveFailures, err = u.stateStore.GetFailures(); err != nil {
		return Status{}, fmt.Errorf("failed to get status: %w", err)
	}
	status.Degraded = status.ConsecutiveFailures >= MaxConsecutiveFailures

	return status, nil
}
