package backend

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pailer/pailer-core/server/kvstore"
	"github.com/pailer/pailer-core/server/updatelog"
)

type updaterFixture struct {
	manager *MockPackageManager
	kv      *kvstore.MemoryStore
	config  *ConfigService
	state   *StateStore
	poster  *recordingPoster
	history *recordingHistory
	updater *AutoUpdater
	now     time.Time
}

func newUpdaterFixture(t *testing.T) *updaterFixture {
	t.Helper()

	ctrl := gomock.NewController(t)
	f := &updaterFixture{
		manager: NewMockPackageManager(ctrl),
		kv:      kvstore.NewMemoryStore(),
		poster:  &recordingPoster{},
		history: &recordingHistory{},
		now:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	f.config = NewConfigService(f.kv, nil)
	f.state = NewStateStore(f.kv)
	f.updater = NewAutoUpdater(f.config, f.state, f.manager, f.poster, f.history, time.Second, nil)
	f.updater.now = func() time.Time { return f.now }
	f.updater.SetScheduler(&MockJobScheduler{})
	return f
}

// set writes a raw value, bypassing validation.
func (f *updaterFixture) set(t *testing.T, key, value string) {
	t.Helper()
	require.NoError(t, f.kv.KVSet(key, []byte(value)))
}

func (f *updaterFixture) lastRun(t *testing.T) time.Time {
	t.Helper()
	lastRun, err := f.state.GetLastRun()
	require.NoError(t, err)
	return lastRun
}

var allBucketsOK = []BucketResult{
	{Name: "extras", Success: true, Message: "Successfully updated bucket 'extras'"},
	{Name: "main", Success: true, Message: "Bucket 'main' is already up to date"},
}

func TestNextWaitInterval(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	hour := time.Hour

	tests := []struct {
		name     string
		lastRun  time.Time
		expected time.Duration
	}{
		{"no previous run is overdue", time.Time{}, 0},
		{"time remaining", now.Add(-10 * time.Minute), 50 * time.Minute},
		{"exactly one interval elapsed", now.Add(-hour), 0},
		{"well past due", now.Add(-5 * hour), 0},
		{"last run in the future", now.Add(time.Minute), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, nextWaitInterval(now, tt.lastRun, hour))
		})
	}
}

func TestAutoUpdater_check_NothingToDo(t *testing.T) {
	tests := []struct {
		name       string
		descriptor string
	}{
		{"unset", ""},
		{"off", `"off"`},
		{"unrecognized", `"2d"`},
		{"zero", `"0"`},
		{"below debug floor", `"custom:5"`},
		{"not a string", `3600`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newUpdaterFixture(t)
			if tt.descriptor != "" {
				f.set(t, "buckets.autoUpdateInterval", tt.descriptor)
			}

			f.updater.check(context.Background())

			assert.True(t, f.lastRun(t).IsZero())
			assert.Empty(t, f.poster.Events())
			assert.Empty(t, f.history.Entries())
		})
	}
}

func TestAutoUpdater_check_NotDue(t *testing.T) {
	f := newUpdaterFixture(t)
	f.set(t, "buckets.autoUpdateInterval", `"1h"`)
	require.NoError(t, f.state.SaveLastRun(f.now.Add(-10*time.Minute)))

	f.updater.check(context.Background())

	assert.Equal(t, f.now.Add(-10*time.Minute).Unix(), f.lastRun(t).Unix())
	assert.Empty(t, f.history.Entries())
}

func TestAutoUpdater_check_Overdue(t *testing.T) {
	f := newUpdaterFixture(t)
	f.set(t, "buckets.autoUpdateInterval", `"custom:21600"`)
	require.NoError(t, f.state.SaveLastRun(f.now.Add(-7*time.Hour)))

	f.manager.EXPECT().UpdateAllBuckets(gomock.Any()).Return(allBucketsOK, nil)

	f.updater.check(context.Background())

	assert.Equal(t, f.now.Unix(), f.lastRun(t).Unix())
}

func TestAutoUpdater_run_Buckets(t *testing.T) {
	f := newUpdaterFixture(t)
	f.set(t, "buckets.autoUpdateInterval", `"1d"`)

	results := []BucketResult{
		{Name: "extras", Success: true, Message: "ok"},
		{Name: "versions", Success: false, Message: "Failed to fetch updates for bucket 'versions': timeout"},
	}
	f.manager.EXPECT().UpdateAllBuckets(gomock.Any()).Return(results, nil)

	f.updater.check(context.Background())

	assert.Equal(t, f.now.Unix(), f.lastRun(t).Unix(), "no previous run means overdue")

	assert.Equal(t, []progressEvent{
		{kind: "start", text: "Updating buckets..."},
		{kind: "output", text: "Starting automatic bucket update..."},
		{kind: "output", text: "✓ Updated bucket: extras"},
		{kind: "output", text: "✗ Failed to update versions: Failed to fetch updates for bucket 'versions': timeout", failed: true},
		{kind: "finished", text: "Bucket update completed: 1 of 2 succeeded", success: false},
	}, f.poster.Events())

	entries := f.history.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, updatelog.OperationBucket, entries[0].OperationType)
	assert.Equal(t, "partial", entries[0].OperationResult)
	assert.Equal(t, 1, entries[0].SuccessCount)
	assert.Equal(t, 2, entries[0].TotalCount)
	assert.Len(t, entries[0].Details, 2)

	failures, err := f.state.GetFailures()
	require.NoError(t, err)
	assert.Equal(t, 1, failures)
	lastErr, err := f.state.GetLastError()
	require.NoError(t, err)
	assert.Equal(t, "Bucket update completed: 1 of 2 succeeded", lastErr)
}

func TestAutoUpdater_run_AllBucketsSucceeded(t *testing.T) {
	f := newUpdaterFixture(t)
	f.set(t, "buckets.autoUpdateInterval", `"1d"`)
	_, err := f.state.IncrementFailures()
	require.NoError(t, err)

	f.manager.EXPECT().UpdateAllBuckets(gomock.Any()).Return(allBucketsOK, nil)

	f.updater.check(context.Background())

	entries := f.history.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "success", entries[0].OperationResult)

	failures, err := f.state.GetFailures()
	require.NoError(t, err)
	assert.Equal(t, 0, failures)
	lastSuccess, err := f.state.GetLastSuccess()
	require.NoError(t, err)
	assert.True(t, lastSuccess.Equal(f.now))

	events := f.poster.Events()
	require.NotEmpty(t, events)
	assert.Equal(t, progressEvent{kind: "finished", text: "Bucket update completed: 2 of 2 succeeded", success: true}, events[len(events)-1])
}

func TestAutoUpdater_run_Silent(t *testing.T) {
	f := newUpdaterFixture(t)
	f.set(t, "buckets.autoUpdateInterval", `"1h"`)
	f.set(t, "buckets.silentUpdateEnabled", `true`)
	f.set(t, "buckets.autoUpdatePackagesEnabled", `true`)

	f.manager.EXPECT().UpdateAllBuckets(gomock.Any()).Return(allBucketsOK, nil)
	f.manager.EXPECT().UpdateAllPackages(gomock.Any()).Return([]string{"'git' (2.45.0) was Updated successfully!"}, nil)

	f.updater.check(context.Background())

	assert.Empty(t, f.poster.Events())
	assert.Len(t, f.history.Entries(), 2, "silent mode still records history")
}

func TestAutoUpdater_run_HistoryDisabled(t *testing.T) {
	f := newUpdaterFixture(t)
	f.set(t, "buckets.autoUpdateInterval", `"1h"`)
	f.set(t, "buckets.updateHistoryEnabled", `false`)

	f.manager.EXPECT().UpdateAllBuckets(gomock.Any()).Return(allBucketsOK, nil)

	f.updater.check(context.Background())

	assert.Empty(t, f.history.Entries())
	assert.NotEmpty(t, f.poster.Events())
}

func TestAutoUpdater_run_Packages(t *testing.T) {
	f := newUpdaterFixture(t)
	f.set(t, "buckets.autoUpdateInterval", `"1h"`)
	f.set(t, "buckets.autoUpdatePackagesEnabled", `true`)

	lines := []string{
		"Updating 'git' (2.44.0 -> 2.45.0)",
		"'git' (2.45.0) was Updated successfully!",
		"'7zip' is up to date",
	}

	gomock.InOrder(
		f.manager.EXPECT().UpdateAllBuckets(gomock.Any()).Return(allBucketsOK, nil),
		f.manager.EXPECT().UpdateAllPackages(gomock.Any()).Return(lines, nil),
	)

	f.updater.check(context.Background())

	entries := f.history.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, updatelog.OperationBucket, entries[0].OperationType)
	assert.Equal(t, updatelog.OperationPackage, entries[1].OperationType)
	assert.Equal(t, "success", entries[1].OperationResult)
	assert.Equal(t, 1, entries[1].SuccessCount)
	assert.Equal(t, 3, entries[1].TotalCount)
	assert.Equal(t, lines, entries[1].Details)

	events := f.poster.Events()
	assert.Contains(t, events, progressEvent{kind: "start", text: "Updating packages..."})
	assert.Contains(t, events, progressEvent{kind: "output", text: "Starting automatic package update..."})
	assert.Contains(t, events, progressEvent{kind: "output", text: lines[1]})
	assert.Equal(t, progressEvent{kind: "finished", text: "Automatic package update completed successfully", success: true}, events[len(events)-1])
}

func TestAutoUpdater_run_PackagesFailed(t *testing.T) {
	f := newUpdaterFixture(t)
	f.set(t, "buckets.autoUpdateInterval", `"1h"`)
	f.set(t, "buckets.autoUpdatePackagesEnabled", `true`)

	f.manager.EXPECT().UpdateAllBuckets(gomock.Any()).Return(allBucketsOK, nil)
	f.manager.EXPECT().UpdateAllPackages(gomock.Any()).Return(nil, errors.New("scoop not found"))

	f.updater.check(context.Background())

	entries := f.history.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, updatelog.Entry{
		OperationType:   updatelog.OperationPackage,
		OperationResult: "failed",
		SuccessCount:    0,
		TotalCount:      1,
		Details:         []string{"Error: scoop not found"},
	}, entries[1])

	events := f.poster.Events()
	assert.Equal(t, progressEvent{kind: "output", text: "Error: scoop not found", failed: true}, events[len(events)-2])
	assert.Equal(t, progressEvent{kind: "finished", text: "Automatic package update failed: scoop not found"}, events[len(events)-1])

	failures, err := f.state.GetFailures()
	require.NoError(t, err)
	assert.Equal(t, 1, failures)
}

func TestAutoUpdater_run_BucketsFailed(t *testing.T) {
	f := newUpdaterFixture(t)
	f.set(t, "buckets.autoUpdateInterval", `"1h"`)
	f.set(t, "buckets.autoUpdatePackagesEnabled", `true`)

	// No UpdateAllPackages expectation: packages must not run after a failed bucket update.
	f.manager.EXPECT().UpdateAllBuckets(gomock.Any()).Return(nil, errors.New("failed to list buckets"))

	f.updater.check(context.Background())

	assert.Equal(t, f.now.Unix(), f.lastRun(t).Unix(), "timestamp is recorded even on failure")

	entries := f.history.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "failed", entries[0].OperationResult)
	assert.Equal(t, []string{"Error: failed to list buckets"}, entries[0].Details)

	events := f.poster.Events()
	assert.Equal(t, progressEvent{kind: "finished", text: "Bucket update failed: failed to list buckets"}, events[len(events)-1])

	// The next check within the interval does nothing.
	f.now = f.now.Add(30 * time.Minute)
	f.updater.check(context.Background())
	assert.Len(t, f.history.Entries(), 1)
}

func TestAutoUpdater_check_SkipsWhileRunning(t *testing.T) {
	f := newUpdaterFixture(t)
	f.set(t, "buckets.autoUpdateInterval", `"1h"`)

	f.updater.runMu.Lock()
	f.updater.check(context.Background())
	f.updater.runMu.Unlock()

	assert.True(t, f.lastRun(t).IsZero())
}

func TestAutoUpdater_check_CanceledContext(t *testing.T) {
	f := newUpdaterFixture(t)
	f.set(t, "buckets.autoUpdateInterval", `"1h"`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f.updater.check(ctx)
	assert.True(t, f.lastRun(t).IsZero())
}

func TestAutoUpdater_RunNow(t *testing.T) {
	t.Run("runs regardless of schedule", func(t *testing.T) {
		f := newUpdaterFixture(t)
		require.NoError(t, f.state.SaveLastRun(f.now.Add(-time.Minute)))

		f.manager.EXPECT().UpdateAllBuckets(gomock.Any()).Return(allBucketsOK, nil)

		require.NoError(t, f.updater.RunNow(context.Background()))
		assert.Equal(t, f.now.Unix(), f.lastRun(t).Unix())
	})

	t.Run("rejects overlapping run", func(t *testing.T) {
		f := newUpdaterFixture(t)

		f.updater.runMu.Lock()
		defer f.updater.runMu.Unlock()

		assert.True(t, f.updater.InProgress())
		assert.ErrorIs(t, f.updater.RunNow(context.Background()), ErrRunInProgress)
	})
}

func TestAutoUpdater_StartStop(t *testing.T) {
	f := newUpdaterFixture(t)

	var scheduledEvery time.Duration
	job := &MockJob{}
	scheduler := &MockJobScheduler{
		ScheduleFn: func(jobID string, every time.Duration, callback func()) (Job, error) {
			assert.Equal(t, AutoUpdateJobID, jobID)
			scheduledEvery = every
			return job, nil
		},
	}
	f.updater.SetScheduler(scheduler)

	require.NoError(t, f.updater.Start())
	assert.Equal(t, time.Second, scheduledEvery)

	err := f.updater.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")

	f.set(t, "buckets.autoUpdateInterval", `"1h"`)
	f.manager.EXPECT().UpdateAllBuckets(gomock.Any()).Return(allBucketsOK, nil)
	scheduler.Tick()
	assert.Equal(t, f.now.Unix(), f.lastRun(t).Unix())

	require.NoError(t, f.updater.Stop())
	assert.True(t, job.closed)
	require.NoError(t, f.updater.Stop(), "stopping twice should be safe")

	// Ticks after stop see a canceled context.
	scheduler.Tick()
}

func TestAutoUpdater_StartScheduleError(t *testing.T) {
	f := newUpdaterFixture(t)
	f.updater.SetScheduler(&MockJobScheduler{
		ScheduleFn: func(string, time.Duration, func()) (Job, error) {
			return nil, errors.New("bad interval")
		},
	})

	err := f.updater.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad interval")

	status, err := f.updater.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, status.Running)
}

func TestAutoUpdater_WakeOnIntervalChange(t *testing.T) {
	f := newUpdaterFixture(t)
	require.NoError(t, f.updater.Start())
	defer f.updater.Stop()

	done := make(chan struct{})
	f.manager.EXPECT().UpdateAllBuckets(gomock.Any()).DoAndReturn(func(context.Context) ([]BucketResult, error) {
		close(done)
		return allBucketsOK, nil
	})

	require.NoError(t, f.config.SetConfigValue(context.Background(), "buckets.autoUpdateInterval", json.RawMessage(`"1h"`)))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("auto-updater was not woken by the interval change")
	}

	require.Eventually(t, func() bool {
		return !f.updater.InProgress()
	}, 5*time.Second, 10*time.Millisecond)
}

func TestAutoUpdater_StopWaitsForWokenRun(t *testing.T) {
	f := newUpdaterFixture(t)
	require.NoError(t, f.updater.Start())

	started := make(chan struct{})
	release := make(chan struct{})
	f.manager.EXPECT().UpdateAllBuckets(gomock.Any()).DoAndReturn(func(context.Context) ([]BucketResult, error) {
		close(started)
		<-release
		return allBucketsOK, nil
	})

	f.set(t, "buckets.autoUpdateInterval", `"1h"`)
	f.updater.Wake()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("woken check never started a run")
	}

	stopped := make(chan error, 1)
	go func() { stopped <- f.updater.Stop() }()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a woken run was still writing state")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)

	select {
	case err := <-stopped:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return after the run finished")
	}

	assert.Equal(t, f.now.Unix(), f.lastRun(t).Unix())
	assert.False(t, f.updater.InProgress())
}

func TestAutoUpdater_ResetState(t *testing.T) {
	f := newUpdaterFixture(t)
	f.set(t, "buckets.autoUpdateInterval", `"1h"`)
	require.NoError(t, f.state.SaveLastRun(f.now.Add(-10*time.Minute)))
	require.NoError(t, f.state.SaveLastError("boom"))
	_, err := f.state.IncrementFailures()
	require.NoError(t, err)

	require.NoError(t, f.updater.ResetState())

	status, err := f.updater.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, status.LastRun.IsZero())
	assert.Empty(t, status.LastError)
	assert.Zero(t, status.ConsecutiveFailures)

	// With no previous run the next check is overdue.
	f.manager.EXPECT().UpdateAllBuckets(gomock.Any()).Return(allBucketsOK, nil)
	f.updater.check(context.Background())
	assert.Equal(t, f.now.Unix(), f.lastRun(t).Unix())

	t.Run("refused while running", func(t *testing.T) {
		f.updater.runMu.Lock()
		defer f.updater.runMu.Unlock()
		assert.ErrorIs(t, f.updater.ResetState(), ErrRunInProgress)
	})
}

func TestAutoUpdater_WakeWhileStopped(t *testing.T) {
	f := newUpdaterFixture(t)

	// No expectations: a stopped auto-updater must not run.
	require.NoError(t, f.config.SetConfigValue(context.Background(), "buckets.autoUpdateInterval", json.RawMessage(`"1h"`)))
	assert.True(t, f.lastRun(t).IsZero())
}

func TestAutoUpdater_Status(t *testing.T) {
	t.Run("off", func(t *testing.T) {
		f := newUpdaterFixture(t)

		status, err := f.updater.Status(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "off", status.Interval)
		assert.False(t, status.Enabled)
		assert.True(t, status.NextRun.IsZero())
		assert.True(t, status.LastRun.IsZero())

		_, scheduled, err := f.updater.NextRun(context.Background())
		require.NoError(t, err)
		assert.False(t, scheduled)
	})

	t.Run("scheduled", func(t *testing.T) {
		f := newUpdaterFixture(t)
		f.set(t, "buckets.autoUpdateInterval", `"1h"`)
		require.NoError(t, f.state.SaveLastRun(f.now.Add(-20*time.Minute)))
		for i := 0; i < MaxConsecutiveFailures; i++ {
			_, err := f.state.IncrementFailures()
			require.NoError(t, err)
		}
		require.NoError(t, f.state.SaveLastError("boom"))

		status, err := f.updater.Status(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "1h", status.Interval)
		assert.True(t, status.Enabled)
		assert.Equal(t, uint64(3600), status.IntervalSeconds)
		assert.True(t, status.NextRun.Equal(f.now.Add(40*time.Minute)))
		assert.Equal(t, MaxConsecutiveFailures, status.ConsecutiveFailures)
		assert.True(t, status.Degraded)
		assert.Equal(t, "boom", status.LastError)

		next, scheduled, err := f.updater.NextRun(context.Background())
		require.NoError(t, err)
		assert.True(t, scheduled)
		assert.True(t, next.Equal(f.now.Add(40*time.Minute)))
	})

	t.Run("overdue is due now", func(t *testing.T) {
		f := newUpdaterFixture(t)
		f.set(t, "buckets.autoUpdateInterval", `"1h"`)

		status, err := f.updater.Status(context.Background())
		require.NoError(t, err)
		assert.True(t, status.NextRun.Equal(f.now))
	})
}
