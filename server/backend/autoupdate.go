package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/pailer/pailer-core/server/formatter"
	"github.com/pailer/pailer-core/server/interval"
	"github.com/pailer/pailer-core/server/settings"
	"github.com/pailer/pailer-core/server/updatelog"
)

// ErrRunInProgress is returned by RunNow while another run is executing.
var ErrRunInProgress = errors.New("an auto-update run is already in progress")

// maxScheduleSeconds is the longest interval representable as a time.Duration.
const maxScheduleSeconds = uint64(math.MaxInt64 / int64(time.Second))

// ProgressPoster receives progress events for runs that are not silent.
type ProgressPoster interface {
	Start(title string) error
	Output(line string, failed bool) error
	Finished(success bool, message string) error
}

// HistoryRecorder stores completed runs in the update history.
type HistoryRecorder interface {
	Add(entry updatelog.Entry) (updatelog.Entry, error)
}

// AutoUpdater periodically updates buckets, and optionally packages, on the schedule stored under
// buckets.autoUpdateInterval. The schedule is re-read on every check.
type AutoUpdater struct {
	config        *ConfigService
	stateStore    *StateStore
	manager       PackageManager
	poster        ProgressPoster
	history       HistoryRecorder
	logger        hclog.Logger
	checkInterval time.Duration
	scheduler     JobScheduler
	now           func() time.Time

	mu     sync.Mutex // guards job, ctx and cancel
	job    Job
	ctx    context.Context
	cancel context.CancelFunc
	wakes  sync.WaitGroup // checks started by Wake

	runMu sync.Mutex // held for the duration of a run
}

// NewAutoUpdater creates a new auto-updater. poster and history may be nil.
func NewAutoUpdater(
	config *ConfigService,
	stateStore *StateStore,
	manager PackageManager,
	poster ProgressPoster,
	history HistoryRecorder,
	checkInterval time.Duration,
	logger hclog.Logger,
) *AutoUpdater {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if checkInterval <= 0 {
		checkInterval = DefaultCheckInterval
	}

	u := &AutoUpdater{
		config:        config,
		stateStore:    stateStore,
		manager:       manager,
		poster:        poster,
		history:       history,
		logger:        logger.Named("autoupdate"),
		checkInterval: checkInterval,
		scheduler:     NewCronJobScheduler(logger),
		now:           time.Now,
	}

	config.OnChange(func(key string, _ json.RawMessage) {
		if key == string(settings.KeyAutoUpdateInterval) {
			u.Wake()
		}
	})

	return u
}

// SetScheduler sets a custom job scheduler (useful for testing)
func (u *AutoUpdater) SetScheduler(scheduler JobScheduler) {
	u.scheduler = scheduler
}

// Start schedules the periodic schedule check.
func (u *AutoUpdater) Start() error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.job != nil {
		return fmt.Errorf("auto-updater already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	job, err := u.scheduler.Schedule(AutoUpdateJobID, u.checkInterval, func() { u.check(ctx) })
	if err != nil {
		cancel()
		return fmt.Errorf("failed to schedule auto-update job: %w", err)
	}

	u.job = job
	u.ctx = ctx
	u.cancel = cancel
	lastRun, err := u.stateStore.GetLastRun()
	if err != nil {
		u.logger.Warn("Failed to read last run time", "error", err.Error())
	}

	u.logger.Info("Auto-updater started",
		"checkInterval", u.checkInterval,
		"lastRun", formatter.FormatTime(lastRun))
	return nil
}

// Stop cancels a running update and stops the schedule. It returns once checks started by Wake
// have finished.
func (u *AutoUpdater) Stop() error {
	u.mu.Lock()
	if u.job == nil {
		u.mu.Unlock()
		return nil
	}

	u.cancel()
	err := u.job.Close()
	u.job = nil
	u.ctx = nil
	u.cancel = nil
	u.mu.Unlock()

	u.wakes.Wait()

	if err != nil {
		u.logger.Error("Failed to close auto-update job", "error", err.Error())
		return fmt.Errorf("failed to close auto-update job: %w", err)
	}

	u.logger.Info("Auto-updater stopped")
	return nil
}

// Wake runs a schedule check in the background without waiting for the next tick.
// It does nothing while the auto-updater is stopped.
func (u *AutoUpdater) Wake() {
	u.mu.Lock()
	defer u.mu.Unlock()

	ctx := u.ctx
	if ctx == nil {
		return
	}

	u.wakes.Add(1)
	go func() {
		defer u.wakes.Done()
		u.check(ctx)
	}()
}

// RunNow runs an update immediately, regardless of the schedule, and waits for it to finish.
func (u *AutoUpdater) RunNow(ctx context.Context) error {
	if !u.runMu.TryLock() {
		return ErrRunInProgress
	}
	defer u.runMu.Unlock()

	u.run(ctx, u.config.Descriptor(ctx))
	return nil
}

// ResetState forgets the last run, the failure count, the last error and the last success. With a
// schedule set, the next check runs an update.
func (u *AutoUpdater) ResetState() error {
	if !u.runMu.TryLock() {
		return ErrRunInProgress
	}
	defer u.runMu.Unlock()

	if err := u.stateStore.ClearAll(); err != nil {
		return fmt.Errorf("failed to reset auto-update state: %w", err)
	}

	u.logger.Info("Auto-update state reset")
	return nil
}

// InProgress reports whether a run is executing.
func (u *AutoUpdater) InProgress() bool {
	if u.runMu.TryLock() {
		u.runMu.Unlock()
		return false
	}
	return true
}

// schedule returns the active interval, or false when there is nothing to schedule.
func (u *AutoUpdater) schedule(ctx context.Context) (string, time.Duration, bool) {
	descriptor := u.config.Descriptor(ctx)
	if interval.IsOff(descriptor) {
		return descriptor, 0, false
	}

	seconds, err := interval.ParseSeconds(descriptor)
	if err != nil {
		u.logger.Warn("Ignoring unrecognized auto-update interval", "interval", descriptor, "error", err.Error())
		return descriptor, 0, false
	}

	if err := interval.Validate(seconds, interval.MinimumSecondsDebug); err != nil {
		u.logger.Warn("Ignoring auto-update interval below minimum", "interval", descriptor, "error", err.Error())
		return descriptor, 0, false
	}

	if seconds > maxScheduleSeconds {
		seconds = maxScheduleSeconds
	}
	return descriptor, time.Duration(seconds) * time.Second, true
}

// check runs an update when one is due. Checks that find a run in progress are skipped.
func (u *AutoUpdater) check(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	descriptor, every, ok := u.schedule(ctx)
	if !ok {
		return
	}

	lastRun, err := u.stateStore.GetLastRun()
	if err != nil {
		u.logger.Warn("Failed to read last run time, treating as overdue", "error", err.Error())
		lastRun = time.Time{}
	}

	if lastRun.IsZero() {
		u.logger.Trace("No previous run recorded, treating as overdue")
	}

	if wait := nextWaitInterval(u.now(), lastRun, every); wait > 0 {
		u.logger.Trace("Auto-update not due", "interval", descriptor, "wait", wait)
		return
	}

	if !u.runMu.TryLock() {
		u.logger.Debug("Auto-update due but a run is already in progress")
		return
	}
	defer u.runMu.Unlock()

	u.run(ctx, descriptor)
}

// nextWaitInterval returns how long to wait until the next run. A zero lastRun means no run has
// happened and the update is overdue. A lastRun in the future counts as due.
func nextWaitInterval(now, lastRun time.Time, every time.Duration) time.Duration {
	if lastRun.IsZero() {
		return 0
	}

	elapsed := now.Sub(lastRun)
	if elapsed < 0 {
		return 0
	}

	if elapsed < every {
		return every - elapsed
	}

	return 0
}

// run executes one update. Callers must hold runMu.
func (u *AutoUpdater) run(ctx context.Context, descriptor string) {
	startedAt := u.now()
	silent := u.config.Bool(ctx, settings.KeySilentUpdateEnabled, settings.DefaultSilentUpdateEnabled)

	u.logger.Info("Auto bucket update task running", "interval", descriptor, "silent", silent)

	bucketsOK := u.updateBuckets(ctx, silent)

	// Persisted even when the run failed.
	if err := u.stateStore.SaveLastRun(startedAt); err != nil {
		u.logger.Error("Failed to save last run time", "error", err.Error())
	}

	if !bucketsOK {
		return
	}

	if !u.config.Bool(ctx, settings.KeyAutoUpdatePackagesEnabled, settings.DefaultAutoUpdatePackagesEnabled) {
		return
	}

	u.logger.Info("Auto package update task running after bucket refresh")
	u.updatePackages(ctx, silent)
}

// updateBuckets updates all buckets and reports whether the update could run at all.
func (u *AutoUpdater) updateBuckets(ctx context.Context, silent bool) bool {
	if !silent {
		u.postStart(formatter.TitleBuckets, formatter.StartBuckets)
	}

	results, err := u.manager.UpdateAllBuckets(ctx)
	if err != nil {
		u.logger.Error("Auto bucket update failed", "error", err.Error())
		if !silent {
			u.postOutput(formatter.ErrorLine(err), true)
			u.postFinished(false, formatter.BucketFailure(err))
		}
		u.recordHistory(ctx, updatelog.Entry{
			OperationType:   updatelog.OperationBucket,
			OperationResult: formatter.ResultFailed,
			SuccessCount:    0,
			TotalCount:      1,
			Details:         []string{formatter.ErrorLine(err)},
		})
		u.recordFailure(formatter.BucketFailure(err))
		return false
	}

	successes := 0
	details := make([]string, len(results))
	for i, result := range results {
		if result.Success {
			successes++
		}
		details[i] = formatter.BucketLine(result.Name, result.Success, result.Message)
	}

	summary := formatter.BucketSummary(successes, len(results))
	u.logger.Info("Auto bucket update completed", "successes", successes, "total", len(results))

	u.recordHistory(ctx, updatelog.Entry{
		OperationType:   updatelog.OperationBucket,
		OperationResult: formatter.OperationResult(successes, len(results)),
		SuccessCount:    successes,
		TotalCount:      len(results),
		Details:         details,
	})

	if !silent {
		for i, result := range results {
			u.postOutput(details[i], !result.Success)
		}
		u.postFinished(successes == len(results), summary)
	}

	if successes == len(results) {
		u.recordSuccess()
	} else {
		u.recordFailure(summary)
	}

	return true
}

func (u *AutoUpdater) updatePackages(ctx context.Context, silent bool) {
	if !silent {
		u.postStart(formatter.TitlePackages, formatter.StartPackages)
	}

	lines, err := u.manager.UpdateAllPackages(ctx)
	if err != nil {
		u.logger.Warn("Auto package update failed", "error", err.Error())
		if !silent {
			u.postOutput(formatter.ErrorLine(err), true)
			u.postFinished(false, formatter.PackageFailure(err))
		}
		u.recordHistory(ctx, updatelog.Entry{
			OperationType:   updatelog.OperationPackage,
			OperationResult: formatter.ResultFailed,
			SuccessCount:    0,
			TotalCount:      1,
			Details:         []string{formatter.ErrorLine(err)},
		})
		u.recordFailure(formatter.PackageFailure(err))
		return
	}

	if !silent {
		for _, line := range lines {
			u.postOutput(line, false)
		}
		u.postFinished(true, formatter.PackagesSucceeded)
	} else {
		u.logger.Info("Silent package update completed successfully")
	}

	u.recordHistory(ctx, updatelog.Entry{
		OperationType:   updatelog.OperationPackage,
		OperationResult: formatter.ResultSuccess,
		SuccessCount:    formatter.CountUpdatedPackages(lines),
		TotalCount:      formatter.CountPackageLines(lines),
		Details:         lines,
	})
	u.recordSuccess()
}

func (u *AutoUpdater) recordHistory(ctx context.Context, entry updatelog.Entry) {
	if u.history == nil {
		return
	}
	if !u.config.Bool(ctx, settings.KeyUpdateHistoryEnabled, settings.DefaultUpdateHistoryEnabled) {
		return
	}

	if _, err := u.history.Add(entry); err != nil {
		u.logger.Error("Failed to save update history entry", "operationType", entry.OperationType, "error", err.Error())
	}
}

func (u *AutoUpdater) recordSuccess() {
	if err := u.stateStore.SaveLastSuccess(u.now()); err != nil {
		u.logger.Error("Failed to save last success time", "error", err.Error())
	}

	if err := u.stateStore.ResetFailures(); err != nil {
		u.logger.Error("Failed to reset failure counter", "error", err.Error())
	}

	if err := u.stateStore.SaveLastError(""); err != nil {
		u.logger.Error("Failed to clear last error", "error", err.Error())
	}
}

func (u *AutoUpdater) recordFailure(errMsg string) {
	if err := u.stateStore.SaveLastError(errMsg); err != nil {
		u.logger.Error("Failed to save last error", "error", err.Error())
	}

	failures, err := u.stateStore.IncrementFailures()
	if err != nil {
		u.logger.Error("Failed to increment failure counter", "error", err.Error())
		return
	}

	if failures >= MaxConsecutiveFailures {
		u.logger.Error("Auto-update reached max consecutive failures",
			"consecutiveFailures", failures,
			"lastError", errMsg)
	}
}

func (u *AutoUpdater) postStart(title, line string) {
	if u.poster == nil {
		return
	}
	if err := u.poster.Start(title); err != nil {
		u.logger.Debug("Failed to post progress", "error", err.Error())
	}
	u.postOutput(line, false)
}

func (u *AutoUpdater) postOutput(line string, failed bool) {
	if u.poster == nil {
		return
	}
	if err := u.poster.Output(line, failed); err != nil {
		u.logger.Debug("Failed to post progress", "error", err.Error())
	}
}

func (u *AutoUpdater) postFinished(success bool, message string) {
	if u.poster == nil {
		return
	}
	if err := u.poster.Finished(success, message); err != nil {
		u.logger.Debug("Failed to post progress", "error", err.Error())
	}
}
