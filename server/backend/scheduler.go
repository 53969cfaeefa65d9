package backend

import (
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/robfig/cron/v3"
)

// Job represents a scheduled job that can be closed
type Job interface {
	Close() error
}

// JobScheduler is an interface for scheduling periodic jobs
type JobScheduler interface {
	Schedule(jobID string, every time.Duration, callback func()) (Job, error)
}

// CronJobScheduler is the production implementation backed by robfig/cron.
// A callback that is still running when the next tick fires is skipped rather than overlapped.
type CronJobScheduler struct {
	logger hclog.Logger
}

// NewCronJobScheduler creates a new cron job scheduler
func NewCronJobScheduler(logger hclog.Logger) *CronJobScheduler {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	return &CronJobScheduler{logger: logger}
}

// Schedule starts a cron instance running callback every interval
func (s *CronJobScheduler) Schedule(jobID string, every time.Duration, callback func()) (Job, error) {
	if every < MinCheckInterval {
		return nil, fmt.Errorf("job %s: interval must be at least %s (got %s)", jobID, MinCheckInterval, every)
	}
	if callback == nil {
		return nil, fmt.Errorf("job %s: callback is required", jobID)
	}

	logger := cronLogger{logger: s.logger.Named(jobID)}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	c.Schedule(cron.Every(every), cron.FuncJob(callback))
	c.Start()

	return &cronJob{cron: c}, nil
}

type cronJob struct {
	cron *cron.Cron
	once sync.Once
}

// Close stops the schedule and waits for a running callback to return.
func (j *cronJob) Close() error {
	j.once.Do(func() {
		<-j.cron.Stop().Done()
	})
	return nil
}

// cronLogger adapts hclog to cron.Logger. Cron logs every wake-up at info level, so those go to trace.
type cronLogger struct {
	logger hclog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Trace(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
