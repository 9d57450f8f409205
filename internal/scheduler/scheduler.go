package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Names of the built-in sweeps.
const (
	JobProgressSweep    = "progress"
	JobCertificateSweep = "certificates"
)

// ErrUnknownJob indicates RunOnce was called with a name that was never registered.
var ErrUnknownJob = errors.New("unknown scheduled job")

// JobFunc performs one sweep and returns its report.
type JobFunc func(ctx context.Context) (interface{}, error)

// Job is a periodic sweep guarded by the shared lock.
type Job struct {
	Name string
	Spec string
	Run  JobFunc
}

// Scheduler runs sweeps on cron schedules and on demand. Every run of a job holds the
// job's lock, so a scheduled run and a manual trigger never overlap across replicas.
type Scheduler struct {
	cron    *cron.Cron
	locker  Locker
	lockTTL time.Duration
	logger  zerolog.Logger

	mu   sync.RWMutex
	jobs map[string]Job

	baseCtx context.Context
	cancel  context.CancelFunc
}

// New constructs a scheduler. lockTTL bounds both the lock lease and each run.
func New(locker Locker, lockTTL time.Duration, logger zerolog.Logger) *Scheduler {
	if locker == nil {
		locker = NewLocalLocker()
	}
	if lockTTL <= 0 {
		lockTTL = 10 * time.Minute
	}
	log := logger.With().Str("component", "scheduler").Logger()
	cronLog := cronLogger{logger: log}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:    cron.New(cron.WithLogger(cronLog), cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog))),
		locker:  locker,
		lockTTL: lockTTL,
		logger:  log,
		jobs:    make(map[string]Job),
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// Register adds a job. An empty spec registers the job for manual runs only.
func (s *Scheduler) Register(job Job) error {
	if job.Name == "" || job.Run == nil {
		return errors.New("job name and run function are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("job %q already registered", job.Name)
	}

	if job.Spec != "" {
		name := job.Name
		if _, err := s.cron.AddFunc(job.Spec, func() { s.runScheduled(name) }); err != nil {
			return fmt.Errorf("schedule %q: %w", job.Name, err)
		}
	}
	s.jobs[job.Name] = job
	return nil
}

// Start begins the cron loop.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Int("jobs", len(s.jobs)).Msg("scheduler started")
}

// Stop halts the cron loop and waits for running jobs until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce executes a job immediately under its lock. It returns ErrLockHeld when the job is
// already running elsewhere.
func (s *Scheduler) RunOnce(ctx context.Context, name string) (interface{}, error) {
	s.mu.RLock()
	job, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.run(ctx, job)
}

func (s *Scheduler) runScheduled(name string) {
	s.mu.RLock()
	job := s.jobs[name]
	s.mu.RUnlock()

	if _, err := s.run(s.baseCtx, job); err != nil {
		if errors.Is(err, ErrLockHeld) {
			s.logger.Debug().Str("job", name).Msg("sweep skipped, lock held elsewhere")
			return
		}
		s.logger.Error().Err(err).Str("job", name).Msg("scheduled sweep failed")
	}
}

func (s *Scheduler) run(ctx context.Context, job Job) (interface{}, error) {
	release, err := s.locker.Acquire(ctx, job.Name, s.lockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	runCtx, cancel := context.WithTimeout(ctx, s.lockTTL)
	defer cancel()

	started := time.Now()
	report, err := job.Run(runCtx)
	event := s.logger.Info()
	if err != nil {
		event = s.logger.Error().Err(err)
	}
	event.Str("job", job.Name).Dur("duration", time.Since(started)).Msg("sweep finished")
	return report, err
}

// cronLogger adapts zerolog to the cron.Logger interface.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
