// Package scheduler runs periodic background jobs of the ranking service:
// the weekly ranking broadcast and history backups.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tabletop-league/ranking-bot/pkg/logger"
	"github.com/tabletop-league/ranking-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// JOB INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Job defines the interface that all scheduled jobs must implement.
type Job interface {
	// Name returns the unique name of the job.
	Name() string

	// Run executes the job. The context is cancelled when the scheduler
	// stops or the job timeout elapses.
	Run(ctx context.Context) error
}

// Schedule defines when a job should run.
type Schedule interface {
	// Next returns the next activation strictly after t.
	Next(t time.Time) time.Time
	String() string
}

// JobResult contains the result of a job execution.
type JobResult struct {
	JobName     string
	StartedAt   time.Time
	CompletedAt time.Time
	Manual      bool
	Skipped     bool
	Err         error
}

// Duration returns the run time.
func (r JobResult) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// Success reports whether the job finished without error.
func (r JobResult) Success() bool {
	return r.Err == nil
}

// Observer receives job outcomes (metrics).
type Observer interface {
	ObserveJob(job string, elapsed time.Duration, err error)
}

// Locker serializes a job across replicas. TryLock returns ErrLocked-like
// error when another replica holds the lock.
type Locker interface {
	TryLock(ctx context.Context, name, owner string, ttl time.Duration) (func(context.Context) error, error)
}

var (
	ErrNilJob                  = errors.New("job cannot be nil")
	ErrNilSchedule             = errors.New("schedule cannot be nil")
	ErrJobAlreadyExists        = errors.New("job already exists")
	ErrJobNotFound             = errors.New("job not found")
	ErrJobAlreadyRunning       = errors.New("job is already running")
	ErrSchedulerAlreadyRunning = errors.New("scheduler is already running")
	ErrSchedulerNotRunning     = errors.New("scheduler is not running")
)

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// Config contains configuration for the Scheduler.
type Config struct {
	Logger *logger.Logger
	Clock  timeutil.Clock

	// Location for schedule calculations (default: UTC).
	Location *time.Location

	// JobTimeout bounds a single run. Zero means no timeout.
	JobTimeout time.Duration

	// TickInterval is how often due jobs are checked (default: 1s).
	TickInterval time.Duration

	// HistorySize bounds the kept results (default: 100).
	HistorySize int

	Observer Observer

	// Locker and Owner enable cross-replica exclusion.
	Locker Locker
	Owner  string
}

// Scheduler manages and executes scheduled jobs.
type Scheduler struct {
	mu sync.RWMutex

	cfg  Config
	log  *logger.Logger
	jobs map[string]*scheduledJob

	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	history []JobResult
}

type scheduledJob struct {
	job      Job
	schedule Schedule
	nextRun  time.Time
	lastRun  time.Time
	running  bool
	runs     int64
	failures int64
}

// New creates a new Scheduler with the given configuration.
func New(cfg Config) *Scheduler {
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.SystemClock{}
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 100
	}

	return &Scheduler{
		cfg:  cfg,
		log:  cfg.Logger.With(logger.Component("scheduler")),
		jobs: make(map[string]*scheduledJob),
	}
}

func (s *Scheduler) now() time.Time {
	return s.cfg.Clock.Now().In(s.cfg.Location)
}

// Register adds a job with the given schedule.
func (s *Scheduler) Register(job Job, schedule Schedule) error {
	if job == nil {
		return ErrNilJob
	}
	if schedule == nil {
		return ErrNilSchedule
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}

	sj := &scheduledJob{job: job, schedule: schedule, nextRun: schedule.Next(s.now())}
	s.jobs[name] = sj

	s.log.Info("job registered",
		logger.String("job", name),
		logger.String("schedule", schedule.String()),
		logger.Time("next_run", sj.nextRun),
	)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSchedulerAlreadyRunning
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	count := len(s.jobs)
	s.mu.Unlock()

	s.log.Info("scheduler started", logger.Int("jobs", count))

	s.wg.Add(1)
	go s.runLoop(ctx)
	return nil
}

// Stop cancels the loop and waits for running jobs to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info("scheduler stopped")
	return nil
}

// Run starts the scheduler and blocks until ctx is done. Suits errgroup.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return s.Stop()
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Scheduler) runLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick starts every due job that is not already running. Exposed so that
// tests can drive the scheduler with a fixed clock.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	due := make([]*scheduledJob, 0)
	for _, sj := range s.jobs {
		if sj.running || sj.nextRun.IsZero() || now.Before(sj.nextRun) {
			continue
		}
		sj.running = true
		sj.lastRun = now
		sj.nextRun = sj.schedule.Next(now)
		due = append(due, sj)
	}
	s.mu.Unlock()

	for _, sj := range due {
		s.wg.Add(1)
		go func(sj *scheduledJob) {
			defer s.wg.Done()
			s.execute(ctx, sj, false)
		}(sj)
	}
}

// RunNow executes a job immediately, ignoring its schedule. A job that is
// already running is not started twice.
func (s *Scheduler) RunNow(ctx context.Context, name string) (JobResult, error) {
	s.mu.Lock()
	sj, ok := s.jobs[name]
	if !ok {
		s.mu.Unlock()
		return JobResult{}, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	if sj.running {
		s.mu.Unlock()
		return JobResult{}, fmt.Errorf("%w: %s", ErrJobAlreadyRunning, name)
	}
	sj.running = true
	s.mu.Unlock()

	res := s.execute(ctx, sj, true)
	return res, res.Err
}

func (s *Scheduler) execute(ctx context.Context, sj *scheduledJob, manual bool) JobResult {
	name := sj.job.Name()
	log := s.log.With(logger.String("job", name))
	res := JobResult{JobName: name, StartedAt: s.cfg.Clock.Now(), Manual: manual}

	defer func() {
		s.mu.Lock()
		sj.running = false
		if !res.Skipped {
			sj.runs++
			if res.Err != nil {
				sj.failures++
			}
		}
		s.addToHistory(res)
		s.mu.Unlock()
	}()

	if s.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.JobTimeout)
		defer cancel()
	}

	if s.cfg.Locker != nil {
		ttl := s.cfg.JobTimeout
		if ttl <= 0 {
			ttl = 5 * time.Minute
		}
		release, err := s.cfg.Locker.TryLock(ctx, "job:"+name, s.cfg.Owner, ttl)
		if err != nil {
			log.Info("job skipped, lock not acquired", logger.Err(err))
			res.Skipped = true
			res.CompletedAt = s.cfg.Clock.Now()
			return res
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				log.Warn("release job lock", logger.Err(err))
			}
		}()
	}

	log.Info("job started", logger.Bool("manual", manual))
	res.Err = s.safeRun(ctx, sj.job)
	res.CompletedAt = s.cfg.Clock.Now()

	if s.cfg.Observer != nil {
		s.cfg.Observer.ObserveJob(name, res.Duration(), res.Err)
	}

	if res.Err != nil {
		log.Error("job failed", logger.Latency(res.Duration()), logger.Err(res.Err))
	} else {
		log.Info("job completed", logger.Latency(res.Duration()))
	}
	return res
}

func (s *Scheduler) safeRun(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panic: %v", r)
		}
	}()
	return job.Run(ctx)
}

func (s *Scheduler) addToHistory(result JobResult) {
	s.history = append(s.history, result)
	if len(s.history) > s.cfg.HistorySize {
		s.history = s.history[len(s.history)-s.cfg.HistorySize:]
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// STATUS & INFO
// ══════════════════════════════════════════════════════════════════════════════

// JobInfo describes a registered job.
type JobInfo struct {
	Name     string
	Schedule string
	NextRun  time.Time
	LastRun  time.Time
	Running  bool
	Runs     int64
	Failures int64
}

// ListJobs returns registered jobs sorted by name.
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]JobInfo, 0, len(s.jobs))
	for name, sj := range s.jobs {
		out = append(out, JobInfo{
			Name:     name,
			Schedule: sj.schedule.String(),
			NextRun:  sj.nextRun,
			LastRun:  sj.lastRun,
			Running:  sj.running,
			Runs:     sj.runs,
			Failures: sj.failures,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// History returns up to limit most recent results, newest last.
func (s *Scheduler) History(limit int) []JobResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}
	return append([]JobResult(nil), s.history[len(s.history)-limit:]...)
}
