// Package schedule provides cron-driven recurring batch scans. Each job
// runs a batch scan of its targets on a cron expression and hands the
// results to a caller-supplied sink; overlapping firings of the same job
// are skipped.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/ValorVie/nmapTraceroute/internal/logging"
	"github.com/ValorVie/nmapTraceroute/internal/traceroute"
)

// BatchRunner is the batch scan operation a job repeats.
type BatchRunner interface {
	ScanTargets(ctx context.Context, targets []string, ports []int, protocol string) []*traceroute.ScanResult
}

// ResultSink receives the results of each job firing.
type ResultSink func(jobName string, results []*traceroute.ScanResult)

// JobConfig describes one recurring batch scan.
type JobConfig struct {
	Name     string
	CronExpr string
	Targets  []string
	Ports    []int
	Protocol string
}

// Job is a scheduled job wrapper.
type Job struct {
	ID      uuid.UUID
	CronID  cron.EntryID
	Config  JobConfig
	LastRun time.Time
	Running bool
}

// Scheduler manages scheduled batch scan jobs.
type Scheduler struct {
	cron    *cron.Cron
	runner  BatchRunner
	sink    ResultSink
	jobs    map[string]*Job
	mu      sync.RWMutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewScheduler creates a scheduler delivering results to sink.
func NewScheduler(runner BatchRunner, sink ResultSink) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(),
		runner: runner,
		sink:   sink,
		jobs:   make(map[string]*Job),
		ctx:    ctx,
		cancel: cancel,
	}
}

// AddJob registers a recurring batch scan. Job names must be unique.
func (s *Scheduler) AddJob(cfg JobConfig) error {
	if cfg.Name == "" {
		return fmt.Errorf("job name is required")
	}
	if len(cfg.Targets) == 0 {
		return fmt.Errorf("job %q has no targets", cfg.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[cfg.Name]; exists {
		return fmt.Errorf("job %q already scheduled", cfg.Name)
	}

	job := &Job{
		ID:     uuid.New(),
		Config: cfg,
	}

	cronID, err := s.cron.AddFunc(cfg.CronExpr, func() {
		s.runJob(job)
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", cfg.CronExpr, err)
	}
	job.CronID = cronID
	s.jobs[cfg.Name] = job

	logging.Info("scheduled batch scan job",
		"job", cfg.Name, "cron", cfg.CronExpr, "targets", len(cfg.Targets))
	return nil
}

// RemoveJob unschedules a job by name.
func (s *Scheduler) RemoveJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[name]
	if !exists {
		return fmt.Errorf("job %q not found", name)
	}
	s.cron.Remove(job.CronID)
	delete(s.jobs, name)
	logging.Info("removed batch scan job", "job", name)
	return nil
}

// Jobs returns a snapshot of all scheduled jobs.
func (s *Scheduler) Jobs() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, *job)
	}
	return jobs
}

// Start begins the scheduler.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}
	s.cron.Start()
	s.running = true

	logging.Info("scheduler started", "jobs", len(s.jobs))
	return nil
}

// Stop stops the scheduler. Idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.cron.Stop()
	s.cancel()
	s.running = false

	logging.Info("scheduler stopped")
}

// Running reports whether the scheduler is active.
func (s *Scheduler) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// runJob executes one firing. A firing that lands while the previous one
// is still running is skipped.
func (s *Scheduler) runJob(job *Job) {
	s.mu.Lock()
	if job.Running {
		s.mu.Unlock()
		logging.Warn("previous firing still running, skipping",
			"job", job.Config.Name)
		return
	}
	job.Running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		job.Running = false
		job.LastRun = time.Now()
		s.mu.Unlock()
	}()

	logging.Info("running scheduled batch scan",
		"job", job.Config.Name, "targets", len(job.Config.Targets))

	results := s.runner.ScanTargets(s.ctx, job.Config.Targets, job.Config.Ports, job.Config.Protocol)

	if s.sink != nil {
		s.sink(job.Config.Name, results)
	}
}
