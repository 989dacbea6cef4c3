package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// JobStatus describes a registered job for status reporting.
type JobStatus struct {
	Name     string    `json:"name"`
	Schedule string    `json:"schedule"`
	Next     time.Time `json:"next,omitzero"`
	Prev     time.Time `json:"prev,omitzero"`
	Running  bool      `json:"running"`
}

// Scheduler manages periodic job execution using cron expressions.
// Each job is protected by a per-job mutex to prevent parallel execution
// of the same job (uses TryLock, so check and acquire are atomic).
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	jobs    []Job
	names   map[string]struct{}
	locks   map[string]*sync.Mutex
	entries map[string]cron.EntryID
	logger  *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewScheduler creates a scheduler. Jobs must be registered before Start().
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		names:   make(map[string]struct{}),
		locks:   make(map[string]*sync.Mutex),
		entries: make(map[string]cron.EntryID),
		logger:  logger,
	}
}

// ParseSchedule reports whether expr is a valid 5-field cron expression.
func ParseSchedule(expr string) error {
	if _, err := parser().Parse(expr); err != nil {
		return fmt.Errorf("cron: invalid schedule %q: %w", expr, err)
	}
	return nil
}

func parser() cron.Parser {
	return cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
}

// RegisterJob adds a job to the scheduler. Must be called before Start().
// Returns an error if a job with the same name is already registered.
func (s *Scheduler) RegisterJob(j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := j.Name()
	if _, exists := s.names[name]; exists {
		return fmt.Errorf("cron: duplicate job name %q", name)
	}

	s.names[name] = struct{}{}
	s.locks[name] = &sync.Mutex{}
	s.jobs = append(s.jobs, j)
	return nil
}

// Start initializes the cron scheduler and begins executing registered jobs.
// Returns an error if any job has an invalid schedule expression.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	s.ctx = ctx
	s.cancel = cancel

	s.cron = cron.New(cron.WithParser(parser()))

	for _, j := range s.jobs {
		job := j
		id, err := s.cron.AddFunc(job.Schedule(), func() {
			s.runLocked(ctx, job, "tick")
		})
		if err != nil {
			cancel()
			return fmt.Errorf("cron: invalid schedule for job %q: %w", job.Name(), err)
		}
		s.entries[job.Name()] = id
	}

	s.cron.Start()
	s.logger.Info("cron: scheduler started", "jobs", len(s.jobs))
	return nil
}

// RunNow runs the named job immediately in the caller's goroutine. It
// shares the per-job lock with scheduled ticks and returns an error when
// the job is unknown or already running.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	var job Job
	for _, j := range s.jobs {
		if j.Name() == name {
			job = j
			break
		}
	}
	lock := s.locks[name]
	s.mu.Unlock()

	if job == nil {
		return fmt.Errorf("cron: unknown job %q", name)
	}
	if !lock.TryLock() {
		return fmt.Errorf("cron: job %q is already running", name)
	}
	defer lock.Unlock()

	s.logger.Info("cron: job triggered manually", "job", name)
	return job.Run(ctx)
}

// runLocked skips the run when the previous one is still in flight.
func (s *Scheduler) runLocked(ctx context.Context, job Job, trigger string) {
	lock := s.locks[job.Name()]
	if !lock.TryLock() {
		s.logger.Warn("cron: job still running, skipping tick",
			"job", job.Name(),
		)
		return
	}
	defer lock.Unlock()

	s.logger.Debug("cron: job started", "job", job.Name(), "trigger", trigger)
	if err := job.Run(ctx); err != nil {
		s.logger.Error("cron: job failed",
			"job", job.Name(),
			"error", err,
		)
	} else {
		s.logger.Debug("cron: job completed", "job", job.Name())
	}
}

// Status returns the registered jobs in registration order. Next and Prev
// are zero before Start.
func (s *Scheduler) Status() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobStatus, 0, len(s.jobs))
	for _, j := range s.jobs {
		st := JobStatus{Name: j.Name(), Schedule: j.Schedule()}
		if s.cron != nil {
			if id, ok := s.entries[j.Name()]; ok {
				e := s.cron.Entry(id)
				st.Next = e.Next
				st.Prev = e.Prev
			}
		}
		if lock := s.locks[j.Name()]; lock.TryLock() {
			lock.Unlock()
		} else {
			st.Running = true
		}
		out = append(out, st)
	}
	return out
}

// Stop gracefully shuts down the scheduler, waiting for in-flight jobs.
func (s *Scheduler) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	if s.cron != nil {
		// Wait for running jobs to complete.
		<-s.cron.Stop().Done()
		s.logger.Info("cron: scheduler stopped")
	}
	return nil
}
