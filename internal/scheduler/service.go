// Package scheduler runs recurring back-office jobs such as the loan status
// sweep.
package scheduler

import (
	"context"
	"sync"
	"time"

	"sacco/pkg/errors"
	"sacco/pkg/logger"
)

type JobStatus string

const (
	JobStatusActive  JobStatus = "active"
	JobStatusPaused  JobStatus = "paused"
	JobStatusRunning JobStatus = "running"
)

// Job is a named unit of recurring work.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
	// Timeout bounds one run; zero means the interval.
	Timeout time.Duration

	NextRun time.Time
	LastRun time.Time
	LastErr error
	Runs    int
	Status  JobStatus
}

type Scheduler struct {
	tick   time.Duration
	jobs   map[string]*Job
	mu     sync.Mutex
	logger logger.Logger
	stop   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
	now    func() time.Time
}

func NewScheduler(tick time.Duration, log logger.Logger) *Scheduler {
	if tick <= 0 {
		tick = time.Second
	}
	return &Scheduler{
		tick:   tick,
		jobs:   make(map[string]*Job),
		logger: log,
		stop:   make(chan struct{}),
		now:    time.Now,
	}
}

// Schedule registers a job. Its first run is one interval from now unless
// NextRun is already set.
func (s *Scheduler) Schedule(job *Job) error {
	if job.Name == "" || job.Run == nil {
		return errors.NewValidation("job", "name and run function are required")
	}
	if job.Interval <= 0 {
		return errors.NewValidation("interval", "must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.Name]; ok {
		return errors.Wrap(errors.ErrAlreadyExists, "job "+job.Name)
	}
	if job.NextRun.IsZero() {
		job.NextRun = s.now().Add(job.Interval)
	}
	job.Status = JobStatusActive
	s.jobs[job.Name] = job
	s.logger.Info("Scheduled job", map[string]interface{}{
		"job":      job.Name,
		"interval": job.Interval.String(),
	})
	return nil
}

func (s *Scheduler) Pause(name string) bool  { return s.setStatus(name, JobStatusPaused) }
func (s *Scheduler) Resume(name string) bool { return s.setStatus(name, JobStatusActive) }

func (s *Scheduler) setStatus(name string, status JobStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[name]
	if !ok || job.Status == JobStatusRunning {
		return false
	}
	job.Status = status
	return true
}

// Jobs returns a snapshot of every registered job.
func (s *Scheduler) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *j)
	}
	return out
}

// Start polls for due jobs until Stop is called or ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.runDue(ctx)
			case <-s.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	s.logger.Info("Scheduler started", map[string]interface{}{"tick": s.tick.String()})
}

// Stop halts polling and waits for running jobs to return.
func (s *Scheduler) Stop() {
	s.once.Do(func() { close(s.stop) })
	s.wg.Wait()
}

func (s *Scheduler) runDue(ctx context.Context) {
	s.mu.Lock()
	now := s.now()
	var due []*Job
	for _, job := range s.jobs {
		if job.Status == JobStatusActive && !now.Before(job.NextRun) {
			job.Status = JobStatusRunning
			due = append(due, job)
		}
	}
	s.mu.Unlock()

	for _, job := range due {
		s.wg.Add(1)
		go s.execute(ctx, job)
	}
}

// execute runs one job. A job never overlaps itself: it stays in running
// state until the run returns.
func (s *Scheduler) execute(ctx context.Context, job *Job) {
	defer s.wg.Done()
	timeout := job.Timeout
	if timeout <= 0 {
		timeout = job.Interval
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := s.now()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = errors.New("job panicked")
				s.logger.Error("Job panicked", map[string]interface{}{"job": job.Name, "panic": r})
			}
		}()
		return job.Run(runCtx)
	}()

	s.mu.Lock()
	job.LastRun = started
	job.LastErr = err
	job.Runs++
	job.NextRun = s.now().Add(job.Interval)
	job.Status = JobStatusActive
	s.mu.Unlock()

	fields := map[string]interface{}{
		"job":         job.Name,
		"duration_ms": s.now().Sub(started).Milliseconds(),
	}
	if err != nil {
		fields["error"] = err.Error()
		s.logger.Error("Job failed", fields)
		return
	}
	s.logger.Info("Job finished", fields)
}
