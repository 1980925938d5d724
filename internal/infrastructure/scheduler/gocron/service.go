package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/acc-network/relay/internal/core/ports"
	"github.com/go-co-op/gocron"
)

type service struct {
	scheduler *gocron.Scheduler
	job       *gocron.Job
	mu        *sync.Mutex
	started   bool
}

// NewScheduler returns a scheduler that runs one job at a time on a cron
// expression with a leading seconds field.
func NewScheduler() ports.SchedulerService {
	svc := gocron.NewScheduler(time.UTC)
	return &service{scheduler: svc, mu: &sync.Mutex{}}
}

func (s *service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Nothing to do if already started
	if s.started {
		return
	}
	s.scheduler.StartAsync()
	s.started = true
}

func (s *service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.scheduler.Stop()
	s.scheduler.Clear()
	s.job = nil
	s.started = false
}

// Schedule replaces the current job. A tick firing while the previous run of
// job is still in progress is dropped.
func (s *service) Schedule(expression string, job func()) error {
	if expression == "" {
		return fmt.Errorf("missing cron expression")
	}
	if job == nil {
		return fmt.Errorf("missing job")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.job != nil {
		s.scheduler.RemoveByReference(s.job)
		s.job = nil
	}

	j, err := s.scheduler.CronWithSeconds(expression).SingletonMode().Do(job)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expression, err)
	}
	s.job = j
	return nil
}

func (s *service) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.job == nil {
		return time.Time{}
	}
	return s.job.NextRun()
}
