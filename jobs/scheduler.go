// Package jobs runs scheduled maintenance across every tenant.
package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/multistore/pkg/telemetry"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is a named unit of scheduled work
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

// Scheduler runs jobs on cron specs. A job never overlaps with itself.
type Scheduler struct {
	cron    *cron.Cron
	parser  cron.Parser
	logger  *zap.Logger
	metrics *telemetry.Metrics

	mu      sync.Mutex
	jobs    map[string]Job
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
}

func NewScheduler(logger *zap.Logger, metrics *telemetry.Metrics) *Scheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(cron.WithParser(parser), cron.WithLocation(time.UTC)),
		parser:  parser,
		logger:  logger,
		metrics: metrics,
		jobs:    make(map[string]Job),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Register validates the cron expression and schedules the job
func (s *Scheduler) Register(job Job) error {
	if _, err := s.parser.Parse(job.Spec); err != nil {
		return errx.Wrap(err, "invalid cron expression", errx.TypeValidation).
			WithDetail("job", job.Name).
			WithDetail("spec", job.Spec)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.Name]; exists {
		return errx.New("job already registered", errx.TypeConflict).WithDetail("job", job.Name)
	}

	wrapped := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(cron.FuncJob(func() {
		_ = s.execute(s.ctx, job)
	}))
	if _, err := s.cron.AddJob(job.Spec, wrapped); err != nil {
		return errx.Wrap(err, "failed to schedule job", errx.TypeInternal).WithDetail("job", job.Name)
	}
	s.jobs[job.Name] = job
	return nil
}

// Jobs returns the registered job names
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	return names
}

// RunNow runs a registered job synchronously, outside its schedule
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return errx.New("job not found", errx.TypeNotFound).WithDetail("job", name)
	}
	return s.execute(ctx, job)
}

func (s *Scheduler) execute(ctx context.Context, job Job) error {
	start := time.Now()
	s.logger.Info("job started", zap.String("job", job.Name))

	err := job.Run(ctx)
	s.metrics.Job(job.Name, err)
	if err != nil {
		s.logger.Error("job failed",
			zap.String("job", job.Name),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return err
	}

	s.logger.Info("job finished",
		zap.String("job", job.Name),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.logger.Warn("scheduler already running")
		return
	}
	s.running = true
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.jobs)))
}

// Stop cancels running jobs and waits for them to return
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}
