// Package schedule runs batch jobs on cron schedules.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Bitfy-AI/docs-jana-sub007/pkg/batch"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/models"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/remote"
	"github.com/robfig/cron/v3"
)

var (
	ErrNoJobs       = errors.New("no scheduled jobs configured")
	ErrJobName      = errors.New("scheduled job name is required")
	ErrDuplicateJob = errors.New("duplicate scheduled job")
	ErrStarted      = errors.New("scheduler already started")
)

// Job is a recurring batch run over the items Filter selects on the source instance.
type Job struct {
	Name    string
	Cron    string
	Filter  models.Filter
	Options batch.RunOptions
}

// Runner executes one batch run. *batch.Processor satisfies it.
type Runner interface {
	Run(ctx context.Context, items []models.Item, opts batch.RunOptions) (batch.Result, error)
}

// ResultFunc receives the outcome of every scheduled run.
type ResultFunc func(job string, result batch.Result, err error)

type Scheduler struct {
	source   remote.Service
	runner   Runner
	logger   *slog.Logger
	onResult ResultFunc

	jobs    []Job
	entries map[string]cron.EntryID
	mutex   sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
}

func NewScheduler(source remote.Service, runner Runner, logger *slog.Logger, onResult ResultFunc) *Scheduler {
	return &Scheduler{
		source:   source,
		runner:   runner,
		logger:   logger.With("module", "scheduler"),
		onResult: onResult,
		entries:  make(map[string]cron.EntryID),
	}
}

// Add registers a job. Cron expressions use the standard five field syntax or descriptors
// such as @hourly.
func (s *Scheduler) Add(job Job) error {
	if job.Name == "" {
		return ErrJobName
	}

	if _, err := cron.ParseStandard(job.Cron); err != nil {
		return fmt.Errorf("invalid cron expression '%s' for job %s: %w", job.Cron, job.Name, err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.cron != nil {
		return ErrStarted
	}

	for _, existing := range s.jobs {
		if existing.Name == job.Name {
			return fmt.Errorf("%w: %s", ErrDuplicateJob, job.Name)
		}
	}

	s.jobs = append(s.jobs, job)

	return nil
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if len(s.jobs) == 0 {
		return ErrNoJobs
	}

	if s.cron != nil {
		return ErrStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	logger := cron.PrintfLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelDebug))
	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(logger),
		cron.Recover(logger),
	))

	for _, job := range s.jobs {
		entryID, err := s.cron.AddFunc(job.Cron, func() { s.Trigger(runCtx, job) })
		if err != nil {
			return fmt.Errorf("failed to add cron job %s: %w", job.Name, err)
		}

		s.entries[job.Name] = entryID
		s.logger.Info("Scheduled job", "job", job.Name, "cron", job.Cron, "entry_id", entryID)
	}

	s.cron.Start()

	return nil
}

// Trigger runs the job once, immediately.
func (s *Scheduler) Trigger(ctx context.Context, job Job) {
	logger := s.logger.With("job", job.Name)

	items, err := s.source.List(ctx, job.Filter)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to list source items", "error", err)
		s.report(job.Name, batch.Result{}, err)

		return
	}

	logger.InfoContext(ctx, "Starting scheduled run", "items", len(items))

	result, err := s.runner.Run(ctx, items, job.Options)

	switch {
	case err == nil:
		logger.InfoContext(ctx, "Scheduled run finished", "run_id", result.RunID, "succeeded", result.Stats.Succeeded)
	case batch.IsAborted(err):
		logger.WarnContext(ctx, "Scheduled run aborted", "run_id", result.RunID, "reason", result.AbortReason)
	default:
		logger.ErrorContext(ctx, "Scheduled run failed", "error", err)
	}

	s.report(job.Name, result, err)
}

func (s *Scheduler) report(job string, result batch.Result, err error) {
	if s.onResult != nil {
		s.onResult(job, result, err)
	}
}

// Stop cancels in-flight runs and waits for them to return.
func (s *Scheduler) Stop() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	if s.cron != nil {
		<-s.cron.Stop().Done()
		s.cron = nil
	}

	s.entries = make(map[string]cron.EntryID)
}
