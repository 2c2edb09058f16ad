// Package batch applies a mutation to a list of items against a remote instance with bounded
// concurrency, deduplication, validation, retries and a failure-rate abort.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Bitfy-AI/docs-jana-sub007/pkg/dedup"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/eventbus"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/events"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/models"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/otelhelper"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/remote"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/validation"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateAborted   State = "aborted"
)

const (
	ReasonAborted        = "aborted: failure rate below threshold"
	ReasonCanceled       = "canceled: run stopped before the item was processed"
	ReasonInterrupted    = "interrupted: run canceled"
	ReasonTargetNotFound = "target not found"
	ReasonConflict       = "already applied: remote reported a conflict"
	ReasonWithWarnings   = "transferred with warnings"
)

// Result is the complete record of one run.
type Result struct {
	RunID       string               `json:"run_id"`
	Mutation    string               `json:"mutation"`
	DryRun      bool                 `json:"dry_run"`
	State       State                `json:"state"`
	Stats       models.BatchStats    `json:"stats"`
	Outcomes    []models.ItemOutcome `json:"outcomes"`
	Aborted     bool                 `json:"aborted"`
	AbortReason string               `json:"abort_reason,omitempty"`
	StartedAt   time.Time            `json:"started_at"`
	FinishedAt  time.Time            `json:"finished_at"`
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

type Option func(*Processor)

func WithDeduplicator(d dedup.Deduplicator) Option {
	return func(p *Processor) {
		p.dedup = d
	}
}

func WithValidator(v validation.Validator) Option {
	return func(p *Processor) {
		p.validator = v
	}
}

// WithSnapshot sets the source of existing destination items. By default the destination
// is listed through the remote service.
func WithSnapshot(s Snapshot) Option {
	return func(p *Processor) {
		p.snapshot = s
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithPublisher publishes run and item events. Publish failures are logged and never
// affect the run.
func WithPublisher(publisher eventbus.EventPublisher) Option {
	return func(p *Processor) {
		p.publisher = publisher
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(p *Processor) {
		p.tracer = tracer
	}
}

func WithSleeper(sleep Sleeper) Option {
	return func(p *Processor) {
		p.sleep = sleep
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		p.now = now
	}
}

// Processor runs batches against one remote service, one run at a time.
type Processor struct {
	remote    remote.Service
	dedup     dedup.Deduplicator
	validator validation.Validator
	snapshot  Snapshot
	publisher eventbus.EventPublisher
	logger    *slog.Logger
	tracer    trace.Tracer
	sleep     Sleeper
	now       func() time.Time

	mu    sync.Mutex
	state State
}

// NewProcessor returns a processor mutating through service. Without options it
// deduplicates exactly, validates with the schema and integrity chain and reads the
// destination snapshot from service.
func NewProcessor(service remote.Service, opts ...Option) (*Processor, error) {
	if service == nil {
		return nil, errors.New("remote service is required")
	}

	p := &Processor{
		remote:   service,
		dedup:    dedup.NewExact(),
		snapshot: RemoteSnapshot{Service: service},
		logger:   slog.With("module", "batch"),
		tracer:   otelhelper.Tracer("github.com/Bitfy-AI/docs-jana-sub007/pkg/batch"),
		sleep:    sleepContext,
		now:      time.Now,
		state:    StateIdle,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.validator == nil {
		chain, err := validation.Default()
		if err != nil {
			return nil, err
		}

		p.validator = chain
	}

	return p, nil
}

// State returns the state of the current or last run.
func (p *Processor) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.state
}

// RunItems runs items and returns the stats and ordered outcomes. An aborted run returns
// complete stats and outcomes together with an *AbortError.
func (p *Processor) RunItems(ctx context.Context, items []models.Item, opts RunOptions) (models.BatchStats, []models.ItemOutcome, error) {
	result, err := p.Run(ctx, items, opts)

	return result.Stats, result.Outcomes, err
}

// Preview runs items without writing anything.
func (p *Processor) Preview(ctx context.Context, items []models.Item, opts RunOptions) (Result, error) {
	opts.DryRun = true

	return p.Run(ctx, items, opts)
}

// Run processes items. Every item gets exactly one outcome, in input order. The returned
// error is an *AbortError when the failure rate crossed the threshold, the context error
// when ctx ended the run early, and otherwise only reports setup failures.
func (p *Processor) Run(ctx context.Context, items []models.Item, opts RunOptions) (Result, error) {
	opts, err := opts.Validate()
	if err != nil {
		return Result{State: p.State()}, err
	}

	p.mu.Lock()
	if p.state == StateRunning {
		p.mu.Unlock()

		return Result{State: StateRunning}, ErrRunInProgress
	}

	previous := p.state
	p.state = StateRunning
	p.mu.Unlock()

	result, err := p.execute(ctx, items, opts)

	p.mu.Lock()
	if result.State == "" {
		result.State = previous
	}

	p.state = result.State
	p.mu.Unlock()

	return result, err
}

type run struct {
	id     string
	opts   RunOptions
	items  []models.Item
	pacer  *Pacer
	logger *slog.Logger

	mu       sync.Mutex
	existing []models.Item
	claimed  []models.Item
	stats    models.BatchStats
	outcomes []models.ItemOutcome
	done     []bool
}

func (p *Processor) execute(ctx context.Context, items []models.Item, opts RunOptions) (Result, error) {
	r := &run{
		id:       uuid.NewString(),
		opts:     opts,
		items:    items,
		outcomes: make([]models.ItemOutcome, len(items)),
		done:     make([]bool, len(items)),
		stats:    models.BatchStats{Total: len(items)},
	}

	r.logger = p.logger.With("run_id", r.id, "mutation", opts.Mutation.Name())

	if opts.Pacing.Enabled {
		r.pacer = NewPacer(opts.Pacing)
	}

	ctx, span := otelhelper.StartSpan(ctx, p.tracer, "batch.Run",
		attribute.String(otelhelper.RunIDKey, r.id),
		attribute.Bool(otelhelper.RunDryRunKey, opts.DryRun),
		attribute.Int("jana.run.total", len(items)),
	)
	defer span.End()

	started := p.now()

	existing, err := p.snapshot.Existing(ctx)
	if err != nil {
		otelhelper.SetError(span, err)

		return Result{RunID: r.id}, fmt.Errorf("failed to load destination snapshot: %w", err)
	}

	r.existing = existing

	p.publish(ctx, r, events.NewRunStarted(r.id, len(items), opts.DryRun, opts.Mutation.Name()))
	r.logger.InfoContext(ctx, "Batch run started",
		"total", len(items),
		"existing", len(existing),
		"dry_run", opts.DryRun,
		"concurrency", opts.ConcurrencyLimit,
		"batch_size", opts.BatchSize,
	)

	var (
		abortErr *AbortError
		stopErr  error
	)

	for start := 0; start < len(items); start += opts.BatchSize {
		if err := ctx.Err(); err != nil {
			stopErr = err

			break
		}

		end := min(start+opts.BatchSize, len(items))
		p.runBatch(ctx, r, start, end)

		if err := ctx.Err(); err != nil {
			stopErr = err

			break
		}

		if end == len(items) {
			break
		}

		stats := r.snapshotStats()
		if rate := stats.SuccessRate(); opts.RollbackThreshold > 0 && rate < opts.RollbackThreshold {
			abortErr = &AbortError{
				SuccessRate: rate,
				Threshold:   opts.RollbackThreshold,
				Completed:   stats.Completed(),
				Remaining:   len(items) - end,
			}

			break
		}

		if delay := r.pacer.Adjust(); delay > 0 {
			r.logger.DebugContext(ctx, "Pacing before next batch", "delay", delay)

			if err := p.sleep(ctx, delay); err != nil {
				stopErr = err

				break
			}
		}
	}

	reason := ReasonCanceled
	if abortErr != nil {
		reason = ReasonAborted
	}

	// Events for the remaining items must go out even when ctx has ended.
	finishCtx := context.WithoutCancel(ctx)

	for idx, item := range items {
		if r.isDone(idx) {
			continue
		}

		p.complete(finishCtx, r, idx, models.ItemOutcome{
			ItemID: item.ID,
			Name:   item.Name,
			Status: models.OutcomeSkippedFiltered,
			Reason: reason,
		})
	}

	result := Result{
		RunID:      r.id,
		Mutation:   opts.Mutation.Name(),
		DryRun:     opts.DryRun,
		State:      StateCompleted,
		Stats:      r.snapshotStats(),
		Outcomes:   r.outcomes,
		StartedAt:  started,
		FinishedAt: p.now(),
	}

	span.SetAttributes(
		attribute.Int("jana.run.succeeded", result.Stats.Succeeded),
		attribute.Int("jana.run.failed", result.Stats.Failed),
		attribute.Int("jana.run.skipped", result.Stats.Skipped),
	)

	switch {
	case abortErr != nil:
		result.State = StateAborted
		result.Aborted = true
		result.AbortReason = abortErr.Error()

		otelhelper.SetError(span, abortErr)
		r.logger.ErrorContext(ctx, "Batch run aborted",
			"success_rate", abortErr.SuccessRate,
			"threshold", abortErr.Threshold,
			"remaining", abortErr.Remaining,
		)
		p.publish(finishCtx, r, events.NewRunAborted(r.id, result.AbortReason, abortErr.SuccessRate, abortErr.Threshold, result.Stats, result.Outcomes))

		return result, abortErr
	case stopErr != nil:
		result.State = StateAborted
		result.Aborted = true
		result.AbortReason = "canceled: " + stopErr.Error()

		otelhelper.SetError(span, stopErr)
		r.logger.WarnContext(finishCtx, "Batch run canceled", "error", stopErr)
		p.publish(finishCtx, r, events.NewRunAborted(r.id, result.AbortReason, result.Stats.SuccessRate(), opts.RollbackThreshold, result.Stats, result.Outcomes))

		return result, fmt.Errorf("batch run interrupted: %w", stopErr)
	}

	r.logger.InfoContext(ctx, "Batch run completed",
		"succeeded", result.Stats.Succeeded,
		"skipped", result.Stats.Skipped,
		"failed", result.Stats.Failed,
		"dry_run", result.Stats.DryRun,
		"retries", result.Stats.TotalRetries,
		"duration", result.FinishedAt.Sub(started),
	)
	p.publish(ctx, r, events.NewRunFinished(r.id, result.Stats, result.FinishedAt.Sub(started)))

	return result, nil
}

// queue hands out the indexes of one batch to the workers.
type queue struct {
	mu   sync.Mutex
	next int
	end  int
}

func (q *queue) pop() (int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.next >= q.end {
		return 0, false
	}

	idx := q.next
	q.next++

	return idx, true
}

// runBatch processes items[start:end] with at most ConcurrencyLimit workers and returns
// once the batch is drained. Workers stop taking items when ctx ends.
func (p *Processor) runBatch(ctx context.Context, r *run, start, end int) {
	q := &queue{next: start, end: end}

	var g errgroup.Group

	for range min(r.opts.ConcurrencyLimit, end-start) {
		g.Go(func() error {
			for ctx.Err() == nil {
				idx, ok := q.pop()
				if !ok {
					return nil
				}

				p.processItem(ctx, r, idx)
			}

			return nil
		})
	}

	_ = g.Wait()
}

func (p *Processor) processItem(ctx context.Context, r *run, idx int) {
	item := r.items[idx]

	ctx, span := otelhelper.StartSpan(ctx, p.tracer, "batch.Item",
		attribute.String(otelhelper.RunIDKey, r.id),
		attribute.String(otelhelper.ItemIDKey, item.ID),
		attribute.String(otelhelper.ItemNameKey, item.Name),
	)
	defer span.End()

	started := p.now()
	outcome := p.process(ctx, r, item)
	outcome.DurationMs = p.now().Sub(started).Milliseconds()

	span.SetAttributes(
		attribute.String(otelhelper.OutcomeStatusKey, string(outcome.Status)),
		attribute.Int(otelhelper.AttemptKey, outcome.Attempts),
	)

	if outcome.Status == models.OutcomeFailed {
		otelhelper.SetError(span, errors.New(outcome.Reason))
	}

	p.complete(ctx, r, idx, outcome)
}

func (p *Processor) process(ctx context.Context, r *run, item models.Item) models.ItemOutcome {
	outcome := models.ItemOutcome{ItemID: item.ID, Name: item.Name}

	id, payload, err := r.opts.Mutation.Apply(item)
	if err != nil {
		outcome.Status = models.OutcomeSkippedInvalid
		if errors.Is(err, ErrNotApplicable) {
			outcome.Status = models.OutcomeSkippedFiltered
		}

		outcome.Reason = err.Error()

		return outcome
	}

	if check := r.checkDuplicate(p.dedup, id, payload, false); check.IsDuplicate {
		outcome.Status = models.OutcomeSkippedDuplicate
		outcome.Reason = check.Reason

		return outcome
	}

	if pre := p.validator.Validate(payload, validation.PhasePre); !pre.Valid {
		outcome.Status = models.OutcomeSkippedInvalid
		outcome.Reason = strings.Join(pre.Errors, "; ")

		return outcome
	}

	// Another item of this run may have claimed the same identity while this one was validated.
	if check := r.checkDuplicate(p.dedup, id, payload, true); check.IsDuplicate {
		outcome.Status = models.OutcomeSkippedDuplicate
		outcome.Reason = check.Reason

		return outcome
	}

	if r.opts.DryRun {
		outcome.Status = models.OutcomeDryRun
		outcome.Reason = "dry run: " + r.opts.Mutation.Name() + " not sent"

		return outcome
	}

	return p.mutate(ctx, r, id, payload, outcome)
}

// mutate writes payload, retrying retryable failures per the run's policy.
func (p *Processor) mutate(ctx context.Context, r *run, id string, payload models.Item, outcome models.ItemOutcome) models.ItemOutcome {
	schedule := r.opts.RetryPolicy.newBackOff()

	// Cancellation is observed between attempts only. A started call is bounded by the
	// client's per-call timeout.
	callCtx := context.WithoutCancel(ctx)

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			if attempt == 1 {
				outcome.Status = models.OutcomeSkippedFiltered
				outcome.Reason = ReasonCanceled

				return outcome
			}

			return failed(outcome, ReasonInterrupted, err)
		}

		outcome.Attempts = attempt

		callStarted := p.now()
		result, err := p.remote.Mutate(callCtx, id, payload)
		r.pacer.Observe(p.now().Sub(callStarted))

		switch {
		case err == nil:
			outcome.Status = models.OutcomeTransferred
			if outcome.ItemID == "" {
				outcome.ItemID = result.ID
			}

			if r.opts.PostValidate {
				if post := p.validator.Validate(result, validation.PhasePost); !post.Valid {
					outcome.Reason = ReasonWithWarnings + ": " + strings.Join(post.Errors, "; ")
				}
			}

			return outcome
		case remote.IsConflict(err):
			outcome.Status = models.OutcomeTransferred
			outcome.Reason = ReasonConflict

			return outcome
		case remote.IsNotFound(err):
			outcome.Status = models.OutcomeSkippedFiltered
			outcome.Reason = ReasonTargetNotFound

			return outcome
		case remote.IsRetryable(err) && ctx.Err() != nil:
			return failed(outcome, ReasonInterrupted, err)
		case remote.IsRetryable(err) && attempt < r.opts.RetryPolicy.MaxAttempts:
			delay := schedule.NextBackOff()
			if hint := remote.RetryAfter(err); hint > 0 {
				delay = r.opts.RetryPolicy.hintDelay(hint)
			}

			r.addRetry()
			r.logger.WarnContext(ctx, "Retrying mutate",
				"item_id", outcome.ItemID,
				"name", outcome.Name,
				"attempt", attempt,
				"delay", delay,
				"error", err,
			)

			if err := p.sleep(ctx, delay); err != nil {
				return failed(outcome, ReasonInterrupted, err)
			}
		case remote.IsRetryable(err):
			return failed(outcome, fmt.Sprintf("retries exhausted after %d attempts", attempt), err)
		default:
			return failed(outcome, "fatal: "+string(remote.KindOf(err)), err)
		}
	}
}

func failed(outcome models.ItemOutcome, reason string, err error) models.ItemOutcome {
	outcome.Status = models.OutcomeFailed
	outcome.Reason = reason
	outcome.Error = &models.ErrorInfo{
		Kind:    string(remote.KindOf(err)),
		Message: err.Error(),
	}

	var remoteErr *remote.Error
	if errors.As(err, &remoteErr) {
		outcome.Error.StatusCode = remoteErr.StatusCode
	}

	return outcome
}

func (p *Processor) complete(ctx context.Context, r *run, idx int, outcome models.ItemOutcome) {
	if !r.record(idx, outcome) {
		return
	}

	r.logger.DebugContext(ctx, "Item completed",
		"item_id", outcome.ItemID,
		"name", outcome.Name,
		"status", outcome.Status,
		"reason", outcome.Reason,
		"attempts", outcome.Attempts,
	)

	p.publish(ctx, r, events.NewItemCompleted(r.id, outcome))
}

func (p *Processor) publish(ctx context.Context, r *run, event eventbus.Event) {
	if p.publisher == nil {
		return
	}

	if err := p.publisher.Publish(ctx, r.id, event); err != nil {
		r.logger.WarnContext(ctx, "Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

// checkDuplicate checks payload against the snapshot and the identities already claimed
// by this run, skipping entries that are the mutation target itself. With claim set, a
// payload found unique is claimed so later items with the same identity are duplicates.
func (r *run) checkDuplicate(d dedup.Deduplicator, targetID string, payload models.Item, claim bool) models.DuplicateCheckResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	candidates := make([]models.Item, 0, len(r.existing)+len(r.claimed))

	for _, group := range [][]models.Item{r.existing, r.claimed} {
		for _, existing := range group {
			if targetID != "" && existing.ID == targetID {
				continue
			}

			candidates = append(candidates, existing)
		}
	}

	check := d.Check(payload, candidates)
	if !check.IsDuplicate && claim {
		r.claimed = append(r.claimed, payload)
	}

	return check
}

func (r *run) record(idx int, outcome models.ItemOutcome) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done[idx] {
		return false
	}

	r.done[idx] = true
	r.outcomes[idx] = outcome
	r.stats.Record(outcome.Status)

	return true
}

func (r *run) isDone(idx int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.done[idx]
}

func (r *run) addRetry() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stats.TotalRetries++
}

func (r *run) snapshotStats() models.BatchStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.stats
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
