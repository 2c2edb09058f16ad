package batch

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-playground/validator/v10"
)

// hintCeilingFactor bounds a remote delay hint when RetryPolicy.MaxHint is unset.
const hintCeilingFactor = 6

// RetryPolicy bounds the retries of a retryable mutate failure. Delays grow exponentially
// from BaseDelay by Multiplier and never exceed MaxDelay. A delay hint from the remote side
// replaces the computed delay, capped at MaxHint.
type RetryPolicy struct {
	MaxAttempts int           `json:"max_attempts" validate:"gte=1,lte=20"`
	BaseDelay   time.Duration `json:"base_delay" validate:"gte=0"`
	MaxDelay    time.Duration `json:"max_delay" validate:"gtefield=BaseDelay"`
	Multiplier  float64       `json:"multiplier" validate:"gte=1"`

	// MaxHint caps a remote delay hint. Zero means six times MaxDelay.
	MaxHint time.Duration `json:"max_hint" validate:"gte=0"`
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    5 * time.Second,
		Multiplier:  2,
		MaxHint:     30 * time.Second,
	}
}

// hintDelay returns the wait for a remote delay hint.
func (p RetryPolicy) hintDelay(hint time.Duration) time.Duration {
	ceiling := p.MaxHint
	if ceiling <= 0 {
		ceiling = hintCeilingFactor * p.MaxDelay
	}

	return min(hint, ceiling)
}

// newBackOff returns a deterministic exponential schedule: BaseDelay, BaseDelay*Multiplier, ...
func (p RetryPolicy) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.Multiplier = p.Multiplier
	b.MaxInterval = p.MaxDelay
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()

	return b
}

// Delays lists the waits between successive attempts.
func (p RetryPolicy) Delays() []time.Duration {
	b := p.newBackOff()

	delays := make([]time.Duration, 0, max(p.MaxAttempts-1, 0))
	for range p.MaxAttempts - 1 {
		delays = append(delays, b.NextBackOff())
	}

	return delays
}

// PacingConfig enables adaptive delays between batches driven by mutate latency.
type PacingConfig struct {
	Enabled     bool          `json:"enabled"`
	Window      int           `json:"window" validate:"gte=0"`
	HighLatency time.Duration `json:"high_latency" validate:"gte=0"`
	LowLatency  time.Duration `json:"low_latency" validate:"gte=0"`
	Step        time.Duration `json:"step" validate:"gte=0"`
	MinDelay    time.Duration `json:"min_delay" validate:"gte=0"`
	MaxDelay    time.Duration `json:"max_delay" validate:"gte=0"`
}

func DefaultPacing() PacingConfig {
	return PacingConfig{
		Window:      10,
		HighLatency: 2 * time.Second,
		LowLatency:  500 * time.Millisecond,
		Step:        250 * time.Millisecond,
		MaxDelay:    5 * time.Second,
	}
}

// RunOptions configures one run.
type RunOptions struct {
	DryRun           bool        `json:"dry_run"`
	ConcurrencyLimit int         `json:"concurrency_limit" validate:"gte=1,lte=64"`
	RetryPolicy      RetryPolicy `json:"retry_policy"`

	// RollbackThreshold is the success rate below which remaining work is abandoned.
	// Zero disables the check.
	RollbackThreshold float64 `json:"rollback_threshold" validate:"gte=0,lte=1"`
	PostValidate      bool    `json:"post_validate"`

	// BatchSize is the number of items between success rate checks. Zero means
	// ConcurrencyLimit.
	BatchSize int          `json:"batch_size" validate:"gte=0"`
	Mutation  Mutation     `json:"-" validate:"required"`
	Pacing    PacingConfig `json:"pacing"`
}

func DefaultRunOptions(mutation Mutation) RunOptions {
	return RunOptions{
		ConcurrencyLimit:  3,
		RetryPolicy:       DefaultRetryPolicy(),
		RollbackThreshold: 0.5,
		Mutation:          mutation,
		Pacing:            DefaultPacing(),
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the options and returns them with defaults resolved.
func (o RunOptions) Validate() (RunOptions, error) {
	if err := validate.Struct(o); err != nil {
		return o, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}

	if o.BatchSize == 0 {
		o.BatchSize = o.ConcurrencyLimit
	}

	if o.Pacing.Enabled {
		defaults := DefaultPacing()

		if o.Pacing.Window == 0 {
			o.Pacing.Window = defaults.Window
		}

		if o.Pacing.HighLatency == 0 {
			o.Pacing.HighLatency = defaults.HighLatency
		}

		if o.Pacing.Step == 0 {
			o.Pacing.Step = defaults.Step
		}

		if o.Pacing.MaxDelay == 0 {
			o.Pacing.MaxDelay = defaults.MaxDelay
		}

		if o.Pacing.LowLatency > o.Pacing.HighLatency || o.Pacing.MinDelay > o.Pacing.MaxDelay {
			return o, fmt.Errorf("%w: pacing bounds are inverted", ErrInvalidOptions)
		}
	}

	return o, nil
}
