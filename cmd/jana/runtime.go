package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Bitfy-AI/docs-jana-sub007/pkg/batch"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/cache"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/cmd"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/dedup"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/eventbus"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/events"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/log"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/otelhelper"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/remote"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/validation"
	cli "github.com/urfave/cli/v3"
)

var (
	ErrMissingInstance = errors.New("instance url and api key are required")
	ErrInvalidItems    = errors.New("invalid items found")
	ErrEmptyRename     = errors.New("rename needs --prefix, --suffix, --replace or --template")
)

// instance names the flags configuring one remote instance.
type instance string

const (
	sourceInstance instance = "source"
	targetInstance instance = "target"
)

// runtime holds the collaborators shared by every command. Close releases them in
// reverse order of creation.
type runtime struct {
	logger  *slog.Logger
	bus     eventbus.EventBus
	closers []func(context.Context) error
}

func newRuntime(ctx context.Context, command *cli.Command, module string) (*runtime, error) {
	log.Setup(command.String("log-level"))

	r := &runtime{logger: log.WithModule(module)}

	if command.Bool("otel") {
		tp, err := otelhelper.Setup(ctx, "jana")
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracer: %w", err)
		}

		r.closers = append(r.closers, tp.Shutdown)
	}

	bus, err := cmd.NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), r.logger)
	if err != nil {
		r.Close(ctx)

		return nil, err
	}

	if bus != nil {
		r.bus = bus
		r.closers = append(r.closers, func(context.Context) error { return bus.Close() })

		if err := r.watchRuns(ctx); err != nil {
			r.Close(ctx)

			return nil, fmt.Errorf("failed to subscribe to run events: %w", err)
		}
	}

	return r, nil
}

// watchRuns logs the end of every run seen on the bus, including runs of other processes
// sharing a Kafka topic.
func (r *runtime) watchRuns(ctx context.Context) error {
	if err := r.bus.Handle(events.RunFinishedEvent, func(ctx context.Context, event any) error {
		if finished, ok := event.(*events.RunFinished); ok {
			r.logger.InfoContext(ctx, "Run finished",
				"run_id", finished.RunID,
				"succeeded", finished.Stats.Succeeded,
				"failed", finished.Stats.Failed,
				"duration_ms", finished.DurationMs,
			)
		}

		return nil
	}); err != nil {
		return err
	}

	if err := r.bus.Handle(events.RunAbortedEvent, func(ctx context.Context, event any) error {
		if aborted, ok := event.(*events.RunAborted); ok {
			r.logger.WarnContext(ctx, "Run aborted",
				"run_id", aborted.RunID,
				"reason", aborted.Reason,
				"success_rate", aborted.SuccessRate,
			)
		}

		return nil
	}); err != nil {
		return err
	}

	return r.bus.Subscribe(ctx)
}

// client connects to the named instance, sharing reads through Redis when configured.
func (r *runtime) client(ctx context.Context, command *cli.Command, name instance) (*remote.Client, error) {
	url := command.String(string(name) + "-url")
	apiKey := command.String(string(name) + "-api-key")

	if url == "" || apiKey == "" {
		return nil, fmt.Errorf("%w: --%s-url and --%s-api-key", ErrMissingInstance, name, name)
	}

	opts := []remote.Option{remote.WithLogger(r.logger.With("instance", string(name)))}

	if redisURL := command.String("redis-url"); redisURL != "" {
		backend, err := cache.NewRedisBackendFromURL(ctx, redisURL, "jana:"+string(name))
		if err != nil {
			return nil, err
		}

		r.closers = append(r.closers, func(context.Context) error { return backend.Close() })
		opts = append(opts, remote.WithCacheBackend(backend))
	}

	return remote.NewClient(remote.Config{
		BaseURL:   url,
		APIKey:    apiKey,
		Timeout:   command.Duration("request-timeout"),
		RateLimit: command.Float("rate-limit"),
		CacheTTL:  command.Duration("cache-ttl"),
	}, opts...)
}

// processor builds a processor mutating target, configured from the run flags.
func (r *runtime) processor(command *cli.Command, target remote.Service) (*batch.Processor, error) {
	deduplicator, err := dedup.NewRegistry().Create(command.String("dedup"), map[string]any{
		"threshold": command.Float("fuzzy-threshold"),
	})
	if err != nil {
		return nil, err
	}

	validator, err := validation.NewRegistry().Create(command.StringSlice("validators")...)
	if err != nil {
		return nil, err
	}

	opts := []batch.Option{
		batch.WithDeduplicator(deduplicator),
		batch.WithValidator(validator),
		batch.WithLogger(r.logger),
	}

	if r.bus != nil {
		opts = append(opts, batch.WithPublisher(r.bus))
	}

	return batch.NewProcessor(target, opts...)
}

func (r *runtime) Close(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)

	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](ctx); err != nil {
			r.logger.ErrorContext(ctx, "Failed to release resource", "error", err)
		}
	}

	r.closers = nil
}
