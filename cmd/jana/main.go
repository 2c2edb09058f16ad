// Package main provides the jana command line: bulk transfer, tag and rename of workflows
// between platform instances.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/Bitfy-AI/docs-jana-sub007/pkg/cache"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/remote"
	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "jana",
		Usage:                 "Bulk transfer, tag and rename workflows between instances",
		EnableShellCompletion: true,
		Flags:                 globalFlags(),
		Commands: []*cli.Command{
			NewTransferCommand(),
			NewPreviewCommand(),
			NewTagCommand(),
			NewRenameCommand(),
			NewValidateCommand(),
			NewServeCommand(),
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		slog.Error("jana failed", "error", err)
		os.Exit(1)
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   "info",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    "source-url",
			Usage:   "Base URL of the instance items are read from",
			Sources: cli.EnvVars("SOURCE_URL"),
		},
		&cli.StringFlag{
			Name:    "source-api-key",
			Usage:   "API key of the source instance",
			Sources: cli.EnvVars("SOURCE_API_KEY"),
		},
		&cli.StringFlag{
			Name:    "target-url",
			Usage:   "Base URL of the instance items are written to",
			Sources: cli.EnvVars("TARGET_URL"),
		},
		&cli.StringFlag{
			Name:    "target-api-key",
			Usage:   "API key of the target instance",
			Sources: cli.EnvVars("TARGET_API_KEY"),
		},
		&cli.DurationFlag{
			Name:    "request-timeout",
			Usage:   "Timeout of a single remote request",
			Value:   remote.DefaultTimeout,
			Sources: cli.EnvVars("REQUEST_TIMEOUT"),
		},
		&cli.FloatFlag{
			Name:    "rate-limit",
			Usage:   "Maximum remote requests per second, per instance",
			Value:   remote.DefaultRateLimit,
			Sources: cli.EnvVars("RATE_LIMIT"),
		},
		&cli.DurationFlag{
			Name:    "cache-ttl",
			Usage:   "How long remote reads are cached",
			Value:   cache.DefaultTTL,
			Sources: cli.EnvVars("CACHE_TTL"),
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "Redis URL of the shared read cache (disabled when empty)",
			Sources: cli.EnvVars("REDIS_URL"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus type for run events (gochannel, kafka; disabled when empty)",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringFlag{
			Name:    "kafka-brokers",
			Usage:   "Comma separated Kafka brokers for --event-bus kafka",
			Value:   "localhost:9092",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
		&cli.BoolFlag{
			Name:    "otel",
			Usage:   "Export traces over OTLP/HTTP",
			Sources: cli.EnvVars("OTEL_ENABLED"),
		},
	}
}
