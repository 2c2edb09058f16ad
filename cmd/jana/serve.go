package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/Bitfy-AI/docs-jana-sub007/pkg/batch"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/schedule"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/validation"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	cli "github.com/urfave/cli/v3"
)

func NewServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the run API and, with --schedule, transfer periodically",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Usage:   "Address to listen on",
				Value:   ":9091",
				Sources: cli.EnvVars("ADDR"),
			},
			&cli.StringFlag{
				Name:    "schedule",
				Usage:   "Cron expression of a periodic transfer of the selected items",
				Sources: cli.EnvVars("SCHEDULE"),
			},
		}, runFlags()...),
		Action: func(ctx context.Context, command *cli.Command) error {
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := newRuntime(ctx, command, "serve")
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			target, err := rt.client(ctx, command, targetInstance)
			if err != nil {
				return err
			}

			source, err := rt.client(ctx, command, sourceInstance)
			if err != nil {
				return err
			}

			processor, err := rt.processor(command, target)
			if err != nil {
				return err
			}

			defaults := runOptions(command, batch.TransferMutation{})

			if expr := command.String("schedule"); expr != "" {
				scheduler := schedule.NewScheduler(source, processor, rt.logger, nil)

				if err := scheduler.Add(schedule.Job{
					Name:    "transfer",
					Cron:    expr,
					Filter:  selection(command),
					Options: defaults,
				}); err != nil {
					return err
				}

				if err := scheduler.Start(ctx); err != nil {
					return err
				}
				defer scheduler.Stop()
			}

			handlers := web.NewAPIHandlers(
				processor,
				source,
				validation.NewRegistry(),
				validator.New(validator.WithRequiredStructEnabled()),
				defaults,
				rt.logger,
			)

			app := web.NewApp(handlers)

			go func() {
				<-ctx.Done()

				if err := app.Shutdown(); err != nil {
					rt.logger.Error("Failed to shut down API", "error", err)
				}
			}()

			rt.logger.InfoContext(ctx, "Starting API", "addr", command.String("addr"))

			err = app.Listen(command.String("addr"), fiber.ListenConfig{DisableStartupMessage: true})
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}

			return nil
		},
	}
}
