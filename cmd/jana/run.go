package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/Bitfy-AI/docs-jana-sub007/pkg/batch"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/models"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/report"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/template"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/validation"
	cli "github.com/urfave/cli/v3"
)

func selectionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:  "id",
			Usage: "Select items by id (repeatable)",
		},
		&cli.StringSliceFlag{
			Name:  "name",
			Usage: "Select items by exact name (repeatable)",
		},
		&cli.StringSliceFlag{
			Name:  "tag",
			Usage: "Select items carrying any of the tags (repeatable)",
		},
		&cli.BoolFlag{
			Name:  "active-only",
			Usage: "Select active items only",
		},
	}
}

func runFlags() []cli.Flag {
	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "Run every check but do not mutate the target",
		},
		&cli.IntFlag{
			Name:    "concurrency",
			Aliases: []string{"c"},
			Usage:   "Maximum number of items processed at once",
			Value:   3,
			Sources: cli.EnvVars("CONCURRENCY"),
		},
		&cli.IntFlag{
			Name:  "batch-size",
			Usage: "Items between failure-rate checks (defaults to --concurrency)",
		},
		&cli.IntFlag{
			Name:    "max-retries",
			Usage:   "Maximum attempts per item for retryable errors",
			Value:   batch.DefaultRetryPolicy().MaxAttempts,
			Sources: cli.EnvVars("MAX_RETRIES"),
		},
		&cli.FloatFlag{
			Name:    "rollback-threshold",
			Usage:   "Abort when the success rate after a batch falls below this (0 disables)",
			Value:   0.5,
			Sources: cli.EnvVars("ROLLBACK_THRESHOLD"),
		},
		&cli.BoolFlag{
			Name:  "post-validate",
			Usage: "Re-validate what the target returns after each mutation",
		},
		&cli.BoolFlag{
			Name:  "adaptive-pacing",
			Usage: "Slow down between batches when the target responds slowly",
		},
		&cli.StringFlag{
			Name:  "dedup",
			Usage: "Duplicate detection strategy (exact, fuzzy)",
			Value: "exact",
		},
		&cli.FloatFlag{
			Name:  "fuzzy-threshold",
			Usage: "Name similarity at or above which fuzzy dedup reports a duplicate",
			Value: 0.85,
		},
		&cli.StringSliceFlag{
			Name:  "validators",
			Usage: "Validators applied before each mutation",
			Value: validation.NewRegistry().Names(),
		},
		&cli.StringFlag{
			Name:    "report",
			Aliases: []string{"f"},
			Usage:   "Report format (json, csv, markdown)",
			Value:   string(report.FormatMarkdown),
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write the report to this file instead of stdout",
		},
	}

	return append(flags, selectionFlags()...)
}

func selection(command *cli.Command) models.Filter {
	return models.Filter{
		IDs:        command.StringSlice("id"),
		Names:      command.StringSlice("name"),
		Tags:       command.StringSlice("tag"),
		ActiveOnly: command.Bool("active-only"),
	}
}

func runOptions(command *cli.Command, mutation batch.Mutation) batch.RunOptions {
	opts := batch.DefaultRunOptions(mutation)
	opts.DryRun = command.Bool("dry-run")
	opts.ConcurrencyLimit = command.Int("concurrency")
	opts.BatchSize = command.Int("batch-size")
	opts.RetryPolicy.MaxAttempts = command.Int("max-retries")
	opts.RollbackThreshold = command.Float("rollback-threshold")
	opts.PostValidate = command.Bool("post-validate")
	opts.Pacing.Enabled = command.Bool("adaptive-pacing")

	return opts
}

// mutationFunc builds the mutation of a command from its flags.
type mutationFunc func(command *cli.Command) (batch.Mutation, error)

// runCommand builds a command that lists items from one instance and mutates another.
// Commands editing in place read from and write to the target.
func runCommand(name, usage string, from instance, dryRun bool, mutation mutationFunc, extra ...cli.Flag) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Flags: append(runFlags(), extra...),
		Action: func(ctx context.Context, command *cli.Command) error {
			m, err := mutation(command)
			if err != nil {
				return err
			}

			format, err := report.ParseFormat(command.String("report"))
			if err != nil {
				return err
			}

			rt, err := newRuntime(ctx, command, name)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			target, err := rt.client(ctx, command, targetInstance)
			if err != nil {
				return err
			}

			source := target
			if from == sourceInstance {
				if source, err = rt.client(ctx, command, sourceInstance); err != nil {
					return err
				}
			}

			processor, err := rt.processor(command, target)
			if err != nil {
				return err
			}

			items, err := source.List(ctx, selection(command))
			if err != nil {
				return fmt.Errorf("failed to list items: %w", err)
			}

			opts := runOptions(command, m)
			opts.DryRun = opts.DryRun || dryRun

			rt.logger.InfoContext(ctx, "Starting run", "items", len(items), "mutation", m.Name(), "dry_run", opts.DryRun)

			result, runErr := processor.Run(ctx, items, opts)
			if runErr != nil && result.Outcomes == nil {
				return runErr
			}

			if err := writeReport(command.String("output"), format, result); err != nil {
				return err
			}

			return runErr
		},
	}
}

func writeReport(path string, format report.Format, result batch.Result) error {
	var w io.Writer = os.Stdout

	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create report file: %w", err)
		}
		defer f.Close()

		w = f
	}

	return report.Write(w, format, result)
}

func NewTransferCommand() *cli.Command {
	return runCommand("transfer", "Copy items from the source instance to the target", sourceInstance, false,
		func(command *cli.Command) (batch.Mutation, error) {
			return batch.TransferMutation{KeepActive: command.Bool("keep-active")}, nil
		},
		&cli.BoolFlag{
			Name:  "keep-active",
			Usage: "Keep the active flag of transferred items",
		},
	)
}

func NewPreviewCommand() *cli.Command {
	return runCommand("preview", "Show what transfer would do without mutating the target", sourceInstance, true,
		func(*cli.Command) (batch.Mutation, error) {
			return batch.TransferMutation{}, nil
		},
	)
}

func NewTagCommand() *cli.Command {
	return runCommand("tag", "Add a tag to items of the target instance", targetInstance, false,
		func(command *cli.Command) (batch.Mutation, error) {
			return batch.TagMutation{Tag: command.String("add")}, nil
		},
		&cli.StringFlag{
			Name:     "add",
			Usage:    "Tag to add",
			Required: true,
		},
	)
}

func NewRenameCommand() *cli.Command {
	return runCommand("rename", "Rename items of the target instance", targetInstance, false,
		func(command *cli.Command) (batch.Mutation, error) {
			m := batch.RenameMutation{
				Prefix: command.String("prefix"),
				Suffix: command.String("suffix"),
				Old:    command.String("replace"),
				New:    command.String("with"),
			}

			if text := command.String("template"); text != "" {
				tmpl, err := template.Parse(text)
				if err != nil {
					return nil, err
				}

				m.Template = tmpl
			}

			if m.Prefix == "" && m.Suffix == "" && m.Old == "" && m.Template == nil {
				return nil, ErrEmptyRename
			}

			return m, nil
		},
		&cli.StringFlag{Name: "prefix", Usage: "Prepend to every name"},
		&cli.StringFlag{Name: "suffix", Usage: "Append to every name"},
		&cli.StringFlag{Name: "replace", Usage: "Substring to replace in every name"},
		&cli.StringFlag{Name: "with", Usage: "Replacement for --replace"},
		&cli.StringFlag{Name: "template", Usage: "Go template rendering the final name, e.g. '{{ .Name }} ({{ .ID }})'"},
	)
}
