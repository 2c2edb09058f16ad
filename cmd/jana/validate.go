package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/Bitfy-AI/docs-jana-sub007/pkg/models"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/validation"
	cli "github.com/urfave/cli/v3"
)

func NewValidateCommand() *cli.Command {
	return &cli.Command{
		Name:    "validate",
		Aliases: []string{"v"},
		Usage:   "Validate items from a file or from the source instance",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:  "file",
				Usage: "JSON file holding one item, an array of items or a {\"data\": [...]} page",
			},
			&cli.StringSliceFlag{
				Name:  "validators",
				Usage: "Validators to run",
				Value: validation.NewRegistry().Names(),
			},
			&cli.BoolFlag{
				Name:  "post",
				Usage: "Apply post-mutation rules",
			},
		}, selectionFlags()...),
		Action: func(ctx context.Context, command *cli.Command) error {
			rt, err := newRuntime(ctx, command, "validate")
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			validator, err := validation.NewRegistry().Create(command.StringSlice("validators")...)
			if err != nil {
				return err
			}

			var items []models.Item

			if path := command.String("file"); path != "" {
				raw, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("failed to read items: %w", err)
				}

				if items, err = decodeItems(raw); err != nil {
					return err
				}
			} else {
				source, err := rt.client(ctx, command, sourceInstance)
				if err != nil {
					return err
				}

				if items, err = source.List(ctx, selection(command)); err != nil {
					return fmt.Errorf("failed to list items: %w", err)
				}
			}

			phase := validation.PhasePre
			if command.Bool("post") {
				phase = validation.PhasePost
			}

			if invalid := validateItems(os.Stdout, validator, items, phase); invalid > 0 {
				return fmt.Errorf("%w: %d of %d", ErrInvalidItems, invalid, len(items))
			}

			return nil
		},
	}
}

// decodeItems accepts a single item, an array of items or a list page.
func decodeItems(raw []byte) ([]models.Item, error) {
	raw = bytes.TrimSpace(raw)

	if len(raw) > 0 && raw[0] == '[' {
		var items []models.Item
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("failed to decode items: %w", err)
		}

		return items, nil
	}

	var page struct {
		Data []models.Item `json:"data"`
	}
	if err := json.Unmarshal(raw, &page); err == nil && page.Data != nil {
		return page.Data, nil
	}

	var item models.Item
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, fmt.Errorf("failed to decode item: %w", err)
	}

	return []models.Item{item}, nil
}

// validateItems prints one line per finding and returns the number of invalid items.
func validateItems(w io.Writer, validator validation.Validator, items []models.Item, phase validation.Phase) int {
	invalid := 0

	for _, item := range items {
		result := validator.Validate(item, phase)

		status := "ok"
		if !result.Valid {
			status = "invalid"
			invalid++
		}

		fmt.Fprintf(w, "%s\t%s\t%s\n", status, item.ID, item.Name)

		for _, msg := range result.Errors {
			fmt.Fprintf(w, "  error: %s\n", msg)
		}

		for _, msg := range result.Warnings {
			fmt.Fprintf(w, "  warning: %s\n", msg)
		}
	}

	return invalid
}
