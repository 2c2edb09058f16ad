// Package report renders batch results for people and tools.
package report

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Bitfy-AI/docs-jana-sub007/pkg/batch"
)

type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
)

var ErrUnknownFormat = errors.New("unknown report format")

// Formats lists the supported formats.
func Formats() []Format {
	return []Format{FormatJSON, FormatCSV, FormatMarkdown}
}

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Write renders result in format.
func Write(w io.Writer, format Format, result batch.Result) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, result)
	case FormatCSV:
		return WriteCSV(w, result)
	case FormatMarkdown:
		return WriteMarkdown(w, result)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

type jsonReport struct {
	batch.Result

	SuccessRate float64 `json:"success_rate"`
}

func WriteJSON(w io.Writer, result batch.Result) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	return encoder.Encode(jsonReport{Result: result, SuccessRate: result.Stats.SuccessRate()})
}

var csvHeader = []string{"item_id", "name", "status", "reason", "attempts", "duration_ms", "error_kind", "error_status", "error_message"}

// WriteCSV writes one row per outcome.
func WriteCSV(w io.Writer, result batch.Result) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(csvHeader); err != nil {
		return err
	}

	for _, outcome := range result.Outcomes {
		row := []string{
			outcome.ItemID,
			outcome.Name,
			string(outcome.Status),
			outcome.Reason,
			strconv.Itoa(outcome.Attempts),
			strconv.FormatInt(outcome.DurationMs, 10),
			"", "", "",
		}

		if outcome.Error != nil {
			row[6] = outcome.Error.Kind
			if outcome.Error.StatusCode != 0 {
				row[7] = strconv.Itoa(outcome.Error.StatusCode)
			}

			row[8] = outcome.Error.Message
		}

		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()

	return writer.Error()
}
