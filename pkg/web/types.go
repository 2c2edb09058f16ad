// Package web exposes batch runs and validation over HTTP.
package web

import (
	"encoding/json"
	"time"

	"github.com/Bitfy-AI/docs-jana-sub007/pkg/batch"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/models"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/template"
)

// MutationRequest selects and configures the mutation of a run.
type MutationRequest struct {
	Type       string `json:"type"                  validate:"required,oneof=transfer tag rename"`
	Tag        string `json:"tag,omitempty"         validate:"required_if=Type tag"`
	Prefix     string `json:"prefix,omitempty"`
	Suffix     string `json:"suffix,omitempty"`
	Old        string `json:"old,omitempty"`
	New        string `json:"new,omitempty"`
	Template   string `json:"template,omitempty"`
	KeepActive bool   `json:"keep_active,omitempty"`
}

// Mutation builds the batch mutation described by the request.
//
// nolint:ireturn
func (m MutationRequest) Mutation() (batch.Mutation, error) {
	switch m.Type {
	case "tag":
		return batch.TagMutation{Tag: m.Tag}, nil
	case "rename":
		rename := batch.RenameMutation{Prefix: m.Prefix, Suffix: m.Suffix, Old: m.Old, New: m.New}

		if m.Template != "" {
			tmpl, err := template.Parse(m.Template)
			if err != nil {
				return nil, err
			}

			rename.Template = tmpl
		}

		return rename, nil
	default:
		return batch.TransferMutation{KeepActive: m.KeepActive}, nil
	}
}

// RunRequest is the body of POST /runs and POST /runs/preview. Items are taken verbatim
// when given, otherwise selected from the source instance with Filter.
type RunRequest struct {
	Items             []models.Item   `json:"items,omitempty"`
	Filter            *models.Filter  `json:"filter,omitempty"`
	Mutation          MutationRequest `json:"mutation"`
	DryRun            bool            `json:"dry_run,omitempty"`
	Concurrency       int             `json:"concurrency,omitempty"        validate:"omitempty,gte=1,lte=64"`
	BatchSize         int             `json:"batch_size,omitempty"         validate:"gte=0"`
	RollbackThreshold *float64        `json:"rollback_threshold,omitempty" validate:"omitempty,gte=0,lte=1"`
	PostValidate      bool            `json:"post_validate,omitempty"`
	MaxAttempts       int             `json:"max_attempts,omitempty"       validate:"omitempty,gte=1,lte=20"`
}

// RunResponse wraps a run result with its success rate.
type RunResponse struct {
	batch.Result

	SuccessRate float64 `json:"success_rate"`
}

// ValidateRequest is the body of POST /validate.
type ValidateRequest struct {
	Items      []json.RawMessage `json:"items"                validate:"required,min=1"`
	Validators []string          `json:"validators,omitempty"`
	Phase      string            `json:"phase,omitempty"      validate:"omitempty,oneof=pre post"`
}

// ItemValidation is the verdict for one submitted item.
type ItemValidation struct {
	Index  int                     `json:"index"`
	Name   string                  `json:"name,omitempty"`
	Result models.ValidationResult `json:"result"`
}

type ValidateResponse struct {
	Valid   bool             `json:"valid"`
	Results []ItemValidation `json:"results"`
}

type HealthResponse struct {
	Status    string      `json:"status"`
	State     batch.State `json:"state"`
	Timestamp time.Time   `json:"timestamp"`
}
