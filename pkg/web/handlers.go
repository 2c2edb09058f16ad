package web

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Bitfy-AI/docs-jana-sub007/pkg/batch"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/models"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/remote"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/validation"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

var defaultValidators = []string{"schema", "integrity"}

type APIHandlers struct {
	processor  *batch.Processor
	source     remote.Service
	validators *validation.Registry
	validator  *validator.Validate
	defaults   batch.RunOptions
	logger     *slog.Logger
}

// NewAPIHandlers wires the handlers. source may be nil, in which case runs must carry
// their items. defaults provides the options a request does not override.
func NewAPIHandlers(
	processor *batch.Processor,
	source remote.Service,
	validators *validation.Registry,
	validator *validator.Validate,
	defaults batch.RunOptions,
	logger *slog.Logger,
) *APIHandlers {
	return &APIHandlers{
		processor:  processor,
		source:     source,
		validators: validators,
		validator:  validator,
		defaults:   defaults,
		logger:     logger,
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	return c.Status(http.StatusOK).JSON(HealthResponse{
		Status:    "healthy",
		State:     h.processor.State(),
		Timestamp: time.Now().UTC(),
	})
}

func (h *APIHandlers) PreviewRun(c fiber.Ctx) error {
	return h.run(c, true)
}

func (h *APIHandlers) CreateRun(c fiber.Ctx) error {
	return h.run(c, false)
}

func (h *APIHandlers) run(c fiber.Ctx, preview bool) error {
	var req RunRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	opts, err := h.options(req, preview)
	if err != nil {
		return badRequest(c, err.Error())
	}

	items := req.Items

	if len(items) == 0 {
		if req.Filter == nil {
			return badRequest(c, "Either items or filter is required")
		}

		if h.source == nil {
			return badRequest(c, "No source instance configured; items are required")
		}

		listed, err := h.source.List(c.Context(), *req.Filter)
		if err != nil {
			return handleRunError(c, fmt.Errorf("failed to list source items: %w", err))
		}

		items = listed
	}

	h.logger.InfoContext(c.Context(), "Starting run from API",
		"items", len(items),
		"mutation", opts.Mutation.Name(),
		"dry_run", opts.DryRun,
	)

	result, err := h.processor.Run(c.Context(), items, opts)
	if err != nil && !batch.IsAborted(err) {
		return handleRunError(c, err)
	}

	return c.Status(http.StatusOK).JSON(RunResponse{Result: result, SuccessRate: result.Stats.SuccessRate()})
}

func (h *APIHandlers) options(req RunRequest, preview bool) (batch.RunOptions, error) {
	mutation, err := req.Mutation.Mutation()
	if err != nil {
		return batch.RunOptions{}, err
	}

	opts := h.defaults
	opts.Mutation = mutation
	opts.DryRun = preview || req.DryRun
	opts.PostValidate = opts.PostValidate || req.PostValidate

	if req.Concurrency > 0 {
		opts.ConcurrencyLimit = req.Concurrency
	}

	if req.BatchSize > 0 {
		opts.BatchSize = req.BatchSize
	}

	if req.RollbackThreshold != nil {
		opts.RollbackThreshold = *req.RollbackThreshold
	}

	if req.MaxAttempts > 0 {
		opts.RetryPolicy.MaxAttempts = req.MaxAttempts
	}

	return opts, nil
}

func (h *APIHandlers) ValidateItems(c fiber.Ctx) error {
	var req ValidateRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	names := req.Validators
	if len(names) == 0 {
		names = defaultValidators
	}

	v, err := h.validators.Create(names...)
	if err != nil {
		return badRequest(c, err.Error())
	}

	phase := validation.PhasePre
	if req.Phase == string(validation.PhasePost) {
		phase = validation.PhasePost
	}

	resp := ValidateResponse{Valid: true, Results: make([]ItemValidation, 0, len(req.Items))}

	for idx, raw := range req.Items {
		entry := ItemValidation{Index: idx}

		var item models.Item
		if err := json.Unmarshal(raw, &item); err != nil {
			entry.Result = models.NewValidationResult()
			entry.Result.AddError("item: " + err.Error())
		} else {
			entry.Name = item.Name
			entry.Result = v.Validate(item, phase)
		}

		resp.Valid = resp.Valid && entry.Result.Valid
		resp.Results = append(resp.Results, entry)
	}

	return c.Status(http.StatusOK).JSON(resp)
}
