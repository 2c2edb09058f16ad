package web

import (
	"errors"

	"github.com/Bitfy-AI/docs-jana-sub007/pkg/batch"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/remote"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

// handleRunError maps setup failures of a run to problems. Item level failures never get
// here; they are part of the run result.
func handleRunError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, batch.ErrInvalidOptions):
		return badRequest(c, err.Error())

	case errors.Is(err, batch.ErrRunInProgress):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("run_in_progress").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case remote.IsAuth(err):
		problem := problems.NewStatusProblem(502).
			WithInstance(c.Path()).
			WithType("remote_unauthorized").
			WithDetail(err.Error())

		return c.Status(fiber.StatusBadGateway).JSON(problem)

	case remote.IsRetryable(err):
		problem := problems.NewStatusProblem(503).
			WithInstance(c.Path()).
			WithType("remote_unavailable").
			WithDetail(err.Error())

		return c.Status(fiber.StatusServiceUnavailable).JSON(problem)

	default:
		problem := problems.NewStatusProblem(500).
			WithInstance(c.Path()).
			WithType("internal_error").
			WithError(err)

		return c.Status(fiber.StatusInternalServerError).JSON(problem)
	}
}
