package handler

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/cadence-dispatch/internal/domain"
)

// CadenceRunner runs one cycle of a cadence on demand.
type CadenceRunner interface {
	Cadence() domain.Cadence
	RunOnce(ctx context.Context) (domain.BatchResult, error)
}

type CadenceHandler struct {
	runners map[domain.Cadence]CadenceRunner
}

func NewCadenceHandler(runners ...CadenceRunner) (*CadenceHandler, error) {
	if len(runners) == 0 {
		return nil, fmt.Errorf("at least one cadence runner is required")
	}

	byCadence := make(map[domain.Cadence]CadenceRunner, len(runners))
	for _, r := range runners {
		if r == nil {
			return nil, fmt.Errorf("cadence runner is required")
		}
		if _, dup := byCadence[r.Cadence()]; dup {
			return nil, fmt.Errorf("duplicate runner for cadence %s", r.Cadence())
		}
		byCadence[r.Cadence()] = r
	}
	return &CadenceHandler{runners: byCadence}, nil
}

func RegisterCadenceRoutes(router fiber.Router, runners ...CadenceRunner) error {
	h, err := NewCadenceHandler(runners...)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/cadences/:cadence/run", h.RunCadence)

	return nil
}

type runCadenceResponse struct {
	Cadence   string `json:"cadence"`
	Attempted int    `json:"attempted"`
	Delivered int    `json:"delivered"`
	Failed    int    `json:"failed"`
}

// RunCadence blocks until the cycle finishes, waiting behind a running one.
func (h *CadenceHandler) RunCadence(c *fiber.Ctx) error {
	cadence, err := domain.ParseCadenceFromString(c.Params("cadence"))
	if err != nil {
		return toHTTPError(err)
	}

	runner, ok := h.runners[cadence]
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, fmt.Sprintf("cadence %s is not scheduled", cadence))
	}

	result, err := runner.RunOnce(c.UserContext())
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(runCadenceResponse{
		Cadence:   cadence.String(),
		Attempted: result.Attempted,
		Delivered: result.Delivered,
		Failed:    result.Failed(),
	})
}
