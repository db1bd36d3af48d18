package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/cadence-dispatch/internal/domain"
	"github.com/kursadbilgin/cadence-dispatch/internal/transport"
)

type DeliveryService interface {
	SendOne(ctx context.Context, recipientID, subject, body string, includeUnsubscribe bool) error
	ListAll(ctx context.Context) ([]domain.DeliveryRecord, error)
	ListByRecipient(ctx context.Context, recipientID string) ([]domain.DeliveryRecord, error)
}

type DeliveryHandler struct {
	service DeliveryService
}

func NewDeliveryHandler(service DeliveryService) (*DeliveryHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("delivery service is required")
	}
	return &DeliveryHandler{service: service}, nil
}

func RegisterDeliveryRoutes(router fiber.Router, service DeliveryService) error {
	h, err := NewDeliveryHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/deliveries", h.SendOne)
	v1.Get("/deliveries", h.ListDeliveries)
	v1.Get("/recipients/:id/deliveries", h.ListRecipientDeliveries)

	return nil
}

type sendOneRequest struct {
	RecipientID        string `json:"recipientId" validate:"required"`
	Subject            string `json:"subject" validate:"required,max=998"`
	Body               string `json:"body" validate:"required"`
	IncludeUnsubscribe *bool  `json:"includeUnsubscribe"`
}

// includeFooter defaults to true when the field is omitted.
func (r sendOneRequest) includeFooter() bool {
	return r.IncludeUnsubscribe == nil || *r.IncludeUnsubscribe
}

type sendOneResponse struct {
	RecipientID string `json:"recipientId"`
	Delivered   bool   `json:"delivered"`
}

type deliveryResponse struct {
	ID          string    `json:"id"`
	RecipientID string    `json:"recipientId"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
	Delivered   bool      `json:"delivered"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type listDeliveriesResponse struct {
	Data []deliveryResponse `json:"data"`
}

func (h *DeliveryHandler) SendOne(c *fiber.Ctx) error {
	var req sendOneRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	req.RecipientID = strings.TrimSpace(req.RecipientID)
	if err := transport.Validate(req); err != nil {
		return err
	}

	if err := h.service.SendOne(c.UserContext(), req.RecipientID, req.Subject, req.Body, req.includeFooter()); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(sendOneResponse{
		RecipientID: req.RecipientID,
		Delivered:   true,
	})
}

func (h *DeliveryHandler) ListDeliveries(c *fiber.Ctx) error {
	records, err := h.service.ListAll(c.UserContext())
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(listDeliveriesResponse{Data: toDeliveryResponses(records)})
}

func (h *DeliveryHandler) ListRecipientDeliveries(c *fiber.Ctx) error {
	recipientID := strings.TrimSpace(c.Params("id"))
	records, err := h.service.ListByRecipient(c.UserContext(), recipientID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(listDeliveriesResponse{Data: toDeliveryResponses(records)})
}

func toDeliveryResponses(records []domain.DeliveryRecord) []deliveryResponse {
	responses := make([]deliveryResponse, 0, len(records))
	for _, r := range records {
		responses = append(responses, deliveryResponse{
			ID:          r.ID,
			RecipientID: r.RecipientID,
			Subject:     r.Subject,
			Body:        r.Body,
			Delivered:   r.Delivered,
			CreatedAt:   r.CreatedAt,
			UpdatedAt:   r.UpdatedAt,
		})
	}
	return responses
}
