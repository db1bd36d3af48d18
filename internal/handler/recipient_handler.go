package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/cadence-dispatch/internal/domain"
	"github.com/kursadbilgin/cadence-dispatch/internal/observability"
	"github.com/kursadbilgin/cadence-dispatch/internal/transport"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

const (
	unsubscribedPage = "<h1>You have been unsubscribed.</h1><p>You will not receive any more messages from us.</p>"
	unsubscribeFail  = "<h1>Something went wrong.</h1><p>The link may have expired. Please try again.</p>"
)

type RecipientService interface {
	Create(ctx context.Context, recipient *domain.Recipient) (*domain.Recipient, error)
	List(ctx context.Context) ([]domain.Recipient, error)
	Unsubscribe(ctx context.Context, token string) error
}

type RecipientHandler struct {
	service RecipientService
	logger  *zap.Logger
}

func NewRecipientHandler(service RecipientService, logger *zap.Logger) (*RecipientHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("recipient service is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecipientHandler{service: service, logger: logger}, nil
}

func RegisterRecipientRoutes(router fiber.Router, service RecipientService, logger *zap.Logger) error {
	h, err := NewRecipientHandler(service, logger)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/recipients/unsubscribe", h.Unsubscribe)
	v1.Post("/recipients", h.CreateRecipient)
	v1.Get("/recipients", h.ListRecipients)

	return nil
}

type createRecipientRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Email       string `json:"email" validate:"required,email,max=320"`
	Anniversary string `json:"anniversary" validate:"omitempty,datetime=2006-01-02"`
}

type recipientResponse struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	OptedIn        bool       `json:"optedIn"`
	Anniversary    string     `json:"anniversary,omitempty"`
	LastNotifiedAt *time.Time `json:"lastNotifiedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt,omitempty"`
}

type listRecipientsResponse struct {
	Data []recipientResponse `json:"data"`
}

func (h *RecipientHandler) CreateRecipient(c *fiber.Ctx) error {
	var req createRecipientRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Anniversary = strings.TrimSpace(req.Anniversary)
	if err := transport.Validate(req); err != nil {
		return err
	}

	recipient := domain.Recipient{Name: req.Name, Email: req.Email}
	if req.Anniversary != "" {
		anniversary, err := time.Parse(dateLayout, req.Anniversary)
		if err != nil {
			return toHTTPError(fmt.Errorf("%w: anniversary must be YYYY-MM-DD", domain.ErrValidation))
		}
		recipient.Anniversary = &anniversary
	}

	created, err := h.service.Create(c.UserContext(), &recipient)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toRecipientResponse(created))
}

func (h *RecipientHandler) ListRecipients(c *fiber.Ctx) error {
	recipients, err := h.service.List(c.UserContext())
	if err != nil {
		return toHTTPError(err)
	}

	responses := make([]recipientResponse, 0, len(recipients))
	for i := range recipients {
		responses = append(responses, toRecipientResponse(&recipients[i]))
	}
	return c.Status(fiber.StatusOK).JSON(listRecipientsResponse{Data: responses})
}

// Unsubscribe is opened from an email client, so it answers in HTML.
func (h *RecipientHandler) Unsubscribe(c *fiber.Ctx) error {
	token := strings.TrimSpace(c.Query("token"))

	err := h.service.Unsubscribe(c.UserContext(), token)
	if err == nil {
		c.Type("html", "utf-8")
		return c.Status(fiber.StatusOK).SendString(unsubscribedPage)
	}

	status := fiber.StatusInternalServerError
	var fiberErr *fiber.Error
	if errors.As(toHTTPError(err), &fiberErr) {
		status = fiberErr.Code
	}
	observability.WithContextLogger(h.logger, c.UserContext()).Warn("unsubscribe failed",
		zap.Int("status", status),
		zap.Error(err),
	)

	c.Type("html", "utf-8")
	return c.Status(status).SendString(unsubscribeFail)
}

func toRecipientResponse(r *domain.Recipient) recipientResponse {
	if r == nil {
		return recipientResponse{}
	}

	resp := recipientResponse{
		ID:             r.ID,
		Name:           r.Name,
		Email:          r.Email,
		OptedIn:        r.OptedIn,
		LastNotifiedAt: r.LastNotifiedAt,
		CreatedAt:      r.CreatedAt,
	}
	if r.Anniversary != nil {
		resp.Anniversary = r.Anniversary.Format(dateLayout)
	}
	return resp
}
