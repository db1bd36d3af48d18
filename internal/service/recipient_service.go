package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/kursadbilgin/cadence-dispatch/internal/content"
	"github.com/kursadbilgin/cadence-dispatch/internal/domain"
	"github.com/kursadbilgin/cadence-dispatch/internal/observability"
	"github.com/kursadbilgin/cadence-dispatch/internal/repository"
	"go.uber.org/zap"
)

// RecipientService is the thin directory surface: sign-up, listing and the
// token-authenticated opt-out.
type RecipientService struct {
	recipients repository.RecipientRepository
	sender     SingleSender
	tokens     TokenVerifier
	logger     *zap.Logger
	newID      func() string
}

func NewRecipientService(
	recipients repository.RecipientRepository,
	sender SingleSender,
	tokens TokenVerifier,
	logger *zap.Logger,
) (*RecipientService, error) {
	if recipients == nil || sender == nil || tokens == nil {
		return nil, fmt.Errorf("recipient repository, sender and token verifier are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RecipientService{
		recipients: recipients,
		sender:     sender,
		tokens:     tokens,
		logger:     logger,
		newID:      uuid.NewString,
	}, nil
}

// Create stores a new opted-in recipient and sends the welcome message.
// A failed welcome is logged; the recipient still exists.
func (s *RecipientService) Create(ctx context.Context, recipient *domain.Recipient) (*domain.Recipient, error) {
	if recipient == nil {
		return nil, fmt.Errorf("%w: recipient is required", domain.ErrValidation)
	}

	recipient.Name = strings.TrimSpace(recipient.Name)
	recipient.Email = strings.ToLower(strings.TrimSpace(recipient.Email))
	if err := recipient.Validate(); err != nil {
		return nil, err
	}

	recipient.ID = s.newID()
	recipient.OptedIn = true
	recipient.LastNotifiedAt = nil

	if err := s.recipients.Create(ctx, recipient); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("%w: email %s is already registered", domain.ErrConflict, recipient.Email)
		}
		return nil, domain.StorageError("create recipient", err)
	}

	subject, body := content.Welcome()
	if err := s.sender.SendOne(ctx, recipient.ID, subject, body, true); err != nil {
		observability.WithContextLogger(s.logger, ctx).Warn("welcome message failed",
			zap.String("recipientId", recipient.ID),
			zap.Error(err),
		)
	}

	return recipient, nil
}

func (s *RecipientService) List(ctx context.Context) ([]domain.Recipient, error) {
	recipients, err := s.recipients.List(ctx, repository.RecipientFilter{})
	if err != nil {
		return nil, domain.StorageError("list recipients", err)
	}
	return recipients, nil
}

// Unsubscribe opts the token's recipient out of every cadence.
func (s *RecipientService) Unsubscribe(ctx context.Context, token string) error {
	recipientID, err := s.tokens.Verify(token)
	if err != nil {
		return err
	}

	if err := s.recipients.SetOptedIn(ctx, recipientID, false); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: %s", domain.ErrRecipientNotFound, recipientID)
		}
		return domain.StorageError("opt out recipient", err)
	}

	observability.WithContextLogger(s.logger, ctx).Info("recipient unsubscribed",
		zap.String("recipientId", recipientID),
	)
	return nil
}
