package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/cadence-dispatch/internal/content"
	"github.com/kursadbilgin/cadence-dispatch/internal/domain"
	"github.com/kursadbilgin/cadence-dispatch/internal/observability"
	"github.com/kursadbilgin/cadence-dispatch/internal/provider"
	"github.com/kursadbilgin/cadence-dispatch/internal/repository"
	"go.uber.org/zap"
)

// DeliveryService sends one notification to one recipient and exposes the
// delivery audit trail.
type DeliveryService struct {
	deliveries repository.DeliveryRepository
	recipients repository.RecipientRepository
	tx         repository.Transactor
	gate       Deliverer
	links      UnsubscribeLinker
	logger     *zap.Logger
	metrics    *observability.Metrics
	now        func() time.Time
	newID      func() string
}

func NewDeliveryService(
	deliveries repository.DeliveryRepository,
	recipients repository.RecipientRepository,
	tx repository.Transactor,
	gate Deliverer,
	links UnsubscribeLinker,
	logger *zap.Logger,
) (*DeliveryService, error) {
	if deliveries == nil || recipients == nil || tx == nil {
		return nil, fmt.Errorf("delivery and recipient repositories and transactor are required")
	}
	if gate == nil {
		return nil, fmt.Errorf("delivery gate is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DeliveryService{
		deliveries: deliveries,
		recipients: recipients,
		tx:         tx,
		gate:       gate,
		links:      links,
		logger:     logger,
		now:        time.Now,
		newID:      uuid.NewString,
	}, nil
}

func (s *DeliveryService) SetMetrics(metrics *observability.Metrics) {
	s.metrics = metrics
}

// SendOne records and delivers a single message. The record is persisted
// undelivered before the transport is tried; a transport failure leaves it so.
func (s *DeliveryService) SendOne(ctx context.Context, recipientID, subject, body string, includeUnsubscribe bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := observability.WithContextLogger(s.logger, ctx)

	recipient, err := s.recipients.GetByID(ctx, recipientID)
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%w: %s", domain.ErrRecipientNotFound, recipientID)
	}
	if err != nil {
		return domain.StorageError("get recipient", err)
	}

	if includeUnsubscribe {
		if s.links == nil {
			return fmt.Errorf("unsubscribe links are not configured")
		}
		link, err := s.links.UnsubscribeURL(recipient.ID)
		if err != nil {
			return fmt.Errorf("failed to build unsubscribe link: %w", err)
		}
		body += content.UnsubscribeFooter(link)
	}

	record := &domain.DeliveryRecord{
		ID:          s.newID(),
		RecipientID: recipient.ID,
		Subject:     subject,
		Body:        body,
	}
	if err := record.Validate(); err != nil {
		return err
	}
	if err := s.deliveries.Create(ctx, record); err != nil {
		return domain.StorageError("create delivery record", err)
	}

	msg := provider.Message{To: recipient.Email, Subject: record.Subject, HTMLBody: record.Body}

	s.metrics.IncDeliveriesInFlight()
	start := s.now()
	err = s.tx.WithinTx(ctx, func(ctx context.Context, deliveries repository.DeliveryRepository, recipients repository.RecipientRepository) error {
		if _, err := s.gate.Deliver(ctx, recipient.ID, msg); err != nil {
			return err
		}
		if err := deliveries.MarkDelivered(ctx, []string{record.ID}); err != nil {
			return domain.StorageError("mark delivered", err)
		}
		if err := recipients.UpdateLastNotified(ctx, []string{recipient.ID}, s.now().UTC()); err != nil {
			return domain.StorageError("update last notified", err)
		}
		return nil
	})
	s.metrics.ObserveDeliveryDuration(observability.ModeSingle, s.now().Sub(start))
	s.metrics.DecDeliveriesInFlight()

	switch {
	case errors.Is(err, domain.ErrDeliveryFailed):
		s.metrics.IncDeliveryFailed(observability.ModeSingle, provider.FailureReason(err))
		logger.Warn("delivery failed",
			zap.String("deliveryId", record.ID),
			zap.String("recipientId", recipient.ID),
			zap.Error(err),
		)
		return err
	case err != nil:
		logger.Error("failed to reconcile delivery",
			zap.String("deliveryId", record.ID),
			zap.String("recipientId", recipient.ID),
			zap.Error(err),
		)
		return domain.StorageError("reconcile delivery", err)
	}

	s.metrics.IncDeliverySent(observability.ModeSingle)
	logger.Info("delivery sent",
		zap.String("deliveryId", record.ID),
		zap.String("recipientId", recipient.ID),
	)
	return nil
}

func (s *DeliveryService) ListAll(ctx context.Context) ([]domain.DeliveryRecord, error) {
	records, err := s.deliveries.List(ctx)
	if err != nil {
		return nil, domain.StorageError("list deliveries", err)
	}
	return records, nil
}

func (s *DeliveryService) ListByRecipient(ctx context.Context, recipientID string) ([]domain.DeliveryRecord, error) {
	records, err := s.deliveries.ListByRecipient(ctx, recipientID)
	if err != nil {
		return nil, domain.StorageError("list recipient deliveries", err)
	}
	return records, nil
}
