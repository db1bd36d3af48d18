package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/cadence-dispatch/internal/domain"
	"github.com/kursadbilgin/cadence-dispatch/internal/observability"
	"github.com/kursadbilgin/cadence-dispatch/internal/provider"
	"github.com/kursadbilgin/cadence-dispatch/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultDispatchConcurrency = 8
	reasonUnknownRecipient     = "unknown_recipient"
	reconcileTimeout           = 30 * time.Second
)

// Dispatcher delivers a batch of per-recipient payloads. One failed send
// never stops the others; partial failure is reported in the result.
type Dispatcher struct {
	deliveries  repository.DeliveryRepository
	recipients  repository.RecipientRepository
	tx          repository.Transactor
	gate        Deliverer
	logger      *zap.Logger
	metrics     *observability.Metrics
	concurrency int
	now         func() time.Time
	newID       func() string
}

func NewDispatcher(
	deliveries repository.DeliveryRepository,
	recipients repository.RecipientRepository,
	tx repository.Transactor,
	gate Deliverer,
	concurrency int,
	logger *zap.Logger,
) (*Dispatcher, error) {
	if deliveries == nil || recipients == nil || tx == nil {
		return nil, fmt.Errorf("delivery and recipient repositories and transactor are required")
	}
	if gate == nil {
		return nil, fmt.Errorf("delivery gate is required")
	}
	if concurrency <= 0 {
		concurrency = defaultDispatchConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Dispatcher{
		deliveries:  deliveries,
		recipients:  recipients,
		tx:          tx,
		gate:        gate,
		logger:      logger,
		concurrency: concurrency,
		now:         time.Now,
		newID:       uuid.NewString,
	}, nil
}

func (d *Dispatcher) SetMetrics(metrics *observability.Metrics) {
	d.metrics = metrics
}

// SendBatch persists every item, attempts each one through the gate and
// reconciles the delivered subset in a single transaction.
func (d *Dispatcher) SendBatch(ctx context.Context, items []domain.BatchItem) (domain.BatchResult, error) {
	if len(items) == 0 {
		return domain.BatchResult{}, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	logger := observability.WithContextLogger(d.logger, ctx)

	records := make([]*domain.DeliveryRecord, 0, len(items))
	for i, item := range items {
		record := &domain.DeliveryRecord{
			ID:          d.newID(),
			RecipientID: item.RecipientID,
			Subject:     item.Subject,
			Body:        item.Body,
		}
		if err := record.Validate(); err != nil {
			return domain.BatchResult{}, fmt.Errorf("batch item %d: %w", i, err)
		}
		records = append(records, record)
	}

	if err := d.deliveries.CreateBatch(ctx, records); err != nil {
		return domain.BatchResult{}, domain.StorageError("create delivery records", err)
	}

	byID, err := d.resolveRecipients(ctx, records)
	if err != nil {
		return domain.BatchResult{}, err
	}

	delivered := d.fanOut(ctx, logger, records, byID)

	result := domain.BatchResult{Attempted: len(records)}
	deliveredIDs := make([]string, 0, len(records))
	notifiedIDs := make([]string, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for i, ok := range delivered {
		if !ok {
			continue
		}
		result.Delivered++
		deliveredIDs = append(deliveredIDs, records[i].ID)
		if _, dup := seen[records[i].RecipientID]; !dup {
			seen[records[i].RecipientID] = struct{}{}
			notifiedIDs = append(notifiedIDs, records[i].RecipientID)
		}
	}

	if len(deliveredIDs) > 0 {
		notifiedAt := d.now().UTC()
		// Sends already confirmed must be recorded even if the cycle deadline
		// expired during the fan-out.
		reconcileCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reconcileTimeout)
		defer cancel()
		err := d.tx.WithinTx(reconcileCtx, func(ctx context.Context, deliveries repository.DeliveryRepository, recipients repository.RecipientRepository) error {
			if err := deliveries.MarkDelivered(ctx, deliveredIDs); err != nil {
				return fmt.Errorf("mark delivered: %w", err)
			}
			if err := recipients.UpdateLastNotified(ctx, notifiedIDs, notifiedAt); err != nil {
				return fmt.Errorf("update last notified: %w", err)
			}
			return nil
		})
		if err != nil {
			logger.Error("failed to reconcile batch",
				zap.Int("attempted", result.Attempted),
				zap.Int("delivered", result.Delivered),
				zap.Error(err),
			)
			return result, domain.StorageError("reconcile batch", err)
		}
	}

	logger.Info("batch dispatched",
		zap.Int("attempted", result.Attempted),
		zap.Int("delivered", result.Delivered),
		zap.Int("failed", result.Failed()),
	)
	return result, nil
}

func (d *Dispatcher) resolveRecipients(ctx context.Context, records []*domain.DeliveryRecord) (map[string]domain.Recipient, error) {
	ids := make([]string, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if _, ok := seen[r.RecipientID]; ok {
			continue
		}
		seen[r.RecipientID] = struct{}{}
		ids = append(ids, r.RecipientID)
	}

	recipients, err := d.recipients.GetByIDs(ctx, ids)
	if err != nil {
		return nil, domain.StorageError("resolve batch recipients", err)
	}

	byID := make(map[string]domain.Recipient, len(recipients))
	for _, r := range recipients {
		byID[r.ID] = r
	}
	return byID, nil
}

// fanOut returns, per record index, whether the transport accepted it.
func (d *Dispatcher) fanOut(
	ctx context.Context,
	logger *zap.Logger,
	records []*domain.DeliveryRecord,
	byID map[string]domain.Recipient,
) []bool {
	delivered := make([]bool, len(records))

	var g errgroup.Group
	g.SetLimit(d.concurrency)

	for i, record := range records {
		i, record := i, record
		g.Go(func() error {
			recipient, ok := byID[record.RecipientID]
			if !ok {
				d.metrics.IncDeliveryFailed(observability.ModeBatch, reasonUnknownRecipient)
				logger.Warn("skipping delivery for unknown recipient",
					zap.String("deliveryId", record.ID),
					zap.String("recipientId", record.RecipientID),
				)
				return nil
			}

			d.metrics.IncDeliveriesInFlight()
			defer d.metrics.DecDeliveriesInFlight()

			start := d.now()
			_, err := d.gate.Deliver(ctx, recipient.ID, provider.Message{
				To:       recipient.Email,
				Subject:  record.Subject,
				HTMLBody: record.Body,
			})
			d.metrics.ObserveDeliveryDuration(observability.ModeBatch, d.now().Sub(start))

			if err != nil {
				d.metrics.IncDeliveryFailed(observability.ModeBatch, provider.FailureReason(err))
				logger.Warn("batch delivery failed",
					zap.String("deliveryId", record.ID),
					zap.String("recipientId", recipient.ID),
					zap.Error(err),
				)
				return nil
			}

			d.metrics.IncDeliverySent(observability.ModeBatch)
			delivered[i] = true
			return nil
		})
	}

	_ = g.Wait()
	return delivered
}
