package service

import (
	"context"

	"github.com/kursadbilgin/cadence-dispatch/internal/domain"
	"github.com/kursadbilgin/cadence-dispatch/internal/provider"
)

// Deliverer is the transport gate as seen by the delivery core.
// Failures are *domain.DeliveryError.
type Deliverer interface {
	Deliver(ctx context.Context, recipientID string, msg provider.Message) (*provider.ProviderResponse, error)
}

// UnsubscribeLinker builds the opt-out link embedded in cadence messages.
type UnsubscribeLinker interface {
	UnsubscribeURL(recipientID string) (string, error)
}

// TokenVerifier resolves an unsubscribe token to a recipient id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

type SingleSender interface {
	SendOne(ctx context.Context, recipientID, subject, body string, includeUnsubscribe bool) error
}

type BatchSender interface {
	SendBatch(ctx context.Context, items []domain.BatchItem) (domain.BatchResult, error)
}
