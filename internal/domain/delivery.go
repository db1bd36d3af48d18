package domain

import (
	"fmt"
	"strings"
	"time"
)

// DeliveryRecord is the durable audit row for one attempted notification.
// Delivered only ever moves from false to true.
type DeliveryRecord struct {
	ID          string
	RecipientID string
	Subject     string
	Body        string
	Delivered   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (d *DeliveryRecord) Validate() error {
	if strings.TrimSpace(d.RecipientID) == "" {
		return fmt.Errorf("%w: recipient id is required", ErrValidation)
	}
	if strings.TrimSpace(d.Subject) == "" {
		return fmt.Errorf("%w: subject is required", ErrValidation)
	}
	if strings.TrimSpace(d.Body) == "" {
		return fmt.Errorf("%w: body is required", ErrValidation)
	}
	return nil
}

// BatchItem is one recipient's payload inside an in-memory batch.
type BatchItem struct {
	RecipientID string
	Subject     string
	Body        string
}

// BatchResult summarizes a dispatched batch.
type BatchResult struct {
	Attempted int
	Delivered int
}

func (r BatchResult) Failed() int {
	return r.Attempted - r.Delivered
}
