package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")

	// ErrRecipientNotFound is returned when a single send targets an unknown recipient.
	ErrRecipientNotFound = fmt.Errorf("recipient %w", ErrNotFound)

	ErrDeliveryFailed    = errors.New("delivery failed")
	ErrContentGeneration = errors.New("content generation failed")
	ErrStorage           = errors.New("storage failed")
	ErrInvalidToken      = errors.New("invalid or expired token")
)

// DeliveryError reports a transport failure for one recipient.
type DeliveryError struct {
	RecipientID string
	Cause       error
}

func (e *DeliveryError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 3)
	parts = append(parts, ErrDeliveryFailed.Error())
	if id := strings.TrimSpace(e.RecipientID); id != "" {
		parts = append(parts, fmt.Sprintf("recipient=%s", id))
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *DeliveryError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func (e *DeliveryError) Is(target error) bool {
	return target == ErrDeliveryFailed
}

// StorageError tags err as a persistence failure while keeping it in the chain.
func StorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStorage) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
