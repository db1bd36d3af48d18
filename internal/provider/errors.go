package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Failure reasons used as metric labels.
const (
	ReasonTimeout   = "timeout"
	ReasonCanceled  = "canceled"
	ReasonRejected  = "rejected"
	ReasonTransport = "transport"
	ReasonRateLimit = "rate_limit"
	ReasonInvalid   = "invalid"
	ReasonUnknown   = "unknown"
)

// ProviderError describes a failed transport call.
type ProviderError struct {
	StatusCode int
	Message    string
	Reason     string
	Cause      error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 4)
	parts = append(parts, "provider error")

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// FailureReason maps a delivery error to a short, bounded label.
func FailureReason(err error) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	if errors.Is(err, context.Canceled) {
		return ReasonCanceled
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) && providerErr.Reason != "" {
		return providerErr.Reason
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ReasonTimeout
		}
		return ReasonTransport
	}

	return ReasonUnknown
}

func transportReason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	if errors.Is(err, context.Canceled) {
		return ReasonCanceled
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout
	}
	return ReasonTransport
}
