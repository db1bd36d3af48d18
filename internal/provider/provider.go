package provider

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
)

// Message is one rendered notification addressed to a single mailbox.
type Message struct {
	To       string
	Subject  string
	HTMLBody string
}

func (m Message) Validate() error {
	if _, err := mail.ParseAddress(strings.TrimSpace(m.To)); err != nil {
		return fmt.Errorf("invalid recipient address %q: %w", m.To, err)
	}
	if strings.TrimSpace(m.Subject) == "" {
		return fmt.Errorf("subject is required")
	}
	if strings.TrimSpace(m.HTMLBody) == "" {
		return fmt.Errorf("body is required")
	}
	return nil
}

// Provider is the outbound delivery port. Implementations must honor ctx
// cancellation and deadlines.
type Provider interface {
	Deliver(ctx context.Context, msg Message) (*ProviderResponse, error)
}

// ProviderResponse is what the transport reported back on success.
type ProviderResponse struct {
	StatusCode int
	Body       string
	MessageID  string
}
