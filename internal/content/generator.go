package content

import (
	"context"

	"github.com/kursadbilgin/cadence-dispatch/internal/domain"
)

// Generator produces one message body for a prompt kind. The body is HTML
// made of <p> paragraphs and is shared by every recipient of a cycle.
type Generator interface {
	Generate(ctx context.Context, kind domain.PromptKind) (string, error)
}
