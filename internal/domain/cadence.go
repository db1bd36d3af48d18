package domain

import (
	"fmt"
	"strings"
)

// Cadence names a recurring calendar rule.
type Cadence string

const (
	CadenceWeekly Cadence = "weekly"
	CadenceDaily  Cadence = "daily"
)

func (c Cadence) String() string { return string(c) }

func (c Cadence) IsValid() bool {
	switch c {
	case CadenceWeekly, CadenceDaily:
		return true
	}
	return false
}

func ParseCadenceFromString(s string) (Cadence, error) {
	c := Cadence(strings.ToLower(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", fmt.Errorf("%w: invalid cadence %q", ErrValidation, s)
	}
	return c, nil
}

// PromptKind selects what the content generator is asked to write.
type PromptKind string

const (
	PromptMotivational PromptKind = "motivational"
	PromptAnniversary  PromptKind = "anniversary"
)

func (k PromptKind) String() string { return string(k) }
