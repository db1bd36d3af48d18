package domain

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// Recipient is a directory entry the dispatcher reads cohorts from.
// Only OptedIn and LastNotifiedAt are ever written by the delivery core.
type Recipient struct {
	ID             string
	Name           string
	Email          string
	OptedIn        bool
	LastNotifiedAt *time.Time
	Anniversary    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (r *Recipient) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if strings.TrimSpace(r.Email) == "" {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return fmt.Errorf("%w: invalid email %q", ErrValidation, r.Email)
	}
	return nil
}

// IsAnniversaryOn reports whether anniversary falls on the same month and day as day.
// The year is ignored and day is expected to already be in the caller's timezone.
func IsAnniversaryOn(anniversary time.Time, day time.Time) bool {
	return anniversary.Month() == day.Month() && anniversary.Day() == day.Day()
}

// YearsSince returns the number of full years between anniversary and day.
func YearsSince(anniversary time.Time, day time.Time) int {
	years := day.Year() - anniversary.Year()
	if day.Month() < anniversary.Month() ||
		(day.Month() == anniversary.Month() && day.Day() < anniversary.Day()) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}
