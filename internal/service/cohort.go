package service

import (
	"context"
	"fmt"
	"time"

	"github.com/kursadbilgin/cadence-dispatch/internal/domain"
	"github.com/kursadbilgin/cadence-dispatch/internal/repository"
)

// CohortSelector picks the recipients of a cycle. Calendar rules are
// evaluated in the scheduler's timezone.
type CohortSelector struct {
	recipients repository.RecipientRepository
	loc        *time.Location
	now        func() time.Time
}

func NewCohortSelector(recipients repository.RecipientRepository, loc *time.Location) (*CohortSelector, error) {
	if recipients == nil {
		return nil, fmt.Errorf("recipient repository is required")
	}
	if loc == nil {
		loc = time.UTC
	}
	return &CohortSelector{
		recipients: recipients,
		loc:        loc,
		now:        time.Now,
	}, nil
}

// Today is the current instant in the selector's timezone.
func (c *CohortSelector) Today() time.Time {
	return c.now().In(c.loc)
}

func (c *CohortSelector) OptedIn(ctx context.Context) ([]domain.Recipient, error) {
	optedIn := true
	recipients, err := c.recipients.List(ctx, repository.RecipientFilter{OptedIn: &optedIn})
	if err != nil {
		return nil, domain.StorageError("select opted-in cohort", err)
	}
	return recipients, nil
}

// AnniversaryToday returns opted-in recipients whose anniversary month and day
// match today. The year is ignored.
func (c *CohortSelector) AnniversaryToday(ctx context.Context) ([]domain.Recipient, error) {
	today := c.Today()
	optedIn := true
	recipients, err := c.recipients.List(ctx, repository.RecipientFilter{
		OptedIn:          &optedIn,
		AnniversaryMonth: today.Month(),
		AnniversaryDay:   today.Day(),
	})
	if err != nil {
		return nil, domain.StorageError("select anniversary cohort", err)
	}
	return recipients, nil
}
