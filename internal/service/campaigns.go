package service

import (
	"context"
	"fmt"

	"github.com/kursadbilgin/cadence-dispatch/internal/content"
	"github.com/kursadbilgin/cadence-dispatch/internal/domain"
	"github.com/kursadbilgin/cadence-dispatch/internal/observability"
	"go.uber.org/zap"
)

// Campaigns are the cycle pipelines run by the cadence schedulers:
// cohort, one generated body, one batch.
type Campaigns struct {
	cohorts    *CohortSelector
	generator  content.Generator
	dispatcher BatchSender
	links      UnsubscribeLinker
	logger     *zap.Logger
	metrics    *observability.Metrics
}

func NewCampaigns(
	cohorts *CohortSelector,
	generator content.Generator,
	dispatcher BatchSender,
	links UnsubscribeLinker,
	logger *zap.Logger,
) (*Campaigns, error) {
	if cohorts == nil || generator == nil || dispatcher == nil || links == nil {
		return nil, fmt.Errorf("cohort selector, generator, dispatcher and link builder are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Campaigns{
		cohorts:    cohorts,
		generator:  generator,
		dispatcher: dispatcher,
		links:      links,
		logger:     logger,
	}, nil
}

func (c *Campaigns) SetMetrics(metrics *observability.Metrics) {
	c.metrics = metrics
}

// ForCadence returns the pipeline bound to cadence.
func (c *Campaigns) ForCadence(cadence domain.Cadence) (CycleFunc, error) {
	switch cadence {
	case domain.CadenceWeekly:
		return c.RunMotivational, nil
	case domain.CadenceDaily:
		return c.RunAnniversary, nil
	}
	return nil, fmt.Errorf("%w: no campaign for cadence %q", domain.ErrValidation, cadence)
}

func (c *Campaigns) RunMotivational(ctx context.Context) (domain.BatchResult, error) {
	logger := observability.WithContextLogger(c.logger, ctx)

	cohort, err := c.cohorts.OptedIn(ctx)
	if err != nil {
		return domain.BatchResult{}, err
	}
	if len(cohort) == 0 {
		logger.Info("no opted-in recipients, skipping motivational cycle")
		return domain.BatchResult{}, nil
	}

	logger.Info("sending motivational messages", zap.Int("recipients", len(cohort)))
	message, err := c.generate(ctx, domain.PromptMotivational)
	if err != nil {
		return domain.BatchResult{}, err
	}

	subject, body := content.Motivational(message)
	items := c.buildItems(logger, cohort, func(domain.Recipient) (string, string) {
		return subject, body
	})

	return c.dispatcher.SendBatch(ctx, items)
}

func (c *Campaigns) RunAnniversary(ctx context.Context) (domain.BatchResult, error) {
	logger := observability.WithContextLogger(c.logger, ctx)

	cohort, err := c.cohorts.AnniversaryToday(ctx)
	if err != nil {
		return domain.BatchResult{}, err
	}
	if len(cohort) == 0 {
		logger.Info("no anniversaries today, skipping cycle")
		return domain.BatchResult{}, nil
	}

	logger.Info("sending anniversary messages", zap.Int("recipients", len(cohort)))
	message, err := c.generate(ctx, domain.PromptAnniversary)
	if err != nil {
		return domain.BatchResult{}, err
	}

	today := c.cohorts.Today()
	items := c.buildItems(logger, cohort, func(r domain.Recipient) (string, string) {
		years := 0
		if r.Anniversary != nil {
			years = domain.YearsSince(*r.Anniversary, today)
		}
		return content.Anniversary(r.Name, years, message)
	})

	return c.dispatcher.SendBatch(ctx, items)
}

func (c *Campaigns) generate(ctx context.Context, kind domain.PromptKind) (string, error) {
	message, err := c.generator.Generate(ctx, kind)
	if err != nil {
		c.metrics.IncContentGeneration(kind.String(), "error")
		return "", fmt.Errorf("failed to generate %s content: %w", kind, err)
	}
	c.metrics.IncContentGeneration(kind.String(), "success")
	return message, nil
}

// buildItems renders one batch item per recipient with its unsubscribe footer.
// A recipient whose link cannot be built is left out of the batch.
func (c *Campaigns) buildItems(
	logger *zap.Logger,
	cohort []domain.Recipient,
	render func(domain.Recipient) (subject string, body string),
) []domain.BatchItem {
	items := make([]domain.BatchItem, 0, len(cohort))
	for _, r := range cohort {
		link, err := c.links.UnsubscribeURL(r.ID)
		if err != nil {
			logger.Error("failed to build unsubscribe link",
				zap.String("recipientId", r.ID),
				zap.Error(err),
			)
			continue
		}

		subject, body := render(r)
		items = append(items, domain.BatchItem{
			RecipientID: r.ID,
			Subject:     subject,
			Body:        body + content.UnsubscribeFooter(link),
		})
	}
	return items
}
