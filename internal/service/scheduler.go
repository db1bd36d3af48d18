package service

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/kursadbilgin/cadence-dispatch/internal/domain"
	"github.com/kursadbilgin/cadence-dispatch/internal/observability"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const defaultCycleTimeout = 30 * time.Minute

// CycleFunc is the work executed on every tick of a cadence.
type CycleFunc func(ctx context.Context) (domain.BatchResult, error)

// CadenceScheduler fires one CycleFunc on a cron calendar rule. A cadence
// never runs two cycles at once, and a failed cycle never unschedules it.
type CadenceScheduler struct {
	cadence      domain.Cadence
	spec         string
	schedule     cron.Schedule
	loc          *time.Location
	job          CycleFunc
	logger       *zap.Logger
	metrics      *observability.Metrics
	cycleTimeout time.Duration
	now          func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	started bool

	cycleMu sync.Mutex
}

type SchedulerOption func(*CadenceScheduler)

func WithSchedulerLogger(logger *zap.Logger) SchedulerOption {
	return func(s *CadenceScheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithSchedulerMetrics(metrics *observability.Metrics) SchedulerOption {
	return func(s *CadenceScheduler) {
		s.metrics = metrics
	}
}

func WithCycleTimeout(timeout time.Duration) SchedulerOption {
	return func(s *CadenceScheduler) {
		if timeout > 0 {
			s.cycleTimeout = timeout
		}
	}
}

// NewCadenceScheduler validates spec (five standard cron fields) up front.
func NewCadenceScheduler(
	cadence domain.Cadence,
	spec string,
	loc *time.Location,
	job CycleFunc,
	opts ...SchedulerOption,
) (*CadenceScheduler, error) {
	if !cadence.IsValid() {
		return nil, fmt.Errorf("%w: invalid cadence %q", domain.ErrValidation, cadence)
	}
	if job == nil {
		return nil, fmt.Errorf("cycle job is required")
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid cron spec %q for %s: %w", domain.ErrValidation, spec, cadence, err)
	}
	if loc == nil {
		loc = time.UTC
	}

	s := &CadenceScheduler{
		cadence:      cadence,
		spec:         spec,
		schedule:     schedule,
		loc:          loc,
		job:          job,
		logger:       zap.NewNop(),
		cycleTimeout: defaultCycleTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("cadence", cadence.String()))

	return s, nil
}

func (s *CadenceScheduler) Cadence() domain.Cadence {
	return s.cadence
}

// Start arms the timer. Calling it on a started scheduler is a no-op.
func (s *CadenceScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}

	cronLogger := observability.NewCronLogger(s.logger)
	c := cron.New(
		cron.WithLocation(s.loc),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.DelayIfStillRunning(cronLogger)),
	)
	c.Schedule(s.schedule, cron.FuncJob(func() {
		_, _ = s.runCycle(context.Background(), "timer")
	}))
	c.Start()

	s.cron = c
	s.started = true

	s.logger.Info("cadence scheduled",
		zap.String("spec", s.spec),
		zap.String("timezone", s.loc.String()),
		zap.Time("nextRun", s.Next(s.now())),
	)
}

// Stop disarms the timer and waits for an in-flight cycle to finish.
// Calling it on a stopped scheduler is a no-op.
func (s *CadenceScheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	started := s.started
	s.cron = nil
	s.started = false
	s.mu.Unlock()

	if !started {
		return
	}

	<-c.Stop().Done()
	s.logger.Info("cadence stopped")
}

// RunOnce executes one cycle now, waiting for any running cycle first.
func (s *CadenceScheduler) RunOnce(ctx context.Context) (domain.BatchResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.runCycle(ctx, "manual")
}

// Next reports the first fire time strictly after after.
func (s *CadenceScheduler) Next(after time.Time) time.Time {
	return s.schedule.Next(after.In(s.loc))
}

func (s *CadenceScheduler) runCycle(parent context.Context, trigger string) (result domain.BatchResult, err error) {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	ctx, cancel := context.WithTimeout(parent, s.cycleTimeout)
	defer cancel()
	ctx, _ = observability.EnsureCorrelationID(ctx)
	logger := observability.WithContextLogger(s.logger, ctx).With(zap.String("trigger", trigger))

	started := s.now()
	logger.Info("cycle started")

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panicked: %v", r)
			logger.Error("cycle panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
		}

		elapsed := s.now().Sub(started)
		if err != nil {
			s.metrics.ObserveCycle(s.cadence.String(), "error", elapsed, result.Attempted, result.Delivered)
			logger.Error("cycle failed",
				zap.Duration("elapsed", elapsed),
				zap.Int("attempted", result.Attempted),
				zap.Int("delivered", result.Delivered),
				zap.Error(err),
			)
			return
		}

		s.metrics.ObserveCycle(s.cadence.String(), cycleOutcome(result), elapsed, result.Attempted, result.Delivered)
		logger.Info("cycle finished",
			zap.Duration("elapsed", elapsed),
			zap.Int("attempted", result.Attempted),
			zap.Int("delivered", result.Delivered),
			zap.Int("failed", result.Failed()),
		)
	}()

	return s.job(ctx)
}

func cycleOutcome(result domain.BatchResult) string {
	switch {
	case result.Attempted == 0:
		return "empty"
	case result.Failed() > 0:
		return "partial"
	default:
		return "success"
	}
}
