package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Action is invoked when a task's period has elapsed.
type Action func(ctx context.Context) error

// Options tune scheduler behaviour.
type Options struct {
	Poll time.Duration
}

// Scheduler drives a set of named periodic tasks from a single polling
// loop. Tasks execute sequentially in registration order; an action that
// blocks delays every other task for its duration. The scheduler tracks
// timing only — action outcomes are logged and otherwise ignored, and a
// failing task is never unregistered.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
	tasks  []*task
}

type task struct {
	name    string
	period  time.Duration
	lastRun time.Time
	action  Action
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Poll <= 0 {
		panic("scheduler poll granularity must be positive")
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Register adds a named task. Its first run happens one period after the
// first tick that observes it, not immediately.
func (s *Scheduler) Register(name string, period time.Duration, action Action) {
	if period <= 0 {
		panic("task period must be positive")
	}
	s.tasks = append(s.tasks, &task{name: name, period: period, action: action})
}

// Tick runs every task whose full period has elapsed since its last run, at
// most once each regardless of how many periods have passed. lastRun
// advances to the tick's own timestamp, so a late poll never triggers a
// catch-up burst.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	for _, t := range s.tasks {
		if t.lastRun.IsZero() {
			t.lastRun = now
			continue
		}
		if now.Sub(t.lastRun) < t.period {
			continue
		}
		if err := t.action(ctx); err != nil {
			s.logger.Error().Err(err).Str("task", t.name).Msg("task action failed")
		}
		t.lastRun = now
	}
}

// Run blocks, polling the clock at the configured granularity and ticking
// until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.Poll)
	defer ticker.Stop()

	s.logger.Info().Dur("poll", s.opts.Poll).Int("tasks", len(s.tasks)).Msg("entering poll loop")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			s.Tick(ctx, now)
		}
	}
}

// TaskNames returns the registered task names in execution order.
func (s *Scheduler) TaskNames() []string {
	names := make([]string, 0, len(s.tasks))
	for _, t := range s.tasks {
		names = append(names, t.name)
	}
	return names
}
