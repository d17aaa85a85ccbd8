package device

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"heartbeat-beacon/internal/accounts"
	"heartbeat-beacon/internal/alerting"
	"heartbeat-beacon/internal/ledger"
	"heartbeat-beacon/internal/sampler"
	"heartbeat-beacon/internal/scheduler"
	"heartbeat-beacon/internal/status"
	"heartbeat-beacon/internal/storage"
	"heartbeat-beacon/internal/submitter"
)

// State is the controller lifecycle state.
type State int

const (
	// Booting covers startup until the balance report completes.
	Booting State = iota
	// AccountsPending covers the resolution retry window.
	AccountsPending
	// Ready means accounts resolved; all tasks registered.
	Ready
	// Degraded means resolution failed permanently; sampling and
	// presentation continue, submissions never start. Terminal until
	// restart.
	Degraded
)

func (s State) String() string {
	switch s {
	case Booting:
		return "booting"
	case AccountsPending:
		return "accounts_pending"
	case Ready:
		return "ready"
	case Degraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// Identity is the device's validated key material.
type Identity struct {
	Owner     solana.PublicKey
	Signer    solana.PrivateKey
	ProgramID solana.PublicKey
	Mint      solana.PublicKey
}

// Options tune the controller.
type Options struct {
	Name          string
	ClaimsReward  bool
	BlinkPeriod   time.Duration
	SamplePeriod  time.Duration
	ReadingPeriod time.Duration
	RewardPeriod  time.Duration
	// FailureAlertAfter is the consecutive-submission-failure count that
	// raises a health alert. Zero disables the alert.
	FailureAlertAfter int
}

// Controller orchestrates the device: startup balance report, account
// resolution, then steady-state task scheduling. It owns all shared
// mutable state; everything runs inside the scheduler's single execution
// context, so no locking is needed.
type Controller struct {
	opts      Options
	identity  Identity
	sched     *scheduler.Scheduler
	samp      *sampler.Sampler
	client    ledger.Client
	resolver  *accounts.Resolver
	sub       *submitter.Submitter
	presenter status.Presenter
	notifier  alerting.Notifier
	readings  storage.ReadingStore
	subs      storage.SubmissionStore
	logger    zerolog.Logger

	state        State
	set          *accounts.AccountSet
	consFailures int
}

// New wires a controller. notifier, readings, and subs may be nil.
func New(
	opts Options,
	identity Identity,
	sched *scheduler.Scheduler,
	samp *sampler.Sampler,
	client ledger.Client,
	resolver *accounts.Resolver,
	sub *submitter.Submitter,
	presenter status.Presenter,
	notifier alerting.Notifier,
	readings storage.ReadingStore,
	subs storage.SubmissionStore,
	logger zerolog.Logger,
) *Controller {
	if presenter == nil {
		presenter = status.Multi(nil)
	}
	return &Controller{
		opts:      opts,
		identity:  identity,
		sched:     sched,
		samp:      samp,
		client:    client,
		resolver:  resolver,
		sub:       sub,
		presenter: presenter,
		notifier:  notifier,
		readings:  readings,
		subs:      subs,
		logger:    logger.With().Str("component", "controller").Logger(),
	}
}

// State reports the controller lifecycle state.
func (c *Controller) State() State {
	return c.state
}

// Bootstrap runs startup: balance report, account resolution with the
// bounded retry budget, and task registration. After Bootstrap the
// controller is Ready or Degraded and the scheduler holds its final task
// set.
func (c *Controller) Bootstrap(ctx context.Context) error {
	c.state = Booting
	c.presenter.Present(status.Event{Kind: status.Booting, At: time.Now().UTC()})

	c.reportBalance(ctx)

	c.state = AccountsPending
	set, rstate := c.resolver.Resolve(ctx, c.identity.Owner, c.identity.Signer, c.identity.ProgramID, c.identity.Mint)

	switch rstate {
	case accounts.Resolved:
		c.set = set
		c.state = Ready
		c.presenter.Present(status.Event{Kind: status.AccountsResolved, At: time.Now().UTC()})
	default:
		c.state = Degraded
		detail := fmt.Sprintf("resolution failed after %d attempts", c.resolver.Attempts())
		c.presenter.Present(status.Event{Kind: status.ResolutionFailed, At: time.Now().UTC(), Detail: detail})
		c.alert(ctx, "account resolution failed", detail, 0)
		c.logger.Error().Str("detail", detail).Msg("entering degraded mode")
	}

	c.registerTasks()
	return nil
}

// Run bootstraps and then drives the scheduler until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.Bootstrap(ctx); err != nil {
		return err
	}
	return c.sched.Run(ctx)
}

// registerTasks installs the steady-state tasks. Submission tasks exist
// only when the controller is Ready; sampling and presentation run in both
// Ready and Degraded.
func (c *Controller) registerTasks() {
	c.sched.Register("blink", c.opts.BlinkPeriod, c.blinkTask)
	c.sched.Register("sample", c.opts.SamplePeriod, c.sampleTask)

	if c.readings != nil {
		c.sched.Register("record-metric", c.opts.ReadingPeriod, c.recordMetricTask)
	}

	if c.state != Ready {
		return
	}

	c.sched.Register("submit-reading", c.opts.ReadingPeriod, c.submitReadingTask)
	if c.opts.ClaimsReward {
		c.sched.Register("submit-reward", c.opts.RewardPeriod, c.submitRewardTask)
	}
}

func (c *Controller) blinkTask(ctx context.Context) error {
	c.presenter.Present(status.Event{Kind: status.Heartbeat, At: time.Now().UTC()})
	return nil
}

func (c *Controller) sampleTask(ctx context.Context) error {
	c.samp.Update(c.samp.Sample())
	return nil
}

func (c *Controller) recordMetricTask(ctx context.Context) error {
	reading := storage.MetricReading{
		Device: c.opts.Name,
		At:     time.Now().UTC(),
		Metric: c.samp.Metric(),
	}
	if err := c.readings.UpsertReading(ctx, reading); err != nil {
		return fmt.Errorf("record metric: %w", err)
	}
	return nil
}

func (c *Controller) submitReadingTask(ctx context.Context) error {
	metric := c.samp.Metric()
	out := c.sub.SubmitReading(ctx, c.set, metric)
	c.recordSubmission(ctx, storage.KindReading, out)

	if !out.Success {
		c.noteFailure(ctx, out.Reason)
		return fmt.Errorf("submit reading: %s", out.Reason)
	}

	c.consFailures = 0
	c.presenter.Present(status.Event{
		Kind:      status.ReadingSubmitted,
		At:        time.Now().UTC(),
		Metric:    metric,
		Signature: out.Signature.String(),
	})
	return nil
}

func (c *Controller) submitRewardTask(ctx context.Context) error {
	out := c.sub.SubmitRewardClaim(ctx, c.set)
	c.recordSubmission(ctx, storage.KindReward, out)

	if !out.Success {
		c.noteFailure(ctx, out.Reason)
		return fmt.Errorf("claim reward: %s", out.Reason)
	}

	c.consFailures = 0
	c.presenter.Present(status.Event{
		Kind:      status.RewardClaimed,
		At:        time.Now().UTC(),
		Signature: out.Signature.String(),
	})
	return nil
}

func (c *Controller) noteFailure(ctx context.Context, reason string) {
	c.consFailures++
	c.presenter.Present(status.Event{Kind: status.SubmissionFailed, At: time.Now().UTC(), Detail: reason})

	if c.opts.FailureAlertAfter > 0 && c.consFailures >= c.opts.FailureAlertAfter {
		c.alert(ctx, "repeated submission failures", reason, c.consFailures)
	}
}

func (c *Controller) alert(ctx context.Context, summary, detail string, failures int) {
	if c.notifier == nil {
		return
	}
	note := alerting.Notification{
		At:       time.Now().UTC(),
		Device:   c.opts.Name,
		Summary:  summary,
		Detail:   detail,
		Failures: failures,
	}
	if err := c.notifier.Notify(ctx, note); err != nil {
		c.logger.Error().Err(err).Msg("failed to dispatch health alert")
	}
}

func (c *Controller) recordSubmission(ctx context.Context, kind string, out submitter.Outcome) {
	if c.subs == nil {
		return
	}

	record := storage.SubmissionRecord{
		Device:  c.opts.Name,
		At:      time.Now().UTC(),
		Kind:    kind,
		Success: out.Success,
	}
	if out.Success {
		sig := out.Signature.String()
		record.Signature = &sig
	} else if out.Reason != "" {
		reason := out.Reason
		record.Reason = &reason
	}

	if _, err := c.subs.InsertSubmission(ctx, record); err != nil {
		c.logger.Error().Err(err).Str("kind", kind).Msg("failed to persist submission record")
	}
}

// reportBalance queries and presents the owner's balances. Failures are
// logged, never fatal.
func (c *Controller) reportBalance(ctx context.Context) {
	lamports, err := c.client.GetBalance(ctx, c.identity.Owner)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to fetch balance")
		return
	}
	sol := decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -9)

	tokens := decimal.Zero
	if !c.identity.Mint.IsZero() {
		raw, decimals, err := c.client.GetTokenBalance(ctx, c.identity.Owner, c.identity.Mint)
		if err != nil {
			c.logger.Warn().Err(err).Msg("failed to fetch token balance")
		} else {
			tokens = decimal.NewFromBigInt(new(big.Int).SetUint64(raw), -int32(decimals))
		}
	}

	c.presenter.Present(status.Event{
		Kind:        status.BalanceReported,
		At:          time.Now().UTC(),
		SOL:         sol,
		TokenAmount: tokens,
	})
}
