package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"heartbeat-beacon/internal/accounts"
	"heartbeat-beacon/internal/alerting"
	"heartbeat-beacon/internal/config"
	"heartbeat-beacon/internal/device"
	"heartbeat-beacon/internal/ledger"
	"heartbeat-beacon/internal/sampler"
	"heartbeat-beacon/internal/scheduler"
	"heartbeat-beacon/internal/status"
	"heartbeat-beacon/internal/storage"
	"heartbeat-beacon/internal/submitter"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

// identity parses and validates the configured key material.
func (a *App) identity() (device.Identity, error) {
	var id device.Identity

	if a.Config.Ledger.OwnerSecretKey == "" {
		return id, errors.New("ledger.owner_secret_key is required")
	}
	signer, err := solana.PrivateKeyFromBase58(a.Config.Ledger.OwnerSecretKey)
	if err != nil {
		return id, fmt.Errorf("parse owner secret key: %w", err)
	}
	id.Signer = signer
	id.Owner = signer.PublicKey()

	if a.Config.Ledger.OwnerPublicKey != "" {
		declared, err := solana.PublicKeyFromBase58(a.Config.Ledger.OwnerPublicKey)
		if err != nil {
			return id, fmt.Errorf("parse owner public key: %w", err)
		}
		if !declared.Equals(id.Owner) {
			return id, errors.New("ledger.owner_public_key does not match the secret key")
		}
	}

	if a.Config.Ledger.ProgramID == "" {
		return id, errors.New("ledger.program_id is required")
	}
	if id.ProgramID, err = solana.PublicKeyFromBase58(a.Config.Ledger.ProgramID); err != nil {
		return id, fmt.Errorf("parse program id: %w", err)
	}

	if a.Config.Ledger.TokenMint == "" {
		return id, errors.New("ledger.token_mint is required")
	}
	if id.Mint, err = solana.PublicKeyFromBase58(a.Config.Ledger.TokenMint); err != nil {
		return id, fmt.Errorf("parse token mint: %w", err)
	}

	return id, nil
}

func (a *App) newLedger() *ledger.RPC {
	return ledger.NewRPC(ledger.RPCOptions{
		URL:     a.Config.Ledger.RPCURL,
		Timeout: a.Config.Ledger.RequestTimeout,
	}, a.Logger)
}

func (a *App) newSampler() *sampler.Sampler {
	sensor := sampler.NewSynthetic(sampler.SyntheticOptions{
		Baseline:  a.Config.Sampler.Baseline,
		Amplitude: a.Config.Sampler.Amplitude,
	})
	return sampler.New(sampler.Options{SampleSize: a.Config.Sampler.SampleSize}, sensor)
}

func (a *App) newNotifier() alerting.Notifier {
	if !a.Config.Alerting.Enabled || !a.Config.Alerting.Telegram.Enabled {
		return nil
	}
	cfg := a.Config.Alerting.Telegram
	inner := alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	if a.Config.Alerting.Cooldown > 0 {
		return alerting.NewCooled(inner, a.Config.Alerting.Cooldown)
	}
	return inner
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Run executes the long-running device loop.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	id, err := a.identity()
	if err != nil {
		return err
	}

	template, err := submitter.ParseTemplate(a.Config.Submitter.Template)
	if err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; telemetry persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	client := a.newLedger()

	sched := scheduler.New(scheduler.Options{Poll: a.Config.Scheduler.Poll}, a.Logger)
	resolver := accounts.New(accounts.Options{}, client, a.Logger)
	sub := submitter.New(submitter.Options{
		ReadingInstruction: a.Config.Submitter.ReadingInstruction,
		RewardInstruction:  a.Config.Submitter.RewardInstruction,
		Template:           template,
	}, client, a.Logger)

	var readings storage.ReadingStore
	var submissions storage.SubmissionStore
	if store != nil {
		readings = store
		submissions = store
	}

	ctrl := device.New(
		device.Options{
			Name:              a.Config.Device.Name,
			ClaimsReward:      a.Config.Device.Flavor == config.FlavorEarner,
			BlinkPeriod:       a.Config.Scheduler.BlinkPeriod,
			SamplePeriod:      a.Config.Scheduler.SamplePeriod,
			ReadingPeriod:     a.Config.Scheduler.ReadingPeriod,
			RewardPeriod:      a.Config.Scheduler.RewardPeriod,
			FailureAlertAfter: a.Config.Submitter.FailureAlertAfter,
		},
		id,
		sched,
		a.newSampler(),
		client,
		resolver,
		sub,
		status.NewLogPresenter(a.Logger),
		a.newNotifier(),
		readings,
		submissions,
		a.Logger,
	)

	a.Logger.Info().
		Str("device", a.Config.Device.Name).
		Str("flavor", a.Config.Device.Flavor).
		Msg("starting device controller")

	err = ctrl.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("device controller terminated with error")
		return err
	}

	a.Logger.Info().Msg("device controller stopped")
	return nil
}

// ExportOptions hold parameters for exporting the metric history.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}
