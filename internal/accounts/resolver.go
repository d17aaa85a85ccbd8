package accounts

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"heartbeat-beacon/internal/ledger"
)

// Seeds used to derive the device's program accounts.
var (
	dataSeed      = []byte("heartbeat")
	authoritySeed = []byte("authority")
)

// ResolutionState tracks the lifecycle of account resolution.
type ResolutionState int

const (
	// Unresolved is the boot state; resolution has not yet succeeded.
	Unresolved ResolutionState = iota
	// Resolved is terminal success; the AccountSet is immutable from here.
	Resolved
	// Failed is terminal failure; the process must restart to retry.
	Failed
)

func (s ResolutionState) String() string {
	switch s {
	case Resolved:
		return "resolved"
	case Failed:
		return "failed"
	default:
		return "unresolved"
	}
}

// AccountSet holds every address the submitter needs. Populated atomically
// by one successful resolver pass and never mutated afterwards.
type AccountSet struct {
	Owner     solana.PublicKey
	Signer    solana.PrivateKey
	Mint      solana.PublicKey
	ProgramID solana.PublicKey

	DataAccount      solana.PublicKey
	AuthorityAccount solana.PublicKey
	HoldingAccount   solana.PublicKey
}

// Options tune the retry budget.
type Options struct {
	MaxAttempts int
	Backoff     time.Duration
}

// Resolver derives the account set against the ledger client with a
// bounded retry budget.
type Resolver struct {
	opts   Options
	client ledger.Client
	logger zerolog.Logger

	state    ResolutionState
	attempts int
}

// New constructs a Resolver. Zero options fall back to the standard budget
// of 3 attempts spaced 1s apart.
func New(opts Options, client ledger.Client, logger zerolog.Logger) *Resolver {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	return &Resolver{
		opts:   opts,
		client: client,
		logger: logger.With().Str("component", "resolver").Logger(),
	}
}

// State reports the current resolution state.
func (r *Resolver) State() ResolutionState {
	return r.state
}

// Attempts reports how many derivation passes have run.
func (r *Resolver) Attempts() int {
	return r.attempts
}

// Resolve derives the data, authority, and holding accounts. One pass must
// succeed in full or the whole attempt fails; failed attempts back off a
// fixed delay and retry until the budget is spent, after which the state is
// Failed for the rest of the process lifetime.
func (r *Resolver) Resolve(ctx context.Context, owner solana.PublicKey, signer solana.PrivateKey, programID, mint solana.PublicKey) (*AccountSet, ResolutionState) {
	if r.state != Unresolved {
		r.logger.Warn().Stringer("state", r.state).Msg("resolve called in terminal state")
		return nil, r.state
	}

	for r.attempts < r.opts.MaxAttempts {
		r.attempts++

		set, err := r.derive(owner, signer, programID, mint)
		if err == nil {
			r.state = Resolved
			r.logger.Info().
				Int("attempt", r.attempts).
				Str("data_account", set.DataAccount.String()).
				Str("holding_account", set.HoldingAccount.String()).
				Msg("accounts resolved")
			return set, r.state
		}

		r.logger.Warn().Err(err).
			Int("attempt", r.attempts).
			Int("max_attempts", r.opts.MaxAttempts).
			Msg("account resolution attempt failed")

		if r.attempts >= r.opts.MaxAttempts {
			break
		}
		if !sleep(ctx, r.opts.Backoff) {
			break
		}
	}

	r.state = Failed
	return nil, r.state
}

func (r *Resolver) derive(owner solana.PublicKey, signer solana.PrivateKey, programID, mint solana.PublicKey) (*AccountSet, error) {
	data, _, err := r.client.FindDerivedAddress([][]byte{dataSeed, owner.Bytes()}, programID)
	if err != nil {
		return nil, fmt.Errorf("derive data account: %w", err)
	}

	authority, _, err := r.client.FindDerivedAddress([][]byte{authoritySeed}, programID)
	if err != nil {
		return nil, fmt.Errorf("derive authority account: %w", err)
	}

	holding, err := r.client.FindAssociatedAddress(owner, mint)
	if err != nil {
		return nil, fmt.Errorf("derive holding account: %w", err)
	}

	return &AccountSet{
		Owner:            owner,
		Signer:           signer,
		Mint:             mint,
		ProgramID:        programID,
		DataAccount:      data,
		AuthorityAccount: authority,
		HoldingAccount:   holding,
	}, nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
