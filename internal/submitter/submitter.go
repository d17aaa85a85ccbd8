package submitter

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"heartbeat-beacon/internal/accounts"
	"heartbeat-beacon/internal/ledger"
)

// Outcome is the result of one submission attempt. Failed attempts are not
// retried in-call; the next scheduled tick is the retry mechanism.
type Outcome struct {
	Success   bool
	Signature solana.Signature
	Reason    string
}

func failure(format string, args ...any) Outcome {
	return Outcome{Reason: fmt.Sprintf(format, args...)}
}

// Options parameterise the submitter.
type Options struct {
	ReadingInstruction string
	RewardInstruction  string
	Template           Template
}

// Submitter builds, signs, and submits the device's two instruction kinds
// against a resolved account set.
type Submitter struct {
	opts   Options
	client ledger.Client
	logger zerolog.Logger
}

// New constructs a Submitter.
func New(opts Options, client ledger.Client, logger zerolog.Logger) *Submitter {
	if opts.ReadingInstruction == "" {
		opts.ReadingInstruction = "log_reading"
	}
	if opts.RewardInstruction == "" {
		opts.RewardInstruction = "claim_reward"
	}
	return &Submitter{
		opts:   opts,
		client: client,
		logger: logger.With().Str("component", "submitter").Logger(),
	}
}

// SubmitReading logs the smoothed metric on-chain. The payload is the
// metric as a 4-byte little-endian float.
func (s *Submitter) SubmitReading(ctx context.Context, set *accounts.AccountSet, metric float64) Outcome {
	if set == nil {
		return failure("accounts not resolved")
	}

	payload := make([]byte, 4)
	binary.LittleEndian.PutUint32(payload, math.Float32bits(float32(metric)))

	metas := s.opts.Template.readingMetas(set)
	return s.submit(ctx, set, s.opts.ReadingInstruction, metas, payload)
}

// SubmitRewardClaim claims the accrued token reward. Empty payload; the
// claim always carries the token accounts since it must move tokens.
func (s *Submitter) SubmitRewardClaim(ctx context.Context, set *accounts.AccountSet) Outcome {
	if set == nil {
		return failure("accounts not resolved")
	}

	metas := fullMetas(set)
	return s.submit(ctx, set, s.opts.RewardInstruction, metas, nil)
}

func (s *Submitter) submit(ctx context.Context, set *accounts.AccountSet, instruction string, metas solana.AccountMetaSlice, payload []byte) Outcome {
	if set == nil {
		return failure("accounts not resolved")
	}

	// A fresh recency token is a hard precondition: without one, nothing is
	// signed or submitted.
	recent, err := s.client.GetRecencyToken(ctx)
	if err != nil {
		return failure("recency token unavailable: %v", err)
	}
	if recent == (solana.Hash{}) {
		return failure("recency token unavailable: empty token")
	}

	data := append(s.client.OpcodeSelectorFor(instruction), payload...)

	tx, err := solana.NewTransaction(
		[]solana.Instruction{solana.NewInstruction(set.ProgramID, metas, data)},
		recent,
		solana.TransactionPayer(set.Owner),
	)
	if err != nil {
		return failure("build transaction: %v", err)
	}

	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(set.Owner) {
			return &set.Signer
		}
		return nil
	}); err != nil {
		return failure("sign transaction: %v", err)
	}

	blob, err := tx.MarshalBinary()
	if err != nil {
		return failure("serialize transaction: %v", err)
	}

	sig, err := s.client.SubmitSignedTransaction(ctx, base64.StdEncoding.EncodeToString(blob))
	if err != nil {
		return failure("submit transaction: %v", err)
	}

	s.logger.Info().
		Str("instruction", instruction).
		Str("signature", sig.String()).
		Msg("transaction submitted")

	return Outcome{Success: true, Signature: sig}
}
