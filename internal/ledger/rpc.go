package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"
)

// RPCOptions parameterise the RPC-backed client.
type RPCOptions struct {
	URL     string
	Timeout time.Duration
}

// RPC implements Client against a Solana JSON-RPC endpoint.
type RPC struct {
	opts      RPCOptions
	logger    zerolog.Logger
	client    *rpc.Client
	clientMux sync.Mutex
}

// NewRPC builds an RPC ledger client. The connection is dialled lazily on
// first use.
func NewRPC(opts RPCOptions, logger zerolog.Logger) *RPC {
	return &RPC{opts: opts, logger: logger.With().Str("component", "ledger").Logger()}
}

func (r *RPC) getClient() (*rpc.Client, error) {
	r.clientMux.Lock()
	defer r.clientMux.Unlock()

	if r.client != nil {
		return r.client, nil
	}
	if r.opts.URL == "" {
		return nil, errors.New("ledger rpc url not configured")
	}
	r.client = rpc.New(r.opts.URL)
	return r.client, nil
}

func (r *RPC) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := r.opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

// FindDerivedAddress computes a program-derived address. Purely local.
func (r *RPC) FindDerivedAddress(seeds [][]byte, programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	addr, bump, err := solana.FindProgramAddress(seeds, programID)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("find program address: %w", err)
	}
	return addr, bump, nil
}

// FindAssociatedAddress computes the associated token account address.
func (r *RPC) FindAssociatedAddress(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("find associated address: %w", err)
	}
	return addr, nil
}

// GetBalance returns the lamport balance of an address.
func (r *RPC) GetBalance(ctx context.Context, addr solana.PublicKey) (uint64, error) {
	client, err := r.getClient()
	if err != nil {
		return 0, err
	}

	ctx, cancel := r.callContext(ctx)
	defer cancel()

	res, err := client.GetBalance(ctx, addr, rpc.CommitmentFinalized)
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return res.Value, nil
}

// GetTokenBalance returns the raw amount held in the owner's associated
// account for the mint, plus the mint's decimals.
func (r *RPC) GetTokenBalance(ctx context.Context, owner, mint solana.PublicKey) (uint64, uint8, error) {
	holding, err := r.FindAssociatedAddress(owner, mint)
	if err != nil {
		return 0, 0, err
	}

	client, err := r.getClient()
	if err != nil {
		return 0, 0, err
	}

	ctx, cancel := r.callContext(ctx)
	defer cancel()

	res, err := client.GetTokenAccountBalance(ctx, holding, rpc.CommitmentFinalized)
	if err != nil {
		return 0, 0, fmt.Errorf("get token balance: %w", err)
	}
	if res.Value == nil {
		return 0, 0, errors.New("get token balance: empty response")
	}

	raw, err := strconv.ParseUint(res.Value.Amount, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse token amount %q: %w", res.Value.Amount, err)
	}
	return raw, res.Value.Decimals, nil
}

// GetRecencyToken fetches the latest blockhash. Failures surface as an
// error with a zero hash; callers must not attach a zero hash to a
// transaction.
func (r *RPC) GetRecencyToken(ctx context.Context) (solana.Hash, error) {
	client, err := r.getClient()
	if err != nil {
		return solana.Hash{}, err
	}

	ctx, cancel := r.callContext(ctx)
	defer cancel()

	res, err := client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("get latest blockhash: %w", err)
	}
	if res.Value == nil {
		return solana.Hash{}, errors.New("get latest blockhash: empty response")
	}
	return res.Value.Blockhash, nil
}

// SubmitSignedTransaction sends a base64-encoded signed transaction blob.
func (r *RPC) SubmitSignedTransaction(ctx context.Context, base64Blob string) (solana.Signature, error) {
	client, err := r.getClient()
	if err != nil {
		return solana.Signature{}, err
	}

	ctx, cancel := r.callContext(ctx)
	defer cancel()

	sig, err := client.SendEncodedTransaction(ctx, base64Blob)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("send transaction: %w", err)
	}

	r.logger.Debug().Str("signature", sig.String()).Msg("transaction accepted")
	return sig, nil
}

// OpcodeSelectorFor returns the selector for an instruction name.
func (r *RPC) OpcodeSelectorFor(name string) []byte {
	return Selector(name)
}

var _ Client = (*RPC)(nil)
