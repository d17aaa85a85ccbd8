package ledger

import (
	"context"
	"crypto/sha256"

	"github.com/gagliardetto/solana-go"
)

// SelectorLen is the length of an instruction opcode selector.
const SelectorLen = 8

// Client is the ledger collaborator boundary. Everything the device needs
// from the chain goes through this interface: address derivation, balance
// queries, recency tokens, and signed-transaction submission.
type Client interface {
	// FindDerivedAddress computes the program-derived address for the seeds.
	FindDerivedAddress(seeds [][]byte, programID solana.PublicKey) (solana.PublicKey, uint8, error)
	// FindAssociatedAddress computes the associated holding account for an
	// owner and mint.
	FindAssociatedAddress(owner, mint solana.PublicKey) (solana.PublicKey, error)
	// GetBalance returns the lamport balance of an address.
	GetBalance(ctx context.Context, addr solana.PublicKey) (uint64, error)
	// GetTokenBalance returns the raw token amount and mint decimals for the
	// owner's associated holding account.
	GetTokenBalance(ctx context.Context, owner, mint solana.PublicKey) (uint64, uint8, error)
	// GetRecencyToken fetches a fresh blockhash. A zero hash must be treated
	// as unavailable.
	GetRecencyToken(ctx context.Context) (solana.Hash, error)
	// SubmitSignedTransaction submits a base64-encoded signed transaction.
	SubmitSignedTransaction(ctx context.Context, base64Blob string) (solana.Signature, error)
	// OpcodeSelectorFor returns the stable selector bytes for an instruction
	// name.
	OpcodeSelectorFor(name string) []byte
}

// Selector derives the anchor-style opcode selector for an instruction
// name: the first 8 bytes of sha256("global:" + name).
func Selector(name string) []byte {
	sum := sha256.Sum256([]byte("global:" + name))
	out := make([]byte, SelectorLen)
	copy(out, sum[:SelectorLen])
	return out
}
