package submitter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"heartbeat-beacon/internal/accounts"
	"heartbeat-beacon/internal/ledger"
)

// fakeClient hands out a scripted recency token and records submissions.
type fakeClient struct {
	token    solana.Hash
	tokenErr error

	submitErr   error
	submitted   []string
	submitCalls int
}

func (f *fakeClient) FindDerivedAddress(seeds [][]byte, programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(seeds, programID)
}

func (f *fakeClient) FindAssociatedAddress(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	return addr, err
}

func (f *fakeClient) GetBalance(ctx context.Context, addr solana.PublicKey) (uint64, error) {
	return 0, nil
}

func (f *fakeClient) GetTokenBalance(ctx context.Context, owner, mint solana.PublicKey) (uint64, uint8, error) {
	return 0, 0, nil
}

func (f *fakeClient) GetRecencyToken(ctx context.Context) (solana.Hash, error) {
	return f.token, f.tokenErr
}

func (f *fakeClient) SubmitSignedTransaction(ctx context.Context, blob string) (solana.Signature, error) {
	f.submitCalls++
	if f.submitErr != nil {
		return solana.Signature{}, f.submitErr
	}
	f.submitted = append(f.submitted, blob)
	return solana.Signature{1}, nil
}

func (f *fakeClient) OpcodeSelectorFor(name string) []byte {
	return ledger.Selector(name)
}

var _ ledger.Client = (*fakeClient)(nil)

func testAccountSet(t *testing.T) *accounts.AccountSet {
	t.Helper()

	signer, err := solana.NewRandomPrivateKey()
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}

	owner := signer.PublicKey()
	program := solana.MustPublicKeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	mint := solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")

	data, _, err := solana.FindProgramAddress([][]byte{[]byte("heartbeat"), owner.Bytes()}, program)
	if err != nil {
		t.Fatalf("derive data account: %v", err)
	}
	authority, _, err := solana.FindProgramAddress([][]byte{[]byte("authority")}, program)
	if err != nil {
		t.Fatalf("derive authority: %v", err)
	}
	holding, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		t.Fatalf("derive holding account: %v", err)
	}

	return &accounts.AccountSet{
		Owner:            owner,
		Signer:           signer,
		Mint:             mint,
		ProgramID:        program,
		DataAccount:      data,
		AuthorityAccount: authority,
		HoldingAccount:   holding,
	}
}

func freshToken() solana.Hash {
	var h solana.Hash
	h[0] = 0xAB
	return h
}

func decodeSubmitted(t *testing.T, blob string) *solana.Transaction {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		t.Fatalf("submitted blob is not base64: %v", err)
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		t.Fatalf("submitted blob is not a transaction: %v", err)
	}
	return tx
}

func TestEmptyRecencyTokenAbortsWithoutSubmitting(t *testing.T) {
	client := &fakeClient{} // zero token
	sub := New(Options{}, client, zerolog.Nop())
	set := testAccountSet(t)

	if out := sub.SubmitReading(context.Background(), set, 71.5); out.Success {
		t.Fatal("reading must fail without a recency token")
	}
	if out := sub.SubmitRewardClaim(context.Background(), set); out.Success {
		t.Fatal("reward claim must fail without a recency token")
	}
	if client.submitCalls != 0 {
		t.Fatalf("nothing must be submitted, got %d calls", client.submitCalls)
	}
}

func TestRecencyTokenFetchErrorAbortsWithoutSubmitting(t *testing.T) {
	client := &fakeClient{tokenErr: errors.New("rpc timeout")}
	sub := New(Options{}, client, zerolog.Nop())

	out := sub.SubmitReading(context.Background(), testAccountSet(t), 71.5)
	if out.Success {
		t.Fatal("reading must fail when the token fetch errors")
	}
	if out.Reason == "" {
		t.Fatal("failed outcome must carry a reason")
	}
	if client.submitCalls != 0 {
		t.Fatal("nothing must be submitted")
	}
}

func TestSubmitReadingEncodesMetricLittleEndian(t *testing.T) {
	client := &fakeClient{token: freshToken()}
	sub := New(Options{ReadingInstruction: "log_reading"}, client, zerolog.Nop())
	set := testAccountSet(t)

	const metric = 72.25
	out := sub.SubmitReading(context.Background(), set, metric)
	if !out.Success {
		t.Fatalf("expected success, got reason %q", out.Reason)
	}

	tx := decodeSubmitted(t, client.submitted[0])
	if len(tx.Message.Instructions) != 1 {
		t.Fatalf("expected 1 instruction, got %d", len(tx.Message.Instructions))
	}

	data := []byte(tx.Message.Instructions[0].Data)
	selector := ledger.Selector("log_reading")
	if !bytes.Equal(data[:ledger.SelectorLen], selector) {
		t.Fatalf("selector mismatch: %x vs %x", data[:ledger.SelectorLen], selector)
	}
	if len(data) != ledger.SelectorLen+4 {
		t.Fatalf("payload must be 4 bytes, total data %d", len(data))
	}
	got := math.Float32frombits(binary.LittleEndian.Uint32(data[ledger.SelectorLen:]))
	if got != float32(metric) {
		t.Fatalf("decoded metric %v, want %v", got, float32(metric))
	}

	if tx.Message.RecentBlockhash != freshToken() {
		t.Fatal("transaction must carry the fetched recency token")
	}
	if len(tx.Signatures) != 1 || tx.Signatures[0].IsZero() {
		t.Fatal("transaction must be signed by the owner")
	}
}

func TestSubmitRewardClaimHasEmptyPayloadAndTokenAccounts(t *testing.T) {
	client := &fakeClient{token: freshToken()}
	sub := New(Options{RewardInstruction: "claim_reward"}, client, zerolog.Nop())
	set := testAccountSet(t)

	out := sub.SubmitRewardClaim(context.Background(), set)
	if !out.Success {
		t.Fatalf("expected success, got reason %q", out.Reason)
	}

	tx := decodeSubmitted(t, client.submitted[0])
	data := []byte(tx.Message.Instructions[0].Data)
	if len(data) != ledger.SelectorLen {
		t.Fatalf("reward payload must be empty, data length %d", len(data))
	}
	if !bytes.Equal(data, ledger.Selector("claim_reward")) {
		t.Fatal("reward selector mismatch")
	}

	found := false
	for _, key := range tx.Message.AccountKeys {
		if key.Equals(set.HoldingAccount) {
			found = true
		}
	}
	if !found {
		t.Fatal("reward claim must reference the holding account")
	}
}

func TestMinimalTemplateOmitsTokenAccounts(t *testing.T) {
	client := &fakeClient{token: freshToken()}
	sub := New(Options{Template: TemplateMinimal}, client, zerolog.Nop())
	set := testAccountSet(t)

	out := sub.SubmitReading(context.Background(), set, 70)
	if !out.Success {
		t.Fatalf("expected success, got reason %q", out.Reason)
	}

	tx := decodeSubmitted(t, client.submitted[0])
	for _, key := range tx.Message.AccountKeys {
		if key.Equals(set.HoldingAccount) || key.Equals(set.Mint) || key.Equals(solana.TokenProgramID) {
			t.Fatalf("minimal template must omit token accounts, found %s", key)
		}
	}
}

func TestSubmissionRejectionSurfacesAsFailedOutcome(t *testing.T) {
	client := &fakeClient{token: freshToken(), submitErr: errors.New("blockhash not found")}
	sub := New(Options{}, client, zerolog.Nop())

	out := sub.SubmitReading(context.Background(), testAccountSet(t), 70)
	if out.Success {
		t.Fatal("rejected submission must fail")
	}
	if out.Reason == "" {
		t.Fatal("failed outcome must carry the rejection reason")
	}
	if client.submitCalls != 1 {
		t.Fatalf("expected exactly one submission attempt, got %d", client.submitCalls)
	}
}

func TestParseTemplate(t *testing.T) {
	cases := []struct {
		in      string
		want    Template
		wantErr bool
	}{
		{"", TemplateFull, false},
		{"full", TemplateFull, false},
		{"minimal", TemplateMinimal, false},
		{"bogus", TemplateFull, true},
	}
	for _, c := range cases {
		got, err := ParseTemplate(c.in)
		if (err != nil) != c.wantErr {
			t.Fatalf("ParseTemplate(%q) err = %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("ParseTemplate(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}
