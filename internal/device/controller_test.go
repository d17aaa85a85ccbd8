package device

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"heartbeat-beacon/internal/accounts"
	"heartbeat-beacon/internal/ledger"
	"heartbeat-beacon/internal/sampler"
	"heartbeat-beacon/internal/scheduler"
	"heartbeat-beacon/internal/status"
	"heartbeat-beacon/internal/submitter"
)

// fakeClient simulates the full ledger boundary for end-to-end runs.
type fakeClient struct {
	failDerivation bool
	submitCalls    int
	balanceCalls   int
}

func (f *fakeClient) FindDerivedAddress(seeds [][]byte, programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	if f.failDerivation {
		return solana.PublicKey{}, 0, errors.New("rpc not reachable")
	}
	return solana.FindProgramAddress(seeds, programID)
}

func (f *fakeClient) FindAssociatedAddress(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	return addr, err
}

func (f *fakeClient) GetBalance(ctx context.Context, addr solana.PublicKey) (uint64, error) {
	f.balanceCalls++
	return 1_500_000_000, nil
}

func (f *fakeClient) GetTokenBalance(ctx context.Context, owner, mint solana.PublicKey) (uint64, uint8, error) {
	return 250_000, 6, nil
}

func (f *fakeClient) GetRecencyToken(ctx context.Context) (solana.Hash, error) {
	var h solana.Hash
	h[0] = 1
	return h, nil
}

func (f *fakeClient) SubmitSignedTransaction(ctx context.Context, blob string) (solana.Signature, error) {
	f.submitCalls++
	return solana.Signature{1}, nil
}

func (f *fakeClient) OpcodeSelectorFor(name string) []byte {
	return ledger.Selector(name)
}

var _ ledger.Client = (*fakeClient)(nil)

type countingSensor struct {
	reads int
}

func (s *countingSensor) Read() float64 {
	s.reads++
	return 72
}

// recordingPresenter keeps the event kinds it saw.
type recordingPresenter struct {
	kinds []status.Kind
}

func (p *recordingPresenter) Present(ev status.Event) {
	p.kinds = append(p.kinds, ev.Kind)
}

func (p *recordingPresenter) count(kind status.Kind) int {
	n := 0
	for _, k := range p.kinds {
		if k == kind {
			n++
		}
	}
	return n
}

func testIdentity(t *testing.T) Identity {
	t.Helper()
	signer, err := solana.NewRandomPrivateKey()
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}
	return Identity{
		Owner:     signer.PublicKey(),
		Signer:    signer,
		ProgramID: solana.MustPublicKeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"),
		Mint:      solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112"),
	}
}

const sampleSize = 20

func newTestController(t *testing.T, client *fakeClient, sensor sampler.Sensor, presenter status.Presenter) (*Controller, *scheduler.Scheduler) {
	t.Helper()

	logger := zerolog.Nop()
	sched := scheduler.New(scheduler.Options{Poll: 10 * time.Millisecond}, logger)
	samp := sampler.New(sampler.Options{SampleSize: sampleSize}, sensor)
	resolver := accounts.New(accounts.Options{MaxAttempts: 3, Backoff: time.Millisecond}, client, logger)
	sub := submitter.New(submitter.Options{}, client, logger)

	opts := Options{
		Name:          "bench-01",
		BlinkPeriod:   time.Second,
		SamplePeriod:  50 * time.Millisecond,
		ReadingPeriod: 6 * time.Second,
		RewardPeriod:  60 * time.Second,
	}

	ctrl := New(opts, testIdentity(t), sched, samp, client, resolver, sub, presenter, nil, nil, nil, logger)
	return ctrl, sched
}

func driveTicks(sched *scheduler.Scheduler, total, granularity time.Duration) {
	start := time.Unix(0, 0)
	for elapsed := time.Duration(0); elapsed <= total; elapsed += granularity {
		sched.Tick(context.Background(), start.Add(elapsed))
	}
}

func TestReadyRunCadence(t *testing.T) {
	client := &fakeClient{}
	sensor := &countingSensor{}
	presenter := &recordingPresenter{}
	ctrl, sched := newTestController(t, client, sensor, presenter)

	if err := ctrl.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if ctrl.State() != Ready {
		t.Fatalf("state = %v, want Ready", ctrl.State())
	}
	if client.balanceCalls != 1 {
		t.Fatalf("expected one startup balance query, got %d", client.balanceCalls)
	}
	if presenter.count(status.BalanceReported) != 1 {
		t.Fatal("startup must report the balance")
	}
	if presenter.count(status.AccountsResolved) != 1 {
		t.Fatal("successful resolution must be presented")
	}

	driveTicks(sched, 12*time.Second, 10*time.Millisecond)

	if client.submitCalls != 2 {
		t.Fatalf("expected exactly 2 reading submissions over 12s, got %d", client.submitCalls)
	}
	sampleRuns := sensor.reads / sampleSize
	if sampleRuns < 239 || sampleRuns > 241 {
		t.Fatalf("expected ~240 sample runs, got %d", sampleRuns)
	}
	if presenter.count(status.Heartbeat) < 11 {
		t.Fatalf("expected ~12 heartbeats, got %d", presenter.count(status.Heartbeat))
	}
	if presenter.count(status.ReadingSubmitted) != 2 {
		t.Fatalf("expected 2 reading-submitted events, got %d", presenter.count(status.ReadingSubmitted))
	}
}

func TestDegradedRunKeepsSamplingAndNeverSubmits(t *testing.T) {
	client := &fakeClient{failDerivation: true}
	sensor := &countingSensor{}
	presenter := &recordingPresenter{}
	ctrl, sched := newTestController(t, client, sensor, presenter)

	if err := ctrl.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if ctrl.State() != Degraded {
		t.Fatalf("state = %v, want Degraded", ctrl.State())
	}
	if presenter.count(status.ResolutionFailed) != 1 {
		t.Fatal("permanent resolution failure must be presented")
	}

	for _, name := range sched.TaskNames() {
		if name == "submit-reading" || name == "submit-reward" {
			t.Fatalf("degraded controller must not register %s", name)
		}
	}

	driveTicks(sched, 12*time.Second, 10*time.Millisecond)

	if client.submitCalls != 0 {
		t.Fatalf("degraded device must never submit, got %d calls", client.submitCalls)
	}
	if sensor.reads == 0 {
		t.Fatal("sampling must continue in degraded mode")
	}
}

func TestRewardTaskRegisteredOnlyForEarnerFlavor(t *testing.T) {
	client := &fakeClient{}
	ctrl, sched := newTestController(t, client, &countingSensor{}, &recordingPresenter{})
	ctrl.opts.ClaimsReward = true

	if err := ctrl.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	found := false
	for _, name := range sched.TaskNames() {
		if name == "submit-reward" {
			found = true
		}
	}
	if !found {
		t.Fatal("earner flavor must register the reward task")
	}
}

func TestSubmissionFailureKeepsTaskAlive(t *testing.T) {
	client := &fakeClient{}
	presenter := &recordingPresenter{}
	ctrl, sched := newTestController(t, client, &countingSensor{}, presenter)

	if err := ctrl.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	// Break submissions after bootstrap: recency token stays valid but the
	// ledger rejects everything.
	rejecting := &rejectingClient{fakeClient: client, err: errors.New("node behind")}
	ctrl.sub = submitter.New(submitter.Options{}, rejecting, zerolog.Nop())

	driveTicks(sched, 12*time.Second, 10*time.Millisecond)

	if rejecting.attempts != 2 {
		t.Fatalf("failed submissions must keep retrying on schedule, got %d attempts", rejecting.attempts)
	}
	if presenter.count(status.SubmissionFailed) != 2 {
		t.Fatalf("each failed attempt must be presented, got %d", presenter.count(status.SubmissionFailed))
	}
}

type rejectingClient struct {
	*fakeClient
	err      error
	attempts int
}

func (r *rejectingClient) SubmitSignedTransaction(ctx context.Context, blob string) (solana.Signature, error) {
	r.attempts++
	return solana.Signature{}, r.err
}
