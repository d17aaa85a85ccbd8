package status

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind discriminates status events.
type Kind int

const (
	// Booting fires once when the controller starts.
	Booting Kind = iota
	// BalanceReported carries the startup balance query result.
	BalanceReported
	// AccountsResolved fires when address resolution succeeds.
	AccountsResolved
	// ResolutionFailed fires when the retry budget is exhausted.
	ResolutionFailed
	// Heartbeat fires on every blink tick.
	Heartbeat
	// ReadingSubmitted fires after an accepted log-reading transaction.
	ReadingSubmitted
	// RewardClaimed fires after an accepted reward claim.
	RewardClaimed
	// SubmissionFailed fires after a rejected or aborted submission.
	SubmissionFailed
)

func (k Kind) String() string {
	switch k {
	case Booting:
		return "booting"
	case BalanceReported:
		return "balance_reported"
	case AccountsResolved:
		return "accounts_resolved"
	case ResolutionFailed:
		return "resolution_failed"
	case Heartbeat:
		return "heartbeat"
	case ReadingSubmitted:
		return "reading_submitted"
	case RewardClaimed:
		return "reward_claimed"
	case SubmissionFailed:
		return "submission_failed"
	default:
		return "unknown"
	}
}

// Event is a typed status notification. The core emits these instead of
// formatting strings; presentation decides how to render them.
type Event struct {
	Kind Kind
	At   time.Time

	// BalanceReported
	SOL         decimal.Decimal
	TokenAmount decimal.Decimal

	// ReadingSubmitted
	Metric float64

	// ReadingSubmitted / RewardClaimed
	Signature string

	// ResolutionFailed / SubmissionFailed
	Detail string
}

// Presenter consumes status events. Implementations must not block; they
// run inside the device's single execution context.
type Presenter interface {
	Present(ev Event)
}

// Multi fans one event out to several presenters.
type Multi []Presenter

// Present delivers the event to every presenter in order.
func (m Multi) Present(ev Event) {
	for _, p := range m {
		p.Present(ev)
	}
}

var _ Presenter = (Multi)(nil)
