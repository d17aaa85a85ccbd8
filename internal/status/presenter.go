package status

import (
	"github.com/rs/zerolog"
)

// LogPresenter renders status events as structured log lines.
type LogPresenter struct {
	logger zerolog.Logger
}

// NewLogPresenter constructs a log-backed presenter.
func NewLogPresenter(logger zerolog.Logger) *LogPresenter {
	return &LogPresenter{logger: logger.With().Str("component", "status").Logger()}
}

// Present logs the event at a level matching its severity.
func (p *LogPresenter) Present(ev Event) {
	switch ev.Kind {
	case Heartbeat:
		p.logger.Debug().Msg("heartbeat")
	case BalanceReported:
		p.logger.Info().
			Str("sol", ev.SOL.String()).
			Str("tokens", ev.TokenAmount.String()).
			Msg("balance reported")
	case ReadingSubmitted:
		p.logger.Info().
			Float64("metric", ev.Metric).
			Str("signature", ev.Signature).
			Msg("reading submitted")
	case RewardClaimed:
		p.logger.Info().Str("signature", ev.Signature).Msg("reward claimed")
	case ResolutionFailed:
		p.logger.Error().Str("detail", ev.Detail).Msg("account resolution failed")
	case SubmissionFailed:
		p.logger.Warn().Str("detail", ev.Detail).Msg("submission failed")
	default:
		p.logger.Info().Stringer("kind", ev.Kind).Msg("status")
	}
}

var _ Presenter = (*LogPresenter)(nil)

// LedColor is the RGB indicator state.
type LedColor int

const (
	LedOff LedColor = iota
	LedBlue
	LedGreen
	LedRed
)

// Led abstracts the indicator hardware.
type Led interface {
	Set(color LedColor)
}

// LedPresenter drives the RGB indicator: the heartbeat cycles
// blue → green → red, a failed resolution latches solid red.
type LedPresenter struct {
	led     Led
	cycle   int
	latched bool
}

// NewLedPresenter constructs an LED presenter.
func NewLedPresenter(led Led) *LedPresenter {
	return &LedPresenter{led: led}
}

var heartbeatCycle = []LedColor{LedBlue, LedGreen, LedRed}

// Present updates the indicator for the event.
func (p *LedPresenter) Present(ev Event) {
	switch ev.Kind {
	case ResolutionFailed:
		p.latched = true
		p.led.Set(LedRed)
	case Heartbeat:
		if p.latched {
			return
		}
		p.led.Set(heartbeatCycle[p.cycle%len(heartbeatCycle)])
		p.cycle++
	}
}

var _ Presenter = (*LedPresenter)(nil)
