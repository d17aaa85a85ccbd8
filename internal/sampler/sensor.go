package sampler

import "math"

// Sensor abstracts raw signal acquisition. Implementations return one
// instantaneous reading per call; acquisition electronics live behind this
// boundary.
type Sensor interface {
	Read() float64
}

// SyntheticOptions tune the hardware-free waveform source.
type SyntheticOptions struct {
	Baseline  float64
	Amplitude float64
	// PeriodReads is the number of reads per full waveform cycle.
	PeriodReads int
}

// Synthetic produces a deterministic sine waveform around a baseline. It
// stands in for the pulse sensor on bench setups and in tests.
type Synthetic struct {
	opts SyntheticOptions
	n    int
}

// NewSynthetic constructs a synthetic sensor.
func NewSynthetic(opts SyntheticOptions) *Synthetic {
	if opts.PeriodReads <= 0 {
		opts.PeriodReads = 200
	}
	return &Synthetic{opts: opts}
}

// Read returns the next point on the waveform.
func (s *Synthetic) Read() float64 {
	phase := 2 * math.Pi * float64(s.n%s.opts.PeriodReads) / float64(s.opts.PeriodReads)
	s.n++
	return s.opts.Baseline + s.opts.Amplitude*math.Sin(phase)
}

var _ Sensor = (*Synthetic)(nil)
