package sampler

// Options parameterise signal smoothing.
type Options struct {
	// SampleSize is the number of raw reads averaged into one reading.
	SampleSize int
}

// Sampler maintains the device's smoothed metric. Sample averages a burst
// of raw sensor reads; Update folds a reading into an exponential moving
// average with a smoothing factor of one half, so the memory of the prior
// value halves on every update. The metric starts at 0 and is always
// finite for finite sensor output.
type Sampler struct {
	opts   Options
	sensor Sensor
	metric float64
}

// New constructs a Sampler around a sensor.
func New(opts Options, sensor Sensor) *Sampler {
	if opts.SampleSize <= 0 {
		opts.SampleSize = 20
	}
	return &Sampler{opts: opts, sensor: sensor}
}

// Sample reads SampleSize raw values and returns their arithmetic mean.
func (s *Sampler) Sample() float64 {
	sum := 0.0
	for i := 0; i < s.opts.SampleSize; i++ {
		sum += s.sensor.Read()
	}
	return sum / float64(s.opts.SampleSize)
}

// Update folds an instantaneous reading into the smoothed metric.
func (s *Sampler) Update(reading float64) {
	s.metric = (s.metric + reading) / 2
}

// Metric returns the current smoothed value.
func (s *Sampler) Metric() float64 {
	return s.metric
}
