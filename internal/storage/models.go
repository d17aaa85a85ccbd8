package storage

import "time"

// Submission kinds.
const (
	KindReading = "reading"
	KindReward  = "reward"
)

// MetricReading is one persisted smoothed-metric observation.
type MetricReading struct {
	Device    string
	At        time.Time
	Metric    float64
	CreatedAt time.Time
}

// SubmissionRecord captures one transaction submission attempt.
type SubmissionRecord struct {
	ID        int64
	Device    string
	At        time.Time
	Kind      string
	Success   bool
	Signature *string
	Reason    *string
	CreatedAt time.Time
}
