package observe

import "time"

// TimestampLayout is the date format the provenance tool accepts for -s/-e.
const TimestampLayout = "2006-01-02 15:04:05"

// FormatEpoch renders epoch seconds as UTC "YYYY-MM-DD HH:MM:SS", whatever the host TZ.
func FormatEpoch(sec int64) string {
	return time.Unix(sec, 0).UTC().Format(TimestampLayout)
}

// FormatEpochFloat truncates fractional seconds before formatting.
func FormatEpochFloat(sec float64) string {
	return FormatEpoch(int64(sec))
}

// Timing records start/end timestamps only
type Timing struct {
	StartedAt   time.Time
	CompletedAt time.Time
}

// NewTiming creates timing with current start time
func NewTiming() *Timing {
	return &Timing{
		StartedAt: time.Now(),
	}
}

// Complete records completion time
func (t *Timing) Complete() {
	t.CompletedAt = time.Now()
}

// Duration returns elapsed time, up to now if not completed
func (t *Timing) Duration() time.Duration {
	if t.CompletedAt.IsZero() {
		return time.Since(t.StartedAt)
	}
	return t.CompletedAt.Sub(t.StartedAt)
}
