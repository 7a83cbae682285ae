package observe

import (
	"testing"
	"time"
)

func TestFormatEpoch(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "1970-01-01 00:00:00"},
		{1000, "1970-01-01 00:16:40"},
		{2000, "1970-01-01 00:33:20"},
		{1700000000, "2023-11-14 22:13:20"},
		{-1, "1969-12-31 23:59:59"},
	}
	for _, tt := range tests {
		if got := FormatEpoch(tt.in); got != tt.want {
			t.Errorf("FormatEpoch(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatEpochIgnoresLocalZone(t *testing.T) {
	saved := time.Local
	t.Cleanup(func() { time.Local = saved })
	time.Local = time.FixedZone("UTC+9", 9*3600)

	if got := FormatEpoch(0); got != "1970-01-01 00:00:00" {
		t.Errorf("FormatEpoch(0) under UTC+9 = %q", got)
	}
}

func TestFormatEpochMonotonic(t *testing.T) {
	prev := FormatEpoch(0)
	for sec := int64(1); sec < 400*86400; sec += 86399 {
		cur := FormatEpoch(sec)
		if cur < prev {
			t.Fatalf("FormatEpoch(%d) = %q sorts before %q", sec, cur, prev)
		}
		if FormatEpoch(sec) != cur {
			t.Fatalf("FormatEpoch(%d) not stable", sec)
		}
		prev = cur
	}
}

func TestFormatEpochFloatTruncates(t *testing.T) {
	if got := FormatEpochFloat(1000.999); got != "1970-01-01 00:16:40" {
		t.Errorf("FormatEpochFloat(1000.999) = %q", got)
	}
}

func TestTimingDuration(t *testing.T) {
	timing := &Timing{StartedAt: time.Unix(100, 0)}
	timing.CompletedAt = time.Unix(160, 0)
	if timing.Duration() != time.Minute {
		t.Errorf("Duration() = %v, want 1m", timing.Duration())
	}
}
