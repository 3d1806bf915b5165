package pipeline

import (
	"testing"
	"time"
)

func TestFormatETA(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "calculating..."},
		{-time.Second, "calculating..."},
		{42 * time.Second, "42s"},
		{3*time.Minute + 5*time.Second, "3m 5s"},
		{2*time.Hour + 7*time.Second, "2h 0m 7s"},
		{1500 * time.Millisecond, "2s"},
	}
	for _, tt := range tests {
		if got := FormatETA(tt.in); got != tt.want {
			t.Errorf("FormatETA(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatThroughput(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{12, "12/s"},
		{1_500, "1.5K/s"},
		{2_300_000, "2.3M/s"},
	}
	for _, tt := range tests {
		if got := FormatThroughput(tt.in); got != tt.want {
			t.Errorf("FormatThroughput(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{5 << 20, "5.0 MB"},
		{3 << 29, "1.5 GB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.in); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestProgressAt(t *testing.T) {
	p := NewProgressTracker(1000, "decode").at(10*time.Second, 500, 250)

	if p.Percentage != 25 {
		t.Errorf("Percentage = %v, want 25", p.Percentage)
	}
	if p.Throughput != 50 {
		t.Errorf("Throughput = %v, want 50", p.Throughput)
	}
	if p.ETA != 30*time.Second {
		t.Errorf("ETA = %v, want 30s", p.ETA)
	}
}

func TestProgressUnknownTotal(t *testing.T) {
	p := NewProgressTracker(0, "stdin").at(time.Second, 10, 4096)

	if p.Percentage != 0 || p.ETA != 0 {
		t.Errorf("got %v%% eta %v, want zero without a total", p.Percentage, p.ETA)
	}
	if p.Throughput != 10 {
		t.Errorf("Throughput = %v, want 10", p.Throughput)
	}
}
