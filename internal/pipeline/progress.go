package pipeline

import (
	"fmt"
	"time"
)

// ProgressTracker estimates completion of a run from the bytes framed so
// far against the input size.
type ProgressTracker struct {
	totalBytes  int64
	startTime   time.Time
	description string
}

// NewProgressTracker starts the clock. totalBytes may be 0 when the input
// size is unknown, for example on stdin.
func NewProgressTracker(totalBytes int64, description string) *ProgressTracker {
	return &ProgressTracker{
		totalBytes:  totalBytes,
		startTime:   time.Now(),
		description: description,
	}
}

// Progress is one snapshot of a ProgressTracker.
type Progress struct {
	Current     int64
	Total       int64
	Percentage  float64
	Elapsed     time.Duration
	ETA         time.Duration
	Throughput  float64 // entities per second
	Description string
}

// Calculate returns the progress after count entities and bytesRead input
// bytes.
func (p *ProgressTracker) Calculate(count, bytesRead int64) Progress {
	return p.at(time.Since(p.startTime), count, bytesRead)
}

func (p *ProgressTracker) at(elapsed time.Duration, count, bytesRead int64) Progress {
	out := Progress{
		Current:     count,
		Total:       p.totalBytes,
		Elapsed:     elapsed.Round(time.Second),
		Description: p.description,
	}
	secs := elapsed.Seconds()
	if secs > 0 {
		out.Throughput = float64(count) / secs
	}
	if p.totalBytes <= 0 || bytesRead <= 0 {
		return out
	}

	out.Percentage = min(float64(bytesRead)/float64(p.totalBytes)*100, 100)
	if out.Percentage < 100 && secs > 0 {
		rate := float64(bytesRead) / secs
		remaining := float64(p.totalBytes - bytesRead)
		out.ETA = time.Duration(remaining / rate * float64(time.Second)).Round(time.Second)
	}
	return out
}

// FormatETA renders d as "1h 2m 3s", dropping leading zero units.
func FormatETA(d time.Duration) string {
	if d <= 0 {
		return "calculating..."
	}

	d = d.Round(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second

	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// FormatThroughput renders a per-second rate with K and M suffixes.
func FormatThroughput(perSec float64) string {
	switch {
	case perSec >= 1_000_000:
		return fmt.Sprintf("%.1fM/s", perSec/1_000_000)
	case perSec >= 1_000:
		return fmt.Sprintf("%.1fK/s", perSec/1_000)
	default:
		return fmt.Sprintf("%.0f/s", perSec)
	}
}

// FormatBytes renders a byte count in binary units.
func FormatBytes(n int64) string {
	const (
		KB = 1 << 10
		MB = 1 << 20
		GB = 1 << 30
	)

	switch {
	case n >= GB:
		return fmt.Sprintf("%.1f GB", float64(n)/GB)
	case n >= MB:
		return fmt.Sprintf("%.1f MB", float64(n)/MB)
	case n >= KB:
		return fmt.Sprintf("%.1f KB", float64(n)/KB)
	default:
		return fmt.Sprintf("%d B", n)
	}
}
