package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewCollectorClampsInterval(t *testing.T) {
	c := NewCollector(10*time.Millisecond, zap.NewNop())
	if c.interval != 30*time.Second {
		t.Errorf("interval = %v, want 30s", c.interval)
	}
	if NewCollector(2*time.Second, zap.NewNop()).interval != 2*time.Second {
		t.Error("valid interval was changed")
	}
}

func TestCollectLogsSample(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	c := NewCollector(time.Second, zap.New(core))

	if c.GetMetrics() != nil {
		t.Fatal("metrics before first sample")
	}
	c.collect()

	m := c.GetMetrics()
	if m == nil {
		t.Fatal("no metrics after collect")
	}
	if m.Goroutines < 1 {
		t.Errorf("Goroutines = %d", m.Goroutines)
	}
	entries := logs.FilterMessage("System metrics").All()
	if len(entries) != 1 {
		t.Fatalf("got %d metric log entries, want 1", len(entries))
	}
	if _, ok := entries[0].ContextMap()["rss"]; !ok {
		t.Error("rss field missing")
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	c := NewCollector(time.Hour, zap.New(core))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
	if logs.FilterMessage("Metrics collection stopped").Len() != 1 {
		t.Error("stop not logged")
	}
}

func TestIOWaitShare(t *testing.T) {
	last := cpu.TimesStat{User: 10, Idle: 10, Iowait: 0}
	cur := cpu.TimesStat{User: 15, Idle: 13, Iowait: 2}
	if got := iowaitShare(last, cur); got != 20 {
		t.Errorf("iowaitShare = %v, want 20", got)
	}
	if got := iowaitShare(cur, cur); got != 0 {
		t.Errorf("iowaitShare without progress = %v, want 0", got)
	}
}

func TestFormat(t *testing.T) {
	if got := formatMB(3 << 20); got != "3.0 MB" {
		t.Errorf("formatMB = %q", got)
	}
	if got := formatMBps(12.34); got != "12.3 MB/s" {
		t.Errorf("formatMBps = %q", got)
	}
}
