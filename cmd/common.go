package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/wegman-software/pbfstream/internal/filter"
	"github.com/wegman-software/pbfstream/internal/logger"
	"github.com/wegman-software/pbfstream/internal/metrics"
	"github.com/wegman-software/pbfstream/internal/pbf"
	"github.com/wegman-software/pbfstream/internal/pipeline"
	"github.com/wegman-software/pbfstream/internal/sink"
	"github.com/wegman-software/pbfstream/internal/source"
	"github.com/wegman-software/pbfstream/internal/tagfilter"
)

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// startMetrics runs the resource collector until ctx is done.
func startMetrics(ctx context.Context) {
	if cfg.MetricsInterval <= 0 {
		return
	}
	log := logger.Get()
	go metrics.NewCollector(cfg.MetricsInterval, log).Start(ctx)
	log.Info("System metrics collection started", zap.Duration("interval", cfg.MetricsInterval))
}

// buildFilters returns the filters selected by the configuration, in the
// order bbox, tag filter, Lua script. The returned func releases them.
func buildFilters() ([]pipeline.Filter, func(), error) {
	log := logger.Get()
	var filters []pipeline.Filter
	cleanup := func() {}

	if cfg.BBox != nil && cfg.BBox.IsSet {
		filters = append(filters, pipeline.NodeBBox(cfg.BBox))
	}

	if cfg.TagFilterFile != "" {
		fc, err := tagfilter.LoadConfig(cfg.TagFilterFile)
		if err != nil {
			return nil, cleanup, err
		}
		tf := tagfilter.NewFilter(fc)
		if tf.HasFilter() {
			filters = append(filters, pipeline.TagFilter(tf))
		} else {
			log.Warn("Tag filter file defines no rules", zap.String("file", cfg.TagFilterFile))
		}
	}

	if cfg.LuaScript != "" {
		rt := filter.NewRuntime(log)
		if err := rt.LoadFile(cfg.LuaScript); err != nil {
			rt.Close()
			return nil, cleanup, err
		}
		if !rt.HasCallbacks() {
			log.Warn("Lua script defines no process callbacks", zap.String("file", cfg.LuaScript))
		}
		filters = append(filters, rt)
		cleanup = rt.Close
	}

	return filters, cleanup, nil
}

// runPipeline decodes the configured input into sinks.
func runPipeline(ctx context.Context, sinks []sink.Sink, onHeader func(*pbf.Header)) (*pipeline.Stats, error) {
	log := logger.Get()

	src, err := source.Open(cfg.InputFile, cfg.UseMmap)
	if err != nil {
		for _, s := range sinks {
			s.Close()
		}
		return nil, err
	}
	defer src.Close()

	filters, cleanup, err := buildFilters()
	defer cleanup()
	if err != nil {
		for _, s := range sinks {
			s.Close()
		}
		return nil, fmt.Errorf("failed to set up filters: %w", err)
	}

	log.Info("Starting decode",
		zap.String("input", src.Path),
		zap.String("size", pipeline.FormatBytes(src.Size)),
		zap.Bool("mmap", src.Mapped()),
		zap.Int("filters", len(filters)),
	)

	runner := pipeline.NewRunner(pipeline.Options{
		ChunkSize:        cfg.ChunkSize,
		TotalBytes:       src.Size,
		ProgressInterval: cfg.ProgressInterval,
		ChannelBuffer:    cfg.ChannelBuffer,
		Filters:          filters,
		Sinks:            sinks,
		OnHeader:         onHeader,
		Log:              log,
	})
	return runner.Run(ctx, src)
}

func logStats(msg string, stats *pipeline.Stats) {
	secs := stats.Duration.Seconds()
	fields := []zap.Field{
		zap.Duration("duration", stats.Duration.Round(time.Millisecond)),
		zap.Int64("nodes", stats.Nodes),
		zap.Int64("ways", stats.Ways),
		zap.Int64("relations", stats.Relations),
		zap.Int64("filtered", stats.Filtered),
		zap.Int64("blobs", stats.Blobs),
		zap.String("read", pipeline.FormatBytes(stats.BytesRead)),
	}
	if secs > 0 {
		fields = append(fields,
			zap.String("rate", pipeline.FormatThroughput(float64(stats.Entities()+stats.Filtered)/secs)),
			zap.Float64("throughput_mb_s", float64(stats.BytesRead)/(1024*1024)/secs))
	}
	for kind, n := range stats.Diagnostics {
		fields = append(fields, zap.Int64(string(kind), n))
	}
	logger.Get().Info(msg, fields...)
}

// createOutput opens the output path, where "-" is stdout. The returned
// func closes it.
func createOutput(path string) (*os.File, func() error, error) {
	if path == "" || path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output: %w", err)
	}
	return f, f.Close, nil
}
