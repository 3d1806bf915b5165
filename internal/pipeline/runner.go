package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wegman-software/pbfstream/internal/config"
	"github.com/wegman-software/pbfstream/internal/pbf"
	"github.com/wegman-software/pbfstream/internal/sink"
	"github.com/wegman-software/pbfstream/internal/tagfilter"
)

// Filter decides whether an entity reaches the sinks. A filter may rewrite
// the entity's tags in place.
type Filter interface {
	Keep(e pbf.Entity) (bool, error)
}

type tagFilter struct{ f *tagfilter.Filter }

func (t tagFilter) Keep(e pbf.Entity) (bool, error) { return t.f.Keep(e), nil }

// TagFilter adapts a YAML tag filter to Filter.
func TagFilter(f *tagfilter.Filter) Filter {
	return tagFilter{f}
}

type bboxFilter struct{ b *config.BBox }

func (f bboxFilter) Keep(e pbf.Entity) (bool, error) {
	n, ok := e.(*pbf.Node)
	return !ok || f.b.Contains(n.Lat, n.Lon), nil
}

// NodeBBox drops nodes outside b. Ways and relations always pass.
func NodeBBox(b *config.BBox) Filter {
	return bboxFilter{b}
}

// Options configures a Runner.
type Options struct {
	ChunkSize        int
	TotalBytes       int64 // input size for progress percentages, 0 if unknown
	ProgressInterval time.Duration
	ChannelBuffer    int // entities queued per sink
	Filters          []Filter
	Sinks            []sink.Sink

	// OnHeader is called once with the first header block, before any
	// entity is handed to a sink.
	OnHeader func(*pbf.Header)

	Log *zap.Logger
}

// Runner decodes one input and feeds every kept entity to all sinks, in
// stream order. Each sink runs in its own goroutine; the first failure of
// the scanner, a filter or a sink stops the run.
type Runner struct {
	opts Options
	log  *zap.Logger
	live liveStats
}

// NewRunner returns a Runner for a single Run. Sinks are closed by Run.
func NewRunner(opts Options) *Runner {
	if opts.ChannelBuffer <= 0 {
		opts.ChannelBuffer = 1024
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{opts: opts, log: log}
}

// Run decodes r until the end of input or the first error.
func (r *Runner) Run(ctx context.Context, in io.Reader) (*Stats, error) {
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)

	sc := pbf.NewScanner(gctx, in, pbf.WithLogger(r.log), pbf.WithChunkSize(r.opts.ChunkSize))
	defer sc.Close()

	queues := make([]chan pbf.Entity, len(r.opts.Sinks))
	for i, s := range r.opts.Sinks {
		queue := make(chan pbf.Entity, r.opts.ChannelBuffer)
		queues[i] = queue
		g.Go(func() error {
			for e := range queue {
				if err := s.Write(e); err != nil {
					return fmt.Errorf("sink write failed: %w", err)
				}
			}
			return nil
		})
	}

	g.Go(func() error {
		defer func() {
			for _, q := range queues {
				close(q)
			}
		}()
		return r.scan(gctx, sc, queues)
	})

	if r.opts.ProgressInterval > 0 {
		progressCtx, cancelProgress := context.WithCancel(gctx)
		defer cancelProgress()
		go r.reportProgress(progressCtx, sc)
	}

	err := g.Wait()
	if cerr := r.closeSinks(); err == nil {
		err = cerr
	}

	stats := &Stats{
		Nodes:       r.live.nodes.Load(),
		Ways:        r.live.ways.Load(),
		Relations:   r.live.relations.Load(),
		Filtered:    r.live.filtered.Load(),
		Blobs:       sc.Blobs(),
		BytesRead:   int64(sc.BytesRead()),
		Diagnostics: sc.Diagnostics(),
		Header:      sc.Header(),
		Duration:    time.Since(start),
	}
	return stats, err
}

func (r *Runner) scan(ctx context.Context, sc *pbf.Scanner, queues []chan pbf.Entity) error {
	announced := false
	announce := func() {
		if announced || r.opts.OnHeader == nil {
			return
		}
		if h := sc.Header(); h != nil {
			r.opts.OnHeader(h)
			announced = true
		}
	}

	for sc.Scan() {
		announce()
		e := sc.Entity()

		keep, err := r.keep(e)
		if err != nil {
			return err
		}
		if !keep {
			r.live.filtered.Add(1)
			continue
		}
		r.live.count(e.Type())

		for _, q := range queues {
			select {
			case q <- e:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	announce()
	return sc.Err()
}

func (r *Runner) keep(e pbf.Entity) (bool, error) {
	for _, f := range r.opts.Filters {
		keep, err := f.Keep(e)
		if err != nil {
			return false, fmt.Errorf("filter %s %d: %w", e.Type(), e.EntityID(), err)
		}
		if !keep {
			return false, nil
		}
	}
	return true, nil
}

func (r *Runner) closeSinks() error {
	var firstErr error
	for _, s := range r.opts.Sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("sink close failed: %w", err)
		}
	}
	return firstErr
}

// reportProgress periodically logs throughput and byte progress.
func (r *Runner) reportProgress(ctx context.Context, sc *pbf.Scanner) {
	tracker := NewProgressTracker(r.opts.TotalBytes, "decode")
	ticker := time.NewTicker(r.opts.ProgressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p := tracker.Calculate(r.live.total(), int64(sc.BytesRead()))
			fields := []zap.Field{
				zap.Int64("nodes", r.live.nodes.Load()),
				zap.Int64("ways", r.live.ways.Load()),
				zap.Int64("relations", r.live.relations.Load()),
				zap.Int64("filtered", r.live.filtered.Load()),
				zap.Int64("blobs", sc.Blobs()),
				zap.String("read", FormatBytes(int64(sc.BytesRead()))),
				zap.String("rate", FormatThroughput(p.Throughput)),
			}
			if p.Total > 0 {
				fields = append(fields,
					zap.String("progress", fmt.Sprintf("%.1f%%", p.Percentage)),
					zap.String("eta", FormatETA(p.ETA)))
			}
			r.log.Info("Decode progress", fields...)
		}
	}
}
