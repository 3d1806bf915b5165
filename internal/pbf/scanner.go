package pbf

import (
	"context"
	"io"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type options struct {
	log       *zap.Logger
	chunkSize int
}

// Option configures a Scanner.
type Option func(*options)

// WithLogger sets the logger used for diagnostics.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithChunkSize sets how many bytes are read from the input at a time.
func WithChunkSize(n int) Option {
	return func(o *options) { o.chunkSize = n }
}

// Scanner decodes an OSM PBF stream into entities.
//
// Framing and decompression run in their own goroutines, connected by
// unbuffered channels, so at most one blob waits between stages and at most
// one decompression is in flight. Primitive decoding happens lazily inside
// Scan. Any error stops every stage; Scan then returns false and Err
// reports it.
type Scanner struct {
	cancel context.CancelFunc
	group  *errgroup.Group
	blocks chan DecodedBlock

	session *Session
	batch   *Batch
	entity  Entity
	err     error
	closed  bool

	bytesRead atomic.Uint64
	blobs     atomic.Int64
}

// NewScanner starts decoding r. Close must be called to release the
// stage goroutines.
func NewScanner(ctx context.Context, r io.Reader, opts ...Option) *Scanner {
	o := options{log: zap.NewNop(), chunkSize: DefaultChunkSize}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(ctx)
	group, gctx := errgroup.WithContext(ctx)

	s := &Scanner{
		cancel:  cancel,
		group:   group,
		blocks:  make(chan DecodedBlock),
		session: NewSession(o.log),
	}

	records := make(chan BlobRecord)
	group.Go(func() error {
		defer close(records)
		return s.frame(gctx, NewBlobReader(r, o.chunkSize), records)
	})
	group.Go(func() error {
		defer close(s.blocks)
		return s.inflate(gctx, records)
	})

	return s
}

func (s *Scanner) frame(ctx context.Context, br *BlobReader, out chan<- BlobRecord) error {
	for {
		rec, err := br.Next()
		s.bytesRead.Store(br.Offset())
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		select {
		case out <- rec:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Scanner) inflate(ctx context.Context, in <-chan BlobRecord) error {
	d := NewDecompressor()
	for rec := range in {
		block, err := d.Decompress(rec)
		if err != nil {
			return err
		}
		select {
		case s.blocks <- block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Scan advances to the next entity.
func (s *Scanner) Scan() bool {
	if s.err != nil || s.closed {
		return false
	}
	for {
		if s.batch != nil {
			if e, ok := s.batch.Next(); ok {
				s.entity = e
				return true
			}
			s.batch = nil
		}

		block, ok := <-s.blocks
		if !ok {
			s.err = s.group.Wait()
			s.entity = nil
			return false
		}
		s.blobs.Add(1)

		batch, err := s.session.Decode(block)
		if err != nil {
			s.stop(err)
			return false
		}
		s.batch = batch
	}
}

func (s *Scanner) stop(err error) {
	s.err = err
	s.entity = nil
	s.cancel()
	for range s.blocks {
	}
	s.group.Wait()
}

// Entity returns the entity found by the last successful Scan.
func (s *Scanner) Entity() Entity {
	return s.entity
}

// Err returns the error that ended the scan, or nil at a clean end of
// input.
func (s *Scanner) Err() error {
	return s.err
}

// Close stops the scan and waits for the stage goroutines to exit. Decode
// failures are reported by Err, not by Close.
func (s *Scanner) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.cancel()
	for range s.blocks {
	}
	s.group.Wait()
	return nil
}

// Header returns the last header block seen, or nil.
func (s *Scanner) Header() *Header {
	return s.session.Header()
}

// Diagnostics returns the non-fatal condition counters.
func (s *Scanner) Diagnostics() Diagnostics {
	return s.session.Diagnostics()
}

// BytesRead is the number of input bytes framed so far. It is safe to call
// from any goroutine.
func (s *Scanner) BytesRead() uint64 {
	return s.bytesRead.Load()
}

// Blobs is the number of blobs decoded so far.
func (s *Scanner) Blobs() int64 {
	return s.blobs.Load()
}
