package pipeline

import (
	"sync/atomic"
	"time"

	"github.com/wegman-software/pbfstream/internal/pbf"
)

// Stats summarizes one run.
type Stats struct {
	Nodes       int64
	Ways        int64
	Relations   int64
	Filtered    int64 // entities dropped by a filter
	Blobs       int64
	BytesRead   int64
	Diagnostics pbf.Diagnostics
	Header      *pbf.Header
	Duration    time.Duration
}

// Entities is the number of entities written to the sinks.
func (s *Stats) Entities() int64 {
	return s.Nodes + s.Ways + s.Relations
}

// liveStats is updated by the scanning goroutine and read by the progress
// reporter.
type liveStats struct {
	nodes     atomic.Int64
	ways      atomic.Int64
	relations atomic.Int64
	filtered  atomic.Int64
}

func (l *liveStats) count(t pbf.EntityType) {
	switch t {
	case pbf.TypeNode:
		l.nodes.Add(1)
	case pbf.TypeWay:
		l.ways.Add(1)
	case pbf.TypeRelation:
		l.relations.Add(1)
	}
}

func (l *liveStats) total() int64 {
	return l.nodes.Load() + l.ways.Load() + l.relations.Load() + l.filtered.Load()
}
