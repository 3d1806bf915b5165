// Package sink holds the consumers the decoded entity stream is written to.
package sink

import (
	"slices"

	"github.com/goccy/go-json"

	"github.com/wegman-software/pbfstream/internal/pbf"
)

// Sink consumes entities in stream order. Sinks are driven from a single
// goroutine; Close flushes buffered output.
type Sink interface {
	Write(e pbf.Entity) error
	Close() error
}

// Counter counts entities by type.
type Counter struct {
	Nodes     int64
	Ways      int64
	Relations int64
}

func (c *Counter) Write(e pbf.Entity) error {
	switch e.Type() {
	case pbf.TypeNode:
		c.Nodes++
	case pbf.TypeWay:
		c.Ways++
	case pbf.TypeRelation:
		c.Relations++
	}
	return nil
}

func (c *Counter) Close() error { return nil }

// Total is the number of entities counted.
func (c *Counter) Total() int64 {
	return c.Nodes + c.Ways + c.Relations
}

// tagsJSON encodes tags as a JSON object; nil tags encode as {}.
func tagsJSON(tags pbf.Tags) string {
	if len(tags) == 0 {
		return "{}"
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// sortedKeys returns the tag keys in byte order.
func sortedKeys(tags pbf.Tags) []string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
