package pipeline

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/wegman-software/pbfstream/internal/config"
	"github.com/wegman-software/pbfstream/internal/pbf"
	"github.com/wegman-software/pbfstream/internal/pbf/pbftest"
	"github.com/wegman-software/pbfstream/internal/sink"
	"github.com/wegman-software/pbfstream/internal/tagfilter"
)

// recorder keeps every entity it is given.
type recorder struct {
	ids    []int64
	closed bool
	failAt int // fail on the failAt-th write when > 0
}

func (r *recorder) Write(e pbf.Entity) error {
	if r.failAt > 0 && len(r.ids)+1 == r.failAt {
		return errors.New("disk full")
	}
	r.ids = append(r.ids, e.EntityID())
	return nil
}

func (r *recorder) Close() error {
	r.closed = true
	return nil
}

type filterFunc func(pbf.Entity) (bool, error)

func (f filterFunc) Keep(e pbf.Entity) (bool, error) { return f(e) }

func sampleInput() []byte {
	return pbftest.Stream(pbftest.Header(), pbftest.Data(pbftest.Sample()))
}

func TestRunnerWritesToEverySink(t *testing.T) {
	input := sampleInput()
	var counter sink.Counter
	rec := &recorder{}

	stats, err := NewRunner(Options{Sinks: []sink.Sink{&counter, rec}}).Run(context.Background(), bytes.NewReader(input))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if stats.Nodes != 3 || stats.Ways != 1 || stats.Relations != 1 {
		t.Errorf("stats = %d/%d/%d, want 3/1/1", stats.Nodes, stats.Ways, stats.Relations)
	}
	if stats.Entities() != 5 {
		t.Errorf("Entities() = %d, want 5", stats.Entities())
	}
	if stats.Blobs != 2 {
		t.Errorf("Blobs = %d, want 2", stats.Blobs)
	}
	if stats.BytesRead != int64(len(input)) {
		t.Errorf("BytesRead = %d, want %d", stats.BytesRead, len(input))
	}
	if stats.Header == nil || stats.Header.WritingProgram != "pbftest" {
		t.Errorf("Header = %+v", stats.Header)
	}
	if counter.Total() != 5 {
		t.Errorf("counter total = %d, want 5", counter.Total())
	}

	want := []int64{1, 2, 3, 10, 100}
	if len(rec.ids) != len(want) {
		t.Fatalf("recorded %v, want %v", rec.ids, want)
	}
	for i := range want {
		if rec.ids[i] != want[i] {
			t.Errorf("ids[%d] = %d, want %d", i, rec.ids[i], want[i])
		}
	}
	if !rec.closed {
		t.Error("sink was not closed")
	}
}

func TestRunnerTagFilter(t *testing.T) {
	f := tagfilter.NewFilter(&tagfilter.Config{
		Nodes:     &tagfilter.Rules{DropUntagged: true},
		Relations: &tagfilter.Rules{Exclude: map[string][]string{"type": {"route"}}},
	})
	rec := &recorder{}

	stats, err := NewRunner(Options{
		Filters: []Filter{TagFilter(f)},
		Sinks:   []sink.Sink{rec},
	}).Run(context.Background(), bytes.NewReader(sampleInput()))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if stats.Filtered != 3 {
		t.Errorf("Filtered = %d, want 3", stats.Filtered)
	}
	if stats.Nodes != 1 || stats.Ways != 1 || stats.Relations != 0 {
		t.Errorf("stats = %d/%d/%d, want 1/1/0", stats.Nodes, stats.Ways, stats.Relations)
	}
	if len(rec.ids) != 2 || rec.ids[0] != 1 || rec.ids[1] != 10 {
		t.Errorf("recorded %v, want [1 10]", rec.ids)
	}
}

func TestNodeBBox(t *testing.T) {
	// sample nodes sit at 51.5/-0.1 and step 1e-5 degrees north east
	bbox, err := config.ParseBBox("-0.10001,51.49999,-0.099995,51.500005")
	if err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}

	stats, err := NewRunner(Options{
		Filters: []Filter{NodeBBox(bbox)},
		Sinks:   []sink.Sink{rec},
	}).Run(context.Background(), bytes.NewReader(sampleInput()))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Nodes != 1 || stats.Filtered != 2 {
		t.Errorf("nodes %d filtered %d, want 1 and 2", stats.Nodes, stats.Filtered)
	}
	if stats.Ways != 1 || stats.Relations != 1 {
		t.Error("ways and relations must pass a bbox filter")
	}
}

func TestRunnerFiltersRunInOrder(t *testing.T) {
	var second int
	filters := []Filter{
		filterFunc(func(e pbf.Entity) (bool, error) { return e.Type() != pbf.TypeNode, nil }),
		filterFunc(func(e pbf.Entity) (bool, error) { second++; return true, nil }),
	}

	stats, err := NewRunner(Options{Filters: filters}).Run(context.Background(), bytes.NewReader(sampleInput()))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if second != 2 {
		t.Errorf("second filter saw %d entities, want 2", second)
	}
	if stats.Filtered != 3 {
		t.Errorf("Filtered = %d, want 3", stats.Filtered)
	}
}

func TestRunnerFilterError(t *testing.T) {
	boom := errors.New("script error")
	filters := []Filter{filterFunc(func(e pbf.Entity) (bool, error) {
		if e.Type() == pbf.TypeWay {
			return false, boom
		}
		return true, nil
	})}
	rec := &recorder{}

	_, err := NewRunner(Options{Filters: filters, Sinks: []sink.Sink{rec}}).Run(context.Background(), bytes.NewReader(sampleInput()))
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if !rec.closed {
		t.Error("sink was not closed after failure")
	}
}

func TestRunnerSinkError(t *testing.T) {
	rec := &recorder{failAt: 2}

	_, err := NewRunner(Options{Sinks: []sink.Sink{rec}}).Run(context.Background(), bytes.NewReader(sampleInput()))
	if err == nil || err.Error() != "sink write failed: disk full" {
		t.Fatalf("err = %v, want sink write failure", err)
	}
	if len(rec.ids) != 1 {
		t.Errorf("recorded %d entities before failing, want 1", len(rec.ids))
	}
}

func TestRunnerDecodeError(t *testing.T) {
	input := sampleInput()
	input = input[:len(input)-3]

	_, err := NewRunner(Options{}).Run(context.Background(), bytes.NewReader(input))
	if !errors.Is(err, pbf.ErrFramingViolation) {
		t.Fatalf("err = %v, want ErrFramingViolation", err)
	}
}

func TestRunnerOnHeader(t *testing.T) {
	rec := &recorder{}
	calls := 0
	var writesBefore int

	_, err := NewRunner(Options{
		Sinks: []sink.Sink{rec},
		OnHeader: func(h *pbf.Header) {
			calls++
			writesBefore = len(rec.ids)
		},
	}).Run(context.Background(), bytes.NewReader(sampleInput()))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls != 1 {
		t.Errorf("OnHeader called %d times, want 1", calls)
	}
	if writesBefore != 0 {
		t.Errorf("%d entities written before OnHeader", writesBefore)
	}
}

func TestRunnerOnHeaderWithoutEntities(t *testing.T) {
	calls := 0
	_, err := NewRunner(Options{
		OnHeader: func(*pbf.Header) { calls++ },
	}).Run(context.Background(), bytes.NewReader(pbftest.Header()))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls != 1 {
		t.Errorf("OnHeader called %d times, want 1", calls)
	}
}
