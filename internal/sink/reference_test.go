package sink

import (
	"bufio"
	"bytes"
	"context"
	"flag"
	"os"
	"testing"

	"github.com/wegman-software/pbfstream/internal/pbf"
)

var updateReference = flag.Bool("update-reference", false, "rewrite testdata/somes.ndjson from testdata/somes.osm.pbf")

const (
	somesPBF       = "../../testdata/somes.osm.pbf"
	somesReference = "../../testdata/somes.ndjson"
)

// Neither fixture is checked in. Drop the somes extract into testdata/,
// record the reference once with -update-reference, and check the recorded
// file against a trusted decoder before committing it.
func TestNDJSONSomesReference(t *testing.T) {
	f, err := os.Open(somesPBF)
	if err != nil {
		t.Skip("testdata/somes.osm.pbf not available")
	}
	defer f.Close()

	var buf bytes.Buffer
	out := NewNDJSON(&buf)
	s := pbf.NewScanner(context.Background(), f)
	defer s.Close()
	for s.Scan() {
		if err := out.Write(s.Entity()); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Err(); err != nil {
		t.Fatal(err)
	}
	if err := out.Close(); err != nil {
		t.Fatal(err)
	}

	if *updateReference {
		if err := os.WriteFile(somesReference, buf.Bytes(), 0o644); err != nil {
			t.Fatal(err)
		}
		return
	}

	want, err := os.ReadFile(somesReference)
	if err != nil {
		t.Skip("testdata/somes.ndjson not recorded")
	}

	got := bufio.NewScanner(&buf)
	got.Buffer(nil, 1<<20)
	ref := bufio.NewScanner(bytes.NewReader(want))
	ref.Buffer(nil, 1<<20)
	for line := 1; ; line++ {
		gotOK, refOK := got.Scan(), ref.Scan()
		if !gotOK && !refOK {
			return
		}
		if gotOK != refOK {
			t.Fatalf("line %d: output ended %v, reference ended %v", line, !gotOK, !refOK)
		}
		if !bytes.Equal(got.Bytes(), ref.Bytes()) {
			t.Fatalf("line %d differs\n got: %s\nwant: %s", line, got.Bytes(), ref.Bytes())
		}
	}
}
