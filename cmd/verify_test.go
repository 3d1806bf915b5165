package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/paulmach/osm"

	"github.com/wegman-software/pbfstream/internal/pbf/pbftest"
)

func TestVerifySample(t *testing.T) {
	data := pbftest.Stream(pbftest.Header(), pbftest.Data(pbftest.Sample()))

	n, err := verify(context.Background(), bytes.NewReader(data), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if n != 5 {
		t.Errorf("verified %d entities, want 5", n)
	}
}

func TestVerifyCountMismatch(t *testing.T) {
	full := pbftest.Stream(pbftest.Header(), pbftest.Data(pbftest.Sample()), pbftest.Data(pbftest.Sample()))
	half := pbftest.Stream(pbftest.Header(), pbftest.Data(pbftest.Sample()))

	_, err := verify(context.Background(), bytes.NewReader(half), bytes.NewReader(full))
	if err == nil || !strings.Contains(err.Error(), "count differs") {
		t.Fatalf("err = %v, want count mismatch", err)
	}
}

func TestCompareObjects(t *testing.T) {
	node := &osm.Node{ID: 1, Lat: 51.5, Lon: -0.1, Tags: osm.Tags{{Key: "amenity", Value: "cafe"}}}

	tests := []struct {
		name string
		got  osm.Object
		want osm.Object
		msg  string
	}{
		{"equal", node, &osm.Node{ID: 1, Lat: 51.50000001, Lon: -0.1, Tags: osm.Tags{{Key: "amenity", Value: "cafe"}}}, ""},
		{"id", node, &osm.Node{ID: 2}, "reference has node/2"},
		{"coords", node, &osm.Node{ID: 1, Lat: 51.6, Lon: -0.1}, "at 51.5"},
		{"tag value", node, &osm.Node{ID: 1, Lat: 51.5, Lon: -0.1, Tags: osm.Tags{{Key: "amenity", Value: "bar"}}}, `reference has "bar"`},
		{"way refs",
			&osm.Way{ID: 7, Nodes: osm.WayNodes{{ID: 1}, {ID: 2}}},
			&osm.Way{ID: 7, Nodes: osm.WayNodes{{ID: 1}, {ID: 3}}},
			"ref 1 is 2"},
		{"members",
			&osm.Relation{ID: 9, Members: osm.Members{{Type: osm.TypeWay, Ref: 7, Role: "outer"}}},
			&osm.Relation{ID: 9, Members: osm.Members{{Type: osm.TypeWay, Ref: 7, Role: "inner"}}},
			"member 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := compareObjects(tt.got, tt.want)
			if tt.msg == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.msg) {
				t.Fatalf("err = %v, want containing %q", err, tt.msg)
			}
		})
	}
}
