package filter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/wegman-software/pbfstream/internal/pbf"
)

func newRuntime(t *testing.T, code string) *Runtime {
	t.Helper()
	r := NewRuntime(nil)
	t.Cleanup(r.Close)
	if err := r.LoadString(code); err != nil {
		t.Fatalf("LoadString() error = %v", err)
	}
	return r
}

func TestKeepDropsOnFalse(t *testing.T) {
	r := newRuntime(t, `
function pbfstream.process_node(object)
	return object.tags.amenity ~= nil
end
`)
	tests := []struct {
		name   string
		entity pbf.Entity
		want   bool
	}{
		{"tagged node", &pbf.Node{ID: 1, Tags: pbf.Tags{"amenity": "cafe"}}, true},
		{"untagged node", &pbf.Node{ID: 2}, false},
		{"way without callback", &pbf.Way{ID: 3}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Keep(tt.entity)
			if err != nil {
				t.Fatalf("Keep() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Keep() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNilReturnKeeps(t *testing.T) {
	r := newRuntime(t, `function pbfstream.process_way(object) end`)
	keep, err := r.Keep(&pbf.Way{ID: 1})
	if err != nil || !keep {
		t.Errorf("Keep() = %v, %v; want true, nil", keep, err)
	}
}

func TestTagRewrite(t *testing.T) {
	r := newRuntime(t, `
function pbfstream.process_way(object)
	local name = object:grab_tag("name")
	object.tags.label = name and trim(name) or "unnamed"
	object.tags.source = nil
end
`)
	way := &pbf.Way{ID: 1, Tags: pbf.Tags{"name": "  Main St ", "source": "survey", "highway": "primary"}}
	if _, err := r.Keep(way); err != nil {
		t.Fatalf("Keep() error = %v", err)
	}
	want := pbf.Tags{"label": "Main St", "highway": "primary"}
	if len(way.Tags) != len(want) {
		t.Fatalf("tags = %v, want %v", way.Tags, want)
	}
	for k, v := range want {
		if way.Tags[k] != v {
			t.Errorf("tags[%q] = %q, want %q", k, way.Tags[k], v)
		}
	}
}

func TestEntityFields(t *testing.T) {
	r := newRuntime(t, `
function pbfstream.process_relation(object)
	return object.id == 7 and object.type == "relation"
		and object.user == "bob" and object.version == 3
		and #object.members == 2
		and object.members[1].type == "way" and object.members[1].ref == 10
		and object.members[2].role == "inner"
end
function pbfstream.process_way(object)
	return object.is_closed and #object.nodes == 4
end
function pbfstream.process_node(object)
	return object.lat > 51 and object.lon < 0 and object.visible == false
end
`)
	visible := false
	entities := []pbf.Entity{
		&pbf.Relation{ID: 7, Info: &pbf.Info{Version: 3, User: "bob"}, Members: []pbf.Member{
			{ID: 10, Type: pbf.MemberWay, Role: "outer"},
			{ID: 11, Type: pbf.MemberWay, Role: "inner"},
		}},
		&pbf.Way{ID: 1, Refs: []int64{1, 2, 3, 1}},
		&pbf.Node{ID: 2, Lat: 51.5, Lon: -0.1, Info: &pbf.Info{Visible: &visible}},
	}
	for _, e := range entities {
		keep, err := r.Keep(e)
		if err != nil {
			t.Fatalf("Keep(%s) error = %v", e.Type(), err)
		}
		if !keep {
			t.Errorf("Keep(%s) = false, want true", e.Type())
		}
	}
}

func TestCallbackError(t *testing.T) {
	r := newRuntime(t, `function pbfstream.process_node(object) error("boom") end`)
	if _, err := r.Keep(&pbf.Node{ID: 1}); err == nil {
		t.Error("expected error from failing callback")
	}
}

func TestHasCallbacks(t *testing.T) {
	if newRuntime(t, `x = 1`).HasCallbacks() {
		t.Error("script without process functions reports callbacks")
	}
	if !newRuntime(t, `function pbfstream.process_way() end`).HasCallbacks() {
		t.Error("process_way not detected")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filter.lua")
	if err := os.WriteFile(path, []byte(`function pbfstream.process_node() return false end`), 0644); err != nil {
		t.Fatal(err)
	}
	r := NewRuntime(nil)
	defer r.Close()
	if err := r.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if keep, _ := r.Keep(&pbf.Node{ID: 1}); keep {
		t.Error("node should be dropped")
	}

	if err := r.LoadFile(filepath.Join(t.TempDir(), "missing.lua")); err == nil {
		t.Error("expected error for missing file")
	}
	if err := r.LoadString(`pbfstream = 5`); err == nil {
		t.Error("expected error when the api table is replaced")
	}
}
