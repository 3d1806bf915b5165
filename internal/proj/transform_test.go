package proj

import (
	"math"
	"testing"
)

func TestParseSRID(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"4326", SRID4326},
		{"EPSG:4326", SRID4326},
		{"epsg:3857", SRID3857},
		{" 3857 ", SRID3857},
	}
	for _, tt := range tests {
		got, err := ParseSRID(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseSRID(%q) = %d, %v; want %d", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParseSRID("27700"); err == nil {
		t.Error("ParseSRID(27700) should fail")
	}
}

func TestIdentity(t *testing.T) {
	tr, err := NewTransformer(SRID4326)
	if err != nil {
		t.Fatal(err)
	}
	if tr.NeedsTransform() {
		t.Error("4326 should not need a transform")
	}
	p := tr.Point(-0.1, 51.5)
	if p[0] != -0.1 || p[1] != 51.5 {
		t.Errorf("Point = %v", p)
	}
}

func TestWebMercator(t *testing.T) {
	tr, err := NewTransformer(SRID3857)
	if err != nil {
		t.Fatal(err)
	}

	p := tr.Point(180, 0)
	if math.Abs(p[0]-20037508.342789244) > 1e-3 || math.Abs(p[1]) > 1e-6 {
		t.Errorf("Point(180, 0) = %v", p)
	}

	pole := tr.Point(0, 90)
	if math.IsInf(pole[1], 0) || math.IsNaN(pole[1]) {
		t.Errorf("pole projected to %v", pole)
	}
	if pole != tr.Point(0, maxMercatorLat) {
		t.Error("latitude should be clamped")
	}
}

func TestUnsupportedTarget(t *testing.T) {
	if _, err := NewTransformer(2154); err == nil {
		t.Error("NewTransformer(2154) should fail")
	}
}
