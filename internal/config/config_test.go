package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseBBox(t *testing.T) {
	bbox, err := ParseBBox("-0.5, 51.2,0.3,51.7")
	if err != nil {
		t.Fatalf("ParseBBox: %v", err)
	}
	if !bbox.IsSet || bbox.MinLon != -0.5 || bbox.MaxLat != 51.7 {
		t.Errorf("got %+v", bbox)
	}
	if !bbox.Contains(51.5, -0.1) {
		t.Error("London should be inside")
	}
	if bbox.Contains(48.8, 2.3) {
		t.Error("Paris should be outside")
	}
}

func TestParseBBoxErrors(t *testing.T) {
	for _, s := range []string{"1,2,3", "a,b,c,d", "5,0,1,1", "0,5,1,1"} {
		if _, err := ParseBBox(s); err == nil {
			t.Errorf("ParseBBox(%q) should fail", s)
		}
	}
}

func TestUnsetBBoxContainsEverything(t *testing.T) {
	bbox, err := ParseBBox("")
	if err != nil {
		t.Fatal(err)
	}
	if !bbox.Contains(89, 179) {
		t.Error("unset bbox should contain every point")
	}
	var nilBox *BBox
	if !nilBox.Contains(0, 0) {
		t.Error("nil bbox should contain every point")
	}
}

func TestLoadFileOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pbfstream.yaml")
	doc := `
input: planet.osm.pbf
format: parquet
output: out/
db_name: gis
metrics_interval: 1m
bbox: "0,0,1,1"
`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	if err := cfg.LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.InputFile != "planet.osm.pbf" || cfg.Format != FormatParquet || cfg.DBName != "gis" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.MetricsInterval != time.Minute {
		t.Errorf("MetricsInterval = %v, want 1m", cfg.MetricsInterval)
	}
	if cfg.DBPort != 5432 || cfg.ChunkSize != 64*1024 {
		t.Error("defaults not kept for keys missing from the file")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !cfg.BBox.IsSet || cfg.BBox.MaxLat != 1 {
		t.Errorf("BBox = %+v", cfg.BBox)
	}
}

func TestLoadFileErrors(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file should fail")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("chunk_size: [1, 2"), 0644)
	if err := cfg.LoadFile(path); err == nil {
		t.Error("malformed YAML should fail")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{"ok", func(c *Config) {}, ""},
		{"no input", func(c *Config) { c.InputFile = "" }, "input file"},
		{"chunk size", func(c *Config) { c.ChunkSize = 0 }, "chunk size"},
		{"batch size", func(c *Config) { c.ParquetBatchSize = 0 }, "batch size"},
		{"format", func(c *Config) { c.Format = "csv" }, "unknown output format"},
		{"parquet stdout", func(c *Config) { c.Format = FormatParquet }, "needs a directory"},
		{"bbox", func(c *Config) { c.BBoxSpec = "1,2" }, "bbox"},
		{"projection", func(c *Config) { c.Projection = "27700" }, "unsupported projection"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.InputFile = "in.osm.pbf"
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errMsg) {
				t.Fatalf("error = %v, want containing %q", err, tt.errMsg)
			}
		})
	}
}

func TestValidateResolvesProjection(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InputFile = "in.osm.pbf"
	cfg.Projection = "epsg:3857"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.SRID != 3857 {
		t.Errorf("SRID = %d, want 3857", cfg.SRID)
	}
}

func TestConnectionString(t *testing.T) {
	cfg := DefaultConfig()
	want := "host=localhost port=5432 dbname=osm user=postgres sslmode=disable"
	if got := cfg.ConnectionString(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	cfg.DBPassword = "secret"
	if got := cfg.ConnectionString(); !strings.HasSuffix(got, " password=secret") {
		t.Errorf("password missing: %q", got)
	}
}
