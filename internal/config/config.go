package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wegman-software/pbfstream/internal/proj"
)

// BBox is a geographic bounding box in degrees.
type BBox struct {
	MinLon, MinLat, MaxLon, MaxLat float64
	IsSet                          bool
}

// Contains reports whether the point lies inside the box, edges included.
// An unset box contains everything.
func (b *BBox) Contains(lat, lon float64) bool {
	if b == nil || !b.IsSet {
		return true
	}
	return lon >= b.MinLon && lon <= b.MaxLon && lat >= b.MinLat && lat <= b.MaxLat
}

// ParseBBox parses "minlon,minlat,maxlon,maxlat". An empty string gives an
// unset box.
func ParseBBox(s string) (*BBox, error) {
	if s == "" {
		return &BBox{}, nil
	}

	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("bbox must have 4 values: minlon,minlat,maxlon,maxlat")
	}

	var coords [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid bbox coordinate %q: %w", p, err)
		}
		coords[i] = v
	}

	bbox := &BBox{MinLon: coords[0], MinLat: coords[1], MaxLon: coords[2], MaxLat: coords[3], IsSet: true}
	if bbox.MinLon > bbox.MaxLon {
		return nil, fmt.Errorf("minlon (%f) must be <= maxlon (%f)", bbox.MinLon, bbox.MaxLon)
	}
	if bbox.MinLat > bbox.MaxLat {
		return nil, fmt.Errorf("minlat (%f) must be <= maxlat (%f)", bbox.MinLat, bbox.MaxLat)
	}
	return bbox, nil
}

// Output formats accepted by the export command.
const (
	FormatNDJSON  = "ndjson"
	FormatXML     = "xml"
	FormatParquet = "parquet"
)

// Config holds the runtime configuration. Values come from DefaultConfig,
// then an optional YAML file, then command line flags.
type Config struct {
	// Input settings
	InputFile string `yaml:"input"`
	ChunkSize int    `yaml:"chunk_size"` // bytes per read
	UseMmap   bool   `yaml:"mmap"`

	// Filtering
	BBoxSpec      string `yaml:"bbox"` // minlon,minlat,maxlon,maxlat; applied to nodes
	BBox          *BBox  `yaml:"-"`
	TagFilterFile string `yaml:"tag_filter"`
	LuaScript     string `yaml:"lua_script"`

	// Output settings
	OutputPath       string `yaml:"output"` // file, or directory for parquet; "-" is stdout
	Format           string `yaml:"format"`
	ParquetBatchSize int    `yaml:"parquet_batch_size"`
	ChannelBuffer    int    `yaml:"channel_buffer"`

	// Database settings
	DBHost          string `yaml:"db_host"`
	DBPort          int    `yaml:"db_port"`
	DBName          string `yaml:"db_name"`
	DBUser          string `yaml:"db_user"`
	DBPassword      string `yaml:"db_password"`
	DBSchema        string `yaml:"db_schema"`
	DropExisting    bool   `yaml:"drop_existing"`
	CreateIndexes   bool   `yaml:"create_indexes"`
	ExtraAttributes bool   `yaml:"extra_attributes"` // version, changeset, timestamp, uid, user columns
	Geometry        bool   `yaml:"geometry"`         // PostGIS point column on nodes
	Projection      string `yaml:"projection"`       // 4326 or 3857
	SRID            int    `yaml:"-"`

	// Logging and metrics
	Verbose          bool          `yaml:"verbose"`
	LogFile          string        `yaml:"log_file"`
	MetricsInterval  time.Duration `yaml:"metrics_interval"`
	ProgressInterval time.Duration `yaml:"progress_interval"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		ChunkSize:        64 * 1024,
		OutputPath:       "-",
		Format:           FormatNDJSON,
		ParquetBatchSize: 100000,
		ChannelBuffer:    1024,
		DBHost:           "localhost",
		DBPort:           5432,
		DBName:           "osm",
		DBUser:           "postgres",
		DBSchema:         "public",
		CreateIndexes:    true,
		Projection:       "4326",
		MetricsInterval:  30 * time.Second,
		ProgressInterval: 5 * time.Second,
	}
}

// LoadFile overlays the YAML document at path onto c. Keys missing from
// the file keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string
func (c *Config) ConnectionString() string {
	connStr := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBName, c.DBUser,
	)
	if c.DBPassword != "" {
		connStr += fmt.Sprintf(" password=%s", c.DBPassword)
	}
	return connStr
}

// Validate checks the configuration and parses BBoxSpec into BBox.
func (c *Config) Validate() error {
	if c.InputFile == "" {
		return fmt.Errorf("input file is required")
	}
	if c.ChunkSize < 1 {
		return fmt.Errorf("chunk size must be at least 1")
	}
	if c.ParquetBatchSize < 1 {
		return fmt.Errorf("parquet batch size must be at least 1")
	}
	switch c.Format {
	case FormatNDJSON, FormatXML, FormatParquet:
	default:
		return fmt.Errorf("unknown output format %q (want ndjson, xml or parquet)", c.Format)
	}
	if c.Format == FormatParquet && c.OutputPath == "-" {
		return fmt.Errorf("parquet output needs a directory, not stdout")
	}

	srid, err := proj.ParseSRID(c.Projection)
	if err != nil {
		return err
	}
	c.SRID = srid

	bbox, err := ParseBBox(c.BBoxSpec)
	if err != nil {
		return err
	}
	c.BBox = bbox
	return nil
}
