package proj

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// SRID constants for the supported projections
const (
	SRID4326 = 4326 // WGS84 (lat/lon)
	SRID3857 = 3857 // Web Mercator
)

// maxMercatorLat keeps Web Mercator y finite.
const maxMercatorLat = 85.06

// Transformer projects WGS84 coordinates into a target SRID.
type Transformer struct {
	TargetSRID int
	project    orb.Projection
}

// NewTransformer returns a transformer from WGS84 to target.
func NewTransformer(target int) (*Transformer, error) {
	switch target {
	case SRID4326:
		return &Transformer{TargetSRID: target}, nil
	case SRID3857:
		return &Transformer{TargetSRID: target, project: project.WGS84.ToMercator}, nil
	default:
		return nil, fmt.Errorf("unsupported target SRID: %d (only 4326 and 3857 supported)", target)
	}
}

// Point returns lon/lat in the target projection.
func (t *Transformer) Point(lon, lat float64) orb.Point {
	p := orb.Point{lon, lat}
	if t.project == nil {
		return p
	}
	p[1] = max(-maxMercatorLat, min(maxMercatorLat, p[1]))
	return t.project(p)
}

// NeedsTransform reports whether Point changes coordinates.
func (t *Transformer) NeedsTransform() bool {
	return t.project != nil
}

// ParseSRID parses "4326", "3857" or their "EPSG:" forms.
func ParseSRID(s string) (int, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "4326", "EPSG:4326":
		return SRID4326, nil
	case "3857", "EPSG:3857":
		return SRID3857, nil
	default:
		return 0, fmt.Errorf("unsupported projection: %s (supported: 4326, 3857)", s)
	}
}
