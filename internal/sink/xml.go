package sink

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"

	"github.com/paulmach/osm"

	"github.com/wegman-software/pbfstream/internal/pbf"
)

// Generator is written to the generator attribute of XML output.
const Generator = "pbfstream"

// XML writes an OSM XML document. Elements are encoded with the
// github.com/paulmach/osm types, one per entity, inside a single <osm> root.
type XML struct {
	w       *bufio.Writer
	enc     *xml.Encoder
	started bool
	bounds  *pbf.BBox
}

// NewXML returns a sink writing to w. Close ends the document and flushes
// but does not close w.
func NewXML(w io.Writer) *XML {
	bw := bufio.NewWriterSize(w, 256*1024)
	enc := xml.NewEncoder(bw)
	enc.Indent("", " ")
	return &XML{w: bw, enc: enc}
}

// SetBounds adds a <bounds> element. It must be called before the first
// Write.
func (s *XML) SetBounds(b *pbf.BBox) {
	s.bounds = b
}

var osmRoot = xml.StartElement{
	Name: xml.Name{Local: "osm"},
	Attr: []xml.Attr{
		{Name: xml.Name{Local: "version"}, Value: "0.6"},
		{Name: xml.Name{Local: "generator"}, Value: Generator},
	},
}

// osm.Bounds has no XMLName, so the element name must be given explicitly.
var boundsElement = xml.StartElement{Name: xml.Name{Local: "bounds"}}

func (s *XML) start() error {
	s.started = true
	if _, err := s.w.WriteString(xml.Header); err != nil {
		return err
	}
	if err := s.enc.EncodeToken(osmRoot); err != nil {
		return err
	}
	if s.bounds != nil {
		b := osm.Bounds{MinLat: s.bounds.Bottom, MaxLat: s.bounds.Top, MinLon: s.bounds.Left, MaxLon: s.bounds.Right}
		return s.enc.EncodeElement(&b, boundsElement)
	}
	return nil
}

func (s *XML) Write(e pbf.Entity) error {
	if !s.started {
		if err := s.start(); err != nil {
			return err
		}
	}
	if err := s.enc.Encode(ToOSM(e)); err != nil {
		return fmt.Errorf("encode %s %d: %w", e.Type(), e.EntityID(), err)
	}
	return nil
}

func (s *XML) Close() error {
	if !s.started {
		if err := s.start(); err != nil {
			return err
		}
	}
	if err := s.enc.EncodeToken(osmRoot.End()); err != nil {
		return err
	}
	if err := s.enc.Flush(); err != nil {
		return err
	}
	if err := s.w.WriteByte('\n'); err != nil {
		return err
	}
	return s.w.Flush()
}

// ToOSM converts an entity to its github.com/paulmach/osm counterpart.
// Entities without a visible flag are reported visible.
func ToOSM(e pbf.Entity) osm.Object {
	switch v := e.(type) {
	case *pbf.Node:
		n := &osm.Node{ID: osm.NodeID(v.ID), Lat: v.Lat, Lon: v.Lon, Tags: osmTags(v.Tags), Visible: true}
		if info := v.Info; info != nil {
			n.Version = int(info.Version)
			n.ChangesetID = osm.ChangesetID(info.Changeset)
			n.UserID = osm.UserID(info.UID)
			n.User = info.User
			n.Timestamp = info.Time()
			n.Visible = visible(info)
		}
		return n
	case *pbf.Way:
		w := &osm.Way{ID: osm.WayID(v.ID), Tags: osmTags(v.Tags), Visible: true}
		w.Nodes = make(osm.WayNodes, len(v.Refs))
		for i, ref := range v.Refs {
			w.Nodes[i] = osm.WayNode{ID: osm.NodeID(ref)}
		}
		if info := v.Info; info != nil {
			w.Version = int(info.Version)
			w.ChangesetID = osm.ChangesetID(info.Changeset)
			w.UserID = osm.UserID(info.UID)
			w.User = info.User
			w.Timestamp = info.Time()
			w.Visible = visible(info)
		}
		return w
	case *pbf.Relation:
		r := &osm.Relation{ID: osm.RelationID(v.ID), Tags: osmTags(v.Tags), Visible: true}
		r.Members = make(osm.Members, len(v.Members))
		for i, m := range v.Members {
			r.Members[i] = osm.Member{Type: osmType(m.Type), Ref: m.ID, Role: m.Role}
		}
		if info := v.Info; info != nil {
			r.Version = int(info.Version)
			r.ChangesetID = osm.ChangesetID(info.Changeset)
			r.UserID = osm.UserID(info.UID)
			r.User = info.User
			r.Timestamp = info.Time()
			r.Visible = visible(info)
		}
		return r
	}
	return nil
}

func visible(info *pbf.Info) bool {
	return info.Visible == nil || *info.Visible
}

func osmType(t pbf.MemberType) osm.Type {
	switch t {
	case pbf.MemberNode:
		return osm.TypeNode
	case pbf.MemberWay:
		return osm.TypeWay
	case pbf.MemberRelation:
		return osm.TypeRelation
	}
	return osm.Type(t.String())
}

// osmTags converts tags sorted by key so output is deterministic.
func osmTags(tags pbf.Tags) osm.Tags {
	if len(tags) == 0 {
		return nil
	}
	out := make(osm.Tags, 0, len(tags))
	for _, k := range sortedKeys(tags) {
		out = append(out, osm.Tag{Key: k, Value: tags[k]})
	}
	return out
}
