package sink

import (
	"bufio"
	"fmt"
	"io"

	"github.com/goccy/go-json"

	"github.com/wegman-software/pbfstream/internal/pbf"
)

type jsonInfo struct {
	Version   int32   `json:"version"`
	Timestamp float64 `json:"timestamp"`
	Changeset int64   `json:"changeset"`
	UID       int64   `json:"uid"`
	User      string  `json:"user"`
	Visible   *bool   `json:"visible,omitempty"`
}

type jsonNode struct {
	Type string    `json:"type"`
	ID   int64     `json:"id"`
	Lat  float64   `json:"lat"`
	Lon  float64   `json:"lon"`
	Tags pbf.Tags  `json:"tags"`
	Info *jsonInfo `json:"info,omitempty"`
}

type jsonWay struct {
	Type string    `json:"type"`
	ID   int64     `json:"id"`
	Tags pbf.Tags  `json:"tags"`
	Refs []int64   `json:"refs"`
	Info *jsonInfo `json:"info,omitempty"`
}

type jsonMember struct {
	Type string `json:"type"`
	ID   int64  `json:"id"`
	Role string `json:"role"`
}

type jsonRelation struct {
	Type    string       `json:"type"`
	ID      int64        `json:"id"`
	Tags    pbf.Tags     `json:"tags"`
	Members []jsonMember `json:"members"`
	Info    *jsonInfo    `json:"info,omitempty"`
}

// NDJSON writes one JSON object per line. Tags, refs and members are always
// present, as empty containers when the entity has none.
type NDJSON struct {
	w   *bufio.Writer
	enc *json.Encoder
}

// NewNDJSON returns a sink writing to w. Close flushes but does not close w.
func NewNDJSON(w io.Writer) *NDJSON {
	bw := bufio.NewWriterSize(w, 256*1024)
	return &NDJSON{w: bw, enc: json.NewEncoder(bw)}
}

func (s *NDJSON) Write(e pbf.Entity) error {
	if err := s.enc.Encode(toJSON(e)); err != nil {
		return fmt.Errorf("encode %s %d: %w", e.Type(), e.EntityID(), err)
	}
	return nil
}

func (s *NDJSON) Close() error {
	return s.w.Flush()
}

func toJSON(e pbf.Entity) any {
	tags := e.EntityTags()
	if tags == nil {
		tags = pbf.Tags{}
	}
	info := infoJSON(e.EntityInfo())

	switch v := e.(type) {
	case *pbf.Node:
		return jsonNode{Type: "node", ID: v.ID, Lat: v.Lat, Lon: v.Lon, Tags: tags, Info: info}
	case *pbf.Way:
		refs := v.Refs
		if refs == nil {
			refs = []int64{}
		}
		return jsonWay{Type: "way", ID: v.ID, Tags: tags, Refs: refs, Info: info}
	case *pbf.Relation:
		members := make([]jsonMember, len(v.Members))
		for i, m := range v.Members {
			members[i] = jsonMember{Type: m.Type.String(), ID: m.ID, Role: m.Role}
		}
		return jsonRelation{Type: "relation", ID: v.ID, Tags: tags, Members: members, Info: info}
	}
	return nil
}

func infoJSON(info *pbf.Info) *jsonInfo {
	if info == nil {
		return nil
	}
	return &jsonInfo{
		Version:   info.Version,
		Timestamp: info.Timestamp,
		Changeset: info.Changeset,
		UID:       info.UID,
		User:      info.User,
		Visible:   info.Visible,
	}
}
