package pbf

import (
	"math"
	"time"

	"github.com/wegman-software/pbfstream/internal/osmproto"
)

// EntityType discriminates the Entity variants.
type EntityType int

const (
	TypeNode EntityType = iota
	TypeWay
	TypeRelation
)

func (t EntityType) String() string {
	switch t {
	case TypeNode:
		return "node"
	case TypeWay:
		return "way"
	case TypeRelation:
		return "relation"
	default:
		return "unknown"
	}
}

// Entity is a decoded *Node, *Way or *Relation. Entities hold no reference
// to the block they were decoded from.
type Entity interface {
	Type() EntityType
	EntityID() int64
	EntityTags() Tags
	EntityInfo() *Info
}

// Tags maps keys to values. A nil Tags is an empty tag list.
type Tags map[string]string

// Info is the optional metadata of an entity.
type Info struct {
	Version   int32
	Timestamp float64 // milliseconds since the epoch
	Changeset int64
	UID       int64
	User      string
	Visible   *bool // set only for files with historical information
}

// Time converts Timestamp to a time.Time in UTC.
func (i *Info) Time() time.Time {
	return time.UnixMilli(int64(math.Round(i.Timestamp))).UTC()
}

// Node is a point.
type Node struct {
	ID   int64
	Lat  float64
	Lon  float64
	Tags Tags
	Info *Info
}

func (n *Node) Type() EntityType  { return TypeNode }
func (n *Node) EntityID() int64   { return n.ID }
func (n *Node) EntityTags() Tags  { return n.Tags }
func (n *Node) EntityInfo() *Info { return n.Info }

// Way is an ordered list of node ids.
type Way struct {
	ID   int64
	Tags Tags
	Refs []int64
	Info *Info
}

func (w *Way) Type() EntityType  { return TypeWay }
func (w *Way) EntityID() int64   { return w.ID }
func (w *Way) EntityTags() Tags  { return w.Tags }
func (w *Way) EntityInfo() *Info { return w.Info }

// MemberType is the kind of entity a relation member points at.
type MemberType int

const (
	MemberNode MemberType = iota
	MemberWay
	MemberRelation
	MemberUnknown
)

// memberTypeOf maps the wire value; anything outside 0..2 is unknown.
func memberTypeOf(v osmproto.Relation_MemberType) MemberType {
	switch v {
	case osmproto.Relation_NODE:
		return MemberNode
	case osmproto.Relation_WAY:
		return MemberWay
	case osmproto.Relation_RELATION:
		return MemberRelation
	default:
		return MemberUnknown
	}
}

func (t MemberType) String() string {
	switch t {
	case MemberNode:
		return "node"
	case MemberWay:
		return "way"
	case MemberRelation:
		return "relation"
	default:
		return "?"
	}
}

// Member is one relation member.
type Member struct {
	ID   int64
	Type MemberType
	Role string
}

// Relation groups members under a set of tags.
type Relation struct {
	ID      int64
	Tags    Tags
	Members []Member
	Info    *Info
}

func (r *Relation) Type() EntityType  { return TypeRelation }
func (r *Relation) EntityID() int64   { return r.ID }
func (r *Relation) EntityTags() Tags  { return r.Tags }
func (r *Relation) EntityInfo() *Info { return r.Info }
