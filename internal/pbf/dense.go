package pbf

import (
	"github.com/wegman-software/pbfstream/internal/osmproto"
)

// denseCursor is the decode position inside one DenseNodes group. The
// running sums restart at zero for every group and advance once per node.
// tagOffset indexes the flat keys_vals list shared by all nodes of the
// group and is never rewound between nodes.
type denseCursor struct {
	index     int
	tagOffset int

	id        int64
	lat       int64
	lon       int64
	timestamp int64
	changeset int64
	uid       int64
	userSID   int64
}

// walkDenseTags calls fn for each key/value pair of the node whose tags
// start at offset, and returns the offset just past the node's 0
// terminator. A node without tags consumes only the terminator.
func walkDenseTags(kv []int32, offset int, fn func(k, v int32) error) (int, error) {
	for ; offset < len(kv)-1 && kv[offset] != 0; offset += 2 {
		if err := fn(kv[offset], kv[offset+1]); err != nil {
			return offset, err
		}
	}
	return offset + 1, nil
}

// denseNode decodes the node at cur.index and advances cur past it.
func (c *blockContext) denseNode(dn *osmproto.DenseNodes, cur *denseCursor) *Node {
	i := cur.index
	cur.id += dn.Id[i]
	cur.lat += dn.Lat[i]
	cur.lon += dn.Lon[i]

	var tags Tags
	cur.tagOffset, _ = walkDenseTags(dn.KeysVals, cur.tagOffset, func(k, v int32) error {
		if tags == nil {
			tags = make(Tags)
		}
		tags[c.strings[k]] = c.strings[v]
		return nil
	})

	node := &Node{
		ID:   cur.id,
		Lat:  c.latOffset + c.granularity*float64(cur.lat),
		Lon:  c.lonOffset + c.granularity*float64(cur.lon),
		Tags: tags,
	}

	if di := dn.Denseinfo; di != nil {
		cur.timestamp += at(di.Timestamp, i)
		cur.changeset += at(di.Changeset, i)
		cur.uid += int64(at(di.Uid, i))
		cur.userSID += int64(at(di.UserSid, i))
		node.Info = &Info{
			Version:   at(di.Version, i),
			Timestamp: c.dateGranularity * float64(cur.timestamp),
			Changeset: cur.changeset,
			UID:       cur.uid,
			User:      c.user(cur.userSID),
		}
		if c.historical && len(di.Visible) > 0 {
			visible := di.Visible[i]
			node.Info.Visible = &visible
		}
	}

	cur.index++
	return node
}

// at returns s[i], or the zero value for a column the block left empty.
func at[T any](s []T, i int) T {
	if len(s) == 0 {
		var zero T
		return zero
	}
	return s[i]
}
