// Package pbftest builds small OSM PBF streams for tests.
package pbftest

import (
	"bytes"

	"github.com/klauspost/compress/zlib"
	"google.golang.org/protobuf/proto"

	"github.com/wegman-software/pbfstream/internal/osmproto"
	"github.com/wegman-software/pbfstream/internal/pbf"
)

// Compress zlib-compresses b.
func Compress(b []byte) []byte {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	zw.Write(b)
	zw.Close()
	return buf.Bytes()
}

// Marshal encodes m, panicking on failure.
func Marshal(m proto.Message) []byte {
	b, err := proto.Marshal(m)
	if err != nil {
		panic(err)
	}
	return b
}

// Frame returns raw as one framed, zlib-compressed blob of type typ.
func Frame(typ string, raw []byte) []byte {
	b, err := pbf.EncodeBlob(pbf.BlobRecord{Type: typ, CompressedPayload: Compress(raw), RawSize: int32(len(raw))})
	if err != nil {
		panic(err)
	}
	return b
}

// FrameBlob frames an arbitrary Blob message under a header of type typ.
func FrameBlob(typ string, blob *osmproto.Blob) []byte {
	blobBytes := Marshal(blob)
	header := Marshal(&osmproto.BlobHeader{
		Type:     proto.String(typ),
		Datasize: proto.Int32(int32(len(blobBytes))),
	})
	out := []byte{0, 0, byte(len(header) >> 8), byte(len(header))}
	out = append(out, header...)
	return append(out, blobBytes...)
}

// Header returns a framed OSMHeader blob requiring features.
func Header(features ...string) []byte {
	hb := &osmproto.HeaderBlock{
		RequiredFeatures: append([]string{"OsmSchema-V0.6", "DenseNodes"}, features...),
		Writingprogram:   proto.String("pbftest"),
	}
	return Frame(pbf.BlobTypeHeader, Marshal(hb))
}

// Data returns pb as a framed OSMData blob.
func Data(pb *osmproto.PrimitiveBlock) []byte {
	return Frame(pbf.BlobTypeData, Marshal(pb))
}

// Stream concatenates framed blobs.
func Stream(blobs ...[]byte) []byte {
	return bytes.Join(blobs, nil)
}

// Block returns an empty primitive block with the given string table.
// Entry 0 is always the empty string.
func Block(strs ...string) *osmproto.PrimitiveBlock {
	st := &osmproto.StringTable{S: [][]byte{{}}}
	for _, s := range strs {
		st.S = append(st.S, []byte(s))
	}
	return &osmproto.PrimitiveBlock{Stringtable: st}
}

// Sample returns a block with three tagged dense nodes, one way over them
// and one relation holding the way and a node. String indexes:
// 1 amenity, 2 cafe, 3 highway, 4 residential, 5 type, 6 route,
// 7 outer, 8 alice.
func Sample() *osmproto.PrimitiveBlock {
	pb := Block("amenity", "cafe", "highway", "residential", "type", "route", "outer", "alice")
	pb.Primitivegroup = []*osmproto.PrimitiveGroup{
		{Dense: &osmproto.DenseNodes{
			Id:       []int64{1, 1, 1},
			Lat:      []int64{515000000, 100, 100},
			Lon:      []int64{-1000000, 100, 100},
			KeysVals: []int32{1, 2, 0, 0, 0},
			Denseinfo: &osmproto.DenseInfo{
				Version:   []int32{1, 2, 3},
				Timestamp: []int64{1600000000, 1, 1},
				Changeset: []int64{10, 1, 1},
				Uid:       []int32{42, 0, 0},
				UserSid:   []int32{8, 0, 0},
			},
		}},
		{Ways: []*osmproto.Way{{
			Id:   proto.Int64(10),
			Keys: []uint32{3},
			Vals: []uint32{4},
			Refs: []int64{1, 1, 1},
		}}},
		{Relations: []*osmproto.Relation{{
			Id:       proto.Int64(100),
			Keys:     []uint32{5},
			Vals:     []uint32{6},
			RolesSid: []int32{7, 0},
			Memids:   []int64{10, -9},
			Types:    []osmproto.Relation_MemberType{osmproto.Relation_WAY, osmproto.Relation_NODE},
		}}},
	}
	return pb
}

// SampleFile is a complete stream holding a header and Sample.
func SampleFile() []byte {
	return Stream(Header(), Data(Sample()))
}
