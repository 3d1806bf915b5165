package pbf_test

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"

	"github.com/wegman-software/pbfstream/internal/osmproto"
	"github.com/wegman-software/pbfstream/internal/pbf"
	"github.com/wegman-software/pbfstream/internal/pbf/pbftest"
)

func decode(t *testing.T, s *pbf.Session, pb *osmproto.PrimitiveBlock) []pbf.Entity {
	t.Helper()
	batch, err := s.Decode(pbf.DecodedBlock{Type: pbf.BlobTypeData, Data: pbftest.Marshal(pb)})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return batch.Collect()
}

func decodeHeader(t *testing.T, s *pbf.Session, hb *osmproto.HeaderBlock) {
	t.Helper()
	batch, err := s.Decode(pbf.DecodedBlock{Type: pbf.BlobTypeHeader, Data: pbftest.Marshal(hb)})
	if err != nil {
		t.Fatalf("Decode header: %v", err)
	}
	if batch.Len() != 0 {
		t.Errorf("header batch has %d entities", batch.Len())
	}
}

func near(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func dense(ids, lats, lons []int64) *osmproto.PrimitiveGroup {
	return &osmproto.PrimitiveGroup{Dense: &osmproto.DenseNodes{Id: ids, Lat: lats, Lon: lons}}
}

func TestDecodeSample(t *testing.T) {
	entities := decode(t, pbf.NewSession(nil), pbftest.Sample())
	if len(entities) != 5 {
		t.Fatalf("got %d entities, want 5", len(entities))
	}

	n1 := entities[0].(*pbf.Node)
	if n1.ID != 1 || !near(n1.Lat, 51.5, 1e-9) || !near(n1.Lon, -0.1, 1e-9) {
		t.Errorf("node 1 = %d %v,%v", n1.ID, n1.Lat, n1.Lon)
	}
	if !reflect.DeepEqual(n1.Tags, pbf.Tags{"amenity": "cafe"}) {
		t.Errorf("node 1 tags = %v", n1.Tags)
	}
	if n1.Info == nil {
		t.Fatal("node 1 has no info")
	}
	wantInfo := pbf.Info{Version: 1, Timestamp: 1600000000000, Changeset: 10, UID: 42, User: "alice"}
	if *n1.Info != wantInfo {
		t.Errorf("node 1 info = %+v, want %+v", *n1.Info, wantInfo)
	}
	if got := n1.Info.Time(); !got.Equal(time.Date(2020, 9, 13, 12, 26, 40, 0, time.UTC)) {
		t.Errorf("node 1 time = %v", got)
	}

	n3 := entities[2].(*pbf.Node)
	if n3.ID != 3 || !near(n3.Lat, 51.50002, 1e-9) || n3.Tags != nil {
		t.Errorf("node 3 = %d %v %v", n3.ID, n3.Lat, n3.Tags)
	}
	wantInfo = pbf.Info{Version: 3, Timestamp: 1600000002000, Changeset: 12, UID: 42, User: "alice"}
	if *n3.Info != wantInfo {
		t.Errorf("node 3 info = %+v, want %+v", *n3.Info, wantInfo)
	}

	way := entities[3].(*pbf.Way)
	if way.ID != 10 || !reflect.DeepEqual(way.Refs, []int64{1, 2, 3}) || way.Info != nil {
		t.Errorf("way = %+v", way)
	}
	if !reflect.DeepEqual(way.Tags, pbf.Tags{"highway": "residential"}) {
		t.Errorf("way tags = %v", way.Tags)
	}

	rel := entities[4].(*pbf.Relation)
	wantMembers := []pbf.Member{
		{ID: 10, Type: pbf.MemberWay, Role: "outer"},
		{ID: 1, Type: pbf.MemberNode, Role: ""},
	}
	if rel.ID != 100 || !reflect.DeepEqual(rel.Members, wantMembers) {
		t.Errorf("relation = %d %+v", rel.ID, rel.Members)
	}
}

func TestDenseDeltaDecoding(t *testing.T) {
	pb := pbftest.Block()
	pb.Granularity = proto.Int32(1)
	pb.Primitivegroup = []*osmproto.PrimitiveGroup{dense([]int64{1, 1, 1}, []int64{5, -2, 3}, []int64{0, 0, 0})}

	entities := decode(t, pbf.NewSession(nil), pb)
	if len(entities) != 3 {
		t.Fatalf("got %d entities, want 3", len(entities))
	}
	wantLat := []float64{5e-9, 3e-9, 6e-9}
	for i, e := range entities {
		n := e.(*pbf.Node)
		if n.ID != int64(i+1) || !near(n.Lat, wantLat[i], 1e-15) || n.Info != nil {
			t.Errorf("node %d = %d %v %v", i, n.ID, n.Lat, n.Info)
		}
	}
}

func TestDenseOffsets(t *testing.T) {
	pb := pbftest.Block()
	pb.LatOffset = proto.Int64(1000000000)
	pb.LonOffset = proto.Int64(-2000000000)
	pb.Primitivegroup = []*osmproto.PrimitiveGroup{dense([]int64{7}, []int64{10}, []int64{10})}

	n := decode(t, pbf.NewSession(nil), pb)[0].(*pbf.Node)
	if !near(n.Lat, 1.000001, 1e-12) || !near(n.Lon, -1.999999, 1e-12) {
		t.Errorf("got %v,%v", n.Lat, n.Lon)
	}
}

func TestDenseTagCursor(t *testing.T) {
	pb := pbftest.Block("k0", "v0")
	g := dense([]int64{1, 1}, []int64{0, 0}, []int64{0, 0})
	g.Dense.KeysVals = []int32{1, 2, 0, 0}
	pb.Primitivegroup = []*osmproto.PrimitiveGroup{g}

	entities := decode(t, pbf.NewSession(nil), pb)
	if len(entities) != 2 {
		t.Fatalf("got %d entities, want 2", len(entities))
	}
	if !reflect.DeepEqual(entities[0].EntityTags(), pbf.Tags{"k0": "v0"}) {
		t.Errorf("node 1 tags = %v", entities[0].EntityTags())
	}
	if len(entities[1].EntityTags()) != 0 {
		t.Errorf("node 2 tags = %v", entities[1].EntityTags())
	}
}

func TestDenseWithoutKeysVals(t *testing.T) {
	pb := pbftest.Block("k")
	pb.Primitivegroup = []*osmproto.PrimitiveGroup{dense([]int64{1, 1}, []int64{0, 0}, []int64{0, 0})}

	for _, e := range decode(t, pbf.NewSession(nil), pb) {
		if len(e.EntityTags()) != 0 {
			t.Errorf("node %d tags = %v", e.EntityID(), e.EntityTags())
		}
	}
}

func TestDenseCursorResetsPerGroup(t *testing.T) {
	pb := pbftest.Block()
	pb.Primitivegroup = []*osmproto.PrimitiveGroup{
		dense([]int64{5, 1}, []int64{0, 0}, []int64{0, 0}),
		dense([]int64{5, 1}, []int64{0, 0}, []int64{0, 0}),
	}

	var ids []int64
	for _, e := range decode(t, pbf.NewSession(nil), pb) {
		ids = append(ids, e.EntityID())
	}
	if !reflect.DeepEqual(ids, []int64{5, 6, 5, 6}) {
		t.Errorf("ids = %v", ids)
	}
}

func TestWayRefsResetPerWay(t *testing.T) {
	pb := pbftest.Block()
	pb.Primitivegroup = []*osmproto.PrimitiveGroup{{Ways: []*osmproto.Way{
		{Id: proto.Int64(1), Refs: []int64{5, 1}},
		{Id: proto.Int64(2), Refs: []int64{5, 1}},
		{Id: proto.Int64(3)},
	}}}

	entities := decode(t, pbf.NewSession(nil), pb)
	if len(entities) != 3 {
		t.Fatalf("got %d entities, want 3", len(entities))
	}
	for i, want := range [][]int64{{5, 6}, {5, 6}, {}} {
		if got := entities[i].(*pbf.Way).Refs; len(got) != len(want) || (len(want) > 0 && !reflect.DeepEqual(got, want)) {
			t.Errorf("way %d refs = %v, want %v", i+1, got, want)
		}
	}
}

func TestTagsTruncateToShorterList(t *testing.T) {
	pb := pbftest.Block("a", "b", "c", "x", "y")
	pb.Primitivegroup = []*osmproto.PrimitiveGroup{{Ways: []*osmproto.Way{
		{Id: proto.Int64(1), Keys: []uint32{1, 2, 3}, Vals: []uint32{4, 5}},
	}}}

	w := decode(t, pbf.NewSession(nil), pb)[0]
	if !reflect.DeepEqual(w.EntityTags(), pbf.Tags{"a": "x", "b": "y"}) {
		t.Errorf("tags = %v", w.EntityTags())
	}
}

func TestRelationMembers(t *testing.T) {
	pb := pbftest.Block("r")
	pb.Primitivegroup = []*osmproto.PrimitiveGroup{{Relations: []*osmproto.Relation{{
		Id:       proto.Int64(1),
		RolesSid: []int32{1, 1, 1, 1, 1},
		Memids:   []int64{1, 1, 1, 1},
		Types: []osmproto.Relation_MemberType{
			osmproto.Relation_NODE, osmproto.Relation_WAY, osmproto.Relation_RELATION, 9, osmproto.Relation_NODE,
		},
	}}}}

	rel := decode(t, pbf.NewSession(nil), pb)[0].(*pbf.Relation)
	if len(rel.Members) != 4 {
		t.Fatalf("got %d members, want 4", len(rel.Members))
	}
	var types []string
	for i, m := range rel.Members {
		if m.ID != int64(i+1) || m.Role != "r" {
			t.Errorf("member %d = %+v", i, m)
		}
		types = append(types, m.Type.String())
	}
	if !reflect.DeepEqual(types, []string{"node", "way", "relation", "?"}) {
		t.Errorf("types = %v", types)
	}
	if rel.Members[3].Type != pbf.MemberUnknown {
		t.Errorf("type 9 decoded as %v", rel.Members[3].Type)
	}
}

func historicalBlock() *osmproto.PrimitiveBlock {
	pb := pbftest.Block("u")
	g := dense([]int64{1, 1}, []int64{0, 0}, []int64{0, 0})
	g.Dense.Denseinfo = &osmproto.DenseInfo{
		Version: []int32{1, 1},
		Visible: []bool{true, false},
	}
	pb.Primitivegroup = []*osmproto.PrimitiveGroup{
		g,
		{Ways: []*osmproto.Way{
			{Id: proto.Int64(1), Info: &osmproto.Info{Version: proto.Int32(2), Visible: proto.Bool(false)}},
			{Id: proto.Int64(2), Info: &osmproto.Info{Version: proto.Int32(2)}},
		}},
	}
	return pb
}

func visible(e pbf.Entity) string {
	v := e.EntityInfo().Visible
	switch {
	case v == nil:
		return "unset"
	case *v:
		return "true"
	default:
		return "false"
	}
}

func TestVisibleRequiresHistoricalHeader(t *testing.T) {
	s := pbf.NewSession(nil)
	for _, e := range decode(t, s, historicalBlock()) {
		if got := visible(e); got != "unset" {
			t.Errorf("%s %d: visible %s without the historical feature", e.Type(), e.EntityID(), got)
		}
	}

	decodeHeader(t, s, &osmproto.HeaderBlock{RequiredFeatures: []string{"OsmSchema-V0.6", pbf.FeatureHistoricalInformation}})
	if !s.Historical() {
		t.Fatal("historical flag not set by header")
	}

	entities := decode(t, s, historicalBlock())
	if len(entities) != 4 {
		t.Fatalf("got %d entities, want 4", len(entities))
	}
	for i, want := range []string{"true", "false", "false", "unset"} {
		if got := visible(entities[i]); got != want {
			t.Errorf("entity %d: visible %s, want %s", i, got, want)
		}
	}

	// a later header without the feature switches it off again
	decodeHeader(t, s, &osmproto.HeaderBlock{RequiredFeatures: []string{"OsmSchema-V0.6"}})
	if s.Historical() {
		t.Error("historical flag survived a header without the feature")
	}
}

func TestPlainInfoDefaults(t *testing.T) {
	pb := pbftest.Block()
	pb.Primitivegroup = []*osmproto.PrimitiveGroup{{Ways: []*osmproto.Way{
		{Id: proto.Int64(1), Info: &osmproto.Info{Timestamp: proto.Int64(5)}},
	}}}

	info := decode(t, pbf.NewSession(nil), pb)[0].EntityInfo()
	if info.Version != -1 || info.Timestamp != 5000 || info.User != "" {
		t.Errorf("info = %+v", info)
	}
}

func TestDecodeHeader(t *testing.T) {
	s := pbf.NewSession(nil)
	decodeHeader(t, s, &osmproto.HeaderBlock{
		Bbox: &osmproto.HeaderBBox{
			Left:   proto.Int64(-1500000000),
			Right:  proto.Int64(2000000000),
			Top:    proto.Int64(3000000000),
			Bottom: proto.Int64(-4000000000),
		},
		RequiredFeatures:                 []string{"OsmSchema-V0.6", "DenseNodes"},
		OptionalFeatures:                 []string{"Sort.Type_then_ID"},
		Writingprogram:                   proto.String("osmium/1.14"),
		OsmosisReplicationTimestamp:      proto.Int64(1700000000),
		OsmosisReplicationSequenceNumber: proto.Int64(42),
	})

	h := s.Header()
	if h == nil || h.BBox == nil {
		t.Fatalf("header = %+v", h)
	}
	if *h.BBox != (pbf.BBox{Left: -1.5, Right: 2, Top: 3, Bottom: -4}) {
		t.Errorf("bbox = %+v", *h.BBox)
	}
	if h.WritingProgram != "osmium/1.14" || !reflect.DeepEqual(h.OptionalFeatures, []string{"Sort.Type_then_ID"}) {
		t.Errorf("header = %+v", h)
	}
	if !h.ReplicationTimestamp.Equal(time.Unix(1700000000, 0)) || h.ReplicationSequenceNumber != 42 {
		t.Errorf("replication = %v #%d", h.ReplicationTimestamp, h.ReplicationSequenceNumber)
	}
	if !h.HasFeature("DenseNodes") || h.HasFeature(pbf.FeatureHistoricalInformation) || s.Historical() {
		t.Error("feature flags decoded wrong")
	}
}

func checkDecodeError(t *testing.T, err error, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("error = %v, want %v", err, target)
	}
	de := decodeError(t, err)
	if de.Stage != pbf.StageDecode || de.BlobType != pbf.BlobTypeData {
		t.Errorf("stage %s, blob type %q", de.Stage, de.BlobType)
	}
}

func TestStringIndexOutOfRange(t *testing.T) {
	id := proto.Int64(1)
	cases := map[string]*osmproto.PrimitiveGroup{
		"way key": {Ways: []*osmproto.Way{{Id: id, Keys: []uint32{99}, Vals: []uint32{1}}}},
		"way user": {Ways: []*osmproto.Way{{Id: id, Info: &osmproto.Info{UserSid: proto.Uint32(5)}}}},
		"relation role": {Relations: []*osmproto.Relation{{
			Id: id, RolesSid: []int32{7}, Memids: []int64{1}, Types: []osmproto.Relation_MemberType{osmproto.Relation_NODE},
		}}},
		"dense tag": {Dense: &osmproto.DenseNodes{
			Id: []int64{1}, Lat: []int64{0}, Lon: []int64{0}, KeysVals: []int32{1, 50, 0},
		}},
		"dense user": {Dense: &osmproto.DenseNodes{
			Id: []int64{1, 1}, Lat: []int64{0, 0}, Lon: []int64{0, 0},
			Denseinfo: &osmproto.DenseInfo{UserSid: []int32{1, 3}},
		}},
	}
	for name, g := range cases {
		t.Run(name, func(t *testing.T) {
			pb := pbftest.Block("k")
			pb.Primitivegroup = []*osmproto.PrimitiveGroup{g}
			batch, err := pbf.NewSession(nil).Decode(pbf.DecodedBlock{Type: pbf.BlobTypeData, Data: pbftest.Marshal(pb)})
			if batch != nil {
				t.Error("a batch was returned for a failing block")
			}
			checkDecodeError(t, err, pbf.ErrStringIndexOutOfRange)
		})
	}
}

func TestMalformedStringTable(t *testing.T) {
	st := protowire.AppendTag(nil, 1, protowire.VarintType)
	st = protowire.AppendVarint(st, 3)
	data := protowire.AppendTag(nil, 1, protowire.BytesType)
	data = protowire.AppendBytes(data, st)

	_, err := pbf.NewSession(nil).Decode(pbf.DecodedBlock{Type: pbf.BlobTypeData, Data: data})
	checkDecodeError(t, err, pbf.ErrMalformedStringTable)
}

func TestMalformedBlock(t *testing.T) {
	tests := map[string][]byte{
		"truncated group":     {0x0a, 0x00, 0x12, 0x05, 0x01},
		"missing stringtable": {0x12, 0x00},
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := pbf.NewSession(nil).Decode(pbf.DecodedBlock{Type: pbf.BlobTypeData, Data: data})
			checkDecodeError(t, err, pbf.ErrMalformedBlock)
		})
	}
}

func TestDenseLengthMismatch(t *testing.T) {
	for name, dn := range map[string]*osmproto.DenseNodes{
		"lat": {Id: []int64{1, 1}, Lat: []int64{0}, Lon: []int64{0, 0}},
		"version": {Id: []int64{1, 1}, Lat: []int64{0, 0}, Lon: []int64{0, 0},
			Denseinfo: &osmproto.DenseInfo{Version: []int32{1}}},
	} {
		t.Run(name, func(t *testing.T) {
			pb := pbftest.Block()
			pb.Primitivegroup = []*osmproto.PrimitiveGroup{{Dense: dn}}
			_, err := pbf.NewSession(nil).Decode(pbf.DecodedBlock{Type: pbf.BlobTypeData, Data: pbftest.Marshal(pb)})
			checkDecodeError(t, err, pbf.ErrMalformedBlock)
		})
	}
}

func TestInvalidUTF8IsReplaced(t *testing.T) {
	pb := pbftest.Block("name")
	pb.Stringtable.S = append(pb.Stringtable.S, []byte{'a', 0xff, 'b'})
	pb.Primitivegroup = []*osmproto.PrimitiveGroup{{Ways: []*osmproto.Way{
		{Id: proto.Int64(1), Keys: []uint32{1}, Vals: []uint32{2}},
	}}}

	w := decode(t, pbf.NewSession(nil), pb)[0]
	if got := w.EntityTags()["name"]; got != "a�b" {
		t.Errorf("name = %q", got)
	}
}

func TestUnsupportedContentDiagnostics(t *testing.T) {
	node := func(id int64) *osmproto.Node {
		return &osmproto.Node{Id: proto.Int64(id), Lat: proto.Int64(0), Lon: proto.Int64(0)}
	}
	pb := pbftest.Block()
	pb.Primitivegroup = []*osmproto.PrimitiveGroup{
		{Nodes: []*osmproto.Node{node(1), node(2)}},
		{Changesets: []*osmproto.ChangeSet{{Id: proto.Int64(3)}}},
		{Ways: []*osmproto.Way{{Id: proto.Int64(4)}}},
	}

	s := pbf.NewSession(nil)
	entities := decode(t, s, pb)
	if len(entities) != 1 || entities[0].Type() != pbf.TypeWay {
		t.Fatalf("entities = %v", entities)
	}

	batch, err := s.Decode(pbf.DecodedBlock{Type: "OSMIndex", Data: []byte{1, 2, 3}})
	if err != nil {
		t.Fatalf("unknown blob type: %v", err)
	}
	if batch.Len() != 0 {
		t.Errorf("unknown blob yielded %d entities", batch.Len())
	}

	d := s.Diagnostics()
	if d[pbf.DiagnosticPlainNodes] != 2 || d[pbf.DiagnosticChangeSets] != 1 || d[pbf.DiagnosticUnknownBlob] != 1 {
		t.Errorf("diagnostics = %v", d)
	}
	if d.Total() != 4 {
		t.Errorf("Total = %d, want 4", d.Total())
	}
}

func TestBatchIsLazyAndForwardOnly(t *testing.T) {
	batch, err := pbf.NewSession(nil).Decode(pbf.DecodedBlock{Type: pbf.BlobTypeData, Data: pbftest.Marshal(pbftest.Sample())})
	if err != nil {
		t.Fatal(err)
	}
	if batch.Len() != 5 {
		t.Errorf("Len = %d, want 5", batch.Len())
	}

	first, ok := batch.Next()
	if !ok || first.EntityID() != 1 {
		t.Fatalf("first = %v, %v", first, ok)
	}
	if rest := batch.Collect(); len(rest) != 4 {
		t.Errorf("rest has %d entities, want 4", len(rest))
	}
	if _, ok := batch.Next(); ok {
		t.Error("Next after exhaustion returned an entity")
	}
}
