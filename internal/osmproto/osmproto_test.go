package osmproto_test

import (
	"bytes"
	"testing"

	_ "github.com/paulmach/osm/osmpbf"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"

	"github.com/wegman-software/pbfstream/internal/osmproto"
)

// The verify command links paulmach/osm, which registers its own copy of
// the schema as package osmpbf. Both must resolve side by side.
func TestRegistryAlongsideOSMPBF(t *testing.T) {
	for _, name := range []protoreflect.FullName{"osmproto.Blob", "osmproto.PrimitiveBlock", "osmpbf.Blob", "osmpbf.PrimitiveBlock"} {
		if _, err := protoregistry.GlobalFiles.FindDescriptorByName(name); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
	for _, path := range []string{"internal/osmproto/fileformat.proto", "internal/osmproto/osmformat.proto"} {
		if _, err := protoregistry.GlobalFiles.FindFileByPath(path); err != nil {
			t.Errorf("%s: %v", path, err)
		}
	}
}

func TestBlobPayloadFields(t *testing.T) {
	for name, blob := range map[string]*osmproto.Blob{
		"raw":   {Raw: []byte("payload")},
		"zlib":  {ZlibData: []byte("payload")},
		"lzma":  {LzmaData: []byte("payload")},
		"bzip2": {OBSOLETEBzip2Data: []byte("payload")},
		"lz4":   {Lz4Data: []byte("payload")},
		"zstd":  {ZstdData: []byte("payload")},
	} {
		t.Run(name, func(t *testing.T) {
			blob.RawSize = proto.Int32(7)
			b, err := proto.Marshal(blob)
			if err != nil {
				t.Fatal(err)
			}
			var out osmproto.Blob
			if err := proto.Unmarshal(b, &out); err != nil {
				t.Fatal(err)
			}
			if !proto.Equal(blob, &out) {
				t.Errorf("got %v, want %v", &out, blob)
			}
		})
	}
}

func TestEmptyPayloadIsSet(t *testing.T) {
	b, err := proto.Marshal(&osmproto.Blob{ZlibData: []byte{}})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(b, []byte{0x1a, 0x00}) {
		t.Fatalf("encoded % x", b)
	}
	var out osmproto.Blob
	if err := proto.Unmarshal(b, &out); err != nil {
		t.Fatal(err)
	}
	if out.ZlibData == nil {
		t.Error("empty zlib_data decoded as unset")
	}
}

func TestStringTableKeepsBytes(t *testing.T) {
	in := &osmproto.StringTable{S: [][]byte{{}, {'a', 0xff}}}
	b, err := proto.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	var out osmproto.StringTable
	if err := proto.Unmarshal(b, &out); err != nil {
		t.Fatalf("invalid UTF-8 entry rejected: %v", err)
	}
	if len(out.S) != 2 || !bytes.Equal(out.S[1], []byte{'a', 0xff}) {
		t.Errorf("S = %q", out.S)
	}
}

func TestRequiredFields(t *testing.T) {
	b, err := proto.MarshalOptions{AllowPartial: true}.Marshal(&osmproto.BlobHeader{Type: proto.String("OSMData")})
	if err != nil {
		t.Fatal(err)
	}
	if err := proto.Unmarshal(b, &osmproto.BlobHeader{}); err == nil {
		t.Error("header without datasize accepted")
	}
}

func TestDefaults(t *testing.T) {
	var pb osmproto.PrimitiveBlock
	if pb.GetGranularity() != 100 || pb.GetDateGranularity() != 1000 {
		t.Errorf("granularity %d, date granularity %d", pb.GetGranularity(), pb.GetDateGranularity())
	}
	var info osmproto.Info
	if info.GetVersion() != -1 {
		t.Errorf("version default %d", info.GetVersion())
	}
}
