package pbf

import (
	"encoding/binary"
	"fmt"
	"io"

	"google.golang.org/protobuf/proto"

	"github.com/wegman-software/pbfstream/internal/osmproto"
)

// EncodeBlob frames rec as wire bytes: the big-endian header length, the
// BlobHeader and the Blob carrying CompressedPayload as zlib_data. A
// positive RawSize is written as raw_size. rec.Offset is ignored.
func EncodeBlob(rec BlobRecord) ([]byte, error) {
	blob := &osmproto.Blob{ZlibData: rec.CompressedPayload}
	if blob.ZlibData == nil {
		blob.ZlibData = []byte{}
	}
	if rec.RawSize > 0 {
		blob.RawSize = proto.Int32(rec.RawSize)
	}
	blobBytes, err := proto.Marshal(blob)
	if err != nil {
		return nil, fmt.Errorf("could not marshal blob: %w", err)
	}

	header := &osmproto.BlobHeader{
		Type:     proto.String(rec.Type),
		Datasize: proto.Int32(int32(len(blobBytes))),
	}
	headerBytes, err := proto.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("could not marshal blob header: %w", err)
	}

	out := make([]byte, 4, 4+len(headerBytes)+len(blobBytes))
	binary.BigEndian.PutUint32(out, uint32(len(headerBytes)))
	out = append(out, headerBytes...)
	return append(out, blobBytes...), nil
}

// BlobWriter writes each record as one self-contained framed blob.
type BlobWriter struct {
	w       io.Writer
	written int64
}

// NewBlobWriter returns a BlobWriter writing to w.
func NewBlobWriter(w io.Writer) *BlobWriter {
	return &BlobWriter{w: w}
}

// Write encodes rec and writes it in a single call.
func (bw *BlobWriter) Write(rec BlobRecord) error {
	b, err := EncodeBlob(rec)
	if err != nil {
		return err
	}
	n, err := bw.w.Write(b)
	bw.written += int64(n)
	if err != nil {
		return fmt.Errorf("write %s blob: %w", rec.Type, err)
	}
	return nil
}

// Written is the number of bytes written so far.
func (bw *BlobWriter) Written() int64 {
	return bw.written
}
