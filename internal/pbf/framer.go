package pbf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"google.golang.org/protobuf/proto"

	"github.com/wegman-software/pbfstream/internal/osmproto"
)

// Blob types found in OSM PBF files.
const (
	BlobTypeHeader = "OSMHeader"
	BlobTypeData   = "OSMData"
)

// Size limits from the file format description.
const (
	MaxBlobHeaderSize = 64 * 1024
	MaxBlobSize       = 32 * 1024 * 1024
)

// BlobRecord is one framed, still compressed blob.
type BlobRecord struct {
	Type              string
	Offset            uint64 // position of the 4-byte size prefix in the stream
	CompressedPayload []byte // zlib_data of the Blob message
	RawSize           int32  // inflated size declared by the Blob, 0 if absent
}

// DecodedBlock is a BlobRecord whose payload has been inflated.
type DecodedBlock struct {
	Type   string
	Offset uint64
	Data   []byte
}

// BlobHeader is the decoded header record that precedes each blob.
type BlobHeader struct {
	Type     string
	DataSize int32
}

// ReadBlobHeader decodes a header record. The type and datasize fields
// are required.
func ReadBlobHeader(b []byte) (BlobHeader, error) {
	var h osmproto.BlobHeader
	if err := proto.Unmarshal(b, &h); err != nil {
		return BlobHeader{}, err
	}
	return BlobHeader{Type: h.GetType(), DataSize: h.GetDatasize()}, nil
}

// Compression is the payload variant carried by a Blob.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionRaw
	CompressionZlib
	CompressionLzma
	CompressionBzip2
	CompressionLz4
	CompressionZstd
)

func (c Compression) String() string {
	switch c {
	case CompressionRaw:
		return "raw"
	case CompressionZlib:
		return "zlib"
	case CompressionLzma:
		return "lzma"
	case CompressionBzip2:
		return "bzip2"
	case CompressionLz4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return "none"
	}
}

// blobPayload reports which payload field of blob is set, with its bytes.
// When several are set the first in field order wins.
func blobPayload(blob *osmproto.Blob) (Compression, []byte) {
	switch {
	case blob.Raw != nil:
		return CompressionRaw, blob.Raw
	case blob.ZlibData != nil:
		return CompressionZlib, blob.ZlibData
	case blob.LzmaData != nil:
		return CompressionLzma, blob.LzmaData
	case blob.OBSOLETEBzip2Data != nil:
		return CompressionBzip2, blob.OBSOLETEBzip2Data
	case blob.Lz4Data != nil:
		return CompressionLz4, blob.Lz4Data
	case blob.ZstdData != nil:
		return CompressionZstd, blob.ZstdData
	}
	return CompressionNone, nil
}

type framerState int

const (
	awaitingSize framerState = iota
	awaitingHeader
	awaitingBlob
)

// Framer turns an arbitrarily chunked byte stream into BlobRecords. Bytes
// that do not yet complete a record are kept until the next Feed.
type Framer struct {
	state   framerState
	waiting int
	pending []byte

	offset     uint64 // bytes consumed so far
	sizeOffset uint64 // offset of the record being assembled
	header     BlobHeader
}

// NewFramer returns a Framer waiting for the first size prefix.
func NewFramer() *Framer {
	return &Framer{state: awaitingSize, waiting: 4}
}

// Offset is the number of stream bytes consumed by completed transitions.
func (f *Framer) Offset() uint64 {
	return f.offset
}

// Buffered is the number of bytes held back for the next Feed.
func (f *Framer) Buffered() int {
	return len(f.pending)
}

// Feed consumes chunk, calling emit for every record it completes, in
// stream order. All complete transitions in the chunk are processed before
// Feed returns. chunk may be reused by the caller afterwards.
func (f *Framer) Feed(chunk []byte, emit func(BlobRecord) error) error {
	buf := chunk
	if len(f.pending) > 0 {
		f.pending = append(f.pending, chunk...)
		buf = f.pending
	}

	for len(buf) >= f.waiting {
		n := f.waiting
		if err := f.step(buf[:n], emit); err != nil {
			return err
		}
		buf = buf[n:]
	}

	f.pending = append(f.pending[:0], buf...)
	return nil
}

// Close reports a framing violation if the stream ended inside a record.
func (f *Framer) Close() error {
	if f.state == awaitingSize && len(f.pending) == 0 {
		return nil
	}
	return f.fail(fmt.Errorf("%w: stream ended with %d of %d bytes of %s",
		ErrFramingViolation, len(f.pending), f.waiting, f.stateName()))
}

func (f *Framer) step(b []byte, emit func(BlobRecord) error) error {
	switch f.state {
	case awaitingSize:
		f.sizeOffset = f.offset
		f.header = BlobHeader{}
		size := binary.BigEndian.Uint32(b)
		if size == 0 {
			return f.fail(fmt.Errorf("%w: empty blob header", ErrFramingViolation))
		}
		if size > MaxBlobHeaderSize {
			return f.fail(fmt.Errorf("%w: blob header length %d exceeds %d", ErrFramingViolation, size, MaxBlobHeaderSize))
		}
		f.advance(awaitingHeader, int(size))

	case awaitingHeader:
		header, err := ReadBlobHeader(b)
		if err != nil {
			return f.fail(fmt.Errorf("%w: blob header: %v", ErrFramingViolation, err))
		}
		if header.DataSize < 0 || header.DataSize > MaxBlobSize {
			return f.fail(fmt.Errorf("%w: blob size %d outside [0, %d]", ErrFramingViolation, header.DataSize, MaxBlobSize))
		}
		f.header = header
		f.advance(awaitingBlob, int(header.DataSize))

	case awaitingBlob:
		var blob osmproto.Blob
		if err := proto.Unmarshal(b, &blob); err != nil {
			return f.fail(fmt.Errorf("%w: blob: %v", ErrFramingViolation, err))
		}
		kind, payload := blobPayload(&blob)
		if kind != CompressionZlib {
			return f.fail(fmt.Errorf("%w: %s", ErrUnsupportedCompression, kind))
		}
		rec := BlobRecord{
			Type:              f.header.Type,
			Offset:            f.sizeOffset,
			CompressedPayload: bytes.Clone(payload),
			RawSize:           blob.GetRawSize(),
		}
		f.advance(awaitingSize, 4)
		return emit(rec)
	}
	return nil
}

func (f *Framer) advance(next framerState, waiting int) {
	f.offset += uint64(f.waiting)
	f.state = next
	f.waiting = waiting
}

func (f *Framer) fail(err error) error {
	return &DecodeError{Stage: StageFraming, Offset: f.sizeOffset, BlobType: f.header.Type, Err: err}
}

func (f *Framer) stateName() string {
	switch f.state {
	case awaitingHeader:
		return "blob header"
	case awaitingBlob:
		return "blob"
	default:
		return "size prefix"
	}
}

// BlobReader pulls BlobRecords from an io.Reader, reading chunkSize bytes
// at a time. Records completed before a failure are still returned; the
// failure is reported once they are drained.
type BlobReader struct {
	r      io.Reader
	framer *Framer
	buf    []byte
	queue  []BlobRecord
	err    error
}

// DefaultChunkSize is the read size used when none is given.
const DefaultChunkSize = 64 * 1024

// NewBlobReader wraps r. A chunkSize below 1 selects DefaultChunkSize.
func NewBlobReader(r io.Reader, chunkSize int) *BlobReader {
	if chunkSize < 1 {
		chunkSize = DefaultChunkSize
	}
	return &BlobReader{r: r, framer: NewFramer(), buf: make([]byte, chunkSize)}
}

// Offset is the number of stream bytes framed so far.
func (br *BlobReader) Offset() uint64 {
	return br.framer.Offset()
}

// Next returns the next record, or io.EOF after the last complete one.
func (br *BlobReader) Next() (BlobRecord, error) {
	for len(br.queue) == 0 {
		if br.err != nil {
			return BlobRecord{}, br.err
		}
		br.fill()
	}

	rec := br.queue[0]
	br.queue[0] = BlobRecord{}
	br.queue = br.queue[1:]
	return rec, nil
}

func (br *BlobReader) fill() {
	n, err := br.r.Read(br.buf)
	if n > 0 {
		if ferr := br.framer.Feed(br.buf[:n], br.enqueue); ferr != nil {
			br.err = ferr
			return
		}
	}
	switch {
	case err == io.EOF:
		br.err = io.EOF
		if cerr := br.framer.Close(); cerr != nil {
			br.err = cerr
		}
	case err != nil:
		br.err = err
	}
}

func (br *BlobReader) enqueue(rec BlobRecord) error {
	br.queue = append(br.queue, rec)
	return nil
}
