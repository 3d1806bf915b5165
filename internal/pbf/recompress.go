package pbf

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/zlib"
)

// Recompressor inflates blob payloads and deflates them again at a fixed
// level. It must not be shared between goroutines.
type Recompressor struct {
	level int
	d     *Decompressor
	buf   bytes.Buffer
	zw    *zlib.Writer
}

// NewRecompressor returns a Recompressor for a zlib level between
// zlib.HuffmanOnly and zlib.BestCompression.
func NewRecompressor(level int) (*Recompressor, error) {
	zw, err := zlib.NewWriterLevel(nil, level)
	if err != nil {
		return nil, fmt.Errorf("zlib level %d: %w", level, err)
	}
	return &Recompressor{level: level, d: NewDecompressor(), zw: zw}, nil
}

// Recompress returns rec with its payload deflated at the configured
// level. The inflated content is unchanged.
func (r *Recompressor) Recompress(rec BlobRecord) (BlobRecord, error) {
	block, err := r.d.Decompress(rec)
	if err != nil {
		return BlobRecord{}, err
	}

	r.buf.Reset()
	r.zw.Reset(&r.buf)
	if _, err := r.zw.Write(block.Data); err != nil {
		return BlobRecord{}, err
	}
	if err := r.zw.Close(); err != nil {
		return BlobRecord{}, err
	}

	return BlobRecord{
		Type:              rec.Type,
		Offset:            rec.Offset,
		CompressedPayload: bytes.Clone(r.buf.Bytes()),
		RawSize:           int32(len(block.Data)),
	}, nil
}
