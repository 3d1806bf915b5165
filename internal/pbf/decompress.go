package pbf

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// Decompressor inflates blob payloads. It reuses one zlib reader and must
// not be shared between goroutines.
type Decompressor struct {
	src bytes.Reader
	zr  io.ReadCloser
}

// NewDecompressor returns a ready Decompressor.
func NewDecompressor() *Decompressor {
	return &Decompressor{}
}

// Decompress inflates rec's payload. On failure nothing of the blob is
// returned.
func (d *Decompressor) Decompress(rec BlobRecord) (DecodedBlock, error) {
	data, err := d.inflate(rec.CompressedPayload)
	if err != nil {
		return DecodedBlock{}, &DecodeError{
			Stage:    StageDecompress,
			Offset:   rec.Offset,
			BlobType: rec.Type,
			Err:      fmt.Errorf("%w: %v", ErrDecompression, err),
		}
	}
	return DecodedBlock{Type: rec.Type, Offset: rec.Offset, Data: data}, nil
}

func (d *Decompressor) inflate(payload []byte) ([]byte, error) {
	d.src.Reset(payload)
	if d.zr == nil {
		zr, err := zlib.NewReader(&d.src)
		if err != nil {
			return nil, err
		}
		d.zr = zr
	} else if err := d.zr.(zlib.Resetter).Reset(&d.src, nil); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	n, err := out.ReadFrom(io.LimitReader(d.zr, MaxBlobSize+1))
	if err != nil {
		return nil, err
	}
	if n > MaxBlobSize {
		return nil, fmt.Errorf("inflated size exceeds %d bytes", MaxBlobSize)
	}
	return out.Bytes(), nil
}
