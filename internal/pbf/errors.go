package pbf

import (
	"errors"
	"fmt"
)

// Fatal decode conditions. Any of them ends the stream.
var (
	ErrUnsupportedCompression = errors.New("unsupported blob compression")
	ErrDecompression          = errors.New("blob decompression failed")
	ErrMalformedStringTable   = errors.New("malformed string table entry")
	ErrStringIndexOutOfRange  = errors.New("string table index out of range")
	ErrFramingViolation       = errors.New("framing protocol violation")
	ErrMalformedBlock         = errors.New("malformed primitive block")
)

// Stage names the pipeline stage that failed.
type Stage string

const (
	StageFraming    Stage = "framing"
	StageDecompress Stage = "decompress"
	StageDecode     Stage = "decode"
)

// DecodeError is the error surfaced for every fatal condition. It records
// where in the pipeline and at which blob the failure happened.
type DecodeError struct {
	Stage    Stage
	Offset   uint64 // offset of the blob's size prefix
	BlobType string
	Err      error
}

func (e *DecodeError) Error() string {
	if e.BlobType == "" {
		return fmt.Sprintf("pbf %s at offset %d: %v", e.Stage, e.Offset, e.Err)
	}
	return fmt.Sprintf("pbf %s of %s blob at offset %d: %v", e.Stage, e.BlobType, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// DiagnosticKind classifies a non-fatal condition.
type DiagnosticKind string

const (
	// DiagnosticPlainNodes counts non-dense nodes skipped inside a group.
	DiagnosticPlainNodes DiagnosticKind = "unsupported_plain_nodes"
	// DiagnosticChangeSets counts changeset entries skipped inside a group.
	DiagnosticChangeSets DiagnosticKind = "unsupported_changesets"
	// DiagnosticUnknownBlob counts blobs whose type is neither OSMHeader
	// nor OSMData.
	DiagnosticUnknownBlob DiagnosticKind = "unknown_blob_type"
)

// Diagnostics maps each kind to the number of items it affected.
type Diagnostics map[DiagnosticKind]int64

// Total is the sum over all kinds.
func (d Diagnostics) Total() int64 {
	var n int64
	for _, c := range d {
		n += c
	}
	return n
}
