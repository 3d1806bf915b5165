package source

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/edsrzf/mmap-go"
)

// Stdin is the path that selects standard input.
const Stdin = "-"

// Source is an opened PBF input. It is read sequentially from the start.
type Source struct {
	Path string
	Size int64 // 0 when unknown

	r      io.Reader
	file   *os.File
	mapped mmap.MMap
}

// Open opens path for reading. With useMmap the file is memory-mapped
// read-only instead of read through the file descriptor. Empty files and
// standard input are never mapped.
func Open(path string, useMmap bool) (*Source, error) {
	if path == Stdin {
		return &Source{Path: path, r: os.Stdin}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat input: %w", err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("input %s is a directory", path)
	}

	s := &Source{Path: path, Size: info.Size(), r: f, file: f}
	if !useMmap || s.Size == 0 {
		return s, nil
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to mmap input: %w", err)
	}
	s.mapped = m
	s.r = bytes.NewReader(m)
	return s, nil
}

// Read implements io.Reader.
func (s *Source) Read(p []byte) (int, error) {
	return s.r.Read(p)
}

// Mapped reports whether the input is memory-mapped.
func (s *Source) Mapped() bool {
	return s.mapped != nil
}

// Close unmaps and closes the input. Standard input is left open.
func (s *Source) Close() error {
	var firstErr error
	if s.mapped != nil {
		if err := s.mapped.Unmap(); err != nil {
			firstErr = fmt.Errorf("failed to unmap input: %w", err)
		}
		s.mapped = nil
	}
	if s.file != nil {
		if err := s.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.file = nil
	}
	return firstErr
}
