package source

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.osm.pbf")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestOpen(t *testing.T) {
	data := []byte("\x00\x00\x00\x0dsome pbf bytes")
	path := writeTemp(t, data)

	tests := []struct {
		name       string
		useMmap    bool
		wantMapped bool
	}{
		{"file", false, false},
		{"mmap", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := Open(path, tt.useMmap)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer src.Close()

			if src.Mapped() != tt.wantMapped {
				t.Errorf("Mapped() = %v, want %v", src.Mapped(), tt.wantMapped)
			}
			if src.Size != int64(len(data)) {
				t.Errorf("Size = %d, want %d", src.Size, len(data))
			}
			got, err := io.ReadAll(src)
			if err != nil {
				t.Fatalf("ReadAll() error = %v", err)
			}
			if string(got) != string(data) {
				t.Errorf("read %q, want %q", got, data)
			}
		})
	}
}

func TestOpenEmptyFileIsNotMapped(t *testing.T) {
	src, err := Open(writeTemp(t, nil), true)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer src.Close()

	if src.Mapped() {
		t.Error("empty file should not be mapped")
	}
	if n, err := src.Read(make([]byte, 8)); n != 0 || err != io.EOF {
		t.Errorf("Read() = %d, %v; want 0, EOF", n, err)
	}
}

func TestOpenErrors(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing.pbf"), false); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Open(t.TempDir(), false); err == nil {
		t.Error("expected error for directory")
	}
}

func TestCloseTwice(t *testing.T) {
	src, err := Open(writeTemp(t, []byte("x")), true)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := src.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
