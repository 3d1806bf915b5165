package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestBuildWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pbfstream.log")
	l := build(false, path)

	l.Debug("hidden")
	l.Info("decode finished")
	l.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, `"msg":"decode finished"`) {
		t.Errorf("log file missing info entry: %s", out)
	}
	if strings.Contains(out, "hidden") {
		t.Error("debug entry written at info level")
	}
}

func TestBuildDebugLevel(t *testing.T) {
	if !build(true, "").Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug logger should enable debug level")
	}
	if build(false, "").Core().Enabled(zapcore.DebugLevel) {
		t.Error("default logger should not enable debug level")
	}
}

func TestGetInitializes(t *testing.T) {
	if Get() == nil {
		t.Fatal("Get returned nil")
	}
	Sync()
}
