package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	for _, s := range []string{"debug", "INFO", "", "warning", "error"} {
		if _, err := ParseLevel(s); err != nil {
			t.Fatalf("ParseLevel(%q) failed: %v", s, err)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatal("expected unknown level error")
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, _, err := New(Config{Format: "xml"}); err == nil {
		t.Fatal("expected unknown format error")
	}
}

func TestJSONToStderrRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := newLogger(Config{Level: "warn", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("newLogger failed: %v", err)
	}
	defer closer.Close()

	logger.Info("hidden")
	logger.Warn("store degraded", "op", "check")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one record, got %q", buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("record is not JSON: %v", err)
	}
	if rec["msg"] != "store degraded" || rec["op"] != "check" {
		t.Fatalf("unexpected record %v", rec)
	}
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "goguard.log")
	var buf bytes.Buffer
	logger, closer, err := newLogger(Config{Format: "text", File: path, MaxSizeMB: 1}, &buf)
	if err != nil {
		t.Fatalf("newLogger failed: %v", err)
	}

	logger.With("component", "sweeper").Info("swept", "count", 3)
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	for _, out := range []string{string(data), buf.String()} {
		if !strings.Contains(out, "component=sweeper") || !strings.Contains(out, "count=3") {
			t.Fatalf("expected record in both outputs, got %q", out)
		}
	}
}
