package logging

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
		ok   bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{"warn", slog.LevelWarn, true},
		{"warning", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"loud", slog.LevelInfo, false},
	}
	for _, tc := range cases {
		got, err := ParseLevel(tc.in)
		if (err == nil) != tc.ok {
			t.Errorf("ParseLevel(%q) err = %v, want ok=%v", tc.in, err, tc.ok)
		}
		if tc.ok && got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestFileOutputWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clipd.log")
	l, err := New(&Config{
		Level:    slog.LevelInfo,
		Format:   FormatJSON,
		Output:   "file",
		FilePath: path,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	l.Info("delivery settled", "state", "idle")
	if err := l.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	defer l.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}

	var rec map[string]any
	line := strings.TrimSpace(string(data))
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v\n%s", err, line)
	}
	if rec["msg"] != "delivery settled" {
		t.Errorf("msg = %v", rec["msg"])
	}
	if rec["component"] != "" && rec["component"] != nil && rec["component"] != "clipd" {
		t.Errorf("component = %v", rec["component"])
	}
	if rec["state"] != "idle" {
		t.Errorf("state = %v", rec["state"])
	}
}

func TestLevelFiltering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clipd.log")
	l, err := New(&Config{
		Level:    slog.LevelWarn,
		Format:   FormatText,
		Output:   "file",
		FilePath: path,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	l.Debug("invisible")
	l.Info("also invisible")
	l.Warn("visible")
	l.Sync()
	defer l.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if strings.Contains(out, "invisible") {
		t.Error("records below warn leaked through")
	}
	if !strings.Contains(out, "visible") {
		t.Error("warn record missing")
	}
}

func TestRotationKeepsBackups(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clipd.log")

	r, err := NewFileRotator(path, 1, 2)
	if err != nil {
		t.Fatalf("NewFileRotator: %v", err)
	}
	defer r.Close()

	// The bound is 1 MiB; each write is 512 KiB, so every other write
	// rotates.
	chunk := strings.Repeat("x", 512*1024)
	for i := 0; i < 8; i++ {
		if _, err := r.Write([]byte(chunk)); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("active log file missing: %v", err)
	}
	rotated, err := filepath.Glob(filepath.Join(dir, "clipd-*.log"))
	if err != nil {
		t.Fatal(err)
	}
	if len(rotated) == 0 {
		t.Fatal("no rotated backups produced")
	}
}

func TestWithComponent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clipd.log")
	l, err := New(&Config{
		Level:    slog.LevelInfo,
		Format:   FormatJSON,
		Output:   "file",
		FilePath: path,
		// Root component left empty so the override is the only one.
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	l.WithComponent("watcher").Info("poll tick")
	l.Sync()
	defer l.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"component":"watcher"`) {
		t.Errorf("component attr missing: %s", data)
	}
}
