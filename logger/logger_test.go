package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// blockingWriter never returns until release is closed.
type blockingWriter struct{ release chan struct{} }

func (w blockingWriter) Write(p []byte) (int, error) {
	<-w.release
	return len(p), nil
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"":        LevelInfo,
		"warning": LevelWarn,
		"error":   LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil {
			t.Fatalf("ParseLevel(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestLoggerWritesAndCounts(t *testing.T) {
	var out syncBuffer
	l, err := New(Options{Level: LevelDebug, Console: &out})
	if err != nil {
		t.Fatal(err)
	}
	l.Info("scan started", "modules", 5)
	l.Warn("skip", "module", "memory", "item", "pid 4", "reason", errors.New("access denied"))
	l.Error("module failed", "module", "network")
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	got := out.String()
	for _, want := range []string{"scan started", "pid 4", "access denied", "module failed"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if l.Count(LevelError) != 1 || l.Count(LevelWarn) != 1 || l.Count(LevelInfo) != 1 {
		t.Errorf("unexpected counts: info=%d warn=%d error=%d",
			l.Count(LevelInfo), l.Count(LevelWarn), l.Count(LevelError))
	}
}

func TestLoggerLevelFilterStillCounts(t *testing.T) {
	var out syncBuffer
	l, _ := New(Options{Level: LevelWarn, Console: &out})
	l.Debug("noise")
	l.Close()
	if strings.Contains(out.String(), "noise") {
		t.Error("debug line printed at warn level")
	}
	if l.Count(LevelDebug) != 1 {
		t.Errorf("debug count = %d, want 1", l.Count(LevelDebug))
	}
}

func TestLoggerNeverBlocks(t *testing.T) {
	w := blockingWriter{release: make(chan struct{})}
	l, _ := New(Options{Level: LevelDebug, Console: w, QueueSize: 2})

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			l.Info("line", "i", i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("logging blocked on a stalled writer")
	}
	if l.Dropped() == 0 {
		t.Error("expected dropped lines with a full queue")
	}
	close(w.release)
	l.Close()
}

func TestLoggerSurvivesFailingWriter(t *testing.T) {
	l, _ := New(Options{Level: LevelDebug, Console: failingWriter{}})
	for i := 0; i < 10; i++ {
		l.Error("still going")
	}
	l.Close()
	if l.Count(LevelError) != 10 {
		t.Errorf("error count = %d, want 10", l.Count(LevelError))
	}
}

func TestLoggerFileIsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "scan.log")
	var console syncBuffer
	l, err := New(Options{Level: LevelInfo, Console: &console, File: path})
	if err != nil {
		t.Fatal(err)
	}
	l.Debug("region walk", "pid", 1234)
	l.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("want 1 line in file, got %d: %q", len(lines), data)
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("file line is not JSON: %v", err)
	}
	if strings.Contains(console.String(), "region walk") {
		t.Error("debug line leaked to info console")
	}
}

func TestNopLogger(t *testing.T) {
	l := Nop()
	l.Error("x")
	if l.Count(LevelError) != 1 {
		t.Error("nop logger should still count")
	}
	if err := l.Close(); err != nil {
		t.Error(err)
	}
	var nilLogger *Logger
	nilLogger.Info("ignored")
}

func TestFileName(t *testing.T) {
	ts := time.Date(2024, 3, 1, 10, 20, 30, 0, time.UTC)
	name := FileName("out", ts)
	if !strings.HasPrefix(name, filepath.Join("out", "sysrecon_")) || !strings.HasSuffix(name, "_20240301_102030.log") {
		t.Errorf("unexpected file name %q", name)
	}
}
