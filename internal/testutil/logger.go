// Package testutil holds logging helpers shared by package tests.
package testutil

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// NewTestLogger returns a debug logger writing through t.Log, so output only
// shows for failing tests or with -v.
func NewTestLogger(t testing.TB) *slog.Logger {
	t.Helper()
	logger, _ := NewCaptureLogger(t)
	return logger
}

// LogCapture keeps every line logged through a capture logger.
// It is safe for concurrent use by pipeline workers.
type LogCapture struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// Lines returns the logged lines in order.
func (c *LogCapture) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	text := strings.TrimRight(c.buf.String(), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// Contains reports whether a logged line contains every one of parts.
func (c *LogCapture) Contains(parts ...string) bool {
	for _, line := range c.Lines() {
		matched := true
		for _, p := range parts {
			if !strings.Contains(line, p) {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}

// NewCaptureLogger is NewTestLogger that also records lines for assertions.
func NewCaptureLogger(t testing.TB) (*slog.Logger, *LogCapture) {
	t.Helper()
	c := &LogCapture{}
	handler := slog.NewTextHandler(captureWriter{t: t, c: c}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	return slog.New(handler), c
}

type captureWriter struct {
	t testing.TB
	c *LogCapture
}

func (w captureWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.c.mu.Lock()
	w.c.buf.Write(p)
	w.c.mu.Unlock()
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
