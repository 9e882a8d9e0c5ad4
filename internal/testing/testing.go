// Package testing holds helpers shared by package tests and [FakePlatform], an in-memory YouTube.
package testing

import (
	"errors"
	"io"
	"os"
	"testing"
)

// ErrWrite is returned by a [FailingWriter] once it runs out of writes.
var ErrWrite = errors.New("write failed")

// FailingWriter passes n writes through to target, then fails.
type FailingWriter struct {
	n      int
	target io.Writer
}

// FailAfter returns a writer that accepts n writes. A nil target discards them.
func FailAfter(n int, target io.Writer) *FailingWriter {
	if target == nil {
		target = io.Discard
	}
	return &FailingWriter{n: n, target: target}
}

func (w *FailingWriter) Write(p []byte) (int, error) {
	if w.n <= 0 {
		return 0, ErrWrite
	}
	w.n--
	return w.target.Write(p)
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected file %s: %v", path, err)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(content)
}
