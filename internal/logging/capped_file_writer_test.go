package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestCappedFileWriterAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parlor.log")
	w, err := newCappedFileWriter(path, 1)
	if err != nil {
		t.Fatalf("newCappedFileWriter: %v", err)
	}
	defer w.Close()

	if _, err := w.Write([]byte("one\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := w.Write([]byte("two\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "one\ntwo\n" {
		t.Fatalf("unexpected contents: %q", data)
	}
}

func TestCappedFileWriterTruncatesAtCap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parlor.log")
	w, err := newCappedFileWriter(path, 1)
	if err != nil {
		t.Fatalf("newCappedFileWriter: %v", err)
	}
	defer w.Close()
	w.maxBytes = 16

	if _, err := w.Write(bytes.Repeat([]byte("a"), 12)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := w.Write(bytes.Repeat([]byte("b"), 12)); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != string(bytes.Repeat([]byte("b"), 12)) {
		t.Fatalf("expected truncation before second write, got %q", data)
	}
}
