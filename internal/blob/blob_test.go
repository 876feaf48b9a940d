package blob

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalStorePutWritesFileAndReturnsURL(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "/files/")
	if err != nil {
		t.Fatalf("create store: %v", err)
	}

	url, err := store.Put(context.Background(), "report.docx", []byte("payload"), "application/octet-stream")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if url != "/files/report.docx" {
		t.Fatalf("unexpected url: %q", url)
	}

	written, err := os.ReadFile(filepath.Join(dir, "report.docx"))
	if err != nil {
		t.Fatalf("read written blob: %v", err)
	}
	if string(written) != "payload" {
		t.Fatalf("unexpected content: %q", written)
	}
}

func TestLocalStoreRejectsPathTraversal(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/files")
	if err != nil {
		t.Fatalf("create store: %v", err)
	}

	for _, name := range []string{"", "../escape.docx", "nested/file.docx"} {
		_, err := store.Put(context.Background(), name, []byte("x"), "")
		if !errors.Is(err, ErrInvalidName) {
			t.Fatalf("name %q: expected ErrInvalidName, got %v", name, err)
		}
	}
}

func TestNewLocalStoreRequiresDirectory(t *testing.T) {
	if _, err := NewLocalStore("  ", "/files"); err == nil {
		t.Fatalf("expected error for empty directory")
	}
}
