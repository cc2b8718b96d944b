package filebackend

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLocalCreateEmptyAndRandomWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "temp.file")

	b := New()
	if err := b.CreateEmpty(path); err != nil {
		t.Fatalf("CreateEmpty: %v", err)
	}

	w, closer, err := b.OpenForRandomWrite(path)
	if err != nil {
		t.Fatalf("OpenForRandomWrite: %v", err)
	}
	if _, err := w.Seek(5, 0); err != nil {
		t.Fatalf("seek: %v", err)
	}
	if _, err := w.Write([]byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	size, ok, err := b.Stat(path)
	if err != nil || !ok {
		t.Fatalf("stat: ok=%v err=%v", ok, err)
	}
	if size != 10 {
		t.Fatalf("size = %d, want 10", size)
	}
}

func TestLocalWriteJSONAtomicAndReadJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "checkpoint.json")

	b := New()
	type doc struct {
		Bucket string `json:"bucket"`
	}

	if err := b.WriteJSONAtomic(path, doc{Bucket: "my-bucket"}); err != nil {
		t.Fatalf("WriteJSONAtomic: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file should not survive a successful write")
	}

	var got doc
	found, err := b.ReadJSON(path, &got)
	if err != nil || !found {
		t.Fatalf("ReadJSON: found=%v err=%v", found, err)
	}
	if got.Bucket != "my-bucket" {
		t.Fatalf("got %+v", got)
	}
}

func TestLocalReadJSONMissingFile(t *testing.T) {
	dir := t.TempDir()
	var v struct{}
	found, err := New().ReadJSON(filepath.Join(dir, "absent.json"), &v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Fatal("expected found=false for missing checkpoint")
	}
}

func TestLocalRenameAndRemove(t *testing.T) {
	dir := t.TempDir()
	b := New()

	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "nested", "dst")
	if err := b.CreateEmpty(src); err != nil {
		t.Fatal(err)
	}
	if err := b.Rename(src, dst); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if _, ok, _ := b.Stat(dst); !ok {
		t.Fatal("destination should exist after rename")
	}
	if err := b.Remove(dst); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := b.Remove(dst); err != nil {
		t.Fatalf("remove of already-missing file should be a no-op: %v", err)
	}
}
