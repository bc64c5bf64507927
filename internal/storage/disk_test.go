package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/custsim/internal/models"
)

func TestFileSizes(t *testing.T) {
	dir := t.TempDir()

	f1 := filepath.Join(dir, "f1.txt")
	if err := os.WriteFile(f1, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	f2 := filepath.Join(dir, "f2.txt")
	if err := os.WriteFile(f2, []byte("ab"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := fileSizes(f1, f2, filepath.Join(dir, "missing"))
	if err != nil {
		t.Fatal(err)
	}
	if got != 7 {
		t.Errorf("got %d bytes, want 7", got)
	}
}

func TestSQLiteStorage_DiskUsageBytes(t *testing.T) {
	mem, err := NewSQLiteStorage(MemoryPath)
	if err != nil {
		t.Fatal(err)
	}
	defer mem.Close()
	if n, err := mem.DiskUsageBytes(); err != nil || n != 0 {
		t.Errorf("in-memory usage = %d, %v; want 0", n, err)
	}

	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "log.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	err = store.CreateBatch(context.Background(), &models.IngestReport{
		BatchID: "b1", Status: models.IngestSucceeded, RecordCount: 1, ReceivedAt: time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}
	n, err := store.DiskUsageBytes()
	if err != nil {
		t.Fatal(err)
	}
	if n <= 0 {
		t.Errorf("file-backed usage = %d, want > 0", n)
	}
}
