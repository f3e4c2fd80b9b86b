package cache

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDisk_PutGet(t *testing.T) {
	d, err := OpenDisk(t.TempDir(), 1<<20, 3)
	if err != nil {
		t.Fatalf("OpenDisk failed: %v", err)
	}
	defer d.Close() //nolint:errcheck

	clip := bytes.Repeat([]byte("RIFF-pcm-"), 500)
	if err := d.Put("k", clip); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, ok := d.Get("k")
	if !ok {
		t.Fatal("Get missed")
	}
	if !bytes.Equal(got, clip) {
		t.Error("clip changed through the disk level")
	}
	if s := d.Stats(); s.Size >= int64(len(clip)) {
		t.Errorf("repetitive clip should compress, size %d", s.Size)
	}
}

func TestDisk_Reopen(t *testing.T) {
	dir := t.TempDir()
	d, err := OpenDisk(dir, 1<<20, 3)
	if err != nil {
		t.Fatalf("OpenDisk failed: %v", err)
	}
	if err := d.Put("k", []byte("persisted clip")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	_ = d.Close()

	d2, err := OpenDisk(dir, 1<<20, 3)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer d2.Close() //nolint:errcheck

	got, ok := d2.Get("k")
	if !ok || string(got) != "persisted clip" {
		t.Errorf("Get after reopen = %q, %v", got, ok)
	}
	if d2.Stats().Clips != 1 {
		t.Errorf("Clips = %d, want 1", d2.Stats().Clips)
	}
}

func TestDisk_CorruptedClipIsMiss(t *testing.T) {
	dir := t.TempDir()
	d, err := OpenDisk(dir, 1<<20, 3)
	if err != nil {
		t.Fatalf("OpenDisk failed: %v", err)
	}
	defer d.Close() //nolint:errcheck

	if err := d.Put("k", []byte("clip")); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "k"+diskExt), []byte("not zstd"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, ok := d.Get("k"); ok {
		t.Error("corrupted clip should be a miss")
	}
	if _, err := os.Stat(filepath.Join(dir, "k"+diskExt)); !errors.Is(err, os.ErrNotExist) {
		t.Error("corrupted clip should be removed")
	}
}

func TestDisk_Eviction(t *testing.T) {
	d, err := OpenDisk(t.TempDir(), 1<<20, 1)
	if err != nil {
		t.Fatalf("OpenDisk failed: %v", err)
	}
	defer d.Close() //nolint:errcheck

	_ = d.Put("first", []byte("first clip"))
	time.Sleep(10 * time.Millisecond)
	_ = d.Put("second", []byte("second clip"))

	// Shrink the budget so only one clip fits.
	d.capacity = d.Stats().Size - 1
	if err := d.Put("third", []byte("third clip")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, ok := d.Get("first"); ok {
		t.Error("oldest clip should have been evicted")
	}
	if _, ok := d.Get("third"); !ok {
		t.Error("newest clip should be present")
	}
	if d.Stats().Evictions == 0 {
		t.Error("expected evictions to be counted")
	}
}

func TestDisk_RemoveOlderThan(t *testing.T) {
	d, err := OpenDisk(t.TempDir(), 1<<20, 3)
	if err != nil {
		t.Fatalf("OpenDisk failed: %v", err)
	}
	defer d.Close() //nolint:errcheck

	_ = d.Put("a", []byte("a"))
	_ = d.Put("b", []byte("b"))
	if n := d.RemoveOlderThan(time.Now().Add(time.Minute)); n != 2 {
		t.Errorf("RemoveOlderThan() = %d, want 2", n)
	}
	if d.Stats().Size != 0 {
		t.Errorf("Size = %d after removal", d.Stats().Size)
	}
}
