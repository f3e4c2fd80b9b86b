package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

const diskExt = ".zst"

// Disk is the L2 level: one zstd-compressed file per clip under a directory.
// The index is rebuilt from the directory on open, so clips survive restarts.
type Disk struct {
	dir      string
	capacity int64

	enc *zstd.Encoder
	dec *zstd.Decoder

	mu    sync.Mutex
	size  int64
	index map[string]*diskClip
	stats Stats
}

type diskClip struct {
	size   int64 // compressed size on disk
	access time.Time
}

// OpenDisk opens (creating if needed) an L2 level in dir bounded to capacity
// bytes on disk. level is the zstd level, 1 (fastest) to 22.
func OpenDisk(dir string, capacity int64, level int) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec
		return nil, fmt.Errorf("unable to create cache directory: %w", err)
	}
	if level <= 0 {
		level = 3
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return nil, fmt.Errorf("unable to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("unable to create zstd decoder: %w", err)
	}

	d := &Disk{
		dir:      dir,
		capacity: capacity,
		enc:      enc,
		dec:      dec,
		index:    make(map[string]*diskClip),
	}
	if err := d.scan(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Disk) scan() error {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return fmt.Errorf("unable to read cache directory: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, diskExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		d.index[strings.TrimSuffix(name, diskExt)] = &diskClip{size: info.Size(), access: info.ModTime()}
		d.size += info.Size()
	}
	return nil
}

func (d *Disk) path(key string) string {
	return filepath.Join(d.dir, key+diskExt)
}

// Get reads and decompresses the clip stored under key. A clip that fails
// to decompress is removed and reported as a miss.
func (d *Disk) Get(key string) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.index[key]
	if !ok {
		d.stats.Misses++
		return nil, false
	}

	data, err := d.read(key)
	if err != nil {
		d.drop(key, c)
		d.stats.Misses++
		return nil, false
	}

	now := time.Now()
	c.access = now
	_ = os.Chtimes(d.path(key), now, now)
	d.stats.Hits++
	return data, true
}

func (d *Disk) read(key string) ([]byte, error) {
	raw, err := os.ReadFile(d.path(key))
	if err != nil {
		return nil, err
	}
	data, err := d.dec.DecodeAll(raw, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, ErrCorrupted)
	}
	return data, nil
}

// Put compresses and writes data under key, evicting the least recently
// accessed clips when the directory would exceed its capacity.
func (d *Disk) Put(key string, data []byte) error {
	packed := d.enc.EncodeAll(data, nil)
	n := int64(len(packed))
	if n > d.capacity {
		return ErrClipTooLarge
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if old, ok := d.index[key]; ok {
		d.drop(key, old)
	}
	for d.size+n > d.capacity && len(d.index) > 0 {
		d.evictOldest()
	}

	if err := writeFileAtomic(d.dir, d.path(key), packed); err != nil {
		return fmt.Errorf("unable to write cached clip: %w", err)
	}
	d.index[key] = &diskClip{size: n, access: time.Now()}
	d.size += n
	return nil
}

// Delete removes key from disk if present.
func (d *Disk) Delete(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if c, ok := d.index[key]; ok {
		d.drop(key, c)
	}
}

// RemoveOlderThan removes clips not accessed since cutoff.
func (d *Disk) RemoveOlderThan(cutoff time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	for key, c := range d.index {
		if c.access.Before(cutoff) {
			d.drop(key, c)
			removed++
		}
	}
	return removed
}

// Stats returns a snapshot of the level's counters.
func (d *Disk) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := d.stats
	s.Capacity, s.Size, s.Clips = d.capacity, d.size, len(d.index)
	return s
}

// Close releases the zstd encoder and decoder.
func (d *Disk) Close() error {
	d.dec.Close()
	return d.enc.Close()
}

// must be called with d.mu held.
func (d *Disk) drop(key string, c *diskClip) {
	_ = os.Remove(d.path(key))
	delete(d.index, key)
	d.size -= c.size
}

// must be called with d.mu held.
func (d *Disk) evictOldest() {
	keys := make([]string, 0, len(d.index))
	for k := range d.index {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return d.index[keys[i]].access.Before(d.index[keys[j]].access)
	})
	d.drop(keys[0], d.index[keys[0]])
	d.stats.Evictions++
}

func writeFileAtomic(dir, path string, data []byte) error {
	tmp, err := os.CreateTemp(dir, "clip-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
