package cache

import (
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
)

// Config sizes the two levels.
type Config struct {
	// MemoryCapacity bounds L1 in bytes. Defaults to 64 MiB.
	MemoryCapacity int64

	// Dir enables L2 when non-empty.
	Dir string

	// DiskCapacity bounds L2 in compressed bytes. Defaults to 512 MiB.
	DiskCapacity int64

	// CompressionLevel is the zstd level used by L2. Defaults to 3.
	CompressionLevel int

	// TTL drops clips not used for this long. Zero disables expiry.
	TTL time.Duration

	// CleanupInterval is how often expired clips are removed. Defaults to 1h
	// when TTL is set.
	CleanupInterval time.Duration

	Logger *log.Logger
}

// DefaultConfig returns the defaults used by the CLI, with L2 disabled.
func DefaultConfig() Config {
	return Config{
		MemoryCapacity:   64 << 20,
		DiskCapacity:     512 << 20,
		CompressionLevel: 3,
		TTL:              7 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
	}
}

// Clips looks clips up in L1 then L2, promoting L2 hits into L1.
// The zero value is not usable; use New. A nil *Clips is a no-op cache.
type Clips struct {
	mem    *Memory
	disk   *Disk
	ttl    time.Duration
	logger *log.Logger

	stop      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates the cache and starts its cleanup loop when a TTL is set.
func New(cfg Config) (*Clips, error) {
	def := DefaultConfig()
	if cfg.MemoryCapacity <= 0 {
		cfg.MemoryCapacity = def.MemoryCapacity
	}
	if cfg.DiskCapacity <= 0 {
		cfg.DiskCapacity = def.DiskCapacity
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	c := &Clips{
		mem:    NewMemory(cfg.MemoryCapacity),
		ttl:    cfg.TTL,
		logger: cfg.Logger,
		stop:   make(chan struct{}),
	}
	if cfg.Dir != "" {
		d, err := OpenDisk(cfg.Dir, cfg.DiskCapacity, cfg.CompressionLevel)
		if err != nil {
			return nil, err
		}
		c.disk = d
	}

	if c.ttl > 0 {
		c.wg.Add(1)
		go c.cleanupLoop(cfg.CleanupInterval)
	}
	return c, nil
}

// Get returns the encoded clip for ref.
func (c *Clips) Get(ref string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	key := Key(ref)
	if data, ok := c.mem.Get(key); ok {
		return data, true
	}
	if c.disk == nil {
		return nil, false
	}
	data, ok := c.disk.Get(key)
	if !ok {
		return nil, false
	}
	_ = c.mem.Put(key, data)
	c.logger.Debug("Clip promoted from disk", "ref", ref, "size", humanize.IBytes(uint64(len(data))))
	return data, true
}

// Put stores a complete encoded clip for ref in both levels. Oversized
// clips are skipped silently.
func (c *Clips) Put(ref string, data []byte) {
	if c == nil || len(data) == 0 {
		return
	}
	key := Key(ref)
	if err := c.mem.Put(key, data); err != nil && !errors.Is(err, ErrClipTooLarge) {
		c.logger.Warn("Unable to cache clip in memory", "ref", ref, "err", err)
	}
	if c.disk == nil {
		return
	}
	if err := c.disk.Put(key, data); err != nil && !errors.Is(err, ErrClipTooLarge) {
		c.logger.Warn("Unable to cache clip on disk", "ref", ref, "err", err)
	}
}

// Forget drops ref from both levels.
func (c *Clips) Forget(ref string) {
	if c == nil {
		return
	}
	key := Key(ref)
	c.mem.Delete(key)
	if c.disk != nil {
		c.disk.Delete(key)
	}
}

// Stats returns per-level snapshots. The disk entry is absent when L2 is
// disabled.
func (c *Clips) Stats() map[Level]Stats {
	out := map[Level]Stats{LevelMemory: c.mem.Stats()}
	if c.disk != nil {
		out[LevelDisk] = c.disk.Stats()
	}
	return out
}

// Cleanup removes clips older than the TTL from both levels.
func (c *Clips) Cleanup() {
	if c.ttl <= 0 {
		return
	}
	n := c.mem.Prune(c.ttl)
	if c.disk != nil {
		n += c.disk.RemoveOlderThan(time.Now().Add(-c.ttl))
	}
	if n > 0 {
		c.logger.Debug("Expired clips removed", "count", n)
	}
}

func (c *Clips) cleanupLoop(every time.Duration) {
	defer c.wg.Done()

	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			c.Cleanup()
		case <-c.stop:
			return
		}
	}
}

// Close stops the cleanup loop and releases L2.
func (c *Clips) Close() error {
	if c == nil {
		return nil
	}
	var err error
	c.closeOnce.Do(func() {
		close(c.stop)
		c.wg.Wait()
		if c.disk != nil {
			err = c.disk.Close()
		}
	})
	return err
}
