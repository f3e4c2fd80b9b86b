package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

var (
	// ErrClipTooLarge is returned when a clip exceeds a level's capacity.
	ErrClipTooLarge = errors.New("clip too large for cache")

	// ErrCorrupted is returned when a stored clip cannot be decompressed.
	ErrCorrupted = errors.New("cached clip corrupted")
)

// Level identifies a cache tier.
type Level int

const (
	LevelMemory Level = iota
	LevelDisk
)

func (l Level) String() string {
	switch l {
	case LevelMemory:
		return "memory"
	case LevelDisk:
		return "disk"
	default:
		return "unknown"
	}
}

// Stats is a snapshot of one level's counters.
type Stats struct {
	Capacity  int64
	Size      int64
	Clips     int
	Hits      int64
	Misses    int64
	Evictions int64
}

// HitRate returns hits / (hits + misses), or 0 before any lookup.
func (s Stats) HitRate() float64 {
	if s.Hits+s.Misses == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Hits+s.Misses)
}

// Key derives the storage key of a clip reference.
func Key(ref string) string {
	sum := sha256.Sum256([]byte(ref))
	return hex.EncodeToString(sum[:16])
}
