package cache

import (
	"container/list"
	"sync"
	"time"
)

// Memory is the L1 level: a byte-bounded LRU of encoded clips.
type Memory struct {
	mu       sync.Mutex
	capacity int64
	size     int64
	clips    map[string]*list.Element
	lru      *list.List
	stats    Stats
}

type memoryClip struct {
	key    string
	data   []byte
	stored time.Time
}

// NewMemory creates an L1 level holding at most capacity bytes.
func NewMemory(capacity int64) *Memory {
	return &Memory{
		capacity: capacity,
		clips:    make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Get returns the clip stored under key and marks it most recently used.
func (m *Memory) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.clips[key]
	if !ok {
		m.stats.Misses++
		return nil, false
	}
	m.lru.MoveToFront(el)
	m.stats.Hits++
	return el.Value.(*memoryClip).data, true
}

// Put stores data under key, evicting least recently used clips to make room.
// data must not be modified afterwards.
func (m *Memory) Put(key string, data []byte) error {
	n := int64(len(data))
	if n > m.capacity {
		return ErrClipTooLarge
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.clips[key]; ok {
		c := el.Value.(*memoryClip)
		m.size += n - int64(len(c.data))
		c.data, c.stored = data, time.Now()
		m.lru.MoveToFront(el)
	} else {
		m.clips[key] = m.lru.PushFront(&memoryClip{key: key, data: data, stored: time.Now()})
		m.size += n
	}

	for m.size > m.capacity && m.lru.Len() > 1 {
		m.remove(m.lru.Back())
		m.stats.Evictions++
	}
	return nil
}

// Delete drops key if present.
func (m *Memory) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.clips[key]; ok {
		m.remove(el)
	}
}

// Prune drops clips stored before now minus maxAge and returns how many.
func (m *Memory) Prune(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	pruned := 0
	for el := m.lru.Back(); el != nil; {
		prev := el.Prev()
		if el.Value.(*memoryClip).stored.Before(cutoff) {
			m.remove(el)
			pruned++
		}
		el = prev
	}
	return pruned
}

// Stats returns a snapshot of the level's counters.
func (m *Memory) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.stats
	s.Capacity, s.Size, s.Clips = m.capacity, m.size, len(m.clips)
	return s
}

// must be called with m.mu held.
func (m *Memory) remove(el *list.Element) {
	c := m.lru.Remove(el).(*memoryClip)
	delete(m.clips, c.key)
	m.size -= int64(len(c.data))
}
