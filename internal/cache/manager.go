// Package cache memoizes expensive phase results keyed by content
// fingerprint, with TTL expiry and LRU eviction under a byte budget.
// It is the only state shared across concurrent feature orchestrators,
// so every operation is safe under concurrent access.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Entry is one cached phase result.
type Entry struct {
	Fingerprint string
	Result      string
	CreatedAt   time.Time
	TTL         time.Duration
	Size        int64
}

// expired reports whether the entry's TTL elapsed. Zero TTL never expires.
func (e *Entry) expired(now time.Time) bool {
	return e.TTL > 0 && now.Sub(e.CreatedAt) > e.TTL
}

// Stats are cumulative counters for reporting.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Entries   int
	TotalSize int64
}

// HitRate returns hits / (hits + misses), or 0 when nothing was looked up.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Manager is a concurrent-safe LRU cache with per-entry TTL and an
// aggregate byte budget. A write race for the same fingerprint resolves
// last-write-wins; content is deterministic per fingerprint, so either
// writer's value is acceptable.
type Manager struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	lru        *list.List // front = most recently used
	totalSize  int64
	sizeBudget int64
	defaultTTL time.Duration

	hits      int64
	misses    int64
	evictions int64
}

// NewManager creates a cache with the given byte budget and default
// TTL. A non-positive budget disables eviction; a non-positive TTL
// disables expiry.
func NewManager(sizeBudget int64, defaultTTL time.Duration) *Manager {
	return &Manager{
		entries:    make(map[string]*list.Element),
		lru:        list.New(),
		sizeBudget: sizeBudget,
		defaultTTL: defaultTTL,
	}
}

// Get returns the cached result for a fingerprint. Expired entries are
// removed and reported as misses: the cache fails closed.
func (m *Manager) Get(fingerprint string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.entries[fingerprint]
	if !ok {
		m.misses++
		return "", false
	}

	entry := elem.Value.(*Entry)
	if entry.expired(time.Now()) {
		m.removeLocked(elem)
		m.misses++
		return "", false
	}

	m.lru.MoveToFront(elem)
	m.hits++
	return entry.Result, true
}

// Put stores a result, overwriting any existing entry for the same
// fingerprint, and evicts least-recently-used entries until the byte
// budget holds. Eviction is synchronous with the write so the budget
// invariant is true after every Put returns.
func (m *Manager) Put(fingerprint, result string) {
	m.PutTTL(fingerprint, result, m.defaultTTL)
}

// PutTTL is Put with an explicit TTL for this entry.
func (m *Manager) PutTTL(fingerprint, result string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if elem, ok := m.entries[fingerprint]; ok {
		m.removeLocked(elem)
	}

	entry := &Entry{
		Fingerprint: fingerprint,
		Result:      result,
		CreatedAt:   time.Now(),
		TTL:         ttl,
		Size:        int64(len(result)),
	}
	elem := m.lru.PushFront(entry)
	m.entries[fingerprint] = elem
	m.totalSize += entry.Size

	m.evictLocked()
}

// Len returns the number of live entries.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lru.Len()
}

// Stats returns a snapshot of the cache counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		Hits:      m.hits,
		Misses:    m.misses,
		Evictions: m.evictions,
		Entries:   m.lru.Len(),
		TotalSize: m.totalSize,
	}
}

// evictLocked drops least-recently-used entries until the budget holds.
func (m *Manager) evictLocked() {
	if m.sizeBudget <= 0 {
		return
	}
	for m.totalSize > m.sizeBudget && m.lru.Len() > 0 {
		oldest := m.lru.Back()
		m.removeLocked(oldest)
		m.evictions++
	}
}

func (m *Manager) removeLocked(elem *list.Element) {
	entry := elem.Value.(*Entry)
	m.lru.Remove(elem)
	delete(m.entries, entry.Fingerprint)
	m.totalSize -= entry.Size
}
