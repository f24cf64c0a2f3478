package ratelimit

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

const defaultShards = 32

// window is one key's sliding window. dead is set when the sweeper unlinks it;
// a Record that raced with the sweep retries against a fresh window.
type window struct {
	mu         sync.Mutex
	timestamps []time.Time // ascending
	expiresAt  time.Time   // last timestamp + window; after this the window is empty
	dead       bool
}

type shard struct {
	mu      sync.Mutex
	windows map[string]*window
}

// MemoryStore is an in-process Store. Keys are spread over shards so that
// unrelated keys rarely contend, and each key's timestamps are mutated under
// that key's own lock.
type MemoryStore struct {
	shards []*shard
	now    func() time.Time

	cleanupInterval time.Duration
	initialCapacity int
	stopCleanup     chan struct{}
	cleanupOnce     sync.Once
}

var _ Store = (*MemoryStore)(nil)

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithCleanupInterval sets how often empty windows are swept. Zero disables the sweeper.
func WithCleanupInterval(interval time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) {
		if interval >= 0 {
			s.cleanupInterval = interval
		}
	}
}

// WithShards sets the number of shards.
func WithShards(n int) MemoryStoreOption {
	return func(s *MemoryStore) {
		if n > 0 {
			s.shards = make([]*shard, n)
		}
	}
}

// WithInitialCapacity sets the initial capacity of a new key's timestamp slice.
func WithInitialCapacity(capacity int) MemoryStoreOption {
	return func(s *MemoryStore) {
		if capacity > 0 {
			s.initialCapacity = capacity
		}
	}
}

// WithStoreClock replaces time.Now for the sweeper.
func WithStoreClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryStore creates a MemoryStore and starts its sweeper.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		shards:          make([]*shard, defaultShards),
		now:             time.Now,
		cleanupInterval: time.Minute,
		initialCapacity: 8,
		stopCleanup:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	for i := range s.shards {
		s.shards[i] = &shard{windows: make(map[string]*window)}
	}

	if s.cleanupInterval > 0 {
		go s.cleanupLoop()
	}
	return s
}

func (s *MemoryStore) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

// acquire returns key's window locked, creating it if needed.
func (s *MemoryStore) acquire(key string) *window {
	sh := s.shardFor(key)
	for {
		sh.mu.Lock()
		w, ok := sh.windows[key]
		if !ok {
			w = &window{timestamps: make([]time.Time, 0, s.initialCapacity)}
			sh.windows[key] = w
		}
		sh.mu.Unlock()

		w.mu.Lock()
		if !w.dead {
			return w
		}
		w.mu.Unlock()
	}
}

func (s *MemoryStore) Record(ctx context.Context, key string, now time.Time, win time.Duration, limit int) (Window, error) {
	if err := ctx.Err(); err != nil {
		return Window{}, err
	}

	w := s.acquire(key)
	defer w.mu.Unlock()

	w.prune(now.Add(-win))

	res := Window{Count: len(w.timestamps)}
	if res.Count < limit {
		w.timestamps = append(w.timestamps, now)
		w.expiresAt = now.Add(win)
		res.Allowed = true
		res.Count++
	}
	if len(w.timestamps) > 0 {
		res.Oldest = w.timestamps[0]
	}
	return res, nil
}

// prune drops timestamps at or before cutoff. Timestamps are ascending unless
// the caller's clock went backwards, in which case the scan still finds the
// first one inside the window.
func (w *window) prune(cutoff time.Time) {
	i := 0
	for i < len(w.timestamps) && !w.timestamps[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return
	}
	n := copy(w.timestamps, w.timestamps[i:])
	w.timestamps = w.timestamps[:n]
}

func (s *MemoryStore) Reset(ctx context.Context, key string) error {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if w, ok := sh.windows[key]; ok {
		w.mu.Lock()
		w.dead = true
		w.mu.Unlock()
		delete(sh.windows, key)
	}
	return nil
}

// Len returns the number of keys currently tracked.
func (s *MemoryStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.windows)
		sh.mu.Unlock()
	}
	return n
}

// Sweep drops every key whose window holds no timestamps at now and returns
// how many were dropped. It is called by the background sweeper and can be
// called directly.
func (s *MemoryStore) Sweep(now time.Time) int {
	dropped := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for key, w := range sh.windows {
			w.mu.Lock()
			if !now.Before(w.expiresAt) {
				w.dead = true
				delete(sh.windows, key)
				dropped++
			}
			w.mu.Unlock()
		}
		sh.mu.Unlock()
	}
	return dropped
}

func (s *MemoryStore) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep(s.now())
		case <-s.stopCleanup:
			return
		}
	}
}

// Close stops the sweeper. Safe to call more than once.
func (s *MemoryStore) Close() error {
	s.cleanupOnce.Do(func() {
		close(s.stopCleanup)
	})
	return nil
}
