package cache

import (
	"sync"
	"sync/atomic"

	"github.com/axiomhq/hyperloglog"
)

// Stats counts cache outcomes since start or the last flush.
type Stats struct {
	hits      atomic.Uint64
	misses    atomic.Uint64
	shared    atomic.Uint64
	stored    atomic.Uint64
	uncached  atomic.Uint64
	panics    atomic.Uint64
	storeErrs atomic.Uint64

	mu   sync.Mutex
	keys *hyperloglog.Sketch
}

// StatsSnapshot is the JSON view of Stats.
type StatsSnapshot struct {
	Hits         uint64 `json:"hits"`
	Misses       uint64 `json:"misses"`
	SharedWaits  uint64 `json:"sharedWaits"`
	Stored       uint64 `json:"stored"`
	Uncached     uint64 `json:"uncachedFailures"`
	Panics       uint64 `json:"panics"`
	StoreErrors  uint64 `json:"storeErrors"`
	DistinctKeys uint64 `json:"distinctKeysApprox"`
}

func newStats() *Stats {
	return &Stats{keys: hyperloglog.New()}
}

func (s *Stats) sawKey(key string) {
	s.mu.Lock()
	s.keys.Insert([]byte(key))
	s.mu.Unlock()
}

// Snapshot copies the current counters.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	distinct := s.keys.Estimate()
	s.mu.Unlock()
	return StatsSnapshot{
		Hits:         s.hits.Load(),
		Misses:       s.misses.Load(),
		SharedWaits:  s.shared.Load(),
		Stored:       s.stored.Load(),
		Uncached:     s.uncached.Load(),
		Panics:       s.panics.Load(),
		StoreErrors:  s.storeErrs.Load(),
		DistinctKeys: distinct,
	}
}

func (s *Stats) reset() {
	s.hits.Store(0)
	s.misses.Store(0)
	s.shared.Store(0)
	s.stored.Store(0)
	s.uncached.Store(0)
	s.panics.Store(0)
	s.storeErrs.Store(0)
	s.mu.Lock()
	s.keys = hyperloglog.New()
	s.mu.Unlock()
}
