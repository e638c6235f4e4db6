package gate

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint identifies a signal by (symbol, side, strategy). It is
// not unique across time: the same fingerprint recurring after the
// dedup window is a new opportunity, not a duplicate.
type Fingerprint uint64

// FingerprintOf hashes the identity-bearing fields of a signal.
func FingerprintOf(symbol, side, strategy string) Fingerprint {
	h := xxhash.New()
	_, _ = h.WriteString(symbol)
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(side)
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(strategy)
	return Fingerprint(h.Sum64())
}

const indexShards = 16

type indexShard struct {
	mu sync.Mutex
	m  map[Fingerprint]time.Time // fingerprint -> last seen
}

// Index stores last-seen times per fingerprint, sharded by hash to
// keep contention low under concurrent ingress.
type Index struct {
	window time.Duration
	shards [indexShards]*indexShard
}

// NewIndex creates an index with the given dedup window.
func NewIndex(window time.Duration) *Index {
	ix := &Index{window: window}
	for i := range ix.shards {
		ix.shards[i] = &indexShard{m: make(map[Fingerprint]time.Time)}
	}
	return ix
}

func (ix *Index) shard(fp Fingerprint) *indexShard {
	return ix.shards[uint64(fp)%indexShards]
}

// CheckAndRecord returns true if fp has not been seen within the dedup
// window, recording now as its last-seen time. Returns false for a
// duplicate; the stored time is not refreshed in that case, so the
// window is anchored at the last admitted occurrence.
func (ix *Index) CheckAndRecord(fp Fingerprint, now time.Time) bool {
	s := ix.shard(fp)
	s.mu.Lock()
	defer s.mu.Unlock()

	if last, ok := s.m[fp]; ok && now.Sub(last) < ix.window {
		return false
	}
	s.m[fp] = now
	return true
}

// Sweep removes entries older than the dedup window and returns how
// many were removed. Each shard is locked only for its own scan.
func (ix *Index) Sweep(now time.Time) int {
	removed := 0
	for _, s := range ix.shards {
		s.mu.Lock()
		for fp, last := range s.m {
			if now.Sub(last) > ix.window {
				delete(s.m, fp)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Len returns the number of tracked fingerprints.
func (ix *Index) Len() int {
	n := 0
	for _, s := range ix.shards {
		s.mu.Lock()
		n += len(s.m)
		s.mu.Unlock()
	}
	return n
}
