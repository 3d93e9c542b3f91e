// Package forwarder tracks in-flight queries relayed to the upstream
// resolver so the reply, when it eventually arrives carrying the same
// 16-bit transaction ID, can be routed back to the client that asked
// for it. The table is sharded the way a sharded answer cache shards
// its entries, but keyed by the query's own transaction ID rather
// than a content hash, and bounded by both a TTL and a maximum entry
// count instead of an LRU-only cache policy — an attacker can fill
// the table with queries that never get a matching upstream reply,
// so both bounds matter here in a way they didn't for a cache.
package forwarder

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dchest/siphash"
)

const (
	defaultShardCount = 64
	// DefaultTTL is how long a registered query waits for an upstream
	// reply before it is treated as abandoned.
	DefaultTTL = 10 * time.Second
	// DefaultCapacity bounds the total number of in-flight entries
	// across all shards.
	DefaultCapacity = 4096
)

type entry struct {
	addr      net.Addr
	expiresAt time.Time
}

type shard struct {
	mu      sync.Mutex
	entries map[uint16][]entry
}

// Table correlates forwarded query transaction IDs with the client
// address that originated them. Multiple in-flight queries may share
// the same transaction ID (it's only 16 bits and may be reused by
// different clients); entries for one ID are served FIFO.
type Table struct {
	shards    []*shard
	shardMask uint64
	key0, key1 uint64

	ttl      time.Duration
	capacity int

	size        atomic.Int64
	evictions   atomic.Int64
	expirations atomic.Int64
}

// New creates a forwarder table with the given TTL and total capacity.
// A zero ttl or capacity falls back to the package defaults. The
// siphash keys are meant to be process-random so that an off-path
// attacker who can only guess transaction IDs cannot also predict
// which shard (and therefore which lock) a given ID lands on.
func New(ttl time.Duration, capacity int, key0, key1 uint64) *Table {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	t := &Table{
		shards:    make([]*shard, defaultShardCount),
		shardMask: uint64(defaultShardCount - 1),
		key0:      key0,
		key1:      key1,
		ttl:       ttl,
		capacity:  capacity,
	}
	for i := range t.shards {
		t.shards[i] = &shard{entries: make(map[uint16][]entry)}
	}
	return t
}

func (t *Table) shardFor(id uint16) *shard {
	h := siphash.Hash(t.key0, t.key1, []byte{byte(id >> 8), byte(id)})
	return t.shards[h&t.shardMask]
}

// Register records that a query with the given transaction ID was
// forwarded on behalf of addr. If the table is at capacity, the
// globally-oldest entry is evicted to make room.
func (t *Table) Register(id uint16, addr net.Addr) {
	if int(t.size.Load()) >= t.capacity {
		t.evictOldest()
	}

	s := t.shardFor(id)
	s.mu.Lock()
	s.entries[id] = append(s.entries[id], entry{addr: addr, expiresAt: time.Now().Add(t.ttl)})
	s.mu.Unlock()

	t.size.Add(1)
}

// TakeMatching removes and returns the oldest still-live registration
// for id, if any. A registration whose TTL has already elapsed is
// discarded (not returned) as TakeMatching walks past it.
func (t *Table) TakeMatching(id uint16) (net.Addr, bool) {
	s := t.shardFor(id)
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	queue := s.entries[id]
	for len(queue) > 0 {
		head := queue[0]
		queue = queue[1:]
		if now.After(head.expiresAt) {
			t.size.Add(-1)
			t.expirations.Add(1)
			continue
		}
		if len(queue) == 0 {
			delete(s.entries, id)
		} else {
			s.entries[id] = queue
		}
		t.size.Add(-1)
		return head.addr, true
	}

	delete(s.entries, id)
	return nil, false
}

// evictOldest drops the globally-oldest entry (the queue head with the
// earliest expiry, whether or not it has already expired) across all
// shards. It scans every queued ID in every shard, and only runs when
// the table is already full.
func (t *Table) evictOldest() {
	var (
		victimShard *shard
		victimID    uint16
		oldest      time.Time
		found       bool
	)

	for _, s := range t.shards {
		s.mu.Lock()
		for id, queue := range s.entries {
			if len(queue) == 0 {
				continue
			}
			if !found || queue[0].expiresAt.Before(oldest) {
				victimShard, victimID, oldest, found = s, id, queue[0].expiresAt, true
			}
		}
		s.mu.Unlock()
	}

	if !found {
		return
	}

	victimShard.mu.Lock()
	defer victimShard.mu.Unlock()
	queue := victimShard.entries[victimID]
	if len(queue) == 0 {
		return
	}
	queue = queue[1:]
	if len(queue) == 0 {
		delete(victimShard.entries, victimID)
	} else {
		victimShard.entries[victimID] = queue
	}
	t.size.Add(-1)
	t.evictions.Add(1)
}

// Len reports the current number of in-flight entries.
func (t *Table) Len() int {
	return int(t.size.Load())
}

// Stats reports cumulative eviction and expiration counts.
type Stats struct {
	Evictions   int
	Expirations int
}

// Stats returns the table's cumulative counters.
func (t *Table) Stats() Stats {
	return Stats{Evictions: int(t.evictions.Load()), Expirations: int(t.expirations.Load())}
}
