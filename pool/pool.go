// Package pool implements the sequence buffer pool: reference-counted,
// immutable sequence buffers keyed by identifier, shared zero-copy
// across goroutines, with insertion-order-biased eviction at capacity.
package pool

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/genoscope/seqcompute/seq"
)

// DefaultCapacity is the default maximum number of buffers held.
const DefaultCapacity = 32

// ErrPoolClosed is returned by GetOrCreate after Close.
var ErrPoolClosed = errors.New("pool: closed")

// Option configures a Pool.
type Option func(*Pool)

// WithCopyMode forces every buffer into private-copy mode, as when
// the shared-memory capability probe fails. Buffer bytes are
// identical either way; only the Shared flag differs.
func WithCopyMode() Option {
	return func(p *Pool) { p.copyMode = true }
}

type entry struct {
	buf        *seq.Buffer
	refs       atomic.Int64
	lastAccess atomic.Int64 // unix nanos
	insertSeq  uint64
}

// Pool owns encoded sequence buffers keyed by identifier. A buffer is
// created at most once per identifier: under concurrent GetOrCreate
// calls for the same id the first writer wins and later callers see
// its bytes. Buffers are never mutated after insertion, so handing
// the same *seq.Buffer to many goroutines is safe.
//
// All map and order mutation happens under one mutex; reference
// counts are atomic so Release never takes the lock.
type Pool struct {
	mu       sync.Mutex
	entries  map[string]*entry
	order    []string // ids in insertion order
	capacity int
	copyMode bool
	closed   bool
	nextSeq  uint64

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// New creates a pool holding at most capacity buffers. A capacity of
// zero or below uses DefaultCapacity. The shared-memory capability is
// probed once here; when unavailable the pool silently downgrades to
// private-copy mode.
func New(capacity int, opts ...Option) *Pool {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	p := &Pool{
		entries:  make(map[string]*entry),
		capacity: capacity,
	}
	for _, opt := range opts {
		opt(p)
	}
	if !p.copyMode && !sharedCapable() {
		p.copyMode = true
	}
	return p
}

// sharedCapable probes whether buffer memory can be shared zero-copy.
// Within a single Go process slices are always shareable; the probe
// exists so the private-copy path stays exercised and the mode stays
// observable on each buffer.
func sharedCapable() bool { return true }

// GetOrCreate returns the buffer for id, creating it from sourceText
// on first request. The existing entry always wins: sourceText is
// ignored when id is already present, even under concurrent calls
// with different text. The returned buffer has its reference count
// incremented; pair every call with Release.
func (p *Pool) GetOrCreate(id, sourceText string) (*seq.Buffer, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	if e, ok := p.entries[id]; ok {
		e.refs.Add(1)
		e.lastAccess.Store(time.Now().UnixNano())
		p.mu.Unlock()
		p.hits.Add(1)
		return e.buf, nil
	}

	if len(p.entries) >= p.capacity {
		p.evictLocked()
	}

	e := &entry{
		buf:       seq.NewBuffer(id, sourceText, !p.copyMode),
		insertSeq: p.nextSeq,
	}
	p.nextSeq++
	e.refs.Store(1)
	e.lastAccess.Store(time.Now().UnixNano())
	p.entries[id] = e
	p.order = append(p.order, id)
	p.mu.Unlock()

	p.misses.Add(1)
	slogger().Debug("pool: buffer created",
		"id", id, "chars", e.buf.Len(), "encoding", e.buf.Encoding().String(), "shared", e.buf.Shared())
	return e.buf, nil
}

// Get returns the buffer for id if present, incrementing its
// reference count.
func (p *Pool) Get(id string) (*seq.Buffer, bool) {
	p.mu.Lock()
	e, ok := p.entries[id]
	if ok {
		e.refs.Add(1)
		e.lastAccess.Store(time.Now().UnixNano())
	}
	p.mu.Unlock()
	if !ok {
		p.misses.Add(1)
		return nil, false
	}
	p.hits.Add(1)
	return e.buf, true
}

// Release decrements the reference count for id. The count floors at
// zero: releasing an unknown id or over-releasing is a no-op. Entries
// are removed only during eviction, never here.
func (p *Pool) Release(id string) {
	p.mu.Lock()
	e, ok := p.entries[id]
	p.mu.Unlock()
	if !ok {
		return
	}
	for {
		n := e.refs.Load()
		if n <= 0 {
			return
		}
		if e.refs.CompareAndSwap(n, n-1) {
			return
		}
	}
}

// Refs returns the current reference count for id, or 0 if absent.
func (p *Pool) Refs(id string) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.entries[id]; ok {
		return e.refs.Load()
	}
	return 0
}

// evictLocked removes roughly 10% of entries. Unreferenced entries go
// first, oldest access first; referenced entries are touched only if
// no unreferenced candidate exists and the pool is strictly over
// capacity.
func (p *Pool) evictLocked() {
	victims := p.capacity / 10
	if victims < 1 {
		victims = 1
	}

	type candidate struct {
		id   string
		last int64
	}
	var free []candidate
	for id, e := range p.entries {
		if e.refs.Load() == 0 {
			free = append(free, candidate{id, e.lastAccess.Load()})
		}
	}
	sort.Slice(free, func(i, j int) bool { return free[i].last < free[j].last })

	removed := 0
	for _, c := range free {
		if removed >= victims {
			break
		}
		p.removeLocked(c.id)
		removed++
	}

	if removed > 0 || len(p.entries) <= p.capacity {
		return
	}

	// No unreferenced candidate and strictly over capacity: fall back
	// to the oldest-inserted referenced entries.
	slogger().Warn("pool: evicting referenced buffers", "size", len(p.entries))
	for _, id := range append([]string(nil), p.order...) {
		if removed >= victims {
			break
		}
		if _, ok := p.entries[id]; ok {
			p.removeLocked(id)
			removed++
		}
	}
}

func (p *Pool) removeLocked(id string) {
	delete(p.entries, id)
	for i, oid := range p.order {
		if oid == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	p.evictions.Add(1)
}

// Len returns the number of live entries.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Stats is a snapshot of pool counters.
type Stats struct {
	Size      int
	Capacity  int
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Shared    int // entries backed by shared memory
	CopyMode  bool
}

// Stats returns a snapshot of the pool's counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	shared := 0
	for _, e := range p.entries {
		if e.buf.Shared() {
			shared++
		}
	}
	size := len(p.entries)
	p.mu.Unlock()
	return Stats{
		Size:      size,
		Capacity:  p.capacity,
		Hits:      p.hits.Load(),
		Misses:    p.misses.Load(),
		Evictions: p.evictions.Load(),
		Shared:    shared,
		CopyMode:  p.copyMode,
	}
}

// Clear drops every entry regardless of reference count. Outstanding
// buffers stay valid for their holders; the pool simply forgets them.
func (p *Pool) Clear() {
	p.mu.Lock()
	p.entries = make(map[string]*entry)
	p.order = nil
	p.mu.Unlock()
}

// Close clears the pool and rejects further GetOrCreate calls.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.entries = make(map[string]*entry)
	p.order = nil
	p.mu.Unlock()
}
