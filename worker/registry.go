// Package worker implements the worker slot registry: a bounded set
// of isolated execution goroutines partitioned by role, with health
// tracking, burst-tolerant overflow slots, and idle cleanup.
package worker

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Defaults used when the corresponding option is zero.
const (
	DefaultCeiling         = 8
	DefaultIdleTimeout     = 60 * time.Second
	DefaultCleanupInterval = 15 * time.Second
)

// ErrRegistryClosed is returned by Acquire after Close.
var ErrRegistryClosed = errors.New("worker: registry closed")

// Option configures a Registry.
type Option func(*Registry)

// WithCeiling sets the global slot ceiling. A role creates regular
// slots while its live count is below half this value; beyond that,
// acquisition creates overflow slots instead of queuing.
func WithCeiling(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.ceiling = n
		}
	}
}

// WithRoleCeiling overrides the soft ceiling for one role. Zero keeps
// the default of half the global ceiling.
func WithRoleCeiling(role Role, n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.roleCeil[role] = n
		}
	}
}

// WithIdleTimeout sets how long a slot may sit idle before cleanup
// tears it down.
func WithIdleTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.idleTimeout = d
		}
	}
}

// WithCleanupInterval sets the idle-cleanup ticker period.
func WithCleanupInterval(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.cleanupEvery = d
		}
	}
}

// Registry owns all worker slots. Acquisition is the only globally
// serialized operation: one mutex guards the slot map; everything
// that runs inside a slot needs no further cross-slot locking.
type Registry struct {
	mu     sync.Mutex
	slots  map[uint64]*Slot
	nextID uint64
	closed bool

	ceiling      int
	roleCeil     [2]int
	idleTimeout  time.Duration
	cleanupEvery time.Duration

	// demand counts historical acquisitions per role; cleanup keeps
	// at least one slot alive for roles that have seen demand.
	demand [2]uint64

	created         atomic.Uint64
	removed         atomic.Uint64
	overflowCreated atomic.Uint64

	stopCleanup chan struct{}
	cleanupWG   sync.WaitGroup
}

// NewRegistry creates a registry and starts its idle-cleanup loop.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		slots:        make(map[uint64]*Slot),
		ceiling:      DefaultCeiling,
		idleTimeout:  DefaultIdleTimeout,
		cleanupEvery: DefaultCleanupInterval,
		stopCleanup:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.cleanupWG.Add(1)
	go r.cleanupLoop()
	return r
}

// Acquire returns a busy, healthy slot of the requested role. It
// first purges unhealthy non-busy slots of any role, then reuses an
// idle healthy slot, then creates one below the role's soft ceiling
// (half the global ceiling), and finally creates an overflow slot
// with a logged warning rather than queuing the caller.
func (r *Registry) Acquire(role Role) (*Slot, error) {
	now := time.Now().UnixNano()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRegistryClosed
	}
	r.demand[role]++

	// Purge unhealthy, non-busy slots of any role.
	for id, s := range r.slots {
		if !s.healthy.Load() && !s.busy.Load() {
			delete(r.slots, id)
			s.teardown()
			r.removed.Add(1)
		}
	}

	// Reuse an idle healthy slot of the role.
	for _, s := range r.slots {
		if s.role == role && s.healthy.Load() && !s.busy.Load() {
			s.busy.Store(true)
			s.lastUsed.Store(now)
			return s, nil
		}
	}

	live := 0
	for _, s := range r.slots {
		if s.role == role {
			live++
		}
	}
	soft := r.roleCeil[role]
	if soft == 0 {
		soft = r.ceiling / 2
	}
	overflow := live >= soft

	r.nextID++
	s := newSlot(r.nextID, role, overflow)
	s.busy.Store(true)
	s.lastUsed.Store(now)
	r.slots[s.id] = s
	r.created.Add(1)

	if overflow {
		r.overflowCreated.Add(1)
		slogger().Warn("worker: slot ceiling reached, creating overflow slot",
			"role", role.String(), "live", live, "ceiling", soft)
	} else {
		slogger().Debug("worker: slot created", "role", role.String(), "id", s.id)
	}
	return s, nil
}

// Release returns a slot after use. With a nil error the slot simply
// becomes idle again (no lock needed; busy is atomic). With a non-nil
// error the slot is marked unhealthy, torn down, and removed so it is
// never handed out again.
func (r *Registry) Release(s *Slot, execErr error) {
	if s == nil {
		return
	}
	s.lastUsed.Store(time.Now().UnixNano())

	if execErr == nil {
		s.busy.Store(false)
		return
	}

	s.healthy.Store(false)
	s.busy.Store(false)

	r.mu.Lock()
	if _, ok := r.slots[s.id]; ok {
		delete(r.slots, s.id)
		s.teardown()
		r.removed.Add(1)
	}
	r.mu.Unlock()

	slogger().Debug("worker: slot torn down after failure",
		"role", s.role.String(), "id", s.id, "error", execErr)
}

func (r *Registry) cleanupLoop() {
	defer r.cleanupWG.Done()
	ticker := time.NewTicker(r.cleanupEvery)
	defer ticker.Stop()
	for {
		select {
		case <-r.stopCleanup:
			return
		case <-ticker.C:
			r.cleanupIdle()
		}
	}
}

// cleanupIdle tears down slots idle beyond the timeout, oldest first,
// but keeps at least one live slot per role that has seen demand.
func (r *Registry) cleanupIdle() {
	cutoff := time.Now().Add(-r.idleTimeout).UnixNano()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	for role := RoleAnalysis; role <= RoleSimulation; role++ {
		var idle []*Slot
		live := 0
		for _, s := range r.slots {
			if s.role != role {
				continue
			}
			live++
			if !s.busy.Load() && s.lastUsed.Load() < cutoff {
				idle = append(idle, s)
			}
		}
		sort.Slice(idle, func(i, j int) bool {
			return idle[i].lastUsed.Load() < idle[j].lastUsed.Load()
		})

		keep := 0
		if r.demand[role] > 0 {
			keep = 1
		}
		for _, s := range idle {
			if live <= keep {
				break
			}
			delete(r.slots, s.id)
			s.teardown()
			r.removed.Add(1)
			live--
			slogger().Debug("worker: idle slot removed", "role", role.String(), "id", s.id)
		}
	}
}

// Stats is a snapshot of registry counters.
type Stats struct {
	Live            map[string]int
	Busy            map[string]int
	Created         uint64
	Removed         uint64
	OverflowCreated uint64
}

// Stats returns a snapshot of slot counts per role.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := Stats{
		Live:            make(map[string]int),
		Busy:            make(map[string]int),
		Created:         r.created.Load(),
		Removed:         r.removed.Load(),
		OverflowCreated: r.overflowCreated.Load(),
	}
	for _, s := range r.slots {
		name := s.role.String()
		st.Live[name]++
		if s.busy.Load() {
			st.Busy[name]++
		}
	}
	return st
}

// Len returns the number of live slots across all roles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slots)
}

// Close tears down every slot and stops the cleanup loop. Safe to
// call more than once.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	for id, s := range r.slots {
		delete(r.slots, id)
		s.teardown()
		r.removed.Add(1)
	}
	r.mu.Unlock()

	close(r.stopCleanup)
	r.cleanupWG.Wait()
}
