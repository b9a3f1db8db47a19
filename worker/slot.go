package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// Role partitions slots by the kind of work they run.
type Role uint8

const (
	// RoleAnalysis slots run read-only analysis operations.
	RoleAnalysis Role = iota
	// RoleSimulation slots run simulation stepping.
	RoleSimulation
)

// String returns the role name used in logs and stats.
func (r Role) String() string {
	switch r {
	case RoleAnalysis:
		return "analysis"
	case RoleSimulation:
		return "simulation"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// ErrSlotStopped is returned when a job is submitted to a slot that
// has been torn down.
var ErrSlotStopped = errors.New("worker: slot stopped")

type job struct {
	fn     func() error
	result chan error
}

// Slot is one isolated execution context: a dedicated goroutine with
// its own job channel. At most one caller owns a slot (holds it busy)
// at a time; ownership changes only through Registry.Acquire and
// Registry.Release.
type Slot struct {
	id   uint64
	role Role

	// busy is set under the registry mutex in Acquire and cleared
	// lock-free in Release.
	busy     atomic.Bool
	healthy  atomic.Bool
	lastUsed atomic.Int64 // unix nanos
	overflow bool

	jobs chan job
	stop chan struct{}
}

// ID returns the slot's unique identifier.
func (s *Slot) ID() uint64 { return s.id }

// Role returns the slot's role.
func (s *Slot) Role() Role { return s.role }

// Healthy reports whether the slot is still usable.
func (s *Slot) Healthy() bool { return s.healthy.Load() }

// Overflow reports whether the slot was created beyond the soft
// per-role ceiling.
func (s *Slot) Overflow() bool { return s.overflow }

func newSlot(id uint64, role Role, overflow bool) *Slot {
	s := &Slot{
		id:       id,
		role:     role,
		overflow: overflow,
		jobs:     make(chan job),
		stop:     make(chan struct{}),
	}
	s.healthy.Store(true)
	s.lastUsed.Store(time.Now().UnixNano())
	go s.loop()
	return s
}

func (s *Slot) loop() {
	for {
		select {
		case <-s.stop:
			return
		case j := <-s.jobs:
			j.result <- runRecovered(j.fn)
		}
	}
}

// runRecovered executes fn, converting a panic into an error so a
// failing job never takes down the process. The error feeds the
// registry's health tracking through Release.
func runRecovered(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker: uncaught failure in slot: %v", r)
		}
	}()
	return fn()
}

// Run executes fn on the slot's goroutine and returns its error. The
// context is checked before submission only: once a job is dispatched
// it runs to completion (callers use stale-result sequence numbers
// rather than cancellation).
func (s *Slot) Run(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res := make(chan error, 1)
	select {
	case s.jobs <- job{fn: fn, result: res}:
	case <-s.stop:
		return ErrSlotStopped
	}
	return <-res
}

// teardown stops the slot's goroutine. Idempotent via the registry
// (a slot is torn down at most once; both paths hold the mutex).
func (s *Slot) teardown() {
	s.healthy.Store(false)
	close(s.stop)
}
