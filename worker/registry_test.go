package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestAcquireRelease(t *testing.T) {
	r := NewRegistry(WithCeiling(8))
	defer r.Close()

	s, err := r.Acquire(RoleAnalysis)
	if err != nil {
		t.Fatal(err)
	}
	if s.Role() != RoleAnalysis || !s.Healthy() {
		t.Fatalf("unexpected slot state: role=%v healthy=%v", s.Role(), s.Healthy())
	}
	if s.Overflow() {
		t.Errorf("first slot marked overflow")
	}

	r.Release(s, nil)

	// Released slot is reused rather than a new one created.
	s2, err := r.Acquire(RoleAnalysis)
	if err != nil {
		t.Fatal(err)
	}
	if s2.ID() != s.ID() {
		t.Errorf("idle slot not reused: got id %d, want %d", s2.ID(), s.ID())
	}
	r.Release(s2, nil)
}

func TestRolesDoNotShareSlots(t *testing.T) {
	r := NewRegistry(WithCeiling(8))
	defer r.Close()

	a, _ := r.Acquire(RoleAnalysis)
	r.Release(a, nil)

	s, _ := r.Acquire(RoleSimulation)
	if s.ID() == a.ID() {
		t.Errorf("simulation acquire returned an analysis slot")
	}
	r.Release(s, nil)
}

func TestSlotExclusivity(t *testing.T) {
	r := NewRegistry(WithCeiling(64))
	defer r.Close()

	const workers = 32
	var mu sync.Mutex
	owned := make(map[uint64]int)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := r.Acquire(RoleAnalysis)
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			owned[s.ID()]++
			if owned[s.ID()] > 1 {
				t.Errorf("slot %d owned by two callers", s.ID())
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			owned[s.ID()]--
			mu.Unlock()
			r.Release(s, nil)
		}()
	}
	wg.Wait()
}

func TestHealthQuarantine(t *testing.T) {
	r := NewRegistry(WithCeiling(8))
	defer r.Close()

	s, _ := r.Acquire(RoleAnalysis)
	id := s.ID()
	r.Release(s, errors.New("simulated failure"))

	if s.Healthy() {
		t.Errorf("failed slot still healthy")
	}
	for i := 0; i < 8; i++ {
		s2, err := r.Acquire(RoleAnalysis)
		if err != nil {
			t.Fatal(err)
		}
		if s2.ID() == id {
			t.Fatalf("unhealthy slot %d handed out again", id)
		}
		r.Release(s2, nil)
	}
	st := r.Stats()
	if st.Removed == 0 {
		t.Errorf("no removal recorded for unhealthy slot")
	}
}

func TestOverflowBeyondCeiling(t *testing.T) {
	// Ceiling 4 gives a soft per-role cap of 2; the third through
	// sixth concurrent acquires must still succeed as overflow.
	r := NewRegistry(WithCeiling(4))
	defer r.Close()

	var slots []*Slot
	for i := 0; i < 6; i++ {
		s, err := r.Acquire(RoleAnalysis)
		if err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
		slots = append(slots, s)
	}

	overflow := 0
	for _, s := range slots {
		if s.Overflow() {
			overflow++
		}
	}
	if overflow != 4 {
		t.Errorf("overflow slots = %d, want 4", overflow)
	}
	if got := r.Stats().OverflowCreated; got != 4 {
		t.Errorf("OverflowCreated = %d, want 4", got)
	}
	for _, s := range slots {
		r.Release(s, nil)
	}
}

func TestRunReportsPanicsAsErrors(t *testing.T) {
	r := NewRegistry(WithCeiling(8))
	defer r.Close()

	s, _ := r.Acquire(RoleAnalysis)
	err := s.Run(context.Background(), func() error {
		panic("kaboom")
	})
	if err == nil {
		t.Fatal("panic did not surface as an error")
	}
	r.Release(s, err)

	// Registry keeps serving from fresh slots.
	s2, errAcq := r.Acquire(RoleAnalysis)
	if errAcq != nil {
		t.Fatal(errAcq)
	}
	if err := s2.Run(context.Background(), func() error { return nil }); err != nil {
		t.Errorf("healthy slot run failed: %v", err)
	}
	r.Release(s2, nil)
}

func TestIdleCleanupKeepsOnePerRole(t *testing.T) {
	r := NewRegistry(
		WithCeiling(8),
		WithIdleTimeout(10*time.Millisecond),
		WithCleanupInterval(5*time.Millisecond),
	)
	defer r.Close()

	var slots []*Slot
	for i := 0; i < 3; i++ {
		s, _ := r.Acquire(RoleAnalysis)
		slots = append(slots, s)
	}
	for _, s := range slots {
		r.Release(s, nil)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if r.Len() == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := r.Len(); got != 1 {
		t.Errorf("live slots after idle cleanup = %d, want 1", got)
	}
}

func TestAcquireAfterClose(t *testing.T) {
	r := NewRegistry()
	r.Close()
	if _, err := r.Acquire(RoleAnalysis); !errors.Is(err, ErrRegistryClosed) {
		t.Errorf("err = %v, want ErrRegistryClosed", err)
	}
	// Second close is a no-op.
	r.Close()
}
