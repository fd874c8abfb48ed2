package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestConcurrencyGateEnforcesMax(t *testing.T) {
	gate := NewConcurrencyGate()

	if !gate.Acquire(1, 2) {
		t.Fatalf("first acquire should succeed")
	}
	if !gate.Acquire(1, 2) {
		t.Fatalf("second acquire should succeed")
	}
	if gate.Acquire(1, 2) {
		t.Fatalf("third acquire should fail at max 2")
	}

	gate.Release(1)
	if !gate.Acquire(1, 2) {
		t.Fatalf("acquire after release should succeed")
	}
}

func TestConcurrencyGateUnlimitedWhenZero(t *testing.T) {
	gate := NewConcurrencyGate()
	for i := 0; i < 100; i++ {
		if !gate.Acquire(1, 0) {
			t.Fatalf("max 0 must never block")
		}
	}
}

func TestConcurrencyGateOrgsAreIsolated(t *testing.T) {
	gate := NewConcurrencyGate()
	if !gate.Acquire(1, 1) {
		t.Fatalf("org 1 acquire should succeed")
	}
	if !gate.Acquire(2, 1) {
		t.Fatalf("org 2 must not share org 1 slots")
	}
}

func TestConcurrencyGateUnderContention(t *testing.T) {
	gate := NewConcurrencyGate()
	const workers = 64
	const max = 10

	var admitted atomic.Int64
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if gate.Acquire(7, max) {
				admitted.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if got := admitted.Load(); got != max {
		t.Fatalf("expected exactly %d admissions, got %d", max, got)
	}
}
