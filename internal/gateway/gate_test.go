package gateway

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"guessrank/internal/services"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestGateNeverExceedsLimit(t *testing.T) {
	const k = 2
	gate := NewGate(k, 0, 0)
	var current, peak atomic.Int32
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := gate.Acquire(context.Background(), nil)
			if err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			current.Add(-1)
			release()
		}()
	}
	wg.Wait()
	if peak.Load() > k {
		t.Fatalf("peak concurrency %d exceeds %d", peak.Load(), k)
	}
	if active, waiting := gate.Stats(); active != 0 || waiting != 0 {
		t.Fatalf("expected idle gate, got active=%d waiting=%d", active, waiting)
	}
}

func TestGateAdmitsInFIFOOrder(t *testing.T) {
	gate := NewGate(1, 0, 0)
	hold, err := gate.Acquire(context.Background(), nil)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := range 5 {
		wg.Add(1)
		positions := make(chan int, 1)
		go func() {
			defer wg.Done()
			release, err := gate.Acquire(context.Background(), func(pos int) {
				select {
				case positions <- pos:
				default:
				}
			})
			if err != nil {
				t.Errorf("Acquire %d: %v", i, err)
				return
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			release()
		}()
		if pos := <-positions; pos != i+1 {
			t.Fatalf("waiter %d got position %d", i, pos)
		}
	}

	hold()
	wg.Wait()
	for i, got := range order {
		if got != i {
			t.Fatalf("admission order %v is not FIFO", order)
		}
	}
}

func TestGateRejectsWhenQueueFull(t *testing.T) {
	gate := NewGate(1, 1, 0)
	hold, _ := gate.Acquire(context.Background(), nil)
	defer hold()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _, _ = gate.Acquire(ctx, nil) }()
	waitFor(t, func() bool { _, waiting := gate.Stats(); return waiting == 1 })

	_, err := gate.Acquire(context.Background(), nil)
	var capErr *services.CapacityError
	if !errors.As(err, &capErr) || capErr.Position != 2 {
		t.Fatalf("expected capacity error at position 2, got %v", err)
	}
	if !errors.Is(err, services.ErrCapacity) {
		t.Fatalf("capacity error should match ErrCapacity")
	}
}

func TestGateCancelledWaiterLeavesQueue(t *testing.T) {
	gate := NewGate(1, 0, 0)
	hold, _ := gate.Acquire(context.Background(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := gate.Acquire(ctx, nil)
		done <- err
	}()
	waitFor(t, func() bool { _, waiting := gate.Stats(); return waiting == 1 })
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if _, waiting := gate.Stats(); waiting != 0 {
		t.Fatalf("cancelled waiter still queued")
	}

	hold()
	hold()
	release, err := gate.Acquire(context.Background(), nil)
	if err != nil {
		t.Fatalf("slot should be free after release: %v", err)
	}
	release()
	if active, _ := gate.Stats(); active != 0 {
		t.Fatalf("double release must not free extra slots, active=%d", active)
	}
}

func TestGatePeriodicPositionUpdates(t *testing.T) {
	gate := NewGate(1, 0, 20*time.Millisecond)
	hold, _ := gate.Acquire(context.Background(), nil)

	var updates atomic.Int32
	done := make(chan struct{})
	go func() {
		release, err := gate.Acquire(context.Background(), func(int) { updates.Add(1) })
		if err == nil {
			release()
		}
		close(done)
	}()
	waitFor(t, func() bool { return updates.Load() >= 3 })
	hold()
	<-done
}

func TestGateAnnounceUsesCurrentPosition(t *testing.T) {
	gate := NewGate(1, 0, 0)
	hold, _ := gate.Acquire(context.Background(), nil)
	defer hold()

	gate.mu.Lock()
	first := gate.queue.PushBack(&waiter{ready: make(chan struct{})})
	second := gate.queue.PushBack(&waiter{ready: make(chan struct{})})
	gate.mu.Unlock()

	// A release between enqueue and the first update hands the slot to first.
	gate.release()

	var got []int
	record := func(pos int) { got = append(got, pos) }
	gate.announce(first, record)
	gate.announce(second, record)
	gate.announce(second, nil)
	if len(got) != 1 || got[0] != 1 {
		t.Fatalf("expected only second to be told position 1, got %v", got)
	}
}
