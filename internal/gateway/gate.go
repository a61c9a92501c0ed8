package gateway

import (
	"container/list"
	"context"
	"sync"
	"time"

	"guessrank/internal/services"
)

// PositionFunc receives the caller's 1-based queue position.
type PositionFunc func(position int)

type waiter struct {
	granted bool
	ready   chan struct{}
}

// Gate is a FIFO counting semaphore with an optional bounded queue.
type Gate struct {
	mu       sync.Mutex
	limit    int
	active   int
	maxQueue int
	queue    *list.List
	interval time.Duration
	onChange func(active, waiting int)
}

// NewGate creates a gate admitting limit holders. maxQueue <= 0 leaves the
// queue unbounded; interval <= 0 disables periodic position updates.
func NewGate(limit, maxQueue int, interval time.Duration) *Gate {
	return &Gate{
		limit:    max(1, limit),
		maxQueue: maxQueue,
		queue:    list.New(),
		interval: interval,
	}
}

// Acquire blocks until a slot is available or ctx ends. The returned release
// function is idempotent.
func (g *Gate) Acquire(ctx context.Context, notify PositionFunc) (func(), error) {
	g.mu.Lock()
	if g.active < g.limit && g.queue.Len() == 0 {
		g.active++
		g.changedLocked()
		g.mu.Unlock()
		return g.releaser(), nil
	}
	if g.maxQueue > 0 && g.queue.Len() >= g.maxQueue {
		position := g.queue.Len() + 1
		limit := g.maxQueue
		g.mu.Unlock()
		return nil, &services.CapacityError{Position: position, Limit: limit}
	}
	w := &waiter{ready: make(chan struct{})}
	elem := g.queue.PushBack(w)
	g.changedLocked()
	g.mu.Unlock()

	g.announce(elem, notify)

	var tick <-chan time.Time
	if g.interval > 0 && notify != nil {
		ticker := time.NewTicker(g.interval)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case <-w.ready:
			return g.releaser(), nil
		case <-tick:
			g.announce(elem, notify)
		case <-ctx.Done():
			g.mu.Lock()
			if w.granted {
				// Slot was handed over as we gave up; pass it on.
				g.mu.Unlock()
				g.release()
				return nil, ctx.Err()
			}
			g.queue.Remove(elem)
			g.changedLocked()
			g.mu.Unlock()
			return nil, ctx.Err()
		}
	}
}

// Stats reports the number of holders and waiters.
func (g *Gate) Stats() (active, waiting int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active, g.queue.Len()
}

// Limit returns K.
func (g *Gate) Limit() int {
	return g.limit
}

// OnChange registers a callback invoked, under the gate lock, whenever the
// holder or waiter count changes. It must not block.
func (g *Gate) OnChange(fn func(active, waiting int)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onChange = fn
}

func (g *Gate) releaser() func() {
	var once sync.Once
	return func() { once.Do(g.release) }
}

func (g *Gate) release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if front := g.queue.Front(); front != nil {
		w := g.queue.Remove(front).(*waiter)
		w.granted = true
		close(w.ready)
		g.changedLocked()
		return
	}
	g.active--
	g.changedLocked()
}

// announce reports elem's current position. A waiter that has already been
// handed a slot is not told it is queued.
func (g *Gate) announce(elem *list.Element, notify PositionFunc) {
	if notify == nil {
		return
	}
	if pos := g.position(elem); pos > 0 {
		notify(pos)
	}
}

func (g *Gate) position(elem *list.Element) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	pos := 1
	for e := g.queue.Front(); e != nil; e = e.Next() {
		if e == elem {
			return pos
		}
		pos++
	}
	return 0
}

func (g *Gate) changedLocked() {
	if g.onChange != nil {
		g.onChange(g.active, g.queue.Len())
	}
}
