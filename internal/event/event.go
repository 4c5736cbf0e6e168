package event

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultLanes   = 64
	defaultTimeout = 30 * time.Second
)

type Event interface {
	Name() string
}

// Keyed events sharing a key are handled one at a time, in publish order.
type Keyed interface {
	Key() string
}

type Handler func(ctx context.Context, e Event) error

// Bus is an in-memory event bus. Handlers run on a fixed set of lanes,
// events without a key are spread over the lanes round-robin.
type Bus struct {
	lanes []*lane
	next  atomic.Uint64
	wg    *sync.WaitGroup

	mu       sync.RWMutex
	handlers map[string][]Handler
	stopped  bool
}

// NewBus create a new event bus. Caller should call Stop for graceful shutdown the bus.
func NewBus() *Bus {
	b := &Bus{
		lanes:    make([]*lane, defaultLanes),
		wg:       new(sync.WaitGroup),
		handlers: make(map[string][]Handler),
	}

	for i := range b.lanes {
		b.lanes[i] = newLane()
		go b.lanes[i].run(b.handle)
	}

	return b
}

// Subscribe to an event
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[name] = append(b.handlers[name], h)
}

// Publish an event. It never blocks on handlers.
func (b *Bus) Publish(ctx context.Context, e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.stopped {
		slog.WarnContext(ctx, "event: publish on stopped bus", "event", e.Name())
		return
	}

	l := b.laneFor(e)
	for _, h := range b.handlers[e.Name()] {
		b.wg.Add(1)
		l.push(job{ctx: context.WithoutCancel(ctx), h: h, e: e})
	}
}

func (b *Bus) laneFor(e Event) *lane {
	k, ok := e.(Keyed)
	if !ok || k.Key() == "" {
		return b.lanes[b.next.Add(1)%uint64(len(b.lanes))]
	}

	f := fnv.New32a()
	_, _ = f.Write([]byte(k.Key()))
	return b.lanes[f.Sum32()%uint32(len(b.lanes))]
}

func (b *Bus) handle(j job) {
	ctx, cancel := context.WithTimeout(j.ctx, defaultTimeout)
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "event: handler panic",
				"event", j.e.Name(),
				"error", fmt.Errorf("%v, stack: %s", r, debug.Stack()),
			)
		}

		cancel()
		b.wg.Done()
	}()

	if err := j.h(ctx, j.e); err != nil {
		slog.ErrorContext(ctx, "event: handle event failed",
			"event", j.e.Name(),
			"error", err,
		)
	}
}

// Stop waits for all handlers to finish, including events they publish, then releases the lanes.
func (b *Bus) Stop() {
	b.wg.Wait()

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		return
	}
	b.stopped = true

	for _, l := range b.lanes {
		l.close()
	}
}

// Drain waits until every event published so far has been handled. The bus stays usable.
func (b *Bus) Drain() {
	b.wg.Wait()
}

type job struct {
	ctx context.Context
	h   Handler
	e   Event
}

// lane is an unbounded FIFO served by a single goroutine, so a handler
// publishing on its own lane never blocks.
type lane struct {
	mu     sync.Mutex
	queue  []job
	closed bool
	signal chan struct{}
}

func newLane() *lane {
	return &lane{signal: make(chan struct{}, 1)}
}

func (l *lane) push(j job) {
	l.mu.Lock()
	l.queue = append(l.queue, j)
	l.mu.Unlock()

	l.notify()
}

func (l *lane) close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	l.notify()
}

func (l *lane) notify() {
	select {
	case l.signal <- struct{}{}:
	default:
	}
}

func (l *lane) run(handle func(job)) {
	for range l.signal {
		for {
			l.mu.Lock()
			if len(l.queue) == 0 {
				closed := l.closed
				l.mu.Unlock()
				if closed {
					return
				}
				break
			}

			j := l.queue[0]
			l.queue[0] = job{}
			l.queue = l.queue[1:]
			l.mu.Unlock()

			handle(j)
		}
	}
}
