package event

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Handler consumes one event. Handlers run on bus workers and must not
// block indefinitely.
type Handler func(Event)

// Bus is the central publish/subscribe hub. Publish never blocks: events
// go into a bounded queue and are dropped when it is full. A fixed pool
// of workers drains the queue; each event is delivered to all handlers
// of its kind by one worker, in subscription order, before that worker
// picks up the next event. With more than one worker, events of the same
// kind may be processed in parallel, so global FIFO is not guaranteed.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Kind][]Handler

	queue   chan Event
	workers int
	wg      sync.WaitGroup

	published atomic.Uint64
	dropped   atomic.Uint64
}

// NewBus creates a bus with the given queue capacity and worker count.
func NewBus(queueSize, workers int) *Bus {
	if queueSize <= 0 {
		queueSize = 1
	}
	if workers <= 0 {
		workers = 1
	}
	return &Bus{
		handlers: make(map[Kind][]Handler),
		queue:    make(chan Event, queueSize),
		workers:  workers,
	}
}

// Subscribe registers a handler for a kind. Delivery order follows
// subscription order. Subscribing after Start is safe.
func (b *Bus) Subscribe(kind Kind, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = append(b.handlers[kind], h)
}

// Publish enqueues an event without blocking. Returns false if the
// queue was full and the event was dropped.
func (b *Bus) Publish(ev Event) bool {
	select {
	case b.queue <- ev:
		b.published.Add(1)
		return true
	default:
		b.dropped.Add(1)
		return false
	}
}

// Start launches the worker pool. Workers stop when ctx is cancelled.
func (b *Bus) Start(ctx context.Context) {
	for i := 0; i < b.workers; i++ {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case ev := <-b.queue:
					b.dispatch(ev)
				}
			}
		}()
	}
}

// Wait blocks until all workers have stopped.
func (b *Bus) Wait() {
	b.wg.Wait()
}

// dispatch delivers one event to every handler of its kind. A panicking
// handler is isolated: it is logged and the remaining handlers still run.
func (b *Bus) dispatch(ev Event) {
	b.mu.RLock()
	handlers := b.handlers[ev.Kind]
	b.mu.RUnlock()

	for _, h := range handlers {
		b.invoke(ev, h)
	}
}

func (b *Bus) invoke(ev Event, h Handler) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event handler panicked",
				slog.String("kind", string(ev.Kind)),
				slog.Any("panic", r))
		}
	}()
	h(ev)
}

// Published returns the number of accepted events.
func (b *Bus) Published() uint64 {
	return b.published.Load()
}

// Dropped returns the number of events dropped on a full queue.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}
