package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/starlight-bridge/starlight/internal/biz/domain"
	"github.com/starlight-bridge/starlight/internal/core"
	"github.com/starlight-bridge/starlight/internal/log"
)

// OverflowPolicy decides what Publish does when the queue is full
type OverflowPolicy int

const (
	// DropOldest discards the oldest queued event to make room
	DropOldest OverflowPolicy = iota
	// Reject refuses the new event with domain.ErrBusFull
	Reject
)

// DefaultBusCapacity is used when NewEventBus gets a non-positive capacity
const DefaultBusCapacity = 256

// Subscriber receives lifecycle events on the bus consumer goroutine
type Subscriber func(ev domain.LifecycleEvent)

// EventBus is a bounded FIFO of lifecycle events with a single consumer
type EventBus struct {
	mu      sync.Mutex
	queue   chan domain.LifecycleEvent
	policy  OverflowPolicy
	stopped bool
	started bool
	stopCh  chan struct{}
	done    chan struct{}

	subMu sync.RWMutex
	subs  []Subscriber

	dropped atomic.Int64
}

// NewEventBus creates a bus holding at most capacity pending events
func NewEventBus(capacity int, policy OverflowPolicy) *EventBus {
	if capacity <= 0 {
		capacity = DefaultBusCapacity
	}
	return &EventBus{
		queue:  make(chan domain.LifecycleEvent, capacity),
		policy: policy,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Subscribe adds a subscriber; it sees events published after the call
func (b *EventBus) Subscribe(s Subscriber) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	b.subs = append(b.subs, s)
}

// Publish enqueues ev without blocking
func (b *EventBus) Publish(ev domain.LifecycleEvent) error {
	if ev.ID == "" {
		ev.ID = core.NewID("evt")
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		return domain.ErrBusStopped
	}

	select {
	case b.queue <- ev:
		return nil
	default:
	}

	if b.policy == Reject {
		b.dropped.Add(1)
		return domain.ErrBusFull
	}

	select {
	case old := <-b.queue:
		b.dropped.Add(1)
		log.Debug("[Bus] dropped oldest event", "type", old.Type, "id", old.ID)
	default:
	}
	select {
	case b.queue <- ev:
		return nil
	default:
		b.dropped.Add(1)
		return domain.ErrBusFull
	}
}

// Dropped returns how many events were discarded because of overflow
func (b *EventBus) Dropped() int64 {
	return b.dropped.Load()
}

// Pending returns the number of queued events
func (b *EventBus) Pending() int {
	return len(b.queue)
}

// Start runs the consumer until ctx is done or Stop is called
func (b *EventBus) Start(ctx context.Context) {
	b.mu.Lock()
	if b.started || b.stopped {
		b.mu.Unlock()
		return
	}
	b.started = true
	b.mu.Unlock()

	go b.consume(ctx)
}

// Stop refuses new events, delivers what is queued and waits for the consumer
func (b *EventBus) Stop() {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.stopped = true
	started := b.started
	close(b.stopCh)
	b.mu.Unlock()

	if started {
		<-b.done
	}
}

func (b *EventBus) consume(ctx context.Context) {
	defer close(b.done)
	for {
		select {
		case ev := <-b.queue:
			b.deliver(ev)
		case <-b.stopCh:
			b.drain()
			return
		case <-ctx.Done():
			return
		}
	}
}

func (b *EventBus) drain() {
	for {
		select {
		case ev := <-b.queue:
			b.deliver(ev)
		default:
			return
		}
	}
}

func (b *EventBus) deliver(ev domain.LifecycleEvent) {
	b.subMu.RLock()
	subs := append([]Subscriber(nil), b.subs...)
	b.subMu.RUnlock()

	for _, s := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error("[Bus] subscriber panicked", "type", ev.Type, "panic", r)
				}
			}()
			s(ev)
		}()
	}
}
