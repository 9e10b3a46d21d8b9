package events

import (
	"sync"

	"github.com/ctxengine/ctxengine/pkg/logger"
)

// subscriberQueueSize bounds each subscriber's channel. A slow or dead
// subscriber drops events past this point rather than blocking
// publishers (spec §9 back-pressure requirement).
const subscriberQueueSize = 64

// Listener receives events delivered by a Bus. Implementations must not
// block for long: the bus delivers synchronously per-subscriber from a
// dedicated goroutine, but a stuck listener only stalls its own queue
// once it fills, never other subscribers.
type Listener func(Event)

// Bus is a broadcast event bus with one bounded queue per subscriber.
// Adapted from the teacher's HookManager dispatch loop (pkg/hooks/hooks.go)
// trimmed of hook-discovery and external-process concerns: here a
// subscriber is just a Listener func running in-process.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[int]*subscriber
	nextID      int
}

type subscriber struct {
	queue chan Event
	done  chan struct{}
}

// New constructs an empty Bus.
func New() *Bus {
	return &Bus{subscribers: make(map[int]*subscriber)}
}

// Subscribe registers fn to receive every event published after this
// call returns. The returned func unsubscribes and drains the
// subscriber's goroutine.
func (b *Bus) Subscribe(fn Listener) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	sub := &subscriber{
		queue: make(chan Event, subscriberQueueSize),
		done:  make(chan struct{}),
	}
	b.subscribers[id] = sub
	b.mu.Unlock()

	go b.drain(id, sub, fn)

	return func() {
		b.mu.Lock()
		if s, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(s.queue)
		}
		b.mu.Unlock()
		<-sub.done
	}
}

func (b *Bus) drain(id int, sub *subscriber, fn Listener) {
	defer close(sub.done)
	for ev := range sub.queue {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.L.WithField("subscriber", id).WithField("panic", r).
						Error("events: listener panicked")
				}
			}()
			fn(ev)
		}()
	}
}

// Publish broadcasts ev to every current subscriber. A subscriber whose
// queue is full drops the event and is logged, rather than blocking the
// publisher (spec §9).
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, sub := range b.subscribers {
		select {
		case sub.queue <- ev:
		default:
			logger.L.WithField("subscriber", id).WithField("kind", ev.Kind).
				Warn("events: subscriber queue full, dropping event")
		}
	}
}
