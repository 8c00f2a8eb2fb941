package events

import (
	"sync"
	"sync/atomic"

	"tunnel_hmi/internal/logger"
)

// DefaultBuffer is the per-subscriber queue depth.
const DefaultBuffer = 64

// Bus fans events out to subscribers. Publish never blocks. When a
// subscriber's queue is full a new snapshot is skipped, while connectivity,
// error and command events evict the oldest queued snapshot instead, so edges
// that fire once per transition still arrive.
type Bus struct {
	log *logger.Logger

	mu   sync.RWMutex
	subs map[uint64]chan Event
	next uint64

	dropped atomic.Uint64
}

var _ Publisher = (*Bus)(nil)

func NewBus(log *logger.Logger) *Bus {
	if log == nil {
		log = logger.Nop()
	}
	return &Bus{log: log.Named("events"), subs: make(map[uint64]chan Event)}
}

// Subscribe registers a new queue. The returned cancel func closes it and is safe to call twice.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (b *Bus) Publish(ev Event) {
	// Exclusive: eviction rewrites a queue and needs to be its only sender.
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		select {
		case ch <- ev:
			continue
		default:
		}
		if ev.Kind == KindSnapshot {
			b.drop(id, ev.Kind)
			continue
		}
		b.evictFor(id, ch, ev)
	}
}

// evictFor makes room for ev in a full queue. The oldest snapshot goes first;
// a queue holding no snapshot loses its oldest event.
func (b *Bus) evictFor(id uint64, ch chan Event, ev Event) {
	queued := make([]Event, 0, cap(ch))
drain:
	for len(queued) < cap(ch) {
		select {
		case old := <-ch:
			queued = append(queued, old)
		default:
			break drain
		}
	}
	if len(queued) == cap(ch) {
		victim := 0
		for i, old := range queued {
			if old.Kind == KindSnapshot {
				victim = i
				break
			}
		}
		if queued[victim].Kind != KindSnapshot {
			b.log.Warnw("event_evicted", "subscriber", id, "kind", queued[victim].Kind)
		}
		b.drop(id, queued[victim].Kind)
		queued = append(queued[:victim], queued[victim+1:]...)
	}
	for _, old := range queued {
		ch <- old
	}
	ch <- ev
}

func (b *Bus) drop(id uint64, kind Kind) {
	n := b.dropped.Add(1)
	b.log.Debugw("event_dropped", "subscriber", id, "kind", kind, "dropped_total", n)
}

// Dropped is the number of deliveries skipped because a queue was full.
func (b *Bus) Dropped() uint64 { return b.dropped.Load() }

// Subscribers is the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
