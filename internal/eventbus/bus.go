// Package eventbus is a small in-memory fanout decoupling event recording
// from timeline regeneration and other observers.
package eventbus

import (
	"sync"
	"time"
)

// Well-known event types.
const (
	// TypeParticipantEvent fires when a named participant event (enrollment,
	// activity finished, ...) is recorded.
	TypeParticipantEvent = "participant.event"
	// TypeTimelineBuilt fires after a participant's timeline was regenerated
	// and persisted.
	TypeTimelineBuilt = "timeline.built"
	// TypePlanSaved fires after a schedule plan passes validation and is stored.
	TypePlanSaved = "plan.saved"
)

// Event is a lightweight, in-memory signal.
//
// Contract:
//   - Publish MUST be non-blocking.
//   - Slow subscribers may drop events (bounded backpressure).
//
// Data should be small and ideally JSON-serializable.
type Event struct {
	Type string
	Time time.Time
	Data any
}

type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
}

// New returns a simple fanout bus. It owns no background goroutines.
func New() Bus {
	return &memBus{subs: map[uint64]chan Event{}}
}

type memBus struct {
	mu   sync.Mutex
	subs map[uint64]chan Event
	seq  uint64
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	b.mu.Lock()
	chs := make([]chan Event, 0, len(b.subs))
	for _, ch := range b.subs {
		chs = append(chs, ch)
	}
	b.mu.Unlock()

	for _, ch := range chs {
		// Non-blocking delivery; slow subscribers drop.
		select {
		case ch <- e:
		default:
		}
	}
}

func (b *memBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)
	b.mu.Lock()
	b.seq++
	id := b.seq
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			// The channel is left open: Publish holds no reference after the
			// delete, and closing here could race a concurrent send.
		})
	}
	return ch, unsubscribe
}
