package runner

import (
	"context"
	"sync"
	"time"

	"github.com/hperssn/wizard/internal/domain"
)

type EventType string

const (
	EventStepChanged EventType = "step"
	EventSaved       EventType = "saved"
	EventCompleted   EventType = "completed"
	EventDeleted     EventType = "deleted"
)

// SessionEvent is pushed to subscribers of a session.
type SessionEvent struct {
	Type      EventType   `json:"type"`
	SessionID string      `json:"sessionId"`
	Step      domain.Step `json:"step"`
	At        time.Time   `json:"at"`
}

// broadcaster fans session events out to subscribers. Slow subscribers
// miss events rather than blocking the publisher.
type broadcaster struct {
	mu   sync.Mutex
	subs map[string]map[chan SessionEvent]struct{}
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[string]map[chan SessionEvent]struct{})}
}

func (b *broadcaster) subscribe(ctx context.Context, id string) <-chan SessionEvent {
	ch := make(chan SessionEvent, domain.StepCount+1)

	b.mu.Lock()
	if b.subs[id] == nil {
		b.subs[id] = make(map[chan SessionEvent]struct{})
	}
	b.subs[id][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[id][ch]; ok {
			delete(b.subs[id], ch)
			close(ch)
		}
		if len(b.subs[id]) == 0 {
			delete(b.subs, id)
		}
	}()

	return ch
}

func (b *broadcaster) publish(ev SessionEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subs[ev.SessionID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// closeSession ends every stream of a session that no longer exists.
func (b *broadcaster) closeSession(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subs[id] {
		close(ch)
	}
	delete(b.subs, id)
}

func (b *broadcaster) count(id string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[id])
}
