package observability

import (
	"log/slog"
	"sync"

	"github.com/aretw0/canopy/internal/logging"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/ports"
)

const subscriberBuffer = 16

type subscription struct {
	ch    chan string
	types map[domain.EventType]struct{}
}

func (s *subscription) wants(kind domain.EventType) bool {
	if len(s.types) == 0 {
		return true
	}
	_, ok := s.types[kind]
	return ok
}

// Broadcaster fans encoded events out to live subscribers, such as SSE
// connections. Slow subscribers lose messages instead of stalling the tree.
// Like Trail it sends treeUpdated with a shallow root.
type Broadcaster struct {
	ports.BaseObserver

	mu          sync.RWMutex
	subscribers map[*subscription]struct{}
	logger      *slog.Logger
}

// NewBroadcaster creates a broadcaster. A nil logger discards diagnostics.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Broadcaster{
		subscribers: make(map[*subscription]struct{}),
		logger:      logger.With("component", "broadcaster"),
	}
}

// Subscribe registers a new subscriber. With no types, every event is
// delivered. The returned function unsubscribes and closes the channel.
func (b *Broadcaster) Subscribe(types ...domain.EventType) (<-chan string, func()) {
	sub := &subscription{ch: make(chan string, subscriberBuffer)}
	if len(types) > 0 {
		sub.types = make(map[domain.EventType]struct{}, len(types))
		for _, t := range types {
			sub.types[t] = struct{}{}
		}
	}

	b.mu.Lock()
	b.subscribers[sub] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subscribers, sub)
			close(sub.ch)
		})
	}
}

// Subscribers returns the number of active subscribers.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Broadcast delivers msg to every subscriber interested in kind.
func (b *Broadcaster) Broadcast(kind domain.EventType, msg string) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		if !sub.wants(kind) {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
			b.logger.Warn("Subscriber buffer full, dropping message", "type", kind)
		}
	}
}

func (b *Broadcaster) OnEvent(event domain.Event) {
	if b.Subscribers() == 0 {
		return
	}
	payload, err := domain.MarshalEvent(event, domain.WithShallowRoot())
	if err != nil {
		b.logger.Error("Failed to encode event", "type", event.Kind(), "err", err)
		return
	}
	b.Broadcast(event.Kind(), string(payload))
}
