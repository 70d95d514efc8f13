package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/samber/do"
)

const bufferSize = 64

var _ do.Shutdownable = (*Service)(nil)

type Kind string

const (
	KindSignedIn  Kind = "signed_in"
	KindSignedOut Kind = "signed_out"
)

type Event struct {
	Kind   Kind
	Token  string
	UserID string
}

type Listener func(ctx context.Context, event Event)

// Service delivers identity change events to subscribers.
type Service struct {
	queue     chan Event
	closeOnce sync.Once

	mu        sync.RWMutex
	listeners map[uint64]Listener
	nextID    uint64
}

func New(_ *do.Injector) (*Service, error) {
	return NewService(), nil
}

func NewService() *Service {
	return &Service{
		queue:     make(chan Event, bufferSize),
		listeners: make(map[uint64]Listener),
	}
}

// Publish never blocks. Events are dropped when the queue is full or closed.
func (s *Service) Publish(event Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("Event published after shutdown", "kind", event.Kind)
		}
	}()

	select {
	case s.queue <- event:
	default:
		slog.Warn("Event queue is full", "kind", event.Kind)
	}
}

// Subscribe registers a listener and returns the func that removes it.
func (s *Service) Subscribe(listener Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = listener

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		delete(s.listeners, id)
	}
}

func (s *Service) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-s.queue:
			if !ok {
				return
			}

			s.dispatch(ctx, event)
		}
	}
}

func (s *Service) dispatch(ctx context.Context, event Event) {
	s.mu.RLock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, listener := range s.listeners {
		listeners = append(listeners, listener)
	}
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(ctx, event)
	}

	slog.Debug("Dispatched event",
		"kind", event.Kind,
		"listeners", len(listeners),
	)
}

func (s *Service) Shutdown() error {
	s.closeOnce.Do(func() {
		close(s.queue)
	})

	return nil
}
