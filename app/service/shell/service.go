package shell

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"portfolio/app/client/inference"
	"portfolio/app/service/auth"
	"portfolio/app/service/events"
	"portfolio/app/service/interview"

	"github.com/elliotchance/pie/v2"
	"github.com/samber/do"
)

var ErrUnknownView = errors.New("unknown view")

var _ do.Shutdownable = (*Service)(nil)

type View string

const (
	ViewHome               View = "home"
	ViewInterviewCommunity View = "interview_community"
	ViewAIInterviewer      View = "ai_interviewer"
	ViewContact            View = "contact"
	ViewLogin              View = "login"
)

var Views = []View{ViewHome, ViewInterviewCommunity, ViewAIInterviewer, ViewContact, ViewLogin}

// Identity is the part of the auth service the shell depends on.
type Identity interface {
	CurrentSession(token string) (*auth.Session, error)
	Subscribe(listener events.Listener) func()
}

type State struct {
	Session *auth.Session `json:"session"`
	View    View          `json:"view"`
}

type entry struct {
	view      View
	interview *interview.Controller
}

// Service keeps the application state of every signed-in session.
type Service struct {
	identity  Identity
	inference interview.Inference

	mu      sync.Mutex
	entries map[string]*entry

	unsubscribe func()
}

func New(di *do.Injector) (*Service, error) {
	return NewService(
		do.MustInvoke[*auth.Service](di),
		do.MustInvoke[*inference.Service](di),
	), nil
}

func NewService(identity Identity, inf interview.Inference) *Service {
	s := &Service{
		identity:  identity,
		inference: inf,
		entries:   make(map[string]*entry),
	}

	s.unsubscribe = identity.Subscribe(s.handleEvent)

	return s
}

func (s *Service) handleEvent(_ context.Context, event events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch event.Kind {
	case events.KindSignedIn:
		if _, ok := s.entries[event.Token]; !ok {
			s.entries[event.Token] = &entry{view: ViewHome}
		}
	case events.KindSignedOut:
		if e, ok := s.entries[event.Token]; ok {
			if e.interview != nil {
				e.interview.Reset()
			}

			delete(s.entries, event.Token)
		}
	}

	slog.Debug("Shell state updated", "kind", event.Kind, "sessions", len(s.entries))
}

func (s *Service) State(token string) (*State, error) {
	session, err := s.identity.CurrentSession(token)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return &State{
		Session: session,
		View:    s.entryFor(token).view,
	}, nil
}

func (s *Service) SetView(token string, view View) (*State, error) {
	if !pie.Contains(Views, view) {
		return nil, ErrUnknownView
	}

	session, err := s.identity.CurrentSession(token)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entryFor(token).view = view

	return &State{
		Session: session,
		View:    view,
	}, nil
}

// Interview returns the interview controller owned by the session, creating it on first use.
func (s *Service) Interview(token string) (*interview.Controller, error) {
	if _, err := s.identity.CurrentSession(token); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entryFor(token)
	if e.interview == nil {
		e.interview = interview.NewController(s.inference)
	}

	return e.interview, nil
}

func (s *Service) entryFor(token string) *entry {
	e, ok := s.entries[token]
	if !ok {
		e = &entry{view: ViewHome}
		s.entries[token] = e
	}

	return e
}

func (s *Service) Shutdown() error {
	s.unsubscribe()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.interview != nil {
			e.interview.Reset()
		}
	}
	clear(s.entries)

	return nil
}
