package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"portfolio/app/client/db"
	"portfolio/app/config"
	"portfolio/app/service/events"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/do"
	"github.com/samber/oops"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrUnauthorized       = errors.New("not signed in")
)

type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

type Session struct {
	Token     string    `json:"token"`
	User      User      `json:"user"`
	ExpiresAt time.Time `json:"expires_at"`
}

type SignUpRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name" validate:"required"`
	Phone    string `json:"phone"`
}

type Service struct {
	db       *sql.DB
	events   *events.Service
	validate *validator.Validate
	ttl      time.Duration
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)
	dbClient := do.MustInvoke[*db.Client](di)
	eventsSvc := do.MustInvoke[*events.Service](di)

	return NewService(dbClient.DB, eventsSvc, cfg.Auth.SessionTTL), nil
}

func NewService(sqlDB *sql.DB, eventsSvc *events.Service, ttl time.Duration) *Service {
	return &Service{
		db:       sqlDB,
		events:   eventsSvc,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (*Session, error) {
	req.Email = normalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)

	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("bcrypt.GenerateFromPassword: %w", err)
	}

	user := User{
		ID:    uuid.NewString(),
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
	}

	var exists bool
	if err = s.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM profiles WHERE email = ?)", user.Email,
	).Scan(&exists); err != nil {
		return nil, oops.In("auth").Wrapf(err, "failed to look up profile")
	}
	if exists {
		return nil, ErrEmailTaken
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO profiles (id, name, email, phone, password_hash, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		user.ID, user.Name, user.Email, user.Phone, string(hash), s.now().UnixMilli(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, ErrEmailTaken
		}

		return nil, oops.
			In("auth").
			With("email", user.Email).
			Wrapf(err, "failed to insert profile")
	}

	slog.Info("User signed up", "user_id", user.ID, "telegram", true)

	return s.startSession(user), nil
}

func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	var (
		user User
		hash string
	)

	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, phone, password_hash FROM profiles WHERE email = ?",
		normalizeEmail(email),
	).Scan(&user.ID, &user.Name, &user.Email, &user.Phone, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, oops.In("auth").Wrapf(err, "failed to load profile")
	}

	if err = bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.startSession(user), nil
}

func (s *Service) SignOut(_ context.Context, token string) error {
	s.mu.Lock()
	session, ok := s.sessions[token]
	delete(s.sessions, token)
	s.mu.Unlock()

	if !ok {
		return ErrUnauthorized
	}

	s.events.Publish(events.Event{
		Kind:   events.KindSignedOut,
		Token:  token,
		UserID: session.User.ID,
	})

	return nil
}

// CurrentSession returns the live session for token. Expired sessions are signed out.
func (s *Service) CurrentSession(token string) (*Session, error) {
	s.mu.Lock()
	session, ok := s.sessions[token]
	if ok && !s.now().Before(session.ExpiresAt) {
		delete(s.sessions, token)
		s.mu.Unlock()

		s.events.Publish(events.Event{
			Kind:   events.KindSignedOut,
			Token:  token,
			UserID: session.User.ID,
		})

		return nil, ErrUnauthorized
	}
	s.mu.Unlock()

	if !ok {
		return nil, ErrUnauthorized
	}

	result := *session

	return &result, nil
}

func (s *Service) Subscribe(listener events.Listener) func() {
	return s.events.Subscribe(listener)
}

func (s *Service) startSession(user User) *Session {
	session := &Session{
		Token:     uuid.NewString(),
		User:      user,
		ExpiresAt: s.now().Add(s.ttl),
	}

	s.mu.Lock()
	s.sessions[session.Token] = session
	s.mu.Unlock()

	s.events.Publish(events.Event{
		Kind:   events.KindSignedIn,
		Token:  session.Token,
		UserID: user.ID,
	})

	result := *session

	return &result
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
