package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"portfolio/app/config"
	"portfolio/app/service/auth"
	"portfolio/app/service/community"
	"portfolio/app/service/interview"
	"portfolio/app/service/shell"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/samber/do"
)

const (
	localToken   = "token"
	localSession = "session"

	shutdownTimeout = 5 * time.Second
)

type Server struct {
	app    *fiber.App
	listen string

	auth      *auth.Service
	community *community.Service
	shell     *shell.Service
}

func New(di *do.Injector) (*Server, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewServer(
		cfg.HTTP,
		do.MustInvoke[*auth.Service](di),
		do.MustInvoke[*community.Service](di),
		do.MustInvoke[*shell.Service](di),
	), nil
}

func NewServer(
	cfg config.HTTP,
	authSvc *auth.Service,
	communitySvc *community.Service,
	shellSvc *shell.Service,
) *Server {
	s := &Server{
		listen:    cfg.Listen,
		auth:      authSvc,
		community: communitySvc,
		shell:     shellSvc,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "portfolio",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	s.app.Use(recover.New())
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: corsOrigins(cfg.CORSOrigins),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	s.routes()

	return s
}

func (s *Server) routes() {
	api := s.app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/signup", s.signUp)
	authGroup.Post("/signin", s.signIn)
	authGroup.Post("/signout", s.requireAuth, s.signOut)
	authGroup.Get("/session", s.requireAuth, s.currentState)

	api.Get("/view", s.requireAuth, s.currentState)
	api.Put("/view", s.requireAuth, s.setView)

	api.Get("/community/experiences", s.listExperiences)
	api.Post("/community/experiences", s.requireAuth, s.createExperience)

	iv := api.Group("/interview", s.requireAuth)
	iv.Get("/", s.interviewOp(nil))
	iv.Post("/topics", s.interviewOp(requestTopics))
	iv.Post("/topics/select", s.interviewOp(selectTopic))
	iv.Post("/start", s.interviewOp(startInterview))
	iv.Post("/messages", s.interviewOp(sendMessage))
	iv.Post("/end", s.interviewOp(endSession))
	iv.Post("/change-topic", s.interviewOp(changeTopic))
	iv.Post("/reset", s.interviewOp(reset))
}

func (s *Server) App() *fiber.App {
	return s.app
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()

		if err := s.app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			slog.Error("HTTP shutdown failed", "error", err)
		}
	}()

	slog.Info("HTTP server listening", "addr", s.listen)

	if err := s.app.Listen(s.listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *Server) requireAuth(c *fiber.Ctx) error {
	token, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
	if !ok || token == "" {
		return auth.ErrUnauthorized
	}

	session, err := s.auth.CurrentSession(token)
	if err != nil {
		return err
	}

	c.Locals(localToken, token)
	c.Locals(localSession, session)

	return c.Next()
}

func tokenOf(c *fiber.Ctx) string {
	token, _ := c.Locals(localToken).(string)
	return token
}

func sessionOf(c *fiber.Ctx) *auth.Session {
	session, _ := c.Locals(localSession).(*auth.Session)
	return session
}

func statusOf(err error) int {
	var (
		fiberErr      *fiber.Error
		validationErr *interview.ValidationError
		inferenceErr  *interview.InferenceError
		fieldErrs     validator.ValidationErrors
	)

	switch {
	case errors.As(err, &fiberErr):
		return fiberErr.Code
	case errors.As(err, &validationErr), errors.As(err, &fieldErrs), errors.Is(err, shell.ErrUnknownView):
		return fiber.StatusBadRequest
	case errors.Is(err, auth.ErrUnauthorized), errors.Is(err, auth.ErrInvalidCredentials):
		return fiber.StatusUnauthorized
	case errors.Is(err, auth.ErrEmailTaken),
		errors.Is(err, interview.ErrBusy),
		errors.Is(err, interview.ErrInvalidPhase),
		errors.Is(err, interview.ErrStaleResult):
		return fiber.StatusConflict
	case errors.As(err, &inferenceErr):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func errorHandler(c *fiber.Ctx, err error) error {
	status := statusOf(err)
	if status == fiber.StatusInternalServerError {
		slog.Error("Request failed",
			"method", c.Method(),
			"path", c.Path(),
			"error", err,
		)

		return c.Status(status).JSON(errorResponse{Error: "internal error"})
	}

	return c.Status(status).JSON(errorResponse{Error: err.Error()})
}

func corsOrigins(origins string) string {
	if strings.TrimSpace(origins) == "" {
		return "*"
	}

	return origins
}
