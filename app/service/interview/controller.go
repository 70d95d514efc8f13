package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"

	"portfolio/app/client/inference"

	"github.com/elliotchance/pie/v2"
	"github.com/go-playground/validator/v10"
)

// Inference is the part of the inference client the controller drives.
type Inference interface {
	GenerateJSON(ctx context.Context, req inference.Request, out any) error
	OpenConversation(systemInstruction string) *inference.Conversation
}

// Controller runs one interview practice session.
//
// State is guarded by mu, which is never held across a model call. While a call is
// outstanding the controller is busy and rejects further calls with ErrBusy. Reset bumps
// the generation, so a call issued before it finishes with ErrStaleResult and changes nothing.
type Controller struct {
	inference Inference
	validate  *validator.Validate

	mu         sync.Mutex
	phase      Phase
	busy       bool
	generation uint64
	lastErr    string
}

func NewController(inf Inference) *Controller {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		return name
	})

	return &Controller{
		inference: inf,
		validate:  validate,
		phase:     &SetupPhase{},
	}
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := snapshotOf(c.phase)
	snap.Loading = c.busy
	snap.Error = c.lastErr

	return snap
}

func (c *Controller) Phase() PhaseName {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.phase.Name()
}

// RequestTopics asks the model for topics matching the configuration.
func (c *Controller) RequestTopics(ctx context.Context, domain, experienceLevel string) error {
	cfg := SessionConfig{
		Domain:          strings.TrimSpace(domain),
		ExperienceLevel: strings.TrimSpace(experienceLevel),
	}

	gen, err := c.begin(func(p Phase) error {
		if err := c.validateConfig(cfg); err != nil {
			return err
		}
		if _, ok := p.(*SetupPhase); !ok {
			return ErrInvalidPhase
		}

		return nil
	})
	if err != nil {
		return err
	}

	prompt := render(topicsPromptTemplate, map[string]string{
		"domain":     cfg.Domain,
		"experience": cfg.ExperienceLevel,
	})

	var resp topicsResponse
	err = c.inference.GenerateJSON(ctx, inference.Request{
		Turns:  []inference.Turn{{Role: inference.RoleUser, Content: prompt}},
		Schema: topicsSchema,
	}, &resp)

	topics := cleanTopics(resp.Topics)
	if err == nil && len(topics) == 0 {
		err = fmt.Errorf("%w: no topics", inference.ErrMalformedResponse)
	}

	return c.finish(gen, "request topics", err, func() {
		c.phase = &TopicSelectionPhase{
			Config: cfg,
			Topics: topics,
		}
	})
}

// SelectTopic opens a guided practice conversation about one of the generated topics.
func (c *Controller) SelectTopic(ctx context.Context, topic string) error {
	topic = strings.TrimSpace(topic)

	var current *TopicSelectionPhase

	gen, err := c.begin(func(p Phase) error {
		selection, ok := p.(*TopicSelectionPhase)
		if !ok {
			return ErrInvalidPhase
		}
		if !pie.Contains(selection.Topics, topic) {
			return &ValidationError{Field: "topic", Reason: "is not in the current topic list"}
		}

		current = selection

		return nil
	})
	if err != nil {
		return err
	}

	conv := c.inference.OpenConversation(render(practiceInstructionTemplate, map[string]string{
		"topic":      topic,
		"domain":     current.Config.Domain,
		"experience": current.Config.ExperienceLevel,
	}))

	reply, err := conv.Send(ctx, practiceSeed)

	return c.finish(gen, "start practice session", err, func() {
		c.phase = &PracticePhase{
			Config: current.Config,
			Topics: current.Topics,
			Topic:  topic,
			session: session{
				conv:       conv,
				seed:       practiceSeed,
				transcript: []Message{{Sender: SenderAI, Text: reply}},
			},
		}
	})
}

// StartInterview opens a full mock interview conversation.
func (c *Controller) StartInterview(ctx context.Context, domain, experienceLevel string) error {
	cfg := SessionConfig{
		Domain:          strings.TrimSpace(domain),
		ExperienceLevel: strings.TrimSpace(experienceLevel),
	}

	gen, err := c.begin(func(p Phase) error {
		if err := c.validateConfig(cfg); err != nil {
			return err
		}
		if _, ok := p.(*SetupPhase); !ok {
			return ErrInvalidPhase
		}

		return nil
	})
	if err != nil {
		return err
	}

	conv := c.inference.OpenConversation(render(interviewInstructionTemplate, map[string]string{
		"domain":     cfg.Domain,
		"experience": cfg.ExperienceLevel,
	}))

	reply, err := conv.Send(ctx, interviewSeed)

	return c.finish(gen, "start interview", err, func() {
		c.phase = &InterviewPhase{
			Config: cfg,
			session: session{
				conv:       conv,
				seed:       interviewSeed,
				transcript: []Message{{Sender: SenderAI, Text: reply}},
			},
		}
	})
}

// SendUserMessage appends the user's answer and the model's reply to the transcript.
// The answer stays in the transcript even when the reply fails.
// Rejected calls leave the state untouched.
func (c *Controller) SendUserMessage(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)

	c.mu.Lock()

	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}

	s := c.activeSession()
	if s == nil {
		c.mu.Unlock()
		return ErrInvalidPhase
	}

	if text == "" {
		c.mu.Unlock()
		return &ValidationError{Field: "text", Reason: "is required"}
	}

	s.transcript = append(s.transcript, Message{Sender: SenderUser, Text: text})
	conv := s.conv
	gen := c.markBusy()

	c.mu.Unlock()

	reply, err := conv.Send(ctx, text)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		return ErrStaleResult
	}

	c.busy = false
	s = c.activeSession()

	if err != nil {
		s.transcript = append(s.transcript, Message{Sender: SenderAI, Text: FallbackReply, Failed: true})
		return c.fail("send message", err)
	}

	s.transcript = append(s.transcript, Message{Sender: SenderAI, Text: reply})

	return nil
}

// EndSession asks the model to grade the transcript of the current session.
func (c *Controller) EndSession(ctx context.Context) error {
	var (
		cfg   SessionConfig
		topic string
		kind  string
		turns []inference.Turn
	)

	gen, err := c.begin(func(p Phase) error {
		switch p := p.(type) {
		case *PracticePhase:
			cfg, topic, kind = p.Config, p.Topic, "practice session"
		case *InterviewPhase:
			cfg, kind = p.Config, "interview"
		default:
			return ErrInvalidPhase
		}

		s := c.activeSession()
		if len(s.transcript) == 0 {
			return ErrInvalidPhase
		}

		turns = s.replay()

		return nil
	})
	if err != nil {
		return err
	}

	turns = append(turns, inference.Turn{
		Role: inference.RoleUser,
		Content: render(feedbackPromptTemplate, map[string]string{
			"session":    kind,
			"domain":     cfg.Domain,
			"experience": cfg.ExperienceLevel,
		}),
	})

	var feedback Feedback
	err = c.inference.GenerateJSON(ctx, inference.Request{
		Turns:  turns,
		Schema: feedbackSchema,
	}, &feedback)

	if err == nil && (feedback.Rating < 1 || feedback.Rating > 5) {
		err = fmt.Errorf("%w: rating %d out of range", inference.ErrMalformedResponse, feedback.Rating)
	}

	return c.finish(gen, "generate feedback", err, func() {
		c.phase = &FeedbackPhase{
			Config:     cfg,
			Topic:      topic,
			Transcript: c.activeSession().transcript,
			Feedback:   feedback,
		}
	})
}

// ChangeTopic leaves the practice session and goes back to the topic list.
func (c *Controller) ChangeTopic() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.busy {
		return ErrBusy
	}

	practice, ok := c.phase.(*PracticePhase)
	if !ok {
		c.lastErr = ErrInvalidPhase.Error()
		return ErrInvalidPhase
	}

	c.phase = &TopicSelectionPhase{
		Config: practice.Config,
		Topics: practice.Topics,
	}
	c.lastErr = ""

	return nil
}

// Reset drops everything and returns to setup. Calls still in flight are discarded when they complete.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	c.busy = false
	c.phase = &SetupPhase{}
	c.lastErr = ""
}

// begin checks the preconditions of a model-backed operation and marks the controller busy.
// A rejected precondition is recorded as the current error. ErrBusy is not.
func (c *Controller) begin(check func(p Phase) error) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.busy {
		return 0, ErrBusy
	}

	if err := check(c.phase); err != nil {
		c.lastErr = err.Error()
		return 0, err
	}

	return c.markBusy(), nil
}

// finish applies the outcome of a model call issued in generation gen.
func (c *Controller) finish(gen uint64, op string, err error, apply func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		slog.Debug("Discarding stale result", "op", op)
		return ErrStaleResult
	}

	c.busy = false

	if err != nil {
		return c.fail(op, err)
	}

	apply()

	return nil
}

func (c *Controller) markBusy() uint64 {
	c.busy = true
	c.lastErr = ""

	return c.generation
}

func (c *Controller) fail(op string, err error) error {
	slog.Warn("Inference call failed", "op", op, "error", err)

	infErr := &InferenceError{Op: op, Err: err}
	c.lastErr = infErr.Error()

	return infErr
}

func (c *Controller) activeSession() *session {
	switch p := c.phase.(type) {
	case *PracticePhase:
		return &p.session
	case *InterviewPhase:
		return &p.session
	default:
		return nil
	}
}

func (c *Controller) validateConfig(cfg SessionConfig) error {
	err := c.validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return &ValidationError{Field: fieldErrs[0].Field(), Reason: "is required"}
	}

	return &ValidationError{Field: "config", Reason: err.Error()}
}

func cleanTopics(topics []string) []string {
	topics = pie.Filter(pie.Map(topics, strings.TrimSpace), func(topic string) bool {
		return topic != ""
	})

	result := make([]string, 0, len(topics))
	for _, topic := range topics {
		if !pie.Contains(result, topic) {
			result = append(result, topic)
		}
	}

	return result
}
