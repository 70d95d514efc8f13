package interview

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"portfolio/app/client/inference"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleTopics = []string{"REST API design", "Database indexing", "Concurrency", "System design basics", "Testing strategies"}

type stubProvider struct {
	mu       sync.Mutex
	requests []inference.Request
	reply    func(req inference.Request) (string, error)

	entered chan struct{}
	release chan struct{}
}

func newStubProvider() *stubProvider {
	return &stubProvider{reply: defaultReply}
}

func defaultReply(req inference.Request) (string, error) {
	if req.Schema != nil {
		switch req.Schema.Name {
		case topicsSchema.Name:
			return "```json\n{\"topics\":[\"REST API design\",\"Database indexing\",\"Concurrency\",\"System design basics\",\"Testing strategies\"]}\n```", nil
		case feedbackSchema.Name:
			return `{"rating":4,"summary":"Solid grasp of concurrency, needs more depth on trade-offs."}`, nil
		}
	}

	last := req.Turns[len(req.Turns)-1].Content

	return "Next question after: " + last, nil
}

func (p *stubProvider) Complete(ctx context.Context, req inference.Request) (string, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	entered, release, reply := p.entered, p.release, p.reply
	p.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	return reply(req)
}

// hold makes subsequent calls block until the returned func is called.
func (p *stubProvider) hold() (entered <-chan struct{}, release func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.entered = make(chan struct{}, 1)
	p.release = make(chan struct{})

	releaseCh := p.release

	return p.entered, func() { close(releaseCh) }
}

func (p *stubProvider) setReply(reply func(req inference.Request) (string, error)) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.reply = reply
}

func (p *stubProvider) lastRequest() inference.Request {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.requests[len(p.requests)-1]
}

func (p *stubProvider) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.requests)
}

func newTestController(t *testing.T) (*Controller, *stubProvider) {
	t.Helper()

	provider := newStubProvider()

	return NewController(inference.NewService(provider, 5*time.Second)), provider
}

func practiceController(t *testing.T) (*Controller, *stubProvider) {
	t.Helper()

	ctrl, provider := newTestController(t)
	ctx := context.Background()

	require.NoError(t, ctrl.RequestTopics(ctx, "Backend Engineer", "2 years"))
	require.NoError(t, ctrl.SelectTopic(ctx, "Concurrency"))

	return ctrl, provider
}

func failing(req inference.Request) (string, error) {
	return "", errors.New("quota exceeded")
}

func TestRequestTopics(t *testing.T) {
	ctrl, provider := newTestController(t)

	require.NoError(t, ctrl.RequestTopics(context.Background(), " Backend Engineer ", "2 years"))

	snap := ctrl.Snapshot()
	assert.Equal(t, PhaseTopicSelection, snap.Phase)
	assert.Equal(t, sampleTopics, snap.Topics)
	assert.Equal(t, SessionConfig{Domain: "Backend Engineer", ExperienceLevel: "2 years"}, snap.Config)
	assert.Empty(t, snap.Error)
	assert.False(t, snap.Loading)

	req := provider.lastRequest()
	require.NotNil(t, req.Schema)
	assert.Equal(t, topicsSchema.Name, req.Schema.Name)
	require.Len(t, req.Turns, 1)
	assert.Contains(t, req.Turns[0].Content, `"Backend Engineer"`)
	assert.Contains(t, req.Turns[0].Content, "2 years")
}

func TestRequestTopicsValidation(t *testing.T) {
	tests := []struct {
		name       string
		domain     string
		experience string
		field      string
	}{
		{name: "empty domain", domain: "", experience: "2 years", field: "domain"},
		{name: "blank experience", domain: "Backend Engineer", experience: "   ", field: "experience_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl, provider := newTestController(t)

			err := ctrl.RequestTopics(context.Background(), tt.domain, tt.experience)

			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tt.field, validationErr.Field)
			assert.Zero(t, provider.count())

			snap := ctrl.Snapshot()
			assert.Equal(t, PhaseSetup, snap.Phase)
			assert.NotEmpty(t, snap.Error)
		})
	}
}

func TestRequestTopicsFailure(t *testing.T) {
	replies := map[string]func(req inference.Request) (string, error){
		"network":      failing,
		"invalid json": func(inference.Request) (string, error) { return "Here are some topics: Go, SQL", nil },
		"wrong shape":  func(inference.Request) (string, error) { return `{"topics":"Go"}`, nil },
		"empty list":   func(inference.Request) (string, error) { return `{"topics":[]}`, nil },
		"blank topics": func(inference.Request) (string, error) { return `{"topics":["  ",""]}`, nil },
	}

	for name, reply := range replies {
		t.Run(name, func(t *testing.T) {
			ctrl, provider := newTestController(t)
			provider.setReply(reply)

			err := ctrl.RequestTopics(context.Background(), "Backend Engineer", "2 years")

			var infErr *InferenceError
			require.ErrorAs(t, err, &infErr)

			snap := ctrl.Snapshot()
			assert.Equal(t, PhaseSetup, snap.Phase)
			assert.Empty(t, snap.Topics)
			assert.Equal(t, err.Error(), snap.Error)
		})
	}
}

func TestRequestTopicsDeduplicates(t *testing.T) {
	ctrl, provider := newTestController(t)
	provider.setReply(func(inference.Request) (string, error) {
		return `{"topics":[" Go ","Go","SQL",""]}`, nil
	})

	require.NoError(t, ctrl.RequestTopics(context.Background(), "Backend Engineer", "2 years"))
	assert.Equal(t, []string{"Go", "SQL"}, ctrl.Snapshot().Topics)
}

func TestRequestTopicsWrongPhase(t *testing.T) {
	ctrl, provider := newTestController(t)
	ctx := context.Background()

	require.NoError(t, ctrl.RequestTopics(ctx, "Backend Engineer", "2 years"))
	calls := provider.count()

	assert.ErrorIs(t, ctrl.RequestTopics(ctx, "Frontend Engineer", "1 year"), ErrInvalidPhase)
	assert.Equal(t, calls, provider.count())
	assert.Equal(t, sampleTopics, ctrl.Snapshot().Topics)
}

func TestSelectTopic(t *testing.T) {
	for _, topic := range sampleTopics {
		t.Run(topic, func(t *testing.T) {
			ctrl, provider := newTestController(t)
			ctx := context.Background()

			require.NoError(t, ctrl.RequestTopics(ctx, "Backend Engineer", "2 years"))
			require.NoError(t, ctrl.SelectTopic(ctx, topic))

			snap := ctrl.Snapshot()
			assert.Equal(t, PhasePracticeSession, snap.Phase)
			assert.Equal(t, topic, snap.Topic)
			require.Len(t, snap.Transcript, 1)
			assert.Equal(t, SenderAI, snap.Transcript[0].Sender)
			assert.NotEmpty(t, snap.Transcript[0].Text)

			req := provider.lastRequest()
			assert.Contains(t, req.System, `"`+topic+`"`)
			assert.Contains(t, req.System, "explanation of the correct concept")
			require.Len(t, req.Turns, 1)
			assert.Equal(t, practiceSeed, req.Turns[0].Content)
		})
	}
}

func TestSelectTopicValidation(t *testing.T) {
	ctrl, provider := newTestController(t)
	ctx := context.Background()

	assert.ErrorIs(t, ctrl.SelectTopic(ctx, "Concurrency"), ErrInvalidPhase)

	require.NoError(t, ctrl.RequestTopics(ctx, "Backend Engineer", "2 years"))
	calls := provider.count()

	var validationErr *ValidationError
	require.ErrorAs(t, ctrl.SelectTopic(ctx, "Kubernetes"), &validationErr)
	assert.Equal(t, "topic", validationErr.Field)
	assert.Equal(t, calls, provider.count())
	assert.Equal(t, PhaseTopicSelection, ctrl.Snapshot().Phase)
}

func TestSelectTopicFailure(t *testing.T) {
	ctrl, provider := newTestController(t)
	ctx := context.Background()

	require.NoError(t, ctrl.RequestTopics(ctx, "Backend Engineer", "2 years"))
	provider.setReply(failing)

	var infErr *InferenceError
	require.ErrorAs(t, ctrl.SelectTopic(ctx, "Concurrency"), &infErr)

	snap := ctrl.Snapshot()
	assert.Equal(t, PhaseTopicSelection, snap.Phase)
	assert.Equal(t, sampleTopics, snap.Topics)
	assert.Empty(t, snap.Transcript)
	assert.NotEmpty(t, snap.Error)
}

func TestStartInterview(t *testing.T) {
	ctrl, provider := newTestController(t)

	require.NoError(t, ctrl.StartInterview(context.Background(), "Backend Engineer", "2 years"))

	snap := ctrl.Snapshot()
	assert.Equal(t, PhaseInterviewSession, snap.Phase)
	require.Len(t, snap.Transcript, 1)
	assert.Equal(t, SenderAI, snap.Transcript[0].Sender)

	req := provider.lastRequest()
	assert.Contains(t, req.System, "interviewer")
	assert.Contains(t, req.System, `"Backend Engineer"`)
	assert.Equal(t, interviewSeed, req.Turns[0].Content)
}

func TestStartInterviewFailure(t *testing.T) {
	ctrl, provider := newTestController(t)
	provider.setReply(failing)

	var infErr *InferenceError
	require.ErrorAs(t, ctrl.StartInterview(context.Background(), "Backend Engineer", "2 years"), &infErr)

	snap := ctrl.Snapshot()
	assert.Equal(t, PhaseSetup, snap.Phase)
	assert.Empty(t, snap.Transcript)
	assert.NotEmpty(t, snap.Error)

	var validationErr *ValidationError
	require.ErrorAs(t, ctrl.StartInterview(context.Background(), "", ""), &validationErr)
}

func TestSendUserMessageAppendOnly(t *testing.T) {
	ctrl, provider := practiceController(t)
	ctx := context.Background()

	for _, answer := range []string{"A goroutine is a lightweight thread", "I don't know", "Channels pass ownership"} {
		before := ctrl.Snapshot().Transcript

		require.NoError(t, ctrl.SendUserMessage(ctx, answer))

		after := ctrl.Snapshot().Transcript
		require.Len(t, after, len(before)+2)
		assert.Equal(t, before, after[:len(before)])
		assert.Equal(t, Message{Sender: SenderUser, Text: answer}, after[len(before)])
		assert.Equal(t, SenderAI, after[len(before)+1].Sender)
	}

	req := provider.lastRequest()
	require.Len(t, req.Turns, 7)
	assert.Equal(t, "Channels pass ownership", req.Turns[6].Content)
}

func TestSendUserMessageFailure(t *testing.T) {
	ctrl, provider := practiceController(t)
	provider.setReply(failing)

	err := ctrl.SendUserMessage(context.Background(), "I don't know")

	var infErr *InferenceError
	require.ErrorAs(t, err, &infErr)

	snap := ctrl.Snapshot()
	require.Len(t, snap.Transcript, 3)
	assert.Equal(t, Message{Sender: SenderUser, Text: "I don't know"}, snap.Transcript[1])
	assert.Equal(t, Message{Sender: SenderAI, Text: FallbackReply, Failed: true}, snap.Transcript[2])
	assert.Equal(t, err.Error(), snap.Error)
	assert.Equal(t, PhasePracticeSession, snap.Phase)
}

func TestSendUserMessageRejected(t *testing.T) {
	ctrl, provider := newTestController(t)
	ctx := context.Background()

	assert.ErrorIs(t, ctrl.SendUserMessage(ctx, "hello"), ErrInvalidPhase)
	assert.Zero(t, provider.count())
	assert.Empty(t, ctrl.Snapshot().Error)

	require.NoError(t, ctrl.StartInterview(ctx, "Backend Engineer", "2 years"))
	calls := provider.count()

	var validationErr *ValidationError
	require.ErrorAs(t, ctrl.SendUserMessage(ctx, "   "), &validationErr)
	assert.Equal(t, calls, provider.count())
	assert.Len(t, ctrl.Snapshot().Transcript, 1)
}

func TestEndSession(t *testing.T) {
	ctrl, provider := newTestController(t)
	ctx := context.Background()

	require.NoError(t, ctrl.StartInterview(ctx, "Backend Engineer", "2 years"))
	require.NoError(t, ctrl.SendUserMessage(ctx, "I built a REST API in Go"))
	require.NoError(t, ctrl.SendUserMessage(ctx, "I used mutexes"))

	provider.setReply(failing)
	require.Error(t, ctrl.SendUserMessage(ctx, "lost answer"))
	provider.setReply(defaultReply)

	require.NoError(t, ctrl.SendUserMessage(ctx, "I profile with pprof"))
	require.Len(t, ctrl.Snapshot().Transcript, 9)

	require.NoError(t, ctrl.EndSession(ctx))

	snap := ctrl.Snapshot()
	assert.Equal(t, PhaseFeedback, snap.Phase)
	require.NotNil(t, snap.Feedback)
	assert.GreaterOrEqual(t, snap.Feedback.Rating, 1)
	assert.LessOrEqual(t, snap.Feedback.Rating, 5)
	assert.NotEmpty(t, snap.Feedback.Summary)
	assert.Len(t, snap.Transcript, 9)

	req := provider.lastRequest()
	require.NotNil(t, req.Schema)
	assert.Equal(t, feedbackSchema.Name, req.Schema.Name)

	var users []string
	for _, turn := range req.Turns {
		if turn.Role == inference.RoleUser {
			users = append(users, turn.Content)
		}
	}

	require.Len(t, users, 5)
	assert.Equal(t, interviewSeed, users[0])
	assert.Equal(t, []string{"I built a REST API in Go", "I used mutexes", "I profile with pprof"}, users[1:4])
	assert.True(t, strings.HasPrefix(users[4], "The interview is now over"))
	assert.Len(t, req.Turns, 9)

	for _, turn := range req.Turns {
		assert.NotEqual(t, FallbackReply, turn.Content)
	}
}

func TestEndSessionFromPractice(t *testing.T) {
	ctrl, _ := practiceController(t)

	require.NoError(t, ctrl.EndSession(context.Background()))

	snap := ctrl.Snapshot()
	assert.Equal(t, PhaseFeedback, snap.Phase)
	assert.Equal(t, "Concurrency", snap.Topic)
	require.NotNil(t, snap.Feedback)
}

func TestEndSessionInvalidPhase(t *testing.T) {
	ctrl, provider := newTestController(t)
	ctx := context.Background()

	assert.ErrorIs(t, ctrl.EndSession(ctx), ErrInvalidPhase)

	require.NoError(t, ctrl.RequestTopics(ctx, "Backend Engineer", "2 years"))
	calls := provider.count()

	assert.ErrorIs(t, ctrl.EndSession(ctx), ErrInvalidPhase)
	assert.Equal(t, calls, provider.count())
	assert.Nil(t, ctrl.Snapshot().Feedback)
}

func TestEndSessionFailure(t *testing.T) {
	replies := map[string]func(req inference.Request) (string, error){
		"network":       failing,
		"missing field": func(inference.Request) (string, error) { return `{"rating":3}`, nil },
		"out of range":  func(inference.Request) (string, error) { return `{"rating":7,"summary":"great"}`, nil },
	}

	for name, reply := range replies {
		t.Run(name, func(t *testing.T) {
			ctrl, provider := newTestController(t)
			ctx := context.Background()

			require.NoError(t, ctrl.StartInterview(ctx, "Backend Engineer", "2 years"))
			provider.setReply(reply)

			var infErr *InferenceError
			require.ErrorAs(t, ctrl.EndSession(ctx), &infErr)

			snap := ctrl.Snapshot()
			assert.Equal(t, PhaseInterviewSession, snap.Phase)
			assert.Nil(t, snap.Feedback)
			assert.NotEmpty(t, snap.Error)
			assert.Len(t, snap.Transcript, 1)
		})
	}
}

func TestChangeTopic(t *testing.T) {
	ctrl, _ := practiceController(t)
	ctx := context.Background()

	require.NoError(t, ctrl.SendUserMessage(ctx, "Goroutines are cheap"))
	require.NoError(t, ctrl.ChangeTopic())

	snap := ctrl.Snapshot()
	assert.Equal(t, PhaseTopicSelection, snap.Phase)
	assert.Equal(t, sampleTopics, snap.Topics)
	assert.Empty(t, snap.Transcript)
	assert.Equal(t, "Backend Engineer", snap.Config.Domain)

	require.NoError(t, ctrl.SelectTopic(ctx, "Database indexing"))
	assert.Len(t, ctrl.Snapshot().Transcript, 1)

	ctrl.Reset()
	assert.ErrorIs(t, ctrl.ChangeTopic(), ErrInvalidPhase)
}

func TestResetFromAnyState(t *testing.T) {
	setups := map[string]func(t *testing.T) *Controller{
		"setup": func(t *testing.T) *Controller {
			ctrl, _ := newTestController(t)
			return ctrl
		},
		"topic selection": func(t *testing.T) *Controller {
			ctrl, _ := newTestController(t)
			require.NoError(t, ctrl.RequestTopics(context.Background(), "Backend Engineer", "2 years"))
			return ctrl
		},
		"practice": func(t *testing.T) *Controller {
			ctrl, _ := practiceController(t)
			return ctrl
		},
		"feedback": func(t *testing.T) *Controller {
			ctrl, _ := practiceController(t)
			require.NoError(t, ctrl.EndSession(context.Background()))
			return ctrl
		},
		"error": func(t *testing.T) *Controller {
			ctrl, _ := newTestController(t)
			require.Error(t, ctrl.RequestTopics(context.Background(), "", ""))
			return ctrl
		},
	}

	for name, setup := range setups {
		t.Run(name, func(t *testing.T) {
			ctrl := setup(t)

			ctrl.Reset()

			assert.Equal(t, Snapshot{
				Phase:      PhaseSetup,
				Topics:     []string{},
				Transcript: []Message{},
			}, ctrl.Snapshot())
		})
	}
}

func TestConcurrentSendRejected(t *testing.T) {
	ctrl, provider := practiceController(t)
	ctx := context.Background()

	entered, release := provider.hold()

	done := make(chan error, 1)
	go func() {
		done <- ctrl.SendUserMessage(ctx, "first")
	}()

	<-entered

	assert.ErrorIs(t, ctrl.SendUserMessage(ctx, "second"), ErrBusy)
	assert.ErrorIs(t, ctrl.EndSession(ctx), ErrBusy)
	assert.ErrorIs(t, ctrl.ChangeTopic(), ErrBusy)

	snap := ctrl.Snapshot()
	assert.True(t, snap.Loading)
	require.Len(t, snap.Transcript, 2)
	assert.Equal(t, "first", snap.Transcript[1].Text)

	release()
	require.NoError(t, <-done)

	snap = ctrl.Snapshot()
	assert.False(t, snap.Loading)
	require.Len(t, snap.Transcript, 3)
	assert.Equal(t, SenderAI, snap.Transcript[2].Sender)
}

func TestResetDiscardsStaleResult(t *testing.T) {
	ctrl, provider := newTestController(t)
	ctx := context.Background()

	entered, release := provider.hold()

	done := make(chan error, 1)
	go func() {
		done <- ctrl.RequestTopics(ctx, "Backend Engineer", "2 years")
	}()

	<-entered
	ctrl.Reset()
	assert.False(t, ctrl.Snapshot().Loading)

	release()
	assert.ErrorIs(t, <-done, ErrStaleResult)

	snap := ctrl.Snapshot()
	assert.Equal(t, PhaseSetup, snap.Phase)
	assert.Empty(t, snap.Topics)
	assert.Empty(t, snap.Error)

	require.NoError(t, ctrl.RequestTopics(ctx, "Frontend Engineer", "1 year"))
	assert.Equal(t, "Frontend Engineer", ctrl.Snapshot().Config.Domain)
}

func TestResetDiscardsStaleReply(t *testing.T) {
	ctrl, provider := practiceController(t)
	ctx := context.Background()

	entered, release := provider.hold()

	done := make(chan error, 1)
	go func() {
		done <- ctrl.SendUserMessage(ctx, "late answer")
	}()

	<-entered
	ctrl.Reset()
	release()

	assert.ErrorIs(t, <-done, ErrStaleResult)
	assert.Empty(t, ctrl.Snapshot().Transcript)
}
