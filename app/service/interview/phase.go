package interview

import (
	"slices"

	"portfolio/app/client/inference"
)

type PhaseName string

const (
	PhaseSetup            PhaseName = "setup"
	PhaseTopicSelection   PhaseName = "topic_selection"
	PhasePracticeSession  PhaseName = "practice_session"
	PhaseInterviewSession PhaseName = "interview_session"
	PhaseFeedback         PhaseName = "feedback"
)

type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

type Message struct {
	Sender Sender `json:"sender"`
	Text   string `json:"text"`
	// Failed marks the apology shown in place of a reply that never arrived.
	Failed bool `json:"failed,omitempty"`
}

type SessionConfig struct {
	Domain          string `json:"domain" validate:"required"`
	ExperienceLevel string `json:"experience_level" validate:"required"`
}

type Feedback struct {
	Rating  int    `json:"rating"`
	Summary string `json:"summary"`
}

// Phase is one state of the session state machine together with the data it owns.
type Phase interface {
	Name() PhaseName
	phase()
}

type SetupPhase struct{}

type TopicSelectionPhase struct {
	Config SessionConfig
	Topics []string
}

// session is the live exchange shared by practice and interview phases.
type session struct {
	conv       *inference.Conversation
	seed       string
	transcript []Message
}

type PracticePhase struct {
	Config SessionConfig
	Topics []string
	Topic  string
	session
}

type InterviewPhase struct {
	Config SessionConfig
	session
}

type FeedbackPhase struct {
	Config     SessionConfig
	Topic      string
	Transcript []Message
	Feedback   Feedback
}

func (*SetupPhase) Name() PhaseName          { return PhaseSetup }
func (*TopicSelectionPhase) Name() PhaseName { return PhaseTopicSelection }
func (*PracticePhase) Name() PhaseName       { return PhasePracticeSession }
func (*InterviewPhase) Name() PhaseName      { return PhaseInterviewSession }
func (*FeedbackPhase) Name() PhaseName       { return PhaseFeedback }

func (*SetupPhase) phase()          {}
func (*TopicSelectionPhase) phase() {}
func (*PracticePhase) phase()       {}
func (*InterviewPhase) phase()      {}
func (*FeedbackPhase) phase()       {}

// replay rebuilds the model-facing history from the transcript.
// Failed replies are left out together with the user message that triggered them.
func (s *session) replay() []inference.Turn {
	turns := []inference.Turn{{Role: inference.RoleUser, Content: s.seed}}

	for i, msg := range s.transcript {
		if msg.Failed {
			continue
		}

		if msg.Sender == SenderUser {
			if i+1 < len(s.transcript) && s.transcript[i+1].Failed {
				continue
			}

			turns = append(turns, inference.Turn{Role: inference.RoleUser, Content: msg.Text})
			continue
		}

		turns = append(turns, inference.Turn{Role: inference.RoleModel, Content: msg.Text})
	}

	return turns
}

// Snapshot is the observable state of a controller.
type Snapshot struct {
	Phase      PhaseName     `json:"phase"`
	Config     SessionConfig `json:"config"`
	Topics     []string      `json:"topics"`
	Topic      string        `json:"topic,omitempty"`
	Transcript []Message     `json:"transcript"`
	Loading    bool          `json:"loading"`
	Error      string        `json:"error,omitempty"`
	Feedback   *Feedback     `json:"feedback"`
}

func snapshotOf(p Phase) Snapshot {
	snap := Snapshot{
		Phase:      p.Name(),
		Topics:     []string{},
		Transcript: []Message{},
	}

	switch p := p.(type) {
	case *TopicSelectionPhase:
		snap.Config = p.Config
		snap.Topics = slices.Clone(p.Topics)
	case *PracticePhase:
		snap.Config = p.Config
		snap.Topics = slices.Clone(p.Topics)
		snap.Topic = p.Topic
		snap.Transcript = slices.Clone(p.transcript)
	case *InterviewPhase:
		snap.Config = p.Config
		snap.Transcript = slices.Clone(p.transcript)
	case *FeedbackPhase:
		feedback := p.Feedback
		snap.Config = p.Config
		snap.Topic = p.Topic
		snap.Transcript = slices.Clone(p.Transcript)
		snap.Feedback = &feedback
	}

	return snap
}
