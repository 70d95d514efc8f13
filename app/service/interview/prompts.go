package interview

import (
	_ "embed"
	"strings"

	"portfolio/app/client/inference"
)

//go:embed topics_prompt.txt
var topicsPromptTemplate string

//go:embed practice_instruction.txt
var practiceInstructionTemplate string

//go:embed interview_instruction.txt
var interviewInstructionTemplate string

//go:embed feedback_prompt.txt
var feedbackPromptTemplate string

const (
	practiceSeed  = "Start the practice session."
	interviewSeed = "Start the interview."

	FallbackReply = "Sorry, I encountered an error. Please try again."
)

var topicsSchema = &inference.Schema{
	Name: "interview_topics",
	Type: inference.TypeObject,
	Properties: map[string]*inference.Schema{
		"topics": {
			Type:        inference.TypeArray,
			Description: "Key technical and behavioral topics to prepare.",
			Items:       &inference.Schema{Type: inference.TypeString},
			MinItems:    inference.Int(1),
		},
	},
	Required: []string{"topics"},
}

var feedbackSchema = &inference.Schema{
	Name: "interview_feedback",
	Type: inference.TypeObject,
	Properties: map[string]*inference.Schema{
		"rating": {
			Type:        inference.TypeInteger,
			Description: "A rating from 1 to 5, where 1 is poor and 5 is excellent.",
			Minimum:     inference.Float(1),
			Maximum:     inference.Float(5),
		},
		"summary": {
			Type:        inference.TypeString,
			Description: "A constructive summary of the candidate's performance, highlighting strengths and areas for improvement.",
		},
	},
	Required: []string{"rating", "summary"},
}

type topicsResponse struct {
	Topics []string `json:"topics"`
}

func render(template string, values map[string]string) string {
	for key, value := range values {
		template = strings.ReplaceAll(template, "{"+key+"}", value)
	}

	return strings.TrimSpace(template)
}
