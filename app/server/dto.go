package server

import (
	"portfolio/app/service/interview"
	"portfolio/app/service/shell"
)

type errorResponse struct {
	Error string `json:"error"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type setViewRequest struct {
	View shell.View `json:"view"`
}

type configRequest struct {
	Domain          string `json:"domain"`
	ExperienceLevel string `json:"experience_level"`
}

type selectTopicRequest struct {
	Topic string `json:"topic"`
}

type messageRequest struct {
	Text string `json:"text"`
}

type interviewResponse struct {
	State interview.Snapshot `json:"state"`
	Error string             `json:"error,omitempty"`
}
