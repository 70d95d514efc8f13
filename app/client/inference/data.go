package inference

import (
	"context"
	"encoding/json"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one entry of a multi-turn exchange.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is everything a provider needs for a single completion.
// A non-nil Schema asks for JSON output conforming to it.
type Request struct {
	System string
	Turns  []Turn
	Schema *Schema
}

// Provider is a hosted model backend.
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
}

type Type string

const (
	TypeObject  Type = "object"
	TypeArray   Type = "array"
	TypeString  Type = "string"
	TypeInteger Type = "integer"
	TypeNumber  Type = "number"
	TypeBoolean Type = "boolean"
)

// Schema is the subset of JSON Schema understood by every provider.
type Schema struct {
	// Name identifies the schema for providers that require one.
	Name        string             `json:"-"`
	Type        Type               `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Minimum     *float64           `json:"minimum,omitempty"`
	Maximum     *float64           `json:"maximum,omitempty"`
	MinItems    *int64             `json:"minItems,omitempty"`
	MaxItems    *int64             `json:"maxItems,omitempty"`
}

func (s *Schema) JSON() json.RawMessage {
	data, _ := json.Marshal(s)
	return data
}

func Float(v float64) *float64 {
	return &v
}

func Int(v int64) *int64 {
	return &v
}
