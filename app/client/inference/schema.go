package inference

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

var ErrMalformedResponse = errors.New("malformed model response")

// cleanJSON strips the markdown fences models like to wrap JSON into.
func cleanJSON(text string) string {
	result := strings.TrimSpace(text)
	result = strings.Trim(result, "`")
	result = strings.TrimSpace(result)
	result = strings.TrimPrefix(result, "json")
	result = strings.TrimSpace(result)

	return result
}

// Validate checks data against the schema.
func (s *Schema) Validate(data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("%w: not valid JSON", ErrMalformedResponse)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(s.JSON()),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, resultErr := range result.Errors() {
			problems = append(problems, resultErr.String())
		}

		return fmt.Errorf("%w: %s", ErrMalformedResponse, strings.Join(problems, "; "))
	}

	return nil
}

// Decode cleans, validates and unmarshals a raw model answer into out.
func (s *Schema) Decode(text string, out any) error {
	data := []byte(cleanJSON(text))

	if err := s.Validate(data); err != nil {
		return err
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	return nil
}
