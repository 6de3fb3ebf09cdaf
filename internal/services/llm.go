package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrMalformedResponse is returned when a model response does not match the requested schema.
var ErrMalformedResponse = errors.New("malformed structured response")

// Property types understood by Schema.
const (
	TypeString  = "string"
	TypeInteger = "integer"
)

// Property is one field of a structured response.
type Property struct {
	Type        string
	Description string
}

// Schema describes the JSON object a structured request must produce.
type Schema struct {
	Name        string
	Description string
	Properties  map[string]Property
	Required    []string
}

// JSONSchema renders the schema in the JSON Schema form providers accept for tool input.
func (s Schema) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.Properties))
	for name, p := range s.Properties {
		prop := map[string]any{"type": p.Type}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		props[name] = prop
	}
	required := s.Required
	if required == nil {
		required = []string{}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// Validate checks that raw is an object carrying every required field with the declared type.
func (s Schema) Validate(raw json.RawMessage) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return fmt.Errorf("%w: %s is not a JSON object: %v", ErrMalformedResponse, s.Name, err)
	}

	required := append([]string(nil), s.Required...)
	sort.Strings(required)
	for _, name := range required {
		value, ok := obj[name]
		if !ok || string(value) == "null" {
			return fmt.Errorf("%w: %s is missing %q", ErrMalformedResponse, s.Name, name)
		}
		if err := checkType(s.Properties[name].Type, value); err != nil {
			return fmt.Errorf("%w: %s field %q: %v", ErrMalformedResponse, s.Name, name, err)
		}
	}
	return nil
}

func checkType(typ string, value json.RawMessage) error {
	switch typ {
	case TypeString:
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			return errors.New("expected a string")
		}
		if strings.TrimSpace(s) == "" {
			return errors.New("expected a non-empty string")
		}
	case TypeInteger:
		var n int
		if err := json.Unmarshal(value, &n); err != nil {
			return errors.New("expected an integer")
		}
	}
	return nil
}

// StructuredRequest asks a text model for one object matching Schema.
type StructuredRequest struct {
	Prompt      string
	Temperature float64
	Schema      Schema
}

// TextService generates structured text from a prompt.
type TextService interface {
	GenerateStructured(ctx context.Context, req StructuredRequest) (json.RawMessage, error)
}

// ImageRequest describes one image to render.
type ImageRequest struct {
	Prompt        string
	Width         int
	Height        int
	Steps         int
	GuidanceScale float64
	OutputFormat  string
}

// DefaultImageRequest fills in the standard scene illustration settings.
func DefaultImageRequest(prompt string) ImageRequest {
	return ImageRequest{
		Prompt:        prompt,
		Width:         1024,
		Height:        1024,
		Steps:         28,
		GuidanceScale: 3.5,
		OutputFormat:  "JPG",
	}
}

// ImageService renders an image and returns its URL.
type ImageService interface {
	GenerateImage(ctx context.Context, req ImageRequest) (string, error)
}

// APIError is a non-2xx response from a remote service.
type APIError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API request failed with status %d: %s", e.Service, e.StatusCode, e.Body)
}
