package rag

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/invopop/jsonschema"
	validator "github.com/santhosh-tekuri/jsonschema/v5"
)

// Reply is the JSON object every assistant turn must consist of
type Reply struct {
	Response  string   `json:"response" jsonschema:"required"`
	Suggested []string `json:"suggested" jsonschema:"required"`
}

// SchemaError describes why a JSON value failed validation
type SchemaError struct {
	Message      string
	InstancePath string
	SchemaPath   string
}

func (e *SchemaError) Error() string {
	if e.InstancePath == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.InstancePath, e.Message)
}

// Schema is a JSON schema generated from a Go type and compiled for validation
type Schema struct {
	name     string
	raw      string
	compiled *validator.Schema
}

// NewSchema reflects v into a JSON schema. Fields are required only when
// tagged jsonschema:"required"; unknown properties are allowed.
func NewSchema(name string, v any) (*Schema, error) {
	reflector := &jsonschema.Reflector{
		Anonymous:                  true,
		AllowAdditionalProperties:  true,
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
	}

	raw, err := json.MarshalIndent(reflector.Reflect(v), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s schema: %w", name, err)
	}

	compiled, err := validator.CompileString(name+".json", string(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s schema: %w", name, err)
	}

	return &Schema{name: name, raw: string(raw), compiled: compiled}, nil
}

// MustSchema is NewSchema for package-level schemas of known types
func MustSchema(name string, v any) *Schema {
	s, err := NewSchema(name, v)
	if err != nil {
		panic(err)
	}
	return s
}

// String returns the schema as indented JSON
func (s *Schema) String() string {
	return s.raw
}

// Validate parses data as a single JSON value and checks it against the
// schema. Failures are returned as *SchemaError.
func (s *Schema) Validate(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return &SchemaError{Message: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return &SchemaError{Message: "invalid JSON: unexpected data after the top-level value"}
	}

	err := s.compiled.Validate(value)
	if err == nil {
		return nil
	}

	var verr *validator.ValidationError
	if !errors.As(err, &verr) {
		return &SchemaError{Message: err.Error()}
	}
	leaf := verr
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	return &SchemaError{
		Message:      leaf.Message,
		InstancePath: leaf.InstanceLocation,
		SchemaPath:   leaf.KeywordLocation,
	}
}
