package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema is a compiled JSON schema that can be reused across validations.
type Schema struct {
	name     string
	compiled *jsonschema.Schema
}

// Compile compiles schemaJSON under the given resource name.
func Compile(name string, schemaJSON string) (*Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource %s: %w", name, err)
	}
	sch, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to compile JSON schema %s: %w", name, err)
	}
	return &Schema{name: name, compiled: sch}, nil
}

// MustCompile is Compile for schemas embedded in the binary.
func MustCompile(name string, schemaJSON string) *Schema {
	s, err := Compile(name, schemaJSON)
	if err != nil {
		panic(err)
	}
	return s
}

// ValidateJSON decodes data and validates it against the schema.
func (s *Schema) ValidateJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("failed to unmarshal JSON data: %w", err)
	}
	return s.ValidateValue(v)
}

// ValidateValue validates an already decoded JSON value (maps, slices, float64, string, bool, nil).
func (s *Schema) ValidateValue(v interface{}) error {
	if err := s.compiled.Validate(v); err != nil {
		if validationErr, ok := err.(*jsonschema.ValidationError); ok {
			return fmt.Errorf("JSON data failed validation against %s: %v", s.name, validationErr)
		}
		return fmt.Errorf("JSON data failed validation against %s (unexpected error type): %w", s.name, err)
	}
	return nil
}
