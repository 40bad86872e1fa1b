package api

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Schema is a minimal JSON-Schema object model, covering the subset the
// pause/resume loop needs: object schemas with typed properties, enums for
// choices and arrays for multi-choices. It marshals to standard JSON-Schema
// so any schema-capable caller can drive the loop without special casing.
type Schema struct {
	Type        string             `json:"type,omitempty"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
}

// Object builds an object schema with the given properties. All property
// names are required unless the caller narrows the list afterwards.
func Object(props map[string]*Schema, required ...string) *Schema {
	if len(required) == 0 {
		for name := range props {
			required = append(required, name)
		}
	}
	return &Schema{Type: "object", Properties: props, Required: required}
}

// String returns a string property schema.
func String(description string) *Schema {
	return &Schema{Type: "string", Description: description}
}

// Integer returns an integer property schema.
func Integer(description string) *Schema {
	return &Schema{Type: "integer", Description: description}
}

// Number returns a number property schema.
func Number(description string) *Schema {
	return &Schema{Type: "number", Description: description}
}

// Boolean returns a boolean property schema.
func Boolean(description string) *Schema {
	return &Schema{Type: "boolean", Description: description}
}

// Choice builds the schema for a single-choice field constrained to the
// given options.
func Choice(field string, options []string) *Schema {
	return &Schema{
		Type: "object",
		Properties: map[string]*Schema{
			field: {
				Type:        "string",
				Enum:        options,
				Description: fmt.Sprintf("Pick one of: %s", strings.Join(options, ", ")),
			},
		},
		Required: []string{field},
	}
}

// MultiChoice builds the schema for a field accepting one or more of the
// given options.
func MultiChoice(field string, options []string) *Schema {
	return &Schema{
		Type: "object",
		Properties: map[string]*Schema{
			field: {
				Type: "array",
				Items: &Schema{
					Type: "string",
					Enum: options,
				},
				Description: fmt.Sprintf("Pick one or more of: %s", strings.Join(options, ", ")),
			},
		},
		Required: []string{field},
	}
}

// Confirm builds the schema for a yes/no confirmation field.
func Confirm(field string) *Schema {
	return &Schema{
		Type: "object",
		Properties: map[string]*Schema{
			field: {
				Type:        "boolean",
				Description: "Confirmation of the presented data",
			},
		},
		Required: []string{field},
	}
}

// Validate checks a payload document against the schema and returns a
// human-readable error listing every violation, or nil when the payload
// conforms.
func (s *Schema) Validate(payload map[string]any) error {
	if s == nil {
		return nil
	}
	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(s),
		gojsonschema.NewGoLoader(payload),
	)
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return fmt.Errorf("invalid payload: %s", strings.Join(msgs, "; "))
}
