package validation

import (
	"fmt"

	"github.com/Bitfy-AI/docs-jana-sub007/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

const schemaVersion = "1.0.0"

// itemSchema declares the required and optional fields of an item document.
var itemSchema = map[string]any{
	"$schema":  "http://json-schema.org/draft-07/schema#",
	"type":     "object",
	"required": []string{"name", "nodes"},
	"properties": map[string]any{
		"id": map[string]any{"type": []string{"string", "integer"}},
		"name": map[string]any{
			"type":      "string",
			"minLength": 1,
			"maxLength": 100,
		},
		"nodes": map[string]any{
			"type":     "array",
			"minItems": 1,
			"items": map[string]any{
				"type":     "object",
				"required": []string{"name"},
				"properties": map[string]any{
					"id":          map[string]any{"type": "string"},
					"name":        map[string]any{"type": "string"},
					"type":        map[string]any{"type": "string"},
					"disabled":    map[string]any{"type": "boolean"},
					"credentials": map[string]any{"type": "object"},
				},
			},
		},
		"tags": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []string{"name"},
				"properties": map[string]any{
					"id":   map[string]any{"type": "string"},
					"name": map[string]any{"type": "string"},
				},
			},
		},
		"active":      map[string]any{"type": "boolean"},
		"connections": map[string]any{"type": "object"},
		"settings":    map[string]any{"type": "object"},
	},
}

// Schema validates the declared shape of an item: required name and nodes, and the types
// of the optional fields.
type Schema struct {
	schema *gojsonschema.Schema
}

// NewSchema compiles the item schema.
func NewSchema() (*Schema, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(itemSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile item schema: %w", err)
	}

	return &Schema{schema: schema}, nil
}

func (*Schema) Name() string {
	return "schema"
}

func (*Schema) Version() string {
	return schemaVersion
}

// Validate checks the item's wire document.
func (s *Schema) Validate(item models.Item, phase Phase) models.ValidationResult {
	doc, err := item.Document()
	if err != nil {
		result := newResult(s, phase)
		result.AddError(fmt.Sprintf("(root): item cannot be encoded: %v", err))

		return result
	}

	result := s.ValidateDocument(doc, phase)
	analyze(item).annotate(&result, item)

	return result
}

// ValidateDocument checks an arbitrary decoded JSON value, as read from an export file,
// before it is trusted to decode into an item. Each violated constraint becomes one error
// naming the field and the expected and received shape.
func (s *Schema) ValidateDocument(doc any, phase Phase) models.ValidationResult {
	result := newResult(s, phase)

	outcome, err := s.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		result.AddError(fmt.Sprintf("(root): document cannot be read: %v", err))

		return result
	}

	for _, violation := range outcome.Errors() {
		result.AddError(fmt.Sprintf("%s: %s", violation.Field(), violation.Description()))
	}

	fields, ok := doc.(map[string]any)
	if !ok {
		return result
	}

	switch tags := fields["tags"].(type) {
	case nil:
		result.AddWarning("tags: no tags set")
	case []any:
		if len(tags) == 0 {
			result.AddWarning("tags: no tags set")
		}
	}

	if _, ok := fields["settings"]; !ok {
		result.AddWarning("settings: not set, platform defaults apply")
	}

	if nodes, ok := fields["nodes"].([]any); ok {
		result.Metadata[MetaNodeCount] = len(nodes)
	}

	return result
}
