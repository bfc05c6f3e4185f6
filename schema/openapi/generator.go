// Package openapi publishes the chunk format of registered item kinds as
// JSON Schema objects and OpenAPI documents.
package openapi

import (
	"github.com/goliatone/go-layerdoc"
)

// SchemaFor returns the JSON Schema of a chunk of kind. Layered, geometry
// and quiet properties carry x-layered, x-geometry and x-quiet extensions.
// Unknown keys are allowed since chunks keep them across versions.
func SchemaFor(kind string) (map[string]any, error) {
	fields, err := layerdoc.Describe(kind)
	if err != nil {
		return nil, err
	}
	properties := make(map[string]any, len(fields))
	for _, field := range fields {
		properties[field.Path] = fieldSchema(field)
	}
	return map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             []any{"id"},
		"additionalProperties": true,
		"x-kind":               kind,
	}, nil
}

func fieldSchema(field layerdoc.FieldDescriptor) map[string]any {
	schema := typeSchema(field.Type)
	if field.Path != "id" {
		schema["nullable"] = true
	}
	if field.Default != nil {
		schema["default"] = field.Default
	}
	if field.Layered {
		schema["x-layered"] = true
	}
	if field.Geometry {
		schema["x-geometry"] = true
	}
	if field.Quiet {
		schema["x-quiet"] = true
	}
	return schema
}

func typeSchema(kind string) map[string]any {
	switch kind {
	case layerdoc.KindString.String():
		return map[string]any{"type": "string"}
	case layerdoc.KindInt.String():
		return map[string]any{"type": "integer"}
	case layerdoc.KindFloat.String():
		return map[string]any{"type": "number"}
	case layerdoc.KindBool.String():
		return map[string]any{"type": "boolean"}
	case layerdoc.KindStrings.String():
		return map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		}
	case layerdoc.KindPoint.String():
		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				"x": map[string]any{"type": "number"},
				"y": map[string]any{"type": "number"},
			},
		}
	case layerdoc.KindMap.String():
		return map[string]any{
			"type":                 "object",
			"additionalProperties": true,
		}
	default:
		return map[string]any{}
	}
}
