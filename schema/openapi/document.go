package openapi

import (
	"fmt"
	"slices"

	"github.com/goliatone/go-layerdoc"
)

const componentPrefix = "#/components/schemas/"

// Generate builds an OpenAPI document whose components hold one schema per
// item kind plus the Document schema, whose items list refers to them.
// Without kinds, every registered kind is published.
func Generate(kinds []string, opts ...GeneratorOption) (map[string]any, error) {
	cfg := newGeneratorConfig(opts)
	if len(kinds) == 0 {
		kinds = layerdoc.Kinds()
	}
	kinds = slices.DeleteFunc(slices.Clone(kinds), func(kind string) bool {
		return kind == layerdoc.TypeDocument
	})
	slices.Sort(kinds)
	kinds = slices.Compact(kinds)

	schemas := make(map[string]any, len(kinds)+1)
	refs := make([]any, 0, len(kinds))
	for _, kind := range kinds {
		schema, err := SchemaFor(kind)
		if err != nil {
			return nil, fmt.Errorf("openapi: %w", err)
		}
		schemas[kind] = schema
		refs = append(refs, map[string]any{"$ref": componentPrefix + kind})
	}

	root, err := SchemaFor(layerdoc.TypeDocument)
	if err != nil {
		return nil, fmt.Errorf("openapi: %w", err)
	}
	items := map[string]any{}
	if len(refs) > 0 {
		items["oneOf"] = refs
	}
	root["properties"].(map[string]any)["items"] = map[string]any{
		"type":  "array",
		"items": items,
	}
	schemas[layerdoc.TypeDocument] = root

	content := make(map[string]any, len(cfg.mediaTypes))
	for _, mediaType := range cfg.mediaTypes {
		content[mediaType] = map[string]any{
			"schema": map[string]any{"$ref": componentPrefix + layerdoc.TypeDocument},
		}
	}

	document := map[string]any{
		"openapi": cfg.openAPIVersion,
		"info":    cfg.info.toMap(),
		"paths": map[string]any{
			cfg.path: map[string]any{
				"get": map[string]any{
					"operationId": "getDocument",
					"responses": map[string]any{
						"200": map[string]any{
							"description": "OK",
							"content":     content,
						},
					},
				},
			},
		},
		"components": map[string]any{"schemas": schemas},
	}
	return document, nil
}
