package openapi

import (
	"encoding/json"
	"testing"

	"github.com/goliatone/go-layerdoc"
)

func init() {
	layerdoc.MustRegisterType(layerdoc.TypeSpec{
		Kind:   "Shape",
		Parent: layerdoc.TypeItem,
		Properties: []layerdoc.PropertySpec{
			{Name: "label", Kind: layerdoc.KindString, Default: ""},
			{Name: "pos", Kind: layerdoc.KindPoint, Layered: true, Geometry: true},
			{Name: "width", Kind: layerdoc.KindFloat, Default: 1.0, Layered: true},
		},
	})
}

func TestSchemaForMarksLayeredProperties(t *testing.T) {
	schema, err := SchemaFor("Shape")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		t.Fatalf("expected properties map, got %T", schema["properties"])
	}

	pos := props["pos"].(map[string]any)
	if pos["type"] != "object" {
		t.Fatalf("expected point to be an object, got %v", pos["type"])
	}
	if pos["x-layered"] != true || pos["x-geometry"] != true {
		t.Fatalf("expected layered geometry extensions, got %v", pos)
	}

	width := props["width"].(map[string]any)
	if width["type"] != "number" || width["default"] != 1.0 {
		t.Fatalf("expected number with default 1, got %v", width)
	}
	if _, geometry := width["x-geometry"]; geometry {
		t.Fatalf("width is not geometry")
	}

	label := props["label"].(map[string]any)
	if _, layered := label["x-layered"]; layered {
		t.Fatalf("label is not layered")
	}

	tags := props["tags"].(map[string]any)
	if tags["type"] != "array" {
		t.Fatalf("expected inherited tags array, got %v", tags)
	}
	if id := props["id"].(map[string]any); id["type"] != "integer" {
		t.Fatalf("expected integer id, got %v", id)
	}
}

func TestSchemaForLayerIncludesOverrides(t *testing.T) {
	schema, err := SchemaFor(layerdoc.TypeLayer)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	props := schema["properties"].(map[string]any)
	if _, ok := props["itemProperties"]; !ok {
		t.Fatalf("expected itemProperties in layer schema")
	}
	order := props["order"].(map[string]any)
	if order["default"] != -1 {
		t.Fatalf("expected order default -1, got %v", order["default"])
	}
}

func TestSchemaForUnknownKind(t *testing.T) {
	if _, err := SchemaFor("Nope"); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestGenerateDocument(t *testing.T) {
	doc, err := Generate(
		[]string{"Shape", layerdoc.TypeLayer, "Shape"},
		WithOpenAPIVersion("3.1.0"),
		WithInfo(Info{Title: "Drawings", Description: "drawing chunks"}),
		WithPath("/drawings/{id}"),
		WithMediaTypes(MediaJSON, MediaCBOR),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc["openapi"] != "3.1.0" {
		t.Fatalf("expected openapi 3.1.0, got %v", doc["openapi"])
	}
	info := doc["info"].(map[string]any)
	if info["title"] != "Drawings" || info["version"] != "1.0.0" || info["description"] != "drawing chunks" {
		t.Fatalf("unexpected info %v", info)
	}
	paths := doc["paths"].(map[string]any)
	path, ok := paths["/drawings/{id}"].(map[string]any)
	if !ok {
		t.Fatalf("expected configured path, got %v", paths)
	}
	response := path["get"].(map[string]any)["responses"].(map[string]any)["200"].(map[string]any)
	content := response["content"].(map[string]any)
	if len(content) != 2 || content[MediaCBOR] == nil {
		t.Fatalf("expected json and cbor content, got %v", content)
	}

	schemas := doc["components"].(map[string]any)["schemas"].(map[string]any)
	for _, name := range []string{"Shape", layerdoc.TypeLayer, layerdoc.TypeDocument} {
		if _, ok := schemas[name]; !ok {
			t.Fatalf("expected component %s", name)
		}
	}
	root := schemas[layerdoc.TypeDocument].(map[string]any)
	items := root["properties"].(map[string]any)["items"].(map[string]any)
	refs := items["items"].(map[string]any)["oneOf"].([]any)
	if len(refs) != 2 {
		t.Fatalf("expected two item refs after dedupe, got %d", len(refs))
	}

	if _, err := json.Marshal(doc); err != nil {
		t.Fatalf("expected document to marshal: %v", err)
	}
}

func TestGenerateFailsOnUnknownKind(t *testing.T) {
	if _, err := Generate([]string{"Missing"}); err == nil {
		t.Fatalf("expected error")
	}
}
