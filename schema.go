package layerdoc

import (
	"fmt"
	"sort"
	"strings"
)

// FieldDescriptor describes one key of a serialized item chunk.
type FieldDescriptor struct {
	Path     string
	Type     string
	Layered  bool
	Geometry bool
	Quiet    bool
	Default  any
}

// Describe lists the chunk keys written for kind: "id", the declared
// properties in declaration order and, for layers, "itemProperties".
func Describe(kind string) ([]FieldDescriptor, error) {
	specs, err := TypeProperties(kind)
	if err != nil {
		return nil, err
	}
	fields := []FieldDescriptor{{Path: "id", Type: KindInt.String()}}
	for _, spec := range specs {
		fields = append(fields, FieldDescriptor{
			Path:     spec.Name,
			Type:     spec.Kind.String(),
			Layered:  spec.Layered,
			Geometry: spec.Geometry,
			Quiet:    spec.Quiet,
			Default:  plain(spec.Default),
		})
	}
	if KindOf(kind, TypeLayer) {
		fields = append(fields, FieldDescriptor{Path: "itemProperties", Type: KindMap.String()})
	}
	return fields, nil
}

// DescribeChunk infers descriptors from the keys of a chunk, nested maps
// flattened with dots. It is useful for inspecting keys preserved from
// documents written by other versions.
func DescribeChunk(chunk Chunk) []FieldDescriptor {
	fields := deriveFieldDescriptors(map[string]any(chunk), "")
	if fields == nil {
		return []FieldDescriptor{}
	}
	return fields
}

func deriveFieldDescriptors(value any, prefix string) []FieldDescriptor {
	if value == nil {
		if prefix == "" {
			return nil
		}
		return []FieldDescriptor{{Path: prefix, Type: "nil"}}
	}

	switch typed := value.(type) {
	case map[string]any:
		if len(typed) == 0 {
			if prefix == "" {
				return nil
			}
			return []FieldDescriptor{{Path: prefix, Type: "map[string]any"}}
		}
		keys := make([]string, 0, len(typed))
		for key := range typed {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		var fields []FieldDescriptor
		for _, key := range keys {
			fields = append(fields, deriveFieldDescriptors(typed[key], joinPath(prefix, key))...)
		}
		return fields
	case []any:
		elementType := "any"
		if len(typed) > 0 {
			elementType = typeName(typed[0])
		}
		return []FieldDescriptor{{Path: prefix, Type: "[]" + elementType}}
	default:
		if prefix == "" {
			return nil
		}
		return []FieldDescriptor{{Path: prefix, Type: typeName(typed)}}
	}
}

func typeName(value any) string {
	if value == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", value)
}

func joinPath(prefix, segment string) string {
	if prefix == "" {
		return segment
	}
	return strings.Join([]string{prefix, segment}, ".")
}
