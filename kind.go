package layerdoc

import (
	"fmt"

	"github.com/goliatone/go-layerdoc/internal/hydrate"
	"github.com/goliatone/go-layerdoc/layering"
)

// Kind is the declared value type of a property.
type Kind int

const (
	KindAny Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindStrings
	KindPoint
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindStrings:
		return "[]string"
	case KindPoint:
		return "point"
	case KindMap:
		return "map"
	default:
		return "any"
	}
}

// Point is a 2D position, the value type of geometry properties.
type Point struct {
	X float64 `json:"x" cbor:"x"`
	Y float64 `json:"y" cbor:"y"`
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

var pointDecoder = hydrate.NewDecoder[Point]()

// coerce converts value to the Go type backing kind. nil is always
// accepted and means "no value".
func coerce(value any, kind Kind) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch kind {
	case KindString:
		return hydrate.ToString(value)
	case KindInt:
		return hydrate.ToInt(value)
	case KindFloat:
		return hydrate.ToFloat(value)
	case KindBool:
		return hydrate.ToBool(value)
	case KindStrings:
		return hydrate.ToStrings(value)
	case KindMap:
		m, err := hydrate.ToMap(value)
		if err != nil {
			return nil, err
		}
		return layering.Clone(m), nil
	case KindPoint:
		return toPoint(value)
	default:
		return layering.Clone(value), nil
	}
}

func toPoint(value any) (Point, error) {
	switch v := value.(type) {
	case Point:
		return v, nil
	case *Point:
		if v == nil {
			return Point{}, fmt.Errorf("%w: nil *Point", hydrate.ErrCoerce)
		}
		return *v, nil
	case []float64:
		if len(v) == 2 {
			return Point{X: v[0], Y: v[1]}, nil
		}
	case []any:
		if len(v) == 2 {
			x, errX := hydrate.ToFloat(v[0])
			y, errY := hydrate.ToFloat(v[1])
			if errX == nil && errY == nil {
				return Point{X: x, Y: y}, nil
			}
		}
	default:
		m, err := hydrate.ToMap(value)
		if err != nil {
			break
		}
		return pointDecoder.Decode(hydrate.Context{Property: "point"}, m)
	}
	return Point{}, fmt.Errorf("%w: %T to point", hydrate.ErrCoerce, value)
}

// plain converts a property value into the shape expression engines and
// external consumers expect: points become {"x", "y"} maps.
func plain(value any) any {
	switch v := value.(type) {
	case Point:
		return map[string]any{"x": v.X, "y": v.Y}
	default:
		return layering.Clone(value)
	}
}
