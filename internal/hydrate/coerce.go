package hydrate

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrCoerce reports a value that cannot be converted to the requested type.
var ErrCoerce = errors.New("hydrate: cannot coerce value")

func coerceError(value any, target string) error {
	return fmt.Errorf("%w: %T to %s", ErrCoerce, value, target)
}

// ToInt converts numeric values, numeric strings and json.Number to int.
// Floats are accepted only when they carry no fraction.
func ToInt(value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int8:
		return int(v), nil
	case int16:
		return int(v), nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case uint:
		if uint64(v) > math.MaxInt {
			return 0, coerceError(value, "int")
		}
		return int(v), nil
	case uint8:
		return int(v), nil
	case uint16:
		return int(v), nil
	case uint32:
		return int(v), nil
	case uint64:
		if v > math.MaxInt {
			return 0, coerceError(value, "int")
		}
		return int(v), nil
	case float32:
		return floatToInt(float64(v), value)
	case float64:
		return floatToInt(v, value)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return int(i), nil
		}
		f, err := v.Float64()
		if err != nil {
			return 0, coerceError(value, "int")
		}
		return floatToInt(f, value)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, coerceError(value, "int")
		}
		return i, nil
	default:
		return 0, coerceError(value, "int")
	}
}

func floatToInt(f float64, original any) (int, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, coerceError(original, "int")
	}
	// -math.MinInt is a power of two, so the upper bound is exact.
	if f < math.MinInt || f >= -math.MinInt {
		return 0, coerceError(original, "int")
	}
	return int(f), nil
}

// ToFloat converts numeric values, numeric strings and json.Number to float64.
func ToFloat(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, coerceError(value, "float")
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, coerceError(value, "float")
		}
		return f, nil
	default:
		i, err := ToInt(value)
		if err != nil {
			return 0, coerceError(value, "float")
		}
		return float64(i), nil
	}
}

// ToBool converts booleans, boolean strings and numbers (non-zero is true).
func ToBool(value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, coerceError(value, "bool")
		}
		return b, nil
	default:
		f, err := ToFloat(value)
		if err != nil {
			return false, coerceError(value, "bool")
		}
		return f != 0, nil
	}
}

// ToString converts strings, byte slices, numbers and booleans.
func ToString(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case json.Number:
		return v.String(), nil
	case bool:
		return strconv.FormatBool(v), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		i, err := ToInt(value)
		if err != nil {
			return "", coerceError(value, "string")
		}
		return strconv.Itoa(i), nil
	}
}

// ToStrings converts a list of string-like values. A single string becomes a
// one-element list and nil becomes an empty list.
func ToStrings(value any) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return []string{}, nil
	case []string:
		return append([]string{}, v...), nil
	case string:
		return []string{v}, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, err := ToString(item)
			if err != nil {
				return nil, coerceError(value, "[]string")
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, coerceError(value, "[]string")
	}
}

// ToMap converts string-keyed maps, including the map[any]any shape produced
// by generic CBOR decoding.
func ToMap(value any) (map[string]any, error) {
	switch v := value.(type) {
	case map[string]any:
		return v, nil
	case map[string]string:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = item
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			name, err := ToString(key)
			if err != nil {
				return nil, coerceError(value, "map[string]any")
			}
			out[name] = item
		}
		return out, nil
	default:
		return nil, coerceError(value, "map[string]any")
	}
}
