package query

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/goliatone/go-layerdoc/internal/hydrate"
)

// ErrFunctionExists is returned when a name is registered twice.
var ErrFunctionExists = errors.New("query: function already registered")

// Function is a host function callable from expressions.
type Function func(args ...any) (any, error)

// FunctionRegistry maps case-insensitive names to functions.
type FunctionRegistry struct {
	mu        sync.RWMutex
	functions map[string]Function
	token     string // cache key segment, shared by clones until either side registers
}

var registrySeq atomic.Uint64

func nextRegistryToken() string {
	return "r" + strconv.FormatUint(registrySeq.Add(1), 10)
}

// NewFunctionRegistry returns an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{functions: make(map[string]Function), token: nextRegistryToken()}
}

// NewDrawingRegistry returns a registry holding the drawing helpers:
//
//	hasTag(tags, tag)      true when the tag list holds tag
//	distance(a, b)         euclidean distance between two points
//	within(p, x, y, w, h)  true when p lies inside the rectangle
func NewDrawingRegistry() *FunctionRegistry {
	r := NewFunctionRegistry()
	r.functions["hastag"] = hasTag
	r.functions["distance"] = distance
	r.functions["within"] = within
	r.token = "drawing"
	return r
}

func (r *FunctionRegistry) Register(name string, fn Function) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("query: function name must not be empty")
	}
	if fn == nil {
		return fmt.Errorf("query: function %q is nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.functions == nil {
		r.functions = make(map[string]Function)
	}
	key := strings.ToLower(name)
	if _, taken := r.functions[key]; taken {
		return fmt.Errorf("%w: %q", ErrFunctionExists, name)
	}
	r.functions[key] = fn
	r.token = nextRegistryToken()
	return nil
}

// scope is the cache key segment of the current function table.
func (r *FunctionRegistry) scope() string {
	if r == nil {
		return ""
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.token
}

// Clone copies the name table so later registrations stay private.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := NewFunctionRegistry()
	for key, fn := range r.functions {
		out.functions[key] = fn
	}
	out.token = r.token
	return out
}

// Call runs the function registered under name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	if r == nil {
		return nil, fmt.Errorf("query: no functions registered")
	}
	r.mu.RLock()
	fn, ok := r.functions[strings.ToLower(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("query: unknown function %q", name)
	}
	return fn(args...)
}

// Names lists registered names, lower cased and sorted.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	names := make([]string, 0, len(r.functions))
	for key := range r.functions {
		names = append(names, key)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

func arity(name string, args []any, want int) error {
	if len(args) != want {
		return fmt.Errorf("query: %s expects %d arguments, got %d", name, want, len(args))
	}
	return nil
}

func hasTag(args ...any) (any, error) {
	if err := arity("hasTag", args, 2); err != nil {
		return nil, err
	}
	if args[0] == nil {
		return false, nil
	}
	tags, err := hydrate.ToStrings(args[0])
	if err != nil {
		return nil, fmt.Errorf("query: hasTag: %w", err)
	}
	tag, err := hydrate.ToString(args[1])
	if err != nil {
		return nil, fmt.Errorf("query: hasTag: %w", err)
	}
	return slices.Contains(tags, tag), nil
}

func distance(args ...any) (any, error) {
	if err := arity("distance", args, 2); err != nil {
		return nil, err
	}
	ax, ay, err := point(args[0])
	if err != nil {
		return nil, fmt.Errorf("query: distance: %w", err)
	}
	bx, by, err := point(args[1])
	if err != nil {
		return nil, fmt.Errorf("query: distance: %w", err)
	}
	return math.Hypot(bx-ax, by-ay), nil
}

func within(args ...any) (any, error) {
	if err := arity("within", args, 5); err != nil {
		return nil, err
	}
	px, py, err := point(args[0])
	if err != nil {
		return nil, fmt.Errorf("query: within: %w", err)
	}
	var rect [4]float64
	for i := range rect {
		if rect[i], err = hydrate.ToFloat(args[i+1]); err != nil {
			return nil, fmt.Errorf("query: within: %w", err)
		}
	}
	x, y, w, h := rect[0], rect[1], rect[2], rect[3]
	return px >= x && px <= x+w && py >= y && py <= y+h, nil
}

// point reads {"x": .., "y": ..} maps and two element lists.
func point(value any) (float64, float64, error) {
	if list, ok := value.([]any); ok && len(list) == 2 {
		x, errX := hydrate.ToFloat(list[0])
		y, errY := hydrate.ToFloat(list[1])
		if err := errors.Join(errX, errY); err != nil {
			return 0, 0, err
		}
		return x, y, nil
	}
	m, err := hydrate.ToMap(value)
	if err != nil {
		return 0, 0, err
	}
	x, errX := hydrate.ToFloat(m["x"])
	y, errY := hydrate.ToFloat(m["y"])
	if err := errors.Join(errX, errY); err != nil {
		return 0, 0, err
	}
	return x, y, nil
}
