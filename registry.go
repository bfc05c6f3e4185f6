package layerdoc

import (
	"fmt"
	"sort"
	"sync"
)

// Built-in item kinds.
const (
	TypeItem     = "Item"
	TypeLayer    = "Layer"
	TypeDocument = "Document"
)

// PropertySpec declares one property of an item kind.
type PropertySpec struct {
	Name    string
	Kind    Kind
	Default any
	// Layered properties may hold per-layer overrides.
	Layered bool
	// Quiet properties do not notify the owning document when they change.
	Quiet bool
	// Geometry marks layered properties that honor a layer's StoreGeometry
	// flag.
	Geometry bool
}

// TypeSpec registers an item kind. Properties are appended to the ones
// inherited from Parent. New builds an empty instance when a document is
// read; kinds without a constructor are read back as plain items.
type TypeSpec struct {
	Kind       string
	Parent     string
	Properties []PropertySpec
	New        func() Entity
}

type typeEntry struct {
	spec  TypeSpec
	props []PropertySpec
}

type typeTable struct {
	mu      sync.RWMutex
	entries map[string]*typeEntry
}

var registeredTypes = &typeTable{entries: map[string]*typeEntry{}}

func init() {
	MustRegisterType(TypeSpec{
		Kind: TypeItem,
		Properties: []PropertySpec{
			{Name: "tags", Kind: KindStrings, Default: []string{}},
		},
		New: func() Entity { return NewPlainItem() },
	})
	MustRegisterType(TypeSpec{
		Kind:   TypeLayer,
		Parent: TypeItem,
		Properties: []PropertySpec{
			{Name: "order", Kind: KindInt, Default: -1},
			{Name: "name", Kind: KindString},
			{Name: "description", Kind: KindString, Default: ""},
			{Name: "active", Kind: KindBool, Default: false},
			{Name: "storeGeometry", Kind: KindBool, Default: true},
		},
		New: func() Entity { return NewLayer() },
	})
	MustRegisterType(TypeSpec{
		Kind:   TypeDocument,
		Parent: TypeItem,
		Properties: []PropertySpec{
			{Name: "lastItemId", Kind: KindInt, Default: 0, Quiet: true},
			{Name: "uuid", Kind: KindString},
			{Name: "reverseTags", Kind: KindStrings, Default: []string{}},
		},
	})
}

// RegisterType adds an item kind to the registration table.
func RegisterType(spec TypeSpec) error {
	if spec.Kind == "" {
		return fmt.Errorf("%w: empty kind", ErrUnknownKind)
	}
	registeredTypes.mu.Lock()
	defer registeredTypes.mu.Unlock()

	if _, exists := registeredTypes.entries[spec.Kind]; exists {
		return fmt.Errorf("%w: %s", ErrKindRegistered, spec.Kind)
	}
	var inherited []PropertySpec
	if spec.Parent != "" {
		parent, ok := registeredTypes.entries[spec.Parent]
		if !ok {
			return fmt.Errorf("%w: parent %s of %s", ErrUnknownKind, spec.Parent, spec.Kind)
		}
		inherited = parent.props
	}
	props := append(append([]PropertySpec(nil), inherited...), spec.Properties...)
	if err := validateSpecs(props); err != nil {
		return fmt.Errorf("register %s: %w", spec.Kind, err)
	}
	registeredTypes.entries[spec.Kind] = &typeEntry{spec: spec, props: props}
	return nil
}

// MustRegisterType is RegisterType that panics on error. It suits package
// init functions of item kinds.
func MustRegisterType(spec TypeSpec) {
	if err := RegisterType(spec); err != nil {
		panic(err)
	}
}

// TypeProperties returns the full property list of kind, inherited ones
// first.
func TypeProperties(kind string) ([]PropertySpec, error) {
	entry, ok := lookupType(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return append([]PropertySpec(nil), entry.props...), nil
}

// KindOf reports whether kind equals ancestor or inherits from it.
func KindOf(kind, ancestor string) bool {
	for kind != "" {
		if kind == ancestor {
			return true
		}
		entry, ok := lookupType(kind)
		if !ok {
			return false
		}
		kind = entry.spec.Parent
	}
	return false
}

// Kinds lists the registered kinds in name order.
func Kinds() []string {
	registeredTypes.mu.RLock()
	defer registeredTypes.mu.RUnlock()
	out := make([]string, 0, len(registeredTypes.entries))
	for kind := range registeredTypes.entries {
		out = append(out, kind)
	}
	sort.Strings(out)
	return out
}

func lookupType(kind string) (*typeEntry, bool) {
	registeredTypes.mu.RLock()
	defer registeredTypes.mu.RUnlock()
	entry, ok := registeredTypes.entries[kind]
	return entry, ok
}

// newEntity builds an empty instance of kind for reading. Kinds without a
// constructor, and unknown kinds, fall back to a plain item.
func newEntity(kind string) (Entity, bool) {
	entry, ok := lookupType(kind)
	if !ok || entry.spec.New == nil {
		return NewPlainItem(), false
	}
	return entry.spec.New(), true
}

func validateSpecs(specs []PropertySpec) error {
	seen := make(map[string]struct{}, len(specs))
	for _, spec := range specs {
		if err := validateName(spec.Name); err != nil {
			return err
		}
		if _, dup := seen[spec.Name]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateProperty, spec.Name)
		}
		seen[spec.Name] = struct{}{}
	}
	return nil
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrUnknownProperty)
	}
	if _, reserved := reservedNames[name]; reserved {
		return fmt.Errorf("%w: %s", ErrReservedProperty, name)
	}
	return nil
}
