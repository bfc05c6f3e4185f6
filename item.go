package layerdoc

import (
	"fmt"

	"github.com/goliatone/go-layerdoc/layering"
	"github.com/rs/zerolog"
)

// Chunk is the flat serialized form of one item.
type Chunk map[string]any

// Resolver looks up an item by id while a document is read. It returns nil
// for unknown ids.
type Resolver func(id int) Entity

// Entity is anything a document can hold. Custom kinds embed *Item and
// create it with NewItem, passing themselves as owner:
//
//	p := &Person{}
//	p.Item = layerdoc.NewItem(p, "Person")
type Entity interface {
	Base() *Item
	Write(chunk Chunk)
	Read(chunk Chunk, resolve Resolver)
}

// PropertyObserver is implemented by owners that react to their own
// property changes.
type PropertyObserver interface {
	OnProperty(p *Property)
}

// Registrant is implemented by owners that react to joining a document.
type Registrant interface {
	OnRegistered(d *Document)
}

// Deregistrant is implemented by owners that react to leaving a document.
type Deregistrant interface {
	OnDeregistered(d *Document)
}

// Refresher is implemented by owners that rebuild derived state during
// UpdateAll.
type Refresher interface {
	OnUpdateAll()
}

// PropertyListener receives property changes of items it is attached to.
type PropertyListener interface {
	OnItemProperty(p *Property)
}

// Item is the base of every document entity.
type Item struct {
	id          int
	kind        string
	owner       Entity
	doc         *Document
	props       []*Property
	byName      map[string]*Property
	readChunk   Chunk
	listeners   []PropertyListener
	updatingAll bool
	hook        func(*Property)
	written     func(*Property) // after every effective write, notifying or not
	home        *Document
	logger      zerolog.Logger
}

// NewItem builds the base of an entity of the given kind. owner is the
// entity embedding the item; nil makes the item its own owner. It panics
// when kind was never registered.
func NewItem(owner Entity, kind string) *Item {
	specs, err := TypeProperties(kind)
	if err != nil {
		panic(err)
	}
	it := &Item{
		kind:   kind,
		byName: make(map[string]*Property, len(specs)),
		logger: zerolog.Nop(),
	}
	for _, spec := range specs {
		prop := newProperty(it, spec)
		it.props = append(it.props, prop)
		it.byName[spec.Name] = prop
	}
	if owner == nil {
		owner = it
	}
	it.owner = owner
	return it
}

// NewPlainItem returns an item of the built-in Item kind.
func NewPlainItem() *Item {
	return NewItem(nil, TypeItem)
}

// Base implements Entity.
func (it *Item) Base() *Item { return it }

// ID returns the document id, zero while unassigned.
func (it *Item) ID() int { return it.id }

// Kind returns the registered kind name.
func (it *Item) Kind() string { return it.kind }

// Owner returns the entity embedding it.
func (it *Item) Owner() Entity { return it.owner }

// Document returns the owning document, nil when not registered.
func (it *Item) Document() *Document { return it.doc }

// SetLogger sets the logger used for read and coercion warnings. Documents
// assign their own logger on registration.
func (it *Item) SetLogger(logger zerolog.Logger) { it.logger = logger }

// AddProperties declares extra properties on this instance only.
func (it *Item) AddProperties(specs ...PropertySpec) error {
	seen := make(map[string]struct{}, len(specs))
	for _, spec := range specs {
		if err := validateName(spec.Name); err != nil {
			return err
		}
		if _, dup := it.byName[spec.Name]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateProperty, spec.Name)
		}
		if _, dup := seen[spec.Name]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateProperty, spec.Name)
		}
		seen[spec.Name] = struct{}{}
	}
	for _, spec := range specs {
		prop := newProperty(it, spec)
		it.props = append(it.props, prop)
		it.byName[spec.Name] = prop
	}
	return nil
}

// Prop returns the named property.
func (it *Item) Prop(name string) (*Property, error) {
	prop, ok := it.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownProperty, it.kind, name)
	}
	return prop, nil
}

// MustProp is Prop that panics on unknown names.
func (it *Item) MustProp(name string) *Property {
	prop, err := it.Prop(name)
	if err != nil {
		panic(err)
	}
	return prop
}

// Props returns the properties in declaration order.
func (it *Item) Props() []*Property {
	return append([]*Property(nil), it.props...)
}

// PropNames returns the property names in declaration order.
func (it *Item) PropNames() []string {
	names := make([]string, len(it.props))
	for i, prop := range it.props {
		names[i] = prop.spec.Name
	}
	return names
}

// Get returns the effective value of the named property, nil for unknown
// names.
func (it *Item) Get(name string) any {
	prop, ok := it.byName[name]
	if !ok {
		return nil
	}
	return prop.Get()
}

// Set writes the named property.
func (it *Item) Set(name string, value any, opts ...SetOption) error {
	prop, err := it.Prop(name)
	if err != nil {
		return err
	}
	prop.Set(value, opts...)
	return nil
}

// Value returns the effective value of the named property as T, or the zero
// T when the property is unknown or holds another type.
func Value[T any](e Entity, name string) T {
	var zero T
	if e == nil {
		return zero
	}
	value, ok := e.Base().Get(name).(T)
	if !ok {
		return zero
	}
	return value
}

// AddPropertyListener attaches l to every property change of it.
func (it *Item) AddPropertyListener(l PropertyListener) {
	for _, existing := range it.listeners {
		if existing == l {
			return
		}
	}
	it.listeners = append(it.listeners, l)
}

// RemovePropertyListener detaches l.
func (it *Item) RemovePropertyListener(l PropertyListener) {
	for i, existing := range it.listeners {
		if existing == l {
			it.listeners = append(it.listeners[:i], it.listeners[i+1:]...)
			return
		}
	}
}

// undoDocument is the document whose stack records edits of it: the
// document it is registered in, or the document it is the base of.
func (it *Item) undoDocument() *Document {
	if it.doc != nil {
		return it.doc
	}
	return it.home
}

func (it *Item) onProperty(p *Property) {
	if it.hook != nil {
		it.hook(p)
	}
	if observer, ok := it.owner.(PropertyObserver); ok {
		observer.OnProperty(p)
	}
	for _, l := range append([]PropertyListener(nil), it.listeners...) {
		l.OnItemProperty(p)
	}
}

// Write stores the id and every unlayered property value into chunk, over
// the keys preserved from the last Read.
func (it *Item) Write(chunk Chunk) {
	own := map[string]any{"id": it.id}
	for _, prop := range it.props {
		own[prop.spec.Name] = prop.GetFor()
	}
	for key, value := range layering.MergeChunks(own, it.readChunk) {
		chunk[key] = value
	}
}

// Read loads the id and property values from chunk. It never fails: values
// that cannot be coerced fall back to the default and are logged, missing
// keys leave the property unset, and the whole chunk is kept so unknown
// keys survive the next Write.
func (it *Item) Read(chunk Chunk, _ Resolver) {
	it.readChunk = layering.Clone(chunk)
	if raw, ok := chunk["id"]; ok {
		if id, err := coerce(raw, KindInt); err == nil && id != nil {
			it.id = id.(int)
		} else {
			it.logger.Warn().Err(err).Str("kind", it.kind).Msg("unreadable item id")
		}
	}
	for _, prop := range it.props {
		raw, ok := chunk[prop.spec.Name]
		if !ok {
			prop.resetBase()
			continue
		}
		value, err := coerce(raw, prop.spec.Kind)
		if err != nil {
			it.logger.Warn().Err(err).
				Str("kind", it.kind).
				Int("item", it.id).
				Str("property", prop.spec.Name).
				Msg("falling back to default")
			prop.resetBase()
			continue
		}
		prop.setBase(value)
	}
}

// HasTags is the visibility predicate. A reverse tag carried by the item
// hides it unless that tag is also listed in tags. Otherwise an empty tags
// list shows everything and a non-empty one requires at least one match.
func (it *Item) HasTags(tags, reverseTags []string) bool {
	if len(tags) == 0 && len(reverseTags) == 0 {
		return true
	}
	own := it.Tags()
	allowed := toSet(tags)
	reverse := toSet(reverseTags)

	matched, reverseMatched := false, false
	for _, tag := range own {
		if _, ok := allowed[tag]; ok {
			matched = true
		}
		if _, ok := reverse[tag]; ok {
			reverseMatched = true
			if _, ok := allowed[tag]; !ok {
				return false
			}
		}
	}
	if reverseMatched {
		return true
	}
	if len(tags) == 0 {
		return true
	}
	return matched
}

// IsVisible applies HasTags with the tags of the active layers and the
// document reverse tags. Layers and unregistered items are always visible.
func (it *Item) IsVisible() bool {
	if it.doc == nil || KindOf(it.kind, TypeLayer) || len(it.doc.active) == 0 {
		return true
	}
	var tags []string
	for _, layer := range it.doc.active {
		tags = append(tags, layer.Tags()...)
	}
	return it.HasTags(normalizeTags(tags), it.doc.ReverseTags())
}

// UpdateAll is a read-only refresh: owners implementing Refresher rebuild
// their derived state. Items outside a document are skipped.
func (it *Item) UpdateAll() {
	if it.doc == nil {
		return
	}
	refresher, ok := it.owner.(Refresher)
	if !ok {
		return
	}
	it.updatingAll = true
	defer func() { it.updatingAll = false }()
	refresher.OnUpdateAll()
}

// IsUpdatingAll reports whether UpdateAll is running.
func (it *Item) IsUpdatingAll() bool { return it.updatingAll }

// onActiveLayersChanged notifies the layered properties whose effective
// value moved since before was captured.
func (it *Item) onActiveLayersChanged(before map[*Property]any) {
	for _, prop := range it.props {
		if !prop.spec.Layered {
			continue
		}
		if value, ok := before[prop]; ok {
			prop.refresh(value)
		}
	}
}

func (it *Item) layeredSnapshot(into map[*Property]any) {
	for _, prop := range it.props {
		if prop.spec.Layered {
			into[prop] = prop.Get()
		}
	}
}

// Clone copies the kind and unlayered state of it into a new entity without
// an id. A non-nil doc receives the copy.
func (it *Item) Clone(doc *Document) (Entity, error) {
	clone, _ := newEntity(it.kind)
	base := clone.Base()
	for _, prop := range it.props {
		target, err := base.Prop(prop.spec.Name)
		if err != nil {
			if err := base.AddProperties(prop.spec); err != nil {
				return nil, err
			}
			target = base.byName[prop.spec.Name]
		}
		if prop.set {
			target.setBase(prop.value)
		}
	}
	if it.readChunk != nil {
		base.readChunk = layering.Clone(it.readChunk)
		delete(base.readChunk, "id")
	}
	if doc != nil {
		if err := doc.AddItem(clone); err != nil {
			return nil, err
		}
	}
	return clone, nil
}

// String implements fmt.Stringer.
func (it *Item) String() string {
	return fmt.Sprintf("%s[%d]", it.kind, it.id)
}
