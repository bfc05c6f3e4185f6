package layerdoc

import (
	"cmp"
	"math"
	"strconv"

	"github.com/goliatone/go-layerdoc/layering"
)

// unorderedLayer is the sort key of layers whose order was never set.
const unorderedLayer = math.MaxInt - 1

// Layer is an item holding per-item property overrides. While active, the
// overrides shadow the base values of layered properties.
type Layer struct {
	*Item
	overrides map[int]map[string]any
	seq       int
}

// LayerOption configures a new layer.
type LayerOption func(*Layer)

// LayerName sets the layer name.
func LayerName(name string) LayerOption {
	return func(l *Layer) { l.MustProp("name").setBase(name) }
}

// LayerActive sets the initial active state.
func LayerActive(active bool) LayerOption {
	return func(l *Layer) { l.MustProp("active").setBase(active) }
}

// LayerOrder sets an explicit order.
func LayerOrder(order int) LayerOption {
	return func(l *Layer) { l.MustProp("order").setBase(order) }
}

// LayerTags sets the tags applied to items created while the layer is
// active.
func LayerTags(tags ...string) LayerOption {
	return func(l *Layer) { l.MustProp("tags").setBase(normalizeTags(tags)) }
}

// LayerStoreGeometry sets whether geometry properties write into the layer.
func LayerStoreGeometry(store bool) LayerOption {
	return func(l *Layer) { l.MustProp("storeGeometry").setBase(store) }
}

// LayerDescription sets the description.
func LayerDescription(description string) LayerOption {
	return func(l *Layer) { l.MustProp("description").setBase(description) }
}

// NewLayer builds an unregistered layer.
func NewLayer(opts ...LayerOption) *Layer {
	l := &Layer{overrides: map[int]map[string]any{}}
	l.Item = NewItem(l, TypeLayer)
	l.Item.written = l.onWrite
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Name returns the layer name, empty when unset.
func (l *Layer) Name() string {
	name, _ := l.MustProp("name").Get().(string)
	return name
}

// SetName renames the layer.
func (l *Layer) SetName(name string, opts ...SetOption) {
	l.MustProp("name").Set(name, opts...)
}

// Description returns the layer description.
func (l *Layer) Description() string {
	description, _ := l.MustProp("description").Get().(string)
	return description
}

// SetDescription sets the description.
func (l *Layer) SetDescription(description string, opts ...SetOption) {
	l.MustProp("description").Set(description, opts...)
}

// Order returns the layer order, -1 when never ordered.
func (l *Layer) Order() int {
	order, ok := l.MustProp("order").Get().(int)
	if !ok {
		return -1
	}
	return order
}

// SetOrder sets the order.
func (l *Layer) SetOrder(order int, opts ...SetOption) {
	l.MustProp("order").Set(order, opts...)
}

func (l *Layer) setOrder(order int) {
	l.MustProp("order").setBase(order)
}

// Active reports whether the layer is switched on.
func (l *Layer) Active() bool {
	active, _ := l.MustProp("active").Get().(bool)
	return active
}

// SetActive switches the layer on or off.
func (l *Layer) SetActive(active bool, opts ...SetOption) {
	l.MustProp("active").Set(active, opts...)
}

// StoreGeometry reports whether geometry properties write into the layer.
func (l *Layer) StoreGeometry() bool {
	store, ok := l.MustProp("storeGeometry").Get().(bool)
	if !ok {
		return true
	}
	return store
}

// SetStoreGeometry sets the geometry flag. Turning it off deletes the
// geometry overrides the layer holds.
func (l *Layer) SetStoreGeometry(store bool, opts ...SetOption) {
	l.MustProp("storeGeometry").Set(store, opts...)
}

// ActivationSeq is the activation sequence number, zero while inactive.
// Higher numbers were activated later.
func (l *Layer) ActivationSeq() int { return l.seq }

// onWrite keeps the document in step with activation and geometry flags,
// whether or not the write notified.
func (l *Layer) onWrite(p *Property) {
	switch p.spec.Name {
	case "active":
		if l.doc != nil {
			l.doc.onLayerActivation(l)
		}
	case "storeGeometry":
		if !l.StoreGeometry() {
			l.dropGeometry()
		}
	}
}

func (l *Layer) dropGeometry() {
	doc := l.doc
	if doc == nil {
		return
	}
	doc.refreshLayered(func() {
		for itemID, bucket := range l.overrides {
			e, ok := doc.registry[itemID]
			if !ok {
				continue
			}
			for name := range bucket {
				if prop, ok := e.Base().byName[name]; ok && prop.spec.Geometry {
					l.removeOverride(itemID, name)
				}
			}
		}
	})
}

// ItemProperty returns a copy of the override of (itemID, name).
func (l *Layer) ItemProperty(itemID int, name string) (any, bool) {
	bucket, ok := l.overrides[itemID]
	if !ok {
		return nil, false
	}
	value, ok := bucket[name]
	if !ok {
		return nil, false
	}
	return layering.Clone(value), true
}

// HasItemProperties reports whether the layer overrides anything of itemID.
func (l *Layer) HasItemProperties(itemID int) bool {
	return len(l.overrides[itemID]) > 0
}

// SetItemProperty stores an override. Values for properties of registered
// items are coerced to the property kind.
func (l *Layer) SetItemProperty(itemID int, name string, value any) error {
	prop := l.lookup(itemID, name)
	if prop != nil {
		coerced, err := coerce(value, prop.spec.Kind)
		if err != nil {
			return err
		}
		value = coerced
	}
	l.mutate(prop, func() { l.setOverride(itemID, name, value) })
	return nil
}

// ResetItemProperty removes the override of p.
func (l *Layer) ResetItemProperty(p *Property) bool {
	return l.RemoveItemProperty(p.item.id, p.spec.Name)
}

// RemoveItemProperty removes the override of (itemID, name).
func (l *Layer) RemoveItemProperty(itemID int, name string) bool {
	if _, ok := l.overrides[itemID][name]; !ok {
		return false
	}
	l.mutate(l.lookup(itemID, name), func() { l.removeOverride(itemID, name) })
	return true
}

// ResetAllItemProperties drops every override.
func (l *Layer) ResetAllItemProperties() {
	drop := func() { l.overrides = map[int]map[string]any{} }
	if l.doc == nil {
		drop()
		return
	}
	l.doc.refreshLayered(drop)
}

// ItemProperties returns a deep copy of the override map.
func (l *Layer) ItemProperties() map[int]map[string]any {
	return layering.Clone(l.overrides)
}

// OverrideCount returns the number of stored overrides.
func (l *Layer) OverrideCount() int {
	count := 0
	for _, bucket := range l.overrides {
		count += len(bucket)
	}
	return count
}

func (l *Layer) lookup(itemID int, name string) *Property {
	if l.doc == nil {
		return nil
	}
	e, ok := l.doc.registry[itemID]
	if !ok {
		return nil
	}
	return e.Base().byName[name]
}

func (l *Layer) mutate(prop *Property, fn func()) {
	if prop == nil {
		fn()
		return
	}
	before := prop.Get()
	fn()
	prop.refresh(before)
}

func (l *Layer) setOverride(itemID int, name string, value any) {
	bucket, ok := l.overrides[itemID]
	if !ok {
		bucket = map[string]any{}
		l.overrides[itemID] = bucket
	}
	bucket[name] = layering.Clone(value)
}

func (l *Layer) removeOverride(itemID int, name string) {
	bucket, ok := l.overrides[itemID]
	if !ok {
		return
	}
	delete(bucket, name)
	if len(bucket) == 0 {
		delete(l.overrides, itemID)
	}
}

// takeItem removes and returns the bucket of itemID.
func (l *Layer) takeItem(itemID int) map[string]any {
	bucket, ok := l.overrides[itemID]
	if !ok {
		return nil
	}
	delete(l.overrides, itemID)
	return bucket
}

func (l *Layer) restoreItem(itemID int, bucket map[string]any) {
	for name, value := range bucket {
		l.setOverride(itemID, name, value)
	}
}

// Write adds the override map under "itemProperties".
func (l *Layer) Write(chunk Chunk) {
	l.Item.Write(chunk)
	overrides := make(map[string]any, len(l.overrides))
	for itemID, bucket := range l.overrides {
		overrides[strconv.Itoa(itemID)] = layering.Clone(bucket)
	}
	chunk["itemProperties"] = overrides
}

// Read loads the layer and its override map. Malformed override entries are
// logged and skipped.
func (l *Layer) Read(chunk Chunk, resolve Resolver) {
	l.Item.Read(chunk, resolve)
	delete(l.readChunk, "itemProperties")
	l.overrides = map[int]map[string]any{}

	raw, ok := chunk["itemProperties"]
	if !ok || raw == nil {
		return
	}
	overrides, err := coerce(raw, KindMap)
	if err != nil {
		l.logger.Warn().Err(err).Int("layer", l.id).Msg("unreadable layer overrides")
		return
	}
	for key, rawBucket := range overrides.(map[string]any) {
		itemID, err := strconv.Atoi(key)
		if err != nil {
			l.logger.Warn().Str("key", key).Int("layer", l.id).Msg("skipping override bucket")
			continue
		}
		bucket, err := coerce(rawBucket, KindMap)
		if err != nil || bucket == nil {
			l.logger.Warn().Err(err).Int("item", itemID).Int("layer", l.id).Msg("skipping override bucket")
			continue
		}
		for name, value := range bucket.(map[string]any) {
			l.setOverride(itemID, name, value)
		}
	}
}

// Clone copies the layer, overrides included, under the name "<name> Copy".
// A non-nil doc receives the copy.
func (l *Layer) Clone(doc *Document) (*Layer, error) {
	e, err := l.Item.Clone(nil)
	if err != nil {
		return nil, err
	}
	clone, ok := e.(*Layer)
	if !ok {
		clone = NewLayer()
	}
	clone.overrides = layering.Clone(l.overrides)
	clone.MustProp("name").setBase(l.Name() + " Copy")
	clone.MustProp("order").resetBase()
	if doc != nil {
		if err := doc.AddItem(clone); err != nil {
			return nil, err
		}
	}
	return clone, nil
}

func (l *Layer) sortKey() int {
	order := l.Order()
	if order == -1 {
		return unorderedLayer
	}
	return order
}

// CompareLayers orders layers by order, unordered ones last, then by name
// with unnamed layers first.
func CompareLayers(a, b *Layer) int {
	if c := cmp.Compare(a.sortKey(), b.sortKey()); c != 0 {
		return c
	}
	aName, aOK := a.MustProp("name").Get().(string)
	bName, bOK := b.MustProp("name").Get().(string)
	switch {
	case !aOK && !bOK:
		return 0
	case !aOK:
		return -1
	case !bOK:
		return 1
	}
	return cmp.Compare(aName, bName)
}
