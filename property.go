package layerdoc

import (
	"github.com/goliatone/go-layerdoc/layering"
	"github.com/goliatone/go-layerdoc/undo"
	"github.com/rs/zerolog"
)

// Property is one named, typed value slot of an item. Layered properties
// resolve against the owning document's active layers before falling back
// to the base value and then the default.
type Property struct {
	spec      PropertySpec
	item      *Item
	value     any
	set       bool
	notifying bool
}

func newProperty(item *Item, spec PropertySpec) *Property {
	return &Property{spec: spec, item: item}
}

// Name returns the property name.
func (p *Property) Name() string { return p.spec.Name }

// Kind returns the declared value kind.
func (p *Property) Kind() Kind { return p.spec.Kind }

// Spec returns the declaration of p.
func (p *Property) Spec() PropertySpec { return p.spec }

// Item returns the owning item.
func (p *Property) Item() *Item { return p.item }

// IsLayered reports whether p may hold per-layer overrides.
func (p *Property) IsLayered() bool { return p.spec.Layered }

// IsSet reports whether a base value was assigned.
func (p *Property) IsSet() bool { return p.set }

// Default returns a copy of the declared default.
func (p *Property) Default() any { return layering.Clone(p.spec.Default) }

// Get returns the effective value: the override of the most recently
// activated layer that has one, else the base value, else the default.
func (p *Property) Get() any {
	if value, ok := p.activeOverride(); ok {
		return value
	}
	return p.baseValue()
}

// GetFor resolves against an explicit layer list. Without layers it returns
// the base value. With layers it returns the first override found among
// them, in the given order, or nil when none of them has one.
func (p *Property) GetFor(layers ...*Layer) any {
	if len(layers) == 0 {
		return p.baseValue()
	}
	if !p.spec.Layered {
		return nil
	}
	for _, layer := range layers {
		if layer == nil {
			continue
		}
		if value, ok := layer.ItemProperty(p.item.id, p.spec.Name); ok {
			return value
		}
	}
	return nil
}

// IsUsingLayer reports whether the effective value comes from an active
// layer override.
func (p *Property) IsUsingLayer() bool {
	_, ok := p.activeOverride()
	return ok
}

func (p *Property) activeOverride() (any, bool) {
	if !p.spec.Layered || p.item == nil || p.item.doc == nil || p.item.id == 0 {
		return nil, false
	}
	for _, layer := range p.item.doc.active {
		if value, ok := layer.ItemProperty(p.item.id, p.spec.Name); ok {
			return value, true
		}
	}
	return nil, false
}

func (p *Property) baseValue() any {
	if p.set {
		return layering.Clone(p.value)
	}
	return layering.Clone(p.spec.Default)
}

func (p *Property) setBase(value any) {
	p.value = layering.Clone(value)
	p.set = true
}

func (p *Property) resetBase() {
	p.value = nil
	p.set = false
}

// SetOption tunes a Set or Reset call.
type SetOption func(*setConfig)

type setConfig struct {
	notify bool
	undo   bool
	undoID int
	force  bool
}

func applySetOptions(opts []SetOption) setConfig {
	cfg := setConfig{notify: true, undoID: undo.NoID}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// NoNotify suppresses listener notification.
func NoNotify() SetOption {
	return func(cfg *setConfig) { cfg.notify = false }
}

// WithUndo records the change on the document undo stack as its own step.
func WithUndo() SetOption {
	return func(cfg *setConfig) { cfg.undo = true }
}

// WithUndoID records the change on the undo stack, merging it with the
// previous step when that step carries the same id.
func WithUndoID(id int) SetOption {
	return func(cfg *setConfig) {
		cfg.undo = true
		cfg.undoID = id
	}
}

// Force writes and notifies even when the value did not change.
func Force() SetOption {
	return func(cfg *setConfig) { cfg.force = true }
}

// Set coerces value to the declared kind and stores it. Layered properties
// of registered items write into the most recently activated layer; geometry
// properties write the base value instead when that layer does not store
// geometry. Values that cannot be coerced are rejected and logged. Set is a
// no-op while p is notifying its own listeners.
func (p *Property) Set(value any, opts ...SetOption) {
	if p.notifying {
		return
	}
	cfg := applySetOptions(opts)
	coerced, err := coerce(value, p.spec.Kind)
	if err != nil {
		p.logger().Warn().Err(err).
			Str("property", p.spec.Name).
			Int("item", p.item.id).
			Msg("rejected property value")
		return
	}

	before := p.Get()
	target, gated := p.writeTarget()
	change := propertyChange{prop: p, value: coerced, valueSet: true}

	if target != nil {
		was, wasSet := target.ItemProperty(p.item.id, p.spec.Name)
		if wasSet && layering.Equal(was, coerced) && !cfg.force {
			return
		}
		change.layer = target
		change.was, change.wasSet = was, wasSet
		target.setOverride(p.item.id, p.spec.Name, coerced)
		p.record(cfg, false, &change)
	} else {
		stale, hasStale := any(nil), false
		if gated != nil {
			stale, hasStale = gated.ItemProperty(p.item.id, p.spec.Name)
		}
		if layering.Equal(p.baseValue(), coerced) && p.set && !cfg.force && !hasStale {
			return
		}
		change.was, change.wasSet = p.value, p.set
		changes := []*propertyChange{&change}
		if hasStale {
			changes = append(changes, &propertyChange{layer: gated, prop: p, was: stale, wasSet: true})
			gated.removeOverride(p.item.id, p.spec.Name)
		}
		p.setBase(coerced)
		p.record(cfg, false, changes...)
	}

	p.wrote(before)
	if cfg.notify && (cfg.force || !layering.Equal(before, p.Get())) {
		p.notify()
	}
}

// Reset removes the value at the current write target: the override of
// the most recently activated layer for layered properties, the base value
// otherwise.
func (p *Property) Reset(opts ...SetOption) {
	if p.notifying {
		return
	}
	cfg := applySetOptions(opts)
	before := p.Get()

	if target := p.resetTarget(); target != nil {
		was, ok := target.ItemProperty(p.item.id, p.spec.Name)
		if !ok {
			return
		}
		target.removeOverride(p.item.id, p.spec.Name)
		p.record(cfg, true, &propertyChange{layer: target, prop: p, was: was, wasSet: true})
	} else {
		if !p.set {
			return
		}
		was := p.value
		p.resetBase()
		p.record(cfg, true, &propertyChange{prop: p, was: was, wasSet: true})
	}

	p.wrote(before)
	if cfg.notify && (cfg.force || !layering.Equal(before, p.Get())) {
		p.notify()
	}
}

// writeTarget picks the layer a Set writes to. gated is the top layer when
// it exists but refuses geometry.
func (p *Property) writeTarget() (target, gated *Layer) {
	top := p.topLayer()
	if top == nil {
		return nil, nil
	}
	if p.spec.Geometry && !top.StoreGeometry() {
		return nil, top
	}
	return top, nil
}

func (p *Property) resetTarget() *Layer {
	return p.topLayer()
}

func (p *Property) topLayer() *Layer {
	if !p.spec.Layered || p.item == nil || p.item.doc == nil || p.item.id == 0 {
		return nil
	}
	if len(p.item.doc.active) == 0 {
		return nil
	}
	return p.item.doc.active[0]
}

func (p *Property) record(cfg setConfig, reset bool, changes ...*propertyChange) {
	if !cfg.undo {
		return
	}
	if doc := p.item.undoDocument(); doc != nil {
		doc.pushPropertyChanges(reset, cfg.undoID, changes)
	}
}

// notify runs the owner callbacks and listeners of p. Nested notifications
// of p are dropped.
func (p *Property) notify() {
	if p.notifying {
		return
	}
	p.notifying = true
	defer func() { p.notifying = false }()
	p.item.onProperty(p)
}

// wrote runs the owner write callback when the effective value moved away
// from before. It runs for silent writes too.
func (p *Property) wrote(before any) {
	if p.item.written != nil && !layering.Equal(before, p.Get()) {
		p.item.written(p)
	}
}

// refresh notifies when the effective value moved away from before.
func (p *Property) refresh(before any) {
	if !layering.Equal(before, p.Get()) {
		p.notify()
	}
}

func (p *Property) logger() *zerolog.Logger {
	if p.item == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return &p.item.logger
}
