package layerdoc

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/goliatone/go-layerdoc/pkg/activity"
	"github.com/goliatone/go-layerdoc/query"
	"github.com/goliatone/go-layerdoc/undo"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Document owns the items of a drawing, its layers and its undo stack.
type Document struct {
	*Item
	cfg          documentConfig
	stack        *undo.Stack
	emitter      *activity.Emitter
	evaluator    query.Evaluator
	registry     map[int]Entity
	layers       []*Layer
	active       []*Layer
	nextSeq      int
	batchDepth   int
	layersDirty  bool
	listeners    []listenerEntry
	nextListener ListenerID
	loading      bool
	deiniting    bool
	guard        Guard
	pruned       []StaleOverride
}

// NewDocument builds an empty document.
func NewDocument(opts ...Option) *Document {
	cfg := applyOptions(opts)
	d := &Document{
		cfg:      cfg,
		registry: map[int]Entity{},
	}
	d.Item = NewItem(nil, TypeDocument)
	d.Item.hook = d.onOwnProperty
	d.Item.home = d
	d.Item.logger = cfg.logger

	id := cfg.id
	if id == "" {
		id = uuid.NewString()
	}
	d.MustProp("uuid").setBase(id)

	d.emitter = cfg.emitter()
	d.stack = cfg.stack
	if d.stack == nil {
		d.stack = undo.NewStack(
			undo.WithLogger(cfg.logger),
			undo.WithEmitter(d.emitter),
			undo.WithDocumentID(id),
		)
	}
	d.evaluator = cfg.queryEvaluator()
	return d
}

// UUID returns the document identity.
func (d *Document) UUID() string {
	id, _ := d.MustProp("uuid").Get().(string)
	return id
}

// UndoStack returns the document undo stack.
func (d *Document) UndoStack() *undo.Stack { return d.stack }

// Logger returns the document logger.
func (d *Document) Logger() zerolog.Logger { return d.cfg.logger }

// LastItemID returns the highest id handed out so far.
func (d *Document) LastItemID() int {
	last, _ := d.MustProp("lastItemId").Get().(int)
	return last
}

func (d *Document) setLastItemID(id int) {
	d.MustProp("lastItemId").setBase(id)
}

// ReverseTags returns the document-wide veto tags used by Find and
// IsVisible.
func (d *Document) ReverseTags() []string {
	tags, _ := d.MustProp("reverseTags").Get().([]string)
	return append([]string{}, tags...)
}

// SetReverseTags replaces the veto tags.
func (d *Document) SetReverseTags(tags []string, opts ...SetOption) {
	d.MustProp("reverseTags").Set(normalizeTags(tags), opts...)
}

// AddListener registers l for document events.
func (d *Document) AddListener(l Listener) ListenerID {
	d.nextListener++
	d.listeners = append(d.listeners, listenerEntry{id: d.nextListener, listener: l})
	return d.nextListener
}

// RemoveListener unregisters the listener behind id.
func (d *Document) RemoveListener(id ListenerID) bool {
	for i, entry := range d.listeners {
		if entry.id == id {
			d.listeners = append(d.listeners[:i], d.listeners[i+1:]...)
			return true
		}
	}
	return false
}

func (d *Document) emit(e Event) {
	if d.deiniting {
		return
	}
	for _, entry := range slices.Clone(d.listeners) {
		entry.listener.OnDocumentEvent(e)
	}
}

// AddOption tunes AddItem.
type AddOption func(*addConfig)

type addConfig struct {
	register bool
}

// WithoutRegister attaches the item without assigning an id or entering it
// in the registry.
func WithoutRegister() AddOption {
	return func(cfg *addConfig) { cfg.register = false }
}

// AddItem registers e. Items without an id get the next one and pick up the
// tags of the active layers; items that arrive with an id above the counter
// bump it. Adding an item twice is a no-op and an id held by another item is
// ErrDuplicateID.
func (d *Document) AddItem(e Entity, opts ...AddOption) error {
	if e == nil {
		return fmt.Errorf("%w: nil entity", ErrUnknownKind)
	}
	cfg := addConfig{register: true}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	it := e.Base()
	if it.doc != nil && it.doc != d {
		return fmt.Errorf("%w: %s belongs to another document", ErrDuplicateID, it)
	}

	fresh := it.id == 0
	if cfg.register {
		last := d.LastItemID()
		switch {
		case it.id == 0:
			it.id = last + 1
			d.setLastItemID(it.id)
		case it.id > last:
			d.setLastItemID(it.id)
		default:
			if existing, ok := d.registry[it.id]; ok {
				if existing == e {
					return nil
				}
				return fmt.Errorf("%w: %d", ErrDuplicateID, it.id)
			}
		}
		d.registry[it.id] = e
	}
	it.doc = d
	it.logger = d.cfg.logger

	layer, isLayer := e.(*Layer)
	if fresh && !isLayer && !d.loading && len(d.active) > 0 {
		var tags []string
		for _, active := range d.active {
			tags = append(tags, active.Tags()...)
		}
		if len(tags) > 0 {
			it.AddTags(tags, NoNotify())
		}
	}

	batching := d.batchDepth > 0
	if !batching {
		it.UpdateAll()
	}
	if isLayer {
		d.layers = append(d.layers, layer)
		if batching {
			d.layersDirty = true
		} else {
			d.ResortLayersFromOrder()
			d.TidyLayerOrder()
		}
		d.emit(Event{Kind: EventLayerAdded, Item: e, Layer: layer})
		if !batching && layer.Active() {
			d.UpdateActiveLayers()
		}
	}
	it.AddPropertyListener(d)
	if r, ok := e.(Registrant); ok {
		r.OnRegistered(d)
	}
	d.emit(Event{Kind: EventItemAdded, Item: e})
	return nil
}

// AddItems adds every entity inside one batch. The first failure is
// returned after the batch closes; later entities are still added.
func (d *Document) AddItems(es ...Entity) error {
	var first error
	d.Batch(func() {
		for _, e := range es {
			if err := d.AddItem(e); err != nil && first == nil {
				first = err
			}
		}
	})
	return first
}

// RemoveItem deregisters e and prunes its overrides from every layer.
// It reports whether e was registered.
func (d *Document) RemoveItem(e Entity) bool {
	if e == nil {
		return false
	}
	it := e.Base()
	if existing, ok := d.registry[it.id]; !ok || existing != e {
		return false
	}
	delete(d.registry, it.id)
	it.RemovePropertyListener(d)
	if r, ok := e.(Deregistrant); ok {
		r.OnDeregistered(d)
	}
	it.doc = nil
	if d.deiniting {
		return true
	}

	for _, layer := range d.layers {
		layer.takeItem(it.id)
	}
	if layer, ok := e.(*Layer); ok {
		wasActive := slices.Contains(d.active, layer)
		d.layers = slices.DeleteFunc(d.layers, func(l *Layer) bool { return l == layer })
		if d.batchDepth > 0 {
			d.layersDirty = true
		} else {
			d.TidyLayerOrder()
		}
		d.emit(Event{Kind: EventLayerRemoved, Item: e, Layer: layer})
		if wasActive && d.batchDepth == 0 {
			d.UpdateActiveLayers()
		}
	}
	d.emit(Event{Kind: EventItemRemoved, Item: e})
	return true
}

// IsBatchAddingRemovingItems reports whether a batch is open.
func (d *Document) IsBatchAddingRemovingItems() bool { return d.batchDepth > 0 }

// SetBatchAddingRemovingItems opens (true) or closes (false) a batch.
// Batches nest; closing the outermost one resorts and tidies layers when
// any were added or removed, recomputes the active layers once and runs one
// UpdateAll pass. Closing more batches than were opened panics with
// ErrBatchUnderflow.
func (d *Document) SetBatchAddingRemovingItems(on bool) {
	if on {
		d.batchDepth++
		return
	}
	if d.batchDepth == 0 {
		d.cfg.logger.Error().Msg("batch closed without being opened")
		panic(ErrBatchUnderflow)
	}
	d.batchDepth--
	if d.batchDepth > 0 {
		return
	}
	if d.layersDirty {
		d.layersDirty = false
		d.ResortLayersFromOrder()
		d.TidyLayerOrder()
	}
	d.UpdateActiveLayers()
	d.UpdateAll()
}

// Batch runs fn inside a batch.
func (d *Document) Batch(fn func()) {
	d.SetBatchAddingRemovingItems(true)
	defer d.SetBatchAddingRemovingItems(false)
	fn()
}

// UpdateAll refreshes the document and every registered item.
func (d *Document) UpdateAll() {
	d.Item.UpdateAll()
	for _, e := range d.Items() {
		e.Base().UpdateAll()
	}
}

// Items returns the registered entities in id order.
func (d *Document) Items() []Entity {
	ids := make([]int, 0, len(d.registry))
	for id := range d.registry {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]Entity, len(ids))
	for i, id := range ids {
		out[i] = d.registry[id]
	}
	return out
}

// Lookup returns the entity registered under id.
func (d *Document) Lookup(id int) (Entity, bool) {
	e, ok := d.registry[id]
	return e, ok
}

// Layers returns the layers in order.
func (d *Document) Layers() []*Layer {
	return slices.Clone(d.layers)
}

// ActiveLayers returns the active layers, most recently activated first.
func (d *Document) ActiveLayers() []*Layer {
	return slices.Clone(d.active)
}

// HasActiveLayers reports whether any layer is active.
func (d *Document) HasActiveLayers() bool {
	return len(d.active) > 0
}

// TidyLayerOrder renumbers every layer to its position. It emits
// EventLayerOrderChanged only when a number changed.
func (d *Document) TidyLayerOrder() {
	changed := false
	for i, layer := range d.layers {
		if layer.Order() != i {
			layer.setOrder(i)
			changed = true
		}
	}
	if changed {
		d.emit(Event{Kind: EventLayerOrderChanged})
	}
}

// ResortLayersFromOrder sorts the layer list by CompareLayers. It emits
// EventLayerOrderChanged only when the sequence changed.
func (d *Document) ResortLayersFromOrder() {
	was := slices.Clone(d.layers)
	slices.SortStableFunc(d.layers, CompareLayers)
	if !slices.Equal(was, d.layers) {
		d.emit(Event{Kind: EventLayerOrderChanged})
	}
}

// SetActiveLayerExclusively activates layer and deactivates the others
// with a single active-layer recompute.
func (d *Document) SetActiveLayerExclusively(layer *Layer) {
	d.Batch(func() {
		for _, l := range d.layers {
			l.SetActive(l == layer)
		}
	})
}

// UpdateActiveLayers recomputes the active layer set. Layered properties
// whose effective value moved are notified, then EventActiveLayersChanged
// is emitted. Nothing happens when the set is unchanged.
func (d *Document) UpdateActiveLayers() {
	d.guard.Do("activeLayers", func() {
		next := d.computeActiveLayers()
		if slices.Equal(next, d.active) {
			return
		}
		d.refreshLayered(func() { d.active = next })
		d.emit(Event{Kind: EventActiveLayersChanged, ActiveLayers: slices.Clone(next)})
	})
}

func (d *Document) computeActiveLayers() []*Layer {
	var next []*Layer
	for _, layer := range d.layers {
		if !layer.Active() {
			layer.seq = 0
			continue
		}
		if layer.seq == 0 {
			d.nextSeq++
			layer.seq = d.nextSeq
		}
		next = append(next, layer)
	}
	slices.SortStableFunc(next, func(a, b *Layer) int { return b.seq - a.seq })
	return next
}

// refreshLayered runs mutate and notifies every layered property whose
// effective value it changed.
func (d *Document) refreshLayered(mutate func()) {
	items := d.Items()
	snapshots := make(map[*Property]any)
	for _, e := range items {
		e.Base().layeredSnapshot(snapshots)
	}
	mutate()
	for _, e := range items {
		e.Base().onActiveLayersChanged(snapshots)
	}
}

// OnItemProperty implements PropertyListener for registered items.
func (d *Document) OnItemProperty(p *Property) {
	if p.spec.Quiet {
		return
	}
	owner := p.item.owner
	if layer, ok := owner.(*Layer); ok {
		d.emit(Event{Kind: EventLayerChanged, Item: owner, Layer: layer, Property: p})
	}
	d.emit(Event{Kind: EventPropertyChanged, Item: owner, Property: p})
}

func (d *Document) onLayerActivation(layer *Layer) {
	active := layer.Active()
	if active {
		d.nextSeq++
		layer.seq = d.nextSeq
	} else {
		layer.seq = 0
	}
	d.emitLayerActivity(layer, active)
	if d.batchDepth == 0 {
		d.UpdateActiveLayers()
	}
}

func (d *Document) emitLayerActivity(layer *Layer, active bool) {
	if !d.emitter.Enabled() {
		return
	}
	event := activity.BuildLayerActivationEvent(activity.LayerEventInput{
		DocumentID: d.UUID(),
		LayerID:    layer.id,
		LayerName:  layer.Name(),
		Order:      layer.Order(),
		OccurredAt: time.Now(),
	}, active)
	if err := d.emitter.Emit(context.Background(), event); err != nil {
		d.cfg.logger.Warn().Err(err).Str("verb", event.Verb).Msg("activity hook failed")
	}
}

func (d *Document) onOwnProperty(p *Property) {
	if p.spec.Quiet {
		return
	}
	d.emit(Event{Kind: EventDocumentPropertyChanged, Property: p})
}

// ResetAll resets every layered property of every item at its current
// write target.
func (d *Document) ResetAll(opts ...SetOption) {
	d.guard.Do("resetAll", func() {
		for _, e := range d.Items() {
			for _, prop := range e.Base().props {
				if prop.spec.Layered {
					prop.Reset(opts...)
				}
			}
		}
	})
}

// Deinit tears the document down without emitting notifications.
func (d *Document) Deinit() {
	d.deiniting = true
	defer func() { d.deiniting = false }()
	for _, e := range d.Items() {
		d.RemoveItem(e)
	}
	d.layers = nil
	d.active = nil
	d.listeners = nil
}

// IsDeinitializing reports whether Deinit is running.
func (d *Document) IsDeinitializing() bool { return d.deiniting }

func (d *Document) confirm(c Confirmation) bool {
	if d.cfg.confirm == nil {
		return true
	}
	allowed := d.cfg.confirm(c)
	if !allowed {
		d.cfg.logger.Info().Str("action", string(c.Action)).Int("count", c.Count).Msg("confirmation denied")
	}
	return allowed
}
