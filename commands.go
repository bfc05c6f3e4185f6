package layerdoc

import (
	"fmt"
	"slices"

	"github.com/goliatone/go-layerdoc/layering"
	"github.com/goliatone/go-layerdoc/undo"
)

// propertyChange is one (layer or base, item, property) entry of a
// property command.
type propertyChange struct {
	layer    *Layer
	prop     *Property
	value    any
	valueSet bool
	was      any
	wasSet   bool
}

func (c *propertyChange) apply(value any, set bool) {
	p := c.prop
	before := p.Get()
	switch {
	case c.layer != nil && set:
		c.layer.setOverride(p.item.id, p.spec.Name, value)
	case c.layer != nil:
		c.layer.removeOverride(p.item.id, p.spec.Name)
	case set:
		p.setBase(value)
	default:
		p.resetBase()
	}
	p.wrote(before)
	p.refresh(before)
}

// propertyEdit records property changes that were already applied when the
// command was pushed, so its first Redo is skipped.
type propertyEdit struct {
	id      int
	text    string
	changes []*propertyChange
	pending bool
}

func (e *propertyEdit) Redo() {
	if e.pending {
		e.pending = false
		return
	}
	for _, c := range e.changes {
		c.apply(c.value, c.valueSet)
	}
}

func (e *propertyEdit) Undo() {
	for i := len(e.changes) - 1; i >= 0; i-- {
		c := e.changes[i]
		c.apply(c.was, c.wasSet)
	}
}

func (e *propertyEdit) ID() int      { return e.id }
func (e *propertyEdit) Text() string { return e.text }

// merge adopts the newer values of other and keeps the earliest was.
func (e *propertyEdit) merge(other *propertyEdit) {
	for _, incoming := range other.changes {
		idx := slices.IndexFunc(e.changes, func(c *propertyChange) bool {
			return c.layer == incoming.layer && c.prop == incoming.prop
		})
		if idx < 0 {
			e.changes = append(e.changes, incoming)
			continue
		}
		e.changes[idx].value = incoming.value
		e.changes[idx].valueSet = incoming.valueSet
	}
}

// SetItemProperty is the undo record of Property.Set.
type SetItemProperty struct{ propertyEdit }

// MergeWith implements undo.Merger.
func (c *SetItemProperty) MergeWith(other undo.Command) bool {
	o, ok := other.(*SetItemProperty)
	if !ok {
		return false
	}
	c.merge(&o.propertyEdit)
	return true
}

// ResetItemProperty is the undo record of Property.Reset.
type ResetItemProperty struct{ propertyEdit }

// MergeWith implements undo.Merger.
func (c *ResetItemProperty) MergeWith(other undo.Command) bool {
	o, ok := other.(*ResetItemProperty)
	if !ok {
		return false
	}
	c.merge(&o.propertyEdit)
	return true
}

func (d *Document) pushPropertyChanges(reset bool, id int, changes []*propertyChange) {
	for _, c := range changes {
		c.value = layering.Clone(c.value)
		c.was = layering.Clone(c.was)
	}
	verb := "Set"
	if reset {
		verb = "Reset"
	}
	edit := propertyEdit{
		id:      id,
		text:    fmt.Sprintf("%s %s", verb, changes[0].prop.spec.Name),
		changes: changes,
		pending: true,
	}
	if reset {
		d.stack.Push(&ResetItemProperty{edit})
		return
	}
	d.stack.Push(&SetItemProperty{edit})
}

// funcCommand is a command built from a pair of closures.
type funcCommand struct {
	text string
	redo func()
	undo func()
}

func (c *funcCommand) Redo()        { c.redo() }
func (c *funcCommand) Undo()        { c.undo() }
func (c *funcCommand) ID() int      { return undo.NoID }
func (c *funcCommand) Text() string { return c.text }

// Commands pushes undoable document edits onto the document undo stack.
type Commands struct {
	doc *Document
}

// Commands returns the undoable edit helpers of d.
func (d *Document) Commands() Commands {
	return Commands{doc: d}
}

// AddItem adds e as one undo step.
func (c Commands) AddItem(e Entity) error {
	if err := c.doc.checkAdd(e); err != nil {
		return err
	}
	d := c.doc
	c.doc.stack.Push(&funcCommand{
		text: "Add " + e.Base().kind,
		redo: func() {
			if err := d.AddItem(e); err != nil {
				d.cfg.logger.Warn().Err(err).Msg("redo add item")
			}
		},
		undo: func() { d.RemoveItem(e) },
	})
	return nil
}

// AddLayer appends layer at the end of the layer order as one undo step.
func (c Commands) AddLayer(layer *Layer) error {
	if err := c.doc.checkAdd(layer); err != nil {
		return err
	}
	d := c.doc
	c.doc.stack.Push(&funcCommand{
		text: "Add layer",
		redo: func() {
			layer.setOrder(len(d.layers))
			if err := d.AddItem(layer); err != nil {
				d.cfg.logger.Warn().Err(err).Msg("redo add layer")
			}
		},
		undo: func() { d.RemoveItem(layer) },
	})
	return nil
}

// RemoveItems removes es as one undo step. Removing layers that hold
// overrides asks for confirmation first; a denial leaves the document
// untouched and returns false. Undo restores the items, the layer order and
// every override the removal pruned.
func (c Commands) RemoveItems(es ...Entity) bool {
	d := c.doc
	var targets []Entity
	layers, overrides := 0, 0
	for _, e := range es {
		if e == nil {
			continue
		}
		if existing, ok := d.registry[e.Base().id]; !ok || existing != e {
			continue
		}
		targets = append(targets, e)
		if layer, ok := e.(*Layer); ok && layer.OverrideCount() > 0 {
			layers++
			overrides += layer.OverrideCount()
		}
	}
	if len(targets) == 0 {
		return false
	}
	if layers > 0 && !d.confirm(Confirmation{
		Action:  ConfirmRemoveLayers,
		Message: fmt.Sprintf("Remove %d layer(s) holding %d override(s)?", layers, overrides),
		Count:   overrides,
	}) {
		return false
	}
	d.stack.Push(newRemoveItemsCommand(d, targets))
	return true
}

type savedOverrides struct {
	layer  *Layer
	itemID int
	bucket map[string]any
}

type removeItemsCommand struct {
	doc   *Document
	items []Entity
	order []*Layer
	saved []savedOverrides
}

func newRemoveItemsCommand(d *Document, targets []Entity) *removeItemsCommand {
	cmd := &removeItemsCommand{doc: d, order: slices.Clone(d.layers)}
	var layers []Entity
	for _, e := range targets {
		if _, ok := e.(*Layer); ok {
			layers = append(layers, e)
			continue
		}
		cmd.items = append(cmd.items, e)
	}
	cmd.items = append(cmd.items, layers...)
	for _, e := range cmd.items {
		id := e.Base().id
		for _, layer := range d.layers {
			if bucket, ok := layer.overrides[id]; ok {
				cmd.saved = append(cmd.saved, savedOverrides{layer: layer, itemID: id, bucket: layering.Clone(bucket)})
			}
		}
	}
	return cmd
}

func (c *removeItemsCommand) Redo() {
	c.doc.Batch(func() {
		for _, e := range c.items {
			c.doc.RemoveItem(e)
		}
	})
}

func (c *removeItemsCommand) Undo() {
	d := c.doc
	d.Batch(func() {
		for _, s := range c.saved {
			s.layer.restoreItem(s.itemID, s.bucket)
		}
		for i := len(c.items) - 1; i >= 0; i-- {
			if err := d.AddItem(c.items[i]); err != nil {
				d.cfg.logger.Warn().Err(err).Msg("undo remove items")
			}
		}
		for i, layer := range c.order {
			layer.setOrder(i)
		}
		d.layersDirty = true
	})
}

func (c *removeItemsCommand) ID() int { return undo.NoID }

func (c *removeItemsCommand) Text() string {
	if len(c.items) == 1 {
		return "Remove " + c.items[0].Base().kind
	}
	return fmt.Sprintf("Remove %d items", len(c.items))
}

// SetLayerOrder reorders the layers to match layers as one undo step.
// layers must hold exactly the document layers.
func (c Commands) SetLayerOrder(layers []*Layer) error {
	d := c.doc
	if len(layers) != len(d.layers) {
		return fmt.Errorf("%w: got %d layers, document has %d", ErrLayerIndex, len(layers), len(d.layers))
	}
	for _, layer := range layers {
		if !slices.Contains(d.layers, layer) {
			return fmt.Errorf("%w: layer %s", ErrNotInDocument, layer.Item)
		}
	}
	before := slices.Clone(d.layers)
	after := slices.Clone(layers)
	d.stack.Push(&funcCommand{
		text: "Set layer order",
		redo: func() { d.applyLayerOrder(after) },
		undo: func() { d.applyLayerOrder(before) },
	})
	return nil
}

// MoveLayer moves the layer at index from to index to as one undo step.
func (c Commands) MoveLayer(from, to int) error {
	layers := c.doc.Layers()
	if from < 0 || from >= len(layers) || to < 0 || to >= len(layers) {
		return fmt.Errorf("%w: move %d to %d of %d", ErrLayerIndex, from, to, len(layers))
	}
	if from == to {
		return nil
	}
	layer := layers[from]
	layers = slices.Delete(layers, from, from+1)
	layers = slices.Insert(layers, to, layer)
	return c.SetLayerOrder(layers)
}

func (d *Document) applyLayerOrder(layers []*Layer) {
	for i, layer := range layers {
		layer.setOrder(i)
	}
	d.ResortLayersFromOrder()
	d.TidyLayerOrder()
}

// CreateTag defines tag on the document as one undo step.
func (c Commands) CreateTag(tag string) error {
	d := c.doc
	if d.HasTag(tag) {
		return fmt.Errorf("%w: %s", ErrTagExists, tag)
	}
	d.stack.Push(&funcCommand{
		text: "Create tag",
		redo: func() { _ = d.AddTag(tag) },
		undo: func() { _ = d.RemoveTag(tag) },
	})
	return nil
}

// DeleteTag removes tag from the document and every item as one undo step.
// When items use the tag, confirmation is asked first and a denial returns
// false without changes.
func (c Commands) DeleteTag(tag string) (bool, error) {
	d := c.doc
	if !d.HasTag(tag) {
		return false, fmt.Errorf("%w: %s", ErrUnknownTag, tag)
	}
	var users []*Item
	for _, e := range d.Items() {
		if e.Base().HasTag(tag) {
			users = append(users, e.Base())
		}
	}
	if len(users) > 0 && !d.confirm(Confirmation{
		Action:  ConfirmDeleteTag,
		Message: fmt.Sprintf("Delete tag %q used by %d item(s)?", tag, len(users)),
		Count:   len(users),
	}) {
		return false, nil
	}
	reversed := slices.Contains(d.ReverseTags(), tag)
	d.stack.Push(&funcCommand{
		text: "Delete tag",
		redo: func() { _ = d.RemoveTag(tag) },
		undo: func() {
			_ = d.AddTag(tag)
			for _, it := range users {
				it.SetTag(tag)
			}
			if reversed {
				d.SetReverseTags(append(d.ReverseTags(), tag))
			}
		},
	})
	return true, nil
}

// RenameTag renames a document tag everywhere as one undo step.
func (c Commands) RenameTag(oldName, newName string) error {
	d := c.doc
	if err := d.checkRename(oldName, newName); err != nil {
		return err
	}
	d.stack.Push(&funcCommand{
		text: "Rename tag",
		redo: func() { _ = d.RenameTag(oldName, newName) },
		undo: func() { _ = d.RenameTag(newName, oldName) },
	})
	return nil
}

// SetTag adds tag to items as one undo step. An undefined tag is defined on
// the document too.
func (c Commands) SetTag(items []Entity, tag string) {
	c.pushTagging(items, tag, true)
}

// UnsetTag removes tag from items as one undo step.
func (c Commands) UnsetTag(items []Entity, tag string) {
	c.pushTagging(items, tag, false)
}

func (c Commands) pushTagging(items []Entity, tag string, on bool) {
	d := c.doc
	var affected []*Item
	for _, e := range items {
		if e != nil && e.Base().HasTag(tag) != on {
			affected = append(affected, e.Base())
		}
	}
	define := on && !d.HasTag(tag)
	if len(affected) == 0 && !define {
		return
	}
	apply := func(set bool) {
		for _, it := range affected {
			if set {
				it.SetTag(tag)
			} else {
				it.UnsetTag(tag)
			}
		}
	}
	text := "Unset tag"
	if on {
		text = "Set tag"
	}
	d.stack.Push(&funcCommand{
		text: text,
		redo: func() {
			if define {
				_ = d.AddTag(tag)
			}
			apply(on)
		},
		undo: func() {
			apply(!on)
			if define {
				d.Item.UnsetTag(tag)
			}
		},
	})
}

func (d *Document) checkAdd(e Entity) error {
	if e == nil {
		return fmt.Errorf("%w: nil entity", ErrUnknownKind)
	}
	it := e.Base()
	if it.doc != nil && it.doc != d {
		return fmt.Errorf("%w: %s belongs to another document", ErrDuplicateID, it)
	}
	if existing, ok := d.registry[it.id]; ok && it.id != 0 && existing != e {
		return fmt.Errorf("%w: %d", ErrDuplicateID, it.id)
	}
	return nil
}
