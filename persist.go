package layerdoc

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/goliatone/go-layerdoc/internal/hydrate"
)

// StaleOverride is a layer override dropped while normalizing a document.
type StaleOverride struct {
	LayerID  int
	ItemID   int
	Property string
	Reason   string
}

// Write stores the document properties and an "items" list holding one
// chunk per registered entity, tagged with its kind.
func (d *Document) Write(chunk Chunk) {
	d.Item.Write(chunk)
	items := make([]any, 0, len(d.registry))
	for _, e := range d.Items() {
		c := Chunk{}
		e.Write(c)
		base := e.Base()
		if _, preserved := c["kind"]; !preserved || base.kind != TypeItem {
			c["kind"] = base.kind
		}
		items = append(items, map[string]any(c))
	}
	chunk["items"] = items
}

// Read loads a chunk produced by Write into the document. Entities are
// built from their kind, read with a resolver over the loaded ids and added
// in one batch. Unknown kinds load as plain items that keep their chunk.
// Layer overrides are then coerced to the kinds of their properties and
// overrides of missing items are dropped. The returned error joins the
// items that could not be added; everything else is loaded regardless.
func (d *Document) Read(chunk Chunk) error {
	d.loading = true
	defer func() { d.loading = false }()

	previousID := d.UUID()
	d.Item.Read(chunk, nil)
	delete(d.readChunk, "items")
	if d.UUID() == "" {
		d.MustProp("uuid").setBase(previousID)
	}
	d.stack.SetDocumentID(d.UUID())

	type pending struct {
		entity Entity
		chunk  Chunk
	}
	var loaded []pending
	byID := map[int]Entity{}
	for i, raw := range listOf(chunk["items"]) {
		c, err := asChunk(raw)
		if err != nil {
			d.cfg.logger.Warn().Err(err).Int("index", i).Msg("skipping unreadable item chunk")
			continue
		}
		kind, _ := hydrate.ToString(c["kind"])
		e, known := newEntity(kind)
		if !known {
			d.cfg.logger.Warn().Str("kind", kind).Int("index", i).Msg("reading unknown kind as plain item")
		}
		e.Base().logger = d.cfg.logger
		if id, err := hydrate.ToInt(c["id"]); err == nil && id > 0 {
			byID[id] = e
		}
		loaded = append(loaded, pending{entity: e, chunk: c})
	}

	resolve := func(id int) Entity { return byID[id] }
	for _, p := range loaded {
		p.entity.Read(p.chunk, resolve)
	}

	var errs []error
	d.Batch(func() {
		for _, p := range loaded {
			if err := d.AddItem(p.entity); err != nil {
				d.cfg.logger.Warn().Err(err).Str("item", p.entity.Base().String()).Msg("skipping item")
				errs = append(errs, err)
			}
		}
		d.pruned = d.normalizeOverrides()
	})
	return errors.Join(errs...)
}

// PrunedOnRead returns the overrides dropped by the last Read.
func (d *Document) PrunedOnRead() []StaleOverride {
	return slices.Clone(d.pruned)
}

// Prune normalizes every layer override against the registered items and
// returns the entries it dropped.
func (d *Document) Prune() []StaleOverride {
	var dropped []StaleOverride
	d.refreshLayered(func() { dropped = d.normalizeOverrides() })
	return dropped
}

func (d *Document) normalizeOverrides() []StaleOverride {
	var stale []StaleOverride
	for _, layer := range d.layers {
		for itemID, bucket := range layer.overrides {
			e, ok := d.registry[itemID]
			if !ok {
				for name := range bucket {
					stale = append(stale, StaleOverride{LayerID: layer.id, ItemID: itemID, Property: name, Reason: "unknown item"})
				}
				delete(layer.overrides, itemID)
				continue
			}
			for name, value := range bucket {
				prop, ok := e.Base().byName[name]
				if !ok {
					continue
				}
				coerced, err := coerce(value, prop.spec.Kind)
				if err != nil {
					stale = append(stale, StaleOverride{LayerID: layer.id, ItemID: itemID, Property: name, Reason: err.Error()})
					layer.removeOverride(itemID, name)
					continue
				}
				bucket[name] = coerced
			}
		}
	}
	slices.SortFunc(stale, func(a, b StaleOverride) int {
		if c := cmp.Compare(a.LayerID, b.LayerID); c != 0 {
			return c
		}
		if c := cmp.Compare(a.ItemID, b.ItemID); c != 0 {
			return c
		}
		return cmp.Compare(a.Property, b.Property)
	})
	for _, s := range stale {
		d.cfg.logger.Warn().
			Int("layer", s.LayerID).
			Int("item", s.ItemID).
			Str("property", s.Property).
			Str("reason", s.Reason).
			Msg("pruned layer override")
	}
	return stale
}

func listOf(raw any) []any {
	switch v := raw.(type) {
	case nil:
		return nil
	case []any:
		return v
	case []map[string]any:
		out := make([]any, len(v))
		for i, m := range v {
			out[i] = m
		}
		return out
	case []Chunk:
		out := make([]any, len(v))
		for i, c := range v {
			out[i] = c
		}
		return out
	default:
		return nil
	}
}

func asChunk(raw any) (Chunk, error) {
	switch v := raw.(type) {
	case Chunk:
		return v, nil
	case map[string]any:
		return Chunk(v), nil
	case nil:
		return nil, fmt.Errorf("%w: nil chunk", hydrate.ErrCoerce)
	default:
		m, err := hydrate.ToMap(raw)
		if err != nil {
			return nil, err
		}
		return Chunk(m), nil
	}
}
