package layerdoc

import (
	"slices"
	"sort"
	"time"

	"github.com/goliatone/go-layerdoc/query"
)

// FindOption narrows Find.
type FindOption func(*findConfig)

type findConfig struct {
	id      int
	byID    bool
	kinds   []string
	tags    []string
	byTags  bool
	matches []func(Entity) bool
	less    func(a, b Entity) int
}

// FindID looks up one id and ignores every other filter.
func FindID(id int) FindOption {
	return func(cfg *findConfig) {
		cfg.id = id
		cfg.byID = true
	}
}

// FindKinds keeps entities of any of kinds or their descendants.
func FindKinds(kinds ...string) FindOption {
	return func(cfg *findConfig) { cfg.kinds = append(cfg.kinds, kinds...) }
}

// FindTags keeps entities passing HasTags with the document reverse tags.
func FindTags(tags ...string) FindOption {
	return func(cfg *findConfig) {
		cfg.tags = append(cfg.tags, tags...)
		cfg.byTags = true
	}
}

// FindMatch keeps entities accepted by fn, typically a capability check.
func FindMatch(fn func(Entity) bool) FindOption {
	return func(cfg *findConfig) {
		if fn != nil {
			cfg.matches = append(cfg.matches, fn)
		}
	}
}

// FindSorted orders the result with cmp instead of by id.
func FindSorted(cmp func(a, b Entity) int) FindOption {
	return func(cfg *findConfig) { cfg.less = cmp }
}

// Find returns the registered entities passing every filter, in id order
// unless FindSorted is given.
func (d *Document) Find(opts ...FindOption) []Entity {
	var cfg findConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.byID {
		if e, ok := d.registry[cfg.id]; ok {
			return []Entity{e}
		}
		return nil
	}

	reverse := d.ReverseTags()
	var out []Entity
	for _, e := range d.Items() {
		if !cfg.accepts(e, reverse) {
			continue
		}
		out = append(out, e)
	}
	if cfg.less != nil {
		slices.SortStableFunc(out, cfg.less)
	}
	return out
}

func (cfg findConfig) accepts(e Entity, reverse []string) bool {
	base := e.Base()
	if len(cfg.kinds) > 0 && !slices.ContainsFunc(cfg.kinds, func(kind string) bool { return KindOf(base.kind, kind) }) {
		return false
	}
	if cfg.byTags && !base.HasTags(cfg.tags, reverse) {
		return false
	}
	for _, match := range cfg.matches {
		if !match(e) {
			return false
		}
	}
	return true
}

// Query returns the entities whose snapshot satisfies expr.
func (d *Document) Query(expr string) ([]Entity, error) {
	return d.QueryWith(nil, expr)
}

// Query1 returns the first entity satisfying expr, or nil.
func (d *Document) Query1(expr string) (Entity, error) {
	found, err := d.QueryWith(nil, expr)
	if err != nil || len(found) == 0 {
		return nil, err
	}
	return found[0], nil
}

// QueryWith evaluates expr against every entity with args exposed as
// `args`. Evaluation stops at the first error.
func (d *Document) QueryWith(args map[string]any, expr string) ([]Entity, error) {
	items := d.Items()
	names := snapshotNames(items)
	now := time.Now()

	var out []Entity
	for _, e := range items {
		env := query.Env{
			Vars:    Snapshot(e, names...),
			Args:    args,
			Now:     &now,
			Subject: e.Base().String(),
		}
		start := time.Now()
		ok, err := query.Match(d.evaluator, env, expr)
		if d.cfg.evalLogger != nil {
			d.cfg.evalLogger.LogEvaluation(query.LogEvent{
				Engine:   query.EngineName(d.evaluator),
				Expr:     expr,
				Subject:  env.Subject,
				Duration: time.Since(start),
				Err:      err,
			})
		}
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// Snapshot returns the plain effective values of e keyed by property name,
// plus "id" and "kind". Names listed in extra but not declared on e are
// present with a nil value.
func Snapshot(e Entity, extra ...string) map[string]any {
	base := e.Base()
	out := make(map[string]any, len(base.props)+len(extra)+2)
	for _, name := range extra {
		out[name] = nil
	}
	for _, prop := range base.props {
		out[prop.spec.Name] = plain(prop.Get())
	}
	out["id"] = base.id
	out["kind"] = base.kind
	return out
}

func snapshotNames(items []Entity) []string {
	seen := map[string]struct{}{}
	for _, e := range items {
		for _, prop := range e.Base().props {
			seen[prop.spec.Name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
