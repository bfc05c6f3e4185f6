package layerdoc_test

import (
	"github.com/goliatone/go-layerdoc"
	"github.com/goliatone/go-layerdoc/layering"
)

const (
	kindPerson   = "Person"
	kindMarriage = "Marriage"
)

func init() {
	layerdoc.MustRegisterType(layerdoc.TypeSpec{
		Kind:   kindPerson,
		Parent: layerdoc.TypeItem,
		Properties: []layerdoc.PropertySpec{
			{Name: "name", Kind: layerdoc.KindString, Default: ""},
			{Name: "color", Kind: layerdoc.KindString, Default: "#000000"},
			{Name: "itemPos", Kind: layerdoc.KindPoint, Default: layerdoc.Point{}, Layered: true, Geometry: true},
			{Name: "size", Kind: layerdoc.KindFloat, Default: 1.0, Layered: true, Geometry: true},
			{Name: "num", Kind: layerdoc.KindInt, Default: -1, Layered: true},
		},
		New: func() layerdoc.Entity { return newPerson("") },
	})
	layerdoc.MustRegisterType(layerdoc.TypeSpec{
		Kind:   kindMarriage,
		Parent: layerdoc.TypeItem,
		Properties: []layerdoc.PropertySpec{
			{Name: "personA", Kind: layerdoc.KindInt},
			{Name: "personB", Kind: layerdoc.KindInt},
		},
		New: func() layerdoc.Entity { return newMarriage(nil, nil) },
	})
}

// Person counts notifications of its "num" property, split by whether the
// value came from a layer.
type Person struct {
	*layerdoc.Item
	count        int
	layeredCount int
	changed      []string
}

func newPerson(name string) *Person {
	p := &Person{}
	p.Item = layerdoc.NewItem(p, kindPerson)
	if name != "" {
		p.MustProp("name").Set(name)
	}
	return p
}

func (p *Person) OnProperty(prop *layerdoc.Property) {
	p.changed = append(p.changed, prop.Name())
	if prop.Name() == "num" {
		p.count++
		if prop.IsUsingLayer() {
			p.layeredCount++
		}
	}
}

func (p *Person) Name() string            { return layerdoc.Value[string](p, "name") }
func (p *Person) Color() string           { return layerdoc.Value[string](p, "color") }
func (p *Person) Num() int                { return layerdoc.Value[int](p, "num") }
func (p *Person) Size() float64           { return layerdoc.Value[float64](p, "size") }
func (p *Person) ItemPos() layerdoc.Point { return layerdoc.Value[layerdoc.Point](p, "itemPos") }
func (p *Person) SetColor(color string)   { p.MustProp("color").Set(color) }
func (p *Person) SetSize(size float64)    { p.MustProp("size").Set(size) }
func (p *Person) SetNum(n int, opts ...layerdoc.SetOption) {
	p.MustProp("num").Set(n, opts...)
}

func (p *Person) SetItemPos(pos layerdoc.Point, opts ...layerdoc.SetOption) {
	p.MustProp("itemPos").Set(pos, opts...)
}

// ItemPosFor resolves the position against an explicit layer list.
func (p *Person) ItemPosFor(layers ...*layerdoc.Layer) any {
	return p.MustProp("itemPos").GetFor(layers...)
}

// Marriage references two people by id and resolves them on read.
type Marriage struct {
	*layerdoc.Item
	a, b *Person
}

func newMarriage(a, b *Person) *Marriage {
	m := &Marriage{a: a, b: b}
	m.Item = layerdoc.NewItem(m, kindMarriage)
	return m
}

func (m *Marriage) Write(chunk layerdoc.Chunk) {
	if m.a != nil {
		m.MustProp("personA").Set(m.a.ID(), layerdoc.NoNotify())
	}
	if m.b != nil {
		m.MustProp("personB").Set(m.b.ID(), layerdoc.NoNotify())
	}
	m.Item.Write(chunk)
}

func (m *Marriage) Read(chunk layerdoc.Chunk, resolve layerdoc.Resolver) {
	m.Item.Read(chunk, resolve)
	m.a, _ = resolve(layerdoc.Value[int](m, "personA")).(*Person)
	m.b, _ = resolve(layerdoc.Value[int](m, "personB")).(*Person)
}

// recorder captures document events.
type recorder struct {
	events []layerdoc.Event
}

func (r *recorder) OnDocumentEvent(e layerdoc.Event) {
	r.events = append(r.events, e)
}

func (r *recorder) count(kind layerdoc.EventKind) int {
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func (r *recorder) reset() { r.events = nil }

func writeChunk(e layerdoc.Entity) layerdoc.Chunk {
	chunk := layerdoc.Chunk{}
	e.Write(chunk)
	return layering.Clone(chunk)
}
