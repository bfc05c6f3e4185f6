package state_test

import (
	"testing"

	"github.com/goliatone/go-layerdoc"
	"github.com/stretchr/testify/require"
)

const kindShape = "Shape"

func init() {
	layerdoc.MustRegisterType(layerdoc.TypeSpec{
		Kind:   kindShape,
		Parent: layerdoc.TypeItem,
		Properties: []layerdoc.PropertySpec{
			{Name: "label", Kind: layerdoc.KindString, Default: ""},
			{Name: "pos", Kind: layerdoc.KindPoint, Default: layerdoc.Point{}, Layered: true, Geometry: true},
			{Name: "width", Kind: layerdoc.KindInt, Default: 1, Layered: true},
		},
		New: func() layerdoc.Entity { return newShape("") },
	})
}

type Shape struct {
	*layerdoc.Item
}

func newShape(label string) *Shape {
	s := &Shape{}
	s.Item = layerdoc.NewItem(s, kindShape)
	if label != "" {
		s.MustProp("label").Set(label)
	}
	return s
}

func (s *Shape) Label() string           { return layerdoc.Value[string](s, "label") }
func (s *Shape) Width() int              { return layerdoc.Value[int](s, "width") }
func (s *Shape) Pos() layerdoc.Point     { return layerdoc.Value[layerdoc.Point](s, "pos") }
func (s *Shape) BaseWidth() any          { return s.MustProp("width").GetFor() }
func (s *Shape) SetWidth(width int)      { s.MustProp("width").Set(width) }
func (s *Shape) SetPos(p layerdoc.Point) { s.MustProp("pos").Set(p) }

// sampleDocument holds one base shape, one shape with layer overrides and an
// active layer tagged "draft".
func sampleDocument(t *testing.T, id string) *layerdoc.Document {
	t.Helper()
	doc := layerdoc.NewDocument(layerdoc.WithDocumentID(id))
	base := newShape("base")
	layered := newShape("layered")
	require.NoError(t, doc.AddItems(base, layered))
	base.SetWidth(3)

	layer := layerdoc.NewLayer(layerdoc.LayerName("Draft"), layerdoc.LayerActive(true), layerdoc.LayerTags("draft"))
	require.NoError(t, doc.AddItem(layer))
	layered.SetWidth(7)
	layered.SetPos(layerdoc.Pt(4, 5))
	return doc
}

func shapes(t *testing.T, doc *layerdoc.Document) (*Shape, *Shape) {
	t.Helper()
	found := doc.Find(layerdoc.FindKinds(kindShape))
	require.Len(t, found, 2)
	return found[0].(*Shape), found[1].(*Shape)
}

// assertSample checks a document rebuilt from sampleDocument.
func assertSample(t *testing.T, doc *layerdoc.Document, id string) {
	t.Helper()
	require.Equal(t, id, doc.UUID())
	base, layered := shapes(t, doc)
	require.Equal(t, "base", base.Label())
	require.Equal(t, 3, base.Width())
	require.Equal(t, "layered", layered.Label())
	require.Equal(t, 7, layered.Width())
	require.Equal(t, layerdoc.Pt(4, 5), layered.Pos())
	require.Equal(t, 1, layered.BaseWidth())

	layers := doc.Layers()
	require.Len(t, layers, 1)
	require.Equal(t, "Draft", layers[0].Name())
	require.True(t, layers[0].Active())
	require.Equal(t, []string{"draft"}, layers[0].Tags())

	value, ok := layers[0].ItemProperty(layered.ID(), "width")
	require.True(t, ok)
	require.Equal(t, 7, value)
}
