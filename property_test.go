package layerdoc_test

import (
	"testing"

	"github.com/goliatone/go-layerdoc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayeredPropertyNotifications(t *testing.T) {
	doc := layerdoc.NewDocument()
	person := newPerson("")
	layer := layerdoc.NewLayer(layerdoc.LayerName("Layer 1"))
	require.NoError(t, doc.AddItem(person))
	require.NoError(t, doc.AddItem(layer))

	assert.Equal(t, -1, person.Num())
	assert.Equal(t, 0, person.count)
	assert.Equal(t, 0, person.layeredCount)

	person.SetNum(1)
	assert.Equal(t, 1, person.Num())
	assert.Equal(t, 1, person.count)
	assert.Equal(t, 0, person.layeredCount)

	layer.SetActive(true)
	assert.Equal(t, 1, person.Num())
	assert.Equal(t, 1, person.count)
	assert.Equal(t, 0, person.layeredCount)

	person.SetNum(2)
	assert.Equal(t, 2, person.Num())
	assert.Equal(t, 2, person.count)
	assert.Equal(t, 1, person.layeredCount)

	layer.SetActive(false)
	assert.Equal(t, 1, person.Num())
	assert.Equal(t, 3, person.count)
	assert.Equal(t, 1, person.layeredCount)

	layer.SetActive(true)
	assert.Equal(t, 2, person.Num())
	assert.Equal(t, 4, person.count)
	assert.Equal(t, 2, person.layeredCount)

	person.MustProp("num").Reset()
	assert.Equal(t, 1, person.Num())
	assert.Equal(t, 5, person.count)
	assert.Equal(t, 2, person.layeredCount)

	layer.SetActive(false)
	assert.Equal(t, 1, person.Num())
	assert.Equal(t, 5, person.count)
	assert.Equal(t, 2, person.layeredCount)
}

func TestLayeredPropertyUndoRedo(t *testing.T) {
	doc := layerdoc.NewDocument()
	person := newPerson("")
	layer := layerdoc.NewLayer(layerdoc.LayerName("Layer 1"))
	require.NoError(t, doc.AddItems(layer, person))

	person.SetNum(1, layerdoc.WithUndo())
	assert.Equal(t, 1, person.Num())
	assert.Equal(t, 1, person.count)

	require.True(t, doc.UndoStack().Undo())
	assert.Equal(t, -1, person.Num())
	assert.False(t, person.MustProp("num").IsSet())
	assert.Equal(t, 2, person.count)

	require.True(t, doc.UndoStack().Redo())
	assert.Equal(t, 1, person.Num())
	assert.Equal(t, 3, person.count)
	assert.Equal(t, 0, person.layeredCount)
}

func TestUnlayeredPropertyIgnoresActiveLayers(t *testing.T) {
	doc := layerdoc.NewDocument()
	layer := layerdoc.NewLayer(layerdoc.LayerName("L1"))
	person := newPerson("p")
	require.NoError(t, doc.AddItems(layer, person))

	person.SetColor("#FF0000")
	layer.SetActive(true)
	assert.Equal(t, "#FF0000", person.Color())

	person.SetColor("#00FF00")
	layer.SetActive(false)
	assert.Equal(t, "#00FF00", person.Color())
	assert.False(t, layer.HasItemProperties(person.ID()))
}

func TestLayeredPositionScenario(t *testing.T) {
	doc := layerdoc.NewDocument()
	layer := layerdoc.NewLayer(layerdoc.LayerName("L1"))
	person := newPerson("p")
	require.NoError(t, doc.AddItems(layer, person))
	original := person.ItemPos()

	layer.SetActive(true)
	person.SetItemPos(layerdoc.Pt(200, 200))
	assert.Equal(t, layerdoc.Pt(200, 200), person.ItemPos())
	assert.True(t, person.MustProp("itemPos").IsUsingLayer())

	layer.SetActive(false)
	assert.Equal(t, original, person.ItemPos())
	assert.Equal(t, layerdoc.Pt(200, 200), person.ItemPosFor(layer))
	assert.Equal(t, original, person.ItemPosFor())
}

func TestGetForUsesGivenLayerOrder(t *testing.T) {
	doc := layerdoc.NewDocument()
	l1 := layerdoc.NewLayer(layerdoc.LayerName("one"))
	l2 := layerdoc.NewLayer(layerdoc.LayerName("two"))
	l3 := layerdoc.NewLayer(layerdoc.LayerName("three"))
	person := newPerson("p")
	require.NoError(t, doc.AddItems(l1, l2, l3, person))

	require.NoError(t, l1.SetItemProperty(person.ID(), "num", 10))
	require.NoError(t, l2.SetItemProperty(person.ID(), "num", "20"))

	num := person.MustProp("num")
	assert.Equal(t, 20, num.GetFor(l2, l1))
	assert.Equal(t, 10, num.GetFor(l1, l2))
	assert.Equal(t, 10, num.GetFor(l3, l1))
	assert.Nil(t, num.GetFor(l3))
	assert.Equal(t, -1, num.GetFor())
	assert.Nil(t, person.MustProp("color").GetFor(l1))
}

func TestMostRecentlyActivatedLayerWins(t *testing.T) {
	doc := layerdoc.NewDocument()
	l1 := layerdoc.NewLayer(layerdoc.LayerName("one"))
	l2 := layerdoc.NewLayer(layerdoc.LayerName("two"))
	person := newPerson("p")
	require.NoError(t, doc.AddItems(l1, l2, person))
	require.NoError(t, l1.SetItemProperty(person.ID(), "num", 1))
	require.NoError(t, l2.SetItemProperty(person.ID(), "num", 2))

	l1.SetActive(true)
	l2.SetActive(true)
	assert.Equal(t, 2, person.Num())
	assert.Equal(t, []*layerdoc.Layer{l2, l1}, doc.ActiveLayers())

	l1.SetActive(false)
	l1.SetActive(true)
	assert.Equal(t, 1, person.Num())
	assert.Greater(t, l1.ActivationSeq(), l2.ActivationSeq())

	person.SetNum(5)
	got, ok := l1.ItemProperty(person.ID(), "num")
	require.True(t, ok)
	assert.Equal(t, 5, got)
	got, _ = l2.ItemProperty(person.ID(), "num")
	assert.Equal(t, 2, got)
}

func TestSetSkipsSameValueUnlessForced(t *testing.T) {
	doc := layerdoc.NewDocument()
	person := newPerson("p")
	require.NoError(t, doc.AddItem(person))

	person.SetColor("red")
	assert.Contains(t, person.changed, "color")

	person.changed = nil
	person.SetColor("red")
	assert.Empty(t, person.changed)

	person.MustProp("color").Set("red", layerdoc.Force())
	assert.Equal(t, []string{"color"}, person.changed)

	person.changed = nil
	person.MustProp("color").Set("blue", layerdoc.NoNotify())
	assert.Equal(t, "blue", person.Color())
	assert.Empty(t, person.changed)
}

func TestSetCoercesOrRejects(t *testing.T) {
	person := newPerson("p")
	num := person.MustProp("num")

	num.Set(5)
	num.Set("abc")
	assert.Equal(t, 5, person.Num())

	num.Set("7")
	assert.Equal(t, 7, person.Num())

	num.Set(8.0)
	assert.Equal(t, 8, person.Num())

	person.MustProp("itemPos").Set(map[string]any{"x": 3, "y": 4.5})
	assert.Equal(t, layerdoc.Pt(3, 4.5), person.ItemPos())

	person.MustProp("itemPos").Set([]any{1, 2})
	assert.Equal(t, layerdoc.Pt(1, 2), person.ItemPos())
}

type echoListener struct {
	person *Person
	calls  int
}

func (l *echoListener) OnItemProperty(p *layerdoc.Property) {
	if p.Name() != "color" {
		return
	}
	l.calls++
	l.person.SetColor("echo")
}

func TestSetIsIgnoredWhileNotifyingSameProperty(t *testing.T) {
	person := newPerson("p")
	listener := &echoListener{person: person}
	person.AddPropertyListener(listener)

	person.SetColor("blue")
	assert.Equal(t, "blue", person.Color())
	assert.Equal(t, 1, listener.calls)

	person.RemovePropertyListener(listener)
	person.SetColor("green")
	assert.Equal(t, 1, listener.calls)
}

func TestPropertyTrace(t *testing.T) {
	doc := layerdoc.NewDocument()
	layer := layerdoc.NewLayer(layerdoc.LayerName("trace"), layerdoc.LayerActive(true))
	person := newPerson("p")
	require.NoError(t, doc.AddItems(layer, person))

	trace := person.MustProp("num").Trace()
	assert.Equal(t, layerdoc.SourceDefault, trace.Source)
	assert.Equal(t, -1, trace.Value)
	require.Len(t, trace.Layers, 1)
	assert.False(t, trace.Layers[0].Found)

	person.SetNum(3)
	trace = person.MustProp("num").Trace()
	assert.Equal(t, layerdoc.SourceLayer, trace.Source)
	assert.Equal(t, 3, trace.Value)
	assert.Equal(t, "trace", trace.Layers[0].LayerName)

	layer.SetActive(false)
	person.SetNum(4)
	trace = person.MustProp("num").Trace()
	assert.Equal(t, layerdoc.SourceBase, trace.Source)
	assert.Empty(t, trace.Layers)

	payload, err := trace.ToJSON()
	require.NoError(t, err)
	decoded, err := layerdoc.TraceFromJSON(payload)
	require.NoError(t, err)
	assert.Equal(t, trace.Property, decoded.Property)
	assert.Equal(t, trace.Source, decoded.Source)
}

func TestDocumentPropertyUndoRedo(t *testing.T) {
	doc := layerdoc.NewDocument()
	doc.SetReverseTags([]string{"hidden"}, layerdoc.WithUndo())
	require.Equal(t, []string{"hidden"}, doc.ReverseTags())
	require.Equal(t, 1, doc.UndoStack().Count())

	require.True(t, doc.UndoStack().Undo())
	assert.Empty(t, doc.ReverseTags())

	require.True(t, doc.UndoStack().Redo())
	assert.Equal(t, []string{"hidden"}, doc.ReverseTags())
}
