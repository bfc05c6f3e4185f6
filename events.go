package layerdoc

// EventKind enumerates document notifications.
type EventKind int

const (
	EventItemAdded EventKind = iota + 1
	EventItemRemoved
	EventPropertyChanged
	EventDocumentPropertyChanged
	EventLayerAdded
	EventLayerChanged
	EventLayerRemoved
	EventActiveLayersChanged
	EventLayerOrderChanged
)

var eventNames = map[EventKind]string{
	EventItemAdded:               "item_added",
	EventItemRemoved:             "item_removed",
	EventPropertyChanged:         "property_changed",
	EventDocumentPropertyChanged: "document_property_changed",
	EventLayerAdded:              "layer_added",
	EventLayerChanged:            "layer_changed",
	EventLayerRemoved:            "layer_removed",
	EventActiveLayersChanged:     "active_layers_changed",
	EventLayerOrderChanged:       "layer_order_changed",
}

func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return "unknown"
}

// Event is one document notification. Item is set for item events, Layer
// for layer events, Property for property events and ActiveLayers for
// EventActiveLayersChanged.
type Event struct {
	Kind         EventKind
	Item         Entity
	Layer        *Layer
	Property     *Property
	ActiveLayers []*Layer
}

// Listener receives document events synchronously, in registration order.
type Listener interface {
	OnDocumentEvent(Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(Event)

// OnDocumentEvent implements Listener.
func (f ListenerFunc) OnDocumentEvent(e Event) {
	if f != nil {
		f(e)
	}
}

// ListenerID identifies a registration for RemoveListener.
type ListenerID int

// ViewListener is the callback shape of property-bound view models.
type ViewListener interface {
	OnItemProperty(p *Property)
	OnDocumentProperty(p *Property)
}

// ViewAdapter forwards property events to v.
func ViewAdapter(v ViewListener) Listener {
	return ListenerFunc(func(e Event) {
		switch e.Kind {
		case EventPropertyChanged:
			v.OnItemProperty(e.Property)
		case EventDocumentPropertyChanged:
			v.OnDocumentProperty(e.Property)
		}
	})
}

type listenerEntry struct {
	id       ListenerID
	listener Listener
}
