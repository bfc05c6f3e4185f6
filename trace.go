package layerdoc

import (
	"encoding/json"
)

// Trace records how a property resolved: which layers were consulted, in
// resolution order, and where the effective value came from.
type Trace struct {
	ItemID   int          `json:"item_id"`
	Kind     string       `json:"kind"`
	Property string       `json:"property"`
	Layered  bool         `json:"layered"`
	Source   string       `json:"source"`
	Value    any          `json:"value,omitempty"`
	Layers   []Provenance `json:"layers,omitempty"`
}

// Trace sources.
const (
	SourceLayer   = "layer"
	SourceBase    = "base"
	SourceDefault = "default"
)

// Provenance is one active layer consulted while resolving a property.
type Provenance struct {
	LayerID   int    `json:"layer_id"`
	LayerName string `json:"layer_name,omitempty"`
	Sequence  int    `json:"sequence"`
	Value     any    `json:"value,omitempty"`
	Found     bool   `json:"found"`
}

// Trace explains the current value of p.
func (p *Property) Trace() Trace {
	trace := Trace{
		ItemID:   p.item.id,
		Kind:     p.item.kind,
		Property: p.spec.Name,
		Layered:  p.spec.Layered,
	}
	resolved := false
	if p.spec.Layered && p.item.doc != nil && p.item.id != 0 {
		for _, layer := range p.item.doc.active {
			value, found := layer.ItemProperty(p.item.id, p.spec.Name)
			trace.Layers = append(trace.Layers, Provenance{
				LayerID:   layer.id,
				LayerName: layer.Name(),
				Sequence:  layer.seq,
				Value:     plain(value),
				Found:     found,
			})
			if found && !resolved {
				resolved = true
				trace.Source = SourceLayer
				trace.Value = plain(value)
			}
		}
	}
	if !resolved {
		trace.Source = SourceDefault
		if p.set {
			trace.Source = SourceBase
		}
		trace.Value = plain(p.baseValue())
	}
	return trace
}

// ToJSON serializes the trace for logs and transports.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// TraceFromJSON parses a payload produced by ToJSON.
func TraceFromJSON(payload []byte) (Trace, error) {
	type alias Trace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return Trace{}, err
	}
	return Trace(trace), nil
}
