package activity

import (
	"strconv"
	"strings"
	"time"
)

// Verbs emitted by the undo stack and documents.
const (
	VerbCommandPushed    = "undo.pushed"
	VerbCommandUndone    = "undo.undone"
	VerbCommandRedone    = "undo.redone"
	VerbLayerActivated   = "layer.activated"
	VerbLayerDeactivated = "layer.deactivated"
)

// Object types carried by document events.
const (
	ObjectCommand = "document.command"
	ObjectLayer   = "document.layer"
)

// CommandEventInput describes one undo stack transition.
type CommandEventInput struct {
	DocumentID string
	CommandID  int
	Text       string
	Index      int
	Metadata   map[string]any
	OccurredAt time.Time
}

// LayerEventInput describes one layer activation change.
type LayerEventInput struct {
	DocumentID string
	LayerID    int
	LayerName  string
	Order      int
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildCommandPushedEvent describes a command entering the undo stack.
func BuildCommandPushedEvent(input CommandEventInput) Event {
	return buildCommandEvent(VerbCommandPushed, input)
}

// BuildCommandUndoneEvent describes a command being undone.
func BuildCommandUndoneEvent(input CommandEventInput) Event {
	return buildCommandEvent(VerbCommandUndone, input)
}

// BuildCommandRedoneEvent describes a command being redone.
func BuildCommandRedoneEvent(input CommandEventInput) Event {
	return buildCommandEvent(VerbCommandRedone, input)
}

// BuildLayerActivationEvent describes a layer turning on or off.
func BuildLayerActivationEvent(input LayerEventInput, active bool) Event {
	verb := VerbLayerDeactivated
	if active {
		verb = VerbLayerActivated
	}
	metadata := cloneMap(input.Metadata)
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["layer_id"] = input.LayerID
	metadata["order"] = input.Order
	if input.LayerName != "" {
		metadata["layer_name"] = input.LayerName
	}
	if input.DocumentID != "" {
		metadata["document_id"] = input.DocumentID
	}
	return Event{
		Verb:       verb,
		ObjectType: ObjectLayer,
		ObjectID:   objectID(input.DocumentID, "layer", input.LayerID),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

func buildCommandEvent(verb string, input CommandEventInput) Event {
	metadata := cloneMap(input.Metadata)
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["command_id"] = input.CommandID
	metadata["index"] = input.Index
	if text := strings.TrimSpace(input.Text); text != "" {
		metadata["text"] = text
	}
	if input.DocumentID != "" {
		metadata["document_id"] = input.DocumentID
	}
	return Event{
		Verb:       verb,
		ObjectType: ObjectCommand,
		ObjectID:   objectID(input.DocumentID, "command", input.Index),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

func objectID(documentID, segment string, n int) string {
	id := segment + "/" + strconv.Itoa(n)
	if documentID = strings.TrimSpace(documentID); documentID != "" {
		return documentID + "/" + id
	}
	return id
}
