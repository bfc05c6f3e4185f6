// Package layerdoc is the document model of a layered diagram: items carry
// typed properties whose effective values depend on which layers are
// active, documents own items and layers, and every edit can be recorded on
// a document-scoped undo stack.
package layerdoc

import "errors"

var (
	// ErrUnknownProperty is returned when a property name is not declared on
	// an item.
	ErrUnknownProperty = errors.New("layerdoc: unknown property")

	// ErrReservedProperty is returned when declaring a property under a
	// reserved name.
	ErrReservedProperty = errors.New("layerdoc: reserved property name")

	// ErrDuplicateProperty is returned when a property name is declared twice
	// on the same item or kind.
	ErrDuplicateProperty = errors.New("layerdoc: duplicate property")

	// ErrUnknownKind is returned for an item kind missing from the
	// registration table.
	ErrUnknownKind = errors.New("layerdoc: unknown kind")

	// ErrKindRegistered is returned when a kind is registered twice.
	ErrKindRegistered = errors.New("layerdoc: kind already registered")

	// ErrDuplicateID is returned when an item arrives with an id already held
	// by a different item.
	ErrDuplicateID = errors.New("layerdoc: duplicate item id")

	// ErrUnknownTag is returned when a tag is not defined on the document.
	ErrUnknownTag = errors.New("layerdoc: unknown tag")

	// ErrTagExists is returned when creating a tag that is already defined.
	ErrTagExists = errors.New("layerdoc: tag already exists")

	// ErrLayerIndex is returned for a layer position outside the layer list.
	ErrLayerIndex = errors.New("layerdoc: layer index out of range")

	// ErrNotInDocument is returned for operations that need a registered item.
	ErrNotInDocument = errors.New("layerdoc: item is not in a document")

	// ErrBatchUnderflow is the panic value raised when a batch is closed more
	// often than it was opened.
	ErrBatchUnderflow = errors.New("layerdoc: batch depth below zero")
)

// reservedNames cannot be used as property names. "id" and "kind" are
// written by the serializer itself.
var reservedNames = map[string]struct{}{
	"properties": {},
	"opacity":    {},
	"id":         {},
	"kind":       {},
}
