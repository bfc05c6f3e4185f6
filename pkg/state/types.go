package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-layerdoc"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var ErrETagMismatch = errors.New("state: etag mismatch")

var ErrNotFound = errors.New("state: snapshot not found")

// Ref identifies one persisted document snapshot.
type Ref struct {
	DocumentID string
}

// Meta is storage-owned metadata used for audit and concurrency control.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Store loads/saves one snapshot for a single document reference.
type Store interface {
	Load(ctx context.Context, ref Ref) (chunk layerdoc.Chunk, meta Meta, ok bool, err error)
	Save(ctx context.Context, ref Ref, chunk layerdoc.Chunk, meta Meta) (Meta, error)
}

// ConditionalStore saves only while the stored ETag still equals etag, in
// one atomic step. A missing snapshot has an empty ETag. Stores return an
// error wrapping ErrETagMismatch when the check fails.
type ConditionalStore interface {
	Store
	SaveIfMatch(ctx context.Context, ref Ref, chunk layerdoc.Chunk, meta Meta, etag string) (Meta, error)
}

func etagMismatch(expected, got string) error {
	return fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, expected, got)
}

// Identifier returns the canonical storage key of the reference.
func (r Ref) Identifier() (string, error) {
	id := strings.TrimSpace(r.DocumentID)
	if id == "" {
		return "", fmt.Errorf("state: document id is required")
	}
	if strings.ContainsAny(id, " /") {
		return "", fmt.Errorf("state: invalid document id %q", r.DocumentID)
	}
	return "documents/" + id, nil
}

// RefFor returns the reference of a document.
func RefFor(doc *layerdoc.Document) Ref {
	return Ref{DocumentID: doc.UUID()}
}

// Repository opens documents from a Store and commits them back.
type Repository struct {
	Store  Store
	Logger zerolog.Logger
	Clock  func() time.Time
}

// NewRepository returns a repository over store with a no-op logger.
func NewRepository(store Store) *Repository {
	return &Repository{Store: store, Logger: zerolog.Nop()}
}

// Open loads the snapshot of ref into a new document built with opts. The
// document keeps the identity stored in the snapshot. Items that could not
// be added are reported through the returned error while the document is
// still returned.
func (r *Repository) Open(ctx context.Context, ref Ref, opts ...layerdoc.Option) (*layerdoc.Document, Meta, error) {
	if r.Store == nil {
		return nil, Meta{}, fmt.Errorf("state: store is required")
	}
	if _, err := ref.Identifier(); err != nil {
		return nil, Meta{}, err
	}

	chunk, meta, ok, err := r.Store.Load(ctx, ref)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("state: load %q: %w", ref.DocumentID, err)
	}
	if !ok {
		return nil, Meta{}, fmt.Errorf("%w: %q", ErrNotFound, ref.DocumentID)
	}

	opts = append([]layerdoc.Option{layerdoc.WithDocumentID(ref.DocumentID), layerdoc.WithLogger(r.Logger)}, opts...)
	doc := layerdoc.NewDocument(opts...)
	readErr := doc.Read(chunk)
	if pruned := doc.PrunedOnRead(); len(pruned) > 0 {
		r.Logger.Warn().Str("document", ref.DocumentID).Int("pruned", len(pruned)).Msg("dropped stale overrides on open")
	}
	if readErr != nil {
		return doc, meta, fmt.Errorf("state: read %q: %w", ref.DocumentID, readErr)
	}
	return doc, meta, nil
}

// Commit writes doc and saves it under its own identity. When meta carries
// an ETag it must match the stored one. The saved snapshot gets a fresh
// SnapshotID and ETag, which are returned.
//
// The ETag check holds against concurrent writers only when the store is a
// ConditionalStore. Other stores check before saving, which protects a
// single writer per document.
func (r *Repository) Commit(ctx context.Context, doc *layerdoc.Document, meta Meta) (Meta, error) {
	if r.Store == nil {
		return Meta{}, fmt.Errorf("state: store is required")
	}
	if doc == nil {
		return Meta{}, fmt.Errorf("state: document is required")
	}
	ref := RefFor(doc)
	if _, err := ref.Identifier(); err != nil {
		return Meta{}, err
	}

	_, loadedMeta, ok, err := r.Store.Load(ctx, ref)
	if err != nil {
		return Meta{}, fmt.Errorf("state: load %q: %w", ref.DocumentID, err)
	}
	if !ok {
		loadedMeta = Meta{}
	}
	if meta.ETag != "" && meta.ETag != loadedMeta.ETag {
		return loadedMeta, etagMismatch(meta.ETag, loadedMeta.ETag)
	}

	chunk := layerdoc.Chunk{}
	doc.Write(chunk)

	saveMeta := mergeMeta(loadedMeta, meta)
	saveMeta.SnapshotID = uuid.NewString()
	saveMeta.ETag = uuid.NewString()
	saveMeta.UpdatedAt = r.now()

	var saved Meta
	if conditional, ok := r.Store.(ConditionalStore); ok && meta.ETag != "" {
		saved, err = conditional.SaveIfMatch(ctx, ref, chunk, saveMeta, meta.ETag)
	} else {
		saved, err = r.Store.Save(ctx, ref, chunk, saveMeta)
	}
	if err != nil {
		return loadedMeta, fmt.Errorf("state: save %q: %w", ref.DocumentID, err)
	}
	doc.UndoStack().SetClean()
	r.Logger.Debug().Str("document", ref.DocumentID).Str("snapshot", saved.SnapshotID).Msg("committed document")
	return saved, nil
}

func (r *Repository) now() time.Time {
	if r.Clock != nil {
		return r.Clock().UTC()
	}
	return time.Now().UTC()
}

func mergeMeta(base, override Meta) Meta {
	out := cloneMeta(base)
	if override.SnapshotID != "" {
		out.SnapshotID = override.SnapshotID
	}
	if override.ETag != "" {
		out.ETag = override.ETag
	}
	if !override.UpdatedAt.IsZero() {
		out.UpdatedAt = override.UpdatedAt
	}
	if override.Extra != nil {
		out.Extra = cloneMeta(override).Extra
	}
	return out
}

func cloneMeta(meta Meta) Meta {
	out := meta
	if meta.Extra == nil {
		return out
	}
	out.Extra = make(map[string]string, len(meta.Extra))
	for k, v := range meta.Extra {
		out.Extra[k] = v
	}
	return out
}
