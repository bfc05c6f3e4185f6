package state

import (
	"context"
	"sync"

	"github.com/goliatone/go-layerdoc"
)

// MemoryStore is a minimal in-memory Store implementation intended for tests
// and examples. Snapshots are kept encoded, so callers never share a chunk
// with the store.
type MemoryStore struct {
	mu      sync.RWMutex
	codec   Codec
	records map[string]memoryRecord
}

type memoryRecord struct {
	payload []byte
	meta    Meta
}

// NewMemoryStore returns an empty store. A nil codec means JSON.
func NewMemoryStore(codec Codec) *MemoryStore {
	return &MemoryStore{codec: codecOrDefault(codec), records: map[string]memoryRecord{}}
}

func (s *MemoryStore) Load(_ context.Context, ref Ref) (layerdoc.Chunk, Meta, bool, error) {
	key, err := ref.Identifier()
	if err != nil {
		return nil, Meta{}, false, err
	}

	s.mu.RLock()
	record, ok := s.records[key]
	s.mu.RUnlock()
	if !ok {
		return nil, Meta{}, false, nil
	}
	chunk, err := s.codec.Unmarshal(record.payload)
	if err != nil {
		return nil, Meta{}, false, err
	}
	return chunk, cloneMeta(record.meta), true, nil
}

func (s *MemoryStore) Save(_ context.Context, ref Ref, chunk layerdoc.Chunk, meta Meta) (Meta, error) {
	key, err := ref.Identifier()
	if err != nil {
		return Meta{}, err
	}
	payload, err := s.codec.Marshal(chunk)
	if err != nil {
		return Meta{}, err
	}

	s.mu.Lock()
	s.records[key] = memoryRecord{payload: payload, meta: cloneMeta(meta)}
	s.mu.Unlock()
	return cloneMeta(meta), nil
}

// SaveIfMatch saves chunk while the stored ETag equals etag.
func (s *MemoryStore) SaveIfMatch(_ context.Context, ref Ref, chunk layerdoc.Chunk, meta Meta, etag string) (Meta, error) {
	key, err := ref.Identifier()
	if err != nil {
		return Meta{}, err
	}
	payload, err := s.codec.Marshal(chunk)
	if err != nil {
		return Meta{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if current := s.records[key].meta.ETag; current != etag {
		return Meta{}, etagMismatch(etag, current)
	}
	s.records[key] = memoryRecord{payload: payload, meta: cloneMeta(meta)}
	return cloneMeta(meta), nil
}

// Len returns the number of stored snapshots.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
