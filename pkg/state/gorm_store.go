package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-layerdoc"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DocumentSnapshot is the row a GormStore keeps per document.
type DocumentSnapshot struct {
	DocumentID string            `gorm:"primaryKey;size:255"`
	Codec      string            `gorm:"size:32;not null"`
	Payload    []byte            `gorm:"not null"`
	SnapshotID string            `gorm:"size:64"`
	ETag       string            `gorm:"column:etag;size:64"`
	SavedAt    time.Time         `gorm:"index"`
	Extra      datatypes.JSONMap `gorm:"type:json"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName overrides the table name for DocumentSnapshot
func (DocumentSnapshot) TableName() string {
	return "layerdoc_snapshots"
}

// GormStore persists snapshots through gorm, one row per document.
type GormStore struct {
	db    *gorm.DB
	codec Codec
}

// NewGormStore wraps db. A nil codec means JSON. Call Migrate before the
// first use on a fresh database.
func NewGormStore(db *gorm.DB, codec Codec) *GormStore {
	return &GormStore{db: db, codec: codecOrDefault(codec)}
}

// Migrate creates or updates the snapshot table.
func (s *GormStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&DocumentSnapshot{}); err != nil {
		return fmt.Errorf("state: migrate: %w", err)
	}
	return nil
}

func (s *GormStore) Load(ctx context.Context, ref Ref) (layerdoc.Chunk, Meta, bool, error) {
	if _, err := ref.Identifier(); err != nil {
		return nil, Meta{}, false, err
	}

	var row DocumentSnapshot
	err := s.db.WithContext(ctx).Where("document_id = ?", ref.DocumentID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, Meta{}, false, nil
	}
	if err != nil {
		return nil, Meta{}, false, fmt.Errorf("state: gorm load: %w", err)
	}
	if row.Codec != "" && row.Codec != s.codec.Name() {
		return nil, Meta{}, false, fmt.Errorf("state: snapshot %q encoded as %s, store reads %s", ref.DocumentID, row.Codec, s.codec.Name())
	}

	chunk, err := s.codec.Unmarshal(row.Payload)
	if err != nil {
		return nil, Meta{}, false, err
	}
	meta := Meta{
		SnapshotID: row.SnapshotID,
		ETag:       row.ETag,
		UpdatedAt:  row.SavedAt,
		Extra:      extraFromJSON(row.Extra),
	}
	return chunk, meta, true, nil
}

func (s *GormStore) Save(ctx context.Context, ref Ref, chunk layerdoc.Chunk, meta Meta) (Meta, error) {
	if _, err := ref.Identifier(); err != nil {
		return Meta{}, err
	}
	payload, err := s.codec.Marshal(chunk)
	if err != nil {
		return Meta{}, err
	}

	row := DocumentSnapshot{
		DocumentID: ref.DocumentID,
		Codec:      s.codec.Name(),
		Payload:    payload,
		SnapshotID: meta.SnapshotID,
		ETag:       meta.ETag,
		SavedAt:    meta.UpdatedAt,
		Extra:      extraToJSON(meta.Extra),
	}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "document_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"codec", "payload", "snapshot_id", "etag", "saved_at", "extra", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return Meta{}, fmt.Errorf("state: gorm save: %w", err)
	}
	return cloneMeta(meta), nil
}

// SaveIfMatch saves chunk while the stored ETag equals etag. The update is
// conditional on the etag column, so a concurrent save leaves no row to
// update and the call fails with ErrETagMismatch.
func (s *GormStore) SaveIfMatch(ctx context.Context, ref Ref, chunk layerdoc.Chunk, meta Meta, etag string) (Meta, error) {
	if _, err := ref.Identifier(); err != nil {
		return Meta{}, err
	}
	payload, err := s.codec.Marshal(chunk)
	if err != nil {
		return Meta{}, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&DocumentSnapshot{}).
			Where("document_id = ? AND etag = ?", ref.DocumentID, etag).
			Updates(map[string]any{
				"codec":       s.codec.Name(),
				"payload":     payload,
				"snapshot_id": meta.SnapshotID,
				"etag":        meta.ETag,
				"saved_at":    meta.UpdatedAt,
				"extra":       extraToJSON(meta.Extra),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 1 {
			return nil
		}
		if etag != "" {
			return fmt.Errorf("%w: %q no longer at %q", ErrETagMismatch, ref.DocumentID, etag)
		}
		result = tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&DocumentSnapshot{
			DocumentID: ref.DocumentID,
			Codec:      s.codec.Name(),
			Payload:    payload,
			SnapshotID: meta.SnapshotID,
			ETag:       meta.ETag,
			SavedAt:    meta.UpdatedAt,
			Extra:      extraToJSON(meta.Extra),
		})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: %q no longer at %q", ErrETagMismatch, ref.DocumentID, etag)
		}
		return nil
	})
	if errors.Is(err, ErrETagMismatch) {
		return Meta{}, err
	}
	if err != nil {
		return Meta{}, fmt.Errorf("state: gorm save: %w", err)
	}
	return cloneMeta(meta), nil
}

// Delete removes the snapshot of ref.
func (s *GormStore) Delete(ctx context.Context, ref Ref) error {
	if _, err := ref.Identifier(); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Where("document_id = ?", ref.DocumentID).Delete(&DocumentSnapshot{}).Error
	if err != nil {
		return fmt.Errorf("state: gorm delete: %w", err)
	}
	return nil
}

func extraToJSON(extra map[string]string) datatypes.JSONMap {
	if len(extra) == 0 {
		return nil
	}
	out := make(datatypes.JSONMap, len(extra))
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func extraFromJSON(extra datatypes.JSONMap) map[string]string {
	if len(extra) == 0 {
		return nil
	}
	out := make(map[string]string, len(extra))
	for k, v := range extra {
		out[k] = fmt.Sprint(v)
	}
	return out
}
