package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-layerdoc"
	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "layerdoc:"

// RedisStore keeps one hash per document holding the encoded snapshot and
// its metadata.
type RedisStore struct {
	client *redis.Client
	prefix string
	codec  Codec
	ttl    time.Duration
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisPrefix replaces the "layerdoc:" key prefix.
func WithRedisPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// WithRedisCodec sets the snapshot codec. JSON is used by default.
func WithRedisCodec(codec Codec) RedisOption {
	return func(s *RedisStore) {
		s.codec = codecOrDefault(codec)
	}
}

// WithRedisTTL expires snapshots ttl after their last save. Zero keeps them.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// NewRedisStore connects to redisURL and checks the connection.
func NewRedisStore(redisURL string, opts ...RedisOption) (*RedisStore, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("state: parse redis url: %w", err)
	}

	client := redis.NewClient(options)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("state: connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, opts...), nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client.
func NewRedisStoreWithClient(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client: client,
		prefix: defaultRedisPrefix,
		codec:  JSONCodec{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *RedisStore) key(ref Ref) (string, error) {
	id, err := ref.Identifier()
	if err != nil {
		return "", err
	}
	return s.prefix + id, nil
}

func (s *RedisStore) Load(ctx context.Context, ref Ref) (layerdoc.Chunk, Meta, bool, error) {
	key, err := s.key(ref)
	if err != nil {
		return nil, Meta{}, false, err
	}

	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, Meta{}, false, fmt.Errorf("state: redis load: %w", err)
	}
	payload, ok := fields["payload"]
	if !ok {
		return nil, Meta{}, false, nil
	}

	chunk, err := s.codec.Unmarshal([]byte(payload))
	if err != nil {
		return nil, Meta{}, false, err
	}
	var meta Meta
	if raw := fields["meta"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			return nil, Meta{}, false, fmt.Errorf("state: redis meta: %w", err)
		}
	}
	return chunk, meta, true, nil
}

func (s *RedisStore) Save(ctx context.Context, ref Ref, chunk layerdoc.Chunk, meta Meta) (Meta, error) {
	key, err := s.key(ref)
	if err != nil {
		return Meta{}, err
	}
	payload, err := s.codec.Marshal(chunk)
	if err != nil {
		return Meta{}, err
	}
	rawMeta, err := json.Marshal(meta)
	if err != nil {
		return Meta{}, fmt.Errorf("state: redis meta: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, s.write(ctx, key, payload, rawMeta))
	if err != nil {
		return Meta{}, fmt.Errorf("state: redis save: %w", err)
	}
	return cloneMeta(meta), nil
}

// SaveIfMatch saves chunk while the stored ETag equals etag. The key is
// watched between the check and the write, so a concurrent save makes the
// transaction fail with ErrETagMismatch.
func (s *RedisStore) SaveIfMatch(ctx context.Context, ref Ref, chunk layerdoc.Chunk, meta Meta, etag string) (Meta, error) {
	key, err := s.key(ref)
	if err != nil {
		return Meta{}, err
	}
	payload, err := s.codec.Marshal(chunk)
	if err != nil {
		return Meta{}, err
	}
	rawMeta, err := json.Marshal(meta)
	if err != nil {
		return Meta{}, fmt.Errorf("state: redis meta: %w", err)
	}

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, key, "meta").Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		var current Meta
		if raw != "" {
			if err := json.Unmarshal([]byte(raw), &current); err != nil {
				return fmt.Errorf("state: redis meta: %w", err)
			}
		}
		if current.ETag != etag {
			return etagMismatch(etag, current.ETag)
		}
		_, err = tx.TxPipelined(ctx, s.write(ctx, key, payload, rawMeta))
		return err
	}, key)
	switch {
	case err == nil:
		return cloneMeta(meta), nil
	case errors.Is(err, ErrETagMismatch):
		return Meta{}, err
	case errors.Is(err, redis.TxFailedErr):
		return Meta{}, fmt.Errorf("%w: %q changed during save", ErrETagMismatch, ref.DocumentID)
	default:
		return Meta{}, fmt.Errorf("state: redis save: %w", err)
	}
}

func (s *RedisStore) write(ctx context.Context, key string, payload, rawMeta []byte) func(redis.Pipeliner) error {
	return func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "payload", payload, "meta", rawMeta, "codec", s.codec.Name())
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	}
}

// Delete removes the snapshot of ref.
func (s *RedisStore) Delete(ctx context.Context, ref Ref) error {
	key, err := s.key(ref)
	if err != nil {
		return err
	}
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("state: redis delete: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
