package redis

import (
	"context"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/askfolio/internal/db"
)

// GetBlob returns the value at key, or db.ErrKeyNotFound.
func (s *Store) GetBlob(ctx context.Context, key string) ([]byte, error) {
	data, err := s.exec(ctx, func(b rueidis.Builder) rueidis.Completed {
		return b.Get().Key(key).Build()
	}).AsBytes()
	if rueidis.IsRedisNil(err) {
		return nil, db.ErrKeyNotFound
	}
	if err != nil {
		return nil, &db.Error{Op: db.OpGet, Key: key, Err: err}
	}
	return data, nil
}

// PutBlob stores value at key, expiring after ttl when ttl is positive.
func (s *Store) PutBlob(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	err := s.exec(ctx, func(b rueidis.Builder) rueidis.Completed {
		set := b.Set().Key(key).Value(rueidis.BinaryString(value))
		if ttl > 0 {
			return set.Ex(ttl).Build()
		}
		return set.Build()
	}).Error()
	if err != nil {
		return &db.Error{Op: db.OpSet, Key: key, Err: err}
	}
	return nil
}
