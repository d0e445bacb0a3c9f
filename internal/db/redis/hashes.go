package redis

import (
	"context"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/askfolio/internal/db"
)

// WriteHashes pipelines one HSET per hash. Hashes without fields are skipped.
func (s *Store) WriteHashes(ctx context.Context, hashes ...db.Hash) error {
	cmds := make([]rueidis.Completed, 0, len(hashes))
	keys := make([]string, 0, len(hashes))
	for _, h := range hashes {
		if len(h.Fields) == 0 {
			continue
		}
		fv := s.client.B().Hset().Key(h.Key).FieldValue()
		for f, v := range h.Fields {
			fv = fv.FieldValue(f, v)
		}
		cmds = append(cmds, fv.Build())
		keys = append(keys, h.Key)
	}
	if len(cmds) == 0 {
		return nil
	}

	for i, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return &db.Error{Op: db.OpHSet, Key: keys[i], Err: err}
		}
	}
	return nil
}

// ReadHash returns all fields of key.
func (s *Store) ReadHash(ctx context.Context, key string) (map[string]string, error) {
	m, err := s.exec(ctx, func(b rueidis.Builder) rueidis.Completed {
		return b.Hgetall().Key(key).Build()
	}).AsStrMap()
	if err != nil {
		return nil, &db.Error{Op: db.OpHGetAll, Key: key, Err: err}
	}
	return m, nil
}

// CountKeys returns how many of keys exist.
func (s *Store) CountKeys(ctx context.Context, keys ...string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := s.exec(ctx, func(b rueidis.Builder) rueidis.Completed {
		return b.Exists().Key(keys...).Build()
	}).AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpExists, Err: err}
	}
	return int(n), nil
}

// DeleteKeys removes keys; missing keys are ignored.
func (s *Store) DeleteKeys(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	err := s.exec(ctx, func(b rueidis.Builder) rueidis.Completed {
		return b.Del().Key(keys...).Build()
	}).Error()
	if err != nil {
		return &db.Error{Op: db.OpDel, Err: err}
	}
	return nil
}

// Reserve advances counter by n with INCRBY and returns the first reserved value.
func (s *Store) Reserve(ctx context.Context, counter string, n int64) (int64, error) {
	last, err := s.exec(ctx, func(b rueidis.Builder) rueidis.Completed {
		return b.Incrby().Key(counter).Increment(n).Build()
	}).AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpIncrBy, Key: counter, Err: err}
	}
	return last - n + 1, nil
}
