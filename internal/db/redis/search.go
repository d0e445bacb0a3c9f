package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/askfolio/internal/db"
)

const scoreField = "__vector_score"

var missingIndex = []string{"unknown index name", "no such index"}

// CreateIndex runs FT.CREATE for schema.
func (s *Store) CreateIndex(ctx context.Context, schema *db.Schema) error {
	args, err := schema.Args()
	if err != nil {
		return err
	}
	if err := s.ft(ctx, "FT.CREATE", args...).Error(); err != nil {
		if serverSays(err, "index already exists") {
			return db.ErrIndexExists
		}
		return &db.Error{Op: db.OpCreateIndex, Key: schema.Index, Err: err}
	}
	return nil
}

// DropIndex runs FT.DROPINDEX, with DD when withDocs is set.
func (s *Store) DropIndex(ctx context.Context, name string, withDocs bool) error {
	args := []string{name}
	if withDocs {
		args = append(args, "DD")
	}
	if err := s.ft(ctx, "FT.DROPINDEX", args...).Error(); err != nil {
		if serverSays(err, missingIndex...) {
			return db.ErrIndexNotFound
		}
		return &db.Error{Op: db.OpDropIndex, Key: name, Err: err}
	}
	return nil
}

// IndexExists probes the index with FT.INFO.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	err := s.ft(ctx, "FT.INFO", name).Error()
	switch {
	case err == nil:
		return true, nil
	case serverSays(err, missingIndex...):
		return false, nil
	default:
		return false, &db.Error{Op: db.OpIndexInfo, Key: name, Err: err}
	}
}

// KNN runs a DIALECT 2 FT.SEARCH sorted by raw vector distance.
func (s *Store) KNN(ctx context.Context, q *db.KNNQuery) (*db.KNNResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	k := strconv.Itoa(q.K)
	args := []string{q.Index, fmt.Sprintf("*=>[KNN %d @%s $vec]", q.K, q.Field)}
	if len(q.Return) > 0 {
		args = append(args, "RETURN", strconv.Itoa(len(q.Return)+1))
		args = append(args, q.Return...)
		args = append(args, scoreField)
	}
	args = append(args,
		"SORTBY", scoreField,
		"LIMIT", "0", k,
		"PARAMS", "2", "vec", db.Float32Blob(q.Vector),
		"DIALECT", "2",
	)

	raw, err := s.ft(ctx, "FT.SEARCH", args...).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Key: q.Index, Err: err}
	}
	return parseMatches(raw)
}

// CountDocs returns the number of hashes in index.
func (s *Store) CountDocs(ctx context.Context, index string) (int, error) {
	raw, err := s.ft(ctx, "FT.SEARCH", index, "*", "LIMIT", "0", "0").ToArray()
	if err != nil {
		return 0, &db.Error{Op: db.OpSearch, Key: index, Err: err}
	}
	if len(raw) == 0 {
		return 0, nil
	}
	n, err := raw[0].AsInt64()
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", index, err)
	}
	return int(n), nil
}

// parseMatches reads the RESP2 reply [total, key1, [f, v, ...], key2, ...].
func parseMatches(raw []rueidis.RedisMessage) (*db.KNNResult, error) {
	if len(raw) == 0 {
		return &db.KNNResult{}, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}

	res := &db.KNNResult{Total: int(total)}
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		pairs, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}
		m := db.Match{Key: key, Fields: make(map[string]string, len(pairs)/2)}
		for j := 0; j+1 < len(pairs); j += 2 {
			name, errName := pairs[j].ToString()
			value, errValue := pairs[j+1].ToString()
			if errName != nil || errValue != nil {
				continue
			}
			if name == scoreField {
				m.Distance, _ = strconv.ParseFloat(value, 64)
				continue
			}
			m.Fields[name] = value
		}
		res.Matches = append(res.Matches, m)
	}
	return res, nil
}
