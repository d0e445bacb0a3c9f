package vector

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/kailas-cloud/askfolio/internal/db"
)

// fakeStore keeps hashes and schemas in memory and answers KNN from knnResult.
type fakeStore struct {
	mu      sync.Mutex
	hashes  map[string]map[string]string
	counter map[string]int64
	indexes map[string]*db.Schema
	dropped []string
	writes  int

	knnResult *db.KNNResult
	knnErr    error
	lastKNN   *db.KNNQuery
	knnKs     []int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		hashes:  make(map[string]map[string]string),
		counter: make(map[string]int64),
		indexes: make(map[string]*db.Schema),
	}
}

func (f *fakeStore) WriteHashes(_ context.Context, hashes ...db.Hash) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	for _, h := range hashes {
		dst, ok := f.hashes[h.Key]
		if !ok {
			dst = make(map[string]string, len(h.Fields))
			f.hashes[h.Key] = dst
		}
		for k, v := range h.Fields {
			dst[k] = v
		}
	}
	return nil
}

func (f *fakeStore) ReadHash(_ context.Context, key string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.hashes[key]))
	for k, v := range f.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (f *fakeStore) CountKeys(_ context.Context, keys ...string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, k := range keys {
		if _, ok := f.hashes[k]; ok {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) DeleteKeys(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.hashes, k)
		delete(f.counter, k)
	}
	return nil
}

func (f *fakeStore) Reserve(_ context.Context, counter string, n int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	first := f.counter[counter] + 1
	f.counter[counter] += n
	return first, nil
}

func (f *fakeStore) CreateIndex(_ context.Context, schema *db.Schema) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.indexes[schema.Index]; ok {
		return db.ErrIndexExists
	}
	f.indexes[schema.Index] = schema
	return nil
}

func (f *fakeStore) DropIndex(_ context.Context, name string, withDocs bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	schema, ok := f.indexes[name]
	if !ok {
		return db.ErrIndexNotFound
	}
	delete(f.indexes, name)
	f.dropped = append(f.dropped, name)
	if withDocs {
		for k := range f.hashes {
			if strings.HasPrefix(k, schema.Prefix) {
				delete(f.hashes, k)
			}
		}
	}
	return nil
}

func (f *fakeStore) IndexExists(_ context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.indexes[name]
	return ok, nil
}

func (f *fakeStore) KNN(_ context.Context, q *db.KNNQuery) (*db.KNNResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastKNN = q
	f.knnKs = append(f.knnKs, q.K)
	if f.knnErr != nil {
		return nil, f.knnErr
	}
	if f.knnResult == nil {
		return &db.KNNResult{}, nil
	}
	// Like Redis: nearest first, ties in stored order, at most K rows.
	matches := slices.Clone(f.knnResult.Matches)
	slices.SortStableFunc(matches, func(a, b db.Match) int { return cmp.Compare(a.Distance, b.Distance) })
	if len(matches) > q.K {
		matches = matches[:q.K]
	}
	return &db.KNNResult{Total: f.knnResult.Total, Matches: matches}, nil
}

func (f *fakeStore) CountDocs(_ context.Context, index string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	schema, ok := f.indexes[index]
	if !ok {
		return 0, db.ErrIndexNotFound
	}
	n := 0
	for k := range f.hashes {
		if strings.HasPrefix(k, schema.Prefix) {
			n++
		}
	}
	return n, nil
}
