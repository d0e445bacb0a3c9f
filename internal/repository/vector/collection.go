// Package vector stores a retrieval collection in Redis: one hash per chunk,
// indexed by an FT vector index, plus a per-collection hash of ingested sources.
package vector

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/kailas-cloud/askfolio/internal/db"
	"github.com/kailas-cloud/askfolio/internal/domain"
)

var _ domain.VectorIndex = (*Collection)(nil)

// store is the subset of db.Store a collection needs.
type store interface {
	db.Hashes
	db.VectorSearch
}

const keyPrefix = "askfolio:"

// Hash fields of a chunk.
const (
	fieldText     = "text"
	fieldSourceID = "source_id"
	fieldSeq      = "seq"
	fieldOrd      = "ord"
	fieldVector   = "vector"
)

var returnFields = []string{fieldText, fieldSourceID, fieldSeq, fieldOrd}

// Collection is a named vector index in Redis with a fixed dimension and metric.
type Collection struct {
	store  store
	name   string
	metric domain.Metric
	dim    int
}

// New binds a collection name to the store.
func New(s store, name string, metric domain.Metric, dim int) (*Collection, error) {
	if !db.ValidName(name) {
		return nil, fmt.Errorf("%w: invalid collection name %q", domain.ErrConfig, name)
	}
	if dim <= 0 {
		return nil, fmt.Errorf("%w: collection %s needs a positive dimension", domain.ErrConfig, name)
	}
	if _, err := distanceFor(metric); err != nil {
		return nil, err
	}
	return &Collection{store: s, name: name, metric: metric, dim: dim}, nil
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

// Metric returns the distance function of the collection.
func (c *Collection) Metric() domain.Metric { return c.metric }

func (c *Collection) indexName() string   { return keyPrefix + c.name }
func (c *Collection) chunkPrefix() string { return keyPrefix + c.name + ":chunk:" }
func (c *Collection) sourcesKey() string  { return keyPrefix + c.name + ":sources" }
func (c *Collection) seqKey() string      { return keyPrefix + c.name + ":seq" }
func (c *Collection) chunkKey(id string) string {
	return c.chunkPrefix() + id
}

// Available reports whether the FT index exists.
func (c *Collection) Available(ctx context.Context) (bool, error) {
	ok, err := c.store.IndexExists(ctx, c.indexName())
	if err != nil {
		return false, fmt.Errorf("probe %s: %w", c.name, err)
	}
	return ok, nil
}

// Ensure creates the FT index if it is missing.
func (c *Collection) Ensure(ctx context.Context) error {
	ok, err := c.Available(ctx)
	if err != nil || ok {
		return err
	}
	return c.create(ctx)
}

// Build drops the collection with its chunks and recreates it from entries.
func (c *Collection) Build(ctx context.Context, entries []domain.IndexEntry) error {
	if err := c.validate(entries); err != nil {
		return err
	}

	if err := c.store.DropIndex(ctx, c.indexName(), true); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop %s: %w", c.name, err)
	}
	if err := c.store.DeleteKeys(ctx, c.sourcesKey(), c.seqKey()); err != nil {
		return fmt.Errorf("reset %s: %w", c.name, err)
	}
	if err := c.create(ctx); err != nil {
		return err
	}
	return c.write(ctx, entries)
}

// Add appends entries. Existing chunk ids reject the whole batch with ErrDuplicateID.
func (c *Collection) Add(ctx context.Context, entries []domain.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := c.validate(entries); err != nil {
		return err
	}

	keys := make([]string, len(entries))
	for i := range entries {
		keys[i] = c.chunkKey(entries[i].ID)
	}
	n, err := c.store.CountKeys(ctx, keys...)
	if err != nil {
		return fmt.Errorf("check ids: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("%w: %d of %d ids already in %s", domain.ErrDuplicateID, n, len(entries), c.name)
	}

	if err := c.Ensure(ctx); err != nil {
		return err
	}
	return c.write(ctx, entries)
}

// Search returns the k nearest chunks ordered by (distance, insertion order).
func (c *Collection) Search(ctx context.Context, vector []float32, k int) ([]domain.Hit, error) {
	if k <= 0 {
		return []domain.Hit{}, nil
	}
	if len(vector) != c.dim {
		return nil, fmt.Errorf("%w: query has %d, collection has %d", domain.ErrDimensionMismatch, len(vector), c.dim)
	}

	// Redis breaks distance ties arbitrarily, so one extra row is fetched to
	// see past the k-th hit; while it ties, the window doubles until every
	// tied row is in hand and the insertion-order tie-break can cut at k.
	var rows []ranked
	for n := k + 1; ; n *= 2 {
		got, err := c.knn(ctx, vector, n)
		if err != nil {
			return nil, err
		}
		rows = got
		if len(rows) < n || rows[k-1].hit.Distance != rows[len(rows)-1].hit.Distance {
			break
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].hit.Distance != rows[j].hit.Distance {
			return rows[i].hit.Distance < rows[j].hit.Distance
		}
		return rows[i].ord < rows[j].ord
	})
	if len(rows) > k {
		rows = rows[:k]
	}

	hits := make([]domain.Hit, len(rows))
	for i := range rows {
		hits[i] = rows[i].hit
	}
	return hits, nil
}

type ranked struct {
	hit domain.Hit
	ord int64
}

// knn returns up to n rows ordered by distance.
func (c *Collection) knn(ctx context.Context, vector []float32, n int) ([]ranked, error) {
	res, err := c.store.KNN(ctx, &db.KNNQuery{
		Index:  c.indexName(),
		Field:  fieldVector,
		Vector: vector,
		K:      n,
		Return: returnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", c.name, err)
	}

	rows := make([]ranked, 0, len(res.Matches))
	for _, e := range res.Matches {
		seq, _ := strconv.Atoi(e.Fields[fieldSeq])
		ord, _ := strconv.ParseInt(e.Fields[fieldOrd], 10, 64)
		dist := e.Distance
		if c.metric == domain.MetricL2 {
			// Redis reports squared L2.
			dist = math.Sqrt(max(0, dist))
		}
		rows = append(rows, ranked{
			hit: domain.Hit{
				ID:       strings.TrimPrefix(e.Key, c.chunkPrefix()),
				Text:     e.Fields[fieldText],
				Meta:     domain.ChunkMeta{SourceID: e.Fields[fieldSourceID], SequenceIndex: seq},
				Distance: dist,
			},
			ord: ord,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].hit.Distance < rows[j].hit.Distance })
	return rows, nil
}

// SourceIDs returns the sources ingested into the collection.
func (c *Collection) SourceIDs(ctx context.Context) (map[string]struct{}, error) {
	m, err := c.store.ReadHash(ctx, c.sourcesKey())
	if err != nil {
		return nil, fmt.Errorf("list sources of %s: %w", c.name, err)
	}
	out := make(map[string]struct{}, len(m))
	for src := range m {
		out[src] = struct{}{}
	}
	return out, nil
}

// Len returns the number of indexed chunks.
func (c *Collection) Len(ctx context.Context) (int, error) {
	n, err := c.store.CountDocs(ctx, c.indexName())
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", c.name, err)
	}
	return n, nil
}

func (c *Collection) create(ctx context.Context) error {
	distance, err := distanceFor(c.metric)
	if err != nil {
		return err
	}
	schema := db.NewSchema(c.indexName(), c.chunkPrefix()).
		Text(fieldText).
		Tag(fieldSourceID).
		Numeric(fieldSeq, fieldOrd).
		FlatVector(fieldVector, c.dim, distance)
	if err := c.store.CreateIndex(ctx, schema); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create %s: %w", c.name, err)
	}
	return nil
}

func (c *Collection) validate(entries []domain.IndexEntry) error {
	if _, err := domain.CheckDimensions(entries, c.dim); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(entries))
	for i := range entries {
		if _, dup := seen[entries[i].ID]; dup {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateID, entries[i].ID)
		}
		seen[entries[i].ID] = struct{}{}
	}
	return nil
}

// write stores entries with consecutive insertion ordinals and bumps source counts.
func (c *Collection) write(ctx context.Context, entries []domain.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	first, err := c.store.Reserve(ctx, c.seqKey(), int64(len(entries)))
	if err != nil {
		return fmt.Errorf("allocate ordinals: %w", err)
	}

	hashes := make([]db.Hash, len(entries), len(entries)+1)
	perSource := make(map[string]int)
	for i := range entries {
		e := &entries[i]
		hashes[i] = db.Hash{
			Key: c.chunkKey(e.ID),
			Fields: map[string]string{
				fieldText:     e.Text,
				fieldSourceID: e.Meta.SourceID,
				fieldSeq:      strconv.Itoa(e.Meta.SequenceIndex),
				fieldOrd:      strconv.FormatInt(first+int64(i), 10),
				fieldVector:   db.Float32Blob(e.Vector),
			},
		}
		perSource[e.Meta.SourceID]++
	}

	sources := make(map[string]string, len(perSource))
	for src, n := range perSource {
		sources[src] = strconv.Itoa(n)
	}
	hashes = append(hashes, db.Hash{Key: c.sourcesKey(), Fields: sources})

	if err := c.store.WriteHashes(ctx, hashes...); err != nil {
		return fmt.Errorf("store chunks: %w", err)
	}
	return nil
}

func distanceFor(m domain.Metric) (db.Distance, error) {
	switch m {
	case domain.MetricL2:
		return db.DistanceL2, nil
	case domain.MetricCosine:
		return db.DistanceCosine, nil
	default:
		return "", fmt.Errorf("%w: unknown metric %q", domain.ErrConfig, m)
	}
}

