package flat

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/kailas-cloud/askfolio/internal/domain"
)

func entry(id, src string, seq int, v ...float32) domain.IndexEntry {
	return domain.IndexEntry{
		ID:     id,
		Vector: v,
		Text:   "text " + id,
		Meta:   domain.ChunkMeta{SourceID: src, SequenceIndex: seq},
	}
}

func TestBuild_DimensionMismatch(t *testing.T) {
	x := New(domain.MetricL2)
	err := x.Build(context.Background(), []domain.IndexEntry{
		entry("a", "s", 0, 1, 0),
		entry("b", "s", 1, 1, 0, 0),
	})
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	if n, _ := x.Len(context.Background()); n != 0 {
		t.Errorf("expected empty index after failed build, got %d", n)
	}
}

func TestSearch_OrderAndTies(t *testing.T) {
	ctx := context.Background()
	x := New(domain.MetricL2)
	if err := x.Build(ctx, []domain.IndexEntry{
		entry("far", "s", 0, 10, 0),
		entry("tie1", "s", 1, 0, 1),
		entry("near", "s", 2, 1, 0),
		entry("tie2", "s", 3, 0, -1),
	}); err != nil {
		t.Fatalf("Build: %v", err)
	}

	hits, err := x.Search(ctx, []float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	want := []string{"near", "tie1", "tie2", "far"}
	if len(hits) != len(want) {
		t.Fatalf("expected %d hits, got %d", len(want), len(hits))
	}
	for i, id := range want {
		if hits[i].ID != id {
			t.Errorf("hit[%d] = %s, want %s", i, hits[i].ID, id)
		}
	}
	if hits[0].Distance != 0 {
		t.Errorf("expected zero distance for exact match, got %f", hits[0].Distance)
	}
	if math.Abs(hits[1].Distance-math.Sqrt2) > 1e-9 {
		t.Errorf("unexpected tie distance %f", hits[1].Distance)
	}
}

func TestSearch_KBounds(t *testing.T) {
	ctx := context.Background()
	x := New(domain.MetricCosine)
	_ = x.Build(ctx, []domain.IndexEntry{entry("a", "s", 0, 1, 0), entry("b", "s", 1, 0, 1)})

	hits, err := x.Search(ctx, []float32{1, 1}, 2)
	if err != nil || len(hits) != 2 {
		t.Fatalf("k=2: got %d hits, err %v", len(hits), err)
	}
	hits, _ = x.Search(ctx, []float32{1, 1}, 1)
	if len(hits) != 1 {
		t.Errorf("k=1: expected 1 hit, got %d", len(hits))
	}
	hits, _ = x.Search(ctx, []float32{1, 1}, 0)
	if len(hits) != 0 {
		t.Errorf("k=0: expected no hits, got %d", len(hits))
	}
}

func TestSearch_CosineDistance(t *testing.T) {
	ctx := context.Background()
	x := New(domain.MetricCosine)
	_ = x.Build(ctx, []domain.IndexEntry{entry("opp", "s", 0, -1, 0), entry("same", "s", 1, 5, 0)})

	hits, _ := x.Search(ctx, []float32{1, 0}, 2)
	if hits[0].ID != "same" || math.Abs(hits[0].Distance) > 1e-9 {
		t.Errorf("unexpected first hit %+v", hits[0])
	}
	if math.Abs(hits[1].Distance-2) > 1e-9 {
		t.Errorf("expected distance 2 for opposite vector, got %f", hits[1].Distance)
	}
}

func TestSearch_QueryDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	x := New(domain.MetricL2)
	_ = x.Build(ctx, []domain.IndexEntry{entry("a", "s", 0, 1, 0)})
	if _, err := x.Search(ctx, []float32{1, 0, 0}, 1); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestAdd_DuplicateRejectsBatch(t *testing.T) {
	ctx := context.Background()
	x := New(domain.MetricL2)
	_ = x.Build(ctx, []domain.IndexEntry{entry("a", "s", 0, 1, 0)})

	err := x.Add(ctx, []domain.IndexEntry{entry("b", "t", 0, 0, 1), entry("a", "t", 1, 0, 1)})
	if !errors.Is(err, domain.ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
	if n, _ := x.Len(ctx); n != 1 {
		t.Errorf("expected batch to be rejected whole, len = %d", n)
	}

	if err := x.Add(ctx, []domain.IndexEntry{entry("b", "t", 0, 0, 1)}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	srcs, _ := x.SourceIDs(ctx)
	if _, ok := srcs["t"]; !ok || len(srcs) != 2 {
		t.Errorf("unexpected source ids %v", srcs)
	}
}

func TestAdd_DimensionFixedByBuild(t *testing.T) {
	ctx := context.Background()
	x := New(domain.MetricL2)
	_ = x.Build(ctx, []domain.IndexEntry{entry("a", "s", 0, 1, 0)})
	if err := x.Add(ctx, []domain.IndexEntry{entry("b", "s", 1, 1, 0, 0)}); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestEntries_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	x := New(domain.MetricL2)
	_ = x.Build(ctx, []domain.IndexEntry{entry("a", "s", 0, 1, 0)})

	got := x.Entries()
	got[0].Vector[0] = 99

	hits, _ := x.Search(ctx, []float32{1, 0}, 1)
	if hits[0].Distance != 0 {
		t.Error("mutating Entries() result changed the index")
	}
}
