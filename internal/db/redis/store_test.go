package redis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/askfolio/internal/db"
)

func newMockStore(t *testing.T) (*Store, *mock.Client) {
	t.Helper()
	c := mock.NewClient(gomock.NewController(t))
	return NewStoreForTest(c), c
}

func isDBError(err error) bool {
	var dbErr *db.Error
	return errors.As(err, &dbErr)
}

// --- store.go ---

func TestPing(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().Do(gomock.Any(), mock.Match("PING")).Return(mock.Result(mock.RedisString("PONG")))
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPing_Error(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().Do(gomock.Any(), mock.Match("PING")).Return(mock.ErrorResult(context.DeadlineExceeded))
	if err := s.Ping(context.Background()); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestWaitForReady_RetriesUntilPong(t *testing.T) {
	s, c := newMockStore(t)
	gomock.InOrder(
		c.EXPECT().Do(gomock.Any(), mock.Match("PING")).Return(mock.ErrorResult(errors.New("connection refused"))),
		c.EXPECT().Do(gomock.Any(), mock.Match("PING")).Return(mock.Result(mock.RedisString("PONG"))),
	)
	if err := s.WaitForReady(context.Background(), time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWaitForReady_Timeout(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().Do(gomock.Any(), mock.Match("PING")).
		Return(mock.ErrorResult(errors.New("connection refused"))).AnyTimes()
	err := s.WaitForReady(context.Background(), 150*time.Millisecond)
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("expected timeout naming the last ping error, got %v", err)
	}
}

func TestNewStore_RequiresAddrs(t *testing.T) {
	if _, err := NewStore(Config{}); err == nil {
		t.Fatal("expected error for empty addrs")
	}
}

// --- hashes.go ---

func TestWriteHashes_SingleRoundTrip(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().
		DoMulti(gomock.Any(),
			mock.Match("HSET", "askfolio:cv:chunk:cv.md_0", "text", "Alice"),
			mock.Match("HSET", "askfolio:cv:sources", "cv.md", "1"),
		).
		Return([]rueidis.RedisResult{mock.Result(mock.RedisInt64(1)), mock.Result(mock.RedisInt64(1))})

	err := s.WriteHashes(context.Background(),
		db.Hash{Key: "askfolio:cv:chunk:cv.md_0", Fields: map[string]string{"text": "Alice"}},
		db.Hash{Key: "askfolio:cv:ignored"},
		db.Hash{Key: "askfolio:cv:sources", Fields: map[string]string{"cv.md": "1"}},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWriteHashes_ErrorNamesKey(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{mock.Result(mock.RedisInt64(1)), mock.ErrorResult(errors.New("OOM"))})

	err := s.WriteHashes(context.Background(),
		db.Hash{Key: "k1", Fields: map[string]string{"f": "v"}},
		db.Hash{Key: "k2", Fields: map[string]string{"f": "v"}},
	)
	if !isDBError(err) || !strings.Contains(err.Error(), "k2") {
		t.Errorf("expected db error naming k2, got %v", err)
	}
}

func TestWriteHashes_Nothing(t *testing.T) {
	s := NewStoreForTest(nil)
	if err := s.WriteHashes(context.Background(), db.Hash{Key: "k"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReadHash(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().
		Do(gomock.Any(), mock.Match("HGETALL", "askfolio:cv:sources")).
		Return(mock.Result(mock.RedisMap(map[string]rueidis.RedisMessage{
			"cv.md":     mock.RedisString("2"),
			"resume.md": mock.RedisString("1"),
		})))

	m, err := s.ReadHash(context.Background(), "askfolio:cv:sources")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m) != 2 || m["cv.md"] != "2" {
		t.Errorf("unexpected map: %v", m)
	}
}

func TestCountKeys(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().Do(gomock.Any(), mock.Match("EXISTS", "k1", "k2", "k3")).Return(mock.Result(mock.RedisInt64(1)))

	n, err := s.CountKeys(context.Background(), "k1", "k2", "k3")
	if err != nil || n != 1 {
		t.Fatalf("CountKeys = %d, %v", n, err)
	}
	if n, err := NewStoreForTest(nil).CountKeys(context.Background()); err != nil || n != 0 {
		t.Errorf("no keys: %d, %v", n, err)
	}
}

func TestDeleteKeys(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().Do(gomock.Any(), mock.Match("DEL", "a", "b")).Return(mock.Result(mock.RedisInt64(2)))
	if err := s.DeleteKeys(context.Background(), "a", "b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReserve_ReturnsFirstValue(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().Do(gomock.Any(), mock.Match("INCRBY", "askfolio:cv:seq", "3")).Return(mock.Result(mock.RedisInt64(7)))

	first, err := s.Reserve(context.Background(), "askfolio:cv:seq", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != 5 {
		t.Errorf("expected 5 (values 5..7), got %d", first)
	}
}

// --- blobs.go ---

func TestGetBlob(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().Do(gomock.Any(), mock.Match("GET", "emb:key")).Return(mock.Result(mock.RedisBlobString("value")))

	data, err := s.GetBlob(context.Background(), "emb:key")
	if err != nil || string(data) != "value" {
		t.Fatalf("GetBlob = %q, %v", data, err)
	}
}

func TestGetBlob_Missing(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().Do(gomock.Any(), mock.Match("GET", "emb:key")).Return(mock.Result(mock.RedisNil()))

	if _, err := s.GetBlob(context.Background(), "emb:key"); !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestPutBlob(t *testing.T) {
	tests := []struct {
		name string
		ttl  time.Duration
		cmd  []string
	}{
		{"with ttl", time.Minute, []string{"SET", "emb:key", "data", "EX", "60"}},
		{"forever", 0, []string{"SET", "emb:key", "data"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, c := newMockStore(t)
			c.EXPECT().Do(gomock.Any(), mock.Match(tt.cmd...)).Return(mock.Result(mock.RedisString("OK")))
			if err := s.PutBlob(context.Background(), "emb:key", []byte("data"), tt.ttl); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

// --- search.go ---

func chunkSchema() *db.Schema {
	return db.NewSchema("askfolio:cv", "askfolio:cv:chunk:").
		Text("text").
		Tag("source_id").
		FlatVector("vector", 4, db.DistanceL2)
}

func TestCreateIndex(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().
		Do(gomock.Any(), mock.Match(
			"FT.CREATE", "askfolio:cv", "ON", "HASH", "PREFIX", "1", "askfolio:cv:chunk:",
			"SCHEMA",
			"text", "TEXT",
			"source_id", "TAG",
			"vector", "VECTOR", "FLAT", "6", "TYPE", "FLOAT32", "DIM", "4", "DISTANCE_METRIC", "L2",
		)).
		Return(mock.Result(mock.RedisString("OK")))

	if err := s.CreateIndex(context.Background(), chunkSchema()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateIndex_AlreadyExists(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "FT.CREATE" })).
		Return(mock.Result(mock.RedisError("Index already exists")))

	if err := s.CreateIndex(context.Background(), chunkSchema()); !errors.Is(err, db.ErrIndexExists) {
		t.Errorf("expected ErrIndexExists, got %v", err)
	}
}

func TestCreateIndex_InvalidSchema(t *testing.T) {
	s := NewStoreForTest(nil)
	if err := s.CreateIndex(context.Background(), db.NewSchema("idx", "p:")); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestDropIndex(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().Do(gomock.Any(), mock.Match("FT.DROPINDEX", "askfolio:cv", "DD")).Return(mock.Result(mock.RedisString("OK")))
	if err := s.DropIndex(context.Background(), "askfolio:cv", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDropIndex_NotFound(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().Do(gomock.Any(), mock.Match("FT.DROPINDEX", "askfolio:cv")).Return(mock.Result(mock.RedisError("Unknown Index name")))
	if err := s.DropIndex(context.Background(), "askfolio:cv", false); !errors.Is(err, db.ErrIndexNotFound) {
		t.Errorf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestIndexExists(t *testing.T) {
	tests := []struct {
		name    string
		result  rueidis.RedisResult
		want    bool
		wantErr bool
	}{
		{"present", mock.Result(mock.RedisArray(mock.RedisString("index_name"), mock.RedisString("askfolio:cv"))), true, false},
		{"absent", mock.Result(mock.RedisError("Unknown index name")), false, false},
		{"down", mock.ErrorResult(errors.New("connection reset")), false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, c := newMockStore(t)
			c.EXPECT().Do(gomock.Any(), mock.Match("FT.INFO", "askfolio:cv")).Return(tt.result)

			got, err := s.IndexExists(context.Background(), "askfolio:cv")
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("IndexExists = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKNN(t *testing.T) {
	s, c := newMockStore(t)

	var sent []string
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			sent = cmd
			return cmd[0] == "FT.SEARCH"
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(2),
			mock.RedisString("askfolio:cv:chunk:cv.md_0"),
			mock.RedisArray(
				mock.RedisString("text"), mock.RedisString("Alice"),
				mock.RedisString("__vector_score"), mock.RedisString("0.25"),
			),
			mock.RedisString("askfolio:cv:chunk:cv.md_1"),
			mock.RedisArray(
				mock.RedisString("text"), mock.RedisString("ProjectX"),
				mock.RedisString("__vector_score"), mock.RedisString("1.5"),
			),
		)))

	res, err := s.KNN(context.Background(), &db.KNNQuery{
		Index:  "askfolio:cv",
		Field:  "vector",
		Vector: []float32{0.1, 0.2},
		K:      2,
		Return: []string{"text"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Total != 2 || len(res.Matches) != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Matches[0].Distance != 0.25 || res.Matches[1].Distance != 1.5 {
		t.Errorf("unexpected distances %v, %v", res.Matches[0].Distance, res.Matches[1].Distance)
	}
	if _, ok := res.Matches[0].Fields["__vector_score"]; ok {
		t.Error("score should not be returned as a field")
	}
	if res.Matches[1].Fields["text"] != "ProjectX" {
		t.Errorf("unexpected fields %v", res.Matches[1].Fields)
	}

	joined := strings.Join(sent, " ")
	for _, want := range []string{"*=>[KNN 2 @vector $vec]", "RETURN 2 text __vector_score", "SORTBY __vector_score", "LIMIT 0 2", "DIALECT 2"} {
		if !strings.Contains(joined, want) {
			t.Errorf("command %q missing %q", joined, want)
		}
	}
}

func TestKNN_Empty(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "FT.SEARCH" })).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(0))))

	res, err := s.KNN(context.Background(), &db.KNNQuery{Index: "idx", Field: "vector", Vector: []float32{0.1}, K: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Matches) != 0 {
		t.Errorf("expected no matches, got %d", len(res.Matches))
	}
}

func TestKNN_Errors(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "FT.SEARCH" })).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	_, err := s.KNN(context.Background(), &db.KNNQuery{Index: "idx", Field: "vector", Vector: []float32{0.1}, K: 10})
	if !errors.Is(err, context.DeadlineExceeded) || !isDBError(err) {
		t.Fatalf("expected wrapped deadline error, got %v", err)
	}

	if _, err := s.KNN(context.Background(), &db.KNNQuery{Index: "idx", Field: "vector", K: 10}); err == nil {
		t.Error("expected validation error for empty vector")
	}
}

func TestCountDocs(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.SEARCH", "askfolio:cv", "*", "LIMIT", "0", "0")).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(42))))

	n, err := s.CountDocs(context.Background(), "askfolio:cv")
	if err != nil || n != 42 {
		t.Fatalf("CountDocs = %d, %v", n, err)
	}
}
