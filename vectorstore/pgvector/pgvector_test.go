package pgvector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"testing"

	_ "github.com/lib/pq"

	errorskg "github.com/sweetpotato0/minirag/errors"
	"github.com/sweetpotato0/minirag/vectorstore"
)

func TestVectorToString(t *testing.T) {
	tests := []struct {
		name string
		vec  []float32
		want string
	}{
		{"empty", nil, "[]"},
		{"single", []float32{0.5}, "[0.5]"},
		{"several", []float32{1, -2.5, 0}, "[1,-2.5,0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := vectorToString(tt.vec); got != tt.want {
				t.Errorf("vectorToString(%v) = %q, want %q", tt.vec, got, tt.want)
			}
		})
	}
}

func TestQuoteIdent(t *testing.T) {
	if got := quoteIdent("pgvector_collection_1"); got != `"pgvector_collection_1"` {
		t.Errorf("quoteIdent = %q", got)
	}
	if got := quoteIdent(`evil"name`); got != `"evil""name"` {
		t.Errorf("quoteIdent with embedded quote = %q", got)
	}
}

func TestIndexNames(t *testing.T) {
	table := "pgvector_collection_5"
	if got := embedIndexName(table); got != "pgvector_pgvector_collection_5_vector_idx" {
		t.Errorf("embedIndexName = %q", got)
	}
	if got := ginIndexName(table); got != "pgvector_pgvector_collection_5_fts_idx" {
		t.Errorf("ginIndexName = %q", got)
	}
}

func TestNewDistanceOps(t *testing.T) {
	s := New(nil, Config{DistanceMethod: vectorstore.DistanceCosine})
	if s.distanceOps != "vector_cosine_ops" {
		t.Errorf("cosine ops = %q", s.distanceOps)
	}
	s = New(nil, Config{DistanceMethod: vectorstore.DistanceDot})
	if s.distanceOps != "vector_l2_ops" {
		t.Errorf("dot ops = %q", s.distanceOps)
	}
	if s.indexThreshold != 100 {
		t.Errorf("default threshold = %d, want 100", s.indexThreshold)
	}
}

func TestHybridSearchSQLOrdersRanks(t *testing.T) {
	// The LIMIT in each modality CTE must follow an explicit rank order;
	// without it the top-k subset depends on window output order.
	query := hybridSearchSQL(quoteIdent("pgvector_collection_1"))
	if got := strings.Count(query, "ORDER BY rank"); got != 2 {
		t.Errorf("rank ordering clauses = %d, want 2", got)
	}
}

// Integration tests below require a running PostgreSQL server with the
// pgvector extension available. Set POSTGRES_DSN to run them.
func testVectorStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_DSN not set, skipping pgvector tests")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Ping(); err != nil {
		t.Skipf("failed to connect to PostgreSQL: %v", err)
	}

	s := New(db, Config{DistanceMethod: vectorstore.DistanceCosine, IndexThreshold: 1000})
	if err := s.Connect(context.Background()); err != nil {
		t.Skipf("vector extension unavailable: %v", err)
	}
	return s
}

func testCollection(t *testing.T, s *Store, suffix string, dims int) string {
	t.Helper()
	ctx := context.Background()
	name := fmt.Sprintf("%s_test_%s", TablePrefix, suffix)

	if err := s.CreateCollection(ctx, name, dims, true); err != nil {
		t.Fatalf("CreateCollection() error = %v", err)
	}
	t.Cleanup(func() { s.DeleteCollection(context.Background(), name) })
	return name
}

func TestCollectionLifecycle(t *testing.T) {
	s := testVectorStore(t)
	ctx := context.Background()
	name := testCollection(t, s, "lifecycle", 3)

	exists, err := s.IsCollectionExisted(ctx, name)
	if err != nil || !exists {
		t.Fatalf("IsCollectionExisted() = (%v, %v), want (true, nil)", exists, err)
	}

	names, err := s.ListCollections(ctx)
	if err != nil {
		t.Fatalf("ListCollections() error = %v", err)
	}
	found := false
	for _, n := range names {
		if n == name {
			found = true
		}
	}
	if !found {
		t.Errorf("collection %s missing from %v", name, names)
	}

	info, err := s.CollectionInfo(ctx, name)
	if err != nil {
		t.Fatalf("CollectionInfo() error = %v", err)
	}
	if info.Table != name || info.RecordCount != 0 {
		t.Errorf("info = %+v", info)
	}

	if err := s.DeleteCollection(ctx, name); err != nil {
		t.Fatalf("DeleteCollection() error = %v", err)
	}
	exists, _ = s.IsCollectionExisted(ctx, name)
	if exists {
		t.Error("collection still exists after delete")
	}
	// Deleting again must not fail.
	if err := s.DeleteCollection(ctx, name); err != nil {
		t.Errorf("repeated DeleteCollection() error = %v", err)
	}
}

func TestInsertAndCount(t *testing.T) {
	s := testVectorStore(t)
	ctx := context.Background()
	name := testCollection(t, s, "insert", 3)

	err := s.InsertOne(ctx, name, "a single record", []float32{1, 0, 0},
		map[string]any{"source": "unit"}, 1, vectorstore.LanguageEnglish)
	if err != nil {
		t.Fatalf("InsertOne() error = %v", err)
	}

	err = s.InsertMany(ctx, name, vectorstore.InsertManyParams{
		Texts:    []string{"second record", "third record"},
		Vectors:  [][]float32{{0, 1, 0}, {0, 0, 1}},
		ChunkIDs: []int64{2, 3},
		Language: vectorstore.LanguageEnglish,
	})
	if err != nil {
		t.Fatalf("InsertMany() error = %v", err)
	}

	info, err := s.CollectionInfo(ctx, name)
	if err != nil {
		t.Fatalf("CollectionInfo() error = %v", err)
	}
	if info.RecordCount != 3 {
		t.Errorf("record count = %d, want 3", info.RecordCount)
	}
}

func TestInsertManyLengthMismatch(t *testing.T) {
	s := testVectorStore(t)
	ctx := context.Background()
	name := testCollection(t, s, "mismatch", 3)

	err := s.InsertMany(ctx, name, vectorstore.InsertManyParams{
		Texts:    []string{"one", "two"},
		Vectors:  [][]float32{{1, 0, 0}},
		ChunkIDs: []int64{1, 2},
	})
	if !errors.Is(err, errorskg.ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}

	info, _ := s.CollectionInfo(ctx, name)
	if info.RecordCount != 0 {
		t.Errorf("record count = %d, want 0 after rejected insert", info.RecordCount)
	}
}

func TestInsertIntoMissingCollection(t *testing.T) {
	s := testVectorStore(t)
	ctx := context.Background()

	err := s.InsertMany(ctx, TablePrefix+"_test_absent", vectorstore.InsertManyParams{
		Texts:    []string{"x"},
		Vectors:  [][]float32{{1, 0, 0}},
		ChunkIDs: []int64{1},
	})
	if !errors.Is(err, errorskg.ErrCollectionNotFound) {
		t.Errorf("error = %v, want ErrCollectionNotFound", err)
	}
}

func TestHybridSearch(t *testing.T) {
	s := testVectorStore(t)
	ctx := context.Background()
	name := testCollection(t, s, "search", 3)

	err := s.InsertMany(ctx, name, vectorstore.InsertManyParams{
		Texts: []string{
			"postgres stores relational data",
			"pgvector adds vector similarity search to postgres",
			"redis is an in-memory cache",
		},
		Vectors:  [][]float32{{1, 0, 0}, {0.9, 0.1, 0}, {0, 0, 1}},
		ChunkIDs: []int64{1, 2, 3},
		Language: vectorstore.LanguageEnglish,
	})
	if err != nil {
		t.Fatalf("InsertMany() error = %v", err)
	}

	docs, err := s.Search(ctx, name, "vector similarity search", []float32{1, 0, 0}, 3, 60)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(docs) == 0 {
		t.Fatal("expected search hits")
	}

	// The record that ranks in both modalities must fuse the highest score.
	if !strings.Contains(docs[0].Text, "pgvector") {
		t.Errorf("top hit = %q, want the pgvector record", docs[0].Text)
	}
	for i := 1; i < len(docs); i++ {
		if docs[i].Score > docs[i-1].Score {
			t.Errorf("results not sorted by score: %v", docs)
		}
	}

	// topK <= 0 returns nothing without touching the database.
	docs, err = s.Search(ctx, name, "anything", []float32{1, 0, 0}, 0, 60)
	if err != nil || docs != nil {
		t.Errorf("Search(topK=0) = (%v, %v), want (nil, nil)", docs, err)
	}
}

func TestHybridSearchRRFScores(t *testing.T) {
	s := testVectorStore(t)
	ctx := context.Background()
	name := testCollection(t, s, "rrf", 3)

	// First record ranks 1st in both modalities; second ranks 2nd in the
	// dense modality only. With k=60 the fused scores are exactly
	// 1/61 + 1/61 and 1/62.
	err := s.InsertMany(ctx, name, vectorstore.InsertManyParams{
		Texts: []string{
			"alpha particles scatter",
			"unrelated filler record",
		},
		Vectors:  [][]float32{{1, 0, 0}, {0, 1, 0}},
		ChunkIDs: []int64{1, 2},
		Language: vectorstore.LanguageEnglish,
	})
	if err != nil {
		t.Fatalf("InsertMany() error = %v", err)
	}

	docs, err := s.Search(ctx, name, "alpha", []float32{1, 0, 0}, 2, 60)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("hits = %d, want 2", len(docs))
	}

	wantTop := 1.0/61 + 1.0/61
	wantSecond := 1.0 / 62
	if math.Abs(docs[0].Score-wantTop) > 1e-9 {
		t.Errorf("fused score = %v, want %v", docs[0].Score, wantTop)
	}
	if math.Abs(docs[1].Score-wantSecond) > 1e-9 {
		t.Errorf("dense-only score = %v, want %v", docs[1].Score, wantSecond)
	}
}

func TestResetIndexes(t *testing.T) {
	s := testVectorStore(t)
	ctx := context.Background()
	name := testCollection(t, s, "indexes", 3)

	// Below the threshold this is a no-op aside from the drops.
	if err := s.ResetIndexes(ctx, name); err != nil {
		t.Fatalf("ResetIndexes() error = %v", err)
	}
}
