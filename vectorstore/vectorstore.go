package vectorstore

import (
	"context"
)

// DistanceMethod selects how vector similarity is measured.
type DistanceMethod string

const (
	DistanceCosine DistanceMethod = "cosine"
	DistanceDot    DistanceMethod = "dot"
)

// Language tags the text of a record for language-aware tokenization.
type Language string

const (
	LanguageEnglish Language = "english"
	LanguageArabic  Language = "arabic"
	LanguageGerman  Language = "german"
	LanguageFrench  Language = "french"
)

// RetrievedDocument is one hybrid search hit. Higher score is better.
type RetrievedDocument struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// CollectionInfo describes an existing collection.
type CollectionInfo struct {
	Schema      string `json:"schemaname"`
	Table       string `json:"tablename"`
	Owner       string `json:"tableowner"`
	Tablespace  string `json:"tablespace"`
	HasIndexes  bool   `json:"hasindexes"`
	RecordCount int64  `json:"record_count"`
}

// InsertManyParams bundles the parallel slices for a bulk insert. Texts,
// Vectors and ChunkIDs must have equal length.
type InsertManyParams struct {
	Texts     []string
	Vectors   [][]float32
	Metadatas []map[string]any
	ChunkIDs  []int64
	BatchSize int
	Language  Language
}

// VectorStore is the pluggable contract for per-project vector collections
// with hybrid (dense + lexical) retrieval.
type VectorStore interface {
	// Connect prepares the backend; for pgvector it enables the extension.
	// Idempotent.
	Connect(ctx context.Context) error

	// Disconnect releases backend resources.
	Disconnect(ctx context.Context) error

	// Prefix returns the naming prefix applied to every collection.
	Prefix() string

	// IsCollectionExisted reports whether the named collection exists.
	IsCollectionExisted(ctx context.Context, name string) (bool, error)

	// ListCollections returns the names of all collections.
	ListCollections(ctx context.Context) ([]string, error)

	// CollectionInfo returns metadata about a collection, or
	// errors.ErrCollectionNotFound if it is absent.
	CollectionInfo(ctx context.Context, name string) (*CollectionInfo, error)

	// CreateCollection creates the collection for vectors of the given
	// size, dropping any existing collection first when reset is true.
	CreateCollection(ctx context.Context, name string, embeddingSize int, reset bool) error

	// DeleteCollection drops the collection. Idempotent.
	DeleteCollection(ctx context.Context, name string) error

	// InsertOne adds a single record.
	InsertOne(ctx context.Context, name, text string, vector []float32,
		metadata map[string]any, chunkID int64, language Language) error

	// InsertMany adds records in batches; all rows of one batch commit as
	// a unit. Fails without inserting anything when preconditions break.
	InsertMany(ctx context.Context, name string, params InsertManyParams) error

	// Search runs hybrid retrieval fusing dense and lexical rankings with
	// Reciprocal Rank Fusion, returning at most topK documents in
	// descending score order.
	Search(ctx context.Context, name, queryText string, queryVector []float32,
		topK, rrfK int) ([]RetrievedDocument, error)

	// ResetIndexes drops and recreates the collection's indexes.
	ResetIndexes(ctx context.Context, name string) error
}
