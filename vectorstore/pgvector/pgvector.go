package pgvector

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	errorskg "github.com/sweetpotato0/minirag/errors"
	"github.com/sweetpotato0/minirag/pkg/logging"
	"github.com/sweetpotato0/minirag/vectorstore"
)

// TablePrefix is prepended to every collection table and index name.
const TablePrefix = "pgvector"

// DefaultBatchSize bounds how many rows are written per insert batch.
const DefaultBatchSize = 50

const defaultIndexType = "hnsw"

// Store implements vectorstore.VectorStore on PostgreSQL with the pgvector
// extension. Each collection is one table carrying the original text, the
// dense vector, a tsvector column maintained by a trigger, and metadata.
type Store struct {
	db             *sql.DB
	distanceOps    string
	indexThreshold int
	logger         *slog.Logger
}

// Config holds pgvector provider configuration.
type Config struct {
	// DistanceMethod selects the operator class for the ANN index.
	DistanceMethod vectorstore.DistanceMethod
	// IndexThreshold is the minimum row count before indexes are built.
	IndexThreshold int
}

// New wraps an existing database pool. The pool is shared with the
// relational store and owned by the caller.
func New(db *sql.DB, cfg Config) *Store {
	ops := "vector_cosine_ops"
	if cfg.DistanceMethod == vectorstore.DistanceDot {
		ops = "vector_l2_ops"
	}
	threshold := cfg.IndexThreshold
	if threshold <= 0 {
		threshold = 100
	}
	return &Store{
		db:             db,
		distanceOps:    ops,
		indexThreshold: threshold,
		logger:         logging.WithComponent("pgvector"),
	}
}

// Connect enables the vector extension. Safe to call repeatedly.
func (s *Store) Connect(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}
	return nil
}

// Disconnect is a no-op; the shared pool is closed by its owner.
func (s *Store) Disconnect(ctx context.Context) error {
	return nil
}

// Prefix returns the collection naming prefix.
func (s *Store) Prefix() string {
	return TablePrefix
}

// IsCollectionExisted checks pg_tables for the collection table.
func (s *Store) IsCollectionExisted(ctx context.Context, name string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM pg_tables WHERE tablename = $1`, name).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check collection %s: %w", name, err)
	}
	return true, nil
}

// ListCollections returns every table carrying the pgvector prefix.
func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tablename FROM pg_tables WHERE tablename LIKE $1`, TablePrefix+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to scan collection name: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// CollectionInfo returns table ownership, index state and row count.
func (s *Store) CollectionInfo(ctx context.Context, name string) (*vectorstore.CollectionInfo, error) {
	info := &vectorstore.CollectionInfo{}
	var tablespace sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT schemaname, tablename, tableowner, tablespace, hasindexes
		FROM pg_tables WHERE tablename = $1`, name).
		Scan(&info.Schema, &info.Table, &info.Owner, &tablespace, &info.HasIndexes)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("collection %s: %w", name, errorskg.ErrCollectionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get collection info: %w", err)
	}
	info.Tablespace = tablespace.String

	// The table name comes from pg_tables, not from the caller.
	countSQL := fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteIdent(info.Table))
	if err := s.db.QueryRowContext(ctx, countSQL).Scan(&info.RecordCount); err != nil {
		return nil, fmt.Errorf("failed to count records in %s: %w", name, err)
	}
	return info, nil
}

// DeleteCollection drops the collection table and its trigger function.
func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	s.logger.Info("dropping collection", "collection", name)
	if _, err := s.db.ExecContext(ctx,
		fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdent(name))); err != nil {
		return fmt.Errorf("failed to drop collection %s: %w", name, err)
	}
	if _, err := s.db.ExecContext(ctx,
		fmt.Sprintf("DROP FUNCTION IF EXISTS %s()", quoteIdent(name+"_tsvector_trigger"))); err != nil {
		return fmt.Errorf("failed to drop trigger function for %s: %w", name, err)
	}
	return nil
}

// CreateCollection creates the collection table, installs the tokenization
// trigger and, once the row count passes the threshold, the indexes.
func (s *Store) CreateCollection(ctx context.Context, name string, embeddingSize int, reset bool) error {
	if embeddingSize <= 0 {
		return fmt.Errorf("embedding size %d: %w", embeddingSize, errorskg.ErrInvalidInput)
	}
	if reset {
		if err := s.DeleteCollection(ctx, name); err != nil {
			return err
		}
	}

	table := quoteIdent(name)
	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id SERIAL PRIMARY KEY,
			text TEXT,
			vector VECTOR(%d),
			chunk_id INTEGER,
			language TEXT DEFAULT 'english',
			fts_tokens TSVECTOR,
			metadata JSONB DEFAULT '{}'
		)`, table, embeddingSize)

	// fts_tokens depends on two columns, so a generated column cannot be
	// used; a BEFORE trigger keeps it consistent on insert and update.
	createFunc := fmt.Sprintf(`
		CREATE OR REPLACE FUNCTION %s() RETURNS trigger AS $$
		BEGIN
			NEW.fts_tokens := to_tsvector(NEW.language::regconfig, NEW.text);
			RETURN NEW;
		END
		$$ LANGUAGE plpgsql`, quoteIdent(name+"_tsvector_trigger"))

	createTrigger := fmt.Sprintf(`
		CREATE OR REPLACE TRIGGER %s
		BEFORE INSERT OR UPDATE ON %s
		FOR EACH ROW EXECUTE FUNCTION %s()`,
		quoteIdent(name+"_tsvector_update"), table, quoteIdent(name+"_tsvector_trigger"))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{createTable, createFunc, createTrigger} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create collection %s: %w", name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit collection creation: %w", err)
	}

	s.createAllIndexes(ctx, name)
	return nil
}

// InsertOne adds a single record and re-checks the index threshold.
func (s *Store) InsertOne(ctx context.Context, name, text string, vector []float32,
	metadata map[string]any, chunkID int64, language vectorstore.Language) error {

	exists, err := s.IsCollectionExisted(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("collection %s: %w", name, errorskg.ErrCollectionNotFound)
	}
	if language == "" {
		language = vectorstore.LanguageEnglish
	}

	metadataJSON, err := marshalMetadata(metadata)
	if err != nil {
		return err
	}

	insertSQL := fmt.Sprintf(`
		INSERT INTO %s (text, vector, chunk_id, metadata, language)
		VALUES ($1, $2::vector, $3, $4, $5)`, quoteIdent(name))
	_, err = s.db.ExecContext(ctx, insertSQL,
		text, vectorToString(vector), chunkID, metadataJSON, string(language))
	if err != nil {
		return fmt.Errorf("failed to insert into %s: %w", name, err)
	}

	s.createAllIndexes(ctx, name)
	return nil
}

// InsertMany validates the parallel slices, then writes them in batches.
// Each batch is one transaction; a failing batch leaves earlier batches
// committed.
func (s *Store) InsertMany(ctx context.Context, name string, params vectorstore.InsertManyParams) error {
	exists, err := s.IsCollectionExisted(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		s.logger.Error("cannot insert records into missing collection", "collection", name)
		return fmt.Errorf("collection %s: %w", name, errorskg.ErrCollectionNotFound)
	}

	if len(params.Texts) != len(params.Vectors) || len(params.Texts) != len(params.ChunkIDs) {
		s.logger.Error("mismatched insert slices", "collection", name,
			"texts", len(params.Texts), "vectors", len(params.Vectors), "chunk_ids", len(params.ChunkIDs))
		return fmt.Errorf("texts/vectors/chunk_ids length mismatch: %w", errorskg.ErrInvalidInput)
	}
	if params.Metadatas != nil && len(params.Metadatas) != len(params.Texts) {
		return fmt.Errorf("metadata length mismatch: %w", errorskg.ErrInvalidInput)
	}

	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	language := params.Language
	if language == "" {
		language = vectorstore.LanguageEnglish
	}

	for start := 0; start < len(params.Texts); start += batchSize {
		end := start + batchSize
		if end > len(params.Texts) {
			end = len(params.Texts)
		}
		if err := s.insertBatch(ctx, name, params, start, end, language); err != nil {
			return err
		}
	}

	s.createAllIndexes(ctx, name)
	return nil
}

func (s *Store) insertBatch(ctx context.Context, name string,
	params vectorstore.InsertManyParams, start, end int, language vectorstore.Language) error {

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	insertSQL := fmt.Sprintf(`
		INSERT INTO %s (text, vector, metadata, chunk_id, language)
		VALUES ($1, $2::vector, $3, $4, $5)`, quoteIdent(name))
	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := start; i < end; i++ {
		var metadata map[string]any
		if params.Metadatas != nil {
			metadata = params.Metadatas[i]
		}
		metadataJSON, err := marshalMetadata(metadata)
		if err != nil {
			return err
		}
		_, err = stmt.ExecContext(ctx,
			params.Texts[i], vectorToString(params.Vectors[i]),
			metadataJSON, params.ChunkIDs[i], string(language))
		if err != nil {
			return fmt.Errorf("failed to insert row %d into %s: %w", i, name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit insert batch: %w", err)
	}
	return nil
}

// Search fuses the dense and lexical rankings with Reciprocal Rank Fusion.
// Each modality contributes 1/(rrfK + rank) for candidates it ranks; the
// fused list is sorted by the summed score.
func (s *Store) Search(ctx context.Context, name, queryText string, queryVector []float32,
	topK, rrfK int) ([]vectorstore.RetrievedDocument, error) {

	exists, err := s.IsCollectionExisted(ctx, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("collection %s: %w", name, errorskg.ErrCollectionNotFound)
	}
	if topK <= 0 {
		return nil, nil
	}
	if rrfK <= 0 {
		rrfK = 60
	}

	rows, err := s.db.QueryContext(ctx, hybridSearchSQL(quoteIdent(name)),
		vectorToString(queryVector), topK, queryText, rrfK)
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", name, err)
	}
	defer rows.Close()

	docs := make([]vectorstore.RetrievedDocument, 0, topK)
	for rows.Next() {
		var doc vectorstore.RetrievedDocument
		if err := rows.Scan(&doc.Text, &doc.Score); err != nil {
			return nil, fmt.Errorf("failed to scan search hit: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating search hits: %w", err)
	}
	return docs, nil
}

// hybridSearchSQL builds the RRF fusion query over one collection table.
// Each modality CTE orders by its rank before limiting so the top-k subset
// is guaranteed, not an artifact of window output order.
func hybridSearchSQL(table string) string {
	return fmt.Sprintf(`
		WITH vector_results AS (
			SELECT id,
				ROW_NUMBER() OVER (ORDER BY vector <=> $1::vector) AS rank
			FROM %s
			ORDER BY rank
			LIMIT $2
		),
		keyword_results AS (
			SELECT id,
				ROW_NUMBER() OVER (ORDER BY ts_rank_cd(fts_tokens, plainto_tsquery($3)) DESC) AS rank
			FROM %s
			WHERE fts_tokens @@ plainto_tsquery($3)
			ORDER BY rank
			LIMIT $2
		)
		SELECT t.text,
			(COALESCE(1.0 / ($4 + v.rank), 0.0) +
			 COALESCE(1.0 / ($4 + k.rank), 0.0)) AS score
		FROM vector_results v
		FULL OUTER JOIN keyword_results k ON v.id = k.id
		JOIN %s t ON t.id = COALESCE(v.id, k.id)
		ORDER BY score DESC
		LIMIT $2`, table, table, table)
}

// ResetIndexes drops both indexes and re-runs threshold-gated creation.
func (s *Store) ResetIndexes(ctx context.Context, name string) error {
	for _, idx := range []string{embedIndexName(name), ginIndexName(name)} {
		if _, err := s.db.ExecContext(ctx,
			fmt.Sprintf("DROP INDEX IF EXISTS %s", quoteIdent(idx))); err != nil {
			return fmt.Errorf("failed to drop index %s: %w", idx, err)
		}
	}
	s.createAllIndexes(ctx, name)
	return nil
}

// createAllIndexes builds the ANN and GIN indexes once the collection's
// row count reaches the threshold. Failures are logged and swallowed;
// search still works through a sequential scan.
func (s *Store) createAllIndexes(ctx context.Context, name string) {
	var count int64
	countSQL := fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteIdent(name))
	if err := s.db.QueryRowContext(ctx, countSQL).Scan(&count); err != nil {
		s.logger.Warn("failed to count records for indexing", "collection", name, "error", err)
		return
	}
	if count < int64(s.indexThreshold) {
		s.logger.Info("not enough records to create indexes",
			"collection", name, "count", count, "threshold", s.indexThreshold)
		return
	}

	s.logger.Info("creating indexes", "collection", name, "count", count)
	if err := s.createEmbedIndex(ctx, name); err != nil {
		s.logger.Warn("failed to create vector index", "collection", name, "error", err)
	}
	if err := s.createGinIndex(ctx, name); err != nil {
		s.logger.Warn("failed to create fts index", "collection", name, "error", err)
	}
}

func (s *Store) createEmbedIndex(ctx context.Context, name string) error {
	exists, err := s.isIndexExisted(ctx, name, embedIndexName(name))
	if err != nil || exists {
		return err
	}
	createSQL := fmt.Sprintf("CREATE INDEX %s ON %s USING %s (vector %s)",
		quoteIdent(embedIndexName(name)), quoteIdent(name), defaultIndexType, s.distanceOps)
	_, err = s.db.ExecContext(ctx, createSQL)
	return err
}

func (s *Store) createGinIndex(ctx context.Context, name string) error {
	exists, err := s.isIndexExisted(ctx, name, ginIndexName(name))
	if err != nil || exists {
		return err
	}
	createSQL := fmt.Sprintf("CREATE INDEX %s ON %s USING GIN (fts_tokens)",
		quoteIdent(ginIndexName(name)), quoteIdent(name))
	_, err = s.db.ExecContext(ctx, createSQL)
	return err
}

func (s *Store) isIndexExisted(ctx context.Context, table, index string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM pg_indexes WHERE tablename = $1 AND indexname = $2`,
		table, index).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check index %s: %w", index, err)
	}
	return true, nil
}

func embedIndexName(table string) string {
	return fmt.Sprintf("%s_%s_vector_idx", TablePrefix, table)
}

func ginIndexName(table string) string {
	return fmt.Sprintf("%s_%s_fts_idx", TablePrefix, table)
}

func marshalMetadata(metadata map[string]any) (string, error) {
	if metadata == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return string(raw), nil
}

// vectorToString renders a vector in the pgvector text format: [1,2,3].
func vectorToString(vec []float32) string {
	parts := make([]string, len(vec))
	for i, v := range vec {
		parts[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// quoteIdent quotes a SQL identifier; collection names are built from
// trusted configuration but quoting keeps interpolation safe.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
