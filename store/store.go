package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lib/pq"
	errorskg "github.com/sweetpotato0/minirag/errors"
	"github.com/sweetpotato0/minirag/pkg/logging"
)

const (
	// DefaultChunkBatchSize bounds how many chunk rows are written per statement.
	DefaultChunkBatchSize = 100

	// DefaultChunkPageSize is the page size used when listing chunks.
	DefaultChunkPageSize = 50

	uniqueViolation = "23505"
)

// Store persists projects, assets and data chunks in PostgreSQL. All
// methods are safe for concurrent use; the underlying *sql.DB pool provides
// the only synchronisation.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// New wraps an existing database pool. The pool is shared with the vector
// store and owned by the caller.
func New(db *sql.DB) *Store {
	return &Store{
		db:     db,
		logger: logging.WithComponent("store"),
	}
}

// Migrate creates the three relations if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		project_id BIGINT PRIMARY KEY
	);
	CREATE TABLE IF NOT EXISTS assets (
		asset_id BIGSERIAL PRIMARY KEY,
		asset_project_id BIGINT NOT NULL REFERENCES projects(project_id),
		asset_type TEXT NOT NULL,
		asset_name TEXT NOT NULL,
		asset_size BIGINT NOT NULL DEFAULT 0,
		UNIQUE (asset_project_id, asset_name)
	);
	CREATE TABLE IF NOT EXISTS data_chunks (
		chunk_id BIGSERIAL PRIMARY KEY,
		chunk_project_id BIGINT NOT NULL REFERENCES projects(project_id),
		chunk_asset_id BIGINT NOT NULL REFERENCES assets(asset_id),
		chunk_text TEXT NOT NULL,
		chunk_order INTEGER NOT NULL,
		UNIQUE (chunk_asset_id, chunk_order)
	);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// GetOrCreateProject returns the project with the given id, creating the
// row atomically if it does not exist yet.
func (s *Store) GetOrCreateProject(ctx context.Context, projectID int64) (*Project, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (project_id) VALUES ($1) ON CONFLICT (project_id) DO NOTHING`,
		projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert project %d: %w", projectID, err)
	}

	var id int64
	err = s.db.QueryRowContext(ctx,
		`SELECT project_id FROM projects WHERE project_id = $1`, projectID).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to load project %d: %w", projectID, err)
	}
	return &Project{ID: id}, nil
}

// CreateAsset inserts a new asset row. A name collision within the project
// surfaces as errors.ErrAlreadyExists.
func (s *Store) CreateAsset(ctx context.Context, asset *Asset) (*Asset, error) {
	if asset == nil {
		return nil, fmt.Errorf("asset cannot be nil: %w", errorskg.ErrInvalidInput)
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO assets (asset_project_id, asset_type, asset_name, asset_size)
		VALUES ($1, $2, $3, $4)
		RETURNING asset_id`,
		asset.ProjectID, asset.Type, asset.Name, asset.Size).Scan(&asset.ID)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return nil, fmt.Errorf("asset %q in project %d: %w",
				asset.Name, asset.ProjectID, errorskg.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("failed to create asset: %w", err)
	}
	return asset, nil
}

// GetAssetByName finds an asset by its stored filename within a project.
func (s *Store) GetAssetByName(ctx context.Context, projectID int64, name string) (*Asset, error) {
	asset := &Asset{}
	err := s.db.QueryRowContext(ctx, `
		SELECT asset_id, asset_project_id, asset_type, asset_name, asset_size
		FROM assets
		WHERE asset_project_id = $1 AND asset_name = $2`,
		projectID, name).Scan(&asset.ID, &asset.ProjectID, &asset.Type, &asset.Name, &asset.Size)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("asset %q in project %d: %w", name, projectID, errorskg.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}
	return asset, nil
}

// ListAssets returns every asset of the given type for a project.
func (s *Store) ListAssets(ctx context.Context, projectID int64, assetType AssetType) ([]*Asset, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT asset_id, asset_project_id, asset_type, asset_name, asset_size
		FROM assets
		WHERE asset_project_id = $1 AND asset_type = $2
		ORDER BY asset_id`,
		projectID, assetType)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	defer rows.Close()

	var assets []*Asset
	for rows.Next() {
		a := &Asset{}
		if err := rows.Scan(&a.ID, &a.ProjectID, &a.Type, &a.Name, &a.Size); err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		assets = append(assets, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assets: %w", err)
	}
	return assets, nil
}

// CreateChunk inserts a single data chunk.
func (s *Store) CreateChunk(ctx context.Context, chunk *DataChunk) (*DataChunk, error) {
	if chunk == nil {
		return nil, fmt.Errorf("chunk cannot be nil: %w", errorskg.ErrInvalidInput)
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO data_chunks (chunk_project_id, chunk_asset_id, chunk_text, chunk_order)
		VALUES ($1, $2, $3, $4)
		RETURNING chunk_id`,
		chunk.ProjectID, chunk.AssetID, chunk.Text, chunk.Order).Scan(&chunk.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create chunk: %w", err)
	}
	return chunk, nil
}

// InsertManyChunks writes chunks in batches, one transaction per batch.
// It returns the number of rows inserted. Chunk IDs are filled in on the
// passed slice in input order.
func (s *Store) InsertManyChunks(ctx context.Context, chunks []*DataChunk, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = DefaultChunkBatchSize
	}

	inserted := 0
	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		if err := s.insertChunkBatch(ctx, chunks[start:end]); err != nil {
			return inserted, err
		}
		inserted += end - start
	}
	return inserted, nil
}

func (s *Store) insertChunkBatch(ctx context.Context, batch []*DataChunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO data_chunks (chunk_project_id, chunk_asset_id, chunk_text, chunk_order)
		VALUES ($1, $2, $3, $4)
		RETURNING chunk_id`)
	if err != nil {
		return fmt.Errorf("failed to prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range batch {
		if err := stmt.QueryRowContext(ctx, c.ProjectID, c.AssetID, c.Text, c.Order).Scan(&c.ID); err != nil {
			return fmt.Errorf("failed to insert chunk order %d: %w", c.Order, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunk batch: %w", err)
	}
	return nil
}

// DeleteChunksByProject removes every chunk of a project and returns the
// number of deleted rows.
func (s *Store) DeleteChunksByProject(ctx context.Context, projectID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM data_chunks WHERE chunk_project_id = $1`, projectID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks for project %d: %w", projectID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	s.logger.Info("deleted project chunks", "project_id", projectID, "count", n)
	return n, nil
}

// ListChunks returns one page of a project's chunks ordered by chunk id
// ascending. Pages are 1-based.
func (s *Store) ListChunks(ctx context.Context, projectID int64, pageNo, pageSize int) ([]*DataChunk, error) {
	if pageNo < 1 {
		pageNo = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultChunkPageSize
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id, chunk_project_id, chunk_asset_id, chunk_text, chunk_order
		FROM data_chunks
		WHERE chunk_project_id = $1
		ORDER BY chunk_id
		OFFSET $2 LIMIT $3`,
		projectID, (pageNo-1)*pageSize, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer rows.Close()

	var chunks []*DataChunk
	for rows.Next() {
		c := &DataChunk{}
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.AssetID, &c.Text, &c.Order); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chunks: %w", err)
	}
	return chunks, nil
}

// CountChunks returns how many chunks a project has.
func (s *Store) CountChunks(ctx context.Context, projectID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM data_chunks WHERE chunk_project_id = $1`, projectID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}
