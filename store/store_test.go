package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"testing"

	_ "github.com/lib/pq"

	errorskg "github.com/sweetpotato0/minirag/errors"
)

// These tests require a running PostgreSQL server.
// Set POSTGRES_DSN to run them against a real database.
func testStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_DSN not set, skipping store tests")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Ping(); err != nil {
		t.Skipf("failed to connect to PostgreSQL: %v", err)
	}

	s := New(db)
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return s
}

// freshProject creates a project with no chunks, cleaning up after the test.
func freshProject(t *testing.T, s *Store, projectID int64) *Project {
	t.Helper()
	ctx := context.Background()

	project, err := s.GetOrCreateProject(ctx, projectID)
	if err != nil {
		t.Fatalf("GetOrCreateProject() error = %v", err)
	}
	t.Cleanup(func() {
		s.db.Exec(`DELETE FROM data_chunks WHERE chunk_project_id = $1`, projectID)
		s.db.Exec(`DELETE FROM assets WHERE asset_project_id = $1`, projectID)
		s.db.Exec(`DELETE FROM projects WHERE project_id = $1`, projectID)
	})
	return project
}

func TestGetOrCreateProjectIdempotent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	p1 := freshProject(t, s, 9001)
	p2, err := s.GetOrCreateProject(ctx, 9001)
	if err != nil {
		t.Fatalf("second GetOrCreateProject() error = %v", err)
	}
	if p1.ID != p2.ID {
		t.Errorf("project ids differ: %d vs %d", p1.ID, p2.ID)
	}
}

func TestCreateAssetDuplicateName(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	project := freshProject(t, s, 9002)

	asset := &Asset{ProjectID: project.ID, Type: AssetTypeFile, Name: "abc_file.txt", Size: 42}
	if _, err := s.CreateAsset(ctx, asset); err != nil {
		t.Fatalf("CreateAsset() error = %v", err)
	}
	if asset.ID == 0 {
		t.Error("asset id was not filled in")
	}

	dup := &Asset{ProjectID: project.ID, Type: AssetTypeFile, Name: "abc_file.txt"}
	_, err := s.CreateAsset(ctx, dup)
	if !errors.Is(err, errorskg.ErrAlreadyExists) {
		t.Errorf("duplicate asset error = %v, want ErrAlreadyExists", err)
	}
}

func TestGetAssetByName(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	project := freshProject(t, s, 9003)

	asset := &Asset{ProjectID: project.ID, Type: AssetTypeFile, Name: "lookup.txt", Size: 7}
	if _, err := s.CreateAsset(ctx, asset); err != nil {
		t.Fatalf("CreateAsset() error = %v", err)
	}

	got, err := s.GetAssetByName(ctx, project.ID, "lookup.txt")
	if err != nil {
		t.Fatalf("GetAssetByName() error = %v", err)
	}
	if got.ID != asset.ID || got.Size != 7 {
		t.Errorf("asset = %+v", got)
	}

	_, err = s.GetAssetByName(ctx, project.ID, "nope.txt")
	if !errors.Is(err, errorskg.ErrNotFound) {
		t.Errorf("missing asset error = %v, want ErrNotFound", err)
	}
}

func TestInsertManyChunksAndPaging(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	project := freshProject(t, s, 9004)

	asset := &Asset{ProjectID: project.ID, Type: AssetTypeFile, Name: "chunky.txt"}
	if _, err := s.CreateAsset(ctx, asset); err != nil {
		t.Fatalf("CreateAsset() error = %v", err)
	}

	chunks := make([]*DataChunk, 7)
	for i := range chunks {
		chunks[i] = &DataChunk{
			ProjectID: project.ID,
			AssetID:   asset.ID,
			Text:      fmt.Sprintf("chunk number %d", i+1),
			Order:     i + 1,
		}
	}

	inserted, err := s.InsertManyChunks(ctx, chunks, 3)
	if err != nil {
		t.Fatalf("InsertManyChunks() error = %v", err)
	}
	if inserted != 7 {
		t.Errorf("inserted = %d, want 7", inserted)
	}
	for i, c := range chunks {
		if c.ID == 0 {
			t.Errorf("chunk %d id was not filled in", i)
		}
	}

	count, err := s.CountChunks(ctx, project.ID)
	if err != nil {
		t.Fatalf("CountChunks() error = %v", err)
	}
	if count != 7 {
		t.Errorf("count = %d, want 7", count)
	}

	page1, err := s.ListChunks(ctx, project.ID, 1, 3)
	if err != nil {
		t.Fatalf("ListChunks(page 1) error = %v", err)
	}
	if len(page1) != 3 || page1[0].Order != 1 {
		t.Errorf("page 1 = %d chunks, first order %d", len(page1), page1[0].Order)
	}

	page3, err := s.ListChunks(ctx, project.ID, 3, 3)
	if err != nil {
		t.Fatalf("ListChunks(page 3) error = %v", err)
	}
	if len(page3) != 1 {
		t.Errorf("page 3 = %d chunks, want 1", len(page3))
	}

	page4, err := s.ListChunks(ctx, project.ID, 4, 3)
	if err != nil {
		t.Fatalf("ListChunks(page 4) error = %v", err)
	}
	if len(page4) != 0 {
		t.Errorf("page 4 = %d chunks, want 0", len(page4))
	}
}

func TestDeleteChunksByProject(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	project := freshProject(t, s, 9005)

	asset := &Asset{ProjectID: project.ID, Type: AssetTypeFile, Name: "gone.txt"}
	if _, err := s.CreateAsset(ctx, asset); err != nil {
		t.Fatalf("CreateAsset() error = %v", err)
	}
	for i := 1; i <= 3; i++ {
		if _, err := s.CreateChunk(ctx, &DataChunk{
			ProjectID: project.ID, AssetID: asset.ID, Text: "x", Order: i,
		}); err != nil {
			t.Fatalf("CreateChunk() error = %v", err)
		}
	}

	deleted, err := s.DeleteChunksByProject(ctx, project.ID)
	if err != nil {
		t.Fatalf("DeleteChunksByProject() error = %v", err)
	}
	if deleted != 3 {
		t.Errorf("deleted = %d, want 3", deleted)
	}

	count, _ := s.CountChunks(ctx, project.ID)
	if count != 0 {
		t.Errorf("count after delete = %d, want 0", count)
	}
}
