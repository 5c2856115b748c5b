package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	errorskg "github.com/sweetpotato0/minirag/errors"
	"github.com/sweetpotato0/minirag/nlp"
	"github.com/sweetpotato0/minirag/pkg/logging"
	"github.com/sweetpotato0/minirag/pkg/telemetry"
	"github.com/sweetpotato0/minirag/signal"
	"github.com/sweetpotato0/minirag/store"
	"github.com/sweetpotato0/minirag/vectorstore"
)

const suffixLength = 12

// Config holds the ingestion limits and locations.
type Config struct {
	AllowedTypes []string
	MaxSizeBytes int64
	// CopyBufferBytes is the streaming write buffer size.
	CopyBufferBytes int
	FilesDir        string
}

// Controller validates uploads, captures them on disk, chunks their text
// and persists the chunks.
type Controller struct {
	cfg    Config
	store  *store.Store
	vector vectorstore.VectorStore
	logger *slog.Logger
}

// New creates an ingestion controller.
func New(cfg Config, st *store.Store, vs vectorstore.VectorStore) *Controller {
	if cfg.CopyBufferBytes <= 0 {
		cfg.CopyBufferBytes = 512 * 1024
	}
	return &Controller{
		cfg:    cfg,
		store:  st,
		vector: vs,
		logger: logging.WithComponent("ingest"),
	}
}

// ValidateFile accepts a file iff its MIME type is allow-listed and its
// size does not exceed the configured maximum. A size exactly at the limit
// is accepted.
func (c *Controller) ValidateFile(mimeType string, size int64) (signal.Signal, bool) {
	allowed := false
	for _, t := range c.cfg.AllowedTypes {
		if t == mimeType {
			allowed = true
			break
		}
	}
	if !allowed {
		return signal.FileTypeNotSupported, false
	}
	if size > c.cfg.MaxSizeBytes {
		return signal.FileSizeExceeded, false
	}
	return signal.FileValidatedSuccess, true
}

var unsafeChars = regexp.MustCompile(`[^\w.]`)

// SanitizeFilename turns spaces into underscores and strips every other
// non-word character except dots. Idempotent.
func SanitizeFilename(name string) string {
	cleaned := strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
	return unsafeChars.ReplaceAllString(cleaned, "")
}

const suffixAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomSuffix(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = suffixAlphabet[rand.IntN(len(suffixAlphabet))]
	}
	return string(b)
}

// projectDir returns (and creates) the per-project files directory.
func (c *Controller) projectDir(projectID int64) (string, error) {
	dir := filepath.Join(c.cfg.FilesDir, fmt.Sprintf("%d", projectID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create project dir: %w", err)
	}
	return dir, nil
}

// AllocateUniquePath builds the stored name `<suffix>_<sanitized>` for an
// upload, regenerating the 12-character suffix until the path is free.
func (c *Controller) AllocateUniquePath(projectID int64, filename string) (path, storedName string, err error) {
	dir, err := c.projectDir(projectID)
	if err != nil {
		return "", "", err
	}
	clean := SanitizeFilename(filename)
	for {
		storedName = randomSuffix(suffixLength) + "_" + clean
		path = filepath.Join(dir, storedName)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path, storedName, nil
		}
	}
}

// SaveUpload streams the upload to disk in buffer-sized chunks, honouring
// cancellation between reads. A failed write removes the partial file.
func (c *Controller) SaveUpload(ctx context.Context, src io.Reader, path string) (int64, error) {
	dst, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}

	written, err := copyChunked(ctx, dst, src, c.cfg.CopyBufferBytes)
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return 0, fmt.Errorf("failed to stream upload to %s: %w", path, err)
	}
	return written, nil
}

func copyChunked(ctx context.Context, dst io.Writer, src io.Reader, bufSize int) (int64, error) {
	buf := make([]byte, bufSize)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, readErr := src.Read(buf)
		if n > 0 {
			w, writeErr := dst.Write(buf[:n])
			written += int64(w)
			if writeErr != nil {
				return written, writeErr
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}

// Upload validates and captures one file, recording its Asset row. The
// returned file id is the stored name.
func (c *Controller) Upload(ctx context.Context, projectID int64, filename, mimeType string,
	size int64, src io.Reader) (string, signal.Signal, error) {

	if sig, ok := c.ValidateFile(mimeType, size); !ok {
		return "", sig, fmt.Errorf("file %q rejected: %w", filename, errorskg.ErrInvalidInput)
	}

	project, err := c.store.GetOrCreateProject(ctx, projectID)
	if err != nil {
		return "", signal.FileUploadFailed, err
	}

	path, storedName, err := c.AllocateUniquePath(project.ID, filename)
	if err != nil {
		return "", signal.FileUploadFailed, err
	}

	written, err := c.SaveUpload(ctx, src, path)
	if err != nil {
		return "", signal.FileUploadFailed, err
	}

	asset := &store.Asset{
		ProjectID: project.ID,
		Type:      store.AssetTypeFile,
		Name:      storedName,
		Size:      written,
	}
	if _, err := c.store.CreateAsset(ctx, asset); err != nil {
		os.Remove(path)
		return "", signal.FileUploadFailed, err
	}

	c.logger.Info("file uploaded", "project_id", projectID, "file_id", storedName, "size", written)
	return storedName, signal.FileUploadSuccess, nil
}

// ReadAssetText loads the stored file's text. HTML assets are reduced to
// their visible text; everything else is treated as plain text.
func (c *Controller) ReadAssetText(projectID int64, storedName string) (string, error) {
	path := filepath.Join(c.cfg.FilesDir, fmt.Sprintf("%d", projectID), storedName)
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read asset %s: %w", storedName, err)
	}
	ext := strings.ToLower(filepath.Ext(storedName))
	if ext == ".html" || ext == ".htm" {
		return extractHTMLText(raw)
	}
	return string(raw), nil
}

// Chunk is one ordered fragment of an asset's text.
type Chunk struct {
	Text  string
	Order int
}

// ChunkText windows the content into chunks of chunkSize characters where
// each chunk shares overlap characters with its predecessor. Orders are
// dense and 1-based.
func ChunkText(content string, chunkSize, overlap int) ([]Chunk, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive: %w", errorskg.ErrInvalidInput)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("overlap must be in [0, chunk_size): %w", errorskg.ErrInvalidInput)
	}

	runes := []rune(strings.TrimSpace(content))
	if len(runes) == 0 {
		return nil, nil
	}

	step := chunkSize - overlap
	var chunks []Chunk
	for start := 0; ; start += step {
		end := start + chunkSize
		if end >= len(runes) {
			chunks = append(chunks, Chunk{
				Text:  strings.TrimSpace(string(runes[start:])),
				Order: len(chunks) + 1,
			})
			break
		}
		chunks = append(chunks, Chunk{
			Text:  strings.TrimSpace(string(runes[start:end])),
			Order: len(chunks) + 1,
		})
	}
	return chunks, nil
}

// ProcessRequest drives one chunking run over a project's assets.
type ProcessRequest struct {
	ProjectID   int64
	FileID      string // empty means every FILE asset of the project
	ChunkSize   int
	OverlapSize int
	DoReset     bool
}

// ProcessResult reports what one run produced.
type ProcessResult struct {
	FilesProcessed int `json:"files_processed"`
	RecordsCreated int `json:"records_created"`
}

// Process resolves the project's assets, optionally resets prior state,
// then reads, chunks and persists each file. A failing file aborts the
// batch; chunks already committed for earlier files remain.
func (c *Controller) Process(ctx context.Context, req ProcessRequest) (result *ProcessResult, sig signal.Signal, err error) {
	ctx, span := telemetry.Start(ctx, "ingest.process", attribute.Int64("project_id", req.ProjectID))
	defer func() { telemetry.End(span, err) }()

	project, err := c.store.GetOrCreateProject(ctx, req.ProjectID)
	if err != nil {
		return nil, signal.ProjectNotFound, err
	}

	var assets []*store.Asset
	if req.FileID != "" {
		asset, err := c.store.GetAssetByName(ctx, project.ID, req.FileID)
		if err != nil {
			return nil, signal.FileNotFound, err
		}
		assets = append(assets, asset)
	} else {
		assets, err = c.store.ListAssets(ctx, project.ID, store.AssetTypeFile)
		if err != nil {
			return nil, signal.ProcessingFailed, err
		}
	}
	if len(assets) == 0 {
		return nil, signal.NoFilesToProcess,
			fmt.Errorf("project %d: %w", project.ID, errorskg.ErrNoAssets)
	}

	if req.DoReset {
		collection := nlp.CollectionName(c.vector.Prefix(), project.ID)
		if err := c.vector.DeleteCollection(ctx, collection); err != nil {
			return nil, signal.ProcessingFailed, err
		}
		deleted, err := c.store.DeleteChunksByProject(ctx, project.ID)
		if err != nil {
			return nil, signal.ProcessingFailed, err
		}
		c.logger.Info("reset completed", "project_id", project.ID, "chunks_deleted", deleted)
	}

	result = &ProcessResult{}
	for _, asset := range assets {
		content, err := c.ReadAssetText(project.ID, asset.Name)
		if err != nil {
			return result, signal.FileReadFailed, err
		}

		chunks, err := ChunkText(content, req.ChunkSize, req.OverlapSize)
		if err != nil || len(chunks) == 0 {
			if err == nil {
				err = fmt.Errorf("asset %s produced no chunks: %w", asset.Name, errorskg.ErrInvalidInput)
			}
			return result, signal.ProcessingFailed, err
		}

		records := make([]*store.DataChunk, len(chunks))
		for i, ch := range chunks {
			records[i] = &store.DataChunk{
				ProjectID: project.ID,
				AssetID:   asset.ID,
				Text:      ch.Text,
				Order:     ch.Order,
			}
		}
		inserted, err := c.store.InsertManyChunks(ctx, records, store.DefaultChunkBatchSize)
		if err != nil {
			return result, signal.ProcessingFailed, err
		}

		result.FilesProcessed++
		result.RecordsCreated += inserted
	}

	c.logger.Info("processing completed", "project_id", project.ID,
		"files", result.FilesProcessed, "records", result.RecordsCreated)
	return result, signal.FileProcessingCompleted, nil
}
