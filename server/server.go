package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/sweetpotato0/minirag/config"
	"github.com/sweetpotato0/minirag/eval"
	"github.com/sweetpotato0/minirag/ingest"
	"github.com/sweetpotato0/minirag/nlp"
	"github.com/sweetpotato0/minirag/pkg/logging"
	"github.com/sweetpotato0/minirag/signal"
)

// Services is the immutable set of controllers the handlers dispatch to.
// It is assembled once at startup and never mutated afterwards.
type Services struct {
	Settings *config.Settings
	Ingest   *ingest.Controller
	NLP      *nlp.Controller
	Eval     *eval.Controller
}

// Server exposes the service over HTTP.
type Server struct {
	services Services
	server   *http.Server
	logger   *slog.Logger
}

// New wires the route table and returns a server ready to start.
func New(addr string, services Services) *Server {
	s := &Server{
		services: services,
		logger:   logging.WithComponent("server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/", s.handleWelcome)
	mux.HandleFunc("POST /api/v1/upload/{project_id}", s.handleUpload)
	mux.HandleFunc("POST /api/v1/upload/process/{project_id}", s.handleProcess)
	mux.HandleFunc("POST /api/v1/nlp/push/{project_id}", s.handlePush)
	mux.HandleFunc("GET /api/v1/nlp/collection_info/{project_id}", s.handleCollectionInfo)
	mux.HandleFunc("POST /api/v1/nlp/search/{project_id}", s.handleSearch)
	mux.HandleFunc("POST /api/v1/nlp/answer/{project_id}", s.handleAnswer)
	mux.HandleFunc("POST /api/v1/evaluation/{project_id}", s.handleEval)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start blocks serving requests until the listener fails or Stop is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Stop drains in-flight requests and shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// writeSignal renders the controller outcome, mapping the signal to its
// HTTP status. Extra fields are merged beside the signal key.
func (s *Server) writeSignal(w http.ResponseWriter, sig signal.Signal, extra map[string]any) {
	payload := map[string]any{"signal": sig}
	for k, v := range extra {
		payload[k] = v
	}
	s.writeJSON(w, signal.HTTPStatus(sig), payload)
}

func (s *Server) projectID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("project_id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeSignal(w, signal.ProjectNotFound, map[string]any{
			"error": "project_id must be a positive integer",
		})
		return 0, false
	}
	return id, true
}

func (s *Server) handleWelcome(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"app_name":    s.services.Settings.AppName,
		"app_version": s.services.Settings.AppVersion,
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	projectID, ok := s.projectID(w, r)
	if !ok {
		return
	}

	// Bound the multipart memory footprint; files spill to temp storage.
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		s.writeSignal(w, signal.FileUploadFailed, map[string]any{"error": err.Error()})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeSignal(w, signal.FileUploadFailed, map[string]any{"error": "missing file field"})
		return
	}
	defer file.Close()

	fileID, sig, err := s.services.Ingest.Upload(r.Context(), projectID,
		header.Filename, header.Header.Get("Content-Type"), header.Size, file)
	if err != nil {
		s.logger.Error("upload failed", "project_id", projectID, "signal", sig, "error", err)
		s.writeSignal(w, sig, nil)
		return
	}
	s.writeSignal(w, sig, map[string]any{"file_id": fileID})
}

type processRequest struct {
	FileID      string `json:"file_id"`
	ChunkSize   int    `json:"chunk_size"`
	OverlapSize int    `json:"overlap_size"`
	DoReset     bool   `json:"do_reset"`
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	projectID, ok := s.projectID(w, r)
	if !ok {
		return
	}

	req := processRequest{ChunkSize: 1000, OverlapSize: 200}
	if err := decodeBody(r, &req); err != nil {
		s.writeSignal(w, signal.ProcessingFailed, map[string]any{"error": err.Error()})
		return
	}

	result, sig, err := s.services.Ingest.Process(r.Context(), ingest.ProcessRequest{
		ProjectID:   projectID,
		FileID:      req.FileID,
		ChunkSize:   req.ChunkSize,
		OverlapSize: req.OverlapSize,
		DoReset:     req.DoReset,
	})
	if err != nil {
		s.logger.Error("processing failed", "project_id", projectID, "signal", sig, "error", err)
		s.writeSignal(w, sig, nil)
		return
	}
	s.writeSignal(w, sig, map[string]any{
		"files_processed": result.FilesProcessed,
		"records_created": result.RecordsCreated,
	})
}

type pushRequest struct {
	DoReset bool `json:"do_reset"`
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	projectID, ok := s.projectID(w, r)
	if !ok {
		return
	}

	var req pushRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeSignal(w, signal.IndexingFailed, map[string]any{"error": err.Error()})
		return
	}

	result, sig, err := s.services.NLP.Push(r.Context(), projectID, req.DoReset)
	if err != nil {
		s.logger.Error("push failed", "project_id", projectID, "signal", sig, "error", err)
		s.writeSignal(w, sig, nil)
		return
	}
	s.writeSignal(w, sig, map[string]any{"indexed_chunks": result.InsertedItems})
}

func (s *Server) handleCollectionInfo(w http.ResponseWriter, r *http.Request) {
	projectID, ok := s.projectID(w, r)
	if !ok {
		return
	}

	info, err := s.services.NLP.CollectionInfo(r.Context(), projectID)
	if err != nil {
		s.logger.Error("collection info failed", "project_id", projectID, "error", err)
		s.writeSignal(w, signal.FetchingCollectionInfoFailed, nil)
		return
	}
	s.writeSignal(w, signal.FetchingCollectionInfoCompleted, map[string]any{
		"collection_info": info,
	})
}

type searchRequest struct {
	Text string `json:"text"`
	TopK int    `json:"top_k"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	projectID, ok := s.projectID(w, r)
	if !ok {
		return
	}

	req := searchRequest{TopK: 10}
	if err := decodeBody(r, &req); err != nil {
		s.writeSignal(w, signal.SearchFailed, map[string]any{"error": err.Error()})
		return
	}

	docs, sig, err := s.services.NLP.Search(r.Context(), projectID, req.Text, req.TopK)
	if err != nil {
		s.logger.Error("search failed", "project_id", projectID, "signal", sig, "error", err)
		s.writeSignal(w, sig, nil)
		return
	}
	s.writeSignal(w, sig, map[string]any{"results": docs})
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	projectID, ok := s.projectID(w, r)
	if !ok {
		return
	}

	req := searchRequest{TopK: 10}
	if err := decodeBody(r, &req); err != nil {
		s.writeSignal(w, signal.AnswerGenerationFailed, map[string]any{"error": err.Error()})
		return
	}

	result, sig, err := s.services.NLP.Answer(r.Context(), projectID, req.Text, req.TopK)
	if err != nil {
		s.logger.Error("answer failed", "project_id", projectID, "signal", sig, "error", err)
		s.writeSignal(w, sig, nil)
		return
	}
	s.writeSignal(w, sig, map[string]any{
		"answer":       result.Answer,
		"full_prompt":  result.FullPrompt,
		"chat_history": result.ChatHistory,
	})
}

type evalRequest struct {
	TestQueries []eval.Sample `json:"test_queries"`
	TopK        int           `json:"top_k"`
}

func (s *Server) handleEval(w http.ResponseWriter, r *http.Request) {
	projectID, ok := s.projectID(w, r)
	if !ok {
		return
	}

	req := evalRequest{TopK: 10}
	if err := decodeBody(r, &req); err != nil {
		s.writeSignal(w, signal.EvaluationFailed, map[string]any{"error": err.Error()})
		return
	}

	report, sig, err := s.services.Eval.Run(r.Context(), projectID, req.TestQueries, req.TopK)
	if err != nil {
		s.logger.Error("evaluation failed", "project_id", projectID, "signal", sig, "error", err)
		s.writeSignal(w, sig, nil)
		return
	}
	s.writeSignal(w, sig, map[string]any{
		"provider": report.Provider,
		"scores":   report.Scores,
		"records":  report.Records,
	})
}

// decodeBody parses an optional JSON body. An empty body leaves the request
// struct at its defaults.
func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}
