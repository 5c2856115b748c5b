package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sweetpotato0/minirag/config"
)

func testServer() *Server {
	return New(":0", Services{
		Settings: &config.Settings{AppName: "minirag", AppVersion: "0.1.0"},
	})
}

func TestWelcome(t *testing.T) {
	s := testServer()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/", nil)
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json response: %v", err)
	}
	if body["app_name"] != "minirag" || body["app_version"] != "0.1.0" {
		t.Errorf("body = %v", body)
	}
}

func TestInvalidProjectID(t *testing.T) {
	s := testServer()
	paths := []string{
		"/api/v1/nlp/search/abc",
		"/api/v1/nlp/push/0",
		"/api/v1/upload/process/-3",
	}
	for _, path := range paths {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader("{}"))
		rec := httptest.NewRecorder()
		s.server.Handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, rec.Code)
		}
		var body map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("%s: invalid json response: %v", path, err)
		}
		if body["signal"] != "project_not_found" {
			t.Errorf("%s: signal = %v, want project_not_found", path, body["signal"])
		}
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s := testServer()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/nlp/search/1", nil)
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}
