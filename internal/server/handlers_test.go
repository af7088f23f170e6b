package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"repolens/internal/config"
)

func write(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()
	svc, err := NewService(&config.Config{CacheSize: 8, MaxFileSize: 1 << 20})
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return BuildMux(NewHandler(svc))
}

func postJSON(t *testing.T, mux *http.ServeMux, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	mux := newTestMux(t)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("body=%v", body)
	}
}

func TestAnalyze(t *testing.T) {
	repo := t.TempDir()
	write(t, repo, "main.py", "from fastapi import FastAPI\napp = FastAPI()\n")
	write(t, repo, "routes.py", `
from fastapi import APIRouter

router = APIRouter()

@router.get("/items")
def list_items():
    return []
`)

	mux := newTestMux(t)
	rec := postJSON(t, mux, "/api/analyze", analyzeRequest{RepoPath: repo})
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}

	var result Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Structure == nil || result.Structure.TotalFiles != 2 {
		t.Fatalf("structure=%+v", result.Structure)
	}
	if result.Bundle.Len() == 0 {
		t.Fatal("no facts extracted")
	}
	if result.Graph == nil || len(result.Graph.Nodes) != 2 {
		t.Fatalf("graph=%+v", result.Graph)
	}
}

func TestAnalyze_BadRequests(t *testing.T) {
	mux := newTestMux(t)

	rec := postJSON(t, mux, "/api/analyze", analyzeRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing repo_path: status=%d", rec.Code)
	}

	rec = postJSON(t, mux, "/api/analyze", analyzeRequest{RepoPath: "/does/not/exist"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad root: status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestAsk_Keyword(t *testing.T) {
	repo := t.TempDir()
	write(t, repo, "main.py", "from flask import Flask\napp = Flask(__name__)\n")

	mux := newTestMux(t)
	rec := postJSON(t, mux, "/api/ask", askRequest{
		analyzeRequest: analyzeRequest{RepoPath: repo},
		Question:       "what frameworks are used?",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}

	var resp askResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Answer == nil {
		t.Fatal("expected keyword answer")
	}
	if len(resp.Answer.Details) == 0 {
		t.Fatalf("answer=%+v", resp.Answer)
	}
}

func TestResults_CacheRoundTrip(t *testing.T) {
	repo := t.TempDir()
	write(t, repo, "app.py", "x = 1\n")

	mux := newTestMux(t)

	// Not analyzed yet.
	req := httptest.NewRequest(http.MethodGet, "/api/results"+repo, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d want 404", rec.Code)
	}

	if rec := postJSON(t, mux, "/api/analyze", analyzeRequest{RepoPath: repo}); rec.Code != http.StatusOK {
		t.Fatalf("analyze: status=%d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/results"+repo, nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var result Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Structure == nil || result.Structure.TotalFiles != 1 {
		t.Fatalf("structure=%+v", result.Structure)
	}
}
