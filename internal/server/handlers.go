package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"repolens/internal/qa"
	"repolens/internal/scan"
)

const version = "0.3.0"

type analyzeRequest struct {
	RepoPath         string   `json:"repo_path"`
	MaxFileSize      int64    `json:"max_file_size,omitempty"`
	RespectGitignore *bool    `json:"respect_gitignore,omitempty"`
	IncludePatterns  []string `json:"include_patterns,omitempty"`
	ExcludePatterns  []string `json:"exclude_patterns,omitempty"`
}

type askRequest struct {
	analyzeRequest
	Question string `json:"question"`
	UseLLM   bool   `json:"use_llm,omitempty"`
}

type askResponse struct {
	Question string     `json:"question"`
	Answer   *qa.Answer `json:"answer,omitempty"`
	LLMText  string     `json:"llm_answer,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler wires the service's HTTP surface.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func BuildMux(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", h.handleHealth)
	mux.HandleFunc("POST /api/analyze", h.handleAnalyze)
	mux.HandleFunc("POST /api/ask", h.handleAsk)
	mux.HandleFunc("GET /api/results/", h.handleResults)
	mux.HandleFunc("GET /api/watch", h.handleWatchWS)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": version})
}

func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if strings.TrimSpace(req.RepoPath) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "repo_path is required"})
		return
	}
	result, err := h.svc.Analyze(r.Context(), req.RepoPath, req.options())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, scan.ErrNotDirectory) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if strings.TrimSpace(req.RepoPath) == "" || strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "repo_path and question are required"})
		return
	}
	answer, llmText, err := h.svc.Ask(r.Context(), req.RepoPath, req.Question, req.UseLLM, req.options())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, scan.ErrNotDirectory) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}
	resp := askResponse{Question: req.Question}
	if llmText != "" {
		resp.LLMText = llmText
	} else {
		resp.Answer = &answer
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleResults serves a cached analysis without re-scanning. The repo
// path is everything after the route prefix.
func (h *Handler) handleResults(w http.ResponseWriter, r *http.Request) {
	repoPath := strings.TrimPrefix(r.URL.Path, "/api/results/")
	if repoPath == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "repository path is required"})
		return
	}
	if !strings.HasPrefix(repoPath, "/") {
		repoPath = "/" + repoPath
	}
	result, ok := h.svc.Cached(r.Context(), repoPath)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no cached result for this path"})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

const (
	watchWSWriteWait = 10 * time.Second
)

var watchUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type watchEvent struct {
	Type    string `json:"type"`
	Path    string `json:"path,omitempty"`
	Size    int64  `json:"size,omitempty"`
	Skipped bool   `json:"skipped,omitempty"`
	Total   int    `json:"total_files,omitempty"`
	Message string `json:"message,omitempty"`
}

// handleWatchWS analyzes ?repo= while streaming per-file progress over
// a websocket, ending with a done or error event.
func (h *Handler) handleWatchWS(w http.ResponseWriter, r *http.Request) {
	repoPath := strings.TrimSpace(r.URL.Query().Get("repo"))
	if repoPath == "" {
		http.Error(w, "repo query parameter is required", http.StatusBadRequest)
		return
	}
	conn, err := watchUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("watch upgrade: %v", err)
		return
	}
	defer conn.Close()

	send := func(ev watchEvent) bool {
		conn.SetWriteDeadline(time.Now().Add(watchWSWriteWait))
		return conn.WriteJSON(ev) == nil
	}

	respect := true
	result, err := h.svc.analyze(r.Context(), repoPath, AnalyzeOptions{RespectGitignore: respect}, func(v scan.FileVisit) {
		send(watchEvent{Type: "file", Path: v.RelPath, Size: v.Size, Skipped: v.Skipped})
	})
	if err != nil {
		send(watchEvent{Type: "error", Message: err.Error()})
		return
	}
	send(watchEvent{Type: "done", Total: result.Structure.TotalFiles})
}

func (r analyzeRequest) options() AnalyzeOptions {
	respect := true
	if r.RespectGitignore != nil {
		respect = *r.RespectGitignore
	}
	return AnalyzeOptions{
		MaxFileSize:      r.MaxFileSize,
		RespectGitignore: respect,
		IncludePatterns:  r.IncludePatterns,
		ExcludePatterns:  r.ExcludePatterns,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}
