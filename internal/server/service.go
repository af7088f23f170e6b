// Package server exposes repository analysis over HTTP: scan, ask,
// cached result retrieval, and a websocket progress stream.
package server

import (
	"context"
	"fmt"
	"log"

	lru "github.com/hashicorp/golang-lru/v2"

	"repolens/internal/analysis"
	"repolens/internal/config"
	"repolens/internal/fact"
	"repolens/internal/graph"
	"repolens/internal/llmclient"
	"repolens/internal/qa"
	"repolens/internal/report"
	"repolens/internal/scan"
)

// Result is one complete analysis snapshot for a repository path.
type Result struct {
	Structure *scan.RepoStructure `json:"structure"`
	Bundle    fact.Bundle         `json:"facts"`
	Graph     *graph.Graph        `json:"dependency_graph"`
}

// Service runs analyses and caches results by repository path. Cached
// entries are reused by /api/ask so repeated questions do not re-scan.
type Service struct {
	cache       *lru.Cache[string, *Result]
	store       *ResultStore
	reports     *report.S3Store
	maxFileSize int64
	llmModel    string
}

func NewService(cfg *config.Config) (*Service, error) {
	cache, err := lru.New[string, *Result](cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	svc := &Service{
		cache:       cache,
		store:       NewResultStoreFromEnv(cfg.ResultsDSN),
		maxFileSize: cfg.MaxFileSize,
		llmModel:    cfg.LLMModel,
	}
	if cfg.Report.Enabled {
		s3, err := report.NewS3Store(report.S3Config{
			Endpoint:  cfg.Report.Endpoint,
			Region:    cfg.Report.Region,
			AccessKey: cfg.Report.AccessKey,
			SecretKey: cfg.Report.SecretKey,
			Bucket:    cfg.Report.Bucket,
			UseSSL:    cfg.Report.UseSSL,
		})
		if err != nil {
			log.Printf("report sink disabled: %v", err)
		} else {
			svc.reports = s3
		}
	}
	return svc, nil
}

// AnalyzeOptions are the per-request scan knobs.
type AnalyzeOptions struct {
	MaxFileSize      int64
	RespectGitignore bool
	IncludePatterns  []string
	ExcludePatterns  []string
}

// Analyze scans and analyzes the repository at repoPath, caching the
// result. When a report sink is configured the rendered markdown is
// published best-effort.
func (s *Service) Analyze(ctx context.Context, repoPath string, opts AnalyzeOptions) (*Result, error) {
	return s.analyze(ctx, repoPath, opts, nil)
}

func (s *Service) analyze(ctx context.Context, repoPath string, opts AnalyzeOptions, cb scan.VisitFunc) (*Result, error) {
	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = s.maxFileSize
	}
	structure, err := scan.ScanWithCallback(repoPath, scan.Options{
		MaxFileSize:       maxSize,
		RespectIgnoreFile: opts.RespectGitignore,
		IncludeGlobs:      opts.IncludePatterns,
		ExcludeGlobs:      opts.ExcludePatterns,
	}, cb)
	if err != nil {
		return nil, err
	}

	bundle := analysis.NewPipeline().Analyze(structure)
	result := &Result{
		Structure: structure,
		Bundle:    bundle,
		Graph:     graph.Build(structure),
	}
	s.cache.Add(repoPath, result)

	if s.store != nil {
		if err := s.store.Save(ctx, repoPath, result); err != nil {
			log.Printf("persist result for %s: %v", repoPath, err)
		}
	}
	if s.reports != nil {
		md := report.Markdown(structure, &result.Bundle, result.Graph)
		if err := s.reports.Put(ctx, repoPath, "report.md", []byte(md)); err != nil {
			log.Printf("publish report for %s: %v", repoPath, err)
		}
		for _, doc := range report.Render(structure, &result.Bundle, result.Graph) {
			if err := s.reports.Put(ctx, repoPath, doc.Name, []byte(doc.Content)); err != nil {
				log.Printf("publish %s for %s: %v", doc.Name, repoPath, err)
			}
		}
	}
	return result, nil
}

// Cached returns a previously computed result, checking the in-memory
// cache first and the persistent store second.
func (s *Service) Cached(ctx context.Context, repoPath string) (*Result, bool) {
	if result, ok := s.cache.Get(repoPath); ok {
		return result, true
	}
	if result, ok := s.store.Load(ctx, repoPath); ok {
		s.cache.Add(repoPath, result)
		return result, true
	}
	return nil, false
}

// Ask answers a question about a repository, analyzing it first when
// no cached result exists.
func (s *Service) Ask(ctx context.Context, repoPath, question string, useLLM bool, opts AnalyzeOptions) (qa.Answer, string, error) {
	result, ok := s.Cached(ctx, repoPath)
	if !ok {
		var err error
		result, err = s.Analyze(ctx, repoPath, opts)
		if err != nil {
			return qa.Answer{}, "", err
		}
	}

	if useLLM {
		cli, err := llmclient.NewGeminiClient(ctx, s.llmModel)
		if err != nil {
			return qa.Answer{}, "", fmt.Errorf("init llm client: %w", err)
		}
		prompt := llmclient.BuildPrompt(result.Structure, &result.Bundle, result.Graph, question)
		text, err := cli.GenerateText(ctx, prompt)
		if err != nil {
			return qa.Answer{}, "", fmt.Errorf("llm call: %w", err)
		}
		return qa.Answer{}, text, nil
	}

	answerer := qa.New(result.Structure, &result.Bundle, result.Graph)
	return answerer.Ask(question), "", nil
}
