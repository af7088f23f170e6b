package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"repolens/internal/analysis"
	"repolens/internal/fact"
	"repolens/internal/graph"
	"repolens/internal/llmclient"
	"repolens/internal/qa"
	"repolens/internal/report"
	"repolens/internal/scan"
)

func main() {
	repo := flag.String("repo", "", "path to the repository root")
	outDir := flag.String("out", "", "write report.md and analysis.json here instead of stdout")
	maxFileSize := flag.Int64("max-file-size", 2_000_000, "skip files larger than this (bytes)")
	noGitignore := flag.Bool("no-gitignore", false, "do not respect .gitignore rules")
	include := flag.String("include", "", "comma-separated glob patterns to include")
	exclude := flag.String("exclude", "", "comma-separated glob patterns to exclude")
	question := flag.String("ask", "", "ask a question instead of printing the report")
	useLLM := flag.Bool("llm", false, "answer the question with Gemini")
	model := flag.String("model", "gemini-2.5-flash", "Gemini model id")
	flag.Parse()
	if *repo == "" {
		log.Fatal("--repo is required")
	}

	_ = godotenv.Load()

	structure, err := scan.Scan(*repo, scan.Options{
		MaxFileSize:       *maxFileSize,
		RespectIgnoreFile: !*noGitignore,
		IncludeGlobs:      splitPatterns(*include),
		ExcludeGlobs:      splitPatterns(*exclude),
	})
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("scanned %d files (%d lines) in %s", structure.TotalFiles, structure.TotalLines, *repo)

	bundle := analysis.NewPipeline().Analyze(structure)
	g := graph.Build(structure)
	log.Printf("extracted %d facts, %d graph nodes, %d edges", bundle.Len(), len(g.Nodes), len(g.Edges))

	if *question != "" {
		answerQuestion(structure, &bundle, g, *question, *useLLM, *model)
		return
	}

	md := report.Markdown(structure, &bundle, g)
	if *outDir == "" {
		fmt.Print(md)
		return
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(*outDir, "report.md"), []byte(md), 0o644); err != nil {
		log.Fatal(err)
	}
	docs := report.Render(structure, &bundle, g)
	for _, doc := range docs {
		if err := os.WriteFile(filepath.Join(*outDir, doc.Name), []byte(doc.Content), 0o644); err != nil {
			log.Fatal(err)
		}
	}
	payload, err := json.MarshalIndent(map[string]any{
		"structure":        structure,
		"facts":            bundle,
		"dependency_graph": g,
	}, "", "  ")
	if err != nil {
		log.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(*outDir, "analysis.json"), payload, 0o644); err != nil {
		log.Fatal(err)
	}
	log.Printf("wrote report.md, %d explanation files and analysis.json to %s", len(docs), *outDir)
}

func answerQuestion(structure *scan.RepoStructure, bundle *fact.Bundle, g *graph.Graph, question string, useLLM bool, model string) {
	if useLLM {
		ctx := context.Background()
		cli, err := llmclient.NewGeminiClient(ctx, model)
		if err != nil {
			log.Fatal(err)
		}
		prompt := llmclient.BuildPrompt(structure, bundle, g, question)
		text, err := cli.GenerateText(ctx, prompt)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(text)
		return
	}

	answer := qa.New(structure, bundle, g).Ask(question)
	fmt.Printf("Q: %s\n\n%s\n", answer.Question, answer.Summary)
	for _, d := range answer.Details {
		fmt.Printf("  - %s\n", d)
	}
	if len(answer.RelatedFiles) > 0 {
		fmt.Printf("\nRelated files: %s\n", strings.Join(answer.RelatedFiles, ", "))
	}
}

func splitPatterns(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
