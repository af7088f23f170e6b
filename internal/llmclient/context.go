package llmclient

import (
	"fmt"
	"path/filepath"
	"strings"

	"repolens/internal/fact"
	"repolens/internal/graph"
	"repolens/internal/scan"
)

const systemInstruction = `You are a codebase analysis assistant. Answer the question using only the
analysis context below. Be concrete: cite file paths from the context.
If the context does not contain the answer, say so.`

// BuildPrompt serializes the analysis results and the question into a
// single prompt. The context is capped per section to keep prompts
// bounded on large repositories.
func BuildPrompt(s *scan.RepoStructure, bundle *fact.Bundle, g *graph.Graph, question string) string {
	var b strings.Builder
	b.WriteString(systemInstruction)
	b.WriteString("\n\n[ANALYSIS CONTEXT]\n")

	fmt.Fprintf(&b, "Repository: %s\n", filepath.Base(s.RootPath))
	if len(s.Languages) > 0 {
		var langs []string
		for _, lc := range s.Languages {
			langs = append(langs, fmt.Sprintf("%s (%d lines)", lc.Name, lc.Lines))
		}
		fmt.Fprintf(&b, "Languages: %s\n", strings.Join(langs, ", "))
	}
	fmt.Fprintf(&b, "Total: %d files, %d lines\n", s.TotalFiles, s.TotalLines)

	writeFacts(&b, "Entry points", bundle.ByKind(fact.KindEntryPoint), 10)
	writeFacts(&b, "Frameworks", bundle.ByKind(fact.KindFramework), 15)
	writeFacts(&b, "API endpoints", bundle.ByKind(fact.KindRoute), 20)
	writeFacts(&b, "Domain entities", bundle.ByKind(fact.KindDomainEntity), 20)
	writeFacts(&b, "Subsystems", bundle.ByKind(fact.KindSubsystem), 10)
	writeFacts(&b, "Config files", bundle.ByKind(fact.KindConfigFile), 15)
	writeFacts(&b, "Environment variables", bundle.ByKind(fact.KindEnvVar), 20)
	writeFacts(&b, "Patterns", bundle.ByKind(fact.KindPattern), 10)
	writeFacts(&b, "Risk areas", bundle.ByKind(fact.KindRisk), 10)

	if g != nil && len(g.Layers) > 0 {
		b.WriteString("Architecture layers:\n")
		for _, layer := range g.Layers {
			files := layer.Files
			if len(files) > 8 {
				files = files[:8]
			}
			fmt.Fprintf(&b, "  - %s: %s\n", layer.Name, strings.Join(files, ", "))
		}
	}

	fmt.Fprintf(&b, "\n[QUESTION]\n%s\n", question)
	return b.String()
}

func writeFacts(b *strings.Builder, title string, facts []fact.Fact, limit int) {
	if len(facts) == 0 {
		return
	}
	fmt.Fprintf(b, "%s (%d):\n", title, len(facts))
	for i, f := range facts {
		if i >= limit {
			fmt.Fprintf(b, "  ... and %d more\n", len(facts)-limit)
			break
		}
		ref := ""
		if len(f.Evidence) > 0 {
			ref = " [" + f.Evidence[0].FilePath + "]"
		}
		fmt.Fprintf(b, "  - %s%s\n", f.Summary, ref)
	}
}
