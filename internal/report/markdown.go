// Package report renders analysis results into human-readable output
// and optionally publishes them to object storage.
package report

import (
	"fmt"
	"path/filepath"
	"strings"

	"repolens/internal/fact"
	"repolens/internal/graph"
	"repolens/internal/scan"
)

// Markdown renders a full analysis report.
func Markdown(s *scan.RepoStructure, bundle *fact.Bundle, g *graph.Graph) string {
	var b strings.Builder

	repoName := filepath.Base(s.RootPath)
	fmt.Fprintf(&b, "# Repository Analysis: %s\n\n", repoName)
	fmt.Fprintf(&b, "%d files, %d lines of code.\n\n", s.TotalFiles, s.TotalLines)

	if len(s.Languages) > 0 {
		b.WriteString("## Languages\n\n")
		for _, lc := range s.Languages {
			fmt.Fprintf(&b, "- %s: %d files, %d lines\n", lc.Name, lc.Files, lc.Lines)
		}
		b.WriteString("\n")
	}

	writeSection(&b, "Entry Points", bundle.ByKind(fact.KindEntryPoint), func(f fact.Fact) string {
		return fmt.Sprintf("%s (%s)", f.Summary, evidenceRef(f))
	})
	writeSection(&b, "Frameworks", bundle.ByKind(fact.KindFramework), func(f fact.Fact) string {
		return f.Summary
	})
	writeSection(&b, "API Routes", bundle.ByKind(fact.KindRoute), func(f fact.Fact) string {
		line := fmt.Sprintf("`%s`", f.Summary)
		if handler, ok := f.StringAttr("handler"); ok {
			line += fmt.Sprintf(" -> %s", handler)
		}
		return fmt.Sprintf("%s (%s)", line, evidenceRef(f))
	})
	writeSection(&b, "Domain Entities", bundle.ByKind(fact.KindDomainEntity), func(f fact.Fact) string {
		return fmt.Sprintf("%s (%s)", f.Summary, evidenceRef(f))
	})
	writeSection(&b, "Subsystems", bundle.ByKind(fact.KindSubsystem), func(f fact.Fact) string {
		return f.Summary
	})
	writeSection(&b, "Configuration", bundle.ByKind(fact.KindConfigFile), func(f fact.Fact) string {
		return f.Summary
	})
	writeSection(&b, "Environment Variables", bundle.ByKind(fact.KindEnvVar), func(f fact.Fact) string {
		name, _ := f.StringAttr("name")
		file, _ := f.StringAttr("file")
		return fmt.Sprintf("`%s` (read in %s)", name, file)
	})
	writeSection(&b, "Architecture Patterns", bundle.ByKind(fact.KindPattern), func(f fact.Fact) string {
		return f.Summary
	})

	risks := bundle.ByKind(fact.KindRisk)
	if len(risks) > 0 {
		b.WriteString("## Risk Areas\n\n")
		for _, f := range risks {
			severity, _ := f.StringAttr("severity")
			desc, _ := f.StringAttr("description")
			fmt.Fprintf(&b, "- **[%s]** %s: %s\n", severity, f.Summary, desc)
		}
		b.WriteString("\n")
	}

	if g != nil && len(g.Layers) > 0 {
		b.WriteString("## Architecture Layers\n\n")
		for _, layer := range g.Layers {
			fmt.Fprintf(&b, "### %s\n\n", layer.Name)
			for _, file := range layer.Files {
				fmt.Fprintf(&b, "- %s\n", file)
			}
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d import edges resolved between %d files.\n\n", len(g.Edges), len(g.Nodes))
	}

	return b.String()
}

func writeSection(b *strings.Builder, title string, facts []fact.Fact, line func(fact.Fact) string) {
	if len(facts) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n\n", title)
	for _, f := range facts {
		fmt.Fprintf(b, "- %s\n", line(f))
	}
	b.WriteString("\n")
}

func evidenceRef(f fact.Fact) string {
	if len(f.Evidence) == 0 {
		return "no evidence"
	}
	ev := f.Evidence[0]
	if ev.LineStart > 0 {
		return fmt.Sprintf("%s:%d", ev.FilePath, ev.LineStart)
	}
	return ev.FilePath
}
