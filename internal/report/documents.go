package report

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"repolens/internal/fact"
	"repolens/internal/graph"
	"repolens/internal/scan"
)

// Document is a rendered explanation file ready to write or upload.
type Document struct {
	Name    string
	Content string
}

// Render produces the full explanation set for one analysis result.
func Render(s *scan.RepoStructure, bundle *fact.Bundle, g *graph.Graph) []Document {
	return []Document{
		{Name: "overview.md", Content: Overview(s, bundle)},
		{Name: "architecture.md", Content: Architecture(s, bundle, g)},
		{Name: "request-flow.md", Content: RequestFlow(s, bundle, g)},
		{Name: "first-read.md", Content: FirstRead(s, bundle)},
	}
}

func writeHeader(b *strings.Builder, title, repoName string) {
	fmt.Fprintf(b, "# %s\n\n", title)
	fmt.Fprintf(b, "Repository: `%s`\n\n", repoName)
	b.WriteString("---\n\n")
}

// Overview renders the technology stack, structure, entry points,
// configuration and quick stats.
func Overview(s *scan.RepoStructure, bundle *fact.Bundle) string {
	var b strings.Builder
	writeHeader(&b, "Codebase Overview", filepath.Base(s.RootPath))

	b.WriteString("## Technology Stack\n\n")
	if len(s.Languages) > 0 {
		b.WriteString("**Languages:**\n")
		for i, lc := range s.Languages {
			if i >= 5 {
				break
			}
			fmt.Fprintf(&b, "- %s: %d lines\n", lc.Name, lc.Lines)
		}
		b.WriteString("\n")
	}
	if frameworks := bundle.ByKind(fact.KindFramework); len(frameworks) > 0 {
		b.WriteString("**Frameworks and Libraries:**\n")
		for _, f := range frameworks {
			name, _ := f.StringAttr("name")
			category, _ := f.StringAttr("category")
			fmt.Fprintf(&b, "- %s (%s)\n", name, category)
		}
		b.WriteString("\n")
	}

	dirs, files := s.TopLevel()
	b.WriteString("## Project Structure\n\n")
	if len(dirs) > 0 {
		b.WriteString("**Directories:**\n")
		for _, d := range dirs {
			fmt.Fprintf(&b, "- `%s/` (%d files)\n", d.RelPath, d.FileCount)
		}
		b.WriteString("\n")
	}
	if len(files) > 0 {
		b.WriteString("**Key Files:**\n")
		for _, fi := range files {
			fmt.Fprintf(&b, "- `%s`\n", fi.RelPath)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Entry Points\n\n")
	if entries := bundle.ByKind(fact.KindEntryPoint); len(entries) > 0 {
		for _, f := range entries {
			file, _ := f.StringAttr("file")
			fmt.Fprintf(&b, "- `%s` - %s\n", file, f.Summary)
		}
		b.WriteString("\n")
	} else {
		b.WriteString("No clear entry points detected.\n\n")
	}

	if routes := bundle.ByKind(fact.KindRoute); len(routes) > 0 {
		b.WriteString("## API Surface\n\n")
		fmt.Fprintf(&b, "The API exposes %d endpoint(s):\n\n", len(routes))
		b.WriteString("| Method | Path | Source |\n")
		b.WriteString("|--------|------|--------|\n")
		shown := routes
		if len(shown) > 15 {
			shown = shown[:15]
		}
		for _, f := range shown {
			method, _ := f.StringAttr("method")
			routePath, ok := f.StringAttr("path")
			if !ok {
				routePath = "<dynamic>"
			}
			fmt.Fprintf(&b, "| `%s` | `%s` | %s |\n", method, routePath, evidenceRef(f))
		}
		if len(routes) > 15 {
			fmt.Fprintf(&b, "\n*... and %d more endpoints*\n", len(routes)-15)
		}
		b.WriteString("\n")
	}

	if entities := bundle.ByKind(fact.KindDomainEntity); len(entities) > 0 {
		b.WriteString("## Domain Entities\n\n")
		shown := entities
		if len(shown) > 10 {
			shown = shown[:10]
		}
		for _, f := range shown {
			fmt.Fprintf(&b, "- **%s**\n", f.Summary)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Configuration\n\n")
	if configs := bundle.ByKind(fact.KindConfigFile); len(configs) > 0 {
		b.WriteString("**Configuration Files:**\n")
		for _, f := range configs {
			file, _ := f.StringAttr("file")
			fmt.Fprintf(&b, "- `%s`\n", file)
		}
		b.WriteString("\n")
	}
	if envVars := bundle.ByKind(fact.KindEnvVar); len(envVars) > 0 {
		b.WriteString("**Environment Variables:**\n")
		shown := envVars
		if len(shown) > 15 {
			shown = shown[:15]
		}
		for _, f := range shown {
			name, _ := f.StringAttr("name")
			fmt.Fprintf(&b, "- `%s`\n", name)
		}
		if len(envVars) > 15 {
			fmt.Fprintf(&b, "- ... and %d more\n", len(envVars)-15)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Quick Stats\n\n")
	fmt.Fprintf(&b, "- **Total Files:** %d\n", s.TotalFiles)
	fmt.Fprintf(&b, "- **Total Lines:** %d\n", s.TotalLines)
	fmt.Fprintf(&b, "- **Languages:** %d\n", len(s.Languages))
	if len(s.Languages) > 0 {
		fmt.Fprintf(&b, "- **Primary Language:** %s\n", s.Languages[0].Name)
	}
	b.WriteString("\n")

	return b.String()
}

// Architecture renders subsystems, detected patterns, coupling derived
// from the dependency graph, and risk areas grouped by severity.
func Architecture(s *scan.RepoStructure, bundle *fact.Bundle, g *graph.Graph) string {
	var b strings.Builder
	writeHeader(&b, "Architecture", filepath.Base(s.RootPath))

	b.WriteString("## Subsystems\n\n")
	if subsystems := bundle.ByKind(fact.KindSubsystem); len(subsystems) > 0 {
		for _, f := range subsystems {
			name, _ := f.StringAttr("name")
			dir, _ := f.StringAttr("directory")
			fmt.Fprintf(&b, "### %s\n\n", name)
			fmt.Fprintf(&b, "**Directory:** `%s/`\n\n", dir)
			if keyFiles, ok := f.Attributes["key_files"].([]string); ok && len(keyFiles) > 0 {
				b.WriteString("**Key files:**\n")
				for _, kf := range keyFiles {
					fmt.Fprintf(&b, "- `%s`\n", kf)
				}
				b.WriteString("\n")
			}
		}
	} else {
		b.WriteString("No clear subsystems detected. The codebase may be relatively flat.\n\n")
	}

	b.WriteString("## Patterns Detected\n\n")
	if patterns := bundle.ByKind(fact.KindPattern); len(patterns) > 0 {
		for _, f := range patterns {
			fmt.Fprintf(&b, "- %s\n", f.Summary)
		}
		b.WriteString("\n")
	} else {
		b.WriteString("No specific architectural patterns detected.\n\n")
	}

	b.WriteString("## Coupling and Dependencies\n\n")
	if g != nil && len(g.Layers) > 0 {
		b.WriteString("Resolved import edges group the files into these layers:\n\n")
		for _, layer := range g.Layers {
			fmt.Fprintf(&b, "- **%s** (%d files)\n", layer.Name, len(layer.Files))
		}
		b.WriteString("\n**Simplified flow:**\n```\n")
		var names []string
		for _, layer := range g.Layers {
			names = append(names, layer.Name)
			if len(names) == 4 {
				break
			}
		}
		b.WriteString(strings.Join(names, " -> ") + "\n")
		b.WriteString("```\n\n")
		fmt.Fprintf(&b, "%d import edges resolved between %d files.\n\n", len(g.Edges), len(g.Nodes))
	} else {
		b.WriteString("Unable to determine coupling without resolved imports.\n\n")
	}

	b.WriteString("## Risk Areas\n\n")
	risks := bundle.ByKind(fact.KindRisk)
	if len(risks) == 0 {
		b.WriteString("No significant risk areas detected.\n\n")
		return b.String()
	}
	for _, severity := range []string{"high", "medium", "low"} {
		var group []fact.Fact
		for _, f := range risks {
			if sev, _ := f.StringAttr("severity"); sev == severity {
				group = append(group, f)
			}
		}
		if len(group) == 0 {
			continue
		}
		fmt.Fprintf(&b, "### %s Severity\n\n", strings.ToUpper(severity[:1])+severity[1:])
		for _, f := range group {
			location, _ := f.StringAttr("location")
			desc, _ := f.StringAttr("description")
			fmt.Fprintf(&b, "**%s** - `%s`\n\n%s\n\n", f.Summary, location, desc)
		}
	}
	return b.String()
}

// RequestFlow renders a layer-by-layer walk of how a request moves
// through the codebase, or says so when no API surface exists.
func RequestFlow(s *scan.RepoStructure, bundle *fact.Bundle, g *graph.Graph) string {
	var b strings.Builder
	writeHeader(&b, "Request Flow", filepath.Base(s.RootPath))

	routes := bundle.ByKind(fact.KindRoute)
	if len(routes) == 0 || g == nil || len(g.Layers) == 0 {
		b.WriteString("## Overview\n\n")
		b.WriteString("Unable to trace a clear request flow. This may be a non-API codebase ")
		b.WriteString("or uses patterns not recognized here.\n\n")
		return b.String()
	}

	b.WriteString("## Overview\n\n")
	fmt.Fprintf(&b, "A request enters through one of %d endpoint(s) and moves through the layers below.\n\n", len(routes))

	b.WriteString("## Step-by-Step Flow\n\n")
	step := 1
	for _, layer := range g.Layers {
		fmt.Fprintf(&b, "### %d. %s\n\n", step, layer.Name)
		shown := layer.Files
		if len(shown) > 5 {
			shown = shown[:5]
		}
		for _, file := range shown {
			fmt.Fprintf(&b, "- `%s`\n", file)
		}
		if len(layer.Files) > 5 {
			fmt.Fprintf(&b, "- ... and %d more\n", len(layer.Files)-5)
		}
		b.WriteString("\n---\n\n")
		step++
	}

	b.WriteString("## Key Touchpoints\n\n")
	if configs := bundle.ByKind(fact.KindConfigFile); len(configs) > 0 {
		for _, f := range configs {
			file, _ := f.StringAttr("file")
			fmt.Fprintf(&b, "- Configuration read from `%s`\n", file)
		}
		b.WriteString("\n")
	} else {
		b.WriteString("No additional touchpoints identified beyond the main flow.\n\n")
	}
	return b.String()
}

// FirstRead renders a suggested reading order: entry points first, then
// configuration, models and routes, with test and migration files
// marked as skippable.
func FirstRead(s *scan.RepoStructure, bundle *fact.Bundle) string {
	var b strings.Builder
	writeHeader(&b, "First Read Guide", filepath.Base(s.RootPath))

	b.WriteString("## Start Here\n\n")
	b.WriteString("Read these files first, in order. They will give you the fastest path ")
	b.WriteString("to understanding how this system works.\n\n")

	type recommendation struct {
		file string
		why  string
	}
	var recs []recommendation
	seen := map[string]bool{}
	addKind := func(kind fact.Kind, why string, limit int) {
		added := 0
		for _, f := range bundle.ByKind(kind) {
			if added >= limit {
				return
			}
			file, ok := f.StringAttr("file")
			if !ok && len(f.Evidence) > 0 {
				file = f.Evidence[0].FilePath
			}
			if file == "" || seen[file] {
				continue
			}
			seen[file] = true
			recs = append(recs, recommendation{file: file, why: why})
			added++
		}
	}
	addKind(fact.KindEntryPoint, "Understand how the application boots.", 2)
	addKind(fact.KindConfigFile, "Know what settings and environment variables exist.", 2)
	addKind(fact.KindDomainEntity, "Understand the domain entities.", 3)
	addKind(fact.KindRoute, "See the public interface.", 3)

	if len(recs) > 0 {
		for i, rec := range recs {
			fmt.Fprintf(&b, "### %d. `%s`\n\n%s\n\n", i+1, rec.file, rec.why)
		}
	} else {
		b.WriteString("No clear reading order could be determined. Start with any entry ")
		b.WriteString("point file you can find.\n\n")
	}

	b.WriteString("## Can Skip Initially\n\n")
	var skips []string
	for _, fi := range s.Files {
		base := path.Base(fi.RelPath)
		if strings.HasPrefix(base, "test_") || strings.HasSuffix(base, "_test.py") ||
			strings.Contains(fi.RelPath, "migrations/") ||
			strings.Contains(strings.ToLower(fi.RelPath), "test/") ||
			strings.Contains(strings.ToLower(fi.RelPath), "tests/") {
			skips = append(skips, fi.RelPath)
		}
	}
	if len(skips) > 0 {
		b.WriteString("These files are safe to ignore on your first pass:\n\n")
		shown := skips
		if len(shown) > 5 {
			shown = shown[:5]
		}
		for _, p := range shown {
			fmt.Fprintf(&b, "- `%s`\n", p)
		}
		if len(skips) > 5 {
			fmt.Fprintf(&b, "- ... and %d more\n", len(skips)-5)
		}
		b.WriteString("\n")
	} else {
		b.WriteString("No files identified as skippable. Everything appears relevant.\n\n")
	}

	b.WriteString("## Reading Order Rationale\n\n")
	b.WriteString("1. **Entry point first** - Understand how the application boots\n")
	b.WriteString("2. **Configuration second** - Know what environment variables and settings exist\n")
	b.WriteString("3. **Data models third** - Understand the domain entities\n")
	b.WriteString("4. **API routes fourth** - See the public interface\n\n")
	b.WriteString("This mirrors how a request flows through the system.\n")

	return b.String()
}
