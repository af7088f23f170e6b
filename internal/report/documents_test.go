package report

import (
	"strings"
	"testing"

	"repolens/internal/fact"
	"repolens/internal/graph"
	"repolens/internal/scan"
)

func docFixture() (*scan.RepoStructure, *fact.Bundle, *graph.Graph) {
	structure := &scan.RepoStructure{
		RootPath:   "/srv/repos/shop",
		TotalFiles: 6,
		TotalLines: 400,
		Languages:  []scan.LanguageCount{{Name: "Python", Files: 5, Lines: 380}},
		Files: []scan.FileInfo{
			{Path: "/srv/repos/shop/main.py", RelPath: "main.py", Ext: ".py"},
			{Path: "/srv/repos/shop/tests/test_orders.py", RelPath: "tests/test_orders.py", Ext: ".py"},
		},
		Directories: []scan.DirectoryInfo{
			{Path: "/srv/repos/shop/services", RelPath: "services", FileCount: 2},
		},
	}
	var bundle fact.Bundle
	bundle.Add(fact.Fact{
		Kind: fact.KindEntryPoint, Summary: "Application entry point",
		Evidence:   []fact.Evidence{{FilePath: "main.py", LineStart: 1}},
		Attributes: map[string]any{"file": "main.py"},
	})
	bundle.Add(fact.Fact{
		Kind: fact.KindFramework, Summary: "Uses FastAPI",
		Attributes: map[string]any{"name": "FastAPI", "category": "web framework"},
	})
	bundle.Add(fact.Fact{
		Kind: fact.KindRoute, Summary: "GET /api/orders",
		Evidence:   []fact.Evidence{{FilePath: "routes/orders.py", LineStart: 14}},
		Attributes: map[string]any{"method": "GET", "path": "/api/orders", "handler": "list_orders"},
	})
	bundle.Add(fact.Fact{
		Kind: fact.KindSubsystem, Summary: "Services: business logic",
		Evidence:   []fact.Evidence{{FilePath: "services"}},
		Attributes: map[string]any{"name": "Services", "directory": "services", "key_files": []string{"services/orders.py"}},
	})
	bundle.Add(fact.Fact{
		Kind: fact.KindConfigFile, Summary: "config.py: application settings",
		Evidence:   []fact.Evidence{{FilePath: "config.py"}},
		Attributes: map[string]any{"file": "config.py", "file_type": "Python config", "settings_count": 3},
	})
	bundle.Add(fact.Fact{
		Kind: fact.KindRisk, Summary: "Possible hardcoded secret",
		Attributes: map[string]any{"severity": "high", "location": "config.py", "description": "Assignment matches a secret pattern"},
	})
	g := &graph.Graph{
		Nodes: []graph.Node{{Path: "main.py"}, {Path: "routes/orders.py"}},
		Edges: []graph.Edge{{Source: "main.py", Target: "routes/orders.py"}},
		Layers: []graph.Layer{
			{Name: "Entry Points", Files: []string{"main.py"}, Type: "entry_point"},
			{Name: "Routes", Files: []string{"routes/orders.py"}, Type: "route"},
		},
	}
	return structure, &bundle, g
}

func TestOverview(t *testing.T) {
	structure, bundle, _ := docFixture()
	md := Overview(structure, bundle)

	for _, want := range []string{
		"# Codebase Overview",
		"Repository: `shop`",
		"- FastAPI (web framework)",
		"`services/` (2 files)",
		"`main.py` - Application entry point",
		"## API Surface",
		"| `GET` | `/api/orders` | routes/orders.py:14 |",
		"**Configuration Files:**",
		"- **Total Files:** 6",
		"- **Primary Language:** Python",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("overview missing %q:\n%s", want, md)
		}
	}
}

func TestArchitecture(t *testing.T) {
	structure, bundle, g := docFixture()
	md := Architecture(structure, bundle, g)

	for _, want := range []string{
		"# Architecture",
		"### Services",
		"**Directory:** `services/`",
		"- `services/orders.py`",
		"Entry Points -> Routes",
		"1 import edges resolved between 2 files.",
		"### High Severity",
		"**Possible hardcoded secret** - `config.py`",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("architecture missing %q:\n%s", want, md)
		}
	}
}

func TestRequestFlow(t *testing.T) {
	structure, bundle, g := docFixture()
	md := RequestFlow(structure, bundle, g)

	for _, want := range []string{
		"# Request Flow",
		"### 1. Entry Points",
		"### 2. Routes",
		"Configuration read from `config.py`",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("request flow missing %q:\n%s", want, md)
		}
	}
}

func TestRequestFlow_NoRoutes(t *testing.T) {
	structure := &scan.RepoStructure{RootPath: "/x/lib"}
	var bundle fact.Bundle

	md := RequestFlow(structure, &bundle, nil)
	if !strings.Contains(md, "Unable to trace a clear request flow") {
		t.Fatalf("expected fallback overview:\n%s", md)
	}
}

func TestFirstRead(t *testing.T) {
	structure, bundle, _ := docFixture()
	md := FirstRead(structure, bundle)

	for _, want := range []string{
		"# First Read Guide",
		"### 1. `main.py`",
		"Understand how the application boots.",
		"### 2. `config.py`",
		"- `tests/test_orders.py`",
		"## Reading Order Rationale",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("first read missing %q:\n%s", want, md)
		}
	}
}

func TestRender_Deterministic(t *testing.T) {
	structure, bundle, g := docFixture()

	first := Render(structure, bundle, g)
	second := Render(structure, bundle, g)
	if len(first) != 4 {
		t.Fatalf("expected 4 documents, got %d", len(first))
	}
	for i := range first {
		if first[i].Name != second[i].Name || first[i].Content != second[i].Content {
			t.Fatalf("document %s not deterministic", first[i].Name)
		}
	}
}
