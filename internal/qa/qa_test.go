package qa

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"repolens/internal/fact"
	"repolens/internal/graph"
	"repolens/internal/scan"
)

func testFixture() (*scan.RepoStructure, *fact.Bundle, *graph.Graph) {
	structure := &scan.RepoStructure{
		RootPath:   "/tmp/demo",
		TotalFiles: 4,
		TotalLines: 420,
		Languages: []scan.LanguageCount{
			{Name: "Python", Files: 3, Lines: 400},
			{Name: "JavaScript", Files: 1, Lines: 20},
		},
		Directories: []scan.DirectoryInfo{{RelPath: "app", FileCount: 3}},
	}
	bundle := &fact.Bundle{}
	bundle.Add(fact.Fact{
		Kind: fact.KindEntryPoint, Summary: "Application entry point",
		Confidence: fact.ConfidenceHigh,
		Evidence:   []fact.Evidence{{FilePath: "main.py"}},
		Attributes: map[string]any{"file": "main.py"},
	})
	bundle.Add(fact.Fact{
		Kind: fact.KindFramework, Summary: "FastAPI (Web Framework)",
		Confidence: fact.ConfidenceHigh,
		Evidence:   []fact.Evidence{{FilePath: "main.py"}},
	})
	bundle.Add(fact.Fact{
		Kind: fact.KindRoute, Summary: "GET /users",
		Confidence: fact.ConfidenceHigh,
		Evidence:   []fact.Evidence{{FilePath: "app/routes.py", LineStart: 7}},
	})
	bundle.Add(fact.Fact{
		Kind: fact.KindRisk, Summary: "Possible hardcoded password: creds.py",
		Confidence: fact.ConfidenceMedium,
		Evidence:   []fact.Evidence{{FilePath: "creds.py"}},
		Attributes: map[string]any{"severity": "high", "description": "review for exposed credentials"},
	})
	g := &graph.Graph{
		Nodes: []graph.Node{
			{Path: "main.py", NodeType: "entry_point", ImportsCount: 1},
			{Path: "app/routes.py", NodeType: "route", ImportedByCount: 1},
		},
		Edges:  []graph.Edge{{Source: "main.py", Target: "app/routes.py", EdgeType: "import", Count: 1}},
		Layers: []graph.Layer{{Name: "Entry Points", Files: []string{"main.py"}, Type: "entry_point"}},
	}
	return structure, bundle, g
}

func TestAsk_Frameworks(t *testing.T) {
	a := New(testFixture())
	ans := a.Ask("What frameworks does this project use?")
	assert.Equal(t, "high", ans.Confidence)
	assert.Contains(t, ans.Details, "FastAPI (Web Framework)")
	assert.Contains(t, ans.RelatedFiles, "main.py")
}

func TestAsk_EntryPoints(t *testing.T) {
	a := New(testFixture())
	ans := a.Ask("Where does the application start?")
	assert.Contains(t, ans.Summary, "main.py")
	assert.Equal(t, "high", ans.Confidence)
}

func TestAsk_Risks(t *testing.T) {
	a := New(testFixture())
	ans := a.Ask("Are there any security issues?")
	assert.Contains(t, ans.Details[0], "hardcoded password")
	assert.Contains(t, ans.RelatedFiles, "creds.py")
}

func TestAsk_Routes(t *testing.T) {
	a := New(testFixture())
	ans := a.Ask("What API endpoints are exposed?")
	assert.Contains(t, ans.Details, "GET /users")
}

func TestAsk_Languages(t *testing.T) {
	a := New(testFixture())
	ans := a.Ask("What language is this codebase written in?")
	assert.Contains(t, ans.Summary, "Python")
}

func TestAsk_Dependencies(t *testing.T) {
	a := New(testFixture())
	ans := a.Ask("Which files have the most coupling?")
	assert.Contains(t, ans.Summary, "1 import edges")
	assert.Contains(t, ans.Details[0], "app/routes.py")
}

func TestAsk_Unmatched(t *testing.T) {
	a := New(testFixture())
	ans := a.Ask("zzz qqq")
	assert.Equal(t, "low", ans.Confidence)
	assert.NotEmpty(t, ans.Details)
}

func TestMatchTopics_LongerKeywordsWin(t *testing.T) {
	topics := matchTopics("what is the architecture and structure of this system")
	assert.NotEmpty(t, topics)
	assert.Equal(t, "architecture", topics[0])
}
