// Package qa answers free-text questions about an analyzed repository
// by keyword-matching the question against fact categories. It never
// calls out to the network; richer answers live in the llmclient
// package.
package qa

import (
	"fmt"
	"sort"
	"strings"

	"repolens/internal/fact"
	"repolens/internal/graph"
	"repolens/internal/scan"
)

// Answer is a structured reply to one question.
type Answer struct {
	Question     string   `json:"question"`
	Summary      string   `json:"summary"`
	Details      []string `json:"details,omitempty"`
	RelatedFiles []string `json:"related_files,omitempty"`
	Confidence   string   `json:"confidence"`
}

// topicKeywords maps a topic to the keywords that trigger it. Longer
// keywords score higher so specific phrasings beat generic ones.
var topicKeywords = map[string][]string{
	"frameworks":   {"framework", "library", "stack", "technology", "tech", "built with", "using"},
	"entry_points": {"entry", "start", "run", "launch", "boot", "main"},
	"config":       {"config", "configuration", "environment", "env", "settings", "setup"},
	"risks":        {"risk", "security", "vulnerability", "danger", "issue", "problem", "warning"},
	"architecture": {"architecture", "structure", "design", "pattern", "layer", "subsystem", "component"},
	"routes":       {"request", "flow", "api", "endpoint", "route", "http", "call"},
	"languages":    {"language", "python", "javascript", "typescript", "code", "lines"},
	"dependencies": {"dependency", "depend", "coupling", "import", "relationship"},
	"entities":     {"entity", "model", "domain", "data", "table", "schema"},
	"files":        {"file", "directory", "folder", "layout", "tree"},
}

// Answerer matches questions against one repository's analysis output.
type Answerer struct {
	structure *scan.RepoStructure
	bundle    *fact.Bundle
	graph     *graph.Graph
}

func New(structure *scan.RepoStructure, bundle *fact.Bundle, g *graph.Graph) *Answerer {
	return &Answerer{structure: structure, bundle: bundle, graph: g}
}

// Ask answers a question. An unmatchable question yields a low
// confidence answer listing what can be asked about.
func (a *Answerer) Ask(question string) Answer {
	topics := matchTopics(question)
	if len(topics) == 0 {
		return Answer{
			Question: question,
			Summary:  "I couldn't determine what you're asking about.",
			Details: []string{
				"Try asking about: frameworks, entry points, configuration, risks, architecture, routes, languages, dependencies, entities, or files.",
			},
			Confidence: "low",
		}
	}

	var ans Answer
	switch topics[0] {
	case "frameworks":
		ans = a.answerFrameworks()
	case "entry_points":
		ans = a.answerEntryPoints()
	case "config":
		ans = a.answerConfig()
	case "risks":
		ans = a.answerRisks()
	case "architecture":
		ans = a.answerArchitecture()
	case "routes":
		ans = a.answerRoutes()
	case "languages":
		ans = a.answerLanguages()
	case "dependencies":
		ans = a.answerDependencies()
	case "entities":
		ans = a.answerEntities()
	case "files":
		ans = a.answerFiles()
	}
	ans.Question = question
	return ans
}

// matchTopics scores each topic by the total length of its keywords
// found in the question, best first.
func matchTopics(question string) []string {
	q := strings.ToLower(question)
	scores := map[string]int{}
	for topic, keywords := range topicKeywords {
		score := 0
		for _, kw := range keywords {
			if strings.Contains(q, kw) {
				score += len(kw)
			}
		}
		if score > 0 {
			scores[topic] = score
		}
	}
	topics := make([]string, 0, len(scores))
	for t := range scores {
		topics = append(topics, t)
	}
	sort.Slice(topics, func(i, j int) bool {
		if scores[topics[i]] != scores[topics[j]] {
			return scores[topics[i]] > scores[topics[j]]
		}
		return topics[i] < topics[j]
	})
	return topics
}

func (a *Answerer) answerFrameworks() Answer {
	facts := a.bundle.ByKind(fact.KindFramework)
	if len(facts) == 0 {
		return Answer{Summary: "No specific frameworks were detected.", Confidence: "low"}
	}
	var details []string
	for _, f := range facts {
		details = append(details, f.Summary)
	}
	return Answer{
		Summary:      fmt.Sprintf("The project uses %d detected frameworks/libraries.", len(facts)),
		Details:      details,
		RelatedFiles: factFiles(facts),
		Confidence:   "high",
	}
}

func (a *Answerer) answerEntryPoints() Answer {
	facts := a.bundle.ByKind(fact.KindEntryPoint)
	if len(facts) == 0 {
		return Answer{Summary: "No obvious entry points were found.", Confidence: "low"}
	}
	var details []string
	for _, f := range facts {
		if file, ok := f.StringAttr("file"); ok {
			details = append(details, fmt.Sprintf("%s: %s", file, f.Summary))
		}
	}
	return Answer{
		Summary:      fmt.Sprintf("Found %d entry points. Start reading at %s.", len(facts), firstFile(facts)),
		Details:      details,
		RelatedFiles: factFiles(facts),
		Confidence:   "high",
	}
}

func (a *Answerer) answerConfig() Answer {
	configFiles := a.bundle.ByKind(fact.KindConfigFile)
	envVars := a.bundle.ByKind(fact.KindEnvVar)
	if len(configFiles) == 0 && len(envVars) == 0 {
		return Answer{Summary: "No configuration files or environment variables were detected.", Confidence: "low"}
	}
	var details []string
	for _, f := range configFiles {
		details = append(details, f.Summary)
	}
	if len(envVars) > 0 {
		var names []string
		for _, f := range envVars {
			if name, ok := f.StringAttr("name"); ok {
				names = append(names, name)
			}
		}
		details = append(details, fmt.Sprintf("Environment variables: %s", strings.Join(names, ", ")))
	}
	return Answer{
		Summary:      fmt.Sprintf("Found %d config files and %d environment variables.", len(configFiles), len(envVars)),
		Details:      details,
		RelatedFiles: factFiles(configFiles),
		Confidence:   "high",
	}
}

func (a *Answerer) answerRisks() Answer {
	facts := a.bundle.ByKind(fact.KindRisk)
	if len(facts) == 0 {
		return Answer{Summary: "No notable risk areas were detected.", Confidence: "medium"}
	}
	var details []string
	for _, f := range facts {
		severity, _ := f.StringAttr("severity")
		desc, _ := f.StringAttr("description")
		details = append(details, fmt.Sprintf("[%s] %s: %s", severity, f.Summary, desc))
	}
	return Answer{
		Summary:      fmt.Sprintf("Found %d risk areas worth reviewing.", len(facts)),
		Details:      details,
		RelatedFiles: factFiles(facts),
		Confidence:   "medium",
	}
}

func (a *Answerer) answerArchitecture() Answer {
	subsystems := a.bundle.ByKind(fact.KindSubsystem)
	patterns := a.bundle.ByKind(fact.KindPattern)
	var details []string
	for _, f := range subsystems {
		details = append(details, f.Summary)
	}
	for _, f := range patterns {
		details = append(details, fmt.Sprintf("Pattern: %s", f.Summary))
	}
	if a.graph != nil {
		for _, layer := range a.graph.Layers {
			details = append(details, fmt.Sprintf("Layer %s: %d files", layer.Name, len(layer.Files)))
		}
	}
	if len(details) == 0 {
		return Answer{Summary: "No clear architectural structure was detected.", Confidence: "low"}
	}
	return Answer{
		Summary:    fmt.Sprintf("Detected %d subsystems and %d architectural patterns.", len(subsystems), len(patterns)),
		Details:    details,
		Confidence: "medium",
	}
}

func (a *Answerer) answerRoutes() Answer {
	facts := a.bundle.ByKind(fact.KindRoute)
	if len(facts) == 0 {
		return Answer{Summary: "No API routes were detected.", Confidence: "low"}
	}
	var details []string
	for _, f := range facts {
		details = append(details, f.Summary)
	}
	return Answer{
		Summary:      fmt.Sprintf("The API exposes %d detected routes.", len(facts)),
		Details:      details,
		RelatedFiles: factFiles(facts),
		Confidence:   "high",
	}
}

func (a *Answerer) answerLanguages() Answer {
	if len(a.structure.Languages) == 0 {
		return Answer{Summary: "No recognized source languages.", Confidence: "low"}
	}
	var details []string
	for _, lc := range a.structure.Languages {
		details = append(details, fmt.Sprintf("%s: %d files, %d lines", lc.Name, lc.Files, lc.Lines))
	}
	return Answer{
		Summary: fmt.Sprintf("Primary language is %s. %d files, %d lines total.",
			a.structure.Languages[0].Name, a.structure.TotalFiles, a.structure.TotalLines),
		Details:    details,
		Confidence: "high",
	}
}

func (a *Answerer) answerDependencies() Answer {
	if a.graph == nil || len(a.graph.Edges) == 0 {
		return Answer{Summary: "No internal import relationships were resolved.", Confidence: "low"}
	}
	// Highlight the most depended-upon files.
	nodes := append([]graph.Node(nil), a.graph.Nodes...)
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].ImportedByCount != nodes[j].ImportedByCount {
			return nodes[i].ImportedByCount > nodes[j].ImportedByCount
		}
		return nodes[i].Path < nodes[j].Path
	})
	var details []string
	for i, n := range nodes {
		if i >= 5 || n.ImportedByCount == 0 {
			break
		}
		details = append(details, fmt.Sprintf("%s is imported by %d files", n.Path, n.ImportedByCount))
	}
	return Answer{
		Summary:    fmt.Sprintf("Resolved %d import edges between %d files.", len(a.graph.Edges), len(a.graph.Nodes)),
		Details:    details,
		Confidence: "medium",
	}
}

func (a *Answerer) answerEntities() Answer {
	facts := a.bundle.ByKind(fact.KindDomainEntity)
	if len(facts) == 0 {
		return Answer{Summary: "No domain entities (database models) were detected.", Confidence: "low"}
	}
	var details []string
	for _, f := range facts {
		details = append(details, f.Summary)
	}
	return Answer{
		Summary:      fmt.Sprintf("The system defines %d domain entities.", len(facts)),
		Details:      details,
		RelatedFiles: factFiles(facts),
		Confidence:   "high",
	}
}

func (a *Answerer) answerFiles() Answer {
	dirs, files := a.structure.TopLevel()
	var details []string
	for _, d := range dirs {
		details = append(details, fmt.Sprintf("%s/ (%d files)", d.RelPath, d.FileCount))
	}
	for _, f := range files {
		details = append(details, f.RelPath)
	}
	return Answer{
		Summary:    fmt.Sprintf("The repository has %d files across %d directories.", a.structure.TotalFiles, len(a.structure.Directories)),
		Details:    details,
		Confidence: "high",
	}
}

func factFiles(facts []fact.Fact) []string {
	seen := map[string]bool{}
	var files []string
	for _, f := range facts {
		for _, ev := range f.Evidence {
			if ev.FilePath != "" && !seen[ev.FilePath] {
				seen[ev.FilePath] = true
				files = append(files, ev.FilePath)
			}
		}
	}
	return files
}

func firstFile(facts []fact.Fact) string {
	for _, f := range facts {
		if file, ok := f.StringAttr("file"); ok {
			return file
		}
	}
	return "the repository root"
}
