// Package analysis turns a scanned repository into evidence-backed
// facts. Each language ecosystem gets its own analyzer; the pipeline
// runs every registered analyzer once and concatenates their bundles.
package analysis

import (
	"repolens/internal/fact"
	"repolens/internal/scan"
)

// Analyzer is one fact extractor. Implementations must be pure with
// respect to the structure: they read it, never mutate it, and share no
// state with other analyzers.
type Analyzer interface {
	Name() string
	Analyze(s *scan.RepoStructure) fact.Bundle
}

// Pipeline runs analyzers in registration order. Output ordering is
// registration order, then per-analyzer emission order, which keeps
// repeated runs over an unmodified tree byte-identical. There is no
// cross-analyzer dedup: analyzers own disjoint file sets by extension.
type Pipeline struct {
	analyzers []Analyzer
}

// NewPipeline registers the default analyzers.
func NewPipeline() *Pipeline {
	return &Pipeline{analyzers: []Analyzer{
		NewPythonAnalyzer(),
		NewJSAnalyzer(),
		NewStructureAnalyzer(),
	}}
}

// NewPipelineWith builds a pipeline from an explicit analyzer list.
func NewPipelineWith(analyzers ...Analyzer) *Pipeline {
	return &Pipeline{analyzers: analyzers}
}

// Analyze runs each registered analyzer exactly once.
func (p *Pipeline) Analyze(s *scan.RepoStructure) fact.Bundle {
	var bundle fact.Bundle
	for _, a := range p.analyzers {
		b := a.Analyze(s)
		bundle.Extend(b.Facts)
	}
	return bundle
}
