// Package fact defines the shared vocabulary for evidence-backed
// observations derived from a repository. Every analyzer emits Facts;
// downstream consumers (reports, Q&A, the API) only ever read them.
package fact

import "sort"

// Confidence grades how statically certain a fact is.
//
// HIGH means the value was a literal constant resolved statically.
// MEDIUM means the fact itself is certain but its content could not be
// resolved (e.g. a computed route path). LOW is reserved for weak or
// indirect signals.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Kind is the category of a fact.
type Kind string

const (
	KindEntryPoint   Kind = "entry_point"
	KindFramework    Kind = "framework"
	KindRoute        Kind = "route"
	KindDomainEntity Kind = "domain_entity"
	KindConfigFile   Kind = "config_file"
	KindEnvVar       Kind = "env_var"
	KindSubsystem    Kind = "subsystem"
	KindPattern      Kind = "pattern"
	KindRisk         Kind = "risk"
)

// Evidence points at the exact file/line that justifies a fact.
// FilePath is always relative to the repository root.
type Evidence struct {
	FilePath  string `json:"file_path"`
	LineStart int    `json:"line_start,omitempty"`
	LineEnd   int    `json:"line_end,omitempty"`
	Symbol    string `json:"symbol,omitempty"`
	Snippet   string `json:"snippet,omitempty"`
}

// Fact is a single derived observation with evidence and confidence.
// Attributes is an open map; a present key with a nil value means the
// attribute exists but could not be resolved (serialized as null).
type Fact struct {
	Kind       Kind           `json:"kind"`
	Summary    string         `json:"summary"`
	Confidence Confidence     `json:"confidence"`
	Evidence   []Evidence     `json:"evidence,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// StringAttr returns the named attribute when it is a non-empty string.
func (f *Fact) StringAttr(key string) (string, bool) {
	v, ok := f.Attributes[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// Bundle is the ordered collection of facts from one analysis pass.
// It is additive while a pipeline runs and frozen afterwards.
type Bundle struct {
	Facts []Fact `json:"facts"`
}

func (b *Bundle) Add(f Fact) {
	b.Facts = append(b.Facts, f)
}

func (b *Bundle) Extend(facts []Fact) {
	b.Facts = append(b.Facts, facts...)
}

// ByKind returns the facts of one kind, preserving emission order.
func (b *Bundle) ByKind(k Kind) []Fact {
	var out []Fact
	for _, f := range b.Facts {
		if f.Kind == k {
			out = append(out, f)
		}
	}
	return out
}

func (b *Bundle) Len() int { return len(b.Facts) }

// Dedupe collapses facts sharing the same (kind, summary) pair, keeping
// the first occurrence. Two structurally distinct facts that render an
// identical summary therefore collapse; consumers relying on counts
// should be aware of that.
func Dedupe(facts []Fact) []Fact {
	type key struct {
		kind    Kind
		summary string
	}
	seen := make(map[key]bool, len(facts))
	unique := make([]Fact, 0, len(facts))
	for _, f := range facts {
		k := key{f.Kind, f.Summary}
		if seen[k] {
			continue
		}
		seen[k] = true
		unique = append(unique, f)
	}
	return unique
}

// Sort orders facts deterministically for stable downstream rendering:
// by summary, then first evidence file, then first evidence line.
func Sort(facts []Fact) {
	sort.SliceStable(facts, func(i, j int) bool {
		a, b := facts[i], facts[j]
		if a.Summary != b.Summary {
			return a.Summary < b.Summary
		}
		af, bf := firstEvidence(a), firstEvidence(b)
		if af.FilePath != bf.FilePath {
			return af.FilePath < bf.FilePath
		}
		return af.LineStart < bf.LineStart
	})
}

func firstEvidence(f Fact) Evidence {
	if len(f.Evidence) == 0 {
		return Evidence{}
	}
	return f.Evidence[0]
}
