package scan

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ignoreRule is a single parsed ignore-file pattern.
type ignoreRule struct {
	pattern string
	negate  bool
	dirOnly bool
}

// ignoreMatcher evaluates .gitignore-style rules against repo-relative
// slash paths. It is a pragmatic subset of gitwildmatch: anchored and
// floating patterns, directory-only rules, `!` negation. Later rules
// win, matching git semantics.
type ignoreMatcher struct {
	rules []ignoreRule
}

// loadIgnoreFile reads root/.gitignore; a missing or unreadable file
// yields a nil matcher (nothing ignored).
func loadIgnoreFile(root string) *ignoreMatcher {
	raw, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return parseIgnoreLines(strings.Split(string(raw), "\n"))
}

func parseIgnoreLines(lines []string) *ignoreMatcher {
	m := &ignoreMatcher{}
	for _, line := range lines {
		line = strings.TrimRight(line, " \r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		r := ignoreRule{}
		if strings.HasPrefix(line, "!") {
			r.negate = true
			line = line[1:]
		}
		if strings.HasSuffix(line, "/") {
			r.dirOnly = true
			line = strings.TrimSuffix(line, "/")
		}
		anchored := strings.HasPrefix(line, "/")
		line = strings.TrimPrefix(line, "/")
		if line == "" {
			continue
		}
		// A floating pattern without a separator matches at any depth.
		if !anchored && !strings.Contains(line, "/") {
			line = "**/" + line
		}
		r.pattern = line
		m.rules = append(m.rules, r)
	}
	if len(m.rules) == 0 {
		return nil
	}
	return m
}

// Match reports whether rel (slash-separated, relative to root) is
// ignored. Directory rules also pull in everything beneath the
// directory.
func (m *ignoreMatcher) Match(rel string, isDir bool) bool {
	if m == nil {
		return false
	}
	ignored := false
	for _, r := range m.rules {
		if r.dirOnly && !isDir && !m.underDir(r.pattern, rel) {
			continue
		}
		hit, _ := doublestar.Match(r.pattern, rel)
		if !hit && !r.dirOnly {
			// A plain rule naming a directory ignores its contents too.
			hit, _ = doublestar.Match(r.pattern+"/**", rel)
		}
		if !hit && r.dirOnly {
			hit = m.underDir(r.pattern, rel)
		}
		if hit {
			ignored = !r.negate
		}
	}
	return ignored
}

// underDir reports whether rel sits below a directory matching pattern.
func (m *ignoreMatcher) underDir(pattern, rel string) bool {
	dir := path.Dir(rel)
	for dir != "." && dir != "/" {
		if ok, _ := doublestar.Match(pattern, dir); ok {
			return true
		}
		dir = path.Dir(dir)
	}
	return false
}
