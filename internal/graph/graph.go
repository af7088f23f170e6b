// Package graph builds the repository import graph: per-file nodes
// classified by architectural role, resolved import edges, and ordered
// layers. Resolution is best-effort; imports that point outside the
// repository simply produce no edge.
package graph

import (
	"path"
	"sort"
	"strings"
	"sync"

	"repolens/internal/analysis"
	"repolens/internal/scan"
)

// Node is one file in the import graph.
type Node struct {
	Path            string `json:"path"`
	Label           string `json:"label"`
	NodeType        string `json:"node_type"`
	Subsystem       string `json:"subsystem,omitempty"`
	ImportsCount    int    `json:"imports_count"`
	ImportedByCount int    `json:"imported_by_count"`
}

// Edge is one resolved import between two in-repo files. Count carries
// how many distinct import statements collapsed into this edge.
type Edge struct {
	Source     string `json:"source"`
	Target     string `json:"target"`
	ImportName string `json:"import_name"`
	EdgeType   string `json:"edge_type"`
	Count      int    `json:"count"`
}

// Layer groups node paths sharing a role, in display order.
type Layer struct {
	Name  string   `json:"name"`
	Files []string `json:"files"`
	Type  string   `json:"type"`
}

// Graph is the complete dependency graph for one repository snapshot.
type Graph struct {
	Nodes  []Node  `json:"nodes"`
	Edges  []Edge  `json:"edges"`
	Layers []Layer `json:"layers"`
}

// nodeTypes in display priority order. Classification takes the first
// matching type; layers render in this same order.
var nodeTypes = []string{"entry_point", "route", "service", "model", "config", "test", "module"}

var layerNames = map[string]string{
	"entry_point": "Entry Points",
	"route":       "Routes",
	"service":     "Services",
	"model":       "Models",
	"config":      "Configuration",
	"test":        "Tests",
	"module":      "Modules",
}

var entryFileNames = map[string]bool{
	"main.py": true, "app.py": true, "manage.py": true, "wsgi.py": true, "asgi.py": true,
	"index.js": true, "index.ts": true, "main.js": true, "main.ts": true,
	"server.js": true, "server.ts": true, "app.js": true, "app.ts": true,
}

var jsExts = map[string]bool{
	".js": true, ".jsx": true, ".mjs": true, ".cjs": true, ".ts": true, ".tsx": true,
}

// fileImports is the phase-1 product for one file: its raw import
// references, not yet resolved to targets.
type fileImports struct {
	path    string
	ext     string
	python  []analysis.PythonImport
	jsSpecs []string
}

// Build constructs the graph for the scanned repository. Extraction
// runs per file in parallel; resolution starts only after the module
// index and all local imports are complete.
func Build(s *scan.RepoStructure) *Graph {
	fileByModule, moduleByFile := analysis.ModuleIndex(s)

	var candidates []scan.FileInfo
	pathSet := map[string]bool{}
	for _, fi := range s.Files {
		if fi.Ext == ".py" || jsExts[fi.Ext] {
			candidates = append(candidates, fi)
			pathSet[fi.RelPath] = true
		}
	}

	var (
		mu       sync.Mutex
		imported = make([]fileImports, 0, len(candidates))
		wg       sync.WaitGroup
	)
	for _, fi := range candidates {
		if fi.Content == nil {
			continue
		}
		wg.Add(1)
		go func(fi scan.FileInfo) {
			defer wg.Done()
			src := []byte(*fi.Content)
			li := fileImports{path: fi.RelPath, ext: fi.Ext}
			if fi.Ext == ".py" {
				li.python = analysis.PythonImports(src, moduleByFile[fi.RelPath])
			} else {
				li.jsSpecs = analysis.JSImportSpecifiers(src, fi.Ext)
			}
			mu.Lock()
			imported = append(imported, li)
			mu.Unlock()
		}(fi)
	}
	wg.Wait()
	sort.Slice(imported, func(i, j int) bool { return imported[i].path < imported[j].path })

	edges := resolveEdges(imported, fileByModule, pathSet)

	g := &Graph{Edges: edges}
	g.Nodes = buildNodes(candidates, edges)
	g.Layers = buildLayers(g.Nodes)
	return g
}

func resolveEdges(imported []fileImports, fileByModule map[string]string, pathSet map[string]bool) []Edge {
	type key struct{ source, target string }
	byPair := map[key]*Edge{}
	var order []key

	add := func(source, target, importName string) {
		if target == "" || source == target || !pathSet[target] {
			return
		}
		k := key{source, target}
		if e, ok := byPair[k]; ok {
			e.Count++
			return
		}
		byPair[k] = &Edge{Source: source, Target: target, ImportName: importName, EdgeType: "import", Count: 1}
		order = append(order, k)
	}

	for _, li := range imported {
		if li.ext == ".py" {
			for _, imp := range li.python {
				if len(imp.Names) == 0 {
					add(li.path, fileByModule[imp.Module], imp.Module)
					continue
				}
				// A from-import may name a submodule or a symbol.
				// Prefer the deeper module when it exists.
				for _, name := range imp.Names {
					deep := imp.Module + "." + name
					if target, ok := fileByModule[deep]; ok {
						add(li.path, target, deep)
					} else {
						add(li.path, fileByModule[imp.Module], imp.Module)
					}
				}
			}
			continue
		}
		for _, spec := range li.jsSpecs {
			add(li.path, resolveJSSpecifier(li.path, spec, pathSet), spec)
		}
	}

	edges := make([]Edge, 0, len(order))
	for _, k := range order {
		edges = append(edges, *byPair[k])
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})
	return edges
}

// jsResolveExts is the candidate extension order for an extensionless
// relative specifier.
var jsResolveExts = []string{".js", ".ts", ".jsx", ".tsx", ".mjs", ".cjs"}

// resolveJSSpecifier maps a relative import specifier to a repo path,
// trying the bare path, known source extensions, then index files.
// Bare (package) specifiers resolve to nothing.
func resolveJSSpecifier(fromPath, spec string, pathSet map[string]bool) string {
	if !strings.HasPrefix(spec, "./") && !strings.HasPrefix(spec, "../") {
		return ""
	}
	base := path.Join(path.Dir(fromPath), spec)
	if pathSet[base] {
		return base
	}
	for _, ext := range jsResolveExts {
		if c := base + ext; pathSet[c] {
			return c
		}
	}
	for _, ext := range jsResolveExts {
		if c := path.Join(base, "index"+ext); pathSet[c] {
			return c
		}
	}
	return ""
}

func buildNodes(files []scan.FileInfo, edges []Edge) []Node {
	imports := map[string]int{}
	importedBy := map[string]int{}
	for _, e := range edges {
		imports[e.Source]++
		importedBy[e.Target]++
	}

	nodes := make([]Node, 0, len(files))
	for _, fi := range files {
		nodes = append(nodes, Node{
			Path:            fi.RelPath,
			Label:           path.Base(fi.RelPath),
			NodeType:        classify(fi.RelPath),
			Subsystem:       subsystemOf(fi.RelPath),
			ImportsCount:    imports[fi.RelPath],
			ImportedByCount: importedBy[fi.RelPath],
		})
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Path < nodes[j].Path })
	return nodes
}

// classify assigns the architectural role of a file, first match in
// priority order winning.
func classify(relPath string) string {
	lower := strings.ToLower(relPath)
	base := path.Base(lower)

	if entryFileNames[base] {
		return "entry_point"
	}
	if strings.Contains(lower, "route") || hasSegment(lower, "api") {
		return "route"
	}
	if strings.Contains(lower, "service") {
		return "service"
	}
	if strings.Contains(lower, "model") || strings.Contains(lower, "schema") || strings.Contains(lower, "entit") {
		return "model"
	}
	if strings.Contains(base, "config") || strings.Contains(base, "settings") {
		return "config"
	}
	if strings.Contains(lower, "test") {
		return "test"
	}
	return "module"
}

func hasSegment(p, seg string) bool {
	for _, s := range strings.Split(p, "/") {
		if s == seg {
			return true
		}
	}
	return false
}

func subsystemOf(relPath string) string {
	parts := strings.Split(relPath, "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[0]
}

func buildLayers(nodes []Node) []Layer {
	byType := map[string][]string{}
	for _, n := range nodes {
		byType[n.NodeType] = append(byType[n.NodeType], n.Path)
	}
	var layers []Layer
	for _, t := range nodeTypes {
		files := byType[t]
		if len(files) == 0 {
			continue
		}
		layers = append(layers, Layer{Name: layerNames[t], Files: files, Type: t})
	}
	return layers
}
