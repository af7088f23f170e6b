package analysis

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"repolens/internal/fact"
	"repolens/internal/scan"
)

// pythonFrameworks maps a top-level module name to (label, category).
var pythonFrameworks = map[string][2]string{
	"fastapi":    {"FastAPI", "Web Framework"},
	"flask":      {"Flask", "Web Framework"},
	"django":     {"Django", "Web Framework"},
	"sqlalchemy": {"SQLAlchemy", "ORM"},
	"pydantic":   {"Pydantic", "Data Validation"},
	"alembic":    {"Alembic", "Database Migrations"},
	"celery":     {"Celery", "Task Queue"},
	"redis":      {"Redis", "Cache/Message Broker"},
}

var routeMethods = map[string]bool{
	"get": true, "post": true, "put": true, "delete": true, "patch": true,
}

var pythonEntryPoints = map[string]string{
	"main.py":   "Application entry point",
	"app.py":    "Application factory or entry point",
	"manage.py": "Django management script",
	"wsgi.py":   "WSGI application entry",
	"asgi.py":   "ASGI application entry",
}

// ImportTarget is a resolved import binding: the dotted module path and
// the attribute pulled out of it, if any.
type ImportTarget struct {
	Module string
	Attr   string
}

// RouterInclude is one router mount edge: SourceFile mounts the router
// living in ChildFile under Prefix.
type RouterInclude struct {
	SourceFile string
	ChildFile  string
	Prefix     string
}

// PythonAnalyzer extracts facts from Python sources via syntax-tree
// parsing. Files that fail to parse are skipped; nothing here is fatal
// to the run.
type PythonAnalyzer struct{}

func NewPythonAnalyzer() *PythonAnalyzer { return &PythonAnalyzer{} }

func (a *PythonAnalyzer) Name() string { return "python" }

func (a *PythonAnalyzer) Analyze(s *scan.RepoStructure) fact.Bundle {
	var bundle fact.Bundle
	var routeFacts []fact.Fact
	var includes []RouterInclude

	fileByModule, moduleByFile := ModuleIndex(s)

	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	for _, fi := range s.FilesByExt(".py") {
		if fi.Content == nil {
			continue
		}
		src := []byte(*fi.Content)
		tree, err := parser.ParseCtx(context.Background(), nil, src)
		if err != nil {
			continue
		}
		root := tree.RootNode()
		if root == nil || root.HasError() {
			tree.Close()
			continue
		}

		entry := a.entryPointFacts(fi)
		bundle.Extend(entry)
		entryFiles := map[string]bool{}
		for _, f := range entry {
			if file, ok := f.StringAttr("file"); ok {
				entryFiles[file] = true
			}
		}
		bundle.Extend(a.appObjectFacts(root, src, fi, entryFiles))
		bundle.Extend(a.frameworkFacts(root, src, fi))

		prefixes := a.routerPrefixes(root, src)
		routeFacts = append(routeFacts, a.routeFacts(root, src, fi, prefixes)...)
		bundle.Extend(a.modelFacts(root, src, fi))

		imports := a.importMap(root, src, moduleByFile[fi.RelPath])
		includes = append(includes, a.includeEdges(root, src, fi, imports, fileByModule, prefixes)...)

		tree.Close()
	}

	a.applyIncludePrefixes(routeFacts, includes)
	bundle.Extend(routeFacts)
	return bundle
}

// ModuleIndex builds the repository-wide dotted-module index for Python
// files: module path -> file path, and the inverse. Package initializer
// files map to their parent package.
func ModuleIndex(s *scan.RepoStructure) (fileByModule, moduleByFile map[string]string) {
	fileByModule = map[string]string{}
	moduleByFile = map[string]string{}
	for _, fi := range s.FilesByExt(".py") {
		rel := fi.RelPath
		var module string
		if path.Base(rel) == "__init__.py" {
			module = strings.ReplaceAll(path.Dir(rel), "/", ".")
			if module == "." {
				module = ""
			}
		} else {
			module = strings.ReplaceAll(strings.TrimSuffix(rel, ".py"), "/", ".")
		}
		if module == "" {
			continue
		}
		fileByModule[module] = rel
		moduleByFile[rel] = module
	}
	return fileByModule, moduleByFile
}

func (a *PythonAnalyzer) entryPointFacts(fi scan.FileInfo) []fact.Fact {
	desc, ok := pythonEntryPoints[path.Base(fi.RelPath)]
	if !ok {
		return nil
	}
	return []fact.Fact{{
		Kind:       fact.KindEntryPoint,
		Summary:    desc,
		Confidence: fact.ConfidenceHigh,
		Evidence:   []fact.Evidence{{FilePath: fi.RelPath, LineStart: 1, LineEnd: 1}},
		Attributes: map[string]any{"file": fi.RelPath},
	}}
}

// appObjectFacts reports a file that constructs a top-level application
// object under a non-standard filename. Files already reported by name
// are not double-reported.
func (a *PythonAnalyzer) appObjectFacts(root *sitter.Node, src []byte, fi scan.FileInfo, entryFiles map[string]bool) []fact.Fact {
	if entryFiles[fi.RelPath] {
		return nil
	}
	var out []fact.Fact
	walkTree(root, func(n *sitter.Node) {
		if out != nil || n.Type() != "call" {
			return
		}
		fn := n.ChildByFieldName("function")
		if fn == nil || fn.Type() != "identifier" || fn.Content(src) != "FastAPI" {
			return
		}
		out = []fact.Fact{{
			Kind:       fact.KindEntryPoint,
			Summary:    "FastAPI application instance",
			Confidence: fact.ConfidenceHigh,
			Evidence:   []fact.Evidence{a.evidence(fi, n, "FastAPI")},
			Attributes: map[string]any{"file": fi.RelPath},
		}}
	})
	return out
}

func (a *PythonAnalyzer) frameworkFacts(root *sitter.Node, src []byte, fi scan.FileInfo) []fact.Fact {
	var facts []fact.Fact
	add := func(n *sitter.Node, dotted string) {
		top := strings.SplitN(dotted, ".", 2)[0]
		entry, ok := pythonFrameworks[top]
		if !ok {
			return
		}
		facts = append(facts, fact.Fact{
			Kind:       fact.KindFramework,
			Summary:    fmt.Sprintf("%s (%s)", entry[0], entry[1]),
			Confidence: fact.ConfidenceHigh,
			Evidence:   []fact.Evidence{a.evidence(fi, n, dotted)},
			Attributes: map[string]any{"name": entry[0], "category": entry[1]},
		})
	}
	walkTree(root, func(n *sitter.Node) {
		switch n.Type() {
		case "import_statement":
			for i := 0; i < int(n.NamedChildCount()); i++ {
				c := n.NamedChild(i)
				switch c.Type() {
				case "dotted_name":
					add(n, c.Content(src))
				case "aliased_import":
					if name := c.ChildByFieldName("name"); name != nil {
						add(n, name.Content(src))
					}
				}
			}
		case "import_from_statement":
			mod := n.ChildByFieldName("module_name")
			if mod != nil && mod.Type() == "dotted_name" {
				add(n, mod.Content(src))
			}
		}
	})
	return fact.Dedupe(facts)
}

// routerPrefixes collects `name = APIRouter(prefix="...")` assignments
// local to one file.
func (a *PythonAnalyzer) routerPrefixes(root *sitter.Node, src []byte) map[string]string {
	prefixes := map[string]string{}
	walkTree(root, func(n *sitter.Node) {
		if n.Type() != "assignment" {
			return
		}
		right := n.ChildByFieldName("right")
		if right == nil || right.Type() != "call" {
			return
		}
		fn := right.ChildByFieldName("function")
		if fn == nil || fn.Type() != "identifier" || fn.Content(src) != "APIRouter" {
			return
		}
		prefix, ok := keywordStringArg(right, "prefix", src)
		if !ok || prefix == "" {
			return
		}
		left := n.ChildByFieldName("left")
		if left != nil && left.Type() == "identifier" {
			prefixes[left.Content(src)] = prefix
		}
	})
	return prefixes
}

// routeFacts finds function definitions decorated with a call shaped
// like `<router>.<verb>(<path>)`. A non-literal path keeps the fact at
// MEDIUM confidence with a null path attribute rather than dropping it.
func (a *PythonAnalyzer) routeFacts(root *sitter.Node, src []byte, fi scan.FileInfo, prefixes map[string]string) []fact.Fact {
	var facts []fact.Fact
	walkTree(root, func(n *sitter.Node) {
		if n.Type() != "decorated_definition" {
			return
		}
		def := n.ChildByFieldName("definition")
		if def == nil || def.Type() != "function_definition" {
			return
		}
		handler := ""
		if name := def.ChildByFieldName("name"); name != nil {
			handler = name.Content(src)
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			dec := n.NamedChild(i)
			if dec.Type() != "decorator" || dec.NamedChildCount() == 0 {
				continue
			}
			call := dec.NamedChild(0)
			if call.Type() != "call" {
				continue
			}
			fn := call.ChildByFieldName("function")
			if fn == nil || fn.Type() != "attribute" {
				continue
			}
			attr := fn.ChildByFieldName("attribute")
			if attr == nil {
				continue
			}
			method := strings.ToLower(attr.Content(src))
			if !routeMethods[method] {
				continue
			}

			routePath, pathKnown := "", false
			if arg := firstPositionalArg(call.ChildByFieldName("arguments")); arg != nil && arg.Type() == "string" {
				routePath = stripStringLiteral(arg, src)
				pathKnown = true
			}
			routerName := ""
			if obj := fn.ChildByFieldName("object"); obj != nil && obj.Type() == "identifier" {
				routerName = obj.Content(src)
			}
			if routerName != "" && pathKnown {
				if prefix, ok := prefixes[routerName]; ok {
					routePath = joinRoutePath(prefix, routePath)
				}
			}

			attrs := map[string]any{
				"method":  strings.ToUpper(method),
				"handler": handler,
				"file":    fi.RelPath,
			}
			confidence := fact.ConfidenceHigh
			shown := routePath
			if pathKnown {
				attrs["path"] = routePath
			} else {
				attrs["path"] = nil
				confidence = fact.ConfidenceMedium
				shown = "<path>"
			}
			if routerName != "" {
				attrs["router"] = routerName
			} else {
				attrs["router"] = nil
			}
			facts = append(facts, fact.Fact{
				Kind:       fact.KindRoute,
				Summary:    fmt.Sprintf("%s %s", strings.ToUpper(method), shown),
				Confidence: confidence,
				Evidence:   []fact.Evidence{a.evidence(fi, call, handler)},
				Attributes: attrs,
			})
		}
	})
	return facts
}

// modelFacts finds class definitions extending a declarative base and
// pulls out the conventional table-name literal when present.
func (a *PythonAnalyzer) modelFacts(root *sitter.Node, src []byte, fi scan.FileInfo) []fact.Fact {
	var facts []fact.Fact
	walkTree(root, func(n *sitter.Node) {
		if n.Type() != "class_definition" {
			return
		}
		bases := a.baseNames(n, src)
		if len(bases) == 0 || !looksLikeModelBase(bases) {
			return
		}
		className := ""
		if name := n.ChildByFieldName("name"); name != nil {
			className = name.Content(src)
		}
		tableName := a.findTableName(n, src)
		summary := fmt.Sprintf("Model class %s", className)
		attrs := map[string]any{"class": className, "file": fi.RelPath}
		if tableName != "" {
			summary = fmt.Sprintf("Model class %s (table: %s)", className, tableName)
			attrs["table"] = tableName
		} else {
			attrs["table"] = nil
		}
		facts = append(facts, fact.Fact{
			Kind:       fact.KindDomainEntity,
			Summary:    summary,
			Confidence: fact.ConfidenceMedium,
			Evidence:   []fact.Evidence{a.evidence(fi, n, className)},
			Attributes: attrs,
		})
	})
	return facts
}

func (a *PythonAnalyzer) baseNames(class *sitter.Node, src []byte) []string {
	supers := class.ChildByFieldName("superclasses")
	if supers == nil {
		return nil
	}
	var names []string
	for i := 0; i < int(supers.NamedChildCount()); i++ {
		c := supers.NamedChild(i)
		switch c.Type() {
		case "identifier":
			names = append(names, c.Content(src))
		case "attribute":
			if attr := c.ChildByFieldName("attribute"); attr != nil {
				names = append(names, attr.Content(src))
			}
		}
	}
	return names
}

func looksLikeModelBase(bases []string) bool {
	for _, name := range bases {
		if name == "Base" || name == "DeclarativeBase" || strings.HasSuffix(name, "Base") {
			return true
		}
	}
	return false
}

func (a *PythonAnalyzer) findTableName(class *sitter.Node, src []byte) string {
	body := class.ChildByFieldName("body")
	if body == nil {
		return ""
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		stmt := body.NamedChild(i)
		if stmt.Type() != "expression_statement" || stmt.NamedChildCount() == 0 {
			continue
		}
		assign := stmt.NamedChild(0)
		if assign.Type() != "assignment" {
			continue
		}
		left := assign.ChildByFieldName("left")
		right := assign.ChildByFieldName("right")
		if left == nil || right == nil {
			continue
		}
		if left.Type() == "identifier" && left.Content(src) == "__tablename__" && right.Type() == "string" {
			return stripStringLiteral(right, src)
		}
	}
	return ""
}

// importMap builds the local-symbol -> import-target map for one file.
// Only aliased plain imports bind a local symbol; from-imports bind the
// imported (or aliased) name, with relative levels resolved against the
// file's own module path.
func (a *PythonAnalyzer) importMap(root *sitter.Node, src []byte, currentModule string) map[string]ImportTarget {
	m := map[string]ImportTarget{}
	walkTree(root, func(n *sitter.Node) {
		switch n.Type() {
		case "import_statement":
			for i := 0; i < int(n.NamedChildCount()); i++ {
				c := n.NamedChild(i)
				if c.Type() != "aliased_import" {
					continue
				}
				name := c.ChildByFieldName("name")
				alias := c.ChildByFieldName("alias")
				if name == nil || alias == nil {
					continue
				}
				m[alias.Content(src)] = ImportTarget{Module: name.Content(src)}
			}
		case "import_from_statement":
			modNode := n.ChildByFieldName("module_name")
			if modNode == nil {
				return
			}
			module := resolveRelativeModule(moduleText(modNode, src), currentModule, relativeLevel(modNode, src))
			if module == "" {
				return
			}
			for i := 0; i < int(n.NamedChildCount()); i++ {
				c := n.NamedChild(i)
				if c.StartByte() == modNode.StartByte() || c.Type() == "wildcard_import" {
					continue
				}
				switch c.Type() {
				case "dotted_name", "identifier":
					name := c.Content(src)
					m[name] = ImportTarget{Module: module, Attr: name}
				case "aliased_import":
					name := c.ChildByFieldName("name")
					alias := c.ChildByFieldName("alias")
					if name == nil || alias == nil {
						continue
					}
					m[alias.Content(src)] = ImportTarget{Module: module, Attr: name.Content(src)}
				}
			}
		}
	})
	return m
}

// moduleText returns the dotted module named by a from-import module
// node, without any leading relative dots.
func moduleText(modNode *sitter.Node, src []byte) string {
	if modNode.Type() == "dotted_name" {
		return modNode.Content(src)
	}
	// relative_import: optional dotted_name after the dot prefix
	for i := 0; i < int(modNode.NamedChildCount()); i++ {
		c := modNode.NamedChild(i)
		if c.Type() == "dotted_name" {
			return c.Content(src)
		}
	}
	return ""
}

// relativeLevel counts the leading dots of a relative import.
func relativeLevel(modNode *sitter.Node, src []byte) int {
	if modNode.Type() != "relative_import" {
		return 0
	}
	text := modNode.Content(src)
	level := 0
	for _, r := range text {
		if r != '.' {
			break
		}
		level++
	}
	return level
}

func resolveRelativeModule(module, currentModule string, level int) string {
	if level <= 0 || currentModule == "" {
		return module
	}
	parts := strings.Split(currentModule, ".")
	var base []string
	if level <= len(parts) {
		base = parts[:len(parts)-level]
	}
	if module != "" {
		base = append(base, module)
	}
	var keep []string
	for _, p := range base {
		if p != "" {
			keep = append(keep, p)
		}
	}
	return strings.Join(keep, ".")
}

// includeEdges finds `<x>.include_router(target, prefix="...")` calls
// and resolves the target through the alias map and module index.
func (a *PythonAnalyzer) includeEdges(root *sitter.Node, src []byte, fi scan.FileInfo, imports map[string]ImportTarget, fileByModule map[string]string, localRouters map[string]string) []RouterInclude {
	var edges []RouterInclude
	walkTree(root, func(n *sitter.Node) {
		if n.Type() != "call" {
			return
		}
		fn := n.ChildByFieldName("function")
		if fn == nil || fn.Type() != "attribute" {
			return
		}
		attr := fn.ChildByFieldName("attribute")
		if attr == nil || attr.Content(src) != "include_router" {
			return
		}
		prefix, ok := keywordStringArg(n, "prefix", src)
		if !ok || prefix == "" {
			return
		}
		target := firstPositionalArg(n.ChildByFieldName("arguments"))
		if target == nil {
			return
		}
		child := a.resolveRouterTarget(target, src, imports, fileByModule, fi.RelPath, localRouters)
		if child == "" {
			return
		}
		edges = append(edges, RouterInclude{SourceFile: fi.RelPath, ChildFile: child, Prefix: prefix})
	})
	return edges
}

func (a *PythonAnalyzer) resolveRouterTarget(target *sitter.Node, src []byte, imports map[string]ImportTarget, fileByModule map[string]string, defaultFile string, localRouters map[string]string) string {
	switch target.Type() {
	case "identifier":
		name := target.Content(src)
		if t, ok := imports[name]; ok {
			// The bound name may be a submodule rather than an object.
			if t.Attr != "" {
				if file, ok := fileByModule[t.Module+"."+t.Attr]; ok {
					return file
				}
			}
			return fileByModule[t.Module]
		}
		if _, ok := localRouters[name]; ok {
			return defaultFile
		}
	case "attribute":
		obj := target.ChildByFieldName("object")
		if obj == nil || obj.Type() != "identifier" {
			return ""
		}
		t, ok := imports[obj.Content(src)]
		if !ok {
			return ""
		}
		if t.Attr == "" {
			// Module alias; the attribute is the router object inside it.
			return fileByModule[t.Module]
		}
		// Submodule bound by a from-import; the attribute lives there.
		return fileByModule[t.Module+"."+t.Attr]
	}
	return ""
}

// applyIncludePrefixes propagates mount prefixes down the router graph
// and rewrites the affected route facts in place. Roots are files never
// mounted elsewhere. The traversal guards cycles with a visited set
// keyed by (file, accumulated prefix) rather than by file alone, since the
// same router may legitimately be reached under distinct prefixes
// through diamond inclusion. When a file accumulates several prefixes
// the longest wins, ties going to the first encountered.
func (a *PythonAnalyzer) applyIncludePrefixes(routeFacts []fact.Fact, edges []RouterInclude) {
	if len(edges) == 0 {
		return
	}
	prefixesByFile := buildPrefixMap(edges)
	for i := range routeFacts {
		f := &routeFacts[i]
		routePath, okPath := f.StringAttr("path")
		filePath, okFile := f.StringAttr("file")
		if !okPath || !okFile {
			continue
		}
		prefixes := prefixesByFile[filePath]
		if len(prefixes) == 0 {
			continue
		}
		prefix := longestPrefix(prefixes)
		if strings.HasPrefix(routePath, prefix) {
			continue
		}
		newPath := joinRoutePath(prefix, routePath)
		f.Attributes["path"] = newPath
		method, _ := f.StringAttr("method")
		f.Summary = strings.TrimSpace(fmt.Sprintf("%s %s", method, newPath))
	}
}

func buildPrefixMap(edges []RouterInclude) map[string][]string {
	outgoing := map[string][]RouterInclude{}
	incoming := map[string]int{}
	nodeSet := map[string]bool{}
	for _, e := range edges {
		outgoing[e.SourceFile] = append(outgoing[e.SourceFile], e)
		incoming[e.ChildFile]++
		nodeSet[e.SourceFile] = true
		nodeSet[e.ChildFile] = true
	}
	var roots []string
	for node := range nodeSet {
		if incoming[node] == 0 {
			roots = append(roots, node)
		}
	}
	sort.Strings(roots)

	prefixesByFile := map[string][]string{}
	for _, root := range roots {
		seen := map[[2]string]bool{}
		walkPrefixes(root, "", outgoing, prefixesByFile, seen)
	}
	return prefixesByFile
}

func walkPrefixes(node, current string, outgoing map[string][]RouterInclude, prefixesByFile map[string][]string, seen map[[2]string]bool) {
	for _, e := range outgoing[node] {
		combined := joinRoutePath(current, e.Prefix)
		key := [2]string{e.ChildFile, combined}
		if seen[key] {
			continue
		}
		seen[key] = true
		prefixesByFile[e.ChildFile] = append(prefixesByFile[e.ChildFile], combined)
		walkPrefixes(e.ChildFile, combined, outgoing, prefixesByFile, seen)
	}
}

func longestPrefix(prefixes []string) string {
	best := prefixes[0]
	for _, p := range prefixes[1:] {
		if len(p) > len(best) {
			best = p
		}
	}
	return best
}

// joinRoutePath concatenates a prefix and a path with exactly one
// separator between them.
func joinRoutePath(prefix, p string) string {
	if prefix == "" {
		return p
	}
	switch {
	case strings.HasSuffix(prefix, "/") && strings.HasPrefix(p, "/"):
		return prefix[:len(prefix)-1] + p
	case !strings.HasSuffix(prefix, "/") && !strings.HasPrefix(p, "/"):
		return prefix + "/" + p
	default:
		return prefix + p
	}
}

func (a *PythonAnalyzer) evidence(fi scan.FileInfo, n *sitter.Node, symbol string) fact.Evidence {
	start, end := lineRange(n)
	return fact.Evidence{FilePath: fi.RelPath, LineStart: start, LineEnd: end, Symbol: symbol}
}
