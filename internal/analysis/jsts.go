package analysis

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"repolens/internal/fact"
	"repolens/internal/scan"
)

var jsFrameworks = map[string][2]string{
	"express":      {"Express", "Web Framework"},
	"next":         {"Next.js", "Web Framework"},
	"react":        {"React", "UI Library"},
	"@nestjs/core": {"NestJS", "Web Framework"},
	"fastify":      {"Fastify", "Web Framework"},
	"koa":          {"Koa", "Web Framework"},
}

var jsRouteReceivers = map[string]bool{
	"app": true, "router": true, "api": true, "server": true,
}

// jsGrammars maps source extension to grammar. Extensions sharing a
// grammar share a parser instance within one run.
var jsGrammars = map[string]*sitter.Language{
	".js":  javascript.GetLanguage(),
	".jsx": javascript.GetLanguage(),
	".mjs": javascript.GetLanguage(),
	".cjs": javascript.GetLanguage(),
	".ts":  typescript.GetLanguage(),
	".tsx": tsx.GetLanguage(),
}

// JSAnalyzer extracts facts from JavaScript and TypeScript sources.
type JSAnalyzer struct{}

func NewJSAnalyzer() *JSAnalyzer { return &JSAnalyzer{} }

func (a *JSAnalyzer) Name() string { return "js-ts" }

func (a *JSAnalyzer) Analyze(s *scan.RepoStructure) fact.Bundle {
	var bundle fact.Bundle
	parser := sitter.NewParser()
	for _, fi := range s.Files {
		lang, ok := jsGrammars[fi.Ext]
		if !ok || fi.Content == nil {
			continue
		}
		src := []byte(*fi.Content)
		parser.SetLanguage(lang)
		tree, err := parser.ParseCtx(context.Background(), nil, src)
		if err != nil {
			continue
		}
		root := tree.RootNode()
		if root == nil || root.HasError() {
			tree.Close()
			continue
		}
		bundle.Extend(a.frameworkFacts(root, src, fi))
		bundle.Extend(a.routeFacts(root, src, fi))
		tree.Close()
	}
	return bundle
}

func (a *JSAnalyzer) frameworkFacts(root *sitter.Node, src []byte, fi scan.FileInfo) []fact.Fact {
	var facts []fact.Fact
	add := func(n *sitter.Node, pkg string) {
		entry, ok := jsFrameworks[pkg]
		if !ok {
			return
		}
		start, end := lineRange(n)
		facts = append(facts, fact.Fact{
			Kind:       fact.KindFramework,
			Summary:    fmt.Sprintf("%s (%s)", entry[0], entry[1]),
			Confidence: fact.ConfidenceHigh,
			Evidence:   []fact.Evidence{{FilePath: fi.RelPath, LineStart: start, LineEnd: end, Symbol: pkg}},
			Attributes: map[string]any{"name": entry[0], "category": entry[1]},
		})
	}
	walkTree(root, func(n *sitter.Node) {
		switch n.Type() {
		case "import_statement":
			if source := n.ChildByFieldName("source"); source != nil {
				add(n, stripStringLiteral(source, src))
			}
		case "call_expression":
			fn := n.ChildByFieldName("function")
			if fn == nil || fn.Type() != "identifier" || fn.Content(src) != "require" {
				return
			}
			args := n.ChildByFieldName("arguments")
			arg := firstPositionalArg(args)
			if arg != nil && arg.Type() == "string" {
				add(n, stripStringLiteral(arg, src))
			}
		}
	})
	return fact.Dedupe(facts)
}

// routeFacts finds `<receiver>.<verb>(<path>, ...)` calls where the
// receiver looks like an HTTP app or router object. A computed path
// keeps the fact at MEDIUM confidence with a null path attribute.
func (a *JSAnalyzer) routeFacts(root *sitter.Node, src []byte, fi scan.FileInfo) []fact.Fact {
	var facts []fact.Fact
	walkTree(root, func(n *sitter.Node) {
		if n.Type() != "call_expression" {
			return
		}
		fn := n.ChildByFieldName("function")
		if fn == nil || fn.Type() != "member_expression" {
			return
		}
		prop := fn.ChildByFieldName("property")
		if prop == nil {
			return
		}
		method := strings.ToLower(prop.Content(src))
		if !routeMethods[method] {
			return
		}
		obj := fn.ChildByFieldName("object")
		if obj != nil && obj.Type() == "identifier" {
			name := strings.ToLower(obj.Content(src))
			if !jsRouteReceivers[name] && !strings.HasSuffix(name, "router") {
				return
			}
		} else if obj != nil && obj.Type() != "identifier" {
			return
		}

		attrs := map[string]any{
			"method": strings.ToUpper(method),
			"file":   fi.RelPath,
		}
		confidence := fact.ConfidenceHigh
		shown := "<path>"
		if arg := firstPositionalArg(n.ChildByFieldName("arguments")); arg != nil && (arg.Type() == "string" || arg.Type() == "template_string") {
			routePath := stripStringLiteral(arg, src)
			attrs["path"] = routePath
			shown = routePath
		} else {
			attrs["path"] = nil
			confidence = fact.ConfidenceMedium
		}
		start, end := lineRange(n)
		facts = append(facts, fact.Fact{
			Kind:       fact.KindRoute,
			Summary:    fmt.Sprintf("%s %s", strings.ToUpper(method), shown),
			Confidence: confidence,
			Evidence:   []fact.Evidence{{FilePath: fi.RelPath, LineStart: start, LineEnd: end}},
			Attributes: attrs,
		})
	})
	return facts
}
