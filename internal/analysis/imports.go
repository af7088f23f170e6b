package analysis

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// PythonImport is one import statement with relative levels already
// resolved against the importing file's module path.
type PythonImport struct {
	Module string
	Names  []string
}

// PythonImports parses src and lists its import statements. A file
// that fails to parse yields nil.
func PythonImports(src []byte, currentModule string) []PythonImport {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())
	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil
	}
	defer tree.Close()
	root := tree.RootNode()
	if root == nil || root.HasError() {
		return nil
	}

	var imports []PythonImport
	walkTree(root, func(n *sitter.Node) {
		switch n.Type() {
		case "import_statement":
			for i := 0; i < int(n.NamedChildCount()); i++ {
				c := n.NamedChild(i)
				switch c.Type() {
				case "dotted_name":
					imports = append(imports, PythonImport{Module: c.Content(src)})
				case "aliased_import":
					if name := c.ChildByFieldName("name"); name != nil {
						imports = append(imports, PythonImport{Module: name.Content(src)})
					}
				}
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
			imp := PythonImport{Module: module}
			for i := 0; i < int(n.NamedChildCount()); i++ {
				c := n.NamedChild(i)
				if c.StartByte() == modNode.StartByte() {
					continue
				}
				switch c.Type() {
				case "dotted_name", "identifier":
					imp.Names = append(imp.Names, c.Content(src))
				case "aliased_import":
					if name := c.ChildByFieldName("name"); name != nil {
						imp.Names = append(imp.Names, name.Content(src))
					}
				}
			}
			imports = append(imports, imp)
		}
	})
	return imports
}

// JSImportSpecifiers parses src and lists every module specifier pulled
// in via an import statement or a require() call.
func JSImportSpecifiers(src []byte, ext string) []string {
	lang, ok := jsGrammars[ext]
	if !ok {
		return nil
	}
	parser := sitter.NewParser()
	parser.SetLanguage(lang)
	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil
	}
	defer tree.Close()
	root := tree.RootNode()
	if root == nil || root.HasError() {
		return nil
	}

	var specs []string
	walkTree(root, func(n *sitter.Node) {
		switch n.Type() {
		case "import_statement":
			if source := n.ChildByFieldName("source"); source != nil {
				specs = append(specs, stripStringLiteral(source, src))
			}
		case "call_expression":
			fn := n.ChildByFieldName("function")
			if fn == nil || fn.Type() != "identifier" || fn.Content(src) != "require" {
				return
			}
			arg := firstPositionalArg(n.ChildByFieldName("arguments"))
			if arg != nil && arg.Type() == "string" {
				specs = append(specs, stripStringLiteral(arg, src))
			}
		}
	})
	return specs
}
