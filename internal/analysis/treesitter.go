package analysis

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// walkTree visits n and every named descendant, depth-first, in source
// order.
func walkTree(n *sitter.Node, fn func(*sitter.Node)) {
	if n == nil {
		return
	}
	stack := []*sitter.Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		fn(cur)
		for i := int(cur.NamedChildCount()) - 1; i >= 0; i-- {
			stack = append(stack, cur.NamedChild(i))
		}
	}
}

// lineRange converts a node span to 1-based start/end lines.
func lineRange(n *sitter.Node) (int, int) {
	return int(n.StartPoint().Row) + 1, int(n.EndPoint().Row) + 1
}

// firstPositionalArg returns the first non-keyword argument of a call's
// argument list, or nil.
func firstPositionalArg(args *sitter.Node) *sitter.Node {
	if args == nil {
		return nil
	}
	for i := 0; i < int(args.NamedChildCount()); i++ {
		c := args.NamedChild(i)
		if c.Type() == "keyword_argument" || c.Type() == "comment" {
			continue
		}
		return c
	}
	return nil
}

// keywordStringArg finds a `name="literal"` keyword argument on a call
// node and returns the unquoted literal.
func keywordStringArg(call *sitter.Node, name string, src []byte) (string, bool) {
	args := call.ChildByFieldName("arguments")
	if args == nil {
		return "", false
	}
	for i := 0; i < int(args.NamedChildCount()); i++ {
		c := args.NamedChild(i)
		if c.Type() != "keyword_argument" {
			continue
		}
		key := c.ChildByFieldName("name")
		val := c.ChildByFieldName("value")
		if key == nil || val == nil {
			continue
		}
		if key.Content(src) != name {
			continue
		}
		if val.Type() != "string" {
			return "", false
		}
		return stripStringLiteral(val, src), true
	}
	return "", false
}

// stripStringLiteral extracts the textual value of a string node. The
// grammar versions differ on whether quote characters are separate
// child nodes, so prefer an inner fragment and fall back to trimming
// the quotes by hand.
func stripStringLiteral(n *sitter.Node, src []byte) string {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == "string_fragment" || c.Type() == "string_content" {
			return c.Content(src)
		}
	}
	return trimQuotes(n.Content(src))
}

// trimQuotes removes an optional literal prefix (r, b, f, u) and the
// surrounding single, double, triple, or backtick quotes.
func trimQuotes(text string) string {
	for len(text) > 0 {
		ch := text[0]
		if ch == 'r' || ch == 'R' || ch == 'b' || ch == 'B' ||
			ch == 'f' || ch == 'F' || ch == 'u' || ch == 'U' {
			text = text[1:]
			continue
		}
		break
	}
	for _, q := range []string{`"""`, "'''"} {
		if strings.HasPrefix(text, q) && strings.HasSuffix(text, q) && len(text) >= 6 {
			return text[3 : len(text)-3]
		}
	}
	if len(text) >= 2 {
		first, last := text[0], text[len(text)-1]
		if first == last && (first == '"' || first == '\'' || first == '`') {
			return text[1 : len(text)-1]
		}
	}
	return text
}
