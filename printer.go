package arbor

import (
	"fmt"
	"sort"
	"strings"
)

// PrintOptions controls PrintAST output.
type PrintOptions struct {
	// MaxDepth limits the printed depth; 0 means unlimited.
	MaxDepth int
	// ShowLocations appends start positions to each line.
	ShowLocations bool
	// ShowAttrs appends the node's attribute map, keys sorted.
	ShowAttrs bool
	// KindFilter, when non-empty, prints only subtrees rooted at a node of
	// one of these kinds.
	KindFilter []string
}

// PrintAST renders a document's tree as indented text, one node per line.
func PrintAST(doc *ASTDocument, opts PrintOptions) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s]\n", doc.Path, doc.Language)
	filter := make(map[string]bool, len(opts.KindFilter))
	for _, k := range opts.KindFilter {
		filter[k] = true
	}
	printNode(&b, doc.Root, 0, opts, filter, len(filter) == 0)
	return b.String()
}

func printNode(b *strings.Builder, n *ASTNode, depth int, opts PrintOptions, filter map[string]bool, matched bool) {
	if n == nil {
		return
	}
	if opts.MaxDepth > 0 && depth >= opts.MaxDepth {
		return
	}
	if !matched && !filter[n.Kind] {
		// Not yet inside a matching subtree; keep looking below.
		for _, child := range n.Children {
			printNode(b, child, depth, opts, filter, false)
		}
		return
	}

	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(n.Kind)
	if n.Name != "" {
		fmt.Fprintf(b, " %q", n.Name)
	}
	if opts.ShowLocations {
		fmt.Fprintf(b, " @%d:%d", n.Loc.Line, n.Loc.Column)
	}
	if opts.ShowAttrs && len(n.Attrs) > 0 {
		keys := make([]string, 0, len(n.Attrs))
		for k := range n.Attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(b, " %s=%s", k, n.Attrs[k])
		}
	}
	b.WriteByte('\n')

	for _, child := range n.Children {
		printNode(b, child, depth+1, opts, filter, true)
	}
}
