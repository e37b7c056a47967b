package arbor

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

// Parser is the one capability every language adapter implements. Adapters
// map their native tree-sitter grammar into the universal node/symbol shape
// and, in the same pass, extract both definitions and references.
//
// Adapters must be deterministic: identical bytes plus an identical compile
// context always produce an isomorphic document. That determinism is a
// precondition for cache correctness.
type Parser interface {
	Language() string
	ParseFile(path string, cctx CompileContext) (*ASTDocument, error)
}

var (
	parsersMu sync.RWMutex
	parsers   = map[string]Parser{}
)

// RegisterParser installs a parser adapter for its language, replacing any
// previous registration. Called from init() by the built-in adapters; tests
// register mock parsers the same way on their own Builder instances.
func RegisterParser(p Parser) {
	parsersMu.Lock()
	defer parsersMu.Unlock()
	parsers[p.Language()] = p
}

// ParserFor returns the registered adapter for a language, or a
// ParserUnavailableError. Unavailability disables that language only.
func ParserFor(lang string) (Parser, error) {
	parsersMu.RLock()
	defer parsersMu.RUnlock()
	p, ok := parsers[lang]
	if !ok {
		return nil, &ParserUnavailableError{Language: lang}
	}
	return p, nil
}

// extToLanguage maps file extensions to canonical language names.
var extToLanguage = map[string]string{
	".c":   "c",
	".h":   "c",
	".cpp": "cpp",
	".cc":  "cpp",
	".cxx": "cpp",
	".hpp": "cpp",
	".hh":  "cpp",
	".go":  "go",
	".py":  "python",
}

// LanguageForFile returns the canonical language name for a file path based
// on its extension. Returns ("", false) if the extension is not recognized.
func LanguageForFile(path string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	lang, ok := extToLanguage[ext]
	return lang, ok
}

// --- shared tree-sitter helpers ---

// locOf converts a node's start point to a SourceLocation (1-based).
func locOf(path string, n *sitter.Node) SourceLocation {
	p := n.StartPoint()
	return SourceLocation{
		File:   path,
		Line:   int(p.Row) + 1,
		Column: int(p.Column) + 1,
		Offset: int(n.StartByte()),
	}
}

// extentOf converts a node's span to a SourceExtent.
func extentOf(path string, n *sitter.Node) SourceExtent {
	end := n.EndPoint()
	return SourceExtent{
		Start: locOf(path, n),
		End: SourceLocation{
			File:   path,
			Line:   int(end.Row) + 1,
			Column: int(end.Column) + 1,
			Offset: int(n.EndByte()),
		},
	}
}

// nodeText returns the source text of a tree-sitter node.
func nodeText(n *sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	return string(src[n.StartByte():n.EndByte()])
}

// convertTree maps a native tree-sitter tree into the universal ASTNode
// shape using a per-language kind-tag table. Unmapped native types keep
// their native name so nothing is lost. Anonymous (punctuation) nodes are
// dropped; they carry no structure worth caching.
func convertTree(path string, n *sitter.Node, src []byte, kinds map[string]string) *ASTNode {
	kind := n.Type()
	if mapped, ok := kinds[kind]; ok {
		kind = mapped
	}
	node := &ASTNode{
		Kind:   kind,
		Loc:    locOf(path, n),
		Extent: extentOf(path, n),
	}
	if name := n.ChildByFieldName("name"); name != nil {
		node.Name = nodeText(name, src)
	} else if d := n.ChildByFieldName("declarator"); d != nil {
		// C-family grammars hang the declared name off the declarator chain.
		node.Name = nodeText(declaratorName(d), src)
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		node.Children = append(node.Children, convertTree(path, child, src, kinds))
	}
	return node
}

// extractor accumulates symbols, scopes, and references during a single
// walk of a native tree. It maintains the lexical scope stack and a
// per-scope name table so a use of a name already declared on the stack can
// be resolved locally without waiting for the cross-file resolver.
type extractor struct {
	doc    *ASTDocument
	src    []byte
	path   string
	scopes []int
	names  []map[string]*Symbol
}

func newExtractor(path string, src []byte, root *sitter.Node) *extractor {
	x := &extractor{
		doc: &ASTDocument{Path: path},
		src: src,
	}
	x.path = path
	x.doc.Scopes = append(x.doc.Scopes, Scope{
		ID:     0,
		Kind:   "file",
		Extent: extentOf(path, root),
		Parent: -1,
	})
	x.scopes = []int{0}
	x.names = []map[string]*Symbol{{}}
	return x
}

// pushScope opens a child scope of the current one and returns its id.
func (x *extractor) pushScope(kind, name string, extent SourceExtent) int {
	id := len(x.doc.Scopes)
	x.doc.Scopes = append(x.doc.Scopes, Scope{
		ID:     id,
		Kind:   kind,
		Name:   name,
		Extent: extent,
		Parent: x.current(),
	})
	x.scopes = append(x.scopes, id)
	x.names = append(x.names, map[string]*Symbol{})
	return id
}

func (x *extractor) popScope() {
	x.scopes = x.scopes[:len(x.scopes)-1]
	x.names = x.names[:len(x.names)-1]
}

func (x *extractor) current() int {
	return x.scopes[len(x.scopes)-1]
}

func (x *extractor) addSymbol(name, kind, typ string, loc SourceLocation, vis Visibility) *Symbol {
	sym := &Symbol{
		Name:       name,
		Kind:       kind,
		Type:       typ,
		Loc:        loc,
		ScopeID:    x.current(),
		Visibility: vis,
	}
	x.doc.Symbols = append(x.doc.Symbols, sym)
	x.names[len(x.names)-1][name] = sym
	return sym
}

// addRef records a use-site, attaching a locally resolved target when the
// name is already declared somewhere on the current scope stack.
func (x *extractor) addRef(name string, ctx RefContext, loc SourceLocation) *Reference {
	ref := &Reference{
		Name:    name,
		Context: ctx,
		Loc:     loc,
		ScopeID: x.current(),
	}
	for i := len(x.names) - 1; i >= 0; i-- {
		if sym, ok := x.names[i][name]; ok {
			ref.Target = sym.ID()
			break
		}
	}
	x.doc.Refs = append(x.doc.Refs, ref)
	return ref
}

func (x *extractor) addInclude(target string) {
	x.doc.Includes = append(x.doc.Includes, target)
}

// parseSource runs a fresh tree-sitter parser over src. Each call uses its
// own parser instance because tree-sitter parsers are not goroutine-safe.
func parseSource(path string, src []byte, grammar *sitter.Language) (*sitter.Tree, error) {
	p := sitter.NewParser()
	p.SetLanguage(grammar)
	tree := p.Parse(nil, src)
	if tree == nil {
		return nil, &ParseError{Path: path, Msg: "parser produced no tree"}
	}
	if tree.RootNode().HasError() {
		return nil, &ParseError{Path: path, Msg: fmt.Sprintf("syntax errors in %s", filepath.Base(path))}
	}
	return tree, nil
}
