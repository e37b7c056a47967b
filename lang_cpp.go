package arbor

import (
	"os"

	"github.com/smacker/go-tree-sitter/cpp"
)

func init() {
	RegisterParser(&cppParser{})
}

// cppParser parses C++ sources with the tree-sitter C++ grammar. Extraction
// shares the C walker; the grammar is a superset, so only the C++-specific
// node types (namespaces, classes, access specifiers, qualified names) get
// extra handling there.
type cppParser struct{}

func (p *cppParser) Language() string { return "cpp" }

func (p *cppParser) ParseFile(path string, cctx CompileContext) (*ASTDocument, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{Path: path, Msg: "read file", Err: err}
	}
	tree, err := parseSource(path, src, cpp.GetLanguage())
	if err != nil {
		return nil, err
	}
	defer tree.Close()
	return extractCFamily(path, "cpp", src, tree.RootNode(), true), nil
}

var cppKindMap = func() map[string]string {
	m := make(map[string]string, len(cKindMap)+8)
	for k, v := range cKindMap {
		m[k] = v
	}
	m["namespace_definition"] = "namespace_decl"
	m["class_specifier"] = "class_decl"
	m["access_specifier"] = "access_spec"
	m["qualified_identifier"] = "scoped_ref"
	m["reference_declarator"] = "reference_declarator"
	m["template_declaration"] = "template_decl"
	m["lambda_expression"] = "lambda_expr"
	return m
}()
