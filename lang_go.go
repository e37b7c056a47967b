package arbor

import (
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
)

func init() {
	RegisterParser(&goParser{})
}

// goParser parses Go sources with the tree-sitter Go grammar.
type goParser struct{}

func (p *goParser) Language() string { return "go" }

func (p *goParser) ParseFile(path string, cctx CompileContext) (*ASTDocument, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{Path: path, Msg: "read file", Err: err}
	}
	tree, err := parseSource(path, src, golang.GetLanguage())
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	x := &goExtractor{extractor: newExtractor(path, src, tree.RootNode())}
	x.doc.Language = "go"
	x.walkChildren(tree.RootNode())
	x.doc.Root = convertTree(path, tree.RootNode(), src, goKindMap)
	return x.doc, nil
}

var goKindMap = map[string]string{
	"source_file":           "file",
	"package_clause":        "package_decl",
	"import_declaration":    "include",
	"function_declaration":  "function_def",
	"method_declaration":    "method_def",
	"type_declaration":      "type_decl",
	"type_spec":             "type_spec",
	"struct_type":           "struct_decl",
	"interface_type":        "interface_decl",
	"field_declaration":     "field_decl",
	"var_declaration":       "var_decl",
	"const_declaration":     "const_decl",
	"short_var_declaration": "var_decl",
	"parameter_declaration": "parm_var_decl",
	"block":                 "block",
	"call_expression":       "call_expr",
	"selector_expression":   "member_expr",
	"identifier":            "identifier",
	"field_identifier":      "identifier",
	"type_identifier":       "type_ref",
}

// goVisibility follows Go's export rule: an uppercase first letter means
// public, everything else private.
func goVisibility(name string) Visibility {
	r, _ := utf8.DecodeRuneInString(name)
	if unicode.IsUpper(r) {
		return VisibilityPublic
	}
	return VisibilityPrivate
}

type goExtractor struct {
	*extractor
}

func (x *goExtractor) walkChildren(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		x.walk(n.NamedChild(i))
	}
}

func (x *goExtractor) walk(n *sitter.Node) {
	switch n.Type() {
	case "package_clause":
		if id := firstNamedOfType(n, "package_identifier"); id != nil {
			x.addSymbol(nodeText(id, x.src), "package", "", locOf(x.path, id), VisibilityPublic)
		}

	case "import_spec":
		if p := n.ChildByFieldName("path"); p != nil {
			x.addInclude(strings.Trim(nodeText(p, x.src), `"`))
		}

	case "function_declaration", "method_declaration":
		x.walkFunc(n)

	case "type_spec":
		x.walkTypeSpec(n)

	case "var_spec", "const_spec":
		x.walkValueSpec(n)

	case "short_var_declaration":
		x.walkShortVar(n)

	case "parameter_declaration", "variadic_parameter_declaration":
		x.walkParam(n)

	case "block":
		x.pushScope("block", "", extentOf(x.path, n))
		x.walkChildren(n)
		x.popScope()

	case "call_expression":
		x.walkCall(n)

	case "selector_expression":
		x.walkSelector(n)

	case "identifier":
		x.addRef(nodeText(n, x.src), RefIdentifier, locOf(x.path, n))

	case "type_identifier":
		x.addRef(nodeText(n, x.src), RefType, locOf(x.path, n))

	default:
		x.walkChildren(n)
	}
}

func (x *goExtractor) walkFunc(n *sitter.Node) {
	name := ""
	kind := "function"
	if n.Type() == "method_declaration" {
		kind = "method"
	}
	var retType string
	if res := n.ChildByFieldName("result"); res != nil {
		retType = nodeText(res, x.src)
	}
	if nn := n.ChildByFieldName("name"); nn != nil {
		name = nodeText(nn, x.src)
		x.addSymbol(name, kind, retType, locOf(x.path, nn), goVisibility(name))
	}

	x.pushScope("function", name, extentOf(x.path, n))
	if recv := n.ChildByFieldName("receiver"); recv != nil {
		x.walkChildren(recv)
	}
	if params := n.ChildByFieldName("parameters"); params != nil {
		x.walkChildren(params)
	}
	if res := n.ChildByFieldName("result"); res != nil {
		x.walkChildren(res)
	}
	if body := n.ChildByFieldName("body"); body != nil {
		// The function scope doubles as the body block scope.
		x.walkChildren(body)
	}
	x.popScope()
}

func (x *goExtractor) walkTypeSpec(n *sitter.Node) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, x.src)
	typeNode := n.ChildByFieldName("type")

	kind := "type"
	if typeNode != nil {
		switch typeNode.Type() {
		case "struct_type":
			kind = "struct"
		case "interface_type":
			kind = "interface"
		}
	}
	x.addSymbol(name, kind, "", locOf(x.path, nameNode), goVisibility(name))

	if typeNode == nil {
		return
	}
	if kind == "struct" || kind == "interface" {
		x.pushScope("type", name, extentOf(x.path, n))
		x.walkChildren(typeNode)
		x.popScope()
		return
	}
	x.walk(typeNode)
}

func (x *goExtractor) walkValueSpec(n *sitter.Node) {
	kind := "variable"
	if n.Type() == "const_spec" {
		kind = "constant"
	}
	typ := nodeText(n.ChildByFieldName("type"), x.src)
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() != "identifier" {
			continue
		}
		// Identifier children before the type/value fields are the
		// declared names.
		if tn := n.ChildByFieldName("type"); tn != nil && child.StartByte() >= tn.StartByte() {
			break
		}
		if vn := n.ChildByFieldName("value"); vn != nil && child.StartByte() >= vn.StartByte() {
			break
		}
		name := nodeText(child, x.src)
		x.addSymbol(name, kind, typ, locOf(x.path, child), goVisibility(name))
	}
	if tn := n.ChildByFieldName("type"); tn != nil {
		x.walkTypeRef(tn)
	}
	if vn := n.ChildByFieldName("value"); vn != nil {
		x.walk(vn)
	}
}

func (x *goExtractor) walkShortVar(n *sitter.Node) {
	if left := n.ChildByFieldName("left"); left != nil {
		for i := 0; i < int(left.NamedChildCount()); i++ {
			id := left.NamedChild(i)
			if id.Type() != "identifier" {
				continue
			}
			name := nodeText(id, x.src)
			x.addSymbol(name, "variable", "", locOf(x.path, id), VisibilityPrivate)
		}
	}
	if right := n.ChildByFieldName("right"); right != nil {
		x.walkChildren(right)
	}
}

func (x *goExtractor) walkParam(n *sitter.Node) {
	typ := nodeText(n.ChildByFieldName("type"), x.src)
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() == "identifier" {
			x.addSymbol(nodeText(child, x.src), "parameter", typ, locOf(x.path, child), VisibilityPrivate)
		}
	}
	if tn := n.ChildByFieldName("type"); tn != nil {
		x.walkTypeRef(tn)
	}
}

// walkTypeRef records type references inside a type expression, including
// named types buried in pointers, slices, and maps.
func (x *goExtractor) walkTypeRef(n *sitter.Node) {
	if n.Type() == "type_identifier" {
		x.addRef(nodeText(n, x.src), RefType, locOf(x.path, n))
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		x.walkTypeRef(n.NamedChild(i))
	}
}

func (x *goExtractor) walkCall(n *sitter.Node) {
	fn := n.ChildByFieldName("function")
	if fn != nil {
		switch fn.Type() {
		case "identifier":
			x.addRef(nodeText(fn, x.src), RefCall, locOf(x.path, fn))
		case "selector_expression":
			x.walkSelector(fn)
		default:
			x.walk(fn)
		}
	}
	if args := n.ChildByFieldName("arguments"); args != nil {
		x.walkChildren(args)
	}
}

func (x *goExtractor) walkSelector(n *sitter.Node) {
	if field := n.ChildByFieldName("field"); field != nil {
		x.addRef(nodeText(field, x.src), RefMember, locOf(x.path, field))
	}
	if op := n.ChildByFieldName("operand"); op != nil {
		x.walk(op)
	}
}

func firstNamedOfType(n *sitter.Node, typ string) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if child := n.NamedChild(i); child.Type() == typ {
			return child
		}
	}
	return nil
}
