package arbor

import (
	"os"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
)

func init() {
	RegisterParser(&cParser{})
}

// cParser parses C sources with the tree-sitter C grammar.
type cParser struct{}

func (p *cParser) Language() string { return "c" }

func (p *cParser) ParseFile(path string, cctx CompileContext) (*ASTDocument, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{Path: path, Msg: "read file", Err: err}
	}
	tree, err := parseSource(path, src, c.GetLanguage())
	if err != nil {
		return nil, err
	}
	defer tree.Close()
	return extractCFamily(path, "c", src, tree.RootNode(), false), nil
}

// cKindMap maps C/C++ native node types to universal kind tags. Types shared
// by both grammars live here; the C++ adapter adds its own entries on top.
var cKindMap = map[string]string{
	"translation_unit":      "file",
	"preproc_include":       "include",
	"preproc_def":           "macro_def",
	"function_definition":   "function_def",
	"function_declarator":   "function_declarator",
	"struct_specifier":      "struct_decl",
	"union_specifier":       "union_decl",
	"enum_specifier":        "enum_decl",
	"enumerator":            "enumerator",
	"field_declaration":     "field_decl",
	"parameter_declaration": "parm_var_decl",
	"declaration":           "var_decl",
	"type_definition":       "typedef_decl",
	"compound_statement":    "block",
	"call_expression":       "call_expr",
	"field_expression":      "member_expr",
	"identifier":            "identifier",
	"field_identifier":      "identifier",
	"type_identifier":       "type_ref",
}

// declaratorName descends through declarator wrappers (pointers, arrays,
// initializers, parentheses) to the declared identifier.
func declaratorName(n *sitter.Node) *sitter.Node {
	for n != nil {
		switch n.Type() {
		case "identifier", "field_identifier", "type_identifier", "qualified_identifier", "destructor_name", "operator_name":
			return n
		case "pointer_declarator", "array_declarator", "function_declarator",
			"init_declarator", "parenthesized_declarator", "reference_declarator":
			n = n.ChildByFieldName("declarator")
		default:
			return nil
		}
	}
	return nil
}

// isIndirectDeclarator reports whether the declarator chain passes through a
// pointer or reference declarator. The grammar hangs indirection off the
// declarator, not the type node, so the declared type text alone cannot show
// it.
func isIndirectDeclarator(n *sitter.Node) bool {
	for n != nil {
		switch n.Type() {
		case "pointer_declarator", "reference_declarator":
			return true
		case "array_declarator", "function_declarator", "init_declarator", "parenthesized_declarator":
			n = n.ChildByFieldName("declarator")
		default:
			return false
		}
	}
	return false
}

// isFunctionDeclarator reports whether the declarator chain contains a
// function declarator, i.e. the declaration is a prototype.
func isFunctionDeclarator(n *sitter.Node) bool {
	for n != nil {
		switch n.Type() {
		case "function_declarator":
			return true
		case "pointer_declarator", "array_declarator", "init_declarator",
			"parenthesized_declarator", "reference_declarator":
			n = n.ChildByFieldName("declarator")
		default:
			return false
		}
	}
	return false
}

// cFamily walks a C or C++ tree, extracting definitions and references in a
// single pass. The two grammars share almost all node types; cpp toggles the
// class-specific behavior.
type cFamily struct {
	*extractor
	cpp bool
	// access tracks the current member visibility inside a type scope,
	// updated by access_specifier nodes (C++ only).
	access []Visibility
}

func extractCFamily(path, language string, src []byte, root *sitter.Node, cpp bool) *ASTDocument {
	x := &cFamily{extractor: newExtractor(path, src, root), cpp: cpp}
	x.doc.Language = language
	x.walkChildren(root)
	kinds := cKindMap
	if cpp {
		kinds = cppKindMap
	}
	x.doc.Root = convertTree(path, root, src, kinds)
	return x.doc
}

func (x *cFamily) walkChildren(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		x.walk(n.NamedChild(i))
	}
}

func (x *cFamily) walk(n *sitter.Node) {
	switch n.Type() {
	case "preproc_include":
		if p := n.ChildByFieldName("path"); p != nil {
			x.addInclude(strings.Trim(nodeText(p, x.src), `"<>`))
		}

	case "preproc_def":
		if name := n.ChildByFieldName("name"); name != nil {
			x.addSymbol(nodeText(name, x.src), "macro", "", locOf(x.path, name), VisibilityPublic)
		}

	case "namespace_definition":
		x.walkNamespace(n)

	case "struct_specifier", "union_specifier", "enum_specifier", "class_specifier":
		x.walkTypeSpecifier(n)

	case "function_definition":
		x.walkFunction(n)

	case "declaration":
		x.walkDeclaration(n)

	case "field_declaration":
		x.walkField(n)

	case "parameter_declaration":
		x.walkParameter(n)

	case "enumerator":
		if name := n.ChildByFieldName("name"); name != nil {
			x.addSymbol(nodeText(name, x.src), "enumerator", "", locOf(x.path, name), x.memberVisibility())
		}

	case "type_definition":
		if d := declaratorName(n.ChildByFieldName("declarator")); d != nil {
			typ := nodeText(n.ChildByFieldName("type"), x.src)
			x.addSymbol(nodeText(d, x.src), "typedef", typ, locOf(x.path, d), VisibilityPublic)
		}
		x.walkTypeUse(n.ChildByFieldName("type"))

	case "access_specifier":
		if len(x.access) > 0 {
			switch strings.TrimSuffix(nodeText(n, x.src), ":") {
			case "public":
				x.access[len(x.access)-1] = VisibilityPublic
			case "private":
				x.access[len(x.access)-1] = VisibilityPrivate
			case "protected":
				x.access[len(x.access)-1] = VisibilityProtected
			}
		}

	case "compound_statement":
		x.pushScope("block", "", extentOf(x.path, n))
		x.walkChildren(n)
		x.popScope()

	case "call_expression":
		x.walkCall(n)

	case "field_expression":
		x.walkMember(n)

	case "qualified_identifier":
		x.walkQualified(n)

	case "identifier":
		x.addRef(nodeText(n, x.src), RefIdentifier, locOf(x.path, n))

	case "type_identifier":
		x.addRef(nodeText(n, x.src), RefType, locOf(x.path, n))

	default:
		x.walkChildren(n)
	}
}

func (x *cFamily) walkNamespace(n *sitter.Node) {
	name := ""
	if nn := n.ChildByFieldName("name"); nn != nil {
		name = nodeText(nn, x.src)
		x.addSymbol(name, "namespace", "", locOf(x.path, nn), VisibilityPublic)
	}
	x.pushScope("namespace", name, extentOf(x.path, n))
	if body := n.ChildByFieldName("body"); body != nil {
		x.walkChildren(body)
	}
	x.popScope()
}

// walkTypeSpecifier handles struct/union/enum/class specifiers. A specifier
// with a body is a definition; a bare named specifier is a type use.
func (x *cFamily) walkTypeSpecifier(n *sitter.Node) {
	nameNode := n.ChildByFieldName("name")
	body := n.ChildByFieldName("body")

	if body == nil {
		if nameNode != nil {
			x.addRef(nodeText(nameNode, x.src), RefType, locOf(x.path, nameNode))
		}
		return
	}

	kind := strings.TrimSuffix(n.Type(), "_specifier")
	name := ""
	if nameNode != nil {
		name = nodeText(nameNode, x.src)
		x.addSymbol(name, kind, "", locOf(x.path, nameNode), x.memberVisibility())
	}

	x.pushScope("type", name, extentOf(x.path, n))
	defaultAccess := VisibilityPublic
	if x.cpp && n.Type() == "class_specifier" {
		defaultAccess = VisibilityPrivate
	}
	x.access = append(x.access, defaultAccess)
	x.walkChildren(body)
	x.access = x.access[:len(x.access)-1]
	x.popScope()
}

func (x *cFamily) walkFunction(n *sitter.Node) {
	declarator := n.ChildByFieldName("declarator")
	nameNode := declaratorName(declarator)
	retType := nodeText(n.ChildByFieldName("type"), x.src)

	name := nodeText(nameNode, x.src)
	if name != "" {
		kind := "function"
		if len(x.access) > 0 {
			kind = "method"
		}
		x.addSymbol(name, kind, retType, locOf(x.path, nameNode), x.memberVisibility())
	}
	x.walkTypeUse(n.ChildByFieldName("type"))

	x.pushScope("function", name, extentOf(x.path, n))
	// Parameters live in the function scope; find them under the
	// function_declarator rather than recursing into the name.
	x.walkParams(declarator)
	if body := n.ChildByFieldName("body"); body != nil {
		x.walkChildren(body)
	}
	x.popScope()
}

func (x *cFamily) walkParams(declarator *sitter.Node) {
	for d := declarator; d != nil; d = d.ChildByFieldName("declarator") {
		if d.Type() == "function_declarator" {
			if params := d.ChildByFieldName("parameters"); params != nil {
				x.walkChildren(params)
			}
			return
		}
	}
}

func (x *cFamily) walkDeclaration(n *sitter.Node) {
	typ := nodeText(n.ChildByFieldName("type"), x.src)
	x.walkTypeUse(n.ChildByFieldName("type"))

	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "init_declarator", "identifier", "pointer_declarator",
			"array_declarator", "function_declarator", "reference_declarator":
			nameNode := declaratorName(child)
			if nameNode == nil {
				continue
			}
			kind := "variable"
			if isFunctionDeclarator(child) {
				kind = "function"
			}
			declaredType := typ
			if isIndirectDeclarator(child) {
				declaredType += " *"
			}
			x.addSymbol(nodeText(nameNode, x.src), kind, declaredType, locOf(x.path, nameNode), x.memberVisibility())
			// Initializer expressions still carry references.
			if child.Type() == "init_declarator" {
				if val := child.ChildByFieldName("value"); val != nil {
					x.walk(val)
				}
			}
		}
	}
}

func (x *cFamily) walkField(n *sitter.Node) {
	typ := nodeText(n.ChildByFieldName("type"), x.src)
	declarator := n.ChildByFieldName("declarator")
	if isIndirectDeclarator(declarator) {
		typ += " *"
	}
	x.walkTypeUse(n.ChildByFieldName("type"))
	if d := declaratorName(declarator); d != nil {
		x.addSymbol(nodeText(d, x.src), "field", typ, locOf(x.path, d), x.memberVisibility())
	}
}

func (x *cFamily) walkParameter(n *sitter.Node) {
	typ := nodeText(n.ChildByFieldName("type"), x.src)
	declarator := n.ChildByFieldName("declarator")
	if isIndirectDeclarator(declarator) {
		typ += " *"
	}
	x.walkTypeUse(n.ChildByFieldName("type"))
	if d := declaratorName(declarator); d != nil {
		x.addSymbol(nodeText(d, x.src), "parameter", typ, locOf(x.path, d), VisibilityPublic)
	}
}

// walkTypeUse records a type reference when a declaration's type names a
// user-defined type. Bodied specifiers are handled by walkTypeSpecifier.
func (x *cFamily) walkTypeUse(typeNode *sitter.Node) {
	if typeNode == nil {
		return
	}
	switch typeNode.Type() {
	case "type_identifier":
		x.addRef(nodeText(typeNode, x.src), RefType, locOf(x.path, typeNode))
	case "struct_specifier", "union_specifier", "enum_specifier", "class_specifier":
		x.walkTypeSpecifier(typeNode)
	}
}

func (x *cFamily) walkCall(n *sitter.Node) {
	fn := n.ChildByFieldName("function")
	if fn != nil {
		switch fn.Type() {
		case "identifier":
			x.addRef(nodeText(fn, x.src), RefCall, locOf(x.path, fn))
		case "field_expression":
			x.walkMember(fn)
		case "qualified_identifier":
			x.walkQualified(fn)
		default:
			x.walk(fn)
		}
	}
	if args := n.ChildByFieldName("arguments"); args != nil {
		x.walkChildren(args)
	}
}

func (x *cFamily) walkMember(n *sitter.Node) {
	if field := n.ChildByFieldName("field"); field != nil {
		x.addRef(nodeText(field, x.src), RefMember, locOf(x.path, field))
	}
	if arg := n.ChildByFieldName("argument"); arg != nil {
		x.walk(arg)
	}
}

// walkQualified records a scope-qualified use (ns::name) as a scope
// reference on the qualifier plus a plain reference on the member.
func (x *cFamily) walkQualified(n *sitter.Node) {
	if scope := n.ChildByFieldName("scope"); scope != nil {
		x.addRef(nodeText(scope, x.src), RefScope, locOf(x.path, scope))
	}
	if name := n.ChildByFieldName("name"); name != nil {
		switch name.Type() {
		case "qualified_identifier":
			x.walkQualified(name)
		default:
			x.addRef(nodeText(name, x.src), RefIdentifier, locOf(x.path, name))
		}
	}
}

// memberVisibility returns the access level in effect: the innermost type
// scope's current access specifier, or public outside type scopes.
func (x *cFamily) memberVisibility() Visibility {
	if len(x.access) == 0 {
		return VisibilityPublic
	}
	return x.access[len(x.access)-1]
}
