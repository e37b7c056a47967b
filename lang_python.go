package arbor

import (
	"os"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

func init() {
	RegisterParser(&pythonParser{})
}

// pythonParser parses Python sources with the tree-sitter Python grammar.
type pythonParser struct{}

func (p *pythonParser) Language() string { return "python" }

func (p *pythonParser) ParseFile(path string, cctx CompileContext) (*ASTDocument, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{Path: path, Msg: "read file", Err: err}
	}
	tree, err := parseSource(path, src, python.GetLanguage())
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	x := &pyExtractor{extractor: newExtractor(path, src, tree.RootNode())}
	x.doc.Language = "python"
	x.walkChildren(tree.RootNode())
	x.doc.Root = convertTree(path, tree.RootNode(), src, pyKindMap)
	return x.doc, nil
}

var pyKindMap = map[string]string{
	"module":                "file",
	"import_statement":      "include",
	"import_from_statement": "include",
	"function_definition":   "function_def",
	"class_definition":      "class_decl",
	"assignment":            "var_decl",
	"parameters":            "parm_list",
	"typed_parameter":       "parm_var_decl",
	"default_parameter":     "parm_var_decl",
	"block":                 "block",
	"call":                  "call_expr",
	"attribute":             "member_expr",
	"identifier":            "identifier",
}

// pyVisibility follows the underscore convention: a leading underscore means
// private, everything else public.
func pyVisibility(name string) Visibility {
	if strings.HasPrefix(name, "_") {
		return VisibilityPrivate
	}
	return VisibilityPublic
}

type pyExtractor struct {
	*extractor
}

func (x *pyExtractor) walkChildren(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		x.walk(n.NamedChild(i))
	}
}

func (x *pyExtractor) walk(n *sitter.Node) {
	switch n.Type() {
	case "import_statement":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			x.addImportName(n.NamedChild(i))
		}

	case "import_from_statement":
		if mod := n.ChildByFieldName("module_name"); mod != nil {
			x.addInclude(nodeText(mod, x.src))
		}

	case "function_definition":
		x.walkFunc(n)

	case "class_definition":
		x.walkClass(n)

	case "assignment":
		x.walkAssignment(n)

	case "call":
		x.walkCall(n)

	case "attribute":
		x.walkAttribute(n)

	case "identifier":
		x.addRef(nodeText(n, x.src), RefIdentifier, locOf(x.path, n))

	default:
		x.walkChildren(n)
	}
}

func (x *pyExtractor) addImportName(n *sitter.Node) {
	switch n.Type() {
	case "dotted_name":
		x.addInclude(nodeText(n, x.src))
	case "aliased_import":
		if name := n.ChildByFieldName("name"); name != nil {
			x.addInclude(nodeText(name, x.src))
		}
	}
}

func (x *pyExtractor) walkFunc(n *sitter.Node) {
	name := ""
	if nn := n.ChildByFieldName("name"); nn != nil {
		name = nodeText(nn, x.src)
		retType := nodeText(n.ChildByFieldName("return_type"), x.src)
		x.addSymbol(name, "function", retType, locOf(x.path, nn), pyVisibility(name))
	}
	x.pushScope("function", name, extentOf(x.path, n))
	if params := n.ChildByFieldName("parameters"); params != nil {
		x.walkParams(params)
	}
	if body := n.ChildByFieldName("body"); body != nil {
		x.walkChildren(body)
	}
	x.popScope()
}

func (x *pyExtractor) walkParams(params *sitter.Node) {
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		switch p.Type() {
		case "identifier":
			x.addSymbol(nodeText(p, x.src), "parameter", "", locOf(x.path, p), VisibilityPublic)
		case "typed_parameter":
			typ := nodeText(p.ChildByFieldName("type"), x.src)
			if id := firstNamedOfType(p, "identifier"); id != nil {
				x.addSymbol(nodeText(id, x.src), "parameter", typ, locOf(x.path, id), VisibilityPublic)
			}
			if tn := p.ChildByFieldName("type"); tn != nil {
				x.walkChildren(tn)
			}
		case "default_parameter", "typed_default_parameter":
			typ := nodeText(p.ChildByFieldName("type"), x.src)
			if nn := p.ChildByFieldName("name"); nn != nil {
				x.addSymbol(nodeText(nn, x.src), "parameter", typ, locOf(x.path, nn), VisibilityPublic)
			}
			if val := p.ChildByFieldName("value"); val != nil {
				x.walk(val)
			}
		}
	}
}

func (x *pyExtractor) walkClass(n *sitter.Node) {
	name := ""
	if nn := n.ChildByFieldName("name"); nn != nil {
		name = nodeText(nn, x.src)
		x.addSymbol(name, "class", "", locOf(x.path, nn), pyVisibility(name))
	}
	if supers := n.ChildByFieldName("superclasses"); supers != nil {
		for i := 0; i < int(supers.NamedChildCount()); i++ {
			if base := supers.NamedChild(i); base.Type() == "identifier" {
				x.addRef(nodeText(base, x.src), RefType, locOf(x.path, base))
			} else {
				x.walk(base)
			}
		}
	}
	x.pushScope("type", name, extentOf(x.path, n))
	if body := n.ChildByFieldName("body"); body != nil {
		x.walkChildren(body)
	}
	x.popScope()
}

// walkAssignment declares plain identifier targets and records references
// for everything else, including the right-hand side.
func (x *pyExtractor) walkAssignment(n *sitter.Node) {
	typ := nodeText(n.ChildByFieldName("type"), x.src)
	if left := n.ChildByFieldName("left"); left != nil {
		if left.Type() == "identifier" {
			name := nodeText(left, x.src)
			x.addSymbol(name, "variable", typ, locOf(x.path, left), pyVisibility(name))
		} else {
			x.walk(left)
		}
	}
	if right := n.ChildByFieldName("right"); right != nil {
		x.walk(right)
	}
}

func (x *pyExtractor) walkCall(n *sitter.Node) {
	fn := n.ChildByFieldName("function")
	if fn != nil {
		switch fn.Type() {
		case "identifier":
			x.addRef(nodeText(fn, x.src), RefCall, locOf(x.path, fn))
		case "attribute":
			x.walkAttribute(fn)
		default:
			x.walk(fn)
		}
	}
	if args := n.ChildByFieldName("arguments"); args != nil {
		x.walkChildren(args)
	}
}

func (x *pyExtractor) walkAttribute(n *sitter.Node) {
	if attr := n.ChildByFieldName("attribute"); attr != nil {
		x.addRef(nodeText(attr, x.src), RefMember, locOf(x.path, attr))
	}
	if obj := n.ChildByFieldName("object"); obj != nil {
		x.walk(obj)
	}
}
