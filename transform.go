package arbor

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// GeneratedFile is one output of a transform: the new content plus a patch
// against the original (empty for files that did not exist before). Nothing
// is written to disk; callers decide what to do with the result.
type GeneratedFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Diff    string `json:"diff,omitempty"`
}

// transformConventions maps convention names to their implementations.
var transformConventions = map[string]func(*TranslationUnit, Package) ([]GeneratedFile, error){
	"upp": transformUnifiedPrimaryHeader,
}

// TransformIncludes applies the named include convention to a resolved unit.
// Unknown conventions are an error; the caller's name is more likely wrong
// than missing support is acceptable silently.
func TransformIncludes(tu *TranslationUnit, pkg Package, convention string) ([]GeneratedFile, error) {
	fn, ok := transformConventions[convention]
	if !ok {
		names := make([]string, 0, len(transformConventions))
		for n := range transformConventions {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("unknown include convention %q (supported: %s)", convention, strings.Join(names, ", "))
	}
	if tu.Symbols == nil {
		return nil, fmt.Errorf("transform requires a resolved translation unit")
	}
	return fn(tu, pkg)
}

// declUnit is one top-level declaration destined for the primary header.
type declUnit struct {
	name string
	kind string
	file string
	pos  int
	end  int
	text string
	// strong deps must be fully declared first; weak deps (pointer or
	// reference members) only need a forward declaration.
	strong map[string]bool
	weak   map[string]bool
}

// transformUnifiedPrimaryHeader collapses the package's headers into a
// single primary header whose declarations are emitted in dependency order,
// and rewrites every source file to include only that header.
//
// Declaration order comes from a topological sort over by-value type
// dependencies. Pointer and reference members do not create edges; they are
// satisfied by synthesized forward declarations. A cycle among by-value
// dependencies is unorderable, so the transform stops with a
// CircularDependencyError and emits nothing.
func transformUnifiedPrimaryHeader(tu *TranslationUnit, pkg Package) ([]GeneratedFile, error) {
	decls, err := collectHeaderDecls(tu)
	if err != nil {
		return nil, err
	}
	if len(decls) == 0 {
		return nil, fmt.Errorf("no header declarations to transform")
	}

	ordered, err := topoSort(decls)
	if err != nil {
		return nil, err
	}

	primary := primaryHeaderName(pkg)
	header := renderPrimaryHeader(pkg, primary, ordered)
	out := []GeneratedFile{{Path: primary, Content: header, Diff: diffText("", header)}}

	headerBases := make(map[string]bool)
	for _, path := range tu.SortedPaths() {
		if isHeaderPath(path) {
			headerBases[filepath.Base(path)] = true
		}
	}

	for _, path := range tu.SortedPaths() {
		if isHeaderPath(path) {
			continue
		}
		doc := tu.FileASTs[path]
		if doc.Language != "c" && doc.Language != "cpp" {
			continue
		}
		original, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		rewritten := rewriteIncludes(string(original), headerBases, filepath.Base(primary))
		if rewritten == string(original) {
			continue
		}
		out = append(out, GeneratedFile{
			Path:    path,
			Content: rewritten,
			Diff:    diffText(string(original), rewritten),
		})
	}
	return out, nil
}

// headerDeclKinds are the top-level node kinds lifted into the primary
// header.
var headerDeclKinds = map[string]bool{
	"struct_decl":  true,
	"class_decl":   true,
	"union_decl":   true,
	"enum_decl":    true,
	"typedef_decl": true,
	"function_def": true,
	"var_decl":     true,
	"macro_def":    true,
}

// collectHeaderDecls slices every top-level declaration out of the unit's
// header files and computes its dependencies on other collected types.
func collectHeaderDecls(tu *TranslationUnit) ([]*declUnit, error) {
	var decls []*declUnit
	byName := make(map[string]*declUnit)

	for _, path := range tu.SortedPaths() {
		if !isHeaderPath(path) {
			continue
		}
		doc := tu.FileASTs[path]
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		for _, node := range doc.Root.Children {
			if !headerDeclKinds[node.Kind] {
				continue
			}
			d := &declUnit{
				name:   declName(node, doc),
				kind:   node.Kind,
				file:   path,
				pos:    node.Extent.Start.Offset,
				end:    node.Extent.End.Offset,
				text:   sliceDecl(node, src),
				strong: make(map[string]bool),
				weak:   make(map[string]bool),
			}
			if d.name == "" || d.text == "" {
				continue
			}
			decls = append(decls, d)
			if _, dup := byName[d.name]; !dup {
				byName[d.name] = d
			}
		}
	}

	for _, d := range decls {
		fillDeps(d, tu, byName)
	}
	return decls, nil
}

// declName returns the declared name of a top-level node, falling back to
// the first symbol located inside its extent.
func declName(node *ASTNode, doc *ASTDocument) string {
	if node.Name != "" {
		return node.Name
	}
	for _, sym := range doc.Symbols {
		if node.Extent.Contains(sym.Loc.Line, sym.Loc.Column) {
			return sym.Name
		}
	}
	return ""
}

// sliceDecl cuts the declaration's source text, restoring the trailing
// semicolon the grammar leaves outside type specifier nodes.
func sliceDecl(node *ASTNode, src []byte) string {
	start, end := node.Extent.Start.Offset, node.Extent.End.Offset
	if start < 0 || end > len(src) || start >= end {
		return ""
	}
	text := strings.TrimSpace(string(src[start:end]))
	switch node.Kind {
	case "struct_decl", "class_decl", "union_decl", "enum_decl":
		if !strings.HasSuffix(text, ";") {
			text += ";"
		}
	}
	return text
}

// fillDeps computes d's dependencies. Members of the declaration's type
// scope contribute by their declared type: by-value types are strong edges,
// pointer and reference types are weak. Type references inside the extent
// (typedef targets, base classes, prototype parameter types) are strong.
func fillDeps(d *declUnit, tu *TranslationUnit, byName map[string]*declUnit) {
	doc := tu.FileASTs[d.file]

	memberScopes := make(map[int]bool)
	for _, s := range doc.Scopes {
		if s.Kind == "type" && s.Name == d.name {
			memberScopes[s.ID] = true
		}
	}
	for _, sym := range doc.Symbols {
		if !memberScopes[sym.ScopeID] || sym.Type == "" {
			continue
		}
		base := baseTypeName(sym.Type)
		if base == d.name {
			continue
		}
		if _, ok := byName[base]; !ok {
			continue
		}
		if strings.ContainsAny(sym.Type, "*&") {
			d.weak[base] = true
		} else {
			d.strong[base] = true
		}
	}

	if len(memberScopes) > 0 {
		return
	}
	// Scope-less declarations (typedefs, prototypes, globals) depend on
	// the types referenced within their extent.
	for _, ref := range doc.Refs {
		if ref.Context != RefType || ref.Name == d.name {
			continue
		}
		if !d.extentContains(ref.Loc) {
			continue
		}
		if _, ok := byName[ref.Name]; ok {
			d.strong[ref.Name] = true
		}
	}
}

func (d *declUnit) extentContains(loc SourceLocation) bool {
	return loc.File == d.file && loc.Offset >= d.pos && loc.Offset <= d.end
}

// topoSort orders declarations so every strong dependency precedes its
// dependents (Kahn's algorithm). Ties resolve by original file-then-position
// order, keeping output deterministic. A residue after the queue drains is a
// by-value cycle and aborts the transform.
func topoSort(decls []*declUnit) ([]*declUnit, error) {
	sort.Slice(decls, func(i, j int) bool {
		if decls[i].file != decls[j].file {
			return decls[i].file < decls[j].file
		}
		return decls[i].pos < decls[j].pos
	})

	byName := make(map[string]*declUnit, len(decls))
	for _, d := range decls {
		if _, dup := byName[d.name]; !dup {
			byName[d.name] = d
		}
	}

	indegree := make(map[*declUnit]int, len(decls))
	dependents := make(map[*declUnit][]*declUnit)
	for _, d := range decls {
		indegree[d] += 0
		for dep := range d.strong {
			if provider, ok := byName[dep]; ok && provider != d {
				indegree[d]++
				dependents[provider] = append(dependents[provider], d)
			}
		}
	}

	var queue []*declUnit
	for _, d := range decls {
		if indegree[d] == 0 {
			queue = append(queue, d)
		}
	}

	ordered := make([]*declUnit, 0, len(decls))
	for len(queue) > 0 {
		d := queue[0]
		queue = queue[1:]
		ordered = append(ordered, d)
		for _, dep := range dependents[d] {
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(ordered) != len(decls) {
		var cycle []string
		for _, d := range decls {
			if indegree[d] > 0 {
				cycle = append(cycle, d.name)
			}
		}
		sort.Strings(cycle)
		return nil, &CircularDependencyError{Cycle: cycle}
	}
	return ordered, nil
}

func primaryHeaderName(pkg Package) string {
	name := pkg.Name
	if name == "" {
		name = "package"
	}
	return name + ".h"
}

// renderPrimaryHeader assembles the header: include guard, synthesized
// forward declarations for pointer-only dependencies, then the declarations
// in dependency order.
func renderPrimaryHeader(pkg Package, filename string, ordered []*declUnit) string {
	var b strings.Builder
	guard := guardMacro(filename)
	fmt.Fprintf(&b, "#ifndef %s\n#define %s\n", guard, guard)

	forwards := forwardDecls(ordered)
	if len(forwards) > 0 {
		b.WriteByte('\n')
		for _, f := range forwards {
			b.WriteString(f)
			b.WriteByte('\n')
		}
	}

	for _, d := range ordered {
		b.WriteByte('\n')
		b.WriteString(d.text)
		b.WriteByte('\n')
	}

	fmt.Fprintf(&b, "\n#endif /* %s */\n", guard)
	return b.String()
}

// forwardDecls synthesizes forward declarations for weak dependencies whose
// full declaration lands after the dependent in the final order. A pointer
// target already declared earlier needs nothing; only a genuine back-edge
// does. The synthesized form is keyed to the dependency's declaration kind.
func forwardDecls(ordered []*declUnit) []string {
	pos := make(map[string]int, len(ordered))
	kinds := make(map[string]string, len(ordered))
	for i, d := range ordered {
		if _, dup := pos[d.name]; dup {
			continue
		}
		pos[d.name] = i
		kinds[d.name] = d.kind
	}
	seen := make(map[string]bool)
	var out []string
	for i, d := range ordered {
		for dep := range d.weak {
			if seen[dep] {
				continue
			}
			if depPos, ok := pos[dep]; !ok || depPos <= i {
				continue
			}
			seen[dep] = true
			switch kinds[dep] {
			case "class_decl":
				out = append(out, "class "+dep+";")
			case "union_decl":
				out = append(out, "union "+dep+";")
			default:
				out = append(out, "struct "+dep+";")
			}
		}
	}
	sort.Strings(out)
	return out
}

func guardMacro(filename string) string {
	g := strings.ToUpper(filename)
	g = strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return r
		}
		return '_'
	}, g)
	return g
}

// rewriteIncludes drops every include of a package header and inserts one
// include of the primary header at the position of the first drop.
func rewriteIncludes(content string, headerBases map[string]bool, primary string) string {
	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines))
	inserted := false
	for _, line := range lines {
		target, ok := includeTarget(line)
		if ok && headerBases[filepath.Base(target)] {
			if !inserted {
				out = append(out, fmt.Sprintf("#include %q", primary))
				inserted = true
			}
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// includeTarget parses a #include line, returning the included path.
func includeTarget(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "#include") {
		return "", false
	}
	rest := strings.TrimSpace(strings.TrimPrefix(trimmed, "#include"))
	if len(rest) < 2 {
		return "", false
	}
	switch rest[0] {
	case '"':
		if end := strings.IndexByte(rest[1:], '"'); end >= 0 {
			return rest[1 : 1+end], true
		}
	case '<':
		if end := strings.IndexByte(rest[1:], '>'); end >= 0 {
			return rest[1 : 1+end], true
		}
	}
	return "", false
}

func isHeaderPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".h", ".hpp", ".hh":
		return true
	}
	return false
}

// diffText renders a patch from old to updated content.
func diffText(old, updated string) string {
	dmp := diffmatchpatch.New()
	patches := dmp.PatchMake(old, updated)
	return dmp.PatchToText(patches)
}
