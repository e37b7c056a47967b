package arbor

// SymbolTable aggregates the symbols and scopes of every file in a
// translation unit. Insertion order is preserved everywhere: lookups that
// return multiple candidates (overloads, redeclarations) list them in
// declaration order, and the resolver's first-match rule rides on that.
type SymbolTable struct {
	byName map[string][]*Symbol
	byID   map[string]*Symbol
	byFile map[string][]*Symbol
	scopes map[string][]Scope
	files  []string
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		byName: make(map[string][]*Symbol),
		byID:   make(map[string]*Symbol),
		byFile: make(map[string][]*Symbol),
		scopes: make(map[string][]Scope),
	}
}

// AddDocument registers every symbol and scope of a parsed file. Documents
// must be added in a deterministic order; the resolver adds them path-sorted.
func (t *SymbolTable) AddDocument(doc *ASTDocument) {
	if _, seen := t.scopes[doc.Path]; !seen {
		t.files = append(t.files, doc.Path)
	}
	t.scopes[doc.Path] = doc.Scopes
	for _, sym := range doc.Symbols {
		t.AddSymbol(sym)
	}
}

// AddSymbol registers one symbol. A symbol with an identical id replaces the
// previous registration in the id map but both remain listed by name, which
// only matters for pathological duplicate declarations at one location.
func (t *SymbolTable) AddSymbol(sym *Symbol) {
	t.byName[sym.Name] = append(t.byName[sym.Name], sym)
	t.byID[sym.ID()] = sym
	t.byFile[sym.Loc.File] = append(t.byFile[sym.Loc.File], sym)
}

// SymbolsByName returns all symbols with the given name in declaration order.
func (t *SymbolTable) SymbolsByName(name string) []*Symbol {
	return t.byName[name]
}

// SymbolByID returns the symbol with the given stable id, or nil.
func (t *SymbolTable) SymbolByID(id string) *Symbol {
	return t.byID[id]
}

// SymbolsInFile returns all symbols declared in path in declaration order.
func (t *SymbolTable) SymbolsInFile(path string) []*Symbol {
	return t.byFile[path]
}

// Files returns the registered file paths in registration order.
func (t *SymbolTable) Files() []string {
	return t.files
}

// scopeAt returns the innermost scope of at.File containing the position,
// or nil when the file is unknown. The file scope spans the whole file, so a
// known file always yields at least that.
func (t *SymbolTable) scopeAt(at SourceLocation) *Scope {
	scopes, ok := t.scopes[at.File]
	if !ok || len(scopes) == 0 {
		return nil
	}
	best := -1
	bestDepth := -1
	for i := range scopes {
		if !scopes[i].Extent.Contains(at.Line, at.Column) {
			continue
		}
		d := t.depth(scopes, scopes[i].ID)
		if d > bestDepth {
			best = i
			bestDepth = d
		}
	}
	if best < 0 {
		return &scopes[0]
	}
	return &scopes[best]
}

func (t *SymbolTable) depth(scopes []Scope, id int) int {
	d := 0
	for id >= 0 && id < len(scopes) {
		id = scopes[id].Parent
		d++
	}
	return d
}

// Lookup resolves a name as seen from a position. The scope chain is walked
// innermost-first and every match along it is collected, so a shadowed outer
// declaration still appears after the one shadowing it; callers wanting the
// effective binding take the first candidate, callers diagnosing ambiguity
// see the full list. Inside function and block scopes a symbol counts only if
// it is declared before the use position; type, namespace, and file scopes
// have no such ordering rule. The final step appends top-level symbols from
// the rest of the unit, with private symbols visible only inside their own
// file.
func (t *SymbolTable) Lookup(name string, at SourceLocation) []*Symbol {
	scopes := t.scopes[at.File]
	var found []*Symbol
	visited := make(map[int]bool)
	for s := t.scopeAt(at); s != nil; {
		visited[s.ID] = true
		for _, sym := range t.byFile[at.File] {
			if sym.Name != name || sym.ScopeID != s.ID {
				continue
			}
			if (s.Kind == "function" || s.Kind == "block") && !sym.Loc.Before(at) {
				continue
			}
			found = append(found, sym)
		}
		if s.Parent < 0 || s.Parent >= len(scopes) {
			break
		}
		s = &scopes[s.Parent]
	}
	for _, sym := range t.globalLookup(name, at.File) {
		// Own-file symbols in scopes the chain already walked are in the
		// list; everything else (other files, unvisited namespaces) joins.
		if sym.Loc.File == at.File && visited[sym.ScopeID] {
			continue
		}
		found = append(found, sym)
	}
	return found
}

// globalLookup searches the file scopes of the whole unit, same file first,
// then the remaining files in registration order.
func (t *SymbolTable) globalLookup(name, fromFile string) []*Symbol {
	var found []*Symbol
	for _, sym := range t.byName[name] {
		if !t.isTopLevel(sym) {
			continue
		}
		if sym.Loc.File != fromFile && sym.Visibility == VisibilityPrivate {
			continue
		}
		found = append(found, sym)
	}
	if len(found) < 2 {
		return found
	}
	ordered := make([]*Symbol, 0, len(found))
	for _, sym := range found {
		if sym.Loc.File == fromFile {
			ordered = append(ordered, sym)
		}
	}
	for _, sym := range found {
		if sym.Loc.File != fromFile {
			ordered = append(ordered, sym)
		}
	}
	return ordered
}

// isTopLevel reports whether the symbol sits in a file or namespace scope,
// i.e. participates in cross-file resolution.
func (t *SymbolTable) isTopLevel(sym *Symbol) bool {
	scopes, ok := t.scopes[sym.Loc.File]
	if !ok || sym.ScopeID < 0 || sym.ScopeID >= len(scopes) {
		return false
	}
	kind := scopes[sym.ScopeID].Kind
	return kind == "file" || kind == "namespace"
}

// VisibleSymbols returns every symbol visible from a position, innermost
// scope first, with shadowed names appearing once. This is the candidate set
// completion starts from.
func (t *SymbolTable) VisibleSymbols(at SourceLocation) []*Symbol {
	var out []*Symbol
	seen := make(map[string]bool)

	scopes := t.scopes[at.File]
	for s := t.scopeAt(at); s != nil; {
		for _, sym := range t.byFile[at.File] {
			if sym.ScopeID != s.ID || seen[sym.Name] {
				continue
			}
			if (s.Kind == "function" || s.Kind == "block") && !sym.Loc.Before(at) {
				continue
			}
			seen[sym.Name] = true
			out = append(out, sym)
		}
		if s.Parent < 0 || s.Parent >= len(scopes) {
			break
		}
		s = &scopes[s.Parent]
	}

	for _, file := range t.files {
		if file == at.File {
			continue
		}
		for _, sym := range t.byFile[file] {
			if seen[sym.Name] || !t.isTopLevel(sym) || sym.Visibility == VisibilityPrivate {
				continue
			}
			seen[sym.Name] = true
			out = append(out, sym)
		}
	}
	return out
}

// ScopesForFile returns the scope list recorded for a file.
func (t *SymbolTable) ScopesForFile(path string) []Scope {
	return t.scopes[path]
}
