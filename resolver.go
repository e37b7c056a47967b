package arbor

// Resolve runs two-pass symbol resolution over a translation unit. Pass one
// registers every file's symbols into a fresh table; pass two resolves every
// reference against the completed table. The barrier between the passes is
// what makes use-before-declaration across files work: no reference is
// resolved until every declaration in the unit is visible.
//
// Resolution never fails the unit. A reference that matches nothing stays
// unresolved and is counted; macros, externals, and members of unanalyzed
// types all land there.
func Resolve(tu *TranslationUnit) {
	table := NewSymbolTable()
	for _, path := range tu.SortedPaths() {
		table.AddDocument(tu.FileASTs[path])
	}
	tu.Symbols = table

	stats := ResolutionStats{}
	for _, path := range tu.SortedPaths() {
		doc := tu.FileASTs[path]
		for _, ref := range doc.Refs {
			candidates := table.Lookup(ref.Name, ref.Loc)
			if len(candidates) == 0 {
				ref.Target = ""
				stats.Unresolved++
				continue
			}
			// Several candidates in one scope means overloads or
			// redeclarations; the first declaration wins.
			ref.Target = candidates[0].ID()
			stats.Resolved++
		}
	}
	tu.Resolution = stats
}
