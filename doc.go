// Package arbor is an incremental translation-unit build and symbol-indexing
// engine. It parses source files into a language-agnostic AST using
// tree-sitter grammars, caches per-file parse results keyed by content
// digest, merges per-file ASTs into a cross-file symbol table, persists a
// queryable SQLite symbol index, and serves completion and find-references
// queries over the result.
//
// The pipeline has two explicit phases:
//
//  1. Build: for every file in a package, in deterministic path order, the
//     builder consults the content-addressed AST cache and dispatches cache
//     misses to the matching language parser adapter. Per-file parse
//     failures are recorded in the build report and never abort the package.
//
//  2. Resolve: a separate, more expensive step that registers every
//     declaration in a scope-aware symbol table (pass 1) and then, behind a
//     strict barrier, attaches the innermost matching definition to every
//     use site (pass 2). Unresolved references are a normal outcome and are
//     recorded, not raised.
//
// Cache entries are content-addressed and write-once: identical parse input
// always produces the identical entry, so concurrent writers racing on the
// same digest are harmless and deleting the cache directory wholesale is
// always safe. The symbol index is purely derived state and can be
// regenerated in full from any TranslationUnit.
//
// Basic usage:
//
//	eng, err := arbor.New(".arbor/cache", ".arbor/symbols.db")
//	if err != nil { ... }
//	defer eng.Close()
//
//	tu, err := eng.BuildWithSymbols(ctx, arbor.Package{
//		Name:  "mypkg",
//		Files: []string{"a.h", "a.cpp"},
//	})
//
//	items := eng.CompleteAt("a.cpp", 12, 8)
//	refs, err := eng.FindReferences("Point", "a.h", 1)
package arbor
