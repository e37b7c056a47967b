package arbor

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
)

// SourceLocation is an immutable position within a source file.
// Line and Column are 1-based; Offset is the 0-based byte offset.
type SourceLocation struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
	Offset int    `json:"offset"`
}

func (l SourceLocation) String() string {
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// Before reports whether l precedes other in file-then-position order.
func (l SourceLocation) Before(other SourceLocation) bool {
	if l.File != other.File {
		return l.File < other.File
	}
	if l.Line != other.Line {
		return l.Line < other.Line
	}
	return l.Column < other.Column
}

// SourceExtent is the start/end span of a node. End is inclusive.
type SourceExtent struct {
	Start SourceLocation `json:"start"`
	End   SourceLocation `json:"end"`
}

// Contains reports whether the 1-based (line, column) position falls within
// the extent.
func (e SourceExtent) Contains(line, column int) bool {
	if line < e.Start.Line || line > e.End.Line {
		return false
	}
	if line == e.Start.Line && column < e.Start.Column {
		return false
	}
	if line == e.End.Line && column > e.End.Column {
		return false
	}
	return true
}

// ASTNode is one node of the language-agnostic syntax tree. Children are
// exclusively owned by their parent: the structure is always a tree, never a
// graph. Attrs carries language-specific data that has no universal slot.
type ASTNode struct {
	Kind     string            `json:"kind"`
	Name     string            `json:"name,omitempty"`
	Loc      SourceLocation    `json:"loc"`
	Extent   SourceExtent      `json:"extent"`
	Children []*ASTNode        `json:"children,omitempty"`
	Attrs    map[string]string `json:"attrs,omitempty"`
}

// Walk visits n and its descendants in preorder. Returning false from fn
// stops descent into that node's children.
func (n *ASTNode) Walk(fn func(*ASTNode) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, child := range n.Children {
		child.Walk(fn)
	}
}

// Visibility of a symbol at its declaration site.
type Visibility string

const (
	VisibilityPublic    Visibility = "public"
	VisibilityPrivate   Visibility = "private"
	VisibilityProtected Visibility = "protected"
)

// Symbol is a named, located declaration. ScopeID is a back-reference into
// the owning document's scope list, a relation only, never ownership.
type Symbol struct {
	Name       string         `json:"name"`
	Kind       string         `json:"kind"`
	Type       string         `json:"type,omitempty"`
	Loc        SourceLocation `json:"loc"`
	ScopeID    int            `json:"scope_id"`
	Visibility Visibility     `json:"visibility,omitempty"`
}

// ID returns the stable identity used by the symbol index:
// "kind:name @file:line:column".
func (s *Symbol) ID() string {
	return fmt.Sprintf("%s:%s @%s:%d:%d", s.Kind, s.Name, s.Loc.File, s.Loc.Line, s.Loc.Column)
}

// Scope is one lexical scope within a single document. Parent is the id of
// the enclosing scope, or -1 for the file scope. The chain is finite and
// acyclic by construction: parents are always created before children.
type Scope struct {
	ID     int          `json:"id"`
	Kind   string       `json:"kind"` // file, namespace, type, function, block
	Name   string       `json:"name,omitempty"`
	Extent SourceExtent `json:"extent"`
	Parent int          `json:"parent"`
}

// RefContext classifies how a name is used at a reference site.
type RefContext string

const (
	RefIdentifier RefContext = "identifier"
	RefCall       RefContext = "call"
	RefMember     RefContext = "member"
	RefScope      RefContext = "scope"
	RefType       RefContext = "type"
)

// Reference is a use-site of a name. Target holds the resolved symbol id
// once resolution has run. An empty Target after resolution means the
// reference is unresolved (macros, forward declarations, external symbols),
// which is a recorded, expected outcome rather than an error.
type Reference struct {
	Name    string         `json:"name"`
	Context RefContext     `json:"context"`
	Loc     SourceLocation `json:"loc"`
	ScopeID int            `json:"scope_id"`
	Target  string         `json:"target,omitempty"`
}

// ASTDocument is the parsed representation of one source file. Documents are
// replaced wholesale on reparse, never patched in place.
type ASTDocument struct {
	Path     string       `json:"path"`
	Language string       `json:"language"`
	Digest   string       `json:"digest,omitempty"`
	Root     *ASTNode     `json:"root"`
	Symbols  []*Symbol    `json:"symbols"`
	Scopes   []Scope      `json:"scopes"`
	Refs     []*Reference `json:"refs,omitempty"`
	Includes []string     `json:"includes,omitempty"`
}

// ScopeByID returns the scope with the given id, or nil.
func (d *ASTDocument) ScopeByID(id int) *Scope {
	if id < 0 || id >= len(d.Scopes) {
		return nil
	}
	return &d.Scopes[id]
}

// CompileContext carries the flags that shape a parse. It is mixed into the
// cache digest so a context change can never satisfy a read from an entry
// parsed under different flags.
type CompileContext struct {
	IncludePaths []string            `json:"include_paths,omitempty" yaml:"include_paths"`
	Defines      []string            `json:"defines,omitempty" yaml:"defines"`
	Standard     string              `json:"standard,omitempty" yaml:"standard"`
	FileFlags    map[string][]string `json:"file_flags,omitempty" yaml:"file_flags"`
}

// Fingerprint returns a deterministic digest of the context as it applies to
// one file. Key order never affects the result.
func (c CompileContext) Fingerprint(path string) string {
	h := sha256.New()
	fmt.Fprintf(h, "includes:%s\n", strings.Join(c.IncludePaths, ","))
	fmt.Fprintf(h, "defines:%s\n", strings.Join(c.Defines, ","))
	fmt.Fprintf(h, "standard:%s\n", c.Standard)
	if flags, ok := c.FileFlags[path]; ok {
		fmt.Fprintf(h, "flags:%s\n", strings.Join(flags, ","))
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Package is the unit of a build: an ordered file list plus the compile
// context supplied by the repository-scanning collaborator.
type Package struct {
	Name    string
	Files   []string
	Context CompileContext
}

// FileStatus is the per-file outcome of a build.
type FileStatus string

const (
	StatusParsed  FileStatus = "parsed"
	StatusCached  FileStatus = "cached"
	StatusFailed  FileStatus = "failed"
	StatusSkipped FileStatus = "skipped"
)

// FileResult records one file's build outcome.
type FileResult struct {
	Path   string
	Status FileStatus
	Err    string
}

// BuildReport summarizes a build: per-file success/failure/skip rather than
// an all-or-nothing result.
type BuildReport struct {
	Files   []FileResult
	Parsed  int
	Cached  int
	Failed  int
	Skipped int
}

func (r *BuildReport) add(path string, status FileStatus, err error) {
	res := FileResult{Path: path, Status: status}
	if err != nil {
		res.Err = err.Error()
	}
	r.Files = append(r.Files, res)
	switch status {
	case StatusParsed:
		r.Parsed++
	case StatusCached:
		r.Cached++
	case StatusFailed:
		r.Failed++
	case StatusSkipped:
		r.Skipped++
	}
}

// ResolutionStats counts pass-2 outcomes.
type ResolutionStats struct {
	Resolved   int
	Unresolved int
}

// TranslationUnit aggregates all parsed files of one buildable package.
// FileASTs holds exactly the files belonging to the package at build time;
// a rebuild produces a fresh unit, so there is never stale carry-over.
type TranslationUnit struct {
	Package    string
	Context    CompileContext
	FileASTs   map[string]*ASTDocument
	Symbols    *SymbolTable
	Deps       map[string][]string
	Report     BuildReport
	Resolution ResolutionStats
}

// SortedPaths returns the unit's file paths in deterministic order.
func (tu *TranslationUnit) SortedPaths() []string {
	paths := make([]string, 0, len(tu.FileASTs))
	for p := range tu.FileASTs {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
