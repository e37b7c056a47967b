package arbor

import (
	"os"
	"strings"

	"github.com/jward/arbor/internal/cache"
)

// maxCompletions caps the candidate list; editors truncate anyway.
const maxCompletions = 50

// CompletionItem is one completion candidate.
type CompletionItem struct {
	Label      string `json:"label"`
	Kind       string `json:"kind"`
	Detail     string `json:"detail,omitempty"`
	InsertText string `json:"insert_text"`
}

// CompleteAt returns completion candidates at a cursor position, derived
// entirely from the unit's cached documents. The on-disk file supplies only
// the current line text, used to classify the trigger and derive the prefix.
//
// Completion degrades to nothing rather than guessing: an unknown file, a
// document stale against the current bytes, or an unreadable file all yield
// an empty list, never an error.
func CompleteAt(tu *TranslationUnit, file string, line, column int) []CompletionItem {
	doc, ok := tu.FileASTs[file]
	if !ok || tu.Symbols == nil {
		return []CompletionItem{}
	}
	content, err := os.ReadFile(file)
	if err != nil {
		return []CompletionItem{}
	}
	if doc.Digest != "" && cache.Digest(content, tu.Context.Fingerprint(file)) != doc.Digest {
		return []CompletionItem{}
	}

	before, ok := textBefore(content, line, column)
	if !ok {
		return []CompletionItem{}
	}
	prefix, trigger, qualifier := splitCursor(before)
	at := SourceLocation{File: file, Line: line, Column: column}

	var candidates []*Symbol
	switch trigger {
	case ".", "->":
		candidates = memberCandidates(tu, qualifier, at)
	case "::":
		candidates = scopeCandidates(tu, qualifier, file)
	default:
		candidates = tu.Symbols.VisibleSymbols(at)
	}

	items := make([]CompletionItem, 0, len(candidates))
	for _, sym := range candidates {
		if prefix != "" && !strings.HasPrefix(sym.Name, prefix) {
			continue
		}
		items = append(items, CompletionItem{
			Label:      sym.Name,
			Kind:       sym.Kind,
			Detail:     sym.Type,
			InsertText: sym.Name,
		})
		if len(items) == maxCompletions {
			break
		}
	}
	return items
}

// textBefore returns the text of the given line up to (not including) the
// cursor column. Both line and column are 1-based.
func textBefore(content []byte, line, column int) (string, bool) {
	lines := strings.Split(string(content), "\n")
	if line < 1 || line > len(lines) {
		return "", false
	}
	text := lines[line-1]
	if column < 1 || column-1 > len(text) {
		return "", false
	}
	return text[:column-1], true
}

// splitCursor decomposes the text before the cursor into the identifier
// prefix being typed, the trigger token immediately before it ("." / "->" /
// "::" or empty), and the qualifier identifier before the trigger.
func splitCursor(before string) (prefix, trigger, qualifier string) {
	i := len(before)
	for i > 0 && isIdentChar(before[i-1]) {
		i--
	}
	prefix = before[i:]
	rest := before[:i]

	switch {
	case strings.HasSuffix(rest, "->"):
		trigger = "->"
		rest = rest[:len(rest)-2]
	case strings.HasSuffix(rest, "::"):
		trigger = "::"
		rest = rest[:len(rest)-2]
	case strings.HasSuffix(rest, "."):
		trigger = "."
		rest = rest[:len(rest)-1]
	default:
		return prefix, "", ""
	}

	j := len(rest)
	for j > 0 && isIdentChar(rest[j-1]) {
		j--
	}
	return prefix, trigger, rest[j:]
}

func isIdentChar(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// memberCandidates resolves the qualifier to a variable, takes its declared
// type, and returns the members of that type's scope. Private members are
// visible only within the type's own file.
func memberCandidates(tu *TranslationUnit, qualifier string, at SourceLocation) []*Symbol {
	if qualifier == "" {
		return nil
	}
	objs := tu.Symbols.Lookup(qualifier, at)
	if len(objs) == 0 {
		return nil
	}
	typeName := baseTypeName(objs[0].Type)
	if typeName == "" {
		return nil
	}
	return membersOfType(tu, typeName, at.File)
}

// scopeCandidates returns the members of a named type or namespace scope,
// for qualified access.
func scopeCandidates(tu *TranslationUnit, qualifier, fromFile string) []*Symbol {
	if qualifier == "" {
		return nil
	}
	return membersOfScope(tu, qualifier, fromFile, "type", "namespace")
}

func membersOfType(tu *TranslationUnit, typeName, fromFile string) []*Symbol {
	return membersOfScope(tu, typeName, fromFile, "type")
}

// membersOfScope collects symbols declared directly in any scope whose kind
// matches and whose name is scopeName, same file first.
func membersOfScope(tu *TranslationUnit, scopeName, fromFile string, kinds ...string) []*Symbol {
	kindSet := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		kindSet[k] = true
	}

	files := tu.Symbols.Files()
	ordered := make([]string, 0, len(files))
	for _, f := range files {
		if f == fromFile {
			ordered = append(ordered, f)
		}
	}
	for _, f := range files {
		if f != fromFile {
			ordered = append(ordered, f)
		}
	}

	var out []*Symbol
	for _, f := range ordered {
		scopeIDs := make(map[int]bool)
		for _, s := range tu.Symbols.ScopesForFile(f) {
			if kindSet[s.Kind] && s.Name == scopeName {
				scopeIDs[s.ID] = true
			}
		}
		if len(scopeIDs) == 0 {
			continue
		}
		for _, sym := range tu.Symbols.SymbolsInFile(f) {
			if !scopeIDs[sym.ScopeID] {
				continue
			}
			if f != fromFile && sym.Visibility == VisibilityPrivate {
				continue
			}
			out = append(out, sym)
		}
	}
	return out
}

// baseTypeName strips pointer, reference, and elaboration noise from a
// declared type, leaving the bare type name members are looked up under.
func baseTypeName(typ string) string {
	typ = strings.TrimSpace(typ)
	typ = strings.TrimRight(typ, "*& ")
	for _, kw := range []string{"struct ", "class ", "union ", "enum ", "const "} {
		typ = strings.TrimPrefix(typ, kw)
	}
	return strings.TrimSpace(typ)
}
