package arbor

import (
	"fmt"
	"strings"
)

// ParserUnavailableError indicates that no parser adapter is registered (or
// usable) for a language. It disables that language only: the builder
// degrades the affected files to "no AST" and the rest of the package builds
// normally.
type ParserUnavailableError struct {
	Language string
}

func (e *ParserUnavailableError) Error() string {
	return fmt.Sprintf("no parser available for language %q", e.Language)
}

// ParseError indicates malformed source in a single file. The builder
// records it in the report and continues with the remaining files.
type ParseError struct {
	Path string
	Msg  string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %s: %v", e.Path, e.Msg, e.Err)
	}
	return fmt.Sprintf("parse %s: %s", e.Path, e.Msg)
}

func (e *ParseError) Unwrap() error { return e.Err }

// CacheCorruptionError indicates a cache entry that failed to deserialize.
// It is always treated as a miss: the file is reparsed and the entry
// overwritten. Never fatal.
type CacheCorruptionError struct {
	Digest string
	Err    error
}

func (e *CacheCorruptionError) Error() string {
	return fmt.Sprintf("cache entry %s corrupted: %v", e.Digest, e.Err)
}

func (e *CacheCorruptionError) Unwrap() error { return e.Err }

// CircularDependencyError is the transformer's hard stop: a genuine cycle
// among top-level declarations means nothing is written.
type CircularDependencyError struct {
	Cycle []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency among declarations: %s", strings.Join(e.Cycle, " -> "))
}
