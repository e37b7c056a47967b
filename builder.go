package arbor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/jward/arbor/internal/cache"
)

// Builder turns a package's file list into a translation unit, reparsing
// only what changed. The cache is consulted by content digest, so a file
// reverted to previous bytes is a hit even if the hash store never saw the
// intermediate states.
type Builder struct {
	cache       *cache.Cache
	hasher      *cache.Hasher
	overrides   map[string]Parser
	languages   map[string]bool
	parallelism int
	compress    bool
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithParser installs a parser for its language on this builder only,
// shadowing the global registry. Tests use this to count parser invocations.
func WithParser(p Parser) BuilderOption {
	return func(b *Builder) {
		b.overrides[p.Language()] = p
	}
}

// WithParallelism sets the number of concurrent parse workers. Values below
// 2 select the serial path.
func WithParallelism(n int) BuilderOption {
	return func(b *Builder) { b.parallelism = n }
}

// WithCompression toggles gzip compression of cache entries.
func WithCompression(on bool) BuilderOption {
	return func(b *Builder) { b.compress = on }
}

// WithLanguages restricts the build to the named languages; files in other
// languages are skipped.
func WithLanguages(langs ...string) BuilderOption {
	return func(b *Builder) {
		b.languages = make(map[string]bool, len(langs))
		for _, l := range langs {
			b.languages[l] = true
		}
	}
}

// NewBuilder opens (or creates) the cache under cacheRoot.
func NewBuilder(cacheRoot string, opts ...BuilderOption) (*Builder, error) {
	c, err := cache.New(cacheRoot)
	if err != nil {
		return nil, fmt.Errorf("open ast cache: %w", err)
	}
	h, err := cache.NewHasher(cacheRoot)
	if err != nil {
		return nil, fmt.Errorf("open hash store: %w", err)
	}
	b := &Builder{
		cache:       c,
		hasher:      h,
		overrides:   make(map[string]Parser),
		parallelism: 1,
		compress:    true,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Cache returns the builder's AST cache.
func (b *Builder) Cache() *cache.Cache { return b.cache }

// Hasher returns the builder's persistent hash store.
func (b *Builder) Hasher() *cache.Hasher { return b.hasher }

func (b *Builder) parserFor(lang string) (Parser, error) {
	if p, ok := b.overrides[lang]; ok {
		return p, nil
	}
	return ParserFor(lang)
}

// Build parses or loads every file of the package into a fresh translation
// unit. Individual file failures are recorded in the report and never abort
// the build; only a cancelled context or an unusable cache returns an error.
func (b *Builder) Build(ctx context.Context, pkg Package) (*TranslationUnit, error) {
	paths := append([]string(nil), pkg.Files...)
	sort.Strings(paths)

	tu := &TranslationUnit{
		Package:  pkg.Name,
		Context:  pkg.Context,
		FileASTs: make(map[string]*ASTDocument, len(paths)),
		Deps:     make(map[string][]string),
	}

	if b.parallelism > 1 {
		if err := b.buildParallel(ctx, pkg, paths, tu); err != nil {
			return nil, err
		}
		return tu, nil
	}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, status, err := b.buildFile(pkg, path)
		tu.Report.add(path, status, err)
		if doc != nil {
			tu.FileASTs[path] = doc
			tu.Deps[path] = doc.Includes
		}
	}
	return tu, nil
}

// BuildWithSymbols builds the unit and then runs two-pass resolution, so the
// returned unit's references carry resolved targets and the unit has a
// populated symbol table.
func (b *Builder) BuildWithSymbols(ctx context.Context, pkg Package) (*TranslationUnit, error) {
	tu, err := b.Build(ctx, pkg)
	if err != nil {
		return nil, err
	}
	Resolve(tu)
	return tu, nil
}

// buildFile produces the document for one file: cache hit, fresh parse, or a
// recorded failure. The hash store is updated only after the cache holds the
// entry, never before.
func (b *Builder) buildFile(pkg Package, path string) (*ASTDocument, FileStatus, error) {
	lang, ok := LanguageForFile(path)
	if !ok {
		return nil, StatusSkipped, fmt.Errorf("unsupported file type")
	}
	if b.languages != nil && !b.languages[lang] {
		return nil, StatusSkipped, fmt.Errorf("language %s excluded", lang)
	}
	parser, err := b.parserFor(lang)
	if err != nil {
		// No adapter for this language; the rest of the build proceeds.
		return nil, StatusSkipped, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, StatusFailed, &ParseError{Path: path, Msg: "read file", Err: err}
	}
	digest := cache.Digest(content, pkg.Context.Fingerprint(path))

	if doc, err := b.fromCache(digest); err == nil {
		// A hash store that cannot be written costs at most one extra
		// reparse next run; the decoded document is still good, so the
		// error rides along in the report without failing the file.
		var updErr error
		if b.hasher.HasChanged(path, digest) {
			updErr = b.hasher.Update(path, digest)
		}
		return doc, StatusCached, updErr
	}

	doc, err := parser.ParseFile(path, pkg.Context)
	if err != nil {
		return nil, StatusFailed, err
	}
	doc.Digest = digest

	if err := b.store(path, lang, digest, pkg, doc); err != nil {
		return nil, StatusFailed, err
	}
	return doc, StatusParsed, nil
}

// errCacheMiss distinguishes a clean miss from corruption in fromCache.
var errCacheMiss = errors.New("cache miss")

// fromCache loads and decodes the entry for digest. A present but unreadable
// or undecodable entry comes back as a CacheCorruptionError; callers treat
// any error as a miss, reparse, and the subsequent Put restores a good entry.
func (b *Builder) fromCache(digest string) (*ASTDocument, error) {
	data, ok, err := b.cache.Get(digest)
	if err != nil {
		return nil, &CacheCorruptionError{Digest: digest, Err: err}
	}
	if !ok {
		return nil, errCacheMiss
	}
	doc, err := Decode(data)
	if err != nil {
		return nil, &CacheCorruptionError{Digest: digest, Err: err}
	}
	return doc, nil
}

func (b *Builder) store(path, lang, digest string, pkg Package, doc *ASTDocument) error {
	data, err := Encode(doc, b.compress)
	if err != nil {
		return err
	}
	meta := cache.Meta{
		Path:        path,
		Language:    lang,
		Fingerprint: pkg.Context.Fingerprint(path),
	}
	if err := b.cache.Put(digest, data, meta); err != nil {
		return err
	}
	return b.hasher.Update(path, digest)
}
