package arbor

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/jward/arbor/internal/cache"
)

// fileJob carries one file through the three build phases.
type fileJob struct {
	path    string
	lang    string
	digest  string
	parser  Parser
	doc     *ASTDocument
	status  FileStatus
	err     error
	needRun bool
}

// buildParallel is the concurrent build path. It runs in three phases so all
// shared state is touched serially:
//
//	prepare (serial):  classify files, compute digests, probe the cache
//	parse   (parallel): run parser adapters on the misses
//	commit  (serial):  write cache entries, update hashes, fill the report
//
// Parser adapters construct a fresh tree-sitter parser per call, so the
// parallel phase shares nothing but the immutable compile context.
func (b *Builder) buildParallel(ctx context.Context, pkg Package, paths []string, tu *TranslationUnit) error {
	jobs := make([]*fileJob, len(paths))

	// Phase 1: prepare.
	for i, path := range paths {
		jobs[i] = b.prepare(pkg, path)
	}

	// Phase 2: parse misses in parallel. On cancellation, stop dispatching
	// but still wait for started workers; no goroutine may outlive Build.
	sem := make(chan struct{}, b.parallelism)
	var wg sync.WaitGroup
	for _, job := range jobs {
		if !job.needRun {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(j *fileJob) {
			defer wg.Done()
			defer func() { <-sem }()
			doc, err := j.parser.ParseFile(j.path, pkg.Context)
			if err != nil {
				j.status, j.err = StatusFailed, err
				return
			}
			doc.Digest = j.digest
			j.doc, j.status = doc, StatusParsed
		}(job)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}

	// Phase 3: commit in path order.
	for _, job := range jobs {
		if job.status == StatusParsed {
			if err := b.store(job.path, job.lang, job.digest, pkg, job.doc); err != nil {
				job.status, job.err, job.doc = StatusFailed, err, nil
			}
		}
		tu.Report.add(job.path, job.status, job.err)
		if job.doc != nil {
			tu.FileASTs[job.path] = job.doc
			tu.Deps[job.path] = job.doc.Includes
		}
	}
	return nil
}

// prepare classifies one file and probes the cache. Anything that resolves
// without a parse (skips, read failures, cache hits) is finalized here.
func (b *Builder) prepare(pkg Package, path string) *fileJob {
	job := &fileJob{path: path}

	lang, ok := LanguageForFile(path)
	if !ok {
		job.status, job.err = StatusSkipped, fmt.Errorf("unsupported file type")
		return job
	}
	job.lang = lang
	if b.languages != nil && !b.languages[lang] {
		job.status, job.err = StatusSkipped, fmt.Errorf("language %s excluded", lang)
		return job
	}
	parser, err := b.parserFor(lang)
	if err != nil {
		job.status, job.err = StatusSkipped, err
		return job
	}
	job.parser = parser

	content, err := os.ReadFile(path)
	if err != nil {
		job.status, job.err = StatusFailed, &ParseError{Path: path, Msg: "read file", Err: err}
		return job
	}
	job.digest = cache.Digest(content, pkg.Context.Fingerprint(path))

	if doc, err := b.fromCache(job.digest); err == nil {
		// Same as the serial path: a hash store write failure never
		// invalidates the decoded document, it only risks a reparse.
		if b.hasher.HasChanged(path, job.digest) {
			job.err = b.hasher.Update(path, job.digest)
		}
		job.doc, job.status = doc, StatusCached
		return job
	}

	job.needRun = true
	return job
}
