// Package index persists resolved symbol information in SQLite so lookups
// survive process restarts without a rebuild.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Definition is one row of the definitions table. The symbol id is the
// stable cross-run identity; everything else is derived from it at insert
// time and stored denormalized for query speed.
type Definition struct {
	SymbolID   string
	Name       string
	Kind       string
	Type       string
	File       string
	Line       int
	Column     int
	Scope      string
	Visibility string
}

// Reference is one row of the references_ table. TargetSymbolID is empty for
// unresolved references; they are persisted too so "all uses of name X"
// includes the unresolved ones.
type Reference struct {
	Name           string
	Context        string
	File           string
	Line           int
	Column         int
	TargetSymbolID string
}

// Index is the SQLite access layer for the persistent symbol index.
type Index struct {
	db *sql.DB
}

// Open opens (or creates) the index database at dbPath with WAL mode enabled
// and the schema migrated.
func Open(dbPath string) (*Index, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open index database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping index database: %w", err)
	}
	idx := &Index{db: db}
	if err := idx.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

// Close closes the underlying database connection.
func (x *Index) Close() error {
	return x.db.Close()
}

func (x *Index) migrate() error {
	if _, err := x.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("migrate index: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS definitions (
  id              INTEGER PRIMARY KEY,
  symbol_id       TEXT NOT NULL UNIQUE,
  name            TEXT NOT NULL,
  kind            TEXT NOT NULL,
  type            TEXT,
  file            TEXT NOT NULL,
  line            INTEGER NOT NULL,
  col             INTEGER NOT NULL,
  scope           TEXT,
  visibility      TEXT
);

CREATE TABLE IF NOT EXISTS references_ (
  id              INTEGER PRIMARY KEY,
  name            TEXT NOT NULL,
  context         TEXT,
  file            TEXT NOT NULL,
  line            INTEGER NOT NULL,
  col             INTEGER NOT NULL,
  target_symbol_id TEXT,
  UNIQUE(name, file, line, col)
);

CREATE INDEX IF NOT EXISTS idx_definitions_name ON definitions(name);
CREATE INDEX IF NOT EXISTS idx_definitions_file ON definitions(file);
CREATE INDEX IF NOT EXISTS idx_references_name ON references_(name);
CREATE INDEX IF NOT EXISTS idx_references_target ON references_(target_symbol_id);
`

// Clear removes every row. Used by Rebuild before repopulating, so a file
// deleted from the package leaves no stale rows behind.
func (x *Index) Clear() error {
	if _, err := x.db.Exec(`DELETE FROM references_; DELETE FROM definitions;`); err != nil {
		return fmt.Errorf("clear index: %w", err)
	}
	return nil
}

// InsertDefinitions upserts a batch of definitions in one transaction.
// Re-indexing an unchanged file converges: identical rows replace themselves.
func (x *Index) InsertDefinitions(defs []Definition) error {
	tx, err := x.db.Begin()
	if err != nil {
		return fmt.Errorf("begin insert definitions: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO definitions
		  (symbol_id, name, kind, type, file, line, col, scope, visibility)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert definitions: %w", err)
	}
	defer stmt.Close()

	for _, d := range defs {
		if _, err := stmt.Exec(d.SymbolID, d.Name, d.Kind, d.Type, d.File, d.Line, d.Column, d.Scope, d.Visibility); err != nil {
			return fmt.Errorf("insert definition %s: %w", d.SymbolID, err)
		}
	}
	return tx.Commit()
}

// InsertReferences upserts a batch of references in one transaction.
func (x *Index) InsertReferences(refs []Reference) error {
	tx, err := x.db.Begin()
	if err != nil {
		return fmt.Errorf("begin insert references: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO references_
		  (name, context, file, line, col, target_symbol_id)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert references: %w", err)
	}
	defer stmt.Close()

	for _, r := range refs {
		if _, err := stmt.Exec(r.Name, r.Context, r.File, r.Line, r.Column, r.TargetSymbolID); err != nil {
			return fmt.Errorf("insert reference %s at %s:%d: %w", r.Name, r.File, r.Line, err)
		}
	}
	return tx.Commit()
}

// DefinitionsByName returns all definitions with the given name, ordered by
// file then position.
func (x *Index) DefinitionsByName(name string) ([]Definition, error) {
	rows, err := x.db.Query(`
		SELECT symbol_id, name, kind, type, file, line, col, scope, visibility
		FROM definitions WHERE name = ?
		ORDER BY file, line, col`, name)
	if err != nil {
		return nil, fmt.Errorf("query definitions: %w", err)
	}
	defer rows.Close()
	return scanDefinitions(rows)
}

// DefinitionsInFile returns all definitions declared in a file.
func (x *Index) DefinitionsInFile(file string) ([]Definition, error) {
	rows, err := x.db.Query(`
		SELECT symbol_id, name, kind, type, file, line, col, scope, visibility
		FROM definitions WHERE file = ?
		ORDER BY line, col`, file)
	if err != nil {
		return nil, fmt.Errorf("query definitions: %w", err)
	}
	defer rows.Close()
	return scanDefinitions(rows)
}

func scanDefinitions(rows *sql.Rows) ([]Definition, error) {
	var out []Definition
	for rows.Next() {
		var d Definition
		var typ, scope, vis sql.NullString
		if err := rows.Scan(&d.SymbolID, &d.Name, &d.Kind, &typ, &d.File, &d.Line, &d.Column, &scope, &vis); err != nil {
			return nil, fmt.Errorf("scan definition: %w", err)
		}
		d.Type, d.Scope, d.Visibility = typ.String, scope.String, vis.String
		out = append(out, d)
	}
	return out, rows.Err()
}

// ReferencesByName returns all references with the given name, resolved or
// not, ordered by file then position.
func (x *Index) ReferencesByName(name string) ([]Reference, error) {
	rows, err := x.db.Query(`
		SELECT name, context, file, line, col, target_symbol_id
		FROM references_ WHERE name = ?
		ORDER BY file, line, col`, name)
	if err != nil {
		return nil, fmt.Errorf("query references: %w", err)
	}
	defer rows.Close()
	return scanReferences(rows)
}

// ReferencesTo returns all references resolved to the given symbol id,
// ordered by file then position.
func (x *Index) ReferencesTo(symbolID string) ([]Reference, error) {
	rows, err := x.db.Query(`
		SELECT name, context, file, line, col, target_symbol_id
		FROM references_ WHERE target_symbol_id = ?
		ORDER BY file, line, col`, symbolID)
	if err != nil {
		return nil, fmt.Errorf("query references: %w", err)
	}
	defer rows.Close()
	return scanReferences(rows)
}

func scanReferences(rows *sql.Rows) ([]Reference, error) {
	var out []Reference
	for rows.Next() {
		var r Reference
		var ctx, target sql.NullString
		if err := rows.Scan(&r.Name, &ctx, &r.File, &r.Line, &r.Column, &target); err != nil {
			return nil, fmt.Errorf("scan reference: %w", err)
		}
		r.Context, r.TargetSymbolID = ctx.String, target.String
		out = append(out, r)
	}
	return out, rows.Err()
}
