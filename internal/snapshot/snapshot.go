// Package snapshot persists the variables of a scope in a SQLite database.
//
// Every top-level variable is stored as its canonical compact assignment
// text, which Load feeds back through the text reader. A flattened copy of
// the directory walk is kept alongside so paths can be queried without
// rebuilding the tree.
package snapshot

import (
	"database/sql"
	"fmt"
	"sync"
	"unicode/utf8"

	_ "modernc.org/sqlite"

	"github.com/agentic-research/vartree/internal/assign"
	"github.com/agentic-research/vartree/internal/nv"
)

// Kind classifies a flattened path.
type Kind int

const (
	KindScalar Kind = iota
	KindCompound
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindCompound:
		return "compound"
	case KindArray:
		return "array"
	}
	return "scalar"
}

// Path is one row of the flattened walk.
type Path struct {
	Name  string
	Kind  Kind
	Value string
}

// DB is a snapshot database.
type DB struct {
	db *sql.DB
	mu sync.Mutex
}

const schema = `
CREATE TABLE IF NOT EXISTS vars (
	name TEXT PRIMARY KEY,
	seq INTEGER NOT NULL,
	text TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS paths (
	path TEXT PRIMARY KEY,
	seq INTEGER NOT NULL,
	kind INTEGER NOT NULL,
	value TEXT
);
CREATE INDEX IF NOT EXISTS idx_paths_seq ON paths(seq);
`

// Open opens or creates the snapshot database at path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA synchronous = OFF"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode = MEMORY"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &DB{db: db}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Save replaces the snapshot with the variables visible in sc and returns
// how many were written. Unset scalars are not saved.
func (d *DB) Save(s *nv.Store, sc *nv.Scope) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	tx, err := d.db.Begin()
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }() // no-op after commit

	for _, table := range []string{"vars", "paths"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return 0, fmt.Errorf("clear %s: %w", table, err)
		}
	}

	stmtVar, err := tx.Prepare(`INSERT INTO vars (name, seq, text) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer func() { _ = stmtVar.Close() }()
	stmtPath, err := tx.Prepare(`INSERT OR REPLACE INTO paths (path, seq, kind, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer func() { _ = stmtPath.Close() }()

	opts := nv.RenderOptions{Layout: nv.LayoutCompact}
	count := 0
	for _, name := range sc.Names() {
		e, ok := s.Lookup(sc, name)
		if !ok || e.IsNull() {
			continue
		}
		if _, err := stmtVar.Exec(name, count, s.RenderString(e, opts)); err != nil {
			return 0, fmt.Errorf("insert %s: %w", name, err)
		}
		count++
	}

	seq := 0
	var walkErr error
	err = s.WalkDir(sc, "", func(name string) bool {
		e, ok := s.Lookup(sc, name)
		if !ok {
			return true
		}
		kind, value := KindScalar, sql.NullString{}
		switch {
		case e.IsArray():
			kind = KindArray
		case e.IsCompound():
			kind = KindCompound
		case !e.IsNull():
			value = sql.NullString{String: e.Value(), Valid: true}
		}
		if _, walkErr = stmtPath.Exec(name, seq, int(kind), value); walkErr != nil {
			walkErr = fmt.Errorf("insert path %s: %w", name, walkErr)
			return false
		}
		seq++
		return true
	})
	if err != nil {
		return 0, err
	}
	if walkErr != nil {
		return 0, walkErr
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}

// Load evaluates every saved variable into sc in the order it was saved
// and returns how many were read.
func (d *DB) Load(s *nv.Store, sc *nv.Scope) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rows, err := d.db.Query("SELECT name, text FROM vars ORDER BY seq")
	if err != nil {
		return 0, fmt.Errorf("query vars: %w", err)
	}
	defer func() { _ = rows.Close() }()

	count := 0
	for rows.Next() {
		var name, text string
		if err := rows.Scan(&name, &text); err != nil {
			return count, fmt.Errorf("scan row: %w", err)
		}
		if err := assign.Eval(s, sc, text); err != nil {
			return count, fmt.Errorf("load %s: %w", name, err)
		}
		count++
	}
	return count, rows.Err()
}

// Paths returns the saved walk entries at or below prefix in walk order.
// An empty prefix returns all of them.
func (d *DB) Paths(prefix string) ([]Path, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := utf8.RuneCountInString(prefix) + 1
	rows, err := d.db.Query(`
		SELECT path, kind, value FROM paths
		WHERE ? = '' OR path = ? OR substr(path, 1, ?) IN (?, ?)
		ORDER BY seq`,
		prefix, prefix, n, prefix+".", prefix+"[")
	if err != nil {
		return nil, fmt.Errorf("query paths: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Path
	for rows.Next() {
		var (
			p     Path
			kind  int
			value sql.NullString
		)
		if err := rows.Scan(&p.Name, &kind, &value); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		p.Kind = Kind(kind)
		p.Value = value.String
		out = append(out, p)
	}
	return out, rows.Err()
}

// Vars returns the saved variable names in save order.
func (d *DB) Vars() ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rows, err := d.db.Query("SELECT name FROM vars ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("query vars: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}
