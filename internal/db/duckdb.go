package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/jcdickinson/rsidebar/internal/sidebar"
)

type DB struct {
	conn *sql.DB
}

func New(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	conn, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) initSchema() error {
	queries := []string{
		`CREATE SEQUENCE IF NOT EXISTS seq_crate_id START 1;`,
		`CREATE SEQUENCE IF NOT EXISTS seq_module_id START 1;`,
		`CREATE SEQUENCE IF NOT EXISTS seq_entry_id START 1;`,

		`CREATE TABLE IF NOT EXISTS crates (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			version TEXT NOT NULL,
			fetched_at TIMESTAMP,
			processed_at TIMESTAMP,
			last_used_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(name, version)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_crates_name ON crates (name)`,

		// fingerprint is the hex xxhash of the rendered sidebar-items.js.
		`CREATE TABLE IF NOT EXISTS modules (
			id INTEGER PRIMARY KEY,
			crate_id INTEGER NOT NULL REFERENCES crates(id),
			path TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			entry_count INTEGER NOT NULL,
			UNIQUE(crate_id, path)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_modules_crate ON modules (crate_id)`,

		`CREATE TABLE IF NOT EXISTS entries (
			id INTEGER PRIMARY KEY,
			module_id INTEGER NOT NULL,
			kind TEXT NOT NULL,
			position INTEGER NOT NULL,
			name TEXT NOT NULL,
			summary TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_module ON entries (module_id)`,
	}

	for _, q := range queries {
		if _, err := db.conn.Exec(q); err != nil {
			return fmt.Errorf("executing %q: %w", q, err)
		}
	}
	return nil
}

// --- Crate operations ---

type Crate struct {
	ID          int
	Name        string
	Version     string
	FetchedAt   *time.Time
	ProcessedAt *time.Time
	LastUsedAt  time.Time
}

const crateColumns = `id, name, version, fetched_at, processed_at, last_used_at`

func scanCrate(row interface{ Scan(...any) error }) (*Crate, error) {
	var c Crate
	if err := row.Scan(&c.ID, &c.Name, &c.Version, &c.FetchedAt, &c.ProcessedAt, &c.LastUsedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (db *DB) UpsertCrate(name, version string) (*Crate, error) {
	c, err := db.GetCrate(name, version)
	if err != nil {
		return nil, fmt.Errorf("checking crate: %w", err)
	}
	if c != nil {
		return c, nil
	}

	// RETURNING keeps the id lookup on the inserting connection.
	var id int
	err = db.conn.QueryRow(
		`INSERT INTO crates (id, name, version) VALUES (nextval('seq_crate_id'), ?, ?) RETURNING id`,
		name, version,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("inserting crate: %w", err)
	}

	now := time.Now()
	return &Crate{ID: id, Name: name, Version: version, LastUsedAt: now}, nil
}

func (db *DB) MarkCrateFetched(crateID int) error {
	_, err := db.conn.Exec(`UPDATE crates SET fetched_at = CURRENT_TIMESTAMP WHERE id = ?`, crateID)
	return err
}

func (db *DB) MarkCrateProcessed(crateID int) error {
	_, err := db.conn.Exec(`UPDATE crates SET processed_at = CURRENT_TIMESTAMP WHERE id = ?`, crateID)
	return err
}

func (db *DB) TouchCrate(crateID int) error {
	_, err := db.conn.Exec(`UPDATE crates SET last_used_at = CURRENT_TIMESTAMP WHERE id = ?`, crateID)
	return err
}

// GetCrate returns nil, nil when the crate is unknown.
func (db *DB) GetCrate(name, version string) (*Crate, error) {
	c, err := scanCrate(db.conn.QueryRow(
		`SELECT `+crateColumns+` FROM crates WHERE name = ? AND version = ?`,
		name, version,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// GetLatestCrate returns the most recently processed crate with the given name.
func (db *DB) GetLatestCrate(name string) (*Crate, error) {
	c, err := scanCrate(db.conn.QueryRow(
		`SELECT `+crateColumns+`
		 FROM crates WHERE name = ? AND processed_at IS NOT NULL
		 ORDER BY processed_at DESC LIMIT 1`, name,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

func (db *DB) ListCrates() ([]Crate, error) {
	rows, err := db.conn.Query(`SELECT ` + crateColumns + ` FROM crates ORDER BY name, version`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var crates []Crate
	for rows.Next() {
		c, err := scanCrate(rows)
		if err != nil {
			return nil, err
		}
		crates = append(crates, *c)
	}
	return crates, rows.Err()
}

// DeleteCrate removes a crate with all of its modules and entries.
func (db *DB) DeleteCrate(crateID int) error {
	queries := []string{
		`DELETE FROM entries WHERE module_id IN (SELECT id FROM modules WHERE crate_id = ?)`,
		`DELETE FROM modules WHERE crate_id = ?`,
		`DELETE FROM crates WHERE id = ?`,
	}
	for _, q := range queries {
		if _, err := db.conn.Exec(q, crateID); err != nil {
			return fmt.Errorf("deleting crate %d: %w", crateID, err)
		}
	}
	return nil
}

// --- Module operations ---

type Module struct {
	ID          int
	CrateID     int
	Path        string
	ContentHash string
	Fingerprint uint64
	EntryCount  int
}

const moduleColumns = `id, crate_id, path, content_hash, fingerprint, entry_count`

func scanModule(row interface{ Scan(...any) error }) (*Module, error) {
	var m Module
	var fp string
	if err := row.Scan(&m.ID, &m.CrateID, &m.Path, &m.ContentHash, &fp, &m.EntryCount); err != nil {
		return nil, err
	}
	v, err := strconv.ParseUint(fp, 16, 64)
	if err != nil {
		return nil, fmt.Errorf("module %s: bad fingerprint %q: %w", m.Path, fp, err)
	}
	m.Fingerprint = v
	return &m, nil
}

// ReplaceModule stores the index of one module. When the stored fingerprint
// matches idx the entries are left alone and changed is false.
func (db *DB) ReplaceModule(crateID int, path, contentHash string, idx sidebar.Index) (changed bool, err error) {
	fp := strconv.FormatUint(idx.Fingerprint(), 16)

	tx, err := db.conn.Begin()
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var moduleID int
	var oldFP string
	err = tx.QueryRow(`SELECT id, fingerprint FROM modules WHERE crate_id = ? AND path = ?`, crateID, path).Scan(&moduleID, &oldFP)
	switch {
	case err == sql.ErrNoRows:
		if err = tx.QueryRow(
			`INSERT INTO modules (id, crate_id, path, content_hash, fingerprint, entry_count)
			 VALUES (nextval('seq_module_id'), ?, ?, ?, ?, ?) RETURNING id`,
			crateID, path, contentHash, fp, idx.Len(),
		).Scan(&moduleID); err != nil {
			return false, fmt.Errorf("inserting module %s: %w", path, err)
		}
	case err != nil:
		return false, fmt.Errorf("looking up module %s: %w", path, err)
	case oldFP == fp:
		return false, tx.Commit()
	default:
		if _, err = tx.Exec(
			`UPDATE modules SET content_hash = ?, fingerprint = ?, entry_count = ? WHERE id = ?`,
			contentHash, fp, idx.Len(), moduleID,
		); err != nil {
			return false, fmt.Errorf("updating module %s: %w", path, err)
		}
		if _, err = tx.Exec(`DELETE FROM entries WHERE module_id = ?`, moduleID); err != nil {
			return false, fmt.Errorf("clearing entries of %s: %w", path, err)
		}
	}

	for _, kind := range idx.Kinds() {
		for pos, e := range idx[kind] {
			if _, err = tx.Exec(
				`INSERT INTO entries (id, module_id, kind, position, name, summary)
				 VALUES (nextval('seq_entry_id'), ?, ?, ?, ?, ?)`,
				moduleID, string(kind), pos, e.Name, e.Summary,
			); err != nil {
				return false, fmt.Errorf("inserting entry %s::%s: %w", path, e.Name, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("committing module %s: %w", path, err)
	}
	return true, nil
}

// GetModule returns nil, nil when the module is unknown.
func (db *DB) GetModule(crateID int, path string) (*Module, error) {
	m, err := scanModule(db.conn.QueryRow(
		`SELECT `+moduleColumns+` FROM modules WHERE crate_id = ? AND path = ?`, crateID, path,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return m, err
}

// ListModules returns a crate's modules ordered by path.
func (db *DB) ListModules(crateID int) ([]Module, error) {
	rows, err := db.conn.Query(`SELECT `+moduleColumns+` FROM modules WHERE crate_id = ? ORDER BY path`, crateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var modules []Module
	for rows.Next() {
		m, err := scanModule(rows)
		if err != nil {
			return nil, err
		}
		modules = append(modules, *m)
	}
	return modules, rows.Err()
}

func (db *DB) CountModules(crateID int) (int, error) {
	var count int
	err := db.conn.QueryRow(`SELECT COUNT(*) FROM modules WHERE crate_id = ?`, crateID).Scan(&count)
	return count, err
}

// LoadIndex rebuilds a module's index from its stored entries.
func (db *DB) LoadIndex(moduleID int) (sidebar.Index, error) {
	rows, err := db.conn.Query(
		`SELECT kind, name, summary FROM entries WHERE module_id = ? ORDER BY kind, position`, moduleID,
	)
	if err != nil {
		return nil, fmt.Errorf("loading entries: %w", err)
	}
	defer rows.Close()

	idx := make(sidebar.Index)
	for rows.Next() {
		var kind, name, summary string
		if err := rows.Scan(&kind, &name, &summary); err != nil {
			return nil, err
		}
		k := sidebar.Kind(kind)
		idx[k] = append(idx[k], sidebar.Entry{Name: name, Summary: summary})
	}
	return idx, rows.Err()
}

// --- Search ---

type EntryHit struct {
	Crate   string
	Version string
	Module  string
	Kind    sidebar.Kind
	Name    string
	Summary string
}

// SearchEntries matches query case-insensitively against entry names and
// summaries. Exact name matches rank first, then name prefixes, then name
// substrings, then summary-only matches.
func (db *DB) SearchEntries(query string, crateNames []string, kinds []sidebar.Kind, limit int) ([]EntryHit, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + escapeLike(query) + "%"
	prefix := escapeLike(query) + "%"

	where := []string{`(e.name ILIKE ? ESCAPE '\' OR e.summary ILIKE ? ESCAPE '\')`}
	params := []any{pattern, pattern}
	if len(crateNames) > 0 {
		placeholders, p := inList(crateNames)
		where = append(where, fmt.Sprintf(`c.name IN (%s)`, placeholders))
		params = append(params, p...)
	}
	if len(kinds) > 0 {
		names := make([]string, len(kinds))
		for i, k := range kinds {
			names[i] = string(k)
		}
		placeholders, p := inList(names)
		where = append(where, fmt.Sprintf(`e.kind IN (%s)`, placeholders))
		params = append(params, p...)
	}

	q := fmt.Sprintf(`
		SELECT c.name, c.version, m.path, e.kind, e.name, e.summary
		FROM entries e
		JOIN modules m ON m.id = e.module_id
		JOIN crates c ON c.id = m.crate_id
		WHERE %s
		ORDER BY
			CASE
				WHEN lower(e.name) = lower(?) THEN 0
				WHEN e.name ILIKE ? ESCAPE '\' THEN 1
				WHEN e.name ILIKE ? ESCAPE '\' THEN 2
				ELSE 3
			END,
			length(e.name), c.name, m.path, e.kind, e.position
		LIMIT ?`, strings.Join(where, " AND "))
	params = append(params, query, prefix, pattern, limit)

	rows, err := db.conn.Query(q, params...)
	if err != nil {
		return nil, fmt.Errorf("searching entries: %w", err)
	}
	defer rows.Close()

	var hits []EntryHit
	for rows.Next() {
		var h EntryHit
		var kind string
		if err := rows.Scan(&h.Crate, &h.Version, &h.Module, &kind, &h.Name, &h.Summary); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		h.Kind = sidebar.Kind(kind)
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func inList(values []string) (string, []any) {
	placeholders := make([]string, len(values))
	params := make([]any, len(values))
	for i, v := range values {
		placeholders[i] = "?"
		params[i] = v
	}
	return strings.Join(placeholders, ","), params
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
