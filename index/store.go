package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/levmv/photoarc/hasher"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by Get and Delete for unknown identifiers.
var ErrNotFound = errors.New("record not found")

const schema = `
CREATE TABLE IF NOT EXISTS records (
	id        TEXT PRIMARY KEY,
	filename  TEXT NOT NULL,
	extension TEXT NOT NULL,
	path      TEXT NOT NULL,
	hash      TEXT,
	phash0    INTEGER,
	phash1    INTEGER,
	phash2    INTEGER,
	phash3    INTEGER
);`

// Store is the handle to the persistent index. Exactly one process may hold
// a given index open; the store is not safe for concurrent writers.
type Store struct {
	db   *sql.DB
	path string
	log  *slog.Logger
}

// DefaultPath returns the user-scoped location of the index.
func DefaultPath() (string, error) {
	if p := os.Getenv("PHOTOARC_INDEX"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".photoarc", "index.db"), nil
}

// Open opens or creates the index at path.
func Open(path string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", path, err)
	}
	// One connection keeps the exclusive lock and pragmas on a single handle.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		`PRAGMA locking_mode = EXCLUSIVE;`,
		`PRAGMA journal_mode = WAL;`,
		schema,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("open index %s: %w", path, err)
		}
	}
	return &Store{db: db, path: path, log: log}, nil
}

// Path returns the file backing the store.
func (s *Store) Path() string { return s.path }

// Close flushes and releases the index.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.Flush()
	if cerr := s.db.Close(); err == nil {
		err = cerr
	}
	s.db = nil
	return err
}

// Flush checkpoints the write-ahead log into the main database file.
func (s *Store) Flush() error {
	if _, err := s.db.Exec(`PRAGMA wal_checkpoint(TRUNCATE);`); err != nil {
		return fmt.Errorf("flush index: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Put inserts or replaces rec.
func (s *Store) Put(ctx context.Context, rec Record) error {
	return put(ctx, s.db, rec)
}

func put(ctx context.Context, db execer, rec Record) error {
	if rec.ID == "" {
		return errors.New("put record: empty id")
	}
	var hash sql.NullString
	if rec.HasHash() {
		hash = sql.NullString{String: rec.Hash, Valid: true}
	}
	var ph [4]sql.NullInt64
	if rec.PHash != nil {
		for i, v := range rec.PHash {
			// SQLite integers are signed; the bit pattern round-trips.
			ph[i] = sql.NullInt64{Int64: int64(v), Valid: true}
		}
	}
	_, err := db.ExecContext(ctx,
		`INSERT OR REPLACE INTO records(id, filename, extension, path, hash, phash0, phash1, phash2, phash3)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Filename, rec.Ext, rec.Path, hash, ph[0], ph[1], ph[2], ph[3])
	if err != nil {
		return fmt.Errorf("put record %s: %w", rec.ID, err)
	}
	return nil
}

const selectColumns = `SELECT id, filename, extension, path, hash, phash0, phash1, phash2, phash3 FROM records`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var rec Record
	var hash sql.NullString
	var ph [4]sql.NullInt64
	if err := row.Scan(&rec.ID, &rec.Filename, &rec.Ext, &rec.Path, &hash, &ph[0], &ph[1], &ph[2], &ph[3]); err != nil {
		return Record{}, err
	}
	rec.Hash = hash.String
	if ph[0].Valid && ph[1].Valid && ph[2].Valid && ph[3].Valid {
		var set hasher.PerceptualSet
		for i := range ph {
			set[i] = uint64(ph[i].Int64)
		}
		rec.PHash = &set
	}
	return rec, nil
}

// Get returns the record stored under id.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("get %s: %w", id, err)
	}
	return rec, nil
}

// Delete removes the record stored under id.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}
	return nil
}

// Len returns the number of records.
func (s *Store) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// Iterate calls fn for every record in a stable order (by identifier).
// Returning a non-nil error from fn stops the iteration and is returned.
// fn must not mutate the store; use Records to snapshot first.
func (s *Store) Iterate(ctx context.Context, fn func(Record) error) error {
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY id`)
	if err != nil {
		return fmt.Errorf("iterate records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return fmt.Errorf("iterate records: %w", err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Records snapshots every record in iteration order.
func (s *Store) Records(ctx context.Context) ([]Record, error) {
	var out []Record
	err := s.Iterate(ctx, func(r Record) error {
		out = append(out, r)
		return nil
	})
	return out, err
}
