package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
)

const createContentsTableSQL = `CREATE TABLE IF NOT EXISTS eeprom_contents (
	id         TEXT PRIMARY KEY,
	contents   BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);`

const upsertContentsSQL = `INSERT INTO eeprom_contents (id, contents, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	contents = excluded.contents,
	updated_at = excluded.updated_at;`

// SQLiteStore is a Store that keeps the contents of all chips in one SQLite
// database, one row per chip.
type SQLiteStore struct {
	*sql.DB

	path       string
	saveStmt   *sql.Stmt
	loadStmt   *sql.Stmt
	listIDStmt *sql.Stmt
}

// OpenSQLiteStore opens, or creates, the database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("persistence: opening %s: %w", path, err)
	}

	s := &SQLiteStore{DB: db, path: path}

	err = s.init()
	if err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *SQLiteStore) init() error {
	_, err := s.Exec(createContentsTableSQL)
	if err != nil {
		return fmt.Errorf("persistence: creating table in %s: %w", s.path, err)
	}

	s.saveStmt, err = s.Prepare(upsertContentsSQL)
	if err != nil {
		return fmt.Errorf("persistence: preparing save: %w", err)
	}

	s.loadStmt, err = s.Prepare(
		`SELECT contents FROM eeprom_contents WHERE id = ?;`)
	if err != nil {
		return fmt.Errorf("persistence: preparing load: %w", err)
	}

	s.listIDStmt, err = s.Prepare(
		`SELECT id FROM eeprom_contents ORDER BY id;`)
	if err != nil {
		return fmt.Errorf("persistence: preparing list: %w", err)
	}

	return nil
}

// Path returns the file of the database.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Load returns the contents saved under the id.
func (s *SQLiteStore) Load(ctx context.Context, id string) ([]byte, error) {
	var data []byte

	err := s.loadStmt.QueryRowContext(ctx, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	if err != nil {
		return nil, fmt.Errorf("persistence: loading %q: %w", id, err)
	}

	return data, nil
}

// Save inserts or replaces the contents saved under the id.
func (s *SQLiteStore) Save(ctx context.Context, id string, contents []byte) error {
	if contents == nil {
		contents = []byte{}
	}

	_, err := s.saveStmt.ExecContext(ctx, id, contents, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("persistence: saving %q: %w", id, err)
	}

	return nil
}

// IDs lists the ids that have contents in the database.
func (s *SQLiteStore) IDs(ctx context.Context) ([]string, error) {
	rows, err := s.listIDStmt.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("persistence: listing ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("persistence: listing ids: %w", err)
		}

		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// Close releases the prepared statements and the database connection.
func (s *SQLiteStore) Close() error {
	for _, stmt := range []*sql.Stmt{s.saveStmt, s.loadStmt, s.listIDStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}

	return s.DB.Close()
}
