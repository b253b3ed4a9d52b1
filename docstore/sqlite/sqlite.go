/*
Package sqlite provides a SQLite-backed docstore.Store.

PURPOSE:
  Single-file persistence for the loyalty engine. Documents live in one
  table as JSON text; equality filters are evaluated with json_extract.

APPEND-ONLY ENFORCEMENT:
  There are no UPDATE or DELETE statements in this package. The documents
  table only ever grows; corrections happen via compensating ledger
  entries upstream.

ORDERING:
  Query orders by rowid, so documents come back in insertion order. The
  ledger depends on this for its per-client ordering guarantee.

WAL MODE:
  The database is opened with WAL so reads do not block the single writer.

USAGE:
  store, err := sqlite.New("./data/loyalty.db")   // or ":memory:"
  defer store.Close()
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/nadsa/loyalty-engine/docstore"
)

// Store implements docstore.Store on SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		seq        INTEGER PRIMARY KEY AUTOINCREMENT,
		collection TEXT NOT NULL,
		id         TEXT NOT NULL,
		body       TEXT NOT NULL,
		UNIQUE (collection, id)
	);
	CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Insert(ctx context.Context, collection string, doc any) (string, error) {
	id, body, err := docstore.EncodeWithID(doc, uuid.NewString)
	if err != nil {
		return "", docstore.Wrap("insert", collection, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, body) VALUES (?, ?, ?)`,
		collection, id, string(body))
	if err != nil {
		return "", docstore.Wrap("insert", collection, err)
	}
	return id, nil
}

func (s *Store) Query(ctx context.Context, collection string, filter docstore.Filter, out any) error {
	query := `SELECT body FROM documents WHERE collection = ?`
	args := []any{collection}

	// Equality filters become json_extract predicates. Filter values are
	// JSON-encoded so numeric and string comparisons line up with what
	// json_extract yields.
	for field, value := range filter {
		encoded, err := json.Marshal(value)
		if err != nil {
			return docstore.Wrap("query", collection, err)
		}
		query += fmt.Sprintf(` AND json_extract(body, '$.%s') = json_extract(?, '$')`, field)
		args = append(args, string(encoded))
	}
	query += ` ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return docstore.Wrap("query", collection, err)
	}
	defer rows.Close()

	var bodies []string
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return docstore.Wrap("query", collection, err)
		}
		bodies = append(bodies, body)
	}
	if err := rows.Err(); err != nil {
		return docstore.Wrap("query", collection, err)
	}

	combined := "[" + strings.Join(bodies, ",") + "]"
	return docstore.Wrap("query", collection, json.Unmarshal([]byte(combined), out))
}

func (s *Store) Get(ctx context.Context, collection string, id string, out any) error {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE collection = ? AND id = ?`,
		collection, id).Scan(&body)
	if err == sql.ErrNoRows {
		return docstore.ErrNotFound
	}
	if err != nil {
		return docstore.Wrap("get", collection, err)
	}
	return docstore.Wrap("get", collection, json.Unmarshal([]byte(body), out))
}
