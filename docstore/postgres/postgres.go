// Package postgres provides a PostgreSQL-backed docstore.Store.
//
// Documents are JSONB rows; equality filters use the @> containment
// operator so they hit a GIN index when one exists. Like the other
// implementations, this package is insert-only: no UPDATE, no DELETE.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/nadsa/loyalty-engine/docstore"
)

// Store implements docstore.Store on PostgreSQL.
type Store struct {
	db *sql.DB
}

// New connects with the given DSN and ensures the schema exists.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
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
		seq        BIGSERIAL PRIMARY KEY,
		collection TEXT NOT NULL,
		id         TEXT NOT NULL,
		body       JSONB NOT NULL,
		UNIQUE (collection, id)
	);
	CREATE INDEX IF NOT EXISTS idx_documents_body ON documents USING GIN (body);
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
		`INSERT INTO documents (collection, id, body) VALUES ($1, $2, $3)`,
		collection, id, string(body))
	if err != nil {
		return "", docstore.Wrap("insert", collection, err)
	}
	return id, nil
}

func (s *Store) Query(ctx context.Context, collection string, filter docstore.Filter, out any) error {
	query := `SELECT body FROM documents WHERE collection = $1`
	args := []any{collection}

	if len(filter) > 0 {
		contained, err := json.Marshal(map[string]any(filter))
		if err != nil {
			return docstore.Wrap("query", collection, err)
		}
		query += fmt.Sprintf(` AND body @> $%d`, len(args)+1)
		args = append(args, string(contained))
	}
	query += ` ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return docstore.Wrap("query", collection, err)
	}
	defer rows.Close()

	var bodies []json.RawMessage
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return docstore.Wrap("query", collection, err)
		}
		bodies = append(bodies, json.RawMessage(body))
	}
	if err := rows.Err(); err != nil {
		return docstore.Wrap("query", collection, err)
	}

	combined, err := json.Marshal(bodies)
	if err != nil {
		return docstore.Wrap("query", collection, err)
	}
	return docstore.Wrap("query", collection, json.Unmarshal(combined, out))
}

func (s *Store) Get(ctx context.Context, collection string, id string, out any) error {
	var body []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE collection = $1 AND id = $2`,
		collection, id).Scan(&body)
	if err == sql.ErrNoRows {
		return docstore.ErrNotFound
	}
	if err != nil {
		return docstore.Wrap("get", collection, err)
	}
	return docstore.Wrap("get", collection, json.Unmarshal(body, out))
}
