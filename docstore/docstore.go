/*
Package docstore defines the generic document store contract the engine
persists through.

PURPOSE:
  The loyalty core does not care which database holds its documents. It
  only needs three operations: insert a document, query a collection by
  equality filter, fetch a document by id. Any store satisfying this
  contract with append durability is sufficient.

IMPLEMENTATIONS:
  docstore/memory:   In-process JSON documents (tests, dev)
  docstore/sqlite:   SQLite documents table with json_extract filtering
  docstore/postgres: PostgreSQL JSONB with containment filtering

ORDERING:
  Query returns documents in insertion order. The ledger relies on this:
  within one client's history, the order observed by balance computation
  matches store-assigned append order.

DOCUMENT SHAPE:
  Documents are encoded/decoded via encoding/json. Insert assigns the id
  (uuid) and returns it; the document itself does not need an id field.

SEE ALSO:
  - ledger/ledger.go: Typed wrapper over this contract
  - docstore/memory/memory.go: Reference implementation
*/
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// =============================================================================
// CONTRACT
// =============================================================================

// Filter matches documents whose top-level fields equal the given values.
// Values are compared after JSON normalization, so int64(5) matches a
// stored 5.
type Filter map[string]any

// Store is the persistence contract for the loyalty engine.
//
// Writes are insert-only. There is no Update and no Delete: the ledger is
// append-only and corrections happen via compensating entries.
type Store interface {
	// Insert persists doc in collection and returns the assigned id.
	Insert(ctx context.Context, collection string, doc any) (string, error)

	// Query decodes every document in collection matching filter into out,
	// which must be a pointer to a slice. Documents arrive in insertion
	// order. A nil filter matches everything.
	Query(ctx context.Context, collection string, filter Filter, out any) error

	// Get decodes the document with the given id into out.
	// Returns ErrNotFound if no such document exists.
	Get(ctx context.Context, collection string, id string, out any) error
}

// Collections used by the engine.
const (
	CollectionOrders  = "orders"
	CollectionClients = "clients"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotFound is returned by Get when the document does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrStore wraps any underlying store failure (connectivity, encoding,
	// permissions). Callers must see it as-is, never a generic placeholder.
	ErrStore = errors.New("store operation failed")
)

// =============================================================================
// ENCODING HELPERS - shared by implementations
// =============================================================================

// EncodeWithID marshals doc and makes sure the stored body carries its id
// under the top-level "id" field. A non-empty id already present in doc
// wins; otherwise newID supplies one. Returns the effective id and the
// body to persist.
func EncodeWithID(doc any, newID func() string) (string, []byte, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", nil, err
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return "", nil, fmt.Errorf("document must encode to a JSON object: %w", err)
	}

	id, _ := fields["id"].(string)
	if id == "" {
		id = newID()
		fields["id"] = id
		if raw, err = json.Marshal(fields); err != nil {
			return "", nil, err
		}
	}
	return id, raw, nil
}

// OpError carries the failing operation and collection alongside the cause.
type OpError struct {
	Op         string
	Collection string
	Err        error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("docstore %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *OpError) Unwrap() error { return ErrStore }

// Wrap builds an OpError unless err is nil or already a contract error.
func Wrap(op, collection string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrStore) {
		return err
	}
	return &OpError{Op: op, Collection: collection, Err: err}
}
