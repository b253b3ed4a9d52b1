// Package memory provides the in-process docstore.Store implementation.
package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"

	"github.com/nadsa/loyalty-engine/docstore"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Store keeps documents as raw JSON per collection, in insertion order.
type Store struct {
	mu          sync.RWMutex
	collections map[string][]document
	byID        map[string]map[string]json.RawMessage // collection -> id -> doc
}

type document struct {
	id   string
	body json.RawMessage
}

func New() *Store {
	return &Store{
		collections: make(map[string][]document),
		byID:        make(map[string]map[string]json.RawMessage),
	}
}

func (s *Store) Insert(_ context.Context, collection string, doc any) (string, error) {
	id, body, err := docstore.EncodeWithID(doc, uuid.NewString)
	if err != nil {
		return "", docstore.Wrap("insert", collection, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.collections[collection] = append(s.collections[collection], document{id: id, body: body})
	if s.byID[collection] == nil {
		s.byID[collection] = make(map[string]json.RawMessage)
	}
	s.byID[collection][id] = body
	return id, nil
}

func (s *Store) Query(_ context.Context, collection string, filter docstore.Filter, out any) error {
	s.mu.RLock()
	docs := s.collections[collection]
	matched := make([]json.RawMessage, 0, len(docs))
	for _, d := range docs {
		ok, err := matches(d.body, filter)
		if err != nil {
			s.mu.RUnlock()
			return docstore.Wrap("query", collection, err)
		}
		if ok {
			matched = append(matched, d.body)
		}
	}
	s.mu.RUnlock()

	return docstore.Wrap("query", collection, decodeSlice(matched, out))
}

func (s *Store) Get(_ context.Context, collection string, id string, out any) error {
	s.mu.RLock()
	body, ok := s.byID[collection][id]
	s.mu.RUnlock()

	if !ok {
		return docstore.ErrNotFound
	}
	return docstore.Wrap("get", collection, json.Unmarshal(body, out))
}

// matches compares filter values against the document's top-level fields
// after JSON normalization, so typed values compare equal to decoded ones.
func matches(body json.RawMessage, filter docstore.Filter) (bool, error) {
	if len(filter) == 0 {
		return true, nil
	}

	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return false, err
	}

	for key, want := range filter {
		got, ok := fields[key]
		if !ok {
			return false, nil
		}
		normalized, err := normalize(want)
		if err != nil {
			return false, err
		}
		if !reflect.DeepEqual(got, normalized) {
			return false, nil
		}
	}
	return true, nil
}

func normalize(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// decodeSlice assembles matched documents into one JSON array and decodes
// it into out, which must be a pointer to a slice.
func decodeSlice(docs []json.RawMessage, out any) error {
	if reflect.ValueOf(out).Kind() != reflect.Ptr {
		return fmt.Errorf("query output must be a pointer to a slice, got %T", out)
	}

	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, d := range docs {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(d)
	}
	buf.WriteByte(']')
	return json.Unmarshal(buf.Bytes(), out)
}
