/*
Package directory resolves human-readable identity for clients and backs
the admin console's search box.

PURPOSE:
  - Lookup: client id -> display name, with a deliberate fallback chain:
    client record -> email on the client's most recent order -> raw id
    -> "Unknown". Each step is tried, never collapsed into one opaque
    failure label.
  - Search: case-insensitive substring match over ALL registered clients'
    display names. Terms shorter than 2 characters return empty
    immediately; the threshold avoids over-broad scans.

CACHING:
  Lookups are cached per admin session in an explicit SessionCache owned
  by the caller: created at session start, discarded at session end.
  Deliberately not ambient global state.
*/
package directory

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/nadsa/loyalty-engine/docstore"
	"github.com/nadsa/loyalty-engine/ledger"
)

// UnknownName is the terminal lookup fallback.
const UnknownName = "Unknown"

// Client mirrors the registration record. Created externally; read-only
// here.
type Client struct {
	ID           ledger.ClientID `json:"id"`
	DisplayName  string          `json:"display_name"`
	Region       string          `json:"region"`
	ContactEmail string          `json:"contact_email"`
}

// Match is one search result.
type Match struct {
	ClientID    ledger.ClientID `json:"client_id"`
	DisplayName string          `json:"display_name"`
}

// =============================================================================
// SESSION CACHE
// =============================================================================

// SessionCache memoizes resolved display names for the lifetime of one
// admin session. Safe for concurrent use.
type SessionCache struct {
	mu    sync.RWMutex
	names map[ledger.ClientID]string
}

func NewSessionCache() *SessionCache {
	return &SessionCache{names: make(map[ledger.ClientID]string)}
}

func (c *SessionCache) get(id ledger.ClientID) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.names[id]
	return name, ok
}

func (c *SessionCache) put(id ledger.ClientID, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names[id] = name
}

// =============================================================================
// DIRECTORY
// =============================================================================

// Directory reads the clients collection and, for the lookup fallback,
// the orders collection.
type Directory struct {
	store docstore.Store
}

func New(store docstore.Store) *Directory {
	return &Directory{store: store}
}

// Lookup resolves a display name for clientID, consulting cache first.
// cache may be nil for uncached resolution.
func (d *Directory) Lookup(ctx context.Context, cache *SessionCache, clientID ledger.ClientID) (string, error) {
	if clientID == "" {
		return UnknownName, nil
	}
	if cache != nil {
		if name, ok := cache.get(clientID); ok {
			return name, nil
		}
	}

	name, err := d.resolve(ctx, clientID)
	if err != nil {
		return "", err
	}
	if cache != nil {
		cache.put(clientID, name)
	}
	return name, nil
}

func (d *Directory) resolve(ctx context.Context, clientID ledger.ClientID) (string, error) {
	var client Client
	err := d.store.Get(ctx, docstore.CollectionClients, string(clientID), &client)
	switch {
	case err == nil:
		if client.DisplayName != "" {
			return client.DisplayName, nil
		}
	case !errors.Is(err, docstore.ErrNotFound):
		return "", err
	}

	// No usable client record: fall back to the email stamped on the
	// client's most recent order, then to the raw id.
	if email, err := d.latestOrderEmail(ctx, clientID); err != nil {
		return "", err
	} else if email != "" {
		return email, nil
	}
	return string(clientID), nil
}

func (d *Directory) latestOrderEmail(ctx context.Context, clientID ledger.ClientID) (string, error) {
	var entries []ledger.Entry
	err := d.store.Query(ctx, docstore.CollectionOrders,
		docstore.Filter{"client_id": clientID}, &entries)
	if err != nil {
		return "", err
	}

	var email string
	var latest ledger.Entry
	for _, e := range entries {
		if e.ClientEmail == "" {
			continue
		}
		if email == "" || e.CreatedAt.After(latest.CreatedAt) {
			email = e.ClientEmail
			latest = e
		}
	}
	return email, nil
}

// Search returns every registered client whose display name contains
// term, case-insensitively. Trimmed terms shorter than 2 characters are
// a no-op and return an empty list.
func (d *Directory) Search(ctx context.Context, term string) ([]Match, error) {
	term = strings.TrimSpace(term)
	if len(term) < 2 {
		return []Match{}, nil
	}
	needle := strings.ToLower(term)

	var clients []Client
	if err := d.store.Query(ctx, docstore.CollectionClients, nil, &clients); err != nil {
		return nil, err
	}

	matches := []Match{}
	for _, c := range clients {
		if strings.Contains(strings.ToLower(c.DisplayName), needle) {
			matches = append(matches, Match{ClientID: c.ID, DisplayName: c.DisplayName})
		}
	}
	return matches, nil
}

// =============================================================================
// LEDGER CLIENT SOURCE
// =============================================================================

// ClientExists implements ledger.ClientSource.
func (d *Directory) ClientExists(ctx context.Context, id ledger.ClientID) (bool, error) {
	var client Client
	err := d.store.Get(ctx, docstore.CollectionClients, string(id), &client)
	if errors.Is(err, docstore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ContactEmail implements ledger.ClientSource.
func (d *Directory) ContactEmail(ctx context.Context, id ledger.ClientID) (string, error) {
	var client Client
	err := d.store.Get(ctx, docstore.CollectionClients, string(id), &client)
	if errors.Is(err, docstore.ErrNotFound) {
		return "", ledger.ErrClientNotFound
	}
	if err != nil {
		return "", err
	}
	return client.ContactEmail, nil
}

// Compile-time check that Directory satisfies the engine's client needs.
var _ ledger.ClientSource = (*Directory)(nil)
