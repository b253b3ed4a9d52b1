/*
ledger.go - Typed, append-only access to the entry collection

PURPOSE:
  Wraps the generic document store with entry-typed operations. This is
  the ONLY path through which entries reach persistence.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No update, no delete. Ever.
  2. IMMUTABLE: Once written, an entry is never modified.
  3. DERIVED BALANCE: Balance is always refolded from entries; there is
     no stored running total to drift out of sync.

WHY APPEND-ONLY?
  The legacy console performed redemptions by overwriting historical
  order fields to zero, destroying the audit trail. This design rejects
  that: a redemption is a compensating debit entry, and history always
  explains how a balance got where it is.

SEE ALSO:
  - docstore/docstore.go: The persistence contract underneath
  - redeem.go: The only producer of debit entries
*/
package ledger

import (
	"context"
	"sort"

	"github.com/nadsa/loyalty-engine/docstore"
)

// Ledger is the append-only entry log over a document store.
type Ledger struct {
	store docstore.Store
}

func New(store docstore.Store) *Ledger {
	return &Ledger{store: store}
}

// Append persists one entry. This is the only write operation.
func (l *Ledger) Append(ctx context.Context, e Entry) (EntryID, error) {
	id, err := l.store.Insert(ctx, docstore.CollectionOrders, e)
	if err != nil {
		return "", err
	}
	return EntryID(id), nil
}

// ByClient returns every entry for one client in timestamp order,
// ties broken by entry id.
func (l *Ledger) ByClient(ctx context.Context, clientID ClientID) ([]Entry, error) {
	var entries []Entry
	err := l.store.Query(ctx, docstore.CollectionOrders,
		docstore.Filter{"client_id": clientID}, &entries)
	if err != nil {
		return nil, err
	}
	sortEntries(entries)
	return entries, nil
}

// All returns every entry across all clients, same ordering rule.
func (l *Ledger) All(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	if err := l.store.Query(ctx, docstore.CollectionOrders, nil, &entries); err != nil {
		return nil, err
	}
	sortEntries(entries)
	return entries, nil
}

func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
}
