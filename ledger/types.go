/*
Package ledger is the loyalty ledger and redemption engine.

PURPOSE:
  Tracks customer purchase orders as immutable ledger entries, converts
  spend into reward points and a redeemable monetary discount, and lets
  an administrator debit a client's balance to zero in one audited step.

KEY CONCEPTS IN THIS FILE (types.go):
  - Entry: An immutable credit (purchase) or debit (redemption)
  - Balance: Totals folded from a client's full entry history
  - GlobalView: All entries grouped per client, for the admin console
  - Actor: Who recorded an entry (the client, or the admin on their behalf)

DESIGN PRINCIPLES:
  1. Immutability: Entries are never mutated or deleted after creation
  2. Derived state: Balance is always the fold of entries, never stored
  3. Precision: Discount math uses decimal.Decimal, not floats
  4. Auditability: Every entry records who created it and why

SEE ALSO:
  - policy.go: Points and discount derivation
  - aggregator.go: Balance and grouped-view computation
  - redeem.go: The redemption state transition
*/
package ledger

import (
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ClientID string
type EntryID string

// =============================================================================
// ENTRY - Immutable ledger record
// =============================================================================

type Kind string

const (
	KindCredit Kind = "credit" // purchase: amount > 0, points/discount >= 0
	KindDebit  Kind = "debit"  // redemption: amount = 0, points/discount <= 0
)

// NoteRedemption marks the one debit the redemption manager appends.
const NoteRedemption = "redemption"

// Entry is one immutable ledger record. Credits come from the recorder,
// debits only from the redemption manager. Amounts are whole currency
// units; points and discount are signed so debits fold naturally.
type Entry struct {
	ID          EntryID   `json:"id"`
	ClientID    ClientID  `json:"client_id"`
	ClientEmail string    `json:"client_email,omitempty"`
	Amount      int64     `json:"amount"`
	Points      int64     `json:"points"`
	Discount    int64     `json:"discount"`
	Kind        Kind      `json:"kind"`
	Note        string    `json:"note,omitempty"`
	CreatedAt   time.Time `json:"created_at"`

	// Audit fields
	RecordedBy   string `json:"recorded_by,omitempty"`
	RecordedRole string `json:"recorded_role,omitempty"` // "client" or "admin"
}

// =============================================================================
// ACTOR - Who is performing an operation
// =============================================================================

type Actor struct {
	ID    string
	Email string
	Role  string
}

const (
	RoleClient = "client"
	RoleAdmin  = "admin"
)

// =============================================================================
// BALANCE - Computed from the full entry history, never stored
// =============================================================================

type Balance struct {
	ClientID      ClientID
	TotalPoints   int64
	TotalDiscount int64
	TodayAmount   int64 // credit amounts since start of the local day
	AsOf          time.Time
}

// =============================================================================
// GLOBAL VIEW - Per-client grouping for the admin console
// =============================================================================

type Scope string

const (
	ScopeToday Scope = "today"
	ScopeAll   Scope = "all"
)

// ClientHistory is one client's slice of the global view. Entries keep
// timestamp order, ties broken by entry id.
type ClientHistory struct {
	Entries          []Entry
	SubtotalPoints   int64
	SubtotalDiscount int64
}

// GlobalView groups every entry (optionally filtered to today) by client.
type GlobalView struct {
	Scope    Scope
	DayStart time.Time // start of the local day the view was computed in
	Clients  map[ClientID]*ClientHistory
}

// startOfLocalDay truncates now to midnight in its own location.
// "Today" everywhere in this package means at-or-after this instant.
func startOfLocalDay(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}
