/*
redeem.go - The redemption state transition

PURPOSE:
  Debits a client's redeemable balance to zero as of the moment the
  per-client lock is acquired. One debit entry, computed from the
  balance read under the lock; history is never edited in place.

STATE MACHINE (per client):
  Idle -> Locked -> {Applied | Rejected} -> Idle

  Locked is entered on Redeem(). A second Redeem() observed while Locked
  fails immediately with ErrRedemptionInFlight: no queueing, no retry.
  Rejected (unknown client, non-positive balance) returns to Idle with
  no side effect.

LOCK SCOPE:
  The lock is an in-process advisory primitive keyed by client id. It
  exists to stop two concurrent redemptions from reading the same
  pre-redemption balance and double-debiting. Credit appends need no
  lock: they are purely additive and commute. Credits appended during
  the lock window are not covered by the debit and survive as a positive
  balance afterwards; that is the accepted trade-off, not a bug. If
  multiple admin consoles ever run concurrently, a distributed lock or
  optimistic concurrency token is the upgrade path.
*/
package ledger

import (
	"context"
	"sync"
	"time"
)

// Receipt reports the balance right after a successful redemption.
type Receipt struct {
	ClientID         ClientID
	EntryID          EntryID
	NewTotalPoints   int64
	NewTotalDiscount int64
}

// Redeemer appends compensating debit entries under per-client mutual
// exclusion.
type Redeemer struct {
	ledger     *Ledger
	aggregator *Aggregator
	clients    ClientSource
	now        func() time.Time

	mu       sync.Mutex
	inFlight map[ClientID]struct{}
}

func NewRedeemer(l *Ledger, agg *Aggregator, clients ClientSource) *Redeemer {
	return &Redeemer{
		ledger:     l,
		aggregator: agg,
		clients:    clients,
		now:        time.Now,
		inFlight:   make(map[ClientID]struct{}),
	}
}

// WithClock overrides the time source.
func (r *Redeemer) WithClock(now func() time.Time) *Redeemer {
	r.now = now
	return r
}

// Redeem zeroes the client's redeemable balance as observed under the
// lock. Exactly one of two near-simultaneous calls succeeds; the other
// gets ErrRedemptionInFlight and appends nothing.
func (r *Redeemer) Redeem(ctx context.Context, clientID ClientID, by Actor) (Receipt, error) {
	if clientID == "" {
		return Receipt{}, &ValidationError{Field: "client_id", Reason: "must not be empty"}
	}

	if !r.tryLock(clientID) {
		return Receipt{}, ErrRedemptionInFlight
	}
	defer r.unlock(clientID)

	if r.clients != nil {
		exists, err := r.clients.ClientExists(ctx, clientID)
		if err != nil {
			return Receipt{}, err
		}
		if !exists {
			return Receipt{}, ErrClientNotFound
		}
	}

	balance, err := r.aggregator.ComputeBalance(ctx, clientID)
	if err != nil {
		return Receipt{}, err
	}
	if balance.TotalPoints <= 0 {
		return Receipt{}, &InsufficientBalanceError{ClientID: clientID, Points: balance.TotalPoints}
	}

	debit := Entry{
		ClientID:     clientID,
		Amount:       0,
		Points:       -balance.TotalPoints,
		Discount:     -balance.TotalDiscount,
		Kind:         KindDebit,
		Note:         NoteRedemption,
		CreatedAt:    r.now(),
		RecordedBy:   by.ID,
		RecordedRole: by.Role,
	}
	entryID, err := r.ledger.Append(ctx, debit)
	if err != nil {
		return Receipt{}, err
	}

	// Re-read under the lock so the receipt reflects credits that landed
	// between the balance read and the append.
	after, err := r.aggregator.ComputeBalance(ctx, clientID)
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{
		ClientID:         clientID,
		EntryID:          entryID,
		NewTotalPoints:   after.TotalPoints,
		NewTotalDiscount: after.TotalDiscount,
	}, nil
}

func (r *Redeemer) tryLock(clientID ClientID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, held := r.inFlight[clientID]; held {
		return false
	}
	r.inFlight[clientID] = struct{}{}
	return true
}

func (r *Redeemer) unlock(clientID ClientID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inFlight, clientID)
}
