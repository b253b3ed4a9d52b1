/*
aggregator.go - Balance and grouped-view computation

PURPOSE:
  Answers "what does this client have?" and "what does everyone have?"
  by refolding the full entry history on every call. Nothing here is
  cached or persisted: the read always reflects every prior append, at
  the cost of O(entries) work. Acceptable because this is a retail
  loyalty history, not a high-frequency ledger.

TODAY:
  "Today" means CreatedAt >= start of the local day of the clock. An
  entry stamped 23:59:59 yesterday is out; 00:00:00 today is in.
*/
package ledger

import (
	"context"
	"time"
)

// Aggregator recomputes balances from entry history.
type Aggregator struct {
	ledger *Ledger
	now    func() time.Time
}

func NewAggregator(l *Ledger) *Aggregator {
	return &Aggregator{ledger: l, now: time.Now}
}

// WithClock overrides the time source for day-boundary tests.
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

// ComputeBalance folds every entry for the client. Credits and debits
// both contribute to the point/discount totals; only today's credits
// contribute to TodayAmount.
func (a *Aggregator) ComputeBalance(ctx context.Context, clientID ClientID) (Balance, error) {
	entries, err := a.ledger.ByClient(ctx, clientID)
	if err != nil {
		return Balance{}, err
	}

	asOf := a.now()
	dayStart := startOfLocalDay(asOf)

	b := Balance{ClientID: clientID, AsOf: asOf}
	for _, e := range entries {
		b.TotalPoints += e.Points
		b.TotalDiscount += e.Discount
		if e.Kind == KindCredit && !e.CreatedAt.Before(dayStart) {
			b.TodayAmount += e.Amount
		}
	}
	return b, nil
}

// ComputeGlobalView groups all entries by client, optionally restricted
// to today. Within a group, entries keep timestamp order with ties
// broken by entry id.
func (a *Aggregator) ComputeGlobalView(ctx context.Context, scope Scope) (GlobalView, error) {
	entries, err := a.ledger.All(ctx)
	if err != nil {
		return GlobalView{}, err
	}

	dayStart := startOfLocalDay(a.now())
	view := GlobalView{
		Scope:    scope,
		DayStart: dayStart,
		Clients:  make(map[ClientID]*ClientHistory),
	}

	for _, e := range entries {
		if scope == ScopeToday && e.CreatedAt.Before(dayStart) {
			continue
		}
		h := view.Clients[e.ClientID]
		if h == nil {
			h = &ClientHistory{}
			view.Clients[e.ClientID] = h
		}
		h.Entries = append(h.Entries, e)
		h.SubtotalPoints += e.Points
		h.SubtotalDiscount += e.Discount
	}
	return view, nil
}
