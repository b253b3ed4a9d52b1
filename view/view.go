/*
Package view builds read-only view-models from aggregator output.

PURPOSE:
  Pure functions, no I/O, no clock: everything they need arrives as
  arguments. Toggling the admin console between "today" and "all"
  operates on one previously fetched full-history snapshot, so both
  scopes stay mutually consistent within a render cycle.
*/
package view

import (
	"sort"

	"github.com/nadsa/loyalty-engine/ledger"
)

// SelfView is what an authenticated client sees about themselves.
type SelfView struct {
	TodayAmount   int64 `json:"today_amount"`
	TotalPoints   int64 `json:"total_points"`
	TotalDiscount int64 `json:"total_discount"`
}

// ClientGroup is one client's block in the admin grouped view.
type ClientGroup struct {
	ClientID         ledger.ClientID `json:"client_id"`
	DisplayName      string          `json:"display_name"`
	Entries          []ledger.Entry  `json:"entries"`
	SubtotalPoints   int64           `json:"subtotal_points"`
	SubtotalDiscount int64           `json:"subtotal_discount"`
}

// BuildSelfView projects a balance into the self-service view.
func BuildSelfView(b ledger.Balance) SelfView {
	return SelfView{
		TodayAmount:   b.TodayAmount,
		TotalPoints:   b.TotalPoints,
		TotalDiscount: b.TotalDiscount,
	}
}

// BuildAdminGroupedView renders the grouped admin view from a
// full-history snapshot. When scope is today, entries are filtered
// against the snapshot's own day boundary and subtotals recomputed, so
// no re-query happens on toggle. names labels groups by client id;
// missing labels fall back to the raw id. Groups come back in
// deterministic client-id order.
func BuildAdminGroupedView(v ledger.GlobalView, scope ledger.Scope, names map[ledger.ClientID]string) []ClientGroup {
	groups := make([]ClientGroup, 0, len(v.Clients))

	for clientID, history := range v.Clients {
		g := ClientGroup{ClientID: clientID, DisplayName: names[clientID]}
		if g.DisplayName == "" {
			g.DisplayName = string(clientID)
		}

		if scope == ledger.ScopeToday && v.Scope == ledger.ScopeAll {
			for _, e := range history.Entries {
				if e.CreatedAt.Before(v.DayStart) {
					continue
				}
				g.Entries = append(g.Entries, e)
				g.SubtotalPoints += e.Points
				g.SubtotalDiscount += e.Discount
			}
		} else {
			g.Entries = history.Entries
			g.SubtotalPoints = history.SubtotalPoints
			g.SubtotalDiscount = history.SubtotalDiscount
		}

		if len(g.Entries) == 0 {
			continue
		}
		groups = append(groups, g)
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].ClientID < groups[j].ClientID })
	return groups
}
