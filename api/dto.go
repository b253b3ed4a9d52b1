/*
dto.go - JSON shapes for API requests and responses

PURPOSE:
  Decouples the wire contract from the internal domain types. DTOs are
  pure data carriers; validation happens in handlers and in the engine.
*/
package api

import (
	"time"

	"github.com/nadsa/loyalty-engine/ledger"
	"github.com/nadsa/loyalty-engine/view"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// AddOrderRequest carries the raw purchase amount as entered. It stays a
// string until the recorder validates it.
type AddOrderRequest struct {
	Amount string `json:"amount"`
}

// AddOrderResponse returns the id of the appended credit entry.
type AddOrderResponse struct {
	EntryID string `json:"entry_id"`
}

// RedeemResponse reports the balance right after the redemption debit.
type RedeemResponse struct {
	NewTotalPoints   int64 `json:"new_total_points"`
	NewTotalDiscount int64 `json:"new_total_discount"`
}

// EntryDTO represents one ledger entry in API responses.
type EntryDTO struct {
	ID        string `json:"id"`
	ClientID  string `json:"client_id"`
	Amount    int64  `json:"amount"`
	Points    int64  `json:"points"`
	Discount  int64  `json:"discount"`
	Kind      string `json:"kind"`
	Note      string `json:"note,omitempty"`
	CreatedAt string `json:"created_at"`
}

// ClientSummaryResponse is what the admin console shows for one client.
type ClientSummaryResponse struct {
	ClientID    string        `json:"client_id"`
	DisplayName string        `json:"display_name"`
	Balance     view.SelfView `json:"balance"`
	Entries     []EntryDTO    `json:"entries"`
}

// GroupedViewResponse is the admin daily/all-time ledger view.
type GroupedViewResponse struct {
	Scope  string     `json:"scope"`
	Groups []GroupDTO `json:"groups"`
}

// GroupDTO is one client's block in the grouped view.
type GroupDTO struct {
	ClientID         string     `json:"client_id"`
	DisplayName      string     `json:"display_name"`
	Entries          []EntryDTO `json:"entries"`
	SubtotalPoints   int64      `json:"subtotal_points"`
	SubtotalDiscount int64      `json:"subtotal_discount"`
}

func entryDTO(e ledger.Entry) EntryDTO {
	return EntryDTO{
		ID:        string(e.ID),
		ClientID:  string(e.ClientID),
		Amount:    e.Amount,
		Points:    e.Points,
		Discount:  e.Discount,
		Kind:      string(e.Kind),
		Note:      e.Note,
		CreatedAt: e.CreatedAt.Format(time.RFC3339),
	}
}

func entryDTOs(entries []ledger.Entry) []EntryDTO {
	dtos := make([]EntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = entryDTO(e)
	}
	return dtos
}
