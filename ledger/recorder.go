/*
recorder.go - Order intake with derivation at insert time

PURPOSE:
  Validates a raw purchase amount, derives points and discount through
  the configured policy, and appends one credit entry. Validation runs
  before any store call, so a rejected order has no side effect at all.

INPUT CONTRACT:
  rawAmount must parse to a finite number strictly greater than zero;
  the recorded amount is its floor. A floor of zero is still a valid
  credit (it simply earns nothing), matching the legacy behavior for
  sub-unit purchases.

CANCELLATION:
  An abandoned AddOrder is at-most-once issued: the append may or may
  not have landed. Callers resynchronize by re-reading the balance.
*/
package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ClientSource is the slice of the client directory the engine needs.
// The directory package implements it.
type ClientSource interface {
	ClientExists(ctx context.Context, id ClientID) (bool, error)
	ContactEmail(ctx context.Context, id ClientID) (string, error)
}

// Recorder appends credit entries.
type Recorder struct {
	ledger  *Ledger
	policy  DiscountPolicy
	clients ClientSource // optional; nil skips email stamping
	now     func() time.Time
}

func NewRecorder(l *Ledger, policy DiscountPolicy) *Recorder {
	return &Recorder{ledger: l, policy: policy, now: time.Now}
}

// WithClients lets the recorder stamp entries with the client's contact
// email, which the directory later uses as a lookup fallback.
func (r *Recorder) WithClients(src ClientSource) *Recorder {
	r.clients = src
	return r
}

// WithClock overrides the time source. Tests use this for the day
// boundary; production never calls it.
func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	r.now = now
	return r
}

// AddOrder validates rawAmount, derives points/discount, and appends a
// credit entry timestamped now. Returns the new entry's id.
func (r *Recorder) AddOrder(ctx context.Context, clientID ClientID, rawAmount string, by Actor) (EntryID, error) {
	amount, err := parseAmount(rawAmount)
	if err != nil {
		return "", err
	}
	if clientID == "" {
		return "", &ValidationError{Field: "client_id", Reason: "must not be empty"}
	}

	points := r.policy.Points(amount)
	discount := r.policy.Discount(points)

	entry := Entry{
		ClientID:     clientID,
		ClientEmail:  r.clientEmail(ctx, clientID, by),
		Amount:       amount,
		Points:       points,
		Discount:     discount,
		Kind:         KindCredit,
		CreatedAt:    r.now(),
		RecordedBy:   by.ID,
		RecordedRole: by.Role,
	}
	return r.ledger.Append(ctx, entry)
}

// clientEmail resolves the email stamped on the entry: the acting
// client's own email, or the directory's contact email for
// on-behalf-of-client adds. Best effort; an entry without email is fine.
func (r *Recorder) clientEmail(ctx context.Context, clientID ClientID, by Actor) string {
	if by.Role == RoleClient && by.Email != "" {
		return by.Email
	}
	if r.clients == nil {
		return ""
	}
	email, err := r.clients.ContactEmail(ctx, clientID)
	if err != nil {
		return ""
	}
	return email
}

func parseAmount(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, &ValidationError{Field: "amount", Reason: "missing"}
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, &ValidationError{Field: "amount", Reason: "not a number"}
	}
	if !d.IsPositive() {
		return 0, &ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}
	return d.Floor().IntPart(), nil
}
