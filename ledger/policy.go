/*
policy.go - Points and discount derivation policies

PURPOSE:
  Turns a purchase amount into reward points and a monetary discount at
  insert time. The derivation is deterministic: replaying the same amount
  always yields the same points and discount.

AVAILABLE POLICIES:
  LinearPolicy (default):
    points   = floor(amount / 100)
    discount = round(points * RATE / 10) * 10
    RATE is configuration, not a derived quantity. The legacy material
    carries several mutually inconsistent rates, so the multiplier must
    be confirmed before production use. Default 1.3.

  TierPolicy (legacy):
    The threshold table the old console used. Kept selectable for
    installations that never migrated to the linear rule:
      amount >= 10000 -> 100 pts     points >= 100 -> 1000 discount
      amount >=  5000 ->  50 pts     points >=  50 ->  400 discount
      amount >=  1000 ->  10 pts     points >=  10 ->   50 discount

PRECISION:
  The linear rule multiplies by a fractional rate, so it goes through
  decimal.Decimal. Rounding is half away from zero, matching what the
  legacy console computed.
*/
package ledger

import (
	"github.com/shopspring/decimal"
)

// DiscountPolicy derives points and discount from a purchase amount.
// For all a >= 0 both outputs are deterministic and non-decreasing in a.
type DiscountPolicy interface {
	Points(amount int64) int64
	Discount(points int64) int64
}

// =============================================================================
// LINEAR POLICY
// =============================================================================

// DefaultRate is the standard discount multiplier. Configuration, not
// gospel: confirm against the business rule before production use.
var DefaultRate = decimal.NewFromFloat(1.3)

type LinearPolicy struct {
	Rate decimal.Decimal
}

func NewLinearPolicy(rate decimal.Decimal) LinearPolicy {
	if rate.IsZero() {
		rate = DefaultRate
	}
	return LinearPolicy{Rate: rate}
}

func (p LinearPolicy) Points(amount int64) int64 {
	if amount < 0 {
		return 0
	}
	return amount / 100
}

func (p LinearPolicy) Discount(points int64) int64 {
	if points <= 0 {
		return 0
	}
	ten := decimal.NewFromInt(10)
	return decimal.NewFromInt(points).
		Mul(p.Rate).
		Div(ten).
		Round(0).
		Mul(ten).
		IntPart()
}

// =============================================================================
// TIER POLICY - Legacy threshold table
// =============================================================================

type TierPolicy struct{}

func (TierPolicy) Points(amount int64) int64 {
	switch {
	case amount >= 10000:
		return 100
	case amount >= 5000:
		return 50
	case amount >= 1000:
		return 10
	default:
		return 0
	}
}

func (TierPolicy) Discount(points int64) int64 {
	switch {
	case points >= 100:
		return 1000
	case points >= 50:
		return 400
	case points >= 10:
		return 50
	default:
		return 0
	}
}
