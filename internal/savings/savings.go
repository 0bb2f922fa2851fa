// Package savings derives the money split written to a redemption.
// Everything is fixed-point decimal; binary floats never touch an amount.
package savings

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/studentverse/redemption/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Breakdown splits a bill into what the student saved and what they paid.
// Discount + Final always equals Bill and nothing is negative.
type Breakdown struct {
	Bill     decimal.Decimal
	Discount decimal.Decimal
	Final    decimal.Decimal
}

// Compute derives the discount for a confirmation. A merchant-declared
// final amount overrides the offer-based derivation; otherwise the split
// follows the offer type. Derived discounts are canonicalized to two
// decimal places with banker's rounding before the final is taken.
func Compute(offer domain.Offer, bill decimal.Decimal, finalAmount *decimal.Decimal) (Breakdown, error) {
	if !bill.IsPositive() {
		return Breakdown{}, domain.E(domain.KindInvalidArgument, "total_bill must be positive")
	}
	if err := CheckScale("total_bill", bill); err != nil {
		return Breakdown{}, err
	}

	if finalAmount != nil {
		return fromFinal(bill, *finalAmount)
	}

	var discount decimal.Decimal
	switch offer.Type {
	case domain.OfferPercentage:
		pct, err := ParsePercent(offer.DiscountValue)
		if err != nil {
			return Breakdown{}, err
		}
		discount = bill.Mul(pct).Div(hundred)
	case domain.OfferBOGO:
		// The free item's price snapshot; a bill below it means the
		// whole bill is covered.
		if !offer.OriginalPrice.Valid {
			return Breakdown{}, domain.E(domain.KindInvalidArgument, "bogo offer has no original_price")
		}
		discount = offer.OriginalPrice.Decimal
		if discount.GreaterThan(bill) {
			discount = bill
		}
	case domain.OfferBundle:
		if !offer.OriginalPrice.Valid || !offer.DiscountedPrice.Valid {
			return Breakdown{}, domain.E(domain.KindInvalidArgument, "bundle offer is missing price snapshots")
		}
		discount = offer.OriginalPrice.Decimal.Sub(offer.DiscountedPrice.Decimal)
		if discount.IsNegative() {
			return Breakdown{}, domain.E(domain.KindInvalidArgument, "bundle discounted_price exceeds original_price")
		}
	default:
		return Breakdown{}, domain.Ef(domain.KindInvalidArgument, "unknown offer type %q", offer.Type)
	}

	discount = discount.RoundBank(2)
	final := bill.Sub(discount)
	if final.IsNegative() {
		return Breakdown{}, domain.E(domain.KindInvalidArgument, "total_bill is below the offer discount")
	}
	return Breakdown{Bill: bill, Discount: discount, Final: final}, nil
}

func fromFinal(bill, final decimal.Decimal) (Breakdown, error) {
	if final.IsNegative() {
		return Breakdown{}, domain.E(domain.KindInvalidArgument, "final_amount must not be negative")
	}
	if err := CheckScale("final_amount", final); err != nil {
		return Breakdown{}, err
	}
	discount := bill.Sub(final)
	if discount.IsNegative() {
		return Breakdown{}, domain.E(domain.KindInvalidArgument, "final_amount exceeds total_bill")
	}
	return Breakdown{Bill: bill, Discount: discount, Final: final}, nil
}

// ParsePercent reads a percentage offer's discount value: "20", "20%"
// and "12.5%" all parse; anything non-numeric is rejected.
func ParsePercent(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "%"))
	p, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, domain.Ef(domain.KindInvalidArgument, "discount value %q is not numeric", raw)
	}
	if p.IsNegative() || p.GreaterThan(hundred) {
		return decimal.Decimal{}, domain.Ef(domain.KindInvalidArgument, "discount value %q is out of range", raw)
	}
	return p, nil
}

// CheckScale rejects amounts carrying more than two fractional digits.
func CheckScale(name string, d decimal.Decimal) error {
	if !d.Equal(d.Truncate(2)) {
		return domain.Ef(domain.KindInvalidArgument, "%s must have at most 2 decimal places", name)
	}
	return nil
}
