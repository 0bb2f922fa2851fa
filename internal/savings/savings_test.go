package savings

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/studentverse/redemption/internal/domain"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func ndec(t *testing.T, s string) decimal.NullDecimal {
	t.Helper()
	return decimal.NullDecimal{Decimal: dec(t, s), Valid: true}
}

func percentOffer(v string) domain.Offer {
	return domain.Offer{ID: "o1", Type: domain.OfferPercentage, DiscountValue: v}
}

func TestCompute(t *testing.T) {
	cases := []struct {
		name         string
		offer        domain.Offer
		bill         string
		final        string // "" means not provided
		wantDiscount string
		wantFinal    string
		wantKind     domain.Kind
	}{
		{
			name:  "percentage 20 of 100",
			offer: percentOffer("20"), bill: "100.00",
			wantDiscount: "20.00", wantFinal: "80.00",
		},
		{
			name:  "percentage with percent sign",
			offer: percentOffer("20%"), bill: "50.00",
			wantDiscount: "10.00", wantFinal: "40.00",
		},
		{
			name:  "percentage fractional",
			offer: percentOffer("12.5%"), bill: "33.33",
			wantDiscount: "4.17", wantFinal: "29.16",
		},
		{
			name:  "percentage rounds half to even",
			offer: percentOffer("5"), bill: "2.50",
			wantDiscount: "0.12", wantFinal: "2.38",
		},
		{
			name:  "percentage non-numeric",
			offer: percentOffer("twenty"), bill: "100.00",
			wantKind: domain.KindInvalidArgument,
		},
		{
			name:  "percentage above 100",
			offer: percentOffer("150"), bill: "100.00",
			wantKind: domain.KindInvalidArgument,
		},
		{
			name: "bogo free item below bill",
			offer: domain.Offer{
				Type: domain.OfferBOGO, OriginalPrice: ndec(t, "50.00"),
			},
			bill:         "100.00",
			wantDiscount: "50.00", wantFinal: "50.00",
		},
		{
			name: "bogo clamps to the bill",
			offer: domain.Offer{
				Type: domain.OfferBOGO, OriginalPrice: ndec(t, "50.00"),
			},
			bill:         "30.00",
			wantDiscount: "30.00", wantFinal: "0.00",
		},
		{
			name:     "bogo without price snapshot",
			offer:    domain.Offer{Type: domain.OfferBOGO},
			bill:     "30.00",
			wantKind: domain.KindInvalidArgument,
		},
		{
			name: "bundle at the bundle price",
			offer: domain.Offer{
				Type:            domain.OfferBundle,
				OriginalPrice:   ndec(t, "100.00"),
				DiscountedPrice: ndec(t, "75.00"),
			},
			bill:         "100.00",
			wantDiscount: "25.00", wantFinal: "75.00",
		},
		{
			name: "bundle with a larger bill keeps the offer discount",
			offer: domain.Offer{
				Type:            domain.OfferBundle,
				OriginalPrice:   ndec(t, "100.00"),
				DiscountedPrice: ndec(t, "75.00"),
			},
			bill:         "120.00",
			wantDiscount: "25.00", wantFinal: "95.00",
		},
		{
			name: "bundle bill below the discount",
			offer: domain.Offer{
				Type:            domain.OfferBundle,
				OriginalPrice:   ndec(t, "100.00"),
				DiscountedPrice: ndec(t, "75.00"),
			},
			bill:     "20.00",
			wantKind: domain.KindInvalidArgument,
		},
		{
			name: "bundle inverted prices",
			offer: domain.Offer{
				Type:            domain.OfferBundle,
				OriginalPrice:   ndec(t, "75.00"),
				DiscountedPrice: ndec(t, "100.00"),
			},
			bill:     "100.00",
			wantKind: domain.KindInvalidArgument,
		},
		{
			name:  "merchant final overrides derivation",
			offer: percentOffer("20"), bill: "100.00", final: "70.00",
			wantDiscount: "30.00", wantFinal: "70.00",
		},
		{
			name:  "merchant final above bill",
			offer: percentOffer("20"), bill: "100.00", final: "120.00",
			wantKind: domain.KindInvalidArgument,
		},
		{
			name:  "merchant final negative",
			offer: percentOffer("20"), bill: "100.00", final: "-1.00",
			wantKind: domain.KindInvalidArgument,
		},
		{
			name:  "merchant final with three decimals",
			offer: percentOffer("20"), bill: "100.00", final: "69.995",
			wantKind: domain.KindInvalidArgument,
		},
		{
			name:  "bill with three decimals",
			offer: percentOffer("20"), bill: "100.005",
			wantKind: domain.KindInvalidArgument,
		},
		{
			name:  "zero bill",
			offer: percentOffer("20"), bill: "0.00",
			wantKind: domain.KindInvalidArgument,
		},
		{
			name:  "negative bill",
			offer: percentOffer("20"), bill: "-10.00",
			wantKind: domain.KindInvalidArgument,
		},
		{
			name:     "unknown offer type",
			offer:    domain.Offer{Type: "mystery"},
			bill:     "10.00",
			wantKind: domain.KindInvalidArgument,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var final *decimal.Decimal
			if tc.final != "" {
				f := dec(t, tc.final)
				final = &f
			}

			got, err := Compute(tc.offer, dec(t, tc.bill), final)
			if tc.wantKind != "" {
				if !domain.IsKind(err, tc.wantKind) {
					t.Fatalf("got err %v, want kind %s", err, tc.wantKind)
				}
				return
			}
			if err != nil {
				t.Fatalf("Compute: %v", err)
			}

			if got.Discount.StringFixed(2) != tc.wantDiscount {
				t.Errorf("discount: got %s want %s", got.Discount.StringFixed(2), tc.wantDiscount)
			}
			if got.Final.StringFixed(2) != tc.wantFinal {
				t.Errorf("final: got %s want %s", got.Final.StringFixed(2), tc.wantFinal)
			}
			if !got.Discount.Add(got.Final).Equal(got.Bill) {
				t.Errorf("discount %s + final %s != bill %s", got.Discount, got.Final, got.Bill)
			}
		})
	}
}

func TestParsePercent(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want string
		ok   bool
	}{
		{"20", "20", true},
		{"20%", "20", true},
		{" 12.5% ", "12.5", true},
		{"0", "0", true},
		{"100", "100", true},
		{"twenty", "", false},
		{"", "", false},
		{"-5", "", false},
		{"101", "", false},
	} {
		p, err := ParsePercent(tc.in)
		if tc.ok {
			if err != nil {
				t.Errorf("ParsePercent(%q): %v", tc.in, err)
				continue
			}
			if p.String() != tc.want {
				t.Errorf("ParsePercent(%q): got %s want %s", tc.in, p, tc.want)
			}
			continue
		}
		if !domain.IsKind(err, domain.KindInvalidArgument) {
			t.Errorf("ParsePercent(%q): got %v want INVALID_ARGUMENT", tc.in, err)
		}
	}
}

func TestCheckScale(t *testing.T) {
	if err := CheckScale("x", dec(t, "10.25")); err != nil {
		t.Errorf("two decimals: %v", err)
	}
	if err := CheckScale("x", dec(t, "10")); err != nil {
		t.Errorf("integer: %v", err)
	}
	if err := CheckScale("x", dec(t, "10.255")); !domain.IsKind(err, domain.KindInvalidArgument) {
		t.Errorf("three decimals: got %v want INVALID_ARGUMENT", err)
	}
}
