// cmd/seed loads a demo catalog into the redemption store so the API can
// be exercised locally: a student, a validator, two merchants and offers
// covering every discount type and the scheduling knobs.
//
// Seeding is additive and repeatable: rows that already exist are left
// untouched, so it is safe to run against a database that has traffic.
//
// Usage:
//
//	go run ./cmd/seed/ --db redemption.db
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/studentverse/redemption/internal/domain"
	"github.com/studentverse/redemption/internal/store"
)

func main() {
	dbPath := flag.String("db", "redemption.db", "path to the SQLite database")
	flag.Parse()

	st, err := store.New(*dbPath)
	if err != nil {
		fatalf("open store: %v", err)
	}
	defer st.Close() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	now := time.Now().UTC()
	var created, skipped int

	// ── 1. Users ──────────────────────────────────────────────────────────────
	fmt.Println("[1/3] users...")
	users := []domain.User{
		{ID: "demo-student", Email: "student@demo.example", FirstName: "Demo", LastName: "Student",
			Role: domain.RoleStudent, Status: "active", CreatedAt: now},
		{ID: "demo-student-2", Email: "student2@demo.example", FirstName: "Second", LastName: "Student",
			Role: domain.RoleStudent, Status: "active", CreatedAt: now},
		{ID: "demo-validator", Email: "till@demo.example", FirstName: "Counter", LastName: "Till",
			Role: domain.RoleValidator, Status: "active", CreatedAt: now},
		{ID: "demo-admin", Email: "admin@demo.example",
			Role: domain.RoleAdmin, Status: "active", CreatedAt: now},
	}
	for _, u := range users {
		if _, err := st.GetUser(ctx, u.ID); err == nil {
			skipped++
			continue
		} else if !domain.IsKind(err, domain.KindNotFound) {
			fatalf("check user %s: %v", u.ID, err)
		}
		if err := st.CreateUser(ctx, u); err != nil {
			fatalf("create user %s: %v", u.ID, err)
		}
		fmt.Printf("      + %s (%s)\n", u.ID, u.Role)
		created++
	}

	// ── 2. Merchants ──────────────────────────────────────────────────────────
	fmt.Println("[2/3] merchants...")
	merchants := []domain.Merchant{
		{ID: "demo-cafe", Name: "Corner Cafe", Geo: "25.2048,55.2708", IsActive: true, CreatedAt: now},
		{ID: "demo-grill", Name: "Night Grill", Geo: "25.1972,55.2744", IsActive: true, CreatedAt: now},
	}
	for _, m := range merchants {
		if _, err := st.GetMerchant(ctx, m.ID); err == nil {
			skipped++
			continue
		} else if !domain.IsKind(err, domain.KindNotFound) {
			fatalf("check merchant %s: %v", m.ID, err)
		}
		if err := st.CreateMerchant(ctx, m); err != nil {
			fatalf("create merchant %s: %v", m.ID, err)
		}
		fmt.Printf("      + %s (%s)\n", m.ID, m.Name)
		created++
	}

	// ── 3. Offers ─────────────────────────────────────────────────────────────
	fmt.Println("[3/3] offers...")
	offers := []domain.Offer{
		{ID: "demo-coffee-20", MerchantID: "demo-cafe", Title: "20% off any coffee",
			Description: "Any size, any roast.", Type: domain.OfferPercentage,
			DiscountValue: "20", IsActive: true, IsFeatured: true, CreatedAt: now},
		{ID: "demo-bogo-smoothie", MerchantID: "demo-cafe", Title: "BOGO smoothies",
			Description: "Buy one smoothie, get one free.", Type: domain.OfferBOGO,
			OriginalPrice: decimal.NullDecimal{Decimal: decimal.RequireFromString("25.00"), Valid: true},
			IsActive:      true, CreatedAt: now},
		{ID: "demo-lunch-bundle", MerchantID: "demo-cafe", Title: "Lunch bundle",
			Description: "Sandwich, side and a drink.", Type: domain.OfferBundle,
			OriginalPrice:   decimal.NullDecimal{Decimal: decimal.RequireFromString("58.00"), Valid: true},
			DiscountedPrice: decimal.NullDecimal{Decimal: decimal.RequireFromString("42.00"), Valid: true},
			IsActive:        true, CreatedAt: now},
		{ID: "demo-late-shawarma", MerchantID: "demo-grill", Title: "30% off late-night shawarma",
			Description: "Window wraps midnight.", Type: domain.OfferPercentage,
			DiscountValue: "30", TimeFrom: "22:00", TimeUntil: "02:00",
			IsActive: true, CreatedAt: now},
		{ID: "demo-weekend-mixed-grill", MerchantID: "demo-grill", Title: "Weekend mixed grill",
			Description: "Saturdays and Sundays only, first 100 claims.", Type: domain.OfferPercentage,
			DiscountValue: "25", ValidWeekdays: "sat,sun", MaxTotalClaims: 100,
			IsActive: true, CreatedAt: now},
	}
	for _, o := range offers {
		if _, err := st.GetOffer(ctx, o.ID); err == nil {
			skipped++
			continue
		} else if !domain.IsKind(err, domain.KindNotFound) {
			fatalf("check offer %s: %v", o.ID, err)
		}
		if err := st.CreateOffer(ctx, o); err != nil {
			fatalf("create offer %s: %v", o.ID, err)
		}
		fmt.Printf("      + %s (%s)\n", o.ID, o.Type)
		created++
	}

	fmt.Printf("\ndone: %d created, %d already present\n", created, skipped)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}
