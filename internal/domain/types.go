package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Role is the caller's platform role, taken from the verified bearer token.
type Role string

const (
	RoleStudent   Role = "student"
	RoleValidator Role = "validator"
	RoleAdmin     Role = "admin"
)

// State is the lifecycle state of an entitlement. The store row is the
// single source of truth; every change goes through a compare-and-swap.
type State string

const (
	StateActive              State = "active"
	StatePendingConfirmation State = "pending_confirmation"
	StateUsed                State = "used"
	StateExpired             State = "expired"
	StateVoided              State = "voided"
)

func (s State) Valid() bool {
	switch s {
	case StateActive, StatePendingConfirmation, StateUsed, StateExpired, StateVoided:
		return true
	}
	return false
}

// OfferType selects the savings derivation for a redemption.
type OfferType string

const (
	OfferPercentage OfferType = "percentage"
	OfferBOGO       OfferType = "bogo"
	OfferBundle     OfferType = "bundle"
)

func (t OfferType) Valid() bool {
	switch t {
	case OfferPercentage, OfferBOGO, OfferBundle:
		return true
	}
	return false
}

// User is a platform account. The redemption core only reads users.
type User struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
	Role      Role
	Status    string
	CreatedAt time.Time
}

func (u User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

// Merchant is the business an offer belongs to.
type Merchant struct {
	ID        string
	Name      string
	Geo       string // optional "lat,lng"
	IsActive  bool
	CreatedAt time.Time
}

// Offer is a claimable deal. Scheduling fields are optional: zero values
// mean "no restriction".
type Offer struct {
	ID              string
	MerchantID      string
	CategoryID      string
	Title           string
	Description     string
	Type            OfferType
	DiscountValue   string // raw value, e.g. "20", "20%"; parsed at use
	OriginalPrice   decimal.NullDecimal
	DiscountedPrice decimal.NullDecimal
	ValidFrom       *time.Time
	ValidUntil      *time.Time
	TimeFrom        string // "HH:MM" local wall clock, paired with TimeUntil
	TimeUntil       string
	ValidWeekdays   string // csv of mon..sun; empty allows all days
	MaxTotalClaims  int64  // 0 means unlimited
	TotalClaims     int64
	IsActive        bool
	IsFeatured      bool
	CreatedAt       time.Time
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday,
	"wed": time.Wednesday, "thu": time.Thursday, "fri": time.Friday,
	"sat": time.Saturday,
}

// AllowsWeekday reports whether the offer may be claimed on the given
// local weekday. An empty or unparseable weekday list allows every day.
func (o Offer) AllowsWeekday(w time.Weekday) bool {
	if strings.TrimSpace(o.ValidWeekdays) == "" {
		return true
	}
	for _, part := range strings.Split(o.ValidWeekdays, ",") {
		if d, ok := weekdayNames[strings.ToLower(strings.TrimSpace(part))]; ok && d == w {
			return true
		}
	}
	return false
}

// InTimeWindow reports whether the local wall-clock time t falls inside
// the offer's daily window. Windows may wrap midnight (22:00..02:00).
// Offers without a window accept any time.
func (o Offer) InTimeWindow(t time.Time) bool {
	if o.TimeFrom == "" || o.TimeUntil == "" {
		return true
	}
	hhmm := t.Format("15:04")
	if o.TimeFrom <= o.TimeUntil {
		return hhmm >= o.TimeFrom && hhmm <= o.TimeUntil
	}
	return hhmm >= o.TimeFrom || hhmm <= o.TimeUntil
}

// Entitlement is one user's claim on an offer for one local calendar day.
type Entitlement struct {
	ID        string
	UserID    string
	OfferID   string
	State     State
	ClaimedAt time.Time
	ClaimDay  string // local YYYY-MM-DD, fixed at claim time
	ExpiresAt time.Time
	UsedAt    *time.Time
	VoidedAt  *time.Time
	DeviceID  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Redemption is the financial record written when a validation is
// confirmed. Amounts are canonical two-decimal values.
type Redemption struct {
	ID             string
	EntitlementID  string
	MerchantID     string
	OfferID        string
	UserID         string
	ValidatorID    string
	TotalBill      decimal.Decimal
	DiscountAmount decimal.Decimal
	FinalAmount    decimal.Decimal
	OfferType      OfferType
	RedeemedAt     time.Time
	IsVoided       bool
	VoidedAt       *time.Time
	VoidReason     string
}

// EntitlementSummary is the list/display projection of an entitlement.
type EntitlementSummary struct {
	ID           string
	OfferID      string
	OfferTitle   string
	MerchantName string
	State        State
	ClaimedAt    time.Time
	ExpiresAt    time.Time
}

// SavingsSummary aggregates a user's confirmed, non-voided redemptions.
type SavingsSummary struct {
	TotalRedemptions int64
	TotalSavings     decimal.Decimal
	TotalSpent       decimal.Decimal
}

// AnalyticsEvent is an append-only product analytics record.
type AnalyticsEvent struct {
	ID        string
	EventType string
	UserID    string
	OfferID   string
	Payload   []byte // JSON object
	CreatedAt time.Time
}
