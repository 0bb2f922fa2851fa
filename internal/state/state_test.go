package state

import (
	"testing"

	"github.com/studentverse/redemption/internal/domain"
)

func TestNext_LegalTransitions(t *testing.T) {
	cases := []struct {
		from domain.State
		ev   Event
		want domain.State
	}{
		{domain.StateActive, EventValidate, domain.StatePendingConfirmation},
		{domain.StateActive, EventExpire, domain.StateExpired},
		{domain.StatePendingConfirmation, EventConfirm, domain.StateUsed},
		{domain.StatePendingConfirmation, EventCancel, domain.StateActive},
		{domain.StatePendingConfirmation, EventExpire, domain.StateExpired},
		{domain.StateUsed, EventVoid, domain.StateVoided},
	}
	for _, c := range cases {
		got, err := Next(c.from, c.ev)
		if err != nil {
			t.Errorf("Next(%s, %s): unexpected error %v", c.from, c.ev, err)
			continue
		}
		if got != c.want {
			t.Errorf("Next(%s, %s): got %s want %s", c.from, c.ev, got, c.want)
		}
	}
}

func TestNext_IllegalTransitions(t *testing.T) {
	cases := []struct {
		from domain.State
		ev   Event
	}{
		{domain.StateActive, EventConfirm},  // confirm without validate
		{domain.StateActive, EventVoid},     // void without use
		{domain.StateUsed, EventValidate},   // re-validate a used entitlement
		{domain.StateUsed, EventConfirm},    // double confirm
		{domain.StateExpired, EventValidate},
		{domain.StateVoided, EventValidate}, // voided never resurrects
		{domain.StateVoided, EventVoid},
		{domain.StateExpired, EventExpire},
	}
	for _, c := range cases {
		if _, err := Next(c.from, c.ev); !domain.IsKind(err, domain.KindInvalidState) {
			t.Errorf("Next(%s, %s): got %v want INVALID_STATE", c.from, c.ev, err)
		}
	}
}

func TestTerminal(t *testing.T) {
	if Terminal(domain.StateActive) || Terminal(domain.StatePendingConfirmation) || Terminal(domain.StateUsed) {
		t.Error("live states must not be terminal")
	}
	if !Terminal(domain.StateExpired) || !Terminal(domain.StateVoided) {
		t.Error("expired and voided are terminal")
	}
}

func TestCan(t *testing.T) {
	if !Can(domain.StateActive, EventValidate) {
		t.Error("active entitlements validate")
	}
	if Can(domain.StateExpired, EventVoid) {
		t.Error("expired entitlements never void")
	}
}
