// Package adapter normalizes the supported payment methods behind one
// validate/process contract.
package adapter

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Family identifies a payment method structurally, independent of its display name.
type Family string

const (
	FamilyCard          Family = "card"
	FamilyCash          Family = "cash"
	FamilyBankTransfer  Family = "bank_transfer"
	FamilyMobileWallet  Family = "mobile_wallet"
	FamilyLoyaltyWallet Family = "loyalty_wallet"
)

// Keys the orchestrator adds to the caller's raw details before validation.
const (
	DetailAmountCents = "amount_cents"
	DetailUserID      = "user_id"
	DetailBookingID   = "booking_id"
	DetailCurrency    = "currency"
)

// PaymentAdapter validates and executes payments of one method family.
//
// ValidateDetails returns a user-facing message, or "" when the details are usable.
// ProcessPayment reports success as a bool along with a processor reference; it must
// have no effect when it returns false.
type PaymentAdapter interface {
	ValidateDetails(ctx context.Context, details map[string]string) string
	ProcessPayment(ctx context.Context, amountCents int64, details map[string]string) (reference string, ok bool)
	MethodName() string
	Family() Family
}

// Refunder is implemented by adapters that can return a processed payment.
type Refunder interface {
	RefundPayment(ctx context.Context, reference string, amountCents int64, details map[string]string) error
}

// Registry resolves adapters by family.
type Registry struct {
	adapters map[Family]PaymentAdapter
}

// NewRegistry indexes adapters by their family; later duplicates win.
func NewRegistry(adapters ...PaymentAdapter) *Registry {
	r := &Registry{adapters: make(map[Family]PaymentAdapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Family()] = a
	}
	return r
}

// Lookup returns the adapter registered for family.
func (r *Registry) Lookup(family string) (PaymentAdapter, error) {
	a, ok := r.adapters[Family(strings.ToLower(strings.TrimSpace(family)))]
	if !ok {
		return nil, fmt.Errorf("unsupported payment method %q", family)
	}
	return a, nil
}

// Families lists the registered families in a stable order.
func (r *Registry) Families() []Family {
	out := make([]Family, 0, len(r.adapters))
	for f := range r.adapters {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// amountFrom reads the amount the orchestrator injected into details.
func amountFrom(details map[string]string) (int64, bool) {
	v, ok := details[DetailAmountCents]
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// stripSpaces removes whitespace and dashes users type into numbers.
func stripSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '-':
			return -1
		}
		return r
	}, s)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isAlphanumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r >= '0' && r <= '9' || r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z') {
			return false
		}
	}
	return true
}
