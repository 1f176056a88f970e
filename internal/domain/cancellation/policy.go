package cancellation

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// RefundTier refunds Percent of the total when at least MinHours remain before departure.
type RefundTier struct {
	MinHours int `json:"min_hours"`
	Percent  int `json:"percent"`
}

// Policy is the active cancellation rule set. It is configuration, not an entity.
type Policy struct {
	hoursBeforeDeparture    int
	minHoursBeforeDeparture int
	tiers                   []RefundTier // sorted by MinHours descending
}

// NewPolicy validates and builds a Policy. Tiers must not refund more for less notice.
func NewPolicy(hoursBeforeDeparture, minHoursBeforeDeparture int, tiers []RefundTier) (Policy, error) {
	if hoursBeforeDeparture < 0 || minHoursBeforeDeparture < 0 {
		return Policy{}, fmt.Errorf("cancellation thresholds must not be negative")
	}
	sorted := make([]RefundTier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MinHours > sorted[j].MinHours })

	for i, t := range sorted {
		if t.MinHours < 0 {
			return Policy{}, fmt.Errorf("refund tier hours must not be negative")
		}
		if t.Percent < 0 || t.Percent > 100 {
			return Policy{}, fmt.Errorf("refund tier percent must be between 0 and 100, got %d", t.Percent)
		}
		if i > 0 {
			prev := sorted[i-1]
			if prev.MinHours == t.MinHours {
				return Policy{}, fmt.Errorf("duplicate refund tier for %d hours", t.MinHours)
			}
			if t.Percent > prev.Percent {
				return Policy{}, fmt.Errorf("refund tier at %dh refunds more than tier at %dh", t.MinHours, prev.MinHours)
			}
		}
	}

	return Policy{
		hoursBeforeDeparture:    hoursBeforeDeparture,
		minHoursBeforeDeparture: minHoursBeforeDeparture,
		tiers:                   sorted,
	}, nil
}

// DefaultPolicy allows cancellation up to 24h before departure: 100% above 48h, 50% from 24h.
func DefaultPolicy() Policy {
	p, _ := NewPolicy(24, 0, []RefundTier{
		{MinHours: 48, Percent: 100},
		{MinHours: 24, Percent: 50},
		{MinHours: 0, Percent: 0},
	})
	return p
}

// ParseTiers reads "hours:percent" pairs separated by commas, e.g. "48:100,24:50,0:0".
func ParseTiers(s string) ([]RefundTier, error) {
	var tiers []RefundTier
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		hoursStr, pctStr, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("refund tier %q must be hours:percent", part)
		}
		hours, err := strconv.Atoi(strings.TrimSpace(hoursStr))
		if err != nil {
			return nil, fmt.Errorf("refund tier %q: invalid hours", part)
		}
		pct, err := strconv.Atoi(strings.TrimSpace(pctStr))
		if err != nil {
			return nil, fmt.Errorf("refund tier %q: invalid percent", part)
		}
		tiers = append(tiers, RefundTier{MinHours: hours, Percent: pct})
	}
	return tiers, nil
}

func (p Policy) HoursBeforeDeparture() int    { return p.hoursBeforeDeparture }
func (p Policy) MinHoursBeforeDeparture() int { return p.minHoursBeforeDeparture }

// Tiers returns a copy of the refund schedule, most notice first.
func (p Policy) Tiers() []RefundTier {
	out := make([]RefundTier, len(p.tiers))
	copy(out, p.tiers)
	return out
}

// CanCancel reports whether a booking departing in hoursUntilDeparture hours may be cancelled.
// Negative hours mean the train has already left.
func (p Policy) CanCancel(hoursUntilDeparture int) bool {
	if hoursUntilDeparture < 0 {
		return false
	}
	return hoursUntilDeparture >= p.minHoursBeforeDeparture &&
		hoursUntilDeparture >= p.hoursBeforeDeparture
}

// RefundPercent is the percent of the total returned for a cancellation at hoursUntilDeparture.
func (p Policy) RefundPercent(hoursUntilDeparture int) int {
	if !p.CanCancel(hoursUntilDeparture) {
		return 0
	}
	for _, t := range p.tiers {
		if hoursUntilDeparture >= t.MinHours {
			return t.Percent
		}
	}
	return 0
}

// CalculateRefund returns the refund in cents, rounded half-up.
func (p Policy) CalculateRefund(totalCents int64, hoursUntilDeparture int) int64 {
	if totalCents <= 0 {
		return 0
	}
	pct := int64(p.RefundPercent(hoursUntilDeparture))
	return (totalCents*pct + 50) / 100
}

// Fields exposes the thresholds for user-facing violation messages.
func (p Policy) Fields() map[string]any {
	return map[string]any{
		"hours_before_departure":     p.hoursBeforeDeparture,
		"min_hours_before_departure": p.minHoursBeforeDeparture,
	}
}

// ViolationMessage explains why a cancellation was refused.
func (p Policy) ViolationMessage(hoursUntilDeparture int) string {
	if hoursUntilDeparture < 0 {
		return "Cancellation is not possible because the train has already departed."
	}
	required := p.hoursBeforeDeparture
	if p.minHoursBeforeDeparture > required {
		required = p.minHoursBeforeDeparture
	}
	return fmt.Sprintf("Cancellation must be made at least %d hours before departure (%d hours remaining).",
		required, hoursUntilDeparture)
}
