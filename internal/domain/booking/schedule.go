package booking

import (
	"fmt"
	"math"
	"time"
)

// Schedule is one departure of a route. It is read-only to this service.
type Schedule struct {
	ID            int64
	RouteID       int64
	DepartureDate time.Time // calendar date; the clock part is ignored
	DepartureTime string    // "HH:MM"
	ArrivalTime   string    // "HH:MM"
	Capacity      int
	PriceCents    int64
}

// DepartsAt combines the departure date and time into one instant in loc.
func (s Schedule) DepartsAt(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	clock, err := time.Parse("15:04", s.DepartureTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("schedule %d: invalid departure time %q", s.ID, s.DepartureTime)
	}
	y, m, d := s.DepartureDate.Date()
	return time.Date(y, m, d, clock.Hour(), clock.Minute(), 0, 0, loc), nil
}

// HoursUntil returns whole hours from now until departsAt, rounded down.
// The result is negative once departure has passed.
func HoursUntil(now, departsAt time.Time) int {
	return int(math.Floor(departsAt.Sub(now).Hours()))
}
