package common

import (
	"temanku/src/models"
	"temanku/src/types"
	"time"
)

// Overlaps reports whether the half-open intervals [s1, e1) and [s2, e2)
// intersect. A booking ending exactly when another starts is not a conflict.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

// HasConflict reports whether the candidate interval collides with any
// already-approved booking in the given set. Records whose approval status
// is anything other than approved never block a slot, and bookings on a
// different calendar day are ignored.
func HasConflict(date time.Time, startsAt time.Time, durationHours uint, bookings []models.Booking) bool {
	endsAt := startsAt.Add(time.Duration(durationHours) * time.Hour)
	y, m, d := date.Date()
	for _, b := range bookings {
		if b.ApprovalStatus != types.APPROVAL_APPROVED {
			continue
		}
		by, bm, bd := b.Date.Date()
		if by != y || bm != m || bd != d {
			continue
		}
		if Overlaps(startsAt, endsAt, b.StartsAt, b.EndsAt()) {
			return true
		}
	}
	return false
}

// TakenSlots returns the hour-of-day start times blocked by approved
// bookings on the given date, for rendering a slot selector. A candidate
// hour is taken when a booking of durationHours starting there would
// collide, so an hour right before an approved booking is blocked for
// multi-hour drafts even though the hour itself is free.
func TakenSlots(date time.Time, durationHours uint, bookings []models.Booking) []int {
	if durationHours == 0 {
		durationHours = 1
	}
	taken := []int{}
	for hour := 0; hour < 24; hour++ {
		startsAt := time.Date(date.Year(), date.Month(), date.Day(), hour, 0, 0, 0, date.Location())
		if HasConflict(date, startsAt, durationHours, bookings) {
			taken = append(taken, hour)
		}
	}
	return taken
}
