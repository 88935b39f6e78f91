package common

import (
	"temanku/src/models"
	"temanku/src/types"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func mustDate(t *testing.T, value string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", value)
	assert.Nil(t, err)
	return d
}

func at(date time.Time, hour int) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), hour, 0, 0, 0, time.UTC)
}

func TestOverlaps(t *testing.T) {
	date := mustDate(t, "2026-09-01")

	s1, e1 := at(date, 10), at(date, 12)
	s2, e2 := at(date, 11), at(date, 13)
	assert.True(t, Overlaps(s1, e1, s2, e2))
	assert.True(t, Overlaps(s2, e2, s1, e1), "overlap must be symmetric")

	// Back-to-back intervals share an endpoint but never overlap.
	s3, e3 := at(date, 12), at(date, 14)
	assert.False(t, Overlaps(s1, e1, s3, e3))
	assert.False(t, Overlaps(s3, e3, s1, e1))

	s4, e4 := at(date, 10), at(date, 12)
	assert.True(t, Overlaps(s1, e1, s4, e4), "identical intervals overlap")
}

func TestHasConflict(t *testing.T) {
	date := mustDate(t, "2026-09-01")
	approved := []models.Booking{
		{
			Date:           date,
			StartsAt:       at(date, 10),
			DurationHours:  2,
			ApprovalStatus: types.APPROVAL_APPROVED,
		},
	}

	assert.True(t, HasConflict(date, at(date, 11), 2, approved))
	assert.True(t, HasConflict(date, at(date, 9), 2, approved))
	assert.False(t, HasConflict(date, at(date, 12), 2, approved), "a booking starting at the previous end is free")
	assert.False(t, HasConflict(date, at(date, 8), 2, approved))

	otherDate := mustDate(t, "2026-09-02")
	assert.False(t, HasConflict(otherDate, at(otherDate, 11), 2, approved))
}

func TestHasConflictIgnoresNonApproved(t *testing.T) {
	date := mustDate(t, "2026-09-01")
	bookings := []models.Booking{
		{
			Date:           date,
			StartsAt:       at(date, 10),
			DurationHours:  2,
			ApprovalStatus: types.APPROVAL_PENDING,
		},
		{
			Date:           date,
			StartsAt:       at(date, 10),
			DurationHours:  2,
			ApprovalStatus: types.APPROVAL_REJECTED,
		},
	}
	assert.False(t, HasConflict(date, at(date, 10), 2, bookings))
}

func TestTakenSlots(t *testing.T) {
	date := mustDate(t, "2026-09-01")
	approved := []models.Booking{
		{
			Date:           date,
			StartsAt:       at(date, 10),
			DurationHours:  2,
			ApprovalStatus: types.APPROVAL_APPROVED,
		},
		{
			Date:           date,
			StartsAt:       at(date, 15),
			DurationHours:  1,
			ApprovalStatus: types.APPROVAL_APPROVED,
		},
	}
	taken := TakenSlots(date, 1, approved)
	assert.ElementsMatch(t, []int{10, 11, 15}, taken)

	// A 2-hour draft starting right before a booking would collide, so the
	// preceding hours are blocked too.
	taken = TakenSlots(date, 2, approved)
	assert.ElementsMatch(t, []int{9, 10, 11, 14, 15}, taken)

	// Zero falls back to single-hour probing.
	assert.ElementsMatch(t, []int{10, 11, 15}, TakenSlots(date, 0, approved))

	otherDate := mustDate(t, "2026-09-02")
	assert.Empty(t, TakenSlots(otherDate, 1, approved))
}
