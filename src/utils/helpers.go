package utils

import (
	"context"
	"fmt"
	"hash/fnv"
	"log"
	"strings"
	"temanku/src/lib"
	"time"
)

// PaymentReferenceCode derives the transfer reference shown to the booker.
// It is a pure function of (booker, talent, date, start time) so the same
// draft always yields the same code across reloads; changing any of the
// four inputs yields a fresh one.
func PaymentReferenceCode(bookerID, talentID uint, date time.Time, startsAt time.Time) string {
	key := fmt.Sprintf("%d:%d:%s:%s", bookerID, talentID, date.Format("2006-01-02"), startsAt.Format("15:04"))
	h := fnv.New32a()
	h.Write([]byte(key))
	return fmt.Sprintf("TMN-%06d", h.Sum32()%1000000)
}

// RecordPaymentReference caches the issued code so the mitra dashboard can
// match incoming transfers without recomputing. Best effort.
func RecordPaymentReference(code string, bookingID string) {
	rdb := lib.GetRedisClient()
	if rdb == nil {
		return
	}
	key := "payref:" + code
	if err := rdb.SetEx(context.Background(), key, bookingID, 72*time.Hour).Err(); err != nil {
		log.Printf("Failed to cache payment reference %s: %s\n", code, err.Error())
	}
}

// LookupPaymentReference resolves a cached reference code to a booking id.
func LookupPaymentReference(code string) (string, bool) {
	rdb := lib.GetRedisClient()
	if rdb == nil {
		return "", false
	}
	val, err := rdb.Get(context.Background(), "payref:"+code).Result()
	if err != nil {
		return "", false
	}
	return val, true
}

// ParseTimestamp reads an RFC3339 timestamp from a request body.
func ParseTimestamp(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", value, err)
	}
	return t, nil
}

// TotalPrice derives the commercial total for a booking draft.
func TotalPrice(hourlyRate int64, durationHours uint) int64 {
	return hourlyRate * int64(durationHours)
}

// ParseSchedule combines the calendar-day and time-of-day form fields into
// the interval start timestamp.
func ParseSchedule(dateStr, timeStr string) (date time.Time, startsAt time.Time, err error) {
	date, err = time.Parse("2006-01-02", dateStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid date %q: %w", dateStr, err)
	}
	tod, err := time.Parse("15:04", strings.TrimSpace(timeStr))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start time %q: %w", timeStr, err)
	}
	startsAt = time.Date(date.Year(), date.Month(), date.Day(), tod.Hour(), tod.Minute(), 0, 0, time.UTC)
	return date, startsAt, nil
}
