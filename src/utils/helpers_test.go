package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPaymentReferenceCode(t *testing.T) {
	date := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)
	startsAt := time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC)

	code := PaymentReferenceCode(42, 7, date, startsAt)
	assert.True(t, strings.HasPrefix(code, "TMN-"))
	assert.Len(t, code, 10)

	again := PaymentReferenceCode(42, 7, date, startsAt)
	assert.Equal(t, code, again, "same inputs must yield the same code")

	otherBooker := PaymentReferenceCode(43, 7, date, startsAt)
	assert.NotEqual(t, code, otherBooker)

	otherTime := PaymentReferenceCode(42, 7, date, startsAt.Add(time.Hour))
	assert.NotEqual(t, code, otherTime)
}

func TestTotalPrice(t *testing.T) {
	assert.Equal(t, int64(200000), TotalPrice(100000, 2))
	assert.Equal(t, int64(0), TotalPrice(100000, 0))
}

func TestParseSchedule(t *testing.T) {
	date, startsAt, err := ParseSchedule("2026-09-02", "10:00")
	assert.Nil(t, err)
	assert.Equal(t, 2026, date.Year())
	assert.Equal(t, time.September, date.Month())
	assert.Equal(t, 2, date.Day())
	assert.Equal(t, 10, startsAt.Hour())
	assert.Equal(t, 0, startsAt.Minute())
	assert.Equal(t, date.Day(), startsAt.Day())

	_, _, err = ParseSchedule("02-09-2026", "10:00")
	assert.NotNil(t, err)

	_, _, err = ParseSchedule("2026-09-02", "25:00")
	assert.NotNil(t, err)
}

func TestParseTimestamp(t *testing.T) {
	ts, err := ParseTimestamp("2026-09-02T10:30:00+07:00")
	assert.Nil(t, err)
	assert.Equal(t, 30, ts.Minute())

	_, err = ParseTimestamp("yesterday")
	assert.NotNil(t, err)
}
