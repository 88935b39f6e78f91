package models

import (
	"temanku/src/types"
	"time"

	"github.com/google/uuid"
)

type Booking struct {
	ID uuid.UUID `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`

	BookerID   uint       `json:"booker_id,omitempty"`
	BookerRole types.Role `gorm:"default:'user'" json:"booker_role,omitempty"`
	TalentID   uint       `json:"talent_id,omitempty"`

	// Date carries the calendar day; StartsAt the full start timestamp.
	// The booked interval is [StartsAt, StartsAt + DurationHours).
	Date          time.Time `gorm:"type:date" json:"date,omitempty"`
	StartsAt      time.Time `json:"starts_at,omitempty"`
	DurationHours uint      `json:"duration_hours,omitempty"`

	TotalPrice    int64             `json:"total_price,omitempty"`
	Purpose       string            `json:"purpose,omitempty"`
	CustomPurpose string            `json:"custom_purpose,omitempty"`
	Mode          types.MeetingMode `json:"mode,omitempty"`

	PaymentStatus  types.PaymentStatus  `gorm:"default:'pending'" json:"payment_status,omitempty"`
	PaymentChannel types.PaymentChannel `json:"payment_channel,omitempty"`
	PaymentRef     string               `json:"payment_ref,omitempty"`
	ProofURL       string               `json:"proof_url,omitempty"`
	TransferAmount *int64               `json:"transfer_amount,omitempty"`
	TransferredAt  *time.Time           `json:"transferred_at,omitempty"`

	ApprovalStatus  types.ApprovalStatus `gorm:"default:'pending_approval'" json:"approval_status,omitempty"`
	ApprovalMessage string               `json:"approval_message,omitempty"`

	Rating        *uint8 `json:"rating,omitempty"`
	RatingComment string `json:"rating_comment,omitempty"`

	Talent *Talent `gorm:"foreignKey:talent_id" json:"talent,omitempty"`
	Booker *User   `gorm:"foreignKey:booker_id" json:"booker,omitempty"`

	types.Timestamps
}

// EndsAt returns the exclusive end of the booked interval.
func (b *Booking) EndsAt() time.Time {
	return b.StartsAt.Add(time.Duration(b.DurationHours) * time.Hour)
}

// Active reports whether the booking should resume an in-progress flow:
// awaiting moderation, or approved with its scheduled end still ahead.
func (b *Booking) Active(now time.Time) bool {
	switch b.ApprovalStatus {
	case types.APPROVAL_PENDING:
		return true
	case types.APPROVAL_APPROVED:
		return now.Before(b.EndsAt())
	default:
		return false
	}
}
