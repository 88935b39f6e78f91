package models

import (
	"temanku/src/types"
	"time"
)

type User struct {
	ID            uint        `gorm:"primarykey" json:"id"`
	Name          string      `json:"name,omitempty"`
	Email         string      `json:"email,omitempty"`
	Role          types.Role  `gorm:"default:'user'" json:"role,omitempty"`
	UID           string      `json:"uid,omitempty"`
	EmailVerified bool        `json:"email_verified,omitempty"`
	VerifiedAt    time.Time   `json:"verified_at,omitempty"`
	FCMToken      *string     `json:"-"`
	Metadata      types.JSONB `gorm:"type:jsonb" json:"-"`

	Bookings []Booking `gorm:"foreignKey:booker_id" json:"bookings,omitempty"`
	Talent   *Talent   `gorm:"foreignKey:owner_id" json:"talent,omitempty"`

	types.Timestamps
}
