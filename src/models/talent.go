package models

import "temanku/src/types"

type Talent struct {
	ID         uint               `gorm:"primarykey" json:"id"`
	OwnerID    uint               `json:"owner_id,omitempty"`
	Name       string             `json:"name,omitempty"`
	Slug       string             `gorm:"uniqueIndex" json:"slug,omitempty"`
	Tagline    string             `json:"tagline,omitempty"`
	City       string             `json:"city,omitempty"`
	HourlyRate int64              `json:"hourly_rate,omitempty"`
	Status     types.TalentStatus `gorm:"default:'active'" json:"status,omitempty"`
	Rating     float32            `json:"rating,omitempty"`
	RatedCount uint               `json:"rated_count,omitempty"`

	Owner    User      `gorm:"foreignKey:owner_id" json:"-"`
	Bookings []Booking `gorm:"foreignKey:talent_id" json:"bookings,omitempty"`

	types.Timestamps
}
