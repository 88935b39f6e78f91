package models

import (
	"temanku/src/types"

	"github.com/google/uuid"
)

// ChatChannel is created when a booking is approved. Message exchange is
// only permitted through an active channel.
type ChatChannel struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	BookingID uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"booking_id"`
	BookerID  uint      `json:"booker_id,omitempty"`
	TalentID  uint      `json:"talent_id,omitempty"`
	Active    bool      `gorm:"default:true" json:"active"`

	Messages []ChatMessage `gorm:"foreignKey:channel_id" json:"messages,omitempty"`

	types.Timestamps
}

type ChatMessage struct {
	ID        uint   `gorm:"primarykey" json:"id"`
	ChannelID uint   `json:"channel_id,omitempty"`
	SenderID  uint   `json:"sender_id,omitempty"`
	Body      string `json:"body,omitempty"`

	Channel ChatChannel `gorm:"foreignKey:channel_id" json:"-"`

	types.Timestamps
}
