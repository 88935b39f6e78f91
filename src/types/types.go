package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:nano" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty,omitnil"`
}

type JSONB map[string]any

func (a JSONB) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *JSONB) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	return nil
}

type Environment string

const (
	Production Environment = "production"
	Test       Environment = "test"
	Local      Environment = "local"
)

type Role string

const (
	ROLE_USER   Role = "user"
	ROLE_TALENT Role = "talent"
	ROLE_ADMIN  Role = "admin"
)

// ApprovalStatus is the admin-moderated lifecycle stage of a booking.
// Transitions run pending_approval -> {approved, rejected} and
// approved -> completed once the scheduled interval has passed.
type ApprovalStatus string

const (
	APPROVAL_PENDING   ApprovalStatus = "pending_approval"
	APPROVAL_APPROVED  ApprovalStatus = "approved"
	APPROVAL_REJECTED  ApprovalStatus = "rejected"
	APPROVAL_COMPLETED ApprovalStatus = "completed"
)

// PaymentStatus becomes paid only after a non-empty proof of payment
// has been attached to the booking.
type PaymentStatus string

const (
	PAYMENT_PENDING PaymentStatus = "pending"
	PAYMENT_PAID    PaymentStatus = "paid"
)

type MeetingMode string

const (
	MODE_OFFLINE MeetingMode = "offline"
	MODE_ONLINE  MeetingMode = "online"
)

type PaymentChannel string

const (
	CHANNEL_QRIS          PaymentChannel = "qris"
	CHANNEL_GOPAY         PaymentChannel = "gopay"
	CHANNEL_DANA          PaymentChannel = "dana"
	CHANNEL_OVO           PaymentChannel = "ovo"
	CHANNEL_BANK_TRANSFER PaymentChannel = "bank_transfer"
	CHANNEL_CARD          PaymentChannel = "card"
)

func PaymentChannels() []PaymentChannel {
	return []PaymentChannel{
		CHANNEL_QRIS,
		CHANNEL_GOPAY,
		CHANNEL_DANA,
		CHANNEL_OVO,
		CHANNEL_BANK_TRANSFER,
		CHANNEL_CARD,
	}
}

func (c PaymentChannel) Valid() bool {
	for _, ch := range PaymentChannels() {
		if c == ch {
			return true
		}
	}
	return false
}

// Purposes offered by the booking form. PURPOSE_OTHER carries free text.
const (
	PURPOSE_NGOBROL  = "Ngobrol"
	PURPOSE_NONTON   = "Nonton"
	PURPOSE_KULINER  = "Kuliner"
	PURPOSE_OLAHRAGA = "Olahraga"
	PURPOSE_JALAN    = "Jalan-jalan"
	PURPOSE_OTHER    = "Lainnya"
)

type TalentStatus string

const (
	TALENT_ACTIVE    TalentStatus = "active"
	TALENT_SUSPENDED TalentStatus = "suspended"
)

type CreateTalentRequestBody struct {
	Name       string `json:"name" binding:"required"`
	Tagline    string `json:"tagline,omitempty"`
	City       string `json:"city" binding:"required"`
	HourlyRate int64  `json:"hourly_rate" binding:"required,gt=0"`
}

type CreateBookingRequestBody struct {
	TalentID      uint   `json:"talent_id" binding:"required"`
	Date          string `json:"date" binding:"required,bookabledate"`
	StartTime     string `json:"start_time" binding:"required,timeofday"`
	DurationHours uint   `json:"duration_hours" binding:"required,min=1,max=6"`
	Purpose       string `json:"purpose" binding:"required"`
	CustomPurpose string `json:"custom_purpose,omitempty"`
	Mode          string `json:"mode" binding:"required,oneof=offline online"`
	Message       string `json:"message,omitempty"`
}

type ConfirmPaymentRequestBody struct {
	Channel        string `json:"channel" binding:"required"`
	ProofURL       string `json:"proof_url" binding:"required"`
	TransferAmount *int64 `json:"transfer_amount,omitempty"`
	TransferredAt  string `json:"transferred_at,omitempty"`
}

type ModerateBookingRequestBody struct {
	Message string `json:"message,omitempty"`
}

type RateBookingRequestBody struct {
	Rating  uint8  `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment,omitempty"`
}

type SendMessageRequestBody struct {
	Body string `json:"body" binding:"required"`
}

type RegisterUserRequestBody struct {
	Email string `json:"email" binding:"required,email"`
	Name  string `json:"name" binding:"required"`
}

type LoginRequestBody struct {
	Email string `json:"email" binding:"required,email"`
}

type SimpleRequestParams struct {
	ID string `uri:"id" binding:"required,uuid"`
}

type TalentSlugParams struct {
	Slug string `uri:"slug" binding:"required"`
}

type TalentSlotsQuery struct {
	Date     string `form:"date" binding:"required"`
	Duration uint   `form:"duration" binding:"omitempty,min=1,max=6"`
}

type ActiveBookingQuery struct {
	TalentID uint `form:"talent" binding:"required"`
}

type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	UID      string `json:"uid"`
	jwt.RegisteredClaims
}

type Handler func(payload string)
