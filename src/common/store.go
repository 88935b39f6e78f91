package common

import (
	"context"
	"errors"
	"log"
	"sync"
	"temanku/src/db"
	"temanku/src/lib"
	"temanku/src/models"
	"temanku/src/types"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaymentFields carries the payment sub-state written when the booker
// confirms a transfer.
type PaymentFields struct {
	Channel        types.PaymentChannel
	ProofURL       string
	TransferAmount *int64
	TransferredAt  *time.Time
}

type BookingFilter struct {
	TalentID uint
	BookerID uint
	Date     *time.Time
	Approval []types.ApprovalStatus
}

// BookingStore is the persistence adapter consumed by the lifecycle
// coordinator. Subscribe delivers every committed booking change so
// externally-applied approvals surface in near-real-time.
type BookingStore interface {
	CreateBooking(ctx context.Context, booking *models.Booking) (*models.Booking, error)
	UpdateBookingPayment(ctx context.Context, id uuid.UUID, fields PaymentFields) (*models.Booking, error)
	ListBookings(ctx context.Context, filter BookingFilter) ([]models.Booking, error)
	Subscribe(fn func(models.Booking)) func()
}

type changeBus struct {
	mu   sync.Mutex
	next int
	subs map[int]func(models.Booking)
}

func (c *changeBus) subscribe(fn func(models.Booking)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subs == nil {
		c.subs = map[int]func(models.Booking){}
	}
	id := c.next
	c.next++
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

func (c *changeBus) publish(booking models.Booking) {
	c.mu.Lock()
	fns := make([]func(models.Booking), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(booking)
	}
}

// GormBookingStore persists bookings through gorm and fans committed
// changes out to in-process subscribers and the bookings-changed topic.
type GormBookingStore struct {
	bus changeBus
}

var defaultStore *GormBookingStore
var defaultStoreOnce sync.Once

func GetBookingStore() *GormBookingStore {
	defaultStoreOnce.Do(func() {
		defaultStore = &GormBookingStore{}
	})
	return defaultStore
}

func (s *GormBookingStore) CreateBooking(ctx context.Context, booking *models.Booking) (*models.Booking, error) {
	d := db.GetDb()
	err := d.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(booking).Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		log.Printf("Error creating Booking for talent %d: %s\n", booking.TalentID, err.Error())
		return nil, err
	}
	s.NotifyChanged(*booking)
	return booking, nil
}

func (s *GormBookingStore) UpdateBookingPayment(ctx context.Context, id uuid.UUID, fields PaymentFields) (*models.Booking, error) {
	d := db.GetDb()
	var booking models.Booking
	err := d.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.
			Model(&models.Booking{}).
			Where(&models.Booking{ID: id}).
			First(&booking).
			Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookingNotFound
			}
			return err
		}
		updates := models.Booking{
			PaymentStatus:  types.PAYMENT_PAID,
			PaymentChannel: fields.Channel,
			ProofURL:       fields.ProofURL,
			TransferAmount: fields.TransferAmount,
			TransferredAt:  fields.TransferredAt,
		}
		err = tx.
			Model(&models.Booking{}).
			Where(&models.Booking{ID: id}).
			Updates(&updates).
			Error
		if err != nil {
			return err
		}
		booking.PaymentStatus = updates.PaymentStatus
		booking.PaymentChannel = updates.PaymentChannel
		booking.ProofURL = updates.ProofURL
		booking.TransferAmount = updates.TransferAmount
		booking.TransferredAt = updates.TransferredAt
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			return nil, err
		}
		log.Printf("Error updating payment for Booking [%s]: %s\n", id.String(), err.Error())
		return nil, err
	}
	s.NotifyChanged(booking)
	return &booking, nil
}

func (s *GormBookingStore) ListBookings(ctx context.Context, filter BookingFilter) ([]models.Booking, error) {
	d := db.GetDb()
	q := d.WithContext(ctx).Model(&models.Booking{})
	if filter.TalentID != 0 {
		q = q.Where("talent_id = ?", filter.TalentID)
	}
	if filter.BookerID != 0 {
		q = q.Where("booker_id = ?", filter.BookerID)
	}
	if filter.Date != nil {
		q = q.Where("date = ?", filter.Date.Format("2006-01-02"))
	}
	if len(filter.Approval) > 0 {
		q = q.Where("approval_status IN (?)", filter.Approval)
	}
	var bookings []models.Booking
	if err := q.Order("created_at DESC").Limit(100).Find(&bookings).Error; err != nil {
		log.Printf("Error listing bookings: %s\n", err.Error())
		return nil, err
	}
	return bookings, nil
}

func (s *GormBookingStore) Subscribe(fn func(models.Booking)) func() {
	return s.bus.subscribe(fn)
}

// NotifyChanged publishes a committed booking change to in-process
// subscribers and to the bookings-changed Kafka topic. Handlers that
// mutate approval status outside the store call this directly.
func (s *GormBookingStore) NotifyChanged(booking models.Booking) {
	s.bus.publish(booking)
	go func() {
		err := lib.KafkaProduceMessage("bookings_changed_producer", "bookings-changed", map[string]any{
			"id":              booking.ID.String(),
			"booker_id":       booking.BookerID,
			"talent_id":       booking.TalentID,
			"payment_status":  string(booking.PaymentStatus),
			"approval_status": string(booking.ApprovalStatus),
		})
		if err != nil {
			log.Printf("Error producing bookings-changed message: %s\n", err.Error())
		}
	}()
}
