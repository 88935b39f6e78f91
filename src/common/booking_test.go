package common

import (
	"context"
	"sync"
	"temanku/src/models"
	"temanku/src/types"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

// fakeStore is an in-memory BookingStore so coordinator behavior can be
// exercised without a database.
type fakeStore struct {
	mu       sync.Mutex
	bus      changeBus
	bookings []models.Booking

	createCalls int
	updateCalls int
	createErr   error

	updateStarted chan struct{}
	updateRelease chan struct{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{}
}

func (s *fakeStore) CreateBooking(ctx context.Context, booking *models.Booking) (*models.Booking, error) {
	s.mu.Lock()
	s.createCalls++
	if s.createErr != nil {
		err := s.createErr
		s.mu.Unlock()
		return nil, err
	}
	booking.ID = uuid.New()
	s.bookings = append(s.bookings, *booking)
	b := *booking
	s.mu.Unlock()
	s.bus.publish(b)
	return &b, nil
}

func (s *fakeStore) UpdateBookingPayment(ctx context.Context, id uuid.UUID, fields PaymentFields) (*models.Booking, error) {
	if s.updateStarted != nil {
		close(s.updateStarted)
		s.updateStarted = nil
		<-s.updateRelease
	}
	s.mu.Lock()
	s.updateCalls++
	for i := range s.bookings {
		if s.bookings[i].ID == id {
			s.bookings[i].PaymentStatus = types.PAYMENT_PAID
			s.bookings[i].PaymentChannel = fields.Channel
			s.bookings[i].ProofURL = fields.ProofURL
			s.bookings[i].TransferAmount = fields.TransferAmount
			s.bookings[i].TransferredAt = fields.TransferredAt
			b := s.bookings[i]
			s.mu.Unlock()
			s.bus.publish(b)
			return &b, nil
		}
	}
	s.mu.Unlock()
	return nil, ErrBookingNotFound
}

func (s *fakeStore) ListBookings(ctx context.Context, filter BookingFilter) ([]models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Booking
	for _, b := range s.bookings {
		if filter.TalentID != 0 && b.TalentID != filter.TalentID {
			continue
		}
		if filter.BookerID != 0 && b.BookerID != filter.BookerID {
			continue
		}
		if filter.Date != nil && !sameDay(*filter.Date, b.Date) {
			continue
		}
		if len(filter.Approval) > 0 && !containsStatus(filter.Approval, b.ApprovalStatus) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *fakeStore) Subscribe(fn func(models.Booking)) func() {
	return s.bus.subscribe(fn)
}

func (s *fakeStore) emit(b models.Booking) {
	s.bus.publish(b)
}

func (s *fakeStore) seed(b models.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookings = append(s.bookings, b)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func containsStatus(set []types.ApprovalStatus, status types.ApprovalStatus) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}

type fakeBridge struct {
	mu          sync.Mutex
	activations []models.Booking
}

func (b *fakeBridge) Activate(booking models.Booking) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.activations = append(b.activations, booking)
	return nil
}

func (b *fakeBridge) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.activations)
}

type CoordinatorSuite struct {
	suite.Suite
	store  *fakeStore
	bridge *fakeBridge
	talent models.Talent
	now    time.Time
}

func (s *CoordinatorSuite) SetupTest() {
	s.store = newFakeStore()
	s.bridge = &fakeBridge{}
	s.talent = models.Talent{
		ID:         7,
		Name:       "Sarah",
		HourlyRate: 100000,
	}
	s.now = time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
}

func (s *CoordinatorSuite) newCoordinator() *Coordinator {
	c, err := NewCoordinator(
		context.Background(),
		s.store,
		s.bridge,
		SessionContext{BookerID: 42, Role: types.ROLE_USER},
		s.talent,
		WithClock(func() time.Time { return s.now }),
	)
	s.Require().Nil(err)
	return c
}

func (s *CoordinatorSuite) fillDraft(c *Coordinator) {
	date := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)
	startsAt := time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC)
	c.SetDuration(2)
	c.SetPurpose(types.PURPOSE_NGOBROL, "")
	c.SetMode(types.MODE_OFFLINE)
	err := c.SetSchedule(context.Background(), date, startsAt)
	s.Require().Nil(err)
}

func (s *CoordinatorSuite) TestFullFlow() {
	c := s.newCoordinator()
	defer c.Close()

	s.Equal(StepDetails, c.Step())
	s.Equal("Draft", c.StatusBadge())

	s.fillDraft(c)
	s.Equal(int64(200000), c.TotalPrice())
	c.SetDuration(3)
	s.Equal(int64(300000), c.TotalPrice(), "price follows duration changes")
	c.SetDuration(2)
	s.False(c.SlotTaken())

	booking, err := c.Confirm(context.Background(), "Halo!")
	s.Require().Nil(err)
	s.Require().NotNil(booking)
	s.Equal(StepPayment, c.Step())
	s.Equal("Menunggu Pembayaran", c.StatusBadge())
	s.Equal(types.PAYMENT_PENDING, booking.PaymentStatus)
	s.Equal(types.APPROVAL_PENDING, booking.ApprovalStatus)
	s.NotEmpty(booking.PaymentRef)
	s.Equal(1, s.store.createCalls)

	updated, err := c.ConfirmPayment(context.Background(), PaymentFields{
		Channel:  types.CHANNEL_BANK_TRANSFER,
		ProofURL: "https://bucket/proofs/abc.jpg",
	})
	s.Require().Nil(err)
	s.Equal(types.PAYMENT_PAID, updated.PaymentStatus)
	s.Equal(StepApproval, c.Step())
	s.Equal("Menunggu Persetujuan", c.StatusBadge())

	// Moderation happens elsewhere; the change arrives by notification.
	approved := *updated
	approved.ApprovalStatus = types.APPROVAL_APPROVED
	s.store.emit(approved)

	s.Equal(StepDone, c.Step())
	s.Equal("Disetujui", c.StatusBadge())
	s.True(c.ChatReady())
	s.Equal(1, s.bridge.count())

	// A repeated notification never re-activates the chat.
	s.store.emit(approved)
	s.Equal(1, s.bridge.count())
}

func (s *CoordinatorSuite) TestConfirmValidation() {
	c := s.newCoordinator()
	defer c.Close()

	_, err := c.Confirm(context.Background(), "")
	var verr *ValidationError
	s.Require().ErrorAs(err, &verr)
	s.Equal("duration", verr.Field)

	c.SetDuration(7)
	_, err = c.Confirm(context.Background(), "")
	s.Require().ErrorAs(err, &verr)
	s.Equal("duration", verr.Field)

	c.SetDuration(2)
	_, err = c.Confirm(context.Background(), "")
	s.Require().ErrorAs(err, &verr)
	s.Equal("purpose", verr.Field)

	c.SetPurpose(types.PURPOSE_OTHER, "")
	_, err = c.Confirm(context.Background(), "")
	s.Require().ErrorAs(err, &verr)
	s.Equal("custom_purpose", verr.Field)

	c.SetPurpose(types.PURPOSE_OTHER, "Belajar bareng")
	_, err = c.Confirm(context.Background(), "")
	s.Require().ErrorAs(err, &verr)
	s.Equal("mode", verr.Field)

	c.SetMode(types.MODE_ONLINE)
	_, err = c.Confirm(context.Background(), "")
	s.Require().ErrorAs(err, &verr)
	s.Equal("schedule", verr.Field)

	s.Equal(0, s.store.createCalls)
}

func (s *CoordinatorSuite) TestConfirmConflict() {
	date := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)
	s.store.seed(models.Booking{
		ID:             uuid.New(),
		BookerID:       99,
		TalentID:       s.talent.ID,
		Date:           date,
		StartsAt:       time.Date(2026, 9, 2, 11, 0, 0, 0, time.UTC),
		DurationHours:  2,
		PaymentStatus:  types.PAYMENT_PAID,
		ApprovalStatus: types.APPROVAL_APPROVED,
	})

	c := s.newCoordinator()
	defer c.Close()
	s.fillDraft(c)
	s.True(c.SlotTaken())

	_, err := c.Confirm(context.Background(), "")
	s.Require().ErrorIs(err, ErrConflict)
	s.Equal(0, s.store.createCalls)
	s.Nil(c.Booking())
}

func (s *CoordinatorSuite) TestConfirmIsIdempotent() {
	c := s.newCoordinator()
	defer c.Close()
	s.fillDraft(c)

	first, err := c.Confirm(context.Background(), "")
	s.Require().Nil(err)
	second, err := c.Confirm(context.Background(), "")
	s.Require().Nil(err)
	s.Equal(first.ID, second.ID)
	s.Equal(1, s.store.createCalls)
}

func (s *CoordinatorSuite) TestConfirmPaymentValidation() {
	c := s.newCoordinator()
	defer c.Close()

	_, err := c.ConfirmPayment(context.Background(), PaymentFields{})
	var verr *ValidationError
	s.Require().ErrorAs(err, &verr)
	s.Equal("booking", verr.Field)

	s.fillDraft(c)
	_, err = c.Confirm(context.Background(), "")
	s.Require().Nil(err)

	_, err = c.ConfirmPayment(context.Background(), PaymentFields{Channel: "paypal", ProofURL: "x"})
	s.Require().ErrorAs(err, &verr)
	s.Equal("channel", verr.Field)

	_, err = c.ConfirmPayment(context.Background(), PaymentFields{Channel: types.CHANNEL_QRIS, ProofURL: "  "})
	s.Require().ErrorAs(err, &verr)
	s.Equal("proof", verr.Field)

	s.Equal(0, s.store.updateCalls)
}

func (s *CoordinatorSuite) TestConfirmPaymentIdempotent() {
	c := s.newCoordinator()
	defer c.Close()
	s.fillDraft(c)
	_, err := c.Confirm(context.Background(), "")
	s.Require().Nil(err)

	fields := PaymentFields{Channel: types.CHANNEL_GOPAY, ProofURL: "https://bucket/p.jpg"}
	_, err = c.ConfirmPayment(context.Background(), fields)
	s.Require().Nil(err)
	_, err = c.ConfirmPayment(context.Background(), fields)
	s.Require().Nil(err)
	s.Equal(1, s.store.updateCalls)
}

func (s *CoordinatorSuite) TestConfirmPaymentInFlight() {
	c := s.newCoordinator()
	defer c.Close()
	s.fillDraft(c)
	_, err := c.Confirm(context.Background(), "")
	s.Require().Nil(err)

	started := make(chan struct{})
	release := make(chan struct{})
	s.store.updateStarted = started
	s.store.updateRelease = release

	done := make(chan error, 1)
	go func() {
		_, err := c.ConfirmPayment(context.Background(), PaymentFields{
			Channel:  types.CHANNEL_DANA,
			ProofURL: "https://bucket/p.jpg",
		})
		done <- err
	}()
	<-started

	_, err = c.ConfirmPayment(context.Background(), PaymentFields{
		Channel:  types.CHANNEL_DANA,
		ProofURL: "https://bucket/p.jpg",
	})
	s.Require().ErrorIs(err, ErrOperationInFlight)

	close(release)
	s.Require().Nil(<-done)
	s.Equal(1, s.store.updateCalls)
}

func (s *CoordinatorSuite) TestStaleChangeNeverRegresses() {
	c := s.newCoordinator()
	defer c.Close()
	s.fillDraft(c)
	booking, err := c.Confirm(context.Background(), "")
	s.Require().Nil(err)
	_, err = c.ConfirmPayment(context.Background(), PaymentFields{
		Channel:  types.CHANNEL_OVO,
		ProofURL: "https://bucket/p.jpg",
	})
	s.Require().Nil(err)

	approved := *booking
	approved.PaymentStatus = types.PAYMENT_PAID
	approved.ApprovalStatus = types.APPROVAL_APPROVED
	s.store.emit(approved)
	s.Equal(StepDone, c.Step())

	// A stale pending_payment snapshot arrives out of order.
	stale := *booking
	stale.PaymentStatus = types.PAYMENT_PENDING
	stale.ApprovalStatus = types.APPROVAL_PENDING
	s.store.emit(stale)

	s.Equal(StepDone, c.Step())
	s.Equal("Disetujui", c.StatusBadge())
}

func (s *CoordinatorSuite) TestBookingSnapshotDetached() {
	c := s.newCoordinator()
	defer c.Close()
	s.fillDraft(c)
	booking, err := c.Confirm(context.Background(), "")
	s.Require().Nil(err)

	snapshot := c.Booking()
	s.Require().NotNil(snapshot)
	s.NotSame(snapshot, c.Booking())

	// A change notification lands while the caller still holds the records
	// it was handed; those must keep the state they were taken at.
	approved := *booking
	approved.PaymentStatus = types.PAYMENT_PAID
	approved.ApprovalStatus = types.APPROVAL_APPROVED
	s.store.emit(approved)

	s.Equal(types.APPROVAL_PENDING, booking.ApprovalStatus)
	s.Equal(types.APPROVAL_PENDING, snapshot.ApprovalStatus)
	s.Equal(types.APPROVAL_APPROVED, c.Booking().ApprovalStatus)
}

func (s *CoordinatorSuite) TestTerminalDecisionFollowsServer() {
	c := s.newCoordinator()
	defer c.Close()
	s.fillDraft(c)
	booking, err := c.Confirm(context.Background(), "")
	s.Require().Nil(err)
	_, err = c.ConfirmPayment(context.Background(), PaymentFields{
		Channel:  types.CHANNEL_QRIS,
		ProofURL: "https://bucket/p.jpg",
	})
	s.Require().Nil(err)

	approved := *booking
	approved.PaymentStatus = types.PAYMENT_PAID
	approved.ApprovalStatus = types.APPROVAL_APPROVED
	s.store.emit(approved)
	s.Equal("Disetujui", c.StatusBadge())

	// Moderation is server-side authoritative, so a later terminal
	// decision replaces the one seen before it.
	rejected := approved
	rejected.ApprovalStatus = types.APPROVAL_REJECTED
	s.store.emit(rejected)
	s.Equal("Ditolak", c.StatusBadge())

	completed := approved
	completed.ApprovalStatus = types.APPROVAL_COMPLETED
	s.store.emit(completed)
	s.Equal("Selesai", c.StatusBadge())

	// Completed outranks both terminal decisions.
	s.store.emit(rejected)
	s.Equal("Selesai", c.StatusBadge())
}

func (s *CoordinatorSuite) TestOtherBookingChangeRefreshesApproved() {
	c := s.newCoordinator()
	defer c.Close()
	s.fillDraft(c)
	s.False(c.SlotTaken())

	// Someone else's booking on the same talent and date gets approved.
	other := models.Booking{
		ID:             uuid.New(),
		BookerID:       99,
		TalentID:       s.talent.ID,
		Date:           time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC),
		StartsAt:       time.Date(2026, 9, 2, 11, 0, 0, 0, time.UTC),
		DurationHours:  2,
		PaymentStatus:  types.PAYMENT_PAID,
		ApprovalStatus: types.APPROVAL_APPROVED,
	}
	s.store.seed(other)
	s.store.emit(other)

	s.True(c.SlotTaken())
	_, err := c.Confirm(context.Background(), "")
	s.Require().ErrorIs(err, ErrConflict)
}

func (s *CoordinatorSuite) TestResumeActiveBooking() {
	date := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)
	s.store.seed(models.Booking{
		ID:             uuid.New(),
		BookerID:       42,
		TalentID:       s.talent.ID,
		Date:           date,
		StartsAt:       time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC),
		DurationHours:  2,
		TotalPrice:     200000,
		PaymentStatus:  types.PAYMENT_PENDING,
		ApprovalStatus: types.APPROVAL_PENDING,
	})

	c := s.newCoordinator()
	defer c.Close()
	s.Require().NotNil(c.Booking())
	s.Equal(StepPayment, c.Step())
	s.Equal(int64(200000), c.TotalPrice())
}

func (s *CoordinatorSuite) TestRejectedBookingNotResumed() {
	date := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	s.store.seed(models.Booking{
		ID:             uuid.New(),
		BookerID:       42,
		TalentID:       s.talent.ID,
		Date:           date,
		StartsAt:       time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC),
		DurationHours:  2,
		PaymentStatus:  types.PAYMENT_PAID,
		ApprovalStatus: types.APPROVAL_REJECTED,
	})

	c := s.newCoordinator()
	defer c.Close()
	s.Nil(c.Booking())
	s.Equal(StepDetails, c.Step())
}

func (s *CoordinatorSuite) TestCompleteIfDue() {
	date := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)
	s.store.seed(models.Booking{
		ID:             uuid.New(),
		BookerID:       42,
		TalentID:       s.talent.ID,
		Date:           date,
		StartsAt:       time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC),
		DurationHours:  2,
		PaymentStatus:  types.PAYMENT_PAID,
		ApprovalStatus: types.APPROVAL_APPROVED,
	})

	c := s.newCoordinator()
	defer c.Close()
	s.Require().NotNil(c.Booking())
	s.False(c.RatingEligible())

	s.False(c.CompleteIfDue(), "interval end has not passed yet")

	s.now = time.Date(2026, 9, 2, 12, 0, 0, 0, time.UTC)
	s.True(c.CompleteIfDue())
	s.Equal("Selesai", c.StatusBadge())
	s.True(c.RatingEligible())
	s.False(c.CompleteIfDue(), "already completed")
}

func TestCoordinatorSuite(t *testing.T) {
	suite.Run(t, new(CoordinatorSuite))
}
