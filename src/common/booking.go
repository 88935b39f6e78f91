package common

import (
	"context"
	"log"
	"strings"
	"sync"
	"temanku/src/models"
	"temanku/src/types"
	"temanku/src/utils"
	"time"
)

// Step numbers surfaced to the presentation layer.
const (
	StepDetails  = 1 // duration, purpose, meeting mode
	StepSchedule = 2 // date and start time
	StepPayment  = 3 // persisted, awaiting transfer proof
	StepApproval = 4 // proof attached, awaiting moderation
	StepDone     = 5 // approved, rejected or completed
)

// SessionContext identifies the acting booker. It is passed in at
// construction so the coordinator never reads ambient session state.
type SessionContext struct {
	BookerID uint
	Role     types.Role
}

// ChatBridge is notified once a booking reaches approved, unlocking
// message exchange for that booking id.
type ChatBridge interface {
	Activate(booking models.Booking) error
}

type draft struct {
	durationHours uint
	purpose       string
	customPurpose string
	mode          types.MeetingMode
	date          *time.Time
	startsAt      *time.Time
}

// Coordinator owns the lifecycle of a single booking between one booker
// and one talent: draft -> pending_payment -> pending_approval ->
// {approved, rejected}, with approved -> completed once the scheduled
// interval has elapsed. It is the single owner of canonical state;
// presentation layers are read-only observers.
type Coordinator struct {
	mu sync.Mutex

	store   BookingStore
	bridge  ChatBridge
	session SessionContext
	talent  models.Talent
	now     func() time.Time

	draft    draft
	booking  *models.Booking
	approved []models.Booking

	inflight    bool
	unsubscribe func()

	chatReady bool
}

type CoordinatorOption func(*Coordinator)

// WithClock injects the wall clock, used by tests.
func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) {
		c.now = now
	}
}

// NewCoordinator builds a coordinator for the (session, talent) pair and
// resumes the most recent qualifying booking if one is still active, so a
// returning booker lands on the step they left off instead of a new draft.
func NewCoordinator(ctx context.Context, store BookingStore, bridge ChatBridge, session SessionContext, talent models.Talent, opts ...CoordinatorOption) (*Coordinator, error) {
	c := &Coordinator{
		store:   store,
		bridge:  bridge,
		session: session,
		talent:  talent,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	existing, err := store.ListBookings(ctx, BookingFilter{
		TalentID: talent.ID,
		BookerID: session.BookerID,
	})
	if err != nil {
		return nil, &PersistenceError{Op: "resume", Err: err}
	}
	for i := range existing {
		b := existing[i]
		if b.Active(c.now()) {
			c.booking = &b
			break
		}
	}
	c.unsubscribe = store.Subscribe(c.handleChange)
	return c, nil
}

// Close releases the change subscription.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
}

func (c *Coordinator) SetDuration(hours uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft.durationHours = hours
}

func (c *Coordinator) SetPurpose(purpose, custom string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft.purpose = purpose
	c.draft.customPurpose = custom
}

func (c *Coordinator) SetMode(mode types.MeetingMode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft.mode = mode
}

// SetSchedule picks the date and start time and refreshes the approved
// set for that date; a stale cached set must never back a conflict check.
func (c *Coordinator) SetSchedule(ctx context.Context, date time.Time, startsAt time.Time) error {
	approved, err := c.store.ListBookings(ctx, BookingFilter{
		TalentID: c.talent.ID,
		Date:     &date,
		Approval: []types.ApprovalStatus{types.APPROVAL_APPROVED},
	})
	if err != nil {
		return &PersistenceError{Op: "list approved bookings", Err: err}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft.date = &date
	c.draft.startsAt = &startsAt
	c.approved = approved
	return nil
}

// TotalPrice derives the commercial total from the talent's hourly rate
// and the currently selected duration.
func (c *Coordinator) TotalPrice() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.booking != nil {
		return c.booking.TotalPrice
	}
	return c.talent.HourlyRate * int64(c.draft.durationHours)
}

// Step maps coordinator state onto the 1-5 flow position shown to users.
func (c *Coordinator) Step() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stepLocked()
}

func (c *Coordinator) stepLocked() int {
	if c.booking == nil {
		if c.draft.date == nil || c.draft.startsAt == nil {
			if c.draft.durationHours == 0 {
				return StepDetails
			}
			return StepSchedule
		}
		return StepSchedule
	}
	switch {
	case c.booking.ApprovalStatus == types.APPROVAL_APPROVED,
		c.booking.ApprovalStatus == types.APPROVAL_REJECTED,
		c.booking.ApprovalStatus == types.APPROVAL_COMPLETED:
		return StepDone
	case c.booking.PaymentStatus == types.PAYMENT_PAID:
		return StepApproval
	default:
		return StepPayment
	}
}

// StatusBadge is the human-readable label for the current state.
func (c *Coordinator) StatusBadge() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.booking == nil {
		return "Draft"
	}
	switch c.booking.ApprovalStatus {
	case types.APPROVAL_APPROVED:
		return "Disetujui"
	case types.APPROVAL_REJECTED:
		return "Ditolak"
	case types.APPROVAL_COMPLETED:
		return "Selesai"
	default:
		if c.booking.PaymentStatus == types.PAYMENT_PAID {
			return "Menunggu Persetujuan"
		}
		return "Menunggu Pembayaran"
	}
}

// Booking returns a snapshot of the persisted record, nil while still
// drafting. Change notifications mutate the internal record in place, so
// callers always get a detached copy they can read without the lock.
func (c *Coordinator) Booking() *models.Booking {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bookingLocked()
}

func (c *Coordinator) bookingLocked() *models.Booking {
	if c.booking == nil {
		return nil
	}
	b := *c.booking
	return &b
}

// ChatReady reports whether the approval signal has fired for this booking.
func (c *Coordinator) ChatReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chatReady
}

// SlotTaken re-checks the candidate schedule against the cached approved
// set. The set is refreshed by SetSchedule and by change notifications.
func (c *Coordinator) SlotTaken() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.draft.date == nil || c.draft.startsAt == nil || c.draft.durationHours == 0 {
		return false
	}
	return HasConflict(*c.draft.date, *c.draft.startsAt, c.draft.durationHours, c.approved)
}

func (c *Coordinator) validateDraftLocked() error {
	if c.draft.durationHours < 1 || c.draft.durationHours > 6 {
		return &ValidationError{Field: "duration", Reason: "must be between 1 and 6 hours"}
	}
	if strings.TrimSpace(c.draft.purpose) == "" {
		return &ValidationError{Field: "purpose", Reason: "is required"}
	}
	if c.draft.purpose == types.PURPOSE_OTHER && strings.TrimSpace(c.draft.customPurpose) == "" {
		return &ValidationError{Field: "custom_purpose", Reason: "is required when purpose is " + types.PURPOSE_OTHER}
	}
	if c.draft.mode != types.MODE_OFFLINE && c.draft.mode != types.MODE_ONLINE {
		return &ValidationError{Field: "mode", Reason: "must be offline or online"}
	}
	if c.draft.date == nil || c.draft.startsAt == nil {
		return &ValidationError{Field: "schedule", Reason: "date and start time must be chosen"}
	}
	return nil
}

// Confirm runs the draft -> pending_payment transition: validates the
// draft, re-fetches the approved set for a fresh conflict check, then
// persists the booking with payment pending and approval pending_approval.
// On a storage failure nothing is recorded and the state stays at draft.
func (c *Coordinator) Confirm(ctx context.Context, message string) (*models.Booking, error) {
	c.mu.Lock()
	if c.booking != nil {
		b := c.bookingLocked()
		c.mu.Unlock()
		return b, nil
	}
	if c.inflight {
		c.mu.Unlock()
		return nil, ErrOperationInFlight
	}
	if err := c.validateDraftLocked(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.inflight = true
	d := c.draft
	c.mu.Unlock()
	defer c.clearInflight()

	approved, err := c.store.ListBookings(ctx, BookingFilter{
		TalentID: c.talent.ID,
		Date:     d.date,
		Approval: []types.ApprovalStatus{types.APPROVAL_APPROVED},
	})
	if err != nil {
		return nil, &PersistenceError{Op: "conflict check", Err: err}
	}
	if HasConflict(*d.date, *d.startsAt, d.durationHours, approved) {
		c.mu.Lock()
		c.approved = approved
		c.mu.Unlock()
		return nil, ErrConflict
	}

	booking := models.Booking{
		BookerID:       c.session.BookerID,
		BookerRole:     c.session.Role,
		TalentID:       c.talent.ID,
		Date:           *d.date,
		StartsAt:       *d.startsAt,
		DurationHours:  d.durationHours,
		TotalPrice:     c.talent.HourlyRate * int64(d.durationHours),
		Purpose:        d.purpose,
		CustomPurpose:  d.customPurpose,
		Mode:           d.mode,
		PaymentStatus:  types.PAYMENT_PENDING,
		PaymentRef:     utils.PaymentReferenceCode(c.session.BookerID, c.talent.ID, *d.date, *d.startsAt),
		ApprovalStatus: types.APPROVAL_PENDING,
	}
	if message != "" {
		booking.ApprovalMessage = message
	}
	created, err := c.store.CreateBooking(ctx, &booking)
	if err != nil {
		return nil, &PersistenceError{Op: "create booking", Err: err}
	}
	c.mu.Lock()
	c.booking = created
	c.approved = approved
	out := c.bookingLocked()
	c.mu.Unlock()
	return out, nil
}

// ConfirmPayment runs pending_payment -> pending_approval: a channel must
// be selected and a non-empty proof attached before payment flips to paid.
// A second call while the first write is in flight is a no-op, and a
// remote approval observed meanwhile is never regressed.
func (c *Coordinator) ConfirmPayment(ctx context.Context, fields PaymentFields) (*models.Booking, error) {
	c.mu.Lock()
	if c.booking == nil {
		c.mu.Unlock()
		return nil, &ValidationError{Field: "booking", Reason: "no booking has been confirmed"}
	}
	if c.inflight {
		c.mu.Unlock()
		return nil, ErrOperationInFlight
	}
	if c.booking.PaymentStatus == types.PAYMENT_PAID {
		b := c.bookingLocked()
		c.mu.Unlock()
		return b, nil
	}
	if !fields.Channel.Valid() {
		c.mu.Unlock()
		return nil, &ValidationError{Field: "channel", Reason: "must be one of the supported payment channels"}
	}
	if strings.TrimSpace(fields.ProofURL) == "" {
		c.mu.Unlock()
		return nil, &ValidationError{Field: "proof", Reason: "proof of payment is required"}
	}
	id := c.booking.ID
	c.inflight = true
	c.mu.Unlock()
	defer c.clearInflight()

	updated, err := c.store.UpdateBookingPayment(ctx, id, fields)
	if err != nil {
		if err == ErrBookingNotFound {
			return nil, err
		}
		return nil, &PersistenceError{Op: "update payment", Err: err}
	}
	c.mu.Lock()
	c.applyLocked(*updated)
	b := c.bookingLocked()
	c.mu.Unlock()
	return b, nil
}

// RefreshApproved re-fetches the approved set for the drafted date, used
// after an external change notification for this talent.
func (c *Coordinator) RefreshApproved(ctx context.Context) error {
	c.mu.Lock()
	date := c.draft.date
	c.mu.Unlock()
	if date == nil {
		return nil
	}
	approved, err := c.store.ListBookings(ctx, BookingFilter{
		TalentID: c.talent.ID,
		Date:     date,
		Approval: []types.ApprovalStatus{types.APPROVAL_APPROVED},
	})
	if err != nil {
		return &PersistenceError{Op: "refresh approved bookings", Err: err}
	}
	c.mu.Lock()
	c.approved = approved
	c.mu.Unlock()
	return nil
}

// approvalRank orders lifecycle stages so stale or out-of-order change
// notifications can never move a booking backward. Approved and rejected
// share a rank on purpose: moderation is decided server-side, so between
// the two terminal decisions the latest notification wins, while completed
// still outranks both.
func approvalRank(b models.Booking) int {
	switch b.ApprovalStatus {
	case types.APPROVAL_APPROVED:
		return 2
	case types.APPROVAL_REJECTED:
		return 2
	case types.APPROVAL_COMPLETED:
		return 3
	default:
		if b.PaymentStatus == types.PAYMENT_PAID {
			return 1
		}
		return 0
	}
}

func (c *Coordinator) handleChange(changed models.Booking) {
	c.mu.Lock()
	if c.booking == nil || changed.ID != c.booking.ID {
		sameTalent := changed.TalentID == c.talent.ID
		c.mu.Unlock()
		if sameTalent {
			// Another booker's record moved; the approved set for the
			// drafted date may have changed under us.
			if err := c.RefreshApproved(context.Background()); err != nil {
				log.Printf("Error refreshing approved bookings for talent %d: %s\n", c.talent.ID, err.Error())
			}
		}
		return
	}
	activated := c.applyLocked(changed)
	booking := *c.booking
	c.mu.Unlock()
	if activated && c.bridge != nil {
		if err := c.bridge.Activate(booking); err != nil {
			log.Printf("Error activating chat for Booking [%s]: %s\n", booking.ID.String(), err.Error())
		}
	}
}

// applyLocked merges a changed record into local state, last-state-wins
// but never overwriting a more advanced stage with a less advanced one.
// Returns true when the change crossed into approved.
func (c *Coordinator) applyLocked(changed models.Booking) bool {
	if c.booking == nil {
		return false
	}
	if approvalRank(changed) < approvalRank(*c.booking) {
		return false
	}
	wasApproved := c.booking.ApprovalStatus == types.APPROVAL_APPROVED || c.booking.ApprovalStatus == types.APPROVAL_COMPLETED
	*c.booking = changed
	if changed.ApprovalStatus == types.APPROVAL_APPROVED && !wasApproved {
		c.chatReady = true
		return true
	}
	return false
}

func (c *Coordinator) clearInflight() {
	c.mu.Lock()
	c.inflight = false
	c.mu.Unlock()
}

// CompleteIfDue runs the time-triggered approved -> completed transition.
// It is a no-op before the interval end or in any other stage.
func (c *Coordinator) CompleteIfDue() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.booking == nil || c.booking.ApprovalStatus != types.APPROVAL_APPROVED {
		return false
	}
	if c.now().Before(c.booking.EndsAt()) {
		return false
	}
	c.booking.ApprovalStatus = types.APPROVAL_COMPLETED
	return true
}

// RatingEligible reports whether a post-completion rating may be left.
func (c *Coordinator) RatingEligible() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.booking != nil && c.booking.ApprovalStatus == types.APPROVAL_COMPLETED
}
