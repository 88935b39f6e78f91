package common

import (
	"encoding/json"
	"log"
	"temanku/src/db"
	awslib "temanku/src/lib/aws"
	"temanku/src/models"
	"temanku/src/types"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"gorm.io/gorm"
)

// BookingsToCompleteConsumer drains the queue fed by the completion
// scheduler. Each message names a booking whose scheduled interval has
// ended; approved bookings flip to completed, everything else is left
// alone (a rejected or still-unpaid booking never completes).
func BookingsToCompleteConsumer() {
	qname := "BookingsToComplete"
	log.Printf("%s: Listening for messages...", qname)
	c := awslib.NewSQSConsumer(qname, HandleCompletionMessage)
	c.Listen()
}

// HandleCompletionMessage processes one completion message, either the raw
// payload or an SNS envelope wrapping it.
func HandleCompletionMessage(body string) {
	if !gjson.Valid(body) {
		log.Println("[BookingsToComplete]: Received invalid json body. Aborting")
		return
	}
	var payload types.JSONB
	err := json.Unmarshal([]byte(body), &payload)
	if err != nil {
		log.Printf("Error deserializing JSON: %s\n", err.Error())
		return
	}
	message, ok := payload["Message"].(string)
	if !ok {
		message = body
	}
	id := gjson.Get(message, "id").String()
	bookingID, err := uuid.Parse(id)
	if err != nil {
		log.Printf("[BookingsToComplete]: invalid booking id %q: %s\n", id, err.Error())
		return
	}
	payloadId := gjson.Get(message, "payloadId").String()
	go CompleteBooking(bookingID)
	go markJobDone(payloadId)
}

// CompleteBooking applies the time-triggered approved -> completed
// transition if the interval end has passed.
func CompleteBooking(bookingID uuid.UUID) {
	d := db.GetDb()
	var completed *models.Booking
	err := d.Transaction(func(tx *gorm.DB) error {
		var booking models.Booking
		err := tx.
			Where(&models.Booking{ID: bookingID}).
			First(&booking).
			Error
		if err != nil {
			return err
		}
		if booking.ApprovalStatus != types.APPROVAL_APPROVED {
			return nil
		}
		if time.Now().Before(booking.EndsAt()) {
			return nil
		}
		err = tx.
			Model(&models.Booking{}).
			Where(&models.Booking{ID: bookingID}).
			Update("approval_status", types.APPROVAL_COMPLETED).
			Error
		if err != nil {
			return err
		}
		booking.ApprovalStatus = types.APPROVAL_COMPLETED
		completed = &booking
		return nil
	})
	if err != nil {
		log.Printf("Error completing Booking [%s]: %s\n", bookingID.String(), err.Error())
		return
	}
	if completed != nil {
		GetBookingStore().NotifyChanged(*completed)
	}
}

func markJobDone(payloadId string) {
	if payloadId == "" {
		return
	}
	d := db.GetDb()
	err := d.Transaction(func(tx *gorm.DB) error {
		return tx.
			Where(&models.JobTask{PayloadID: payloadId}).
			Updates(&models.JobTask{Status: "done"}).
			Error
	})
	if err != nil {
		log.Printf("Error updating job status: %s\n", err.Error())
	}
}

// ScheduleCompletion enqueues the one-time job that completes an approved
// booking once its interval ends.
func ScheduleCompletion(booking models.Booking) {
	runsAt := booking.EndsAt().UTC()
	jobTaskID := uuid.New()
	payloadId := jobTaskID.String()
	jobTask := models.JobTask{
		Name:    "Booking_" + booking.ID.String() + "_Complete",
		JobType: "OneTimeJobStartDateTime",
		RunsAt:  runsAt,
		HandlerParams: []any{
			booking.ID.String(),
		},
		PayloadID: payloadId,
		Payload: map[string]any{
			"payloadId":        payloadId,
			"id":               booking.ID.String(),
			"producerClientId": "BookingsToCompleteProducer",
			"topic":            "BookingsToComplete",
			"table":            "bookings",
		},
		Source:     "Bookings",
		SourceType: "table",
		Topic:      "BookingsToComplete",
	}
	id, err := jobTask.CreateAndEnqueueJobTask(jobTask)
	if err != nil {
		log.Printf("Error creating job for Booking: id=%s error=%s\n", booking.ID.String(), err.Error())
		return
	}
	log.Printf("Created job for Booking[%s] with ID %s\n", booking.ID.String(), id)
}
