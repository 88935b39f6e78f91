package common

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"temanku/src/db"
	"temanku/src/lib"
	"temanku/src/lib/mailer"
	"temanku/src/models"

	"firebase.google.com/go/v4/messaging"
	"gorm.io/gorm"
)

// ChatActivationBridge unlocks the chat channel between booker and talent
// once their booking is approved, and tells both parties about it.
type ChatActivationBridge struct{}

func NewChatActivationBridge() *ChatActivationBridge {
	return &ChatActivationBridge{}
}

// Activate creates (or re-activates) the channel for the booking id.
// Repeated activation for the same booking is a no-op.
func (br *ChatActivationBridge) Activate(booking models.Booking) error {
	d := db.GetDb()
	err := d.Transaction(func(tx *gorm.DB) error {
		var existing models.ChatChannel
		err := tx.
			Model(&models.ChatChannel{}).
			Where(&models.ChatChannel{BookingID: booking.ID}).
			First(&existing).
			Error
		if err == nil {
			if existing.Active {
				return nil
			}
			return tx.
				Model(&models.ChatChannel{}).
				Where(&models.ChatChannel{ID: existing.ID}).
				Update("active", true).
				Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		channel := models.ChatChannel{
			BookingID: booking.ID,
			BookerID:  booking.BookerID,
			TalentID:  booking.TalentID,
			Active:    true,
		}
		return tx.Create(&channel).Error
	})
	if err != nil {
		log.Printf("Error unlocking chat for Booking [%s]: %s\n", booking.ID.String(), err.Error())
		return err
	}
	go br.notifyBooker(booking)
	return nil
}

func (br *ChatActivationBridge) notifyBooker(booking models.Booking) {
	d := db.GetDb()
	var booker models.User
	if err := d.
		Model(&models.User{}).
		Where(&models.User{ID: booking.BookerID}).
		First(&booker).
		Error; err != nil {
		log.Printf("Could not load booker %d for notification: %s\n", booking.BookerID, err.Error())
		return
	}
	if booker.FCMToken != nil {
		msg, err := lib.GetFirebaseMessaging()
		if err == nil {
			_, err = msg.Send(context.Background(), &messaging.Message{
				Token: *booker.FCMToken,
				Notification: &messaging.Notification{
					Title: "Booking disetujui",
					Body:  "Chat kamu sekarang tersedia",
				},
				Data: map[string]string{
					"booking_id": booking.ID.String(),
				},
			})
			if err != nil {
				log.Printf("Error sending push notification: %s\n", err.Error())
			}
		}
	}
	if booker.Email != "" {
		from := os.Getenv("MAIL_FROM")
		err := mailer.NewMailerMessage(&lib.SendMailInput{
			From:     from,
			FromName: "Temanku",
			To:       []string{booker.Email},
			Subject:  "Booking kamu sudah disetujui",
			Body:     fmt.Sprintf("Booking %s disetujui. Chat dengan talent sekarang tersedia.", booking.ID.String()),
		})
		if err != nil {
			log.Printf("Error queueing approval email: %s\n", err.Error())
		}
	}
}
