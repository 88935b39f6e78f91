package main

import (
	"fmt"
	"log"
	"net/http"
	"temanku/src/db"
	"temanku/src/models"
	"temanku/src/types"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// activeChannel loads the chat channel for a booking and verifies the
// caller is one of its two participants. Messages only flow through a
// channel that has been activated by an approval.
func activeChannel(ctx *gin.Context, bookingId uuid.UUID) (*models.ChatChannel, error) {
	userId := ctx.GetUint("id")
	d := db.GetDb()
	var channel models.ChatChannel
	if err := d.
		Model(&models.ChatChannel{}).
		Where(&models.ChatChannel{BookingID: bookingId}).
		First(&channel).
		Error; err != nil {
		return nil, err
	}
	if !channel.Active {
		return nil, fmt.Errorf("chat for booking [%s] is not active", bookingId.String())
	}
	var talent models.Talent
	if err := d.
		Model(&models.Talent{}).
		Where(&models.Talent{ID: channel.TalentID}).
		First(&talent).
		Error; err != nil {
		return nil, err
	}
	if channel.BookerID != userId && talent.OwnerID != userId {
		return nil, fmt.Errorf("user [%d] is not a participant", userId)
	}
	return &channel, nil
}

func chatHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/bookings/:id/chat", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			channel, err := activeChannel(ctx, uuid.MustParse(params.ID))
			if err != nil {
				ctx.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
				return
			}
			d := db.GetDb()
			var messages []models.ChatMessage
			if err := d.
				Model(&models.ChatMessage{}).
				Where(&models.ChatMessage{ChannelID: channel.ID}).
				Order("created_at asc").
				Limit(500).
				Find(&messages).
				Error; err != nil {
				log.Printf("Error retrieving messages for channel [%d]: %s\n", channel.ID, err.Error())
				ctx.Status(http.StatusBadRequest)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": messages, "count": len(messages)})
		}).
		POST("/bookings/:id/chat", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			var body types.SendMessageRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			channel, err := activeChannel(ctx, uuid.MustParse(params.ID))
			if err != nil {
				ctx.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
				return
			}
			message := models.ChatMessage{
				ChannelID: channel.ID,
				SenderID:  ctx.GetUint("id"),
				Body:      body.Body,
			}
			d := db.GetDb()
			err = d.Transaction(func(tx *gorm.DB) error {
				return tx.Create(&message).Error
			})
			if err != nil {
				log.Printf("Error saving message for channel [%d]: %s\n", channel.ID, err.Error())
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": message})
		})
	return g
}
