package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"temanku/src/common"
	"temanku/src/db"
	"temanku/src/models"
	"temanku/src/types"
	"temanku/src/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Coordinators live for the duration of a booking flow, one per
// (booker, talent) pair, so the step machine survives across requests.
var coordinators sync.Map

func coordinatorKey(bookerId uint, talentId uint) string {
	return fmt.Sprintf("%d:%d", bookerId, talentId)
}

func getCoordinator(ctx *gin.Context, talent models.Talent) (*common.Coordinator, error) {
	bookerId := ctx.GetUint("id")
	key := coordinatorKey(bookerId, talent.ID)
	if v, ok := coordinators.Load(key); ok {
		return v.(*common.Coordinator), nil
	}
	session := common.SessionContext{
		BookerID: bookerId,
		Role:     types.Role(ctx.GetString("role")),
	}
	c, err := common.NewCoordinator(
		ctx.Request.Context(),
		common.GetBookingStore(),
		common.NewChatActivationBridge(),
		session,
		talent,
	)
	if err != nil {
		return nil, err
	}
	actual, loaded := coordinators.LoadOrStore(key, c)
	if loaded {
		c.Close()
	}
	return actual.(*common.Coordinator), nil
}

func dropCoordinator(bookerId uint, talentId uint) {
	key := coordinatorKey(bookerId, talentId)
	if v, ok := coordinators.LoadAndDelete(key); ok {
		v.(*common.Coordinator).Close()
	}
}

func flowState(c *common.Coordinator) gin.H {
	return gin.H{
		"step":       c.Step(),
		"badge":      c.StatusBadge(),
		"price":      c.TotalPrice(),
		"slot_taken": c.SlotTaken(),
		"chat_ready": c.ChatReady(),
		"booking":    c.Booking(),
	}
}

func bookingStatusCode(err error) int {
	var verr *common.ValidationError
	switch {
	case errors.Is(err, common.ErrConflict), errors.Is(err, common.ErrOperationInFlight):
		return http.StatusConflict
	case errors.Is(err, common.ErrBookingNotFound):
		return http.StatusNotFound
	case errors.As(err, &verr):
		return http.StatusBadRequest
	default:
		return http.StatusUnprocessableEntity
	}
}

func bookingHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/bookings", func(ctx *gin.Context) {
			var body types.CreateBookingRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			db := db.GetDb()
			var talent models.Talent
			if err := db.
				Model(&models.Talent{}).
				Where(&models.Talent{ID: body.TalentID, Status: types.TALENT_ACTIVE}).
				First(&talent).
				Error; err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			date, startsAt, err := utils.ParseSchedule(body.Date, body.StartTime)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c, err := getCoordinator(ctx, talent)
			if err != nil {
				log.Printf("Error resuming booking flow: %s\n", err.Error())
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			c.SetDuration(body.DurationHours)
			c.SetPurpose(body.Purpose, body.CustomPurpose)
			c.SetMode(types.MeetingMode(body.Mode))
			if err := c.SetSchedule(ctx.Request.Context(), date, startsAt); err != nil {
				log.Printf("Error checking schedule: %s\n", err.Error())
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			booking, err := c.Confirm(ctx.Request.Context(), body.Message)
			if err != nil {
				ctx.JSON(bookingStatusCode(err), gin.H{"error": err.Error(), "state": flowState(c)})
				return
			}
			utils.RecordPaymentReference(booking.PaymentRef, booking.ID.String())
			ctx.JSON(http.StatusCreated, gin.H{"data": booking, "state": flowState(c)})
		}).
		GET("/bookings", func(ctx *gin.Context) {
			bookerId := ctx.GetUint("id")
			bookings, err := common.GetBookingStore().ListBookings(ctx.Request.Context(), common.BookingFilter{
				BookerID: bookerId,
			})
			if err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": bookings, "count": len(bookings)})
		}).
		DELETE("/bookings/active", func(ctx *gin.Context) {
			var query types.ActiveBookingQuery
			if err := ctx.BindQuery(&query); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			dropCoordinator(ctx.GetUint("id"), query.TalentID)
			ctx.Status(http.StatusNoContent)
		}).
		GET("/bookings/active", func(ctx *gin.Context) {
			var query types.ActiveBookingQuery
			if err := ctx.BindQuery(&query); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			db := db.GetDb()
			var talent models.Talent
			if err := db.
				Model(&models.Talent{}).
				Where(&models.Talent{ID: query.TalentID}).
				First(&talent).
				Error; err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c, err := getCoordinator(ctx, talent)
			if err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": flowState(c)})
		}).
		GET("/bookings/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			bookerId := ctx.GetUint("id")
			db := db.GetDb()
			var booking models.Booking
			if err := db.
				Model(&models.Booking{}).
				Where("id = ?", params.ID).
				Where(&models.Booking{BookerID: bookerId}).
				Preload("Talent").
				First(&booking).
				Error; err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": booking})
		}).
		POST("/bookings/:id/payment", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			var body types.ConfirmPaymentRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			bookerId := ctx.GetUint("id")
			db := db.GetDb()
			var booking models.Booking
			if err := db.
				Model(&models.Booking{}).
				Where("id = ?", params.ID).
				Where(&models.Booking{BookerID: bookerId}).
				Preload("Talent").
				First(&booking).
				Error; err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c, err := getCoordinator(ctx, *booking.Talent)
			if err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			fields := common.PaymentFields{
				Channel:        types.PaymentChannel(body.Channel),
				ProofURL:       body.ProofURL,
				TransferAmount: body.TransferAmount,
			}
			if body.TransferredAt != "" {
				transferredAt, err := utils.ParseTimestamp(body.TransferredAt)
				if err != nil {
					ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
					return
				}
				fields.TransferredAt = &transferredAt
			}
			updated, err := c.ConfirmPayment(ctx.Request.Context(), fields)
			if err != nil {
				ctx.JSON(bookingStatusCode(err), gin.H{"error": err.Error(), "state": flowState(c)})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": updated, "state": flowState(c)})
		}).
		POST("/bookings/:id/rating", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			var body types.RateBookingRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			bookerId := ctx.GetUint("id")
			bookingId := uuid.MustParse(params.ID)
			db := db.GetDb()
			err := db.Transaction(func(tx *gorm.DB) error {
				var booking models.Booking
				if err := tx.
					Model(&models.Booking{}).
					Where(&models.Booking{ID: bookingId, BookerID: bookerId}).
					First(&booking).
					Error; err != nil {
					return err
				}
				if booking.ApprovalStatus != types.APPROVAL_COMPLETED {
					return fmt.Errorf("booking [%s] is not completed", params.ID)
				}
				if booking.Rating != nil {
					return fmt.Errorf("booking [%s] has already been rated", params.ID)
				}
				if err := tx.
					Model(&models.Booking{}).
					Where(&models.Booking{ID: bookingId}).
					Updates(&models.Booking{Rating: &body.Rating, RatingComment: body.Comment}).
					Error; err != nil {
					return err
				}
				var talent models.Talent
				if err := tx.
					Model(&models.Talent{}).
					Where(&models.Talent{ID: booking.TalentID}).
					First(&talent).
					Error; err != nil {
					return err
				}
				rated := talent.RatedCount + 1
				rating := (talent.Rating*float32(talent.RatedCount) + float32(body.Rating)) / float32(rated)
				return tx.
					Model(&models.Talent{}).
					Where(&models.Talent{ID: talent.ID}).
					Updates(map[string]any{"rating": rating, "rated_count": rated}).
					Error
			})
			if err != nil {
				log.Printf("Error rating Booking [%s]: %s\n", params.ID, err.Error())
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.Status(http.StatusOK)
		})
	return g
}
