package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"temanku/src/common"
	"temanku/src/db"
	"temanku/src/models"
	"temanku/src/types"
	"temanku/src/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func ownedTalent(ctx *gin.Context) (*models.Talent, error) {
	ownerId := ctx.GetUint("id")
	d := db.GetDb()
	var talent models.Talent
	if err := d.
		Model(&models.Talent{}).
		Where(&models.Talent{OwnerID: ownerId}).
		First(&talent).
		Error; err != nil {
		return nil, err
	}
	return &talent, nil
}

// moderateBooking applies pending_approval -> {approved, rejected}. The
// booking must already be paid; a decision is final and never re-applied.
func moderateBooking(ctx *gin.Context, decision types.ApprovalStatus) {
	var params types.SimpleRequestParams
	if err := ctx.ShouldBindUri(&params); err != nil {
		ctx.Status(http.StatusBadRequest)
		return
	}
	var body types.ModerateBookingRequestBody
	if err := ctx.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	talent, err := ownedTalent(ctx)
	if err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	bookingId := uuid.MustParse(params.ID)
	d := db.GetDb()
	var booking models.Booking
	err = d.Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Model(&models.Booking{}).
			Where(&models.Booking{ID: bookingId, TalentID: talent.ID}).
			First(&booking).
			Error; err != nil {
			return err
		}
		if booking.ApprovalStatus != types.APPROVAL_PENDING {
			return fmt.Errorf("booking [%s] has already been moderated", params.ID)
		}
		if booking.PaymentStatus != types.PAYMENT_PAID {
			return fmt.Errorf("booking [%s] has not been paid", params.ID)
		}
		updates := models.Booking{ApprovalStatus: decision}
		if body.Message != "" {
			updates.ApprovalMessage = body.Message
		}
		if err := tx.
			Model(&models.Booking{}).
			Where(&models.Booking{ID: bookingId}).
			Updates(&updates).
			Error; err != nil {
			return err
		}
		booking.ApprovalStatus = decision
		if body.Message != "" {
			booking.ApprovalMessage = body.Message
		}
		return nil
	})
	if err != nil {
		log.Printf("Error moderating Booking [%s]: %s\n", params.ID, err.Error())
		ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	common.GetBookingStore().NotifyChanged(booking)
	if decision == types.APPROVAL_APPROVED {
		if err := common.NewChatActivationBridge().Activate(booking); err != nil {
			log.Printf("Error activating chat for Booking [%s]: %s\n", params.ID, err.Error())
		}
		go common.ScheduleCompletion(booking)
	}
	ctx.JSON(http.StatusOK, gin.H{"data": booking})
}

func mitraHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	mitra := g.Group("/mitra")
	mitra.
		GET("/bookings", func(ctx *gin.Context) {
			var query struct {
				Status string `form:"status"`
			}
			if err := ctx.BindQuery(&query); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			talent, err := ownedTalent(ctx)
			if err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			d := db.GetDb()
			q := d.
				Model(&models.Booking{}).
				Where(&models.Booking{TalentID: talent.ID})
			if query.Status != "" {
				q = q.Where("approval_status = ?", query.Status)
			} else {
				q = q.Where(&models.Booking{
					PaymentStatus:  types.PAYMENT_PAID,
					ApprovalStatus: types.APPROVAL_PENDING,
				})
			}
			var bookings []models.Booking
			if err := q.
				Preload("Booker").
				Order("created_at desc").
				Limit(100).
				Find(&bookings).
				Error; err != nil {
				log.Printf("Error retrieving bookings for Talent [%d]: %s\n", talent.ID, err.Error())
				ctx.Status(http.StatusBadRequest)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": bookings, "count": len(bookings)})
		}).
		PUT("/bookings/:id/approve", func(ctx *gin.Context) {
			moderateBooking(ctx, types.APPROVAL_APPROVED)
		}).
		PUT("/bookings/:id/reject", func(ctx *gin.Context) {
			moderateBooking(ctx, types.APPROVAL_REJECTED)
		}).
		GET("/transfers/:ref", func(ctx *gin.Context) {
			var params struct {
				Ref string `uri:"ref" binding:"required"`
			}
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			talent, err := ownedTalent(ctx)
			if err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			bookingId, ok := utils.LookupPaymentReference(params.Ref)
			d := db.GetDb()
			var booking models.Booking
			q := d.
				Model(&models.Booking{}).
				Where(&models.Booking{TalentID: talent.ID})
			if ok {
				q = q.Where("id = ?", bookingId)
			} else {
				q = q.Where(&models.Booking{PaymentRef: params.Ref})
			}
			if err := q.First(&booking).Error; err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": booking})
		})
	return g
}
