package main

import (
	"fmt"
	"log"
	"net/http"
	"temanku/src/common"
	"temanku/src/config"
	"temanku/src/db"
	"temanku/src/models"
	"temanku/src/models/scopes"
	"temanku/src/types"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

func talentHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/talents", func(ctx *gin.Context) {
			var body types.CreateTalentRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ownerId := ctx.GetUint("id")
			db := db.GetDb()
			var talent models.Talent
			err := db.Transaction(func(tx *gorm.DB) error {
				var count int64
				if err := tx.
					Model(&models.Talent{}).
					Where(&models.Talent{OwnerID: ownerId}).
					Count(&count).
					Error; err != nil {
					return err
				}
				if count > 0 {
					return fmt.Errorf("user [%d] already has a talent profile", ownerId)
				}
				talent = models.Talent{
					OwnerID:    ownerId,
					Name:       body.Name,
					Tagline:    body.Tagline,
					City:       body.City,
					HourlyRate: body.HourlyRate,
					Status:     types.TALENT_ACTIVE,
				}
				if err := tx.Create(&talent).Error; err != nil {
					return err
				}
				newSlug := fmt.Sprintf("%s-%d", slug.Make(body.Name), talent.ID)
				if err := tx.
					Model(&models.Talent{}).
					Where("id = ?", talent.ID).
					Updates(&models.Talent{Slug: newSlug}).
					Error; err != nil {
					return err
				}
				talent.Slug = newSlug
				return tx.
					Model(&models.User{}).
					Where(&models.User{ID: ownerId}).
					Update("role", types.ROLE_TALENT).
					Error
			})
			if err != nil {
				log.Printf("Error creating Talent profile: %s\n", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": talent})
		})
	return g
}

func talentPublicRoutes(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/talents", func(ctx *gin.Context) {
			var query struct {
				City string `form:"city"`
			}
			if err := ctx.BindQuery(&query); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			db := db.GetDb()
			q := db.
				Model(&models.Talent{}).
				Where(&models.Talent{Status: types.TALENT_ACTIVE})
			if query.City != "" {
				q = q.Where("city = ?", query.City)
			}
			var talents []models.Talent
			if err := q.
				Order("rating desc").
				Limit(100).
				Find(&talents).
				Error; err != nil {
				log.Printf("Error retrieving Talents: %s\n", err.Error())
				ctx.Status(http.StatusBadRequest)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": talents, "count": len(talents)})
		}).
		GET("/talents/:slug", func(ctx *gin.Context) {
			var params types.TalentSlugParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			db := db.GetDb()
			var talent models.Talent
			if err := db.
				Model(&models.Talent{}).
				Where(&models.Talent{Slug: params.Slug}).
				First(&talent).
				Error; err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": talent})
		}).
		GET("/talents/:slug/slots", func(ctx *gin.Context) {
			var params types.TalentSlugParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			var query types.TalentSlotsQuery
			if err := ctx.BindQuery(&query); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			date, err := time.Parse(config.DATE_FORMAT, query.Date)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			db := db.GetDb()
			var talent models.Talent
			if err := db.
				Model(&models.Talent{}).
				Where(&models.Talent{Slug: params.Slug}).
				First(&talent).
				Error; err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			var approved []models.Booking
			if err := db.
				Model(&models.Booking{}).
				Scopes(
					scopes.WithTalent(talent.ID),
					scopes.OnDate(query.Date),
					scopes.WithApprovalStatus(string(types.APPROVAL_APPROVED)),
				).
				Find(&approved).
				Error; err != nil {
				log.Printf("Error retrieving bookings for Talent [%d]: %s\n", talent.ID, err.Error())
				ctx.Status(http.StatusBadRequest)
				return
			}
			taken := common.TakenSlots(date, query.Duration, approved)
			ctx.JSON(http.StatusOK, gin.H{"data": gin.H{"date": query.Date, "taken": taken}})
		})
	return g
}
