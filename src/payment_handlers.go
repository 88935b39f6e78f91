package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"path"
	"temanku/src/db"
	"temanku/src/lib"
	awslib "temanku/src/lib/aws"
	"temanku/src/models"
	"temanku/src/types"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeqown/go-qrcode"
)

func ownBooking(ctx *gin.Context, id string) (*models.Booking, error) {
	bookerId := ctx.GetUint("id")
	d := db.GetDb()
	var booking models.Booking
	if err := d.
		Model(&models.Booking{}).
		Where("id = ?", id).
		Where(&models.Booking{BookerID: bookerId}).
		Preload("Talent").
		First(&booking).
		Error; err != nil {
		return nil, err
	}
	return &booking, nil
}

func paymentHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/payments/channels", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"data": types.PaymentChannels()})
		}).
		POST("/bookings/:id/proof", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			booking, err := ownBooking(ctx, params.ID)
			if err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			file, err := ctx.FormFile("file")
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			apiEnv := os.Getenv("API_ENV")
			if apiEnv == "local" {
				tempdir := os.Getenv("TEMP_DIR")
				filepath := path.Join(tempdir, fmt.Sprintf("proof-%s%s", booking.ID.String(), path.Ext(file.Filename)))
				if err := ctx.SaveUploadedFile(file, filepath); err != nil {
					log.Printf("Could not save upload: %s\n", err.Error())
					ctx.Status(http.StatusInternalServerError)
					return
				}
				ctx.JSON(http.StatusOK, gin.H{"data": gin.H{"url": filepath}})
				return
			}
			src, err := file.Open()
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			defer src.Close()
			key := fmt.Sprintf("proofs/%s%s", booking.ID.String(), path.Ext(file.Filename))
			url, err := awslib.S3UploadProof(key, src, file.Header.Get("Content-Type"))
			if err != nil {
				log.Printf("Error uploading proof to S3 bucket: %s\n", err.Error())
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": gin.H{"url": *url}})
		}).
		GET("/bookings/:id/qr", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			booking, err := ownBooking(ctx, params.ID)
			if err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			rd := lib.GetRedisClient()
			cacheKey := fmt.Sprintf("%s:qr", booking.ID.String())
			if rd != nil {
				if cached := rd.Get(context.Background(), cacheKey).Val(); cached != "" {
					ctx.JSON(http.StatusOK, gin.H{"data": gin.H{"url": cached}})
					return
				}
			}
			content := fmt.Sprintf("temanku:%s:%s:%d", booking.ID.String(), booking.PaymentRef, booking.TotalPrice)
			qrc, err := qrcode.New(content)
			if err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			tempdir := os.Getenv("TEMP_DIR")
			filename := fmt.Sprintf("qr-%s.jpeg", booking.ID.String())
			filepath := path.Join(tempdir, filename)
			if err = qrc.Save(filepath); err != nil {
				log.Printf("Could not save qrcode to file [%s]: %s\n", filepath, err.Error())
				ctx.Status(http.StatusInternalServerError)
				return
			}
			signedURL := filepath
			apiEnv := os.Getenv("API_ENV")
			if apiEnv != "local" {
				f, err := os.Open(filepath)
				if err != nil {
					ctx.Status(http.StatusInternalServerError)
					return
				}
				defer f.Close()
				url, err := awslib.S3UploadProof(path.Join("qr", filename), f, "image/jpeg")
				if err != nil {
					log.Printf("Error uploading qrcode to S3 bucket: %s\n", err.Error())
					ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
					return
				}
				signedURL = *url
			}
			if rd != nil {
				rd.SetEx(context.Background(), cacheKey, signedURL, 2*time.Hour)
			}
			ctx.JSON(http.StatusOK, gin.H{"data": gin.H{"url": signedURL}})
		}).
		POST("/bookings/:id/checkout", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			booking, err := ownBooking(ctx, params.ID)
			if err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			if booking.PaymentStatus == types.PAYMENT_PAID {
				ctx.JSON(http.StatusConflict, gin.H{"error": "booking has already been paid"})
				return
			}
			name := fmt.Sprintf("Booking %s", booking.PaymentRef)
			if booking.Talent != nil {
				name = fmt.Sprintf("Booking %s dengan %s", booking.PaymentRef, booking.Talent.Name)
			}
			url, err := lib.CreateBookingPaymentLink(name, booking.TotalPrice, "idr", booking.ID.String())
			if err != nil {
				log.Printf("Error creating payment link for Booking [%s]: %s\n", params.ID, err.Error())
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": gin.H{"url": url}})
		})
	return g
}
