package controllers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"temanku/src/db"
	"temanku/src/lib"
	"temanku/src/models"
	"temanku/src/types"
	"temanku/src/utils"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuthRegister creates a user account. Email is the identity; the booking
// flow does not require any profile beyond name and email.
func AuthRegister(ctx *gin.Context) (uid *string, status int, err error) {
	var body types.RegisterUserRequestBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		return nil, http.StatusBadRequest, err
	}
	d := db.GetDb()
	var count int64
	if err := d.
		Model(&models.User{}).
		Where(&models.User{Email: body.Email}).
		Count(&count).
		Error; err != nil {
		log.Printf("error: %s\n", err.Error())
		return nil, http.StatusBadRequest, err
	}
	if count > 0 {
		err := fmt.Errorf("user with email %s already exists", body.Email)
		return nil, http.StatusConflict, err
	}
	user := models.User{
		Name:  body.Name,
		Email: body.Email,
		Role:  types.ROLE_USER,
		UID:   uuid.NewString(),
	}
	err = d.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&user).Error
	})
	if err != nil {
		log.Printf("Error registering user: %s\n", err.Error())
		return nil, http.StatusBadRequest, err
	}
	return &user.UID, http.StatusCreated, nil
}

// AuthLogin issues a JWT for a known email and caches the user record.
func AuthLogin(ctx *gin.Context) (token *string, status int, err error) {
	var body types.LoginRequestBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		return nil, http.StatusBadRequest, err
	}
	d := db.GetDb()
	var muser models.User
	if err = d.
		Model(&models.User{}).
		Select("id", "name", "email", "uid", "role").
		Where(&models.User{Email: body.Email}).
		First(&muser).
		Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, http.StatusNotFound, err
		}
		log.Printf("error: %s\n", err.Error())
		return nil, http.StatusBadRequest, err
	}

	jwt, err := utils.GenerateJWT(muser.Email, muser.ID, muser.UID, muser.Role)
	if err != nil {
		log.Printf("Error signing token for user [%d]: %s\n", muser.ID, err.Error())
		return nil, http.StatusInternalServerError, err
	}

	rd := lib.GetRedisClient()
	if rd != nil {
		if err := rd.JSONSet(context.Background(), fmt.Sprintf("%d:user", muser.ID), "$", &muser).Err(); err != nil {
			log.Printf("[redis] Error updating user cache: %s\n", err.Error())
		}
		rd.Set(context.Background(), fmt.Sprintf("%s:token", muser.UID), jwt, 24*time.Hour)
	}

	return &jwt, http.StatusOK, nil
}
