package main

import (
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"temanku/src/db"
	"temanku/src/middlewares"
	"temanku/src/types"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/tidwall/gjson"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type TestSuite struct {
	suite.Suite
	DB   *gorm.DB
	Mock sqlmock.Sqlmock
}

// stubAuthMiddleware stands in for the JWT middleware so handler-level
// behavior can be tested without a user row.
func stubAuthMiddleware(ctx *gin.Context) {
	ctx.Set("id", uint(42))
	ctx.Set("email", "someone@example.com")
	ctx.Set("uid", "test-uid")
	ctx.Set("role", string(types.ROLE_USER))
}

func (s *TestSuite) SetupSuite() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("bookabledate", bookableDateValidatorFunc)
		v.RegisterValidation("timeofday", timeOfDayValidatorFunc)
	}

	d, mock := NewMockDB()
	db.NewDB(d)
	s.DB = d
	s.Mock = mock
}

func NewMockDB() (*gorm.DB, sqlmock.Sqlmock) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening a stub database connection", err)
	}
	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: conn,
	}), &gorm.Config{})
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening gorm database", err)
	}
	return gormDB, mock
}

func (s *TestSuite) TestPingRoute() {
	router := setupRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 200, w.Code)
}

func (s *TestSuite) TestSecureHeaders() {
	router := setupRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(s.T(), "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func (s *TestSuite) TestMaintenanceMode() {
	os.Setenv("MAINTENANCE_MODE", "true")
	defer os.Unsetenv("MAINTENANCE_MODE")

	router := setupRouter()
	router = maintenanceModeMiddleware(router)
	apiv1Group(router)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 503, w.Code)
}

func (s *TestSuite) TestBookingsRequireAuth() {
	router := setupRouter()
	apiv1 := apiv1Group(router)
	apiv1.Use(func(ctx *gin.Context) {
		bearerToken := ctx.Request.Header.Get("Authorization")
		if !strings.HasPrefix(bearerToken, "Bearer") {
			ctx.AbortWithStatus(http.StatusUnauthorized)
			return
		}
	})
	bookingHandlers(apiv1)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/bookings", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 401, w.Code)
}

func (s *TestSuite) TestAuthRejectsMalformedBearer() {
	router := setupRouter()
	apiv1 := apiv1Group(router)
	apiv1.Use(middlewares.AuthMiddleware)
	bookingHandlers(apiv1)

	for _, header := range []string{"Bearer", "Bearer "} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/bookings", nil)
		req.Header.Set("Authorization", header)
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 401, w.Code, "header %q must be rejected, not crash", header)
	}
}

func (s *TestSuite) TestCreateBookingValidation() {
	router := setupRouter()
	apiv1 := apiv1Group(router)
	apiv1.Use(stubAuthMiddleware)
	bookingHandlers(apiv1)

	s.Run("Should reject a booking with no duration", func() {
		w := httptest.NewRecorder()
		jbody := map[string]any{
			"talent_id":  7,
			"date":       "2030-01-15",
			"start_time": "10:00",
			"purpose":    "Ngobrol",
			"mode":       "offline",
		}
		sbody, _ := json.Marshal(&jbody)
		req, _ := http.NewRequest("POST", "/api/v1/bookings", strings.NewReader(string(sbody)))
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 400, w.Code)
		errMsg := gjson.Get(w.Body.String(), "error").String()
		assert.NotEmpty(s.T(), errMsg)
	})

	s.Run("Should reject a booking longer than 6 hours", func() {
		w := httptest.NewRecorder()
		jbody := map[string]any{
			"talent_id":      7,
			"date":           "2030-01-15",
			"start_time":     "10:00",
			"duration_hours": 8,
			"purpose":        "Ngobrol",
			"mode":           "offline",
		}
		sbody, _ := json.Marshal(&jbody)
		req, _ := http.NewRequest("POST", "/api/v1/bookings", strings.NewReader(string(sbody)))
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 400, w.Code)
	})

	s.Run("Should reject a date in the past", func() {
		w := httptest.NewRecorder()
		jbody := map[string]any{
			"talent_id":      7,
			"date":           "2020-01-15",
			"start_time":     "10:00",
			"duration_hours": 2,
			"purpose":        "Ngobrol",
			"mode":           "offline",
		}
		sbody, _ := json.Marshal(&jbody)
		req, _ := http.NewRequest("POST", "/api/v1/bookings", strings.NewReader(string(sbody)))
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 400, w.Code)
	})

	s.Run("Should reject an invalid start time", func() {
		w := httptest.NewRecorder()
		jbody := map[string]any{
			"talent_id":      7,
			"date":           "2030-01-15",
			"start_time":     "ten o'clock",
			"duration_hours": 2,
			"purpose":        "Ngobrol",
			"mode":           "offline",
		}
		sbody, _ := json.Marshal(&jbody)
		req, _ := http.NewRequest("POST", "/api/v1/bookings", strings.NewReader(string(sbody)))
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 400, w.Code)
	})

	s.Run("Should reject an unknown meeting mode", func() {
		w := httptest.NewRecorder()
		jbody := map[string]any{
			"talent_id":      7,
			"date":           "2030-01-15",
			"start_time":     "10:00",
			"duration_hours": 2,
			"purpose":        "Ngobrol",
			"mode":           "telepathy",
		}
		sbody, _ := json.Marshal(&jbody)
		req, _ := http.NewRequest("POST", "/api/v1/bookings", strings.NewReader(string(sbody)))
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 400, w.Code)
	})
}

func (s *TestSuite) TestPaymentChannels() {
	router := setupRouter()
	apiv1 := apiv1Group(router)
	apiv1.Use(stubAuthMiddleware)
	paymentHandlers(apiv1)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/payments/channels", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 200, w.Code)
	channels := gjson.Get(w.Body.String(), "data").Array()
	assert.Len(s.T(), channels, 6)
	values := make([]string, 0, len(channels))
	for _, c := range channels {
		values = append(values, c.String())
	}
	assert.Contains(s.T(), values, "qris")
	assert.Contains(s.T(), values, "bank_transfer")
	assert.Contains(s.T(), values, "card")
}

func (s *TestSuite) TestModerationRejectsBadBookingID() {
	router := setupRouter()
	apiv1 := apiv1Group(router)
	apiv1.Use(stubAuthMiddleware)
	mitraHandlers(apiv1)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("PUT", "/api/v1/mitra/bookings/not-a-uuid/approve", strings.NewReader("{}"))
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 400, w.Code)
}

func TestRunner(t *testing.T) {
	suite.Run(t, new(TestSuite))
}
