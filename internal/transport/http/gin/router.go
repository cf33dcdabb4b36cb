package httpgin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/yuzuhara/seatbook/internal/domain"
	redisrepo "github.com/yuzuhara/seatbook/internal/repository/redis"
	"github.com/yuzuhara/seatbook/internal/service"
	"github.com/yuzuhara/seatbook/internal/service/booking"
	"github.com/yuzuhara/seatbook/internal/service/query"
)

func NewRouter(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
	logger *slog.Logger,
	jwtSecret string,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(logger), RequestIDMiddleware(), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Public API
	r.GET("/seats", handleListSeats())
	r.GET("/availability", handleCheckAvailability(svcs))
	r.GET("/calendar", handleCalendar(svcs))
	r.GET("/slots", handleSlotsForDate(svcs))

	// Authenticated API
	auth := r.Group("/", AuthMiddleware(jwtSecret))
	{
		auth.POST("/reservations", handleCreateReservation(svcs, idem))
		auth.GET("/reservations", handleListReservations(svcs))
		auth.GET("/reservations/:id", handleGetReservation(svcs))
		auth.DELETE("/reservations/:id", handleCancelReservation(svcs))
		auth.POST("/reservations/:id/email", handleResendEmail(svcs))
		auth.PATCH("/reservations/:id/payment", handleMarkPaid(svcs))
	}

	return r
}

// --- Handlers with Swagger annotations ---

// @Summary  List the seat catalog
// @Success  200  {array}  domain.Seat
// @Router   /seats [get]
func handleListSeats() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Immutable reference data; cache hard.
		writeJSONWithCache(c, http.StatusOK, domain.Seats(), "public, max-age=3600", true)
	}
}

// @Summary  Check seat availability for a time range
// @Param    seat      query  string  true  "Seat ID (A/B/C)"
// @Param    date      query  string  true  "YYYY-MM-DD"
// @Param    start     query  string  true  "HH:MM"
// @Param    duration  query  int     true  "hours"
// @Success  200  {object}  AvailabilityResponse
// @Failure  400  {object}  ErrorResponse
// @Router   /availability [get]
func handleCheckAvailability(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		seat := domain.SeatID(c.Query("seat"))
		date := c.Query("date")
		start := c.Query("start")
		duration := parseIntDefault(c.Query("duration"), 0)

		if date == "" || start == "" || duration <= 0 {
			badRequest(c, "seat, date, start and duration are required")
			return
		}

		startAt, err := time.ParseInLocation("2006-01-02T15:04", date+"T"+start, time.Local)
		if err != nil {
			badRequest(c, "invalid date or start")
			return
		}

		ok, err := svcs.Booking.CheckAvailability(c.Request.Context(), seat, startAt, duration)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, AvailabilityResponse{IsAvailable: ok})
	}
}

// @Summary  Per-day availability summaries for calendar display
// @Param    from  query  string  true  "YYYY-MM-DD"
// @Param    to    query  string  true  "YYYY-MM-DD"
// @Success  200  {array}  domain.DateAvailability
// @Failure  400  {object}  ErrorResponse
// @Router   /calendar [get]
func handleCalendar(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		from := c.Query("from")
		to := c.Query("to")

		days, err := svcs.Query.Calendar(c.Request.Context(), from, to)
		if err != nil {
			respondErr(c, err)
			return
		}

		// ETag + Cache-Control 60s
		writeJSONWithCache(c, http.StatusOK, days, "public, max-age=60", true)
	}
}

// @Summary  Hourly slot view for one seat and day
// @Param    seat  query  string  true  "Seat ID (A/B/C)"
// @Param    date  query  string  true  "YYYY-MM-DD"
// @Success  200  {array}  domain.Slot
// @Failure  400  {object}  ErrorResponse
// @Router   /slots [get]
func handleSlotsForDate(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		seat := domain.SeatID(c.Query("seat"))

		day, err := time.ParseInLocation("2006-01-02", c.Query("date"), time.Local)
		if err != nil {
			badRequest(c, "invalid date")
			return
		}

		slots, err := svcs.Query.SlotsForDate(c.Request.Context(), seat, day)
		if err != nil {
			respondErr(c, err)
			return
		}

		// ETag + Cache-Control 15s
		writeJSONWithCache(c, http.StatusOK, slots, "public, max-age=15", true)
	}
}

// @Summary  Create reservation (idempotent)
// @Param    req body  CreateReservationRequest true "payload"
// @Header   201 {string} Idempotency-Key "echo"
// @Success  201 {object} CreateReservationResponse
// @Failure  400 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "slots unavailable / idem in progress"
// @Failure  429 {object} ErrorResponse "rate limited"
// @Router   /reservations [post]
func handleCreateReservation(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateReservationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		startAt, err := parseRFC3339(req.StartTime)
		if err != nil {
			badRequest(c, "invalid start_time (RFC3339)")
			return
		}
		endAt, err := parseRFC3339(req.EndTime)
		if err != nil {
			badRequest(c, "invalid end_time (RFC3339)")
			return
		}

		uid := userID(c)

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if idem != nil && idemKey != "" {
			idemStorageKey = redisrepo.KeyIdemReservation(uid, idemKey)

			if payload, ok, _ := idem.GetResult(
				c.Request.Context(),
				idemStorageKey,
			); ok {
				c.Header("Idempotency-Key", idemKey)
				c.Data(
					http.StatusCreated,
					"application/json; charset=utf-8",
					[]byte(payload),
				)
				return
			}

			locked, err := idem.AcquireLock(
				c.Request.Context(),
				idemStorageKey,
				60*time.Second,
			)
			if err != nil {
				respondErr(c, err)
				return
			}
			if !locked {
				if payload, ok, _ := idem.GetResult(
					c.Request.Context(),
					idemStorageKey,
				); ok {
					c.Header("Idempotency-Key", idemKey)
					c.Data(
						http.StatusCreated,
						"application/json; charset=utf-8",
						[]byte(payload),
					)
					return
				}
				c.Header("Retry-After", "1")
				c.JSON(
					http.StatusConflict,
					ErrorResponse{Error: "idempotency key in progress"},
				)
				return
			}
		}

		rlKey := "ip:" + c.ClientIP()

		res, err := svcs.Booking.Create(c.Request.Context(), booking.CreateInput{
			UserID:      uid,
			UserName:    req.UserName,
			Email:       req.Email,
			PhoneNumber: req.PhoneNumber,
			SeatID:      domain.SeatID(req.SeatID),
			StartTime:   startAt,
			EndTime:     endAt,
			Duration:    req.Duration,
			Price:       req.Price,
			Source:      domain.ReservationSource(req.Source),
		}, rlKey)
		if err != nil {
			if idemStorageKey != "" && idem != nil {
				_ = idem.Release(c.Request.Context(), idemStorageKey)
			}
			if errors.Is(err, booking.ErrRateLimited) {
				c.Header("Retry-After", "60")
				c.JSON(
					http.StatusTooManyRequests,
					ErrorResponse{Error: "rate limited"},
				)
				return
			}
			respondErr(c, err)
			return
		}

		resp := CreateReservationResponse{
			ReservationID:     res.ID,
			ReservationNumber: res.Number,
		}

		if idemStorageKey != "" && idem != nil {
			b, _ := json.Marshal(resp)
			_ = idem.SaveResult(c.Request.Context(), idemStorageKey, string(b))
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusCreated, resp)
	}
}

// @Summary  List the caller's reservations
// @Param    status  query  string  false  "comma-separated statuses"
// @Success  200  {array}  domain.Reservation
// @Router   /reservations [get]
func handleListReservations(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var statuses []domain.ReservationStatus
		if raw := c.Query("status"); raw != "" {
			for _, s := range strings.Split(raw, ",") {
				statuses = append(statuses, domain.ReservationStatus(strings.TrimSpace(s)))
			}
		}

		out, err := svcs.Query.ListUserReservations(c.Request.Context(), userID(c), statuses)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, out)
	}
}

// @Summary  Get one reservation
// @Param    id  path  string  true  "Reservation ID"
// @Success  200  {object}  domain.Reservation
// @Failure  404  {object}  ErrorResponse
// @Router   /reservations/{id} [get]
func handleGetReservation(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := svcs.Query.GetReservation(c.Request.Context(), userID(c), c.Param("id"))
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, res)
	}
}

// @Summary  Cancel a reservation (up to 24h before start)
// @Param    id  path  string  true  "Reservation ID"
// @Success  200  {object}  SuccessResponse
// @Failure  403  {object}  ErrorResponse
// @Failure  404  {object}  ErrorResponse
// @Failure  409  {object}  ErrorResponse "past cutoff / not confirmed"
// @Router   /reservations/{id} [delete]
func handleCancelReservation(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, err := svcs.Booking.Cancel(c.Request.Context(), userID(c), c.Param("id"))
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, SuccessResponse{Success: true})
	}
}

// @Summary  Resend the confirmation email
// @Param    id  path  string  true  "Reservation ID"
// @Success  200  {object}  SuccessResponse
// @Failure  404  {object}  ErrorResponse
// @Router   /reservations/{id}/email [post]
func handleResendEmail(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svcs.Booking.ResendConfirmation(c.Request.Context(), userID(c), c.Param("id")); err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, SuccessResponse{Success: true})
	}
}

// @Summary  Record an in-store payment
// @Param    id   path  string          true  "Reservation ID"
// @Param    req  body  MarkPaidRequest true  "payload"
// @Success  200  {object}  SuccessResponse
// @Router   /reservations/{id}/payment [patch]
func handleMarkPaid(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req MarkPaidRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		if err := svcs.Booking.MarkPaid(c.Request.Context(), userID(c), c.Param("id"), req.PaymentMethod); err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, SuccessResponse{Success: true})
	}
}

// --- Helpers ---

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	var v int
	for _, r := range s {
		if r < '0' || r > '9' {
			return def
		}
		v = v*10 + int(r-'0')
	}
	return v
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	switch {
	// booking service
	case errors.Is(err, booking.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	case errors.Is(err, booking.ErrSlotsUnavailable):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "requested time is already booked"})
		return
	case errors.Is(err, booking.ErrTooLateToCancel):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "cancellation window has passed"})
		return
	case errors.Is(err, booking.ErrNotCancellable):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "reservation is not cancellable"})
		return
	case errors.Is(err, booking.ErrNotOwner):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "permission denied"})
		return
	case errors.Is(err, booking.ErrReservationNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "reservation not found"})
		return
	// query service
	case errors.Is(err, query.ErrInvalidRange):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid date range"})
		return
	case errors.Is(err, query.ErrUnknownSeat):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unknown seat"})
		return
	case errors.Is(err, query.ErrNotOwner):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "permission denied"})
		return
	case errors.Is(err, query.ErrReservationNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "reservation not found"})
		return
	}

	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}
