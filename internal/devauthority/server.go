package devauthority

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"busclient/internal/broadcast"
	"busclient/internal/domain"
	"busclient/internal/domain/models"
	"busclient/internal/http/middleware"
	"busclient/internal/services"
	"busclient/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	CookieName = "session"

	sessionTTL     = 24 * time.Hour
	publishTimeout = 3 * time.Second
)

type Server struct {
	Store     *Store
	Secret    []byte
	Publisher broadcast.Publisher
	Now       func() time.Time
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Router mounts the authority endpoints the booking client talks to.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logger(), gin.Recovery())

	for _, role := range []string{RoleUser, RoleAdmin} {
		g := r.Group("/" + role)
		g.POST("/login", s.login(role))
		g.GET("/check-session", s.checkSession(role))
		g.POST("/logout", s.logout(role))
	}
	r.POST("/booking/create", s.createBooking)
	return r
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) login(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request payload"})
			return
		}
		acc, err := s.Store.authenticate(role, req.Email, req.Password)
		if err != nil {
			utils.LogEvent(middleware.GetRequestID(c), "authority", "login_failed", "role="+role)
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": err.Error()})
			return
		}

		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub":  strconv.FormatInt(int64(acc.id()), 10),
			"role": role,
			"exp":  s.now().Add(sessionTTL).Unix(),
		})
		tokenString, err := token.SignedString(s.Secret)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Could not create the session"})
			return
		}

		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(CookieName, tokenString, int(sessionTTL.Seconds()), "/", "", false, true)
		utils.LogEvent(middleware.GetRequestID(c), "authority", "login", fmt.Sprintf("role=%s id=%d", role, acc.id()))
		c.JSON(http.StatusOK, s.sessionBody(role, acc))
	}
}

func (s *Server) sessionBody(role string, acc account) gin.H {
	if role == RoleAdmin {
		return gin.H{"success": true, "isLoggedIn": true, "admin": acc.operator}
	}
	return gin.H{"success": true, "isLoggedIn": true, "user": acc.user}
}

// session returns the account behind the request cookie, if it is valid for role.
func (s *Server) session(c *gin.Context, role string) (account, bool) {
	raw, err := c.Cookie(CookieName)
	if err != nil || strings.TrimSpace(raw) == "" {
		return account{}, false
	}
	token, err := jwt.Parse(raw, func(*jwt.Token) (any, error) { return s.Secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return account{}, false
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return account{}, false
	}
	if r, _ := claims["role"].(string); r != role {
		return account{}, false
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return account{}, false
	}
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return account{}, false
	}
	return s.Store.byID(role, domain.ID(id))
}

func (s *Server) checkSession(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		acc, ok := s.session(c, role)
		if !ok {
			c.JSON(http.StatusOK, gin.H{"isLoggedIn": false})
			return
		}
		c.JSON(http.StatusOK, s.sessionBody(role, acc))
	}
}

func (s *Server) logout(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(CookieName, "", -1, "/", "", false, true)
		utils.LogEvent(middleware.GetRequestID(c), "authority", "logout", "role="+role)
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out successfully"})
	}
}

func (s *Server) createBooking(c *gin.Context) {
	reqID := middleware.GetRequestID(c)
	acc, ok := s.session(c, RoleUser)
	if !ok {
		acc, ok = s.session(c, RoleAdmin)
	}
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Please login to book a ticket"})
		return
	}

	var req models.BookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request payload"})
		return
	}
	if msg := missingField(req); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": msg})
		return
	}

	ticket, err := s.Store.Book(req)
	if err != nil {
		if domain.IsRejection(err) {
			c.JSON(http.StatusOK, gin.H{"success": false, "message": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Booking failed. Please try again."})
		return
	}
	utils.LogEvent(reqID, "authority", "booking_created", fmt.Sprintf("ticket=%s role=%s id=%d", ticket, acc.role, acc.id()))

	s.publishBooking(reqID, acc, ticket, req)
	c.JSON(http.StatusCreated, gin.H{
		"success":      true,
		"ticketNumber": ticket,
		"message":      "Booking created successfully",
	})
}

func missingField(r models.BookingRequest) string {
	switch {
	case strings.TrimSpace(r.FromLocation) == "" || strings.TrimSpace(r.ToLocation) == "":
		return "Route is required"
	case strings.TrimSpace(r.JourneyDate) == "":
		return "Journey date is required"
	case strings.TrimSpace(r.DepartureTime) == "":
		return "Departure time is required"
	case strings.TrimSpace(r.SeatNumber) == "":
		return "Seat number is required"
	case strings.TrimSpace(r.PassengerName) == "" || strings.TrimSpace(r.PassengerPhone) == "":
		return "Passenger details are required"
	case r.Fare <= 0:
		return "Fare is required"
	}
	return ""
}

type outbound struct {
	channel, event string
	payload        broadcast.Payload
}

// publishBooking fans the new booking out; delivery failures never fail the booking.
func (s *Server) publishBooking(reqID string, acc account, ticket string, r models.BookingRequest) {
	if s.Publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	stamp := s.now().UTC().Format(time.RFC3339Nano)
	events := []outbound{
		{services.ChannelBookings, "booking-created", broadcast.Payload{
			Message:   fmt.Sprintf("New booking %s: %s to %s on %s", ticket, r.FromLocation, r.ToLocation, r.JourneyDate),
			Type:      string(models.LevelInfo),
			Timestamp: stamp,
		}},
	}
	if acc.role == RoleUser {
		events = append(events, outbound{services.UserChannel(acc.id()), "notification", broadcast.Payload{
			Message:   fmt.Sprintf("Your booking %s is confirmed. Seat %s, %s %s.", ticket, r.SeatNumber, r.JourneyDate, r.DepartureTime),
			Type:      string(models.LevelSuccess),
			Timestamp: stamp,
		}})
	} else {
		events = append(events, outbound{services.ChannelAdminNotifications, "admin-notification", broadcast.Payload{
			Message:   fmt.Sprintf("Counter booking %s issued for %s", ticket, r.PassengerName),
			Type:      string(models.LevelSuccess),
			Timestamp: stamp,
		}})
	}

	for _, ev := range events {
		if err := s.Publisher.Publish(ctx, ev.channel, ev.event, ev.payload); err != nil {
			utils.LogEvent(reqID, "authority", "publish_failed", fmt.Sprintf("channel=%s event=%s err=%v", ev.channel, ev.event, err))
		}
	}
}
