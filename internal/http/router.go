package api

import (
	"log"
	stdhttp "net/http"
	"time"

	intconfig "busclient/internal/config"
	h "busclient/internal/http/handlers"
	"busclient/internal/http/middleware"
	"busclient/internal/services"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// refreshLimit caps manual session re-probes; each one costs up to two backend calls.
const (
	refreshEvery = 2 * time.Second
	refreshBurst = 3
)

func NewRouter(env intconfig.Env, core *services.Core) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logger(), gin.Recovery(), middleware.CORS(env.CORSAllowedOrigins))

	if err := r.SetTrustedProxies(nil); err != nil {
		log.Printf("warning: failed to set trusted proxies: %v", err)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(stdhttp.StatusNotFound, gin.H{
			"error":  "Route not found",
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		})
	})

	hd := h.New(core)
	refresh := rate.NewLimiter(rate.Every(refreshEvery), refreshBurst)

	api := r.Group("/api")
	{
		api.GET("/health", hd.Health)

		// Session
		session := api.Group("/session")
		session.GET("", hd.GetSession)
		session.POST("/refresh", middleware.Throttle(refresh), hd.RefreshSession)
		session.POST("/login", hd.Login)
		session.POST("/logout", hd.Logout)

		// Notification feed
		notifications := api.Group("/notifications")
		notifications.GET("", hd.ListNotifications)
		notifications.GET("/stream", hd.StreamNotifications)
		notifications.DELETE("", hd.ClearNotifications)
		notifications.DELETE("/:id", hd.DismissNotification)

		// Fares
		api.GET("/catalog", hd.Catalog)
		api.GET("/fares/quote", hd.QuoteFare)

		// Booking form
		booking := api.Group("/booking")
		booking.GET("", hd.GetBooking)
		booking.DELETE("", hd.ResetBooking)
		booking.PATCH("/draft", hd.PatchDraft)
		booking.POST("/route", hd.SelectRoute)
		booking.POST("/submit", hd.SubmitBooking)
		booking.GET("/receipt/:ticket", hd.Receipt)
	}

	return r
}
