package handlers

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"busclient/internal/domain"

	"github.com/gin-gonic/gin"
)

func (h *Handlers) ListNotifications(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"notifications": h.Core.Feed.Entries(),
		"capacity":      h.Core.Feed.Capacity(),
	})
}

// DismissNotification is a no-op for ids that already expired or were evicted.
func (h *Handlers) DismissNotification(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		RespondDomainError(c, domain.ValidationError{Field: "id", Msg: "Invalid notification id"})
		return
	}
	h.Core.Feed.Dismiss(id)
	c.Status(http.StatusNoContent)
}

func (h *Handlers) ClearNotifications(c *gin.Context) {
	h.Core.Feed.ClearAll()
	c.Status(http.StatusNoContent)
}

// StreamNotifications pushes the whole feed as a "feed" event on every change.
// The stream ends when the client leaves or the core is closed.
func (h *Handlers) StreamNotifications(c *gin.Context) {
	changed := make(chan struct{}, 1)
	cancel := h.Core.Feed.Watch(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer cancel()

	heartbeat := h.Heartbeat
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}
	ping := time.NewTicker(heartbeat)
	defer ping.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("feed", h.Core.Feed.Entries())
	c.Writer.Flush()

	ctx := c.Request.Context()
	closed := h.Core.Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-closed:
			return false
		case <-changed:
			c.SSEvent("feed", h.Core.Feed.Entries())
			return true
		case <-ping.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		}
	})
}
