package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handlers) Health(c *gin.Context) {
	p := h.Core.Principals.Current()
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"message":       "booking agent berjalan",
		"principal":     p.Kind.String(),
		"subscriptions": len(h.Core.Channels.Subscriptions()),
		"notifications": h.Core.Feed.Len(),
	})
}
