package handlers

import (
	"context"
	"time"

	"busclient/internal/backendapi"
	"busclient/internal/http/middleware"
	"busclient/internal/services"

	"github.com/gin-gonic/gin"
)

// Handlers exposes one client core to the booking pages.
type Handlers struct {
	Core *services.Core

	// Heartbeat is the SSE keep-alive interval.
	Heartbeat time.Duration
}

func New(core *services.Core) *Handlers {
	return &Handlers{Core: core, Heartbeat: 15 * time.Second}
}

// requestContext carries the request id on to backend calls.
func requestContext(c *gin.Context) context.Context {
	return backendapi.WithRequestID(c.Request.Context(), middleware.GetRequestID(c))
}
