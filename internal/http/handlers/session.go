package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"busclient/internal/domain"
	"busclient/internal/domain/models"
	"busclient/internal/http/middleware"
	"busclient/internal/utils"

	"github.com/gin-gonic/gin"
)

const channelWait = 3 * time.Second

type loginPayload struct {
	Role     string `json:"role"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func parseRole(s string) (models.PrincipalKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "user":
		return models.PrincipalUser, true
	case "admin", "operator":
		return models.PrincipalOperator, true
	}
	return models.PrincipalNone, false
}

func (h *Handlers) sessionBody() gin.H {
	p := h.Core.Principals.Current()
	return gin.H{
		"principal":     p,
		"subscriptions": h.Core.Channels.Subscriptions(),
	}
}

// GetSession returns the principal as last resolved, without probing.
func (h *Handlers) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, h.sessionBody())
}

// RefreshSession re-probes the session authority.
func (h *Handlers) RefreshSession(c *gin.Context) {
	ctx := requestContext(c)
	h.Core.Session.Resolve(ctx)
	h.waitChannels(ctx)
	c.JSON(http.StatusOK, h.sessionBody())
}

// waitChannels lets a reply list the channels of a principal that was just resolved.
// A slow broadcast service only delays the reply up to channelWait.
func (h *Handlers) waitChannels(ctx context.Context) {
	wctx, cancel := context.WithTimeout(ctx, channelWait)
	defer cancel()
	if err := h.Core.WaitChannels(wctx); err != nil {
		utils.LogEvent(utils.RequestIDFrom(ctx), "session", "channels_pending", err.Error())
	}
}

func (h *Handlers) Login(c *gin.Context) {
	var req loginPayload
	if !BindJSONOrError(c, &req) {
		return
	}
	kind, ok := parseRole(req.Role)
	if !ok {
		RespondDomainError(c, domain.ValidationError{Field: "role", Msg: "must be user or admin"})
		return
	}
	var errs domain.ValidationErrors
	if strings.TrimSpace(req.Email) == "" {
		errs = append(errs, domain.ValidationError{Field: "email", Msg: "Email is required"})
	}
	if req.Password == "" {
		errs = append(errs, domain.ValidationError{Field: "password", Msg: "Password is required"})
	}
	if len(errs) > 0 {
		RespondDomainError(c, errs)
		return
	}

	reqID := middleware.GetRequestID(c)
	ctx := requestContext(c)
	p, err := h.Core.Session.Login(ctx, kind, req.Email, req.Password)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	h.waitChannels(ctx)
	if p.Kind != kind {
		utils.LogEvent(reqID, "session", "login_unresolved", "role="+kind.String()+" resolved="+p.Kind.String())
		RespondDomainError(c, domain.AuthError{Msg: "Login succeeded but no active session was found"})
		return
	}
	utils.LogEvent(reqID, "session", "login", "role="+kind.String())
	c.JSON(http.StatusOK, h.sessionBody())
}

// Logout always ends signed out locally; a failed backend call is reported but not undone.
func (h *Handlers) Logout(c *gin.Context) {
	err := h.Core.Session.Logout(requestContext(c))
	body := h.sessionBody()
	if err != nil {
		body["warning"] = err.Error()
	}
	c.JSON(http.StatusOK, body)
}
