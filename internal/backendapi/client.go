// Package backendapi talks to the ticketing backend: session checks, login/logout and booking creation.
// The session travels in an ambient cookie held by the client's jar.
package backendapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"busclient/internal/domain"
	"busclient/internal/domain/models"
	"busclient/internal/utils"
)

const maxBodyBytes = 1 << 20

// WithRequestID tags outgoing calls made with ctx with an X-Request-ID header.
// Services logging with the same ctx print the same id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return utils.WithRequestID(ctx, id)
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New returns a client with its own cookie jar. Per-call deadlines come from the caller's context.
func New(baseURL string) *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		HTTP:    &http.Client{Jar: jar, Timeout: 60 * time.Second},
	}
}

func rolePath(kind models.PrincipalKind) (string, bool) {
	switch kind {
	case models.PrincipalUser:
		return "/user", true
	case models.PrincipalOperator:
		return "/admin", true
	default:
		return "", false
	}
}

func (c *Client) CheckUserSession(ctx context.Context) (models.Principal, error) {
	var out sessionResponse
	status, err := c.do(ctx, http.MethodGet, "/user/check-session", nil, &out)
	if err != nil {
		return models.NoPrincipal(), err
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return models.NoPrincipal(), nil
	}
	if status/100 != 2 {
		return models.NoPrincipal(), domain.NetworkError{Op: "user check-session", Err: fmt.Errorf("status %d", status)}
	}
	if !out.IsLoggedIn || out.User == nil {
		return models.NoPrincipal(), nil
	}
	acc, err := out.User.account()
	if err != nil {
		return models.NoPrincipal(), domain.NetworkError{Op: "user check-session", Err: err}
	}
	return models.UserPrincipal(acc), nil
}

func (c *Client) CheckOperatorSession(ctx context.Context) (models.Principal, error) {
	var out sessionResponse
	status, err := c.do(ctx, http.MethodGet, "/admin/check-session", nil, &out)
	if err != nil {
		return models.NoPrincipal(), err
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return models.NoPrincipal(), nil
	}
	if status/100 != 2 {
		return models.NoPrincipal(), domain.NetworkError{Op: "admin check-session", Err: fmt.Errorf("status %d", status)}
	}
	if !out.IsLoggedIn || out.Admin == nil {
		return models.NoPrincipal(), nil
	}
	acc, err := out.Admin.account()
	if err != nil {
		return models.NoPrincipal(), domain.NetworkError{Op: "admin check-session", Err: err}
	}
	return models.OperatorPrincipal(acc), nil
}

// Login posts credentials; a 400/401 answer becomes domain.AuthError carrying the server message.
func (c *Client) Login(ctx context.Context, kind models.PrincipalKind, email, password string) error {
	prefix, ok := rolePath(kind)
	if !ok {
		return domain.ValidationError{Field: "role", Msg: "must be user or admin"}
	}
	var out messageResponse
	status, err := c.do(ctx, http.MethodPost, prefix+"/login", loginRequest{Email: strings.TrimSpace(email), Password: password}, &out)
	if err != nil {
		return err
	}
	switch {
	case status/100 == 2:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusBadRequest || status == http.StatusForbidden:
		msg := out.text()
		if msg == "" {
			msg = "Invalid email or password"
		}
		return domain.AuthError{Msg: msg}
	default:
		return statusError("login", status, out.text())
	}
}

func (c *Client) Logout(ctx context.Context, kind models.PrincipalKind) error {
	prefix, ok := rolePath(kind)
	if !ok {
		return nil
	}
	var out messageResponse
	status, err := c.do(ctx, http.MethodPost, prefix+"/logout", nil, &out)
	if err != nil {
		return err
	}
	if status/100 != 2 {
		return statusError("logout", status, out.text())
	}
	return nil
}

// CreateBooking posts the booking. A 2xx body is returned as-is (success may be false);
// 401 is domain.AuthError, other failures carry the server message as domain.RejectionError.
func (c *Client) CreateBooking(ctx context.Context, req models.BookingRequest) (models.BookingResult, error) {
	var out bookingResponse
	status, err := c.do(ctx, http.MethodPost, "/booking/create", req, &out)
	if err != nil {
		return models.BookingResult{}, err
	}
	res := models.BookingResult{
		Success:      out.Success,
		TicketNumber: out.TicketNumber.String(),
		Message:      out.Message.String(),
	}
	switch {
	case status/100 == 2:
		return res, nil
	case status == http.StatusUnauthorized:
		return res, domain.AuthError{Msg: res.Message}
	default:
		return res, statusError("booking create", status, res.Message)
	}
}

// statusError keeps server messages verbatim; a bare 5xx is treated as a connectivity problem.
func statusError(op string, status int, msg string) error {
	if msg != "" {
		return domain.RejectionError{Msg: msg}
	}
	if status >= 500 {
		return domain.NetworkError{Op: op, Err: fmt.Errorf("status %d", status)}
	}
	return domain.RejectionError{}
}

// do sends body as JSON and decodes a JSON answer into out when present.
// Transport failures and deadlines are domain.NetworkError; any HTTP status is returned to the caller.
func (c *Client) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, domain.InternalError{Msg: "encode request", Err: err}
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rdr)
	if err != nil {
		return 0, domain.InternalError{Msg: "build request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rid := utils.RequestIDFrom(ctx)
	if rid != "" {
		req.Header.Set("X-Request-ID", rid)
	}

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		utils.LogEvent(rid, "backend", "request_failed", fmt.Sprintf("%s %s err=%v", method, path, err))
		return 0, domain.NetworkError{Op: strings.TrimPrefix(path, "/"), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, domain.NetworkError{Op: strings.TrimPrefix(path, "/"), Err: err}
	}
	utils.LogEvent(rid, "backend", "request", fmt.Sprintf("%s %s status=%d latency_ms=%d", method, path, resp.StatusCode, time.Since(start).Milliseconds()))

	if out != nil && len(bytes.TrimSpace(raw)) > 0 {
		// error pages are often HTML; only a 2xx body has to parse
		if err := json.Unmarshal(raw, out); err != nil && resp.StatusCode/100 == 2 {
			return resp.StatusCode, domain.NetworkError{Op: strings.TrimPrefix(path, "/"), Err: fmt.Errorf("decode response: %w", err)}
		}
	}
	return resp.StatusCode, nil
}
