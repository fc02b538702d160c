package backendapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"busclient/internal/domain"
	"busclient/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return New(srv.URL + "/")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestCheckUserSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /user/check-session", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"isLoggedIn": true,
			"user":       map[string]any{"id": "7", "fullName": " Rahim Uddin ", "email": "rahim@example.com", "phone": 1711111111},
		})
	})
	c := newTestServer(t, mux)

	p, err := c.CheckUserSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.PrincipalUser, p.Kind)
	assert.Equal(t, domain.ID(7), p.ID())
	assert.Equal(t, "Rahim Uddin", p.DisplayName())
	assert.Equal(t, "1711111111", p.User.Phone)
}

func TestCheckSessionSignedOut(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /user/check-session", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "no session"})
	})
	mux.HandleFunc("GET /admin/check-session", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"isLoggedIn": false})
	})
	c := newTestServer(t, mux)

	p, err := c.CheckUserSession(context.Background())
	require.NoError(t, err)
	assert.True(t, p.IsNone())

	p, err = c.CheckOperatorSession(context.Background())
	require.NoError(t, err)
	assert.True(t, p.IsNone())
}

func TestCheckSessionFailures(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /user/check-session", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	mux.HandleFunc("GET /admin/check-session", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	})
	c := newTestServer(t, mux)

	_, err := c.CheckUserSession(context.Background())
	assert.True(t, domain.IsNetwork(err))

	_, err = c.CheckOperatorSession(context.Background())
	assert.True(t, domain.IsNetwork(err), "an undecodable 2xx body is a failure, not a signed-out answer")
}

func TestLoginKeepsSessionCookie(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /admin/login", func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Email != "admin@example.com" || req.Password != "admin123" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "Invalid email or password"})
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "op-3", Path: "/"})
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	})
	mux.HandleFunc("GET /admin/check-session", func(w http.ResponseWriter, r *http.Request) {
		if ck, err := r.Cookie("session"); err != nil || ck.Value != "op-3" {
			writeJSON(w, http.StatusOK, map[string]any{"isLoggedIn": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"isLoggedIn": true, "admin": map[string]any{"id": 3, "fullName": "Counter Admin"}})
	})
	c := newTestServer(t, mux)

	err := c.Login(context.Background(), models.PrincipalOperator, "admin@example.com", "nope")
	require.Error(t, err)
	assert.True(t, domain.IsAuth(err))
	assert.Equal(t, "Invalid email or password", err.Error())

	require.NoError(t, c.Login(context.Background(), models.PrincipalOperator, " admin@example.com ", "admin123"))
	p, err := c.CheckOperatorSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.ID(3), p.ID())

	assert.True(t, domain.IsValidation(c.Login(context.Background(), models.PrincipalNone, "a", "b")))
}

func TestLoginServerError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /user/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	c := newTestServer(t, mux)

	err := c.Login(context.Background(), models.PrincipalUser, "user@example.com", "password123")
	assert.True(t, domain.IsNetwork(err))
}

func TestCreateBooking(t *testing.T) {
	var gotRequestID string
	var got models.BookingRequest
	mux := http.NewServeMux()
	mux.HandleFunc("POST /booking/create", func(w http.ResponseWriter, r *http.Request) {
		gotRequestID = r.Header.Get("X-Request-ID")
		_ = json.NewDecoder(r.Body).Decode(&got)
		switch got.SeatNumber {
		case "A1":
			writeJSON(w, http.StatusCreated, map[string]any{"success": true, "ticketNumber": "BT000123"})
		case "A2":
			writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": "Seat A2 is already booked for this journey"})
		case "A3":
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "Please login to book a ticket"})
		default:
			writeJSON(w, http.StatusConflict, map[string]any{"success": false, "message": "Seat unavailable"})
		}
	})
	c := newTestServer(t, mux)
	ctx := WithRequestID(context.Background(), "req-1")

	res, err := c.CreateBooking(ctx, models.BookingRequest{SeatNumber: "A1", Fare: 1275, BusType: "AC"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "BT000123", res.TicketNumber)
	assert.Equal(t, "req-1", gotRequestID)
	assert.EqualValues(t, 1275, got.Fare)

	res, err = c.CreateBooking(ctx, models.BookingRequest{SeatNumber: "A2"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "Seat A2 is already booked for this journey", res.Message)

	_, err = c.CreateBooking(ctx, models.BookingRequest{SeatNumber: "A3"})
	assert.True(t, domain.IsAuth(err))

	_, err = c.CreateBooking(ctx, models.BookingRequest{SeatNumber: "A4"})
	require.Error(t, err)
	assert.True(t, domain.IsRejection(err))
	assert.Equal(t, "Seat unavailable", err.Error())
}

func TestTransportFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		writeJSON(w, http.StatusOK, map[string]any{"isLoggedIn": false})
	}))
	defer srv.Close()
	c := New(srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.CheckUserSession(ctx)
	assert.True(t, domain.IsNetwork(err))

	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()
	_, err = New(dead.URL).CreateBooking(context.Background(), models.BookingRequest{})
	assert.True(t, domain.IsNetwork(err))
}

func TestStringish(t *testing.T) {
	var v struct {
		A Stringish `json:"a"`
		B Stringish `json:"b"`
		C Stringish `json:"c"`
		D Stringish `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"x","b":42,"c":null,"d":true}`), &v))
	assert.Equal(t, "x", v.A.String())
	id, err := v.B.ID()
	require.NoError(t, err)
	assert.Equal(t, domain.ID(42), id)
	assert.Empty(t, v.C.String())
	assert.Equal(t, "true", v.D.String())

	for _, bad := range []Stringish{"x", "", "0", "-3", "65f1c0ab"} {
		_, err := bad.ID()
		assert.ErrorIs(t, err, ErrInvalidID, "id %q", bad)
	}
}

func TestCheckSessionRejectsUnusableID(t *testing.T) {
	cases := map[string]map[string]any{
		"hex id":     {"id": "65f1c0ab", "fullName": "Rahim Uddin"},
		"missing id": {"fullName": "Rahim Uddin"},
		"zero id":    {"id": 0, "fullName": "Rahim Uddin"},
	}
	for name, account := range cases {
		t.Run(name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("GET /user/check-session", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, map[string]any{"isLoggedIn": true, "user": account})
			})
			mux.HandleFunc("GET /admin/check-session", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, map[string]any{"isLoggedIn": true, "admin": account})
			})
			c := newTestServer(t, mux)

			p, err := c.CheckUserSession(context.Background())
			assert.True(t, domain.IsNetwork(err))
			assert.ErrorIs(t, err, ErrInvalidID)
			assert.True(t, p.IsNone())

			p, err = c.CheckOperatorSession(context.Background())
			assert.ErrorIs(t, err, ErrInvalidID)
			assert.True(t, p.IsNone())
		})
	}
}
