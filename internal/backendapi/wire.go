package backendapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"busclient/internal/domain"
	"busclient/internal/domain/models"
)

// Stringish tolerates string/number/bool values and keeps them as a string.
type Stringish string

func (s *Stringish) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case string(b) == "null" || len(b) == 0:
		*s = ""
		return nil
	case len(b) >= 2 && b[0] == '"' && b[len(b)-1] == '"':
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = Stringish(str)
		return nil
	default:
		*s = Stringish(strings.Trim(string(b), `"`))
		return nil
	}
}

func (s Stringish) String() string { return strings.TrimSpace(string(s)) }

// ErrInvalidID marks a session whose account id is missing, non-numeric or not positive.
var ErrInvalidID = errors.New("backendapi: invalid account id")

// ID parses the value as a positive numeric identity.
func (s Stringish) ID() (domain.ID, error) {
	n, err := strconv.ParseInt(s.String(), 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w %q", ErrInvalidID, s.String())
	}
	return domain.ID(n), nil
}

type userWire struct {
	ID       Stringish `json:"id"`
	FullName Stringish `json:"fullName"`
	Email    Stringish `json:"email"`
	Phone    Stringish `json:"phone"`
	Role     Stringish `json:"role"`
	Status   Stringish `json:"status"`
}

func (u userWire) account() (models.UserAccount, error) {
	id, err := u.ID.ID()
	if err != nil {
		return models.UserAccount{}, err
	}
	return models.UserAccount{
		ID:       id,
		FullName: u.FullName.String(),
		Email:    u.Email.String(),
		Phone:    u.Phone.String(),
		Role:     u.Role.String(),
		Status:   domain.Status(u.Status.String()),
	}, nil
}

type operatorWire struct {
	ID       Stringish `json:"id"`
	FullName Stringish `json:"fullName"`
	Email    Stringish `json:"email"`
	Position Stringish `json:"position"`
	Status   Stringish `json:"status"`
}

func (o operatorWire) account() (models.OperatorAccount, error) {
	id, err := o.ID.ID()
	if err != nil {
		return models.OperatorAccount{}, err
	}
	return models.OperatorAccount{
		ID:       id,
		FullName: o.FullName.String(),
		Email:    o.Email.String(),
		Position: o.Position.String(),
		Status:   domain.Status(o.Status.String()),
	}, nil
}

type sessionResponse struct {
	IsLoggedIn bool          `json:"isLoggedIn"`
	User       *userWire     `json:"user"`
	Admin      *operatorWire `json:"admin"`
}

type messageResponse struct {
	Success *bool     `json:"success"`
	Message Stringish `json:"message"`
	Error   Stringish `json:"error"`
}

func (m messageResponse) text() string {
	if s := m.Message.String(); s != "" {
		return s
	}
	return m.Error.String()
}

type bookingResponse struct {
	Success      bool      `json:"success"`
	TicketNumber Stringish `json:"ticketNumber"`
	Message      Stringish `json:"message"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
