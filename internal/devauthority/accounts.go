// Package devauthority is a small in-memory session authority and booking endpoint for local
// development and integration tests. Sessions are HS256 JWTs in a "session" cookie.
package devauthority

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"busclient/internal/domain"
	"busclient/internal/domain/models"
	"busclient/internal/utils"

	"golang.org/x/crypto/bcrypt"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type account struct {
	role     string
	hash     []byte
	user     models.UserAccount
	operator models.OperatorAccount
}

func (a account) id() domain.ID {
	if a.role == RoleAdmin {
		return a.operator.ID
	}
	return a.user.ID
}

// Store keeps accounts and booked seats in memory.
type Store struct {
	// Cost is the bcrypt cost for new accounts; bcrypt.DefaultCost when zero.
	Cost int

	mu       sync.RWMutex
	accounts map[string]account // role|email
	seats    map[string]string  // route|date|time|seat -> ticket
	tickets  map[string]models.BookingRequest
	nextID   domain.ID
}

func NewStore() *Store {
	return &Store{
		accounts: map[string]account{},
		seats:    map[string]string{},
		tickets:  map[string]models.BookingRequest{},
	}
}

func accountKey(role, email string) string {
	return role + "|" + strings.ToLower(strings.TrimSpace(email))
}

func (s *Store) hash(password string) ([]byte, error) {
	cost := s.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return bcrypt.GenerateFromPassword([]byte(password), cost)
}

// AddUser registers an end user and returns it with its assigned id.
func (s *Store) AddUser(u models.UserAccount, password string) (models.UserAccount, error) {
	if strings.TrimSpace(u.Email) == "" || password == "" {
		return u, domain.ValidationError{Field: "email", Msg: "Email and password are required"}
	}
	hash, err := s.hash(password)
	if err != nil {
		return u, domain.InternalError{Msg: "could not hash the password", Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := accountKey(RoleUser, u.Email)
	if _, ok := s.accounts[key]; ok {
		return u, domain.ConflictError{Resource: "user", Msg: "Email is already registered"}
	}
	s.nextID++
	u.ID = s.nextID
	u.Email = strings.TrimSpace(u.Email)
	if u.Role == "" {
		u.Role = RoleUser
	}
	if u.Status == "" {
		u.Status = "active"
	}
	s.accounts[key] = account{role: RoleUser, hash: hash, user: u}
	return u, nil
}

// AddOperator registers a counter operator and returns it with its assigned id.
func (s *Store) AddOperator(o models.OperatorAccount, password string) (models.OperatorAccount, error) {
	if strings.TrimSpace(o.Email) == "" || password == "" {
		return o, domain.ValidationError{Field: "email", Msg: "Email and password are required"}
	}
	hash, err := s.hash(password)
	if err != nil {
		return o, domain.InternalError{Msg: "could not hash the password", Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := accountKey(RoleAdmin, o.Email)
	if _, ok := s.accounts[key]; ok {
		return o, domain.ConflictError{Resource: "admin", Msg: "Email is already registered"}
	}
	s.nextID++
	o.ID = s.nextID
	o.Email = strings.TrimSpace(o.Email)
	if o.Status == "" {
		o.Status = "active"
	}
	s.accounts[key] = account{role: RoleAdmin, hash: hash, operator: o}
	return o, nil
}

// authenticate checks the password of an account of the given role.
func (s *Store) authenticate(role, email, password string) (account, error) {
	s.mu.RLock()
	acc, ok := s.accounts[accountKey(role, email)]
	s.mu.RUnlock()
	if !ok {
		return account{}, domain.AuthError{Msg: "Invalid email or password"}
	}
	if err := bcrypt.CompareHashAndPassword(acc.hash, []byte(password)); err != nil {
		return account{}, domain.AuthError{Msg: "Invalid email or password"}
	}
	return acc, nil
}

func (s *Store) byID(role string, id domain.ID) (account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, acc := range s.accounts {
		if acc.role == role && acc.id() == id {
			return acc, true
		}
	}
	return account{}, false
}

func seatKey(r models.BookingRequest) string {
	return strings.Join([]string{
		utils.FoldKey(r.FromLocation), utils.FoldKey(r.ToLocation), utils.FoldKey(r.JourneyDate),
		utils.FoldKey(r.DepartureTime), utils.NormalizeSeat(r.SeatNumber),
	}, "|")
}

// Book reserves the seat for the route, date and departure time and issues a ticket number.
func (s *Store) Book(r models.BookingRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := seatKey(r)
	if _, taken := s.seats[key]; taken {
		return "", domain.RejectionError{Msg: fmt.Sprintf("Seat %s is already booked for this journey", utils.NormalizeSeat(r.SeatNumber))}
	}
	var ticket string
	for {
		t, err := ticketNumber()
		if err != nil {
			return "", domain.InternalError{Msg: "could not issue a ticket number", Err: err}
		}
		if _, dup := s.tickets[t]; !dup {
			ticket = t
			break
		}
	}
	s.seats[key] = ticket
	s.tickets[ticket] = r
	return ticket, nil
}

// Tickets returns the number of issued tickets.
func (s *Store) Tickets() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tickets)
}

func ticketNumber() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("BT%06d", n.Int64()), nil
}

// SeedDefaults adds the demo accounts used by the local setup.
func (s *Store) SeedDefaults() error {
	if _, err := s.AddUser(models.UserAccount{FullName: "Demo Passenger", Email: "user@example.com", Phone: "01700000000"}, "password123"); err != nil {
		return err
	}
	_, err := s.AddOperator(models.OperatorAccount{FullName: "Counter Admin", Email: "admin@example.com", Position: "Counter Manager"}, "admin123")
	return err
}
