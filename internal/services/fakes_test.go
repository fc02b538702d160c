package services

import (
	"context"
	"sync"
	"sync/atomic"

	"busclient/internal/broadcast"
	"busclient/internal/domain"
	"busclient/internal/domain/models"
)

func domainID(id int64) domain.ID { return domain.ID(id) }

type fakeAuthority struct {
	checkUser     func(ctx context.Context) (models.Principal, error)
	checkOperator func(ctx context.Context) (models.Principal, error)
	login         func(ctx context.Context, kind models.PrincipalKind, email, password string) error
	logout        func(ctx context.Context, kind models.PrincipalKind) error
	createBooking func(ctx context.Context, req models.BookingRequest) (models.BookingResult, error)

	userCalls     atomic.Int32
	operatorCalls atomic.Int32
	bookingCalls  atomic.Int32
}

func (f *fakeAuthority) CheckUserSession(ctx context.Context) (models.Principal, error) {
	f.userCalls.Add(1)
	if f.checkUser == nil {
		return models.NoPrincipal(), nil
	}
	return f.checkUser(ctx)
}

func (f *fakeAuthority) CheckOperatorSession(ctx context.Context) (models.Principal, error) {
	f.operatorCalls.Add(1)
	if f.checkOperator == nil {
		return models.NoPrincipal(), nil
	}
	return f.checkOperator(ctx)
}

func (f *fakeAuthority) Login(ctx context.Context, kind models.PrincipalKind, email, password string) error {
	if f.login == nil {
		return nil
	}
	return f.login(ctx, kind, email, password)
}

func (f *fakeAuthority) Logout(ctx context.Context, kind models.PrincipalKind) error {
	if f.logout == nil {
		return nil
	}
	return f.logout(ctx, kind)
}

func (f *fakeAuthority) CreateBooking(ctx context.Context, req models.BookingRequest) (models.BookingResult, error) {
	f.bookingCalls.Add(1)
	if f.createBooking == nil {
		return models.BookingResult{Success: true, TicketNumber: "BT000001"}, nil
	}
	return f.createBooking(ctx, req)
}

type expirerSpy struct {
	mu      sync.Mutex
	reasons []string
}

func (e *expirerSpy) Expire(reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reasons = append(e.reasons, reason)
}

func (e *expirerSpy) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.reasons)
}

func testUser(id int64) models.Principal {
	return models.UserPrincipal(models.UserAccount{
		ID:       domainID(id),
		FullName: "Rahim Uddin",
		Email:    "rahim@example.com",
		Phone:    "01711111111",
		Role:     "user",
		Status:   "active",
	})
}

func testOperator(id int64) models.Principal {
	return models.OperatorPrincipal(models.OperatorAccount{
		ID:       domainID(id),
		FullName: "Counter One",
		Email:    "counter@example.com",
		Position: "Counter Manager",
		Status:   "active",
	})
}

// hangingDialer never connects; every Dial blocks until its ctx is done.
type hangingDialer struct{ entered chan struct{} }

func newHangingDialer() *hangingDialer { return &hangingDialer{entered: make(chan struct{}, 16)} }

func (d *hangingDialer) Dial(ctx context.Context) (broadcast.Conn, error) {
	select {
	case d.entered <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

// gatedDialer dials the hub once release is closed.
type gatedDialer struct {
	hub     *broadcast.Hub
	entered chan struct{}
	release chan struct{}
}

func newGatedDialer(hub *broadcast.Hub) *gatedDialer {
	return &gatedDialer{hub: hub, entered: make(chan struct{}, 16), release: make(chan struct{})}
}

func (d *gatedDialer) Dial(ctx context.Context) (broadcast.Conn, error) {
	select {
	case d.entered <- struct{}{}:
	default:
	}
	<-d.release
	return d.hub.Dial(context.Background())
}
