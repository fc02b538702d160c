package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"busclient/internal/domain"
	"busclient/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bookingNow = time.Date(2026, 10, 18, 9, 0, 0, 0, time.Local)

func str(s string) *string { return &s }

type bookingFixture struct {
	o       *BookingOrchestrator
	auth    *fakeAuthority
	feed    *NotificationFeed
	store   *PrincipalStore
	expirer *expirerSpy
}

func newBookingFixture(t *testing.T) *bookingFixture {
	t.Helper()
	f := &bookingFixture{
		auth:    &fakeAuthority{},
		feed:    NewNotificationFeed(FeedOptions{Capacity: 10, TTL: time.Hour}),
		store:   NewPrincipalStore(),
		expirer: &expirerSpy{},
	}
	t.Cleanup(f.feed.ClearAll)
	f.o = NewBookingOrchestrator(BookingOptions{
		Submitter:  f.auth,
		Feed:       f.feed,
		Principals: f.store,
		Session:    f.expirer,
		Timeout:    time.Second,
		Now:        func() time.Time { return bookingNow },
	})
	return f
}

func completeDraft(t *testing.T, o *BookingOrchestrator) BookingSnapshot {
	t.Helper()
	snap, err := o.Apply(models.DraftPatch{
		From:           str("Dhaka"),
		To:             str("Chittagong"),
		JourneyDate:    str("2026-10-20"),
		DepartureTime:  str("09:00"),
		SeatNumber:     str("a1"),
		PassengerName:  str("Karim Ahmed"),
		PassengerPhone: str("01812345678"),
	})
	require.NoError(t, err)
	return snap
}

func TestNewDraftDefaults(t *testing.T) {
	f := newBookingFixture(t)
	snap := f.o.Snapshot()
	assert.Equal(t, models.StateEditing, snap.State)
	assert.Equal(t, models.ServicePremium, snap.Draft.ServiceClass)
	assert.False(t, snap.Draft.Fare.Determined)
	assert.Empty(t, snap.Draft.PassengerName)
}

func TestApplyRequotesFare(t *testing.T) {
	f := newBookingFixture(t)

	snap, err := f.o.SelectRoute(models.Route{From: "Dhaka", To: "Chittagong"})
	require.NoError(t, err)
	assert.True(t, snap.Draft.Fare.Determined)
	assert.EqualValues(t, 1275, snap.Draft.Fare.Amount)

	snap, err = f.o.Apply(models.DraftPatch{ServiceClass: str("Non-AC")})
	require.NoError(t, err)
	assert.Equal(t, models.ServiceStandard, snap.Draft.ServiceClass)
	assert.EqualValues(t, 850, snap.Draft.Fare.Amount)

	snap, err = f.o.Apply(models.DraftPatch{To: str("Nowhere")})
	require.NoError(t, err)
	assert.False(t, snap.Draft.Fare.Determined)

	_, err = f.o.Apply(models.DraftPatch{ServiceClass: str("Hovercraft")})
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
}

func TestSubmitRejectsPastDateWithoutCallingBackend(t *testing.T) {
	f := newBookingFixture(t)
	completeDraft(t, f.o)
	_, err := f.o.Apply(models.DraftPatch{JourneyDate: str("2026-10-17")})
	require.NoError(t, err)

	_, err = f.o.Submit(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
	assert.Zero(t, f.auth.bookingCalls.Load())

	snap := f.o.Snapshot()
	assert.Equal(t, models.StateEditing, snap.State)
	assert.Equal(t, "Journey date cannot be in the past", snap.Errors["journeyDate"])
}

func TestSubmitTodayIsAllowed(t *testing.T) {
	f := newBookingFixture(t)
	completeDraft(t, f.o)
	_, err := f.o.Apply(models.DraftPatch{JourneyDate: str("2026-10-18")})
	require.NoError(t, err)

	_, err = f.o.Submit(context.Background())
	require.NoError(t, err)
}

func TestSubmitReportsMissingFieldsAndEditClearsThem(t *testing.T) {
	f := newBookingFixture(t)
	_, err := f.o.SelectRoute(models.Route{From: "Dhaka", To: "Sylhet"})
	require.NoError(t, err)

	_, err = f.o.Submit(context.Background())
	require.Error(t, err)
	snap := f.o.Snapshot()
	assert.Contains(t, snap.Errors, "seatNumber")
	assert.Contains(t, snap.Errors, "passengerName")
	assert.NotContains(t, snap.Errors, "fare")

	snap, err = f.o.Apply(models.DraftPatch{SeatNumber: str("B4")})
	require.NoError(t, err)
	assert.NotContains(t, snap.Errors, "seatNumber")
	assert.Contains(t, snap.Errors, "passengerName")
}

func TestSubmitConfirmed(t *testing.T) {
	f := newBookingFixture(t)
	var sent models.BookingRequest
	f.auth.createBooking = func(_ context.Context, req models.BookingRequest) (models.BookingResult, error) {
		sent = req
		return models.BookingResult{Success: true, TicketNumber: "BT000042", Message: "Booking created successfully"}, nil
	}
	completeDraft(t, f.o)

	conf, err := f.o.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "BT000042", conf.TicketNumber)

	assert.Equal(t, "AC", sent.BusType)
	assert.Equal(t, "A1", sent.SeatNumber)
	assert.EqualValues(t, 1275, sent.Fare)

	snap := f.o.Snapshot()
	assert.Equal(t, models.StateConfirmed, snap.State)
	assert.Equal(t, "Booking successful! Your ticket number is: BT000042", snap.Message)
	require.NotNil(t, snap.Confirmation)
	assert.Empty(t, snap.Draft.SeatNumber, "draft resets after confirmation")

	entries := f.feed.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, models.OriginLocal, entries[0].Origin)
	assert.Contains(t, entries[0].Text, "BT000042")

	found, ok := f.o.Confirmation("bt000042")
	require.True(t, ok)
	assert.Equal(t, "Karim Ahmed", found.Request.PassengerName)
}

func TestSubmitRejectionKeepsDraft(t *testing.T) {
	f := newBookingFixture(t)
	f.auth.createBooking = func(context.Context, models.BookingRequest) (models.BookingResult, error) {
		return models.BookingResult{Success: false, Message: "Seat A1 is already booked for this journey"}, nil
	}
	completeDraft(t, f.o)

	_, err := f.o.Submit(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsRejection(err))

	snap := f.o.Snapshot()
	assert.Equal(t, models.StateRejected, snap.State)
	assert.Equal(t, "Seat A1 is already booked for this journey", snap.Message)
	assert.Equal(t, "a1", snap.Draft.SeatNumber)
	assert.Zero(t, f.feed.Len())

	snap, err = f.o.Apply(models.DraftPatch{SeatNumber: str("A2")})
	require.NoError(t, err)
	assert.Equal(t, models.StateEditing, snap.State)
	assert.Empty(t, snap.Message)
}

func TestSubmitRejectionWithoutMessage(t *testing.T) {
	f := newBookingFixture(t)
	f.auth.createBooking = func(context.Context, models.BookingRequest) (models.BookingResult, error) {
		return models.BookingResult{Success: false}, nil
	}
	completeDraft(t, f.o)

	_, err := f.o.Submit(context.Background())
	require.Error(t, err)
	assert.Equal(t, genericBookingFailure, f.o.Snapshot().Message)
}

func TestSubmitTimeoutIsNetworkFailure(t *testing.T) {
	f := newBookingFixture(t)
	f.o.Timeout = 20 * time.Millisecond
	f.auth.createBooking = func(ctx context.Context, _ models.BookingRequest) (models.BookingResult, error) {
		<-ctx.Done()
		return models.BookingResult{}, ctx.Err()
	}
	completeDraft(t, f.o)
	before := f.o.Snapshot().Draft

	_, err := f.o.Submit(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsNetwork(err))

	snap := f.o.Snapshot()
	assert.Equal(t, models.StateRejected, snap.State)
	assert.Equal(t, genericBookingFailure, snap.Message)
	assert.Equal(t, before, snap.Draft, "every draft field survives the timeout")
	assert.Zero(t, f.expirer.count())
}

func TestSubmitAuthFailureExpiresSession(t *testing.T) {
	f := newBookingFixture(t)
	f.auth.createBooking = func(context.Context, models.BookingRequest) (models.BookingResult, error) {
		return models.BookingResult{}, domain.AuthError{Msg: "Please login to book a ticket"}
	}
	completeDraft(t, f.o)

	_, err := f.o.Submit(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsAuth(err))
	assert.Equal(t, 1, f.expirer.count())
	assert.Equal(t, "Please login to book a ticket", f.o.Snapshot().Message)
}

func TestOnlyOneSubmissionInFlight(t *testing.T) {
	f := newBookingFixture(t)
	release := make(chan struct{})
	f.auth.createBooking = func(context.Context, models.BookingRequest) (models.BookingResult, error) {
		<-release
		return models.BookingResult{Success: true, TicketNumber: "BT000007"}, nil
	}
	completeDraft(t, f.o)

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = f.o.Submit(context.Background())
	}()
	require.Eventually(t, func() bool { return f.auth.bookingCalls.Load() == 1 }, time.Second, time.Millisecond)

	assert.Equal(t, models.StateSubmitting, f.o.Snapshot().State)
	_, err := f.o.Submit(context.Background())
	assert.True(t, domain.IsConflict(err))
	_, err = f.o.Apply(models.DraftPatch{SeatNumber: str("C3")})
	assert.True(t, domain.IsConflict(err))
	_, err = f.o.Reset()
	assert.True(t, domain.IsConflict(err))

	close(release)
	wg.Wait()
	require.NoError(t, firstErr)
	assert.EqualValues(t, 1, f.auth.bookingCalls.Load())
}

func TestPrincipalChangeAndDraft(t *testing.T) {
	f := newBookingFixture(t)

	f.o.OnPrincipalChange(models.NoPrincipal(), testUser(7))
	snap := f.o.Snapshot()
	assert.Equal(t, "Rahim Uddin", snap.Draft.PassengerName)
	assert.Equal(t, "01711111111", snap.Draft.PassengerPhone)
	assert.Equal(t, "rahim@example.com", snap.Draft.PassengerEmail)

	_, err := f.o.Apply(models.DraftPatch{SeatNumber: str("D2"), PassengerName: str("Someone Else")})
	require.NoError(t, err)

	f.o.OnPrincipalChange(testUser(7), models.NoPrincipal())
	assert.Equal(t, "D2", f.o.Snapshot().Draft.SeatNumber, "signing out keeps the draft")

	f.o.OnPrincipalChange(models.NoPrincipal(), testUser(7))
	snap = f.o.Snapshot()
	assert.Equal(t, "D2", snap.Draft.SeatNumber)
	assert.Equal(t, "Someone Else", snap.Draft.PassengerName, "typed contact fields are not overwritten")

	f.o.OnPrincipalChange(testUser(7), testOperator(3))
	snap = f.o.Snapshot()
	assert.Empty(t, snap.Draft.SeatNumber, "another identity starts a fresh draft")
	assert.Empty(t, snap.Draft.PassengerName, "operators are not prefilled")
}

func TestValidateDraft(t *testing.T) {
	engine := FareEngine{}
	route := models.Route{From: "Dhaka", To: "Khulna"}
	d := models.BookingDraft{
		Route:          route,
		JourneyDate:    "2026-13-40",
		DepartureTime:  "25:99",
		ServiceClass:   models.ServiceStandard,
		SeatNumber:     "A1",
		PassengerName:  "Karim",
		PassengerPhone: "01812345678",
		Fare:           engine.Quote(route, models.ServicePremium),
	}
	fields := ValidateDraft(d, bookingNow).Fields()
	assert.Equal(t, "Journey date is invalid", fields["journeyDate"])
	assert.Equal(t, "Departure time is invalid", fields["departureTime"])
	assert.Equal(t, "Please select a valid route", fields["fare"], "a quote for another class is stale")

	d.JourneyDate = "2026-10-19"
	d.DepartureTime = "07:30"
	d.Fare = engine.Quote(route, models.ServiceStandard)
	assert.Empty(t, ValidateDraft(d, bookingNow))
}
