package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"busclient/internal/domain"
	"busclient/internal/domain/models"
	"busclient/internal/utils"
)

const (
	DefaultSubmitTimeout = 15 * time.Second

	genericBookingFailure = "Booking failed. Please try again."
	keptConfirmations     = 10
)

// BookingSubmitter sends a booking to the backend. Business refusals come back as
// domain.RejectionError, credential problems as domain.AuthError.
type BookingSubmitter interface {
	CreateBooking(ctx context.Context, req models.BookingRequest) (models.BookingResult, error)
}

// SessionExpirer is told when the backend rejected the session during a submission.
type SessionExpirer interface {
	Expire(reason string)
}

// BookingSnapshot is a read-only view of the orchestrator.
type BookingSnapshot struct {
	State        models.BookingState         `json:"state"`
	Draft        models.BookingDraft         `json:"draft"`
	Errors       map[string]string           `json:"errors,omitempty"`
	Message      string                      `json:"message,omitempty"`
	Confirmation *models.BookingConfirmation `json:"confirmation,omitempty"`
}

// BookingOrchestrator drives one booking form through
// Editing -> Validating -> Submitting -> Confirmed | Rejected. Rejected always goes back to Editing.
type BookingOrchestrator struct {
	Fares      FareEngine
	Submitter  BookingSubmitter
	Feed       *NotificationFeed
	Principals *PrincipalStore
	Session    SessionExpirer
	Timeout    time.Duration
	Now        func() time.Time

	mu            sync.Mutex
	state         models.BookingState
	draft         models.BookingDraft
	errs          domain.ValidationErrors
	message       string
	draftOwner    models.Principal
	confirmations []models.BookingConfirmation // newest last
}

type BookingOptions struct {
	Fares      FareEngine
	Submitter  BookingSubmitter
	Feed       *NotificationFeed
	Principals *PrincipalStore
	Session    SessionExpirer
	Timeout    time.Duration
	Now        func() time.Time
}

func NewBookingOrchestrator(opts BookingOptions) *BookingOrchestrator {
	o := &BookingOrchestrator{
		Fares:      opts.Fares,
		Submitter:  opts.Submitter,
		Feed:       opts.Feed,
		Principals: opts.Principals,
		Session:    opts.Session,
		Timeout:    opts.Timeout,
		Now:        opts.Now,
		state:      models.StateEditing,
	}
	o.draftOwner = o.principal()
	o.draft = o.freshDraft(o.draftOwner)
	return o
}

func (o *BookingOrchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o *BookingOrchestrator) timeout() time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	return DefaultSubmitTimeout
}

func (o *BookingOrchestrator) principal() models.Principal {
	if o.Principals == nil {
		return models.NoPrincipal()
	}
	return o.Principals.Current()
}

// freshDraft starts from the form defaults (AC bus) with contact fields taken from a User principal.
func (o *BookingOrchestrator) freshDraft(p models.Principal) models.BookingDraft {
	d := models.BookingDraft{ServiceClass: models.ServicePremium}
	d.Fare = models.NoQuote(d.Route, d.ServiceClass)
	fillContact(&d, p)
	return d
}

func fillContact(d *models.BookingDraft, p models.Principal) {
	if p.Kind != models.PrincipalUser || p.User == nil {
		return
	}
	if strings.TrimSpace(d.PassengerName) == "" {
		d.PassengerName = p.User.FullName
	}
	if strings.TrimSpace(d.PassengerPhone) == "" {
		d.PassengerPhone = p.User.Phone
	}
	if strings.TrimSpace(d.PassengerEmail) == "" {
		d.PassengerEmail = p.User.Email
	}
}

func (o *BookingOrchestrator) Snapshot() BookingSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

func (o *BookingOrchestrator) snapshotLocked() BookingSnapshot {
	s := BookingSnapshot{State: o.state, Draft: o.draft, Message: o.message}
	if len(o.errs) > 0 {
		s.Errors = o.errs.Fields()
	}
	if o.state == models.StateConfirmed && len(o.confirmations) > 0 {
		c := o.confirmations[len(o.confirmations)-1]
		s.Confirmation = &c
	}
	return s
}

// Apply mutates the draft. A change to either route endpoint or the service class replaces the
// fare with a fresh quote. Mutations are refused while a submission is in flight.
func (o *BookingOrchestrator) Apply(patch models.DraftPatch) (BookingSnapshot, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state == models.StateSubmitting {
		return o.snapshotLocked(), errSubmissionInFlight
	}

	var class models.ServiceClass
	if patch.ServiceClass != nil {
		c, ok := models.ParseServiceClass(*patch.ServiceClass)
		if !ok {
			return o.snapshotLocked(), domain.ValidationError{Field: "busType", Msg: "Unknown bus type"}
		}
		class = c
	}

	d := o.draft
	touched := []string{}
	set := func(field string, dst *string, v *string) {
		if v == nil {
			return
		}
		*dst = *v
		touched = append(touched, field)
	}
	set("fromLocation", &d.Route.From, patch.From)
	set("toLocation", &d.Route.To, patch.To)
	set("journeyDate", &d.JourneyDate, patch.JourneyDate)
	set("departureTime", &d.DepartureTime, patch.DepartureTime)
	set("seatNumber", &d.SeatNumber, patch.SeatNumber)
	set("passengerName", &d.PassengerName, patch.PassengerName)
	set("passengerPhone", &d.PassengerPhone, patch.PassengerPhone)
	set("passengerEmail", &d.PassengerEmail, patch.PassengerEmail)
	if patch.ServiceClass != nil {
		d.ServiceClass = class
		touched = append(touched, "busType")
	}
	if patch.TouchesFare() {
		d.Fare = o.Fares.Quote(d.Route, d.ServiceClass)
		touched = append(touched, "fare")
	}

	o.draft = d
	o.enterEditingLocked(touched...)
	return o.snapshotLocked(), nil
}

// SelectRoute sets both endpoints at once, as picking a popular route does.
func (o *BookingOrchestrator) SelectRoute(route models.Route) (BookingSnapshot, error) {
	from, to := route.From, route.To
	return o.Apply(models.DraftPatch{From: &from, To: &to})
}

// Reset discards the draft and starts a fresh one.
func (o *BookingOrchestrator) Reset() (BookingSnapshot, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == models.StateSubmitting {
		return o.snapshotLocked(), errSubmissionInFlight
	}
	o.draftOwner = o.principal()
	o.draft = o.freshDraft(o.draftOwner)
	o.state = models.StateEditing
	o.errs = nil
	o.message = ""
	return o.snapshotLocked(), nil
}

// OnPrincipalChange keeps contact fields in step with the session. A draft started by a different
// identity is discarded; signing out keeps the draft so it can be resubmitted after signing back in.
func (o *BookingOrchestrator) OnPrincipalChange(_, next models.Principal) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == models.StateSubmitting || next.IsNone() {
		return
	}
	if !o.draftOwner.IsNone() && !o.draftOwner.SameIdentity(next) {
		o.draft = o.freshDraft(next)
		o.errs = nil
		o.message = ""
		o.state = models.StateEditing
	} else {
		fillContact(&o.draft, next)
	}
	o.draftOwner = next
}

func (o *BookingOrchestrator) enterEditingLocked(cleared ...string) {
	o.state = models.StateEditing
	o.message = ""
	if len(o.errs) == 0 || len(cleared) == 0 {
		return
	}
	drop := map[string]bool{}
	for _, f := range cleared {
		drop[f] = true
	}
	kept := o.errs[:0:0]
	for _, e := range o.errs {
		if !drop[e.Field] {
			kept = append(kept, e)
		}
	}
	o.errs = kept
}

var errSubmissionInFlight = domain.ConflictError{Resource: "booking", Msg: "submission already in progress"}

// Submit validates the draft and, only if it is valid, sends it. Exactly one submission may be in
// flight; a second call while one is pending is refused, not queued.
func (o *BookingOrchestrator) Submit(ctx context.Context) (models.BookingConfirmation, error) {
	o.mu.Lock()
	if o.state == models.StateSubmitting {
		o.mu.Unlock()
		return models.BookingConfirmation{}, errSubmissionInFlight
	}

	o.state = models.StateValidating
	if errs := ValidateDraft(o.draft, o.now()); len(errs) > 0 {
		o.state = models.StateEditing
		o.errs = errs
		o.message = ""
		o.mu.Unlock()
		return models.BookingConfirmation{}, errs
	}
	o.errs = nil
	o.message = ""
	o.state = models.StateSubmitting
	req := models.NewBookingRequest(o.draft)
	submitter := o.Submitter
	o.mu.Unlock()

	utils.LogEvent(utils.RequestIDFrom(ctx), "booking", "submit", fmt.Sprintf("route=%s->%s seat=%s fare=%d", req.FromLocation, req.ToLocation, req.SeatNumber, req.Fare))

	var (
		res models.BookingResult
		err error
	)
	if submitter == nil {
		err = domain.InternalError{Msg: "booking endpoint is not configured"}
	} else {
		sctx, cancel := context.WithTimeout(ctx, o.timeout())
		res, err = submitter.CreateBooking(sctx, req)
		cancel()
	}

	if err == nil && !res.Success {
		msg := strings.TrimSpace(res.Message)
		err = domain.RejectionError{Msg: msg}
	}
	if err == nil && strings.TrimSpace(res.TicketNumber) == "" {
		err = domain.RejectionError{}
	}
	if err != nil {
		return models.BookingConfirmation{}, o.reject(ctx, err)
	}

	conf := models.BookingConfirmation{
		TicketNumber: strings.TrimSpace(res.TicketNumber),
		Request:      req,
		ConfirmedAt:  o.now(),
	}

	o.mu.Lock()
	o.state = models.StateConfirmed
	o.confirmations = append(o.confirmations, conf)
	if len(o.confirmations) > keptConfirmations {
		o.confirmations = o.confirmations[len(o.confirmations)-keptConfirmations:]
	}
	o.draftOwner = o.principal()
	o.draft = o.freshDraft(o.draftOwner)
	o.message = fmt.Sprintf("Booking successful! Your ticket number is: %s", conf.TicketNumber)
	msg := o.message
	o.mu.Unlock()

	utils.LogEvent(utils.RequestIDFrom(ctx), "booking", "confirmed", "ticket="+conf.TicketNumber)
	if o.Feed != nil {
		o.Feed.Push(msg)
	}
	return conf, nil
}

// reject moves to Rejected keeping the draft untouched, and normalizes err into the taxonomy.
func (o *BookingOrchestrator) reject(ctx context.Context, err error) error {
	var (
		out     error
		message string
		expire  bool
	)
	switch {
	case domain.IsRejection(err), domain.IsAuth(err):
		out = err
		message = err.Error()
		var rej domain.RejectionError
		if errors.As(err, &rej) && strings.TrimSpace(rej.Msg) == "" {
			message = genericBookingFailure
		}
		expire = domain.IsAuth(err)
	case domain.IsNetwork(err):
		out = err
		message = genericBookingFailure
	case domain.IsInternal(err):
		out = err
		message = genericBookingFailure
	default:
		out = domain.NetworkError{Op: "booking create", Err: err}
		message = genericBookingFailure
	}

	o.mu.Lock()
	o.state = models.StateRejected
	o.message = message
	o.mu.Unlock()

	utils.LogEvent(utils.RequestIDFrom(ctx), "booking", "rejected", err.Error())
	if expire && o.Session != nil {
		o.Session.Expire("booking: " + err.Error())
	}
	return out
}

// Confirmation looks up one of the recently confirmed bookings by ticket number.
func (o *BookingOrchestrator) Confirmation(ticket string) (models.BookingConfirmation, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	ticket = strings.TrimSpace(ticket)
	for i := len(o.confirmations) - 1; i >= 0; i-- {
		if strings.EqualFold(o.confirmations[i].TicketNumber, ticket) {
			return o.confirmations[i], true
		}
	}
	return models.BookingConfirmation{}, false
}

// ValidateDraft checks required fields, that the journey is not in the past, and that the fare is a real quote.
func ValidateDraft(d models.BookingDraft, now time.Time) domain.ValidationErrors {
	var errs domain.ValidationErrors
	required := []struct {
		field, value, msg string
	}{
		{"fromLocation", d.Route.From, "From location is required"},
		{"toLocation", d.Route.To, "To location is required"},
		{"journeyDate", d.JourneyDate, "Journey date is required"},
		{"departureTime", d.DepartureTime, "Departure time is required"},
		{"seatNumber", d.SeatNumber, "Seat number is required"},
		{"passengerName", d.PassengerName, "Passenger name is required"},
		{"passengerPhone", d.PassengerPhone, "Passenger phone is required"},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs = append(errs, domain.ValidationError{Field: r.field, Msg: r.msg})
		}
	}

	if strings.TrimSpace(d.JourneyDate) != "" {
		day, err := utils.ParseDate(d.JourneyDate)
		switch {
		case err != nil:
			errs = append(errs, domain.ValidationError{Field: "journeyDate", Msg: "Journey date is invalid", Err: err})
		case day.Before(utils.StartOfDay(now)):
			errs = append(errs, domain.ValidationError{Field: "journeyDate", Msg: "Journey date cannot be in the past"})
		}
	}

	if strings.TrimSpace(d.DepartureTime) != "" {
		if _, err := utils.ParseClock(d.DepartureTime); err != nil {
			errs = append(errs, domain.ValidationError{Field: "departureTime", Msg: "Departure time is invalid", Err: err})
		}
	}

	if !d.Fare.Valid() || !d.Fare.Route.Equal(d.Route) || d.Fare.Class != d.ServiceClass {
		errs = append(errs, domain.ValidationError{Field: "fare", Msg: "Please select a valid route"})
	}
	return errs
}
