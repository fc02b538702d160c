package models

import (
	"strings"
	"time"

	"busclient/internal/utils"
)

// BookingState is the orchestrator's position in Editing -> Validating -> Submitting -> Confirmed|Rejected.
type BookingState string

const (
	StateEditing    BookingState = "editing"
	StateValidating BookingState = "validating"
	StateSubmitting BookingState = "submitting"
	StateConfirmed  BookingState = "confirmed"
	StateRejected   BookingState = "rejected"
)

// BookingDraft is the client-side form state. It never leaves the process until submission.
type BookingDraft struct {
	Route          Route        `json:"route"`
	JourneyDate    string       `json:"journeyDate"`
	DepartureTime  string       `json:"departureTime"`
	ServiceClass   ServiceClass `json:"serviceClass"`
	SeatNumber     string       `json:"seatNumber"`
	Fare           FareQuote    `json:"fare"`
	PassengerName  string       `json:"passengerName"`
	PassengerPhone string       `json:"passengerPhone"`
	PassengerEmail string       `json:"passengerEmail"`
}

// DraftPatch supports PATCH-style updates via key presence.
type DraftPatch struct {
	From           *string `json:"fromLocation"`
	To             *string `json:"toLocation"`
	JourneyDate    *string `json:"journeyDate"`
	DepartureTime  *string `json:"departureTime"`
	ServiceClass   *string `json:"busType"`
	SeatNumber     *string `json:"seatNumber"`
	PassengerName  *string `json:"passengerName"`
	PassengerPhone *string `json:"passengerPhone"`
	PassengerEmail *string `json:"passengerEmail"`
}

// TouchesFare reports whether applying the patch changes a fare input.
func (p DraftPatch) TouchesFare() bool {
	return p.From != nil || p.To != nil || p.ServiceClass != nil
}

func (p DraftPatch) Empty() bool {
	return !p.TouchesFare() && p.JourneyDate == nil && p.DepartureTime == nil && p.SeatNumber == nil &&
		p.PassengerName == nil && p.PassengerPhone == nil && p.PassengerEmail == nil
}

// BookingRequest is the wire body of POST /booking/create.
type BookingRequest struct {
	FromLocation   string `json:"fromLocation"`
	ToLocation     string `json:"toLocation"`
	JourneyDate    string `json:"journeyDate"`
	DepartureTime  string `json:"departureTime"`
	BusType        string `json:"busType"`
	SeatNumber     string `json:"seatNumber"`
	Fare           int64  `json:"fare"`
	PassengerName  string `json:"passengerName"`
	PassengerPhone string `json:"passengerPhone"`
	PassengerEmail string `json:"passengerEmail"`
}

// NewBookingRequest flattens a draft into the submission body.
func NewBookingRequest(d BookingDraft) BookingRequest {
	return BookingRequest{
		FromLocation:   strings.TrimSpace(d.Route.From),
		ToLocation:     strings.TrimSpace(d.Route.To),
		JourneyDate:    strings.TrimSpace(d.JourneyDate),
		DepartureTime:  strings.TrimSpace(d.DepartureTime),
		BusType:        d.ServiceClass.WireName(),
		SeatNumber:     utils.NormalizeSeat(d.SeatNumber),
		Fare:           d.Fare.Amount,
		PassengerName:  strings.TrimSpace(d.PassengerName),
		PassengerPhone: strings.TrimSpace(d.PassengerPhone),
		PassengerEmail: strings.TrimSpace(d.PassengerEmail),
	}
}

// BookingResult is the response of POST /booking/create.
type BookingResult struct {
	Success      bool   `json:"success"`
	TicketNumber string `json:"ticketNumber,omitempty"`
	Message      string `json:"message,omitempty"`
}

// BookingConfirmation keeps what was submitted next to the server-issued ticket number.
type BookingConfirmation struct {
	TicketNumber string         `json:"ticketNumber"`
	Request      BookingRequest `json:"booking"`
	ConfirmedAt  time.Time      `json:"confirmedAt"`
}
