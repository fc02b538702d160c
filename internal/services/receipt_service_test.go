package services

import (
	"bytes"
	"testing"
	"time"

	"busclient/internal/domain"
	"busclient/internal/domain/models"
)

type stubLookup map[string]models.BookingConfirmation

func (s stubLookup) Confirmation(ticket string) (models.BookingConfirmation, bool) {
	c, ok := s[ticket]
	return c, ok
}

func TestReceiptGenerate(t *testing.T) {
	svc := ReceiptService{Bookings: stubLookup{
		"BT000042": {
			TicketNumber: "BT000042",
			Request: models.BookingRequest{
				FromLocation:   "Dhaka",
				ToLocation:     "Chittagong",
				JourneyDate:    "2026-10-20",
				DepartureTime:  "09:00:00",
				BusType:        "AC",
				SeatNumber:     "A1",
				Fare:           1275,
				PassengerName:  "Karim Ahmed",
				PassengerPhone: "01812345678",
			},
			ConfirmedAt: time.Date(2026, 10, 18, 9, 0, 0, 0, time.Local),
		},
	}}

	pdf, name, err := svc.Generate("BT000042")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if name != "ticket-BT000042.pdf" {
		t.Fatalf("filename = %q", name)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		t.Fatalf("output is not a PDF")
	}
}

func TestReceiptUnknownTicket(t *testing.T) {
	svc := ReceiptService{Bookings: stubLookup{}}
	if _, _, err := svc.Generate("BT999999"); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}

	if _, _, err := (ReceiptService{}).Generate("BT000001"); !domain.IsInternal(err) {
		t.Fatalf("expected internal error without lookup, got %v", err)
	}
}

func TestReceiptHelpers(t *testing.T) {
	if got := safeFilenamePart(" BT/01:2 "); got != "BT_01_2" {
		t.Fatalf("safeFilenamePart = %q", got)
	}
	if got := safeFilenamePart(""); got != "NA" {
		t.Fatalf("safeFilenamePart(empty) = %q", got)
	}
	if got := timeHM("09:30:00"); got != "09:30" {
		t.Fatalf("timeHM = %q", got)
	}
	if got := dateOnly("not a date"); got != "not a date" {
		t.Fatalf("dateOnly = %q", got)
	}
}
