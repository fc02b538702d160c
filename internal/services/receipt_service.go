package services

import (
	"bytes"
	"fmt"
	"strings"

	"busclient/internal/domain"
	"busclient/internal/domain/models"
	"busclient/internal/utils"

	"github.com/phpdave11/gofpdf"
)

// ConfirmationLookup finds a booking confirmed in this session.
type ConfirmationLookup interface {
	Confirmation(ticket string) (models.BookingConfirmation, bool)
}

// ReceiptService renders the ticket of a confirmed booking as a PDF.
type ReceiptService struct {
	Bookings  ConfirmationLookup
	RequestID string
}

// Generate returns the PDF bytes and a download filename.
func (s ReceiptService) Generate(ticket string) ([]byte, string, error) {
	if s.Bookings == nil {
		return nil, "", domain.InternalError{Msg: "booking service is not configured"}
	}
	conf, ok := s.Bookings.Confirmation(ticket)
	if !ok {
		return nil, "", domain.NotFoundError{Resource: "ticket " + strings.TrimSpace(ticket)}
	}
	utils.LogEvent(s.RequestID, "receipt", "generate", "ticket="+conf.TicketNumber)
	return buildTicketPDF(conf)
}

func buildTicketPDF(c models.BookingConfirmation) ([]byte, string, error) {
	r := c.Request
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Bus Ticket "+c.TicketNumber, false)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "BUS TICKET")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	lines := []string{
		fmt.Sprintf("Ticket Number : %s", safe(c.TicketNumber, "-")),
		fmt.Sprintf("Passenger     : %s", safe(r.PassengerName, "-")),
		fmt.Sprintf("Phone         : %s", safe(r.PassengerPhone, "-")),
		"",
		fmt.Sprintf("From          : %s", safe(r.FromLocation, "-")),
		fmt.Sprintf("To            : %s", safe(r.ToLocation, "-")),
		fmt.Sprintf("Date          : %s", safe(dateOnly(r.JourneyDate), "-")),
		fmt.Sprintf("Time          : %s", safe(timeHM(r.DepartureTime), "-")),
		fmt.Sprintf("Bus Type      : %s", safe(r.BusType, "-")),
		fmt.Sprintf("Seat          : %s", safe(r.SeatNumber, "-")),
		"",
		fmt.Sprintf("Fare          : %s", utils.FormatTaka(r.Fare)),
		fmt.Sprintf("Booked At     : %s", utils.FormatDateTime(c.ConfirmedAt)),
	}
	for _, s := range lines {
		pdf.Cell(0, 7, s)
		pdf.Ln(7)
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "I", 10)
	pdf.MultiCell(0, 6, "Please arrive 30 minutes before departure. Have a safe journey!", "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", domain.InternalError{Msg: "could not render the ticket PDF", Err: err}
	}

	filename := fmt.Sprintf("ticket-%s.pdf", safeFilenamePart(c.TicketNumber))
	return buf.Bytes(), filename, nil
}

func safe(v, fallback string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback
	}
	return v
}

func dateOnly(v string) string {
	if t, err := utils.ParseDate(v); err == nil {
		return utils.FormatDate(t)
	}
	return strings.TrimSpace(v)
}

func timeHM(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 5 {
		return v[:5]
	}
	return v
}

func safeFilenamePart(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "NA"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "_", "\\", "_", ":", "_", "*", "_", "?", "_", "\"", "_", "<", "_", ">", "_", "|", "_")
	s = replacer.Replace(s)
	if len(s) > 40 {
		s = s[:40]
	}
	return s
}
