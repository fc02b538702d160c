package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"busclient/internal/domain"
	"busclient/internal/domain/models"
	"busclient/internal/http/middleware"
	"busclient/internal/utils"

	"github.com/gin-gonic/gin"
)

func (h *Handlers) GetBooking(c *gin.Context) {
	c.JSON(http.StatusOK, h.Core.Booking.Snapshot())
}

// PatchDraft applies the fields present in the body; absent keys are left alone.
func (h *Handlers) PatchDraft(c *gin.Context) {
	var patch models.DraftPatch
	if !BindJSONOrError(c, &patch) {
		return
	}
	if patch.Empty() {
		RespondDomainError(c, domain.ValidationError{Msg: "No fields to update"})
		return
	}
	snap, err := h.Core.Booking.Apply(patch)
	if err != nil {
		respondDomainError(c, err, snap)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// SelectRoute sets both endpoints from a popular route.
func (h *Handlers) SelectRoute(c *gin.Context) {
	var route models.Route
	if !BindJSONOrError(c, &route) {
		return
	}
	if !route.Complete() {
		RespondDomainError(c, domain.ValidationErrors{
			{Field: "from", Msg: "From location is required"},
			{Field: "to", Msg: "To location is required"},
		})
		return
	}
	snap, err := h.Core.Booking.SelectRoute(route)
	if err != nil {
		respondDomainError(c, err, snap)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handlers) ResetBooking(c *gin.Context) {
	snap, err := h.Core.Booking.Reset()
	if err != nil {
		respondDomainError(c, err, snap)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// SubmitBooking validates and sends the draft. Failures carry the form snapshot so the page keeps its data.
func (h *Handlers) SubmitBooking(c *gin.Context) {
	reqID := middleware.GetRequestID(c)
	conf, err := h.Core.Booking.Submit(requestContext(c))
	snap := h.Core.Booking.Snapshot()
	if err != nil {
		utils.LogEvent(reqID, "booking", "submit_failed", err.Error())
		if domain.IsValidation(err) {
			respondError(c, http.StatusBadRequest, "validation_error", err.Error(), snap)
			return
		}
		if domain.IsNetwork(err) || domain.IsInternal(err) {
			respondError(c, http.StatusServiceUnavailable, "network_error", snap.Message, snap)
			return
		}
		respondDomainError(c, err, snap)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":      true,
		"ticketNumber": conf.TicketNumber,
		"message":      snap.Message,
		"confirmation": conf,
		"booking":      snap,
	})
}

// Receipt downloads the PDF ticket of a booking confirmed in this session.
func (h *Handlers) Receipt(c *gin.Context) {
	ticket := strings.TrimSpace(c.Param("ticket"))
	svc := h.Core.Receipts
	svc.RequestID = middleware.GetRequestID(c)
	pdf, filename, err := svc.Generate(ticket)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "application/pdf", pdf)
}
