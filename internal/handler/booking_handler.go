package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ecm-agenda-api/internal/dto"
	appErrors "github.com/noah-isme/ecm-agenda-api/pkg/errors"
	"github.com/noah-isme/ecm-agenda-api/pkg/response"
)

type bookingService interface {
	Create(ctx context.Context, req dto.CreateBookingRequest) (*dto.BookingResponse, error)
	Cancel(ctx context.Context, room, eventID string) error
}

// BookingHandler writes lessons into room calendars. A nil service means
// bookings are disabled.
type BookingHandler struct {
	svc bookingService
}

// NewBookingHandler constructs a booking handler.
func NewBookingHandler(svc bookingService) *BookingHandler {
	return &BookingHandler{svc: svc}
}

// Create godoc
// @Summary Book a lesson
// @Tags Bookings
// @Accept json
// @Produce json
// @Param payload body dto.CreateBookingRequest true "Booking"
// @Param X-API-Key header string false "API key"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bookings [post]
func (h *BookingHandler) Create(c *gin.Context) {
	if h.svc == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "bookings are disabled"))
		return
	}
	var req dto.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid JSON payload"))
		return
	}
	booking, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, booking)
}

// Cancel godoc
// @Summary Cancel a booked lesson
// @Tags Bookings
// @Param room path string true "Room"
// @Param event_id path string true "Calendar event ID"
// @Param X-API-Key header string false "API key"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /bookings/{room}/{event_id} [delete]
func (h *BookingHandler) Cancel(c *gin.Context) {
	if h.svc == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "bookings are disabled"))
		return
	}
	if err := h.svc.Cancel(c.Request.Context(), c.Param("room"), c.Param("event_id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
