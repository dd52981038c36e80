package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ecm-agenda-api/internal/dto"
	"github.com/noah-isme/ecm-agenda-api/pkg/response"
)

type availabilityService interface {
	Availability(ctx context.Context, req dto.AvailabilityRequest) (*dto.AvailabilityResponse, error)
}

// AvailabilityHandler exposes free-slot search.
type AvailabilityHandler struct {
	svc availabilityService
}

// NewAvailabilityHandler constructs an availability handler.
func NewAvailabilityHandler(svc availabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{svc: svc}
}

// Availability godoc
// @Summary Search free lesson slots
// @Tags Availability
// @Produce json
// @Param start query string true "First day (YYYY-MM-DD)"
// @Param end query string true "Last day (YYYY-MM-DD)"
// @Param instrumento query string false "Instrument"
// @Param profe query string false "Teacher that must be present that day"
// @Param dur_min query int false "30, 45 or 60. Empty tries all"
// @Param salas query string false "Comma separated rooms"
// @Param window_start query string false "HH:MM"
// @Param window_end query string false "HH:MM"
// @Param X-API-Key header string false "API key"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /availability [get]
func (h *AvailabilityHandler) Availability(c *gin.Context) {
	resp, err := h.svc.Availability(c.Request.Context(), dto.AvailabilityRequest{
		Start:       c.Query("start"),
		End:         c.Query("end"),
		Instrument:  c.Query("instrumento"),
		Teacher:     c.Query("profe"),
		Duration:    c.Query("dur_min"),
		Rooms:       c.Query("salas"),
		WindowStart: c.Query("window_start"),
		WindowEnd:   c.Query("window_end"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	dropped := resp.DroppedRooms
	if dropped == nil {
		dropped = []string{}
	}
	response.JSON(c, http.StatusOK, resp.Slots, map[string]interface{}{
		"count":          len(resp.Slots),
		"rooms":          resp.Rooms,
		"dropped_rooms":  dropped,
		"skipped_events": resp.SkippedEvents,
	})
}
