package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ecm-agenda-api/pkg/response"
)

type roomPolicy interface {
	AllowedRooms(instrument string) []string
	OrderByPreference(rooms []string, instrument string) []string
}

type instrumentCanonicalizer interface {
	CanonicalInstrument(raw string) string
}

// RoomsHandler exposes the instrument to room policy.
type RoomsHandler struct {
	policy     roomPolicy
	normalizer instrumentCanonicalizer
}

// NewRoomsHandler constructs a rooms handler.
func NewRoomsHandler(policy roomPolicy, normalizer instrumentCanonicalizer) *RoomsHandler {
	return &RoomsHandler{policy: policy, normalizer: normalizer}
}

// Rooms godoc
// @Summary Rooms usable for an instrument, best first
// @Tags Rooms
// @Produce json
// @Param instrumento query string false "Instrument"
// @Success 200 {object} response.Envelope
// @Router /rooms [get]
func (h *RoomsHandler) Rooms(c *gin.Context) {
	instrument := h.normalizer.CanonicalInstrument(c.Query("instrumento"))
	rooms := h.policy.OrderByPreference(h.policy.AllowedRooms(instrument), instrument)
	response.JSON(c, http.StatusOK, gin.H{"instrument": instrument, "rooms": rooms})
}
