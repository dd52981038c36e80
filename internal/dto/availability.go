package dto

// AvailabilityRequest captures the raw /availability query parameters. The
// service parses and validates them before any calendar is read.
type AvailabilityRequest struct {
	Start       string
	End         string
	Instrument  string
	Teacher     string
	Duration    string
	Rooms       string
	WindowStart string
	WindowEnd   string
}

// AvailabilitySlot is one bookable offer in the API response.
type AvailabilitySlot struct {
	Date            string `json:"date"`
	DateLabel       string `json:"date_label"`
	Room            string `json:"room"`
	Instrument      string `json:"instrument,omitempty"`
	Teacher         string `json:"teacher,omitempty"`
	Start           string `json:"start"`
	End             string `json:"end"`
	DurationMinutes int    `json:"duration_minutes"`
	Placement       string `json:"placement_kind"`
}

// AvailabilityResponse carries the slots and request diagnostics.
type AvailabilityResponse struct {
	Slots         []AvailabilitySlot
	Rooms         []string
	DroppedRooms  []string
	SkippedEvents int
}
