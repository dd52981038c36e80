package dto

// CreateBookingRequest books a lesson into a room calendar.
type CreateBookingRequest struct {
	Room            string `json:"room" validate:"required"`
	Date            string `json:"date" validate:"required,datetime=2006-01-02"`
	Start           string `json:"start" validate:"required,datetime=15:04"`
	DurationMinutes int    `json:"duration_minutes" validate:"required"`
	Student         string `json:"student" validate:"required,max=80"`
	Instrument      string `json:"instrument" validate:"omitempty,max=40"`
	Teacher         string `json:"teacher" validate:"omitempty,max=40"`
}

// BookingResponse describes the event written to the calendar.
type BookingResponse struct {
	EventID         string `json:"event_id"`
	Room            string `json:"room"`
	Date            string `json:"date"`
	Start           string `json:"start"`
	End             string `json:"end"`
	DurationMinutes int    `json:"duration_minutes"`
	Title           string `json:"title"`
}
