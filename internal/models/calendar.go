package models

import (
	"fmt"
	"time"
)

// RawTime is a provider-side event boundary. Exactly one of DateTime
// (RFC3339, with offset or trailing Z) or Date (YYYY-MM-DD, all-day) is set
// on a well-formed event.
type RawTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

// IsDateOnly reports whether the boundary describes an all-day marker.
func (t RawTime) IsDateOnly() bool {
	return t.DateTime == "" && t.Date != ""
}

// IsEmpty reports whether neither representation is present.
func (t RawTime) IsEmpty() bool {
	return t.DateTime == "" && t.Date == ""
}

// RawEvent is an event as delivered by a calendar provider for one room.
type RawEvent struct {
	Room    string  `json:"room"`
	EventID string  `json:"id"`
	Summary string  `json:"summary"`
	Start   RawTime `json:"start"`
	End     RawTime `json:"end"`
}

// NormalizedEvent is the canonical in-memory event used by the agenda and
// availability computations. StartLocal is always before EndLocal.
type NormalizedEvent struct {
	Room            string    `json:"room"`
	EventID         string    `json:"event_id,omitempty"`
	StartLocal      time.Time `json:"start_local"`
	EndLocal        time.Time `json:"end_local"`
	DurationMinutes int       `json:"duration_minutes"`
	AllDay          bool      `json:"all_day"`
	Title           string    `json:"title"`
	Instrument      string    `json:"instrument,omitempty"`
	Teacher         string    `json:"teacher,omitempty"`
	StudentOrRaw    string    `json:"student,omitempty"`
}

// Overlaps reports whether the event intersects the half-open range [from, to).
func (e NormalizedEvent) Overlaps(from, to time.Time) bool {
	return e.StartLocal.Before(to) && from.Before(e.EndLocal)
}

// MalformedEvent describes a provider event that could not be normalized.
type MalformedEvent struct {
	Room    string `json:"room"`
	EventID string `json:"event_id,omitempty"`
	Title   string `json:"title,omitempty"`
	Reason  string `json:"reason"`
}

// Error implements the error interface.
func (m *MalformedEvent) Error() string {
	if m.EventID != "" {
		return fmt.Sprintf("malformed event %s in %s: %s", m.EventID, m.Room, m.Reason)
	}
	return fmt.Sprintf("malformed event in %s: %s", m.Room, m.Reason)
}

// NewCalendarEvent is the payload handed to a booking writer.
type NewCalendarEvent struct {
	Summary string
	Start   time.Time
	End     time.Time
}
