package models

import "time"

// Gap is a maximal free interval inside the working window of one room on one day.
type Gap struct {
	Room  string    `json:"room"`
	Date  time.Time `json:"date"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Minutes returns the gap length in whole minutes.
func (g Gap) Minutes() int {
	return int(g.End.Sub(g.Start) / time.Minute)
}

// PlacementKind tells where inside a gap a slot was anchored.
type PlacementKind string

const (
	PlacementStartOfGap  PlacementKind = "start_of_gap"
	PlacementDovetailEnd PlacementKind = "dovetail_end"
)

// AvailabilitySlot is one bookable offer produced by the availability engine.
type AvailabilitySlot struct {
	Date            time.Time     `json:"date"`
	Room            string        `json:"room"`
	Instrument      string        `json:"instrument,omitempty"`
	Teacher         string        `json:"teacher,omitempty"`
	Start           time.Time     `json:"start"`
	End             time.Time     `json:"end"`
	DurationMinutes int           `json:"duration_minutes"`
	Placement       PlacementKind `json:"placement_kind"`
}
