package service

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/ecm-agenda-api/internal/models"
	appErrors "github.com/noah-isme/ecm-agenda-api/pkg/errors"
)

// AllowedDurations are the lesson lengths the academy sells, in minutes.
var AllowedDurations = []int{30, 45, 60}

const (
	// MinGapMinutes is the smallest gap worth offering.
	MinGapMinutes = 30
	// MaxRangeDays caps a single availability request.
	MaxRangeDays = 92
)

// ClockTime is a time of day with minute precision.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClock parses an HH:MM string.
func ParseClock(raw string) (ClockTime, error) {
	t, err := time.Parse(clockLayout, strings.TrimSpace(raw))
	if err != nil {
		return ClockTime{}, appErrors.Clone(appErrors.ErrInvalidWindow, fmt.Sprintf("invalid time %q, expected HH:MM", raw))
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (c ClockTime) minutes() int {
	return c.Hour*60 + c.Minute
}

// String formats the clock as HH:MM.
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// TimeWindow is the daily working window.
type TimeWindow struct {
	Start ClockTime
	End   ClockTime
}

// ParseWindow parses and validates HH:MM bounds.
func ParseWindow(start, end string) (TimeWindow, error) {
	s, err := ParseClock(start)
	if err != nil {
		return TimeWindow{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return TimeWindow{}, err
	}
	w := TimeWindow{Start: s, End: e}
	if err := w.Validate(); err != nil {
		return TimeWindow{}, err
	}
	return w, nil
}

// Validate rejects empty or inverted windows.
func (w TimeWindow) Validate() error {
	if w.Start.minutes() >= w.End.minutes() {
		return appErrors.Clone(appErrors.ErrInvalidWindow, fmt.Sprintf("window start %s must be before window end %s", w.Start, w.End))
	}
	return nil
}

// On anchors the window to a calendar date in the date's location.
func (w TimeWindow) On(date time.Time) (time.Time, time.Time) {
	y, m, d := date.Date()
	loc := date.Location()
	return time.Date(y, m, d, w.Start.Hour, w.Start.Minute, 0, 0, loc),
		time.Date(y, m, d, w.End.Hour, w.End.Minute, 0, 0, loc)
}

// Contains reports whether [start, end) sits inside the window on start's date.
func (w TimeWindow) Contains(start, end time.Time) bool {
	from, to := w.On(start)
	return !start.Before(from) && !end.After(to) && start.Before(end)
}

// AvailabilityQuery carries typed availability parameters. Dates are local
// midnights; DurationMinutes 0 tries every allowed duration; a nil Rooms
// slice derives the rooms from the instrument.
type AvailabilityQuery struct {
	StartDate       time.Time
	EndDate         time.Time
	Instrument      string
	Teacher         string
	DurationMinutes int
	Rooms           []string
	Window          TimeWindow
}

// AvailabilityPlan is a validated query ready to run.
type AvailabilityPlan struct {
	Dates        []time.Time
	Rooms        []string
	DroppedRooms []string
	Durations    []int
	Instrument   string
	Teacher      string
	Window       TimeWindow
}

// AvailabilityEngine computes free slots from normalized events. It holds no
// per-request state and is safe for concurrent use.
type AvailabilityEngine struct {
	policy     *RoomPolicy
	normalizer *EventNormalizer
	logger     *zap.Logger
}

// NewAvailabilityEngine wires the engine to its room policy and vocabulary.
func NewAvailabilityEngine(policy *RoomPolicy, normalizer *EventNormalizer, logger *zap.Logger) *AvailabilityEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityEngine{policy: policy, normalizer: normalizer, logger: logger}
}

// IsAllowedDuration reports whether minutes is a sellable lesson length.
func IsAllowedDuration(minutes int) bool {
	for _, d := range AllowedDurations {
		if d == minutes {
			return true
		}
	}
	return false
}

// Plan validates the query and selects rooms, dates and durations. Nothing
// is computed when it returns an error.
func (e *AvailabilityEngine) Plan(q AvailabilityQuery) (*AvailabilityPlan, error) {
	if err := q.Window.Validate(); err != nil {
		return nil, err
	}
	if q.StartDate.IsZero() || q.EndDate.IsZero() {
		return nil, appErrors.Clone(appErrors.ErrInvalidDateRange, "start and end dates are required")
	}
	start := midnight(q.StartDate)
	end := midnight(q.EndDate)
	if end.Before(start) {
		return nil, appErrors.Clone(appErrors.ErrInvalidDateRange, "end date must not be before start date")
	}

	durations := AllowedDurations
	if q.DurationMinutes != 0 {
		if !IsAllowedDuration(q.DurationMinutes) {
			return nil, appErrors.Clone(appErrors.ErrInvalidDuration, fmt.Sprintf("duration %d is not one of 30, 45, 60", q.DurationMinutes))
		}
		durations = []int{q.DurationMinutes}
	}

	plan := &AvailabilityPlan{
		Durations:  append([]int(nil), durations...),
		Instrument: e.normalizer.CanonicalInstrument(q.Instrument),
		Teacher:    e.normalizer.CanonicalTeacher(q.Teacher),
		Window:     q.Window,
	}

	if q.Rooms != nil {
		plan.Rooms, plan.DroppedRooms = e.policy.ResolveRooms(q.Rooms)
		if len(plan.Rooms) == 0 && len(plan.DroppedRooms) > 0 {
			return nil, appErrors.Clone(appErrors.ErrUnknownRoom, "none of the requested rooms exist: "+strings.Join(plan.DroppedRooms, ", "))
		}
	} else {
		plan.Rooms = e.policy.AllowedRooms(plan.Instrument)
	}
	if len(plan.Rooms) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no rooms to search")
	}
	plan.Rooms = e.policy.OrderByPreference(plan.Rooms, plan.Instrument)

	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		plan.Dates = append(plan.Dates, d)
		if len(plan.Dates) > MaxRangeDays {
			return nil, appErrors.Clone(appErrors.ErrInvalidDateRange, fmt.Sprintf("date range exceeds %d days", MaxRangeDays))
		}
	}
	return plan, nil
}

// Run computes the slots of a plan against the given events, ordered by
// date, room label and start. Room preference only affects selection.
func (e *AvailabilityEngine) Run(plan *AvailabilityPlan, events []models.NormalizedEvent) []models.AvailabilitySlot {
	byRoom := make(map[string][]models.NormalizedEvent, len(plan.Rooms))
	for _, ev := range events {
		byRoom[ev.Room] = append(byRoom[ev.Room], ev)
	}
	var teacherDays map[string]struct{}
	if plan.Teacher != "" {
		teacherDays = teacherPresence(events, plan.Teacher)
	}

	seen := map[string]struct{}{}
	slots := make([]models.AvailabilitySlot, 0)
	for _, date := range plan.Dates {
		if teacherDays != nil {
			if _, present := teacherDays[date.Format(dateLayout)]; !present {
				continue
			}
		}
		windowStart, windowEnd := plan.Window.On(date)
		for _, room := range plan.Rooms {
			dayEvents := eventsInRange(byRoom[room], windowStart, windowEnd)
			gaps, err := FindGaps(room, date, dayEvents, windowStart, windowEnd)
			if err != nil {
				e.logger.Warn("gap computation failed", zap.String("room", room), zap.Error(err))
				continue
			}
			e.logger.Debug("gaps computed",
				zap.String("room", room),
				zap.String("date", date.Format(dateLayout)),
				zap.Int("events", len(dayEvents)),
				zap.Int("gaps", len(gaps)),
			)
			for _, gap := range gaps {
				for _, slot := range slotsForGap(gap, plan) {
					key := dedupKey(slot)
					if _, dup := seen[key]; dup {
						continue
					}
					seen[key] = struct{}{}
					slots = append(slots, slot)
				}
			}
		}
	}

	sort.SliceStable(slots, func(i, j int) bool {
		a, b := slots[i], slots[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Room != b.Room {
			return a.Room < b.Room
		}
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		return a.End.Before(b.End)
	})
	return slots
}

// ComputeAvailability validates the query and returns the ordered slots.
func (e *AvailabilityEngine) ComputeAvailability(events []models.NormalizedEvent, q AvailabilityQuery) ([]models.AvailabilitySlot, error) {
	plan, err := e.Plan(q)
	if err != nil {
		return nil, err
	}
	return e.Run(plan, events), nil
}

// slotsForGap offers each duration at the gap start and, separately, ending
// flush with the gap end. Both may overlap; identical ones collapse in dedup.
func slotsForGap(gap models.Gap, plan *AvailabilityPlan) []models.AvailabilitySlot {
	length := gap.Minutes()
	if length < MinGapMinutes {
		return nil
	}
	var out []models.AvailabilitySlot
	for _, minutes := range plan.Durations {
		if minutes > length {
			continue
		}
		d := time.Duration(minutes) * time.Minute
		out = append(out, newSlot(gap, plan, gap.Start, gap.Start.Add(d), minutes, models.PlacementStartOfGap))
		if dovetail := gap.End.Add(-d); !dovetail.Before(gap.Start) {
			out = append(out, newSlot(gap, plan, dovetail, gap.End, minutes, models.PlacementDovetailEnd))
		}
	}
	return out
}

func newSlot(gap models.Gap, plan *AvailabilityPlan, start, end time.Time, minutes int, kind models.PlacementKind) models.AvailabilitySlot {
	return models.AvailabilitySlot{
		Date:            gap.Date,
		Room:            gap.Room,
		Instrument:      plan.Instrument,
		Teacher:         plan.Teacher,
		Start:           start,
		End:             end,
		DurationMinutes: minutes,
		Placement:       kind,
	}
}

func dedupKey(slot models.AvailabilitySlot) string {
	return strings.Join([]string{
		slot.Room,
		strconv.FormatInt(slot.Start.Unix(), 10),
		strconv.FormatInt(slot.End.Unix(), 10),
		slot.Teacher,
		slot.Instrument,
	}, "\x1f")
}

// teacherPresence lists the local dates on which the teacher has any event in any room.
func teacherPresence(events []models.NormalizedEvent, teacher string) map[string]struct{} {
	days := map[string]struct{}{}
	for _, ev := range events {
		if ev.Teacher == "" || foldText(ev.Teacher) != teacher {
			continue
		}
		for d := midnight(ev.StartLocal); d.Before(ev.EndLocal); d = d.AddDate(0, 0, 1) {
			days[d.Format(dateLayout)] = struct{}{}
		}
	}
	return days
}

func eventsInRange(events []models.NormalizedEvent, from, to time.Time) []models.NormalizedEvent {
	out := make([]models.NormalizedEvent, 0, len(events))
	for _, ev := range events {
		if ev.Overlaps(from, to) {
			out = append(out, ev)
		}
	}
	return out
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
