package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/ecm-agenda-api/internal/models"
	appErrors "github.com/noah-isme/ecm-agenda-api/pkg/errors"
)

var (
	testLoc   = time.FixedZone("ART", -3*60*60)
	testRooms = []string{"Sala grande", "Sala piano", "Sala picola", "Sala terraza"}
)

func newTestEngine(t *testing.T, logger *zap.Logger) (*AvailabilityEngine, *EventNormalizer) {
	t.Helper()
	normalizer := NewEventNormalizer(testLoc, DefaultVocabulary())
	return NewAvailabilityEngine(newTestPolicy(t), normalizer, logger), normalizer
}

func at(day, clock string) time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04", day+" "+clock, testLoc)
	if err != nil {
		panic(err)
	}
	return t
}

func day(s string) time.Time {
	return at(s, "00:00")
}

func busy(room, date, from, to, title string) models.NormalizedEvent {
	start, end := at(date, from), at(date, to)
	n := NewEventNormalizer(testLoc, DefaultVocabulary())
	folded := foldText(title)
	return models.NormalizedEvent{
		Room:            room,
		StartLocal:      start,
		EndLocal:        end,
		DurationMinutes: int(end.Sub(start) / time.Minute),
		Title:           title,
		Instrument:      matchVocabulary(folded, n.vocab.Instruments),
		Teacher:         matchVocabulary(folded, n.vocab.Teachers),
	}
}

func defaultWindow(t *testing.T) TimeWindow {
	t.Helper()
	w, err := ParseWindow("14:00", "21:00")
	require.NoError(t, err)
	return w
}

func TestComputeAvailabilityDovetail(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	events := []models.NormalizedEvent{
		busy("Sala grande", "2025-03-10", "14:00", "15:00", "Ana - piano (marcos)"),
		busy("Sala grande", "2025-03-10", "16:00", "21:00", "Ensayo"),
	}
	q := AvailabilityQuery{
		StartDate:       day("2025-03-10"),
		EndDate:         day("2025-03-10"),
		DurationMinutes: 45,
		Rooms:           []string{"Sala grande"},
		Window:          defaultWindow(t),
	}

	slots, err := engine.ComputeAvailability(events, q)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	require.Equal(t, at("2025-03-10", "15:00"), slots[0].Start)
	require.Equal(t, at("2025-03-10", "15:45"), slots[0].End)
	require.Equal(t, models.PlacementStartOfGap, slots[0].Placement)
	require.Equal(t, at("2025-03-10", "15:15"), slots[1].Start)
	require.Equal(t, at("2025-03-10", "16:00"), slots[1].End)
	require.Equal(t, models.PlacementDovetailEnd, slots[1].Placement)

	q.DurationMinutes = 60
	slots, err = engine.ComputeAvailability(events, q)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	require.Equal(t, at("2025-03-10", "15:00"), slots[0].Start)
	require.Equal(t, at("2025-03-10", "16:00"), slots[0].End)
	require.Equal(t, models.PlacementStartOfGap, slots[0].Placement)
}

func TestComputeAvailabilitySkipsShortGaps(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	events := []models.NormalizedEvent{
		busy("Sala piano", "2025-03-10", "14:00", "15:00", "a"),
		busy("Sala piano", "2025-03-10", "15:20", "21:00", "b"),
	}
	slots, err := engine.ComputeAvailability(events, AvailabilityQuery{
		StartDate: day("2025-03-10"),
		EndDate:   day("2025-03-10"),
		Rooms:     []string{"Sala piano"},
		Window:    defaultWindow(t),
	})
	require.NoError(t, err)
	require.Empty(t, slots)
}

func TestComputeAvailabilityTeacherGating(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	events := []models.NormalizedEvent{
		busy("Sala grande", "2025-03-10", "15:00", "16:00", "Juan - guitarra (marcos)"),
		busy("Sala terraza", "2025-03-11", "18:00", "19:00", "Lola - bateria con Fede"),
	}
	slots, err := engine.ComputeAvailability(events, AvailabilityQuery{
		StartDate:       day("2025-03-10"),
		EndDate:         day("2025-03-11"),
		Teacher:         "Fede",
		DurationMinutes: 60,
		Rooms:           []string{"Sala grande"},
		Window:          defaultWindow(t),
	})
	require.NoError(t, err)
	require.NotEmpty(t, slots)
	for _, slot := range slots {
		require.Equal(t, day("2025-03-11"), slot.Date)
		require.Equal(t, "fede", slot.Teacher)
	}

	events = append(events, busy("Sala piano", "2025-03-10", "17:00", "18:00", "Ana - canto (sam)"))
	slots, err = engine.ComputeAvailability(events, AvailabilityQuery{
		StartDate:       day("2025-03-10"),
		EndDate:         day("2025-03-11"),
		Teacher:         "Samanta",
		DurationMinutes: 60,
		Rooms:           []string{"Sala grande"},
		Window:          defaultWindow(t),
	})
	require.NoError(t, err)
	require.Empty(t, slots)
}

func TestComputeAvailabilityIsIdempotent(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	events := []models.NormalizedEvent{
		busy("Sala piano", "2025-03-10", "15:10", "16:00", "x"),
		busy("Sala grande", "2025-03-10", "14:30", "15:00", "y"),
		busy("Sala grande", "2025-03-11", "17:00", "18:15", "z"),
	}
	q := AvailabilityQuery{
		StartDate:  day("2025-03-10"),
		EndDate:    day("2025-03-12"),
		Instrument: "piano",
		Window:     defaultWindow(t),
	}
	first, err := engine.ComputeAvailability(events, q)
	require.NoError(t, err)
	second, err := engine.ComputeAvailability(events, q)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestComputeAvailabilityAllDayBlocksRoom(t *testing.T) {
	engine, normalizer := newTestEngine(t, nil)
	ev, err := normalizer.Normalize(models.RawEvent{
		Room:    "Sala picola",
		Summary: "Feriado",
		Start:   models.RawTime{Date: "2025-03-10"},
		End:     models.RawTime{Date: "2025-03-11"},
	})
	require.NoError(t, err)

	slots, err := engine.ComputeAvailability([]models.NormalizedEvent{ev}, AvailabilityQuery{
		StartDate: day("2025-03-10"),
		EndDate:   day("2025-03-10"),
		Rooms:     []string{"Sala picola"},
		Window:    defaultWindow(t),
	})
	require.NoError(t, err)
	require.Empty(t, slots)
}

func TestComputeAvailabilityRejectsDurationBeforeWork(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	engine, _ := newTestEngine(t, zap.New(core))

	q := AvailabilityQuery{
		StartDate:       day("2025-03-10"),
		EndDate:         day("2025-03-10"),
		DurationMinutes: 40,
		Window:          defaultWindow(t),
	}
	_, err := engine.ComputeAvailability(nil, q)
	require.Error(t, err)
	require.True(t, appErrors.Is(err, appErrors.ErrInvalidDuration))
	require.Zero(t, logs.FilterMessage("gaps computed").Len())

	q.DurationMinutes = 30
	_, err = engine.ComputeAvailability(nil, q)
	require.NoError(t, err)
	require.Equal(t, len(testRooms), logs.FilterMessage("gaps computed").Len())
}

func TestComputeAvailabilityRejectsBadInput(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	window := defaultWindow(t)

	_, err := engine.ComputeAvailability(nil, AvailabilityQuery{StartDate: day("2025-03-11"), EndDate: day("2025-03-10"), Window: window})
	require.True(t, appErrors.Is(err, appErrors.ErrInvalidDateRange))

	_, err = engine.ComputeAvailability(nil, AvailabilityQuery{StartDate: day("2025-01-01"), EndDate: day("2025-12-31"), Window: window})
	require.True(t, appErrors.Is(err, appErrors.ErrInvalidDateRange))

	inverted := TimeWindow{Start: ClockTime{Hour: 21}, End: ClockTime{Hour: 14}}
	_, err = engine.ComputeAvailability(nil, AvailabilityQuery{StartDate: day("2025-03-10"), EndDate: day("2025-03-10"), Window: inverted})
	require.True(t, appErrors.Is(err, appErrors.ErrInvalidWindow))

	_, err = engine.ComputeAvailability(nil, AvailabilityQuery{StartDate: day("2025-03-10"), EndDate: day("2025-03-10"), Rooms: []string{"Sala X"}, Window: window})
	require.True(t, appErrors.Is(err, appErrors.ErrUnknownRoom))

	_, err = engine.ComputeAvailability(nil, AvailabilityQuery{StartDate: day("2025-03-10"), EndDate: day("2025-03-10"), Rooms: []string{}, Window: window})
	require.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestPlanRoomSelection(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	window := defaultWindow(t)
	base := AvailabilityQuery{StartDate: day("2025-03-10"), EndDate: day("2025-03-10"), Window: window}

	q := base
	q.Instrument = "Piano"
	plan, err := engine.Plan(q)
	require.NoError(t, err)
	require.Equal(t, []string{"Sala piano", "Sala grande", "Sala picola", "Sala terraza"}, plan.Rooms)

	q = base
	q.Instrument = "Batería"
	plan, err = engine.Plan(q)
	require.NoError(t, err)
	require.Equal(t, []string{"Sala grande"}, plan.Rooms)
	require.Equal(t, "bateria", plan.Instrument)

	q = base
	q.Rooms = []string{"sala terraza", "Sala X", "Sala grande", "Sala terraza"}
	plan, err = engine.Plan(q)
	require.NoError(t, err)
	require.Equal(t, []string{"Sala terraza", "Sala grande"}, plan.Rooms)
	require.Equal(t, []string{"Sala X"}, plan.DroppedRooms)
	require.Equal(t, AllowedDurations, plan.Durations)
}

func TestComputeAvailabilitySlotsFitGaps(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	events := []models.NormalizedEvent{
		busy("Sala grande", "2025-03-10", "14:20", "15:05", "a"),
		busy("Sala grande", "2025-03-10", "15:00", "15:40", "b"),
		busy("Sala grande", "2025-03-10", "17:10", "17:55", "c"),
		busy("Sala grande", "2025-03-10", "20:30", "22:00", "d"),
	}
	window := defaultWindow(t)
	slots, err := engine.ComputeAvailability(events, AvailabilityQuery{
		StartDate: day("2025-03-10"),
		EndDate:   day("2025-03-10"),
		Rooms:     []string{"Sala grande"},
		Window:    window,
	})
	require.NoError(t, err)
	require.NotEmpty(t, slots)

	from, to := window.On(day("2025-03-10"))
	gaps, err := FindGaps("Sala grande", day("2025-03-10"), events, from, to)
	require.NoError(t, err)

	seen := map[string]bool{}
	for i, slot := range slots {
		require.Equal(t, slot.DurationMinutes, int(slot.End.Sub(slot.Start)/time.Minute))
		contained := false
		for _, gap := range gaps {
			if !slot.Start.Before(gap.Start) && !slot.End.After(gap.End) {
				contained = true
			}
		}
		require.True(t, contained, "slot %v-%v outside every gap", slot.Start, slot.End)

		key := dedupKey(slot)
		require.False(t, seen[key])
		seen[key] = true
		if i > 0 {
			require.False(t, slot.Start.Before(slots[i-1].Start))
		}
	}
}

func TestComputeAvailabilityOrdersByDateRoomAndStart(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	freeHour := map[string][2]string{
		"Sala terraza": {"15:00", "16:00"},
		"Sala piano":   {"17:00", "18:00"},
		"Sala grande":  {"19:00", "20:00"},
	}
	var events []models.NormalizedEvent
	for _, date := range []string{"2025-03-11", "2025-03-10"} {
		for room, free := range freeHour {
			events = append(events,
				busy(room, date, "14:00", free[0], "Ensayo"),
				busy(room, date, free[1], "21:00", "Ensayo"),
			)
		}
	}

	slots, err := engine.ComputeAvailability(events, AvailabilityQuery{
		StartDate:       day("2025-03-10"),
		EndDate:         day("2025-03-11"),
		Instrument:      "piano",
		DurationMinutes: 60,
		Rooms:           []string{"Sala terraza", "Sala piano", "Sala grande"},
		Window:          defaultWindow(t),
	})
	require.NoError(t, err)

	type row struct{ date, room, start string }
	var got []row
	for _, slot := range slots {
		got = append(got, row{slot.Date.Format("2006-01-02"), slot.Room, slot.Start.Format("15:04")})
	}
	require.Equal(t, []row{
		{"2025-03-10", "Sala grande", "19:00"},
		{"2025-03-10", "Sala piano", "17:00"},
		{"2025-03-10", "Sala terraza", "15:00"},
		{"2025-03-11", "Sala grande", "19:00"},
		{"2025-03-11", "Sala piano", "17:00"},
		{"2025-03-11", "Sala terraza", "15:00"},
	}, got)

	slots, err = engine.ComputeAvailability(nil, AvailabilityQuery{
		StartDate:       day("2025-03-10"),
		EndDate:         day("2025-03-10"),
		Instrument:      "piano",
		DurationMinutes: 60,
		Window:          defaultWindow(t),
	})
	require.NoError(t, err)
	var rooms []string
	for _, slot := range slots {
		if slot.Placement == models.PlacementStartOfGap {
			rooms = append(rooms, slot.Room)
		}
	}
	require.Equal(t, []string{"Sala grande", "Sala piano", "Sala picola", "Sala terraza"}, rooms)
}

func TestParseWindow(t *testing.T) {
	w, err := ParseWindow("09:30", "13:00")
	require.NoError(t, err)
	require.Equal(t, "09:30", w.Start.String())
	require.True(t, w.Contains(at("2025-03-10", "09:30"), at("2025-03-10", "10:00")))
	require.False(t, w.Contains(at("2025-03-10", "12:30"), at("2025-03-10", "13:30")))

	_, err = ParseWindow("9h", "13:00")
	require.True(t, appErrors.Is(err, appErrors.ErrInvalidWindow))
	_, err = ParseWindow("13:00", "13:00")
	require.True(t, appErrors.Is(err, appErrors.ErrInvalidWindow))
}
