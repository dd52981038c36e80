package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/ecm-agenda-api/internal/dto"
	"github.com/noah-isme/ecm-agenda-api/internal/models"
	appErrors "github.com/noah-isme/ecm-agenda-api/pkg/errors"
	"github.com/noah-isme/ecm-agenda-api/pkg/export"
)

// DefaultAgendaDays is used when no range is configured.
const DefaultAgendaDays = 14

// AgendaService lists the events of every room for a date range.
type AgendaService struct {
	fetcher     *EventFetcher
	policy      *RoomPolicy
	loc         *time.Location
	defaultDays int
	logger      *zap.Logger
	now         func() time.Time
}

// NewAgendaService constructs the agenda service.
func NewAgendaService(fetcher *EventFetcher, policy *RoomPolicy, loc *time.Location, defaultDays int, logger *zap.Logger) *AgendaService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	if defaultDays <= 0 {
		defaultDays = DefaultAgendaDays
	}
	return &AgendaService{
		fetcher:     fetcher,
		policy:      policy,
		loc:         loc,
		defaultDays: defaultDays,
		logger:      logger,
		now:         time.Now,
	}
}

// Agenda returns the events overlapping [start 00:00, end+1 00:00) sorted by
// date, room and start time.
func (s *AgendaService) Agenda(ctx context.Context, req dto.AgendaRequest) (*dto.AgendaResponse, error) {
	from, to, err := s.resolveRange(req)
	if err != nil {
		return nil, err
	}

	result, err := s.fetcher.Fetch(ctx, s.policy.Rooms(), from, to)
	if err != nil {
		return nil, err
	}

	events := make([]models.NormalizedEvent, 0, len(result.Events))
	for _, ev := range result.Events {
		if ev.Overlaps(from, to) {
			events = append(events, ev)
		}
	}
	sortAgenda(events)

	resp := &dto.AgendaResponse{
		From:          from.Format(dateLayout),
		To:            to.AddDate(0, 0, -1).Format(dateLayout),
		Events:        make([]dto.AgendaEvent, 0, len(events)),
		SkippedEvents: len(result.Skipped),
	}
	for _, ev := range events {
		resp.Events = append(resp.Events, toAgendaDTO(ev))
	}

	s.logger.Info("agenda listed",
		zap.String("from", resp.From),
		zap.String("to", resp.To),
		zap.Int("events", len(resp.Events)),
		zap.Int("skipped_events", resp.SkippedEvents),
	)
	return resp, nil
}

// resolveRange returns the half-open local range. Both dates empty means
// today plus the default span; a start without end uses the same span.
func (s *AgendaService) resolveRange(req dto.AgendaRequest) (time.Time, time.Time, error) {
	startRaw := strings.TrimSpace(req.Start)
	endRaw := strings.TrimSpace(req.End)

	if startRaw == "" && endRaw != "" {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrInvalidDateRange, "end requires start")
	}

	var from time.Time
	if startRaw == "" {
		from = midnight(s.now().In(s.loc))
	} else {
		parsed, err := parseDate(startRaw, s.loc)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = parsed
	}

	last := from.AddDate(0, 0, s.defaultDays-1)
	if endRaw != "" {
		parsed, err := parseDate(endRaw, s.loc)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		last = parsed
	}
	if last.Before(from) {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrInvalidDateRange, "end must not be before start")
	}
	to := last.AddDate(0, 0, 1)
	if days := int(to.Sub(from).Hours()/24 + 0.5); days > MaxRangeDays {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrInvalidDateRange, fmt.Sprintf("range spans %d days, maximum is %d", days, MaxRangeDays))
	}
	return from, to, nil
}

func sortAgenda(events []models.NormalizedEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		di, dj := midnight(events[i].StartLocal), midnight(events[j].StartLocal)
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		if events[i].Room != events[j].Room {
			return events[i].Room < events[j].Room
		}
		return events[i].StartLocal.Before(events[j].StartLocal)
	})
}

func toAgendaDTO(ev models.NormalizedEvent) dto.AgendaEvent {
	out := dto.AgendaEvent{
		Room:            ev.Room,
		Date:            ev.StartLocal.Format(dateLayout),
		DateLabel:       export.DateLabel(ev.StartLocal),
		DurationMinutes: ev.DurationMinutes,
		AllDay:          ev.AllDay,
		Title:           ev.Title,
		Instrument:      ev.Instrument,
		Teacher:         ev.Teacher,
		Student:         ev.StudentOrRaw,
		EventID:         ev.EventID,
	}
	if !ev.AllDay {
		out.Start = ev.StartLocal.Format(clockLayout)
		out.End = ev.EndLocal.Format(clockLayout)
	}
	return out
}

var agendaColumns = []export.Column{
	{Key: "date", Header: "Fecha", Width: 1.2},
	{Key: "day", Header: "Día", Width: 1},
	{Key: "room", Header: "Sala", Width: 1.4},
	{Key: "start", Header: "Inicio", Width: 0.8},
	{Key: "end", Header: "Fin", Width: 0.8},
	{Key: "duration", Header: "Min", Width: 0.6},
	{Key: "title", Header: "Título", Width: 3},
	{Key: "instrument", Header: "Instrumento", Width: 1.2},
	{Key: "teacher", Header: "Profesor", Width: 1.2},
}

// AgendaDataset flattens an agenda into rows for the CSV and PDF exporters.
func AgendaDataset(resp *dto.AgendaResponse) export.Dataset {
	data := export.Dataset{
		Title:   fmt.Sprintf("Agenda ECM %s - %s", resp.From, resp.To),
		Columns: agendaColumns,
		Rows:    make([]map[string]string, 0, len(resp.Events)),
	}
	for _, ev := range resp.Events {
		start, end, duration := ev.Start, ev.End, strconv.Itoa(ev.DurationMinutes)
		if ev.AllDay {
			start, end, duration = "Todo el día", "", ""
		}
		data.Rows = append(data.Rows, map[string]string{
			"date":       ev.Date,
			"day":        ev.DateLabel,
			"room":       ev.Room,
			"start":      start,
			"end":        end,
			"duration":   duration,
			"title":      ev.Title,
			"instrument": ev.Instrument,
			"teacher":    ev.Teacher,
		})
	}
	return data
}

// AgendaEntries converts the agenda back into local-time entries for the
// ICS and text renderers.
func (s *AgendaService) AgendaEntries(resp *dto.AgendaResponse) []export.Entry {
	entries := make([]export.Entry, 0, len(resp.Events))
	for _, ev := range resp.Events {
		day, err := time.ParseInLocation(dateLayout, ev.Date, s.loc)
		if err != nil {
			continue
		}
		entry := export.Entry{
			UID:             ev.EventID,
			Room:            ev.Room,
			Title:           ev.Title,
			DurationMinutes: ev.DurationMinutes,
			AllDay:          ev.AllDay,
		}
		if ev.AllDay {
			entry.Start = day
			entry.End = day.AddDate(0, 0, 1)
		} else {
			entry.Start = atClock(day, ev.Start)
			entry.End = entry.Start.Add(time.Duration(ev.DurationMinutes) * time.Minute)
		}
		entries = append(entries, entry)
	}
	return entries
}

// RangeBounds parses the response range back into local dates.
func (s *AgendaService) RangeBounds(resp *dto.AgendaResponse) (time.Time, time.Time) {
	from, _ := time.ParseInLocation(dateLayout, resp.From, s.loc)
	to, _ := time.ParseInLocation(dateLayout, resp.To, s.loc)
	return from, to
}

func atClock(day time.Time, clock string) time.Time {
	c, err := ParseClock(clock)
	if err != nil {
		return day
	}
	return time.Date(day.Year(), day.Month(), day.Day(), c.Hour, c.Minute, 0, 0, day.Location())
}
