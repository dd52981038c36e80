package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/ecm-agenda-api/internal/dto"
	"github.com/noah-isme/ecm-agenda-api/internal/models"
	appErrors "github.com/noah-isme/ecm-agenda-api/pkg/errors"
	"github.com/noah-isme/ecm-agenda-api/pkg/export"
)

// AvailabilityService answers /availability requests: it validates the
// query, reads the calendars it needs and runs the engine.
type AvailabilityService struct {
	engine  *AvailabilityEngine
	fetcher *EventFetcher
	policy  *RoomPolicy
	window  TimeWindow
	metrics *MetricsService
	logger  *zap.Logger
}

// NewAvailabilityService constructs the service. window is used when a
// request does not override it.
func NewAvailabilityService(engine *AvailabilityEngine, fetcher *EventFetcher, policy *RoomPolicy, window TimeWindow, metrics *MetricsService, logger *zap.Logger) *AvailabilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{engine: engine, fetcher: fetcher, policy: policy, window: window, metrics: metrics, logger: logger}
}

// Availability computes the free slots for the request.
func (s *AvailabilityService) Availability(ctx context.Context, req dto.AvailabilityRequest) (*dto.AvailabilityResponse, error) {
	query, err := s.parse(req)
	if err != nil {
		return nil, err
	}
	plan, err := s.engine.Plan(query)
	if err != nil {
		return nil, err
	}

	from := plan.Dates[0]
	to := plan.Dates[len(plan.Dates)-1].AddDate(0, 0, 1)
	result, err := s.fetcher.Fetch(ctx, s.roomsToFetch(plan), from, to)
	if err != nil {
		return nil, err
	}

	slots := s.engine.Run(plan, result.Events)
	s.metrics.ObserveSlots(len(slots))
	s.logger.Info("availability computed",
		zap.String("start", req.Start),
		zap.String("end", req.End),
		zap.String("instrument", plan.Instrument),
		zap.String("teacher", plan.Teacher),
		zap.Strings("rooms", plan.Rooms),
		zap.Int("slots", len(slots)),
		zap.Int("skipped_events", len(result.Skipped)),
	)

	resp := &dto.AvailabilityResponse{
		Slots:         make([]dto.AvailabilitySlot, 0, len(slots)),
		Rooms:         plan.Rooms,
		DroppedRooms:  plan.DroppedRooms,
		SkippedEvents: len(result.Skipped),
	}
	for _, slot := range slots {
		resp.Slots = append(resp.Slots, toSlotDTO(slot))
	}
	return resp, nil
}

func (s *AvailabilityService) parse(req dto.AvailabilityRequest) (AvailabilityQuery, error) {
	loc := s.engine.normalizer.Location()
	var q AvailabilityQuery

	if strings.TrimSpace(req.Start) == "" || strings.TrimSpace(req.End) == "" {
		return q, appErrors.Clone(appErrors.ErrInvalidDateRange, "start and end are required (YYYY-MM-DD)")
	}
	var err error
	if q.StartDate, err = parseDate(req.Start, loc); err != nil {
		return q, err
	}
	if q.EndDate, err = parseDate(req.End, loc); err != nil {
		return q, err
	}

	q.Window = s.window
	if req.WindowStart != "" || req.WindowEnd != "" {
		start, end := req.WindowStart, req.WindowEnd
		if start == "" {
			start = s.window.Start.String()
		}
		if end == "" {
			end = s.window.End.String()
		}
		if q.Window, err = ParseWindow(start, end); err != nil {
			return q, err
		}
	}

	if raw := strings.TrimSpace(req.Duration); raw != "" {
		minutes, convErr := strconv.Atoi(raw)
		if convErr != nil || !IsAllowedDuration(minutes) {
			return q, appErrors.Clone(appErrors.ErrInvalidDuration, fmt.Sprintf("dur_min %q must be one of 30, 45, 60", raw))
		}
		q.DurationMinutes = minutes
	}

	if strings.TrimSpace(req.Rooms) != "" {
		q.Rooms = splitCSV(req.Rooms)
	}
	q.Instrument = req.Instrument
	q.Teacher = req.Teacher
	return q, nil
}

// roomsToFetch adds every room when a teacher is requested, since presence
// is checked across the whole academy.
func (s *AvailabilityService) roomsToFetch(plan *AvailabilityPlan) []string {
	if plan.Teacher == "" {
		return plan.Rooms
	}
	rooms := append([]string(nil), plan.Rooms...)
	seen := make(map[string]struct{}, len(rooms))
	for _, room := range rooms {
		seen[room] = struct{}{}
	}
	for _, room := range s.policy.Rooms() {
		if _, ok := seen[room]; !ok {
			rooms = append(rooms, room)
		}
	}
	return rooms
}

func toSlotDTO(slot models.AvailabilitySlot) dto.AvailabilitySlot {
	return dto.AvailabilitySlot{
		Date:            slot.Date.Format(dateLayout),
		DateLabel:       export.DateLabel(slot.Date),
		Room:            slot.Room,
		Instrument:      slot.Instrument,
		Teacher:         slot.Teacher,
		Start:           slot.Start.Format(clockLayout),
		End:             slot.End.Format(clockLayout),
		DurationMinutes: slot.DurationMinutes,
		Placement:       string(slot.Placement),
	}
}

func parseDate(raw string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(raw), loc)
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrInvalidDateRange, fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", raw))
	}
	return t, nil
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
