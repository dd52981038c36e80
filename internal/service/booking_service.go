package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/ecm-agenda-api/internal/dto"
	"github.com/noah-isme/ecm-agenda-api/internal/models"
	appErrors "github.com/noah-isme/ecm-agenda-api/pkg/errors"
	"github.com/noah-isme/ecm-agenda-api/pkg/jobs"
)

// JobCacheInvalidate asks the worker pool to drop cached listings of a room.
const JobCacheInvalidate = "cache.invalidate"

// BookingWriter writes events into a room calendar.
type BookingWriter interface {
	CreateEvent(ctx context.Context, room string, event models.NewCalendarEvent) (string, error)
	CancelEvent(ctx context.Context, room, eventID string) error
}

// JobEnqueuer schedules background work.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, job jobs.Job) error
}

// CacheInvalidator drops cached listings of a room.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, room string) error
}

// BookingService books and cancels lessons after checking them against the
// current calendars.
type BookingService struct {
	writer    BookingWriter
	fetcher   *EventFetcher
	policy    *RoomPolicy
	window    TimeWindow
	queue     JobEnqueuer
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBookingService constructs the booking service. queue may be nil.
func NewBookingService(writer BookingWriter, fetcher *EventFetcher, policy *RoomPolicy, window TimeWindow, queue JobEnqueuer, metrics *MetricsService, logger *zap.Logger) *BookingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingService{
		writer:    writer,
		fetcher:   fetcher,
		policy:    policy,
		window:    window,
		queue:     queue,
		metrics:   metrics,
		validator: validator.New(),
		logger:    logger,
	}
}

// Create books a lesson. The slot must fit the working window, respect the
// instrument's rooms and not overlap any event already in the room.
func (s *BookingService) Create(ctx context.Context, req dto.CreateBookingRequest) (resp *dto.BookingResponse, err error) {
	defer func() { s.metrics.RecordBooking("create", err) }()

	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if !IsAllowedDuration(req.DurationMinutes) {
		return nil, appErrors.Clone(appErrors.ErrInvalidDuration, fmt.Sprintf("duration_minutes %d must be one of 30, 45, 60", req.DurationMinutes))
	}

	room, ok := s.policy.Canonical(req.Room)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnknownRoom, fmt.Sprintf("unknown room %q", req.Room))
	}

	normalizer := s.fetcher.normalizer
	instrument := normalizer.CanonicalInstrument(req.Instrument)
	teacher := normalizer.CanonicalTeacher(req.Teacher)
	if instrument != "" && !containsRoom(s.policy.AllowedRooms(instrument), room) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s cannot be taught in %s", instrument, room))
	}

	day, err := parseDate(req.Date, normalizer.Location())
	if err != nil {
		return nil, err
	}
	clock, err := ParseClock(req.Start)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), clock.Hour, clock.Minute, 0, 0, day.Location())
	end := start.Add(time.Duration(req.DurationMinutes) * time.Minute)
	if !s.window.Contains(start, end) {
		return nil, appErrors.Clone(appErrors.ErrInvalidWindow, fmt.Sprintf("%s-%s is outside the working window %s-%s", start.Format(clockLayout), end.Format(clockLayout), s.window.Start, s.window.End))
	}

	existing, err := s.fetcher.Fetch(ctx, []string{room}, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	for _, ev := range existing.Events {
		if ev.Room == room && ev.Overlaps(start, end) {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("%s is busy at %s (%s)", room, ev.StartLocal.Format(clockLayout), ev.Title))
		}
	}

	title := bookingTitle(strings.TrimSpace(req.Student), instrument, teacher)
	eventID, err := s.writer.CreateEvent(ctx, room, models.NewCalendarEvent{Summary: title, Start: start, End: end})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, room)

	s.logger.Info("booking created",
		zap.String("event_id", eventID),
		zap.String("room", room),
		zap.Time("start", start),
		zap.Int("duration_minutes", req.DurationMinutes),
	)
	return &dto.BookingResponse{
		EventID:         eventID,
		Room:            room,
		Date:            day.Format(dateLayout),
		Start:           start.Format(clockLayout),
		End:             end.Format(clockLayout),
		DurationMinutes: req.DurationMinutes,
		Title:           title,
	}, nil
}

// Cancel removes a booked event from a room calendar.
func (s *BookingService) Cancel(ctx context.Context, room, eventID string) (err error) {
	defer func() { s.metrics.RecordBooking("cancel", err) }()

	canonical, ok := s.policy.Canonical(room)
	if !ok {
		return appErrors.Clone(appErrors.ErrUnknownRoom, fmt.Sprintf("unknown room %q", room))
	}
	if strings.TrimSpace(eventID) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "event id is required")
	}
	if err := s.writer.CancelEvent(ctx, canonical, eventID); err != nil {
		return err
	}
	s.invalidate(ctx, canonical)
	s.logger.Info("booking cancelled", zap.String("event_id", eventID), zap.String("room", canonical))
	return nil
}

func (s *BookingService) invalidate(ctx context.Context, room string) {
	if s.queue == nil {
		return
	}
	if err := s.queue.Enqueue(ctx, jobs.Job{Type: JobCacheInvalidate, Payload: room}); err != nil {
		s.logger.Warn("failed to schedule cache invalidation", zap.String("room", room), zap.Error(err))
	}
}

// CacheInvalidationHandler processes JobCacheInvalidate jobs.
func CacheInvalidationHandler(invalidator CacheInvalidator) jobs.Handler {
	return func(ctx context.Context, job jobs.Job) error {
		if job.Type != JobCacheInvalidate {
			return fmt.Errorf("unexpected job type %q", job.Type)
		}
		room, ok := job.Payload.(string)
		if !ok || room == "" {
			return fmt.Errorf("job %s: room payload missing", job.ID)
		}
		return invalidator.Invalidate(ctx, room)
	}
}

func bookingTitle(student, instrument, teacher string) string {
	title := student
	if instrument != "" {
		title += " - " + instrument
	}
	if teacher != "" {
		title += " (" + teacher + ")"
	}
	return title
}

func containsRoom(rooms []string, room string) bool {
	for _, r := range rooms {
		if r == room {
			return true
		}
	}
	return false
}
