package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ecm-agenda-api/internal/dto"
	appErrors "github.com/noah-isme/ecm-agenda-api/pkg/errors"
	"github.com/noah-isme/ecm-agenda-api/pkg/jobs"
)

type bookingFixture struct {
	provider *fakeProvider
	writer   *fakeWriter
	queue    *fakeQueue
	svc      *BookingService
}

func newBookingFixture(t *testing.T) *bookingFixture {
	t.Helper()
	f := &bookingFixture{provider: newFakeProvider(), writer: &fakeWriter{}, queue: &fakeQueue{}}
	fetcher := NewEventFetcher(f.provider, NewEventNormalizer(testLoc, DefaultVocabulary()), nil, nil)
	f.svc = NewBookingService(f.writer, fetcher, newTestPolicy(t), defaultWindow(t), f.queue, NewMetricsService(), nil)
	return f
}

func validBooking() dto.CreateBookingRequest {
	return dto.CreateBookingRequest{
		Room:            "sala piano",
		Date:            "2025-03-10",
		Start:           "15:00",
		DurationMinutes: 45,
		Student:         "Ana",
		Instrument:      "Piano",
		Teacher:         "Marcos",
	}
}

func TestBookingCreate(t *testing.T) {
	f := newBookingFixture(t)
	f.provider.add("Sala piano", timed("p1", "Juan - piano (marcos)", "2025-03-10T15:45:00-03:00", "2025-03-10T16:30:00-03:00"))

	resp, err := f.svc.Create(context.Background(), validBooking())
	require.NoError(t, err)
	require.Equal(t, "evt-new", resp.EventID)
	require.Equal(t, "Sala piano", resp.Room)
	require.Equal(t, "15:45", resp.End)
	require.Equal(t, "Ana - piano (marcos)", resp.Title)

	require.Len(t, f.writer.created, 1)
	require.Equal(t, at("2025-03-10", "15:00"), f.writer.created[0].Start)
	require.Equal(t, at("2025-03-10", "15:45"), f.writer.created[0].End)

	require.Len(t, f.queue.jobs, 1)
	require.Equal(t, JobCacheInvalidate, f.queue.jobs[0].Type)
	require.Equal(t, "Sala piano", f.queue.jobs[0].Payload)
}

func TestBookingCreateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*dto.CreateBookingRequest)
		want   *appErrors.Error
	}{
		{"missing student", func(r *dto.CreateBookingRequest) { r.Student = "" }, appErrors.ErrValidation},
		{"bad date", func(r *dto.CreateBookingRequest) { r.Date = "10/03/2025" }, appErrors.ErrValidation},
		{"duration", func(r *dto.CreateBookingRequest) { r.DurationMinutes = 40 }, appErrors.ErrInvalidDuration},
		{"unknown room", func(r *dto.CreateBookingRequest) { r.Room = "Sala fantasma" }, appErrors.ErrUnknownRoom},
		{"instrument room", func(r *dto.CreateBookingRequest) { r.Instrument = "Batería" }, appErrors.ErrValidation},
		{"outside window", func(r *dto.CreateBookingRequest) { r.Start = "20:30" }, appErrors.ErrInvalidWindow},
		{"before window", func(r *dto.CreateBookingRequest) { r.Start = "13:30" }, appErrors.ErrInvalidWindow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newBookingFixture(t)
			req := validBooking()
			tc.mutate(&req)
			_, err := f.svc.Create(context.Background(), req)
			require.True(t, appErrors.Is(err, tc.want), "got %v", err)
			require.Empty(t, f.writer.created)
			require.Empty(t, f.queue.jobs)
		})
	}
}

func TestBookingCreateConflict(t *testing.T) {
	f := newBookingFixture(t)
	f.provider.add("Sala piano", timed("p1", "Juan - piano (marcos)", "2025-03-10T15:30:00-03:00", "2025-03-10T16:00:00-03:00"))

	_, err := f.svc.Create(context.Background(), validBooking())
	require.True(t, appErrors.Is(err, appErrors.ErrConflict))
	require.Empty(t, f.writer.created)
}

func TestBookingCreateBlockedByAllDayEvent(t *testing.T) {
	f := newBookingFixture(t)
	f.provider.add("Sala piano", allDay("h1", "Afinación", "2025-03-10", "2025-03-11"))

	_, err := f.svc.Create(context.Background(), validBooking())
	require.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestBookingCancel(t *testing.T) {
	f := newBookingFixture(t)

	require.True(t, appErrors.Is(f.svc.Cancel(context.Background(), "Sala fantasma", "evt-1"), appErrors.ErrUnknownRoom))
	require.True(t, appErrors.Is(f.svc.Cancel(context.Background(), "Sala piano", " "), appErrors.ErrValidation))

	require.NoError(t, f.svc.Cancel(context.Background(), "SALA PIANO", "evt-1"))
	require.Equal(t, []string{"Sala piano/evt-1"}, f.writer.cancelled)
	require.Len(t, f.queue.jobs, 1)
}

func TestCacheInvalidationHandler(t *testing.T) {
	invalidator := &fakeInvalidator{}
	handler := CacheInvalidationHandler(invalidator)

	require.NoError(t, handler(context.Background(), jobs.Job{Type: JobCacheInvalidate, Payload: "Sala grande"}))
	require.Equal(t, []string{"Sala grande"}, invalidator.rooms)

	require.Error(t, handler(context.Background(), jobs.Job{Type: "other", Payload: "Sala grande"}))
	require.Error(t, handler(context.Background(), jobs.Job{Type: JobCacheInvalidate, Payload: 3}))
}
