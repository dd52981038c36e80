package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ecm-agenda-api/internal/dto"
	appErrors "github.com/noah-isme/ecm-agenda-api/pkg/errors"
)

func newTestAvailabilityService(t *testing.T, provider *fakeProvider) *AvailabilityService {
	t.Helper()
	policy := newTestPolicy(t)
	normalizer := NewEventNormalizer(testLoc, DefaultVocabulary())
	engine := NewAvailabilityEngine(policy, normalizer, nil)
	fetcher := NewEventFetcher(provider, normalizer, nil, nil)
	return NewAvailabilityService(engine, fetcher, policy, defaultWindow(t), nil, nil)
}

func TestAvailabilityServiceRejectsBadInputBeforeFetching(t *testing.T) {
	provider := newFakeProvider()
	svc := newTestAvailabilityService(t, provider)
	ctx := context.Background()

	cases := []struct {
		name string
		req  dto.AvailabilityRequest
		want *appErrors.Error
	}{
		{"missing start", dto.AvailabilityRequest{End: "2025-03-10"}, appErrors.ErrInvalidDateRange},
		{"bad date", dto.AvailabilityRequest{Start: "10/03/2025", End: "2025-03-10"}, appErrors.ErrInvalidDateRange},
		{"inverted", dto.AvailabilityRequest{Start: "2025-03-11", End: "2025-03-10"}, appErrors.ErrInvalidDateRange},
		{"duration", dto.AvailabilityRequest{Start: "2025-03-10", End: "2025-03-10", Duration: "40"}, appErrors.ErrInvalidDuration},
		{"duration text", dto.AvailabilityRequest{Start: "2025-03-10", End: "2025-03-10", Duration: "media hora"}, appErrors.ErrInvalidDuration},
		{"window", dto.AvailabilityRequest{Start: "2025-03-10", End: "2025-03-10", WindowStart: "22:00"}, appErrors.ErrInvalidWindow},
		{"unknown rooms", dto.AvailabilityRequest{Start: "2025-03-10", End: "2025-03-10", Rooms: "Sala fantasma"}, appErrors.ErrUnknownRoom},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Availability(ctx, tc.req)
			require.Error(t, err)
			require.True(t, appErrors.Is(err, tc.want), "got %v", err)
		})
	}
	require.Zero(t, provider.callCount())
}

func TestAvailabilityServiceDropsUnknownRooms(t *testing.T) {
	provider := newFakeProvider()
	provider.add("Sala piano", timed("p1", "Ana - piano (marcos)", "2025-03-10T14:00:00-03:00", "2025-03-10T20:00:00-03:00"))
	svc := newTestAvailabilityService(t, provider)

	resp, err := svc.Availability(context.Background(), dto.AvailabilityRequest{
		Start:    "2025-03-10",
		End:      "2025-03-10",
		Duration: "60",
		Rooms:    "sala piano, Sala fantasma",
	})
	require.NoError(t, err)
	require.Equal(t, []string{"Sala piano"}, resp.Rooms)
	require.Equal(t, []string{"Sala fantasma"}, resp.DroppedRooms)
	require.Len(t, resp.Slots, 1)
	require.Equal(t, "20:00", resp.Slots[0].Start)
	require.Equal(t, "21:00", resp.Slots[0].End)
	require.Equal(t, "Lun 10/03", resp.Slots[0].DateLabel)
	require.Equal(t, map[string]int{"Sala piano": 1}, provider.calledRooms())
}

func TestAvailabilityServiceTeacherReadsEveryRoom(t *testing.T) {
	provider := newFakeProvider()
	provider.add("Sala grande", timed("g1", "Lola - bateria (fede)", "2025-03-11T15:00:00-03:00", "2025-03-11T16:00:00-03:00"))
	svc := newTestAvailabilityService(t, provider)

	resp, err := svc.Availability(context.Background(), dto.AvailabilityRequest{
		Start:    "2025-03-10",
		End:      "2025-03-11",
		Teacher:  "Fede",
		Duration: "60",
		Rooms:    "Sala piano",
	})
	require.NoError(t, err)
	require.Len(t, provider.calledRooms(), len(testRooms))
	require.Len(t, resp.Slots, 2)
	for _, slot := range resp.Slots {
		require.Equal(t, "2025-03-11", slot.Date)
		require.Equal(t, "Sala piano", slot.Room)
		require.Equal(t, "fede", slot.Teacher)
	}
	require.Equal(t, "start_of_gap", resp.Slots[0].Placement)
	require.Equal(t, "dovetail_end", resp.Slots[1].Placement)
}
