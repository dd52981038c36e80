package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ecm-agenda-api/internal/dto"
	appErrors "github.com/noah-isme/ecm-agenda-api/pkg/errors"
)

func newTestAgendaService(t *testing.T, provider *fakeProvider) *AgendaService {
	t.Helper()
	fetcher := NewEventFetcher(provider, NewEventNormalizer(testLoc, DefaultVocabulary()), nil, nil)
	svc := NewAgendaService(fetcher, newTestPolicy(t), testLoc, 14, nil)
	svc.now = func() time.Time { return at("2025-03-10", "10:30") }
	return svc
}

func TestAgendaDefaultsToFourteenDays(t *testing.T) {
	provider := newFakeProvider()
	svc := newTestAgendaService(t, provider)

	resp, err := svc.Agenda(context.Background(), dto.AgendaRequest{})
	require.NoError(t, err)
	require.Equal(t, "2025-03-10", resp.From)
	require.Equal(t, "2025-03-23", resp.To)
	require.Empty(t, resp.Events)
	require.Equal(t, len(testRooms), provider.callCount())
	for _, call := range provider.calls {
		require.Equal(t, day("2025-03-10"), call.from)
		require.Equal(t, day("2025-03-24"), call.to)
	}
}

func TestAgendaSortsByDateRoomAndStart(t *testing.T) {
	provider := newFakeProvider()
	provider.add("Sala terraza", timed("t1", "Coro", "2025-03-10T18:00:00-03:00", "2025-03-10T19:00:00-03:00"))
	provider.add("Sala grande",
		timed("g2", "Lola - bateria (fede)", "2025-03-11T15:00:00-03:00", "2025-03-11T16:00:00-03:00"),
		timed("g1", "Ensayo", "2025-03-10T17:00:00-03:00", "2025-03-10T18:00:00-03:00"),
		timed("g0", "Ana - piano (marcos)", "2025-03-10T14:00:00-03:00", "2025-03-10T15:00:00-03:00"),
		allDay("h1", "Feriado", "2025-03-12", "2025-03-13"),
	)
	svc := newTestAgendaService(t, provider)

	resp, err := svc.Agenda(context.Background(), dto.AgendaRequest{Start: "2025-03-10", End: "2025-03-12"})
	require.NoError(t, err)

	ids := make([]string, 0, len(resp.Events))
	for _, ev := range resp.Events {
		ids = append(ids, ev.EventID)
	}
	require.Equal(t, []string{"g0", "g1", "t1", "g2", "h1"}, ids)
	require.Equal(t, "Mar 11/03", resp.Events[3].DateLabel)
	require.Equal(t, "fede", resp.Events[3].Teacher)
	require.True(t, resp.Events[4].AllDay)
	require.Empty(t, resp.Events[4].Start)

	data := AgendaDataset(resp)
	require.Len(t, data.Rows, 5)
	require.Equal(t, "Todo el día", data.Rows[4]["start"])
	require.Equal(t, "60", data.Rows[0]["duration"])

	entries := svc.AgendaEntries(resp)
	require.Len(t, entries, 5)
	require.Equal(t, at("2025-03-10", "14:00"), entries[0].Start)
	require.Equal(t, at("2025-03-10", "15:00"), entries[0].End)
	require.Equal(t, day("2025-03-13"), entries[4].End)

	from, to := svc.RangeBounds(resp)
	require.Equal(t, day("2025-03-10"), from)
	require.Equal(t, day("2025-03-12"), to)
}

func TestAgendaRejectsBadRanges(t *testing.T) {
	provider := newFakeProvider()
	svc := newTestAgendaService(t, provider)
	ctx := context.Background()

	for _, req := range []dto.AgendaRequest{
		{End: "2025-03-12"},
		{Start: "2025-03-12", End: "2025-03-10"},
		{Start: "12-03-2025"},
		{Start: "2025-01-01", End: "2025-06-30"},
	} {
		_, err := svc.Agenda(ctx, req)
		require.True(t, appErrors.Is(err, appErrors.ErrInvalidDateRange), "request %+v: %v", req, err)
	}
	require.Zero(t, provider.callCount())
}
