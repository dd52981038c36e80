package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/ecm-agenda-api/pkg/errors"
)

func TestEventFetcherMergesRoomsInOrder(t *testing.T) {
	provider := newFakeProvider()
	provider.add("Sala piano", timed("p1", "Ana - piano (marcos)", "2025-03-10T15:00:00-03:00", "2025-03-10T16:00:00-03:00"))
	provider.add("Sala grande",
		timed("g1", "Lola - bateria (fede)", "2025-03-10T17:00:00-03:00", "2025-03-10T18:00:00-03:00"),
		timed("g2", "roto", "2025-03-10T19:00:00-03:00", ""),
	)
	metrics := NewMetricsService()
	fetcher := NewEventFetcher(provider, NewEventNormalizer(testLoc, DefaultVocabulary()), metrics, nil)

	result, err := fetcher.Fetch(context.Background(), []string{"Sala grande", "Sala piano"}, day("2025-03-10"), day("2025-03-11"))
	require.NoError(t, err)
	require.Len(t, result.Events, 2)
	require.Equal(t, "g1", result.Events[0].EventID)
	require.Equal(t, "Sala grande", result.Events[0].Room)
	require.Equal(t, "p1", result.Events[1].EventID)
	require.Len(t, result.Skipped, 1)
	require.Equal(t, "g2", result.Skipped[0].EventID)

	snap := metrics.Snapshot()
	require.Equal(t, uint64(2), snap.ProviderCalls)
	require.Equal(t, uint64(1), snap.SkippedEvents)
}

func TestEventFetcherPropagatesProviderError(t *testing.T) {
	provider := newFakeProvider()
	provider.errs["Sala piano"] = appErrors.Clone(appErrors.ErrUpstream, "boom")
	fetcher := NewEventFetcher(provider, NewEventNormalizer(testLoc, DefaultVocabulary()), nil, nil)

	_, err := fetcher.Fetch(context.Background(), testRooms, day("2025-03-10"), day("2025-03-11"))
	require.Error(t, err)
	require.True(t, appErrors.Is(err, appErrors.ErrUpstream))
}
