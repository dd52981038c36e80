package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/ecm-agenda-api/internal/models"
)

// CalendarProvider lists the raw events of one room overlapping [from, to).
type CalendarProvider interface {
	ListEvents(ctx context.Context, room string, from, to time.Time) ([]models.RawEvent, error)
}

// EventFetcher loads several rooms concurrently and normalizes the result.
type EventFetcher struct {
	provider   CalendarProvider
	normalizer *EventNormalizer
	metrics    *MetricsService
	logger     *zap.Logger
}

// NewEventFetcher constructs an event fetcher.
func NewEventFetcher(provider CalendarProvider, normalizer *EventNormalizer, metrics *MetricsService, logger *zap.Logger) *EventFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventFetcher{provider: provider, normalizer: normalizer, metrics: metrics, logger: logger}
}

// Fetch lists every room in parallel; the first provider error cancels the
// remaining calls. Events keep room order, then provider order.
func (f *EventFetcher) Fetch(ctx context.Context, rooms []string, from, to time.Time) (NormalizationResult, error) {
	perRoom := make([][]models.RawEvent, len(rooms))

	g, gctx := errgroup.WithContext(ctx)
	for i, room := range rooms {
		i, room := i, room
		g.Go(func() error {
			start := time.Now()
			events, err := f.provider.ListEvents(gctx, room, from, to)
			f.metrics.ObserveProviderCall(room, err, time.Since(start))
			if err != nil {
				f.logger.Warn("calendar listing failed", zap.String("room", room), zap.Error(err))
				return err
			}
			for j := range events {
				if events[j].Room == "" {
					events[j].Room = room
				}
			}
			perRoom[i] = events
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return NormalizationResult{}, err
	}

	total := 0
	for _, events := range perRoom {
		total += len(events)
	}
	raws := make([]models.RawEvent, 0, total)
	for _, events := range perRoom {
		raws = append(raws, events...)
	}

	result := f.normalizer.NormalizeBatch(raws)
	if len(result.Skipped) > 0 {
		f.metrics.AddSkippedEvents(result.Skipped)
		for _, skipped := range result.Skipped {
			f.logger.Info("calendar event skipped",
				zap.String("room", skipped.Room),
				zap.String("event_id", skipped.EventID),
				zap.String("reason", skipped.Reason),
			)
		}
	}
	return result, nil
}
