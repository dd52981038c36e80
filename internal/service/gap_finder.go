package service

import (
	"sort"
	"time"

	"github.com/noah-isme/ecm-agenda-api/internal/models"
	appErrors "github.com/noah-isme/ecm-agenda-api/pkg/errors"
)

// FindGaps returns the ordered free intervals of one room on one day inside
// [windowStart, windowEnd). Overlapping and touching events are merged by
// the sweep cursor; events outside the window are ignored.
func FindGaps(room string, date time.Time, events []models.NormalizedEvent, windowStart, windowEnd time.Time) ([]models.Gap, error) {
	if !windowStart.Before(windowEnd) {
		return nil, appErrors.Clone(appErrors.ErrInvalidWindow, "window start must be before window end")
	}

	sorted := make([]models.NormalizedEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].StartLocal.Equal(sorted[j].StartLocal) {
			return sorted[i].EndLocal.Before(sorted[j].EndLocal)
		}
		return sorted[i].StartLocal.Before(sorted[j].StartLocal)
	})

	gaps := make([]models.Gap, 0, len(sorted)+1)
	cursor := windowStart
	for _, ev := range sorted {
		if !ev.EndLocal.After(cursor) {
			continue
		}
		if !ev.StartLocal.Before(windowEnd) {
			break
		}
		if ev.StartLocal.After(cursor) {
			gaps = append(gaps, models.Gap{Room: room, Date: date, Start: cursor, End: ev.StartLocal})
		}
		cursor = ev.EndLocal
		if !cursor.Before(windowEnd) {
			return gaps, nil
		}
	}

	if cursor.Before(windowEnd) {
		gaps = append(gaps, models.Gap{Room: room, Date: date, Start: cursor, End: windowEnd})
	}
	return gaps, nil
}
