package service

import (
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ecm-agenda-api/internal/models"
	appErrors "github.com/noah-isme/ecm-agenda-api/pkg/errors"
)

func TestFindGapsEmptyDay(t *testing.T) {
	from, to := at("2025-03-10", "14:00"), at("2025-03-10", "21:00")
	gaps, err := FindGaps("Sala grande", day("2025-03-10"), nil, from, to)
	require.NoError(t, err)
	require.Equal(t, []models.Gap{{Room: "Sala grande", Date: day("2025-03-10"), Start: from, End: to}}, gaps)
}

func TestFindGapsMergesOverlaps(t *testing.T) {
	from, to := at("2025-03-10", "14:00"), at("2025-03-10", "21:00")
	events := []models.NormalizedEvent{
		busy("Sala grande", "2025-03-10", "16:00", "17:00", "b"),
		busy("Sala grande", "2025-03-10", "15:00", "16:30", "a"),
		busy("Sala grande", "2025-03-10", "17:00", "17:30", "c"),
		busy("Sala grande", "2025-03-10", "15:10", "15:20", "inside"),
		busy("Sala grande", "2025-03-10", "09:00", "10:00", "morning"),
		busy("Sala grande", "2025-03-10", "21:00", "22:00", "late"),
	}
	gaps, err := FindGaps("Sala grande", day("2025-03-10"), events, from, to)
	require.NoError(t, err)
	require.Len(t, gaps, 2)
	require.Equal(t, at("2025-03-10", "14:00"), gaps[0].Start)
	require.Equal(t, at("2025-03-10", "15:00"), gaps[0].End)
	require.Equal(t, at("2025-03-10", "17:30"), gaps[1].Start)
	require.Equal(t, at("2025-03-10", "21:00"), gaps[1].End)
}

func TestFindGapsFullyBooked(t *testing.T) {
	from, to := at("2025-03-10", "14:00"), at("2025-03-10", "21:00")
	events := []models.NormalizedEvent{
		busy("Sala piano", "2025-03-10", "13:00", "18:00", "a"),
		busy("Sala piano", "2025-03-10", "18:00", "23:00", "b"),
	}
	gaps, err := FindGaps("Sala piano", day("2025-03-10"), events, from, to)
	require.NoError(t, err)
	require.Empty(t, gaps)
}

func TestFindGapsRejectsInvertedWindow(t *testing.T) {
	from := at("2025-03-10", "14:00")
	_, err := FindGaps("Sala piano", day("2025-03-10"), nil, from, from)
	require.True(t, appErrors.Is(err, appErrors.ErrInvalidWindow))
}

// Gaps and merged busy time must tile the window exactly once.
func TestFindGapsPartitionsWindow(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	date := day("2025-03-10")
	from, to := at("2025-03-10", "14:00"), at("2025-03-10", "21:00")

	for round := 0; round < 200; round++ {
		var events []models.NormalizedEvent
		for i := rng.Intn(8); i > 0; i-- {
			start := date.Add(time.Duration(12*60+rng.Intn(11*60)) * time.Minute)
			end := start.Add(time.Duration(1+rng.Intn(120)) * time.Minute)
			events = append(events, models.NormalizedEvent{Room: "Sala grande", StartLocal: start, EndLocal: end})
		}

		gaps, err := FindGaps("Sala grande", date, events, from, to)
		require.NoError(t, err)

		covered := map[time.Time]int{}
		for m := from; m.Before(to); m = m.Add(time.Minute) {
			for _, ev := range events {
				if !m.Before(ev.StartLocal) && m.Before(ev.EndLocal) {
					covered[m]++
					break
				}
			}
		}
		for i, gap := range gaps {
			require.True(t, gap.Start.Before(gap.End))
			if i > 0 {
				require.True(t, gaps[i-1].End.Before(gap.Start), "gaps must be maximal and disjoint")
			}
			for m := gap.Start; m.Before(gap.End); m = m.Add(time.Minute) {
				covered[m]++
			}
		}

		minutes := make([]time.Time, 0, len(covered))
		for m := range covered {
			minutes = append(minutes, m)
		}
		sort.Slice(minutes, func(i, j int) bool { return minutes[i].Before(minutes[j]) })
		require.Len(t, minutes, int(to.Sub(from)/time.Minute), "round %d", round)
		for _, m := range minutes {
			require.Equal(t, 1, covered[m], "minute %s covered %d times", m.Format(clockLayout), covered[m])
		}
	}
}
