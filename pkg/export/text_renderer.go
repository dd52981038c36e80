package export

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// TextRenderer formats an agenda as plain text grouped by day, ready to be
// pasted into a chat.
type TextRenderer struct{}

// NewTextRenderer constructs a text renderer.
func NewTextRenderer() *TextRenderer {
	return &TextRenderer{}
}

// ContentType is the MIME type of the rendered output.
func (r *TextRenderer) ContentType() string {
	return "text/plain; charset=utf-8"
}

// Render lists entries per day, ordered by room then start; all-day entries
// sort last within their room.
func (r *TextRenderer) Render(from, to time.Time, entries []Entry) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "📅 Agenda (del %s al %s):\n", from.Format("02/01"), to.Format("02/01"))

	if len(entries) == 0 {
		b.WriteString("\n⛔ No hay eventos cargados en este período.\n")
		return []byte(b.String())
	}

	byDay := map[string][]Entry{}
	days := make([]string, 0)
	for _, entry := range entries {
		key := entry.Start.Format("2006-01-02")
		if _, ok := byDay[key]; !ok {
			days = append(days, key)
		}
		byDay[key] = append(byDay[key], entry)
	}
	sort.Strings(days)

	for _, key := range days {
		group := byDay[key]
		sort.SliceStable(group, func(i, j int) bool {
			if group[i].Room != group[j].Room {
				return group[i].Room < group[j].Room
			}
			if group[i].AllDay != group[j].AllDay {
				return !group[i].AllDay
			}
			return group[i].Start.Before(group[j].Start)
		})

		fmt.Fprintf(&b, "\n📆 %s (%s)\n", DateLabel(group[0].Start), key)
		for _, entry := range group {
			title := entry.Title
			if title == "" {
				title = "Sin título"
			}
			if entry.AllDay {
				fmt.Fprintf(&b, "  Todo el día - %s (%s)\n", title, entry.Room)
				continue
			}
			duration := ""
			if entry.DurationMinutes > 0 {
				duration = fmt.Sprintf(" (%d min)", entry.DurationMinutes)
			}
			fmt.Fprintf(&b, "  %s - %s%s - %s (%s)\n", entry.Start.Format("15:04"), entry.End.Format("15:04"), duration, title, entry.Room)
		}
	}
	return []byte(b.String())
}
