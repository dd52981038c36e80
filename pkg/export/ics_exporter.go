package export

import (
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
)

// ICSExporter renders entries as an iCalendar document that calendar apps can import.
type ICSExporter struct {
	productID string
	now       func() time.Time
}

// NewICSExporter constructs an ICS exporter.
func NewICSExporter() *ICSExporter {
	return &ICSExporter{productID: "-//ECM//Agenda API//ES", now: time.Now}
}

// ContentType is the MIME type of the rendered output.
func (e *ICSExporter) ContentType() string {
	return "text/calendar; charset=utf-8"
}

// Render serializes entries into one VCALENDAR.
func (e *ICSExporter) Render(name string, entries []Entry) []byte {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(e.productID)
	if name != "" {
		cal.SetName(name)
	}

	stamp := e.now().UTC()
	for i, entry := range entries {
		uid := entry.UID
		if uid == "" {
			uid = syntheticUID(entry, i)
		}
		ev := cal.AddEvent(uid)
		ev.SetDtStampTime(stamp)
		ev.SetSummary(entry.Title)
		if entry.Room != "" {
			ev.SetLocation(entry.Room)
		}
		if entry.AllDay {
			ev.SetAllDayStartAt(entry.Start)
			ev.SetAllDayEndAt(entry.End)
			continue
		}
		ev.SetStartAt(entry.Start)
		ev.SetEndAt(entry.End)
	}
	return []byte(cal.Serialize())
}

func syntheticUID(entry Entry, index int) string {
	room := strings.ReplaceAll(strings.ToLower(entry.Room), " ", "-")
	return fmt.Sprintf("%s-%s-%d@ecm-agenda", entry.Start.UTC().Format("20060102T150405Z"), room, index)
}
