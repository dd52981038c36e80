package repository

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"
	"go.uber.org/zap"

	"github.com/noah-isme/ecm-agenda-api/internal/models"
	"github.com/noah-isme/ecm-agenda-api/pkg/config"
	appErrors "github.com/noah-isme/ecm-agenda-api/pkg/errors"
)

const (
	maxOccurrencesPerEvent = 5000
	icsDateLayout          = "20060102"
	icsDateTimeLayout      = "20060102T150405"
	maxFeedBytes           = 16 << 20
)

// ICSCalendarRepository reads room calendars from published iCalendar feeds,
// one feed URL per room. Feeds are read-only.
type ICSCalendarRepository struct {
	client *http.Client
	feeds  map[string]string
	rooms  []string
	loc    *time.Location
	logger *zap.Logger
}

type icsEvent struct {
	uid          string
	summary      string
	start        time.Time
	end          time.Time
	allDay       bool
	rrule        string
	exdates      []time.Time
	recurrenceID *time.Time
	cancelled    bool
	broken       string
}

// NewICSCalendarRepository builds a feed reader. Floating times in feeds are
// read in loc.
func NewICSCalendarRepository(client *http.Client, cfg config.CalendarConfig, loc *time.Location, logger *zap.Logger) *ICSCalendarRepository {
	if client == nil {
		client = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ICSCalendarRepository{
		client: client,
		feeds:  cfg.RoomSourceMap(),
		rooms:  cfg.RoomNames(),
		loc:    loc,
		logger: logger,
	}
}

// Rooms returns the configured rooms in canonical order.
func (r *ICSCalendarRepository) Rooms() []string {
	return append([]string(nil), r.rooms...)
}

// ListEvents downloads the room feed and expands recurrences overlapping [from, to).
// Events the feed cannot describe are passed through with empty bounds so the
// normalizer reports them as skipped.
func (r *ICSCalendarRepository) ListEvents(ctx context.Context, room string, from, to time.Time) ([]models.RawEvent, error) {
	feedURL, ok := r.feeds[room]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnknownRoom, fmt.Sprintf("unknown room %q", room))
	}
	body, err := r.fetch(ctx, feedURL)
	if err != nil {
		return nil, err
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		r.logger.Error("ics parse failed", zap.String("room", room), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "calendar feed could not be parsed")
	}

	parsed := make([]icsEvent, 0)
	for _, ve := range cal.Events() {
		parsed = append(parsed, r.parseVEvent(ve))
	}

	overridden := map[string][]time.Time{}
	for _, ev := range parsed {
		if ev.recurrenceID != nil {
			overridden[ev.uid] = append(overridden[ev.uid], *ev.recurrenceID)
		}
	}

	out := make([]models.RawEvent, 0, len(parsed))
	for _, ev := range parsed {
		if ev.cancelled {
			continue
		}
		if ev.broken != "" {
			r.logger.Debug("ics event without usable bounds", zap.String("room", room), zap.String("uid", ev.uid), zap.String("reason", ev.broken))
			out = append(out, models.RawEvent{Room: room, EventID: ev.uid, Summary: ev.summary})
			continue
		}
		for _, occ := range r.expand(ev, overridden[ev.uid], from, to) {
			out = append(out, r.toRaw(room, ev, occ))
		}
	}

	r.logger.Debug("ics feed expanded", zap.String("room", room), zap.Int("events", len(out)))
	return out, nil
}

// CreateEvent is not supported by published feeds.
func (r *ICSCalendarRepository) CreateEvent(ctx context.Context, room string, ev models.NewCalendarEvent) (string, error) {
	return "", appErrors.ErrNotSupported
}

// CancelEvent is not supported by published feeds.
func (r *ICSCalendarRepository) CancelEvent(ctx context.Context, room, eventID string) error {
	return appErrors.ErrNotSupported
}

func (r *ICSCalendarRepository) fetch(ctx context.Context, feedURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build ics request: %w", err)
	}
	req.Header.Set("Accept", "text/calendar")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, appErrors.ErrUpstream.Message)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, appErrors.Clone(appErrors.ErrUpstream, fmt.Sprintf("calendar feed returned %d", resp.StatusCode))
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to read calendar feed")
	}
	return body, nil
}

func (r *ICSCalendarRepository) parseVEvent(ve *ical.VEvent) icsEvent {
	var out icsEvent
	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		out.uid = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyStatus); p != nil && strings.EqualFold(p.Value, "CANCELLED") {
		out.cancelled = true
	}
	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.rrule = p.Value
	}
	if p := ve.GetProperty("RECURRENCE-ID"); p != nil {
		if t, err := r.parseICSTime(p.Value, p.ICalParameters); err == nil {
			out.recurrenceID = &t
		}
	}
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := r.parseICSTime(part, p.ICalParameters); err == nil {
				out.exdates = append(out.exdates, t)
			}
		}
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil || strings.TrimSpace(dtStart.Value) == "" {
		out.broken = "missing DTSTART"
		return out
	}

	if isDateValue(dtStart.Value, dtStart.ICalParameters) {
		out.allDay = true
		value := strings.TrimSpace(dtStart.Value)
		if len(value) > len(icsDateLayout) {
			value = value[:len(icsDateLayout)]
		}
		start, err := time.ParseInLocation(icsDateLayout, value, r.loc)
		if err != nil {
			out.broken = "invalid DTSTART"
			return out
		}
		out.start = start
		out.end = start.AddDate(0, 0, 1)
		if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil {
			if end, err := time.ParseInLocation(icsDateLayout, strings.TrimSpace(dtEnd.Value), r.loc); err == nil && end.After(start) {
				out.end = end
			}
		}
		return out
	}

	start, err := r.eventTime(dtStart, ve.GetStartAt)
	if err != nil {
		out.broken = "invalid DTSTART"
		return out
	}
	out.start = start
	out.end = start
	if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil {
		if end, err := r.eventTime(dtEnd, ve.GetEndAt); err == nil {
			out.end = end
		}
	}
	return out
}

// eventTime reads floating values in the configured location and defers
// TZID and UTC values to the ical library.
func (r *ICSCalendarRepository) eventTime(p *ical.IANAProperty, fromLibrary func() (time.Time, error)) (time.Time, error) {
	value := strings.TrimSpace(p.Value)
	if _, zoned := p.ICalParameters["TZID"]; !zoned && !strings.HasSuffix(value, "Z") {
		return time.ParseInLocation(icsDateTimeLayout, value, r.loc)
	}
	return fromLibrary()
}

// expand returns the occurrence start times of ev overlapping [from, to),
// skipping EXDATEs and instances replaced by a RECURRENCE-ID override.
func (r *ICSCalendarRepository) expand(ev icsEvent, overridden []time.Time, from, to time.Time) []time.Time {
	length := ev.end.Sub(ev.start)
	overlaps := func(start time.Time) bool {
		end := start.Add(length)
		if length <= 0 {
			end = start.Add(time.Minute)
		}
		return start.Before(to) && from.Before(end)
	}

	if ev.rrule == "" || ev.recurrenceID != nil {
		if overlaps(ev.start) {
			return []time.Time{ev.start}
		}
		return nil
	}

	rule, err := rrule.StrToRRule(ev.rrule)
	if err != nil {
		r.logger.Warn("ics rrule parse failed", zap.String("uid", ev.uid), zap.String("rrule", ev.rrule), zap.Error(err))
		if overlaps(ev.start) {
			return []time.Time{ev.start}
		}
		return nil
	}
	rule.DTStart(ev.start)

	var set rrule.Set
	set.RRule(rule)
	for _, ex := range ev.exdates {
		set.ExDate(ex.In(ev.start.Location()))
	}
	for _, rid := range overridden {
		set.ExDate(rid.In(ev.start.Location()))
	}

	starts := set.Between(from.Add(-length).In(ev.start.Location()), to.In(ev.start.Location()), true)
	if len(starts) > maxOccurrencesPerEvent {
		r.logger.Warn("ics occurrences truncated", zap.String("uid", ev.uid), zap.Int("cap", maxOccurrencesPerEvent))
		starts = starts[:maxOccurrencesPerEvent]
	}

	out := make([]time.Time, 0, len(starts))
	for _, start := range starts {
		if overlaps(start) {
			out = append(out, start)
		}
	}
	return out
}

func (r *ICSCalendarRepository) toRaw(room string, ev icsEvent, start time.Time) models.RawEvent {
	raw := models.RawEvent{Room: room, EventID: ev.uid, Summary: ev.summary}
	if ev.rrule != "" && ev.recurrenceID == nil {
		raw.EventID = ev.uid + "_" + start.UTC().Format("20060102T150405Z")
	}
	if ev.allDay {
		days := int(ev.end.Sub(ev.start).Hours()/24 + 0.5)
		if days < 1 {
			days = 1
		}
		raw.Start = models.RawTime{Date: start.Format("2006-01-02")}
		raw.End = models.RawTime{Date: start.AddDate(0, 0, days).Format("2006-01-02")}
		return raw
	}
	end := start.Add(ev.end.Sub(ev.start))
	raw.Start = models.RawTime{DateTime: start.Format(time.RFC3339)}
	raw.End = models.RawTime{DateTime: end.Format(time.RFC3339)}
	return raw
}

// parseICSTime reads DATE, floating DATE-TIME, UTC DATE-TIME and TZID-qualified values.
func (r *ICSCalendarRepository) parseICSTime(value string, params map[string][]string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty time value")
	}
	if strings.HasSuffix(value, "Z") {
		return time.Parse(icsDateTimeLayout+"Z", value)
	}
	loc := r.loc
	if tz := params["TZID"]; len(tz) > 0 {
		if declared, err := time.LoadLocation(tz[0]); err == nil {
			loc = declared
		}
	}
	if strings.Contains(value, "T") {
		return time.ParseInLocation(icsDateTimeLayout, value, loc)
	}
	return time.ParseInLocation(icsDateLayout, value, r.loc)
}

func isDateValue(value string, params map[string][]string) bool {
	if vs := params["VALUE"]; len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(value, "T")
}
