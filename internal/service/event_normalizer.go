package service

import (
	"errors"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/noah-isme/ecm-agenda-api/internal/models"
	appErrors "github.com/noah-isme/ecm-agenda-api/pkg/errors"
)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"
)

// VocabularyEntry maps a title fragment to its canonical value.
type VocabularyEntry struct {
	Pattern   string
	Canonical string
}

// Vocabulary holds the ordered instrument and teacher tables used to parse
// free-text event titles. Entries are evaluated top to bottom and the first
// pattern found in the title wins, so longer names that contain shorter ones
// ("francou" vs "franco") must come first.
type Vocabulary struct {
	Instruments []VocabularyEntry
	Teachers    []VocabularyEntry
}

// DefaultVocabulary is the academy's current instrument and teacher list.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Instruments: []VocabularyEntry{
			{Pattern: "bateria", Canonical: "bateria"},
			{Pattern: "drums", Canonical: "bateria"},
			{Pattern: "percusion", Canonical: "percusion"},
			{Pattern: "piano", Canonical: "piano"},
			{Pattern: "teclado", Canonical: "piano"},
			{Pattern: "guitarra", Canonical: "guitarra"},
			{Pattern: "bajo", Canonical: "bajo"},
			{Pattern: "canto", Canonical: "canto"},
			{Pattern: "violin", Canonical: "violin"},
		},
		Teachers: []VocabularyEntry{
			{Pattern: "francou", Canonical: "francou"},
			{Pattern: "franco", Canonical: "franco"},
			{Pattern: "marcos", Canonical: "marcos"},
			{Pattern: "fede", Canonical: "fede"},
			{Pattern: "sam", Canonical: "sam"},
		},
	}
}

// NormalizationResult splits a batch into usable events and skipped ones.
type NormalizationResult struct {
	Events  []models.NormalizedEvent
	Skipped []models.MalformedEvent
}

// EventNormalizer converts provider events into the canonical local shape.
type EventNormalizer struct {
	loc   *time.Location
	vocab Vocabulary
}

// NewEventNormalizer builds a normalizer for the given display timezone.
func NewEventNormalizer(loc *time.Location, vocab Vocabulary) *EventNormalizer {
	if loc == nil {
		loc = time.UTC
	}
	folded := Vocabulary{
		Instruments: foldEntries(vocab.Instruments),
		Teachers:    foldEntries(vocab.Teachers),
	}
	return &EventNormalizer{loc: loc, vocab: folded}
}

// Location returns the timezone events are converted into.
func (n *EventNormalizer) Location() *time.Location {
	return n.loc
}

// Normalize converts one raw event. Failures are returned as an
// appErrors.ErrMalformedEvent wrapping a *models.MalformedEvent.
func (n *EventNormalizer) Normalize(raw models.RawEvent) (models.NormalizedEvent, error) {
	out := models.NormalizedEvent{
		Room:    strings.TrimSpace(raw.Room),
		EventID: raw.EventID,
		Title:   strings.TrimSpace(raw.Summary),
	}
	if out.Room == "" {
		return out, malformed(raw, "missing room")
	}
	if raw.Start.IsEmpty() {
		return out, malformed(raw, "missing start")
	}
	if raw.End.IsEmpty() {
		return out, malformed(raw, "missing end")
	}
	if raw.Start.IsDateOnly() != raw.End.IsDateOnly() {
		return out, malformed(raw, "start and end mix date-only and timestamp values")
	}

	var err error
	if raw.Start.IsDateOnly() {
		out.AllDay = true
		out.StartLocal, out.EndLocal, err = n.allDayBounds(raw.Start.Date, raw.End.Date)
	} else {
		out.StartLocal, out.EndLocal, err = n.timedBounds(raw.Start, raw.End)
	}
	if err != nil {
		return out, malformed(raw, err.Error())
	}
	out.DurationMinutes = int(out.EndLocal.Sub(out.StartLocal) / time.Minute)

	title := foldText(out.Title)
	out.Instrument = matchVocabulary(title, n.vocab.Instruments)
	out.Teacher = matchVocabulary(title, n.vocab.Teachers)
	out.StudentOrRaw = n.studentFromTitle(out.Title)

	return out, nil
}

// NormalizeBatch normalizes every event, collecting failures instead of aborting.
func (n *EventNormalizer) NormalizeBatch(raws []models.RawEvent) NormalizationResult {
	result := NormalizationResult{Events: make([]models.NormalizedEvent, 0, len(raws))}
	for _, raw := range raws {
		ev, err := n.Normalize(raw)
		if err != nil {
			var m *models.MalformedEvent
			if errors.As(err, &m) {
				result.Skipped = append(result.Skipped, *m)
			} else {
				result.Skipped = append(result.Skipped, models.MalformedEvent{Room: raw.Room, EventID: raw.EventID, Reason: err.Error()})
			}
			continue
		}
		result.Events = append(result.Events, ev)
	}
	return result
}

// CanonicalInstrument maps a requested instrument onto the vocabulary, or
// returns the folded input when nothing matches.
func (n *EventNormalizer) CanonicalInstrument(raw string) string {
	return canonicalize(raw, n.vocab.Instruments)
}

// CanonicalTeacher maps a requested teacher name onto the vocabulary. Unlike
// title parsing it never matches inside a longer word.
func (n *EventNormalizer) CanonicalTeacher(raw string) string {
	return canonicalize(raw, n.vocab.Teachers)
}

func (n *EventNormalizer) timedBounds(startRaw, endRaw models.RawTime) (time.Time, time.Time, error) {
	start, err := n.parseInstant(startRaw)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := n.parseInstant(endRaw)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, errors.New("end is before start")
	}
	// Zero-length entries still block the minute they sit on.
	if end.Equal(start) {
		end = start.Add(time.Minute)
	}
	return start, end, nil
}

// parseInstant accepts RFC3339 with offset or Z suffix. Values without an
// offset are read in the boundary's declared timezone, falling back to the
// normalizer's location.
func (n *EventNormalizer) parseInstant(raw models.RawTime) (time.Time, error) {
	value := strings.TrimSpace(raw.DateTime)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.In(n.loc).Truncate(time.Minute), nil
	}
	loc := n.loc
	if raw.TimeZone != "" {
		if declared, err := time.LoadLocation(raw.TimeZone); err == nil {
			loc = declared
		}
	}
	t, err := time.ParseInLocation("2006-01-02T15:04:05", value, loc)
	if err != nil {
		return time.Time{}, errors.New("invalid timestamp " + value)
	}
	return t.In(n.loc).Truncate(time.Minute), nil
}

// allDayBounds spans local midnight of the start date to local midnight of
// the (exclusive) end date, defaulting to a single day.
func (n *EventNormalizer) allDayBounds(startRaw, endRaw string) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation(dateLayout, strings.TrimSpace(startRaw), n.loc)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("invalid date " + startRaw)
	}
	end, err := time.ParseInLocation(dateLayout, strings.TrimSpace(endRaw), n.loc)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("invalid date " + endRaw)
	}
	if !end.After(start) {
		end = start.AddDate(0, 0, 1)
	}
	return start, end, nil
}

// studentFromTitle returns the first title fragment that is neither a known
// instrument nor a known teacher, or the raw title when none remains.
func (n *EventNormalizer) studentFromTitle(title string) string {
	parts := strings.FieldsFunc(title, func(r rune) bool {
		switch r {
		case '-', '–', '|', '/', '(', ')', ',', '·', ':':
			return true
		}
		return false
	})
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		folded := foldText(part)
		if isVocabularyWord(folded, n.vocab.Instruments) || isVocabularyWord(folded, n.vocab.Teachers) {
			continue
		}
		return part
	}
	return title
}

func malformed(raw models.RawEvent, reason string) error {
	detail := &models.MalformedEvent{
		Room:    raw.Room,
		EventID: raw.EventID,
		Title:   raw.Summary,
		Reason:  reason,
	}
	return appErrors.Wrap(detail, appErrors.ErrMalformedEvent.Code, appErrors.ErrMalformedEvent.Status, reason)
}

func matchVocabulary(folded string, entries []VocabularyEntry) string {
	if folded == "" {
		return ""
	}
	for _, entry := range entries {
		if strings.Contains(folded, entry.Pattern) {
			return entry.Canonical
		}
	}
	return ""
}

func isVocabularyWord(folded string, entries []VocabularyEntry) bool {
	for _, entry := range entries {
		if folded == entry.Pattern || folded == entry.Canonical {
			return true
		}
	}
	return false
}

// canonicalize resolves a requested name. An exact pattern or canonical
// match wins, then a whole word of the request ("profe fede"). Partial words
// never match, so "samanta" stays "samanta" instead of becoming "sam".
func canonicalize(raw string, entries []VocabularyEntry) string {
	folded := foldText(raw)
	if folded == "" {
		return ""
	}
	for _, entry := range entries {
		if folded == entry.Pattern || folded == entry.Canonical {
			return entry.Canonical
		}
	}
	words := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, entry := range entries {
		for _, word := range words {
			if word == entry.Pattern {
				return entry.Canonical
			}
		}
	}
	return folded
}

func foldEntries(entries []VocabularyEntry) []VocabularyEntry {
	out := make([]VocabularyEntry, 0, len(entries))
	for _, entry := range entries {
		pattern := foldText(entry.Pattern)
		if pattern == "" {
			continue
		}
		canonical := foldText(entry.Canonical)
		if canonical == "" {
			canonical = pattern
		}
		out = append(out, VocabularyEntry{Pattern: pattern, Canonical: canonical})
	}
	return out
}

// foldText lowercases and strips diacritics so "Batería" matches "bateria".
func foldText(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return s
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}
