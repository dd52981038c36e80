package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/noah-isme/ecm-agenda-api/internal/models"
	"github.com/noah-isme/ecm-agenda-api/pkg/config"
	appErrors "github.com/noah-isme/ecm-agenda-api/pkg/errors"
)

const (
	calendarReadOnlyScope = "https://www.googleapis.com/auth/calendar.readonly"
	calendarScope         = "https://www.googleapis.com/auth/calendar"
	maxEventPages         = 20
	pageSize              = 250
)

// GoogleCalendarRepository reads and writes room calendars through the
// Google Calendar v3 REST API. Each room maps to one calendar ID.
type GoogleCalendarRepository struct {
	client    *http.Client
	baseURL   string
	calendars map[string]string
	rooms     []string
	timezone  string
	logger    *zap.Logger
}

type googleEvent struct {
	ID      string         `json:"id"`
	Status  string         `json:"status"`
	Summary string         `json:"summary"`
	Start   models.RawTime `json:"start"`
	End     models.RawTime `json:"end"`
}

type googleEventList struct {
	Items         []googleEvent `json:"items"`
	NextPageToken string        `json:"nextPageToken"`
}

type googleError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewGoogleCalendarRepository authenticates with the service-account JSON at
// cfg.CredentialsFile. The write scope is requested only when writable is set.
func NewGoogleCalendarRepository(ctx context.Context, cfg config.CalendarConfig, writable bool, logger *zap.Logger) (*GoogleCalendarRepository, error) {
	data, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read google credentials %s: %w", cfg.CredentialsFile, err)
	}
	scope := calendarReadOnlyScope
	if writable {
		scope = calendarScope
	}
	creds, err := google.CredentialsFromJSON(ctx, data, scope)
	if err != nil {
		return nil, fmt.Errorf("parse google credentials: %w", err)
	}

	client := oauth2.NewClient(ctx, creds.TokenSource)
	client.Timeout = cfg.HTTPTimeout
	return NewGoogleCalendarRepositoryWithClient(client, cfg, logger), nil
}

// NewGoogleCalendarRepositoryWithClient uses a preconfigured HTTP client.
func NewGoogleCalendarRepositoryWithClient(client *http.Client, cfg config.CalendarConfig, logger *zap.Logger) *GoogleCalendarRepository {
	if client == nil {
		client = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GoogleCalendarRepository{
		client:    client,
		baseURL:   strings.TrimRight(cfg.APIBaseURL, "/"),
		calendars: cfg.RoomSourceMap(),
		rooms:     cfg.RoomNames(),
		timezone:  cfg.Timezone,
		logger:    logger,
	}
}

// Rooms returns the configured rooms in canonical order.
func (r *GoogleCalendarRepository) Rooms() []string {
	return append([]string(nil), r.rooms...)
}

// ListEvents returns the expanded, non-cancelled events of a room overlapping [from, to).
func (r *GoogleCalendarRepository) ListEvents(ctx context.Context, room string, from, to time.Time) ([]models.RawEvent, error) {
	calendarID, err := r.calendarID(room)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("timeMin", from.Format(time.RFC3339))
	params.Set("timeMax", to.Format(time.RFC3339))
	params.Set("singleEvents", "true")
	params.Set("orderBy", "startTime")
	params.Set("maxResults", fmt.Sprint(pageSize))

	events := make([]models.RawEvent, 0)
	for page := 0; page < maxEventPages; page++ {
		var list googleEventList
		if err := r.do(ctx, http.MethodGet, r.eventsURL(calendarID)+"?"+params.Encode(), nil, &list); err != nil {
			return nil, err
		}
		for _, item := range list.Items {
			if item.Status == "cancelled" {
				continue
			}
			events = append(events, models.RawEvent{
				Room:    room,
				EventID: item.ID,
				Summary: item.Summary,
				Start:   item.Start,
				End:     item.End,
			})
		}
		if list.NextPageToken == "" {
			return events, nil
		}
		params.Set("pageToken", list.NextPageToken)
	}

	r.logger.Warn("google calendar pagination truncated", zap.String("room", room), zap.Int("pages", maxEventPages))
	return events, nil
}

// CreateEvent inserts a timed event in the room calendar and returns its ID.
func (r *GoogleCalendarRepository) CreateEvent(ctx context.Context, room string, ev models.NewCalendarEvent) (string, error) {
	calendarID, err := r.calendarID(room)
	if err != nil {
		return "", err
	}
	payload := googleEvent{
		Summary: ev.Summary,
		Start:   models.RawTime{DateTime: ev.Start.Format(time.RFC3339), TimeZone: r.timezone},
		End:     models.RawTime{DateTime: ev.End.Format(time.RFC3339), TimeZone: r.timezone},
	}
	var created googleEvent
	if err := r.do(ctx, http.MethodPost, r.eventsURL(calendarID), payload, &created); err != nil {
		return "", err
	}
	r.logger.Info("google calendar event created", zap.String("room", room), zap.String("event_id", created.ID))
	return created.ID, nil
}

// CancelEvent deletes an event from the room calendar.
func (r *GoogleCalendarRepository) CancelEvent(ctx context.Context, room, eventID string) error {
	calendarID, err := r.calendarID(room)
	if err != nil {
		return err
	}
	if strings.TrimSpace(eventID) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "event id is required")
	}
	if err := r.do(ctx, http.MethodDelete, r.eventsURL(calendarID)+"/"+url.PathEscape(eventID), nil, nil); err != nil {
		return err
	}
	r.logger.Info("google calendar event cancelled", zap.String("room", room), zap.String("event_id", eventID))
	return nil
}

func (r *GoogleCalendarRepository) calendarID(room string) (string, error) {
	id, ok := r.calendars[room]
	if !ok {
		return "", appErrors.Clone(appErrors.ErrUnknownRoom, fmt.Sprintf("unknown room %q", room))
	}
	return id, nil
}

func (r *GoogleCalendarRepository) eventsURL(calendarID string) string {
	return r.baseURL + "/calendars/" + url.PathEscape(calendarID) + "/events"
}

func (r *GoogleCalendarRepository) do(ctx context.Context, method, target string, body, dest interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal google request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build google request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Error("google calendar request failed", zap.String("method", method), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, appErrors.ErrUpstream.Message)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to read calendar response")
	}

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return appErrors.Clone(appErrors.ErrNotFound, "calendar event not found")
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		message := fmt.Sprintf("google calendar returned %d", resp.StatusCode)
		var apiErr googleError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			message += ": " + apiErr.Error.Message
		}
		r.logger.Error("google calendar api error", zap.String("method", method), zap.Int("status", resp.StatusCode), zap.String("message", message))
		return appErrors.Clone(appErrors.ErrUpstream, message)
	}

	if dest == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to parse calendar response")
	}
	return nil
}
