package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ecm-agenda-api/internal/models"
	appErrors "github.com/noah-isme/ecm-agenda-api/pkg/errors"
	"github.com/noah-isme/ecm-agenda-api/pkg/jobs"
)

type providerCall struct {
	room     string
	from, to time.Time
}

type fakeProvider struct {
	mu     sync.Mutex
	events map[string][]models.RawEvent
	errs   map[string]error
	calls  []providerCall
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{events: map[string][]models.RawEvent{}, errs: map[string]error{}}
}

func (p *fakeProvider) add(room string, events ...models.RawEvent) {
	p.events[room] = append(p.events[room], events...)
}

func (p *fakeProvider) ListEvents(ctx context.Context, room string, from, to time.Time) ([]models.RawEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, providerCall{room: room, from: from, to: to})
	if err := p.errs[room]; err != nil {
		return nil, err
	}
	return append([]models.RawEvent(nil), p.events[room]...), nil
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func (p *fakeProvider) calledRooms() map[string]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := map[string]int{}
	for _, c := range p.calls {
		out[c.room]++
	}
	return out
}

func timed(id, summary, start, end string) models.RawEvent {
	return models.RawEvent{
		EventID: id,
		Summary: summary,
		Start:   models.RawTime{DateTime: start},
		End:     models.RawTime{DateTime: end},
	}
}

func allDay(id, summary, start, end string) models.RawEvent {
	return models.RawEvent{
		EventID: id,
		Summary: summary,
		Start:   models.RawTime{Date: start},
		End:     models.RawTime{Date: end},
	}
}

func newTestPolicy(t *testing.T) *RoomPolicy {
	t.Helper()
	policy, err := DefaultRoomPolicy(testRooms)
	require.NoError(t, err)
	return policy
}

type fakeCacheRepo struct {
	mu       sync.Mutex
	data     map[string][]byte
	getErr   error
	deleted  []string
	disabled bool
}

func newFakeCacheRepo() *fakeCacheRepo {
	return &fakeCacheRepo{data: map[string][]byte{}}
}

func (r *fakeCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return r.getErr
	}
	raw, ok := r.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (r *fakeCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[key] = raw
	return nil
}

func (r *fakeCacheRepo) Enabled() bool {
	return !r.disabled
}

func (r *fakeCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range r.data {
		if strings.HasPrefix(key, prefix) {
			delete(r.data, key)
		}
	}
	return nil
}

type fakeWriter struct {
	created   []models.NewCalendarEvent
	rooms     []string
	cancelled []string
	err       error
}

func (w *fakeWriter) CreateEvent(ctx context.Context, room string, event models.NewCalendarEvent) (string, error) {
	if w.err != nil {
		return "", w.err
	}
	w.rooms = append(w.rooms, room)
	w.created = append(w.created, event)
	return "evt-new", nil
}

func (w *fakeWriter) CancelEvent(ctx context.Context, room, eventID string) error {
	if w.err != nil {
		return w.err
	}
	w.cancelled = append(w.cancelled, room+"/"+eventID)
	return nil
}

type fakeQueue struct {
	jobs []jobs.Job
}

func (q *fakeQueue) Enqueue(ctx context.Context, job jobs.Job) error {
	q.jobs = append(q.jobs, job)
	return nil
}

type fakeInvalidator struct {
	rooms []string
}

func (i *fakeInvalidator) Invalidate(ctx context.Context, room string) error {
	i.rooms = append(i.rooms, room)
	return nil
}
