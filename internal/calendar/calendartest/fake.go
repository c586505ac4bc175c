// Package calendartest provides an in-memory calendar.Provider for tests.
package calendartest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ytakahashi/team-task-tracker/internal/calendar"
	"github.com/ytakahashi/team-task-tracker/internal/models"
)

// Fake keeps events in memory. Any Func field that is set replaces the
// default behavior of the matching method.
type Fake struct {
	ExchangeFunc          func(ctx context.Context, code string) (*models.CalendarTokens, error)
	RefreshFunc           func(ctx context.Context, refreshToken string) (*models.CalendarTokens, error)
	UpsertTaskEventFunc   func(ctx context.Context, tokens models.CalendarTokens, task *models.Task) (string, error)
	DeleteEventFunc       func(ctx context.Context, tokens models.CalendarTokens, eventID string) error
	ListUpdatedEventsFunc func(ctx context.Context, tokens models.CalendarTokens, since time.Time) ([]models.CalendarEvent, error)
	WatchFunc             func(ctx context.Context, tokens models.CalendarTokens, channelID, address string) (*models.CalendarChannel, error)

	mu      sync.Mutex
	events  map[string]models.CalendarEvent
	nextID  int
	calls   []string
	stopped []string
}

var _ calendar.Provider = (*Fake)(nil)

func NewFake() *Fake {
	return &Fake{events: make(map[string]models.CalendarEvent)}
}

// Calls returns the names of the methods invoked so far, in order.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Event returns the stored event with id.
func (f *Fake) Event(id string) (models.CalendarEvent, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.events[id]
	return ev, ok
}

// PutEvent stores ev as if it had been edited on the provider side.
func (f *Fake) PutEvent(ev models.CalendarEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[ev.ID] = ev
}

// StoppedChannels returns the ids passed to StopChannel.
func (f *Fake) StoppedChannels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.stopped...)
}

func (f *Fake) record(name string) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
}

func (f *Fake) AuthCodeURL(state string) string {
	return "https://accounts.example.test/auth?state=" + state
}

func (f *Fake) Exchange(ctx context.Context, code string) (*models.CalendarTokens, error) {
	f.record("Exchange")
	if f.ExchangeFunc != nil {
		return f.ExchangeFunc(ctx, code)
	}
	return &models.CalendarTokens{
		AccessToken:  "access-" + code,
		RefreshToken: "refresh-" + code,
		ExpiresAt:    time.Now().Add(time.Hour),
	}, nil
}

func (f *Fake) Refresh(ctx context.Context, refreshToken string) (*models.CalendarTokens, error) {
	f.record("Refresh")
	if f.RefreshFunc != nil {
		return f.RefreshFunc(ctx, refreshToken)
	}
	return &models.CalendarTokens{
		AccessToken:  "refreshed",
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().Add(time.Hour),
	}, nil
}

func (f *Fake) UpsertTaskEvent(ctx context.Context, tokens models.CalendarTokens, task *models.Task) (string, error) {
	f.record("UpsertTaskEvent")
	if f.UpsertTaskEventFunc != nil {
		return f.UpsertTaskEventFunc(ctx, tokens, task)
	}
	ev, ok := models.EventFromTask(task)
	if !ok {
		return "", nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if task.CalendarEventID != nil {
		if _, exists := f.events[*task.CalendarEventID]; !exists {
			return "", fmt.Errorf("event %s not found", *task.CalendarEventID)
		}
		ev.ID = *task.CalendarEventID
	} else {
		f.nextID++
		ev.ID = fmt.Sprintf("evt%d", f.nextID)
	}
	f.events[ev.ID] = ev
	return ev.ID, nil
}

func (f *Fake) DeleteEvent(ctx context.Context, tokens models.CalendarTokens, eventID string) error {
	f.record("DeleteEvent")
	if f.DeleteEventFunc != nil {
		return f.DeleteEventFunc(ctx, tokens, eventID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.events, eventID)
	return nil
}

func (f *Fake) ListEvents(ctx context.Context, tokens models.CalendarTokens, timeMin, timeMax time.Time) ([]models.CalendarEvent, error) {
	f.record("ListEvents")
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.CalendarEvent
	for _, ev := range f.events {
		if ev.End.After(timeMin) && ev.Start.Before(timeMax) {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (f *Fake) ListUpdatedEvents(ctx context.Context, tokens models.CalendarTokens, since time.Time) ([]models.CalendarEvent, error) {
	f.record("ListUpdatedEvents")
	if f.ListUpdatedEventsFunc != nil {
		return f.ListUpdatedEventsFunc(ctx, tokens, since)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.CalendarEvent, 0, len(f.events))
	for _, ev := range f.events {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *Fake) Watch(ctx context.Context, tokens models.CalendarTokens, channelID, address string) (*models.CalendarChannel, error) {
	f.record("Watch")
	if f.WatchFunc != nil {
		return f.WatchFunc(ctx, tokens, channelID, address)
	}
	return &models.CalendarChannel{
		UID:        calendar.UIDFromChannelID(channelID),
		ChannelID:  channelID,
		ResourceID: "res-" + channelID,
		ExpiresAt:  time.Now().Add(7 * 24 * time.Hour),
	}, nil
}

func (f *Fake) StopChannel(ctx context.Context, tokens models.CalendarTokens, ch models.CalendarChannel) error {
	f.record("StopChannel")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, ch.ChannelID)
	return nil
}
