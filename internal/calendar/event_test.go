package calendar

import (
	"strings"
	"testing"
	"time"

	"github.com/ytakahashi/team-task-tracker/internal/models"
	gcal "google.golang.org/api/calendar/v3"
)

func TestEventForTask(t *testing.T) {
	deadline := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	task := &models.Task{ID: "t1", Title: "Ship", Deadline: &deadline}

	ev, ok := EventForTask(task)
	if !ok {
		t.Fatal("expected an event for a task with a deadline")
	}
	if ev.Summary != "Ship" {
		t.Errorf("summary = %q", ev.Summary)
	}
	if ev.Description != "" {
		t.Errorf("empty description should be omitted, got %q", ev.Description)
	}
	if ev.Start.DateTime != "2025-03-10T09:00:00Z" || ev.End.DateTime != "2025-03-10T10:00:00Z" {
		t.Errorf("start/end = %s/%s", ev.Start.DateTime, ev.End.DateTime)
	}
	if got := ev.ExtendedProperties.Private[TaskIDProperty]; got != "t1" {
		t.Errorf("taskId property = %q", got)
	}

	if _, ok := EventForTask(&models.Task{ID: "t2", Title: "No deadline"}); ok {
		t.Error("expected no event without a deadline")
	}
}

func TestEventFromAPI(t *testing.T) {
	ev, err := EventFromAPI(&gcal.Event{
		Id:    "e1",
		Start: &gcal.EventDateTime{DateTime: "2025-03-10T09:00:00+09:00"},
		End:   &gcal.EventDateTime{DateTime: "2025-03-10T10:00:00+09:00"},
		ExtendedProperties: &gcal.EventExtendedProperties{
			Private: map[string]string{TaskIDProperty: "t1"},
		},
	})
	if err != nil {
		t.Fatalf("EventFromAPI: %v", err)
	}
	if ev.Title != untitled {
		t.Errorf("title = %q, want placeholder", ev.Title)
	}
	if ev.TaskID != "t1" || ev.AllDay {
		t.Errorf("unexpected event %+v", ev)
	}
	if !ev.Start.Equal(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %v", ev.Start)
	}

	allDay, err := EventFromAPI(&gcal.Event{
		Id:      "e2",
		Summary: "Holiday",
		Start:   &gcal.EventDateTime{Date: "2025-03-11"},
		End:     &gcal.EventDateTime{Date: "2025-03-12"},
	})
	if err != nil {
		t.Fatalf("EventFromAPI: %v", err)
	}
	if !allDay.AllDay || allDay.TaskID != "" {
		t.Errorf("unexpected all-day event %+v", allDay)
	}

	if _, err := EventFromAPI(&gcal.Event{Id: "bad", Start: &gcal.EventDateTime{DateTime: "soon"}}); err == nil {
		t.Error("expected a parse error")
	}
}

func TestChannelIDs(t *testing.T) {
	id := NewChannelID("u1")
	if got := UIDFromChannelID(id); got != "u1" {
		t.Errorf("UIDFromChannelID(%q) = %q", id, got)
	}
	if got := UIDFromChannelID(":abc"); got != "" {
		t.Errorf("empty uid expected, got %q", got)
	}
	if got := UIDFromChannelID("plain"); got != "plain" {
		t.Errorf("got %q", got)
	}
}

func TestAuthCodeURLRequestsOfflineAccess(t *testing.T) {
	p := NewGoogleProvider("client", "secret", "http://localhost/cb")
	u := p.AuthCodeURL("u1")
	for _, want := range []string{"access_type=offline", "prompt=consent", "state=u1", "client_id=client"} {
		if !strings.Contains(u, want) {
			t.Errorf("auth url %q missing %q", u, want)
		}
	}
}

func TestEventsFromItemsSkipsUnparsable(t *testing.T) {
	events := eventsFromItems([]*gcal.Event{
		{
			Id:    "good",
			Start: &gcal.EventDateTime{DateTime: "2025-03-10T09:00:00Z"},
			End:   &gcal.EventDateTime{DateTime: "2025-03-10T10:00:00Z"},
		},
		{
			Id:    "bad",
			Start: &gcal.EventDateTime{DateTime: "not a time"},
			End:   &gcal.EventDateTime{DateTime: "2025-03-10T10:00:00Z"},
		},
	})
	if len(events) != 1 || events[0].ID != "good" {
		t.Errorf("expected only the parsable event, got %+v", events)
	}
}
