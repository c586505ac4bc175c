package triggers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ytakahashi/team-task-tracker/internal/calendar/calendartest"
	"github.com/ytakahashi/team-task-tracker/internal/models"
	"github.com/ytakahashi/team-task-tracker/internal/services"
	"github.com/ytakahashi/team-task-tracker/internal/usecases"
)

var fixedNow = time.Date(2025, 1, 5, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func connectedStore(t *testing.T) *services.MemoryStore {
	t.Helper()
	ctx := context.Background()
	store := services.NewMemoryStore()
	if err := store.Users().Save(ctx, models.NewUser("u1", "a@example.com", "A", nil, fixedNow)); err != nil {
		t.Fatal(err)
	}
	store.Users().UpdateCalendarTokens(ctx, "u1", &models.CalendarTokens{AccessToken: "at", RefreshToken: "rt", ExpiresAt: fixedNow})
	return store
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Notify(_ context.Context, msg string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
	return nil
}

func TestUserGate(t *testing.T) {
	ctx := context.Background()
	store := services.NewMemoryStore()
	store.AllowedEmails().Add(ctx, models.NewAllowedEmail("member@example.com", "root", fixedNow))
	gate := NewUserGate(store.Users(), store.AllowedEmails())

	err := gate.OnUserCreated(ctx, usecases.Identity{UID: "u2", Email: "intruder@example.com"})
	if !errors.Is(err, models.ErrNotAllowed) {
		t.Fatalf("expected ErrNotAllowed, got %v", err)
	}
	if _, err := store.Users().FindByID(ctx, "u2"); !errors.Is(err, models.ErrUserNotFound) {
		t.Errorf("rejected identity must not get a user record, got %v", err)
	}

	if err := gate.OnUserCreated(ctx, usecases.Identity{UID: "u1", Email: "Member@example.com", DisplayName: "M"}); err != nil {
		t.Fatalf("OnUserCreated: %v", err)
	}
	user, err := store.Users().FindByID(ctx, "u1")
	if err != nil {
		t.Fatalf("user not created: %v", err)
	}
	if user.IsAdmin || user.CalendarConnected {
		t.Errorf("unexpected defaults %+v", user)
	}
}

func TestDeadlineTriggerNoOps(t *testing.T) {
	ctx := context.Background()
	store := connectedStore(t)
	fake := calendartest.NewFake()
	trigger := NewDeadlineTrigger(store.Tasks(), store.Users(), fake)

	d1 := fixedNow.Add(24 * time.Hour)
	base := &models.Task{ID: "t1", Title: "Write spec", Status: models.StatusRemaining, Deadline: &d1}
	assigned := *base
	assigned.AssigneeUID, assigned.AssigneeName = strPtr("u1"), strPtr("A")
	sameDeadline := assigned
	sameDeadline.Title = "renamed"
	sameDeadline.Deadline = timePtr(d1)
	noDeadline := assigned
	noDeadline.Deadline = nil

	cases := []struct {
		name   string
		change services.TaskChange
	}{
		{"deleted", services.TaskChange{Before: &assigned}},
		{"no assignee", services.TaskChange{After: base}},
		{"deadline unchanged", services.TaskChange{Before: &assigned, After: &sameDeadline}},
		{"deadline cleared", services.TaskChange{Before: &assigned, After: &noDeadline}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			trigger.HandleChange(ctx, tc.change)
		})
	}
	if calls := fake.Calls(); len(calls) != 0 {
		t.Errorf("expected no provider calls, got %v", calls)
	}
}

func TestDeadlineTriggerInsertsAndRecordsEvent(t *testing.T) {
	ctx := context.Background()
	store := connectedStore(t)
	fake := calendartest.NewFake()
	trigger := NewDeadlineTrigger(store.Tasks(), store.Users(), fake)

	d := fixedNow.Add(24 * time.Hour)
	task := &models.Task{ID: "t1", Title: "x", Status: models.StatusRemaining, Deadline: &d, AssigneeUID: strPtr("u1"), AssigneeName: strPtr("A")}
	store.Tasks().Save(ctx, task)

	trigger.HandleChange(ctx, services.TaskChange{After: task})

	got, _ := store.Tasks().FindByID(ctx, "t1")
	if got.CalendarEventID == nil {
		t.Fatal("event id should be persisted for a newly created event")
	}
	calls := fake.Calls()
	if len(calls) != 2 || calls[0] != "Refresh" || calls[1] != "UpsertTaskEvent" {
		t.Errorf("unexpected calls %v", calls)
	}
}

func TestDeadlineTriggerSwallowsRefreshFailure(t *testing.T) {
	ctx := context.Background()
	store := connectedStore(t)
	fake := calendartest.NewFake()
	fake.RefreshFunc = func(context.Context, string) (*models.CalendarTokens, error) {
		return nil, errors.New("invalid_grant")
	}
	trigger := NewDeadlineTrigger(store.Tasks(), store.Users(), fake)

	d := fixedNow.Add(time.Hour)
	task := &models.Task{ID: "t1", Title: "x", Status: models.StatusRemaining, Deadline: &d, AssigneeUID: strPtr("u1"), AssigneeName: strPtr("A")}
	store.Tasks().Save(ctx, task)
	trigger.HandleChange(ctx, services.TaskChange{After: task})

	got, _ := store.Tasks().FindByID(ctx, "t1")
	if got.CalendarEventID != nil {
		t.Error("calendar fields must stay unchanged")
	}
}

func TestDeadlineTriggerDrivenByWatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := connectedStore(t)
	fake := calendartest.NewFake()
	trigger := NewDeadlineTrigger(store.Tasks(), store.Users(), fake)
	stop := trigger.Start(ctx)
	defer stop()

	d := fixedNow.Add(time.Hour)
	store.Tasks().Save(ctx, &models.Task{ID: "t1", Title: "x", Status: models.StatusRemaining, Deadline: &d, AssigneeUID: strPtr("u1"), AssigneeName: strPtr("A")})

	got, _ := store.Tasks().FindByID(ctx, "t1")
	if got.CalendarEventID == nil {
		t.Fatal("expected the trigger to link an event")
	}
	if upserts := countCalls(fake.Calls(), "UpsertTaskEvent"); upserts != 1 {
		t.Errorf("recording the event id must not re-trigger, got %d upserts", upserts)
	}
}

func countCalls(calls []string, name string) int {
	n := 0
	for _, c := range calls {
		if c == name {
			n++
		}
	}
	return n
}

func TestWebhookHandshakeAndBadChannel(t *testing.T) {
	ctx := context.Background()
	store := connectedStore(t)
	fake := calendartest.NewFake()
	p := NewWebhookProcessor(store.Tasks(), store.Users(), fake, nil)

	if err := p.Process(ctx, "u1:abc", ResourceStateSync); err != nil {
		t.Errorf("handshake: %v", err)
	}
	if err := p.Process(ctx, ":abc", "exists"); !errors.Is(err, ErrInvalidChannel) {
		t.Errorf("expected ErrInvalidChannel, got %v", err)
	}
	if err := p.Process(ctx, "ghost:abc", "exists"); err != nil {
		t.Errorf("unknown users are accepted without work, got %v", err)
	}
	if calls := fake.Calls(); len(calls) != 0 {
		t.Errorf("unexpected provider calls %v", calls)
	}
}

func TestWebhookAppliesEventStart(t *testing.T) {
	ctx := context.Background()
	store := connectedStore(t)
	fake := calendartest.NewFake()
	notifier := &recordingNotifier{}
	p := NewWebhookProcessor(store.Tasks(), store.Users(), fake, notifier)
	p.now = func() time.Time { return fixedNow }

	old := fixedNow.Add(24 * time.Hour)
	moved := fixedNow.Add(48 * time.Hour)
	store.Tasks().Save(ctx, &models.Task{ID: "t1", Title: "Write spec", Status: models.StatusRemaining, Deadline: &old, CreatedAt: fixedNow.Add(-time.Hour), UpdatedAt: fixedNow.Add(-time.Hour)})

	var since time.Time
	fake.ListUpdatedEventsFunc = func(_ context.Context, _ models.CalendarTokens, s time.Time) ([]models.CalendarEvent, error) {
		since = s
		return []models.CalendarEvent{
			{ID: "e1", TaskID: "t1", Start: moved, End: moved.Add(time.Hour)},
			{ID: "e2", Start: moved},
			{ID: "e3", TaskID: "t1", Start: fixedNow, AllDay: true},
			{ID: "e4", TaskID: "gone", Start: moved},
		}, nil
	}

	if err := p.Process(ctx, "u1:chan", "exists"); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !since.Equal(fixedNow.Add(-WebhookLookback)) {
		t.Errorf("lookback = %v", since)
	}
	got, _ := store.Tasks().FindByID(ctx, "t1")
	if !got.Deadline.Equal(moved) || !got.UpdatedAt.Equal(fixedNow) {
		t.Errorf("unexpected task %+v", got)
	}
	if len(notifier.messages) != 1 {
		t.Errorf("expected one notification, got %v", notifier.messages)
	}

	// Reprocessing the same notification is idempotent and quiet.
	if err := p.Process(ctx, "u1:chan", "exists"); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(notifier.messages) != 1 {
		t.Errorf("unchanged deadline must not notify, got %v", notifier.messages)
	}
}

func TestWebhookRefreshFailure(t *testing.T) {
	store := connectedStore(t)
	fake := calendartest.NewFake()
	fake.RefreshFunc = func(context.Context, string) (*models.CalendarTokens, error) {
		return nil, errors.New("invalid_grant")
	}
	p := NewWebhookProcessor(store.Tasks(), store.Users(), fake, nil)
	if err := p.Process(context.Background(), "u1:chan", "exists"); err == nil {
		t.Fatal("expected an error")
	}
}

func TestLastWriteWins(t *testing.T) {
	ctx := context.Background()
	store := connectedStore(t)
	fake := calendartest.NewFake()
	p := NewWebhookProcessor(store.Tasks(), store.Users(), fake, nil)
	p.now = func() time.Time { return fixedNow }
	tasks := usecases.NewTaskService(store.Tasks(), func() time.Time { return fixedNow })

	created, _ := tasks.Create(ctx, models.CreateTaskInput{Title: "race"}, "u1")
	manual := fixedNow.Add(72 * time.Hour)
	fromCalendar := fixedNow.Add(96 * time.Hour)
	fake.ListUpdatedEventsFunc = func(context.Context, models.CalendarTokens, time.Time) ([]models.CalendarEvent, error) {
		return []models.CalendarEvent{{ID: "e1", TaskID: created.ID, Start: fromCalendar}}, nil
	}

	tasks.Update(ctx, created.ID, models.TaskPatch{Deadline: models.Some(manual)})
	p.Process(ctx, "u1:chan", "exists")
	got, _ := store.Tasks().FindByID(ctx, created.ID)
	if !got.Deadline.Equal(fromCalendar) {
		t.Errorf("webhook wrote last, deadline = %v", got.Deadline)
	}

	tasks.Update(ctx, created.ID, models.TaskPatch{Deadline: models.Some(manual)})
	got, _ = store.Tasks().FindByID(ctx, created.ID)
	if !got.Deadline.Equal(manual) {
		t.Errorf("manual edit wrote last, deadline = %v", got.Deadline)
	}
}

type stubRegistrar struct {
	uids []string
}

func (s *stubRegistrar) RegisterWatch(_ context.Context, uid string) (*models.CalendarChannel, error) {
	s.uids = append(s.uids, uid)
	return &models.CalendarChannel{UID: uid}, nil
}

func TestChannelRenewer(t *testing.T) {
	ctx := context.Background()
	store := connectedStore(t)
	store.Users().Save(ctx, models.NewUser("u2", "b@example.com", "B", nil, fixedNow))
	store.Channels().Save(ctx, &models.CalendarChannel{UID: "u1", ChannelID: "u1:a", ExpiresAt: fixedNow.Add(2 * time.Hour)})
	store.Channels().Save(ctx, &models.CalendarChannel{UID: "u2", ChannelID: "u2:a", ExpiresAt: fixedNow.Add(2 * time.Hour)})
	store.Channels().Save(ctx, &models.CalendarChannel{UID: "ghost", ChannelID: "ghost:a", ExpiresAt: fixedNow})

	reg := &stubRegistrar{}
	r := NewChannelRenewer(store.Channels(), store.Users(), reg)
	r.now = func() time.Time { return fixedNow }

	res, err := r.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Renewed != 1 || res.Dropped != 2 || res.Failed != 0 {
		t.Errorf("unexpected result %+v", res)
	}
	if len(reg.uids) != 1 || reg.uids[0] != "u1" {
		t.Errorf("renewed %v", reg.uids)
	}

	store.Channels().Save(ctx, &models.CalendarChannel{UID: "u1", ChannelID: "u1:b", ExpiresAt: fixedNow.Add(7 * 24 * time.Hour)})
	res, _ = r.Run(ctx)
	if res.Renewed != 0 {
		t.Errorf("fresh channels are left alone, got %+v", res)
	}
}
