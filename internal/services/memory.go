package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ytakahashi/team-task-tracker/internal/models"
)

// MemoryStore is an in-process Store used for local runs and tests.
// Subscription callbacks run on the goroutine that performed the write.
type MemoryStore struct {
	mu       sync.Mutex
	tasks    map[string]*models.Task
	users    map[string]*models.User
	allowed  map[string]*models.AllowedEmail
	channels map[string]*models.CalendarChannel

	nextID       int
	taskSubs     map[int]*taskSub
	taskWatchers map[int]*taskWatcher
	userSubs     map[int]*userSub
	allowedSubs  map[int]*allowedSub

	dispatch dispatcher
}

type taskSub struct {
	filter models.TaskFilter
	fn     func([]*models.Task)
	l      *listener
}

type taskWatcher struct {
	fn func(TaskChange)
	l  *listener
}

type userSub struct {
	uid string
	fn  func(*models.User)
	l   *listener
}

type allowedSub struct {
	fn func([]*models.AllowedEmail)
	l  *listener
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tasks:        make(map[string]*models.Task),
		users:        make(map[string]*models.User),
		allowed:      make(map[string]*models.AllowedEmail),
		channels:     make(map[string]*models.CalendarChannel),
		taskSubs:     make(map[int]*taskSub),
		taskWatchers: make(map[int]*taskWatcher),
		userSubs:     make(map[int]*userSub),
		allowedSubs:  make(map[int]*allowedSub),
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) Tasks() TaskRepository                 { return &memoryTasks{s} }
func (s *MemoryStore) Users() UserRepository                 { return &memoryUsers{s} }
func (s *MemoryStore) AllowedEmails() AllowedEmailRepository { return &memoryAllowedEmails{s} }
func (s *MemoryStore) Channels() ChannelRepository           { return &memoryChannels{s} }

// register adds a subscription under s.mu and returns its unsubscribe func.
func (s *MemoryStore) register(ctx context.Context, add func(id int, l *listener), remove func(id int)) (Unsubscribe, *listener) {
	ctx, cancel := context.WithCancel(ctx)
	l := newListener(cancel)
	id := s.nextID
	s.nextID++
	add(id, l)

	unsub := func() {
		s.mu.Lock()
		remove(id)
		s.mu.Unlock()
		l.unsubscribe()
	}
	go func() {
		<-ctx.Done()
		unsub()
	}()
	return unsub, l
}

func cloneTask(t *models.Task) *models.Task {
	out := *t
	out.AssigneeUID = copyPtr(t.AssigneeUID)
	out.AssigneeName = copyPtr(t.AssigneeName)
	out.Deadline = copyPtr(t.Deadline)
	out.ParentTaskID = copyPtr(t.ParentTaskID)
	out.CalendarEventID = copyPtr(t.CalendarEventID)
	out.CalendarEventUpdatedAt = copyPtr(t.CalendarEventUpdatedAt)
	return &out
}

func cloneUser(u *models.User) *models.User {
	out := *u
	out.PhotoURL = copyPtr(u.PhotoURL)
	out.CalendarTokens = copyPtr(u.CalendarTokens)
	return &out
}

// taskNotifications must be called with s.mu held.
func (s *MemoryStore) taskNotifications(before, after *models.Task) []func() {
	var fns []func()
	for _, sub := range s.taskSubs {
		sub := sub
		tasks := s.selectTasks(sub.filter)
		fns = append(fns, func() { sub.l.deliver(func() { sub.fn(tasks) }) })
	}
	for _, w := range s.taskWatchers {
		w := w
		change := TaskChange{}
		if before != nil {
			change.Before = cloneTask(before)
		}
		if after != nil {
			change.After = cloneTask(after)
		}
		fns = append(fns, func() { w.l.deliver(func() { w.fn(change) }) })
	}
	return fns
}

// selectTasks must be called with s.mu held.
func (s *MemoryStore) selectTasks(filter models.TaskFilter) []*models.Task {
	out := make([]*models.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if filter.Matches(t) {
			out = append(out, cloneTask(t))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

type memoryTasks struct{ s *MemoryStore }

func (r *memoryTasks) FindAll(_ context.Context, filter models.TaskFilter) ([]*models.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.selectTasks(filter), nil
}

func (r *memoryTasks) FindByID(_ context.Context, id string) (*models.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrTaskNotFound, id)
	}
	return cloneTask(t), nil
}

func (r *memoryTasks) write(id string, mutate func(prev *models.Task) (*models.Task, error)) error {
	r.s.mu.Lock()
	prev := r.s.tasks[id]
	next, err := mutate(prev)
	if err != nil {
		r.s.mu.Unlock()
		return err
	}
	if next == nil {
		delete(r.s.tasks, id)
	} else {
		r.s.tasks[id] = next
	}
	fns := r.s.taskNotifications(prev, next)
	r.s.mu.Unlock()

	r.s.dispatch.enqueue(fns...)
	return nil
}

func (r *memoryTasks) Save(_ context.Context, task *models.Task) error {
	return r.write(task.ID, func(*models.Task) (*models.Task, error) {
		return cloneTask(task), nil
	})
}

func (r *memoryTasks) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	_, ok := r.s.tasks[id]
	r.s.mu.Unlock()
	if !ok {
		return nil
	}
	return r.write(id, func(*models.Task) (*models.Task, error) { return nil, nil })
}

func (r *memoryTasks) UpdateDeadline(_ context.Context, id string, deadline, at time.Time) error {
	return r.write(id, func(prev *models.Task) (*models.Task, error) {
		if prev == nil {
			return nil, fmt.Errorf("%w: %s", models.ErrTaskNotFound, id)
		}
		return cloneTask(prev).WithDeadline(deadline, at), nil
	})
}

func (r *memoryTasks) SetCalendarEvent(_ context.Context, id, eventID string, at time.Time) error {
	return r.write(id, func(prev *models.Task) (*models.Task, error) {
		if prev == nil {
			return nil, fmt.Errorf("%w: %s", models.ErrTaskNotFound, id)
		}
		return cloneTask(prev).WithCalendarEvent(eventID, at), nil
	})
}

// SubscribeAll delivers the current result set immediately and again after
// every task write.
func (r *memoryTasks) SubscribeAll(ctx context.Context, filter models.TaskFilter, fn func([]*models.Task)) Unsubscribe {
	r.s.mu.Lock()
	unsub, l := r.s.register(ctx,
		func(id int, l *listener) { r.s.taskSubs[id] = &taskSub{filter: filter, fn: fn, l: l} },
		func(id int) { delete(r.s.taskSubs, id) })
	initial := r.s.selectTasks(filter)
	r.s.mu.Unlock()

	r.s.dispatch.enqueue(func() { l.deliver(func() { fn(initial) }) })
	return unsub
}

func (r *memoryTasks) WatchChanges(ctx context.Context, fn func(TaskChange)) Unsubscribe {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	unsub, _ := r.s.register(ctx,
		func(id int, l *listener) { r.s.taskWatchers[id] = &taskWatcher{fn: fn, l: l} },
		func(id int) { delete(r.s.taskWatchers, id) })
	return unsub
}

func (r *memoryTasks) GenerateID() string {
	return uuid.New().String()
}

type memoryUsers struct{ s *MemoryStore }

// userNotifications must be called with s.mu held.
func (s *MemoryStore) userNotifications(uid string) []func() {
	var user *models.User
	if u, ok := s.users[uid]; ok {
		user = cloneUser(u)
	}
	var fns []func()
	for _, sub := range s.userSubs {
		if sub.uid != uid {
			continue
		}
		sub := sub
		fns = append(fns, func() { sub.l.deliver(func() { sub.fn(user) }) })
	}
	return fns
}

func (r *memoryUsers) FindByID(_ context.Context, uid string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[uid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUserNotFound, uid)
	}
	return cloneUser(u), nil
}

func (r *memoryUsers) FindAll(_ context.Context) ([]*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		out = append(out, cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out, nil
}

func (r *memoryUsers) write(uid string, mutate func(prev *models.User) (*models.User, error)) error {
	r.s.mu.Lock()
	next, err := mutate(r.s.users[uid])
	if err != nil {
		r.s.mu.Unlock()
		return err
	}
	r.s.users[uid] = next
	fns := r.s.userNotifications(uid)
	r.s.mu.Unlock()

	r.s.dispatch.enqueue(fns...)
	return nil
}

func (r *memoryUsers) existing(uid string, change func(u *models.User) *models.User) error {
	return r.write(uid, func(prev *models.User) (*models.User, error) {
		if prev == nil {
			return nil, fmt.Errorf("%w: %s", models.ErrUserNotFound, uid)
		}
		return change(cloneUser(prev)), nil
	})
}

func (r *memoryUsers) Save(_ context.Context, user *models.User) error {
	return r.write(user.UID, func(*models.User) (*models.User, error) {
		return cloneUser(user), nil
	})
}

func (r *memoryUsers) UpdateLastLogin(_ context.Context, uid string, at time.Time) error {
	return r.existing(uid, func(u *models.User) *models.User { return u.WithLastLogin(at) })
}

func (r *memoryUsers) UpdateCalendarTokens(_ context.Context, uid string, tokens *models.CalendarTokens) error {
	return r.existing(uid, func(u *models.User) *models.User {
		if tokens == nil {
			return u.DisconnectCalendar()
		}
		return u.ConnectCalendar(*tokens)
	})
}

func (r *memoryUsers) SetAdmin(_ context.Context, uid string, isAdmin bool) error {
	return r.existing(uid, func(u *models.User) *models.User {
		u.IsAdmin = isAdmin
		return u
	})
}

func (r *memoryUsers) Delete(_ context.Context, uid string) error {
	r.s.mu.Lock()
	if _, ok := r.s.users[uid]; !ok {
		r.s.mu.Unlock()
		return nil
	}
	delete(r.s.users, uid)
	fns := r.s.userNotifications(uid)
	r.s.mu.Unlock()

	r.s.dispatch.enqueue(fns...)
	return nil
}

func (r *memoryUsers) SubscribeByID(ctx context.Context, uid string, fn func(*models.User)) Unsubscribe {
	r.s.mu.Lock()
	unsub, l := r.s.register(ctx,
		func(id int, l *listener) { r.s.userSubs[id] = &userSub{uid: uid, fn: fn, l: l} },
		func(id int) { delete(r.s.userSubs, id) })
	var initial *models.User
	if u, ok := r.s.users[uid]; ok {
		initial = cloneUser(u)
	}
	r.s.mu.Unlock()

	r.s.dispatch.enqueue(func() { l.deliver(func() { fn(initial) }) })
	return unsub
}

type memoryAllowedEmails struct{ s *MemoryStore }

// selectAllowed must be called with s.mu held.
func (s *MemoryStore) selectAllowed() []*models.AllowedEmail {
	out := make([]*models.AllowedEmail, 0, len(s.allowed))
	for _, a := range s.allowed {
		v := *a
		out = append(out, &v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out
}

func (r *memoryAllowedEmails) notify() {
	r.s.mu.Lock()
	var fns []func()
	for _, sub := range r.s.allowedSubs {
		sub := sub
		emails := r.s.selectAllowed()
		fns = append(fns, func() { sub.l.deliver(func() { sub.fn(emails) }) })
	}
	r.s.mu.Unlock()
	r.s.dispatch.enqueue(fns...)
}

func (r *memoryAllowedEmails) FindAll(_ context.Context) ([]*models.AllowedEmail, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.selectAllowed(), nil
}

func (r *memoryAllowedEmails) Exists(_ context.Context, email string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.allowed[models.NormalizeEmail(email)]
	return ok, nil
}

func (r *memoryAllowedEmails) Add(_ context.Context, allowed *models.AllowedEmail) error {
	v := *allowed
	v.Email = models.NormalizeEmail(v.Email)
	r.s.mu.Lock()
	r.s.allowed[v.Email] = &v
	r.s.mu.Unlock()
	r.notify()
	return nil
}

func (r *memoryAllowedEmails) Remove(_ context.Context, email string) error {
	r.s.mu.Lock()
	delete(r.s.allowed, models.NormalizeEmail(email))
	r.s.mu.Unlock()
	r.notify()
	return nil
}

func (r *memoryAllowedEmails) SubscribeAll(ctx context.Context, fn func([]*models.AllowedEmail)) Unsubscribe {
	r.s.mu.Lock()
	unsub, l := r.s.register(ctx,
		func(id int, l *listener) { r.s.allowedSubs[id] = &allowedSub{fn: fn, l: l} },
		func(id int) { delete(r.s.allowedSubs, id) })
	initial := r.s.selectAllowed()
	r.s.mu.Unlock()

	r.s.dispatch.enqueue(func() { l.deliver(func() { fn(initial) }) })
	return unsub
}

type memoryChannels struct{ s *MemoryStore }

func (r *memoryChannels) FindByUID(_ context.Context, uid string) (*models.CalendarChannel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ch, ok := r.s.channels[uid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrChannelNotFound, uid)
	}
	v := *ch
	return &v, nil
}

func (r *memoryChannels) FindAll(_ context.Context) ([]*models.CalendarChannel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.CalendarChannel, 0, len(r.s.channels))
	for _, ch := range r.s.channels {
		v := *ch
		out = append(out, &v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out, nil
}

func (r *memoryChannels) Save(_ context.Context, ch *models.CalendarChannel) error {
	v := *ch
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.channels[v.UID] = &v
	return nil
}

func (r *memoryChannels) Delete(_ context.Context, uid string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.channels, uid)
	return nil
}
