package models

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusRemaining  Status = "remaining"
	StatusInProgress Status = "in_progress"
	StatusBlocked    Status = "blocked"
	StatusDone       Status = "done"
)

// AllStatuses lists the statuses in board column order.
var AllStatuses = []Status{StatusRemaining, StatusInProgress, StatusBlocked, StatusDone}

var statusLabels = map[Status]string{
	StatusRemaining:  "Remaining",
	StatusInProgress: "In Progress",
	StatusBlocked:    "Blocked",
	StatusDone:       "Done",
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Label returns the human readable name of the status.
func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// Task represents a unit of work tracked by the team
type Task struct {
	ID                     string     `json:"id"`
	Title                  string     `json:"title"`
	Description            string     `json:"description"`
	Status                 Status     `json:"status"`
	AssigneeUID            *string    `json:"assigneeUid"`
	AssigneeName           *string    `json:"assigneeName"`
	Deadline               *time.Time `json:"deadline"`
	ParentTaskID           *string    `json:"parentTaskId"`
	CalendarEventID        *string    `json:"calendarEventId"`
	CalendarEventUpdatedAt *time.Time `json:"calendarEventUpdatedAt"`
	CreatedBy              string     `json:"createdBy"`
	CreatedAt              time.Time  `json:"createdAt"`
	UpdatedAt              time.Time  `json:"updatedAt"`
}

// CreateTaskInput carries the user supplied fields of a new task.
type CreateTaskInput struct {
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Status       Status     `json:"status,omitempty"`
	AssigneeUID  *string    `json:"assigneeUid,omitempty"`
	AssigneeName *string    `json:"assigneeName,omitempty"`
	Deadline     *time.Time `json:"deadline,omitempty"`
	ParentTaskID *string    `json:"parentTaskId,omitempty"`
}

// TaskPatch is a field level update. Unset fields are left untouched; a set
// field holding null clears the value.
type TaskPatch struct {
	Title        Nullable[string]    `json:"title"`
	Description  Nullable[string]    `json:"description"`
	Status       Nullable[Status]    `json:"status"`
	AssigneeUID  Nullable[string]    `json:"assigneeUid"`
	AssigneeName Nullable[string]    `json:"assigneeName"`
	Deadline     Nullable[time.Time] `json:"deadline"`
	ParentTaskID Nullable[string]    `json:"parentTaskId"`
}

// TaskFilter narrows a task listing. Set fields are combined with AND.
type TaskFilter struct {
	Status      Status
	AssigneeUID string
}

// Matches reports whether t satisfies every set predicate of f.
func (f TaskFilter) Matches(t *Task) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.AssigneeUID != "" && (t.AssigneeUID == nil || *t.AssigneeUID != f.AssigneeUID) {
		return false
	}
	return true
}

// NewTask builds a task from input. Status defaults to remaining and both
// timestamps are set to now.
func NewTask(input CreateTaskInput, createdBy, id string, now time.Time) *Task {
	status := input.Status
	if status == "" {
		status = StatusRemaining
	}
	return &Task{
		ID:           id,
		Title:        input.Title,
		Description:  input.Description,
		Status:       status,
		AssigneeUID:  input.AssigneeUID,
		AssigneeName: input.AssigneeName,
		Deadline:     input.Deadline,
		ParentTaskID: input.ParentTaskID,
		CreatedBy:    createdBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// ApplyPatch returns a copy of t with patch applied. UpdatedAt is refreshed
// and never moves backwards.
func (t *Task) ApplyPatch(patch TaskPatch, now time.Time) *Task {
	out := *t
	if patch.Title.Set && patch.Title.Value != nil {
		out.Title = *patch.Title.Value
	}
	if patch.Description.Set {
		out.Description = patch.Description.Or("")
	}
	if patch.Status.Set && patch.Status.Value != nil {
		out.Status = *patch.Status.Value
	}
	if patch.AssigneeUID.Set {
		out.AssigneeUID = patch.AssigneeUID.Value
	}
	if patch.AssigneeName.Set {
		out.AssigneeName = patch.AssigneeName.Value
	}
	if patch.Deadline.Set {
		out.Deadline = patch.Deadline.Value
	}
	if patch.ParentTaskID.Set {
		out.ParentTaskID = patch.ParentTaskID.Value
	}
	out.UpdatedAt = laterOf(t.UpdatedAt, now)
	return &out
}

// WithCalendarEvent records (or clears, when eventID is empty) the linked
// calendar event.
func (t *Task) WithCalendarEvent(eventID string, now time.Time) *Task {
	out := *t
	if eventID == "" {
		out.CalendarEventID = nil
		out.CalendarEventUpdatedAt = nil
	} else {
		id := eventID
		at := now
		out.CalendarEventID = &id
		out.CalendarEventUpdatedAt = &at
	}
	out.UpdatedAt = laterOf(t.UpdatedAt, now)
	return &out
}

// WithDeadline returns a copy of t moved to deadline.
func (t *Task) WithDeadline(deadline, now time.Time) *Task {
	out := *t
	d := deadline
	out.Deadline = &d
	out.UpdatedAt = laterOf(t.UpdatedAt, now)
	return &out
}

// IsTaskOverdue reports whether the task has a deadline strictly before now
// and is not done.
func IsTaskOverdue(t *Task, now time.Time) bool {
	if t.Deadline == nil || t.Status == StatusDone {
		return false
	}
	return t.Deadline.Before(now)
}

// ValidateTaskInput checks the presentation level rules: a non-empty title,
// a known status and an assignee uid/name pair that agrees.
func ValidateTaskInput(input CreateTaskInput) error {
	if strings.TrimSpace(input.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if input.Status != "" && !input.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, input.Status)
	}
	if (input.AssigneeUID == nil) != (input.AssigneeName == nil) {
		return fmt.Errorf("%w: assigneeUid and assigneeName must be set together", ErrInvalidInput)
	}
	return nil
}

// ValidateTaskPatch applies the same rules as ValidateTaskInput to the fields
// present in patch.
func ValidateTaskPatch(patch TaskPatch) error {
	if patch.Title.Set && (patch.Title.Value == nil || strings.TrimSpace(*patch.Title.Value) == "") {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if patch.Status.Set && (patch.Status.Value == nil || !patch.Status.Value.Valid()) {
		return fmt.Errorf("%w: unknown status", ErrInvalidInput)
	}
	if patch.AssigneeUID.Set != patch.AssigneeName.Set ||
		(patch.AssigneeUID.Value == nil) != (patch.AssigneeName.Value == nil) {
		return fmt.Errorf("%w: assigneeUid and assigneeName must be set together", ErrInvalidInput)
	}
	return nil
}

func laterOf(prev, now time.Time) time.Time {
	if now.Before(prev) {
		return prev
	}
	return now
}
