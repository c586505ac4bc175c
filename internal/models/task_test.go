package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func TestNewTaskDefaults(t *testing.T) {
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	task := NewTask(CreateTaskInput{Title: "Write spec"}, "u1", "t1", now)

	if task.Status != StatusRemaining {
		t.Errorf("Expected status %q, got %q", StatusRemaining, task.Status)
	}
	if task.CalendarEventID != nil || task.CalendarEventUpdatedAt != nil {
		t.Errorf("Expected no calendar event, got %v / %v", task.CalendarEventID, task.CalendarEventUpdatedAt)
	}
	if !task.CreatedAt.Equal(task.UpdatedAt) {
		t.Errorf("Expected createdAt == updatedAt, got %v and %v", task.CreatedAt, task.UpdatedAt)
	}
	if task.CreatedBy != "u1" || task.ID != "t1" {
		t.Errorf("Unexpected identity fields: %+v", task)
	}
}

func TestNewTaskKeepsExplicitStatus(t *testing.T) {
	task := NewTask(CreateTaskInput{Title: "x", Status: StatusBlocked}, "u1", "t1", time.Now())
	if task.Status != StatusBlocked {
		t.Errorf("Expected status %q, got %q", StatusBlocked, task.Status)
	}
}

func TestIsTaskOverdue(t *testing.T) {
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name     string
		deadline *time.Time
		status   Status
		want     bool
	}{
		{"no deadline", nil, StatusRemaining, false},
		{"done in the past", &past, StatusDone, false},
		{"past deadline", &past, StatusInProgress, true},
		{"future deadline", &future, StatusBlocked, false},
		{"deadline equal to now", &now, StatusRemaining, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := &Task{Deadline: tt.deadline, Status: tt.status}
			if got := IsTaskOverdue(task, now); got != tt.want {
				t.Errorf("IsTaskOverdue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestApplyPatchAdvancesUpdatedAt(t *testing.T) {
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	task := NewTask(CreateTaskInput{Title: "a"}, "u1", "t1", created)

	later := task.ApplyPatch(TaskPatch{Title: Some("b")}, created.Add(time.Hour))
	if later.Title != "b" {
		t.Errorf("Expected title b, got %q", later.Title)
	}
	if !later.UpdatedAt.Equal(created.Add(time.Hour)) {
		t.Errorf("Expected updatedAt to advance, got %v", later.UpdatedAt)
	}

	// A clock that went backwards must not move updatedAt back.
	skewed := later.ApplyPatch(TaskPatch{}, created)
	if skewed.UpdatedAt.Before(later.UpdatedAt) {
		t.Errorf("updatedAt moved backwards: %v < %v", skewed.UpdatedAt, later.UpdatedAt)
	}
	if task.Title != "a" {
		t.Errorf("ApplyPatch mutated the original task")
	}
}

func TestApplyPatchClearsNullableFields(t *testing.T) {
	deadline := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	task := NewTask(CreateTaskInput{
		Title:        "a",
		AssigneeUID:  strPtr("U1"),
		AssigneeName: strPtr("Alice"),
		Deadline:     &deadline,
	}, "u1", "t1", time.Now())

	var patch TaskPatch
	if err := json.Unmarshal([]byte(`{"deadline":null,"assigneeUid":null,"assigneeName":null}`), &patch); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	out := task.ApplyPatch(patch, time.Now())
	if out.Deadline != nil || out.AssigneeUID != nil || out.AssigneeName != nil {
		t.Errorf("Expected cleared fields, got %+v", out)
	}
	if out.Title != "a" {
		t.Errorf("Absent title should be untouched, got %q", out.Title)
	}
}

func TestWithCalendarEvent(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	task := NewTask(CreateTaskInput{Title: "a"}, "u1", "t1", now)

	linked := task.WithCalendarEvent("evt1", now.Add(time.Minute))
	if linked.CalendarEventID == nil || *linked.CalendarEventID != "evt1" {
		t.Fatalf("Expected calendarEventId evt1, got %v", linked.CalendarEventID)
	}
	if linked.CalendarEventUpdatedAt == nil {
		t.Fatal("Expected calendarEventUpdatedAt to be set")
	}

	cleared := linked.WithCalendarEvent("", now.Add(2*time.Minute))
	if cleared.CalendarEventID != nil || cleared.CalendarEventUpdatedAt != nil {
		t.Errorf("Expected both calendar fields cleared, got %v / %v", cleared.CalendarEventID, cleared.CalendarEventUpdatedAt)
	}
}

func TestWithDeadlineKeepsUpdatedAtMonotonic(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	task := NewTask(CreateTaskInput{Title: "a"}, "u1", "t1", now.Add(time.Hour))
	deadline := now.Add(24 * time.Hour)

	moved := task.WithDeadline(deadline, now)
	if moved.Deadline == nil || !moved.Deadline.Equal(deadline) {
		t.Fatalf("Expected deadline %v, got %v", deadline, moved.Deadline)
	}
	if !moved.UpdatedAt.Equal(task.UpdatedAt) {
		t.Errorf("updatedAt moved backwards: %v < %v", moved.UpdatedAt, task.UpdatedAt)
	}
	if task.Deadline != nil {
		t.Error("WithDeadline mutated the original task")
	}

	stale := task.WithCalendarEvent("evt1", now)
	if !stale.UpdatedAt.Equal(task.UpdatedAt) {
		t.Errorf("WithCalendarEvent moved updatedAt backwards to %v", stale.UpdatedAt)
	}
}

func TestValidateTaskInput(t *testing.T) {
	tests := []struct {
		name    string
		input   CreateTaskInput
		wantErr bool
	}{
		{"ok", CreateTaskInput{Title: "a"}, false},
		{"blank title", CreateTaskInput{Title: "  "}, true},
		{"bad status", CreateTaskInput{Title: "a", Status: "archived"}, true},
		{"uid without name", CreateTaskInput{Title: "a", AssigneeUID: strPtr("U1")}, true},
		{"assignee pair", CreateTaskInput{Title: "a", AssigneeUID: strPtr("U1"), AssigneeName: strPtr("Al")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTaskInput(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateTaskInput() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestValidateTaskPatch(t *testing.T) {
	if err := ValidateTaskPatch(TaskPatch{Status: Some(StatusDone)}); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if err := ValidateTaskPatch(TaskPatch{Status: Null[Status]()}); err == nil {
		t.Error("Expected error for null status")
	}
	if err := ValidateTaskPatch(TaskPatch{AssigneeUID: Some("U1")}); err == nil {
		t.Error("Expected error for assignee uid without name")
	}
	if err := ValidateTaskPatch(TaskPatch{AssigneeUID: Null[string](), AssigneeName: Null[string]()}); err != nil {
		t.Errorf("Unexpected error clearing assignee: %v", err)
	}
}

func TestTaskFilterMatches(t *testing.T) {
	task := &Task{Status: StatusInProgress, AssigneeUID: strPtr("U1")}
	if !(TaskFilter{Status: StatusInProgress, AssigneeUID: "U1"}).Matches(task) {
		t.Error("Expected match on both predicates")
	}
	if (TaskFilter{Status: StatusInProgress, AssigneeUID: "U2"}).Matches(task) {
		t.Error("Expected assignee mismatch")
	}
	if (TaskFilter{AssigneeUID: "U1"}).Matches(&Task{Status: StatusDone}) {
		t.Error("Unassigned task must not match an assignee filter")
	}
}

func TestEventFromTask(t *testing.T) {
	deadline := time.Date(2025, 1, 10, 15, 0, 0, 0, time.UTC)
	task := &Task{ID: "t1", Title: "Write spec", Deadline: &deadline}

	ev, ok := EventFromTask(task)
	if !ok {
		t.Fatal("Expected an event for a task with a deadline")
	}
	if !ev.Start.Equal(deadline) || !ev.End.Equal(deadline.Add(time.Hour)) {
		t.Errorf("Unexpected window %v - %v", ev.Start, ev.End)
	}
	if ev.TaskID != "t1" {
		t.Errorf("Expected taskId t1, got %q", ev.TaskID)
	}

	if _, ok := EventFromTask(&Task{ID: "t2"}); ok {
		t.Error("Expected no event without a deadline")
	}
}
