package services

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/ytakahashi/team-task-tracker/internal/models"
)

// FirestoreTaskRepository stores tasks in the "tasks" collection.
//
// Queries that combine a filter with the createdAt ordering need a composite
// index on (status|assigneeUid, createdAt desc).
type FirestoreTaskRepository struct {
	client *firestore.Client
	col    *firestore.CollectionRef
}

func (r *FirestoreTaskRepository) query(filter models.TaskFilter) firestore.Query {
	q := r.col.OrderBy("createdAt", firestore.Desc)
	if filter.Status != "" {
		q = q.Where("status", "==", string(filter.Status))
	}
	if filter.AssigneeUID != "" {
		q = q.Where("assigneeUid", "==", filter.AssigneeUID)
	}
	return q
}

func decodeTask(doc *firestore.DocumentSnapshot) (*models.Task, error) {
	var d taskDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task %s: %w", doc.Ref.ID, err)
	}
	return fromTaskDoc(doc.Ref.ID, &d), nil
}

func (r *FirestoreTaskRepository) FindAll(ctx context.Context, filter models.TaskFilter) ([]*models.Task, error) {
	tasks, err := collect(r.query(filter).Documents(ctx), decodeTask)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

func (r *FirestoreTaskRepository) FindByID(ctx context.Context, id string) (*models.Task, error) {
	doc, err := r.col.Doc(id).Get(ctx)
	if isNotFound(err) {
		return nil, fmt.Errorf("%w: %s", models.ErrTaskNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task %s: %w", id, err)
	}
	return decodeTask(doc)
}

func (r *FirestoreTaskRepository) Save(ctx context.Context, task *models.Task) error {
	if _, err := r.col.Doc(task.ID).Set(ctx, toTaskDoc(task)); err != nil {
		return fmt.Errorf("failed to save task %s: %w", task.ID, err)
	}
	return nil
}

func (r *FirestoreTaskRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.col.Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete task %s: %w", id, err)
	}
	return nil
}

// modify reads the task and writes the updates derived from it in one
// transaction, so updatedAt is compared against the stored value.
func (r *FirestoreTaskRepository) modify(ctx context.Context, id string, updates func(*models.Task) []firestore.Update) error {
	ref := r.col.Doc(id)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if err != nil {
			return err
		}
		task, err := decodeTask(doc)
		if err != nil {
			return err
		}
		return tx.Update(ref, updates(task))
	})
	if isNotFound(err) {
		return fmt.Errorf("%w: %s", models.ErrTaskNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("failed to update task %s: %w", id, err)
	}
	return nil
}

func (r *FirestoreTaskRepository) UpdateDeadline(ctx context.Context, id string, deadline, at time.Time) error {
	return r.modify(ctx, id, func(task *models.Task) []firestore.Update {
		next := task.WithDeadline(deadline, at)
		return []firestore.Update{
			{Path: "deadline", Value: next.Deadline.Truncate(storePrecision)},
			{Path: "updatedAt", Value: next.UpdatedAt.Truncate(storePrecision)},
		}
	})
}

func (r *FirestoreTaskRepository) SetCalendarEvent(ctx context.Context, id, eventID string, at time.Time) error {
	return r.modify(ctx, id, func(task *models.Task) []firestore.Update {
		next := task.WithCalendarEvent(eventID, at)
		var eventValue, atValue interface{}
		if next.CalendarEventID != nil {
			eventValue = *next.CalendarEventID
			atValue = next.CalendarEventUpdatedAt.Truncate(storePrecision)
		}
		return []firestore.Update{
			{Path: "calendarEventId", Value: eventValue},
			{Path: "calendarEventUpdatedAt", Value: atValue},
			{Path: "updatedAt", Value: next.UpdatedAt.Truncate(storePrecision)},
		}
	})
}

func (r *FirestoreTaskRepository) SubscribeAll(ctx context.Context, filter models.TaskFilter, fn func([]*models.Task)) Unsubscribe {
	return listen(ctx, func(ctx context.Context, l *listener) {
		iter := r.query(filter).Snapshots(ctx)
		defer iter.Stop()

		for {
			snap, err := iter.Next()
			if err != nil {
				snapshotEnded(ctx, "tasks", err)
				return
			}
			docs, err := snap.Documents.GetAll()
			if err != nil {
				snapshotEnded(ctx, "tasks", err)
				return
			}
			tasks := make([]*models.Task, 0, len(docs))
			for _, doc := range docs {
				t, err := decodeTask(doc)
				if err != nil {
					snapshotEnded(ctx, "tasks", err)
					continue
				}
				tasks = append(tasks, t)
			}
			l.deliver(func() { fn(tasks) })
		}
	})
}

// WatchChanges reports every task write after the listener attaches. The
// first snapshot only seeds the previous versions used for Before.
func (r *FirestoreTaskRepository) WatchChanges(ctx context.Context, fn func(TaskChange)) Unsubscribe {
	return listen(ctx, func(ctx context.Context, l *listener) {
		iter := r.col.Snapshots(ctx)
		defer iter.Stop()

		prev := make(map[string]*models.Task)
		seeded := false
		for {
			snap, err := iter.Next()
			if err != nil {
				snapshotEnded(ctx, "task changes", err)
				return
			}
			for _, ch := range snap.Changes {
				id := ch.Doc.Ref.ID
				before := prev[id]
				var after *models.Task
				if ch.Kind == firestore.DocumentRemoved {
					delete(prev, id)
				} else {
					after, err = decodeTask(ch.Doc)
					if err != nil {
						snapshotEnded(ctx, "task changes", err)
						continue
					}
					prev[id] = after
				}
				if seeded {
					change := TaskChange{Before: before, After: after}
					l.deliver(func() { fn(change) })
				}
			}
			seeded = true
		}
	})
}

func (r *FirestoreTaskRepository) GenerateID() string {
	return uuid.New().String()
}
