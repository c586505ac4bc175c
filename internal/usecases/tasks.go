package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/ytakahashi/team-task-tracker/internal/models"
	"github.com/ytakahashi/team-task-tracker/internal/services"
)

type TaskService struct {
	tasks services.TaskRepository
	now   Clock
}

func NewTaskService(tasks services.TaskRepository, now Clock) *TaskService {
	return &TaskService{tasks: tasks, now: orSystem(now)}
}

func (s *TaskService) Create(ctx context.Context, input models.CreateTaskInput, createdBy string) (*models.Task, error) {
	if err := models.ValidateTaskInput(input); err != nil {
		return nil, err
	}
	task := models.NewTask(input, createdBy, s.tasks.GenerateID(), s.now())
	if err := s.tasks.Save(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return task, nil
}

// Update applies patch to an existing task. It fails with ErrTaskNotFound
// when id does not exist.
func (s *TaskService) Update(ctx context.Context, id string, patch models.TaskPatch) (*models.Task, error) {
	if err := models.ValidateTaskPatch(patch); err != nil {
		return nil, err
	}
	existing, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	updated := existing.ApplyPatch(patch, s.now())
	if err := s.tasks.Save(ctx, updated); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	return updated, nil
}

func (s *TaskService) Get(ctx context.Context, id string) (*models.Task, error) {
	return s.tasks.FindByID(ctx, id)
}

func (s *TaskService) List(ctx context.Context, filter models.TaskFilter) ([]*models.Task, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", models.ErrInvalidInput, filter.Status)
	}
	return s.tasks.FindAll(ctx, filter)
}

// Delete removes the task. Tasks that referenced it as parent keep the
// dangling id.
func (s *TaskService) Delete(ctx context.Context, id string) error {
	return s.tasks.Delete(ctx, id)
}

// BoardTask is a task as shown on the board.
type BoardTask struct {
	*models.Task
	Overdue bool `json:"overdue"`
}

type BoardColumn struct {
	Status models.Status `json:"status"`
	Label  string        `json:"label"`
	Tasks  []BoardTask   `json:"tasks"`
}

// Board groups every task into one column per status, in board order.
func (s *TaskService) Board(ctx context.Context) ([]BoardColumn, error) {
	tasks, err := s.tasks.FindAll(ctx, models.TaskFilter{})
	if err != nil {
		return nil, err
	}
	return BuildBoard(tasks, s.now()), nil
}

// BuildBoard is the pure part of Board; tasks keep their relative order
// within a column.
func BuildBoard(tasks []*models.Task, now time.Time) []BoardColumn {
	columns := make([]BoardColumn, len(models.AllStatuses))
	index := make(map[models.Status]int, len(models.AllStatuses))
	for i, st := range models.AllStatuses {
		columns[i] = BoardColumn{Status: st, Label: st.Label(), Tasks: []BoardTask{}}
		index[st] = i
	}
	for _, t := range tasks {
		i, ok := index[t.Status]
		if !ok {
			continue
		}
		columns[i].Tasks = append(columns[i].Tasks, BoardTask{Task: t, Overdue: models.IsTaskOverdue(t, now)})
	}
	return columns
}
