// Package planner tracks task goals, checkpoints and deadlines, and lays out
// the stage plan for a pipeline run.
package planner

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"sage/internal/logger"
)

// DefaultCompletionThreshold is the checkpoint percentage at which a task counts as done.
const DefaultCompletionThreshold = 90.0

var (
	ErrTaskNotFound       = errors.New("task not found")
	ErrCheckpointNotFound = errors.New("checkpoint not found")
)

type Status string

const (
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

type Checkpoint struct {
	ID          string `json:"id" yaml:"id"`
	Description string `json:"description" yaml:"description"`
	Completed   bool   `json:"completed" yaml:"completed"`
}

type Task struct {
	ID          string       `json:"id"`
	Goal        string       `json:"goal"`
	Checkpoints []Checkpoint `json:"checkpoints"`
	Deadline    time.Time    `json:"deadline"`
	Status      Status       `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

type Progress struct {
	Completed  int     `json:"completed"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// Tracker owns every Task. It is safe for concurrent use.
type Tracker struct {
	mu    sync.RWMutex
	tasks map[string]*Task
	log   *zap.Logger
	now   func() time.Time
}

func NewTracker(log *zap.Logger) *Tracker {
	return &Tracker{
		tasks: make(map[string]*Task),
		log:   logger.OrNop(log).Named("planner"),
		now:   time.Now,
	}
}

// CreateTask stores a fresh in-progress task due timelineDays from now.
// An existing task with the same ID is replaced.
func (t *Tracker) CreateTask(taskID, goal string, timelineDays int, checkpoints []Checkpoint) Task {
	now := t.now()
	task := &Task{
		ID:          taskID,
		Goal:        goal,
		Checkpoints: append([]Checkpoint(nil), checkpoints...),
		Deadline:    now.AddDate(0, 0, timelineDays),
		Status:      StatusInProgress,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	t.mu.Lock()
	t.tasks[taskID] = task
	t.mu.Unlock()

	t.log.Info("Task created",
		zap.String("task_id", taskID),
		zap.Time("deadline", task.Deadline),
		zap.Int("checkpoints", len(checkpoints)))
	return task.clone()
}

// UpdateCheckpoint sets the completed flag of one checkpoint.
func (t *Tracker) UpdateCheckpoint(taskID, checkpointID string, completed bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	task, ok := t.tasks[taskID]
	if !ok {
		t.log.Error("Task or checkpoint not found", zap.String("task_id", taskID), zap.String("checkpoint_id", checkpointID))
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	for i := range task.Checkpoints {
		if task.Checkpoints[i].ID != checkpointID {
			continue
		}
		task.Checkpoints[i].Completed = completed
		task.UpdatedAt = t.now()
		t.log.Info("Checkpoint updated",
			zap.String("task_id", taskID),
			zap.String("checkpoint_id", checkpointID),
			zap.Bool("completed", completed))
		return nil
	}
	t.log.Error("Task or checkpoint not found", zap.String("task_id", taskID), zap.String("checkpoint_id", checkpointID))
	return fmt.Errorf("%w: %s/%s", ErrCheckpointNotFound, taskID, checkpointID)
}

// CheckProgress counts completed checkpoints. Unknown tasks report zero progress.
func (t *Tracker) CheckProgress(taskID string) Progress {
	t.mu.RLock()
	defer t.mu.RUnlock()

	task, ok := t.tasks[taskID]
	if !ok {
		t.log.Error("Task not found for progress check", zap.String("task_id", taskID))
		return Progress{}
	}
	return progressOf(task)
}

func progressOf(task *Task) Progress {
	p := Progress{Total: len(task.Checkpoints)}
	for _, cp := range task.Checkpoints {
		if cp.Completed {
			p.Completed++
		}
	}
	if p.Total > 0 {
		p.Percentage = float64(p.Completed) / float64(p.Total) * 100
	}
	return p
}

// IsComplete reports whether the task reached threshold percent and, if so,
// marks it completed. This is the only transition out of in-progress.
func (t *Tracker) IsComplete(taskID string, threshold float64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	task, ok := t.tasks[taskID]
	if !ok {
		t.log.Error("Task not found for progress check", zap.String("task_id", taskID))
		return false
	}
	if progressOf(task).Percentage < threshold {
		return false
	}
	if task.Status != StatusCompleted {
		task.Status = StatusCompleted
		task.UpdatedAt = t.now()
		t.log.Info("Task marked completed", zap.String("task_id", taskID))
	}
	return true
}

func (t *Tracker) GetTask(taskID string) (Task, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	task, ok := t.tasks[taskID]
	if !ok {
		return Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	return task.clone(), nil
}

func (t *Tracker) RemoveTask(taskID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.tasks[taskID]; !ok {
		return false
	}
	delete(t.tasks, taskID)
	t.log.Info("Task removed", zap.String("task_id", taskID))
	return true
}

func (task *Task) clone() Task {
	c := *task
	c.Checkpoints = append([]Checkpoint(nil), task.Checkpoints...)
	return c
}
