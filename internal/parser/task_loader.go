// Package parser loads batch task files for the pipeline.
package parser

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"sage/internal/planner"
	"sage/internal/supervisor"
)

// BatchTask is one entry of a batch file. Checkpoints and TimelineDays are
// optional and register the task with the planning tracker before it runs.
type BatchTask struct {
	TaskID       string               `yaml:"task_id"`
	TimelineDays int                  `yaml:"timeline_days"`
	Checkpoints  []planner.Checkpoint `yaml:"checkpoints"`

	supervisor.TaskRequest `yaml:",inline"`
}

// Job converts the entry into a supervisor job.
func (t BatchTask) Job() supervisor.Job {
	return supervisor.Job{TaskID: t.TaskID, Request: t.TaskRequest}
}

/*
LoadTasksFromFile loads one or many tasks from a YAML or JSON file and always
returns a slice. It supports these shapes:

 1. Multi-task (preferred):
    tasks:
    - task_id: q3
    query: ...
    goals: [...]

 2. Multi-task (bare list):
    - query: ...
    - query: ...

 3. Single task (treated as 1-element list):
    query: ...
    goals: [...]

Tasks without an ID are auto-named as "batch:<base>#<index>".
*/
func LoadTasksFromFile(path string) ([]BatchTask, error) {
	clean := filepath.Clean(path)
	if _, err := os.Stat(clean); err != nil {
		return nil, fmt.Errorf("tasks file not found: %s", clean)
	}
	data, err := os.ReadFile(clean)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", clean, err)
	}
	tasks, err := ParseTasks(data, filepath.Base(clean))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", clean, err)
	}
	return tasks, nil
}

// ParseTasks decodes a batch document. base names unnamed tasks.
func ParseTasks(data []byte, base string) ([]BatchTask, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("empty tasks document")
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse tasks: %w", err)
	}
	doc := &root
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		doc = doc.Content[0]
	}

	var tasks []BatchTask
	switch doc.Kind {
	case yaml.MappingNode:
		// Format 1: object with "tasks"
		var obj struct {
			Tasks []BatchTask `yaml:"tasks"`
		}
		if err := doc.Decode(&obj); err == nil && len(obj.Tasks) > 0 {
			tasks = obj.Tasks
			break
		}
		// Format 3: single task
		var one BatchTask
		if err := doc.Decode(&one); err != nil {
			return nil, fmt.Errorf("decode task: %w", err)
		}
		tasks = []BatchTask{one}
	case yaml.SequenceNode:
		// Format 2: bare list
		if err := doc.Decode(&tasks); err != nil {
			return nil, fmt.Errorf("decode task list: %w", err)
		}
	default:
		return nil, fmt.Errorf("unrecognized tasks format")
	}

	for i := range tasks {
		if err := validateTask(tasks[i], i); err != nil {
			return nil, err
		}
		if strings.TrimSpace(tasks[i].TaskID) == "" {
			tasks[i].TaskID = fmt.Sprintf("batch:%s#%d", base, i+1)
		}
	}
	return tasks, nil
}

func validateTask(t BatchTask, idx int) error {
	if strings.TrimSpace(t.Query) == "" {
		return fmt.Errorf("task #%d has no query", idx+1)
	}
	if th := t.CritiqueThreshold; th != nil && (*th < 0 || *th > 1) {
		return fmt.Errorf("task #%d critique_threshold must be within [0,1], got %v", idx+1, *th)
	}
	if t.TimelineDays < 0 {
		return fmt.Errorf("task #%d timeline_days must not be negative", idx+1)
	}
	return nil
}

// SelectTasksByIDs returns tasks matching the given IDs (case-insensitive).
func SelectTasksByIDs(tasks []BatchTask, ids []string) ([]BatchTask, []string) {
	if len(ids) == 0 {
		return tasks, nil
	}

	var selected []BatchTask
	var missing []string

	for _, want := range ids {
		w := strings.TrimSpace(want)
		if w == "" {
			continue
		}

		found := false
		for i := range tasks {
			if strings.EqualFold(tasks[i].TaskID, w) {
				selected = append(selected, tasks[i])
				found = true
				break
			}
		}

		if !found {
			missing = append(missing, want)
		}
	}

	return selected, missing
}
