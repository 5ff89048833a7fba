package display

import (
	"fmt"
	"strings"

	"sage/internal/parser"
	"sage/internal/planner"
)

func FormatTaskCatalog(file string, tasks []parser.BatchTask) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d task(s) in %s:\n", len(tasks), file))
	for i, t := range tasks {
		sb.WriteString(fmt.Sprintf("  %2d. %s  (goals=%d, checkpoints=%d) %s\n",
			i+1, t.TaskID, len(t.Goals), len(t.Checkpoints), formatValueForDisplay(t.Query, maxValueLength)))
	}
	return sb.String()
}

func FormatTask(task planner.Task, progress planner.Progress) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Task %s [%s] due %s\n", task.ID, task.Status, task.Deadline.Format("2006-01-02")))
	sb.WriteString(fmt.Sprintf("Goal: %s\n", task.Goal))
	for _, cp := range task.Checkpoints {
		mark := " "
		if cp.Completed {
			mark = "x"
		}
		sb.WriteString(fmt.Sprintf("  [%s] %s %s\n", mark, cp.ID, cp.Description))
	}
	sb.WriteString(fmt.Sprintf("Progress: %d/%d (%.1f%%)", progress.Completed, progress.Total, progress.Percentage))
	return sb.String()
}
