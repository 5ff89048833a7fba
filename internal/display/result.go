package display

import (
	"fmt"
	"strings"

	"sage/internal/supervisor"
)

const maxValueLength = 100

// FormatResult renders a pipeline result for the terminal, truncating long
// stage output.
func FormatResult(res *supervisor.PipelineResult) string {
	return formatResultInternal(res, maxValueLength)
}

// FormatResultFull renders a pipeline result without truncation.
func FormatResultFull(res *supervisor.PipelineResult) string {
	return formatResultInternal(res, -1) // -1 => no limit
}

func formatResultInternal(res *supervisor.PipelineResult, limit int) string {
	if res == nil {
		return "No result."
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Task %s\n", res.TaskID))
	sb.WriteString("--------------------------------------------------\n")

	if res.Failed() {
		sb.WriteString(fmt.Sprintf("Error: %s\n", res.Error))
	}
	if res.Plan != nil {
		sb.WriteString("Plan:\n")
		for i, step := range res.Plan.Steps {
			sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, formatValueForDisplay(step, limit)))
		}
	}
	if res.Research != "" {
		sb.WriteString(fmt.Sprintf("Research: %s\n", formatValueForDisplay(res.Research, limit)))
	}
	if res.Summary != "" && res.Summary != res.Research {
		sb.WriteString(fmt.Sprintf("Summary: %s\n", formatValueForDisplay(res.Summary, limit)))
	}
	if c := res.Critique; c != nil {
		sb.WriteString(fmt.Sprintf("Critique: score=%.2f passed=%v\n", c.Score, c.Passed))
		sb.WriteString(fmt.Sprintf("  %s\n", formatValueForDisplay(c.Rationale, limit)))
	}
	if res.Strategy != nil {
		sb.WriteString(fmt.Sprintf("Strategy: %s\n", formatValueForDisplay(*res.Strategy, limit)))
	}
	if res.Message != "" {
		sb.WriteString(res.Message + "\n")
	}
	sb.WriteString("--------------------------------------------------")
	return sb.String()
}

// Limit stdout length (limit < 0 means no limit)
func formatValueForDisplay(value any, limit int) string {
	s := fmt.Sprintf("%v", value)
	s = strings.ReplaceAll(s, "\n", "\\n")
	if limit >= 0 && len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
