package supervisor

import (
	"sage/internal/actions"
	"sage/internal/metrics"
	"sage/internal/planner"
)

// Terminal status messages.
const (
	MessageCompleted  = "Task completed successfully."
	MessageGateFailed = "Output did not meet quality threshold."
)

// TaskRequest is the input of one pipeline run.
type TaskRequest struct {
	Query   string   `json:"query" yaml:"query"`
	Goals   []string `json:"goals" yaml:"goals"`
	Context string   `json:"context,omitempty" yaml:"context,omitempty"`
	// CritiqueThreshold overrides the configured gate threshold when set.
	CritiqueThreshold *float64 `json:"critique_threshold,omitempty" yaml:"critique_threshold,omitempty"`
	DocumentID        string   `json:"document_id,omitempty" yaml:"document_id,omitempty"`
}

// PipelineResult is the single output of a run. Strategy is nil unless the
// quality gate passed or was bypassed. Error is set only when the pipeline
// could not finish; partial stage output is kept for inspection.
type PipelineResult struct {
	TaskID   string                   `json:"task_id"`
	Plan     *planner.Plan            `json:"plan,omitempty"`
	Research string                   `json:"research"`
	Summary  string                   `json:"summary"`
	Critique *actions.CritiqueResult  `json:"critique,omitempty"`
	Strategy *string                  `json:"strategy"`
	Message  string                   `json:"message,omitempty"`
	Error    string                   `json:"error,omitempty"`
	Metrics  *metrics.PipelineMetrics `json:"metrics,omitempty"`
}

func (r *PipelineResult) Failed() bool { return r.Error != "" }
