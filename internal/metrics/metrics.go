package metrics

import "time"

// StageMetrics records one stage of a pipeline run.
type StageMetrics struct {
	Stage      string    `json:"stage"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	DurationMs int64     `json:"duration_ms"`
	Skipped    bool      `json:"skipped,omitempty"`
	Success    bool      `json:"success"`
	Err        string    `json:"err,omitempty"`
}

// PipelineMetrics records a whole pipeline run.
type PipelineMetrics struct {
	TaskID     string         `json:"task_id"`
	Start      time.Time      `json:"start"`
	End        time.Time      `json:"end"`
	DurationMs int64          `json:"duration_ms"`
	Succeeded  bool           `json:"succeeded"`
	Stages     []StageMetrics `json:"stages"`
}

// Compute derived fields for a stage.
func (s *StageMetrics) Finalize() {
	s.DurationMs = s.End.Sub(s.Start).Milliseconds()
}

func (p *PipelineMetrics) Finalize() {
	p.DurationMs = p.End.Sub(p.Start).Milliseconds()
}

// Skip records a stage the pipeline decided not to run.
func (p *PipelineMetrics) Skip(stage string, at time.Time) {
	p.Stages = append(p.Stages, StageMetrics{Stage: stage, Start: at, End: at, Skipped: true, Success: true})
}
