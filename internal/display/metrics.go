package display

import (
	"fmt"
	"strings"

	"sage/internal/metrics"
)

func FormatPipelineMetrics(pm *metrics.PipelineMetrics) string {
	if pm == nil {
		return "No metrics available."
	}
	var sb strings.Builder
	sb.WriteString("Execution metrics:\n")
	sb.WriteString(fmt.Sprintf("- Total: %d ms  (success=%v)\n", pm.DurationMs, pm.Succeeded))
	for _, s := range pm.Stages {
		status := "ok"
		switch {
		case s.Skipped:
			status = "skipped"
		case !s.Success:
			status = "err"
		}
		sb.WriteString(fmt.Sprintf("    • %-12s %5d ms  [%s]\n", s.Stage, s.DurationMs, status))
	}
	return sb.String()
}
