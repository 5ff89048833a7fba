package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"sage/internal/display"
	"sage/internal/supervisor"
)

func printResult(w io.Writer, res *supervisor.PipelineResult, asJSON, full bool) error {
	if asJSON {
		return writeJSON(w, res)
	}
	if full {
		fmt.Fprintln(w, display.FormatResultFull(res))
	} else {
		fmt.Fprintln(w, display.FormatResult(res))
	}
	fmt.Fprintln(w, display.FormatPipelineMetrics(res.Metrics))
	return nil
}

// resultSummary is the one-line status used by chat and batch.
func resultSummary(res *supervisor.PipelineResult) string {
	switch {
	case res.Failed():
		return fmt.Sprintf("[Task %s FAILED] %s", res.TaskID, res.Error)
	case res.Message == supervisor.MessageCompleted:
		return fmt.Sprintf("[Task %s SUCCEEDED]", res.TaskID)
	default:
		return fmt.Sprintf("[Task %s STOPPED] %s", res.TaskID, res.Message)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
