package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"sage/internal/supervisor"
)

func newRunCmd() *cobra.Command {
	var (
		taskID    string
		req       supervisor.TaskRequest
		threshold float64
		docPath   string
		asJSON    bool
		full      bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once for a query",
		Example: `  sage run --query "AI trends in healthcare" --goal "Identify key trends" --goal "Highlight challenges"
  sage run --query "Summarize the contract" --doc contract.pdf --threshold 0.7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.Query == "" {
				return fmt.Errorf("--query is required")
			}
			if cmd.Flags().Changed("threshold") {
				if threshold < 0 || threshold > 1 {
					return fmt.Errorf("--threshold must be within [0,1], got %v", threshold)
				}
				req.CritiqueThreshold = &threshold
			}

			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if docPath != "" {
				id, err := a.documents.Ingest(docPath, "")
				if err != nil {
					return err
				}
				req.DocumentID = id
			}
			if taskID == "" {
				taskID = supervisor.NewTaskID()
			}

			res := a.supervisor.Run(cmd.Context(), taskID, req)
			if err := printResult(cmd.OutOrStdout(), res, asJSON, full); err != nil {
				return err
			}
			if res.Failed() {
				return fmt.Errorf("task %s failed", taskID)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&taskID, "task", "", "task id (generated when empty)")
	f.StringVarP(&req.Query, "query", "q", "", "research query")
	f.StringArrayVarP(&req.Goals, "goal", "g", nil, "goal the output is critiqued against (repeatable)")
	f.StringVar(&req.Context, "context", "", "extra context for the research stage")
	f.Float64Var(&threshold, "threshold", 0, "critique pass threshold in [0,1]")
	f.StringVar(&docPath, "doc", "", "document to ingest and consult during research")
	f.BoolVar(&asJSON, "json", false, "print the result as JSON")
	f.BoolVar(&full, "full", false, "do not truncate stage output")
	return cmd
}
