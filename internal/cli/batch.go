package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sage/internal/display"
	"sage/internal/listener"
	"sage/internal/parser"
	"sage/internal/supervisor"
)

func newBatchCmd() *cobra.Command {
	var (
		ids     []string
		confirm bool
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "batch FILE",
		Short: "Run every task in a YAML or JSON file concurrently",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			tasks, err := parser.LoadTasksFromFile(path)
			if err != nil {
				return err
			}
			if len(ids) > 0 {
				selected, missing := parser.SelectTasksByIDs(tasks, ids)
				if len(missing) > 0 {
					fmt.Fprintf(cmd.ErrOrStderr(), "Missing tasks: %s\n", strings.Join(missing, ", "))
				}
				tasks = selected
			}
			if len(tasks) == 0 {
				return fmt.Errorf("no tasks to run in %s", path)
			}

			out := cmd.OutOrStdout()
			if confirm {
				fmt.Fprintln(out, display.FormatTaskCatalog(path, tasks))
				session, err := listener.New("> ")
				if err != nil {
					return err
				}
				ok := session.AskYesNo(fmt.Sprintf("About to run %d task(s) from %s. Proceed?", len(tasks), filepath.Base(path)))
				session.Close()
				if !ok {
					fmt.Fprintln(out, "Cancelled.")
					return nil
				}
			}

			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			jobs := make([]supervisor.Job, 0, len(tasks))
			for _, t := range tasks {
				if len(t.Checkpoints) > 0 || t.TimelineDays > 0 {
					a.tracker.CreateTask(t.TaskID, t.Query, t.TimelineDays, t.Checkpoints)
				}
				jobs = append(jobs, t.Job())
			}

			results := a.supervisor.RunBatch(cmd.Context(), jobs)

			failed := 0
			for i, res := range results {
				if res.Failed() {
					failed++
				}
				if asJSON {
					continue
				}
				fmt.Fprintln(out, resultSummary(res))
				fmt.Fprintln(out, display.FormatResult(res))
				if t := tasks[i]; len(t.Checkpoints) > 0 {
					if task, err := a.tracker.GetTask(t.TaskID); err == nil {
						fmt.Fprintln(out, display.FormatTask(task, a.tracker.CheckProgress(t.TaskID)))
					}
				}
			}
			if asJSON {
				if err := writeJSON(out, results); err != nil {
					return err
				}
			}

			a.log.Info("Batch finished", zap.Int("tasks", len(results)), zap.Int("failed", failed))
			if failed > 0 {
				return fmt.Errorf("%d of %d task(s) failed", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&ids, "ids", nil, "run only these task ids, in this order")
	cmd.Flags().BoolVar(&confirm, "confirm", false, "show the task catalog and ask before running")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as a JSON array")
	return cmd
}
