package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"sage/internal/display"
	"sage/internal/listener"
	"sage/internal/supervisor"
)

func newChatCmd() *cobra.Command {
	var goals []string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive session: every line is run through the pipeline",
		Long: `chat reads queries from the terminal and runs each one through the
pipeline in the background, printing results above the prompt as they
finish. Type 'exit' or press Ctrl+D to quit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			session, err := listener.New("sage> ")
			if err != nil {
				return err
			}
			defer session.Close()

			ctx := cmd.Context()
			var wg sync.WaitGroup
			defer wg.Wait()

			session.AsyncPrintln("Hello! What should I research? (type 'exit' or press Ctrl+D to quit)")
			for {
				input, err := session.GetInput()
				if errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt) {
					break
				}
				if err != nil {
					return err
				}
				if strings.EqualFold(input, "exit") {
					break
				}
				if input == "" {
					continue
				}
				if ctx.Err() != nil {
					break
				}

				taskID := supervisor.NewTaskID()
				session.AsyncPrintln(fmt.Sprintf("[Task %s STARTED] %s", taskID, input))

				wg.Add(1)
				go func() {
					defer wg.Done()
					res := a.supervisor.Run(ctx, taskID, supervisor.TaskRequest{Query: input, Goals: goals})
					session.AsyncPrintln(resultSummary(res))
					session.AsyncPrintln(display.FormatResult(res))
				}()
			}
			session.AsyncPrintln("Goodbye!")
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&goals, "goal", "g", nil, "goal applied to every query (repeatable)")
	return cmd
}
