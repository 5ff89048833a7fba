package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAskCmd() *cobra.Command {
	var docPath, query string
	var showChunks bool

	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Answer a question from a single document",
		RunE: func(cmd *cobra.Command, args []string) error {
			if docPath == "" || query == "" {
				return fmt.Errorf("--doc and --query are required")
			}
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := a.documents.Ingest(docPath, "")
			if err != nil {
				return err
			}
			if showChunks {
				printChunks(cmd, a.documents, id, query, a.cfg.Retrieval.TopK)
			}
			fmt.Fprintln(cmd.OutOrStdout(), a.documents.Answer(cmd.Context(), id, query))
			return nil
		},
	}

	cmd.Flags().StringVarP(&docPath, "doc", "d", "", "document to read (.pdf, .docx)")
	cmd.Flags().StringVarP(&query, "query", "q", "", "question to answer")
	cmd.Flags().BoolVar(&showChunks, "chunks", false, "print the excerpts used for the answer")
	return cmd
}
