package cli

import (
	"fmt"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"sage/internal/retrieval"
)

const maxParallelIngest = 4

func newIngestCmd() *cobra.Command {
	var (
		query string
		topK  int
	)

	cmd := &cobra.Command{
		Use:   "ingest FILE...",
		Short: "Parse and chunk documents, printing their ids",
		Long: `ingest parses each file (.pdf, .docx), splits it into chunks and
prints the generated document id with the chunk count. With --query the
best-matching chunks of each document are printed too.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ids := make([]string, len(args))
			var mu sync.Mutex
			var failures []error

			var g errgroup.Group
			g.SetLimit(maxParallelIngest)
			for i, path := range args {
				g.Go(func() error {
					id, err := a.documents.Ingest(path, "")
					if err != nil {
						mu.Lock()
						failures = append(failures, err)
						mu.Unlock()
						return nil
					}
					ids[i] = id
					return nil
				})
			}
			_ = g.Wait()

			out := cmd.OutOrStdout()
			for i, path := range args {
				if ids[i] == "" {
					continue
				}
				doc, err := a.documents.Document(ids[i])
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s -> %s (%d chunks)\n", path, ids[i], len(doc.Chunks))
				if query != "" {
					printChunks(cmd, a.documents, ids[i], query, topK)
				}
			}
			for _, err := range failures {
				fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
			}
			if len(failures) > 0 {
				return fmt.Errorf("%d of %d document(s) failed to ingest", len(failures), len(args))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "print the chunks that best match this query")
	cmd.Flags().IntVarP(&topK, "top-k", "k", retrieval.DefaultTopK, "number of chunks to print with --query")
	return cmd
}

func printChunks(cmd *cobra.Command, docs *retrieval.Engine, docID, query string, topK int) {
	for i, chunk := range docs.Retrieve(docID, query, topK) {
		fmt.Fprintf(cmd.OutOrStdout(), "  [%d] %s\n", i+1, chunk)
	}
}
