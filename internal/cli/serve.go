package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sage/internal/server"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the pipeline, tasks, documents and memory over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			cfg := &server.Config{Host: a.cfg.Server.Host, Port: a.cfg.Server.Port, UploadDir: a.cfg.Server.UploadDir}
			if cmd.Flags().Changed("host") {
				cfg.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}

			srv, err := server.NewServer(server.Deps{
				Pipeline:  a.supervisor,
				Tracker:   a.tracker,
				Documents: a.documents,
				Memory:    a.memory,
				Gatherer:  a.registry,
			}, a.log, cfg)
			if err != nil {
				return err
			}

			g, gctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return srv.Shutdown(ctx)
			})

			if err := g.Wait(); err != nil {
				a.log.Error("server stopped with error", zap.Error(err))
				return err
			}
			a.log.Info("server stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "listen host (overrides server.host)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides server.port)")
	return cmd
}
