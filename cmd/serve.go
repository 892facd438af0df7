package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Rishwanth-M/finboard/internal/refresh"
	"github.com/Rishwanth-M/finboard/internal/server"
	"github.com/spf13/cobra"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard API and keep widgets refreshed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if listenAddr != "" {
			cfg.Listen = listenAddr
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sched := refresh.New(a.gateway, refresh.WithLogger(logger))
		sched.Sync(a.board.List())
		sched.Start(ctx)
		defer sched.Stop()

		deps := server.Deps{
			Board:     a.board,
			Gateway:   a.gateway,
			Scheduler: sched,
			BoardFile: cfg.DashboardFile,
			Logger:    logger,
		}
		if a.history != nil {
			deps.History = a.history
		}
		if a.metrics != nil {
			deps.Metrics = a.metrics.Handler()
		}

		srv := &http.Server{
			Addr:              cfg.Listen,
			Handler:           server.New(deps),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errc := make(chan error, 1)
		go func() {
			logger.Info("serve: listening", "addr", cfg.Listen, "widgets", len(a.board.List()))
			errc <- srv.ListenAndServe()
		}()

		select {
		case err := <-errc:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
		}

		logger.Info("serve: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&listenAddr, "listen", "l", "", "Listen address; overrides the config")
	rootCmd.AddCommand(serveCmd)
}
