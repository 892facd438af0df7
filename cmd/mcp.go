package cmd

import (
	"github.com/Rishwanth-M/finboard/internal/mcpserver"
	"github.com/Rishwanth-M/finboard/internal/refresh"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve discovery and widget tools over MCP (stdio)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		sched := refresh.New(a.gateway, refresh.WithLogger(logger))
		sched.Sync(a.board.List())
		sched.Start(cmd.Context())
		defer sched.Stop()

		s := mcpserver.NewServer(&mcpserver.Tools{
			Board:     a.board,
			Gateway:   a.gateway,
			Scheduler: sched,
			Logger:    logger,
		}, version)
		logger.Info("mcp: serving on stdio", "widgets", len(a.board.List()))
		return mcpserver.ServeStdio(s)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
