package cmd

import (
	"fmt"
	"os"

	"github.com/Rishwanth-M/finboard/internal/dashboard"
	"github.com/spf13/cobra"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the dashboard configuration as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		board := dashboard.NewBoard()
		if err := board.LoadFile(cfg.DashboardFile); err != nil {
			return err
		}
		data, err := board.Export()
		if err != nil {
			return err
		}
		if exportOut == "" || exportOut == "-" {
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		}
		if err := os.WriteFile(exportOut, append(data, '\n'), 0o644); err != nil {
			return fmt.Errorf("write export: %w", err)
		}
		logger.Info("export: written", "path", exportOut, "widgets", len(board.List()))
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the dashboard with an exported configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		board := dashboard.NewBoard()
		widgets, err := board.Import(data)
		if err != nil {
			return err
		}
		if err := board.SaveFile(cfg.DashboardFile); err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "imported %d widgets into %s\n", len(widgets), cfg.DashboardFile)
		return err
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file (default stdout)")
	rootCmd.AddCommand(exportCmd, importCmd)
}
