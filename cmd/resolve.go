package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Rishwanth-M/finboard/internal/fetch"
	"github.com/Rishwanth-M/finboard/internal/jsondoc"
	"github.com/Rishwanth-M/finboard/internal/pathres"
	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <url|file> <path>",
	Short: "Print the value at a field path",
	Long: `Print the value at a field path in a JSON document.

The document is read from a local file when one exists at the given name,
otherwise it is fetched. Paths are dot-joined keys; a key that itself contains
dots (e.g. "5. adjusted close") is matched as written.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, path := args[0], args[1]

		var doc any
		if data, err := os.ReadFile(source); err == nil {
			if doc, err = jsondoc.Decode(data); err != nil {
				return fmt.Errorf("%s: %w", source, err)
			}
		} else {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()
			if doc, err = a.gateway.Fetch(cmd.Context(), source, fetch.Options{}); err != nil {
				return fmt.Errorf("%s: %w", fetch.Status(err), err)
			}
		}

		value, ok := pathres.Resolve(doc, path)
		if !ok {
			return fmt.Errorf("path %q not found", path)
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(value)
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}
