package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/Rishwanth-M/finboard/internal/fetch"
	"github.com/Rishwanth-M/finboard/internal/flatten"
	"github.com/spf13/cobra"
)

var (
	discoverQuery string
	discoverJSON  bool
)

var discoverCmd = &cobra.Command{
	Use:   "discover <url>",
	Short: "List the addressable fields of a JSON API response",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		doc, err := a.gateway.Fetch(cmd.Context(), args[0], fetch.Options{})
		if err != nil {
			return fmt.Errorf("%s: %w", fetch.Status(err), err)
		}
		if msg, soft := fetch.SoftError(doc); soft {
			return fmt.Errorf("API rate limit reached: %s", msg)
		}

		fields := flatten.Filter(flatten.Flatten(doc), discoverQuery)
		out := cmd.OutOrStdout()
		if discoverJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(fields)
		}

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "PATH\tTYPE\tSAMPLE")
		for _, f := range fields {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", f.Path, f.Type, f.Sample)
		}
		return tw.Flush()
	},
}

func init() {
	discoverCmd.Flags().StringVarP(&discoverQuery, "query", "q", "", "Only list paths containing this text")
	discoverCmd.Flags().BoolVar(&discoverJSON, "json", false, "Print fields as JSON")
	rootCmd.AddCommand(discoverCmd)
}
