package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pyritedb/pyrite/internal/store"
	"github.com/pyritedb/pyrite/internal/ui"
)

var (
	extractBatch     string
	extractOverwrite bool
	filterOverwrite  bool
)

var extractCmd = &cobra.Command{
	Use:   "extract <view> <type> <pattern>",
	Short: "Create a view of one observable type matching a pattern",
	Long: `Extract compiles an observation pattern against one observable type and
names the matching rows as a view:

  pyrite extract conns network-traffic "[network-traffic:dst_port < 1024]"
  pyrite extract pings ipv4-addr "[ipv4-addr:value LIKE '10.%']" --batch scan1`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, otype, patternText := args[0], args[1], args[2]
		s, err := openSession()
		if err != nil {
			return handleError(ErrStoreOpen, err, "")
		}
		defer s.Close()

		if err := s.Extract(cmd.Context(), name, otype, extractBatch, patternText, extractOverwrite); err != nil {
			return fail(err)
		}
		return reportView(cmd.Context(), s, name)
	},
}

var filterCmd = &cobra.Command{
	Use:   "filter <view> <source-view> <pattern>",
	Short: "Derive a view by applying a pattern to an existing view",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, source, patternText := args[0], args[1], args[2]
		s, err := openSession()
		if err != nil {
			return handleError(ErrStoreOpen, err, "")
		}
		defer s.Close()

		if err := s.Filter(cmd.Context(), name, source, patternText, filterOverwrite); err != nil {
			return fail(err)
		}
		return reportView(cmd.Context(), s, name)
	},
}

// reportView prints the created view and its row count.
func reportView(ctx context.Context, s *store.Session, name string) error {
	n, err := s.Count(ctx, name)
	if err != nil {
		return fail(err)
	}
	if isJSONOutput() {
		outputSuccess(map[string]any{"view": name, "rows": n}, nil)
		return nil
	}
	fmt.Println(ui.Successf("%s %s", ui.Name(name), ui.Count(int(n), "row", "rows")))
	return nil
}

func init() {
	extractCmd.Flags().StringVar(&extractBatch, "batch", "", "restrict to rows a batch touched")
	extractCmd.Flags().BoolVar(&extractOverwrite, "overwrite", false, "replace an existing view with a different definition")
	filterCmd.Flags().BoolVar(&filterOverwrite, "overwrite", false, "replace an existing view with a different definition")
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(filterCmd)
}
