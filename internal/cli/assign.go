package cli

import (
	"github.com/spf13/cobra"

	"github.com/pyritedb/pyrite/internal/store"
)

var (
	assignGroupBy   []string
	assignSortBy    string
	assignDesc      bool
	assignLimit     int
	assignOffset    int
	assignOverwrite bool
	mergeOverwrite  bool
	joinOverwrite   bool
)

var assignCmd = &cobra.Command{
	Use:   "assign <view> <source-view>",
	Short: "Name a reshaped projection of an existing view",
	Long: `Assign derives a view by sorting, paging, or grouping a source view.
Grouping aggregates the ungrouped columns automatically: observation
windows widen, counts sum, everything else reports distinct cardinality.

  pyrite assign top-talkers conns --group-by src_ref
  pyrite assign recent conns --sort-by first_observed --desc --limit 20`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return handleError(ErrStoreOpen, err, "")
		}
		defer s.Close()

		opts := store.AssignOptions{
			GroupBy:  assignGroupBy,
			SortBy:   assignSortBy,
			SortDesc: assignDesc,
			Limit:    assignLimit,
			Offset:   assignOffset,
		}
		if err := s.Assign(cmd.Context(), args[0], args[1], opts, assignOverwrite); err != nil {
			return fail(err)
		}
		return reportView(cmd.Context(), s, args[0])
	},
}

var mergeCmd = &cobra.Command{
	Use:   "merge <view> <source-view>...",
	Short: "Name the union of views over the same observable type",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return handleError(ErrStoreOpen, err, "")
		}
		defer s.Close()

		if err := s.Merge(cmd.Context(), args[0], args[1:], mergeOverwrite); err != nil {
			return fail(err)
		}
		return reportView(cmd.Context(), s, args[0])
	},
}

var joinCmd = &cobra.Command{
	Use:   "join <view> <left> <left-column> <right> <right-column>",
	Short: "Name an inner join of two views",
	Args:  cobra.ExactArgs(5),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return handleError(ErrStoreOpen, err, "")
		}
		defer s.Close()

		if err := s.JoinViews(cmd.Context(), args[0], args[1], args[2], args[3], args[4], joinOverwrite); err != nil {
			return fail(err)
		}
		return reportView(cmd.Context(), s, args[0])
	},
}

func init() {
	assignCmd.Flags().StringSliceVar(&assignGroupBy, "group-by", nil, "group by these columns, aggregating the rest")
	assignCmd.Flags().StringVar(&assignSortBy, "sort-by", "", "sort by this column")
	assignCmd.Flags().BoolVar(&assignDesc, "desc", false, "sort descending")
	assignCmd.Flags().IntVar(&assignLimit, "limit", 0, "keep at most this many rows")
	assignCmd.Flags().IntVar(&assignOffset, "offset", 0, "skip this many rows")
	assignCmd.Flags().BoolVar(&assignOverwrite, "overwrite", false, "replace an existing view with a different definition")
	mergeCmd.Flags().BoolVar(&mergeOverwrite, "overwrite", false, "replace an existing view with a different definition")
	joinCmd.Flags().BoolVar(&joinOverwrite, "overwrite", false, "replace an existing view with a different definition")
	rootCmd.AddCommand(assignCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(joinCmd)
}
