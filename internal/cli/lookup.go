package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pyritedb/pyrite/internal/store"
	"github.com/pyritedb/pyrite/internal/ui"
)

var (
	lookupColumns []string
	lookupLimit   int
	lookupOffset  int
	lookupDeref   bool
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <view>",
	Short: "Show the rows of a view or base table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return handleError(ErrStoreOpen, err, "")
		}
		defer s.Close()

		rows, err := s.Lookup(cmd.Context(), args[0], store.LookupOptions{
			Columns: lookupColumns,
			Limit:   lookupLimit,
			Offset:  lookupOffset,
			Deref:   lookupDeref,
		})
		if err != nil {
			return fail(err)
		}

		if isJSONOutput() {
			outputSuccess(rows, &Meta{Count: len(rows)})
			return nil
		}
		fmt.Print(ui.RowsTable(rows))
		return nil
	},
}

var valuesCmd = &cobra.Command{
	Use:   "values <view> <path>",
	Short: "Show the distinct values of one property path",
	Long: `Values evaluates a dotted property path against a view, following
reference hops where the path needs them:

  pyrite values conns src_ref.value
  pyrite values files hashes.SHA-256`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return handleError(ErrStoreOpen, err, "")
		}
		defer s.Close()

		vals, err := s.Values(cmd.Context(), args[0], args[1])
		if err != nil {
			return fail(err)
		}

		if isJSONOutput() {
			outputSuccess(vals, &Meta{Count: len(vals)})
			return nil
		}
		for _, v := range vals {
			if v == nil {
				continue
			}
			fmt.Printf("%v\n", v)
		}
		return nil
	},
}

var countCmd = &cobra.Command{
	Use:   "count <view>",
	Short: "Count the rows of a view or base table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return handleError(ErrStoreOpen, err, "")
		}
		defer s.Close()

		n, err := s.Count(cmd.Context(), args[0])
		if err != nil {
			return fail(err)
		}
		if isJSONOutput() {
			outputSuccess(map[string]any{"view": args[0], "rows": n}, nil)
			return nil
		}
		fmt.Println(n)
		return nil
	},
}

func init() {
	lookupCmd.Flags().StringSliceVar(&lookupColumns, "columns", nil, "project only these columns")
	lookupCmd.Flags().IntVar(&lookupLimit, "limit", 0, "show at most this many rows")
	lookupCmd.Flags().IntVar(&lookupOffset, "offset", 0, "skip this many rows")
	lookupCmd.Flags().BoolVar(&lookupDeref, "deref", false, "join referenced rows one hop deep")
	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(valuesCmd)
	rootCmd.AddCommand(countCmd)
}
