package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pyritedb/pyrite/internal/ui"
)

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "List the observable types with data in the store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return handleError(ErrStoreOpen, err, "")
		}
		defer s.Close()

		types := s.Types()
		if isJSONOutput() {
			outputSuccess(types, &Meta{Count: len(types)})
			return nil
		}
		for _, t := range types {
			n, err := s.Count(cmd.Context(), t)
			if err != nil {
				return fail(err)
			}
			fmt.Printf("%s %s\n", ui.Name(t), ui.Count(int(n), "row", "rows"))
		}
		return nil
	},
}

var schemaCmd = &cobra.Command{
	Use:   "schema <type>",
	Short: "Show the inferred columns of an observable type",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return handleError(ErrStoreOpen, err, "")
		}
		defer s.Close()

		cols, err := s.Columns(args[0])
		if err != nil {
			return fail(err)
		}
		if isJSONOutput() {
			outputSuccess(cols, &Meta{Count: len(cols)})
			return nil
		}
		t := ui.NewTable("column", "kind")
		for _, c := range cols {
			t.AddRow(c.Column, c.Kind)
		}
		fmt.Print(t.String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(typesCmd)
	rootCmd.AddCommand(schemaCmd)
}
