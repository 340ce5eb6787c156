package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pyritedb/pyrite/internal/ui"
)

var viewsType string

var viewsCmd = &cobra.Command{
	Use:   "views",
	Short: "List the named views in the store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return handleError(ErrStoreOpen, err, "")
		}
		defer s.Close()

		entries := s.Views().List(viewsType)
		if isJSONOutput() {
			outputSuccess(entries, &Meta{Count: len(entries)})
			return nil
		}
		if len(entries) == 0 {
			fmt.Println(ui.Hint("no views"))
			return nil
		}
		t := ui.NewTable("view", "type", "batch")
		for _, e := range entries {
			t.AddRow(e.Name, e.Type, e.BatchID)
		}
		fmt.Print(t.String())
		return nil
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename <view> <new-name>",
	Short: "Rename a view",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return handleError(ErrStoreOpen, err, "")
		}
		defer s.Close()

		if err := s.Views().Rename(cmd.Context(), args[0], args[1]); err != nil {
			return fail(err)
		}
		if isJSONOutput() {
			outputSuccess(map[string]string{"from": args[0], "to": args[1]}, nil)
			return nil
		}
		fmt.Println(ui.Successf("renamed %s to %s", ui.Name(args[0]), ui.Name(args[1])))
		return nil
	},
}

var dropCmd = &cobra.Command{
	Use:   "drop <view>",
	Short: "Remove a view (the underlying rows stay)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return handleError(ErrStoreOpen, err, "")
		}
		defer s.Close()

		if err := s.Views().Remove(cmd.Context(), args[0]); err != nil {
			return fail(err)
		}
		if isJSONOutput() {
			outputSuccess(map[string]string{"dropped": args[0]}, nil)
			return nil
		}
		fmt.Println(ui.Successf("dropped %s", ui.Name(args[0])))
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <batch-id>",
	Short: "Remove the rows only this batch observed",
	Long: `Remove deletes the rows whose only provenance is the given batch. Rows
other batches also observed stay, losing just this batch's association.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return handleError(ErrStoreOpen, err, "")
		}
		defer s.Close()

		if err := s.RemoveBatch(cmd.Context(), args[0]); err != nil {
			return fail(err)
		}
		if isJSONOutput() {
			outputSuccess(map[string]string{"removed": args[0]}, nil)
			return nil
		}
		fmt.Println(ui.Successf("removed batch %s", ui.Name(args[0])))
		return nil
	},
}

func init() {
	viewsCmd.Flags().StringVar(&viewsType, "type", "", "only views over this observable type")
	rootCmd.AddCommand(viewsCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(dropCmd)
	rootCmd.AddCommand(removeCmd)
}
