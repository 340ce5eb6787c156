package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pyritedb/pyrite/internal/config"
	"github.com/pyritedb/pyrite/internal/ui"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.CreateDefault()
		if err != nil {
			return handleError(ErrConfigInvalid, err, "")
		}
		if isJSONOutput() {
			outputSuccess(map[string]string{"config": path}, nil)
			return nil
		}
		fmt.Println(ui.Successf("config at %s", path))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
