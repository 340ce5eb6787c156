package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pyritedb/pyrite/internal/ingest"
	"github.com/pyritedb/pyrite/internal/ui"
)

var loadBatch string

var loadCmd = &cobra.Command{
	Use:   "load <bundle.json>...",
	Short: "Ingest observation bundles into the store",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return handleError(ErrStoreOpen, err, "")
		}
		defer s.Close()

		maker, err := identityMaker()
		if err != nil {
			return handleError(ErrConfigInvalid, err, "")
		}
		engine := ingest.New(s, maker, nil)

		var reports []*ingest.Report
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return handleError(ErrFileRead, err, "")
			}
			batch := loadBatch
			if batch == "" {
				batch = defaultBatchID(path)
			}
			report, err := engine.IngestBundle(cmd.Context(), batch, data)
			if err != nil {
				return handleError(ErrBundleInvalid,
					fmt.Errorf("loading %s: %w", path, err), "")
			}
			reports = append(reports, report)
		}

		if isJSONOutput() {
			outputSuccess(reports, &Meta{Count: len(reports)})
			return nil
		}
		for _, r := range reports {
			fmt.Println(ui.Successf("batch %s: %d observations, %d rows",
				ui.Name(r.BatchID), r.Observations, r.Rows))
			for typ, n := range r.ByType {
				fmt.Printf("  %s %s\n", ui.Hint(fmt.Sprintf("%6d", n)), typ)
			}
		}
		return nil
	},
}

// defaultBatchID derives a batch id from the file name and load time, so
// repeated loads of the same file stay distinguishable.
func defaultBatchID(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return base + "@" + time.Now().UTC().Format("20060102T150405Z")
}

func init() {
	loadCmd.Flags().StringVar(&loadBatch, "batch", "", "batch id recorded against every row (default: derived from file name)")
	rootCmd.AddCommand(loadCmd)
}
