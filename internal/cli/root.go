// Package cli implements the command-line interface.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pyritedb/pyrite/internal/config"
	"github.com/pyritedb/pyrite/internal/identity"
	"github.com/pyritedb/pyrite/internal/store"
)

var (
	// Global flags
	storeName  string // named store from config
	dsnFlag    string // explicit DSN (rare)
	backend    string // engine for --dsn
	configPath string
	verbose    bool

	// Resolved values
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "pyrite",
	Short: "Pyrite - query cyber observations as tables",
	Long: `Pyrite ingests observation bundles into a relational store and lets you
query them with observation patterns that compile to SQL: extract views by
pattern, follow references across objects, and reshape results without
writing SQL yourself.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch cmd.Name() {
		case "init", "completion", "help", "version":
			return nil
		}
		if cmd.Parent() != nil && cmd.Parent().Name() == "completion" {
			return nil
		}

		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		var err error
		if configPath != "" {
			cfg, err = config.LoadFrom(configPath)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if cfg.LogLevel != "" && !verbose {
			if err := level.UnmarshalText([]byte(cfg.LogLevel)); err == nil {
				slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
			}
		}
		return nil
	},
}

// openSession resolves the store selection and opens it:
// explicit --dsn > named --store > default store from config.
func openSession() (*store.Session, error) {
	st := config.Store{Backend: backend, DSN: dsnFlag}
	if dsnFlag == "" {
		var err error
		st, err = cfg.GetStore(storeName)
		if err != nil {
			return nil, fmt.Errorf("%w\n\nEither pass --dsn, or configure stores in %s",
				err, config.DefaultPath())
		}
	}
	if st.Backend == "" {
		st.Backend = "sqlite"
	}

	switch st.Backend {
	case "sqlite":
		return store.OpenSQLite(st.DSN, slog.Default())
	case "postgres":
		return store.OpenPostgres(st.DSN, slog.Default())
	default:
		return nil, fmt.Errorf("unknown backend %q (want sqlite or postgres)", st.Backend)
	}
}

// identityMaker builds the identity maker, honoring the config override.
func identityMaker() (*identity.Maker, error) {
	if cfg != nil && cfg.IdentityConfig != "" {
		return identity.NewMakerFromFile(cfg.IdentityConfig)
	}
	return identity.NewMaker(), nil
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&storeName, "store", "", "named store from config")
	rootCmd.PersistentFlags().StringVar(&dsnFlag, "dsn", "", "explicit store DSN (sqlite path or postgres URL)")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "engine for --dsn: sqlite or postgres")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "output JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}
