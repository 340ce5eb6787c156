package cli

import (
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func findCommand(t *testing.T, name string) *cobra.Command {
	t.Helper()
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == name {
			return cmd
		}
	}
	t.Fatalf("command %q not registered", name)
	return nil
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{
		"load", "extract", "filter", "assign", "merge", "join",
		"lookup", "values", "count", "views", "rename", "drop",
		"remove", "types", "schema", "init", "version",
	}
	for _, name := range want {
		findCommand(t, name)
	}
}

func TestPersistentFlags(t *testing.T) {
	want := map[string]bool{
		"store":   false,
		"dsn":     false,
		"backend": false,
		"config":  false,
		"json":    false,
		"verbose": false,
	}
	rootCmd.PersistentFlags().VisitAll(func(flag *pflag.Flag) {
		if _, ok := want[flag.Name]; ok {
			want[flag.Name] = true
		}
	})
	for name, seen := range want {
		if !seen {
			t.Errorf("persistent flag --%s not registered", name)
		}
	}
}

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		command string
		flags   []string
	}{
		{command: "load", flags: []string{"batch"}},
		{command: "extract", flags: []string{"batch", "overwrite"}},
		{command: "filter", flags: []string{"overwrite"}},
		{command: "assign", flags: []string{"group-by", "sort-by", "desc", "limit", "offset", "overwrite"}},
		{command: "merge", flags: []string{"overwrite"}},
		{command: "join", flags: []string{"overwrite"}},
		{command: "lookup", flags: []string{"columns", "limit", "offset", "deref"}},
		{command: "views", flags: []string{"type"}},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			cmd := findCommand(t, tt.command)
			for _, name := range tt.flags {
				if cmd.Flags().Lookup(name) == nil {
					t.Errorf("%s: flag --%s not registered", tt.command, name)
				}
			}
		})
	}
}

// Flag names stay kebab-case so shell completion and docs look uniform.
func TestFlagNamingConvention(t *testing.T) {
	check := func(owner string, fs *pflag.FlagSet) {
		fs.VisitAll(func(flag *pflag.Flag) {
			if strings.ContainsAny(flag.Name, "_ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
				t.Errorf("%s: flag --%s is not kebab-case", owner, flag.Name)
			}
			if flag.Usage == "" {
				t.Errorf("%s: flag --%s has no usage string", owner, flag.Name)
			}
		})
	}
	check("root", rootCmd.PersistentFlags())
	for _, cmd := range rootCmd.Commands() {
		check(cmd.Name(), cmd.Flags())
	}
}

func TestCommandsDocumented(t *testing.T) {
	for _, cmd := range rootCmd.Commands() {
		if cmd.Hidden || cmd.Name() == "help" || cmd.Name() == "completion" {
			continue
		}
		if cmd.Short == "" {
			t.Errorf("command %q has no short description", cmd.Name())
		}
	}
}
