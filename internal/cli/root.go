// Package cli provides the command-line interface for GCTool.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xeoh/GCTool/internal/cli/commands"
	"github.com/xeoh/GCTool/internal/cli/plugins"
)

// Execute runs the root command and returns the exit code.
func Execute() int {
	return run(context.Background(), os.Args[1:], plugins.StdStreams())
}

func run(ctx context.Context, args []string, streams plugins.Streams) int {
	commands.ExitCode = commands.ExitOK
	rootCmd := NewRootCommand()
	rootCmd.SetArgs(args)
	rootCmd.SetIn(streams.In)
	rootCmd.SetOut(streams.Out)
	rootCmd.SetErr(streams.Err)

	// Unknown sub-commands may be plugins
	pluginCandidate := ""
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' && !isBuiltinCommand(rootCmd, args[0]) {
		pluginCandidate = args[0]
		if pluginPath, err := plugins.FindPlugin(pluginCandidate); err == nil {
			return plugins.Execute(ctx, pluginPath, args[1:], streams)
		}
	}

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if pluginCandidate != "" {
			_, _ = fmt.Fprintln(streams.Err, plugins.FormatNotFoundError(pluginCandidate))
			return commands.ExitError
		}
		// SilenceErrors prevents Cobra from printing this
		_, _ = fmt.Fprintf(streams.Err, "Error: %v\n", err)
		return commands.ExitError
	}
	return commands.ExitCode
}

// isBuiltinCommand checks if a command name is a built-in cobra command.
func isBuiltinCommand(rootCmd *cobra.Command, name string) bool {
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == name || cmd.HasAlias(name) {
			return true
		}
	}
	return name == "help" || name == "completion"
}

// NewRootCommand creates the root cobra command.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gctool",
		Short: "Analyze CMS garbage collector logs",
		Long: `GCTool parses CMS garbage collector logs and reports pause statistics.

It reconstructs GC events that background writer threads split across
lines, classifies them (full GC, minor GC, initial mark, final remark,
concurrent phases) and reports for every stop-the-world category:
  - Count, total, mean, standard deviation and median pause
  - Shortest and longest pause
  - Student-t confidence intervals for the mean pause
  - Outlier pauses (one-sided Grubbs' test)

Run 'gctool analyze' for one-off reports or 'gctool serve' to accept log
uploads over HTTP.

PLUGINS:
  GCTool supports plugins for extended functionality. Plugins are standalone
  binaries named gctool-<command> that are automatically discovered and invoked.

  Plugin locations (searched in order):
    1. $GCTOOL_PLUGIN_DIR
    2. Same directory as the gctool binary
    3. ~/.gctool/plugins/
    4. Anywhere in PATH`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewAnalyzeCommand())
	rootCmd.AddCommand(commands.NewDetectCommand())
	rootCmd.AddCommand(commands.NewDiagnoseCommand())
	rootCmd.AddCommand(commands.NewValidateCommand())
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	return rootCmd
}
