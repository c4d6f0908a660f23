package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/leapstack-labs/sqgen/internal/pipeline"
	"github.com/leapstack-labs/sqgen/pkg/core"
	"github.com/spf13/cobra"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	var noPrompt bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Generate, then regenerate on every source change",
		Long: `Run a full generation pass, then follow file system changes below the
source directory until interrupted.

Created and modified files are re-parsed and regenerated together with the
files that reference their tables. Deleted files lose their generated output.
Renames are handled as a deletion of the old path and a creation of the new.`,
		Example: `  # Watch the project in the current directory
  sqgen watch

  # Watch with debug logging
  sqgen watch -v`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var co contextOptions
			if noPrompt {
				co.interactive = boolPtr(false)
			}
			return runWatch(cmd, co)
		},
	}

	cmd.Flags().BoolVar(&noPrompt, "no-prompt", false, "Print notifications without prompting for an action")

	return cmd
}

func runWatch(cmd *cobra.Command, co contextOptions) error {
	cc, cleanup, err := NewCommandContext(cmd, co)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	res, err := cc.Engine.Open(ctx)
	if err != nil {
		return err
	}
	printRunResult(out, res.Run, cc.Cfg.SourceDir)

	_, _ = fmt.Fprintf(out, "Watching %s (Ctrl+C to stop)\n", cc.Cfg.SourceDir)
	err = cc.Engine.Watch(ctx, func(ev core.Event, res *pipeline.RunResult) {
		_, _ = fmt.Fprintf(out, "%s %s\n", ev.Kind, relPath(cc.Cfg.SourceDir, ev.Path))
		printRunResult(out, res, cc.Cfg.SourceDir)
	})
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(out, "Stopped watching")
	return nil
}
