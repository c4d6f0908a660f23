package commands

import (
	"fmt"
	"io"

	"github.com/leapstack-labs/sqgen/internal/reconcile"
	"github.com/spf13/cobra"
)

// CheckOptions holds options for the check command.
type CheckOptions struct {
	Update bool
	Ignore bool
}

// NewCheckCommand creates the check command.
func NewCheckCommand() *cobra.Command {
	opts := &CheckOptions{}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check the declared build plugin version",
		Long: `Compare the SQLDelight gradle plugin version declared in the project's
build scripts with the running sqgen version.

Without flags an outdated declaration is reported as a notification with
update and ignore actions. --update rewrites the declared version in place;
--ignore silences the warning until a newer sqgen version runs.`,
		Example: `  # Report the plugin version status
  sqgen check

  # Rewrite an outdated declaration without prompting
  sqgen check --update

  # Silence the warning for the running version
  sqgen check --ignore`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "Rewrite an outdated plugin version to the running version")
	cmd.Flags().BoolVar(&opts.Ignore, "ignore", false, "Suppress the outdated warning for the running version")
	cmd.MarkFlagsMutuallyExclusive("update", "ignore")

	return cmd
}

func runCheck(cmd *cobra.Command, opts *CheckOptions) error {
	var co contextOptions
	if opts.Update || opts.Ignore {
		co.interactive = boolPtr(false)
	}
	cc, cleanup, err := NewCommandContext(cmd, co)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if !opts.Update && !opts.Ignore {
		ev, err := cc.Engine.Reconcile(ctx)
		if err != nil {
			return err
		}
		printEvaluation(out, ev, cc.Cfg.ProjectRoot)
		return nil
	}

	ev, err := cc.Engine.Evaluate(ctx)
	if err != nil {
		return err
	}
	printEvaluation(out, ev, cc.Cfg.ProjectRoot)
	if ev.Verdict != reconcile.VerdictOutdated {
		_, _ = fmt.Fprintln(out, "Nothing to apply")
		return nil
	}

	action := reconcile.ActionUpdate
	if opts.Ignore {
		action = reconcile.ActionIgnore
	}
	if err := cc.Engine.Apply(ctx, ev, action); err != nil {
		return fmt.Errorf("%s failed: %w", action, err)
	}

	switch action {
	case reconcile.ActionUpdate:
		_, _ = fmt.Fprintf(out, "Updated %s to %s\n", relPath(cc.Cfg.ProjectRoot, ev.Declaration.Path), ev.Running)
	case reconcile.ActionIgnore:
		_, _ = fmt.Fprintf(out, "Suppressed the warning for version %s\n", ev.Running)
	}
	return nil
}

func printEvaluation(out io.Writer, ev *reconcile.Evaluation, root string) {
	_, _ = fmt.Fprintf(out, "Plugin version: %s\n", ev.Verdict)
	_, _ = fmt.Fprintf(out, "  running:  %s\n", ev.Running)
	if ev.Declaration != nil {
		_, _ = fmt.Fprintf(out, "  declared: %s (%s:%d)\n",
			ev.Declaration.Version, relPath(root, ev.Declaration.Path), ev.Declaration.Span.Line)
	} else {
		_, _ = fmt.Fprintln(out, "  declared: none")
	}
	if ev.Suppressed != "" {
		_, _ = fmt.Fprintf(out, "  suppressed: %s\n", ev.Suppressed)
	}
}
