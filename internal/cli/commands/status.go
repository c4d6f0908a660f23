package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/sqgen/pkg/core"
	"github.com/spf13/cobra"
)

// NewStatusCommand creates the status command.
func NewStatusCommand() *cobra.Command {
	var runID string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show generation history",
		Long: `Show the most recent generation recorded for each source file, or every
generation of one run with --run.`,
		Example: `  # Latest generation per source file
  sqgen status

  # Generations of a single run
  sqgen status --run 3f1c2a4e-...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, runID)
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "Show the generations of one run")

	return cmd
}

func runStatus(cmd *cobra.Command, runID string) error {
	cc, cleanup, err := NewCommandContext(cmd, contextOptions{interactive: boolPtr(false)})
	if err != nil {
		return err
	}
	defer cleanup()

	store := cc.Engine.Store()
	var gens []core.Generation
	if runID != "" {
		gens, err = store.RunGenerations(cmd.Context(), runID)
	} else {
		gens, err = store.LatestGenerations(cmd.Context())
	}
	if err != nil {
		return fmt.Errorf("failed to read generation history: %w", err)
	}

	renderGenerations(cmd.OutOrStdout(), gens, cc.Cfg.SourceDir, cc.Cfg.ProjectRoot)
	return nil
}

func renderGenerations(w io.Writer, gens []core.Generation, sourceDir, root string) {
	if len(gens) == 0 {
		_, _ = fmt.Fprintln(w, "(no generations recorded)")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Source", "Output", "Stamp", "Written", "Generated At", "Run"})
	for _, g := range gens {
		written := "no"
		if g.Written {
			written = "yes"
		}
		t.AppendRow(table.Row{
			relPath(sourceDir, g.Source),
			relPath(root, g.Output),
			fmt.Sprintf("%016x", g.Stamp),
			written,
			g.At.Local().Format(time.DateTime),
			shortID(g.RunID),
		})
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d files)\n", len(gens))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
