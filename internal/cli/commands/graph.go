package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/leapstack-labs/sqgen/internal/dag"
	"github.com/spf13/cobra"
)

// NewGraphCommand creates the graph command.
func NewGraphCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Show which source files depend on which",
		Long: `Index every managed source file and print the file dependency graph.

A file depends on another when it references a table or view the other file
declares. Changing a file regenerates its dependents. Files are grouped in
levels when the graph has no cycles.`,
		Example: `  # Show the dependency graph
  sqgen graph`,
		Aliases: []string{"deps"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd, contextOptions{interactive: boolPtr(false)})
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := cc.Engine.Index(cmd.Context())
			if err != nil {
				return err
			}
			for _, fe := range res.Errors {
				cc.Logger.Warn("file not indexed", "path", fe.Path, "error", fe.Err)
			}
			renderGraph(cmd.OutOrStdout(), cc.Engine.Graph(), cc.Cfg.SourceDir)
			return nil
		},
	}
	return cmd
}

func renderGraph(w io.Writer, g *dag.Graph, sourceDir string) {
	rel := func(paths []string) string {
		out := make([]string, len(paths))
		for i, p := range paths {
			out[i] = relPath(sourceDir, p)
		}
		return strings.Join(out, ", ")
	}
	printFile := func(path string) {
		_, _ = fmt.Fprintf(w, "  %s\n", relPath(sourceDir, path))
		if deps := g.Dependencies(path); len(deps) > 0 {
			_, _ = fmt.Fprintf(w, "    depends on: %s\n", rel(deps))
		}
		if users := g.Dependents(path); len(users) > 0 {
			_, _ = fmt.Fprintf(w, "    used by: %s\n", rel(users))
		}
		if missing := g.Unresolved(path); len(missing) > 0 {
			_, _ = fmt.Fprintf(w, "    unresolved: %s\n", strings.Join(missing, ", "))
		}
	}

	levels, err := g.Levels()
	if err != nil {
		_, _ = fmt.Fprintf(w, "Dependency graph (%v):\n\n", err)
		for _, path := range g.Files() {
			printFile(path)
		}
	} else {
		_, _ = fmt.Fprintln(w, "Dependency graph (levels):")
		_, _ = fmt.Fprintln(w)
		for i, level := range levels {
			_, _ = fmt.Fprintf(w, "Level %d:\n", i)
			for _, path := range level {
				printFile(path)
			}
			_, _ = fmt.Fprintln(w)
		}
	}

	_, _ = fmt.Fprintf(w, "Total: %d files, %d dependencies\n", g.FileCount(), g.EdgeCount())
}
