package commands

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/leapstack-labs/sqgen/internal/pipeline"
	"github.com/spf13/cobra"
)

// GenerateOptions holds options for the generate command.
type GenerateOptions struct {
	NoPrompt bool
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand() *cobra.Command {
	opts := &GenerateOptions{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate Go code for all source files",
		Long: `Index every managed source file, then generate one Go file per source file.

All files are registered in the symbol table before any generation starts, so
queries may reference tables declared in any file. Generated files are only
rewritten when their content changes. After generation the build plugin
version is checked against the running sqgen version.`,
		Example: `  # Generate code for the project in the current directory
  sqgen generate

  # Generate without prompting on a version mismatch
  sqgen generate --no-prompt`,
		Aliases: []string{"gen"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGenerate(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.NoPrompt, "no-prompt", false, "Print notifications without prompting for an action")

	return cmd
}

func runGenerate(cmd *cobra.Command, opts *GenerateOptions) error {
	var co contextOptions
	if opts.NoPrompt {
		co.interactive = boolPtr(false)
	}
	cc, cleanup, err := NewCommandContext(cmd, co)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := cc.Engine.Open(cmd.Context())
	if err != nil {
		return err
	}

	printRunResult(cmd.OutOrStdout(), res.Run, cc.Cfg.SourceDir)
	if res.Run.HasErrors() {
		return fmt.Errorf("generation failed for %d file(s)", len(res.Run.Errors))
	}
	return nil
}

// printRunResult writes a one-line summary followed by per-file errors.
func printRunResult(w io.Writer, res *pipeline.RunResult, sourceDir string) {
	_, _ = fmt.Fprintf(w, "%d file(s): %d generated, %d unchanged", res.Files, res.Generated, res.Unchanged)
	if res.Removed > 0 {
		_, _ = fmt.Fprintf(w, ", %d removed", res.Removed)
	}
	if res.Discarded > 0 {
		_, _ = fmt.Fprintf(w, ", %d discarded", res.Discarded)
	}
	if len(res.Errors) > 0 {
		_, _ = fmt.Fprintf(w, ", %d failed", len(res.Errors))
	}
	_, _ = fmt.Fprintf(w, " in %s\n", res.Duration.Round(time.Millisecond))

	for _, fe := range res.Errors {
		_, _ = fmt.Fprintf(w, "  %s: %s\n", relPath(sourceDir, fe.Path), fe.Err)
	}
}

func relPath(base, path string) string {
	if rel, err := filepath.Rel(base, path); err == nil {
		return rel
	}
	return path
}
