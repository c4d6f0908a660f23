package commands

import (
	"fmt"
	"os"
	"path/filepath"

	sharedcfg "github.com/leapstack-labs/sqgen/internal/config"
	"github.com/spf13/cobra"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new sqgen project",
		Long: `Initialize a new sqgen project with a default layout and configuration.

This creates:
  - src/ directory with an example .sq file
  - sqgen.yaml configuration file
  - .gitignore excluding the state directory`,
		Example: `  # Initialize in current directory
  sqgen init

  # Initialize in a new directory
  sqgen init my-project

  # Force overwrite existing files
  sqgen init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runInit(cmd, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")

	return cmd
}

func runInit(cmd *cobra.Command, dir string, force bool) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	configPath := filepath.Join(dir, sharedcfg.ConfigFileName)
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", sharedcfg.ConfigFileName)
	}

	if err := copyTemplate("minimal", dir, force); err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}

	out := cmd.OutOrStdout()
	files, _ := listTemplateFiles("minimal")
	for _, f := range files {
		_, _ = fmt.Fprintf(out, "  created %s\n", f)
	}
	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintln(out, "sqgen project initialized!")
	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintln(out, "Next steps:")
	_, _ = fmt.Fprintln(out, "  1. Add .sq files to src/")
	_, _ = fmt.Fprintln(out, "  2. Run 'sqgen generate' to write Go code to gen/")
	_, _ = fmt.Fprintln(out, "  3. Run 'sqgen watch' to regenerate on every change")
	return nil
}
