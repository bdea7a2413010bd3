package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/offmirror/internal/config"
)

//go:embed templates/offmirror.yaml
var configTemplate embed.FS

// templatePath is the template's path inside configTemplate.
const templatePath = "templates/offmirror.yaml"

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create an offmirror configuration file",
		Long: `Init writes an annotated .offmirror.yaml to the current directory.

The file holds per-host request settings that do not fit on the command
line: basic auth credentials, cookies and extra headers.

Examples:
  # Create .offmirror.yaml in the current directory
  offmirror init

  # Create the user-wide configuration
  offmirror init -o ~/.config/offmirror/config.yaml

  # Overwrite an existing file
  offmirror init -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")

	return cmd
}

func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := configTemplate.ReadFile(templatePath)
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// The file may hold passwords.
	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to configure per-host settings such as:")
	fmt.Fprintln(out, "  - Basic auth credentials")
	fmt.Fprintln(out, "  - Session cookies")
	fmt.Fprintln(out, "  - Extra request headers")

	return nil
}
