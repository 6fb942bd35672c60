package main

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/deepcheck/internal/config"
)

//go:embed templates/deepcheck.yaml
var configTemplate []byte

// errConfigExists is returned when init would replace a file without --force.
var errConfigExists = errors.New("configuration file already exists")

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a deepcheck configuration file with every default spelled out",
		Long: `Init writes a ` + config.DefaultConfigFile + ` file holding the built-in analysis settings.

Every key in the file matches a default, so deleting a line changes nothing.
Tune the values that matter for your footage:
- scoring: the verdict threshold, channel weights and per-kind weights
- audio / video: the rule thresholds of the signal channels
- metadata: rule severities and the generator signature list

Examples:
  # Create .deepcheck in the current directory
  deepcheck init

  # Write to another path, replacing an existing file
  deepcheck init -o cases/strict.yaml -f

  # Print the template instead of writing it
  deepcheck init --stdout > team.yaml`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile, "Path of the configuration file to write")
	cmd.Flags().BoolP("force", "f", false, "Replace an existing file")
	cmd.Flags().Bool("stdout", false, "Print the template to standard output")

	return cmd
}

func runInitCmd(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	outputPath, err := flags.GetString("output")
	if err != nil {
		return err
	}
	force, err := flags.GetBool("force")
	if err != nil {
		return err
	}
	toStdout, err := flags.GetBool("stdout")
	if err != nil {
		return err
	}

	if _, err := config.ParseConfigFile(configTemplate); err != nil {
		return fmt.Errorf("built-in template is invalid: %w", err)
	}

	out := cmd.OutOrStdout()
	if toStdout {
		_, err := out.Write(configTemplate)
		return err
	}

	if err := writeConfigTemplate(outputPath, force); err != nil {
		if errors.Is(err, errConfigExists) {
			return fmt.Errorf("%w: %s (use -f to overwrite)", err, outputPath)
		}
		return err
	}

	fmt.Fprintf(out, "Wrote %s\n", outputPath)
	fmt.Fprintf(out, "deepcheck picks it up from the current or home directory, or via --config %s\n", outputPath)
	return nil
}

// writeConfigTemplate creates path with the embedded template. Without force
// the file is opened exclusively, so a concurrent writer or an existing file
// is never clobbered.
func writeConfigTemplate(path string, force bool) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	mode := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !force {
		mode = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	f, err := os.OpenFile(path, mode, 0o600) //nolint:gosec // User-chosen output path is intentional
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return errConfigExists
		}
		return fmt.Errorf("create config file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close config file: %w", cerr)
		}
	}()

	if _, err := f.Write(configTemplate); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
