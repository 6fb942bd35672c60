package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/deepcheck/internal/report"
)

// errInvalidReports is returned when at least one file fails validation.
var errInvalidReports = errors.New("one or more reports are invalid")

// NewValidateReportCmd creates the validate-report command.
func NewValidateReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate-report [report.json...]",
		Short: "Validate JSON reports against the report schema",
		Long: `Validate-report checks JSON reports produced by 'deepcheck analyze --json',
the batch output directory or the HTTP API against the embedded JSON Schema.

Examples:
  # Validate the reports of a batch run
  deepcheck validate-report reports/*_report.json

  # Print the schema
  deepcheck validate-report --schema`,
		Args: cobra.ArbitraryArgs,
		RunE: runValidateReportCmd,
	}

	cmd.Flags().Bool("schema", false, "Print the report JSON Schema and exit")

	return cmd
}

// runValidateReportCmd executes the validate-report command.
func runValidateReportCmd(cmd *cobra.Command, args []string) error {
	printSchema, err := cmd.Flags().GetBool("schema")
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if printSchema {
		_, err := out.Write(report.Schema())
		return err
	}

	if len(args) == 0 {
		return errors.New("no report given (specify one or more JSON report files)")
	}

	invalid := 0
	for _, path := range args {
		data, err := os.ReadFile(path) //nolint:gosec // user-provided report path
		if err == nil {
			err = report.Validate(data)
		}
		if err != nil {
			invalid++
			fmt.Fprintf(out, "INVALID  %s: %v\n", path, err)
			continue
		}
		fmt.Fprintf(out, "OK       %s\n", path)
	}

	if invalid > 0 {
		return fmt.Errorf("%w: %d of %d", errInvalidReports, invalid, len(args))
	}
	return nil
}
