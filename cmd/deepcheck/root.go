// Package main provides the entry point for the deepcheck CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for deepcheck.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deepcheck",
		Short: "Forensic deepfake evidence scoring for audio and video files",
		Long: `deepcheck inspects audio and video files and estimates whether they were
synthetically generated or manipulated.

Three independent channels collect evidence: audio signal statistics, video
frame statistics and container metadata. Their anomalies are combined into a
confidence score between 0 and 1 and a verdict. Channels that cannot run are
left out and the remaining channel weights are redistributed.

Decoding requires ffmpeg and ffprobe on PATH (see 'deepcheck doctor').`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .deepcheck in current or home directory)")
	cmd.PersistentFlags().String("db-dir", "",
		"History database directory (default: XDG data directory)")

	cmd.AddCommand(NewAnalyzeCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewWatchCmd())
	cmd.AddCommand(NewValidateReportCmd())
	cmd.AddCommand(NewDoctorCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
