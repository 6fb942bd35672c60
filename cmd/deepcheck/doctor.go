package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/deepcheck/internal/media"
	"github.com/nao1215/deepcheck/internal/report"
)

// errMissingTools is returned when a required external binary is missing.
var errMissingTools = errors.New("required external tools are missing")

// NewDoctorCmd creates the doctor command.
func NewDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that the external decoding tools are available",
		Long: `Doctor looks up the ffmpeg and ffprobe binaries configured in the
tools section of the configuration file. Without them the audio and video
channels fail and only the metadata channel can run on EXIF data.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			tools := cfg.Analysis.Tools
			statuses := media.CheckBinaries(media.Requirements(tools.FFmpeg, tools.FFprobe))

			missing := 0
			rows := make([][]string, 0, len(statuses))
			for _, s := range statuses {
				state := "ok"
				if !s.Available {
					state = "missing: " + s.Detail
					missing++
				}
				rows = append(rows, []string{s.Name, s.Command, state, s.Description})
			}
			fmt.Fprintln(cmd.OutOrStdout(), report.RenderTable(
				[]string{"Tool", "Command", "Status", "Used For"}, rows, nil))

			if missing > 0 {
				return errMissingTools
			}
			return nil
		},
	}
}
