package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/deepcheck/internal/config"
	"github.com/nao1215/deepcheck/internal/log"
	"github.com/nao1215/deepcheck/internal/server"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis engine over HTTP",
		Long: `Serve exposes the analysis engine as a small JSON API.

Routes:
  GET  /health                             liveness and version
  GET  /v1/schema                          JSON Schema of the report
  POST /v1/analyses {"path": "..."}        analyze a file on the server
  GET  /v1/analyses/:id                    stored report
  GET  /v1/assets/:fingerprint/history     stored runs of an asset

A run without evidence answers 422 with status "indeterminate"; a run
cancelled by the client or the timeout answers 499 with status "cancelled".

Examples:
  # Serve files below /srv/media on the default address
  deepcheck serve --root /srv/media

  # Listen on all interfaces without storing reports
  deepcheck serve --listen :8080 --no-save`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	addAnalysisFlags(cmd)
	cmd.Flags().StringP("listen", "l", "",
		"Listen address (default from config, then "+config.DefaultListenAddress+")")
	cmd.Flags().StringP("root", "r", "",
		"Only analyze files below this directory")

	return cmd
}

// runServeCmd executes the serve command.
func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, file, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyAnalysisFlags(cmd, cfg); err != nil {
		return err
	}
	if err := cfg.Analysis.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if _, err := config.ParseChannels(cfg.Only); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	listen, err := cmd.Flags().GetString("listen")
	if err != nil {
		return err
	}
	listen = listenAddress(listen, file)

	root, err := cmd.Flags().GetString("root")
	if err != nil {
		return err
	}

	logger := log.NewSecureJSONLogger(os.Stderr, cfg.Verbose)

	engine, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}

	opts := []server.Option{
		server.WithLogger(logger),
		server.WithTimeout(cfg.Timeout),
		server.WithVersion(getVersion()),
	}
	if root != "" {
		opts = append(opts, server.WithRoot(root))
	}

	db, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		opts = append(opts, server.WithStore(db))
	}

	ctx, cancel := signalContext()
	defer cancel()

	return server.New(engine, opts...).ListenAndServe(ctx, listen)
}

// listenAddress picks the listen address: flag, then configuration file,
// then the built-in default.
func listenAddress(flag string, file *config.File) string {
	if flag != "" {
		return flag
	}
	if file != nil && file.Server.Listen != "" {
		return file.Server.Listen
	}
	return config.DefaultListenAddress
}
