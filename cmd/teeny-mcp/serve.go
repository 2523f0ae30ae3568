package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/teeny-mcp/pkg/config"
	"github.com/rcliao/teeny-mcp/pkg/logutil"
	"github.com/rcliao/teeny-mcp/pkg/toolserver"
)

type serveOptions struct {
	db        string
	resources string
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the SQLite tool server over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(root.envFile)
			if err != nil {
				return err
			}
			if opts.db != "" {
				cfg.DBPath = opts.db
			}
			if opts.resources != "" {
				cfg.ResourceDir = opts.resources
			}

			// stdout carries the MCP stream, so logs go to stderr.
			log, closer, err := logutil.NewTee(os.Stderr, cfg.LogDir, logutil.ServerLogFile, logutil.Options{
				Level:     slog.LevelInfo,
				AddSource: cfg.Debug,
			})
			if err != nil {
				return err
			}
			defer closer.Close()

			srv, err := toolserver.New(toolserver.Config{DBPath: cfg.DBPath, ResourceDir: cfg.ResourceDir}, log)
			if err != nil {
				return err
			}
			defer srv.Close()
			return srv.Serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&opts.db, "db", "", "SQLite database path (overrides SERVER_DB_PATH)")
	cmd.Flags().StringVar(&opts.resources, "resources", "", "resource directory (overrides SERVER_RESOURCE_DIR)")
	return cmd
}
