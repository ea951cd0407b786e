package main

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sheetbuilder/sheetbuilder/internal/config"
	"github.com/sheetbuilder/sheetbuilder/internal/home"
	"github.com/sheetbuilder/sheetbuilder/internal/server"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the sheetbuilder server",
	Long: `Start the sheetbuilder HTTP server.

The server accepts PDF uploads under /api/pdf and composes their pages
onto print sheets in the background. Configuration is read from the
--config file when given, otherwise from ./config.yaml or
~/.sheetbuilder/config.yaml, and any key can be overridden with a
SHEETBUILDER_ environment variable. Edits to the config file are picked
up without a restart.

Examples:
  sheetbuilder serve                    # Start on the configured port
  sheetbuilder serve --port 3000        # Start on a custom port
  sheetbuilder serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// Get home directory
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		path := cfgFile
		if path == "" && h.ConfigExists() {
			path = h.ConfigPath()
		}
		cm, err := config.NewManager(path)
		if err != nil {
			return err
		}
		cm.WatchConfig()
		cfg := cm.Get()

		// Set up logger
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: cfg.Server.SlogLevel(),
		}))

		// Flags win over the config file
		host := serveHost
		if host == "" {
			host = cfg.Server.Host
		}
		port := servePort
		if port == "" {
			port = strconv.Itoa(cfg.Server.Port)
		}

		// Create server
		srv, err := server.New(server.Config{
			Host:          host,
			Port:          port,
			ConfigManager: cm,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default from config)")
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (default from config)")

	rootCmd.AddCommand(serveCmd)
}
