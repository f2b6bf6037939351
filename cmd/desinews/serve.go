package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/deusflow/desinews/internal/app"
	"github.com/deusflow/desinews/internal/config"
	"github.com/deusflow/desinews/internal/logger"
)

var flagAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Long: `Serve the aggregated feed on /api/v1/news, the NewsAPI proxy on /api/news,
and /health and /metrics for monitoring. Stops gracefully on SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if flagAddr != "" {
			cfg.HTTPAddr = flagAddr
		}
		gin.SetMode(gin.ReleaseMode)
		if cfg.Debug {
			gin.SetMode(gin.DebugMode)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := app.New(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		logger.Info("configuration loaded",
			"addr", cfg.HTTPAddr,
			"cache", cfg.CacheBackend,
			"rss", cfg.RSSEnabled,
			"newsdata", cfg.NewsDataAPIKey != "",
		)
		logger.Debug("debug logging enabled", "gin_mode", gin.Mode())
		return a.Run(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "listen address, overrides HTTP_ADDR")
}
