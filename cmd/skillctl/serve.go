package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jingkaihe/skillctl/pkg/api"
	"github.com/jingkaihe/skillctl/pkg/logger"
	"github.com/jingkaihe/skillctl/pkg/presenter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ServeConfig holds configuration for the serve command
type ServeConfig struct {
	Host string
	Port int
}

// NewServeConfig creates a new ServeConfig with default values
func NewServeConfig() *ServeConfig {
	return &ServeConfig{
		Host: "localhost",
		Port: 8080,
	}
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the skills corpus over a read-only HTTP API",
	Long: `Start a local HTTP server exposing the skills, their files, the lint report
and tree drift as JSON. The corpus is re-read on every request.

The server will be available at http://localhost:8080 by default.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		config := &ServeConfig{Host: cfg.Serve.Host, Port: cfg.Serve.Port}
		return runServeCommand(cmd.Context(), config)
	},
}

func init() {
	defaults := NewServeConfig()
	serveCmd.Flags().String("host", defaults.Host, "Host to bind the API server to")
	serveCmd.Flags().Int("port", defaults.Port, "Port to bind the API server to")

	viper.BindPFlag("serve.host", serveCmd.Flags().Lookup("host"))
	viper.BindPFlag("serve.port", serveCmd.Flags().Lookup("port"))
}

// validateServeConfig validates the serve configuration
func validateServeConfig(config *ServeConfig) error {
	if config.Host == "" {
		return errors.New("host cannot be empty")
	}

	if config.Host != "localhost" && config.Host != "0.0.0.0" {
		if ip := net.ParseIP(config.Host); ip == nil {
			if strings.Contains(config.Host, " ") || strings.Contains(config.Host, ":") {
				return errors.Errorf("invalid host: %s", config.Host)
			}
		}
	}

	if config.Port < 1 || config.Port > 65535 {
		return errors.Errorf("port must be between 1 and 65535, got %d", config.Port)
	}

	if config.Port < 1024 {
		logger.G(context.Background()).WithField("port", config.Port).Warn("using privileged port (< 1024) may require elevated permissions")
	}

	return nil
}

func runServeCommand(ctx context.Context, config *ServeConfig) error {
	if err := validateServeConfig(config); err != nil {
		return errors.Wrap(err, "invalid server configuration")
	}

	loader, err := newLoader(cfg)
	if err != nil {
		return err
	}

	server, err := api.NewServer(loader, &api.ServerConfig{
		Host:        config.Host,
		Port:        config.Port,
		LintOptions: lintOptions(cfg),
	})
	if err != nil {
		return errors.Wrap(err, "failed to create API server")
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.G(ctx).WithFields(map[string]any{
		"host": config.Host,
		"port": config.Port,
	}).Info("starting API server")
	presenter.Info("Press Ctrl+C to stop the server")

	if err := server.Start(ctx); err != nil {
		return err
	}

	presenter.Info(fmt.Sprintf("API server on %s:%d stopped", config.Host, config.Port))
	return nil
}
