package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/0xbhavyaalag/EcoSphere/internal/app"
	"github.com/0xbhavyaalag/EcoSphere/internal/config"
	"github.com/0xbhavyaalag/EcoSphere/internal/observability"
)

var rootCmd = &cobra.Command{
	Use:   "ecosphere",
	Short: "Litter reports, user location and municipal office lookup",
	Long: `
ecosphere serves the litter report API and offers operator commands to
inspect stored reports, resolve locations and find the municipal office
responsible for a point.
`,
	SilenceUsage: true,
}

func Execute(version string) {
	Version = version
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads an optional .env file and then the environment.
func loadConfig() (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return config.Load()
}

// withApp builds the application for a one-shot command and closes it afterwards.
func withApp(ctx context.Context, fn func(a *app.App, logger *slog.Logger) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := observability.NewLogger(cfg)

	a, err := app.New(ctx, cfg, logger, observability.NewMetrics())
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(context.Background()); err != nil {
			logger.Error("close error", "error", err)
		}
	}()
	return fn(a, logger)
}
