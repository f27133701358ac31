package main

import (
	"context"
	"errors"
	"os"

	"github.com/desertthunder/audiograb/internal/services"
	"github.com/desertthunder/audiograb/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	configPath := ""
	if _, err := os.Stat("config.toml"); err == nil {
		if loadedConfig, err := shared.LoadConfig("config.toml"); err == nil {
			config = loadedConfig
			configPath = "config.toml"
		} else {
			logger.Warn("ignoring config.toml", "error", err)
		}
	}

	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: configPath,
		API:        services.NewAPIService(serverURL(config), nil),
		Logger:     logger,
	})
	defer runner.Close()

	app := &cli.Command{
		Name:     "audiograb",
		Usage:    "Download audio from YouTube and friends with yt-dlp",
		Version:  "0.1.0",
		Flags:    globalFlags(),
		Before:   runner.Before,
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		switch {
		case errors.Is(err, shared.ErrCancelled):
			logger.Warn("interrupted")
			runner.Close()
			os.Exit(130)
		case errors.Is(err, shared.ErrNotImplemented):
			logger.Warn("not implemented")
			runner.Close()
			os.Exit(0)
		default:
			runner.Close()
			logger.Fatalf("application error: %v", err)
		}
	}
}
