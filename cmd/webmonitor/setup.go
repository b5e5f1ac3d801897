package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli"

	"webmonitor-engine/internal/config"
	"webmonitor-engine/internal/engine"
)

// loadConfig bootstraps and loads config.yml from the data directory.
func loadConfig(c *cli.Context) (config.Config, string, error) {
	dataDir := config.ResolveDataDir(c.GlobalString("data-dir"))
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return config.Config{}, "", err
	}
	path, err := config.EnsureUserConfig(dataDir)
	if err != nil {
		return config.Config{}, "", fmt.Errorf("config bootstrap failed: %w", err)
	}
	raw, err := config.Load(path)
	if err != nil {
		return config.Config{}, "", fmt.Errorf("config load failed (%s): %w", path, err)
	}
	cfg, vr := config.NormalizeAndValidate(raw)
	if !vr.OK() {
		return config.Config{}, "", fmt.Errorf("config %s is invalid: %v", path, vr.Errors)
	}
	if cfg.App.DataDir == "" {
		cfg.App.DataDir = dataDir
	}
	for _, w := range vr.Warnings {
		newLogger(cfg, os.Stderr).Warn("config: " + w)
	}
	return cfg, path, nil
}

func newLogger(cfg config.Config, w io.Writer) *slog.Logger {
	level, _ := config.ParseLevel(cfg.App.LogLevel)
	opts := &slog.HandlerOptions{Level: level}
	if cfg.App.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// openPassive opens an engine that reads and writes the store without
// scheduling, so it can run next to `webmonitor serve`.
func openPassive(c *cli.Context) (*engine.Engine, error) {
	cfg, _, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	cfg.Jobs = nil
	if cfg.App.LogLevel != "debug" {
		cfg.App.LogLevel = "warn"
	}
	return engine.New(context.Background(), cfg, engine.Deps{
		Logger:  newLogger(cfg, os.Stderr),
		Passive: true,
	})
}
