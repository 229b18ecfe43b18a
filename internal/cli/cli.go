// Package cli provides the command-line interface for assetsync.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/klauern/assetsync/internal/config"
	"github.com/klauern/assetsync/internal/logging"
	"github.com/klauern/assetsync/internal/ui"
)

var (
	// Version is the current version of the application.
	Version = "dev"
	// Commit is the git commit hash.
	Commit = "unknown"
	// BuildDate is the date and time of the build.
	BuildDate = "unknown"
)

// Run executes the CLI application with the given context and arguments.
func Run(ctx context.Context, args []string) error {
	app := &cli.Command{
		Name:    "assetsync",
		Usage:   "Install and repair launcher artifact trees from manifests",
		Version: Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable verbose output (info level logging)",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug output (debug level logging, implies verbose)",
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "Disable colored output",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML or TOML config file (default: ~/.assetsync/config.yaml)",
				Sources: cli.EnvVars("ASSETSYNC_CONFIG"),
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			cfg, err := loadConfig(cmd.String("config"))
			if err != nil {
				return ctx, err
			}
			if err := configureColors(cmd, cfg); err != nil {
				return ctx, err
			}
			logger, err := configureLogging(cmd, cfg)
			if err != nil {
				return ctx, err
			}
			return withConfig(logging.NewContext(ctx, logger), cfg), nil
		},
		Commands: []*cli.Command{
			versionCommand(),
			configCommand(),
			syncCommand(),
			planCommand(),
			runtimeCommand(),
		},
	}
	return app.Run(ctx, args)
}

type configKey struct{}

func withConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// configFrom returns a copy of the run's configuration so commands can
// apply flag overrides without touching the shared value.
func configFrom(ctx context.Context) *config.Config {
	cfg, ok := ctx.Value(configKey{}).(*config.Config)
	if !ok || cfg == nil {
		return config.Default()
	}
	c := *cfg
	return &c
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", config.FilePath(), err)
		}
		return cfg, nil
	}
	cfg, err := config.LoadFromPath(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// configureColors sets up color output from the config and CLI flags.
func configureColors(cmd *cli.Command, cfg *config.Config) error {
	if cmd.Bool("no-color") {
		ui.DisableColors()
		return nil
	}
	return ui.SetColorMode(cfg.Output.Color)
}

// configureLogging builds the logger from the config and CLI flags and
// installs it as the default.
func configureLogging(cmd *cli.Command, cfg *config.Config) (*slog.Logger, error) {
	opts := logging.DefaultOptions()
	opts.JSON = cfg.Log.JSON

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	opts.Level = level

	if cmd.Bool("debug") {
		opts.Level = slog.LevelDebug
		opts.AddSource = true
	} else if cmd.Bool("verbose") && opts.Level > slog.LevelInfo {
		opts.Level = slog.LevelInfo
	}

	logger := logging.New(opts)
	logging.SetDefault(logger)

	logger.Debug("logging configured", slog.String("level", opts.Level.String()))

	return logger, nil
}
