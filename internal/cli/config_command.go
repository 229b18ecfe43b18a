package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/klauern/assetsync/internal/config"
	"github.com/klauern/assetsync/internal/ui"
)

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Show or initialize the configuration",
		Commands: []*cli.Command{
			configShowCommand(),
			configInitCommand(),
			configPathCommand(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return showConfig(ctx, "yaml")
		},
	}
}

func configShowCommand() *cli.Command {
	return &cli.Command{
		Name:  "show",
		Usage: "Print the effective configuration",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "yaml",
				Usage:   "Output format (yaml, toml)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return showConfig(ctx, cmd.String("format"))
		},
	}
}

func showConfig(ctx context.Context, format string) error {
	cfg := configFrom(ctx)

	var asTOML bool
	switch format {
	case "yaml", "yml":
	case "toml":
		asTOML = true
	default:
		return fmt.Errorf("unsupported format %q (valid: yaml, toml)", format)
	}

	data, err := cfg.Encode(asTOML)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	fmt.Printf("# assetsync configuration (%s)\n", config.FilePath())
	fmt.Print(string(data))
	return nil
}

func configInitCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Write the default configuration file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "path",
				Usage: "Where to write the file; .toml selects TOML (default: ~/.assetsync/config.yaml)",
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Overwrite an existing file",
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			path := cmd.String("path")
			if path == "" {
				path = config.FilePath()
			}

			if _, err := os.Stat(path); err == nil && !cmd.Bool("force") {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}

			if err := config.Default().SaveToPath(path); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Println(ui.StatusSuccess("Wrote " + path))
			return nil
		},
	}
}

func configPathCommand() *cli.Command {
	return &cli.Command{
		Name:  "path",
		Usage: "Print the default config file location",
		Action: func(_ context.Context, _ *cli.Command) error {
			fmt.Println(config.FilePath())
			return nil
		},
	}
}
