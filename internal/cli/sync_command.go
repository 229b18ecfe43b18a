package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/klauern/assetsync/internal/config"
	"github.com/klauern/assetsync/internal/logging"
	"github.com/klauern/assetsync/internal/manifest"
	"github.com/klauern/assetsync/internal/metrics"
	"github.com/klauern/assetsync/internal/model"
	"github.com/klauern/assetsync/internal/progress"
	"github.com/klauern/assetsync/internal/sync"
	"github.com/klauern/assetsync/internal/ui"
)

func manifestFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "manifest",
			Aliases:  []string{"m"},
			Usage:    "Manifest path or http(s) URL",
			Required: true,
		},
		&cli.StringFlag{
			Name:    "type",
			Aliases: []string{"t"},
			Value:   manifest.TypeRuntime.String(),
			Usage:   "Manifest type (runtime, assets, version)",
		},
		&cli.StringFlag{
			Name:  "asset-base-url",
			Usage: "Object store asset indexes resolve against",
		},
	}
}

func engineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "root",
			Aliases: []string{"r"},
			Usage:   "Directory to install artifacts into",
		},
		&cli.IntFlag{
			Name:    "concurrency",
			Aliases: []string{"j"},
			Usage:   "Number of parallel downloads",
		},
		&cli.StringFlag{
			Name:  "os",
			Usage: "Target OS family (windows, linux, osx); defaults to the host",
		},
		&cli.StringFlag{
			Name:  "arch",
			Usage: "Target architecture (x86_64, x86, arm64); defaults to the host",
		},
	}
}

func runFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:    "dry-run",
			Aliases: []string{"d"},
			Usage:   "Print the plan without modifying files",
		},
		&cli.StringFlag{
			Name:  "metrics-file",
			Usage: "Write Prometheus textfile metrics here after the run",
		},
	}
}

func flags(groups ...[]cli.Flag) []cli.Flag {
	var out []cli.Flag
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:      "sync",
		Usage:     "Reconcile the artifact tree with a manifest",
		UsageText: "assetsync sync --manifest <path|url> [options]",
		Description: `Download, verify and link every artifact a manifest lists for the
   target platform. Files already present with the right SHA-1 are left alone.

   Examples:
     assetsync sync -m runtime.json -r ~/games/runtime
     assetsync sync -t assets -m https://example.test/indexes/5.json
     assetsync sync --dry-run -t version -m 1.20.1.json --os windows`,
		Flags: flags(manifestFlags(), engineFlags(), runFlags()),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s, err := resolveSettings(ctx, cmd)
			if err != nil {
				return err
			}
			artifacts, err := loadManifest(ctx, cmd, s)
			if err != nil {
				return err
			}
			return execute(ctx, s, artifacts, cmd.Bool("dry-run"))
		},
	}
}

func planCommand() *cli.Command {
	return &cli.Command{
		Name:      "plan",
		Usage:     "Show what a sync would change",
		UsageText: "assetsync plan --manifest <path|url> [options]",
		Flags:     flags(manifestFlags(), engineFlags()),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s, err := resolveSettings(ctx, cmd)
			if err != nil {
				return err
			}
			artifacts, err := loadManifest(ctx, cmd, s)
			if err != nil {
				return err
			}
			return execute(ctx, s, artifacts, true)
		},
	}
}

func runtimeCommand() *cli.Command {
	return &cli.Command{
		Name:      "runtime",
		Usage:     "Install a runtime component from a runtime index",
		UsageText: "assetsync runtime --index <path|url> --component <name> [options]",
		Description: `Select the build of a runtime component for the target platform from
   a runtime index, verify its files manifest and sync it. Without --root the
   component is installed under <sync.root>/runtime/<component>.`,
		Flags: flags([]cli.Flag{
			&cli.StringFlag{
				Name:     "index",
				Aliases:  []string{"i"},
				Usage:    "Runtime index path or http(s) URL",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "component",
				Usage: "Runtime component to install, such as java-runtime-gamma",
			},
			&cli.BoolFlag{
				Name:  "list",
				Usage: "List the components available for the target platform",
			},
		}, engineFlags(), runFlags()),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s, err := resolveSettings(ctx, cmd)
			if err != nil {
				return err
			}
			return runRuntime(ctx, cmd, s)
		},
	}
}

// settings are the resolved inputs of one engine run.
type settings struct {
	cfg      *config.Config
	root     string
	platform model.Platform
	loader   *manifest.Loader
	rootSet  bool
}

func resolveSettings(ctx context.Context, cmd *cli.Command) (*settings, error) {
	cfg := configFrom(ctx)

	if cmd.IsSet("root") {
		cfg.Sync.Root = cmd.String("root")
	}
	if cmd.IsSet("concurrency") {
		cfg.Sync.Concurrency = int(cmd.Int("concurrency"))
	}
	if v := cmd.String("os"); v != "" {
		cfg.Platform.OS = v
	}
	if v := cmd.String("arch"); v != "" {
		cfg.Platform.Arch = v
	}
	if v := cmd.String("asset-base-url"); v != "" {
		cfg.Manifest.AssetBaseURL = v
	}
	if v := cmd.String("metrics-file"); v != "" {
		cfg.Metrics.Textfile = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	p, err := cfg.ResolvePlatform()
	if err != nil {
		return nil, err
	}

	return &settings{
		cfg:      cfg,
		root:     cfg.RootPath(),
		platform: p,
		loader:   manifest.NewLoader(manifest.WithUserAgent(userAgent())),
		rootSet:  cmd.IsSet("root"),
	}, nil
}

func loadManifest(ctx context.Context, cmd *cli.Command, s *settings) ([]model.Artifact, error) {
	typ, err := manifest.ParseType(cmd.String("type"))
	if err != nil {
		return nil, err
	}

	location := cmd.String("manifest")
	rc, err := s.loader.Open(ctx, location)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	artifacts, err := manifest.Decode(typ, rc, manifest.DecodeOptions{
		Platform:     s.platform,
		AssetBaseURL: s.cfg.Manifest.AssetBaseURL,
	})
	if err != nil {
		return nil, err
	}
	logging.WithContext(ctx).Debug("manifest loaded",
		logging.URL(location),
		logging.Kind(typ),
		logging.Count(len(artifacts)),
	)
	return artifacts, nil
}

func runRuntime(ctx context.Context, cmd *cli.Command, s *settings) error {
	rc, err := s.loader.Open(ctx, cmd.String("index"))
	if err != nil {
		return err
	}
	idx, err := manifest.DecodeRuntimeIndex(rc)
	_ = rc.Close()
	if err != nil {
		return err
	}

	if cmd.Bool("list") {
		names, err := idx.Components(s.platform)
		if err != nil {
			return err
		}
		fmt.Printf("Runtime components for %s:\n", s.platform)
		for _, name := range names {
			entry, _ := idx.Select(s.platform, name)
			fmt.Printf("  %s %s\n", name, ui.Dim(entry.Version.Name))
		}
		return nil
	}

	component := cmd.String("component")
	if component == "" {
		return errors.New("runtime requires --component or --list")
	}
	entry, err := idx.Select(s.platform, component)
	if err != nil {
		return err
	}
	logging.WithContext(ctx).Info("runtime selected",
		slog.String("component", component),
		logging.Platform(s.platform),
		logging.URL(entry.Manifest.URL),
	)

	r, err := s.loader.OpenVerified(ctx, entry.Manifest.URL, entry.Manifest.SHA1)
	if err != nil {
		return err
	}
	artifacts, err := manifest.DecodeRuntime(r)
	if err != nil {
		return err
	}

	if !s.rootSet {
		s.root = filepath.Join(s.root, "runtime", component)
	}
	return execute(ctx, s, artifacts, cmd.Bool("dry-run"))
}

// execute plans or syncs artifacts and prints the outcome.
func execute(ctx context.Context, s *settings, artifacts []model.Artifact, dryRun bool) error {
	reporters := []sync.Reporter{sync.NewLogReporter(logging.WithContext(ctx))}
	if s.cfg.Output.Progress && !dryRun {
		reporters = append(reporters, progress.NewReporter(os.Stderr))
	}
	var m *metrics.Metrics
	if s.cfg.Metrics.Textfile != "" && !dryRun {
		m = metrics.New()
		reporters = append(reporters, m)
	}

	syncer := sync.New(sync.Options{
		Root:         s.root,
		Platform:     s.platform,
		Concurrency:  s.cfg.Sync.Concurrency,
		StallTimeout: s.cfg.Sync.StallTimeout,
		UserAgent:    userAgent(),
		Reporter:     sync.NewMultiReporter(reporters...),
	})

	if dryRun {
		tasks, err := syncer.Plan(artifacts)
		if err != nil {
			return err
		}
		fmt.Print(ui.RenderPlan(tasks))
		return nil
	}

	result, err := syncer.Sync(ctx, artifacts)
	if result != nil && len(result.Tasks) > 0 {
		fmt.Println(ui.RenderSummary(result))
	}

	if m != nil {
		if werr := m.WriteTextfile(s.cfg.Metrics.Textfile); werr != nil {
			logging.WithContext(ctx).Warn("failed to write metrics", logging.Path(s.cfg.Metrics.Textfile), logging.Err(werr))
		}
	}

	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	return nil
}
