package sync

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/klauern/assetsync/internal/logging"
	"github.com/klauern/assetsync/internal/model"
)

// Options configures a synchronization run.
type Options struct {
	// Root is the directory the artifact tree is reconciled under.
	Root string

	// Platform selects which artifacts are included. Defaults to the host.
	Platform model.Platform

	// Concurrency bounds the number of tasks executing at once
	// (default: DefaultConcurrency).
	Concurrency int

	// StallTimeout aborts an attempt that makes no progress for this long
	// (default: DefaultStallTimeout). Negative disables the check.
	StallTimeout time.Duration

	// Client performs downloads (default: http.DefaultClient).
	Client *http.Client

	// UserAgent is sent with every request (default: DefaultUserAgent).
	UserAgent string

	// Reporter receives progress events (default: NopReporter).
	Reporter Reporter

	// Logger receives engine logs (default: the logger carried by the
	// context passed to Sync, else logging.Default()).
	Logger *slog.Logger

	attempts   int
	retryDelay time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

// DefaultOptions returns options for the host platform.
func DefaultOptions() Options {
	return Options{
		Platform:     model.HostPlatform(),
		Concurrency:  DefaultConcurrency,
		StallTimeout: DefaultStallTimeout,
	}
}

func (o Options) withDefaults() Options {
	if o.Platform == (model.Platform{}) {
		o.Platform = model.HostPlatform()
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.StallTimeout == 0 {
		o.StallTimeout = DefaultStallTimeout
	}
	if o.Client == nil {
		o.Client = http.DefaultClient
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.Reporter == nil {
		o.Reporter = NopReporter{}
	}
	if o.attempts <= 0 {
		o.attempts = DefaultAttempts
	}
	if o.retryDelay == 0 {
		o.retryDelay = DefaultRetryDelay
	}
	if o.sleep == nil {
		o.sleep = sleepContext
	}
	return o
}

// Syncer reconciles an artifact tree against a descriptor set.
type Syncer struct {
	opts Options
}

// New creates a Syncer. Zero option values take the package defaults.
func New(opts Options) *Syncer {
	return &Syncer{opts: opts.withDefaults()}
}

// Platform returns the platform the syncer filters for.
func (s *Syncer) Platform() model.Platform {
	return s.opts.Platform
}

// Plan classifies artifacts against the tree without changing it.
func (s *Syncer) Plan(artifacts []model.Artifact) ([]Task, error) {
	if !s.opts.Platform.OS.IsKnown() {
		return nil, unsupported(s.opts.Platform)
	}
	return Plan(artifacts, s.opts.Platform, s.opts.Root)
}

// Sync brings the tree under the root into agreement with artifacts.
// Already correct entries are left alone, missing or wrong files are
// downloaded and verified, directories and symlinks are created. It stops
// scheduling after the first fatal error, waits for running tasks and
// returns that error. The Result is non-nil even when an error is returned.
func (s *Syncer) Sync(ctx context.Context, artifacts []model.Artifact) (*Result, error) {
	defer logging.Timer("sync")()

	runID := uuid.NewString()
	base := s.opts.Logger
	if base == nil {
		base = logging.WithContext(ctx)
	}
	logger := base.With(logging.RunID(runID))
	reporter := s.opts.Reporter

	logger.Debug("starting sync operation",
		logging.Operation("sync"),
		logging.Platform(s.opts.Platform),
		logging.Path(s.opts.Root),
		logging.Count(len(artifacts)),
		slog.Int("concurrency", s.opts.Concurrency),
	)

	result := &Result{
		RunID:    runID,
		Platform: s.opts.Platform,
		Root:     s.opts.Root,
	}

	start := time.Now()
	reporter.OnStart()
	err := s.run(ctx, artifacts, result, logger)
	result.Duration = time.Since(start)

	if err == nil {
		reporter.OnStep(PhaseDone)
		logger.Info("sync complete",
			slog.Int("fetched", len(result.Fetched())),
			slog.Int("skipped", len(result.Skipped())),
			slog.Int("materialized", len(result.Materialized())),
			logging.Bytes(result.Stats.BytesTransferred),
			logging.Duration(result.Duration),
		)
	} else {
		logger.Error("sync failed",
			logging.Kind(KindOf(err)),
			logging.Err(err),
		)
	}
	reporter.OnFinish(err)

	return result, err
}

func (s *Syncer) run(ctx context.Context, artifacts []model.Artifact, result *Result, logger *slog.Logger) error {
	reporter := s.opts.Reporter

	reporter.OnStep(PhaseManifest)
	if !s.opts.Platform.OS.IsKnown() {
		return unsupported(s.opts.Platform)
	}

	reporter.OnStep(PhaseChecking)
	tasks, err := plan(artifacts, s.opts.Platform, s.opts.Root, func(path string) {
		reporter.OnFileStep(path, FileEvent{Kind: FileChecking})
	})
	if err != nil {
		return err
	}

	progress := NewProgress(tasks)
	result.Tasks = make([]TaskResult, len(tasks))
	for i, t := range tasks {
		result.Tasks[i] = TaskResult{Task: t, Outcome: OutcomeNotRun}
	}
	defer func() { result.Stats = progress.Snapshot() }()

	logger.Debug("planned tasks",
		logging.Count(len(tasks)),
		logging.Bytes(progress.Snapshot().TotalBytes),
	)

	fetcher := NewFetcher(s.opts)
	fetcher.logger = logger

	reporter.OnStep(PhaseDownloading)
	var jobs []poolJob
	for i, t := range tasks {
		if t.Decision != DecisionSkip {
			jobs = append(jobs, poolJob{index: i, task: t})
			continue
		}
		if _, err := fetcher.Execute(ctx, t, progress); err != nil {
			return err
		}
		result.Tasks[i].Outcome = OutcomeSkipped
	}

	exec := func(ctx context.Context, t Task) error {
		_, err := fetcher.Execute(ctx, t, progress)
		return err
	}
	done := func(i int, err error) {
		tr := &result.Tasks[i]
		switch {
		case err != nil:
			tr.Outcome = OutcomeFailed
			tr.Error = err
		case tr.Task.Decision == DecisionFetch:
			tr.Outcome = OutcomeFetched
		default:
			tr.Outcome = OutcomeMaterialized
		}
	}

	return runPool(ctx, s.opts.Concurrency, jobs, exec, done)
}

func unsupported(p model.Platform) error {
	return newError(KindUnsupportedPlatform, "sync", "",
		errors.New("no manifest branch for platform "+p.String()))
}
