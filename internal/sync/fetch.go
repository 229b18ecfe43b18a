package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/klauern/assetsync/internal/logging"
	"github.com/klauern/assetsync/internal/model"
)

const (
	// DefaultAttempts is the number of fetch attempts per file.
	DefaultAttempts = 5

	// DefaultRetryDelay is the fixed pause between fetch attempts.
	DefaultRetryDelay = 5 * time.Second

	// DefaultStallTimeout aborts an attempt that receives nothing for this long.
	DefaultStallTimeout = 60 * time.Second

	// DefaultUserAgent is sent when Options.UserAgent is empty.
	DefaultUserAgent = "assetsync"

	chunkSize = 32 * 1024
)

var errStalled = errors.New("transfer stalled")

// Fetcher executes single tasks: it materializes directories and
// symlinks, and downloads files with verification and bounded retries.
type Fetcher struct {
	client       *http.Client
	attempts     int
	retryDelay   time.Duration
	stallTimeout time.Duration
	userAgent    string
	reporter     Reporter
	logger       *slog.Logger
	sleep        func(ctx context.Context, d time.Duration) error
}

// NewFetcher returns a Fetcher configured from opts. Zero values take
// the package defaults.
func NewFetcher(opts Options) *Fetcher {
	opts = opts.withDefaults()
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	return &Fetcher{
		client:       opts.Client,
		attempts:     opts.attempts,
		retryDelay:   opts.retryDelay,
		stallTimeout: opts.StallTimeout,
		userAgent:    opts.UserAgent,
		reporter:     opts.Reporter,
		logger:       opts.Logger,
		sleep:        opts.sleep,
	}
}

// Execute carries out one task and returns the artifact path. Skip tasks
// only emit a Skipped event. Transport and integrity failures are retried
// inside Execute; any error it returns is final for the task.
func (f *Fetcher) Execute(ctx context.Context, task Task, progress *Progress) (string, error) {
	path := task.Artifact.Path

	var err error
	switch task.Decision {
	case DecisionSkip:
		f.reporter.OnFileStep(path, FileEvent{Kind: FileSkipped})
		return path, nil
	case DecisionMaterialize:
		err = f.materialize(task)
	case DecisionFetch:
		err = f.fetch(ctx, task, progress)
	default:
		err = newError(KindMalformedDescriptor, "execute", path, fmt.Errorf("unknown decision %q", task.Decision))
	}

	if err != nil {
		f.reporter.OnFileStep(path, FileEvent{Kind: FileFailed, Err: err})
		return path, err
	}
	return path, nil
}

func (f *Fetcher) materialize(task Task) error {
	a := task.Artifact
	f.reporter.OnFileStep(a.Path, FileEvent{Kind: FileLinking})

	switch a.Kind {
	case model.KindDirectory:
		if err := makeDir(task.Destination); err != nil {
			return newError(KindLocalIO, "mkdir", a.Path, err)
		}
		if a.Executable {
			if err := setExecutable(task.Destination); err != nil {
				return newError(KindLocalIO, "chmod", a.Path, err)
			}
		}
	case model.KindSymlink:
		if err := makeSymlink(a.Target, task.Destination); err != nil {
			return newError(KindLocalIO, "link", a.Path, err)
		}
	default:
		return newError(KindMalformedDescriptor, "materialize", a.Path,
			fmt.Errorf("cannot materialize %s", a.Kind))
	}

	f.logger.Debug("materialized artifact", logging.Path(a.Path), logging.Kind(a.Kind))
	f.reporter.OnFileStep(a.Path, FileEvent{Kind: FileDone})
	return nil
}

func (f *Fetcher) fetch(ctx context.Context, task Task, progress *Progress) error {
	a := task.Artifact

	var lastErr error
	for attempt := 1; attempt <= f.attempts; attempt++ {
		if attempt > 1 {
			f.reporter.OnFileStep(a.Path, FileEvent{Kind: FileRetrying, Attempt: attempt, Err: lastErr})
			if err := f.sleep(ctx, f.retryDelay); err != nil {
				return canceled("fetch", a.Path, err)
			}
		}

		err := f.attempt(ctx, task, progress)
		if err == nil {
			break
		}
		if !IsRetryable(err) {
			return err
		}

		lastErr = err
		f.logger.Debug("fetch attempt failed",
			logging.Path(a.Path),
			logging.Attempt(attempt),
			logging.Err(err),
		)
		if attempt == f.attempts {
			return &Error{
				Kind:     KindRetriesExhausted,
				Op:       "fetch",
				Path:     a.Path,
				Attempts: f.attempts,
				Err:      lastErr,
			}
		}
	}

	stats := progress.CompleteFile()
	f.logger.Debug("fetched artifact", logging.Path(a.Path), logging.Bytes(a.Size))
	f.reporter.OnFileStep(a.Path, FileEvent{Kind: FileDone, Current: a.Size, Total: a.Size})
	f.reporter.OnFileCompleted(a.Path, stats)
	return nil
}

// attempt performs one download and verification. On any failure the
// destination is deleted and the attempt's bytes are rolled back.
func (f *Fetcher) attempt(ctx context.Context, task Task, progress *Progress) (err error) {
	a := task.Artifact
	dest := task.Destination

	if err := ensureParent(dest); err != nil {
		return newError(KindLocalIO, "mkdir", a.Path, err)
	}
	if err := removeIrregular(dest); err != nil {
		return newError(KindLocalIO, "remove", a.Path, err)
	}

	// #nosec G304 - dest is joined under the sync root
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fileMode)
	if err != nil {
		return newError(KindLocalIO, "create", a.Path, err)
	}

	var written int64
	defer func() {
		if err != nil {
			_ = out.Close()
			removePartial(dest)
			progress.AddBytes(-written)
		}
	}()

	attemptCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	stall := startStallTimer(f.stallTimeout, cancel)
	defer stall.stop()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, a.URL, nil)
	if err != nil {
		return newError(KindTransport, "request", a.Path, err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return f.transportError(ctx, attemptCtx, a.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newError(KindTransport, "fetch", a.Path, fmt.Errorf("unexpected status %s", resp.Status))
	}
	stall.reset()

	buf := make([]byte, chunkSize)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			stall.reset()
			if _, werr := out.Write(buf[:n]); werr != nil {
				return newError(KindLocalIO, "write", a.Path, werr)
			}
			written += int64(n)
			progress.AddBytes(int64(n))
			f.reporter.OnFileStep(a.Path, FileEvent{
				Kind:    FileDownloading,
				Current: uint64(written),
				Total:   a.Size,
			})
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return f.transportError(ctx, attemptCtx, a.Path, rerr)
		}
	}

	if err := out.Close(); err != nil {
		return newError(KindLocalIO, "write", a.Path, err)
	}

	f.reporter.OnFileStep(a.Path, FileEvent{Kind: FileChecking})
	if err := verifyFile(dest, a.SHA1); err != nil {
		if errors.Is(err, errDigestMismatch) {
			return newError(KindIntegrity, "verify", a.Path, err)
		}
		return newError(KindLocalIO, "verify", a.Path, err)
	}
	if a.Executable {
		if err := setExecutable(dest); err != nil {
			return newError(KindLocalIO, "chmod", a.Path, err)
		}
	}
	return nil
}

// transportError classifies a request or body failure. Caller
// cancellation wins over a stall, which wins over the raw error.
func (f *Fetcher) transportError(ctx, attemptCtx context.Context, path string, err error) error {
	if ctx.Err() != nil {
		return canceled("fetch", path, ctx.Err())
	}
	if errors.Is(context.Cause(attemptCtx), errStalled) {
		return newError(KindTransport, "fetch", path, fmt.Errorf("%w after %s", errStalled, f.stallTimeout))
	}
	return newError(KindTransport, "fetch", path, err)
}

// stallTimer cancels an attempt that sees no progress for d.
type stallTimer struct {
	timer *time.Timer
	d     time.Duration
}

func startStallTimer(d time.Duration, cancel context.CancelCauseFunc) *stallTimer {
	if d <= 0 {
		return nil
	}
	return &stallTimer{
		timer: time.AfterFunc(d, func() { cancel(errStalled) }),
		d:     d,
	}
}

func (s *stallTimer) reset() {
	if s != nil {
		s.timer.Reset(s.d)
	}
}

func (s *stallTimer) stop() {
	if s != nil {
		s.timer.Stop()
	}
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
