package sync

import (
	"log/slog"

	"github.com/klauern/assetsync/internal/logging"
)

// Phase is a coarse stage of a synchronization run.
type Phase string

const (
	// PhaseManifest is entered when the artifact set has been received.
	PhaseManifest Phase = "manifest"
	// PhaseChecking is entered while the planner compares the tree.
	PhaseChecking Phase = "checking"
	// PhaseDownloading is entered while tasks execute.
	PhaseDownloading Phase = "downloading"
	// PhaseDone is entered after every task succeeded.
	PhaseDone Phase = "done"
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	return string(p)
}

// FileEventKind is a per-artifact step.
type FileEventKind string

const (
	FileChecking    FileEventKind = "checking"
	FileDownloading FileEventKind = "downloading"
	FileLinking     FileEventKind = "linking"
	FileSkipped     FileEventKind = "skipped"
	FileRetrying    FileEventKind = "retrying"
	FileFailed      FileEventKind = "failed"
	FileDone        FileEventKind = "done"
)

// String returns the string representation of the event kind.
func (k FileEventKind) String() string {
	return string(k)
}

// FileEvent describes one step for one artifact.
type FileEvent struct {
	Kind FileEventKind

	// Current and Total are set for FileDownloading: bytes written in the
	// current attempt and the expected size (0 if unknown).
	Current uint64
	Total   uint64

	// Attempt is the attempt about to start for FileRetrying.
	Attempt int

	// Err is the cause for FileRetrying and FileFailed.
	Err error
}

// Reporter observes a synchronization run. Methods are called from
// several workers at once and must be safe for concurrent use; the engine
// holds no lock while calling them. OnFinish is called exactly once.
type Reporter interface {
	OnStart()
	OnStep(phase Phase)
	OnFileStep(path string, ev FileEvent)
	OnFileCompleted(path string, stats Stats)
	OnFinish(err error)
}

// NopReporter ignores every event.
type NopReporter struct{}

func (NopReporter) OnStart() {}
func (NopReporter) OnStep(Phase) {}
func (NopReporter) OnFileStep(string, FileEvent) {}
func (NopReporter) OnFileCompleted(string, Stats) {}
func (NopReporter) OnFinish(error) {}

// MultiReporter fans every event out to each reporter in order.
type MultiReporter []Reporter

// NewMultiReporter returns a reporter that forwards to every non-nil r.
func NewMultiReporter(rs ...Reporter) MultiReporter {
	out := make(MultiReporter, 0, len(rs))
	for _, r := range rs {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func (m MultiReporter) OnStart() {
	for _, r := range m {
		r.OnStart()
	}
}

func (m MultiReporter) OnStep(phase Phase) {
	for _, r := range m {
		r.OnStep(phase)
	}
}

func (m MultiReporter) OnFileStep(path string, ev FileEvent) {
	for _, r := range m {
		r.OnFileStep(path, ev)
	}
}

func (m MultiReporter) OnFileCompleted(path string, stats Stats) {
	for _, r := range m {
		r.OnFileCompleted(path, stats)
	}
}

func (m MultiReporter) OnFinish(err error) {
	for _, r := range m {
		r.OnFinish(err)
	}
}

// LogReporter writes events to a structured logger. Per-chunk download
// events are dropped.
type LogReporter struct {
	Logger *slog.Logger
}

// NewLogReporter returns a LogReporter using logger, or the default
// logger when logger is nil.
func NewLogReporter(logger *slog.Logger) *LogReporter {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogReporter{Logger: logger}
}

func (l *LogReporter) OnStart() {
	l.Logger.Debug("sync started")
}

func (l *LogReporter) OnStep(phase Phase) {
	l.Logger.Debug("sync phase", slog.String("phase", phase.String()))
}

func (l *LogReporter) OnFileStep(path string, ev FileEvent) {
	switch ev.Kind {
	case FileDownloading:
		return
	case FileRetrying:
		l.Logger.Warn("retrying artifact",
			logging.Path(path),
			logging.Attempt(ev.Attempt),
			logging.Err(ev.Err),
		)
	case FileFailed:
		l.Logger.Error("artifact failed",
			logging.Path(path),
			logging.Err(ev.Err),
		)
	default:
		l.Logger.Debug("artifact step",
			logging.Path(path),
			logging.Kind(ev.Kind),
		)
	}
}

func (l *LogReporter) OnFileCompleted(path string, stats Stats) {
	l.Logger.Debug("artifact completed",
		logging.Path(path),
		slog.Int("files_completed", stats.FilesCompleted),
		slog.Int("files_total", stats.TotalFiles),
	)
}

func (l *LogReporter) OnFinish(err error) {
	if err != nil {
		l.Logger.Error("sync failed", logging.Err(err))
		return
	}
	l.Logger.Info("sync finished")
}
