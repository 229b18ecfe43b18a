package progress

import (
	"fmt"
	"io"
	gosync "sync"

	"github.com/klauern/assetsync/internal/sync"
)

// Reporter renders a sync run as a single byte progress bar. The bar
// starts as a spinner and gains its total when the first file completes.
type Reporter struct {
	opts Options

	mu       gosync.Mutex
	bar      *Bar
	inFlight map[string]uint64
	sized    bool
}

var _ sync.Reporter = (*Reporter)(nil)

// NewReporter returns a Reporter drawing to w (stderr when nil).
func NewReporter(w io.Writer) *Reporter {
	opts := DefaultOptions()
	if w != nil {
		opts.Writer = w
	}
	return &Reporter{opts: opts, inFlight: make(map[string]uint64)}
}

func (r *Reporter) OnStart() {}

func (r *Reporter) OnStep(phase sync.Phase) {
	if phase != sync.PhaseDownloading {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bar == nil {
		r.bar = New(r.opts)
	}
}

func (r *Reporter) OnFileStep(path string, ev sync.FileEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bar == nil {
		return
	}

	switch ev.Kind {
	case sync.FileDownloading:
		delta := int64(ev.Current) - int64(r.inFlight[path])
		r.inFlight[path] = ev.Current
		_ = r.bar.Add64(delta)
	case sync.FileRetrying, sync.FileFailed:
		if n := r.inFlight[path]; n > 0 {
			_ = r.bar.Add64(-int64(n))
		}
		delete(r.inFlight, path)
	}
}

func (r *Reporter) OnFileCompleted(path string, stats sync.Stats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inFlight, path)
	if r.bar == nil {
		return
	}
	if !r.sized && stats.TotalBytes > 0 {
		r.bar.ChangeMax64(int64(stats.TotalBytes))
		r.sized = true
	}
	r.bar.Describe(describe(stats))
}

func (r *Reporter) OnFinish(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bar == nil {
		return
	}
	if err != nil {
		_ = r.bar.Clear()
		return
	}
	_ = r.bar.Finish()
}

func describe(stats sync.Stats) string {
	return fmt.Sprintf("Downloading %d/%d", stats.FilesCompleted, stats.TotalFiles)
}
