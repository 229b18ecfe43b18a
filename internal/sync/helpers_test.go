package sync

import (
	"context"
	"crypto/sha1" // #nosec G505
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	gosync "sync"
	"testing"
	"time"

	"github.com/klauern/assetsync/internal/model"
)

var linux64 = model.Platform{OS: model.Linux, Arch: "x86_64"}

func sha1Hex(b []byte) string {
	sum := sha1.Sum(b) // #nosec G401
	return hex.EncodeToString(sum[:])
}

// contentServer serves fixed bodies by URL path and counts requests.
type contentServer struct {
	*httptest.Server

	mu    gosync.Mutex
	files map[string][]byte
	hits  map[string]int
	ua    []string

	// override, when set, handles the n-th request (1-based) for path and
	// returns true if it wrote a response.
	override func(w http.ResponseWriter, path string, n int) bool
}

func newContentServer(t *testing.T, files map[string][]byte) *contentServer {
	t.Helper()
	cs := &contentServer{files: files, hits: make(map[string]int)}
	cs.Server = httptest.NewServer(http.HandlerFunc(cs.handle))
	t.Cleanup(cs.Close)
	return cs
}

func (cs *contentServer) handle(w http.ResponseWriter, r *http.Request) {
	cs.mu.Lock()
	cs.hits[r.URL.Path]++
	n := cs.hits[r.URL.Path]
	cs.ua = append(cs.ua, r.UserAgent())
	body, ok := cs.files[r.URL.Path]
	override := cs.override
	cs.mu.Unlock()

	if override != nil && override(w, r.URL.Path, n) {
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	_, _ = w.Write(body)
}

func (cs *contentServer) setOverride(fn func(w http.ResponseWriter, path string, n int) bool) {
	cs.mu.Lock()
	cs.override = fn
	cs.mu.Unlock()
}

func (cs *contentServer) hitsFor(path string) int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.hits[path]
}

func (cs *contentServer) userAgents() []string {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return append([]string(nil), cs.ua...)
}

func (cs *contentServer) totalHits() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	total := 0
	for _, n := range cs.hits {
		total += n
	}
	return total
}

// fileArtifact describes a file served by cs at /name.
func (cs *contentServer) fileArtifact(name string) model.Artifact {
	body := cs.files["/"+name]
	return model.Artifact{
		Path: name,
		Kind: model.KindFile,
		URL:  cs.URL + "/" + name,
		SHA1: sha1Hex(body),
		Size: uint64(len(body)),
	}
}

// sleepRecorder replaces the retry pause and records each requested delay.
type sleepRecorder struct {
	mu     gosync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleepRecorder) calls() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

// recordedEvent is one reporter call.
type recordedEvent struct {
	method string
	phase  Phase
	path   string
	event  FileEvent
	err    error
}

// recordingReporter stores every call it receives.
type recordingReporter struct {
	mu     gosync.Mutex
	events []recordedEvent
}

func (r *recordingReporter) add(e recordedEvent) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recordingReporter) OnStart() { r.add(recordedEvent{method: "start"}) }

func (r *recordingReporter) OnStep(p Phase) { r.add(recordedEvent{method: "step", phase: p}) }

func (r *recordingReporter) OnFileStep(path string, ev FileEvent) {
	r.add(recordedEvent{method: "file", path: path, event: ev})
}

func (r *recordingReporter) OnFileCompleted(path string, _ Stats) {
	r.add(recordedEvent{method: "completed", path: path})
}

func (r *recordingReporter) OnFinish(err error) { r.add(recordedEvent{method: "finish", err: err}) }

func (r *recordingReporter) all() []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedEvent(nil), r.events...)
}

func (r *recordingReporter) phases() []Phase {
	var out []Phase
	for _, e := range r.all() {
		if e.method == "step" {
			out = append(out, e.phase)
		}
	}
	return out
}

func (r *recordingReporter) count(method string) int {
	n := 0
	for _, e := range r.all() {
		if e.method == method {
			n++
		}
	}
	return n
}

func (r *recordingReporter) fileEvents(kind FileEventKind) []recordedEvent {
	var out []recordedEvent
	for _, e := range r.all() {
		if e.method == "file" && e.event.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// testOptions returns options with instant retry pauses.
func testOptions(root string, sleeper *sleepRecorder) Options {
	return Options{
		Root:        root,
		Platform:    linux64,
		Concurrency: 4,
		attempts:    DefaultAttempts,
		retryDelay:  DefaultRetryDelay,
		sleep:       sleeper.sleep,
	}
}

func writeFile(t *testing.T, path string, body []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}
