package sync

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klauern/assetsync/internal/model"
)

func newTestFetcher(t *testing.T, sleeper *sleepRecorder, rep Reporter) *Fetcher {
	t.Helper()
	opts := testOptions(t.TempDir(), sleeper)
	opts.Reporter = rep
	return NewFetcher(opts)
}

func fetchTask(root string, a model.Artifact) Task {
	return Task{Artifact: a, Destination: filepath.Join(root, filepath.FromSlash(a.Path)), Decision: DecisionFetch}
}

func TestFetcher_DownloadsAndVerifies(t *testing.T) {
	body := []byte("twenty bytes of data")
	srv := newContentServer(t, map[string][]byte{"/bin/java": body})
	root := t.TempDir()
	rep := &recordingReporter{}
	sleeper := &sleepRecorder{}

	a := srv.fileArtifact("bin/java")
	a.Executable = true
	task := fetchTask(root, a)
	progress := NewProgress([]Task{task})

	path, err := newTestFetcher(t, sleeper, rep).Execute(context.Background(), task, progress)
	require.NoError(t, err)
	assert.Equal(t, "bin/java", path)

	got, err := os.ReadFile(task.Destination)
	require.NoError(t, err)
	assert.Equal(t, body, got)

	if runtime.GOOS != "windows" {
		info, err := os.Stat(task.Destination)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
	}

	stats := progress.Snapshot()
	assert.Equal(t, uint64(len(body)), stats.BytesTransferred)
	assert.Equal(t, 1, stats.FilesCompleted)
	assert.Empty(t, sleeper.calls())
	assert.Equal(t, 1, rep.count("completed"))
	assert.NotEmpty(t, rep.fileEvents(FileDownloading))
	assert.Len(t, rep.fileEvents(FileDone), 1)
	assert.Equal(t, []string{DefaultUserAgent}, srv.userAgents())
}

func TestFetcher_RecoversFromCorruptBody(t *testing.T) {
	body := []byte("correct content")
	srv := newContentServer(t, map[string][]byte{"/a": body})
	srv.setOverride(func(w http.ResponseWriter, _ string, n int) bool {
		if n == 1 {
			_, _ = w.Write([]byte("corrupted"))
			return true
		}
		return false
	})
	root := t.TempDir()
	rep := &recordingReporter{}
	sleeper := &sleepRecorder{}
	task := fetchTask(root, srv.fileArtifact("a"))
	progress := NewProgress([]Task{task})

	_, err := newTestFetcher(t, sleeper, rep).Execute(context.Background(), task, progress)
	require.NoError(t, err)

	assert.Equal(t, 2, srv.hitsFor("/a"))
	assert.Equal(t, []time.Duration{DefaultRetryDelay}, sleeper.calls())
	assert.Equal(t, uint64(len(body)), progress.Snapshot().BytesTransferred, "failed attempt bytes are rolled back")

	retries := rep.fileEvents(FileRetrying)
	require.Len(t, retries, 1)
	assert.Equal(t, 2, retries[0].event.Attempt)
	assert.ErrorIs(t, retries[0].event.Err, ErrIntegrity)
}

func TestFetcher_RetryBound(t *testing.T) {
	srv := newContentServer(t, map[string][]byte{"/a": []byte("x")})
	srv.setOverride(func(w http.ResponseWriter, _ string, _ int) bool {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return true
	})
	root := t.TempDir()
	rep := &recordingReporter{}
	sleeper := &sleepRecorder{}
	task := fetchTask(root, srv.fileArtifact("a"))
	progress := NewProgress([]Task{task})

	_, err := newTestFetcher(t, sleeper, rep).Execute(context.Background(), task, progress)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.ErrorIs(t, err, ErrTransport, "last cause is kept")

	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 5, se.Attempts)
	assert.Equal(t, "a", se.Path)

	assert.Equal(t, 5, srv.hitsFor("/a"))
	assert.Equal(t, []time.Duration{
		DefaultRetryDelay, DefaultRetryDelay, DefaultRetryDelay, DefaultRetryDelay,
	}, sleeper.calls())
	assert.Len(t, rep.fileEvents(FileFailed), 1)

	_, statErr := os.Stat(task.Destination)
	assert.True(t, os.IsNotExist(statErr), "no partial file is left behind")
	assert.Equal(t, 0, progress.Snapshot().FilesCompleted)
}

func TestFetcher_IntegrityExhausted(t *testing.T) {
	srv := newContentServer(t, map[string][]byte{"/a": []byte("served")})
	root := t.TempDir()
	a := srv.fileArtifact("a")
	a.SHA1 = sha1Hex([]byte("expected"))
	task := fetchTask(root, a)

	_, err := newTestFetcher(t, &sleepRecorder{}, NopReporter{}).Execute(context.Background(), task, NewProgress([]Task{task}))
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.ErrorIs(t, err, ErrIntegrity)
	assert.Equal(t, 5, srv.hitsFor("/a"))
}

func TestFetcher_LocalIOIsFatal(t *testing.T) {
	srv := newContentServer(t, map[string][]byte{"/dir/a": []byte("x")})
	root := t.TempDir()
	// A regular file where the parent directory should be.
	writeFile(t, filepath.Join(root, "dir"), []byte("in the way"))
	task := fetchTask(root, srv.fileArtifact("dir/a"))
	sleeper := &sleepRecorder{}

	_, err := newTestFetcher(t, sleeper, NopReporter{}).Execute(context.Background(), task, NewProgress([]Task{task}))
	assert.ErrorIs(t, err, ErrLocalIO)
	assert.NotErrorIs(t, err, ErrRetriesExhausted)
	assert.Empty(t, sleeper.calls())
	assert.Equal(t, 0, srv.totalHits())
}

func TestFetcher_CancelDoesNotRetry(t *testing.T) {
	srv := newContentServer(t, map[string][]byte{"/a": []byte("x")})
	ctx, cancel := context.WithCancel(context.Background())
	srv.setOverride(func(w http.ResponseWriter, _ string, _ int) bool {
		cancel()
		w.WriteHeader(http.StatusOK)
		time.Sleep(50 * time.Millisecond)
		return true
	})
	root := t.TempDir()
	sleeper := &sleepRecorder{}
	task := fetchTask(root, srv.fileArtifact("a"))

	_, err := newTestFetcher(t, sleeper, NopReporter{}).Execute(ctx, task, NewProgress([]Task{task}))
	assert.ErrorIs(t, err, ErrCanceled)
	assert.Empty(t, sleeper.calls())
	_, statErr := os.Stat(task.Destination)
	assert.True(t, os.IsNotExist(statErr))
}

func TestFetcher_StallTimeout(t *testing.T) {
	srv := newContentServer(t, map[string][]byte{"/a": []byte("x")})
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	srv.setOverride(func(w http.ResponseWriter, _ string, _ int) bool {
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-time.After(2 * time.Second):
		}
		return true
	})
	root := t.TempDir()
	opts := testOptions(root, &sleepRecorder{})
	opts.StallTimeout = 20 * time.Millisecond
	opts.attempts = 2
	task := fetchTask(root, srv.fileArtifact("a"))

	_, err := NewFetcher(opts).Execute(context.Background(), task, NewProgress([]Task{task}))
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.ErrorIs(t, err, errStalled)
	assert.Equal(t, 2, srv.hitsFor("/a"))
}

func TestFetcher_ReplacesDirectoryAtFilePath(t *testing.T) {
	body := []byte("file")
	srv := newContentServer(t, map[string][]byte{"/a": body})
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a", "nested"), 0o750))
	task := fetchTask(root, srv.fileArtifact("a"))

	_, err := newTestFetcher(t, &sleepRecorder{}, NopReporter{}).Execute(context.Background(), task, NewProgress([]Task{task}))
	require.NoError(t, err)
	got, err := os.ReadFile(task.Destination)
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestFetcher_Materialize(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require privileges on Windows")
	}
	root := t.TempDir()
	rep := &recordingReporter{}
	f := newTestFetcher(t, &sleepRecorder{}, rep)

	dir := Task{
		Artifact:    model.Artifact{Path: "bin", Kind: model.KindDirectory, Executable: true},
		Destination: filepath.Join(root, "bin"),
		Decision:    DecisionMaterialize,
	}
	link := Task{
		Artifact:    model.Artifact{Path: "lib/current", Kind: model.KindSymlink, Target: "../bin"},
		Destination: filepath.Join(root, "lib", "current"),
		Decision:    DecisionMaterialize,
	}

	for _, task := range []Task{dir, link} {
		_, err := f.Execute(context.Background(), task, NewProgress(nil))
		require.NoError(t, err)
	}

	info, err := os.Stat(dir.Destination)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	target, err := os.Readlink(link.Destination)
	require.NoError(t, err)
	assert.Equal(t, "../bin", target)

	assert.Len(t, rep.fileEvents(FileLinking), 2)
	assert.Len(t, rep.fileEvents(FileDone), 2)

	// A second materialize of an existing link is a local error.
	_, err = f.Execute(context.Background(), link, NewProgress(nil))
	assert.ErrorIs(t, err, ErrLocalIO)
}

func TestFetcher_SkipEmitsEvent(t *testing.T) {
	rep := &recordingReporter{}
	f := newTestFetcher(t, &sleepRecorder{}, rep)

	path, err := f.Execute(context.Background(), Task{Artifact: model.Artifact{Path: "x"}, Decision: DecisionSkip}, NewProgress(nil))
	require.NoError(t, err)
	assert.Equal(t, "x", path)
	assert.Len(t, rep.fileEvents(FileSkipped), 1)
}

func TestFetcher_UserAgent(t *testing.T) {
	srv := newContentServer(t, map[string][]byte{"/a": []byte("x")})
	root := t.TempDir()
	opts := testOptions(root, &sleepRecorder{})
	opts.UserAgent = "assetsync/1.2.3"
	task := fetchTask(root, srv.fileArtifact("a"))

	_, err := NewFetcher(opts).Execute(context.Background(), task, NewProgress(nil))
	require.NoError(t, err)
	ua := srv.userAgents()
	require.Len(t, ua, 1)
	assert.True(t, strings.HasPrefix(ua[0], "assetsync/"))
}

func TestFetcher_RefusesNonEmptyDirectory(t *testing.T) {
	srv := newContentServer(t, map[string][]byte{"/data": []byte("payload")})
	root := t.TempDir()
	sleeper := &sleepRecorder{}
	task := fetchTask(root, srv.fileArtifact("data"))
	keep := filepath.Join(task.Destination, "user-data.txt")
	writeFile(t, keep, []byte("keep me"))
	progress := NewProgress([]Task{task})

	_, err := newTestFetcher(t, sleeper, &recordingReporter{}).Execute(context.Background(), task, progress)
	require.ErrorIs(t, err, ErrLocalIO)
	assert.ErrorIs(t, err, errOccupied)

	data, err := os.ReadFile(keep)
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(data))
	assert.Zero(t, srv.totalHits())
	assert.Empty(t, sleeper.calls())
}

func TestFetcher_ReplacesEmptyDirectory(t *testing.T) {
	srv := newContentServer(t, map[string][]byte{"/data": []byte("payload")})
	root := t.TempDir()
	task := fetchTask(root, srv.fileArtifact("data"))
	require.NoError(t, os.MkdirAll(task.Destination, 0o750))

	_, err := newTestFetcher(t, &sleepRecorder{}, &recordingReporter{}).Execute(context.Background(), task, NewProgress([]Task{task}))
	require.NoError(t, err)

	info, err := os.Lstat(task.Destination)
	require.NoError(t, err)
	assert.True(t, info.Mode().IsRegular())
}

func TestFetcher_ChmodFailureRollsBack(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("no permission bits on windows")
	}
	prev := chmod
	chmod = func(string, fs.FileMode) error { return errors.New("read-only filesystem") }
	t.Cleanup(func() { chmod = prev })

	srv := newContentServer(t, map[string][]byte{"/bin/java": []byte("java")})
	root := t.TempDir()
	a := srv.fileArtifact("bin/java")
	a.Executable = true
	task := fetchTask(root, a)
	progress := NewProgress([]Task{task})
	rep := &recordingReporter{}

	_, err := newTestFetcher(t, &sleepRecorder{}, rep).Execute(context.Background(), task, progress)
	require.ErrorIs(t, err, ErrLocalIO)

	_, statErr := os.Lstat(task.Destination)
	assert.ErrorIs(t, statErr, fs.ErrNotExist)
	stats := progress.Snapshot()
	assert.Zero(t, stats.BytesTransferred)
	assert.Zero(t, stats.FilesCompleted)
	assert.Zero(t, rep.count("completed"))
	assert.Equal(t, 1, srv.totalHits())
}
