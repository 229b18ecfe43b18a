package progress

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klauern/assetsync/internal/logging"
	"github.com/klauern/assetsync/internal/sync"
	"github.com/klauern/assetsync/internal/ui"
)

// withColors enables color output and an info logger for the test.
func withColors(t *testing.T, enabled bool) {
	t.Helper()
	was := ui.IsColorEnabled()
	prev := logging.Default()
	if enabled {
		ui.EnableColors()
	} else {
		ui.DisableColors()
	}
	logging.SetDefault(logging.New(logging.Options{Level: logging.LevelInfo, Output: &bytes.Buffer{}}))
	t.Cleanup(func() {
		if was {
			ui.EnableColors()
		} else {
			ui.DisableColors()
		}
		logging.SetDefault(prev)
	})
}

func TestShouldShowProgress(t *testing.T) {
	t.Run("buffer with colors", func(t *testing.T) {
		withColors(t, true)
		assert.True(t, shouldShowProgress(&bytes.Buffer{}))
	})

	t.Run("colors disabled", func(t *testing.T) {
		withColors(t, false)
		assert.False(t, shouldShowProgress(&bytes.Buffer{}))
	})

	t.Run("regular file is not a terminal", func(t *testing.T) {
		withColors(t, true)
		f, err := os.Create(filepath.Join(t.TempDir(), "out"))
		require.NoError(t, err)
		defer func() { _ = f.Close() }()
		assert.False(t, shouldShowProgress(f))
	})

	t.Run("debug logging", func(t *testing.T) {
		withColors(t, true)
		logging.SetDefault(logging.New(logging.Options{Level: logging.LevelDebug, Output: &bytes.Buffer{}}))
		assert.False(t, shouldShowProgress(&bytes.Buffer{}))
	})
}

func TestBar_DisabledIsInert(t *testing.T) {
	withColors(t, false)
	var out bytes.Buffer
	b := New(Options{Max: 10, Description: "Downloading", Writer: &out, Bytes: true})

	assert.False(t, b.Enabled())
	assert.NoError(t, b.Add64(5))
	assert.NoError(t, b.Set64(7))
	b.ChangeMax64(20)
	b.Describe("Still downloading")
	assert.NoError(t, b.Clear())
	assert.NoError(t, b.Finish())
	assert.Empty(t, out.String())
}

func TestBar_Renders(t *testing.T) {
	withColors(t, true)
	var out bytes.Buffer
	b := New(Options{Max: 100, Description: "Downloading", Writer: &out, Bytes: true})

	require.True(t, b.Enabled())
	require.NoError(t, b.Add64(100))
	require.NoError(t, b.Finish())
	assert.Contains(t, out.String(), "Downloading")
}

func TestReporter_TracksInFlightBytes(t *testing.T) {
	withColors(t, true)
	var out bytes.Buffer
	r := NewReporter(&out)

	r.OnStart()
	r.OnStep(sync.PhaseChecking)
	r.OnFileStep("a", sync.FileEvent{Kind: sync.FileDownloading, Current: 10})
	assert.Empty(t, r.inFlight, "events before downloading are ignored")

	r.OnStep(sync.PhaseDownloading)
	require.NotNil(t, r.bar)

	r.OnFileStep("a", sync.FileEvent{Kind: sync.FileDownloading, Current: 10, Total: 30})
	r.OnFileStep("a", sync.FileEvent{Kind: sync.FileDownloading, Current: 25, Total: 30})
	r.OnFileStep("b", sync.FileEvent{Kind: sync.FileDownloading, Current: 5, Total: 5})
	assert.Equal(t, uint64(25), r.inFlight["a"])
	assert.Equal(t, uint64(5), r.inFlight["b"])

	r.OnFileStep("a", sync.FileEvent{Kind: sync.FileRetrying, Attempt: 2, Err: errors.New("reset")})
	_, tracked := r.inFlight["a"]
	assert.False(t, tracked, "retry discards the failed attempt")

	r.OnFileCompleted("b", sync.Stats{TotalBytes: 35, BytesTransferred: 5, TotalFiles: 2, FilesCompleted: 1})
	assert.True(t, r.sized)
	assert.NotContains(t, r.inFlight, "b")

	r.OnFileStep("a", sync.FileEvent{Kind: sync.FileDownloading, Current: 30, Total: 30})
	r.OnFileCompleted("a", sync.Stats{TotalBytes: 35, BytesTransferred: 35, TotalFiles: 2, FilesCompleted: 2})
	r.OnFinish(nil)

	assert.Empty(t, r.inFlight)
	assert.Contains(t, out.String(), "Downloading 2/2")
}

func TestReporter_FinishWithoutDownloading(t *testing.T) {
	withColors(t, true)
	var out bytes.Buffer
	r := NewReporter(&out)

	r.OnStart()
	r.OnStep(sync.PhaseManifest)
	r.OnFinish(errors.New("malformed"))
	assert.Nil(t, r.bar)
	assert.Empty(t, out.String())
}
