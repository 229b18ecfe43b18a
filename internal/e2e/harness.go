// Package e2e provides testing infrastructure for end-to-end CLI tests.
// It includes a harness for running CLI commands in an isolated home, an
// HTTP origin that serves manifests and artifacts, and file assertions.
package e2e

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauern/assetsync/internal/cli"
)

// Result contains the outcome of running a CLI command.
type Result struct {
	// Stdout contains the captured standard output.
	Stdout string
	// Err is the error returned by the CLI command, if any.
	Err error
	// ExitCode is the inferred exit code (0 for success, 1 for error).
	ExitCode int
}

// Success returns true if the command completed without error.
func (r *Result) Success() bool {
	return r.Err == nil
}

// Harness runs CLI commands against an isolated HOME with color and
// progress output turned off.
type Harness struct {
	t       *testing.T
	homeDir string
}

// NewHarness creates a new E2E test harness. The default sync root is
// <home>/root.
func NewHarness(t *testing.T) *Harness {
	t.Helper()

	h := &Harness{
		t:       t,
		homeDir: t.TempDir(),
	}

	h.SetEnv("HOME", h.homeDir)
	h.SetEnv("ASSETSYNC_SYNC_ROOT", h.Root())
	h.SetEnv("ASSETSYNC_OUTPUT_COLOR", "never")
	h.SetEnv("ASSETSYNC_OUTPUT_PROGRESS", "false")
	h.SetEnv("ASSETSYNC_LOG_LEVEL", "warn")

	return h
}

// SetEnv sets an environment variable for CLI commands run through this harness.
// The environment will be restored after the test completes.
func (h *Harness) SetEnv(key, value string) {
	h.t.Helper()
	h.t.Setenv(key, value)
}

// HomeDir returns the isolated home directory for this test harness.
func (h *Harness) HomeDir() string {
	return h.homeDir
}

// Root returns the default sync root.
func (h *Harness) Root() string {
	return filepath.Join(h.homeDir, "root")
}

// Path joins a slash separated path onto the default sync root.
func (h *Harness) Path(rel string) string {
	return filepath.Join(h.Root(), filepath.FromSlash(rel))
}

// Run executes a CLI command with the given arguments and captures stdout.
func (h *Harness) Run(args ...string) *Result {
	h.t.Helper()

	if len(args) == 0 || args[0] != "assetsync" {
		args = append([]string{"assetsync"}, args...)
	}

	oldStdout := os.Stdout
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		h.t.Fatalf("failed to create stdout pipe: %v", err)
	}
	os.Stdout = stdoutW

	// Read concurrently so output larger than the pipe buffer cannot
	// block the command.
	var stdoutBuf bytes.Buffer
	var copyErr error
	copyDone := make(chan struct{})
	go func() {
		defer close(copyDone)
		_, copyErr = io.Copy(&stdoutBuf, stdoutR)
	}()

	cmdErr := cli.Run(context.Background(), args)

	if err := stdoutW.Close(); err != nil {
		h.t.Fatalf("failed to close stdout pipe writer: %v", err)
	}
	os.Stdout = oldStdout

	<-copyDone
	if copyErr != nil {
		h.t.Fatalf("failed to read captured stdout: %v", copyErr)
	}

	exitCode := 0
	if cmdErr != nil {
		exitCode = 1
	}

	return &Result{
		Stdout:   stdoutBuf.String(),
		Err:      cmdErr,
		ExitCode: exitCode,
	}
}
