//nolint:revive // var-naming - package name is meaningful
package util

import (
	"crypto/sha1" //nolint:gosec // content digests, not security
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
)

// CreateTempDir creates a temporary directory for testing
func CreateTempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "assetsync-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() {
		_ = os.RemoveAll(dir)
	})
	return dir
}

// WriteFile writes content to a file in the test directory
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
}

// AssertNoError fails the test if err is not nil
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertEqual fails if got != want
func AssertEqual[T comparable](t *testing.T, got, want T) {
	t.Helper()
	if got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

// SHA1Hex returns the lowercase hex SHA-1 of content, the digest form
// manifests declare.
func SHA1Hex(content string) string {
	sum := sha1.Sum([]byte(content)) //nolint:gosec // content digests, not security
	return hex.EncodeToString(sum[:])
}

// AssertFileSHA1 fails the test unless the file at path hashes to want.
func AssertFileSHA1(t *testing.T, path, want string) {
	t.Helper()
	// #nosec G304 - path is provided by test code
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	if got := SHA1Hex(string(data)); got != want {
		t.Errorf("%s has SHA-1 %s, want %s", path, got, want)
	}
}
