package sync

import (
	"crypto/sha1" // #nosec G505 - manifests publish SHA-1 digests
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// errDigestMismatch is the cause carried by KindIntegrity errors.
var errDigestMismatch = errors.New("digest mismatch")

// DigestError describes a file whose SHA-1 does not match the manifest.
type DigestError struct {
	Path     string
	Expected string
	Got      string
}

func (e *DigestError) Error() string {
	return fmt.Sprintf("sha1 of %s is %s, expected %s", e.Path, e.Got, e.Expected)
}

// Unwrap returns errDigestMismatch so callers can use errors.Is.
func (e *DigestError) Unwrap() error { return errDigestMismatch }

// FileSHA1 streams the file at path through SHA-1 and returns the
// lowercase hex digest.
func FileSHA1(path string) (string, error) {
	// #nosec G304 - path is joined under the sync root
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha1.New() // #nosec G401
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// verifyFile compares the digest of the whole file at path with expected.
func verifyFile(path, expected string) error {
	got, err := FileSHA1(path)
	if err != nil {
		return err
	}
	if !strings.EqualFold(got, expected) {
		return &DigestError{Path: path, Expected: strings.ToLower(expected), Got: got}
	}
	return nil
}
