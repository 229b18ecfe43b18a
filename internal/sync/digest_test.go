package sync

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestFileSHA1(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	writeFile(t, path, []byte("abc"))

	got, err := FileSHA1(path)
	if err != nil {
		t.Fatalf("FileSHA1() error = %v", err)
	}
	if want := "a9993e364706816aba3e25717850c26c9cd0d89d"; got != want {
		t.Errorf("FileSHA1() = %s, want %s", got, want)
	}

	if _, err := FileSHA1(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("FileSHA1() on a missing file should fail")
	}
}

func TestVerifyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	writeFile(t, path, []byte("abc"))

	if err := verifyFile(path, "A9993E364706816ABA3E25717850C26C9CD0D89D"); err != nil {
		t.Errorf("verifyFile() with upper-case digest error = %v", err)
	}

	err := verifyFile(path, sha1Hex([]byte("other")))
	var de *DigestError
	if !errors.As(err, &de) {
		t.Fatalf("verifyFile() error = %v, want *DigestError", err)
	}
	if !errors.Is(err, errDigestMismatch) {
		t.Error("DigestError should unwrap to errDigestMismatch")
	}
	if de.Got != "a9993e364706816aba3e25717850c26c9cd0d89d" {
		t.Errorf("DigestError.Got = %s", de.Got)
	}
}
