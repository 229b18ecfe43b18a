package model

import (
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// ArtifactKind is the kind of filesystem entry an artifact describes.
type ArtifactKind string

const (
	// KindFile is a regular file downloaded from a URL and verified by digest.
	KindFile ArtifactKind = "file"
	// KindDirectory is a directory created locally.
	KindDirectory ArtifactKind = "directory"
	// KindSymlink is a symbolic link created locally.
	KindSymlink ArtifactKind = "link"
)

// IsValid returns true if the kind is recognized.
func (k ArtifactKind) IsValid() bool {
	switch k {
	case KindFile, KindDirectory, KindSymlink:
		return true
	default:
		return false
	}
}

// String returns the string representation of the kind.
func (k ArtifactKind) String() string {
	return string(k)
}

// ParseArtifactKind converts a manifest "type" value to an ArtifactKind.
func ParseArtifactKind(s string) (ArtifactKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "file":
		return KindFile, nil
	case "directory", "dir":
		return KindDirectory, nil
	case "link", "symlink":
		return KindSymlink, nil
	default:
		return "", fmt.Errorf("unknown artifact kind %q (valid: file, directory, link)", s)
	}
}

// RuleAction is the effect of a matching platform rule.
type RuleAction string

const (
	Allow    RuleAction = "allow"
	Disallow RuleAction = "disallow"
)

// IsValid returns true if the action is recognized.
func (a RuleAction) IsValid() bool {
	return a == Allow || a == Disallow
}

// Condition keys understood by the rule evaluator. Other keys are
// carried through but never affect matching.
const (
	ConditionOS   = "name"
	ConditionArch = "arch"
)

// Rule is a conditional allow/disallow directive attached to an artifact.
// A rule with no conditions matches every platform.
type Rule struct {
	Action     RuleAction        `json:"action" yaml:"action"`
	Conditions map[string]string `json:"conditions,omitempty" yaml:"conditions,omitempty"`
}

// Artifact describes one file, directory or symlink to reconcile under a
// root directory.
type Artifact struct {
	// Path is the slash-separated path relative to the sync root.
	Path string       `json:"path" yaml:"path"`
	Kind ArtifactKind `json:"kind" yaml:"kind"`

	// URL and SHA1 are set for files only.
	URL  string `json:"url,omitempty" yaml:"url,omitempty"`
	SHA1 string `json:"sha1,omitempty" yaml:"sha1,omitempty"`

	// Size is the expected size in bytes; zero means unknown.
	Size uint64 `json:"size,omitempty" yaml:"size,omitempty"`

	// Target is the link target for symlinks only.
	Target string `json:"target,omitempty" yaml:"target,omitempty"`

	Executable bool   `json:"executable,omitempty" yaml:"executable,omitempty"`
	Rules      []Rule `json:"rules,omitempty" yaml:"rules,omitempty"`
}

var (
	errEmptyPath   = errors.New("path is empty")
	errPathEscapes = errors.New("path is not a local relative path")
	errRootPath    = errors.New("path resolves to the sync root")
)

// Validate checks that the fields populated match the artifact's kind
// and that the path stays inside the sync root.
func (a Artifact) Validate() error {
	if a.Path == "" {
		return errEmptyPath
	}
	if !filepath.IsLocal(filepath.FromSlash(a.Path)) {
		return fmt.Errorf("%q: %w", a.Path, errPathEscapes)
	}
	if path.Clean(filepath.ToSlash(a.Path)) == "." {
		return fmt.Errorf("%q: %w", a.Path, errRootPath)
	}

	switch a.Kind {
	case KindFile:
		if a.URL == "" {
			return fmt.Errorf("file %q has no source URL", a.Path)
		}
		if !IsSHA1(a.SHA1) {
			return fmt.Errorf("file %q has invalid sha1 %q", a.Path, a.SHA1)
		}
		if a.Target != "" {
			return fmt.Errorf("file %q must not carry a link target", a.Path)
		}
	case KindSymlink:
		if a.Target == "" {
			return fmt.Errorf("link %q has no target", a.Path)
		}
		if a.URL != "" || a.SHA1 != "" {
			return fmt.Errorf("link %q must not carry a source URL or digest", a.Path)
		}
	case KindDirectory:
		if a.URL != "" || a.SHA1 != "" || a.Target != "" {
			return fmt.Errorf("directory %q must not carry a source URL, digest or target", a.Path)
		}
	default:
		return fmt.Errorf("%q has unknown kind %q", a.Path, a.Kind)
	}

	for i, r := range a.Rules {
		if !r.Action.IsValid() {
			return fmt.Errorf("%q rule %d has unknown action %q", a.Path, i, r.Action)
		}
	}

	return nil
}

// IsSHA1 reports whether s is a 40 character hex-encoded SHA-1 digest.
func IsSHA1(s string) bool {
	if len(s) != 40 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
