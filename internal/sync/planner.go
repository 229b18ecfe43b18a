package sync

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/klauern/assetsync/internal/model"
	"github.com/klauern/assetsync/internal/rules"
)

// Decision is the action the planner chose for one artifact.
type Decision string

const (
	// DecisionSkip leaves an up-to-date entry untouched.
	DecisionSkip Decision = "skip"

	// DecisionFetch downloads and verifies a file.
	DecisionFetch Decision = "fetch"

	// DecisionMaterialize creates a directory or symlink locally.
	DecisionMaterialize Decision = "materialize"
)

// IsValid returns true if the decision is recognized.
func (d Decision) IsValid() bool {
	switch d {
	case DecisionSkip, DecisionFetch, DecisionMaterialize:
		return true
	default:
		return false
	}
}

// String returns the string representation of the decision.
func (d Decision) String() string {
	return string(d)
}

// Description returns a human-readable description of the decision.
func (d Decision) Description() string {
	switch d {
	case DecisionSkip:
		return "Already present and up to date"
	case DecisionFetch:
		return "Download and verify from source URL"
	case DecisionMaterialize:
		return "Create locally without network access"
	default:
		return "Unknown decision"
	}
}

// Task pairs an artifact with its destination under the root and the
// planner's decision.
type Task struct {
	Artifact    model.Artifact
	Destination string
	Decision    Decision
}

// Plan filters artifacts by platform and classifies each included one
// against the tree under root. It reads the filesystem but never changes it.
// Tasks follow the order of artifacts.
func Plan(artifacts []model.Artifact, p model.Platform, root string) ([]Task, error) {
	return plan(artifacts, p, root, nil)
}

func plan(artifacts []model.Artifact, p model.Platform, root string, onCheck func(path string)) ([]Task, error) {
	for _, a := range artifacts {
		if err := a.Validate(); err != nil {
			return nil, newError(KindMalformedDescriptor, "plan", a.Path, err)
		}
	}

	included := rules.Filter(artifacts, p)
	if err := checkLayout(included); err != nil {
		return nil, err
	}
	tasks := make([]Task, 0, len(included))

	for _, a := range included {
		if onCheck != nil {
			onCheck(a.Path)
		}

		dest := filepath.Join(root, filepath.FromSlash(a.Path))
		decision, err := decide(a, dest)
		if err != nil {
			return nil, newError(KindLocalIO, "plan", a.Path, err)
		}
		tasks = append(tasks, Task{Artifact: a, Destination: dest, Decision: decision})
	}

	return tasks, nil
}

// checkLayout rejects included artifacts that share a path or that sit
// below a file or symlink, so no two tasks write overlapping entries.
func checkLayout(included []model.Artifact) error {
	kinds := make(map[string]model.ArtifactKind, len(included))
	for _, a := range included {
		key := path.Clean(a.Path)
		if _, dup := kinds[key]; dup {
			return newError(KindMalformedDescriptor, "plan", a.Path,
				errors.New("duplicate artifact path"))
		}
		kinds[key] = a.Kind
	}

	for _, a := range included {
		for dir := path.Dir(path.Clean(a.Path)); dir != "."; dir = path.Dir(dir) {
			if kind, ok := kinds[dir]; ok && kind != model.KindDirectory {
				return newError(KindMalformedDescriptor, "plan", a.Path,
					fmt.Errorf("parent %q is a %s, not a directory", dir, kind))
			}
		}
	}
	return nil
}

func decide(a model.Artifact, dest string) (Decision, error) {
	switch a.Kind {
	case model.KindDirectory:
		return DecisionMaterialize, nil

	case model.KindSymlink:
		_, err := os.Lstat(dest)
		if errors.Is(err, fs.ErrNotExist) {
			return DecisionMaterialize, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to stat %q: %w", dest, err)
		}
		return DecisionSkip, nil

	case model.KindFile:
		info, err := os.Lstat(dest)
		if errors.Is(err, fs.ErrNotExist) {
			return DecisionFetch, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to stat %q: %w", dest, err)
		}
		if !info.Mode().IsRegular() {
			return DecisionFetch, nil
		}
		if err := verifyFile(dest, a.SHA1); err != nil {
			if errors.Is(err, errDigestMismatch) {
				return DecisionFetch, nil
			}
			return "", err
		}
		return DecisionSkip, nil

	default:
		return "", fmt.Errorf("unknown artifact kind %q", a.Kind)
	}
}
