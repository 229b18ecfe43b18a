package manifest

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauern/assetsync/internal/model"
)

// RawFile is a downloadable blob as published in manifests.
type RawFile struct {
	SHA1 string `json:"sha1"`
	Size uint64 `json:"size"`
	URL  string `json:"url"`
}

type runtimeFile struct {
	Type       string `json:"type"`
	Executable bool   `json:"executable"`
	Downloads  *struct {
		Raw *RawFile `json:"raw"`
	} `json:"downloads"`
	Target string `json:"target"`
}

type runtimeManifest struct {
	Files map[string]runtimeFile `json:"files"`
}

// DecodeRuntime decodes a runtime files manifest. Each entry becomes one
// artifact: files carry their raw download, links their target.
func DecodeRuntime(r io.Reader) ([]model.Artifact, error) {
	var m runtimeManifest
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, malformed("decode runtime manifest", err)
	}
	if m.Files == nil {
		return nil, malformed("decode runtime manifest", fmt.Errorf("missing %q object", "files"))
	}

	artifacts := make([]model.Artifact, 0, len(m.Files))
	for path, f := range m.Files {
		kind, err := model.ParseArtifactKind(f.Type)
		if err != nil {
			return nil, malformed("decode runtime manifest", fmt.Errorf("%q: %w", path, err))
		}

		a := model.Artifact{
			Path:       path,
			Kind:       kind,
			Executable: f.Executable,
		}
		switch kind {
		case model.KindFile:
			if f.Downloads == nil || f.Downloads.Raw == nil {
				return nil, malformed("decode runtime manifest", fmt.Errorf("file %q has no raw download", path))
			}
			a.URL = f.Downloads.Raw.URL
			a.SHA1 = f.Downloads.Raw.SHA1
			a.Size = f.Downloads.Raw.Size
		case model.KindSymlink:
			a.Target = f.Target
		}
		artifacts = append(artifacts, a)
	}

	sortByPath(artifacts)
	return artifacts, nil
}
