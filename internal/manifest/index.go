package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/klauern/assetsync/internal/model"
	"github.com/klauern/assetsync/internal/sync"
)

// RuntimeVersion names a runtime build.
type RuntimeVersion struct {
	Name     string    `json:"name"`
	Released time.Time `json:"released"`
}

// RuntimeEntry points at the files manifest of one runtime build.
type RuntimeEntry struct {
	Manifest RawFile        `json:"manifest"`
	Version  RuntimeVersion `json:"version"`
}

// RuntimeIndex maps platform keys to components to their builds.
type RuntimeIndex map[string]map[string][]RuntimeEntry

// DecodeRuntimeIndex decodes the runtime index document.
func DecodeRuntimeIndex(r io.Reader) (RuntimeIndex, error) {
	var idx RuntimeIndex
	if err := json.NewDecoder(r).Decode(&idx); err != nil {
		return nil, malformed("decode runtime index", err)
	}
	if idx == nil {
		return nil, malformed("decode runtime index", errors.New("empty document"))
	}
	return idx, nil
}

// PlatformKey returns the index key for p.
func PlatformKey(p model.Platform) (string, error) {
	switch p.OS {
	case model.Linux:
		switch p.Arch {
		case "x86_64":
			return "linux", nil
		case "x86":
			return "linux-i386", nil
		}
	case model.MacOS:
		switch p.Arch {
		case "x86_64":
			return "mac-os", nil
		case "arm64":
			return "mac-os-arm64", nil
		}
	case model.Windows:
		switch p.Arch {
		case "x86_64":
			return "windows-x64", nil
		case "x86":
			return "windows-x86", nil
		case "arm64":
			return "windows-arm64", nil
		}
	}
	return "", unsupported(p, "")
}

// Select returns the first build of component for p.
func (idx RuntimeIndex) Select(p model.Platform, component string) (RuntimeEntry, error) {
	key, err := PlatformKey(p)
	if err != nil {
		return RuntimeEntry{}, err
	}
	entries := idx[key][component]
	if len(entries) == 0 {
		return RuntimeEntry{}, unsupported(p, component)
	}
	return entries[0], nil
}

// Components lists the components with at least one build for p, sorted.
func (idx RuntimeIndex) Components(p model.Platform) ([]string, error) {
	key, err := PlatformKey(p)
	if err != nil {
		return nil, err
	}
	var names []string
	for name, entries := range idx[key] {
		if len(entries) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func unsupported(p model.Platform, component string) error {
	msg := "no runtime branch for " + p.String()
	if component != "" {
		msg = fmt.Sprintf("no %q runtime for %s", component, p)
	}
	return &sync.Error{Kind: sync.KindUnsupportedPlatform, Op: "select runtime", Err: errors.New(msg)}
}
