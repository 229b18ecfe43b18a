package manifest

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/klauern/assetsync/internal/model"
)

// DefaultAssetBaseURL is the object store asset hashes are fetched from.
const DefaultAssetBaseURL = "https://resources.download.minecraft.net"

type assetObject struct {
	Hash string `json:"hash"`
	Size uint64 `json:"size"`
}

type assetIndex struct {
	Objects map[string]assetObject `json:"objects"`
}

// DecodeAssetIndex decodes an asset index. Objects are content addressed:
// each hash becomes objects/<hash[:2]>/<hash> fetched from
// <baseURL>/<hash[:2]>/<hash>. Names sharing a hash collapse to one artifact.
func DecodeAssetIndex(r io.Reader, baseURL string) ([]model.Artifact, error) {
	if baseURL == "" {
		baseURL = DefaultAssetBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	var idx assetIndex
	if err := json.NewDecoder(r).Decode(&idx); err != nil {
		return nil, malformed("decode asset index", err)
	}
	if idx.Objects == nil {
		return nil, malformed("decode asset index", fmt.Errorf("missing %q object", "objects"))
	}

	seen := make(map[string]struct{}, len(idx.Objects))
	artifacts := make([]model.Artifact, 0, len(idx.Objects))
	for name, obj := range idx.Objects {
		hash := strings.ToLower(obj.Hash)
		if !model.IsSHA1(hash) {
			return nil, malformed("decode asset index", fmt.Errorf("object %q has invalid hash %q", name, obj.Hash))
		}
		if _, dup := seen[hash]; dup {
			continue
		}
		seen[hash] = struct{}{}

		rel := hash[:2] + "/" + hash
		artifacts = append(artifacts, model.Artifact{
			Path: "objects/" + rel,
			Kind: model.KindFile,
			URL:  baseURL + "/" + rel,
			SHA1: hash,
			Size: obj.Size,
		})
	}

	sortByPath(artifacts)
	return artifacts, nil
}
