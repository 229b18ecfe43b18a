// Package manifest decodes launcher manifests into artifact descriptors.
//
// Three document shapes are understood: runtime file manifests (a map of
// relative path to file, directory or link entry), asset indexes (a map of
// object name to content hash) and game version documents (libraries,
// natives, client jar and asset index). Every decoder returns artifacts
// sorted by path.
package manifest

import (
	"bytes"
	"context"
	"crypto/sha1" // #nosec G505 - manifests publish SHA-1 digests
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/klauern/assetsync/internal/logging"
	"github.com/klauern/assetsync/internal/model"
	"github.com/klauern/assetsync/internal/sync"
)

// Type identifies a manifest document shape.
type Type string

const (
	// TypeRuntime is a runtime files manifest.
	TypeRuntime Type = "runtime"
	// TypeAssets is an asset index.
	TypeAssets Type = "assets"
	// TypeVersion is a game version document.
	TypeVersion Type = "version"
)

// String returns the string representation of the type.
func (t Type) String() string {
	return string(t)
}

// AllTypes returns all supported manifest types.
func AllTypes() []Type {
	return []Type{TypeRuntime, TypeAssets, TypeVersion}
}

// ParseType converts a string to a manifest Type.
func ParseType(s string) (Type, error) {
	switch t := Type(strings.ToLower(strings.TrimSpace(s))); t {
	case TypeRuntime, TypeAssets, TypeVersion:
		return t, nil
	default:
		return "", fmt.Errorf("unknown manifest type %q (valid: runtime, assets, version)", s)
	}
}

// DecodeOptions carries the inputs some decoders need beyond the document.
type DecodeOptions struct {
	// Platform resolves native classifiers in version documents.
	Platform model.Platform
	// AssetBaseURL is the object store for asset indexes.
	AssetBaseURL string
}

// Decode reads a document of type t.
func Decode(t Type, r io.Reader, opts DecodeOptions) ([]model.Artifact, error) {
	switch t {
	case TypeRuntime:
		return DecodeRuntime(r)
	case TypeAssets:
		return DecodeAssetIndex(r, opts.AssetBaseURL)
	case TypeVersion:
		return DecodeVersion(r, opts.Platform)
	default:
		return nil, malformed("decode", fmt.Errorf("unknown manifest type %q", t))
	}
}

func malformed(op string, err error) error {
	return &sync.Error{Kind: sync.KindMalformedDescriptor, Op: op, Err: err}
}

func sortByPath(artifacts []model.Artifact) {
	sort.SliceStable(artifacts, func(i, j int) bool {
		return artifacts[i].Path < artifacts[j].Path
	})
}

type (
	// Loader reads manifests from local paths or http(s) URLs.
	Loader struct {
		client    *http.Client
		userAgent string
	}

	// LoaderOption configures a Loader during construction.
	LoaderOption func(*Loader)
)

// WithHTTPClient sets the client used for URL locations.
func WithHTTPClient(c *http.Client) LoaderOption {
	return func(l *Loader) {
		if c != nil {
			l.client = c
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) LoaderOption {
	return func(l *Loader) {
		if ua != "" {
			l.userAgent = ua
		}
	}
}

// NewLoader creates a Loader. Defaults: http.DefaultClient and
// sync.DefaultUserAgent.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		client:    http.DefaultClient,
		userAgent: sync.DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Open returns a reader for location. The caller closes it.
func (l *Loader) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	if !isURL(location) {
		// #nosec G304 - manifest path is supplied by the user
		f, err := os.Open(location)
		if err != nil {
			return nil, &sync.Error{Kind: sync.KindLocalIO, Op: "open manifest", Path: location, Err: err}
		}
		return f, nil
	}

	logging.Debug("fetching manifest", logging.URL(location))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, http.NoBody)
	if err != nil {
		return nil, malformed("open manifest", fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("User-Agent", l.userAgent)

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, &sync.Error{Kind: sync.KindTransport, Op: "open manifest", Path: location, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, &sync.Error{
			Kind: sync.KindTransport,
			Op:   "open manifest",
			Path: location,
			Err:  fmt.Errorf("unexpected status %s", resp.Status),
		}
	}
	return resp.Body, nil
}

// OpenVerified reads the whole document at location and checks it against
// the expected SHA-1 before returning it. An empty digest skips the check.
func (l *Loader) OpenVerified(ctx context.Context, location, digest string) (io.Reader, error) {
	rc, err := l.Open(ctx, location)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, &sync.Error{Kind: sync.KindTransport, Op: "read manifest", Path: location, Err: err}
	}

	if digest != "" {
		sum := sha1.Sum(data) // #nosec G401
		if got := hex.EncodeToString(sum[:]); !strings.EqualFold(got, digest) {
			return nil, &sync.Error{
				Kind: sync.KindIntegrity,
				Op:   "verify manifest",
				Path: location,
				Err:  fmt.Errorf("sha1 is %s, expected %s", got, strings.ToLower(digest)),
			}
		}
	}
	return bytes.NewReader(data), nil
}

func isURL(location string) bool {
	u, err := url.Parse(location)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
