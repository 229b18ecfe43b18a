package e2e

import (
	"crypto/sha1" //nolint:gosec // content digests, not security
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// Download is the download block manifests carry for a published file.
type Download struct {
	SHA1 string `json:"sha1"`
	Size int    `json:"size"`
	URL  string `json:"url"`
}

// Origin is an HTTP server publishing manifests and artifact bodies. It
// counts requests per path.
type Origin struct {
	t      *testing.T
	server *httptest.Server

	mu   sync.Mutex
	docs map[string][]byte
	hits map[string]int
}

// NewOrigin starts an origin that is shut down when the test ends.
func NewOrigin(t *testing.T) *Origin {
	t.Helper()

	o := &Origin{
		t:    t,
		docs: make(map[string][]byte),
		hits: make(map[string]int),
	}
	o.server = httptest.NewServer(http.HandlerFunc(o.serve))
	t.Cleanup(o.server.Close)
	return o
}

func (o *Origin) serve(w http.ResponseWriter, r *http.Request) {
	o.mu.Lock()
	o.hits[r.URL.Path]++
	body, ok := o.docs[r.URL.Path]
	o.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	_, _ = w.Write(body)
}

// URL returns the origin's base URL.
func (o *Origin) URL() string {
	return o.server.URL
}

// Publish serves content at path and returns its download block.
func (o *Origin) Publish(path, content string) Download {
	o.mu.Lock()
	o.docs[path] = []byte(content)
	o.mu.Unlock()

	return Download{
		SHA1: SHA1(content),
		Size: len(content),
		URL:  o.server.URL + path,
	}
}

// PublishJSON serves v encoded as JSON at path and returns its download
// block.
func (o *Origin) PublishJSON(path string, v any) Download {
	o.t.Helper()

	data, err := json.Marshal(v)
	if err != nil {
		o.t.Fatalf("failed to encode %s: %v", path, err)
	}
	return o.Publish(path, string(data))
}

// Hits returns how many requests path has received.
func (o *Origin) Hits(path string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.hits[path]
}

// SHA1 returns the lowercase hex SHA-1 of content.
func SHA1(content string) string {
	sum := sha1.Sum([]byte(content)) //nolint:gosec // content digests, not security
	return hex.EncodeToString(sum[:])
}

// RuntimeFile is one entry of a runtime files manifest.
type RuntimeFile struct {
	Type       string              `json:"type"`
	Executable bool                `json:"executable,omitempty"`
	Target     string              `json:"target,omitempty"`
	Downloads  map[string]Download `json:"downloads,omitempty"`
}

// RuntimeManifest builds a runtime files manifest.
type RuntimeManifest struct {
	Files map[string]RuntimeFile `json:"files"`
}

// NewRuntimeManifest returns an empty runtime manifest.
func NewRuntimeManifest() *RuntimeManifest {
	return &RuntimeManifest{Files: make(map[string]RuntimeFile)}
}

// Dir adds a directory entry.
func (m *RuntimeManifest) Dir(path string) *RuntimeManifest {
	m.Files[path] = RuntimeFile{Type: "directory"}
	return m
}

// File adds a regular file entry downloaded from d.
func (m *RuntimeManifest) File(path string, d Download, executable bool) *RuntimeManifest {
	m.Files[path] = RuntimeFile{
		Type:       "file",
		Executable: executable,
		Downloads:  map[string]Download{"raw": d},
	}
	return m
}

// Link adds a symbolic link entry.
func (m *RuntimeManifest) Link(path, target string) *RuntimeManifest {
	m.Files[path] = RuntimeFile{Type: "link", Target: target}
	return m
}
