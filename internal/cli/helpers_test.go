package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	gosync "sync"
	"testing"

	"github.com/klauern/assetsync/internal/util"
)

// runCLI runs the application with args and returns what it printed to stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	os.Stdout = w

	var buf bytes.Buffer
	done := make(chan struct{})
	go func() {
		_, _ = io.Copy(&buf, r)
		close(done)
	}()

	runErr := Run(context.Background(), append([]string{"assetsync", "--no-color"}, args...))

	if err := w.Close(); err != nil {
		t.Fatalf("failed to close pipe writer: %v", err)
	}
	os.Stdout = old
	<-done

	return buf.String(), runErr
}

// fixtureServer serves named documents and counts requests per path.
type fixtureServer struct {
	*httptest.Server

	mu    gosync.Mutex
	docs  map[string]string
	hits  map[string]int
	agent string
}

func newFixtureServer(t *testing.T) *fixtureServer {
	t.Helper()
	fs := &fixtureServer{docs: make(map[string]string), hits: make(map[string]int)}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		fs.hits[r.URL.Path]++
		fs.agent = r.UserAgent()
		doc, ok := fs.docs[r.URL.Path]
		fs.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, doc)
	}))
	t.Cleanup(fs.Close)
	return fs
}

func (fs *fixtureServer) put(path, doc string) string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.docs[path] = doc
	return fs.URL + path
}

func (fs *fixtureServer) hitsFor(path string) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.hits[path]
}

func (fs *fixtureServer) userAgent() string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.agent
}

// runtimeManifest publishes two files, a directory and a link and returns
// the manifest URL.
func (fs *fixtureServer) runtimeManifest() string {
	java := fs.put("/files/java", "#!/bin/sh\necho java\n")
	lib := fs.put("/files/libjli.so", "ELF")

	var b strings.Builder
	b.WriteString(`{"files": {`)
	b.WriteString(`"bin": {"type": "directory"},`)
	fmt.Fprintf(&b, `"bin/java": {"type": "file", "executable": true, "downloads": {"raw": {"sha1": %q, "size": %d, "url": %q}}},`,
		util.SHA1Hex("#!/bin/sh\necho java\n"), len("#!/bin/sh\necho java\n"), java)
	fmt.Fprintf(&b, `"lib/libjli.so": {"type": "file", "downloads": {"raw": {"sha1": %q, "size": 3, "url": %q}}},`,
		util.SHA1Hex("ELF"), lib)
	b.WriteString(`"bin/libjli.so": {"type": "link", "target": "../lib/libjli.so"}`)
	b.WriteString(`}}`)

	return fs.put("/runtime.json", b.String())
}
