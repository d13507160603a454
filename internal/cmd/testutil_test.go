package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/99designs/keyring"

	"github.com/conalog/patch-cli/internal/cache"
	"github.com/conalog/patch-cli/internal/config"
)

// captureStdout runs fn and returns what it wrote to os.Stdout.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		done <- buf.String()
	}()

	fn()

	_ = w.Close()
	os.Stdout = old
	return <-done
}

// captureStderr runs fn and returns what it wrote to os.Stderr.
func captureStderr(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		done <- buf.String()
	}()

	fn()

	_ = w.Close()
	os.Stderr = old
	return <-done
}

// useTestKeyring gives the test its own in-memory keyring that survives
// across the config calls of one command run.
func useTestKeyring(t *testing.T) keyring.Keyring {
	t.Helper()
	ring := keyring.NewArrayKeyring(nil)
	restore := config.SetOpenKeyring(func(keyring.Config) (keyring.Keyring, error) {
		return ring, nil
	})
	t.Cleanup(restore)
	return ring
}

// clearPatchEnv unsets every PATCH_* variable the CLI reads and points the
// .env lookup at an empty directory.
func clearPatchEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		config.EnvBaseURL, config.EnvAccount, config.EnvPassword, config.EnvToken,
		config.EnvAccountType, config.EnvProfile, config.EnvTimeout, config.EnvRPS,
		"PATCH_RESOLVE_NAMES", "PATCH_LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("PATCH_OUTPUT", "text")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv(envCacheDir, t.TempDir())
	t.Setenv(cache.EnvDisable, "")
}

// setupTestEnv starts a mock PATCH server and points the CLI at it with a
// pre-issued manager session, so no login request is made.
func setupTestEnv(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	clearPatchEnv(t)
	useTestKeyring(t)

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	t.Setenv(config.EnvBaseURL, server.URL)
	t.Setenv(config.EnvToken, "test-token")
	t.Setenv(config.EnvAccountType, "manager")
	return server
}

// jsonResponse returns a handler answering with a fixed JSON body.
func jsonResponse(statusCode int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		_, _ = w.Write([]byte(body))
	}
}

// routeHandler routes on "METHOD PATH" and records every request it sees.
// Unmatched requests get a 404 problem document.
type routeHandler struct {
	mu       sync.Mutex
	routes   map[string]http.HandlerFunc
	requests []*http.Request
}

func newRouteHandler() *routeHandler {
	return &routeHandler{routes: make(map[string]http.HandlerFunc)}
}

// On registers handler for method and path and returns h for chaining.
func (h *routeHandler) On(method, path string, handler http.HandlerFunc) *routeHandler {
	h.routes[method+" "+path] = handler
	return h
}

func (h *routeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	h.requests = append(h.requests, r.Clone(r.Context()))
	handler, ok := h.routes[r.Method+" "+r.URL.Path]
	h.mu.Unlock()
	if !ok {
		jsonResponse(http.StatusNotFound, `{"title":"Not Found","status":404,"detail":"no route for `+r.Method+" "+r.URL.Path+`"}`)(w, r)
		return
	}
	handler(w, r)
}

// Requests returns the recorded requests.
func (h *routeHandler) Requests() []*http.Request {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*http.Request(nil), h.requests...)
}

// count returns how often method and path were requested.
func (h *routeHandler) count(method, path string) int {
	n := 0
	for _, r := range h.Requests() {
		if r.Method == method && r.URL.Path == path {
			n++
		}
	}
	return n
}

// decodeItems decodes {"items": [...]} output.
func decodeItems(t *testing.T, output string) []map[string]any {
	t.Helper()
	var wrapped struct {
		Items []map[string]any `json:"items"`
	}
	if err := json.Unmarshal([]byte(output), &wrapped); err != nil {
		t.Fatalf("output is not an items object: %v\n%s", err, output)
	}
	return wrapped.Items
}

// decodeObject decodes a JSON object from output.
func decodeObject(t *testing.T, output string) map[string]any {
	t.Helper()
	var obj map[string]any
	if err := json.Unmarshal([]byte(output), &obj); err != nil {
		t.Fatalf("output is not a JSON object: %v\n%s", err, output)
	}
	return obj
}
