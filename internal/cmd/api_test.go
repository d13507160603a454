package cmd

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPICommand_GetWithParams(t *testing.T) {
	handler := newRouteHandler().On("GET", "/api/v3/plants", jsonResponse(http.StatusOK, `{"items":[],"page":2}`))
	setupTestEnv(t, handler)

	output := captureStdout(t, func() {
		require.NoError(t, Execute(context.Background(), []string{"api", "api/v3/plants", "-p", "page=2", "-p", "size=10"}))
	})
	assert.Equal(t, "{\n  \"items\": [],\n  \"page\": 2\n}\n", output)

	req := handler.Requests()[0]
	assert.Equal(t, "2", req.URL.Query().Get("page"))
	assert.Equal(t, "10", req.URL.Query().Get("size"))
	assert.Equal(t, "Bearer test-token", req.Header.Get("Authorization"))
}

func TestAPICommand_PostFields(t *testing.T) {
	var (
		body        map[string]any
		contentType string
	)
	handler := newRouteHandler().On("POST", "/api/v3/plants", func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&body)
		jsonResponse(http.StatusCreated, `{"id":"plant-9"}`)(w, r)
	})
	setupTestEnv(t, handler)

	output := captureStdout(t, func() {
		require.NoError(t, Execute(context.Background(), []string{
			"api", "/api/v3/plants", "-X", "post", "-f", "name=North=Field", "-F", "capacity=12.5", "-d", `{"organizationId":"org-1"}`, "-o", "json",
		}))
	})
	assert.Equal(t, "plant-9", decodeObject(t, output)["id"])
	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, map[string]any{"name": "North=Field", "capacity": 12.5, "organizationId": "org-1"}, body)
}

func TestAPICommand_IncludeHeaders(t *testing.T) {
	handler := newRouteHandler().On("GET", "/api/v3/account/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Trace", "abc")
		jsonResponse(http.StatusOK, `{"name":"Ops"}`)(w, r)
	})
	setupTestEnv(t, handler)

	output := captureStdout(t, func() {
		require.NoError(t, Execute(context.Background(), []string{"api", "api/v3/account/", "--include"}))
	})
	assert.True(t, strings.HasPrefix(output, "HTTP 200\n"))
	assert.Contains(t, output, "X-Trace: abc\n")
	assert.Contains(t, output, "\"name\": \"Ops\"")

	output = captureStdout(t, func() {
		require.NoError(t, Execute(context.Background(), []string{"api", "api/v3/account/", "--include", "-o", "json"}))
	})
	obj := decodeObject(t, output)
	assert.EqualValues(t, 200, obj["status"])
	assert.Equal(t, map[string]any{"name": "Ops"}, obj["body"])
}

func TestAPICommand_NonJSONBody(t *testing.T) {
	handler := newRouteHandler().On("GET", "/api/v3/plants/plant-1/blueprint", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "row A")
	})
	setupTestEnv(t, handler)

	output := captureStdout(t, func() {
		require.NoError(t, Execute(context.Background(), []string{"api", "api/v3/plants/plant-1/blueprint", "--silent"}))
	})
	assert.Empty(t, output)
	assert.Equal(t, 1, handler.count("GET", "/api/v3/plants/plant-1/blueprint"))
}

func TestAPICommand_DryRun(t *testing.T) {
	handler := newRouteHandler()
	setupTestEnv(t, handler)

	output := captureStdout(t, func() {
		require.NoError(t, Execute(context.Background(), []string{"api", "api/v3/plants", "-X", "DELETE", "-p", "force=true", "--dry-run"}))
	})
	assert.Contains(t, output, "[DRY-RUN] Would send request")
	assert.Contains(t, output, "DELETE /api/v3/plants")
	assert.Contains(t, output, "query: force=true")
	assert.Empty(t, handler.Requests())
}

func TestAPICommand_Errors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantExit int
		wantErr  string
	}{
		{"bad method", []string{"api", "api/v3/plants", "-X", "TRACE"}, exitUsage, "invalid method"},
		{"query in path", []string{"api", "api/v3/plants?page=2"}, exitUsage, "query"},
		{"dot segment", []string{"api", "api/v3/../admin"}, exitUsage, "dot segment"},
		{"bad field", []string{"api", "api/v3/plants", "-X", "POST", "-f", "=x"}, exitUsage, "must be key=value"},
		{"bad raw field", []string{"api", "api/v3/plants", "-X", "POST", "-F", "n={"}, exitGeneric, "invalid JSON"},
		{"not found", []string{"api", "api/v3/nowhere"}, exitNotFound, "Not Found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newRouteHandler()
			setupTestEnv(t, handler)

			var err error
			_ = captureStderr(t, func() {
				err = Execute(context.Background(), tt.args)
			})
			require.Error(t, err)
			assert.Equal(t, tt.wantExit, ExitCode(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
