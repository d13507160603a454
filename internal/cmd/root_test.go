package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	clearPatchEnv(t)

	output := captureStdout(t, func() {
		require.NoError(t, Execute(context.Background(), []string{"version"}))
	})
	assert.Equal(t, "patchctl version dev\n", output)

	output = captureStdout(t, func() {
		require.NoError(t, Execute(context.Background(), []string{"version", "-o", "json"}))
	})
	assert.Equal(t, "dev", decodeObject(t, output)["version"])
}

func TestRootFlags_QueryForcesJSON(t *testing.T) {
	clearPatchEnv(t)

	output := captureStdout(t, func() {
		require.NoError(t, Execute(context.Background(), []string{"version", "--jq", ".version"}))
	})
	assert.Equal(t, "\"dev\"\n", output)
}

func TestRootFlags_CompactAlias(t *testing.T) {
	clearPatchEnv(t)

	output := captureStdout(t, func() {
		require.NoError(t, Execute(context.Background(), []string{"version", "--json", "--cj"}))
	})
	assert.Equal(t, "{\"version\":\"dev\"}\n", output)
}

func TestRootFlags_Template(t *testing.T) {
	clearPatchEnv(t)

	output := captureStdout(t, func() {
		require.NoError(t, Execute(context.Background(), []string{"version", "--template", "v={{.version}}"}))
	})
	assert.Equal(t, "v=dev", strings.TrimSpace(output))

	path := filepath.Join(t.TempDir(), "tmpl")
	require.NoError(t, os.WriteFile(path, []byte("file {{.version}}"), 0o600))
	output = captureStdout(t, func() {
		require.NoError(t, Execute(context.Background(), []string{"version", "--template", "@" + path}))
	})
	assert.Equal(t, "file dev", strings.TrimSpace(output))
}

func TestRootFlags_Conflicts(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"json vs text output", []string{"version", "--json", "-o", "text"}, "--json conflicts with --output text"},
		{"jq vs query", []string{"version", "--jq", ".a", "--query", ".b"}, "cannot be used together"},
		{"query with explicit text", []string{"version", "-o", "text", "--query", ".version"}, "require --output json"},
		{"bad output", []string{"version", "-o", "yaml"}, "yaml"},
		{"negative timeout", []string{"version", "--timeout=-1s"}, "--timeout must be >= 0"},
		{"negative rps", []string{"version", "--rps=-2"}, "--rps must be >= 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearPatchEnv(t)
			var err error
			_ = captureStderr(t, func() {
				err = Execute(context.Background(), tt.args)
			})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestUnknownCommandSuggestsAlternatives(t *testing.T) {
	clearPatchEnv(t)

	var err error
	stderr := captureStderr(t, func() {
		err = Execute(context.Background(), []string{"plantz"})
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
	assert.Contains(t, stderr, "plants")
	assert.Equal(t, exitUsage, ExitCode(err))
}

func TestOutputFromEnvironment(t *testing.T) {
	clearPatchEnv(t)
	t.Setenv("PATCH_OUTPUT", "json")

	output := captureStdout(t, func() {
		require.NoError(t, Execute(context.Background(), []string{"version"}))
	})
	assert.Equal(t, "dev", decodeObject(t, output)["version"])
}

func TestDotEnvIsLoaded(t *testing.T) {
	clearPatchEnv(t)
	useTestKeyring(t)
	dir := os.Getenv("XDG_CONFIG_HOME")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "patchctl"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "patchctl", ".env"),
		[]byte("PATCH_BASE_URL=https://dotenv.example.com\n"), 0o600))
	// godotenv.Load sets process variables; make sure they are undone.
	t.Setenv("PATCH_BASE_URL", "")
	require.NoError(t, os.Unsetenv("PATCH_BASE_URL"))

	output := captureStdout(t, func() {
		require.NoError(t, Execute(context.Background(), []string{"auth", "status", "-o", "json"}))
	})
	assert.Equal(t, "https://dotenv.example.com", decodeObject(t, output)["base_url"])
}
