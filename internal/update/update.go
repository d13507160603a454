// Package update checks GitHub releases for a newer patchctl.
package update

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/mod/semver"
)

const (
	DefaultGitHubReleasesURL = "https://api.github.com/repos/conalog/patch-cli/releases/latest"
	CheckTimeout             = 5 * time.Second
)

// GitHubReleasesURL is the release endpoint queried by Check. Tests override it.
var GitHubReleasesURL = DefaultGitHubReleasesURL

type Release struct {
	TagName    string `json:"tag_name"`
	HTMLURL    string `json:"html_url"`
	Draft      bool   `json:"draft"`
	Prerelease bool   `json:"prerelease"`
}

type CheckResult struct {
	CurrentVersion  string `json:"current_version"`
	LatestVersion   string `json:"latest_version"`
	UpdateURL       string `json:"update_url,omitempty"`
	UpdateAvailable bool   `json:"update_available"`
}

// ErrDevBuild is returned by Check for unversioned builds.
var ErrDevBuild = fmt.Errorf("development build has no version to compare")

// Check fetches the latest release and compares it with currentVersion.
// Drafts and prereleases never count as an available update.
func Check(ctx context.Context, currentVersion string) (*CheckResult, error) {
	if currentVersion == "dev" || currentVersion == "" {
		return nil, ErrDevBuild
	}

	ctx, cancel := context.WithTimeout(ctx, CheckTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, GitHubReleasesURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "patchctl/"+currentVersion)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("release check failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("release check failed: HTTP %d", resp.StatusCode)
	}

	var release Release
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&release); err != nil {
		return nil, fmt.Errorf("release check failed: %w", err)
	}

	current := normalizeVersion(currentVersion)
	latest := normalizeVersion(release.TagName)

	result := &CheckResult{
		CurrentVersion: strings.TrimPrefix(currentVersion, "v"),
		LatestVersion:  strings.TrimPrefix(release.TagName, "v"),
		UpdateURL:      release.HTMLURL,
	}
	if release.Draft || release.Prerelease {
		return result, nil
	}
	if semver.IsValid(current) && semver.IsValid(latest) {
		result.UpdateAvailable = semver.Compare(latest, current) > 0
	}
	return result, nil
}

// CheckForUpdate is Check without errors: any failure yields nil.
func CheckForUpdate(ctx context.Context, currentVersion string) *CheckResult {
	result, err := Check(ctx, currentVersion)
	if err != nil {
		return nil
	}
	return result
}

func normalizeVersion(v string) string {
	if !strings.HasPrefix(v, "v") {
		return "v" + v
	}
	return v
}
