package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variables read by ResolveClientConfig.
const (
	EnvBaseURL     = "PATCH_BASE_URL"
	EnvAccount     = "PATCH_ACCOUNT"
	EnvPassword    = "PATCH_PASSWORD"
	EnvToken       = "PATCH_TOKEN"
	EnvAccountType = "PATCH_ACCOUNT_TYPE"
	EnvProfile     = "PATCH_PROFILE"
	EnvTimeout     = "PATCH_TIMEOUT"
	EnvRPS         = "PATCH_RPS"
)

// ClientConfig contains resolved API client settings.
type ClientConfig struct {
	Profile     string
	BaseURL     string
	Account     string
	Password    string
	AccountType string
	LoginAPI    string
	// Token is a pre-issued session token; when set no login is needed.
	Token             string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// HasCredentials reports whether a login can be attempted.
func (c ClientConfig) HasCredentials() bool {
	return c.Account != "" && c.Password != ""
}

// Overrides are command-line values that win over profile and environment.
type Overrides struct {
	Profile string
	BaseURL string
	Timeout time.Duration
	RPS     float64
}

// ResolveClientConfig merges, in increasing priority, the stored profile,
// PATCH_* environment variables and command-line overrides. A missing
// profile is fine as long as a base URL comes from somewhere else.
func ResolveClientConfig(o Overrides) (ClientConfig, error) {
	var cfg ClientConfig

	profileName := o.Profile
	if profileName == "" {
		profileName = strings.TrimSpace(os.Getenv(EnvProfile))
	}
	var (
		p   Profile
		err error
	)
	if profileName != "" {
		p, err = LoadProfile(profileName)
	} else {
		profileName, err = CurrentProfile()
		if err == nil {
			p, err = LoadProfile(profileName)
		}
	}
	if err != nil && !errors.Is(err, ErrNotConfigured) {
		return ClientConfig{}, err
	}
	if err == nil {
		cfg.Profile = profileName
		cfg.BaseURL = p.BaseURL
		cfg.Account = p.Account
		cfg.Password = p.Password
		cfg.AccountType = p.AccountType
		cfg.LoginAPI = p.LoginAPI
	}

	if v := strings.TrimSpace(os.Getenv(EnvBaseURL)); v != "" {
		cfg.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvAccount)); v != "" {
		cfg.Account = v
	}
	if v, ok := firstNonBlankSecretEnv(EnvPassword); ok {
		cfg.Password = v
	}
	if v, ok := firstNonBlankSecretEnv(EnvToken); ok {
		cfg.Token = strings.TrimSpace(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvAccountType)); v != "" {
		cfg.AccountType = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvTimeout)); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return ClientConfig{}, fmt.Errorf("%s must be a positive duration such as 30s", EnvTimeout)
		}
		cfg.Timeout = d
	}
	if v := strings.TrimSpace(os.Getenv(EnvRPS)); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil || rps < 0 {
			return ClientConfig{}, fmt.Errorf("%s must be a non-negative number", EnvRPS)
		}
		cfg.RequestsPerSecond = rps
	}

	if o.BaseURL != "" {
		cfg.BaseURL = o.BaseURL
	}
	if o.Timeout > 0 {
		cfg.Timeout = o.Timeout
	}
	if o.RPS > 0 {
		cfg.RequestsPerSecond = o.RPS
	}

	if cfg.BaseURL == "" {
		return ClientConfig{}, fmt.Errorf("base URL not configured (set %s, run 'patchctl auth login', or pass --base-url)", EnvBaseURL)
	}
	switch cfg.AccountType {
	case "", AccountTypeManager, AccountTypeViewer:
	default:
		return ClientConfig{}, fmt.Errorf("%s must be %s or %s, got %q", EnvAccountType, AccountTypeManager, AccountTypeViewer, cfg.AccountType)
	}
	if cfg.Token != "" && cfg.AccountType == "" {
		return ClientConfig{}, fmt.Errorf("%s requires %s (manager or viewer)", EnvToken, EnvAccountType)
	}
	return cfg, nil
}
