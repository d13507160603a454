package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"slices"
	"strings"

	"github.com/99designs/keyring"

	"github.com/conalog/patch-cli/internal/validation"
)

const (
	serviceName    = "patchctl"
	defaultProfile = "default"

	profilePrefix     = "profile:"
	profileIndexKey   = "profiles_index"
	currentProfileKey = "current_profile"

	envKeyringBackend  = "PATCH_KEYRING_BACKEND"
	envKeyringPassword = "PATCH_KEYRING_PASSWORD"
	envCredentialsDir  = "PATCH_CREDENTIALS_DIR"
)

// Login API versions a profile can authenticate with.
const (
	LoginAPIV3 = "v3"
	LoginAPIV2 = "v2"
)

// Account kinds a profile can pin.
const (
	AccountTypeManager = "manager"
	AccountTypeViewer  = "viewer"
)

// ErrNotConfigured is returned when no profile is stored
var ErrNotConfigured = errors.New("patchctl not configured - run 'patchctl auth login' first")

// Profile holds the PATCH connection details. Only credentials are stored;
// session tokens live in memory for the duration of one command.
type Profile struct {
	BaseURL  string `json:"base_url"`
	Account  string `json:"account"`
	Password string `json:"password,omitempty"`
	// AccountType pins manager or viewer; empty infers it from Account.
	AccountType string `json:"account_type,omitempty"`
	// LoginAPI selects the password endpoint: v3 (default) or v2.
	LoginAPI string `json:"login_api,omitempty"`
}

// String redacts the password.
func (p Profile) String() string {
	pw := ""
	if p.Password != "" {
		pw = "[redacted]"
	}
	return fmt.Sprintf("Profile{BaseURL:%s Account:%s Password:%s AccountType:%s LoginAPI:%s}",
		p.BaseURL, p.Account, pw, p.AccountType, p.LoginAPI)
}

func (p Profile) normalized() Profile {
	p.BaseURL = strings.TrimSuffix(strings.TrimSpace(p.BaseURL), "/")
	p.Account = strings.TrimSpace(p.Account)
	p.AccountType = strings.ToLower(strings.TrimSpace(p.AccountType))
	p.LoginAPI = strings.ToLower(strings.TrimSpace(p.LoginAPI))
	return p
}

// Validate checks that a profile can be used to reach and log in to PATCH.
func (p Profile) Validate() error {
	if _, err := validation.ValidateBaseURL(p.BaseURL); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}
	switch p.AccountType {
	case "", AccountTypeManager, AccountTypeViewer:
	default:
		return fmt.Errorf("invalid profile: account type %q must be %s or %s", p.AccountType, AccountTypeManager, AccountTypeViewer)
	}
	switch p.LoginAPI {
	case "", LoginAPIV3, LoginAPIV2:
	default:
		return fmt.Errorf("invalid profile: login API %q must be %s or %s", p.LoginAPI, LoginAPIV3, LoginAPIV2)
	}
	if p.Password != "" && p.Account == "" {
		return errors.New("invalid profile: a password needs an account")
	}
	if p.LoginAPI == LoginAPIV2 && p.AccountType == AccountTypeManager && p.Account != "" && !strings.Contains(p.Account, "@") {
		return fmt.Errorf("invalid profile: v2 manager login needs an email, got %q", p.Account)
	}
	return nil
}

var profileNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

// ValidateProfileName rejects names that would be awkward on the command line.
func ValidateProfileName(name string) error {
	if !profileNamePattern.MatchString(name) {
		return fmt.Errorf("profile name %q must be letters, digits, '.', '_' or '-' (64 at most)", name)
	}
	return nil
}

func profileName(name string) string {
	if name = strings.TrimSpace(name); name == "" {
		return defaultProfile
	}
	return name
}

func profileKey(name string) string {
	return profilePrefix + profileName(name)
}

// store is the opened keyring holding profiles, the profile index and the
// current profile name.
type store struct {
	ring keyring.Keyring
}

func openStore() (*store, error) {
	ring, err := openKeyring(keyringConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open keyring: %w", err)
	}
	return &store{ring: ring}, nil
}

func (s *store) profile(name string) (Profile, error) {
	item, err := s.ring.Get(profileKey(name))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return Profile{}, ErrNotConfigured
	}
	if err != nil {
		return Profile{}, fmt.Errorf("failed to get profile %s: %w", name, err)
	}
	var p Profile
	if err := json.Unmarshal(item.Data, &p); err != nil {
		return Profile{}, fmt.Errorf("failed to decode profile %s: %w", name, err)
	}
	return p, nil
}

func (s *store) putProfile(name string, p Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}
	if err := s.ring.Set(keyring.Item{Key: profileKey(name), Label: "patchctl profile " + name, Data: data}); err != nil {
		return fmt.Errorf("failed to save profile %s: %w", name, err)
	}
	return nil
}

func (s *store) names() ([]string, error) {
	return loadProfileIndex(s.ring)
}

func (s *store) setNames(names []string) error {
	data, err := json.Marshal(normalizeProfiles(names))
	if err != nil {
		return fmt.Errorf("failed to encode profile index: %w", err)
	}
	return s.ring.Set(keyring.Item{Key: profileIndexKey, Data: data})
}

func (s *store) current() (string, error) {
	item, err := s.ring.Get(currentProfileKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return defaultProfile, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get current profile: %w", err)
	}
	return profileName(string(item.Data)), nil
}

func (s *store) setCurrent(name string) error {
	if name == "" {
		if err := s.ring.Remove(currentProfileKey); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
			return fmt.Errorf("failed to clear current profile: %w", err)
		}
		return nil
	}
	return s.ring.Set(keyring.Item{Key: currentProfileKey, Data: []byte(name)})
}

func loadProfileIndex(ring keyring.Keyring) ([]string, error) {
	item, err := ring.Get(profileIndexKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile index: %w", err)
	}
	var names []string
	if err := json.Unmarshal(item.Data, &names); err != nil {
		return nil, fmt.Errorf("failed to decode profile index: %w", err)
	}
	if names = normalizeProfiles(names); names == nil {
		return []string{}, nil
	}
	return names, nil
}

// normalizeProfiles trims names and drops blanks and duplicates, keeping order.
func normalizeProfiles(names []string) []string {
	var out []string
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n != "" && !slices.Contains(out, n) {
			out = append(out, n)
		}
	}
	return out
}

// SaveProfile validates and stores a profile, adds it to the index and makes
// it current.
func SaveProfile(name string, p Profile) error {
	name = profileName(name)
	if err := ValidateProfileName(name); err != nil {
		return err
	}
	p = p.normalized()
	if err := p.Validate(); err != nil {
		return err
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	if err := s.putProfile(name, p); err != nil {
		return err
	}
	names, err := s.names()
	if err != nil {
		return err
	}
	if err := s.setNames(append(names, name)); err != nil {
		return err
	}
	return s.setCurrent(name)
}

// LoadProfile returns the stored profile, or ErrNotConfigured.
func LoadProfile(name string) (Profile, error) {
	s, err := openStore()
	if err != nil {
		return Profile{}, err
	}
	return s.profile(profileName(name))
}

// DeleteProfile removes a stored profile. When it was current, the first
// remaining profile becomes current.
func DeleteProfile(name string) error {
	name = profileName(name)
	s, err := openStore()
	if err != nil {
		return err
	}
	if err := s.ring.Remove(profileKey(name)); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("failed to remove profile %s: %w", name, err)
	}

	names, err := s.names()
	if err != nil {
		return err
	}
	remaining := slices.DeleteFunc(names, func(n string) bool { return n == name })
	if err := s.setNames(remaining); err != nil {
		return err
	}

	current, err := s.current()
	if err != nil || current != name {
		return err
	}
	next := ""
	if len(remaining) > 0 {
		next = remaining[0]
	}
	return s.setCurrent(next)
}

// ListProfiles returns the stored profile names in the order they were added.
func ListProfiles() ([]string, error) {
	s, err := openStore()
	if err != nil {
		return nil, err
	}
	return s.names()
}

// CurrentProfile returns the active profile name; "default" when none is set.
func CurrentProfile() (string, error) {
	s, err := openStore()
	if err != nil {
		return "", err
	}
	return s.current()
}

// openKeyring opens the backing keyring. Tests replace it via SetOpenKeyring.
var openKeyring = keyring.Open

// SetOpenKeyring allows replacing the keyring opener for testing.
// Returns a cleanup function that restores the original.
func SetOpenKeyring(fn func(keyring.Config) (keyring.Keyring, error)) func() {
	original := openKeyring
	openKeyring = fn
	return func() { openKeyring = original }
}

// backendMode is the PATCH_KEYRING_BACKEND setting.
type backendMode string

const (
	backendAuto   backendMode = "auto"
	backendFile   backendMode = "file"
	backendSystem backendMode = "system"
)

func parseBackendMode(value string) backendMode {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "file":
		return backendFile
	case "system", "os", "native":
		return backendSystem
	default:
		return backendAuto
	}
}

// fileOnly reports whether only the encrypted file backend may be used:
// when asked for, or on Linux without a session bus for the secret service.
func fileOnly(mode backendMode, goos, dbusAddr string) bool {
	switch mode {
	case backendFile:
		return true
	case backendAuto:
		return goos == "linux" && strings.TrimSpace(dbusAddr) == ""
	default:
		return false
	}
}

func keyringConfig() keyring.Config {
	cfg := keyring.Config{ServiceName: serviceName}
	mode := parseBackendMode(os.Getenv(envKeyringBackend))
	if mode == backendSystem {
		return cfg
	}
	// Auto mode keeps the file settings so keyring.Open can fall back to them.
	cfg.FileDir = credentialsDir()
	cfg.FilePasswordFunc = filePassword
	if fileOnly(mode, runtime.GOOS, os.Getenv("DBUS_SESSION_BUS_ADDRESS")) {
		cfg.AllowedBackends = []keyring.BackendType{keyring.FileBackend}
	}
	return cfg
}

var userConfigDir = os.UserConfigDir

// credentialsDir is where the file backend keeps its encrypted items:
// PATCH_CREDENTIALS_DIR, else the user config dir, else a temp dir.
func credentialsDir() string {
	if dir := strings.TrimSpace(os.Getenv(envCredentialsDir)); dir != "" {
		return filepath.Join(dir, "keyring")
	}
	candidates := []func() (string, error){
		func() (string, error) {
			dir, err := userConfigDir()
			return filepath.Join(dir, serviceName), err
		},
		func() (string, error) {
			home, err := os.UserHomeDir()
			return filepath.Join(home, ".config", serviceName), err
		},
	}
	for _, candidate := range candidates {
		if dir, err := candidate(); err == nil && filepath.IsAbs(dir) {
			return filepath.Join(dir, "keyring")
		}
	}
	return filepath.Join(os.TempDir(), serviceName, "keyring")
}

var stdinIsTerminal = func() bool {
	info, err := os.Stdin.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

func filePassword(prompt string) (string, error) {
	if password, ok := firstNonBlankSecretEnv(envKeyringPassword); ok {
		return password, nil
	}
	if !stdinIsTerminal() {
		return "", fmt.Errorf("set %s to unlock the file keyring without a terminal", envKeyringPassword)
	}
	return keyring.TerminalPrompt(prompt)
}

// firstNonBlankSecretEnv returns the first set, non-blank variable unchanged;
// secrets keep their surrounding whitespace.
func firstNonBlankSecretEnv(keys ...string) (string, bool) {
	for _, key := range keys {
		if value := os.Getenv(key); strings.TrimSpace(value) != "" {
			return value, true
		}
	}
	return "", false
}
