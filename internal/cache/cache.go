// Package cache keeps short-lived JSON copies of list responses on disk.
//
// Files are scoped per resource, base URL and account. Entries expire after
// DefaultTTL; PATCH_NO_CACHE=1 disables the cache.
package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const DefaultTTL = 5 * time.Minute

// EnvDisable turns the cache off when non-empty.
const EnvDisable = "PATCH_NO_CACHE"

type entry struct {
	CachedAt time.Time       `json:"cached_at"`
	Items    json.RawMessage `json:"items"`
}

// Store reads and writes one cache file.
type Store struct {
	path string
	ttl  time.Duration
	now  func() time.Time
}

// NewStore returns a Store with DefaultTTL for resource key on baseURL as
// account.
func NewStore(dir, key, baseURL, account string) *Store {
	return NewStoreWithTTL(dir, key, baseURL, account, DefaultTTL)
}

// NewStoreWithTTL returns a Store with a custom TTL.
func NewStoreWithTTL(dir, key, baseURL, account string, ttl time.Duration) *Store {
	filename := fmt.Sprintf("%s_%s_%s.json", sanitizeKey(key), shortHash(strings.TrimSuffix(baseURL, "/")), shortHash(account))
	return &Store{
		path: filepath.Join(dir, filename),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Path returns the cache file location.
func (s *Store) Path() string {
	return s.path
}

// Get loads cached items into dst. It reports false on a missing, expired
// or unreadable entry and when the cache is disabled.
func (s *Store) Get(dst any) bool {
	if disabled() {
		return false
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return false
	}
	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return false
	}
	if s.now().Sub(e.CachedAt) > s.ttl {
		return false
	}
	return json.Unmarshal(e.Items, dst) == nil
}

// Put writes items. Failures are ignored.
func (s *Store) Put(items any) {
	if disabled() {
		return
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return
	}
	data, err := json.Marshal(entry{CachedAt: s.now(), Items: raw})
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		_ = os.Remove(tmp)
		return
	}
	_ = os.Rename(tmp, s.path)
}

// Clear removes this cache file.
func (s *Store) Clear() {
	_ = os.Remove(s.path)
}

// ClearAll removes every cache file in dir and returns how many were
// removed. Files not following the cache naming scheme are left alone.
func ClearAll(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !IsCacheFilename(e.Name()) {
			continue
		}
		if os.Remove(filepath.Join(dir, e.Name())) == nil {
			removed++
		}
	}
	return removed
}

// DefaultDir returns "$XDG_CACHE_HOME/patch-cli" or the platform equivalent.
func DefaultDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "patch-cli"), nil
}

func disabled() bool {
	return os.Getenv(EnvDisable) != ""
}

func shortHash(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:6])
}

func sanitizeKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "cache"
	}
	return strings.NewReplacer("/", "-", "\\", "-", "_", "-").Replace(key)
}

// IsCacheFilename reports whether name follows "<key>_<12hex>_<12hex>.json".
func IsCacheFilename(name string) bool {
	base, ok := strings.CutSuffix(name, ".json")
	if !ok {
		return false
	}
	parts := strings.Split(base, "_")
	if len(parts) != 3 || parts[0] == "" {
		return false
	}
	return isShortHash(parts[1]) && isShortHash(parts[2])
}

func isShortHash(s string) bool {
	if len(s) != 12 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
