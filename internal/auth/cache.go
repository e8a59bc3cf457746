package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/99designs/keyring"
)

// Token cache backends.
const (
	CacheBackendFile    = "file"
	CacheBackendKeyring = "keyring"
)

const (
	appDirName       = "inboxreader"
	tokenCacheFile   = "token_cache.json"
	keyringService   = "inboxreader"
	keyringTokenKey  = "graph-token"
	keyringFilePass  = "inboxreader-file-key"
	cacheDirPerm     = 0o700
	cacheFilePerm    = 0o600
	keyringEnvelopeV = 1
)

// TokenCache persists at most one credential.
type TokenCache interface {
	// Load returns ErrCacheMiss when nothing is stored.
	Load(ctx context.Context) (*Credential, error)
	// Save overwrites any stored credential.
	Save(ctx context.Context, cred *Credential) error
	// Clear removes the stored credential. Clearing an empty cache is not an error.
	Clear(ctx context.Context) error
	// Backend names the storage, one of the CacheBackend* constants.
	Backend() string
}

// NewTokenCache opens the cache backend by name. path is the file for the
// file backend and the fallback directory for the keyring's encrypted file
// backend.
func NewTokenCache(backend, path string) (TokenCache, error) {
	switch backend {
	case CacheBackendFile, "":
		return NewFileTokenCache(path), nil
	case CacheBackendKeyring:
		return OpenKeyringTokenCache(filepath.Dir(orDefault(path, DefaultTokenCachePath())))
	default:
		return nil, fmt.Errorf("unknown token cache backend %q", backend)
	}
}

// FileTokenCache stores the raw token response in a single file.
type FileTokenCache struct {
	path string
}

// NewFileTokenCache returns a cache at path, or at DefaultTokenCachePath if empty.
func NewFileTokenCache(path string) *FileTokenCache {
	return &FileTokenCache{path: orDefault(path, DefaultTokenCachePath())}
}

// DefaultTokenCachePath is token_cache.json in the per-user cache directory.
func DefaultTokenCachePath() string {
	return filepath.Join(userCacheDir(), appDirName, tokenCacheFile)
}

// Path returns the cache file location.
func (c *FileTokenCache) Path() string { return c.path }

// Backend implements TokenCache.
func (c *FileTokenCache) Backend() string { return CacheBackendFile }

// Load implements TokenCache. ObtainedAt is the file's modification time.
func (c *FileTokenCache) Load(_ context.Context) (*Credential, error) {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("reading token cache %s: %w", c.path, err)
	}

	obtainedAt := time.Time{}
	if info, err := os.Stat(c.path); err == nil {
		obtainedAt = info.ModTime()
	}

	cred, err := NewCredential(data, obtainedAt)
	if err != nil {
		return nil, fmt.Errorf("token cache %s is corrupt: %w", c.path, err)
	}
	return cred, nil
}

// Save implements TokenCache. The file is replaced atomically.
func (c *FileTokenCache) Save(_ context.Context, cred *Credential) error {
	if cred == nil || len(cred.Raw) == 0 {
		return errors.New("refusing to cache an empty credential")
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, cacheDirPerm); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, tokenCacheFile+".*")
	if err != nil {
		return fmt.Errorf("creating temporary token file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(cacheFilePerm); err != nil {
		tmp.Close()
		return fmt.Errorf("setting token file permissions: %w", err)
	}
	if _, err := tmp.Write(cred.Raw); err != nil {
		tmp.Close()
		return fmt.Errorf("writing token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("replacing token file: %w", err)
	}
	return nil
}

// Clear implements TokenCache.
func (c *FileTokenCache) Clear(_ context.Context) error {
	if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing token cache: %w", err)
	}
	return nil
}

// KeyringTokenCache stores the credential in the OS keyring.
type KeyringTokenCache struct {
	ring keyring.Keyring
}

// keyringEnvelope carries the save time, which the keyring does not track.
type keyringEnvelope struct {
	Version int             `json:"version"`
	SavedAt time.Time       `json:"saved_at"`
	Token   json.RawMessage `json:"token"`
}

// OpenKeyringTokenCache opens the platform keyring. fileDir holds the
// encrypted-file fallback used where no native keyring exists.
func OpenKeyringTokenCache(fileDir string) (*KeyringTokenCache, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: keyringService,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.KWalletBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt(keyringFilePass),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return NewKeyringTokenCache(ring), nil
}

// NewKeyringTokenCache wraps an already opened keyring.
func NewKeyringTokenCache(ring keyring.Keyring) *KeyringTokenCache {
	return &KeyringTokenCache{ring: ring}
}

// Backend implements TokenCache.
func (c *KeyringTokenCache) Backend() string { return CacheBackendKeyring }

// Load implements TokenCache.
func (c *KeyringTokenCache) Load(_ context.Context) (*Credential, error) {
	item, err := c.ring.Get(keyringTokenKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("reading keyring item: %w", err)
	}

	var env keyringEnvelope
	if err := json.Unmarshal(item.Data, &env); err != nil {
		return nil, fmt.Errorf("keyring item is corrupt: %w", err)
	}
	cred, err := NewCredential(env.Token, env.SavedAt)
	if err != nil {
		return nil, fmt.Errorf("keyring item is corrupt: %w", err)
	}
	return cred, nil
}

// Save implements TokenCache.
func (c *KeyringTokenCache) Save(_ context.Context, cred *Credential) error {
	if cred == nil || len(cred.Raw) == 0 {
		return errors.New("refusing to cache an empty credential")
	}
	savedAt := cred.ObtainedAt
	if savedAt.IsZero() {
		savedAt = time.Now()
	}
	data, err := json.Marshal(keyringEnvelope{Version: keyringEnvelopeV, SavedAt: savedAt.UTC(), Token: cred.Raw})
	if err != nil {
		return fmt.Errorf("encoding keyring item: %w", err)
	}
	if err := c.ring.Set(keyring.Item{
		Key:         keyringTokenKey,
		Data:        data,
		Label:       "inboxreader Microsoft Graph token",
		Description: "OAuth token response",
	}); err != nil {
		return fmt.Errorf("writing keyring item: %w", err)
	}
	return nil
}

// Clear implements TokenCache.
func (c *KeyringTokenCache) Clear(_ context.Context) error {
	if err := c.ring.Remove(keyringTokenKey); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("removing keyring item: %w", err)
	}
	return nil
}

func userCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return dir
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache")
	}
	return "."
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
