package tokenstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	apperrors "github.com/jrsteele09/go-github-auth/internal/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultStorageDir is the directory, relative to the user config dir, holding encrypted values.
const DefaultStorageDir = "ghauth/secure"

const (
	saltFileName = "salt"
	keyFileName  = "key"
	valueSuffix  = ".enc"
)

var _ Store = (*FileStore)(nil)

// FileStoreConfig configures the encrypted file store.
type FileStoreConfig struct {
	// Dir holds one encrypted file per key. Defaults to <user config dir>/ghauth/secure
	Dir string

	// Passphrase derives the encryption key with Argon2id. When empty a random key is
	// generated once and kept in a 0600 key file next to the values.
	Passphrase string

	Logger *zerolog.Logger
}

// FileStore persists values encrypted at rest.
//
// SECURITY: the directory is created 0700 and files 0600. Values are never logged.
type FileStore struct {
	mu     sync.Mutex
	dir    string
	sealer *sealer
	logger zerolog.Logger
}

// NewFileStore opens (creating if needed) an encrypted store directory.
func NewFileStore(cfg FileStoreConfig) (*FileStore, error) {
	dir, s, err := openKeyDir(cfg.Dir, cfg.Passphrase)
	if err != nil {
		return nil, fmt.Errorf("[NewFileStore] %w", err)
	}

	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &FileStore{
		dir:    dir,
		sealer: s,
		logger: logger.With().Str("component", "tokenstore.file").Logger(),
	}, nil
}

// openKeyDir creates dir (or the default storage dir) and loads the sealer whose key
// material lives there.
func openKeyDir(dir, passphrase string) (string, *sealer, error) {
	if dir == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			return "", nil, fmt.Errorf("user config dir: %w", err)
		}
		dir = filepath.Join(configDir, DefaultStorageDir)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", nil, fmt.Errorf("create storage dir: %w", err)
	}

	key, err := loadKey(dir, passphrase)
	if err != nil {
		return "", nil, err
	}
	s, err := newSealer(key)
	if err != nil {
		return "", nil, err
	}
	return dir, s, nil
}

// Get decrypts and returns the value stored under key.
func (s *FileStore) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", apperrors.Wrapf(unavailable(err), "[FileStore.Get] read %s", key)
	}
	plaintext, err := s.sealer.open(key, blob)
	if err != nil {
		s.logger.Warn().Str("key", key).Err(err).Msg("stored value could not be decrypted")
		return "", fmt.Errorf("[FileStore.Get] %s: %w", key, err)
	}
	return string(plaintext), nil
}

// Set encrypts value and atomically replaces the file for key.
func (s *FileStore) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, err := s.sealer.seal(key, []byte(value))
	if err != nil {
		return fmt.Errorf("[FileStore.Set] %s: %w", key, err)
	}
	if err := writeFileAtomic(s.dir, s.path(key), blob); err != nil {
		return apperrors.Wrapf(unavailable(err), "[FileStore.Set] write %s", key)
	}
	s.logger.Debug().Str("key", key).Msg("value stored")
	return nil
}

// Delete removes the file for key.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return apperrors.Wrapf(unavailable(err), "[FileStore.Delete] %s", key)
	}
	s.logger.Debug().Str("key", key).Msg("value deleted")
	return nil
}

// path hashes the key so arbitrary key strings map to safe file names.
func (s *FileStore) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:16])+valueSuffix)
}

func loadKey(dir, passphrase string) ([]byte, error) {
	if passphrase != "" {
		salt, err := readOrCreate(filepath.Join(dir, saltFileName), saltSize)
		if err != nil {
			return nil, fmt.Errorf("salt: %w", err)
		}
		return deriveKey(passphrase, salt), nil
	}
	key, err := readOrCreate(filepath.Join(dir, keyFileName), keySize)
	if err != nil {
		return nil, fmt.Errorf("key file: %w", err)
	}
	return key, nil
}

// readOrCreate returns the contents of path, creating it with n random bytes when missing.
func readOrCreate(path string, n int) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err == nil {
		if len(b) != n {
			return nil, fmt.Errorf("%s: expected %d bytes, got %d", filepath.Base(path), n, len(b))
		}
		return b, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	b, err = randomBytes(n)
	if err != nil {
		return nil, err
	}
	if err := writeFileAtomic(filepath.Dir(path), path, b); err != nil {
		return nil, err
	}
	return b, nil
}

func writeFileAtomic(dir, path string, data []byte) error {
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
