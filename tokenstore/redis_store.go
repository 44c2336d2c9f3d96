package tokenstore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	apperrors "github.com/jrsteele09/go-github-auth/internal/errors"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisNamespace prefixes every key written by RedisStore.
const DefaultRedisNamespace = "ghauth:"

var _ Store = (*RedisStore)(nil)

// RedisStoreConfig configures the Redis-backed store.
type RedisStoreConfig struct {
	// Namespace prefixes every key. Defaults to DefaultRedisNamespace
	Namespace string

	// KeyDir holds the local key or salt file. Defaults to <user config dir>/ghauth/secure
	KeyDir string

	// Passphrase derives the encryption key the same way FileStore does.
	Passphrase string
}

// RedisStore keeps the token and profile in Redis, for deployments where the
// session is held server-side rather than on the device.
//
// SECURITY: values are sealed before they leave the process. The key material stays
// on the local disk, never in Redis.
type RedisStore struct {
	client    redis.UniversalClient
	namespace string
	sealer    *sealer
}

// NewRedisStore creates a Redis-backed store encrypting values at rest.
func NewRedisStore(client redis.UniversalClient, cfg RedisStoreConfig) (*RedisStore, error) {
	_, s, err := openKeyDir(cfg.KeyDir, cfg.Passphrase)
	if err != nil {
		return nil, fmt.Errorf("[NewRedisStore] %w", err)
	}
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = DefaultRedisNamespace
	}
	return &RedisStore{client: client, namespace: namespace, sealer: s}, nil
}

// Get returns the decrypted value for key
func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, s.namespace+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", apperrors.Wrapf(unavailable(err), "[RedisStore.Get] %s", key)
	}

	blob, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return "", fmt.Errorf("[RedisStore.Get] %s: %w", key, ErrInvalidBlob)
	}
	plaintext, err := s.sealer.open(key, blob)
	if err != nil {
		return "", fmt.Errorf("[RedisStore.Get] %s: %w", key, err)
	}
	return string(plaintext), nil
}

// Set stores value without expiry; GitHub OAuth app tokens do not expire
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	blob, err := s.sealer.seal(key, []byte(value))
	if err != nil {
		return fmt.Errorf("[RedisStore.Set] %s: %w", key, err)
	}
	encoded := base64.StdEncoding.EncodeToString(blob)
	if err := s.client.Set(ctx, s.namespace+key, encoded, 0).Err(); err != nil {
		return apperrors.Wrapf(unavailable(err), "[RedisStore.Set] %s", key)
	}
	return nil
}

// Delete removes key
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.namespace+key).Err(); err != nil {
		return apperrors.Wrapf(unavailable(err), "[RedisStore.Delete] %s", key)
	}
	return nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", apperrors.ErrStorageUnavailable, err)
}
