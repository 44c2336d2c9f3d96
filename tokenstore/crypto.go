package tokenstore

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// blobVersion is the first byte of every encrypted file so the format can change later.
	blobVersion = 0x01

	keySize  = chacha20poly1305.KeySize
	saltSize = 16

	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

var (
	// ErrInvalidBlob is returned when an encrypted file is truncated or has an unknown version.
	ErrInvalidBlob = errors.New("invalid encrypted blob")

	// ErrDecryptionFailed is returned when the key is wrong or the file was tampered with.
	ErrDecryptionFailed = errors.New("failed to decrypt stored value")
)

// sealer encrypts values with XChaCha20-Poly1305.
// Blob format: version(1) || nonce(24) || ciphertext
// The store key is bound as additional data so blobs cannot be swapped between keys.
type sealer struct {
	key []byte
}

func newSealer(key []byte) (*sealer, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", keySize, len(key))
	}
	return &sealer{key: key}, nil
}

// deriveKey derives an encryption key from a passphrase with Argon2id.
func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, keySize)
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generate random bytes: %w", err)
	}
	return b, nil
}

func (s *sealer) seal(name string, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	nonce, err := randomBytes(aead.NonceSize())
	if err != nil {
		return nil, err
	}

	blob := make([]byte, 0, 1+len(nonce)+len(plaintext)+aead.Overhead())
	blob = append(blob, blobVersion)
	blob = append(blob, nonce...)
	return aead.Seal(blob, nonce, plaintext, []byte(name)), nil
}

func (s *sealer) open(name string, blob []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	if len(blob) < 1+aead.NonceSize()+aead.Overhead() {
		return nil, ErrInvalidBlob
	}
	if blob[0] != blobVersion {
		return nil, fmt.Errorf("%w: version %d", ErrInvalidBlob, blob[0])
	}
	nonce := blob[1 : 1+aead.NonceSize()]
	plaintext, err := aead.Open(nil, nonce, blob[1+aead.NonceSize():], []byte(name))
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}
