package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/canopy/pkg/ports"
)

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new entries.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte
}

// ErrNotEncrypted is returned by Recent for an entry without an envelope.
var ErrNotEncrypted = errors.New("trail entry is missing encrypted data envelope")

// envelope keeps sealed entries valid JSON, so sinks that embed payloads as
// raw JSON (the redis pub/sub message) still work.
type envelope struct {
	Encrypted []byte `json:"encrypted"`
}

type encryptionMiddleware struct {
	next   ports.TrailSink
	config EncryptionConfig
}

// NewEncryptionMiddleware creates a middleware that seals every entry using
// AES-GCM and opens it again on Recent.
func NewEncryptionMiddleware(config EncryptionConfig) (Middleware, error) {
	if len(config.ActiveKey) != 32 {
		return nil, errors.New("active key must be 32 bytes (AES-256)")
	}
	return func(next ports.TrailSink) ports.TrailSink {
		return &encryptionMiddleware{next: next, config: config}
	}, nil
}

func (m *encryptionMiddleware) Append(ctx context.Context, rootID string, payload []byte) error {
	ciphertext, err := encrypt(payload, m.config.ActiveKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt trail entry: %w", err)
	}
	sealed, err := json.Marshal(envelope{Encrypted: ciphertext})
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}
	return m.next.Append(ctx, rootID, sealed)
}

func (m *encryptionMiddleware) Recent(ctx context.Context, rootID string, n int) ([][]byte, error) {
	entries, err := m.next.Recent(ctx, rootID, n)
	if err != nil {
		return nil, err
	}

	out := make([][]byte, len(entries))
	for i, entry := range entries {
		var env envelope
		if err := json.Unmarshal(entry, &env); err != nil || len(env.Encrypted) == 0 {
			// Fail secure: a plain entry means the sink was written without us.
			return nil, ErrNotEncrypted
		}
		plain, err := decryptWithRotation(env.Encrypted, m.config.ActiveKey, m.config.FallbackKeys)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt trail entry: %w", err)
		}
		out[i] = plain
	}
	return out, nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, rootID string) error {
	return m.next.Delete(ctx, rootID)
}

// Helpers

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}
	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	return gcm.Open(nil, nonce, ciphertext[gcm.NonceSize():], nil)
}
