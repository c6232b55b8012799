package provenance

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// Key derivation is deterministic so any tool given the passphrase can read
// the database. The salt is an application constant, not a secret.
var keySalt = []byte("chartchat-provenance-key-derivation-v1")

const keyIterations = 4096

// snapshotCipher encrypts snapshot payloads with AES-256-GCM.
// Format: [nonce (12 bytes)][ciphertext + tag]
type snapshotCipher struct {
	key []byte
}

func newSnapshotCipher(passphrase string) *snapshotCipher {
	key := pbkdf2.Key([]byte(passphrase), keySalt, keyIterations, 32, sha256.New)
	return &snapshotCipher{key: key}
}

func (c *snapshotCipher) encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(c.key)
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

func (c *snapshotCipher) decrypt(ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce := ciphertext[:nonceSize]
	plaintext, err := gcm.Open(nil, nonce, ciphertext[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}

	return plaintext, nil
}
