package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// DEKSize is the required length of a data encryption key (AES-256).
const DEKSize = 32

// Cipher seals values before they are written and opens them after they are
// read. Implementations must be safe for concurrent use.
type Cipher interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// NopCipher stores values as they are.
type NopCipher struct{}

func (NopCipher) Encrypt(p []byte) ([]byte, error) { return p, nil }
func (NopCipher) Decrypt(c []byte) ([]byte, error) { return c, nil }

// AESGCM encrypts with AES-256-GCM and a random nonce prefixed to the output.
type AESGCM struct {
	aead cipher.AEAD
}

// DecodeDEK parses a base64 data encryption key. It must decode to 32 bytes.
func DecodeDEK(b64 string) ([]byte, error) {
	if b64 == "" {
		return nil, errors.New("data encryption key is empty")
	}
	dek, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode data encryption key: %w", err)
	}
	if len(dek) != DEKSize {
		return nil, fmt.Errorf("data encryption key must be %d bytes, got %d", DEKSize, len(dek))
	}
	return dek, nil
}

// NewAESGCM builds a cipher from a 32-byte key.
func NewAESGCM(dek []byte) (*AESGCM, error) {
	if len(dek) != DEKSize {
		return nil, fmt.Errorf("data encryption key must be %d bytes, got %d", DEKSize, len(dek))
	}
	block, err := aes.NewCipher(dek)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &AESGCM{aead: gcm}, nil
}

// CipherFromDEK returns an AES-GCM cipher for a base64 key, or NopCipher when
// the key is empty.
func CipherFromDEK(b64 string) (Cipher, error) {
	if b64 == "" {
		return NopCipher{}, nil
	}
	dek, err := DecodeDEK(b64)
	if err != nil {
		return nil, err
	}
	return NewAESGCM(dek)
}

func (c *AESGCM) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (c *AESGCM) Decrypt(ciphertext []byte) ([]byte, error) {
	nonceSize := c.aead.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, errors.New("ciphertext too short")
	}
	nonce, ct := ciphertext[:nonceSize], ciphertext[nonceSize:]
	return c.aead.Open(nil, nonce, ct, nil)
}
