package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
)

// AES-256-GCM sizes.
const (
	AEADKeySize   = 32
	AEADNonceSize = 12
	AEADTagSize   = 16
)

var (
	ErrKeySize      = errors.New("cryptox: key must be 32 bytes")
	ErrAEADOpen     = errors.New("cryptox: message authentication failed")
	ErrFramingSizes = errors.New("cryptox: invalid nonce or tag size")
)

// AEAD is AES-256-GCM bound to a single key supplied at construction.
type AEAD struct {
	gcm cipher.AEAD
}

// NewAEAD returns an AEAD for key, which must be exactly AEADKeySize bytes.
func NewAEAD(key []byte) (*AEAD, error) {
	if len(key) != AEADKeySize {
		return nil, fmt.Errorf("%w: got %d", ErrKeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cryptox: create cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithTagSize(block, AEADTagSize)
	if err != nil {
		return nil, fmt.Errorf("cryptox: create GCM: %w", err)
	}
	return &AEAD{gcm: gcm}, nil
}

// Seal encrypts plaintext under a fresh random nonce and returns the nonce,
// the authentication tag and the ciphertext as separate slices.
func (a *AEAD) Seal(plaintext, additionalData []byte) (nonce, tag, ciphertext []byte, err error) {
	nonce = make([]byte, AEADNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, nil, fmt.Errorf("cryptox: generate nonce: %w", err)
	}

	sealed := a.gcm.Seal(nil, nonce, plaintext, additionalData)
	split := len(sealed) - AEADTagSize
	return nonce, sealed[split:], sealed[:split], nil
}

// Open authenticates and decrypts. Nothing is returned unless the tag checks out.
func (a *AEAD) Open(nonce, tag, ciphertext, additionalData []byte) ([]byte, error) {
	if len(nonce) != AEADNonceSize || len(tag) != AEADTagSize {
		return nil, ErrFramingSizes
	}

	sealed := make([]byte, 0, len(ciphertext)+AEADTagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := a.gcm.Open(nil, nonce, sealed, additionalData)
	if err != nil {
		return nil, ErrAEADOpen
	}
	return plaintext, nil
}
