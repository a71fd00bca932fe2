// Package envelope seals server-managed payloads with AES-256-GCM and
// frames them as hex(nonce):hex(tag):hex(ciphertext).
package envelope

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/aussiebroadwan/medvault/internal/auth/domain"
	"github.com/aussiebroadwan/medvault/pkg/cryptox"
)

const separator = ':'

// Sealed is a framed blob plus the framing it was sealed with.
type Sealed struct {
	Blob    []byte
	Framing domain.CipherFraming
}

// Codec holds the server envelope key. A nil *Codec means server-managed
// envelopes are switched off.
type Codec struct {
	aead *cryptox.AEAD
}

// NewCodec requires a 32 byte key.
func NewCodec(key []byte) (*Codec, error) {
	aead, err := cryptox.NewAEAD(key)
	if err != nil {
		return nil, fmt.Errorf("%w: envelope key: %v", domain.ErrConfiguration, err)
	}
	return &Codec{aead: aead}, nil
}

// Seal encrypts plaintext under a fresh nonce.
func (c *Codec) Seal(plaintext []byte) (Sealed, error) {
	nonce, tag, ct, err := c.aead.Seal(plaintext, nil)
	if err != nil {
		return Sealed{}, err
	}
	return Sealed{
		Blob:    Frame(nonce, tag, ct),
		Framing: domain.CipherFraming{Nonce: nonce, Tag: tag},
	}, nil
}

// Open parses and authenticates blob. Every failure is
// domain.ErrEnvelopeCorrupt and no plaintext is returned.
func (c *Codec) Open(blob []byte) ([]byte, error) {
	nonce, tag, ct, err := Unframe(blob)
	if err != nil {
		return nil, err
	}
	pt, err := c.aead.Open(nonce, tag, ct, nil)
	if err != nil {
		return nil, domain.ErrEnvelopeCorrupt
	}
	return pt, nil
}

// SealString applies the blob format to a short string such as a display
// name.
func (c *Codec) SealString(s string) (string, error) {
	sealed, err := c.Seal([]byte(s))
	if err != nil {
		return "", err
	}
	return string(sealed.Blob), nil
}

func (c *Codec) OpenString(s string) (string, error) {
	pt, err := c.Open([]byte(s))
	if err != nil {
		return "", err
	}
	return string(pt), nil
}

// Frame encodes the three parts in the blob format.
func Frame(nonce, tag, ct []byte) []byte {
	out := make([]byte, 0, hex.EncodedLen(len(nonce)+len(tag)+len(ct))+2)
	out = hex.AppendEncode(out, nonce)
	out = append(out, separator)
	out = hex.AppendEncode(out, tag)
	out = append(out, separator)
	return hex.AppendEncode(out, ct)
}

// Unframe splits a blob into exactly three hex fields and checks the
// nonce and tag lengths.
func Unframe(blob []byte) (nonce, tag, ct []byte, err error) {
	parts := bytes.Split(blob, []byte{separator})
	if len(parts) != 3 {
		return nil, nil, nil, domain.ErrEnvelopeCorrupt
	}

	decoded := make([][]byte, 3)
	for i, p := range parts {
		decoded[i] = make([]byte, hex.DecodedLen(len(p)))
		if _, err := hex.Decode(decoded[i], p); err != nil {
			return nil, nil, nil, domain.ErrEnvelopeCorrupt
		}
	}

	nonce, tag, ct = decoded[0], decoded[1], decoded[2]
	if len(nonce) != cryptox.AEADNonceSize || len(tag) != cryptox.AEADTagSize {
		return nil, nil, nil, domain.ErrEnvelopeCorrupt
	}
	return nonce, tag, ct, nil
}
