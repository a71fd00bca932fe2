package domain

import (
	"strings"
	"time"
)

// EnvelopeMode is the trust model an envelope was created under. It is
// fixed for the life of the envelope.
type EnvelopeMode string

const (
	// ModeServerManaged: the server encrypts with its own key and can decrypt.
	ModeServerManaged EnvelopeMode = "SERVER_MANAGED"
	// ModeClientOpaque: the client uploads ciphertext the server cannot read.
	ModeClientOpaque EnvelopeMode = "CLIENT_OPAQUE"
)

// DefaultMode applies when the caller sends no mode flag. It matches the
// off-by-default server encryption toggle.
const DefaultMode = ModeClientOpaque

// modeTable is every accepted spelling of the mode flag, lower-cased.
var modeTable = map[string]EnvelopeMode{
	"":               DefaultMode,
	"false":          ModeClientOpaque,
	"0":              ModeClientOpaque,
	"no":             ModeClientOpaque,
	"off":            ModeClientOpaque,
	"client":         ModeClientOpaque,
	"client_opaque":  ModeClientOpaque,
	"true":           ModeServerManaged,
	"1":              ModeServerManaged,
	"yes":            ModeServerManaged,
	"on":             ModeServerManaged,
	"server":         ModeServerManaged,
	"server_managed": ModeServerManaged,
}

// ParseMode is the single place the wire representation of the mode flag is
// interpreted. Unknown spellings are rejected rather than guessed.
func ParseMode(raw string) (EnvelopeMode, error) {
	mode, ok := modeTable[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return "", Validationf("mode", "must be one of true/false, server/client")
	}
	return mode, nil
}

// CipherFraming is what a server-managed blob needs besides its ciphertext.
type CipherFraming struct {
	Nonce []byte // 12 bytes
	Tag   []byte // 16 bytes
}

// Protection is either ServerManaged or ClientOpaque.
type Protection interface {
	Mode() EnvelopeMode
	protection()
}

// ServerManaged envelopes always carry framing and an encrypted display name.
type ServerManaged struct {
	Framing           CipherFraming
	DisplayNameCipher string
}

// ClientOpaque envelopes carry the display name exactly as the client sent
// it, which may itself be client-side ciphertext.
type ClientOpaque struct {
	DisplayName string
}

func (ServerManaged) Mode() EnvelopeMode { return ModeServerManaged }
func (ServerManaged) protection()        {}
func (ClientOpaque) Mode() EnvelopeMode  { return ModeClientOpaque }
func (ClientOpaque) protection()         {}

// FileEnvelope is the metadata half of an uploaded file. The bytes live in
// the blob store under StorageKey.
type FileEnvelope struct {
	ID         string
	AccountID  string
	RecordID   string
	StorageKey string
	MimeType   string
	PlainSize  int64 // size before encryption
	CipherSize int64 // size as stored
	Protection Protection
	CreatedAt  time.Time
}

func (e FileEnvelope) Mode() EnvelopeMode { return e.Protection.Mode() }

// EnvelopeContent is a downloaded envelope.
type EnvelopeContent struct {
	Envelope    FileEnvelope
	Data        []byte
	DisplayName string // decrypted for server-managed envelopes
}

// MaxMimeTypeLen bounds the stored mime type.
const MaxMimeTypeLen = 255
