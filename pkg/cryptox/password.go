package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// HashParams is the Argon2id cost profile used by a Hasher.
type HashParams struct {
	Memory      uint32 // Memory usage in KiB
	Iterations  uint32 // Number of passes over memory
	Parallelism uint8  // Number of lanes
	SaltLength  uint32 // Length of the per-hash salt in bytes
	KeyLength   uint32 // Length of the derived key in bytes
}

// DefaultHashParams is 64 MiB, 3 passes and 4 lanes. It is also the floor
// NewHasher enforces.
var DefaultHashParams = HashParams{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 4,
	SaltLength:  16,
	KeyLength:   32,
}

// maxVerifyMemory bounds the memory a stored hash may ask Verify to spend (4 GiB).
const maxVerifyMemory = 4 * 1024 * 1024

var ErrWeakParams = errors.New("cryptox: hash parameters below minimum")

// Hasher produces and verifies PHC-format Argon2id hashes. A Hasher is
// immutable after construction and safe for concurrent use.
type Hasher struct {
	params HashParams
	pepper []byte
	dummy  string
}

// NewHasher validates params against DefaultHashParams and returns a Hasher.
// The pepper is appended to every secret before hashing and may be empty.
func NewHasher(params HashParams, pepper []byte) (*Hasher, error) {
	if params.Memory < DefaultHashParams.Memory ||
		params.Iterations < DefaultHashParams.Iterations ||
		params.Parallelism < DefaultHashParams.Parallelism ||
		params.SaltLength < DefaultHashParams.SaltLength ||
		params.KeyLength < DefaultHashParams.KeyLength {
		return nil, fmt.Errorf("%w: m=%d t=%d p=%d", ErrWeakParams, params.Memory, params.Iterations, params.Parallelism)
	}

	h := &Hasher{params: params, pepper: append([]byte(nil), pepper...)}

	// Hash of a random value nobody knows, used to burn the same amount of
	// work when there is no stored hash to compare against.
	filler, err := GenerateToken(TokenSize256)
	if err != nil {
		return nil, err
	}
	if h.dummy, err = h.Hash(filler); err != nil {
		return nil, err
	}
	return h, nil
}

// Params returns the cost profile new hashes are created with.
func (h *Hasher) Params() HashParams { return h.params }

// Hash generates a PHC-format Argon2id hash string including salt and parameters.
func (h *Hasher) Hash(secret string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("cryptox: generate salt: %w", err)
	}

	key := argon2.IDKey(
		h.peppered(secret),
		salt,
		h.params.Iterations,
		h.params.Memory,
		h.params.Parallelism,
		h.params.KeyLength,
	)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory,
		h.params.Iterations,
		h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether secret matches the stored PHC hash. A malformed
// stored hash is reported as a mismatch.
func (h *Hasher) Verify(stored, secret string) bool {
	p, salt, want, ok := parsePHC(stored)
	if !ok {
		return false
	}

	got := argon2.IDKey(
		h.peppered(secret),
		salt,
		p.Iterations,
		p.Memory,
		p.Parallelism,
		uint32(len(want)), // #nosec G115 - bounded by parsePHC
	)
	return subtle.ConstantTimeCompare(got, want) == 1
}

// VerifyDummy spends the same work as Verify and always reports false.
func (h *Hasher) VerifyDummy(secret string) bool {
	h.Verify(h.dummy, secret)
	return false
}

// NeedsRehash reports whether stored was produced with a weaker profile
// than the one this Hasher currently uses.
func (h *Hasher) NeedsRehash(stored string) bool {
	p, _, key, ok := parsePHC(stored)
	if !ok {
		return true
	}
	return p.Memory < h.params.Memory ||
		p.Iterations < h.params.Iterations ||
		p.Parallelism < h.params.Parallelism ||
		uint32(len(key)) < h.params.KeyLength // #nosec G115
}

func (h *Hasher) peppered(secret string) []byte {
	b := make([]byte, 0, len(secret)+len(h.pepper))
	b = append(b, secret...)
	return append(b, h.pepper...)
}

// parsePHC splits $argon2id$v=19$m=X,t=Y,p=Z$salt$hash.
func parsePHC(encoded string) (HashParams, []byte, []byte, bool) {
	var p HashParams

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return p, nil, nil, false
	}
	if parts[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return p, nil, nil, false
	}

	var trailing string
	n, _ := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d%s", &p.Memory, &p.Iterations, &p.Parallelism, &trailing)
	if n != 3 {
		return p, nil, nil, false
	}
	if p.Memory == 0 || p.Memory > maxVerifyMemory || p.Iterations == 0 || p.Iterations > 64 || p.Parallelism == 0 {
		return p, nil, nil, false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return p, nil, nil, false
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) < 16 || len(key) > 128 {
		return p, nil, nil, false
	}

	p.SaltLength = uint32(len(salt)) // #nosec G115
	p.KeyLength = uint32(len(key))   // #nosec G115
	return p, salt, key, true
}
