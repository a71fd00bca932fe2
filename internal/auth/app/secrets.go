package app

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aussiebroadwan/medvault/pkg/cryptox"
	"github.com/aussiebroadwan/medvault/pkg/jwtx"
)

// Signers are the three HS256 keys, one per token type.
type Signers struct {
	Access     *jwtx.HS256
	Refresh    *jwtx.HS256
	PreSession *jwtx.HS256
}

// LoadSigners builds the token signers from the configured secrets.
//
// In dev and test a missing secret is generated for this process only and
// every token issued before a restart becomes invalid. Anywhere else a
// missing secret is a configuration error.
func LoadSigners(cfg Config, logger *slog.Logger) (Signers, error) {
	specs := []struct {
		env string
		raw string
		typ jwtx.TokenType
	}{
		{"AUTH_ACCESS_SECRET", cfg.AccessSecret, jwtx.TypeAccess},
		{"AUTH_REFRESH_SECRET", cfg.RefreshSecret, jwtx.TypeRefresh},
		{"AUTH_PRESESSION_SECRET", cfg.PreSessionSecret, jwtx.TypePreSession},
	}

	secrets := make([][]byte, len(specs))
	for i, s := range specs {
		secret, err := resolveSecret(cfg, logger, s.env, s.raw)
		if err != nil {
			return Signers{}, err
		}
		secrets[i] = secret
	}

	if err := jwtx.CheckDistinct(secrets...); err != nil {
		return Signers{}, configErrorf("token secrets: %v", err)
	}

	signers := make([]*jwtx.HS256, len(specs))
	for i, s := range specs {
		signer, err := jwtx.NewHS256(secrets[i], cfg.Issuer, s.typ)
		if err != nil {
			return Signers{}, configErrorf("%s: %v", s.env, err)
		}
		signers[i] = signer
	}

	return Signers{Access: signers[0], Refresh: signers[1], PreSession: signers[2]}, nil
}

func resolveSecret(cfg Config, logger *slog.Logger, env, raw string) ([]byte, error) {
	if raw = strings.TrimSpace(raw); raw != "" {
		return []byte(raw), nil
	}
	if !cfg.ephemeralSecretsAllowed() {
		return nil, configErrorf("%s is required when ENV=%s", env, cfg.Env)
	}

	secret, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, fmt.Errorf("generate %s: %w", env, err)
	}
	logger.Warn("generated ephemeral token secret, tokens will not survive a restart", "setting", env)
	return []byte(secret), nil
}

// ServerKey decodes ENVELOPE_SERVER_KEY. It returns nil when server-managed
// envelopes are switched off.
func ServerKey(cfg Config) ([]byte, error) {
	if !cfg.ServerEncryption {
		return nil, nil
	}

	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(cfg.ServerKey))
	if err != nil {
		return nil, configErrorf("ENVELOPE_SERVER_KEY is not valid base64")
	}
	if len(key) != cryptox.AEADKeySize {
		return nil, configErrorf("ENVELOPE_SERVER_KEY must decode to %d bytes, got %d", cryptox.AEADKeySize, len(key))
	}
	return key, nil
}
