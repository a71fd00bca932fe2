package authsdk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Register creates an account and returns its first session.
func (c *SDKClient) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/auth/register", req)
	if err != nil {
		return nil, err
	}

	var sess SessionResponse
	if err := decodeJSON(resp, &sess, http.StatusCreated); err != nil {
		return nil, err
	}
	return newSession(c, sess.Account, sess.KeyDerivationSalt, sess.TokenResponse), nil
}

// Login authenticates with email and credential. Accounts with two-factor
// enabled get a *TwoFactorRequiredError instead of a session.
func (c *SDKClient) Login(ctx context.Context, email, credential string) (*Session, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/auth/login", LoginRequest{
		Email:      email,
		Credential: credential,
	})
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusAccepted {
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}
		var challenge TwoFactorChallengeResponse
		if err := json.Unmarshal(body, &challenge); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		return nil, &TwoFactorRequiredError{
			PreSessionToken: challenge.PreSessionToken,
			ExpiresIn:       time.Duration(challenge.ExpiresIn) * time.Second,
		}
	}

	var sess SessionResponse
	if err := decodeJSON(resp, &sess, http.StatusOK); err != nil {
		return nil, err
	}
	return newSession(c, sess.Account, sess.KeyDerivationSalt, sess.TokenResponse), nil
}

// CompleteTwoFactorLogin exchanges a pre-session token and a TOTP code for
// a session. A wrong code leaves the pre-session token usable.
func (c *SDKClient) CompleteTwoFactorLogin(ctx context.Context, preSessionToken, code string) (*Session, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/auth/login/2fa", TwoFactorLoginRequest{
		PreSessionToken: preSessionToken,
		Code:            code,
	})
	if err != nil {
		return nil, err
	}

	var sess SessionResponse
	if err := decodeJSON(resp, &sess, http.StatusOK); err != nil {
		return nil, err
	}
	return newSession(c, sess.Account, sess.KeyDerivationSalt, sess.TokenResponse), nil
}

// Refresh spends refreshToken and returns the next pair. Each refresh
// token works once.
func (c *SDKClient) Refresh(ctx context.Context, refreshToken string) (*RefreshResponse, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/auth/refresh", RefreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return nil, err
	}

	var out RefreshResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout revokes refreshToken. Unknown or already revoked tokens are not an error.
func (c *SDKClient) Logout(ctx context.Context, refreshToken string) error {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/auth/logout", RefreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}
