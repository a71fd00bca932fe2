package authsdk

import (
	"net/http"
	"strings"
	"time"
)

// SDKClient is a client for the medvault service. It covers the
// unauthenticated endpoints and creates authenticated Sessions.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewSDKClient creates a new client for baseURL.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NewSessionFromTokens creates a session from tokens obtained earlier. The
// salt may be empty if the caller keeps it elsewhere.
func (c *SDKClient) NewSessionFromTokens(accessToken, refreshToken, salt string, expiresIn int) *Session {
	return newSession(c, AccountResponse{}, salt, TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    expiresIn,
	})
}
