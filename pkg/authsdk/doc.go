/*
Package authsdk is the Go client for the medvault auth and envelope service.

# SDKClient vs Session

SDKClient covers the unauthenticated surface: register, login, the second
login step, refresh, logout and the health probes. A successful login
returns a Session, which carries the token pair and the account's
key-derivation salt and refreshes its access token on demand.

	client := authsdk.NewSDKClient("https://vault.example.com")

	session, err := client.Login(ctx, "patient@example.com", credential)
	var challenge *authsdk.TwoFactorRequiredError
	if errors.As(err, &challenge) {
		session, err = client.CompleteTwoFactorLogin(ctx, challenge.PreSessionToken, code)
	}

The salt is what the caller feeds its own key derivation. The server never
sees the derived key:

	salt := session.KeyDerivationSalt()

# Envelopes

Records group uploaded files. Each upload picks a trust model:

	rec, err := session.CreateRecord(ctx, "Cardiology")
	env, err := session.UploadEnvelope(ctx, rec.ID, authsdk.UploadEnvelopeRequest{
		Mode:        authsdk.ModeClientOpaque,
		Data:        ciphertext,
		DisplayName: encryptedName,
	})

ModeServerManaged asks the server to encrypt with its own key instead;
downloads of those envelopes come back decrypted.

# Errors

Failures from the service come back as *APIError carrying the HTTP status
and a stable code. A login that needs a second factor returns
*TwoFactorRequiredError.

# Thread Safety

Sessions are safe for concurrent use. Token refresh happens under a write
lock so concurrent callers never spend the same refresh token twice.
*/
package authsdk
