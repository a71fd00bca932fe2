package jwtx

// Signer is our interface for anything that can sign JWTs.
type Signer interface {
	Alg() string
	Type() TokenType
	Sign(Claims) (string, error)
}
