package oauth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/oauth2"
)

// nonceSize is the number of random bytes in a nonce.
const nonceSize = 16

// randReader is the source of randomness for nonces. It is a var so that tests can pin it.
var randReader io.Reader = rand.Reader

// PKCE holds a Proof Key for Code Exchange verifier/challenge pair.
//
// The verifier must stay with the caller (server-side session) and be supplied back verbatim at exchange time.
type PKCE struct {
	CodeVerifier        string
	CodeChallenge       string
	CodeChallengeMethod string
}

// NewPKCE generates a PKCE pair with the S256 method.
// The verifier carries 32 bytes of entropy, base64url encoded without padding (43 characters).
func NewPKCE() PKCE {
	verifier := oauth2.GenerateVerifier()
	return PKCE{
		CodeVerifier:        verifier,
		CodeChallenge:       ChallengeS256(verifier),
		CodeChallengeMethod: "S256",
	}
}

// ChallengeS256 derives the S256 code challenge of the given verifier.
func ChallengeS256(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}

// GenerateNonce creates a random nonce for identity token replay protection.
func GenerateNonce() (string, error) {
	b := make([]byte, nonceSize)
	if _, err := io.ReadFull(randReader, b); err != nil {
		return "", fmt.Errorf("error in io.ReadFull call: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
