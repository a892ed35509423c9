package oauth

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"
	"github.com/stretchr/testify/require"
)

const (
	mockClientID     = "test-clientID"
	mockClientSecret = "test-clientSecret"
	mockRedirectURI  = "http://localhost:3000/api/v1/auth/roblox/oauth/callback"
)

// mockNow is the fixed time used by all token validity checks in tests.
var mockNow = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

func mockClock() time.Time { return mockNow }

// testSigner signs identity tokens with an RSA key and exposes the matching public key set.
type testSigner struct {
	private jwk.Key
	public  jwk.Set
}

func newTestSigner(t *testing.T, kid string) *testSigner {
	t.Helper()

	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err, "Failed to generate RSA key")

	private, err := jwk.Import(raw)
	require.NoError(t, err, "Failed to import RSA key")
	require.NoError(t, private.Set(jwk.KeyIDKey, kid))
	require.NoError(t, private.Set(jwk.AlgorithmKey, jwa.RS256()))

	public, err := jwk.PublicKeyOf(private)
	require.NoError(t, err, "Failed to derive public key")
	require.NoError(t, public.Set(jwk.KeyIDKey, kid))
	require.NoError(t, public.Set(jwk.AlgorithmKey, jwa.RS256()))

	set := jwk.NewSet()
	require.NoError(t, set.AddKey(public))

	return &testSigner{private: private, public: set}
}

// sign returns a signed token with the given claims.
func (s *testSigner) sign(t *testing.T, claims map[string]any) string {
	t.Helper()

	token := jwt.New()
	for name, value := range claims {
		require.NoError(t, token.Set(name, value), "Failed to set claim %s", name)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.RS256(), s.private))
	require.NoError(t, err, "Failed to sign token")
	return string(signed)
}

// validClaims returns a set of claims that pass verification at mockNow.
func validClaims() map[string]any {
	return map[string]any{
		jwt.IssuerKey:        robloxIssuer,
		jwt.SubjectKey:       "123456",
		jwt.AudienceKey:      []string{mockClientID},
		jwt.IssuedAtKey:      mockNow.Add(-time.Minute),
		jwt.ExpirationKey:    mockNow.Add(time.Hour),
		"nonce":              "mockNonce",
		"preferred_username": "TestUser",
	}
}
