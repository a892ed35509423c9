package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lestrrat-go/jwx/v3/jws"
	"github.com/lestrrat-go/jwx/v3/jwt"
)

// IDTokenClaims are the claims of a verified identity token.
type IDTokenClaims struct {
	Issuer    string    `json:"iss"`
	Subject   string    `json:"sub"`
	Audience  []string  `json:"aud"`
	ExpiresAt time.Time `json:"exp"`
	IssuedAt  time.Time `json:"iat"`
	Nonce     string    `json:"nonce,omitempty"`

	Name              string `json:"name,omitempty"`
	Nickname          string `json:"nickname,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
	Picture           string `json:"picture,omitempty"`
}

// IDTokenVerifier verifies identity tokens against a provider's published key set.
type IDTokenVerifier struct {
	issuer   string
	clientID string
	keys     KeySource
	clock    func() time.Time
}

// NewIDTokenVerifier returns a verifier that accepts tokens issued by the given issuer for the given client ID.
func NewIDTokenVerifier(issuer, clientID string, keys KeySource, clock func() time.Time) *IDTokenVerifier {
	if clock == nil {
		clock = time.Now
	}
	return &IDTokenVerifier{issuer: issuer, clientID: clientID, keys: keys, clock: clock}
}

// Verify checks the token's signature, issuer, audience and validity window, and returns its claims.
// Every failure wraps ErrInvalidIDToken.
func (v *IDTokenVerifier) Verify(ctx context.Context, token string) (*IDTokenClaims, error) {
	kid, err := keyID(token)
	if err != nil {
		return nil, errors.Join(ErrInvalidIDToken, err)
	}

	// Obtain the provider's key set.
	set, err := v.keys.Keys(ctx)
	if err != nil {
		return nil, errors.Join(ErrInvalidIDToken, fmt.Errorf("error in keys.Keys call: %w", err))
	}

	// The provider may have rotated its keys since the last fetch.
	if _, found := set.LookupKeyID(kid); !found {
		slog.InfoContext(ctx, "token key ID not found in key set", "kid", kid)
		if set, err = v.keys.Refresh(ctx); err != nil {
			return nil, errors.Join(ErrInvalidIDToken, fmt.Errorf("error in keys.Refresh call: %w", err))
		}
	}

	// Parse and validate the token with the obtained key set.
	parsed, err := jwt.Parse([]byte(token),
		jwt.WithKeySet(set),
		jwt.WithValidate(true),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.clientID),
		jwt.WithClock(jwt.ClockFunc(v.clock)),
	)
	if err != nil {
		return nil, errors.Join(ErrInvalidIDToken, fmt.Errorf("error in jwt.Parse call: %w", err))
	}

	var claims IDTokenClaims
	// An identity token without expiry would be valid forever.
	expiry, found := parsed.Expiration()
	if !found {
		return nil, errors.Join(ErrInvalidIDToken, errors.New("exp field is empty in JWT"))
	}
	claims.ExpiresAt = expiry

	if claims.Subject, found = parsed.Subject(); !found || claims.Subject == "" {
		return nil, errors.Join(ErrInvalidIDToken, errors.New("sub field is empty in JWT"))
	}

	claims.Issuer, _ = parsed.Issuer()
	claims.Audience, _ = parsed.Audience()
	claims.IssuedAt, _ = parsed.IssuedAt()
	claims.Nonce = stringClaim(parsed, "nonce")
	claims.Name = stringClaim(parsed, "name")
	claims.Nickname = stringClaim(parsed, "nickname")
	claims.PreferredUsername = stringClaim(parsed, "preferred_username")
	claims.Picture = stringClaim(parsed, "picture")

	return &claims, nil
}

// keyID reads the key ID from the token's protected header without verifying it.
func keyID(token string) (string, error) {
	msg, err := jws.Parse([]byte(token))
	if err != nil {
		return "", fmt.Errorf("error in jws.Parse call: %w", err)
	}

	sigs := msg.Signatures()
	if len(sigs) == 0 {
		return "", errors.New("token has no signature")
	}

	kid, _ := sigs[0].ProtectedHeaders().KeyID()
	return kid, nil
}

// stringClaim returns the named private claim, or an empty string if it is absent or not a string.
func stringClaim(token jwt.Token, name string) string {
	var value string
	if err := token.Get(name, &value); err != nil {
		return ""
	}
	return value
}
