package oauth

import (
	"errors"

	"github.com/lestrrat-go/jwx/v3/jwt"
)

var (
	// ErrCannotDeduceProvider is returned when the provider cannot be deduced from the token.
	// It is mostly due to malformed token.
	ErrCannotDeduceProvider = errors.New("cannot deduce token provider")
	// ErrUnknownProvider is returned when the token issuer is unknown.
	ErrUnknownProvider = errors.New("unknown token provider")
)

// ProviderFromToken returns the ID of the provider, out of the given ones, that issued the identity token.
//
// The token is not verified, so the result only selects which provider should verify it.
func ProviderFromToken(token string, providers ...Provider) (string, error) {
	// Parse the token without any verifications.
	parsed, err := jwt.ParseInsecure([]byte(token))
	if err != nil {
		return "", errors.Join(ErrCannotDeduceProvider, err)
	}

	// Issuer can be used to identify the provider.
	iss, _ := parsed.Issuer()
	for _, provider := range providers {
		if iss != "" && iss == provider.Issuer() {
			return provider.ID(), nil
		}
	}

	// Provider couldn't be determined.
	return "", ErrUnknownProvider
}
