package miscutils

import (
	"fmt"
	"net/url"
)

// MustParseURL parses the given string as a URL. It panics upon error.
func MustParseURL(u string) *url.URL {
	parsed, err := url.Parse(u)
	if err != nil {
		panic("error in url.Parse call: " + err.Error())
	}
	return parsed
}

// WithQueryParam returns the given URL with the query parameter set, keeping the existing ones.
func WithQueryParam(rawURL, key, value string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("error in url.Parse call: %w", err)
	}

	query := parsed.Query()
	query.Set(key, value)
	parsed.RawQuery = query.Encode()

	return parsed.String(), nil
}
