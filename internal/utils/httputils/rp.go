package httputils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// RoundTripFunc overrides the transport of an HTTP client, mostly in tests.
type RoundTripFunc func(req *http.Request) *http.Response

// RoundTrip will execute the round tripper func.
func (f RoundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req), nil
}

// RoundTripperJSON returns a round tripper that answers every request with the given status and JSON body.
// Strings and byte slices are sent as they are, anything else is marshalled.
func RoundTripperJSON(status int, response any) (RoundTripFunc, error) {
	var marshalled []byte
	var err error

	switch asserted := response.(type) {
	case []byte:
		marshalled = asserted
	case string:
		marshalled = []byte(asserted)
	default:
		marshalled, err = json.Marshal(response)
		if err != nil {
			return nil, fmt.Errorf("error in json.Marshal call: %w", err)
		}
	}

	return func(req *http.Request) *http.Response {
		return &http.Response{
			StatusCode: status,
			Body:       io.NopCloser(bytes.NewReader(marshalled)),
			Header:     http.Header{"Content-Type": []string{"application/json"}},
		}
	}, nil
}
