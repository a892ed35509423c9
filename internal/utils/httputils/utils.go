package httputils

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/shivanshkc/robloxauth/internal/utils/errutils"
)

// Write writes the given status code, headers and body to the response.
// The body is JSON encoded if it is not nil.
func Write(w http.ResponseWriter, status int, headers map[string]string, body any) {
	for key, value := range headers {
		w.Header().Set(key, value)
	}

	if body == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("error in json Encode call", "err", err)
	}
}

// WriteErr writes the given error as the response. Errors that are not errutils.HTTPError are written as
// internal server errors, so their details never reach the caller.
func WriteErr(w http.ResponseWriter, err error) {
	httpErr := errutils.ToHTTPError(err)
	Write(w, httpErr.Status, nil, httpErr)
}

// Is2xx returns true if the given code is a success code.
func Is2xx(code int) bool {
	return code >= http.StatusOK && code < http.StatusMultipleChoices
}
