package oauth

import (
	"net/http"
)

// defaultString sets the target to the fallback if it is empty.
func defaultString(target *string, fallback string) {
	if *target == "" {
		*target = fallback
	}
}

// is2xx returns true if the given code is a success code.
func is2xx(code int) bool {
	return code >= http.StatusOK && code < http.StatusMultipleChoices
}

// ptr returns a pointer to the given string, or nil if it is empty.
func ptr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
