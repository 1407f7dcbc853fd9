package leetcode

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNoUsername indicates the current session could not be resolved to a
// username, which means the stored cookies are missing or expired.
var ErrNoUsername = errors.New("unable to determine current leetcode username")

// StatusError reports a non-2xx response from an upstream endpoint.
type StatusError struct {
	Endpoint   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s HTTP %d", e.Endpoint, e.StatusCode)
}

// Auth reports whether the status indicates a missing or rejected session.
func (e *StatusError) Auth() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// GraphQLError carries the first message of a GraphQL-level errors array.
type GraphQLError struct {
	Message string
}

func (e *GraphQLError) Error() string {
	if e.Message == "" {
		return "graphql error"
	}
	return "graphql: " + e.Message
}

// IsAuthError reports whether err means the user has to log in again, as
// opposed to a transport failure or upstream outage. This is the closed
// classification the HTTP layer maps to its two canned user messages.
func IsAuthError(err error) bool {
	if errors.Is(err, ErrNoUsername) {
		return true
	}
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Auth()
}
