package platform

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrGroupRestricted matches a RequestError raised because the target content
// lives in a group the account cannot act on.
var ErrGroupRestricted = errors.New("group restricted")

// RequestError is a non-2xx response from the platform.
type RequestError struct {
	Status int
	Body   string
	// Restricted is set by Classify when the response carries the group-not-found signal.
	Restricted bool
}

func (e *RequestError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 256 {
		body = body[:256] + "..."
	}
	if body == "" {
		return fmt.Sprintf("platform request failed: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("platform request failed: %d %s: %s", e.Status, http.StatusText(e.Status), body)
}

func (e *RequestError) Is(target error) bool {
	return target == ErrGroupRestricted && e.Restricted
}

// TransportError wraps a failure to obtain any response at all.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("platform transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

var groupRestrictedMarkers = []string{
	"group not found",
	"groupnotfound",
	"group_not_found",
}

// Classify turns a non-2xx response into a RequestError, flagging the 404
// group-not-found shape so callers can match it with errors.Is.
func Classify(status int, body []byte) error {
	reqErr := &RequestError{Status: status, Body: string(body)}
	if status == http.StatusNotFound {
		lower := strings.ToLower(reqErr.Body)
		for _, marker := range groupRestrictedMarkers {
			if strings.Contains(lower, marker) {
				reqErr.Restricted = true
				break
			}
		}
	}
	return reqErr
}

// StatusCode returns the HTTP status carried by err, or 0 if err is not a RequestError.
func StatusCode(err error) int {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Status
	}
	return 0
}

// IsUnauthorized reports whether err is a 401 from the platform.
func IsUnauthorized(err error) bool {
	return StatusCode(err) == http.StatusUnauthorized
}
