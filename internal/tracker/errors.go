package tracker

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrNotFound means the project or story does not exist or is not
	// visible to the credential.
	ErrNotFound = errors.New("tracker: not found")

	// ErrInvalidTransition means Tracker rejected the change itself, for
	// example a state transition the story type does not allow.
	ErrInvalidTransition = errors.New("tracker: invalid transition")

	// ErrUnauthorized means the token was rejected.
	ErrUnauthorized = errors.New("tracker: unauthorized")

	// ErrInvalidValue means a value could not be encoded for its field.
	ErrInvalidValue = errors.New("tracker: invalid value")
)

// APIError is a non-2xx response from Tracker.
type APIError struct {
	Op         string
	StatusCode int
	Code       string // Tracker's machine readable code, e.g. "unfound_resource"
	Message    string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Code != "" {
		return fmt.Sprintf("tracker %s: HTTP %d %s: %s", e.Op, e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("tracker %s: HTTP %d: %s", e.Op, e.StatusCode, msg)
}

// Unwrap maps the response onto the package's sentinel errors.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusNotFound || e.Code == "unfound_resource":
		return ErrNotFound
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case e.rejectedChange():
		return ErrInvalidTransition
	}
	return nil
}

// rejectedChange reports whether Tracker refused the requested value, as
// opposed to a malformed request.
func (e *APIError) rejectedChange() bool {
	if e.StatusCode != http.StatusBadRequest && e.StatusCode != http.StatusUnprocessableEntity {
		return false
	}
	switch e.Code {
	case "invalid_parameter", "invalid_transition":
		return true
	}
	return strings.Contains(strings.ToLower(e.Message), "state")
}

// errorBody is the JSON envelope Tracker uses for errors.
type errorBody struct {
	Code           string `json:"code"`
	Kind           string `json:"kind"`
	Error          string `json:"error"`
	GeneralProblem string `json:"general_problem"`
	PossibleFix    string `json:"possible_fix"`
}
