package arcrest

import (
	"errors"
	"fmt"
	"strings"
)

const (
	CodeTokenExpired  = 498
	CodeTokenRequired = 499
)

// AuthError is returned when a token cannot be obtained.
type AuthError struct {
	URL     string
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	msg := "authentication failed"
	if e.URL != "" {
		msg += " at " + e.URL
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// ApiError carries the code and message of an error envelope returned by the server.
type ApiError struct {
	Code     int
	Message  string
	Details  []string
	Endpoint string
}

func (e *ApiError) Error() string {
	var sb strings.Builder
	if e.Endpoint != "" {
		sb.WriteString(e.Endpoint)
		sb.WriteString(": ")
	}
	if e.Code != 0 {
		fmt.Fprintf(&sb, "error %d", e.Code)
	} else {
		sb.WriteString("error")
	}
	if e.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	if len(e.Details) > 0 {
		sb.WriteString(" (")
		sb.WriteString(strings.Join(e.Details, "; "))
		sb.WriteString(")")
	}
	return sb.String()
}

// NetworkError wraps transport failures, the request never produced a readable response.
type NetworkError struct {
	Op  string
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IoError wraps local file system failures.
type IoError struct {
	Path string
	Err  error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *IoError) Unwrap() error {
	return e.Err
}

// IsTokenExpired reports whether err is an error envelope telling the caller to get a new token.
func IsTokenExpired(err error) bool {
	var apiErr *ApiError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == CodeTokenExpired || apiErr.Code == CodeTokenRequired
}
