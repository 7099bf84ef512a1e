package domain

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedToken    = errors.New("access token has unexpected format")
	ErrDigestUnavailable = errors.New("digest algorithm unavailable")
	ErrConfiguration     = errors.New("configuration error")
	ErrRemoteWrite       = errors.New("kv store write failed")
)

// MalformedTokenError reports a token that did not split into exactly three
// non-empty segments.
type MalformedTokenError struct {
	Segments int
}

func (e *MalformedTokenError) Error() string {
	return fmt.Sprintf("%s: expected the token to have 3 parts but found %d", ErrMalformedToken, e.Segments)
}

func (e *MalformedTokenError) Unwrap() error { return ErrMalformedToken }

// ConfigurationError is returned before any network I/O when a pre-bound
// transport disagrees with the scheme the target endpoint requires.
type ConfigurationError struct {
	Required string
	Found    string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: http scheme of client is not acceptable; %s is required but %s was found",
		ErrConfiguration, e.Required, e.Found)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// RemoteWriteError covers both non-200 responses and transport failures.
// StatusCode is 0 when no response was received.
type RemoteWriteError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *RemoteWriteError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %v", ErrRemoteWrite, e.Err)
	}
	return fmt.Sprintf("%s: unexpected status %d", ErrRemoteWrite, e.StatusCode)
}

func (e *RemoteWriteError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrRemoteWrite}
	}
	return []error{ErrRemoteWrite, e.Err}
}
