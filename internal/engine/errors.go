package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyResponse is wrapped by a ProviderError when the backend answered
// successfully but with no usable content.
var ErrEmptyResponse = errors.New("empty response")

// ProviderError reports a failure of the embedding or generation backend:
// network errors, authentication, rate limits, malformed or empty responses.
// These are fatal to the operation that triggered them and are never retried.
type ProviderError struct {
	Backend string
	Op      string
	Err     error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Backend, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsProviderError reports whether err is or wraps a *ProviderError.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

func wrap(backend, op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderError{Backend: backend, Op: op, Err: err}
}

// chatResult normalizes a raw chat reply, turning blank content into ErrEmptyResponse.
func chatResult(backend, content string, err error) (string, error) {
	if err != nil {
		return "", wrap(backend, "chat", err)
	}
	if strings.TrimSpace(content) == "" {
		return "", wrap(backend, "chat", ErrEmptyResponse)
	}
	return content, nil
}

func embedResult(backend string, vec []float32, err error) ([]float32, error) {
	if err != nil {
		return nil, wrap(backend, "embed", err)
	}
	if len(vec) == 0 {
		return nil, wrap(backend, "embed", ErrEmptyResponse)
	}
	return vec, nil
}
