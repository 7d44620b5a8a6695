package bedrock

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyContent is returned when a message carries no content blocks.
	ErrEmptyContent = errors.New("message has no content")

	// ErrMalformedResponse is returned when the response body is not the
	// expected JSON envelope.
	ErrMalformedResponse = errors.New("malformed response body")

	// ErrEmptyResponse is returned when the response has no content blocks.
	ErrEmptyResponse = errors.New("response has no content blocks")

	// ErrMissingText is returned when the first content block has no text.
	ErrMissingText = errors.New("first content block has no text")
)

// GenerationError is returned for every failed Invoke.
type GenerationError struct {
	ModelID  string
	Attempts int
	Err      error
}

func (e *GenerationError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("bedrock invoke %s failed after %d attempts: %v", e.ModelID, e.Attempts, e.Err)
	}
	return fmt.Sprintf("bedrock invoke %s: %v", e.ModelID, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
