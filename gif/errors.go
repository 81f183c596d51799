package gif

import (
	"fmt"

	"github.com/bodgit/animgif/lzw"
	"github.com/pkg/errors"
)

var (
	// ErrConfig is returned for invalid parameters or frames, always before
	// any output is produced.
	ErrConfig = errors.New("gif: invalid configuration")
	// ErrMalformed is returned when a structural byte is not as expected.
	ErrMalformed = lzw.ErrMalformed
	// ErrTruncated is returned when the stream ends early.
	ErrTruncated = lzw.ErrTruncated
	// ErrDesync is returned when image data refers to codes that cannot exist.
	ErrDesync = lzw.ErrDesync
)

// FormatError describes where decoding failed.
type FormatError struct {
	Offset   int    // byte offset into the stream
	Block    string // block being parsed
	Expected string
	Actual   string
	Err      error
}

func (e *FormatError) Error() string {
	s := fmt.Sprintf("gif: %s at offset %d", e.Block, e.Offset)
	if e.Expected != "" || e.Actual != "" {
		s += fmt.Sprintf(": expected %s, got %s", e.Expected, e.Actual)
	}
	return s + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *FormatError) Unwrap() error {
	return e.Err
}
