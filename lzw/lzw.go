/*
Package lzw implements the variable width Lempel-Ziv-Welch compression used
for GIF image data.

Codes start at one bit wider than the minimum code size and grow by a bit
each time the dictionary outgrows the current width, up to 12 bits. Codes are
packed least significant bit first and the resulting bytes are split into
length prefixed sub-blocks of at most 255 bytes, finished by a zero length
block. Unlike compress/lzw the sub-block framing and the leading code size
byte are produced and consumed here.
*/
package lzw

import "github.com/pkg/errors"

const (
	maxWidth    = 12
	maxCodes    = 1 << maxWidth
	maxBlockLen = 255

	// MinCodeSize is the smallest minimum code size GIF allows.
	MinCodeSize = 2
	// MaxCodeSize is the largest minimum code size GIF allows.
	MaxCodeSize = 8
)

var (
	// ErrCodeSize is returned when a minimum code size is out of range.
	ErrCodeSize = errors.New("lzw: invalid minimum code size")
	// ErrIndexRange is returned when an index does not fit the code size.
	ErrIndexRange = errors.New("lzw: index out of range for code size")
	// ErrEmpty is returned when there is nothing to encode.
	ErrEmpty = errors.New("lzw: no indices to encode")
	// ErrTruncated is returned when a read runs past the end of the data.
	ErrTruncated = errors.New("lzw: truncated stream")
	// ErrMalformed is returned when the sub-block framing is broken.
	ErrMalformed = errors.New("lzw: malformed stream")
	// ErrDesync is returned when a code refers to a dictionary entry that
	// cannot exist yet.
	ErrDesync = errors.New("lzw: dictionary out of sync")
)

// codes returns the clear and end of information codes.
func codes(minCodeSize uint) (clear, eoi uint16) {
	clear = 1 << minCodeSize
	return clear, clear + 1
}
