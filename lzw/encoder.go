package lzw

import "github.com/pkg/errors"

// Encoder compresses palette indices into GIF image data.
type Encoder struct {
	minCodeSize uint
	clear, eoi  uint16

	// Trace, if set, is called with every code written and its width.
	Trace func(code uint16, width uint)

	table map[uint32]uint16 // prefix code << 8 | index -> code
	next  uint16
}

// NewEncoder returns an Encoder for the given minimum code size. Sizes
// below MinCodeSize are raised to it, sizes above MaxCodeSize are an error.
func NewEncoder(minCodeSize int) (*Encoder, error) {
	if minCodeSize > MaxCodeSize {
		return nil, errors.Wrapf(ErrCodeSize, "%d is greater than %d", minCodeSize, MaxCodeSize)
	}
	if minCodeSize < MinCodeSize {
		minCodeSize = MinCodeSize
	}
	e := &Encoder{
		minCodeSize: uint(minCodeSize),
	}
	e.clear, e.eoi = codes(e.minCodeSize)
	return e, nil
}

// MinCodeSize returns the minimum code size in use after any clamping.
func (e *Encoder) MinCodeSize() int {
	return int(e.minCodeSize)
}

func (e *Encoder) reset() {
	e.table = make(map[uint32]uint16, maxCodes)
	e.next = e.eoi + 1
}

type codeWriter struct {
	*BitWriter
	trace func(uint16, uint)
}

func (w codeWriter) write(code uint16, width uint) {
	if w.trace != nil {
		w.trace(code, width)
	}
	w.Add(uint32(code), width)
}

// Encode compresses indices and returns the code size byte followed by the
// data sub-blocks and their terminator.
func (e *Encoder) Encode(indices []byte) ([]byte, error) {
	if len(indices) == 0 {
		return nil, ErrEmpty
	}
	for i, c := range indices {
		if uint16(c) >= e.clear {
			return nil, errors.Wrapf(ErrIndexRange, "index %d at position %d, code size %d", c, i, e.minCodeSize)
		}
	}

	w := codeWriter{NewBitWriter(), e.Trace}
	width := e.minCodeSize + 1
	w.write(e.clear, width)
	e.reset()

	// emit writes prefix and assigns the next code to the extension that
	// missed, growing the width or starting over as the dictionary fills.
	emit := func(prefix uint16, key uint32, insert bool) {
		w.write(prefix, width)
		code := e.next
		if insert {
			e.table[key] = code
		}
		e.next++
		if code == 1<<width {
			width++
			if width > maxWidth {
				w.write(e.clear, maxWidth)
				e.reset()
				width = e.minCodeSize + 1
			}
		}
	}

	prefix := uint16(indices[0])
	for _, c := range indices[1:] {
		key := uint32(prefix)<<8 | uint32(c)
		if code, ok := e.table[key]; ok {
			prefix = code
			continue
		}
		emit(prefix, key, true)
		prefix = uint16(c)
	}
	emit(prefix, 0, false)
	w.write(e.eoi, width)

	return w.Finish([]byte{byte(e.minCodeSize)}, nil), nil
}

// Encode compresses indices with a fresh Encoder.
func Encode(indices []byte, minCodeSize int) ([]byte, error) {
	e, err := NewEncoder(minCodeSize)
	if err != nil {
		return nil, err
	}
	return e.Encode(indices)
}
