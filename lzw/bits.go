package lzw

import "github.com/pkg/errors"

// BitWriter packs variable width codes into GIF data sub-blocks.
type BitWriter struct {
	buf      []byte
	lenPos   int  // index of the open sub-block's length byte
	blockLen int  // payload bytes in the open sub-block
	free     uint // unused bits in the last byte
}

// NewBitWriter returns an empty BitWriter.
func NewBitWriter() *BitWriter {
	return &BitWriter{
		buf: make([]byte, 1, maxBlockLen+1),
	}
}

func (w *BitWriter) newByte() {
	if w.blockLen == maxBlockLen {
		w.buf[w.lenPos] = maxBlockLen
		w.buf = append(w.buf, 0)
		w.lenPos = len(w.buf) - 1
		w.blockLen = 0
	}
	w.buf = append(w.buf, 0)
	w.blockLen++
	w.free = 8
}

// Add appends the low width bits of value, least significant bit first.
func (w *BitWriter) Add(value uint32, width uint) {
	value &= 1<<width - 1
	for width > 0 {
		if w.free == 0 {
			w.newByte()
		}
		n := width
		if n > w.free {
			n = w.free
		}
		w.buf[len(w.buf)-1] |= byte((value & (1<<n - 1)) << (8 - w.free))
		value >>= n
		width -= n
		w.free -= n
	}
}

// Finish seals the open sub-block and returns prefix, the sub-blocks, the
// zero length terminator and suffix concatenated.
func (w *BitWriter) Finish(prefix, suffix []byte) []byte {
	out := make([]byte, 0, len(prefix)+len(w.buf)+1+len(suffix))
	out = append(out, prefix...)
	if w.blockLen > 0 {
		w.buf[w.lenPos] = byte(w.blockLen)
		out = append(out, w.buf...)
	}
	out = append(out, 0)
	return append(out, suffix...)
}

// BitReader unpacks variable width codes from GIF data sub-blocks.
type BitReader struct {
	buf       []byte
	pos       int // next unread byte
	blockLeft int // unread payload bytes in the current sub-block
	acc       uint32
	nbits     uint
}

// NewBitReader returns a BitReader positioned on the first sub-block length
// byte in b.
func NewBitReader(b []byte) *BitReader {
	return &BitReader{buf: b}
}

func (r *BitReader) fill() error {
	if r.blockLeft == 0 {
		if r.pos >= len(r.buf) {
			return errors.Wrapf(ErrTruncated, "sub-block length at offset %d", r.pos)
		}
		n := int(r.buf[r.pos])
		if n == 0 {
			return errors.Wrapf(ErrMalformed, "premature end of sub-blocks at offset %d", r.pos)
		}
		r.pos++
		r.blockLeft = n
	}
	if r.pos >= len(r.buf) {
		return errors.Wrapf(ErrTruncated, "sub-block payload at offset %d", r.pos)
	}
	r.acc |= uint32(r.buf[r.pos]) << r.nbits
	r.pos++
	r.blockLeft--
	r.nbits += 8
	return nil
}

// Read returns the next width bits.
func (r *BitReader) Read(width uint) (uint32, error) {
	for r.nbits < width {
		if err := r.fill(); err != nil {
			return 0, err
		}
	}
	v := r.acc & (1<<width - 1)
	r.acc >>= width
	r.nbits -= width
	return v, nil
}

// Close checks the current sub-block is used up and consumes the zero length
// terminator that must follow it.
func (r *BitReader) Close() error {
	if r.blockLeft != 0 {
		return errors.Wrapf(ErrMalformed, "%d unread bytes in sub-block at offset %d", r.blockLeft, r.pos)
	}
	if r.pos >= len(r.buf) {
		return errors.Wrapf(ErrMalformed, "missing block terminator at offset %d", r.pos)
	}
	if b := r.buf[r.pos]; b != 0 {
		return errors.Wrapf(ErrMalformed, "expected block terminator at offset %d, got 0x%02x", r.pos, b)
	}
	r.pos++
	r.acc, r.nbits = 0, 0
	return nil
}

// Offset returns the number of bytes consumed so far.
func (r *BitReader) Offset() int {
	return r.pos
}
