package lzw

import "github.com/pkg/errors"

const noCode = 0xffff

// Decoder decompresses GIF image data into palette indices.
type Decoder struct {
	// Limit, if positive, is the most indices a single Decode may return.
	Limit int

	// Trace, if set, is called with every code read and its width.
	Trace func(code uint16, width uint)

	minCodeSize uint
	clear, eoi  uint16
	size        uint16 // codes in the dictionary, including clear and eoi

	prefix [maxCodes]uint16
	suffix [maxCodes]byte
	first  [maxCodes]byte
	length [maxCodes]uint16
}

// NewDecoder returns an empty Decoder.
func NewDecoder() *Decoder {
	return new(Decoder)
}

func (d *Decoder) init(minCodeSize uint) {
	d.minCodeSize = minCodeSize
	d.clear, d.eoi = codes(minCodeSize)
	for i := uint16(0); i < d.clear; i++ {
		d.prefix[i] = noCode
		d.suffix[i] = byte(i)
		d.first[i] = byte(i)
		d.length[i] = 1
	}
	d.reset()
}

func (d *Decoder) reset() {
	d.size = d.eoi + 1
}

// Size returns the number of codes currently in the dictionary.
func (d *Decoder) Size() int {
	return int(d.size)
}

// appendCode appends the sequence for code to out.
func (d *Decoder) appendCode(out []byte, code uint16) []byte {
	n := int(d.length[code])
	out = append(out, make([]byte, n)...)
	for i := len(out) - 1; n > 0; i, n = i-1, n-1 {
		out[i] = d.suffix[code]
		code = d.prefix[code]
	}
	return out
}

// Decode reads the code size byte and the data sub-blocks that follow it in
// data. It returns the indices and the number of bytes consumed, including
// the block terminator.
func (d *Decoder) Decode(data []byte) ([]byte, int, error) {
	if len(data) == 0 {
		return nil, 0, errors.Wrap(ErrTruncated, "missing code size")
	}
	if n := int(data[0]); n < MinCodeSize || n > MaxCodeSize {
		return nil, 0, errors.Wrapf(ErrMalformed, "code size %d", n)
	}
	d.init(uint(data[0]))

	r := NewBitReader(data[1:])
	out, err := d.decode(r)
	if err != nil {
		return nil, 1 + r.Offset(), err
	}
	if err := r.Close(); err != nil {
		return nil, 1 + r.Offset(), err
	}
	return out, 1 + r.Offset(), nil
}

func (d *Decoder) decode(r *BitReader) ([]byte, error) {
	width := d.minCodeSize + 1

	code, err := d.read(r, width)
	if err != nil {
		return nil, err
	}
	if code != d.clear {
		return nil, errors.Wrapf(ErrMalformed, "expected clear code %d, got %d", d.clear, code)
	}

	var out []byte
	last := uint16(noCode)
	for {
		code, err := d.read(r, width)
		if err != nil {
			return nil, err
		}

		switch {
		case code == d.clear:
			d.reset()
			width = d.minCodeSize + 1
			last = noCode
			continue
		case code == d.eoi:
			return out, nil
		case last == noCode:
			if code >= d.clear {
				return nil, errors.Wrapf(ErrDesync, "code %d follows a clear code", code)
			}
			out = append(out, byte(code))
		case code < d.size:
			out = d.appendCode(out, code)
			d.insert(last, d.first[code])
		case code == d.size:
			d.insert(last, d.first[last])
			out = d.appendCode(out, code)
		default:
			return nil, errors.Wrapf(ErrDesync, "code %d with dictionary size %d", code, d.size)
		}
		last = code

		if d.Limit > 0 && len(out) > d.Limit {
			return nil, errors.Wrapf(ErrMalformed, "more than %d indices", d.Limit)
		}

		if d.size == 1<<width && width < maxWidth {
			width++
		}
	}
}

func (d *Decoder) read(r *BitReader, width uint) (uint16, error) {
	v, err := r.Read(width)
	if err != nil {
		return 0, err
	}
	if d.Trace != nil {
		d.Trace(uint16(v), width)
	}
	return uint16(v), nil
}

// insert adds last followed by c as the next code. A full dictionary is left
// alone until the next clear code.
func (d *Decoder) insert(last uint16, c byte) {
	if d.size >= maxCodes {
		return
	}
	d.prefix[d.size] = last
	d.suffix[d.size] = c
	d.first[d.size] = d.first[last]
	d.length[d.size] = d.length[last] + 1
	d.size++
}

// Decode decompresses data with a fresh Decoder.
func Decode(data []byte) ([]byte, int, error) {
	return NewDecoder().Decode(data)
}
