package lzw

import (
	"bytes"
	stdlzw "compress/lzw"
	"errors"
	"io/ioutil"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isErr(err, target error) bool {
	return errors.Is(err, target)
}

func randomIndices(rnd *rand.Rand, n, colors int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(rnd.Intn(colors))
	}
	return b
}

// runs produces long stretches of repeated indices, which compress well.
func runs(rnd *rand.Rand, n, colors int) []byte {
	b := make([]byte, 0, n)
	for len(b) < n {
		c := byte(rnd.Intn(colors))
		for i := rnd.Intn(40) + 1; i > 0 && len(b) < n; i-- {
			b = append(b, c)
		}
	}
	return b
}

func frame(b []byte) []byte {
	w := NewBitWriter()
	for _, c := range b {
		w.Add(uint32(c), 8)
	}
	return w.Finish(nil, nil)
}

func TestNewEncoderCodeSize(t *testing.T) {
	tables := []struct {
		size, want int
		err        error
	}{
		{0, 2, nil},
		{1, 2, nil},
		{2, 2, nil},
		{8, 8, nil},
		{9, 0, ErrCodeSize},
	}

	for _, table := range tables {
		e, err := NewEncoder(table.size)
		if table.err != nil {
			assert.True(t, isErr(err, table.err), "size %d: got %v", table.size, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, table.want, e.MinCodeSize())
	}
}

func TestEncodeErrors(t *testing.T) {
	_, err := Encode(nil, 2)
	assert.True(t, isErr(err, ErrEmpty), "got %v", err)

	_, err = Encode([]byte{0, 1, 4}, 2)
	assert.True(t, isErr(err, ErrIndexRange), "got %v", err)
}

func TestEncodeSingleIndex(t *testing.T) {
	// clear=4, 0, eoi=5 at 3 bits, low bits first: 0x44 0x01
	b, err := Encode([]byte{0}, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 0x02, 0x44, 0x01, 0x00}, b)
}

func TestRoundTrip(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))

	for size := MinCodeSize; size <= MaxCodeSize; size++ {
		colors := 1 << uint(size)
		for _, n := range []int{1, 2, 3, 100, 5000, 100000} {
			for _, in := range [][]byte{randomIndices(rnd, n, colors), runs(rnd, n, colors)} {
				b, err := Encode(in, size)
				require.NoError(t, err)
				assert.Equal(t, byte(size), b[0])

				out, consumed, err := Decode(b)
				require.NoError(t, err, "size %d", size)
				assert.Equal(t, len(b), consumed)
				require.Equal(t, in, out, "size %d", size)
			}
		}
	}
}

func TestDecodeTrailingData(t *testing.T) {
	b, err := Encode([]byte{1, 2, 3, 1, 2, 3}, 2)
	require.NoError(t, err)

	out, n, err := Decode(append(b, 0x2c, 0x00))
	require.NoError(t, err)
	assert.Equal(t, len(b), n)
	assert.Equal(t, []byte{1, 2, 3, 1, 2, 3}, out)
}

func TestMatchesStdlibEncoder(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))

	for size := MinCodeSize; size <= MaxCodeSize; size++ {
		in := runs(rnd, 2000, 1<<uint(size))

		var buf bytes.Buffer
		w := stdlzw.NewWriter(&buf, stdlzw.LSB, size)
		_, err := w.Write(in)
		require.NoError(t, err)
		require.NoError(t, w.Close())

		b, err := Encode(in, size)
		require.NoError(t, err)
		assert.Equal(t, buf.Bytes(), payload(t, b[1:]), "size %d", size)

		out, _, err := Decode(append([]byte{byte(size)}, frame(buf.Bytes())...))
		require.NoError(t, err)
		assert.Equal(t, in, out)
	}
}

func TestStdlibDecodesLongStreams(t *testing.T) {
	rnd := rand.New(rand.NewSource(9))
	in := randomIndices(rnd, 200000, 256)

	b, err := Encode(in, 8)
	require.NoError(t, err)

	out, err := ioutil.ReadAll(stdlzw.NewReader(bytes.NewReader(payload(t, b[1:])), stdlzw.LSB, 8))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestWidthGrowth(t *testing.T) {
	// With a code size of 2 the first width is 3 bits and new codes start
	// at 6. The third novel pair is assigned code 8, so the code written
	// after it is the first at 4 bits.
	in := []byte{0, 1, 2, 3, 0, 2, 1, 3, 3, 1, 0, 0, 2, 2, 1, 1}

	type step struct {
		code  uint16
		width uint
	}
	var enc, dec []step
	var sizes []int

	e, err := NewEncoder(2)
	require.NoError(t, err)
	e.Trace = func(code uint16, width uint) {
		enc = append(enc, step{code, width})
	}
	b, err := e.Encode(in)
	require.NoError(t, err)

	d := NewDecoder()
	d.Trace = func(code uint16, width uint) {
		dec = append(dec, step{code, width})
		sizes = append(sizes, d.Size())
	}
	out, _, err := d.Decode(b)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	require.Equal(t, enc, dec)
	assert.Equal(t, step{4, 3}, enc[0])
	assert.Equal(t, step{2, 3}, enc[3], "novel pairs written at 3 bits")
	assert.Equal(t, uint(4), enc[4].width, "width grows once the dictionary reaches 8")

	// The decoder's dictionary, one code behind the encoder, is 8 by the
	// time the first 4 bit code is read.
	assert.Equal(t, 8, sizes[4])
}

func TestClearCodeReset(t *testing.T) {
	rnd := rand.New(rand.NewSource(3))
	in := randomIndices(rnd, 100000, 4)

	var clears, at12 int
	e, err := NewEncoder(2)
	require.NoError(t, err)
	e.Trace = func(code uint16, width uint) {
		if code == 4 {
			clears++
			if width == 12 {
				at12++
			}
		}
	}
	b, err := e.Encode(in)
	require.NoError(t, err)

	assert.True(t, clears > 1, "expected clear codes beyond the first")
	assert.Equal(t, clears-1, at12, "every reset clear is written at 12 bits")

	var decClears int
	d := NewDecoder()
	d.Trace = func(code uint16, width uint) {
		if code == 4 {
			decClears++
		}
	}
	out, _, err := d.Decode(b)
	require.NoError(t, err)
	assert.Equal(t, clears, decClears)
	assert.Equal(t, in, out)
}

func TestDecodeDesync(t *testing.T) {
	tables := []struct {
		name  string
		codes []uint32
	}{
		// clear, 0, code 7 when the dictionary only holds 6
		{"ahead", []uint32{4, 0, 7}},
		// clear, then a code that is not a literal
		{"after clear", []uint32{4, 6}},
	}

	for _, table := range tables {
		t.Run(table.name, func(t *testing.T) {
			w := NewBitWriter()
			for _, c := range table.codes {
				w.Add(c, 3)
			}
			w.Add(5, 3)
			_, _, err := Decode(w.Finish([]byte{2}, nil))
			assert.True(t, isErr(err, ErrDesync), "got %v", err)
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	b, err := Encode([]byte{0, 1, 2, 3, 3, 2, 1, 0}, 2)
	require.NoError(t, err)

	tables := []struct {
		name string
		data []byte
		err  error
	}{
		{"empty", nil, ErrTruncated},
		{"code size", []byte{9, 1, 0, 0}, ErrMalformed},
		{"no terminator", b[:len(b)-1], ErrMalformed},
		{"bad terminator", append(append([]byte{}, b[:len(b)-1]...), 7), ErrMalformed},
		{"truncated", b[:3], ErrTruncated},
		{"no clear", []byte{2, 1, 0x05, 0}, ErrMalformed},
	}

	for _, table := range tables {
		t.Run(table.name, func(t *testing.T) {
			_, _, err := Decode(table.data)
			assert.True(t, isErr(err, table.err), "got %v", err)
		})
	}
}

func TestDecodeLimit(t *testing.T) {
	in := bytes.Repeat([]byte{1}, 100)
	b, err := Encode(in, 2)
	require.NoError(t, err)

	d := NewDecoder()
	d.Limit = 50
	_, _, err = d.Decode(b)
	assert.True(t, isErr(err, ErrMalformed), "got %v", err)

	d.Limit = 100
	out, _, err := d.Decode(b)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
