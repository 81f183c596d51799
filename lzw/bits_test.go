package lzw

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// payload strips the sub-block framing from b, checking each length.
func payload(t *testing.T, b []byte) []byte {
	t.Helper()
	var out []byte
	for {
		require.NotEmpty(t, b, "missing terminator")
		n := int(b[0])
		if n == 0 {
			assert.Len(t, b, 1, "data after terminator")
			return out
		}
		require.True(t, len(b) > n, "short sub-block")
		out = append(out, b[1:1+n]...)
		b = b[1+n:]
	}
}

func TestBitWriterByteLayout(t *testing.T) {
	w := NewBitWriter()
	w.Add(0x5, 3)   // 101
	w.Add(0x3, 2)   // 11
	w.Add(0x1ff, 9) // spills into the next byte
	got := w.Finish([]byte{0x02}, []byte{0x3b})

	// byte 0: 111 11 101, byte 1: 00 111111
	assert.Equal(t, []byte{0x02, 0x02, 0xfd, 0x3f, 0x00, 0x3b}, got)
}

func TestBitWriterMasksValue(t *testing.T) {
	w := NewBitWriter()
	w.Add(0xff, 3)
	assert.Equal(t, []byte{0x01, 0x07, 0x00}, w.Finish(nil, nil))
}

func TestBitWriterEmpty(t *testing.T) {
	assert.Equal(t, []byte{0x08, 0x00}, NewBitWriter().Finish([]byte{0x08}, nil))
}

func TestBitWriterSubBlocks(t *testing.T) {
	tables := []struct {
		name   string
		bytes  int
		blocks []int
	}{
		{"one", 1, []int{1}},
		{"exact", 255, []int{255}},
		{"spill", 256, []int{255, 1}},
		{"three", 600, []int{255, 255, 90}},
	}

	for _, table := range tables {
		t.Run(table.name, func(t *testing.T) {
			w := NewBitWriter()
			for i := 0; i < table.bytes; i++ {
				w.Add(uint32(i), 8)
			}
			b := w.Finish(nil, nil)

			var blocks []int
			for b[0] != 0 {
				blocks = append(blocks, int(b[0]))
				b = b[1+int(b[0]):]
			}
			assert.Equal(t, table.blocks, blocks)
			assert.Equal(t, []byte{0}, b)
		})
	}
}

func TestBitReaderRoundTrip(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))

	type code struct {
		value uint32
		width uint
	}
	codes := make([]code, 5000)
	w := NewBitWriter()
	for i := range codes {
		width := uint(rnd.Intn(12) + 1)
		codes[i] = code{uint32(rnd.Intn(1 << width)), width}
		w.Add(codes[i].value, codes[i].width)
	}
	b := w.Finish(nil, nil)

	// Concatenated payloads reproduce the bit sequence
	p := payload(t, b)
	var acc uint64
	var nbits uint
	for i, c := range codes {
		for nbits < c.width {
			acc |= uint64(p[0]) << nbits
			p = p[1:]
			nbits += 8
		}
		require.Equal(t, c.value, uint32(acc&(1<<c.width-1)), "code %d", i)
		acc >>= c.width
		nbits -= c.width
	}

	r := NewBitReader(b)
	for i, c := range codes {
		v, err := r.Read(c.width)
		require.NoError(t, err)
		require.Equal(t, c.value, v, "code %d", i)
	}
	require.NoError(t, r.Close())
	assert.Equal(t, len(b), r.Offset())
}

func TestBitReaderTruncated(t *testing.T) {
	r := NewBitReader([]byte{0x02, 0xff})
	_, err := r.Read(8)
	require.NoError(t, err)
	_, err = r.Read(8)
	assert.True(t, isErr(err, ErrTruncated), "got %v", err)

	_, err = NewBitReader(nil).Read(1)
	assert.True(t, isErr(err, ErrTruncated), "got %v", err)
}

func TestBitReaderPrematureEnd(t *testing.T) {
	r := NewBitReader([]byte{0x01, 0xff, 0x00})
	_, err := r.Read(8)
	require.NoError(t, err)
	_, err = r.Read(1)
	assert.True(t, isErr(err, ErrMalformed), "got %v", err)
}

func TestBitReaderClose(t *testing.T) {
	tables := []struct {
		name string
		data []byte
		ok   bool
	}{
		{"terminated", []byte{0x01, 0xff, 0x00}, true},
		{"missing", []byte{0x01, 0xff}, false},
		{"nonzero", []byte{0x01, 0xff, 0x01}, false},
		{"unread", []byte{0x02, 0xff, 0xff, 0x00}, false},
	}

	for _, table := range tables {
		t.Run(table.name, func(t *testing.T) {
			r := NewBitReader(table.data)
			_, err := r.Read(8)
			require.NoError(t, err)
			err = r.Close()
			if table.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, isErr(err, ErrMalformed), "got %v", err)
		})
	}
}
