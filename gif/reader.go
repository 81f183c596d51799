package gif

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"io/ioutil"

	"github.com/bodgit/animgif/lzw"
	"github.com/pkg/errors"
)

type state int

const (
	stateHeader state = iota
	stateScreenDescriptor
	stateColorTable
	stateAppExtension
	stateFrame
	stateDone
)

type decoder struct {
	b   []byte
	off int

	g       *GIF
	palette int // entries in the color table
	lzw     *lzw.Decoder
}

func (d *decoder) formatError(block string, err error, expected, actual string) error {
	return errors.WithStack(&FormatError{
		Offset:   d.off,
		Block:    block,
		Expected: expected,
		Actual:   actual,
		Err:      err,
	})
}

func (d *decoder) mismatch(block, field string, expected, actual interface{}) error {
	return d.formatError(block, ErrMalformed, fmt.Sprintf("%s %v", field, expected), fmt.Sprintf("%v", actual))
}

// read fills the fixed size struct v from the next bytes.
func (d *decoder) read(block string, v interface{}) error {
	n := binary.Size(v)
	if len(d.b)-d.off < n {
		return d.formatError(block, ErrTruncated, fmt.Sprintf("%d bytes", n), fmt.Sprintf("%d", len(d.b)-d.off))
	}
	if err := binary.Read(bytes.NewReader(d.b[d.off:d.off+n]), binary.LittleEndian, v); err != nil {
		return err
	}
	d.off += n
	return nil
}

func (d *decoder) readHeader() error {
	if len(d.b) < len(sigGIF89a) {
		return d.formatError("header", ErrMalformed, "6 bytes", fmt.Sprintf("%d", len(d.b)))
	}
	switch sig := string(d.b[:len(sigGIF89a)]); sig {
	case sigGIF89a, sigGIF87a:
		d.g.Version = sig
	default:
		return d.formatError("header", ErrMalformed, sigGIF89a+" or "+sigGIF87a, fmt.Sprintf("%q", sig))
	}
	d.off += len(sigGIF89a)
	return nil
}

func (d *decoder) readScreenDescriptor() error {
	var sd screenDescriptor
	if err := d.read("logical screen descriptor", &sd); err != nil {
		return err
	}
	if sd.Packed&fColorTable == 0 {
		d.off -= screenDescriptorLen
		return d.formatError("logical screen descriptor", ErrMalformed, "global color table", "none")
	}
	d.g.Width = sd.Width
	d.g.Height = sd.Height
	d.g.ColorResolution = sd.Packed & fColorResolution >> 4
	d.g.Sorted = sd.Packed&fSort != 0
	d.g.BackgroundIndex = sd.Background
	d.g.AspectRatio = sd.AspectRatio
	d.palette = 1 << (sd.Packed&fColorTableSize + 1)
	return nil
}

func (d *decoder) readColorTable() error {
	n := 3 * d.palette
	if len(d.b)-d.off < n {
		return d.formatError("global color table", ErrTruncated, fmt.Sprintf("%d bytes", n), fmt.Sprintf("%d", len(d.b)-d.off))
	}
	if err := d.g.Palette.UnmarshalBinary(d.b[d.off : d.off+n]); err != nil {
		return err
	}
	if int(d.g.BackgroundIndex) >= len(d.g.Palette) {
		return d.mismatch("logical screen descriptor", "background index below", len(d.g.Palette), d.g.BackgroundIndex)
	}
	d.g.Background = d.g.Palette[d.g.BackgroundIndex]
	d.off += n
	return nil
}

func (d *decoder) readAppExtension() error {
	const block = "application extension"

	start := d.off
	var ae appExtension
	if err := d.read(block, &ae); err != nil {
		return err
	}
	d.off = start

	want := newAppExtension(ae.LoopCount)
	switch {
	case ae.Introducer != want.Introducer:
		return d.mismatch(block, "introducer", fmt.Sprintf("0x%02x", want.Introducer), fmt.Sprintf("0x%02x", ae.Introducer))
	case ae.Label != want.Label:
		return d.mismatch(block, "label", fmt.Sprintf("0x%02x", want.Label), fmt.Sprintf("0x%02x", ae.Label))
	case ae.Size != want.Size:
		return d.mismatch(block, "block size", want.Size, ae.Size)
	case ae.Identifier != want.Identifier:
		return d.mismatch(block, "identifier", fmt.Sprintf("%q", want.Identifier[:]), fmt.Sprintf("%q", ae.Identifier[:]))
	case ae.DataSize != want.DataSize:
		return d.mismatch(block, "sub-block size", want.DataSize, ae.DataSize)
	case ae.SubID != want.SubID:
		return d.mismatch(block, "sub-block id", want.SubID, ae.SubID)
	case ae.Terminator != 0:
		return d.mismatch(block, "terminator", 0, ae.Terminator)
	}
	d.off += binary.Size(&ae)
	d.g.LoopCount = ae.LoopCount
	return nil
}

func (d *decoder) checkImageDescriptor(id imageDescriptor) error {
	const block = "image descriptor"
	switch {
	case id.Separator != sImageDescriptor:
		return d.mismatch(block, "separator", fmt.Sprintf("0x%02x", sImageDescriptor), fmt.Sprintf("0x%02x", id.Separator))
	case id.Packed&ifLocalColorTable != 0:
		return d.mismatch(block, "color table", "global", "local")
	case id.Packed&ifInterlace != 0:
		return d.mismatch(block, "interlace", "off", "on")
	case id.Left != 0 || id.Top != 0 || id.Width != d.g.Width || id.Height != d.g.Height:
		return d.mismatch(block, "bounds",
			fmt.Sprintf("(0,0)-(%d,%d)", d.g.Width, d.g.Height),
			fmt.Sprintf("(%d,%d)-(%d,%d)", id.Left, id.Top, int(id.Left)+int(id.Width), int(id.Top)+int(id.Height)))
	}
	return nil
}

func (d *decoder) readFrame() error {
	start := d.off
	var gc graphicControl
	if err := d.read("graphic control extension", &gc); err != nil {
		return err
	}
	if gc.Label != eGraphicControl || gc.Size != graphicControlLen || gc.Terminator != 0 {
		d.off = start
		switch {
		case gc.Label != eGraphicControl:
			return d.mismatch("graphic control extension", "label", fmt.Sprintf("0x%02x", eGraphicControl), fmt.Sprintf("0x%02x", gc.Label))
		case gc.Size != graphicControlLen:
			return d.mismatch("graphic control extension", "block size", graphicControlLen, gc.Size)
		default:
			return d.mismatch("graphic control extension", "terminator", 0, gc.Terminator)
		}
	}

	start = d.off
	var id imageDescriptor
	if err := d.read("image descriptor", &id); err != nil {
		return err
	}
	end := d.off
	d.off = start
	if err := d.checkImageDescriptor(id); err != nil {
		return err
	}
	d.off = end

	width, height := int(id.Width), int(id.Height)
	d.lzw.Limit = width * height
	indices, n, err := d.lzw.Decode(d.b[d.off:])
	if err != nil {
		d.off += n
		return d.formatError("image data", err, "", "")
	}
	if len(indices) != width*height {
		return d.mismatch("image data", "pixels", width*height, len(indices))
	}

	f := Frame{
		Pixels: make([][]RGB, height),
		Delay:  int(gc.Delay),
	}
	for y := range f.Pixels {
		f.Pixels[y] = make([]RGB, width)
		for x := range f.Pixels[y] {
			i := indices[y*width+x]
			if int(i) >= len(d.g.Palette) {
				return d.mismatch("image data", fmt.Sprintf("pixel (%d,%d) index below", x, y), len(d.g.Palette), i)
			}
			f.Pixels[y][x] = d.g.Palette[i]
		}
	}
	d.off += n
	d.g.Frames = append(d.g.Frames, f)
	return nil
}

func (d *decoder) decode(b []byte, configOnly bool) error {
	d.b = b
	d.lzw = lzw.NewDecoder()

	for s := stateHeader; s != stateDone; {
		var err error
		switch s {
		case stateHeader:
			err = d.readHeader()
			s = stateScreenDescriptor
		case stateScreenDescriptor:
			err = d.readScreenDescriptor()
			s = stateColorTable
		case stateColorTable:
			err = d.readColorTable()
			s = stateAppExtension
			if configOnly {
				s = stateDone
			}
		case stateAppExtension:
			err = d.readAppExtension()
			s = stateFrame
		case stateFrame:
			if d.off >= len(d.b) {
				return d.formatError("trailer", ErrTruncated, fmt.Sprintf("0x%02x", sTrailer), "end of stream")
			}
			switch c := d.b[d.off]; c {
			case sTrailer:
				d.off++
				s = stateDone
			case sExtension:
				err = d.readFrame()
			default:
				return d.mismatch("trailer", "byte", fmt.Sprintf("0x%02x", sTrailer), fmt.Sprintf("0x%02x", c))
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// DecodeBytes decodes the GIF held in b.
func DecodeBytes(b []byte) (*GIF, error) {
	d := decoder{g: new(GIF)}
	if err := d.decode(b, false); err != nil {
		return nil, err
	}
	return d.g, nil
}

// Decode reads a GIF from r.
func Decode(r io.Reader) (*GIF, error) {
	b, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return DecodeBytes(b)
}

// DecodeConfig reads the header, logical screen descriptor and global color
// table from r without decoding any frames.
func DecodeConfig(r io.Reader) (*GIF, error) {
	b, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, err
	}
	d := decoder{g: new(GIF)}
	if err := d.decode(b, true); err != nil {
		return nil, err
	}
	return d.g, nil
}
