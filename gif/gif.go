/*
Package gif implements an animated GIF encoder and decoder built on a single
global color table.

Every frame covers the whole logical screen, has a delay in hundredths of a
second and is disposed of by restoring the background. The animation loops
using the NETSCAPE2.0 application extension. Local color tables, interlacing
and transparency are not supported.

The palette is built from the colors of every frame when the GIF is rendered,
in order of first appearance, followed by the background color if no frame
uses it, and is then padded with black to the table size.
*/
package gif

import (
	"io/ioutil"
	"log"
	"runtime"

	"github.com/pkg/errors"
)

const (
	sigGIF89a = "GIF89a"
	sigGIF87a = "GIF87a"
	netscape  = "NETSCAPE2.0"

	maxColors = 256

	// DefaultColorResolution is the color resolution written when none is set.
	DefaultColorResolution = 7
)

// Section indicators.
const (
	sExtension       = 0x21
	sImageDescriptor = 0x2C
	sTrailer         = 0x3B
)

// Extensions.
const (
	eGraphicControl = 0xF9
	eApplication    = 0xFF
)

// Masks etc.
const (
	// Fields.
	fColorTable      = 1 << 7
	fColorResolution = 7 << 4
	fSort            = 1 << 3
	fColorTableSize  = 7

	// Image fields.
	ifLocalColorTable = 1 << 7
	ifInterlace       = 1 << 6

	// Graphic control flags.
	gcDisposalBackground = 2 << 2
)

// Block sizes, excluding any introducer, label or terminator.
const (
	screenDescriptorLen = 7
	appExtensionLen     = 11
	appDataLen          = 3
	graphicControlLen   = 4
)

// RGB is a single 24-bit color.
type RGB struct {
	R, G, B uint8
}

// Frame is one image of the animation.
type Frame struct {
	// Pixels holds the rows of the frame, top to bottom.
	Pixels [][]RGB
	// Delay is the time to show the frame for, in hundredths of a second.
	Delay int
}

// Width returns the width of the frame in pixels.
func (f Frame) Width() int {
	if len(f.Pixels) == 0 {
		return 0
	}
	return len(f.Pixels[0])
}

// Height returns the height of the frame in pixels.
func (f Frame) Height() int {
	return len(f.Pixels)
}

// NewFrame returns a frame of the given size filled with c.
func NewFrame(width, height int, c RGB, delay int) Frame {
	rows := make([][]RGB, height)
	for y := range rows {
		rows[y] = make([]RGB, width)
		for x := range rows[y] {
			rows[y][x] = c
		}
	}
	return Frame{Pixels: rows, Delay: delay}
}

// GIF is an animation. Create one with New and AddFrame, then call Render
// or WriteTo. Decode fills in every field from an existing stream.
type GIF struct {
	Version string // set by Decode

	Width, Height uint16

	// Background is the color the screen is cleared to between frames.
	Background      RGB
	BackgroundIndex uint8

	// ColorResolution is the 3-bit color resolution field.
	ColorResolution uint8
	AspectRatio     uint8
	Sorted          bool

	// LoopCount is the number of times to repeat, 0 repeats forever.
	LoopCount uint16

	Frames  []Frame
	Palette Palette // set by Render and Decode

	// Workers is the number of frames encoded at once.
	Workers int

	// Logger receives warnings, it discards them if nil.
	Logger *log.Logger

	rendered []byte
}

// New returns an empty width by height GIF.
func New(width, height uint16, background RGB) *GIF {
	return &GIF{
		Width:           width,
		Height:          height,
		Background:      background,
		ColorResolution: DefaultColorResolution,
		Workers:         runtime.NumCPU(),
	}
}

func (g *GIF) logger() *log.Logger {
	if g.Logger == nil {
		g.Logger = log.New(ioutil.Discard, "", 0)
	}
	return g.Logger
}

func validFrame(f Frame, width, height int) error {
	if f.Height() != height || f.Width() != width {
		return errors.Wrapf(ErrConfig, "frame is %dx%d, screen is %dx%d", f.Width(), f.Height(), width, height)
	}
	for y, row := range f.Pixels {
		if len(row) != width {
			return errors.Wrapf(ErrConfig, "row %d is %d pixels wide, expected %d", y, len(row), width)
		}
	}
	if f.Delay < 0 || f.Delay > 0xffff {
		return errors.Wrapf(ErrConfig, "delay %d does not fit 16 bits", f.Delay)
	}
	return nil
}

// AddFrame appends f to the animation. It fails once the GIF is rendered or
// if f does not match the screen size.
func (g *GIF) AddFrame(f Frame) error {
	if g.rendered != nil {
		return errors.Wrap(ErrConfig, "GIF already rendered")
	}
	if err := validFrame(f, int(g.Width), int(g.Height)); err != nil {
		return errors.Wrapf(err, "frame %d", len(g.Frames))
	}
	g.Frames = append(g.Frames, f)
	return nil
}
