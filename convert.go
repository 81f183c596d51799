package animgif

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/bodgit/animgif/gif"
	"github.com/ericpauley/go-quantize/quantize"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

const maxColors = 256

// Options controls how images become an animation.
type Options struct {
	// Width and Height are the screen size. Either one defaults to the
	// size of the first image when zero.
	Width, Height int

	// Background is composited under transparent pixels and clears the
	// screen between frames.
	Background gif.RGB

	// Delay is applied to every frame, in hundredths of a second.
	Delay int

	// LoopCount is the number of repeats, 0 loops forever.
	LoopCount uint16

	// Interpolation resamples images that do not match the screen size.
	// The zero value is nearest neighbour.
	Interpolation resize.InterpolationFunction
}

func blend(c, bg, a uint8) uint8 {
	return uint8((uint32(c)*uint32(a) + uint32(bg)*(0xff-uint32(a)) + 0x7f) / 0xff)
}

// FrameFromImage converts m to a frame, compositing any alpha against bg.
func FrameFromImage(m image.Image, bg gif.RGB, delay int) gif.Frame {
	b := m.Bounds()
	f := gif.NewFrame(b.Dx(), b.Dy(), bg, delay)
	for y := range f.Pixels {
		for x := range f.Pixels[y] {
			c := color.NRGBAModel.Convert(m.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			f.Pixels[y][x] = gif.RGB{
				R: blend(c.R, bg.R, c.A),
				G: blend(c.G, bg.G, c.A),
				B: blend(c.B, bg.B, c.A),
			}
		}
	}
	return f
}

// FrameImage returns f as an opaque image.
func FrameImage(f gif.Frame) *image.RGBA {
	m := image.NewRGBA(image.Rect(0, 0, f.Width(), f.Height()))
	for y, row := range f.Pixels {
		for x, c := range row {
			m.SetRGBA(x, y, color.RGBA{c.R, c.G, c.B, 0xff})
		}
	}
	return m
}

func countColors(frames []gif.Frame, bg gif.RGB) int {
	seen := map[gif.RGB]struct{}{bg: {}}
	for _, f := range frames {
		for _, row := range f.Pixels {
			for _, c := range row {
				seen[c] = struct{}{}
			}
		}
	}
	return len(seen)
}

// quantizeFrames reduces the frames to a shared palette of fewer than 256
// colors, leaving room for the background.
func quantizeFrames(frames []gif.Frame) []gif.Frame {
	w, h := frames[0].Width(), frames[0].Height()

	// Stack every frame so they are quantized together
	all := image.NewRGBA(image.Rect(0, 0, w, h*len(frames)))
	for i, f := range frames {
		draw.Draw(all, image.Rect(0, i*h, w, (i+1)*h), FrameImage(f), image.ZP, draw.Src)
	}

	q := quantize.MedianCutQuantizer{}
	pm := image.NewPaletted(all.Bounds(), q.Quantize(make(color.Palette, 0, maxColors-1), all))
	draw.Draw(pm, pm.Bounds(), all, image.ZP, draw.Src)

	out := make([]gif.Frame, len(frames))
	for i, f := range frames {
		out[i] = gif.NewFrame(w, h, gif.RGB{}, f.Delay)
		for y := range out[i].Pixels {
			for x := range out[i].Pixels[y] {
				r, g, b, _ := pm.At(x, i*h+y).RGBA()
				out[i].Pixels[y][x] = gif.RGB{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8)}
			}
		}
	}
	return out
}

// Convert turns images into the frames of a new animation, resizing and
// quantizing them as needed.
func (c *Converter) Convert(images []image.Image, opts Options) (*gif.GIF, error) {
	if len(images) == 0 {
		return nil, errors.Wrap(gif.ErrConfig, "no images")
	}

	w, h := opts.Width, opts.Height
	if b := images[0].Bounds(); w == 0 || h == 0 {
		if w == 0 {
			w = b.Dx()
		}
		if h == 0 {
			h = b.Dy()
		}
	}
	if w < 1 || h < 1 || w > 0xffff || h > 0xffff {
		return nil, errors.Wrapf(gif.ErrConfig, "screen size %dx%d", w, h)
	}

	frames := make([]gif.Frame, len(images))
	for i, m := range images {
		if b := m.Bounds(); b.Dx() != w || b.Dy() != h {
			c.logger.Printf("Resizing image %d from %dx%d to %dx%d\n", i, b.Dx(), b.Dy(), w, h)
			m = resize.Resize(uint(w), uint(h), m, opts.Interpolation)
		}
		frames[i] = FrameFromImage(m, opts.Background, opts.Delay)
	}

	if n := countColors(frames, opts.Background); n > maxColors {
		c.logger.Printf("Quantizing %d colors to %d\n", n, maxColors-1)
		frames = quantizeFrames(frames)
	}

	g := gif.New(uint16(w), uint16(h), opts.Background)
	g.LoopCount = opts.LoopCount
	g.Workers = c.workers()
	g.Logger = c.logger
	for _, f := range frames {
		if err := g.AddFrame(f); err != nil {
			return nil, err
		}
	}
	return g, nil
}
