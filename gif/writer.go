package gif

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"

	"github.com/bodgit/animgif/internal/pipeline"
	"github.com/bodgit/animgif/lzw"
	"github.com/pkg/errors"
)

type screenDescriptor struct {
	Width       uint16
	Height      uint16
	Packed      byte
	Background  byte
	AspectRatio byte
}

type appExtension struct {
	Introducer byte
	Label      byte
	Size       byte
	Identifier [appExtensionLen]byte
	DataSize   byte
	SubID      byte
	LoopCount  uint16
	Terminator byte
}

type graphicControl struct {
	Introducer  byte
	Label       byte
	Size        byte
	Packed      byte
	Delay       uint16
	Transparent byte
	Terminator  byte
}

type imageDescriptor struct {
	Separator byte
	Left      uint16
	Top       uint16
	Width     uint16
	Height    uint16
	Packed    byte
}

func newAppExtension(loopCount uint16) appExtension {
	a := appExtension{
		Introducer: sExtension,
		Label:      eApplication,
		Size:       appExtensionLen,
		DataSize:   appDataLen,
		SubID:      1,
		LoopCount:  loopCount,
	}
	copy(a.Identifier[:], netscape)
	return a
}

func (g *GIF) validate() error {
	if g.Width == 0 || g.Height == 0 {
		return errors.Wrapf(ErrConfig, "screen is %dx%d", g.Width, g.Height)
	}
	if len(g.Frames) == 0 {
		return errors.Wrap(ErrConfig, "no frames")
	}
	if g.ColorResolution > 7 {
		return errors.Wrapf(ErrConfig, "color resolution %d does not fit 3 bits", g.ColorResolution)
	}
	for i, f := range g.Frames {
		if err := validFrame(f, int(g.Width), int(g.Height)); err != nil {
			return errors.Wrapf(err, "frame %d", i)
		}
	}
	return nil
}

// Render builds the palette and returns the encoded GIF. The first call
// finalizes the GIF, later calls return the same bytes.
func (g *GIF) Render() ([]byte, error) {
	if g.rendered != nil {
		return g.rendered, nil
	}
	if err := g.validate(); err != nil {
		return nil, err
	}

	palette, colors, size, err := buildPalette(g.Frames, g.Background)
	if err != nil {
		return nil, err
	}
	if !framesUse(g.Frames, g.Background) {
		g.logger().Printf("background %v not used by any frame, appended at index %d", g.Background, colors[g.Background])
	}

	// size is at least 1, so this never drops below lzw.MinCodeSize
	data, err := g.encodeFrames(colors, int(size)+1)
	if err != nil {
		return nil, err
	}

	b := new(bytes.Buffer)
	b.WriteString(sigGIF89a)

	sd := screenDescriptor{
		Width:      g.Width,
		Height:     g.Height,
		Packed:     fColorTable | g.ColorResolution<<4 | size,
		Background: colors[g.Background],
	}
	if g.Sorted {
		sd.Packed |= fSort
	}
	sd.AspectRatio = g.AspectRatio
	if err := binary.Write(b, binary.LittleEndian, &sd); err != nil {
		return nil, err
	}

	table, err := palette.MarshalBinary()
	if err != nil {
		return nil, err
	}
	b.Write(table)

	ae := newAppExtension(g.LoopCount)
	if err := binary.Write(b, binary.LittleEndian, &ae); err != nil {
		return nil, err
	}

	for i, f := range g.Frames {
		gc := graphicControl{
			Introducer: sExtension,
			Label:      eGraphicControl,
			Size:       graphicControlLen,
			Packed:     gcDisposalBackground,
			Delay:      uint16(f.Delay),
		}
		if err := binary.Write(b, binary.LittleEndian, &gc); err != nil {
			return nil, err
		}

		id := imageDescriptor{
			Separator: sImageDescriptor,
			Width:     g.Width,
			Height:    g.Height,
		}
		if err := binary.Write(b, binary.LittleEndian, &id); err != nil {
			return nil, err
		}

		b.Write(data[i])
	}
	b.WriteByte(sTrailer)

	g.Palette = palette
	g.BackgroundIndex = colors[g.Background]
	g.Version = sigGIF89a
	g.rendered = b.Bytes()

	return g.rendered, nil
}

func framesUse(frames []Frame, c RGB) bool {
	for _, f := range frames {
		for _, row := range f.Pixels {
			for _, p := range row {
				if p == c {
					return true
				}
			}
		}
	}
	return false
}

// WriteTo renders the GIF and writes it to w.
func (g *GIF) WriteTo(w io.Writer) (int64, error) {
	b, err := g.Render()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(b)
	return int64(n), err
}

// Encode writes g to w.
func Encode(w io.Writer, g *GIF) error {
	_, err := g.WriteTo(w)
	return err
}

func encodeFrame(f Frame, colors map[RGB]uint8, minCodeSize int) ([]byte, error) {
	indices := make([]byte, 0, f.Width()*f.Height())
	for _, row := range f.Pixels {
		for _, c := range row {
			indices = append(indices, colors[c])
		}
	}
	return lzw.Encode(indices, minCodeSize)
}

func (g *GIF) frameWorker(ctx context.Context, cancel context.CancelFunc, in <-chan int, colors map[RGB]uint8, minCodeSize int, out [][]byte) <-chan error {
	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		for i := range in {
			select {
			case <-ctx.Done():
				return
			default:
			}
			b, err := encodeFrame(g.Frames[i], colors, minCodeSize)
			if err != nil {
				errc <- errors.Wrapf(err, "frame %d", i)
				cancel()
				return
			}
			out[i] = b
		}
	}()
	return errc
}

// encodeFrames compresses every frame, spreading them over the workers. The
// results are returned in frame order.
func (g *GIF) encodeFrames(colors map[RGB]uint8, minCodeSize int) ([][]byte, error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	frames := make(chan int)
	go func() {
		defer close(frames)
		for i := range g.Frames {
			select {
			case frames <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	workers := g.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(g.Frames) {
		workers = len(g.Frames)
	}

	out := make([][]byte, len(g.Frames))
	var errcList []<-chan error
	for i := 0; i < workers; i++ {
		errcList = append(errcList, g.frameWorker(ctx, cancel, frames, colors, minCodeSize, out))
	}

	if err := pipeline.Wait(errcList...); err != nil {
		return nil, err
	}
	return out, nil
}
