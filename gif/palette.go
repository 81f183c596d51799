package gif

import (
	"math"

	"github.com/pkg/errors"
)

// Palette is a global color table.
type Palette []RGB

// Placeholder pads the palette up to the table size.
var Placeholder = RGB{}

// Index returns the index of the first entry equal to c.
func (p Palette) Index(c RGB) (int, bool) {
	for i, e := range p {
		if e == c {
			return i, true
		}
	}
	return 0, false
}

// MarshalBinary returns the palette as RGB triples.
func (p Palette) MarshalBinary() ([]byte, error) {
	b := make([]byte, 0, len(p)*3)
	for _, c := range p {
		b = append(b, c.R, c.G, c.B)
	}
	return b, nil
}

// UnmarshalBinary replaces the palette with the RGB triples in b.
func (p *Palette) UnmarshalBinary(b []byte) error {
	if len(b)%3 != 0 {
		return errors.Errorf("palette length %d is not a multiple of 3", len(b))
	}
	*p = make(Palette, len(b)/3)
	for i := range *p {
		(*p)[i] = RGB{b[i*3], b[i*3+1], b[i*3+2]}
	}
	return nil
}

// TableSize returns the 3-bit size field s describing a table of 2^(s+1)
// entries for n colors. It starts from ceil(sqrt(n))-1, which is what
// existing encoders of this format write, floored at 1. The result is raised
// if the table would be too small and capped at 7.
func TableSize(n int) uint8 {
	s := int(math.Ceil(math.Sqrt(float64(n)))) - 1
	if s < 1 {
		s = 1
	}
	for s < fColorTableSize && 1<<uint(s+1) < n {
		s++
	}
	if s > fColorTableSize {
		s = fColorTableSize
	}
	return uint8(s)
}

// buildPalette collects the colors of every frame in order of appearance,
// then the background, and pads the result to the table size.
func buildPalette(frames []Frame, background RGB) (Palette, map[RGB]uint8, uint8, error) {
	var p Palette
	m := make(map[RGB]uint8)

	add := func(c RGB) error {
		if _, ok := m[c]; ok {
			return nil
		}
		if len(p) == maxColors {
			return errors.Wrapf(ErrConfig, "more than %d colors", maxColors)
		}
		m[c] = uint8(len(p))
		p = append(p, c)
		return nil
	}

	for _, f := range frames {
		for _, row := range f.Pixels {
			for _, c := range row {
				if err := add(c); err != nil {
					return nil, nil, 0, err
				}
			}
		}
	}
	if err := add(background); err != nil {
		return nil, nil, 0, err
	}

	s := TableSize(len(p))
	for len(p) < 1<<(s+1) {
		p = append(p, Placeholder)
	}
	return p, m, s, nil
}

// BuildPalette returns the padded global color table for frames and
// background.
func BuildPalette(frames []Frame, background RGB) (Palette, error) {
	p, _, _, err := buildPalette(frames, background)
	return p, err
}
