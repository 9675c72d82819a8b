// Package imagebuf is the typed image container frames are decoded into.
//
// Pixel data is stored row-major and tightly packed; 16-bit samples use the
// host (little-endian) byte order of the shared-memory producer.
package imagebuf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
)

var (
	ErrInvalidGeometry = errors.New("imagebuf: invalid geometry")
	ErrInvalidEncoding = errors.New("imagebuf: invalid encoding")
	ErrShortSource     = errors.New("imagebuf: source shorter than image")
)

// Image is one typed image plane.
type Image struct {
	Width    int
	Height   int
	Encoding Encoding
	Stride   int
	Pix      []byte
}

// New allocates a zeroed image.
func New(width, height int, enc Encoding) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidGeometry, width, height)
	}
	if !enc.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidEncoding, enc)
	}
	stride := width * enc.ElemSize()
	return &Image{
		Width:    width,
		Height:   height,
		Encoding: enc,
		Stride:   stride,
		Pix:      make([]byte, stride*height),
	}, nil
}

// Size returns the number of bytes an image of this geometry occupies.
func Size(width, height int, enc Encoding) int {
	return width * height * enc.ElemSize()
}

// CopyFrom fills the image from the front of src and returns the bytes consumed.
// src is never retained.
func (m *Image) CopyFrom(src []byte) (int, error) {
	n := len(m.Pix)
	if len(src) < n {
		return 0, fmt.Errorf("%w: have %d want %d", ErrShortSource, len(src), n)
	}
	copy(m.Pix, src[:n])
	return n, nil
}

// At returns the bytes of the pixel at (x, y). The slice aliases Pix.
func (m *Image) At(x, y int) []byte {
	es := m.Encoding.ElemSize()
	i := y*m.Stride + x*es
	return m.Pix[i : i+es : i+es]
}

// Uint8At returns channel c of an 8-bit pixel.
func (m *Image) Uint8At(x, y, c int) uint8 {
	return m.At(x, y)[c]
}

// Uint16At returns channel c of a 16-bit pixel.
func (m *Image) Uint16At(x, y, c int) uint16 {
	return binary.LittleEndian.Uint16(m.At(x, y)[2*c:])
}

func (m *Image) Clone() *Image {
	out := *m
	out.Pix = append([]byte(nil), m.Pix...)
	return &out
}

func (m *Image) Equal(o *Image) bool {
	if m == nil || o == nil {
		return m == o
	}
	return m.Width == o.Width && m.Height == o.Height &&
		m.Encoding == o.Encoding && bytes.Equal(m.Pix, o.Pix)
}

// ToImage converts the plane into a standard library image for encoding.
// 16-bit samples are rewritten in the big-endian order image.Gray16 expects.
func (m *Image) ToImage() image.Image {
	rect := image.Rect(0, 0, m.Width, m.Height)
	switch {
	case m.Encoding == Mono8:
		out := image.NewGray(rect)
		copy(out.Pix, m.Pix)
		return out
	case m.Encoding == Mono16:
		out := image.NewGray16(rect)
		for i := 0; i+1 < len(m.Pix); i += 2 {
			out.Pix[i] = m.Pix[i+1]
			out.Pix[i+1] = m.Pix[i]
		}
		return out
	case m.Encoding.Channels() == 3:
		out := image.NewRGBA(rect)
		for y := 0; y < m.Height; y++ {
			for x := 0; x < m.Width; x++ {
				px := m.At(x, y)
				var r, g, b uint8
				if m.Encoding.BytesPerChannel() == 2 {
					r, g, b = px[1], px[3], px[5]
				} else {
					r, g, b = px[0], px[1], px[2]
				}
				out.SetRGBA(x, y, color.RGBA{R: r, G: g, B: b, A: 0xff})
			}
		}
		return out
	}
	return image.NewGray(rect)
}
