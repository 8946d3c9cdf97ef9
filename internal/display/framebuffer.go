package display

import (
	"hash/crc32"
	"image/color"
	"strings"
)

const (
	DefaultWidth  = 64
	DefaultHeight = 32
)

// Framebuffer is a monochrome XOR display. Pixels are stored one byte each
// (0 or 1), row-major.
type Framebuffer struct {
	w, h int
	pix  []byte
}

func New(w, h int) *Framebuffer {
	if w <= 0 {
		w = DefaultWidth
	}
	if h <= 0 {
		h = DefaultHeight
	}
	return &Framebuffer{w: w, h: h, pix: make([]byte, w*h)}
}

func (f *Framebuffer) Width() int  { return f.w }
func (f *Framebuffer) Height() int { return f.h }

// Clear turns every pixel off.
func (f *Framebuffer) Clear() {
	for i := range f.pix {
		f.pix[i] = 0
	}
}

// TogglePixel flips the pixel at (x, y) and reports whether it was set
// before the flip. Coordinates outside the buffer are ignored.
func (f *Framebuffer) TogglePixel(x, y int) bool {
	if x < 0 || y < 0 || x >= f.w || y >= f.h {
		return false
	}
	i := y*f.w + x
	was := f.pix[i] == 1
	f.pix[i] ^= 1
	return was
}

// Pixel reports whether (x, y) is lit.
func (f *Framebuffer) Pixel(x, y int) bool {
	if x < 0 || y < 0 || x >= f.w || y >= f.h {
		return false
	}
	return f.pix[y*f.w+x] == 1
}

// Lit returns the number of pixels currently on.
func (f *Framebuffer) Lit() int {
	n := 0
	for _, p := range f.pix {
		n += int(p)
	}
	return n
}

// RGBA renders the buffer as w*h*4 bytes suitable for ebiten.Image.WritePixels.
func (f *Framebuffer) RGBA(on, off color.RGBA) []byte {
	out := make([]byte, len(f.pix)*4)
	f.RGBAInto(out, on, off)
	return out
}

// RGBAInto is RGBA writing into dst, which must hold at least w*h*4 bytes.
func (f *Framebuffer) RGBAInto(dst []byte, on, off color.RGBA) {
	for i, p := range f.pix {
		c := off
		if p != 0 {
			c = on
		}
		o := i * 4
		dst[o+0] = c.R
		dst[o+1] = c.G
		dst[o+2] = c.B
		dst[o+3] = c.A
	}
}

// CRC32 hashes the pixel plane; used by headless runs to compare frames.
func (f *Framebuffer) CRC32() uint32 { return crc32.ChecksumIEEE(f.pix) }

// String renders the buffer as text, '#' for lit pixels and '.' otherwise.
func (f *Framebuffer) String() string {
	var sb strings.Builder
	sb.Grow((f.w + 1) * f.h)
	for y := 0; y < f.h; y++ {
		for x := 0; x < f.w; x++ {
			if f.pix[y*f.w+x] != 0 {
				sb.WriteByte('#')
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// CopyFrom replaces the contents with those of src when sizes match.
func (f *Framebuffer) CopyFrom(src *Framebuffer) {
	if src.w != f.w || src.h != f.h {
		return
	}
	copy(f.pix, src.pix)
}
