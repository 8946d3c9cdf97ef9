package display

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// Image returns the buffer as an RGBA image, one image pixel per display
// pixel.
func (f *Framebuffer) Image(on, off color.RGBA) *image.RGBA {
	return &image.RGBA{
		Pix:    f.RGBA(on, off),
		Stride: 4 * f.w,
		Rect:   image.Rect(0, 0, f.w, f.h),
	}
}

// Scaled returns the buffer enlarged by an integer factor with
// nearest-neighbour sampling so pixels stay square.
func (f *Framebuffer) Scaled(on, off color.RGBA, scale int) *image.RGBA {
	src := f.Image(on, off)
	if scale <= 1 {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, f.w*scale, f.h*scale))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}
