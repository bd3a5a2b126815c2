// Package frame holds the pixel containers passed through a pulse pipeline.
//
// A Frame is what sources produce and outputs consume: 8-bit, 3 channel,
// interleaved BGR (the byte order of rawvideo bgr24 and OpenCV mats). A Sample
// is the float64 working copy of a region that the signal path operates on.
package frame

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
)

// Channels is the number of colour channels in every Frame.
const Channels = 3

// Frame is an 8-bit BGR image. It implements draw.Image so the standard image
// and font drawing packages can render on it directly.
type Frame struct {
	Width  int
	Height int
	// Pix holds the pixels in row-major order, Channels bytes per pixel.
	Pix []uint8
}

// New returns a black frame of the given size.
func New(width, height int) *Frame {
	return &Frame{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height*Channels),
	}
}

// FromBytes wraps pix as a frame. It fails when the length does not match.
func FromBytes(width, height int, pix []uint8) (*Frame, error) {
	if len(pix) != width*height*Channels {
		return nil, errors.Errorf("frame %dx%d needs %d bytes, got %d",
			width, height, width*height*Channels, len(pix))
	}

	return &Frame{Width: width, Height: height, Pix: pix}, nil
}

// Stride is the number of bytes in a row.
func (f *Frame) Stride() int {
	return f.Width * Channels
}

// PixOffset returns the index of the first byte of the pixel at (x, y).
func (f *Frame) PixOffset(x, y int) int {
	return y*f.Stride() + x*Channels
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	c := &Frame{Width: f.Width, Height: f.Height, Pix: make([]uint8, len(f.Pix))}
	copy(c.Pix, f.Pix)
	return c
}

// Valid reports whether the pixel buffer matches the frame size.
func (f *Frame) Valid() bool {
	return f.Width > 0 && f.Height > 0 && len(f.Pix) == f.Width*f.Height*Channels
}

// ColorModel implements image.Image.
func (f *Frame) ColorModel() color.Model {
	return color.RGBAModel
}

// Bounds implements image.Image.
func (f *Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.Width, f.Height)
}

// At implements image.Image.
func (f *Frame) At(x, y int) color.Color {
	if !(image.Point{x, y}.In(f.Bounds())) {
		return color.RGBA{}
	}

	i := f.PixOffset(x, y)
	return color.RGBA{R: f.Pix[i+2], G: f.Pix[i+1], B: f.Pix[i], A: 0xff}
}

// Set implements draw.Image. Alpha is ignored.
func (f *Frame) Set(x, y int, c color.Color) {
	if !(image.Point{x, y}.In(f.Bounds())) {
		return
	}

	rgba := color.RGBAModel.Convert(c).(color.RGBA)
	i := f.PixOffset(x, y)
	f.Pix[i+0] = rgba.B
	f.Pix[i+1] = rgba.G
	f.Pix[i+2] = rgba.R
}

// RGBA converts the frame into a new *image.RGBA.
func (f *Frame) RGBA() *image.RGBA {
	img := image.NewRGBA(f.Bounds())

	for src, dst := 0, 0; src < len(f.Pix); src, dst = src+Channels, dst+4 {
		img.Pix[dst+0] = f.Pix[src+2]
		img.Pix[dst+1] = f.Pix[src+1]
		img.Pix[dst+2] = f.Pix[src+0]
		img.Pix[dst+3] = 0xff
	}

	return img
}

// Region copies the pixels inside r into dst as float64 values. dst must be
// r.Dy() x r.Dx() x Channels.
func (f *Frame) Region(r image.Rectangle, dst *Sample) error {
	if !r.In(f.Bounds()) {
		return errors.Errorf("region %v outside frame %v", r, f.Bounds())
	}

	if dst.Height != r.Dy() || dst.Width != r.Dx() || dst.Channels != Channels {
		return errors.Errorf("region %v does not fit sample %dx%dx%d",
			r, dst.Width, dst.Height, dst.Channels)
	}

	row := r.Dx() * Channels
	for y := 0; y < r.Dy(); y++ {
		src := f.Pix[f.PixOffset(r.Min.X, r.Min.Y+y):]
		out := dst.Pix[y*row:]
		for i := 0; i < row; i++ {
			out[i] = float64(src[i])
		}
	}

	return nil
}

// Centered returns the region of size w x h centred in a frame of fw x fh.
func Centered(fw, fh, w, h int) image.Rectangle {
	x0, y0 := (fw-w)/2, (fh-h)/2
	return image.Rect(x0, y0, x0+w, y0+h)
}
