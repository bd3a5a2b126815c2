package graphic

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Green is the colour of the region box and the status text.
var Green = color.RGBA{0, 255, 0, 255}

// DrawBox outlines r with a line thickness pixels wide, centred on the edge of
// r. The outline is clipped to dst.
func DrawBox(dst draw.Image, r image.Rectangle, c color.Color, thickness int) {
	if thickness < 1 {
		return
	}

	outer := r.Inset(-(thickness / 2))
	inner := outer.Inset(thickness)
	src := image.NewUniform(c)

	edges := [4]image.Rectangle{
		image.Rect(outer.Min.X, outer.Min.Y, outer.Max.X, inner.Min.Y), // top
		image.Rect(outer.Min.X, inner.Max.Y, outer.Max.X, outer.Max.Y), // bottom
		image.Rect(outer.Min.X, inner.Min.Y, inner.Min.X, inner.Max.Y), // left
		image.Rect(inner.Max.X, inner.Min.Y, outer.Max.X, inner.Max.Y), // right
	}

	// thick enough to swallow the inside
	if inner.Empty() {
		edges = [4]image.Rectangle{outer}
	}

	for _, e := range edges {
		e = e.Intersect(dst.Bounds())
		if !e.Empty() {
			draw.Draw(dst, e, src, image.Point{}, draw.Src)
		}
	}
}

// TextBounds returns the area DrawText would cover.
func TextBounds(text string, dot image.Point, scale int) image.Rectangle {
	if scale < 1 {
		scale = 1
	}

	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()

	return image.Rect(
		dot.X, dot.Y-face.Ascent*scale,
		dot.X+width*scale, dot.Y+face.Descent*scale)
}

// DrawText writes text with its baseline starting at dot, each font pixel
// blown up to a scale x scale block.
func DrawText(dst draw.Image, text string, dot image.Point, c color.Color, scale int) {
	if scale < 1 {
		scale = 1
	}

	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	height := face.Ascent + face.Descent
	if width == 0 {
		return
	}

	mask := image.NewAlpha(image.Rect(0, 0, width, height))
	d := font.Drawer{
		Dst:  mask,
		Src:  image.Opaque,
		Face: face,
		Dot:  fixed.P(0, face.Ascent),
	}
	d.DrawString(text)

	src := image.NewUniform(c)
	origin := image.Pt(dot.X, dot.Y-face.Ascent*scale)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if mask.AlphaAt(x, y).A < 0x80 {
				continue
			}

			at := origin.Add(image.Pt(x*scale, y*scale))
			block := image.Rect(at.X, at.Y, at.X+scale, at.Y+scale).Intersect(dst.Bounds())
			if !block.Empty() {
				draw.Draw(dst, block, src, image.Point{}, draw.Src)
			}
		}
	}
}
