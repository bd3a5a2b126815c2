package processor

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/noriah/pulsecat/frame"
	"github.com/noriah/pulsecat/graphic"
	"github.com/pkg/errors"
)

const (
	// BoxThickness is the width of the region outline.
	BoxThickness = 3
	// TextScale blows up the 7x13 font so the text reads at 320x240.
	TextScale = 2
)

var (
	loadingTextLocation = image.Pt(20, 30)
	boxAbsent           = color.RGBA{255, 0, 0, 255}
)

// Reconstruct expands a filtered sample by levels and crops it to height x
// width. Expansion that comes out smaller than the region is an error; it is
// never padded.
func Reconstruct(filtered *frame.Sample, levels, height, width int) (*frame.Sample, error) {
	expanded := frame.Expand(filtered, levels)

	out, err := expanded.Crop(height, width)
	if err != nil {
		return nil, errors.Wrap(err, "reconstruct")
	}

	return out, nil
}

// Composite adds overlay onto the pixels of dst inside r, rounding and
// clamping each value to 0..255.
func Composite(dst *frame.Frame, r image.Rectangle, overlay *frame.Sample) error {
	if overlay.Height != r.Dy() || overlay.Width != r.Dx() || overlay.Channels != frame.Channels {
		return errors.Errorf("overlay %dx%dx%d does not fit region %v",
			overlay.Width, overlay.Height, overlay.Channels, r)
	}

	if !r.In(dst.Bounds()) {
		return errors.Errorf("region %v outside frame %v", r, dst.Bounds())
	}

	row := r.Dx() * frame.Channels
	for y := 0; y < r.Dy(); y++ {
		pix := dst.Pix[dst.PixOffset(r.Min.X, r.Min.Y+y):]
		over := overlay.Pix[y*row:]

		for i := 0; i < row; i++ {
			pix[i] = clamp(float64(pix[i]) + over[i])
		}
	}

	return nil
}

func clamp(v float64) uint8 {
	v = math.Round(v)
	switch {
	case v <= 0, math.IsNaN(v):
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v)
	}
}

// annotate draws the region box and the status text for the current state.
func (p *Processor) annotate(f *frame.Frame, present bool, box image.Rectangle) {
	switch p.cfg.Overlay {
	case OverlayPlain:
		return

	case OverlayPresence:
		c := color.Color(graphic.Green)
		if !present {
			c = boxAbsent
			box = p.cfg.Region
		}
		graphic.DrawBox(f, box, c, BoxThickness)

	default:
		graphic.DrawBox(f, p.cfg.Region, graphic.Green, BoxThickness)
	}

	if p.cfg.DetectOnly {
		if !present {
			graphic.DrawText(f, "No subject", loadingTextLocation, graphic.Green, TextScale)
		}
		return
	}

	switch p.state {
	case Warm:
		text := fmt.Sprintf("BPM: %d", int(p.history.Smoothed()))
		graphic.DrawText(f, text, p.bpmTextLocation, graphic.Green, TextScale)

	case NoSubject:
		graphic.DrawText(f, "No subject", loadingTextLocation, graphic.Green, TextScale)

	default:
		graphic.DrawText(f, "Calculating BPM...", loadingTextLocation, graphic.Green, TextScale)
	}
}
